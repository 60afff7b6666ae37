// Package codecprovider is the single point of contact with the underlying
// codec library (spec §6.4: "treated as an opaque codec provider with the
// narrow capability surface listed in §6.4"). Every other package in this
// service — internal/mediaprobe, internal/transcode — talks to media files
// only through the types and functions declared here; none of them import
// github.com/asticode/go-astiav directly.
//
// Grounded on github.com/asticode/go-astiav usage in the retrieval pack's
// e1z0-QAnotherRTSP/src/video.go, which exercises this exact capability set
// (open/probe, decode, software scale, encode, mux).
package codecprovider

import (
	"fmt"

	astiav "github.com/asticode/go-astiav"

	"github.com/localmedia/transcoded/internal/errtax"
)

// Re-exported astiav types. Callers in this service never import astiav
// themselves; they use these names.
type (
	Frame         = astiav.Frame
	Packet        = astiav.Packet
	Rational      = astiav.Rational
	MediaType     = astiav.MediaType
	PixelFormat   = astiav.PixelFormat
	SampleFormat  = astiav.SampleFormat
	ChannelLayout = astiav.ChannelLayout
	CodecID       = astiav.CodecID
	Dictionary    = astiav.Dictionary
	FormatContext = astiav.FormatContext
	Stream        = astiav.Stream
	Codec         = astiav.Codec
	CodecContext  = astiav.CodecContext
)

// StrictComplianceExperimental permits encoders the provider flags as
// experimental (spec §4.F.1: audio strict compliance is experimental).
const StrictComplianceExperimental = astiav.StrictStdComplianceExperimental

// ErrEOF and ErrAgain are the provider's end-of-stream and try-again
// sentinels, re-exported so callers can drive drain loops with errors.Is
// without importing the underlying library.
var (
	ErrEOF   error = astiav.ErrEof
	ErrAgain error = astiav.ErrEagain
)

const (
	MediaTypeVideo = astiav.MediaTypeVideo
	MediaTypeAudio = astiav.MediaTypeAudio
)

// DefaultPixFmt is the canonical 4:2:0 8-bit planar pixel format (spec
// §6.3 DEFAULT_PIX_FMT). It is what the video encoder is always configured
// with regardless of the source's native pixel format.
const DefaultPixFmt PixelFormat = astiav.PixelFormatYuv420P

// NewRational is a passthrough constructor so callers never need astiav.
func NewRational(num, den int) Rational { return astiav.NewRational(num, den) }

// AllocPacket and AllocFrame are passthroughs kept here so ownership of the
// libav allocation always goes through this package.
func AllocPacket() *Packet { return astiav.AllocPacket() }
func AllocFrame() *Frame   { return astiav.AllocFrame() }

// OpenInput opens and probes path, populating the stream table. The
// returned FormatContext must be closed with CloseInput.
func OpenInput(path string) (*FormatContext, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errtax.NewOS("codecprovider.open_input", 0, fmt.Errorf("alloc format context"))
	}
	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, errtax.NewCodec("codecprovider.open_input", 0, err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, errtax.NewCodec("codecprovider.find_stream_info", 0, err)
	}
	return fc, nil
}

// CloseInput releases an input FormatContext opened by OpenInput.
func CloseInput(fc *FormatContext) {
	if fc == nil {
		return
	}
	fc.CloseInput()
	fc.Free()
}

// FindFirstStream returns the index and handle of the first stream of the
// given media type, or ok=false if none exists.
func FindFirstStream(fc *FormatContext, mt MediaType) (idx int, stream *Stream, ok bool) {
	for i, s := range fc.Streams() {
		if s.CodecParameters().MediaType() == mt {
			return i, s, true
		}
	}
	return -1, nil, false
}

// ReadPacket reads the next demuxed packet into pkt. It returns ErrEOF
// when the input is exhausted.
func ReadPacket(fc *FormatContext, pkt *Packet) error {
	return fc.ReadFrame(pkt)
}

// Decoder owns a decode-side codec context bound to one input stream.
type Decoder struct {
	Ctx    *astiav.CodecContext
	Stream *Stream
}

// OpenDecoder finds the decoder declared on stream's codec parameters,
// allocates a context, copies the stream's parameters into it, and opens
// it. Missing decoder -> errtax.DecoderNotFound (spec §4.F.1 step 2).
func OpenDecoder(stream *Stream) (*Decoder, error) {
	params := stream.CodecParameters()
	codec := astiav.FindDecoder(params.CodecID())
	if codec == nil {
		return nil, errtax.NewApp("codecprovider.open_decoder", errtax.DecoderNotFound, nil)
	}
	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		return nil, errtax.NewOS("codecprovider.open_decoder", 0, fmt.Errorf("alloc codec context"))
	}
	if err := params.ToCodecContext(ctx); err != nil {
		ctx.Free()
		return nil, errtax.NewCodec("codecprovider.open_decoder", 0, err)
	}
	if err := ctx.Open(codec, nil); err != nil {
		ctx.Free()
		return nil, errtax.NewCodec("codecprovider.open_decoder", 0, err)
	}
	return &Decoder{Ctx: ctx, Stream: stream}, nil
}

// SendPacket/ReceiveFrame drain the decode pipeline one packet/frame at a
// time, matching the send/receive idiom of the underlying library.
func (d *Decoder) SendPacket(pkt *Packet) error  { return d.Ctx.SendPacket(pkt) }
func (d *Decoder) ReceiveFrame(f *Frame) error    { return d.Ctx.ReceiveFrame(f) }
func (d *Decoder) Close() {
	if d != nil && d.Ctx != nil {
		d.Ctx.Free()
	}
}

// Encoder owns an encode-side codec context bound to one output stream.
type Encoder struct {
	Ctx *astiav.CodecContext
}

// FindEncoderByName resolves an encoder by its configured name
// ("libx264", "aac", ...). Missing encoder -> errtax.EncoderNotFound (spec
// §4.F.1 step 3).
func FindEncoderByName(name string) (*Codec, error) {
	codec := astiav.FindEncoderByName(name)
	if codec == nil {
		return nil, errtax.NewApp("codecprovider.find_encoder", errtax.EncoderNotFound, nil)
	}
	return codec, nil
}

// OpenEncoder allocates a codec context for codec, lets configure mutate it
// (GOP size, bitrate, time base, pixel/sample format, ...), then opens it
// with opts as private options (preset/profile/crf/tune land here). A
// failing private option surfaces as errtax.InvalidArg per spec §4.F.1.
func OpenEncoder(codec *Codec, opts *Dictionary, configure func(ctx *CodecContext)) (*Encoder, error) {
	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		return nil, errtax.NewOS("codecprovider.open_encoder", 0, fmt.Errorf("alloc codec context"))
	}
	configure(ctx)
	if err := ctx.Open(codec, opts); err != nil {
		ctx.Free()
		return nil, errtax.NewApp("codecprovider.open_encoder", errtax.InvalidArg, err)
	}
	return &Encoder{Ctx: ctx}, nil
}

func (e *Encoder) SendFrame(f *Frame) error    { return e.Ctx.SendFrame(f) }
func (e *Encoder) ReceivePacket(p *Packet) error { return e.Ctx.ReceivePacket(p) }
func (e *Encoder) Close() {
	if e != nil && e.Ctx != nil {
		e.Ctx.Free()
	}
}

// CopyParamsTo copies this encoder's negotiated parameters into an output
// stream's codec parameters (spec §4.F.4 step 2).
func (e *Encoder) CopyParamsTo(stream *Stream) error {
	if err := e.Ctx.ToCodecParameters(stream.CodecParameters()); err != nil {
		return errtax.NewCodec("codecprovider.copy_params", 0, err)
	}
	return nil
}

// SetGlobalHeader sets the "global header" flag on the encoder context
// (spec §4.F.4 step 3).
func (e *Encoder) SetGlobalHeader() {
	e.Ctx.SetFlags(e.Ctx.Flags().Add(astiav.CodecContextFlagGlobalHeader))
}

// SetStreamHandlerName sets the fixed branding string on a stream's
// "handler_name" metadata entry (spec §6.3).
func SetStreamHandlerName(stream *Stream, name string) {
	stream.Metadata().Set("handler_name", name, 0)
}

// Scaler owns a bilinear software-scale context and its destination frame.
type Scaler struct {
	ssc *astiav.SoftwareScaleContext
	Dst *Frame
}

// NewScaler creates a bilinear scaler from (srcW,srcH,srcFmt) to
// (dstW,dstH,DefaultPixFmt), allocating the destination frame's buffers
// with 32-byte alignment (spec §4.F.2). A context-creation failure is
// errtax.InvalidArg; a buffer-allocation failure is errtax.OutOfMemory.
func NewScaler(srcW, srcH int, srcFmt PixelFormat, dstW, dstH int) (*Scaler, error) {
	flags := astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear)
	ssc, err := astiav.CreateSoftwareScaleContext(srcW, srcH, srcFmt, dstW, dstH, DefaultPixFmt, flags)
	if err != nil {
		return nil, errtax.NewApp("codecprovider.new_scaler", errtax.InvalidArg, err)
	}
	dst := astiav.AllocFrame()
	dst.SetWidth(dstW)
	dst.SetHeight(dstH)
	dst.SetPixelFormat(DefaultPixFmt)
	if err := dst.AllocBuffer(32); err != nil {
		dst.Free()
		ssc.Free()
		return nil, errtax.NewApp("codecprovider.new_scaler", errtax.OutOfMemory, err)
	}
	return &Scaler{ssc: ssc, Dst: dst}, nil
}

// Scale scales src into the scaler's destination frame.
func (s *Scaler) Scale(src *Frame) error {
	if err := s.ssc.ScaleFrame(src, s.Dst); err != nil {
		return errtax.NewCodec("codecprovider.scale", 0, err)
	}
	return nil
}

func (s *Scaler) Close() {
	if s == nil {
		return
	}
	if s.Dst != nil {
		s.Dst.Free()
	}
	if s.ssc != nil {
		s.ssc.Free()
	}
}

// Resampler owns a software resample context. It is allocated but never
// driven: the audio path feeds decoded frames straight to the encoder, and
// the context is held only so a sample-rate-conversion path can be added
// without changing the StreamTranscoder shape.
type Resampler struct {
	src *astiav.SoftwareResampleContext
}

// NewResampler allocates a resample context.
func NewResampler() *Resampler {
	return &Resampler{src: astiav.AllocSoftwareResampleContext()}
}

func (r *Resampler) Close() {
	if r != nil && r.src != nil {
		r.src.Free()
	}
}

// Muxer owns an output FormatContext and, for file-backed outputs, its I/O
// handle.
type Muxer struct {
	oc *astiav.FormatContext
	pb *astiav.IOContext
}

// NewMuxer allocates an output context for (dstType, dst). dstType may be
// empty to let the provider infer the container from dst's extension.
func NewMuxer(dstType, dst string) (*Muxer, error) {
	oc, err := astiav.AllocOutputFormatContext(nil, dstType, dst)
	if err != nil || oc == nil {
		return nil, errtax.NewCodec("codecprovider.new_muxer", 0, err)
	}
	return &Muxer{oc: oc}, nil
}

// NewStream creates an output stream, optionally bound to an encoder's
// codec (for correct default parameters) or nil for a raw stream.
func (m *Muxer) NewStream(codec *astiav.Codec) *Stream {
	return m.oc.NewStream(codec)
}

// RequiresGlobalHeader reports whether the container mandates the
// "global header" encoder flag (spec §4.F.4 step 3).
func (m *Muxer) RequiresGlobalHeader() bool {
	of := m.oc.OutputFormat()
	if of == nil {
		return false
	}
	return of.Flags().Has(astiav.IOFormatFlagGlobalheader)
}

// IsFileBased reports whether the container needs an explicit I/O handle
// (i.e. it does not manage its own I/O).
func (m *Muxer) IsFileBased() bool {
	of := m.oc.OutputFormat()
	if of == nil {
		return true
	}
	return !of.Flags().Has(astiav.IOFormatFlagNofile)
}

// Open opens the file-backed I/O handle for dst, if required.
func (m *Muxer) Open(dst string) error {
	if !m.IsFileBased() {
		return nil
	}
	flags := astiav.NewIOContextFlags(astiav.IOContextFlagWrite)
	pb, err := astiav.OpenIOContext(dst, flags, nil, nil)
	if err != nil {
		return errtax.NewOS("codecprovider.muxer_open", 0, err)
	}
	m.pb = pb
	m.oc.SetPb(pb)
	return nil
}

// WriteHeader writes the container header with the given options
// dictionary (may be nil).
func (m *Muxer) WriteHeader(opts *Dictionary) error {
	if err := m.oc.WriteHeader(opts); err != nil {
		return errtax.NewCodec("codecprovider.write_header", 0, err)
	}
	return nil
}

// WriteInterleaved writes one packet via the interleaving writer.
func (m *Muxer) WriteInterleaved(pkt *Packet) error {
	if err := m.oc.WriteInterleavedFrame(pkt); err != nil {
		return errtax.NewCodec("codecprovider.write_interleaved", 0, err)
	}
	return nil
}

// WriteTrailer finalizes the container.
func (m *Muxer) WriteTrailer() error {
	if err := m.oc.WriteTrailer(); err != nil {
		return errtax.NewCodec("codecprovider.write_trailer", 0, err)
	}
	return nil
}

// Close unwinds the muxer's resources in reverse order of acquisition:
// I/O handle, then format context (spec §3.2, §4.F.4 step 6).
func (m *Muxer) Close() {
	if m == nil {
		return
	}
	if m.pb != nil {
		_ = m.pb.Close()
		m.pb.Free()
	}
	if m.oc != nil {
		m.oc.Free()
	}
}

// NewDictionary allocates an empty options dictionary.
func NewDictionary() *Dictionary { return astiav.NewDictionary() }
