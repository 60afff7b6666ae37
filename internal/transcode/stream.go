// Package transcode is the transcoder core (spec §4.F): per-stream
// decoder/encoder lifecycle, the optional scaler, the decode→(scale)→
// encode→mux packet pump, timestamp rescaling, and progress accounting.
package transcode

import (
	"strconv"

	"github.com/localmedia/transcoded/internal/codecprovider"
)

// Kind distinguishes an audio stream transcoder from a video one.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

// StreamTranscoder owns one decoder + one encoder + (video only) one
// scaler for a single input/output stream pair (spec §3.1). It exclusively
// owns these resources; Close releases them on the worker's single
// failure-or-success exit path.
type StreamTranscoder struct {
	Kind Kind

	Decoder   *codecprovider.Decoder
	InStream  *codecprovider.Stream
	Encoder   *codecprovider.Encoder
	OutStream *codecprovider.Stream

	InFrame *codecprovider.Frame
	Scaler  *codecprovider.Scaler // non-nil only for KindVideo when downscaling

	// Resampler is allocated for KindAudio but never driven: the encoder is
	// configured with the decoder's sample rate, so no conversion happens.
	// It is kept so a sample-rate-conversion path slots in without changing
	// this struct.
	Resampler *codecprovider.Resampler
}

// Close releases the reusable frame, scaler, resampler, encoder and
// decoder, in that order. It is safe to call on a partially constructed StreamTranscoder.
func (st *StreamTranscoder) Close() {
	if st == nil {
		return
	}
	if st.InFrame != nil {
		st.InFrame.Free()
	}
	if st.Scaler != nil {
		st.Scaler.Close()
	}
	if st.Resampler != nil {
		st.Resampler.Close()
	}
	if st.Encoder != nil {
		st.Encoder.Close()
	}
	if st.Decoder != nil {
		st.Decoder.Close()
	}
}

// NewVideoStreamTranscoder implements spec §4.F.1 and §4.F.2 for the video
// stream: open the decoder, resolve and open the encoder by name, and
// materialize a scaler iff the source is strictly larger on both axes than
// the target (§4.F.2).
func NewVideoStreamTranscoder(inStream *codecprovider.Stream, cfg VideoConfig) (*StreamTranscoder, error) {
	dec, err := codecprovider.OpenDecoder(inStream)
	if err != nil {
		return nil, err
	}
	st := &StreamTranscoder{Kind: KindVideo, Decoder: dec, InStream: inStream, InFrame: codecprovider.AllocFrame()}

	codec, err := codecprovider.FindEncoderByName(cfg.Codec)
	if err != nil {
		st.Close()
		return nil, err
	}

	crf := crfMode(cfg.CRF)

	opts := codecprovider.NewDictionary()
	defer opts.Free()
	if crf {
		_ = opts.Set("crf", strconv.Itoa(cfg.CRF), 0)
	}
	if cfg.Preset != "" {
		_ = opts.Set("preset", cfg.Preset, 0)
	}
	if cfg.Profile != "" {
		_ = opts.Set("profile", cfg.Profile, 0)
	}
	if !crf {
		// CBR: cap the rate at the target and give the rate controller a
		// 2x buffer. maxrate/bufsize are generic codec options, applied by
		// the provider when the encoder opens.
		_ = opts.Set("maxrate", strconv.FormatInt(cfg.BitrateBps, 10), 0)
		_ = opts.Set("bufsize", strconv.FormatInt(2*cfg.BitrateBps, 10), 0)
		_ = opts.Set("tune", "zerolatency", 0)
	}

	decWidth, decHeight := dec.Ctx.Width(), dec.Ctx.Height()
	sar := dec.Ctx.SampleAspectRatio()

	enc, err := codecprovider.OpenEncoder(codec, opts, func(ctx *codecprovider.CodecContext) {
		ctx.SetWidth(cfg.Width)
		ctx.SetHeight(cfg.Height)
		ctx.SetGopSize(cfg.GopSize)
		ctx.SetPixelFormat(codecprovider.DefaultPixFmt)
		ctx.SetSampleAspectRatio(sar)
		ctx.SetTimeBase(reciprocal(cfg.Framerate))

		if crf {
			ctx.SetBitRate(0)
		} else {
			ctx.SetBitRate(cfg.BitrateBps)
		}
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	st.Encoder = enc

	if needsScaler(decWidth, decHeight, cfg.Width, cfg.Height) {
		scaler, err := codecprovider.NewScaler(decWidth, decHeight, dec.Ctx.PixelFormat(), cfg.Width, cfg.Height)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.Scaler = scaler
	}

	return st, nil
}

// needsScaler implements the scaler policy of spec §4.F.2: a scaler is
// materialized iff the source is strictly larger than the target on both
// axes. An upscale request (source smaller or equal on either axis) is
// documented behavior — frames pass through unchanged (spec §8 scenario 3).
func needsScaler(decWidth, decHeight, encWidth, encHeight int) bool {
	return decWidth > encWidth && decHeight > encHeight
}

// crfMode reports whether cfg selects CRF-based rate control (crf >= 0) as
// opposed to CBR (spec §4.F.1 step 5).
func crfMode(crf int) bool {
	return crf >= 0
}

// NewAudioStreamTranscoder implements spec §4.F.1 for the audio stream.
// The sample rate is inherited from the decoder, never from the client's
// requested audio_sample_rate (spec §9 open question 1: the observed
// behavior is preserved as-is, not "fixed").
func NewAudioStreamTranscoder(inStream *codecprovider.Stream, cfg AudioConfig) (*StreamTranscoder, error) {
	dec, err := codecprovider.OpenDecoder(inStream)
	if err != nil {
		return nil, err
	}
	st := &StreamTranscoder{Kind: KindAudio, Decoder: dec, InStream: inStream, InFrame: codecprovider.AllocFrame()}

	codec, err := codecprovider.FindEncoderByName(cfg.Codec)
	if err != nil {
		st.Close()
		return nil, err
	}

	sampleRate := dec.Ctx.SampleRate()
	channelLayout := dec.Ctx.ChannelLayout()
	sampleFormats := codec.SampleFormats()
	var sampleFormat codecprovider.SampleFormat
	if len(sampleFormats) > 0 {
		sampleFormat = sampleFormats[0]
	}

	opts := codecprovider.NewDictionary()
	defer opts.Free()

	enc, err := codecprovider.OpenEncoder(codec, opts, func(ctx *codecprovider.CodecContext) {
		ctx.SetChannelLayout(channelLayout)
		ctx.SetSampleRate(sampleRate)
		ctx.SetSampleFormat(sampleFormat)
		ctx.SetBitRate(cfg.BitrateBps)
		ctx.SetTimeBase(codecprovider.NewRational(1, sampleRate))
		ctx.SetStrictStdCompliance(codecprovider.StrictComplianceExperimental)
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	st.Encoder = enc
	st.Resampler = codecprovider.NewResampler()
	return st, nil
}

func reciprocal(r codecprovider.Rational) codecprovider.Rational {
	return codecprovider.NewRational(r.Den(), r.Num())
}
