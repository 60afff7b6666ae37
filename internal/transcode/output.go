package transcode

import (
	"github.com/localmedia/transcoded/internal/codecprovider"
	"github.com/localmedia/transcoded/internal/kvcodec"
)

// videoHandlerName is the fixed branding string set on the video output
// stream's handler_name metadata (spec §6.3).
const videoHandlerName = "Media file produced by transcoded."

// VideoStreamIndex and AudioStreamIndex are the fixed output stream
// indices mandated by spec §6.3.
const (
	VideoStreamIndex = 0
	AudioStreamIndex = 1
)

// openOutput implements spec §4.F.4: allocate the output context, create
// exactly two streams in (video, audio) order, copy encoder parameters
// into each, brand the video stream, set the global-header flag if the
// container requires it, open the file-backed I/O handle, and write the
// header using options parsed from format.KVOpts.
//
// Any failure after allocation unwinds in strict reverse order (spec §4.F.4
// step 6); callers should Close() the returned *codecprovider.Muxer on any
// subsequent failure as well.
func openOutput(fmtCfg FormatConfig, video, audio *StreamTranscoder) (*codecprovider.Muxer, error) {
	muxer, err := codecprovider.NewMuxer(fmtCfg.DstType, fmtCfg.Dst)
	if err != nil {
		return nil, err
	}

	vOutStream := muxer.NewStream(nil)
	video.OutStream = vOutStream
	if err := video.Encoder.CopyParamsTo(vOutStream); err != nil {
		muxer.Close()
		return nil, err
	}
	vOutStream.SetTimeBase(video.Encoder.Ctx.TimeBase())
	codecprovider.SetStreamHandlerName(vOutStream, videoHandlerName)

	aOutStream := muxer.NewStream(nil)
	audio.OutStream = aOutStream
	if err := audio.Encoder.CopyParamsTo(aOutStream); err != nil {
		muxer.Close()
		return nil, err
	}
	aOutStream.SetTimeBase(audio.Encoder.Ctx.TimeBase())

	if muxer.RequiresGlobalHeader() {
		video.Encoder.SetGlobalHeader()
	}

	if err := muxer.Open(fmtCfg.Dst); err != nil {
		muxer.Close()
		return nil, err
	}

	var opts *codecprovider.Dictionary
	if fmtCfg.KVOpts != "" {
		opts = codecprovider.NewDictionary()
		defer opts.Free()
		for _, p := range kvcodec.Parse(fmtCfg.KVOpts, '&', '=') {
			_ = opts.Set(p.Key, p.Value, 0)
		}
	}
	if err := muxer.WriteHeader(opts); err != nil {
		muxer.Close()
		return nil, err
	}

	return muxer, nil
}
