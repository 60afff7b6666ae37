// Package mediaprobe implements the service's media probe (spec §4.E):
// open the input, discover the first audio/video streams, copy their
// declared properties, then scan every packet once to count packets per
// stream and derive duration when the container didn't report one.
package mediaprobe

import (
	"github.com/localmedia/transcoded/internal/codecprovider"
	"github.com/localmedia/transcoded/internal/errtax"
)

// avTimeBase is the fixed-point time base (microseconds) the codec
// provider reports container-level duration in.
const avTimeBase = 1000000

// MediaInfo is the result of probing one input file (spec §3.1).
type MediaInfo struct {
	Format          string
	DurationSeconds float64 // -1 if unknown

	VideoIndex int // -1 if absent
	AudioIndex int // -1 if absent

	Width            int
	Height           int
	VideoBitrateKbps int
	FPS              float64
	VideoCodec       string

	SampleRate       int
	AudioChannels    int
	AudioBitrateKbps int
	AudioCodec       string

	AudioPackets int64
	VideoPackets int64

	// VideoFramerate is the probe-derived average frame rate, injected into
	// VideoConfig.Framerate by the worker driver (spec §4.G step 5). It is
	// not part of the wire-level MediaInfo message.
	VideoFramerate codecprovider.Rational
}

// Probe opens path, discovers stream properties, and performs the
// packet-scan pass that derives packet counts and (if necessary) duration.
// It always closes the input context before returning (spec §4.E: "the
// scan rewinds/consumes the demuxer; the probe therefore closes the
// context afterwards — the transcode loop re-opens the input").
func Probe(path string) (*MediaInfo, error) {
	fc, err := codecprovider.OpenInput(path)
	if err != nil {
		return nil, err
	}
	defer codecprovider.CloseInput(fc)

	info := &MediaInfo{
		VideoIndex:      -1,
		AudioIndex:      -1,
		DurationSeconds: -1,
	}

	info.Format = fc.InputFormat().Name()
	if d := fc.Duration(); d > 0 {
		info.DurationSeconds = float64(d) / float64(avTimeBase)
	}

	vIdx, vStream, hasVideo := codecprovider.FindFirstStream(fc, codecprovider.MediaTypeVideo)
	if !hasVideo {
		return nil, errtax.NewApp("mediaprobe.probe", errtax.VideoStreamNotFound, nil)
	}
	info.VideoIndex = vIdx
	vParams := vStream.CodecParameters()
	info.Width = vParams.Width()
	info.Height = vParams.Height()
	info.VideoBitrateKbps = int(vParams.BitRate() / 1000)
	// strlen(name) sufficient-capacity bug (spec §9 note 2) is a C-ism with
	// no Go equivalent; Go strings always carry their own length, so it is
	// not reproduced here.
	info.VideoCodec = vParams.CodecID().Name()
	info.VideoFramerate = vStream.AvgFrameRate()
	if info.VideoFramerate.Den() > 0 {
		info.FPS = float64(info.VideoFramerate.Num()) / float64(info.VideoFramerate.Den())
	}

	aIdx, aStream, hasAudio := codecprovider.FindFirstStream(fc, codecprovider.MediaTypeAudio)
	if hasAudio {
		info.AudioIndex = aIdx
		aParams := aStream.CodecParameters()
		info.SampleRate = aParams.SampleRate()
		info.AudioChannels = aParams.ChannelLayout().Channels()
		info.AudioBitrateKbps = int(aParams.BitRate() / 1000)
		info.AudioCodec = aParams.CodecID().Name()
	}

	if err := scanPackets(fc, info, vStream); err != nil {
		return nil, err
	}

	if info.AudioPackets+info.VideoPackets < 1 {
		return nil, errtax.NewApp("mediaprobe.probe", errtax.BufferTooSmall, nil)
	}

	return info, nil
}

// scanPackets walks every packet in fc once, counting audio/video packets
// and deriving video duration from (last_pts-first_pts)+last_duration in
// the video stream's time base (spec §4.E step 6).
func scanPackets(fc *codecprovider.FormatContext, info *MediaInfo, vStream *codecprovider.Stream) error {
	pkt := codecprovider.AllocPacket()
	defer pkt.Free()

	var firstPTS, lastPTS, lastDuration int64
	havePTS := false

	for {
		err := codecprovider.ReadPacket(fc, pkt)
		if err != nil {
			break
		}
		switch pkt.StreamIndex() {
		case info.VideoIndex:
			info.VideoPackets++
			pts := pkt.Pts()
			if !havePTS {
				firstPTS = pts
				havePTS = true
			}
			lastPTS = pts
			lastDuration = pkt.Duration()
		case info.AudioIndex:
			info.AudioPackets++
		}
		pkt.Unref()
	}

	if havePTS && info.DurationSeconds < 0 {
		tb := vStream.TimeBase()
		if tb.Den() > 0 {
			derivedTicks := (lastPTS - firstPTS) + lastDuration
			info.DurationSeconds = float64(derivedTicks) * float64(tb.Num()) / float64(tb.Den())
		}
	}
	return nil
}
