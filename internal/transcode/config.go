package transcode

import "github.com/localmedia/transcoded/internal/codecprovider"

// FormatConfig describes the output sink (spec §3.1).
type FormatConfig struct {
	Dst     string
	DstType string
	KVOpts  string // "k=v&k=v", parsed by internal/kvcodec
}

// VideoConfig describes the video encoder target (spec §3.1). Framerate is
// always supplied by the probe, never by the client.
type VideoConfig struct {
	Codec      string
	Framerate  codecprovider.Rational
	Width      int
	Height     int
	GopSize    int
	PixFmt     codecprovider.PixelFormat
	Profile    string
	Preset     string
	CRF        int // -1 means use CBR
	BitrateBps int64
}

// AudioConfig describes the audio encoder target (spec §3.1).
type AudioConfig struct {
	Codec      string
	BitrateBps int64
	Channels   int
	SampleRate int
}
