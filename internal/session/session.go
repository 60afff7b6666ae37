// Package session implements the ordered client/server message exchange of
// spec §4.D atop internal/kvcodec (the KV wire grammar) and
// internal/transport (NUL-terminated framing). Every message on the wire
// passes through exactly one function in this package; callers never touch
// kvcodec or transport directly.
package session

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/localmedia/transcoded/internal/codecprovider"
	"github.com/localmedia/transcoded/internal/kvcodec"
	"github.com/localmedia/transcoded/internal/mediaprobe"
	"github.com/localmedia/transcoded/internal/transcode"
	"github.com/localmedia/transcoded/internal/transport"
)

const (
	pairDelim = ';'
	kvDelim   = ':'
)

// ReadInput reads the C→S Input message (spec §4.D step 1) and returns the
// value of its input_file key. Any unknown keys are ignored.
func ReadInput(r *bufio.Reader) (string, error) {
	raw, err := transport.Read(r)
	if err != nil {
		return "", err
	}
	kv := kvcodec.Parse(string(raw), pairDelim, kvDelim)
	path, err := kv.Get("input_file")
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteMediaInfo sends the S→C MediaInfo message (spec §4.D step 2).
func WriteMediaInfo(w io.Writer, info *mediaprobe.MediaInfo) error {
	kv := kvcodec.KVList{
		{Key: "format", Value: info.Format},
		{Key: "duration", Value: fmt.Sprintf("%f", info.DurationSeconds)},
		{Key: "video_codec", Value: info.VideoCodec},
		{Key: "audio_codec", Value: info.AudioCodec},
		{Key: "video_index", Value: strconv.Itoa(info.VideoIndex)},
		{Key: "audio_index", Value: strconv.Itoa(info.AudioIndex)},
		{Key: "width", Value: strconv.Itoa(info.Width)},
		{Key: "height", Value: strconv.Itoa(info.Height)},
		{Key: "video_bitrate_kbps", Value: strconv.Itoa(info.VideoBitrateKbps)},
		{Key: "audio_bitrate_kbps", Value: strconv.Itoa(info.AudioBitrateKbps)},
		{Key: "fps", Value: fmt.Sprintf("%f", info.FPS)},
		{Key: "audio_channels", Value: strconv.Itoa(info.AudioChannels)},
		{Key: "sample_rate", Value: strconv.Itoa(info.SampleRate)},
		{Key: "audio_packets", Value: strconv.FormatInt(info.AudioPackets, 10)},
		{Key: "video_packets", Value: strconv.FormatInt(info.VideoPackets, 10)},
	}
	return writeKV(w, kv)
}

// Config is the decoded C→S Config message (spec §4.D step 3): the three
// target records the worker needs to build the transcode pipeline.
type Config struct {
	Video  transcode.VideoConfig
	Audio  transcode.AudioConfig
	Format transcode.FormatConfig
}

// ReadConfig reads and decodes the Config message. Recognized keys
// populate their target field with the documented coercion; unrecognized
// keys are ignored and unset fields keep their zero value, except
// video.crf which defaults to -1, so a message without video_crf selects
// CBR; callers must send video_crf explicitly for CRF mode.
func ReadConfig(r *bufio.Reader) (Config, error) {
	var cfg Config
	cfg.Video.CRF = -1

	raw, err := transport.Read(r)
	if err != nil {
		return cfg, err
	}
	kv := kvcodec.Parse(string(raw), pairDelim, kvDelim)

	for _, p := range kv {
		switch p.Key {
		case "audio_codec":
			cfg.Audio.Codec = p.Value
		case "audio_bitrate_bps":
			cfg.Audio.BitrateBps = parseInt64(p.Value)
		case "audio_channels":
			cfg.Audio.Channels = parseInt(p.Value)
		case "audio_sample_rate":
			cfg.Audio.SampleRate = parseInt(p.Value)
		case "video_codec":
			cfg.Video.Codec = p.Value
		case "video_width":
			cfg.Video.Width = parseInt(p.Value)
		case "video_height":
			cfg.Video.Height = parseInt(p.Value)
		case "video_gop_size":
			cfg.Video.GopSize = parseInt(p.Value)
		case "video_pix_fmt":
			cfg.Video.PixFmt = codecprovider.PixelFormat(parseInt(p.Value))
		case "video_profile":
			cfg.Video.Profile = p.Value
		case "video_preset":
			cfg.Video.Preset = p.Value
		case "video_crf":
			cfg.Video.CRF = parseInt(p.Value)
		case "video_bitrate_bps":
			cfg.Video.BitrateBps = parseInt64(p.Value)
		case "format_dst":
			cfg.Format.Dst = p.Value
		case "format_dst_type":
			cfg.Format.DstType = p.Value
		case "format_kv_opts":
			cfg.Format.KVOpts = p.Value
		}
	}
	return cfg, nil
}

// WriteProgress sends one S→C status message, used for every in-progress
// update and for the success terminal (spec §4.D steps 4-5).
func WriteProgress(w io.Writer, p transcode.ProgressStatus) error {
	kv := kvcodec.KVList{
		{Key: "status", Value: strconv.Itoa(p.Status)},
		{Key: "status_desc", Value: p.StatusDesc},
		{Key: "proc_time_ms", Value: strconv.FormatInt(p.ProcTimeMs, 10)},
		{Key: "time_left_ms", Value: strconv.FormatInt(p.TimeLeftMs, 10)},
		{Key: "progress_pct", Value: strconv.Itoa(p.ProgressPct)},
		{Key: "audio_pkts_read", Value: strconv.FormatInt(p.AudioPktsRead, 10)},
		{Key: "video_pkts_read", Value: strconv.FormatInt(p.VideoPktsRead, 10)},
		{Key: "err_msg", Value: p.ErrMsg},
	}
	return writeKV(w, kv)
}

// WriteError sends the S→C error terminal message: a single-pair KV
// message mapping "error" to msg (spec §4.D step 5).
func WriteError(w io.Writer, msg string) error {
	return writeKV(w, kvcodec.KVList{{Key: "error", Value: msg}})
}

func writeKV(w io.Writer, kv kvcodec.KVList) error {
	s := kvcodec.Serialize(kv, pairDelim, kvDelim)
	return transport.WriteString(w, s)
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
