package session

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmedia/transcoded/internal/mediaprobe"
	"github.com/localmedia/transcoded/internal/transcode"
	"github.com/localmedia/transcoded/internal/transport"
)

func TestReadInputExtractsPath(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, transport.WriteString(&buf, "input_file:/tmp/in.mp4;other:ignored"))

	path, err := ReadInput(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/in.mp4", path)
}

func TestReadInputMissingKey(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, transport.WriteString(&buf, "other:ignored"))

	_, err := ReadInput(bufio.NewReader(&buf))
	assert.Error(t, err)
}

func TestWriteMediaInfoRoundTrip(t *testing.T) {
	info := &mediaprobe.MediaInfo{
		Format:           "mov,mp4,m4a,3gp,3g2,mj2",
		DurationSeconds:  12.5,
		VideoIndex:       0,
		AudioIndex:       1,
		Width:            320,
		Height:           240,
		VideoBitrateKbps: 500,
		AudioBitrateKbps: 128,
		FPS:              30,
		AudioChannels:    2,
		SampleRate:       48000,
		AudioPackets:     100,
		VideoPackets:     100,
		VideoCodec:       "h264",
		AudioCodec:       "aac",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMediaInfo(&buf, info))

	raw, err := transport.Read(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "video_index:0")
	assert.Contains(t, string(raw), "audio_index:1")
	assert.Contains(t, string(raw), "width:320")
	assert.Contains(t, string(raw), "video_codec:h264")
}

func TestReadConfigRecognizedKeysAndDefaults(t *testing.T) {
	var buf bytes.Buffer
	msg := "audio_codec:aac;audio_bitrate_bps:128000;video_codec:libx264;" +
		"video_width:320;video_height:240;video_gop_size:60;video_crf:23;" +
		"video_preset:veryfast;video_profile:main;format_dst:/tmp/a.mp4;" +
		"format_dst_type:mp4;unknown_key:ignored"
	require.NoError(t, transport.WriteString(&buf, msg))

	cfg, err := ReadConfig(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "aac", cfg.Audio.Codec)
	assert.Equal(t, int64(128000), cfg.Audio.BitrateBps)
	assert.Equal(t, "libx264", cfg.Video.Codec)
	assert.Equal(t, 320, cfg.Video.Width)
	assert.Equal(t, 240, cfg.Video.Height)
	assert.Equal(t, 60, cfg.Video.GopSize)
	assert.Equal(t, 23, cfg.Video.CRF)
	assert.Equal(t, "veryfast", cfg.Video.Preset)
	assert.Equal(t, "main", cfg.Video.Profile)
	assert.Equal(t, "/tmp/a.mp4", cfg.Format.Dst)
	assert.Equal(t, "mp4", cfg.Format.DstType)
}

func TestReadConfigDefaultsCRFToCBR(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, transport.WriteString(&buf, "video_codec:libx264"))

	cfg, err := ReadConfig(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Video.CRF)
}

func TestWriteProgressAndError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProgress(&buf, transcode.ProgressStatus{
		Status:      transcode.StatusRunning,
		StatusDesc:  "TRANSCODING",
		ProgressPct: 42,
	}))
	raw, err := transport.Read(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "progress_pct:42")
	assert.Contains(t, string(raw), "status_desc:TRANSCODING")

	buf.Reset()
	require.NoError(t, WriteError(&buf, "Video Stream not found"))
	raw, err = transport.Read(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "error:Video Stream not found", string(raw))
}
