package mediaprobe

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if the ffmpeg CLI (used only to synthesize
// a fixture file here, never by the service itself) is not installed.
func skipIfNoFFmpeg(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed; cannot synthesize a probe fixture")
	}
	return path
}

// synthFixture generates a short H.264+AAC mp4 with ffmpeg's test sources.
func synthFixture(t *testing.T, ffmpeg string) string {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "fixture.mp4")
	cmd := exec.Command(ffmpeg,
		"-y", "-f", "lavfi", "-i", "testsrc=duration=1:size=320x240:rate=30",
		"-f", "lavfi", "-i", "sine=duration=1:sample_rate=48000",
		"-c:v", "libx264", "-c:a", "aac", out,
	)
	require.NoError(t, cmd.Run())
	return out
}

func TestProbeKnownFixture(t *testing.T) {
	ffmpeg := skipIfNoFFmpeg(t)
	path := synthFixture(t, ffmpeg)

	info, err := Probe(path)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, info.VideoIndex, 0)
	assert.Greater(t, info.Width, 0)
	assert.Greater(t, info.Height, 0)
	assert.GreaterOrEqual(t, info.AudioPackets+info.VideoPackets, int64(1))
	assert.True(t, info.DurationSeconds == -1 || info.DurationSeconds > 0)
}

func TestProbeNoVideoStream(t *testing.T) {
	ffmpeg := skipIfNoFFmpeg(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "audio-only.mp4")
	cmd := exec.Command(ffmpeg, "-y", "-f", "lavfi", "-i", "sine=duration=1:sample_rate=48000", "-c:a", "aac", out)
	require.NoError(t, cmd.Run())

	_, err := Probe(out)
	require.Error(t, err)
}

func TestProbeMissingFile(t *testing.T) {
	_, err := Probe(filepath.Join(os.TempDir(), "does-not-exist-transcoded-test.mp4"))
	require.Error(t, err)
}
