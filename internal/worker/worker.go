// Package worker implements one isolated job's full lifecycle (spec §4.E,
// §4.G): read the input path, probe it, hand MediaInfo to the client, read
// back its Config, run the transcode pipeline, and emit exactly one
// terminal message. Each worker owns exactly one client connection and
// exits after that connection's single job completes or fails.
package worker

import (
	"bufio"
	"io"
	"log/slog"

	"github.com/localmedia/transcoded/internal/errtax"
	"github.com/localmedia/transcoded/internal/mediaprobe"
	"github.com/localmedia/transcoded/internal/session"
	"github.com/localmedia/transcoded/internal/transcode"
)

// Conn is the minimal surface a worker needs from the client connection.
// net.Conn satisfies it; tests use net.Pipe or an in-memory duplex.
type Conn interface {
	io.Reader
	io.Writer
}

// Run drives one client session to completion over conn, logging with log.
// It never returns an error to the caller: every failure is either
// reported to the client (per spec §4.D/§7) or is unrecoverable and only
// logged, since there is nothing left to write to.
func Run(conn Conn, log *slog.Logger) {
	r := bufio.NewReader(conn)

	path, err := session.ReadInput(r)
	if err != nil {
		log.Error("read input failed", "err", err)
		return
	}
	log = log.With("input_file", path)

	info, err := mediaprobe.Probe(path)
	if err != nil {
		log.Error("probe failed", "err", err)
		_ = session.WriteError(conn, errtax.Message(err))
		return
	}

	if err := session.WriteMediaInfo(conn, info); err != nil {
		log.Error("write media info failed", "err", err)
		return
	}

	cfg, err := session.ReadConfig(r)
	if err != nil {
		log.Error("read config failed", "err", err)
		return
	}
	// The probe-derived frame rate is injected here (spec §4.E step 5); the
	// pixel format is always DEFAULT_PIX_FMT, enforced directly by
	// NewVideoStreamTranscoder rather than threaded through Config.
	cfg.Video.Framerate = info.VideoFramerate

	pipe, err := transcode.Open(path, info, cfg.Video, cfg.Audio, cfg.Format)
	if err != nil {
		log.Error("pipeline open failed", "err", err)
		_ = session.WriteProgress(conn, transcode.ProgressStatus{
			Status:     transcode.StatusFailed,
			StatusDesc: "FAILED",
			ErrMsg:     errtax.Message(err),
		})
		return
	}
	defer pipe.Close()

	stats, runErr := pipe.Run(func(p transcode.ProgressStatus) error {
		return session.WriteProgress(conn, p)
	})
	if runErr != nil {
		log.Error("transcode failed", "err", runErr)
		_ = session.WriteProgress(conn, transcode.ProgressStatus{
			Status:     transcode.StatusFailed,
			StatusDesc: "FAILED",
			ErrMsg:     errtax.Message(runErr),
		})
		return
	}

	log.Info("job finished",
		"audio_packets", stats.AudioPackets,
		"video_packets", stats.VideoPackets,
		"elapsed_ms", stats.Elapsed.Milliseconds(),
	)
}
