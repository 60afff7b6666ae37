// Package cmd implements the CLI surface for transcoded, mirroring the
// teacher's cmd/tvarr-ffmpegd/cmd package: a cobra root command whose
// RunE starts the daemon directly, since spec §6.5 names only two process
// behaviors ("--version" and "run the supervisor") and there is no
// second subcommand to disambiguate with a "serve" verb.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localmedia/transcoded/internal/applog"
	"github.com/localmedia/transcoded/internal/config"
	"github.com/localmedia/transcoded/internal/supervisor"
	"github.com/localmedia/transcoded/internal/version"
)

var cfgViper = config.New()

var rootCmd = &cobra.Command{
	Use:     "transcoded",
	Short:   "Local media transcoding daemon",
	Version: version.Short(),
	Long: `transcoded accepts connections on a local (AF_UNIX) stream
endpoint, probes a client-supplied input file, reports its media
properties, transcodes audio and video to the client's requested output,
and streams progress back until the job finishes or fails.

Configuration is via environment variable:
  UNIX_SOCKET  - path to the listen socket (default "unix.socket")`,
	RunE:          runSupervisor,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

func runSupervisor(cmd *cobra.Command, _ []string) error {
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfgViper.Set("logging.level", lvl)
	}
	if fmtStr, _ := cmd.Flags().GetString("log-format"); fmtStr != "" {
		cfgViper.Set("logging.format", fmtStr)
	}

	cfg, err := config.Load(cfgViper)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := applog.New(applog.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.Info("transcoded starting",
		slog.String("version", version.String()),
		slog.String("socket", cfg.Server.SocketPath),
	)

	sup := supervisor.New(cfg.Server.SocketPath, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		if err := sup.Shutdown(); err != nil {
			logger.Warn("shutdown close failed", slog.String("err", err.Error()))
		}
	}()

	if err := sup.Run(); err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	logger.Info("transcoded shut down")
	return nil
}
