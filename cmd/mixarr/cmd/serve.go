package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/mixarr/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mixarr session daemon",
	Long: `Start the session daemon.

The daemon opens a listening session, plans segments ahead of playback,
and keeps the segment queue filled until it is stopped. With the file
sink enabled it also delivers segments into the playout directory at
listener speed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("database", "", "database DSN (overrides config)")
	serveCmd.Flags().String("data-dir", "", "storage base directory (overrides config)")
	serveCmd.Flags().Bool("file-sink", false, "deliver segments into the playout directory")
	serveCmd.Flags().String("session-mode", "", "session mode (continuous, one_shot)")
	serveCmd.Flags().Int("max-segments", 0, "stop after this many segments in one_shot mode")
	serveCmd.Flags().String("context-file", "", "listener context file (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// CLI flags override config/env only when explicitly set.
	flags := cmd.Flags()
	overrideString(flags, "database", &cfg.Database.DSN)
	overrideString(flags, "data-dir", &cfg.Storage.BaseDir)
	overrideString(flags, "session-mode", &cfg.Scheduler.SessionMode)
	overrideString(flags, "context-file", &cfg.User.ContextFile)
	if flags.Changed("file-sink") {
		cfg.Transport.FileSink, _ = flags.GetBool("file-sink")
	}
	if flags.Changed("max-segments") {
		cfg.Scheduler.MaxSegments, _ = flags.GetInt("max-segments")
	}

	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	if err := d.Start(ctx); err != nil {
		d.Stop()
		return err
	}

	<-ctx.Done()
	d.Stop()
	return nil
}

// overrideString copies a string flag into dst only when the user set it,
// preserving the flag > env > config > default priority.
func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if flags.Changed(name) {
		*dst, _ = flags.GetString(name)
	}
}
