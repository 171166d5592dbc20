package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mixarr/internal/daemon"
	"github.com/jmylchreest/mixarr/internal/ingest"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import a seed track list into the catalog",
	Long: `Import a seed track list into the catalog.

The list is a JSON or YAML document of tracks, each with an artist and
title or a free-text search query; gzip, bzip2, and xz compressed lists
are unpacked automatically. Each entry is downloaded into the audio
cache with a pause between downloads, and entries already cached are
skipped, so re-running an import is safe.

Example list:

  tracks:
    - artist: Daft Punk
      title: Around the World
    - query: boards of canada roygbiv`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("file", "", "seed list file (.json or .yaml, optionally compressed)")
	seedCmd.Flags().Duration("delay", 0, "pause between downloads (overrides config)")
	_ = seedCmd.MarkFlagRequired("file")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	file, _ := cmd.Flags().GetString("file")
	entries, err := ingest.LoadSeedFile(file)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("seed list %s has no entries", file)
	}

	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("import interrupted, finishing current download")
		cancel()
	}()

	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Stop()

	importer := d.SeedImporter()
	if cmd.Flags().Changed("delay") {
		var delay time.Duration
		delay, _ = cmd.Flags().GetDuration("delay")
		importer.WithDelay(delay)
	}

	logger.Info("importing seed list",
		slog.String("file", file),
		slog.Int("entries", len(entries)))

	report, runErr := importer.Run(ctx, entries)

	fmt.Printf("Imported %d, skipped %d, failed %d (of %d entries)\n",
		report.Imported, report.Skipped, report.Failed, len(entries))

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
