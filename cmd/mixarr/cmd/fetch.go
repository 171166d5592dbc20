package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mixarr/internal/daemon"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <query> [artist] [title]",
	Short: "Download one track into the audio cache",
	Long: `Download one track into the audio cache.

The query is resolved against the audio source; when artist and title
are given they pin the cache filename and catalog row, otherwise the
source's own metadata names the track. The track is recorded in the
catalog and becomes eligible for selection immediately.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	query := args[0]
	var artist, title string
	if len(args) > 1 {
		artist = args[1]
	}
	if len(args) > 2 {
		title = args[2]
	}

	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Stop()

	track, err := d.Cache().Fetch(ctx, query, artist, title)
	if err != nil {
		return err
	}

	path := ""
	if track.LocalPath != nil {
		path = *track.LocalPath
	}
	fmt.Printf("Cached %s (%s)\n", track.DisplayName(), path)
	return nil
}
