package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chirper/internal/projector"
	"chirper/internal/readstore"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild a read store from the event log and report what it holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventLog, err := openLog()
		if err != nil {
			return err
		}
		defer eventLog.Close()

		store := readstore.New(readstore.NewMemoryTimelines(cfg.MaxTimeline), cfg.CelebrityThreshold)

		start := time.Now()
		stats, err := projector.Replay(cmd.Context(), eventLog, store, cfg.FanoutWorkers, nil)
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}

		fmt.Printf("replayed in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  profiles: %d\n", stats.Profiles)
		fmt.Printf("  posts:    %d\n", stats.Posts)
		fmt.Printf("  edges:    %d\n", stats.Edges)
		return nil
	},
}
