package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"chirper/internal/eventlog"
	"chirper/internal/projector"
	"chirper/internal/readstore"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay the log twice and check the read store is deterministic",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventLog, err := openLog()
		if err != nil {
			return err
		}
		defer eventLog.Close()

		first, err := replayFingerprint(cmd.Context(), eventLog)
		if err != nil {
			return err
		}
		second, err := replayFingerprint(cmd.Context(), eventLog)
		if err != nil {
			return err
		}

		if first != second {
			return fmt.Errorf("replay is not deterministic:\n  first:  %s\n  second: %s", first, second)
		}
		fmt.Printf("deterministic, fingerprint %s\n", first)
		return nil
	},
}

func replayFingerprint(ctx context.Context, eventLog eventlog.Log) (string, error) {
	store := readstore.New(readstore.NewMemoryTimelines(cfg.MaxTimeline), cfg.CelebrityThreshold)
	if _, err := projector.Replay(ctx, eventLog, store, cfg.FanoutWorkers, nil); err != nil {
		return "", fmt.Errorf("replay: %w", err)
	}
	return store.Fingerprint(ctx)
}
