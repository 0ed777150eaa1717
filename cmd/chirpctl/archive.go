package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chirper/internal/archive"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Upload a gzipped snapshot of the event log to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventLog, err := openLog()
		if err != nil {
			return err
		}
		defer eventLog.Close()

		client, err := archive.NewR2Client(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		key, count, err := archive.New(eventLog, client, cfg.R2BucketName).Snapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		fmt.Printf("uploaded %s (%d events) to %s\n", key, count, cfg.R2BucketName)
		if cfg.R2PublicURL != "" {
			fmt.Printf("public URL: %s\n", archive.PublicURL(cfg.R2PublicURL, key))
		}
		return nil
	},
}
