package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chirper/internal/queue"
	"chirper/internal/redis"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the event relay stream, one line per event",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is not set; the relay stream lives in redis")
		}
		client, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := client.Ping(ctx); err != nil {
			return err
		}

		fmt.Printf("tailing %s (ctrl-c to stop)\n", queue.StreamEvents)
		err = queue.NewTailer(client.Client).Tail(ctx, func(env queue.Envelope) error {
			fmt.Printf("%s  %-15s v%-3d %s  %s\n",
				env.OccurredAt.Format(time.RFC3339),
				env.Kind, env.Version, env.AggregateID, env.Payload)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
