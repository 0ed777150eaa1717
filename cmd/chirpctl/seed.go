package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chirper/internal/command"
	"chirper/internal/projector"
	"chirper/internal/readstore"
	"chirper/internal/seed"
)

var (
	seedUsers   int
	seedPosts   int
	seedFollows int
	seedRNG     int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the log with fake users, posts and follows",
	Long: `Seed drives the real command path (register, follow, post), so the
generated data obeys every invariant the server enforces and lands in
the durable event log. The follow graph is skewed so one account
crosses the celebrity threshold when the counts allow it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventLog, err := openLog()
		if err != nil {
			return err
		}
		defer eventLog.Close()

		// Replay first so username-uniqueness checks see prior runs.
		store := readstore.New(readstore.NewMemoryTimelines(cfg.MaxTimeline), cfg.CelebrityThreshold)
		if _, err := projector.Replay(cmd.Context(), eventLog, store, cfg.FanoutWorkers, nil); err != nil {
			return fmt.Errorf("replay before seed: %w", err)
		}

		pipeline := projector.NewPipeline(projector.New(store, cfg.FanoutWorkers, nil))
		pipeline.Start()
		defer pipeline.Stop()

		bus := command.NewBus(eventLog, store, pipeline)
		summary, err := seed.NewSeeder(bus, seedRNG).Run(cmd.Context(), seedUsers, seedPosts, seedFollows)
		if err != nil {
			return err
		}
		fmt.Printf("seeded %d users, %d posts, %d follows\n", summary.Users, summary.Posts, summary.Follows)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedUsers, "users", 25, "Users to register")
	seedCmd.Flags().IntVar(&seedPosts, "posts", 200, "Posts to publish")
	seedCmd.Flags().IntVar(&seedFollows, "follows-per-user", 5, "Random follows per user")
	seedCmd.Flags().Int64Var(&seedRNG, "seed", 1, "RNG seed (same seed, same data)")
}
