package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantclub/paperledger/internal/engine"
)

// runSession runs the refresh/persist cadences for one profile until
// interrupted, then tears the session down.
func runSession(cmd *cobra.Command, args []string) error {
	profileID, _ := cmd.Flags().GetString("profile")

	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := a.sessions.Acquire(profileID)
	if err != nil {
		return err
	}

	sess.Subscribe(func(state *engine.State) {
		log.Info().
			Float64("equity", state.Summary.TotalEquity).
			Float64("pnl", state.Summary.TotalPnL).
			Int("score", state.Score.TotalScore).
			Int("stale", state.Summary.StaleCount).
			Msg("Portfolio updated")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info().Str("profile", profileID).Msg("Shutting down session")
	a.sessions.Release(profileID)
	return nil
}
