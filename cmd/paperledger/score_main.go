package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// runScore performs a one-shot recomputation for a profile and prints
// the derived state as JSON.
func runScore(cmd *cobra.Command, args []string) error {
	profileID, _ := cmd.Flags().GetString("profile")
	persist, _ := cmd.Flags().GetBool("persist")

	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()

	// Pull fresh prices once so the one-shot view isn't all stale.
	if err := a.feed.Refresh(ctx, nil); err != nil {
		log.Warn().Err(err).Msg("Initial price refresh failed, valuing from entry prices")
	}

	state, err := a.engine.Compute(ctx, profileID)
	if err != nil {
		return fmt.Errorf("compute failed: %w", err)
	}

	// Second pass with the actual held symbols now known.
	if len(state.Symbols()) > 0 {
		if err := a.feed.Refresh(ctx, state.Symbols()); err == nil {
			if fresh, err := a.engine.Compute(ctx, profileID); err == nil {
				state = fresh
			}
		}
	}

	if persist {
		if err := a.engine.PersistAggregates(ctx, state); err != nil {
			return fmt.Errorf("failed to persist aggregates: %w", err)
		}
		if _, err := a.engine.PersistSnapshotIfDue(ctx, state, a.cfg.Session.SnapshotWindow); err != nil {
			return fmt.Errorf("failed to persist snapshot: %w", err)
		}
		if _, err := a.engine.PersistScoreIfDrifted(ctx, state, a.cfg.Session.ScoreDriftThreshold, a.cfg.Session.ScoreStaleAfter); err != nil {
			return fmt.Errorf("failed to persist score: %w", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}
