package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// runSnapshot recomputes state for a profile and persists an equity
// snapshot if the sampling window allows one.
func runSnapshot(cmd *cobra.Command, args []string) error {
	profileID, _ := cmd.Flags().GetString("profile")

	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()

	state, err := a.engine.Compute(ctx, profileID)
	if err != nil {
		return fmt.Errorf("compute failed: %w", err)
	}

	if len(state.Symbols()) > 0 {
		if err := a.feed.Refresh(ctx, state.Symbols()); err == nil {
			if fresh, err := a.engine.Compute(ctx, profileID); err == nil {
				state = fresh
			}
		}
	}

	written, err := a.engine.PersistSnapshotIfDue(ctx, state, a.cfg.Session.SnapshotWindow)
	if err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	if written {
		fmt.Printf("Snapshot written: equity %.2f, cash %.2f\n", state.Summary.TotalEquity, state.Summary.CashBalance)
	} else {
		fmt.Println("Snapshot skipped: one already exists in the current sampling window")
	}

	log.Info().Str("profile", profileID).Bool("written", written).Msg("Snapshot command completed")
	return nil
}
