package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "paperledger"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	// Pretty logs on a terminal, JSON when piped into a collector.
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Portfolio accounting and scoring engine for trading competitions",
		Version: version,
		Long: `paperledger replays append-only trade ledgers into positions, cash and
equity, marks them to market against a live price feed, and derives risk
metrics and a 0-100 competition score per profile.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to engine.yaml (defaults built in)")

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Compute portfolio state and score for one profile",
		Long:  "One-shot ledger replay, valuation, risk analytics and competition scoring, printed as JSON",
		RunE:  runScore,
	}
	scoreCmd.Flags().String("profile", "", "Profile identifier (required)")
	scoreCmd.Flags().Bool("persist", false, "Write aggregates, snapshot and score back to the store")
	_ = scoreCmd.MarkFlagRequired("profile")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		Long:  "Serves /health, /metrics, portfolio and score endpoints plus the live websocket feed",
		RunE:  runServe,
	}

	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Run a live session for one profile",
		Long:  "Owns the price-refresh and persistence cadences for a profile until interrupted",
		RunE:  runSession,
	}
	sessionCmd.Flags().String("profile", "", "Profile identifier (required)")
	_ = sessionCmd.MarkFlagRequired("profile")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Persist an equity snapshot for one profile if due",
		RunE:  runSnapshot,
	}
	snapshotCmd.Flags().String("profile", "", "Profile identifier (required)")
	_ = snapshotCmd.MarkFlagRequired("profile")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(snapshotCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
