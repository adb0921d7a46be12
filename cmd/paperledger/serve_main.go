package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantclub/paperledger/internal/httpapi"
)

// runServe starts the dashboard API server and blocks until SIGINT.
func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	server := httpapi.NewServer(a.cfg.HTTP, a.sessions, a.profiles, a.healthProbe)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Int("port", a.cfg.HTTP.Port).Msg("Starting dashboard API")
	return server.Start(ctx)
}
