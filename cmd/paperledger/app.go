package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantclub/paperledger/internal/config"
	"github.com/quantclub/paperledger/internal/engine"
	"github.com/quantclub/paperledger/internal/metrics"
	"github.com/quantclub/paperledger/internal/prices"
	"github.com/quantclub/paperledger/internal/session"
	"github.com/quantclub/paperledger/internal/store"
	pgstore "github.com/quantclub/paperledger/internal/store/postgres"
)

// app bundles the wired collaborators every subcommand needs.
type app struct {
	cfg        config.Config
	db         *sqlx.DB
	ledger     store.TradeLedger
	profiles   store.ProfileRepo
	snapshots  store.SnapshotRepo
	feedClient *prices.Client
	feed       *prices.Feed
	engine     *engine.Engine
	sessions   *session.Manager
}

// buildApp loads configuration and wires the store, feed, engine and
// session manager.
func buildApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := pgstore.Connect(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ledgerRepo := pgstore.NewTradeLedger(db, cfg.Database.QueryTimeout)
	profileRepo := pgstore.NewProfileRepo(db, cfg.Database.QueryTimeout)
	snapshotRepo := pgstore.NewSnapshotRepo(db, cfg.Database.QueryTimeout)

	var cache prices.Cache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		cache = prices.NewRedisCache(client, "")
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using shared Redis quote cache")
	} else {
		cache = prices.NewMemoryCache()
	}

	feedClient := prices.NewClient(cfg.Feed)
	feed := prices.NewFeed(feedClient, cache, cfg.Redis.TTL)

	eng := engine.New(ledgerRepo, profileRepo, snapshotRepo, feed, cfg.Risk, metrics.Default())

	sessions := session.NewManager(func(profileID string) (*session.Session, error) {
		s := session.New(profileID, eng, feed, cfg.Session, metrics.Default())
		if err := s.Start(); err != nil {
			return nil, err
		}
		return s, nil
	})

	return &app{
		cfg:        cfg,
		db:         db,
		ledger:     ledgerRepo,
		profiles:   profileRepo,
		snapshots:  snapshotRepo,
		feedClient: feedClient,
		feed:       feed,
		engine:     eng,
		sessions:   sessions,
	}, nil
}

// healthProbe reports component availability for the /health endpoint.
func (a *app) healthProbe(ctx context.Context) map[string]string {
	components := map[string]string{
		"database":   "ok",
		"price_feed": "ok",
	}

	if err := a.db.PingContext(ctx); err != nil {
		components["database"] = err.Error()
	}
	if state := a.feedClient.BreakerState(); state != "closed" {
		components["price_feed"] = fmt.Sprintf("breaker %s", state)
	}

	return components
}

func (a *app) close() {
	a.sessions.CloseAll()
	if a.db != nil {
		a.db.Close()
	}
}
