package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/BearBump/TrackDesk/config"
	"github.com/BearBump/TrackDesk/internal/auth"
	"github.com/BearBump/TrackDesk/internal/broker/kafka"
	"github.com/BearBump/TrackDesk/internal/identity/kafkabus"
	"github.com/BearBump/TrackDesk/internal/identity/provider"
	"github.com/BearBump/TrackDesk/internal/services/trackings"
	"github.com/BearBump/TrackDesk/internal/storage/pgidentity"
	"github.com/BearBump/TrackDesk/internal/storage/pgtracking"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type trackAdminApp struct {
	cli     *cli
	closers []func()
	closed  bool
}

func bootstrapTrackAdmin() (*trackAdminApp, error) {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		return nil, errors.New("configPath env var is required")
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	td := cfg.TrackDesk
	lvl := slog.LevelWarn
	_ = lvl.UnmarshalText([]byte(td.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	app := &trackAdminApp{}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.ConnString())
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}
	app.closers = append(app.closers, pool.Close)

	trackStore, err := pgtracking.NewWithPool(ctx, pool)
	if err != nil {
		app.Close()
		return nil, err
	}
	idStore, err := pgidentity.NewWithPool(ctx, pool)
	if err != nil {
		app.Close()
		return nil, err
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers())
	app.closers = append(app.closers, func() { _ = producer.Close() })
	authBus := kafkabus.New(producer, cfg.Kafka.AuthEventsTopic(), "track-admin-"+uuid.NewString())
	app.closers = append(app.closers, authBus.Flush)

	refreshTTL := time.Duration(td.RefreshTokenTTLSeconds) * time.Second
	prov, err := provider.New(idStore, authBus, provider.Config{
		JWTSecret:  td.JWTSecret,
		AccessTTL:  time.Duration(td.AccessTokenTTLSeconds) * time.Second,
		RefreshTTL: refreshTTL,
		BcryptCost: td.BcryptCost,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	tokenPath, err := auth.DefaultFilePath()
	if err != nil {
		app.Close()
		return nil, err
	}

	// без Redis: кэш track-web сбрасывается через tracking.changed
	svc := trackings.New(trackStore, nil, 0).WithChanges(producer, cfg.Kafka.TrackingChangedTopic())

	app.cli = &cli{
		provider:     prov,
		users:        idStore,
		profiles:     idStore,
		events:       authBus,
		trackings:    svc,
		tokens:       auth.FileStorage{Path: tokenPath},
		privilegedID: td.PrivilegedUserID,
		out:          os.Stdout,
		in:           os.Stdin,
	}
	return app, nil
}

func (a *trackAdminApp) Close() {
	if a.closed {
		return
	}
	a.closed = true
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
