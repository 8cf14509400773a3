package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BearBump/TrackDesk/config"
	"github.com/BearBump/TrackDesk/internal/api/web"
	"github.com/BearBump/TrackDesk/internal/auth"
	"github.com/BearBump/TrackDesk/internal/broker/kafka"
	"github.com/BearBump/TrackDesk/internal/cache/rediscache"
	"github.com/BearBump/TrackDesk/internal/identity/kafkabus"
	"github.com/BearBump/TrackDesk/internal/identity/provider"
	"github.com/BearBump/TrackDesk/internal/services/janitor"
	"github.com/BearBump/TrackDesk/internal/services/trackings"
	"github.com/BearBump/TrackDesk/internal/storage/pgidentity"
	"github.com/BearBump/TrackDesk/internal/storage/pgtracking"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type trackWebApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   trackWebOpts
	deps   trackWebDeps

	closers []func()
}

func mustBootstrapTrackWeb() *trackWebApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	td := cfg.TrackDesk
	slog.SetDefault(newLogger(td.LogLevel, td.LogFormat))

	httpAddr := td.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	grpcAddr := td.GRPCAddr
	if grpcAddr == "" {
		grpcAddr = ":50051"
	}
	consumerGroup := td.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "track-web"
	}
	cacheTTL := secondsOr(td.CacheTTLSeconds, 10*time.Minute)
	refreshTTL := secondsOr(td.RefreshTokenTTLSeconds, 30*24*time.Hour)
	idle := secondsOr(td.SessionIdleSeconds, 30*time.Minute)
	loginLimit := td.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	if td.PrivilegedUserID != "" {
		slog.Warn("privileged user id is set; this account is always admin", "user_id", td.PrivilegedUserID)
	}

	app := &trackWebApp{}

	pool := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	app.closers = append(app.closers, pool.Close)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()
	trackStore, err := pgtracking.NewWithPool(initCtx, pool)
	if err != nil {
		panic(err)
	}
	idStore, err := pgidentity.NewWithPool(initCtx, pool)
	if err != nil {
		panic(err)
	}

	rc := rediscache.New(cfg.Redis.Addr())
	limiter := rc.RateLimiter()
	app.closers = append(app.closers, func() { _ = rc.Close() })

	brokers := cfg.Kafka.Brokers()
	producer := kafka.NewProducer(brokers)
	app.closers = append(app.closers, func() { _ = producer.Close() })

	origin := uuid.NewString()
	authTopic := cfg.Kafka.AuthEventsTopic()
	changedTopic := cfg.Kafka.TrackingChangedTopic()
	authBus := kafkabus.New(producer, authTopic, origin)
	// Flush до закрытия producer: closers идут в обратном порядке
	app.closers = append(app.closers, authBus.Flush)

	prov, err := provider.New(idStore, authBus, provider.Config{
		JWTSecret:  td.JWTSecret,
		AccessTTL:  secondsOr(td.AccessTokenTTLSeconds, 15*time.Minute),
		RefreshTTL: refreshTTL,
		BcryptCost: td.BcryptCost,
	})
	if err != nil {
		panic(err)
	}

	svc := trackings.New(trackStore, rc, cacheTTL).WithChanges(producer, changedTopic)

	registry := auth.NewRegistry(func(browserID string) *auth.Gate {
		return auth.NewGate(prov, idStore, auth.NewCacheStorage(rc, browserID, refreshTTL), td.PrivilegedUserID)
	}, idle)
	app.closers = append(app.closers, registry.Close)

	jan := janitor.New(idStore, registry).WithSettings(
		secondsOr(td.JanitorIntervalSeconds, 10*time.Minute),
		secondsOr(td.SessionRetentionSeconds, 24*time.Hour),
	)

	changes := kafka.NewConsumer(brokers, changedTopic, consumerGroup)
	// у каждого инстанса своя группа: auth-события нужны всем
	authEvents := kafka.NewConsumer(brokers, authTopic, consumerGroup+"-"+origin, kafka.FromLatest())
	app.closers = append(app.closers, func() { _ = changes.Close() }, func() { _ = authEvents.Close() })

	handler := web.New(web.Options{
		Trackings: svc,
		Gates:     registry,
		Accounts:  prov,
		Limiter:   limiter,
		Janitor:   jan,
		Checks: map[string]func(context.Context) error{
			"postgres": trackStore.Ping,
			"redis":    rc.Ping,
		},
		PrivilegedID:        td.PrivilegedUserID,
		CookieName:          td.SessionCookieName,
		SecureCookies:       td.SecureCookies,
		LoginLimitPerMinute: loginLimit,
		SwaggerPath:         os.Getenv("swaggerPath"),
	}).Routes()

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = trackWebOpts{grpcAddr: grpcAddr, httpAddr: httpAddr}
	app.deps = trackWebDeps{
		handler: handler,
		consumers: []consumerBinding{
			{name: changedTopic, consumer: changes, handler: svc.HandleChangeMessage(app.ctx)},
			{name: authTopic, consumer: authEvents, handler: authBus.Handle},
		},
		background: []backgroundRunner{jan},
	}
	return app
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgxpool.Pool {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		pool, err := pgxpool.New(context.Background(), connString)
		if err == nil {
			if err = pool.Ping(context.Background()); err == nil {
				return pool
			}
			pool.Close()
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func secondsOr(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

func (a *trackWebApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *trackWebApp) Run() error {
	return runTrackWeb(a.ctx, a.opts, a.deps)
}
