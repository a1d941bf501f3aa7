package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"gatehouse/internal/auth/guard"
	authmetrics "gatehouse/internal/auth/metrics"
	authservice "gatehouse/internal/auth/service"
	"gatehouse/internal/auth/store"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/health"
	"gatehouse/internal/platform/httpserver"
	"gatehouse/internal/platform/logger"
	platformmetrics "gatehouse/internal/platform/metrics"
	ratelimitconfig "gatehouse/internal/ratelimit/config"
	ratelimitmetrics "gatehouse/internal/ratelimit/metrics"
	ratelimitservice "gatehouse/internal/ratelimit/service"
	"gatehouse/internal/ratelimit/store/bucket"
	"gatehouse/internal/ratelimit/workers/cleanup"
	"gatehouse/internal/session"
	sessionmetrics "gatehouse/internal/session/metrics"
	httptransport "gatehouse/internal/transport/http"
	"gatehouse/pkg/secrets"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file; environment variables override it")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	log := logger.New()
	log.Info("starting gatehouse",
		"env", cfg.Env,
		"addr", cfg.Addr,
	)

	users, err := newUserStore(cfg)
	if err != nil {
		return err
	}

	authMetrics := authmetrics.New()

	g, err := guard.New(users,
		guard.WithLogger(log),
		guard.WithMetrics(authMetrics),
	)
	if err != nil {
		return err
	}

	auth, err := authservice.NewService(users, g, secrets.NewBcryptHasher(0),
		authservice.WithLogger(log),
		authservice.WithMetrics(authMetrics),
		authservice.WithStoreTimeout(cfg.Store.Timeout),
	)
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(cfg.Session.SigningSecret, users,
		session.WithLogger(log),
		session.WithMetrics(sessionmetrics.New()),
		session.WithLifetime(cfg.Session.Lifetime),
		session.WithRefreshAfter(cfg.Session.RefreshAfter),
	)
	if err != nil {
		return err
	}

	buckets := bucket.New()
	rlMetrics := ratelimitmetrics.New()
	healthHandler := health.New(cfg.Env)
	healthHandler.RegisterCheck("user_store", users.Ping)

	rlConfig := ratelimitconfig.Default()
	limiter, err := ratelimitservice.New(buckets,
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(rlMetrics),
		ratelimitservice.WithConfig(rlConfig),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Auth:           httptransport.NewAuthHandler(auth, sessions, g, limiter, log),
		Accounts:       httptransport.NewAccountHandler(users),
		Health:         healthHandler,
		Metrics:        platformmetrics.New(),
		LimiterMetrics: rlMetrics,
		Sessions:       sessions,
		Limiter:        limiter,
		Global:         rate.NewLimiter(rate.Limit(rlConfig.GlobalRPS), rlConfig.GlobalBurst),
		Logger:         log,
		Production:     cfg.IsProduction(),
	})

	sweeper := cleanup.New(buckets,
		cleanup.WithLogger(log),
		cleanup.WithMetrics(rlMetrics),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return sweeper.Start(gctx)
	})
	group.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		return httpserver.Run(gctx, httpserver.New(cfg.Addr, router), shutdownTimeout)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newUserStore selects the user store backend from the DSN. Only the
// in-memory backend ships today; the DSN keeps the seam for a real database
// without touching the wiring.
func newUserStore(cfg *config.Config) (*store.InMemoryUserStore, error) {
	if !strings.HasPrefix(cfg.Store.DSN, "memory://") {
		return nil, fmt.Errorf("unsupported store dsn %q", cfg.Store.DSN)
	}
	return store.NewInMemoryUserStore(), nil
}
