package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"libris/internal/catalog"
	cataloghandler "libris/internal/catalog/handler"
	catalogservice "libris/internal/catalog/service"
	catalogstore "libris/internal/catalog/store"
	"libris/internal/identity"
	identitystore "libris/internal/identity/store"
	lendinghandler "libris/internal/lending/handler"
	lendingmetrics "libris/internal/lending/metrics"
	lendingservice "libris/internal/lending/service"
	lendingstore "libris/internal/lending/store"
	"libris/internal/platform/config"
	"libris/internal/platform/db"
	"libris/internal/platform/httpserver"
	"libris/internal/platform/logger"
	platformredis "libris/internal/platform/redis"
	httptransport "libris/internal/transport/http"
	"libris/pkg/platform/audit"
	auditmemory "libris/pkg/platform/audit/store/memory"
	auditpostgres "libris/pkg/platform/audit/store/postgres"
	"libris/pkg/platform/audit/publisher"
	"libris/pkg/platform/audit/relay"
)

// main wires the dependency graph and owns the process lifecycle.
// Business rules live in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when configured, in-memory otherwise.
	var (
		pool       *sql.DB
		books      catalog.BookStore
		loans      lendingstore.LoanStore
		users      identity.UserStore
		auditStore audit.Store
	)
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		books = catalogstore.NewPostgresStore(pool)
		loans = lendingstore.NewPostgresStore(pool)
		users = identitystore.NewPostgresStore(pool)
		auditStore = auditpostgres.New(pool)
		log.Info("using postgres stores")
	} else {
		books = catalogstore.NewInMemoryStore()
		loans = lendingstore.NewInMemoryStore()
		users = identitystore.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("LIBRIS_DATABASE_URL not set, using in-memory stores")
	}

	// Synchronous publishing keeps the outbox write inside the lending
	// transaction.
	auditPub := publisher.NewPublisher(auditStore, publisher.WithLogger(log))
	defer auditPub.Close()

	var roleCache identity.RoleCache
	if cfg.RedisURL != "" {
		client, err := platformredis.Open(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()
		roleCache = identity.NewRedisRoleCache(client)
		log.Info("role cache enabled")
	}

	resolver := identity.NewResolver(users, roleCache, cfg.RoleCacheTTL, log)
	tokens := identity.NewTokenService([]byte(cfg.JWTSigningKey), cfg.JWTIssuer, cfg.AccessTokenTTL)

	var lendingTx lendingservice.LendingTx
	if pool != nil {
		lendingTx = lendingservice.NewPostgresTx(pool)
	} else {
		lendingTx = lendingservice.NewShardedTx()
	}

	lendSvc := lendingservice.New(books, loans, resolver, lendingTx, auditPub, log,
		lendingservice.WithLoanPeriod(cfg.LoanPeriod),
		lendingservice.WithLoanQuota(cfg.LoanQuota),
		lendingservice.WithMetrics(lendingmetrics.New()),
	)
	catSvc := catalogservice.New(books, loans, resolver, auditPub, log)

	router := httptransport.NewRouter(tokens,
		lendinghandler.New(lendSvc, log),
		cataloghandler.New(catSvc, log),
		log,
	)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	if pool != nil && len(cfg.KafkaBrokers) > 0 {
		auditRelay, err := relay.New(pool, cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
		if err != nil {
			log.Error("audit relay setup failed", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			err := auditRelay.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info("audit relay started", "topic", cfg.KafkaAuditTopic)
	}

	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
