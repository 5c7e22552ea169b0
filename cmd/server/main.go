package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/sheet-reservation/internal/account"
	"github.com/iliyamo/sheet-reservation/internal/catalog"
	"github.com/iliyamo/sheet-reservation/internal/config" // Internal config loader
	"github.com/iliyamo/sheet-reservation/internal/database"
	"github.com/iliyamo/sheet-reservation/internal/engine"
	"github.com/iliyamo/sheet-reservation/internal/handler"
	"github.com/iliyamo/sheet-reservation/internal/logger"
	"github.com/iliyamo/sheet-reservation/internal/memstore"
	"github.com/iliyamo/sheet-reservation/internal/middleware"
	"github.com/iliyamo/sheet-reservation/internal/queue"
	"github.com/iliyamo/sheet-reservation/internal/report"
	"github.com/iliyamo/sheet-reservation/internal/router" // Internal router setup
	"github.com/iliyamo/sheet-reservation/internal/service"
	"github.com/iliyamo/sheet-reservation/internal/sqlstore"
)

// store is everything the services need from the persistence layer.
type store interface {
	engine.Store
	catalog.Store
	account.Store
	report.Store
}

func main() {
	cfg := config.Load() // Load environment config
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, db, err := openStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	var opts []engine.Option
	qcfg := config.LoadQueueConfig()
	if qcfg.Enabled {
		pub := service.NewPublisher(qcfg.URL, qcfg.Queue, zl.Named("publisher"))
		defer pub.Close()
		opts = append(opts, engine.WithNotifier(pub))
		if qcfg.Consume {
			c := &queue.Consumer{URL: qcfg.URL, Queue: qcfg.Queue, Path: qcfg.AuditLog, Log: zl.Named("consumer")}
			go runBackground(ctx, "reservation consumer", c, zl)
		}
	}
	eng := engine.New(st, zl.Named("engine"), opts...)

	// counters may lag the ledger after a crash or a manual fix
	if err := eng.RebuildCounters(ctx); err != nil {
		zl.Fatal("rebuild availability counters", zap.Error(err))
	}

	accounts := account.New(st, eng, cfg.BcryptCost, zl.Named("account"))
	if cfg.AdminLogin != "" {
		if err := accounts.EnsureAdministrator(ctx, cfg.AdminNick, cfg.AdminLogin, cfg.AdminPass); err != nil {
			zl.Fatal("seed administrator", zap.Error(err))
		}
	}
	cat := catalog.New(st, eng, zl.Named("catalog"))

	rdb := config.NewRedisClient(zl)
	if rdb != nil {
		defer rdb.Close()
	}
	sessions := handler.Sessions{
		Secret:  cfg.JWTSecret,
		TTLMin:  cfg.AccessTTLMin,
		Revoked: middleware.NewRevocations(rdb, "revoked"),
	}

	var ping func(context.Context) error
	if db != nil {
		ping = db.PingContext
	}
	e := router.New(router.Options{
		JWTSecret:   cfg.JWTSecret,
		Revocations: sessions.Revoked,
		Cache:       middleware.NewRedisCache(cfg.Cache, rdb, zl.Named("cache")),
		RateLimit:   middleware.NewTokenBucket(cfg.RateLimit, rdb, zl.Named("ratelimit")),
		Health:      handler.Health(ping),
		Log:         zl.Named("http"),
	},
		handler.NewUserHandler(accounts, sessions, zl),
		handler.NewEventHandler(eng, zl),
		handler.NewAdminHandler(accounts, cat, eng, st, sessions, zl),
	)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
	zl.Info("stopped")
}

// runner is a long-lived background loop such as the queue consumer.
type runner interface {
	Run(ctx context.Context) error
}

// runBackground runs r until ctx ends and logs why it stopped if that was
// not a shutdown.
func runBackground(ctx context.Context, name string, r runner, zl *zap.Logger) {
	if err := r.Run(ctx); err != nil && ctx.Err() == nil {
		zl.Error(name+" stopped", zap.Error(err))
	}
}

// openStore returns the configured store and, for MySQL, the pool behind it.
func openStore(ctx context.Context, cfg config.Config, zl *zap.Logger) (store, *sql.DB, error) {
	if cfg.StoreDriver == config.DriverMemory {
		zl.Warn("using the in-memory store; nothing survives a restart")
		return memstore.New(memstore.WithLockWait(cfg.LockWait)), nil, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return sqlstore.New(db, cfg.LockWait, zl.Named("sqlstore")), db, nil
}
