// Package app wires configuration into the store, cache and notification
// collaborators shared by the coffeehouse binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"coffeehouse/internal/cache"
	"coffeehouse/internal/cart"
	"coffeehouse/internal/config"
	"coffeehouse/internal/db"
	"coffeehouse/internal/live"
	"coffeehouse/internal/notify"
	"coffeehouse/internal/repository"
	"coffeehouse/internal/repository/mongostore"
	"coffeehouse/internal/service"
	"coffeehouse/internal/storage"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverFile     = "file"
)

type Store struct {
	Repo repository.Repository
	// SQL is set only for the postgres driver.
	SQL   *sql.DB
	close func(context.Context) error
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

func OpenStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case DriverPostgres, "":
		database, err := db.NewDB(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("store ready", "driver", DriverPostgres)
		return &Store{
			Repo:  repository.NewOrderRepository(database),
			SQL:   database,
			close: func(context.Context) error { return database.Close() },
		}, nil

	case DriverMongo:
		st, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = st.Close(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		log.Info("store ready", "driver", DriverMongo, "database", cfg.MongoDB)
		return &Store{Repo: st, close: st.Close}, nil

	case DriverFile:
		st, err := storage.New(cfg.DataFile)
		if err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
		log.Info("store ready", "driver", DriverFile, "file", cfg.DataFile)
		return &Store{Repo: st}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

// OpenRedis returns nil when no address is configured.
func OpenRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// SMSEndpoint falls back to this process's own gateway when Vonage
// credentials are present but no external endpoint is set.
func SMSEndpoint(cfg *config.Config) string {
	if cfg.SMSEndpoint != "" {
		return cfg.SMSEndpoint
	}
	if cfg.SMSConfigured() {
		return "http://127.0.0.1" + cfg.Addr() + "/api/send-sms"
	}
	return ""
}

// NewService assembles the order service. rdb may be nil, in which case the
// estimate cache is in-process and carts are unavailable.
func NewService(cfg *config.Config, store *Store, rdb *redis.Client, pub live.Publisher, log *slog.Logger) (*service.OrderService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	deps := service.Deps{
		Repo:     store.Repo,
		SMS:      notify.NewSMSClient(SMSEndpoint(cfg), log),
		Live:     pub,
		Log:      log,
		Location: loc,
	}
	if rdb != nil {
		deps.Cart = cart.NewRedisCart(rdb, cart.DefaultTTL)
		deps.Estimates = cache.NewRedisEstimateCache(rdb, cache.DefaultEstimateTTL)
	} else {
		deps.Estimates = cache.NewMemoryEstimateCache(cache.DefaultEstimateTTL)
	}
	return service.NewOrderService(deps), nil
}
