// Package chessbuilder wires the arena components from configuration.
package chessbuilder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/ai"
	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/httpapi"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/notify"
	"github.com/park285/cheese-arena/internal/progress"
	"github.com/park285/cheese-arena/internal/records"
	"github.com/park285/cheese-arena/internal/redisconn"
	"github.com/park285/cheese-arena/internal/render"
	"github.com/park285/cheese-arena/internal/snapshot"
	"github.com/park285/cheese-arena/internal/syncwire"
)

type Deps struct {
	App       *fiber.App
	Registry  *arena.Registry
	Hub       *syncwire.Hub
	Pool      *ai.Pool
	Lobbies   *lobby.Manager
	Snapshots *snapshot.Store
	Progress  *progress.Service
	Records   records.Repository
	Redis     *redis.Client
	DB        *sql.DB
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rdb, err := redisconn.Open(rctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	d.Redis = rdb

	// Stores: postgres when DATABASE_URL is set, in-memory otherwise
	var profiles progress.Store
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		d.DB = db
		profiles = progress.NewPostgresStore(db)
		d.Records = records.NewPostgresRepository(db)
	} else {
		logger.Warn("database_disabled", zap.String("reason", "DATABASE_URL empty; profiles and records kept in memory"))
		profiles = progress.NewMemoryStore()
		d.Records = records.NewMemoryRepository()
	}

	catalog, err := progress.LoadCatalog(cfg.QuestsFile)
	if err != nil {
		d.closeStores()
		return nil, fmt.Errorf("load quests: %w", err)
	}
	d.Progress = progress.NewService(profiles, catalog)
	d.Snapshots = snapshot.NewStore(rdb, cfg.SnapshotTTL)

	hooks := []arena.Hook{
		snapshot.NewMirror(d.Snapshots),
		progress.NewHook(d.Progress),
		records.NewHook(d.Records),
	}
	if cfg.NotifyURL != "" {
		opts := []notify.Option{}
		if cfg.NotifyToken != "" {
			opts = append(opts, notify.WithToken(cfg.NotifyToken))
		}
		hooks = append(hooks, notify.NewHook(notify.NewClient(cfg.NotifyURL, opts...)))
	}

	d.Hub = syncwire.NewHub(0, nil, logger.Named("hub"))
	d.Pool = ai.NewPool(cfg.AIWorkers, cfg.AIQueueSize)
	d.Registry = arena.NewRegistry(d.Pool, d.Hub, hooks, arena.Options{
		Policy:            arena.ParseMatchPolicy(cfg.MatchPolicy),
		DisconnectGrace:   cfg.DisconnectGrace,
		IdleTTL:           cfg.SessionIdleTTL,
		FinishedRetention: cfg.FinishedRetention,
		QueueTTL:          cfg.QueueTTL,
		AITimeout:         cfg.AITimeout,
		HookTimeout:       cfg.HookTimeout,
		Logger:            logger.Named("arena"),
	})
	d.Lobbies = lobby.NewManager(rdb, d.Registry)

	d.App = httpapi.NewApp(httpapi.Deps{
		Registry:  d.Registry,
		Hub:       d.Hub,
		Lobbies:   d.Lobbies,
		Snapshots: d.Snapshots,
		Progress:  d.Progress,
		Records:   d.Records,
		Renderer:  render.NewRenderer(),
		Logger:    logger.Named("http"),
	}, httpapi.Options{
		LongPollTimeout: cfg.LongPollTimeout,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AccessLog:       cfg.AccessLog,
	})
	return d, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	// basic pool settings
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, ddl := range []string{progress.Schema, records.Schema} {
		if _, err := db.ExecContext(pctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

// Close stops the registry and the AI pool, then the stores. The HTTP app
// must be shut down first.
func (d *Deps) Close(timeout time.Duration) error {
	var errs []error
	if d.Registry != nil {
		d.Registry.Close()
	}
	if d.Hub != nil {
		d.Hub.Close()
	}
	if d.Pool != nil {
		if err := d.Pool.Shutdown(timeout); err != nil {
			errs = append(errs, fmt.Errorf("ai pool: %w", err))
		}
	}
	errs = append(errs, d.closeStores())
	return errors.Join(errs...)
}

func (d *Deps) closeStores() error {
	var errs []error
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}
