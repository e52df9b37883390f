package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-basico/internal/config"
)

// ErrNoDSN is returned when no connection string could be resolved.
var ErrNoDSN = errors.New("postgres DSN not configured")

// Postgres owns the pgx connection pool for the lifetime of the process.
type Postgres struct {
	Pool *pgxpool.Pool

	closeOnce sync.Once
	logger    *zap.Logger
}

// NewPostgres establishes the connection pool and verifies the store answers.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres", zap.Int32("max_conns", poolCfg.MaxConns))
	return &Postgres{Pool: pool, logger: logger}, nil
}

// Close drains and releases pool resources. Safe to call more than once and on nil.
func (p *Postgres) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.closeOnce.Do(func() {
		p.Pool.Close()
		if p.logger != nil {
			p.logger.Info("postgres pool closed")
		}
	})
}

// PoolHandle returns the underlying pgx pool.
func (p *Postgres) PoolHandle() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.Pool
}
