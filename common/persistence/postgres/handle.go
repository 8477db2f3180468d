package postgres

import (
	"context"
	"database/sql"
	"errors"
	"github.com/forbiddencoding/ruddit/common/config"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"sync"
	"sync/atomic"
	"time"
)

type Handle struct {
	db      atomic.Pointer[pgxpool.Pool]
	sqlDB   *sql.DB
	running atomic.Bool
	mu      sync.Mutex
}

func NewHandle(ctx context.Context, config *config.Persistence) (*Handle, error) {
	conf, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, errs.E(errs.KindStorageUnavailable, "postgres.NewHandle", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, errs.E(errs.KindStorageUnavailable, "postgres.NewHandle", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err = pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errs.E(errs.KindStorageUnavailable, "postgres.NewHandle", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	if err = migrations.Up(ctx, sqlDB, goose.DialectPostgres); err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, err
	}

	handle := &Handle{sqlDB: sqlDB}

	handle.db.Store(pool)
	handle.running.Store(true)

	return handle, nil
}

func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running.Load() {
		h.running.Swap(false)
		_ = h.sqlDB.Close()
		db := h.db.Swap(nil)
		if db != nil {
			db.Close()
		}
	}
	return nil
}

func (h *Handle) pool() (*pgxpool.Pool, error) {
	if db := h.db.Load(); db != nil {
		return db, nil
	}

	return nil, errs.E(errs.KindStorageUnavailable, "postgres", errors.New("no usable database connection found"))
}

// classify maps undefined_table / undefined_column to Schema.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "42P01" || pgErr.Code == "42703") {
		return errs.E(errs.KindSchema, op, err)
	}
	return errs.E(errs.KindStorageUnavailable, op, err)
}
