package mysql

import (
	"context"
	"errors"
	"github.com/forbiddencoding/ruddit/common/config"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/migrations"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"sync"
	"sync/atomic"
	"time"
)

type Handle struct {
	dbPtr   atomic.Pointer[sqlx.DB]
	running atomic.Bool
	mu      sync.Mutex
}

func NewHandle(ctx context.Context, config *config.Persistence) (*Handle, error) {
	dsn, err := withParseTime(config.DSN)
	if err != nil {
		return nil, errs.E(errs.KindStorageUnavailable, "mysql.NewHandle", err)
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, errs.E(errs.KindStorageUnavailable, "mysql.NewHandle", err)
	}

	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errs.E(errs.KindStorageUnavailable, "mysql.NewHandle", err)
	}

	if err = migrations.Up(ctx, db.DB, goose.DialectMySQL); err != nil {
		_ = db.Close()
		return nil, err
	}

	handle := &Handle{}

	handle.dbPtr.Store(db)
	handle.running.Store(true)

	return handle, nil
}

// withParseTime enables parseTime, which goose needs to read its version table.
func withParseTime(dsn string) (string, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running.Load() {
		h.running.Swap(false)
		db := h.dbPtr.Swap(nil)
		if db != nil {
			return db.Close()
		}
	}
	return nil
}

func (h *Handle) db() (*sqlx.DB, error) {
	if db := h.dbPtr.Load(); db != nil {
		return db, nil
	}

	return nil, errs.E(errs.KindStorageUnavailable, "mysql", errors.New("no usable database connection found"))
}

// classify maps ER_NO_SUCH_TABLE and ER_BAD_FIELD_ERROR to Schema.
func classify(op string, err error) error {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == 1146 || myErr.Number == 1054) {
		return errs.E(errs.KindSchema, op, err)
	}
	return errs.E(errs.KindStorageUnavailable, op, err)
}
