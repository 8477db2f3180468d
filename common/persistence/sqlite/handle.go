package sqlite

import (
	"context"
	"errors"
	"github.com/forbiddencoding/ruddit/common/config"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/go-libsql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

func init() {
	sqlx.BindDriver("libsql", sqlx.QUESTION)
}

type Handle struct {
	dbPtr   atomic.Pointer[sqlx.DB]
	running atomic.Bool
	mu      sync.Mutex
}

func NewHandle(ctx context.Context, config *config.Persistence) (*Handle, error) {
	dsn := normalizeDSN(config.DSN)

	if path := localPath(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errs.E(errs.KindStorageUnavailable, "sqlite.NewHandle", err)
		}
	}

	db, err := sqlx.Open("libsql", dsn)
	if err != nil {
		return nil, errs.E(errs.KindStorageUnavailable, "sqlite.NewHandle", err)
	}

	// One process, one connection; the store does not guard against concurrent writers.
	db.SetMaxOpenConns(1)

	var tables int
	if err = db.GetContext(ctx, &tables, "SELECT count(*) FROM sqlite_master"); err != nil {
		_ = db.Close()
		return nil, errs.E(errs.KindStorageUnavailable, "sqlite.NewHandle", err)
	}

	if err = migrations.Up(ctx, db.DB, goose.DialectSQLite3); err != nil {
		_ = db.Close()
		return nil, err
	}

	handle := &Handle{}

	handle.dbPtr.Store(db)
	handle.running.Store(true)

	return handle, nil
}

// normalizeDSN turns a bare filesystem path into a libsql file DSN.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, "://") || dsn == ":memory:" {
		return dsn
	}
	return "file:" + dsn
}

func localPath(dsn string) string {
	path, ok := strings.CutPrefix(dsn, "file:")
	if !ok {
		return ""
	}
	path, _, _ = strings.Cut(path, "?")
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
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

	return nil, errs.E(errs.KindStorageUnavailable, "sqlite", errors.New("no usable database connection found"))
}

// classify maps a driver error to Schema when the table layout is wrong and to
// StorageUnavailable otherwise.
func classify(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column") || strings.Contains(msg, "has no column") {
		return errs.E(errs.KindSchema, op, err)
	}
	return errs.E(errs.KindStorageUnavailable, op, err)
}
