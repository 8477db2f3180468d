package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/models"
	"github.com/pressly/goose/v3"
	"io/fs"
	"log/slog"
)

//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var embedMigrations embed.FS

var dirs = map[goose.Dialect]string{
	goose.DialectSQLite3:  "sqlite",
	goose.DialectPostgres: "postgres",
	goose.DialectMySQL:    "mysql",
}

// Up brings the schema to the newest embedded version. A store written by a newer
// build (version above the newest known migration) is refused rather than migrated.
func Up(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	dir, ok := dirs[dialect]
	if !ok {
		return errs.Errorf(errs.KindSchema, "migrations.Up", "no migrations for dialect %q", dialect)
	}

	fsys, err := fs.Sub(embedMigrations, dir)
	if err != nil {
		return errs.E(errs.KindSchema, "migrations.Up", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return errs.E(errs.KindSchema, "migrations.Up", err)
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return errs.E(errs.KindSchema, "migrations.Up", fmt.Errorf("read schema version: %w", err))
	}

	sources := provider.ListSources()
	if len(sources) == 0 {
		return errs.Errorf(errs.KindSchema, "migrations.Up", "no migrations embedded for %s", dir)
	}

	if latest := sources[len(sources)-1].Version; current > latest {
		return errs.Errorf(errs.KindSchema, "migrations.Up", "store schema version %d is newer than supported version %d", current, latest)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errs.E(errs.KindSchema, "migrations.Up", err)
	}

	for _, r := range results {
		slog.Debug("applied migration", slog.String("dialect", dir), slog.Int64("version", r.Source.Version))
	}

	return Verify(ctx, db)
}

// Verify checks that the posts table carries every column the store reads.
func Verify(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "SELECT "+models.PostColumns+" FROM posts WHERE 1 = 0")
	if err != nil {
		return errs.E(errs.KindSchema, "migrations.Verify", err)
	}
	return rows.Close()
}
