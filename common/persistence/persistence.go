package persistence

import (
	"context"
	"github.com/forbiddencoding/ruddit/common/config"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/forbiddencoding/ruddit/common/persistence/mysql"
	"github.com/forbiddencoding/ruddit/common/persistence/postgres"
	"github.com/forbiddencoding/ruddit/common/persistence/sqlite"
)

// Persistence owns the lifetime of stored posts. Inserts are idempotent on the post id.
type Persistence interface {
	Close(ctx context.Context) error
	InsertPost(ctx context.Context, in *entity.InsertPostInput) (*entity.InsertPostOutput, error)
	InsertPosts(ctx context.Context, in *entity.InsertPostsInput) (*entity.InsertPostsOutput, error)
	ListPosts(ctx context.Context, in *entity.ListPostsInput) (*entity.ListPostsOutput, error)
	ClearPosts(ctx context.Context, in *entity.ClearPostsInput) (*entity.ClearPostsOutput, error)
}

var (
	_ Persistence = (*sqlite.Handle)(nil)
	_ Persistence = (*postgres.Handle)(nil)
	_ Persistence = (*mysql.Handle)(nil)
)

var ErrUnsupportedPersistenceDriver = errs.Errorf(errs.KindInvalidArgument, "persistence.New", "unsupported persistence driver")

func New(ctx context.Context, config *config.Persistence) (Persistence, error) {
	switch config.Driver {
	case "postgres":
		handle, err := postgres.NewHandle(ctx, config)
		if err != nil {
			return nil, err
		}
		return handle, nil
	case "mysql":
		handle, err := mysql.NewHandle(ctx, config)
		if err != nil {
			return nil, err
		}
		return handle, nil
	case "sqlite", "":
		handle, err := sqlite.NewHandle(ctx, config)
		if err != nil {
			return nil, err
		}
		return handle, nil
	default:
		return nil, ErrUnsupportedPersistenceDriver
	}
}
