package persistence

import (
	"context"
	"github.com/forbiddencoding/ruddit/common/config"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
)

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), &config.Persistence{Driver: "oracle", DSN: "x"})
	require.ErrorIs(t, err, ErrUnsupportedPersistenceDriver)
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
}

func TestNewSQLite(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "ruddit.db")

	db, err := New(ctx, &config.Persistence{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })

	out, err := db.ListPosts(ctx, &entity.ListPostsInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Posts)
}
