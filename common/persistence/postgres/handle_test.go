package postgres

import (
	"context"
	"github.com/forbiddencoding/ruddit/common/config"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/forbiddencoding/ruddit/common/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"testing"
)

func TestSuite(t *testing.T) {
	dsn := os.Getenv("RUDDIT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RUDDIT_TEST_POSTGRES_DSN not set")
	}

	persistencetest.Run(t, func(t *testing.T) persistencetest.Store {
		ctx := context.Background()

		h, err := NewHandle(ctx, &config.Persistence{Driver: "postgres", DSN: dsn})
		require.NoError(t, err)
		t.Cleanup(func() { _ = h.Close(ctx) })

		_, err = h.ClearPosts(ctx, &entity.ClearPostsInput{})
		require.NoError(t, err)

		return h
	})
}

func TestNewHandleBadDSN(t *testing.T) {
	_, err := NewHandle(context.Background(), &config.Persistence{Driver: "postgres", DSN: "postgres://%zz"})
	require.Error(t, err)
	assert.Equal(t, errs.KindStorageUnavailable, errs.KindOf(err))
}
