package mysql

import (
	"context"
	"github.com/forbiddencoding/ruddit/common/config"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/forbiddencoding/ruddit/common/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"testing"
)

func TestSuite(t *testing.T) {
	dsn := os.Getenv("RUDDIT_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("RUDDIT_TEST_MYSQL_DSN not set")
	}

	persistencetest.Run(t, func(t *testing.T) persistencetest.Store {
		ctx := context.Background()

		h, err := NewHandle(ctx, &config.Persistence{Driver: "mysql", DSN: dsn})
		require.NoError(t, err)
		t.Cleanup(func() { _ = h.Close(ctx) })

		_, err = h.ClearPosts(ctx, &entity.ClearPostsInput{})
		require.NoError(t, err)

		return h
	})
}

func TestWithParseTime(t *testing.T) {
	dsn, err := withParseTime("ruddit:secret@tcp(localhost:3306)/ruddit")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	_, err = withParseTime("not a dsn")
	require.Error(t, err)
}
