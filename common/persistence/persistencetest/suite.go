// Package persistencetest holds the behaviour every store backend must share.
package persistencetest

import (
	"context"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type Store interface {
	Close(ctx context.Context) error
	InsertPost(ctx context.Context, in *entity.InsertPostInput) (*entity.InsertPostOutput, error)
	InsertPosts(ctx context.Context, in *entity.InsertPostsInput) (*entity.InsertPostsOutput, error)
	ListPosts(ctx context.Context, in *entity.ListPostsInput) (*entity.ListPostsOutput, error)
	ClearPosts(ctx context.Context, in *entity.ClearPostsInput) (*entity.ClearPostsOutput, error)
}

var base = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// NewPost returns a valid post created n hours after a fixed base time.
func NewPost(id string, n int) *entity.Post {
	return &entity.Post{
		ID:          id,
		Title:       "Post " + id,
		Author:      "author_" + id,
		Subreddit:   "supplychain",
		Score:       10 * n,
		NumComments: n,
		Created:     base.Add(time.Duration(n) * time.Hour),
		Permalink:   fmt.Sprintf("https://www.reddit.com/r/supplychain/comments/%s/post/", id),
		SelfText:    "body of " + id,
	}
}

// Run executes the shared suite. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) Store) {
	t.Run("InsertIsIdempotent", func(t *testing.T) { testInsertIsIdempotent(t, open(t)) })
	t.Run("InsertManyRoundTrip", func(t *testing.T) { testInsertManyRoundTrip(t, open(t)) })
	t.Run("ClearAll", func(t *testing.T) { testClearAll(t, open(t)) })
	t.Run("BestEffortBatch", func(t *testing.T) { testBestEffortBatch(t, open(t)) })
	t.Run("OverlappingBatches", func(t *testing.T) { testOverlappingBatches(t, open(t)) })
	t.Run("ListFilters", func(t *testing.T) { testListFilters(t, open(t)) })
	t.Run("DeterministicOrder", func(t *testing.T) { testDeterministicOrder(t, open(t)) })
	t.Run("CloseIsIdempotent", func(t *testing.T) { testCloseIsIdempotent(t, open(t)) })
}

func readAll(t *testing.T, db Store) []*entity.Post {
	t.Helper()
	out, err := db.ListPosts(context.Background(), &entity.ListPostsInput{})
	require.NoError(t, err)
	return out.Posts
}

func testInsertIsIdempotent(t *testing.T, db Store) {
	ctx := context.Background()
	post := NewPost("abc123", 1)

	first, err := db.InsertPost(ctx, &entity.InsertPostInput{Post: post})
	require.NoError(t, err)
	assert.True(t, first.Inserted)

	changed := *post
	changed.Title = "edited title"

	second, err := db.InsertPost(ctx, &entity.InsertPostInput{Post: &changed})
	require.NoError(t, err)
	assert.False(t, second.Inserted)

	posts := readAll(t, db)
	require.Len(t, posts, 1)
	assert.Equal(t, post.Title, posts[0].Title, "existing row must be left untouched")
}

func testInsertManyRoundTrip(t *testing.T, db Store) {
	ctx := context.Background()
	p1, p2, p3 := NewPost("p1", 1), NewPost("p2", 2), NewPost("p3", 3)
	p3.SelfText = ""

	out, err := db.InsertPosts(ctx, &entity.InsertPostsInput{Posts: []*entity.Post{p1, p2, p3}})
	require.NoError(t, err)
	assert.Equal(t, &entity.InsertPostsOutput{Inserted: 3}, out)

	// newest first
	assert.Equal(t, []*entity.Post{p3, p2, p1}, readAll(t, db))
}

func testClearAll(t *testing.T, db Store) {
	ctx := context.Background()

	_, err := db.InsertPosts(ctx, &entity.InsertPostsInput{Posts: []*entity.Post{NewPost("a", 1), NewPost("b", 2)}})
	require.NoError(t, err)

	out, err := db.ClearPosts(ctx, &entity.ClearPostsInput{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, out.Removed)
	assert.Empty(t, readAll(t, db))

	out, err = db.ClearPosts(ctx, &entity.ClearPostsInput{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, out.Removed)
}

func testBestEffortBatch(t *testing.T, db Store) {
	ctx := context.Background()
	broken := NewPost("", 2)

	out, err := db.InsertPosts(ctx, &entity.InsertPostsInput{Posts: []*entity.Post{NewPost("ok1", 1), broken, NewPost("ok2", 3)}})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
	require.NotNil(t, out)
	assert.Equal(t, &entity.InsertPostsOutput{Inserted: 2, Failed: 1}, out)

	assert.Len(t, readAll(t, db), 2)
}

func testOverlappingBatches(t *testing.T, db Store) {
	ctx := context.Background()

	out, err := db.InsertPosts(ctx, &entity.InsertPostsInput{Posts: []*entity.Post{NewPost("x1", 1), NewPost("x2", 2)}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Inserted)

	out, err = db.InsertPosts(ctx, &entity.InsertPostsInput{Posts: []*entity.Post{NewPost("x2", 2), NewPost("x3", 3)}})
	require.NoError(t, err)
	assert.Equal(t, &entity.InsertPostsOutput{Inserted: 1, Skipped: 1}, out)

	assert.Len(t, readAll(t, db), 3)
}

func testListFilters(t *testing.T, db Store) {
	ctx := context.Background()

	golang := NewPost("g1", 5)
	golang.Subreddit = "golang"
	golang.Title = "Generics in practice"

	rust := NewPost("r1", 6)
	rust.Subreddit = "rust"
	rust.SelfText = "we are hiring a logistics engineer"

	wild := NewPost("w1", 7)
	wild.Title = "100% on_time delivery"

	_, err := db.InsertPosts(ctx, &entity.InsertPostsInput{Posts: []*entity.Post{NewPost("s1", 1), golang, rust, wild}})
	require.NoError(t, err)

	ids := func(in *entity.ListPostsInput) []string {
		out, err := db.ListPosts(ctx, in)
		require.NoError(t, err)
		var got []string
		for _, p := range out.Posts {
			got = append(got, p.ID)
		}
		return got
	}

	assert.Equal(t, []string{"g1"}, ids(&entity.ListPostsInput{Subreddit: "GoLang"}))
	assert.Equal(t, []string{"g1"}, ids(&entity.ListPostsInput{Subreddit: "r/golang"}))
	assert.Equal(t, []string{"r1"}, ids(&entity.ListPostsInput{Keyword: "HIRING"}))
	assert.Equal(t, []string{"g1"}, ids(&entity.ListPostsInput{Keyword: "generics"}))
	assert.Equal(t, []string{"w1"}, ids(&entity.ListPostsInput{Keyword: "100%"}))
	assert.Empty(t, ids(&entity.ListPostsInput{Keyword: "e_i"}))
	assert.Equal(t, []string{"w1", "r1"}, ids(&entity.ListPostsInput{Since: base.Add(6 * time.Hour)}))
	assert.Equal(t, []string{"w1", "r1"}, ids(&entity.ListPostsInput{Limit: 2}))
	assert.Equal(t, []string{"w1", "s1"}, ids(&entity.ListPostsInput{Subreddit: "supplychain"}))
}

func testDeterministicOrder(t *testing.T, db Store) {
	ctx := context.Background()

	var posts []*entity.Post
	for _, id := range []string{"c", "a", "b"} {
		posts = append(posts, NewPost(id, 1))
	}

	_, err := db.InsertPosts(ctx, &entity.InsertPostsInput{Posts: posts})
	require.NoError(t, err)

	for range 3 {
		got := readAll(t, db)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
	}
}

func testCloseIsIdempotent(t *testing.T, db Store) {
	ctx := context.Background()

	require.NoError(t, db.Close(ctx))
	require.NoError(t, db.Close(ctx))

	_, err := db.ListPosts(ctx, &entity.ListPostsInput{})
	require.Error(t, err)
	assert.Equal(t, errs.KindStorageUnavailable, errs.KindOf(err))
}
