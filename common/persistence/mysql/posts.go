package mysql

import (
	"context"
	"errors"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/forbiddencoding/ruddit/common/persistence/models"
	"log/slog"
)

const insertPostQuery = `
INSERT IGNORE INTO posts (id, title, author, subreddit, score, num_comments, created_utc, permalink, selftext)
VALUES (:id, :title, :author, :subreddit, :score, :num_comments, :created_utc, :permalink, :selftext);
`

func (h *Handle) InsertPost(ctx context.Context, in *entity.InsertPostInput) (*entity.InsertPostOutput, error) {
	if err := in.Post.Validate(); err != nil {
		return nil, err
	}

	db, err := h.db()
	if err != nil {
		return nil, err
	}

	res, err := db.NamedExecContext(ctx, insertPostQuery, models.FromEntity(in.Post))
	if err != nil {
		return nil, classify("mysql.InsertPost", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, classify("mysql.InsertPost", err)
	}

	return &entity.InsertPostOutput{
		Inserted: n > 0,
	}, nil
}

func (h *Handle) InsertPosts(ctx context.Context, in *entity.InsertPostsInput) (*entity.InsertPostsOutput, error) {
	var (
		out  = &entity.InsertPostsOutput{}
		errs error
	)

	for _, post := range in.Posts {
		res, err := h.InsertPost(ctx, &entity.InsertPostInput{Post: post})
		if err != nil {
			out.Failed++
			slog.Warn("failed to store post", slog.Any("error", err))
			errs = errors.Join(errs, err)
			continue
		}

		if res.Inserted {
			out.Inserted++
		} else {
			out.Skipped++
			slog.Debug("skipped duplicate post", slog.String("id", post.ID))
		}
	}

	if errs != nil {
		return out, fmt.Errorf("failed to store %d of %d posts: %w", out.Failed, len(in.Posts), errs)
	}

	return out, nil
}

const listPostsQuery = `
SELECT ` + models.PostColumns + `
FROM posts
WHERE (:subreddit = '' OR LOWER(subreddit) = LOWER(:subreddit))
  AND (:keyword = '' OR title LIKE :pattern ESCAPE '!' OR selftext LIKE :pattern ESCAPE '!')
  AND created_utc >= :since
ORDER BY created_utc DESC, id ASC
LIMIT :limit;
`

func (h *Handle) ListPosts(ctx context.Context, in *entity.ListPostsInput) (*entity.ListPostsOutput, error) {
	db, err := h.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.NamedQueryContext(ctx, listPostsQuery, models.NewListPostsArgs(in).Map())
	if err != nil {
		return nil, classify("mysql.ListPosts", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	posts := make([]*entity.Post, 0)

	for rows.Next() {
		var m models.Post

		if err = rows.StructScan(&m); err != nil {
			return nil, classify("mysql.ListPosts", err)
		}

		posts = append(posts, m.Entity())
	}

	if err = rows.Err(); err != nil {
		return nil, classify("mysql.ListPosts", err)
	}

	return &entity.ListPostsOutput{
		Posts: posts,
	}, nil
}

func (h *Handle) ClearPosts(ctx context.Context, in *entity.ClearPostsInput) (*entity.ClearPostsOutput, error) {
	db, err := h.db()
	if err != nil {
		return nil, err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM posts")
	if err != nil {
		return nil, classify("mysql.ClearPosts", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return nil, classify("mysql.ClearPosts", err)
	}

	return &entity.ClearPostsOutput{
		Removed: removed,
	}, nil
}
