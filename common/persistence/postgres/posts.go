package postgres

import (
	"context"
	"errors"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/forbiddencoding/ruddit/common/persistence/models"
	"github.com/jackc/pgx/v5"
	"log/slog"
)

const insertPostQuery = `
INSERT INTO posts (id, title, author, subreddit, score, num_comments, created_utc, permalink, selftext)
VALUES (@id, @title, @author, @subreddit, @score, @num_comments, @created_utc, @permalink, @selftext)
ON CONFLICT (id) DO NOTHING;
`

func (h *Handle) InsertPost(ctx context.Context, in *entity.InsertPostInput) (*entity.InsertPostOutput, error) {
	if err := in.Post.Validate(); err != nil {
		return nil, err
	}

	db, err := h.pool()
	if err != nil {
		return nil, err
	}

	m := models.FromEntity(in.Post)

	tag, err := db.Exec(ctx, insertPostQuery, pgx.NamedArgs{
		"id":           m.ID,
		"title":        m.Title,
		"author":       m.Author,
		"subreddit":    m.Subreddit,
		"score":        m.Score,
		"num_comments": m.NumComments,
		"created_utc":  m.CreatedUTC,
		"permalink":    m.Permalink,
		"selftext":     m.SelfText,
	})
	if err != nil {
		return nil, classify("postgres.InsertPost", err)
	}

	return &entity.InsertPostOutput{
		Inserted: tag.RowsAffected() > 0,
	}, nil
}

// InsertPosts inserts each post on its own; a failing row does not undo the rows before it.
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
WHERE (@subreddit::text = '' OR lower(subreddit) = lower(@subreddit::text))
  AND (@keyword::text = '' OR title ILIKE @pattern ESCAPE '!' OR selftext ILIKE @pattern ESCAPE '!')
  AND created_utc >= @since
ORDER BY created_utc DESC, id ASC
LIMIT @limit;
`

func (h *Handle) ListPosts(ctx context.Context, in *entity.ListPostsInput) (*entity.ListPostsOutput, error) {
	db, err := h.pool()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, listPostsQuery, pgx.NamedArgs(models.NewListPostsArgs(in).Map()))
	if err != nil {
		return nil, classify("postgres.ListPosts", err)
	}
	defer rows.Close()

	dbModels, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[models.Post])
	if err != nil {
		return nil, classify("postgres.ListPosts", err)
	}

	posts := make([]*entity.Post, 0, len(dbModels))
	for _, m := range dbModels {
		posts = append(posts, m.Entity())
	}

	return &entity.ListPostsOutput{
		Posts: posts,
	}, nil
}

func (h *Handle) ClearPosts(ctx context.Context, in *entity.ClearPostsInput) (*entity.ClearPostsOutput, error) {
	db, err := h.pool()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, classify("postgres.ClearPosts", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, "DELETE FROM posts")
	if err != nil {
		return nil, classify("postgres.ClearPosts", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, classify("postgres.ClearPosts", err)
	}

	return &entity.ClearPostsOutput{
		Removed: tag.RowsAffected(),
	}, nil
}
