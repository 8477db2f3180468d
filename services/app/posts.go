package app

import (
	"context"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/export"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/forbiddencoding/ruddit/common/reddit"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
)

const fileTimeLayout = "20060102-150405"

type (
	FetchInput struct {
		Subreddit string
		Relevance string
	}

	SearchInput struct {
		Query     string
		Relevance string
	}

	// StoreOutput reports what happened to the posts a fetch or search returned.
	StoreOutput struct {
		Fetched  int `json:"fetched"`
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
		Failed   int `json:"failed"`
	}

	ExportInput struct {
		Format string
		Dir    string
	}

	ExportOutput struct {
		Paths []string `json:"paths"`
		Rows  int      `json:"rows"`
	}

	ClearOutput struct {
		Removed int64 `json:"removed"`
	}
)

func (o *StoreOutput) String() string {
	s := fmt.Sprintf("fetched %d, inserted %d, skipped %d", o.Fetched, o.Inserted, o.Skipped)
	if o.Failed > 0 {
		s += fmt.Sprintf(", failed %d", o.Failed)
	}
	return s
}

// Fetch pulls one listing page and stores it. Subreddit and relevance fall back to config.
func (a *App) Fetch(ctx context.Context, in *FetchInput) (*StoreOutput, error) {
	const op = "app.Fetch"

	subreddit := strings.TrimSpace(in.Subreddit)
	if subreddit == "" {
		subreddit = a.config.APIKeys.Subreddit
	}

	relevance := strings.ToLower(strings.TrimSpace(in.Relevance))
	if relevance == "" {
		relevance = a.config.APIKeys.Relevance
	}
	if !slices.Contains(reddit.ListingRelevances, relevance) {
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "unknown relevance %q (want one of %s)", relevance, strings.Join(reddit.ListingRelevances, ", "))
	}

	client, err := a.fetcher(ctx, op)
	if err != nil {
		return nil, err
	}

	slog.Info("fetching listing", slog.String("subreddit", subreddit), slog.String("relevance", relevance))

	res, err := client.GetListing(ctx, &reddit.GetListingInput{Subreddit: subreddit, Relevance: relevance})
	if err != nil {
		return nil, err
	}

	return a.store(ctx, res.Posts)
}

// Search runs a search query and stores the results. Relevance falls back to the configured
// value when search accepts it, and to "hot" otherwise.
func (a *App) Search(ctx context.Context, in *SearchInput) (*StoreOutput, error) {
	const op = "app.Search"

	relevance := strings.ToLower(strings.TrimSpace(in.Relevance))
	if relevance == "" {
		relevance = "hot"
		if slices.Contains(reddit.SearchRelevances, a.config.APIKeys.Relevance) {
			relevance = a.config.APIKeys.Relevance
		}
	}
	if !slices.Contains(reddit.SearchRelevances, relevance) {
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "unknown relevance %q (want one of %s)", relevance, strings.Join(reddit.SearchRelevances, ", "))
	}

	if strings.TrimSpace(in.Query) == "" {
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "search query must not be empty")
	}

	client, err := a.fetcher(ctx, op)
	if err != nil {
		return nil, err
	}

	slog.Info("searching", slog.String("query", in.Query), slog.String("relevance", relevance))

	res, err := client.Search(ctx, &reddit.SearchInput{Query: in.Query, Relevance: relevance})
	if err != nil {
		return nil, err
	}

	return a.store(ctx, res.Posts)
}

// store persists posts best-effort. The output is returned even when some rows failed.
func (a *App) store(ctx context.Context, posts []*entity.Post) (*StoreOutput, error) {
	res, err := a.persistence.InsertPosts(ctx, &entity.InsertPostsInput{Posts: posts})

	out := &StoreOutput{Fetched: len(posts)}
	if res != nil {
		out.Inserted = res.Inserted
		out.Skipped = res.Skipped
		out.Failed = res.Failed
	}

	slog.Info("stored posts",
		slog.Int("fetched", out.Fetched),
		slog.Int("inserted", out.Inserted),
		slog.Int("skipped", out.Skipped),
		slog.Int("failed", out.Failed),
	)

	return out, err
}

// Export writes the whole store. Files are named ruddit_posts_<timestamp>.<ext> inside the
// export directory, so repeated exports do not replace each other.
func (a *App) Export(ctx context.Context, in *ExportInput) (*ExportOutput, error) {
	const op = "app.Export"

	format := strings.ToLower(strings.TrimSpace(in.Format))
	if format == "" {
		format = a.config.Export.Format
	}

	var exts []string
	switch format {
	case "xlsx", "csv":
		exts = []string{format}
	case "both":
		exts = []string{"xlsx", "csv"}
	default:
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "unknown export format %q (want xlsx, csv or both)", format)
	}

	dir := in.Dir
	if dir == "" {
		dir = a.config.Export.Dir
	}

	res, err := a.persistence.ListPosts(ctx, &entity.ListPostsInput{})
	if err != nil {
		return nil, err
	}

	stamp := a.now().Format(fileTimeLayout)
	out := &ExportOutput{Rows: len(res.Posts)}

	for _, ext := range exts {
		path, err := export.Export(res.Posts, filepath.Join(dir, fmt.Sprintf("ruddit_posts_%s.%s", stamp, ext)))
		if err != nil {
			return out, err
		}
		out.Paths = append(out.Paths, path)
		slog.Info("exported posts", slog.String("path", path), slog.Int("rows", out.Rows))
	}

	return out, nil
}

func (a *App) Clear(ctx context.Context) (*ClearOutput, error) {
	res, err := a.persistence.ClearPosts(ctx, &entity.ClearPostsInput{})
	if err != nil {
		return nil, err
	}

	slog.Info("cleared store", slog.Int64("removed", res.Removed))

	return &ClearOutput{Removed: res.Removed}, nil
}
