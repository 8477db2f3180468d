package app

import (
	"context"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/export"
	"github.com/forbiddencoding/ruddit/common/gemini"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

type (
	AskInput struct {
		Question  string
		Subreddit string
		Keyword   string
		// Since limits the context to posts created within this window; zero means no limit.
		Since time.Duration
		// Limit caps the number of context posts; zero uses gemini.max_posts.
		Limit int
	}

	LeadsInput struct {
		Dir string
	}

	LeadsOutput struct {
		Leads []*gemini.Lead `json:"leads"`
		Path  string         `json:"path"`
	}
)

// Ask selects posts from the store and asks the model about them.
func (a *App) Ask(ctx context.Context, in *AskInput) (*gemini.Answer, error) {
	const op = "app.Ask"

	if strings.TrimSpace(in.Question) == "" {
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "question must not be empty")
	}
	if in.Since < 0 || in.Limit < 0 {
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "since and limit must not be negative")
	}

	model, err := a.asker(ctx, op)
	if err != nil {
		return nil, err
	}

	filter := &entity.ListPostsInput{
		Subreddit: in.Subreddit,
		Keyword:   in.Keyword,
		Limit:     in.Limit,
	}
	if filter.Limit == 0 {
		filter.Limit = a.config.Gemini.MaxPosts
	}
	if in.Since > 0 {
		filter.Since = a.now().Add(-in.Since)
	}

	res, err := a.persistence.ListPosts(ctx, filter)
	if err != nil {
		return nil, err
	}

	slog.Info("asking model", slog.Int("context_posts", len(res.Posts)))

	answer, err := model.Ask(ctx, &gemini.AskInput{Question: in.Question, Posts: res.Posts})
	if err != nil {
		return nil, err
	}

	if answer.Citations == nil {
		answer.Citations = []string{}
	}

	return answer, nil
}

// Leads asks the model to pick likely business leads using the configured keywords and
// writes them to ruddit_leads_<timestamp>.xlsx.
func (a *App) Leads(ctx context.Context, in *LeadsInput) (*LeadsOutput, error) {
	const op = "app.Leads"

	keys := a.config.APIKeys
	if len(keys.LeadKeywords) == 0 {
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "no lead keywords configured (set LEAD_KEYWORDS)")
	}

	model, err := a.asker(ctx, op)
	if err != nil {
		return nil, err
	}

	res, err := a.persistence.ListPosts(ctx, &entity.ListPostsInput{Limit: a.config.Gemini.MaxPosts})
	if err != nil {
		return nil, err
	}

	keywords := append(append([]string{}, keys.LeadKeywords...), keys.BrandedKeywords...)

	leads, err := model.GenerateLeads(ctx, &gemini.LeadsInput{
		Keywords:   keywords,
		Match:      keys.Match,
		Sentiments: keys.Sentiment,
		Posts:      res.Posts,
	})
	if err != nil {
		return nil, err
	}

	dir := in.Dir
	if dir == "" {
		dir = a.config.Export.Dir
	}

	path, err := export.ExportLeads(leads, filepath.Join(dir, fmt.Sprintf("ruddit_leads_%s.xlsx", a.now().Format(fileTimeLayout))))
	if err != nil {
		return nil, err
	}

	slog.Info("exported leads", slog.String("path", path), slog.Int("leads", len(leads)))

	return &LeadsOutput{Leads: leads, Path: path}, nil
}
