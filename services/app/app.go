package app

import (
	"context"
	"github.com/forbiddencoding/ruddit/common/config"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/gemini"
	"github.com/forbiddencoding/ruddit/common/persistence"
	"github.com/forbiddencoding/ruddit/common/reddit"
	"time"
)

type (
	// Fetcher is the content API as seen by the dispatcher.
	Fetcher interface {
		GetListing(ctx context.Context, in *reddit.GetListingInput) (*reddit.GetPostsOutput, error)
		Search(ctx context.Context, in *reddit.SearchInput) (*reddit.GetPostsOutput, error)
	}

	// Asker is the language model as seen by the dispatcher.
	Asker interface {
		Ask(ctx context.Context, in *gemini.AskInput) (*gemini.Answer, error)
		GenerateLeads(ctx context.Context, in *gemini.LeadsInput) ([]*gemini.Lead, error)
	}

	App struct {
		config      *config.Config
		persistence persistence.Persistence
		newFetcher  func(ctx context.Context) (Fetcher, error)
		newAsker    func(ctx context.Context) (Asker, error)
		now         func() time.Time
	}

	Option func(*App)
)

// WithFetcher replaces the content API client built from config.
func WithFetcher(f Fetcher) Option {
	return func(a *App) {
		a.newFetcher = func(context.Context) (Fetcher, error) { return f, nil }
	}
}

// WithAsker replaces the model client built from config.
func WithAsker(m Asker) Option {
	return func(a *App) {
		a.newAsker = func(context.Context) (Asker, error) { return m, nil }
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

func New(conf *config.Config, db persistence.Persistence, opts ...Option) *App {
	a := &App{
		config:      conf,
		persistence: db,
		now:         time.Now,
	}

	a.newFetcher = func(ctx context.Context) (Fetcher, error) {
		return reddit.New(ctx, &reddit.Options{
			ClientID:     conf.APIKeys.RedditAPIID,
			ClientSecret: conf.APIKeys.RedditAPISecret,
			UserAgent:    conf.Reddit.UserAgent,
			TokenURL:     conf.Reddit.TokenURL,
			BaseURL:      conf.Reddit.BaseURL,
			Limit:        conf.Reddit.Limit,
		})
	}

	a.newAsker = func(ctx context.Context) (Asker, error) {
		return gemini.New(&gemini.Options{
			APIKey:        conf.APIKeys.GeminiAPIKey,
			Model:         conf.Gemini.Model,
			BaseURL:       conf.Gemini.BaseURL,
			MaxTitleChars: conf.Gemini.MaxTitleChars,
			MaxBodyChars:  conf.Gemini.MaxBodyChars,
		}), nil
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *App) Close(ctx context.Context) error {
	if a.persistence == nil {
		return nil
	}
	return a.persistence.Close(ctx)
}

func (a *App) fetcher(ctx context.Context, op string) (Fetcher, error) {
	if !a.config.APIKeys.RedditConfigured() {
		return nil, errs.Errorf(errs.KindCredentialsInvalid, op, "reddit credentials are not configured (set REDDIT_API_ID and REDDIT_API_SECRET)")
	}
	return a.newFetcher(ctx)
}

func (a *App) asker(ctx context.Context, op string) (Asker, error) {
	if !a.config.APIKeys.GeminiConfigured() {
		return nil, errs.Errorf(errs.KindCredentialsInvalid, op, "gemini credentials are not configured (set GEMINI_API_KEY)")
	}
	return a.newAsker(ctx)
}
