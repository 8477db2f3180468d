package config

import (
	"github.com/adrg/xdg"
	"path/filepath"
)

const (
	AppName = "ruddit"

	// Placeholder is written into a freshly created settings file for every credential.
	Placeholder = "CHANGE_ME"
)

type (
	Config struct {
		APIKeys     APIKeys     `koanf:"api_keys" validate:"required"`
		Reddit      Reddit      `koanf:"reddit" validate:"required"`
		Gemini      Gemini      `koanf:"gemini" validate:"required"`
		Persistence Persistence `koanf:"persistence" validate:"required"`
		Export      Export      `koanf:"export" validate:"required"`
	}

	APIKeys struct {
		RedditAPIID     string   `koanf:"REDDIT_API_ID" validate:"required"`
		RedditAPISecret string   `koanf:"REDDIT_API_SECRET" validate:"required"`
		GeminiAPIKey    string   `koanf:"GEMINI_API_KEY"`
		Subreddit       string   `koanf:"SUBREDDIT" validate:"required"`
		Relevance       string   `koanf:"RELEVANCE" validate:"required,oneof=hot new top rising controversial"`
		LeadKeywords    []string `koanf:"LEAD_KEYWORDS"`
		BrandedKeywords []string `koanf:"BRANDED_KEYWORDS"`
		Sentiment       []string `koanf:"SENTIMENT"`
		Match           string   `koanf:"MATCH" validate:"omitempty,oneof=AND OR and or"`
	}

	Reddit struct {
		UserAgent string `koanf:"user_agent" validate:"required"`
		TokenURL  string `koanf:"token_url" validate:"required,url"`
		BaseURL   string `koanf:"base_url" validate:"required,url"`
		Limit     int    `koanf:"limit" validate:"min=1,max=100"`
	}

	Gemini struct {
		Model         string `koanf:"model" validate:"required"`
		BaseURL       string `koanf:"base_url" validate:"required,url"`
		MaxPosts      int    `koanf:"max_posts" validate:"min=1"`
		MaxTitleChars int    `koanf:"max_title_chars" validate:"min=1"`
		MaxBodyChars  int    `koanf:"max_body_chars" validate:"min=1"`
	}

	Persistence struct {
		Driver string `koanf:"driver" validate:"required,oneof=postgres sqlite mysql"`
		DSN    string `koanf:"dsn" validate:"required"`
	}

	Export struct {
		Dir    string `koanf:"dir" validate:"required"`
		Format string `koanf:"format" validate:"required,oneof=xlsx csv both"`
	}
)

func (c *APIKeys) RedditConfigured() bool {
	return c.RedditAPIID != Placeholder && c.RedditAPISecret != Placeholder
}

func (c *APIKeys) GeminiConfigured() bool {
	return c.GeminiAPIKey != "" && c.GeminiAPIKey != Placeholder
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "settings.toml")
}

func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, AppName, AppName+".db")
}

func DefaultExportDir() string {
	return filepath.Join(xdg.UserDirs.Desktop, "Reddit_data")
}

func applyDefaults(c *Config) {
	if c.Reddit.UserAgent == "" {
		c.Reddit.UserAgent = "ruddit/0.1 (cli)"
	}
	if c.Reddit.TokenURL == "" {
		c.Reddit.TokenURL = "https://www.reddit.com/api/v1/access_token"
	}
	if c.Reddit.BaseURL == "" {
		c.Reddit.BaseURL = "https://oauth.reddit.com"
	}
	if c.Reddit.Limit == 0 {
		c.Reddit.Limit = 100
	}

	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if c.Gemini.MaxPosts == 0 {
		c.Gemini.MaxPosts = 200
	}
	if c.Gemini.MaxTitleChars == 0 {
		c.Gemini.MaxTitleChars = 300
	}
	if c.Gemini.MaxBodyChars == 0 {
		c.Gemini.MaxBodyChars = 1000
	}

	if c.Persistence.Driver == "" {
		c.Persistence.Driver = "sqlite"
	}
	if c.Persistence.DSN == "" && c.Persistence.Driver == "sqlite" {
		c.Persistence.DSN = "file:" + DefaultDatabasePath()
	}

	if c.Export.Dir == "" {
		c.Export.Dir = DefaultExportDir()
	}
	if c.Export.Format == "" {
		c.Export.Format = "xlsx"
	}

	if c.APIKeys.Relevance == "" {
		c.APIKeys.Relevance = "hot"
	}
	if c.APIKeys.Match == "" {
		c.APIKeys.Match = "OR"
	}
}
