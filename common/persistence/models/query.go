package models

import (
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"math"
	"strings"
)

// likeEscaper escapes LIKE wildcards for use with ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ListPostsArgs holds the bind values shared by every backend's list query.
type ListPostsArgs struct {
	Subreddit string `db:"subreddit"`
	Keyword   string `db:"keyword"`
	Pattern   string `db:"pattern"`
	Since     int64  `db:"since"`
	Limit     int64  `db:"limit"`
}

func NewListPostsArgs(in *entity.ListPostsInput) *ListPostsArgs {
	args := &ListPostsArgs{
		Subreddit: strings.TrimPrefix(strings.TrimSpace(in.Subreddit), "r/"),
		Keyword:   strings.TrimSpace(in.Keyword),
		Since:     math.MinInt64,
		Limit:     math.MaxInt32,
	}

	if args.Keyword != "" {
		args.Pattern = "%" + likeEscaper.Replace(args.Keyword) + "%"
	}

	if !in.Since.IsZero() {
		args.Since = in.Since.Unix()
	}

	if in.Limit > 0 {
		args.Limit = int64(in.Limit)
	}

	return args
}

func (a *ListPostsArgs) Map() map[string]any {
	return map[string]any{
		"subreddit": a.Subreddit,
		"keyword":   a.Keyword,
		"pattern":   a.Pattern,
		"since":     a.Since,
		"limit":     a.Limit,
	}
}
