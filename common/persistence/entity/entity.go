package entity

import (
	"time"
)

type (
	// Post is an immutable snapshot of a submission as returned by the content API.
	Post struct {
		ID          string    `json:"id" validate:"required,max=32"`
		Title       string    `json:"title" validate:"required"`
		Author      string    `json:"author"`
		Subreddit   string    `json:"subreddit" validate:"required"`
		Score       int       `json:"score"`
		NumComments int       `json:"num_comments" validate:"min=0"`
		Created     time.Time `json:"created"`
		Permalink   string    `json:"permalink"`
		SelfText    string    `json:"selftext,omitempty"`
	}

	InsertPostInput struct {
		Post *Post `json:"post"`
	}

	InsertPostOutput struct {
		Inserted bool `json:"inserted"`
	}

	InsertPostsInput struct {
		Posts []*Post `json:"posts"`
	}

	InsertPostsOutput struct {
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
		Failed   int `json:"failed"`
	}

	ListPostsInput struct {
		Subreddit string    `json:"subreddit,omitzero"`
		Keyword   string    `json:"keyword,omitzero"`
		Since     time.Time `json:"since,omitzero"`
		Limit     int       `json:"limit,omitzero"` // 0 means no limit
	}

	ListPostsOutput struct {
		Posts []*Post `json:"posts"`
	}

	ClearPostsInput struct {
	}

	ClearPostsOutput struct {
		Removed int64 `json:"removed"`
	}
)
