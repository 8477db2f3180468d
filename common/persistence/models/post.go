package models

import (
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"time"
)

type (
	Post struct {
		ID          string `db:"id"`
		Title       string `db:"title"`
		Author      string `db:"author"`
		Subreddit   string `db:"subreddit"`
		Score       int64  `db:"score"`
		NumComments int64  `db:"num_comments"`
		CreatedUTC  int64  `db:"created_utc"`
		Permalink   string `db:"permalink"`
		SelfText    string `db:"selftext"`
	}
)

// PostColumns is the column list every backend selects, in Post field order.
const PostColumns = "id, title, author, subreddit, score, num_comments, created_utc, permalink, selftext"

func FromEntity(p *entity.Post) *Post {
	return &Post{
		ID:          p.ID,
		Title:       p.Title,
		Author:      p.Author,
		Subreddit:   p.Subreddit,
		Score:       int64(p.Score),
		NumComments: int64(p.NumComments),
		CreatedUTC:  p.Created.Unix(),
		Permalink:   p.Permalink,
		SelfText:    p.SelfText,
	}
}

func (m *Post) Entity() *entity.Post {
	return &entity.Post{
		ID:          m.ID,
		Title:       m.Title,
		Author:      m.Author,
		Subreddit:   m.Subreddit,
		Score:       int(m.Score),
		NumComments: int(m.NumComments),
		Created:     time.Unix(m.CreatedUTC, 0).UTC(),
		Permalink:   m.Permalink,
		SelfText:    m.SelfText,
	}
}
