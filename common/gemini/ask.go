package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"strings"
	"time"
)

type (
	AskInput struct {
		Question string
		Posts    []*entity.Post
	}

	Answer struct {
		Answer    string   `json:"answer" validate:"required"`
		Citations []string `json:"citations" validate:"dive,required"`
	}

	// contextPost is the shape a stored post takes inside the prompt.
	contextPost struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Author      string `json:"author"`
		Subreddit   string `json:"subreddit"`
		Score       int    `json:"score"`
		NumComments int    `json:"num_comments"`
		Created     string `json:"created"`
		URL         string `json:"url"`
		Body        string `json:"body,omitempty"`
	}
)

const askSystemPrompt = `Given the following data: %s
Answer the user's question using only this data. Be as thorough as possible and mention URLs when useful.
Reply with a single JSON object of the form {"answer": "<text>", "citations": ["<id>", ...]} where citations
lists the ids of the posts the answer relies on. Use an empty list when no post applies.`

var answerSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"answer":    map[string]any{"type": "STRING"},
		"citations": map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
	},
	"required": []string{"answer", "citations"},
}

// Ask sends the question with posts as context. A request is made even when posts is empty.
func (c *Client) Ask(ctx context.Context, in *AskInput) (*Answer, error) {
	const op = "gemini.Ask"

	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "question must not be empty")
	}

	data, err := c.contextJSON(in.Posts)
	if err != nil {
		return nil, errs.E(errs.KindInvalidArgument, op, err)
	}

	text, err := c.generate(ctx, op, fmt.Sprintf(askSystemPrompt, data), question, answerSchema)
	if err != nil {
		return nil, err
	}

	answer, err := parseAnswer(text, in.Posts)
	if err != nil {
		return nil, errs.E(errs.KindModelResponseMalformed, op, err)
	}

	return answer, nil
}

func (c *Client) contextJSON(posts []*entity.Post) (string, error) {
	out := make([]contextPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, contextPost{
			ID:          p.ID,
			Title:       truncate(p.Title, c.maxTitleChars),
			Author:      p.Author,
			Subreddit:   p.Subreddit,
			Score:       p.Score,
			NumComments: p.NumComments,
			Created:     p.Created.UTC().Format(time.RFC3339),
			URL:         p.Permalink,
			Body:        truncate(p.SelfText, c.maxBodyChars),
		})
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseAnswer(text string, posts []*entity.Post) (*Answer, error) {
	var raw struct {
		Answer    *string   `json:"answer"`
		Citations *[]string `json:"citations"`
	}

	if err := decodeStrict(text, &raw); err != nil {
		return nil, fmt.Errorf("reply is not a valid answer object: %w", err)
	}
	if raw.Answer == nil {
		return nil, fmt.Errorf("reply is missing %q", "answer")
	}
	if raw.Citations == nil {
		return nil, fmt.Errorf("reply is missing %q", "citations")
	}

	answer := &Answer{
		Answer:    strings.TrimSpace(*raw.Answer),
		Citations: *raw.Citations,
	}

	if err := validate.Struct(answer); err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		known[p.ID] = struct{}{}
	}
	for _, id := range answer.Citations {
		if _, ok := known[id]; !ok {
			return nil, fmt.Errorf("citation %q does not name a provided post", id)
		}
	}

	return answer, nil
}
