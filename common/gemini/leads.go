package gemini

import (
	"context"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"strings"
)

type (
	LeadsInput struct {
		Keywords   []string
		Match      string
		Sentiments []string
		Posts      []*entity.Post
	}

	Lead struct {
		Title         string `json:"title" validate:"required"`
		URL           string `json:"url"`
		FormattedDate string `json:"formatted_date"`
		Relevance     string `json:"relevance" validate:"oneof=HIGH MEDIUM LOW"`
		Subreddit     string `json:"subreddit"`
		Sentiment     string `json:"sentiment"`
	}
)

const leadsPrompt = `Analyze the provided posts and return ONLY those that match these criteria:
1. Keywords (%s) must be found in the title using %s matching
2. The post sentiment should match one of: %s
3. Return ONLY posts that are likely to be leads or business opportunities.

Reply with a JSON array. Each element is an object with exactly these fields:
- title: the post title
- url: the post URL
- formatted_date: the post date as YYYY-MM-DD
- relevance: HIGH if it's a strong lead, MEDIUM if potential, LOW if uncertain
- subreddit: the subreddit name
- sentiment: the detected sentiment
Reply with [] when nothing matches.`

var leadsSchema = map[string]any{
	"type": "ARRAY",
	"items": map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"title":          map[string]any{"type": "STRING"},
			"url":            map[string]any{"type": "STRING"},
			"formatted_date": map[string]any{"type": "STRING"},
			"relevance":      map[string]any{"type": "STRING", "enum": []string{"HIGH", "MEDIUM", "LOW"}},
			"subreddit":      map[string]any{"type": "STRING"},
			"sentiment":      map[string]any{"type": "STRING"},
		},
		"required": []string{"title", "url", "formatted_date", "relevance", "subreddit", "sentiment"},
	},
}

// GenerateLeads asks the model to pick posts that look like business opportunities.
func (c *Client) GenerateLeads(ctx context.Context, in *LeadsInput) ([]*Lead, error) {
	const op = "gemini.GenerateLeads"

	keywords := nonEmpty(in.Keywords)
	if len(keywords) == 0 {
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "no lead keywords configured")
	}

	match := "OR"
	if strings.EqualFold(in.Match, "and") {
		match = "AND"
	}

	sentiments := strings.Join(nonEmpty(in.Sentiments), " OR ")
	if sentiments == "" {
		sentiments = "any"
	}

	data, err := c.contextJSON(in.Posts)
	if err != nil {
		return nil, errs.E(errs.KindInvalidArgument, op, err)
	}

	prompt := fmt.Sprintf(leadsPrompt, strings.Join(keywords, " OR "), match, sentiments)

	text, err := c.generate(ctx, op, "Given the following data: "+data, prompt, leadsSchema)
	if err != nil {
		return nil, err
	}

	var leads []*Lead
	if err = decodeStrict(text, &leads); err != nil {
		return nil, errs.E(errs.KindModelResponseMalformed, op, fmt.Errorf("reply is not a lead list: %w", err))
	}

	if leads == nil {
		return nil, errs.Errorf(errs.KindModelResponseMalformed, op, "reply is not a lead list")
	}

	for i, lead := range leads {
		if lead == nil {
			return nil, errs.Errorf(errs.KindModelResponseMalformed, op, "lead %d is null", i)
		}
		if err = validate.Struct(lead); err != nil {
			return nil, errs.E(errs.KindModelResponseMalformed, op, fmt.Errorf("lead %d: %w", i, err))
		}
	}

	return leads, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
