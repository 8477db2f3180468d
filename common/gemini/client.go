package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/go-playground/validator/v10"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
)

const (
	DefaultBaseURL       = "https://generativelanguage.googleapis.com"
	DefaultModel         = "gemini-2.0-flash"
	DefaultMaxTitleChars = 300
	DefaultMaxBodyChars  = 1000
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type (
	Client struct {
		httpClient    *http.Client
		apiKey        string
		model         string
		baseURL       string
		maxTitleChars int
		maxBodyChars  int
	}

	Options struct {
		APIKey        string
		Model         string
		BaseURL       string
		MaxTitleChars int
		MaxBodyChars  int
		HTTPClient    *http.Client
	}
)

func New(opts *Options) *Client {
	c := &Client{
		httpClient:    opts.HTTPClient,
		apiKey:        opts.APIKey,
		model:         opts.Model,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		maxTitleChars: opts.MaxTitleChars,
		maxBodyChars:  opts.MaxBodyChars,
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.maxTitleChars <= 0 {
		c.maxTitleChars = DefaultMaxTitleChars
	}
	if c.maxBodyChars <= 0 {
		c.maxBodyChars = DefaultMaxBodyChars
	}

	return c
}

type (
	part struct {
		Text string `json:"text"`
	}

	content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}

	generationConfig struct {
		ResponseMimeType string         `json:"responseMimeType"`
		ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
		Temperature      float64        `json:"temperature"`
	}

	generateRequest struct {
		SystemInstruction *content         `json:"systemInstruction,omitempty"`
		Contents          []content        `json:"contents"`
		GenerationConfig  generationConfig `json:"generationConfig"`
	}

	generateResponse struct {
		Candidates []struct {
			Content      content `json:"content"`
			FinishReason string  `json:"finishReason"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}

	apiError struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
			Details []struct {
				Reason string `json:"reason"`
			} `json:"details"`
		} `json:"error"`
	}
)

// generate sends one generateContent call and returns the text of the first candidate.
func (c *Client) generate(ctx context.Context, op, system, prompt string, schema map[string]any) (string, error) {
	body, err := json.Marshal(&generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: system}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
			Temperature:      0.2,
		},
	})
	if err != nil {
		return "", errs.E(errs.KindInvalidArgument, op, err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errs.E(errs.KindInvalidArgument, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	slog.Debug("calling model", slog.String("model", c.model), slog.Int("request_bytes", len(body)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.E(errs.KindTransientNetwork, op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.E(errs.KindTransientNetwork, op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(op, resp.StatusCode, raw)
	}

	var out generateResponse
	if err = json.Unmarshal(raw, &out); err != nil {
		return "", errs.E(errs.KindRemoteService, op, fmt.Errorf("decode response: %w", err))
	}

	if out.PromptFeedback.BlockReason != "" {
		return "", errs.Errorf(errs.KindModelResponseMalformed, op, "prompt blocked: %s", out.PromptFeedback.BlockReason)
	}

	if len(out.Candidates) == 0 {
		return "", errs.Errorf(errs.KindModelResponseMalformed, op, "response has no candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	text := sb.String()
	slog.Debug("model replied", slog.String("finish_reason", out.Candidates[0].FinishReason), slog.String("text", text))

	return text, nil
}

func classifyStatus(op string, status int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	cause := fmt.Errorf("unexpected status code: %d", status)
	if msg := apiErr.Error.Message; msg != "" {
		cause = fmt.Errorf("unexpected status code: %d: %s", status, msg)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.E(errs.KindCredentialsInvalid, op, cause)
	case status == http.StatusBadRequest && apiErr.hasReason("API_KEY_INVALID"):
		return errs.E(errs.KindCredentialsInvalid, op, cause)
	case status == http.StatusTooManyRequests:
		return errs.E(errs.KindTransientNetwork, op, cause)
	default:
		return errs.E(errs.KindRemoteService, op, cause)
	}
}

func (e *apiError) hasReason(reason string) bool {
	for _, d := range e.Error.Details {
		if d.Reason == reason {
			return true
		}
	}
	return false
}

// stripFences removes a markdown code fence the model may wrap around JSON.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	tag := strings.IndexFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
	if tag > 0 && strings.EqualFold(text[:tag], "json") {
		text = text[tag:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// decodeStrict decodes exactly one JSON value into v, rejecting unknown fields.
func decodeStrict(text string, v any) error {
	dec := json.NewDecoder(strings.NewReader(stripFences(text)))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
