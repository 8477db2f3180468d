package gemini

import (
	"context"
	"encoding/json"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeModel struct {
	server   *httptest.Server
	requests atomic.Int32
	last     generateRequest
	path     string
	key      string
}

// newFakeModel replies with status and a generateContent body whose only part holds text.
func newFakeModel(t *testing.T, status int, text string) *fakeModel {
	t.Helper()

	f := &fakeModel{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.path = r.URL.Path
		f.key = r.Header.Get("x-goog-api-key")

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &f.last)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(text))
			return
		}

		reply, _ := json.Marshal(map[string]any{
			"candidates": []any{map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
				"finishReason": "STOP",
			}},
		})
		_, _ = w.Write(reply)
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeModel) client() *Client {
	return New(&Options{
		APIKey:        "key-123",
		BaseURL:       f.server.URL,
		MaxTitleChars: 10,
		MaxBodyChars:  5,
		HTTPClient:    f.server.Client(),
	})
}

func samplePosts() []*entity.Post {
	return []*entity.Post{
		{ID: "abc", Title: "Looking for a 3PL partner in Texas", Subreddit: "logistics", Created: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), SelfText: "We ship pallets weekly"},
		{ID: "def", Title: "Short", Subreddit: "logistics"},
	}
}

func TestAsk(t *testing.T) {
	f := newFakeModel(t, http.StatusOK, `{"answer": "Post abc asks for a 3PL.", "citations": ["abc"]}`)

	answer, err := f.client().Ask(context.Background(), &AskInput{Question: "Who needs a 3PL?", Posts: samplePosts()})
	require.NoError(t, err)
	assert.Equal(t, &Answer{Answer: "Post abc asks for a 3PL.", Citations: []string{"abc"}}, answer)

	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", f.path)
	assert.Equal(t, "key-123", f.key)
	assert.Equal(t, "application/json", f.last.GenerationConfig.ResponseMimeType)
	require.Len(t, f.last.Contents, 1)
	assert.Equal(t, "Who needs a 3PL?", f.last.Contents[0].Parts[0].Text)

	system := f.last.SystemInstruction.Parts[0].Text
	assert.Contains(t, system, `"title":"Looking fo..."`)
	assert.Contains(t, system, `"body":"We sh..."`)
	assert.Contains(t, system, `"title":"Short"`)
}

func TestAskWithoutPostsStillCallsModel(t *testing.T) {
	f := newFakeModel(t, http.StatusOK, `{"answer": "No data.", "citations": []}`)

	answer, err := f.client().Ask(context.Background(), &AskInput{Question: "anything?"})
	require.NoError(t, err)
	assert.Equal(t, "No data.", answer.Answer)
	assert.Empty(t, answer.Citations)
	assert.EqualValues(t, 1, f.requests.Load())
	assert.Contains(t, f.last.SystemInstruction.Parts[0].Text, "Given the following data: []")
}

func TestAskMalformedReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"prose", "Sure! Here is what I found."},
		{"missing citations", `{"answer": "yes"}`},
		{"missing answer", `{"citations": []}`},
		{"empty answer", `{"answer": "  ", "citations": []}`},
		{"unknown field", `{"answer": "yes", "citations": [], "confidence": 0.9}`},
		{"wrong type", `{"answer": 42, "citations": []}`},
		{"unknown citation", `{"answer": "yes", "citations": ["zzz"]}`},
		{"trailing data", `{"answer": "yes", "citations": []} {"answer": "again"}`},
		{"array", `[{"answer": "yes", "citations": []}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeModel(t, http.StatusOK, tt.reply)

			_, err := f.client().Ask(context.Background(), &AskInput{Question: "q"})
			require.Error(t, err)
			assert.Equal(t, errs.KindModelResponseMalformed, errs.KindOf(err))
			assert.EqualValues(t, 1, f.requests.Load())
		})
	}
}

func TestAskAcceptsFencedJSON(t *testing.T) {
	f := newFakeModel(t, http.StatusOK, "```json\n{\"answer\": \"fenced\", \"citations\": [\"def\"]}\n```")

	answer, err := f.client().Ask(context.Background(), &AskInput{Question: "q", Posts: samplePosts()})
	require.NoError(t, err)
	assert.Equal(t, "fenced", answer.Answer)
	assert.Equal(t, []string{"def"}, answer.Citations)
}

func TestAskAcceptsUppercaseFence(t *testing.T) {
	f := newFakeModel(t, http.StatusOK, "```JSON\n{\"answer\": \"shouted\", \"citations\": []}\n```")

	answer, err := f.client().Ask(context.Background(), &AskInput{Question: "q", Posts: samplePosts()})
	require.NoError(t, err)
	assert.Equal(t, "shouted", answer.Answer)
}

func TestAskEmptyQuestion(t *testing.T) {
	f := newFakeModel(t, http.StatusOK, `{}`)

	_, err := f.client().Ask(context.Background(), &AskInput{Question: " "})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
	assert.Zero(t, f.requests.Load())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   errs.Kind
	}{
		{"invalid key", http.StatusBadRequest, `{"error": {"code": 400, "message": "API key not valid.", "status": "INVALID_ARGUMENT", "details": [{"reason": "API_KEY_INVALID"}]}}`, errs.KindCredentialsInvalid},
		{"bad request", http.StatusBadRequest, `{"error": {"code": 400, "message": "bad schema", "status": "INVALID_ARGUMENT"}}`, errs.KindRemoteService},
		{"forbidden", http.StatusForbidden, `{}`, errs.KindCredentialsInvalid},
		{"quota", http.StatusTooManyRequests, `{}`, errs.KindTransientNetwork},
		{"server", http.StatusInternalServerError, `oops`, errs.KindRemoteService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeModel(t, tt.status, tt.body)

			_, err := f.client().Ask(context.Background(), &AskInput{Question: "q"})
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.KindOf(err))
		})
	}
}

func TestNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": [], "promptFeedback": {"blockReason": "SAFETY"}}`))
	}))
	t.Cleanup(server.Close)

	c := New(&Options{APIKey: "k", BaseURL: server.URL})
	_, err := c.Ask(context.Background(), &AskInput{Question: "q"})
	require.Error(t, err)
	assert.Equal(t, errs.KindModelResponseMalformed, errs.KindOf(err))
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestUnreachableModel(t *testing.T) {
	f := newFakeModel(t, http.StatusOK, `{}`)
	c := f.client()
	f.server.Close()

	_, err := c.Ask(context.Background(), &AskInput{Question: "q"})
	require.Error(t, err)
	assert.Equal(t, errs.KindTransientNetwork, errs.KindOf(err))
}

func TestGenerateLeads(t *testing.T) {
	f := newFakeModel(t, http.StatusOK, `[{"title": "Looking for a 3PL partner in Texas", "url": "https://www.reddit.com/r/logistics/comments/abc/", "formatted_date": "2025-01-02", "relevance": "HIGH", "subreddit": "logistics", "sentiment": "positive"}]`)

	leads, err := f.client().GenerateLeads(context.Background(), &LeadsInput{
		Keywords:   []string{"3PL", " ", "partner"},
		Match:      "and",
		Sentiments: []string{"positive", "neutral"},
		Posts:      samplePosts(),
	})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "HIGH", leads[0].Relevance)
	assert.Equal(t, "logistics", leads[0].Subreddit)

	prompt := f.last.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Keywords (3PL OR partner)")
	assert.Contains(t, prompt, "using AND matching")
	assert.Contains(t, prompt, "one of: positive OR neutral")
}

func TestGenerateLeadsEmptyList(t *testing.T) {
	f := newFakeModel(t, http.StatusOK, `[]`)

	leads, err := f.client().GenerateLeads(context.Background(), &LeadsInput{Keywords: []string{"hiring"}})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestGenerateLeadsRejectsBadReply(t *testing.T) {
	for _, reply := range []string{
		`{"title": "not a list"}`,
		`null`,
		`[{"title": "x", "url": "", "formatted_date": "", "relevance": "URGENT", "subreddit": "", "sentiment": ""}]`,
		`[{"title": "", "relevance": "LOW"}]`,
	} {
		f := newFakeModel(t, http.StatusOK, reply)

		_, err := f.client().GenerateLeads(context.Background(), &LeadsInput{Keywords: []string{"hiring"}})
		require.Error(t, err, reply)
		assert.Equal(t, errs.KindModelResponseMalformed, errs.KindOf(err), reply)
	}
}

func TestGenerateLeadsNeedsKeywords(t *testing.T) {
	f := newFakeModel(t, http.StatusOK, `[]`)

	_, err := f.client().GenerateLeads(context.Background(), &LeadsInput{Keywords: []string{"", "  "}})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidArgument, errs.KindOf(err))
	assert.Zero(t, f.requests.Load())
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences("```JSON\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```Json {\"a\":1}```"))
	assert.Equal(t, `[1]`, stripFences("```json[1]\n```\n"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1} `))
	assert.True(t, strings.HasPrefix(stripFences("plain text"), "plain"))
}
