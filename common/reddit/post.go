package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/forbiddencoding/ruddit/common/errs"
	"github.com/forbiddencoding/ruddit/common/persistence/entity"
	"golang.org/x/oauth2"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	ListingRelevances = []string{"hot", "new", "top", "rising", "controversial"}
	SearchRelevances  = []string{"relevance", "hot", "top", "new", "comments"}
)

type (
	Post struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Title       string  `json:"title"`
		Author      string  `json:"author"`
		Subreddit   string  `json:"subreddit"`
		Score       int     `json:"score"`
		NumComments int     `json:"num_comments"`
		CreatedUTC  float64 `json:"created_utc"`
		Permalink   string  `json:"permalink"`
		SelfText    string  `json:"selftext"`
		URL         string  `json:"url"`
		NSFW        bool    `json:"over_18"`
	}

	Response struct {
		Kind string `json:"kind"`
		Data struct {
			After    string `json:"after"`
			Children []struct {
				Kind string `json:"kind"`
				Data Post   `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}

	GetListingInput struct {
		Subreddit string
		Relevance string
	}

	SearchInput struct {
		Query     string
		Relevance string
	}

	GetPostsOutput struct {
		Posts []*entity.Post
		// After is the listing cursor for the next page, empty on the last page.
		After string
	}
)

type RateLimitError struct {
	Message           string
	SecondsUntilReset int
}

func (e RateLimitError) Error() string {
	return e.Message
}

func (e RateLimitError) GetReset() int {
	return e.SecondsUntilReset
}

// GetListing fetches one page of a subreddit listing sorted by relevance.
func (c *Client) GetListing(ctx context.Context, in *GetListingInput) (*GetPostsOutput, error) {
	const op = "reddit.GetListing"

	subreddit := strings.TrimPrefix(strings.TrimSpace(in.Subreddit), "r/")
	if subreddit == "" {
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "subreddit must not be empty")
	}

	relevance, err := normalizeRelevance(op, in.Relevance, "hot", ListingRelevances)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.limit))
	q.Set("raw_json", "1")

	endpoint := fmt.Sprintf("%s/r/%s/%s?%s", c.baseURL, url.PathEscape(subreddit), relevance, q.Encode())

	return c.getPosts(ctx, op, endpoint)
}

// Search runs a site-wide search for query. Relevance defaults to "hot".
func (c *Client) Search(ctx context.Context, in *SearchInput) (*GetPostsOutput, error) {
	const op = "reddit.Search"

	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, errs.Errorf(errs.KindInvalidArgument, op, "search query must not be empty")
	}

	relevance, err := normalizeRelevance(op, in.Relevance, "hot", SearchRelevances)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", relevance)
	q.Set("limit", strconv.Itoa(c.limit))
	q.Set("t", "all")
	q.Set("type", "link")
	q.Set("raw_json", "1")

	return c.getPosts(ctx, op, c.baseURL+"/search?"+q.Encode())
}

func normalizeRelevance(op, relevance, fallback string, allowed []string) (string, error) {
	relevance = strings.ToLower(strings.TrimSpace(relevance))
	if relevance == "" {
		return fallback, nil
	}
	if !slices.Contains(allowed, relevance) {
		return "", errs.Errorf(errs.KindInvalidArgument, op, "unknown relevance %q (want one of %s)", relevance, strings.Join(allowed, ", "))
	}
	return relevance, nil
}

func (c *Client) getPosts(ctx context.Context, op, endpoint string) (*GetPostsOutput, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.E(errs.KindInvalidArgument, op, err)
	}

	slog.Debug("requesting posts", slog.String("url", endpoint))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		var response Response

		if err = json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return nil, errs.E(errs.KindRemoteService, op, fmt.Errorf("decode listing: %w", err))
		}

		posts := make([]*entity.Post, 0, len(response.Data.Children))
		for _, child := range response.Data.Children {
			if child.Kind != "t3" {
				continue
			}
			posts = append(posts, child.Data.Entity())
		}

		return &GetPostsOutput{
			Posts: posts,
			After: response.Data.After,
		}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		rLErr := &RateLimitError{
			Message: "rate limit exceeded",
		}

		if reset := resp.Header.Get("X-Ratelimit-Reset"); reset != "" {
			if seconds, err := strconv.ParseFloat(reset, 64); err == nil {
				rLErr.SecondsUntilReset = int(math.Ceil(seconds))
			}
		}

		return nil, errs.E(errs.KindTransientNetwork, op, rLErr)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errs.E(errs.KindCredentialsInvalid, op, statusError(resp))
	default:
		return nil, errs.E(errs.KindRemoteService, op, statusError(resp))
	}
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
}

// classifyTransport maps a failed round trip, including a failed token request.
func classifyTransport(op string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		code := rErr.Response.StatusCode
		switch {
		case code == http.StatusTooManyRequests:
			return errs.E(errs.KindTransientNetwork, op, err)
		case code >= 400 && code < 500:
			return errs.E(errs.KindCredentialsInvalid, op, fmt.Errorf("token request rejected: %w", err))
		default:
			return errs.E(errs.KindRemoteService, op, err)
		}
	}
	return errs.E(errs.KindTransientNetwork, op, err)
}

// Entity converts the API representation into a stored post.
func (p *Post) Entity() *entity.Post {
	sec, frac := math.Modf(p.CreatedUTC)

	return &entity.Post{
		ID:          p.ID,
		Title:       p.Title,
		Author:      p.Author,
		Subreddit:   p.Subreddit,
		Score:       p.Score,
		NumComments: p.NumComments,
		Created:     time.Unix(int64(sec), int64(frac*1e9)).UTC().Truncate(time.Second),
		Permalink:   p.GetPermalink(),
		SelfText:    p.SelfText,
	}
}

func (p *Post) GetPermalink() string {
	if p.Permalink == "" || strings.HasPrefix(p.Permalink, "http") {
		return p.Permalink
	}
	return permalinkHost + p.Permalink
}
