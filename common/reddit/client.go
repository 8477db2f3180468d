package reddit

import (
	"context"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	DefaultBaseURL  = "https://oauth.reddit.com"
	DefaultLimit    = 100
	permalinkHost   = "https://www.reddit.com"
)

type (
	Client struct {
		httpClient *http.Client
		baseURL    string
		limit      int
	}

	Options struct {
		ClientID     string
		ClientSecret string
		UserAgent    string
		TokenURL     string
		BaseURL      string
		Limit        int
		// HTTPClient carries the base transport; nil uses http.DefaultTransport.
		HTTPClient *http.Client
	}

	userAgentRoundTripper struct {
		userAgent string
		next      http.RoundTripper
	}
)

func (urt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", urt.userAgent)
	}
	return urt.next.RoundTrip(req)
}

// New builds a client authenticated with the client credentials grant. The token
// is requested on the first API call, not here.
func New(ctx context.Context, opts *Options) (*Client, error) {
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := opts.Limit
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}

	base := http.DefaultTransport
	timeout := 10 * time.Second
	if opts.HTTPClient != nil {
		if opts.HTTPClient.Transport != nil {
			base = opts.HTTPClient.Transport
		}
		if opts.HTTPClient.Timeout > 0 {
			timeout = opts.HTTPClient.Timeout
		}
	}

	conf := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	oauth2HttpClient := &http.Client{
		Timeout: timeout,
		Transport: &userAgentRoundTripper{
			userAgent: opts.UserAgent,
			next:      base,
		},
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, oauth2HttpClient)
	tokenSrc := conf.TokenSource(tokenCtx)

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: tokenSrc,
				Base: &userAgentRoundTripper{
					userAgent: opts.UserAgent,
					next:      base,
				},
			},
		},
		baseURL: baseURL,
		limit:   limit,
	}, nil
}
