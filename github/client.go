// Package github is a small GitHub REST client for the endpoints the dashboard reads.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL    = "https://api.github.com"
	DefaultUserAgent = "Dashboard-for-GitHub"
	apiVersion       = "2022-11-28"
	defaultTimeout   = 30 * time.Second
)

// User is the subset of GET /user the service keeps.
type User struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type searchResponse struct {
	TotalCount int               `json:"total_count"`
	Items      []json.RawMessage `json:"items"`
}

// Client calls the GitHub API on behalf of an account. All requests share one rate
// limiter so a bulk refresh cannot burst past the configured request rate.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit paces requests to rps per second. Zero or negative disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultAPIURL,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// User fetches the authenticated account's profile.
func (c *Client) User(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.getJSON(ctx, accessToken, "/user", nil, &u); err != nil {
		return nil, err
	}
	if u.Login == "" {
		return nil, fmt.Errorf("%w: profile has no login", errors.ErrGitHubAPI)
	}
	return &u, nil
}

// ListPage fetches one page of a listing endpoint such as /user/repos. Items are
// returned as raw JSON in provider order.
func (c *Client) ListPage(ctx context.Context, accessToken, path string, query url.Values, page, perPage int) ([]json.RawMessage, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))

	var items []json.RawMessage
	if err := c.getJSON(ctx, accessToken, path, q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SearchIssues runs an issue search query and returns the first page of items.
func (c *Client) SearchIssues(ctx context.Context, accessToken, query string, perPage int) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("per_page", strconv.Itoa(perPage))

	var resp searchResponse
	if err := c.getJSON(ctx, accessToken, "/search/issues", q, &resp); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		return []json.RawMessage{}, nil
	}
	return resp.Items, nil
}

func (c *Client) getJSON(ctx context.Context, accessToken, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", errors.ErrGitHubAPI, err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", errors.ErrGitHubAPI, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.authorized(ctx, accessToken).Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", errors.ErrGitHubAPI, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", errors.ErrGitHubAPI, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s: status %d", errors.ErrGitHubAPI, path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", errors.ErrGitHubAPI, path, err)
	}
	return nil
}

// authorized wraps the base client with a bearer token transport.
func (c *Client) authorized(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	hc.Timeout = c.httpClient.Timeout
	return hc
}
