package trello

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public Trello REST API root.
const DefaultBaseURL = "https://api.trello.com/1"

// SinceLayout is the ISO-8601 form sent as the "since" parameter.
const SinceLayout = "2006-01-02T15:04:05.000Z07:00"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 1024

// Client is an authenticated Trello API client.
type Client struct {
	baseURL    string
	key        string
	token      string
	limit      int
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if u := strings.TrimRight(strings.TrimSpace(baseURL), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the underlying HTTP client. Timeouts and TLS policy
// belong to it.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimit sets the "limit" parameter of action requests. Zero leaves the
// API default.
func WithLimit(limit int) ClientOption {
	return func(c *Client) {
		c.limit = limit
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client authenticating with key and token.
func NewClient(key, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		key:        key,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an authenticated GET on endpoint and decodes the JSON
// response into out. The key and token are added to params verbatim.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) error {
	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("key", c.key)
	q.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("trello %s: build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UnavailableError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("trello request", "endpoint", endpoint, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UnavailableError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UnavailableError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("trello %s: decode response: %w", endpoint, err)
	}
	return nil
}

// BoardActions returns the board's actions of the given types that happened
// after since, newest first, with display entities resolved.
//
// An empty types set yields an empty page without a request: an empty
// filter would make the API fall back to its default type set.
func (c *Client) BoardActions(ctx context.Context, boardID string, since time.Time, types []string) ([]Action, error) {
	if len(types) == 0 {
		return []Action{}, nil
	}
	if strings.TrimSpace(boardID) == "" {
		return nil, fmt.Errorf("trello: board id is required")
	}

	sorted := append([]string(nil), types...)
	sort.Strings(sorted)

	params := url.Values{}
	params.Set("since", since.UTC().Format(SinceLayout))
	params.Set("filter", strings.Join(sorted, ","))
	params.Set("display", "true")
	if c.limit > 0 {
		params.Set("limit", strconv.Itoa(c.limit))
	}

	var actions []Action
	if err := c.Get(ctx, "/boards/"+url.PathEscape(boardID)+"/actions", params, &actions); err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []Action{}
	}
	return actions, nil
}
