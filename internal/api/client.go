package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rickgao/mediaroute/internal/router"
)

// Client talks to a mediaroute daemon's provider API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a provider API client. token may be empty.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: 200 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func routePath(routeID string, suffix string) string {
	return "/v1/routes/" + url.PathEscape(routeID) + suffix
}

// SendText queues a text message on routeID.
func (c *Client) SendText(ctx context.Context, routeID, text string) error {
	_, err := c.doWithRetry(ctx, http.MethodPost, routePath(routeID, "/messages"),
		"text/plain; charset=utf-8", []byte(text))
	return err
}

// SendBinary queues a binary message on routeID.
func (c *Client) SendBinary(ctx context.Context, routeID string, data []byte) error {
	_, err := c.doWithRetry(ctx, http.MethodPost, routePath(routeID, "/messages"),
		ContentTypeBinary, data)
	return err
}

// Listen asks the daemon to deliver routeID.
func (c *Client) Listen(ctx context.Context, routeID string) error {
	_, err := c.doWithRetry(ctx, http.MethodPut, routePath(routeID, "/listen"), "", nil)
	return err
}

// StopListening asks the daemon to stop delivering routeID.
func (c *Client) StopListening(ctx context.Context, routeID string) error {
	_, err := c.doWithRetry(ctx, http.MethodDelete, routePath(routeID, "/listen"), "", nil)
	return err
}

// RemoveRoute drops routeID and its backlog.
func (c *Client) RemoveRoute(ctx context.Context, routeID string) error {
	_, err := c.doWithRetry(ctx, http.MethodDelete, routePath(routeID, ""), "", nil)
	return err
}

// Stats fetches the sender statistics.
func (c *Client) Stats(ctx context.Context) (*router.Stats, error) {
	var resp router.Stats
	if err := c.get(ctx, "/v1/stats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health fetches the daemon health report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
