package coophub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smartcoophub/client-go/internal/api"
	"github.com/smartcoophub/client-go/internal/cache"
	"github.com/smartcoophub/client-go/internal/realtime"
	"github.com/smartcoophub/client-go/internal/session"
)

// Client is the Cooperative Hub API client. It is safe for concurrent use.
type Client struct {
	apiClient *api.Client
	session   *session.Session
	navigator Navigator
	logger    *zap.Logger
	validate  *validator

	categories *cache.ReadThrough[[]Category]
	trending   *cache.ReadThrough[[]Product]

	// Chat socket, created on first ConnectChat.
	socketMu sync.Mutex
	socket   *realtime.Socket
	subs     *subscriptionManager

	mu     sync.RWMutex
	closed bool
}

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(cfg *clientConfig, tokenSource func() string, onUnauthorized func()) (*api.Client, error) {
	apiOpts := []api.Option{
		api.WithBaseURL(cfg.resolveBaseURL()),
		api.WithTokenSource(tokenSource),
		api.WithUnauthorizedHandler(onUnauthorized),
		api.WithLogger(cfg.logger.Named("api")),
	}
	if cfg.timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.timeout))
	}
	if cfg.retries != 0 {
		apiOpts = append(apiOpts, api.WithRetries(cfg.retries))
	}
	if cfg.retryDelay > 0 {
		apiOpts = append(apiOpts, api.WithRetryDelay(cfg.retryDelay))
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}
	if cfg.userAgent != "" {
		apiOpts = append(apiOpts, api.WithUserAgent(cfg.userAgent))
	}
	if cfg.rateLimit > 0 {
		burst := cfg.rateBurst
		if burst < 1 {
			burst = 1
		}
		apiOpts = append(apiOpts, api.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.rateLimit), burst)))
	}
	return api.New(apiOpts...)
}

// New creates a client. Without options it targets the development backend
// and keeps the session in memory.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		environment: Development,
		timeout:     defaultTimeout,
		cacheTTL:    cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	switch cfg.environment {
	case Development, Production:
	default:
		return nil, fmt.Errorf("unknown environment %q", cfg.environment)
	}

	c := &Client{
		session:    session.New(cfg.store),
		navigator:  cfg.navigator,
		logger:     cfg.logger,
		validate:   newValidator(),
		categories: cache.New[[]Category](cfg.cacheTTL),
		trending:   cache.New[[]Product](cfg.cacheTTL),
		subs:       newSubscriptionManager(),
	}

	apiClient, err := buildAPIClient(cfg, c.session.Token, c.handleUnauthorized)
	if err != nil {
		return nil, err
	}
	c.apiClient = apiClient
	return c, nil
}

// BaseURL returns the normalized REST base URL, ending in /api.
func (c *Client) BaseURL() string {
	return c.apiClient.BaseURL()
}

// Token returns the current bearer token, or "" when signed out.
func (c *Client) Token() string {
	return c.session.Token()
}

// SetToken replaces the bearer token, e.g. one restored from elsewhere.
func (c *Client) SetToken(token string) error {
	return c.session.SetToken(token)
}

// IsAuthenticated reports whether a token is stored.
func (c *Client) IsAuthenticated() bool {
	return c.session.Token() != ""
}

// StoredUser returns the user record saved at sign-in, without a request.
func (c *Client) StoredUser() (*User, error) {
	var u User
	ok, err := c.session.User(&u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

// checkClosed returns ErrClientClosed if the client has been closed.
func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// handleUnauthorized tears down the session after any 401. Concurrent calls
// are harmless: clearing twice is a no-op and navigation is skipped once
// the navigator is already on the login route.
func (c *Client) handleUnauthorized() {
	if err := c.session.Clear(); err != nil {
		c.logger.Warn("failed to clear session", zap.Error(err))
	}
	if c.navigator != nil && !onLoginRoute(c.navigator.Location()) {
		c.navigator.Navigate(LoginPath)
	}
}

// Request sends an arbitrary API call. path is relative to the base URL.
// body may be nil, a *Form for multipart uploads, or any JSON-encodable
// value. When out is non-nil the envelope's data is decoded into it.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) (*Envelope, error) {
	req := &api.Request{Method: method, Path: path}
	if form, ok := body.(*Form); ok {
		req.Form = form
	} else {
		req.Body = body
	}
	return c.do(ctx, req, out)
}

func (c *Client) do(ctx context.Context, req *api.Request, out any) (*Envelope, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	env, err := c.apiClient.DoJSON(ctx, req, out)
	if err != nil {
		return env, wrapError(err)
	}
	return env, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (*Envelope, error) {
	return c.do(ctx, &api.Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) (*Envelope, error) {
	return c.do(ctx, &api.Request{Method: method, Path: path, Body: body}, out)
}

// InvalidateCaches drops cached categories and trending products.
func (c *Client) InvalidateCaches() {
	c.categories.Purge()
	c.trending.Purge()
}

// Close stops the chat socket and drops subscriptions. Further calls
// return ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.subs.clear()

	c.socketMu.Lock()
	socket := c.socket
	c.socket = nil
	c.socketMu.Unlock()
	if socket != nil {
		return socket.Stop()
	}
	return nil
}

// pathf builds a path with escaped segments.
func pathf(format string, ids ...string) string {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = url.PathEscape(strings.TrimSpace(id))
	}
	return fmt.Sprintf(format, args...)
}
