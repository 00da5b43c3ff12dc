package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smartcoophub/client-go/internal/apierrors"
)

// Default client settings.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// maxResponseBytes bounds how much of a response body is read into memory.
const maxResponseBytes = 32 << 20

// Client is the HTTP API client.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelay     time.Duration
	retry          *RetryConfig
	tokenSource    func() string
	onUnauthorized func()
	limiter        *rate.Limiter
	logger         *zap.Logger
	userAgent      string
}

// Config is the struct form of client configuration.
type Config struct {
	// BaseURL is the configured origin; it is normalized to end in /api.
	BaseURL string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
	// Timeout applies to the default client only. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxRetries is the number of 429 retries. Zero means DefaultMaxRetries;
	// negative disables retries.
	MaxRetries int
	// RetryDelay is the linear backoff unit. Zero means DefaultRetryDelay.
	RetryDelay time.Duration
	// TokenSource returns the current bearer token, or "" for none.
	TokenSource func() string
	// OnUnauthorized is invoked on every 401 response.
	OnUnauthorized func()
	// Limiter paces outbound attempts when set.
	Limiter *rate.Limiter
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// UserAgent is sent when non-empty.
	UserAgent string
}

// NewClient creates a client from a Config.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	c := &Client{
		baseURL:        NormalizeBaseURL(cfg.BaseURL),
		httpClient:     cfg.HTTPClient,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		tokenSource:    cfg.TokenSource,
		onUnauthorized: cfg.OnUnauthorized,
		limiter:        cfg.Limiter,
		logger:         cfg.Logger,
		userAgent:      cfg.UserAgent,
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	switch {
	case c.maxRetries == 0:
		c.maxRetries = DefaultMaxRetries
	case c.maxRetries < 0:
		c.maxRetries = 0
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	c.retry = DefaultRetryConfig()
	c.retry.MaxRetries = c.maxRetries
	c.retry.BaseDelay = c.retryDelay
	return c, nil
}

// Option configures the API client.
type Option func(*Config)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithRetries sets the number of 429 retries.
func WithRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithRetryDelay sets the linear backoff unit.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) {
		c.RetryDelay = d
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithTokenSource sets the bearer token source.
func WithTokenSource(fn func() string) Option {
	return func(c *Config) {
		c.TokenSource = fn
	}
}

// WithUnauthorizedHandler sets the hook run on every 401 response.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Config) {
		c.OnUnauthorized = fn
	}
}

// WithRateLimiter paces outbound attempts.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Config) {
		c.Limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// New creates a new API client using functional options.
func New(opts ...Option) (*Client, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one API call.
type Request struct {
	Method string
	// Path is relative to the base URL, e.g. "/products".
	Path   string
	Query  url.Values
	Header http.Header
	// Body is JSON-encoded. Mutually exclusive with Form.
	Body any
	// Form is sent as multipart/form-data. Mutually exclusive with Body.
	Form *Form
}

// preparedBody is a request body encoded once and replayed on each attempt.
type preparedBody struct {
	data        []byte
	contentType string
}

func prepareBody(r *Request) (*preparedBody, error) {
	switch {
	case r.Body != nil && r.Form != nil:
		return nil, fmt.Errorf("request cannot have both a JSON body and a form")
	case r.Form != nil:
		data, contentType, err := r.Form.encode()
		if err != nil {
			return nil, err
		}
		return &preparedBody{data: data, contentType: contentType}, nil
	case r.Body != nil:
		if raw, ok := r.Body.(json.RawMessage); ok {
			return &preparedBody{data: raw, contentType: "application/json"}, nil
		}
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return &preparedBody{data: data, contentType: "application/json"}, nil
	}
	return &preparedBody{contentType: "application/json"}, nil
}

// Do executes the request. Responses with status 429 are retried; every
// other outcome is returned to the caller as-is.
func (c *Client) Do(ctx context.Context, r *Request) (*Envelope, error) {
	if r == nil {
		return nil, fmt.Errorf("request is nil")
	}
	body, err := prepareBody(r)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := c.newHTTPRequest(ctx, r, body, requestID)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &apierrors.NetworkError{Err: err, URL: req.URL.String(), Attempt: attempt + 1}
		}

		if c.retry.ShouldRetry(attempt, resp.StatusCode) {
			delay := c.retry.Delay(attempt+1, resp.Header.Get("Retry-After"))
			drain(resp)
			c.logger.Warn("rate limited, retrying",
				zap.String("method", req.Method),
				zap.String("path", r.Path),
				zap.Int("retry", attempt+1),
				zap.Int("remaining", c.retry.MaxRetries-attempt-1),
				zap.Duration("delay", delay),
				zap.String("request_id", requestID))
			if err := c.retry.Wait(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		return c.handleResponse(resp, requestID)
	}
}

// DoJSON executes the request and decodes the envelope's data into out.
func (c *Client) DoJSON(ctx context.Context, r *Request, out any) (*Envelope, error) {
	env, err := c.Do(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := Decode(env, out); err != nil {
		return env, err
	}
	return env, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, r *Request, body *preparedBody, requestID string) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	var bodyReader io.Reader
	if len(body.data) > 0 {
		bodyReader = bytes.NewReader(body.data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", body.contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("X-Request-ID", requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.tokenSource != nil {
		if token := c.tokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) handleResponse(resp *http.Response, requestID string) (*Envelope, error) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.unauthorized(requestID)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &apierrors.NetworkError{Err: fmt.Errorf("read response: %w", err), URL: resp.Request.URL.String()}
	}

	if id := resp.Header.Get("X-Request-ID"); id != "" {
		requestID = id
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseErrorResponse(resp.StatusCode, resp.Header.Get("Content-Type"), data, requestID)
	}
	return decodeEnvelope(resp.StatusCode, resp.Header.Get("Content-Type"), data)
}

func (c *Client) unauthorized(requestID string) {
	c.logger.Info("received 401, tearing down session", zap.String("request_id", requestID))
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
}
