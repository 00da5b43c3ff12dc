package coophub

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartcoophub/client-go/internal/session"
)

// Environment selects the default backend origin.
type Environment string

const (
	// Development targets a backend on localhost.
	Development Environment = "development"
	// Production targets the hosted backend.
	Production Environment = "production"
)

// Default origins per environment. The client appends /api.
const (
	DevelopmentOrigin = "http://localhost:5000"
	ProductionOrigin  = "https://api.smartcoophub.app"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultTrendingLimit = 8
)

// Store persists session values (token, user record, preferences).
type Store = session.Store

// NewMemoryStore returns a Store that lives only as long as the process.
func NewMemoryStore() Store {
	return session.NewMemoryStore()
}

// OpenFileStore returns a Store persisted as a JSON file with 0600 permissions.
func OpenFileStore(path string) (Store, error) {
	return session.OpenFileStore(path)
}

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL     string
	environment Environment
	httpClient  *http.Client
	timeout     time.Duration
	retries     int
	retryDelay  time.Duration
	store       Store
	navigator   Navigator
	logger      *zap.Logger
	userAgent   string
	cacheTTL    time.Duration

	// Outbound pacing; zero rate disables it.
	rateLimit float64
	rateBurst int
}

// Option configures the client.
type Option func(*clientConfig)

// WithBaseURL sets the backend origin. A trailing /api is optional.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithEnvironment picks the default origin used when no base URL is set.
func WithEnvironment(env Environment) Option {
	return func(c *clientConfig) {
		c.environment = env
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets how many times a 429 response is retried.
// Default: 3. Negative disables retries.
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithRetryDelay sets the backoff unit between 429 retries when the server
// sends no Retry-After. The n-th retry waits n times this. Default: 500ms.
func WithRetryDelay(d time.Duration) Option {
	return func(c *clientConfig) {
		c.retryDelay = d
	}
}

// WithStore sets where the session is persisted. Default: in memory.
func WithStore(store Store) Option {
	return func(c *clientConfig) {
		c.store = store
	}
}

// WithNavigator sets the hook that is sent to /login when the session expires.
func WithNavigator(nav Navigator) Option {
	return func(c *clientConfig) {
		c.navigator = nav
	}
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithRateLimit paces outbound requests to perSecond with the given burst.
// A non-positive perSecond disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *clientConfig) {
		c.rateLimit = perSecond
		c.rateBurst = burst
	}
}

// WithCacheTTL sets how long categories and trending products are cached.
// Default: 5 minutes.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *clientConfig) {
		c.cacheTTL = ttl
	}
}

// resolveBaseURL returns the explicit origin, else the environment default.
func (c *clientConfig) resolveBaseURL() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	if c.environment == Production {
		return ProductionOrigin
	}
	return DevelopmentOrigin
}
