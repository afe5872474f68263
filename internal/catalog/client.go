// Package catalog queries the Google Books catalog and the Open Library
// author service, with retries, rate limiting and response caching.
package catalog

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/shelf/internal/cache"
	"github.com/lepinkainen/shelf/internal/ratelimit"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCatalogURL    = "https://www.googleapis.com/books/v1"
	defaultAuthorsURL    = "https://openlibrary.org"
	defaultCoversURL     = "https://covers.openlibrary.org"
	defaultUserAgent     = "shelf/1.0 (e-book library organizer; +https://github.com/lepinkainen/shelf)"
	defaultMaxAttempts   = 3
	defaultBaseDelay     = time.Second
	defaultMaxDelay      = 30 * time.Second
	defaultMinImageBytes = 1000
	defaultRatePerSecond = 2
	defaultTimeout       = 15 * time.Second
	maxBodyBytes         = 20 << 20
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the remote catalog and author-photo services.
type Client struct {
	apiKey        string
	catalogURL    string
	authorsURL    string
	coversURL     string
	userAgent     string
	httpClient    HTTPDoer
	rateLimiter   *ratelimit.Limiter
	cache         *cache.Cache
	maxAttempts   int
	baseDelay     time.Duration
	minImageBytes int
	sleep         func(ctx context.Context, d time.Duration) error
	group         singleflight.Group
}

// NewClient creates a catalog client. apiKey may be empty.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:        strings.TrimSpace(apiKey),
		catalogURL:    defaultCatalogURL,
		authorsURL:    defaultAuthorsURL,
		coversURL:     defaultCoversURL,
		userAgent:     defaultUserAgent,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		rateLimiter:   ratelimit.New("catalog", defaultRatePerSecond),
		maxAttempts:   defaultMaxAttempts,
		baseDelay:     defaultBaseDelay,
		minImageBytes: defaultMinImageBytes,
		sleep:         sleepContext,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithCatalogURL sets the base URL of the book search API.
func WithCatalogURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.catalogURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithAuthorsURL sets the base URL of the author search API.
func WithAuthorsURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.authorsURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithCoversURL sets the base URL author photos are fetched from.
func WithCoversURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.coversURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithBaseURLs points the client at alternate catalog, author search and
// cover hosts. Empty values keep the current setting.
func WithBaseURLs(catalogURL, authorsURL, coversURL string) Option {
	return func(client *Client) {
		WithCatalogURL(catalogURL)(client)
		WithAuthorsURL(authorsURL)(client)
		WithCoversURL(coversURL)(client)
	}
}

// WithRetry sets the total number of attempts per request and the delay
// before the first retry. Later retries double the delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(client *Client) {
		if maxAttempts > 0 {
			client.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			client.baseDelay = baseDelay
		}
	}
}

// WithRateLimiter replaces the default limiter. nil disables throttling.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		client.rateLimiter = limiter
	}
}

// WithCache stores lookups and downloads in c.
func WithCache(c *cache.Cache) Option {
	return func(client *Client) {
		client.cache = c
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		if ua != "" {
			client.userAgent = ua
		}
	}
}

// WithMinImageBytes sets the size under which author photos are treated
// as placeholders.
func WithMinImageBytes(n int) Option {
	return func(client *Client) {
		if n >= 0 {
			client.minImageBytes = n
		}
	}
}

func (c *Client) cacheGet(key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *Client) cachePut(key string, value []byte) {
	if c.cache != nil {
		c.cache.Put(key, value)
	}
}
