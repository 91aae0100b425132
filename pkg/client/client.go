// Package client provides the Placemark REST API client with bearer-token
// signing, conditional-request caching, rate limiting and error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/placemark-app/placemark-client/pkg/auth"
	"github.com/placemark-app/placemark-client/pkg/cache"
	"github.com/placemark-app/placemark-client/pkg/logging"
	"github.com/placemark-app/placemark-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for API client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placemark_requests_total",
		Help: "Total API requests by route and status",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "placemark_request_duration_seconds",
		Help:    "API request duration in seconds by route",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placemark_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Client is the Placemark API client.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	tokens      auth.TokenSource
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, e.g. "https://api.placemark.app" (REQUIRED)
	BaseURL string

	// User-Agent header (REQUIRED)
	// Format: "AppName/Version"
	UserAgent string

	// Timeout per HTTP attempt
	Timeout time.Duration

	// Redis enables the shared response cache and rate limit state (optional)
	Redis *redis.Client

	// Tokens signs requests with a bearer token (optional)
	Tokens auth.TokenSource

	// MaxRetries is the number of automatic retries for server, rate limit and
	// network errors. 0 surfaces every failure to the caller immediately.
	MaxRetries int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		Timeout:    30 * time.Second,
		MaxRetries: 0,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("base url scheme must be http or https, got %q", baseURL.Scheme)
	}
	if baseURL.Host == "" {
		return nil, fmt.Errorf("base url must have a host")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := logging.NewLogger("api-client")

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: baseURL,
		tokens:  cfg.Tokens,
		config:  cfg,
		logger:  logger,
	}

	if cfg.Redis != nil {
		c.rateLimiter = ratelimit.NewTracker(cfg.Redis, logger)
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// Do performs an HTTP request with rate limiting, signing, caching and retries.
//
// Responses with status >= 400 that are not retried are returned to the caller
// unchanged. Retriable failures that remain after MaxRetries are returned as
// errors wrapping *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	endpoint := req.URL.Path
	route := routeLabel(endpoint)

	requestID := uuid.NewString()
	ctx := logging.WithRequestID(req.Context(), c.logger.With().Str("endpoint", endpoint).Logger(), requestID)
	req = req.WithContext(ctx)
	logger := logging.FromContext(ctx)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(route).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check Rate Limit
	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Rate limit check failed")
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			logger.Warn().Msg("Request blocked by rate limiter")
			requestsTotal.WithLabelValues(route, "rate_limited").Inc()
			return nil, ErrRateLimited
		}
	}

	// Step 2: Sign
	token := ""
	if c.tokens != nil {
		var err error
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("get access token: %w", err)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Step 3: Check Cache
	cacheable := c.cache != nil && req.Method == http.MethodGet
	cacheKey := cache.CacheKey{
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
		Principal:   cache.Fingerprint(token),
	}

	var cachedEntry *cache.CacheEntry
	if cacheable {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && err != cache.ErrCacheMiss {
			logger.Warn().Err(err).Msg("Cache get error")
		}
		cachedEntry = entry
	}

	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		logger.Debug().Str("etag", cachedEntry.ETag).Msg("Making conditional request")
	}

	// Step 4: Headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	logger.Debug().Str("method", req.Method).Msg("Executing API request")

	// Step 5: Execute with retry
	var resp *http.Response
	var errClass ErrorClass

	retryErr := retryWithBackoff(ctx, c.config.MaxRetries+1, func() error {
		var reqErr error
		resp, reqErr = c.httpClient.Do(req)

		if reqErr != nil {
			if ctx.Err() != nil {
				// Cancelled by the caller, not a transport failure.
				errClass = ""
				return ctx.Err()
			}
			errClass = ErrorClassNetwork
			errorsTotal.WithLabelValues(string(errClass)).Inc()
			requestsTotal.WithLabelValues(route, "network_error").Inc()
			logger.Warn().Err(reqErr).Msg("HTTP request failed")
			return &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				RequestID:  requestID,
				Err:        reqErr,
			}
		}

		if c.rateLimiter != nil {
			if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.StatusCode, resp.Header); err != nil {
				logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
			}
		}

		requestsTotal.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusNotModified {
			return nil
		}

		if resp.StatusCode >= 400 {
			errClass = classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()

			logger.Warn().
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("API request error")

			if shouldRetry(errClass) {
				return newAPIError(resp, errClass, requestID)
			}

			// Not retried: the caller reads the status and body
			return nil
		}

		return nil
	}, func(error) ErrorClass {
		return errClass
	})

	if retryErr != nil {
		return nil, retryErr
	}

	// Step 6: Rejected token, evict the session's pages
	if resp.StatusCode == http.StatusUnauthorized && c.cache != nil && token != "" {
		n, err := c.cache.DeletePrincipal(ctx, cacheKey.Principal)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to evict pages of rejected session")
		} else {
			logger.Info().Int("evicted", n).Msg("Token rejected - evicted cached pages of the session")
		}
	}

	// Step 7: 304 Not Modified
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		logger.Debug().Dur("age", cachedEntry.Age()).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()

		if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
			if newExpires, err := http.ParseTime(expiresStr); err == nil {
				if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
					logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	// Step 8: Update cache on success
	if cacheable && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if entry.Revalidatable() && entry.TTL() > 0 {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				logger.Debug().Dur("ttl", entry.TTL()).Msg("Cached response")
			}
		}
	}

	return resp, nil
}

// Get performs a GET request to an API path.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// GetJSON performs a GET request and decodes the JSON body into out.
// Status codes >= 400 are returned as *APIError.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return newAPIError(resp, classifyStatus(resp.StatusCode), resp.Request.Header.Get(RequestIDHeader))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

// resolve joins path onto the base URL and attaches query.
func (c *Client) resolve(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()
	return u.String()
}

// Close closes idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil without Redis.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

// routeLabel replaces numeric path segments so metrics stay low-cardinality.
// "/folders/12/places" becomes "/folders/:id/places".
func routeLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s == "" {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
