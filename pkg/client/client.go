// Package client provides the HTTP client for the user API, with retries,
// error classification, an optional Redis response cache and an optional
// shared request gate.
package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/user-console/pkg/cache"
	"github.com/Sternrassler/user-console/pkg/ratelimit"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client talks to the user API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	cache      *cache.Manager
	gate       *ratelimit.Tracker
	validate   *validator.Validate
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the user API address, e.g. "http://127.0.0.1:5000".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Redis enables the response cache and the request gate. Optional.
	Redis *redis.Client

	// RateLimit is the number of requests per second shared by every
	// console instance on the same Redis. 0 disables the gate.
	RateLimit int

	Retry RetryConfig
}

// DefaultConfig returns a configuration for the user API at baseURL,
// without cache or gate.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "user-console/0.1.0",
		Timeout:   10 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a user API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %d)", cfg.RateLimit)
	}

	logger := log.With().Str("component", "user-client").Logger()

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		validate:   validator.New(),
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
		c.gate = ratelimit.NewTracker(cfg.Redis, cfg.RateLimit, logger.With().Str("component", "gate").Logger())
	}

	return c, nil
}

// Do performs an HTTP request against the user API. Fresh cached GET
// responses are served without a request; stale ones are revalidated.
// Requests carrying "Cache-Control: no-cache" bypass the cache.
// Non-2xx responses are returned as-is for the caller to interpret; the
// error is non-nil only when no response could be obtained.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: cache
	useCache := c.cache != nil && req.Method == http.MethodGet && req.Header.Get("Cache-Control") != "no-cache"
	cacheKey := cache.Key{Endpoint: endpoint, Query: req.URL.Query()}

	var cached *cache.Entry
	if useCache {
		entry, err := c.cache.Lookup(ctx, cacheKey)
		switch {
		case err == nil && !entry.IsExpired():
			cache.CacheHits.Inc()
			apiRequestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			c.logger.Debug().Str("endpoint", endpoint).Msg("Serving from cache")
			return cache.EntryToResponse(entry), nil
		case err == nil:
			cached = entry
			if cache.ShouldMakeConditionalRequest(entry) {
				cache.AddConditionalHeaders(req, entry)
				cache.ConditionalRequestsSent.Inc()
				c.logger.Debug().
					Str("endpoint", endpoint).
					Str("etag", entry.ETag).
					Msg("Making conditional request")
			}
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache lookup failed")
		}
	}

	// Step 2: request gate
	allowed, err := c.gate.ShouldAllowRequest(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request cancelled", Err: ctxErr}
		}
		c.logger.Warn().Err(err).Msg("Request gate check failed - continuing without it")
	} else if !allowed {
		apiRequestsTotal.WithLabelValues(endpoint, "blocked").Inc()
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request not sent", Err: ErrRequestBlocked}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	// Step 3: request with retries
	retry := c.config.Retry
	if !isIdempotent(req.Method) {
		retry.MaxAttempts = 1
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing user API request")

	var resp *http.Response
	attempt := 0

	retryErr := retryWithBackoff(ctx, retry, func() (ErrorClass, error) {
		attempt++
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return "", fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(req)
		if reqErr != nil {
			resp = nil
			apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(reqErr).Str("endpoint", endpoint).Msg("User API request failed")
			return ErrorClassNetwork, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: reqErr}
		}

		apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		errClass := classifyStatus(resp.StatusCode)
		if errClass == "" {
			return "", nil
		}

		apiErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("User API returned an error status")

		if shouldRetry(errClass) && attempt < retry.MaxAttempts {
			resp.Body.Close()
			return errClass, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: errClass,
				Message:    http.StatusText(resp.StatusCode),
			}
		}

		// Final answer: the caller decides what the status means.
		return "", nil
	})
	if retryErr != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, retryErr
	}

	// Step 4: revalidated
	if resp.StatusCode == http.StatusNotModified && cached != nil {
		resp.Body.Close()
		cache.NotModifiedResponses.Inc()

		newExpires := time.Now().Add(cache.DefaultTTL)
		if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
			if t, err := http.ParseTime(expiresStr); err == nil {
				newExpires = t
			}
		}
		cached.Expires = newExpires
		if err := c.cache.Set(ctx, cacheKey, cached); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}

		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		return cache.EntryToResponse(cached), nil
	}

	// Step 5: store fresh listings
	if useCache && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// isIdempotent reports whether a request may be sent more than once.
func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// BaseURL returns the configured user API address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Close releases idle connections. The Redis client belongs to the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil without Redis (for testing).
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
