package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"wandermap/pkg/cache"
	"wandermap/pkg/config"
	"wandermap/pkg/tracker"
	"wandermap/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("wandermap/%s (visited-countries map)", version.Version)

// StatusError is returned for non-retryable HTTP error responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d from %s", e.Code, e.URL)
}

// ErrRetriesExhausted is returned when every attempt hit a retryable failure.
var ErrRetriesExhausted = errors.New("max retries exceeded")

// Client fetches upstream payloads with per-host queuing, caching and tracking.
type Client struct {
	httpClient  *http.Client
	cache       cache.Cacher
	tracker     *tracker.Tracker
	backoff     *ProviderBackoff
	maxAttempts int
	baseDelay   time.Duration
	gap         time.Duration

	// One queue and worker per host
	queues map[string]chan job
	mu     sync.Mutex
}

type job struct {
	req      *http.Request
	cacheKey string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client.
func New(c cache.Cacher, t *tracker.Tracker, cfg config.RequestConfig) *Client {
	attempts := cfg.Retries
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout.D()},
		cache:       c,
		tracker:     t,
		backoff:     NewProviderBackoff(cfg.Backoff.BaseDelay.D(), cfg.Backoff.MaxDelay.D()),
		maxAttempts: attempts,
		baseDelay:   cfg.Backoff.BaseDelay.D(),
		gap:         100 * time.Millisecond,
		queues:      make(map[string]chan job),
	}
}

// Invalidate drops cacheKey so the next Get goes to the network. Caches
// without delete support are left alone.
func (c *Client) Invalidate(ctx context.Context, cacheKey string) error {
	d, ok := c.cache.(interface {
		DeleteCache(ctx context.Context, key string) error
	})
	if !ok || cacheKey == "" {
		return nil
	}
	return d.DeleteCache(ctx, cacheKey)
}

// Get performs a GET request. When cacheKey is set, a cached body is
// returned without touching the network and fresh bodies are stored.
func (c *Client) Get(ctx context.Context, u, cacheKey string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	host := normalizeHost(parsedURL.Host)

	if cacheKey != "" {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.tracker.TrackCacheHit(host)
			slog.Debug("Cache Hit", "host", host, "key", cacheKey)
			return val, nil
		}
		c.tracker.TrackCacheMiss(host)
		slog.Debug("Cache Miss", "host", host, "key", cacheKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	respChan := make(chan jobResult, 1)
	c.dispatch(host, job{req: req, cacheKey: cacheKey, respChan: respChan})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	if h, _, found := strings.Cut(host, ":"); found {
		host = h
	}
	host = strings.TrimPrefix(host, "www.")
	// CDN mirrors of the same packages share one queue
	if host == "unpkg.com" || strings.HasSuffix(host, ".jsdelivr.net") {
		return "npm-cdn"
	}
	return host
}

// dispatch hands the job to the host's queue, starting its worker on first use.
func (c *Client) dispatch(host string, j job) {
	c.mu.Lock()
	q, ok := c.queues[host]
	if !ok {
		q = make(chan job, 100)
		c.queues[host] = q
		go c.worker(host, q)
	}
	c.mu.Unlock()

	// A full queue throttles the caller
	select {
	case q <- j:
	case <-j.req.Context().Done():
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for one host sequentially.
func (c *Client) worker(host string, q <-chan job) {
	for j := range q {
		ctx := j.req.Context()
		if ctx.Err() != nil {
			slog.Warn("Job dropped from queue (context expired)", "host", host, "error", ctx.Err())
			j.respChan <- jobResult{err: ctx.Err()}
			continue
		}
		if err := c.backoff.Wait(ctx, host); err != nil {
			j.respChan <- jobResult{err: err}
			continue
		}

		body, err := c.executeWithBackoff(j.req)
		if err == nil {
			c.backoff.RecordSuccess(host)
			c.tracker.TrackSuccess(host, len(body))
			if j.cacheKey != "" {
				if err := c.cache.SetCache(context.Background(), j.cacheKey, body); err != nil {
					slog.Error("Failed to cache response", "url", j.req.URL, "error", err)
				}
			}
		} else if ctx.Err() == nil {
			c.backoff.RecordFailure(host)
			c.tracker.TrackFailure(host)
		}

		j.respChan <- jobResult{body: body, err: err}

		time.Sleep(c.gap)
	}
}

// executeWithBackoff retries network errors, 429 and 5xx with exponential delay.
func (c *Client) executeWithBackoff(req *http.Request) ([]byte, error) {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}

		slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)

		if err != nil {
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			slog.Warn("Request failed, retrying", "url", req.URL, "attempt", attempt+1, "error", err)
			if err := c.sleep(req.Context(), attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode < 600) {
			resp.Body.Close()
			slog.Warn("API Backoff", "status", resp.StatusCode, "url", req.URL, "attempt", attempt+1)
			if err := c.sleep(req.Context(), attempt); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}

	return nil, ErrRetriesExhausted
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	d := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
