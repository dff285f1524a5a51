package request

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wandermap/pkg/cache"
	"wandermap/pkg/config"
	"wandermap/pkg/db"
	"wandermap/pkg/tracker"
)

func testConfig() config.RequestConfig {
	return config.RequestConfig{
		Retries: 3,
		Timeout: config.Duration(5 * time.Second),
		Backoff: config.BackoffConfig{
			BaseDelay: config.Duration(10 * time.Millisecond),
			MaxDelay:  config.Duration(50 * time.Millisecond),
		},
	}
}

func newTestClient(t *testing.T) (*Client, *tracker.Tracker) {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "client_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	tr := tracker.New()
	return New(cache.NewSQLiteCache(d), tr, testConfig()), tr
}

func TestGet_Sequential(t *testing.T) {
	var conc int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&conc, 1)
		defer atomic.AddInt32(&conc, -1)
		if current > 1 {
			t.Errorf("Concurrency detected! Expected sequential.")
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	defer svr.Close()

	client, _ := newTestClient(t)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Get(context.Background(), svr.URL, ""); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestGet_Retry(t *testing.T) {
	var attempts int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer svr.Close()

	client, _ := newTestClient(t)
	body, err := client.Get(context.Background(), svr.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "success", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestGet_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(*testing.T, error)
	}{
		{
			name:   "NotFound_NoRetry",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusNotFound, se.Code)
			},
		},
		{
			name:   "ServerError_Exhausted",
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrRetriesExhausted))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer svr.Close()

			client, tr := newTestClient(t)
			_, err := client.Get(context.Background(), svr.URL, "")
			require.Error(t, err)
			tt.check(t, err)

			host := normalizeHost(svr.Listener.Addr().String())
			assert.Equal(t, int64(1), tr.Snapshot()[host].Failures)
		})
	}
}

func TestGet_CachesBody(t *testing.T) {
	var hits int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Contains(t, r.Header.Get("User-Agent"), "wandermap/")
		_, _ = w.Write([]byte(`{"type":"Topology"}`))
	}))
	defer svr.Close()

	client, tr := newTestClient(t)
	ctx := context.Background()

	first, err := client.Get(ctx, svr.URL, "topology:test")
	require.NoError(t, err)

	second, err := client.Get(ctx, svr.URL, "topology:test")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	host := normalizeHost(svr.Listener.Addr().String())
	assert.Equal(t, int64(1), tr.Snapshot()[host].CacheHits)
	assert.Equal(t, int64(1), tr.Snapshot()[host].CacheMisses)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestInvalidate(t *testing.T) {
	var hits int32
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer svr.Close()

	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Get(ctx, svr.URL, "topology:test")
	require.NoError(t, err)
	require.NoError(t, client.Invalidate(ctx, "topology:test"))
	_, err = client.Get(ctx, svr.URL, "topology:test")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	assert.NoError(t, client.Invalidate(ctx, ""))
}

func TestGet_ContextCancelled(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer svr.Close()

	client, _ := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, svr.URL, "")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGet_InvalidURL(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Get(context.Background(), "://bad", "")
	assert.Error(t, err)
}
