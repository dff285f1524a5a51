package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker counts fetches per upstream host.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*HostStats
}

// HostStats holds the counters for one host. Fields are accessed atomically.
type HostStats struct {
	CacheHits    int64 `json:"cache_hits"`
	CacheMisses  int64 `json:"cache_misses"`
	Success      int64 `json:"success"`
	Failures     int64 `json:"failures"`
	BytesFetched int64 `json:"bytes_fetched"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*HostStats),
	}
}

func (t *Tracker) get(host string) *HostStats {
	t.mu.RLock()
	s, ok := t.stats[host]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[host]; ok {
		return s
	}
	s = &HostStats{}
	t.stats[host] = s
	return s
}

func (t *Tracker) TrackCacheHit(host string) {
	atomic.AddInt64(&t.get(host).CacheHits, 1)
}

func (t *Tracker) TrackCacheMiss(host string) {
	atomic.AddInt64(&t.get(host).CacheMisses, 1)
}

// TrackSuccess records a completed fetch of n bytes.
func (t *Tracker) TrackSuccess(host string, n int) {
	s := t.get(host)
	atomic.AddInt64(&s.Success, 1)
	atomic.AddInt64(&s.BytesFetched, int64(n))
}

func (t *Tracker) TrackFailure(host string) {
	atomic.AddInt64(&t.get(host).Failures, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]HostStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]HostStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = HostStats{
			CacheHits:    atomic.LoadInt64(&v.CacheHits),
			CacheMisses:  atomic.LoadInt64(&v.CacheMisses),
			Success:      atomic.LoadInt64(&v.Success),
			Failures:     atomic.LoadInt64(&v.Failures),
			BytesFetched: atomic.LoadInt64(&v.BytesFetched),
		}
	}
	return result
}
