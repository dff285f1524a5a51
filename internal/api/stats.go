package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"

	"wandermap/pkg/db"
	"wandermap/pkg/session"
	"wandermap/pkg/tracker"
	"wandermap/pkg/version"
)

// LoadHistory lists recent geometry loads.
type LoadHistory interface {
	LoadHistory(ctx context.Context, limit int) ([]db.LoadRecord, error)
}

type StatsHandler struct {
	tracker *tracker.Tracker
	mgr     *session.Manager
	history LoadHistory
}

func NewStatsHandler(t *tracker.Tracker, mgr *session.Manager, history LoadHistory) *StatsHandler {
	return &StatsHandler{tracker: t, mgr: mgr, history: history}
}

type HostStatsDTO struct {
	CacheHits    int64 `json:"cache_hits"`
	CacheMisses  int64 `json:"cache_misses"`
	Success      int64 `json:"success"`
	Failures     int64 `json:"failures"`
	BytesFetched int64 `json:"bytes_fetched"`
	HitRate      int64 `json:"hit_rate"`
}

type Diagnostics struct {
	MemoryMB   uint64 `json:"memory_mb"`
	Goroutines int    `json:"goroutines"`
}

type StatsResponse struct {
	Version     string                  `json:"version"`
	Sessions    int                     `json:"sessions"`
	Diagnostics Diagnostics             `json:"diagnostics"`
	Hosts       map[string]HostStatsDTO `json:"hosts"`
	Loads       []db.LoadRecord         `json:"loads"`
}

const historyLimit = 10

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatsResponse{
		Version:  version.Version,
		Sessions: h.mgr.Len(),
		Diagnostics: Diagnostics{
			MemoryMB:   bToMb(mem.Alloc),
			Goroutines: runtime.NumGoroutine(),
		},
		Hosts: make(map[string]HostStatsDTO),
		Loads: []db.LoadRecord{},
	}

	for host, stats := range h.tracker.Snapshot() {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		resp.Hosts[host] = HostStatsDTO{
			CacheHits:    stats.CacheHits,
			CacheMisses:  stats.CacheMisses,
			Success:      stats.Success,
			Failures:     stats.Failures,
			BytesFetched: stats.BytesFetched,
			HitRate:      hitRate,
		}
	}

	if h.history != nil {
		loads, err := h.history.LoadHistory(r.Context(), historyLimit)
		if err != nil {
			slog.Warn("Failed to read load history", "error", err)
		} else if loads != nil {
			resp.Loads = loads
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
