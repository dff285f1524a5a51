// Package session hosts one interactive map: it owns the visit store, the
// search selection, the current color, pointer interaction and the
// geometry load, and fans redraw batches out to subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"wandermap/pkg/country"
	"wandermap/pkg/geometry"
	"wandermap/pkg/metrics"
	"wandermap/pkg/projection"
	"wandermap/pkg/render"
	"wandermap/pkg/visit"
)

var (
	// ErrNotFound is returned for unknown session IDs.
	ErrNotFound = errors.New("session not found")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrUnknownCode is returned when a search code has no country.
	ErrUnknownCode = errors.New("unknown country code")
)

// Options configure every session created by a Manager.
type Options struct {
	Source       geometry.Source
	Projection   projection.Params
	Margin       float64
	Exclude      []country.ID
	Style        render.Style
	DefaultColor string
	Trace        func(msg string, args ...any)
}

// Batch is one unit of redraw sent to subscribers. Full batches replace the
// whole surface; the others patch it.
type Batch struct {
	Revision uint64           `json:"revision" msgpack:"revision"`
	Full     bool             `json:"full" msgpack:"full"`
	Commands []render.Command `json:"commands" msgpack:"commands"`
}

// VisitedCountry is one row of the visited list.
type VisitedCountry struct {
	ID    country.ID `json:"id"`
	Name  string     `json:"name"`
	Color string     `json:"color"`
}

// Stats summarises the visit count.
type Stats struct {
	Visited int     `json:"visited"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// State reports where the geometry load stands.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
	StateClosed  State = "closed"
)

// Session is a single map host. All mutations and pointer events are
// serialised by mu: a mutation and its broadcast complete before the next
// input is handled.
type Session struct {
	id      string
	opts    Options
	created time.Time

	mu        sync.Mutex
	store     *visit.Store
	selection visit.Selection
	color     string
	geom      *geometry.Snapshot
	scene     *render.Scene
	loadErr   error
	inter     render.Interaction
	subs      map[*Subscription]struct{}
	started   bool
	closed    bool
	cancel    context.CancelFunc
	ready     chan struct{}
}

func newSession(id string, opts Options) *Session {
	if opts.Trace == nil {
		opts.Trace = func(string, ...any) {}
	}
	return &Session{
		id:      id,
		opts:    opts,
		created: time.Now(),
		store:   visit.NewStore(),
		color:   opts.DefaultColor,
		subs:    make(map[*Subscription]struct{}),
		ready:   make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Viewport returns the drawing surface size.
func (s *Session) Viewport() render.Viewport {
	return render.Viewport{Width: s.opts.Projection.Width, Height: s.opts.Projection.Height}
}

// Start begins the asynchronous geometry load. Calling it again is a no-op.
// The load ends when ctx is cancelled or the session is closed; a load that
// finishes after that leaves the session untouched.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.load(loadCtx)
}

func (s *Session) load(ctx context.Context) {
	defer close(s.ready)

	start := time.Now()
	snap, scene, err := s.build(ctx)
	metrics.GeometryLoadDurationMs.Observe(float64(time.Since(start).Milliseconds()))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || ctx.Err() != nil {
		slog.Debug("Session: load finished after teardown, discarding", "session", s.id)
		return
	}

	if err != nil {
		metrics.GeometryLoadsTotal.WithLabelValues(s.opts.Source.Name(), "error").Inc()
		slog.Error("Session: geometry load failed", "session", s.id, "error", err)
		s.loadErr = err
	} else {
		metrics.GeometryLoadsTotal.WithLabelValues(s.opts.Source.Name(), "ok").Inc()
		slog.Info("Session: map ready", "session", s.id, "countries", len(scene.Shapes()), "took", time.Since(start))
		s.geom = snap
		s.scene = scene
	}
	s.broadcastFullLocked()
}

func (s *Session) build(ctx context.Context) (*geometry.Snapshot, *render.Scene, error) {
	snap, err := s.opts.Source.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	m := projection.New(s.opts.Projection)
	scene, err := render.NewScene(snap, m, s.Viewport(), s.opts.Margin, s.opts.Exclude)
	if err != nil {
		return nil, nil, &geometry.LoadError{Source: s.opts.Source.Name(), Err: err}
	}
	return snap, scene, nil
}

// Wait blocks until the load finished, successfully or not, or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the load state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return StateClosed
	case s.loadErr != nil:
		return StateFailed
	case s.scene != nil:
		return StateReady
	default:
		return StateLoading
	}
}

// LoadErr returns the load failure, if any.
func (s *Session) LoadErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Close tears the session down: the pending load is cancelled, a visible
// tooltip is hidden and every subscription is released. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	if cmds := s.inter.Reset(); len(cmds) > 0 {
		s.broadcastLocked(Batch{Revision: s.store.Snapshot().Revision(), Commands: cmds})
	}
	for sub := range s.subs {
		sub.closeLocked()
	}
	s.subs = nil
	slog.Debug("Session: closed", "session", s.id)
}

// Color returns the color applied to new visits.
func (s *Session) Color() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.color
}

// Toggle marks id visited with the current color, or unmarks it.
func (s *Session) Toggle(id country.ID) (visit.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return visit.Snapshot{}, ErrClosed
	}
	return s.toggleLocked(id), nil
}

func (s *Session) toggleLocked(id country.ID) visit.Snapshot {
	snap := s.store.Toggle(id, s.color)
	metrics.VisitMutationsTotal.WithLabelValues("toggle").Inc()
	slog.Debug("Session: toggled", "session", s.id, "id", id, "visited", snap.Has(id))
	s.broadcastFullLocked()
	return snap
}

// SetColor changes the current color and recolors every visited country.
func (s *Session) SetColor(color string) (visit.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return visit.Snapshot{}, ErrClosed
	}
	s.color = color
	snap := s.store.Recolor(color)
	metrics.VisitMutationsTotal.WithLabelValues("recolor").Inc()
	s.broadcastFullLocked()
	return snap, nil
}

// SearchSelect handles a pick from the search widget: the alpha-3 code is
// translated to the canonical ID, which is toggled both in the visit store
// and in the search selection.
func (s *Session) SearchSelect(alpha3 string) (country.ID, error) {
	id, ok := country.FromAlpha3(alpha3)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCode, alpha3)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	s.selection = s.selection.Toggle(id)
	s.toggleLocked(id)
	return id, nil
}

// ClearSearch empties the search selection.
func (s *Session) ClearSearch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.selection = visit.Selection{}
	s.broadcastFullLocked()
	return nil
}

// Selection returns the current search selection.
func (s *Session) Selection() visit.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Frame renders the full surface including the current hover and tooltip.
func (s *Session) Frame() Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveBatchLocked()
}

// ExportFrame renders the full surface without transient pointer state.
func (s *Session) ExportFrame() Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullBatchLocked("")
}

func (s *Session) frameLocked(hover country.ID) render.Frame {
	return render.Frame{
		Visits:    s.store.Snapshot(),
		Selection: s.selection,
		Hover:     hover,
		Style:     s.opts.Style,
	}
}

func (s *Session) fullBatchLocked(hover country.ID) Batch {
	f := s.frameLocked(hover)
	var cmds []render.Command
	if s.loadErr != nil {
		cmds = render.ErrorFrame(s.Viewport(), s.opts.Style)
	} else {
		cmds = render.Render(s.scene, f)
	}
	return Batch{Revision: f.Visits.Revision(), Full: true, Commands: cmds}
}

// liveBatchLocked is the full frame a client needs to match the session:
// the hover style plus the tooltip, if one is showing.
func (s *Session) liveBatchLocked() Batch {
	b := s.fullBatchLocked(s.inter.Hover())
	if s.loadErr == nil {
		if tip, ok := s.inter.Tooltip(); ok {
			b.Commands = append(b.Commands, tip)
		}
	}
	return b
}

// PointerMove handles pointer motion at (x, y).
func (s *Session) PointerMove(x, y float64) []render.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	metrics.PointerEventsTotal.WithLabelValues("move").Inc()
	cmds := s.inter.Move(s.scene, x, y, s.frameLocked(""))
	s.opts.Trace("pointer move", "session", s.id, "x", x, "y", y, "hover", s.inter.Hover())
	s.broadcastPatchLocked(cmds)
	return cmds
}

// PointerLeave handles the pointer leaving the surface.
func (s *Session) PointerLeave() []render.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	metrics.PointerEventsTotal.WithLabelValues("leave").Inc()
	cmds := s.inter.Leave(s.frameLocked(""))
	s.broadcastPatchLocked(cmds)
	return cmds
}

// PointerClick handles a click at (x, y). A hit pulses the country and
// toggles its visit state.
func (s *Session) PointerClick(x, y float64) (render.SelectionEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return render.SelectionEvent{}, false
	}
	metrics.PointerEventsTotal.WithLabelValues("click").Inc()
	ev, cmds, ok := s.inter.Click(s.scene, x, y, s.opts.Style)
	s.opts.Trace("pointer click", "session", s.id, "x", x, "y", y, "hit", ev.ID)
	if !ok {
		return ev, false
	}
	s.toggleLocked(ev.ID)
	// Pulse goes after the full frame, which resets transient state.
	s.broadcastPatchLocked(cmds)
	return ev, true
}

// Locate returns the country at a geographic point. It reports false before
// the geometry has loaded.
func (s *Session) Locate(lon, lat float64) (VisitedCountry, bool) {
	s.mu.Lock()
	geom := s.geom
	snap := s.store.Snapshot()
	s.mu.Unlock()

	if geom == nil {
		return VisitedCountry{}, false
	}
	c, ok := geom.CountryAt(lon, lat)
	if !ok {
		return VisitedCountry{}, false
	}
	color, _ := snap.Color(c.ID)
	return VisitedCountry{ID: c.ID, Name: displayName(geom, c.ID), Color: color}, true
}

// Visited lists visited countries sorted by display name.
func (s *Session) Visited() []VisitedCountry {
	s.mu.Lock()
	snap := s.store.Snapshot()
	geom := s.geom
	s.mu.Unlock()

	entries := snap.Entries()
	out := make([]VisitedCountry, 0, len(entries))
	for _, e := range entries {
		out = append(out, VisitedCountry{ID: e.ID, Name: displayName(geom, e.ID), Color: e.Color})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func displayName(geom *geometry.Snapshot, id country.ID) string {
	if name, ok := country.Name(id); ok {
		return name
	}
	if geom != nil {
		if c, ok := geom.Lookup(id); ok && c.Name != "" {
			return c.Name
		}
	}
	return country.DisplayName(id)
}

// Stats returns the visited count against the UN member total.
func (s *Session) Stats() Stats {
	n := s.store.Count()
	return Stats{
		Visited: n,
		Total:   country.TotalCountries,
		Percent: float64(int(float64(n)/float64(country.TotalCountries)*1000+0.5)) / 10,
	}
}

// VisitsGeoJSON returns the outlines of visited countries with their
// colors as a FeatureCollection. Before the load completes it is empty.
func (s *Session) VisitsGeoJSON() *geojson.FeatureCollection {
	s.mu.Lock()
	snap := s.store.Snapshot()
	geom := s.geom
	s.mu.Unlock()

	fc := geojson.NewFeatureCollection()
	if geom == nil {
		return fc
	}
	for _, e := range snap.Entries() {
		c, ok := geom.Lookup(e.ID)
		if !ok {
			continue
		}
		f := geojson.NewFeature(c.Shape)
		f.ID = string(e.ID)
		f.Properties["id"] = string(e.ID)
		f.Properties["name"] = displayName(geom, e.ID)
		f.Properties["color"] = e.Color
		fc.Append(f)
	}
	return fc
}
