package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"wandermap/pkg/config"
	"wandermap/pkg/country"
	"wandermap/pkg/export"
	"wandermap/pkg/metrics"
	"wandermap/pkg/session"
)

// SessionHandler serves the per-session REST endpoints.
type SessionHandler struct {
	mgr    *session.Manager
	export config.ExportConfig
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(mgr *session.Manager, exp config.ExportConfig) *SessionHandler {
	return &SessionHandler{mgr: mgr, export: exp}
}

type sessionResponse struct {
	ID    string        `json:"id"`
	State session.State `json:"state"`
}

type visitsResponse struct {
	Color    string                   `json:"color"`
	Visited  []session.VisitedCountry `json:"visited"`
	Selected []country.ID             `json:"selected"`
	Stats    session.Stats            `json:"stats"`
}

type toggleRequest struct {
	ID     string `json:"id"`
	Alpha3 string `json:"alpha3"`
}

type colorRequest struct {
	Color string `json:"color"`
}

type searchRequest struct {
	Code string `json:"code"`
}

// session resolves {sid} and writes a 404 when it is unknown.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.mgr.Get(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	s, err := h.mgr.Create()
	if err != nil {
		slog.Warn("Failed to create session", "error", err)
		writeError(w, r, http.StatusServiceUnavailable, "session_limit", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{ID: s.ID(), State: s.State()})
}

func (h *SessionHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.Close(chi.URLParam(r, "sid")); err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Frame())
}

func (h *SessionHandler) HandleSVG(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.SVG(&buf, s.ExportFrame().Commands, s.Viewport(), h.export.Background); err != nil {
		slog.Error("SVG export failed", "session", s.ID(), "error", err)
		writeError(w, r, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	metrics.ExportsTotal.WithLabelValues("svg").Inc()
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(buf.Bytes())
}

func (h *SessionHandler) HandlePNG(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	scale := h.export.Scale
	if raw := r.URL.Query().Get("scale"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_scale", fmt.Sprintf("invalid scale %q", raw))
			return
		}
		scale = v
	}
	if h.export.MaxScale > 0 && scale > h.export.MaxScale {
		writeError(w, r, http.StatusBadRequest, "invalid_scale", fmt.Sprintf("scale must not exceed %g", h.export.MaxScale))
		return
	}

	var buf bytes.Buffer
	err := export.PNG(&buf, s.ExportFrame().Commands, s.Viewport(), scale, h.export.Background)
	if errors.Is(err, export.ErrInvalidScale) {
		writeError(w, r, http.StatusBadRequest, "invalid_scale", err.Error())
		return
	}
	if err != nil {
		slog.Error("PNG export failed", "session", s.ID(), "error", err)
		writeError(w, r, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	metrics.ExportsTotal.WithLabelValues("png").Inc()
	w.Header().Set("Content-Type", "image/png")
	if h.export.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, h.export.Filename))
	}
	_, _ = w.Write(buf.Bytes())
}

func (h *SessionHandler) HandleVisits(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, visitsResponse{
		Color:    s.Color(),
		Visited:  s.Visited(),
		Selected: s.Selection().IDs(),
		Stats:    s.Stats(),
	})
}

func (h *SessionHandler) HandleVisitsGeoJSON(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := s.VisitsGeoJSON().MarshalJSON()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// HandleLocate reports the country at ?lon=&lat=.
func (h *SessionHandler) HandleLocate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	if errLon != nil || errLat != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(w, r, http.StatusBadRequest, "invalid_point", "lon and lat must be valid coordinates")
		return
	}
	c, found := s.Locate(lon, lat)
	if !found {
		writeError(w, r, http.StatusNotFound, "no_country", fmt.Sprintf("no country at %g,%g", lon, lat))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      c.ID,
		"name":    c.Name,
		"visited": c.Color != "",
		"color":   c.Color,
	})
}

// HandleToggle accepts either the canonical id or an alpha-3 code.
func (h *SessionHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var id country.ID
	switch {
	case req.ID != "":
		// Alpha-3 codes sent as id are translated like the alpha3 field.
		var found bool
		if id, found = country.FromAlpha3(req.ID); !found {
			id = country.Normalize(req.ID)
		}
	case req.Alpha3 != "":
		var found bool
		if id, found = country.FromAlpha3(req.Alpha3); !found {
			writeError(w, r, http.StatusBadRequest, "unknown_code", fmt.Sprintf("unknown country code %q", req.Alpha3))
			return
		}
	default:
		writeError(w, r, http.StatusBadRequest, "missing_id", "id or alpha3 is required")
		return
	}

	snap, err := s.Toggle(id)
	if err != nil {
		writeError(w, r, http.StatusConflict, "closed", err.Error())
		return
	}
	color, visited := snap.Color(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"visited":  visited,
		"color":    color,
		"revision": snap.Revision(),
	})
}

func (h *SessionHandler) HandleColor(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req colorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Color) == "" {
		writeError(w, r, http.StatusBadRequest, "missing_color", "color is required")
		return
	}
	snap, err := s.SetColor(req.Color)
	if err != nil {
		writeError(w, r, http.StatusConflict, "closed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"color": req.Color, "revision": snap.Revision()})
}

func (h *SessionHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := s.SearchSelect(req.Code)
	switch {
	case errors.Is(err, session.ErrUnknownCode):
		writeError(w, r, http.StatusBadRequest, "unknown_code", err.Error())
		return
	case err != nil:
		writeError(w, r, http.StatusConflict, "closed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"selected": s.Selection().Has(id),
	})
}

func (h *SessionHandler) HandleClearSearch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.ClearSearch(); err != nil {
		writeError(w, r, http.StatusConflict, "closed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}
