package api

import (
	"net/http"

	"wandermap/pkg/country"
)

// CountryHandler serves the country search used by the search widget.
type CountryHandler struct {
	limit int
}

func NewCountryHandler(limit int) *CountryHandler {
	if limit <= 0 {
		limit = 5
	}
	return &CountryHandler{limit: limit}
}

// HandleSearch returns up to limit countries whose name contains q.
func (h *CountryHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	results := country.Search(r.URL.Query().Get("q"), h.limit)
	if results == nil {
		results = []country.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}
