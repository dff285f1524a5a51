// Package country holds the canonical country identifier and the boundary
// tables that translate other code systems into it.
package country

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ID is the canonical country identifier: the ISO 3166-1 numeric code as a
// zero-padded three digit string (e.g. "392" for Japan).
type ID string

// TotalCountries is the number of UN member states used for visit statistics.
const TotalCountries = 193

// UnknownName is displayed for identifiers missing from every name source.
const UnknownName = "Unknown Country"

// Result is a single search hit.
type Result struct {
	ID     ID     `json:"id"`
	Alpha3 string `json:"alpha3"`
	Name   string `json:"name"`
}

var (
	byAlpha3  = make(map[string]entry, len(table))
	byNumeric = make(map[ID]entry, len(table))
)

func init() {
	for _, e := range table {
		if _, dup := byAlpha3[e.Alpha3]; dup {
			panic(fmt.Sprintf("country: duplicate alpha-3 code %s", e.Alpha3))
		}
		if _, dup := byNumeric[e.Numeric]; dup {
			panic(fmt.Sprintf("country: duplicate numeric code %s", e.Numeric))
		}
		byAlpha3[e.Alpha3] = e
		byNumeric[e.Numeric] = e
	}
}

// Normalize converts a raw identifier from a data source into an ID.
// Purely numeric values are zero-padded to three digits; anything else is
// kept verbatim (trimmed).
func Normalize(raw string) ID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
		return ID(fmt.Sprintf("%03d", n))
	}
	return ID(raw)
}

const syntheticPrefix = "name:"

// Synthetic builds an identifier for a feature that carries none.
func Synthetic(name string) ID {
	return ID(syntheticPrefix + name)
}

// FromAlpha3 translates an alpha-3 code (case-insensitive) into the canonical ID.
func FromAlpha3(code string) (ID, bool) {
	e, ok := byAlpha3[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return "", false
	}
	return e.Numeric, true
}

// Alpha3 translates a canonical ID back into its alpha-3 code.
func Alpha3(id ID) (string, bool) {
	e, ok := byNumeric[id]
	if !ok {
		return "", false
	}
	return e.Alpha3, true
}

// Name returns the reference display name for id.
func Name(id ID) (string, bool) {
	e, ok := byNumeric[id]
	if !ok {
		return "", false
	}
	return e.Name, true
}

// DisplayName returns the reference name for id, falling back to UnknownName
// with a warning when the id is not in the table.
func DisplayName(id ID) string {
	if name, ok := Name(id); ok {
		return name
	}
	if name, ok := strings.CutPrefix(string(id), syntheticPrefix); ok && name != "" {
		return name
	}
	slog.Warn("No country found for identifier", "id", string(id))
	return UnknownName
}

// Search returns up to limit countries whose name contains query
// (case-insensitive), in table order. An empty query matches nothing.
func Search(query string, limit int) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	var results []Result
	for _, e := range table {
		if !strings.Contains(strings.ToLower(e.Name), q) {
			continue
		}
		results = append(results, Result{ID: e.Numeric, Alpha3: e.Alpha3, Name: e.Name})
		if len(results) == limit {
			break
		}
	}
	return results
}
