// Package records maps parsed table rows into typed records.
package records

import (
	"strings"

	"github.com/deixis/pkgguard/internal/parse"
	"github.com/deixis/pkgguard/internal/policy"
)

// Source is the repository a package came from.
type Source string

const (
	Winget  Source = "winget"
	MSStore Source = "msstore"
	Unknown Source = "unknown"
)

// ParseSource maps a source name to a Source. Anything unrecognised is
// Unknown.
func ParseSource(s string) Source {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "winget":
		return Winget
	case "msstore":
		return MSStore
	}
	return Unknown
}

// PackageRecord is one package as reported by the package manager.
type PackageRecord struct {
	Name             string           `json:"name"`
	ID               string           `json:"id"`
	InstalledVersion string           `json:"installed_version,omitempty"`
	AvailableVersion string           `json:"available_version,omitempty"`
	Source           Source           `json:"source"`
	Operation        policy.Operation `json:"operation"`
}

// Key identifies the record: id and source.
func (r PackageRecord) Key() string {
	return r.ID + "@" + string(r.Source)
}

// Same reports whether r and o denote the same package.
func (r PackageRecord) Same(o PackageRecord) bool {
	return r.ID == o.ID && r.Source == o.Source
}

// Map converts rows into records in order. The source comes from the
// row's Source column, then sourceHint, then Unknown. Rows are not
// validated or deduplicated.
func Map(rows []parse.Row, op policy.Operation, sourceHint string) []PackageRecord {
	out := make([]PackageRecord, 0, len(rows))
	for _, row := range rows {
		src := row.Get(parse.Source)
		if src == "" {
			src = sourceHint
		}
		rec := PackageRecord{
			Name:             row.Get(parse.Name),
			ID:               row.Get(parse.ID),
			InstalledVersion: row.Get(parse.Version),
			AvailableVersion: row.Get(parse.Available),
			Source:           ParseSource(src),
			Operation:        op,
		}
		// Search reports catalogue versions, not installed ones.
		if op == policy.Search {
			rec.AvailableVersion = rec.InstalledVersion
			rec.InstalledVersion = ""
		}
		out = append(out, rec)
	}
	return out
}

// SourceRecord is one configured package source.
type SourceRecord struct {
	Name     string `json:"name"`
	Argument string `json:"argument"`
	Type     string `json:"type,omitempty"`
	Explicit bool   `json:"explicit,omitempty"`
}

// MapSources converts source-list rows into records.
func MapSources(rows []parse.Row) []SourceRecord {
	out := make([]SourceRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, SourceRecord{
			Name:     row.Get(parse.Name),
			Argument: row.Get(parse.Argument),
			Type:     row.Get(parse.Type),
			Explicit: strings.EqualFold(row.Get(parse.Explicit), "true"),
		})
	}
	return out
}
