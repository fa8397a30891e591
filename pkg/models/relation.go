package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
)

// Relation is a typed edge between two entities, stored in the relation table.
// Rows are immutable once ingested.
type Relation struct {
	ID        int64  `json:"id"`
	EntityOne Entity `json:"entity_one"`
	EntityTwo Entity `json:"entity_two"`
	Role      Role   `json:"role"`
	Year      *int   `json:"year,omitempty"`
	ReleaseID *int64 `json:"release_id,omitempty"`
	// Random is the sampling key drawn at ingestion, in [0,1).
	Random float64 `json:"-"`
}

// Touches reports whether e is one of the endpoints.
func (r *Relation) Touches(e Entity) bool {
	return r.EntityOne == e || r.EntityTwo == e
}

// Other returns the endpoint opposite to e. For self-relations it returns e.
func (r *Relation) Other(e Entity) Entity {
	if r.EntityOne == e {
		return r.EntityTwo
	}
	return r.EntityOne
}

// RelationRow is the bulk-insert input of the relation table.
// A nil Random is drawn by the store at insert time.
type RelationRow struct {
	ID        int64
	EntityOne Entity
	EntityTwo Entity
	Role      Role
	Year      *int
	ReleaseID *int64
	Random    *float64
}

// YearFilter restricts relations to an inclusive year range. Relations with an
// unknown year always pass.
type YearFilter struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ExactYear returns a filter matching a single year.
func ExactYear(year int) *YearFilter {
	return &YearFilter{Start: year, End: year}
}

// YearRange returns an inclusive range filter.
func YearRange(start, end int) (*YearFilter, error) {
	if start > end {
		return nil, fmt.Errorf("%w: start %d after end %d", apperrors.ErrInvalidYearFilter, start, end)
	}
	return &YearFilter{Start: start, End: end}, nil
}

// Exact reports whether the filter selects a single year.
func (f *YearFilter) Exact() bool {
	return f.Start == f.End
}

// Matches applies the filter to a nullable year.
func (f *YearFilter) Matches(year *int) bool {
	if f == nil || year == nil {
		return true
	}
	return *year >= f.Start && *year <= f.End
}

// String renders "1990" or "1990-1995"; the inverse of ParseYearFilter.
func (f *YearFilter) String() string {
	if f == nil {
		return ""
	}
	if f.Exact() {
		return strconv.Itoa(f.Start)
	}
	return strconv.Itoa(f.Start) + "-" + strconv.Itoa(f.End)
}

// ParseYearFilter parses "1990" or "1990-1995". An empty string yields nil.
func ParseYearFilter(s string) (*YearFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	startStr, endStr, isRange := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidYearFilter, s)
	}
	if !isRange {
		return ExactYear(start), nil
	}
	end, err := strconv.Atoi(strings.TrimSpace(endStr))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidYearFilter, s)
	}
	return YearRange(start, end)
}
