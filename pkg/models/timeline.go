package models

// YearRoleCount is the number of dated relations of one role in one year.
type YearRoleCount struct {
	Year  int
	Role  Role
	Count int64
}

// RoleTotal is the relation count of one role within a year.
type RoleTotal struct {
	Role  Role  `json:"role"`
	Total int64 `json:"total"`
}

// YearTotals holds the relation counts of one year, split by role.
type YearTotals struct {
	Year  int         `json:"year"`
	Total int64       `json:"total"`
	Roles []RoleTotal `json:"roles"`
}

// RelationTimeline counts the dated relations of an entity per year. Entities
// lists the keys counted: the entity itself, then its aliases when requested.
// Relations without a year are not counted.
type RelationTimeline struct {
	Entity   string       `json:"entity"`
	Entities []string     `json:"entities"`
	Years    []YearTotals `json:"years"`
	Total    int64        `json:"total"`
}

// NewRelationTimeline groups counts, which must be ordered by year, into
// per-year totals.
func NewRelationTimeline(center Entity, entities []Entity, counts []YearRoleCount) *RelationTimeline {
	t := &RelationTimeline{
		Entity:   center.Key(),
		Entities: make([]string, len(entities)),
		Years:    []YearTotals{},
	}
	for i, e := range entities {
		t.Entities[i] = e.Key()
	}
	for _, c := range counts {
		if n := len(t.Years); n == 0 || t.Years[n-1].Year != c.Year {
			t.Years = append(t.Years, YearTotals{Year: c.Year})
		}
		year := &t.Years[len(t.Years)-1]
		year.Roles = append(year.Roles, RoleTotal{Role: c.Role, Total: c.Count})
		year.Total += c.Count
		t.Total += c.Count
	}
	return t
}
