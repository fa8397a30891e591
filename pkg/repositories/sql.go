package repositories

import (
	"slices"
	"strings"

	"github.com/ekaya-inc/discograph/pkg/models"
)

// maxEntitiesPerQuery bounds the IN lists of one batched query. Two orientations
// of 400 ids stay under SQLite's default limit of 999 bound parameters.
const maxEntitiesPerQuery = 400

// argList collects bound arguments and renders dialect placeholders.
type argList struct {
	placeholder func(n int) string
	args        []any
}

func newArgList(b Backend) *argList {
	return &argList{placeholder: b.placeholder}
}

// add binds v and returns its placeholder.
func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return a.placeholder(len(a.args))
}

// in renders "(p1, p2, ...)" binding every value.
func in[T any](a *argList, values []T) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.add(v))
	}
	sb.WriteByte(')')
	return sb.String()
}

func insertSQL(table string, columns []string, placeholder func(int) string) string {
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = placeholder(i + 1)
	}
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

// partitionByKind groups entity ids by kind, each group sorted and deduplicated.
// Kinds are returned in ascending order.
func partitionByKind(entities []models.Entity) ([]models.EntityKind, map[models.EntityKind][]int64) {
	byKind := make(map[models.EntityKind][]int64)
	for _, e := range entities {
		byKind[e.Kind] = append(byKind[e.Kind], e.ID)
	}
	kinds := make([]models.EntityKind, 0, len(byKind))
	for kind, ids := range byKind {
		slices.Sort(ids)
		byKind[kind] = slices.Compact(ids)
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds, byKind
}

// chunkEntities splits a deduplicated, ordered entity list into batches of at
// most maxEntitiesPerQuery.
func chunkEntities(entities []models.Entity) [][]models.Entity {
	unique := slices.Clone(entities)
	slices.SortFunc(unique, func(a, b models.Entity) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	unique = slices.Compact(unique)

	var chunks [][]models.Entity
	for len(unique) > 0 {
		n := min(len(unique), maxEntitiesPerQuery)
		chunks = append(chunks, unique[:n])
		unique = unique[n:]
	}
	return chunks
}
