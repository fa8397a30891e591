package repositories

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/discograph/pkg/models"
)

const relationTable = "relation"

var relationColumns = []string{
	"id",
	"entity_one_id", "entity_one_type",
	"entity_two_id", "entity_two_type",
	"role_name", "release_id", "year", "random",
}

var relationSelect = strings.Join(relationColumns, ", ")

// relationFilter renders the role and year restrictions shared by searches and sampling.
func relationFilter(a *argList, roles []models.Role, year *models.YearFilter) []string {
	var clauses []string
	if len(roles) > 0 {
		clauses = append(clauses, "role_name IN "+in(a, models.RoleNames(roles)))
	}
	if year != nil {
		// Relations with unknown year are always included.
		if year.Exact() {
			clauses = append(clauses, fmt.Sprintf("(year IS NULL OR year = %s)", a.add(year.Start)))
		} else {
			clauses = append(clauses, fmt.Sprintf("(year IS NULL OR year BETWEEN %s AND %s)",
				a.add(year.Start), a.add(year.End)))
		}
	}
	return clauses
}

// matchSelects renders one SELECT per entity kind and endpoint orientation,
// each hitting the (entity_id, entity_type, role_name, year) index. extra
// clauses are added to every SELECT.
func matchSelects(a *argList, columns string, entities []models.Entity, roles []models.Role, year *models.YearFilter, extra ...string) []string {
	kinds, byKind := partitionByKind(entities)

	var selects []string
	for _, kind := range kinds {
		for _, side := range []string{"entity_one", "entity_two"} {
			where := []string{
				fmt.Sprintf("%s_id IN %s", side, in(a, byKind[kind])),
				fmt.Sprintf("%s_type = %s", side, a.add(int(kind))),
			}
			where = append(where, relationFilter(a, roles, year)...)
			where = append(where, extra...)
			selects = append(selects, fmt.Sprintf("SELECT %s FROM %s WHERE %s",
				columns, relationTable, strings.Join(where, " AND ")))
		}
	}
	return selects
}

// buildSearchSQL builds one statement covering every entity in the batch,
// merged with UNION and ordered by primary key.
func buildSearchSQL(b Backend, entities []models.Entity, roles []models.Role, year *models.YearFilter) (string, []any) {
	a := newArgList(b)
	selects := matchSelects(a, relationSelect, entities, roles, year)
	return strings.Join(selects, "\nUNION\n") + "\nORDER BY id", a.args
}

// buildYearCountSQL counts the dated relations touching any of entities per
// year and role. The UNION counts a relation between two of the entities once.
func buildYearCountSQL(b Backend, entities []models.Entity, roles []models.Role) (string, []any) {
	a := newArgList(b)
	selects := matchSelects(a, "id, year, role_name", entities, roles, nil, "year IS NOT NULL")
	return "SELECT year, role_name, COUNT(*) FROM (\n" + strings.Join(selects, "\nUNION\n") +
		"\n) matched GROUP BY year, role_name ORDER BY year, role_name", a.args
}

// buildSampleSQL selects the first matching row ordered by random. With
// threshold set, only rows whose random key exceeds it are considered.
func buildSampleSQL(b Backend, roles []models.Role, threshold *float64) (string, []any) {
	a := newArgList(b)
	var where []string
	if threshold != nil {
		where = append(where, "random > "+a.add(*threshold))
	}
	where = append(where, relationFilter(a, roles, nil)...)

	q := "SELECT " + relationSelect + " FROM " + relationTable
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q + " ORDER BY random, id LIMIT 1", a.args
}

func scanRelation(row rowScanner) (*models.Relation, error) {
	var (
		rel              models.Relation
		oneID, twoID     int64
		oneType, twoType int
		role             string
	)
	err := row.Scan(
		&rel.ID,
		&oneID, &oneType,
		&twoID, &twoType,
		&role, &rel.ReleaseID, &rel.Year, &rel.Random,
	)
	if err != nil {
		return nil, err
	}

	oneKind, err := models.EntityKindFromCode(oneType)
	if err != nil {
		return nil, fmt.Errorf("relation %d: %w", rel.ID, err)
	}
	twoKind, err := models.EntityKindFromCode(twoType)
	if err != nil {
		return nil, fmt.Errorf("relation %d: %w", rel.ID, err)
	}

	rel.EntityOne = models.Entity{Kind: oneKind, ID: oneID}
	rel.EntityTwo = models.Entity{Kind: twoKind, ID: twoID}
	rel.Role = models.Role(role)
	return &rel, nil
}

func relationValues(row models.RelationRow, random float64) []any {
	return []any{
		row.ID,
		row.EntityOne.ID, int16(row.EntityOne.Kind),
		row.EntityTwo.ID, int16(row.EntityTwo.Kind),
		string(row.Role), row.ReleaseID, row.Year, random,
	}
}
