// Package documents reads the raw entity and relation documents the relation
// table is bootstrapped from. Documents are stored one JSON object per line,
// optionally gzip-compressed.
package documents

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ekaya-inc/discograph/pkg/jsonutil"
	"github.com/ekaya-inc/discograph/pkg/models"
)

// RelationDocument is one relation as exported from the document store.
// Entity types are "artist" or "label", or the stored type codes 1 and 2.
// The role is read from "role_name", falling back to "role". Year and
// release id may be written as numbers or numeric strings; empty values mean
// unknown.
type RelationDocument struct {
	EntityOneID   int64  `json:"entity_one_id"`
	EntityOneType string `json:"entity_one_type"`
	EntityTwoID   int64  `json:"entity_two_id"`
	EntityTwoType string `json:"entity_two_type"`
	Role          string `json:"role_name"`
	Year          *int   `json:"year,omitempty"`
	ReleaseID     *int64 `json:"release_id,omitempty"`
}

func (d *RelationDocument) UnmarshalJSON(data []byte) error {
	type plain RelationDocument
	var raw struct {
		plain
		EntityOneType json.RawMessage `json:"entity_one_type"`
		EntityTwoType json.RawMessage `json:"entity_two_type"`
		RoleName      json.RawMessage `json:"role_name"`
		Role          json.RawMessage `json:"role"`
		Year          json.RawMessage `json:"year"`
		ReleaseID     json.RawMessage `json:"release_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	oneType, err := entityType(raw.EntityOneType)
	if err != nil {
		return fmt.Errorf("entity_one_type: %w", err)
	}
	twoType, err := entityType(raw.EntityTwoType)
	if err != nil {
		return fmt.Errorf("entity_two_type: %w", err)
	}

	year, err := jsonutil.OptionalInt64(raw.Year)
	if err != nil {
		return fmt.Errorf("year: %w", err)
	}
	releaseID, err := jsonutil.OptionalInt64(raw.ReleaseID)
	if err != nil {
		return fmt.Errorf("release_id: %w", err)
	}

	*d = RelationDocument(raw.plain)
	d.EntityOneType = oneType
	d.EntityTwoType = twoType
	d.Role = jsonutil.FlexibleStringValue(raw.RoleName)
	if d.Role == "" {
		d.Role = jsonutil.FlexibleStringValue(raw.Role)
	}
	d.Year = nil
	if year != nil {
		y := int(*year)
		d.Year = &y
	}
	d.ReleaseID = releaseID
	return nil
}

// entityType reads an entity type written as a name or as a stored type code
// and returns the name. Unknown names are left for the bootstrapper to reject.
func entityType(raw json.RawMessage) (string, error) {
	text := jsonutil.FlexibleStringValue(raw)
	code, err := strconv.Atoi(text)
	if err != nil {
		return text, nil
	}
	kind, err := models.EntityKindFromCode(code)
	if err != nil {
		return "", err
	}
	return kind.String(), nil
}

// EntityDocument is one artist or label with its display name. The kind may
// be a name or a stored type code.
type EntityDocument struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (d *EntityDocument) UnmarshalJSON(data []byte) error {
	type plain EntityDocument
	var raw struct {
		plain
		Kind json.RawMessage `json:"kind"`
		Name json.RawMessage `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := entityType(raw.Kind)
	if err != nil {
		return fmt.Errorf("kind: %w", err)
	}
	*d = EntityDocument(raw.plain)
	d.Kind = kind
	d.Name = jsonutil.FlexibleStringValue(raw.Name)
	return nil
}
