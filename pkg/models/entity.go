package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
)

// EntityKind discriminates the two entity tables. The integer values are the
// type codes stored in the relation table.
type EntityKind int

const (
	EntityKindArtist EntityKind = 1
	EntityKindLabel  EntityKind = 2
)

// String returns the lowercase kind name used in keys and URLs.
func (k EntityKind) String() string {
	switch k {
	case EntityKindArtist:
		return "artist"
	case EntityKindLabel:
		return "label"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k EntityKind) Valid() bool {
	return k == EntityKindArtist || k == EntityKindLabel
}

// MarshalText encodes the kind by name.
func (k EntityKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidEntityKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText accepts the kind name.
func (k *EntityKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseEntityKind parses "artist" or "label" (case-insensitive).
func ParseEntityKind(s string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "artist":
		return EntityKindArtist, nil
	case "label":
		return EntityKindLabel, nil
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrInvalidEntityKind, s)
}

// EntityKindFromCode converts a stored type code back to an EntityKind.
func EntityKindFromCode(code int) (EntityKind, error) {
	k := EntityKind(code)
	if !k.Valid() {
		return 0, fmt.Errorf("%w: type code %d", apperrors.ErrInvalidEntityKind, code)
	}
	return k, nil
}

// Entity identifies an artist or label. Two entities are equal iff kind and id match,
// so Entity is usable as a map key.
type Entity struct {
	Kind EntityKind `json:"kind"`
	ID   int64      `json:"id"`
}

// NewArtist returns the artist entity with the given id.
func NewArtist(id int64) Entity { return Entity{Kind: EntityKindArtist, ID: id} }

// NewLabel returns the label entity with the given id.
func NewLabel(id int64) Entity { return Entity{Kind: EntityKindLabel, ID: id} }

// Key returns the client-facing key, e.g. "artist-12".
func (e Entity) Key() string {
	return e.Kind.String() + "-" + strconv.FormatInt(e.ID, 10)
}

func (e Entity) String() string { return e.Key() }

// Less orders entities by kind, then id.
func (e Entity) Less(o Entity) bool {
	if e.Kind != o.Kind {
		return e.Kind < o.Kind
	}
	return e.ID < o.ID
}

// ParseEntityKey parses keys produced by Entity.Key.
func ParseEntityKey(key string) (Entity, error) {
	kindStr, idStr, ok := strings.Cut(key, "-")
	if !ok {
		return Entity{}, fmt.Errorf("%w: malformed entity key %q", apperrors.ErrInvalidEntityKind, key)
	}
	kind, err := ParseEntityKind(kindStr)
	if err != nil {
		return Entity{}, err
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Entity{}, fmt.Errorf("invalid entity id in key %q: %w", key, err)
	}
	return Entity{Kind: kind, ID: id}, nil
}

// EntityRecord is the canonical record of an entity as held by the entity store.
type EntityRecord struct {
	Entity Entity `json:"entity"`
	Name   string `json:"name"`
}

// SearchResult is one hit of a name search.
type SearchResult struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}
