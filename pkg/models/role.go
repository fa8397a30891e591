package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
)

// Role is the semantic label of a relation. Only the names in the vocabulary
// below are valid; use ParseRole to convert untrusted input.
type Role string

const (
	RoleAlias          Role = "Alias"
	RoleMemberOf       Role = "Member Of"
	RoleSublabelOf     Role = "Sublabel Of"
	RoleReleasedOn     Role = "Released On"
	RoleProducer       Role = "Producer"
	RoleCoProducer     Role = "Co-producer"
	RoleExecProducer   Role = "Executive Producer"
	RoleRemix          Role = "Remix"
	RoleMixedBy        Role = "Mixed By"
	RoleMasteredBy     Role = "Mastered By"
	RoleEngineer       Role = "Engineer"
	RoleArrangedBy     Role = "Arranged By"
	RoleComposedBy     Role = "Composed By"
	RoleWrittenBy      Role = "Written-By"
	RoleLyricsBy       Role = "Lyrics By"
	RoleFeaturing      Role = "Featuring"
	RoleVocals         Role = "Vocals"
	RoleLeadVocals     Role = "Lead Vocals"
	RoleBackingVocals  Role = "Backing Vocals"
	RoleGuitar         Role = "Guitar"
	RoleBassGuitar     Role = "Bass Guitar"
	RoleRhythmGuitar   Role = "Rhythm Guitar"
	RoleElectricGuitar Role = "Electric Guitar"
	RoleLeadGuitar     Role = "Lead Guitar"
	RoleDrums          Role = "Drums"
	RoleKeyboards      Role = "Keyboards"
	RolePiano          Role = "Piano"
	RoleSynthesizer    Role = "Synthesizer"
	RolePercussion     Role = "Percussion"
	RoleDJMix          Role = "DJ Mix"
	RolePerformer      Role = "Performer"
)

var knownRoles = map[Role]struct{}{}

func init() {
	for _, r := range []Role{
		RoleAlias, RoleMemberOf, RoleSublabelOf, RoleReleasedOn,
		RoleProducer, RoleCoProducer, RoleExecProducer, RoleRemix,
		RoleMixedBy, RoleMasteredBy, RoleEngineer, RoleArrangedBy,
		RoleComposedBy, RoleWrittenBy, RoleLyricsBy, RoleFeaturing,
		RoleVocals, RoleLeadVocals, RoleBackingVocals, RoleGuitar,
		RoleBassGuitar, RoleRhythmGuitar, RoleElectricGuitar, RoleLeadGuitar,
		RoleDrums, RoleKeyboards, RolePiano, RoleSynthesizer,
		RolePercussion, RoleDJMix, RolePerformer,
	} {
		knownRoles[r] = struct{}{}
	}
}

// Valid reports whether r belongs to the vocabulary.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// Symmetric reports whether the role reads the same in both directions.
func (r Role) Symmetric() bool {
	return r == RoleAlias
}

// KnownRoles returns the whole vocabulary, sorted.
func KnownRoles() []Role {
	roles := make([]Role, 0, len(knownRoles))
	for r := range knownRoles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// ParseRole validates a role name. Matching is case-insensitive; the canonical
// spelling is returned.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if r := Role(s); r.Valid() {
		return r, nil
	}
	for r := range knownRoles {
		if strings.EqualFold(string(r), s) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, s)
}

// ParseRoles validates, deduplicates and sorts a list of role names.
// Empty entries are skipped.
func ParseRoles(names []string) ([]Role, error) {
	seen := make(map[Role]struct{}, len(names))
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		r, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	SortRoles(roles)
	return roles, nil
}

// SortRoles sorts roles in place by name.
func SortRoles(roles []Role) {
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
}

// RoleNames converts roles to plain strings for query arguments.
func RoleNames(roles []Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}
