package cache

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/ekaya-inc/discograph/pkg/models"
)

const keyPrefix = "discograph:"

// NetworkDefaults are the request parameters left out of network keys, so that
// a request spelling out the defaults shares the entry of one that omits them.
type NetworkDefaults struct {
	Roles     []models.Role
	MaxDegree int
	MaxNodes  int
	MaxLinks  int
}

// Fingerprint is a short hash of the defaults. It scopes network keys, so
// entries cached under other defaults are never served after a config change.
func (d NetworkDefaults) Fingerprint() string {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "degree=%d&links=%d&nodes=%d&roles=%s",
		d.MaxDegree, d.MaxLinks, d.MaxNodes, strings.Join(sortedRoleNames(d.Roles), ","))
	return fmt.Sprintf("%08x", h.Sum32())
}

// NetworkKey returns the cache key of a network request, e.g.
// "discograph:5865d793:/api/artist/network/12?degree=3&roles=Alias", where the
// second segment is the fingerprint of the defaults. Parameters are sorted so
// logically identical requests share a key.
func NetworkKey(req *models.NetworkRequest, defaults NetworkDefaults) string {
	key := keyPrefix + defaults.Fingerprint() + ":/api/" + req.Center.Kind.String() + "/network/" + strconv.FormatInt(req.Center.ID, 10)

	params := url.Values{}
	if req.IncludeAliases {
		params.Set("aliases", "1")
	}
	if req.MaxDegree != defaults.MaxDegree {
		params.Set("degree", strconv.Itoa(req.MaxDegree))
	}
	if req.MaxLinks != defaults.MaxLinks {
		params.Set("links", strconv.Itoa(req.MaxLinks))
	}
	if req.MaxNodes != defaults.MaxNodes {
		params.Set("nodes", strconv.Itoa(req.MaxNodes))
	}
	if roles := sortedRoleNames(req.Roles); !slices.Equal(roles, sortedRoleNames(defaults.Roles)) {
		params.Set("roles", strings.Join(roles, ","))
	}
	if req.Year != nil {
		params.Set("year", req.Year.String())
	}

	if len(params) == 0 {
		return key
	}
	return key + "?" + params.Encode()
}

// TimelineKey returns the cache key of a relation count query, e.g.
// "discograph:/api/artist/timeline/12?aliases=1&roles=Alias".
func TimelineKey(center models.Entity, includeAliases bool, roles []models.Role) string {
	key := keyPrefix + "/api/" + center.Kind.String() + "/timeline/" + strconv.FormatInt(center.ID, 10)

	params := url.Values{}
	if includeAliases {
		params.Set("aliases", "1")
	}
	if names := sortedRoleNames(roles); len(names) > 0 {
		params.Set("roles", strings.Join(names, ","))
	}
	if len(params) == 0 {
		return key
	}
	return key + "?" + params.Encode()
}

// SearchKey returns the cache key of a search. Runs of whitespace collapse to
// a single "+" so equivalent queries share an entry.
func SearchKey(text string, limit, defaultLimit int) string {
	key := keyPrefix + "/api/search/" + NormalizeQuery(text)
	if limit != defaultLimit {
		key += "?limit=" + strconv.Itoa(limit)
	}
	return key
}

// NormalizeQuery trims text and joins its words with "+".
func NormalizeQuery(text string) string {
	return strings.Join(strings.Fields(text), "+")
}

func sortedRoleNames(roles []models.Role) []string {
	names := models.RoleNames(roles)
	slices.Sort(names)
	return slices.Compact(names)
}
