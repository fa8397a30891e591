package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ekaya-inc/discograph/pkg/apperrors"
	"github.com/ekaya-inc/discograph/pkg/models"
)

// allRoles is the roles query value selecting the whole vocabulary.
const allRoles = "all"

// ParseEntityPath reads the {kind} and {id} path parameters.
func ParseEntityPath(r *http.Request) (models.Entity, error) {
	kind, err := models.ParseEntityKind(r.PathValue("kind"))
	if err != nil {
		return models.Entity{}, err
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return models.Entity{}, fmt.Errorf("%w: entity id %q", apperrors.ErrInvalidParameter, r.PathValue("id"))
	}
	return models.Entity{Kind: kind, ID: id}, nil
}

// parseIntParam returns the integer query parameter name, or def when absent.
func parseIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", apperrors.ErrInvalidParameter, name)
	}
	return v, nil
}

// parseBoolParam accepts the strconv.ParseBool spellings ("1", "true", ...).
func parseBoolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", apperrors.ErrInvalidParameter, name)
	}
	return v, nil
}

// parseRolesParam reads roles given either comma-separated or as repeated
// parameters. Returns nil when absent, and the full vocabulary for "all".
func parseRolesParam(r *http.Request) ([]models.Role, error) {
	values := r.URL.Query()["roles"]
	if len(values) == 0 {
		return nil, nil
	}

	var names []string
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), allRoles) {
			return models.KnownRoles(), nil
		}
		names = append(names, strings.Split(v, ",")...)
	}
	return models.ParseRoles(names)
}
