package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyStore        = errors.New("no relation matches the sampling filter")
	ErrStoreUnavailable  = errors.New("relation store unavailable")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidEntityKind = errors.New("invalid entity kind")
	ErrInvalidYearFilter = errors.New("invalid year filter")
	ErrInvalidParameter  = errors.New("invalid parameter")
)

// IsInvalidInput reports whether err was caused by a malformed request.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrInvalidEntityKind) ||
		errors.Is(err, ErrInvalidYearFilter) ||
		errors.Is(err, ErrInvalidParameter)
}
