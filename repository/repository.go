package repository

import "github.com/fastygo/foodbridge/domain"

// ErrStale is returned by compare-and-set writes whose precondition no longer holds.
// Callers re-read the row to decide which domain error to surface.
var ErrStale = domain.NewError(domain.ErrCodeConflict, "stale write precondition")

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// ClampLimit bounds page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
