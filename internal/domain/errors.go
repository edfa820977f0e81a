package domain

import "errors"

// Error kinds. Concrete errors wrap one of these, e.g.
// fmt.Errorf("%w: hotel %s", ErrNotFound, id); test with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStorage      = errors.New("storage unavailable")
)

// Kind returns the sentinel err wraps, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrUnauthorized, ErrStorage} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
