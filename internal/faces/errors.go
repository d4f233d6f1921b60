package faces

import "errors"

var (
	// ErrNotFound: referenced member, family, or face record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: caller lacks authorization for the requested family or record.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation: malformed input (empty embedding, out-of-range confidence,
	// bad bounding box).
	ErrValidation = errors.New("validation failed")

	// ErrExternal: a vector index call failed. Surfaced for similarity search,
	// recovered locally for indexing.
	ErrExternal = errors.New("external service error")
)
