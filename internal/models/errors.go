package models

import "errors"

// Error classes shared by the store, the pipeline and the HTTP layer.
// Callers wrap them with context and classify with errors.Is.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")
)
