package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidArgument is returned for malformed or out-of-range input,
// including payment amounts that exceed an outstanding balance.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrConflict is returned when an optimistic ledger write lost a race and
// should be retried by the caller.
var ErrConflict = errors.New("write conflict")
