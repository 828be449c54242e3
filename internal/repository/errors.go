// Package repository defines error values that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// checkout service and handlers to distinguish between failure scenarios
// without depending on driver-specific errors. For example, ErrNotFound
// indicates a missing row, while ErrConflict signals that a conditional
// update matched no rows because another writer got there first.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist. Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update affected no rows,
// meaning the guarded precondition no longer holds (e.g. an order status
// changed concurrently, or a capture id was already recorded). Callers
// decide whether that is a benign no-op or a real failure.
var ErrConflict = errors.New("conflict")
