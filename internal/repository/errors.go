// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrAlreadyInitialized indicates that seat materialization
// was attempted for a layout that already has seat rows, while
// ErrSeatsInUse signals that a layout reset cannot proceed because
// some of its seats are held or sold.
package repository

import "errors"

// ErrSeatNotFound is returned when a seat lookup yields no rows.
var ErrSeatNotFound = errors.New("seat not found")

// ErrAlreadyInitialized is returned when bulk materialization is invoked
// for a layout that already has seat rows. Re-initialization must be
// explicitly preceded by deleting the existing seats. Handlers should
// translate this into an HTTP 409 response.
var ErrAlreadyInitialized = errors.New("layout already initialized")

// ErrSeatsInUse is returned when a layout-wide seat deletion cannot be
// performed because at least one seat is held or sold. Handlers should
// translate this into an HTTP 409 response.
var ErrSeatsInUse = errors.New("layout has held or sold seats")
