// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver-specific errors: a handler translates
// ErrCapacityExhausted into a business-rule rejection while an
// unrecognised error becomes an opaque 500.
package repository

import (
	"errors"
	"strings"
)

// ErrLotNotFound is returned when a parking lot lookup by code fails.
var ErrLotNotFound = errors.New("parking lot not found")

// ErrLotCodeExists is returned when creating a lot whose code is
// already taken. Handlers translate this into an HTTP 409 response.
var ErrLotCodeExists = errors.New("lot code already exists")

// ErrCapacityExhausted is returned by ReserveSpaceTx when the lot has
// no free spaces. This is an expected business outcome, not a fault.
var ErrCapacityExhausted = errors.New("no available spaces")

// ErrCapacityOverflow is returned by ReleaseSpaceTx when an increment
// would push available_spaces past total_spaces. It indicates a broken
// invariant somewhere in the engine and must never surface as a normal
// user error; callers roll the transaction back and report internal.
var ErrCapacityOverflow = errors.New("available spaces would exceed total")

// ErrSessionNotFound is returned when a session lookup by ticket code
// fails.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionAlreadyOpen is returned when registering an entry for a
// plate that already has an open session.
var ErrSessionAlreadyOpen = errors.New("plate already has an open session")

// ErrNoOpenSession is returned when registering an exit for a plate
// with no open session, including a second exit for the same ticket.
var ErrNoOpenSession = errors.New("no open session for plate")

// ErrTicketCodeExists is returned when a generated ticket code collides
// with an existing one. Callers retry with a fresh code.
var ErrTicketCodeExists = errors.New("ticket code already exists")

// ErrEmailExists is returned when registering a user with an email that
// is already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as deleting a lot that still has
// open sessions or shrinking a lot below its current occupancy.
// Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrLotHasSessions is returned when deleting a lot that closed
// sessions still reference.  Session history is kept as part of the
// audit trail, so such a lot cannot be removed until its sessions are
// deleted or moved elsewhere.
var ErrLotHasSessions = errors.New("lot has recorded sessions")

// IsLockContention reports whether err is a MySQL deadlock (error 1213)
// or lock wait timeout (error 1205).  Both mean the transaction lost a
// race with a concurrent one; the work was rolled back and the client
// can simply retry, so handlers answer 409 rather than an internal
// error.
func IsLockContention(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1213") || strings.Contains(msg, "1205")
}
