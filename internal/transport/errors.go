package transport

import "errors"

// Failure classes for device round trips.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNetwork is returned when the unit cannot be reached at all
	// (connection refused, no route, DNS failure).
	ErrNetwork = errors.New("transport: device unreachable")

	// ErrTimeout is returned when the unit does not answer within the
	// per-call deadline.
	ErrTimeout = errors.New("transport: device timed out")

	// ErrProtocol is returned when the unit answers with a body the
	// decoder does not understand. Firmware quirk territory; the
	// transport never retries these on its own.
	ErrProtocol = errors.New("transport: unexpected response from device")

	// ErrRejected is returned when the unit explicitly refuses a write
	// (rsc 4000). The set-point resolution search relies on telling
	// this apart from the transport failures above.
	ErrRejected = errors.New("transport: device rejected request")
)
