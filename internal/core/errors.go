package core

import "errors"

// Failure kinds for registry and relay operations. The wire stays silent
// on all of them; they exist so callers and tests can tell a drop from a
// delivery. A create_room on an existing name is a no-op, not an error.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnknownTarget    = errors.New("unknown target connection")
	ErrNoIdentity       = errors.New("identity not set")
)
