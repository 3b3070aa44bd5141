// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const MaxIdentityLen = 36

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
)

// Identity is the self-asserted display name bound to a connection.
// It is not unique across connections and not authenticated; duplicate
// display names are permitted.
type Identity string

// NewIdentity trims and validates a raw display name.
func NewIdentity(raw string) (Identity, error) {
	name := strings.TrimSpace(raw)
	if len(name) == 0 {
		return "", ErrIdentityEmpty
	}
	if len(name) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return Identity(name), nil
}
