// Package domain contains entity without logic, just meta-data
package domain

import "github.com/google/uuid"

// ClientID identifies one connected peer. It is assigned by the registry,
// never taken from the client.
type ClientID string

// NewClientID returns a fresh random identifier.
func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}
