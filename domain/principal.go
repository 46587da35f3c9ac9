// Package domain contains core concepts of the chat gateway.
// This file defines the Principal resolved by the authentication layer.
package domain

// Principal is the resolved identity of an authenticated connection.
type Principal struct {
	ID       string
	Username string
}

// Anonymous is the fixed no-identity value every failed credential
// resolution collapses to. It is never authorized past the
// authentication layer.
var Anonymous = Principal{}

// IsAnonymous reports whether the principal carries no identity.
func (p Principal) IsAnonymous() bool {
	return p.ID == ""
}
