// Package auth supplies the identity every persisted record is scoped by.
package auth

import "errors"

// ErrUnauthenticated is returned by operations that require a signed-in
// user when none is present. It is never retried.
var ErrUnauthenticated = errors.New("unauthenticated: no current user")

// Provider reports the current user's stable identifier.
type Provider interface {
	// CurrentUserID returns the user id, or ok=false when signed out.
	CurrentUserID() (id string, ok bool)
}

// Static is a Provider with a fixed identity. The empty string means
// signed out.
type Static string

// CurrentUserID implements Provider.
func (s Static) CurrentUserID() (string, bool) {
	return string(s), s != ""
}

// Require returns the current user id or ErrUnauthenticated.
func Require(p Provider) (string, error) {
	if p == nil {
		return "", ErrUnauthenticated
	}
	id, ok := p.CurrentUserID()
	if !ok || id == "" {
		return "", ErrUnauthenticated
	}
	return id, nil
}
