// Package auth decides whether the browser session is logged in to
// TaskChute Cloud and, when it is not, waits for the user to complete the
// login by hand. Detection is deliberately tri-state: a slow or blank page
// is not evidence of being logged out.
package auth

import "errors"

// State is the result of an authentication check.
type State int

const (
	// Indeterminate means neither the logged-in nor the logged-out marker
	// was observed. It is the zero value on purpose.
	Indeterminate State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "indeterminate"
}

// ErrDetection is returned when the login state stays ambiguous after the
// allowed re-check. Typical causes: network trouble, or the site changed its
// markup and the markers no longer match.
var ErrDetection = errors.New("could not determine login state")
