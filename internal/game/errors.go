package game

import "errors"

var (
	// ErrSessionClosed is returned when an action is submitted after the
	// session reached its terminal phase.
	ErrSessionClosed = errors.New("session closed")

	// ErrInvalidAction is returned for empty or whitespace-only action text.
	ErrInvalidAction = errors.New("invalid action")
)
