package session

import "errors"

var (
	// ErrSessionNotFound is returned when the session id is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned by Create when the id is already taken.
	ErrSessionExists = errors.New("session already exists")
)
