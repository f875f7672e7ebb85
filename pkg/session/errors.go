package session

import "errors"

var (
	// ErrSessionInvalid is returned when operating on a session that was invalidated.
	ErrSessionInvalid = errors.New("session is not valid")

	// ErrSessionExists is returned when creating a session whose id is already in use.
	ErrSessionExists = errors.New("session already exists")
)
