package vault

import "errors"

var (
	// ErrNotInitialized indicates no local vault profile exists. Callers can
	// distinguish this from a wrong password and offer a cloud restore.
	ErrNotInitialized = errors.New("vault not initialized")
	// ErrLocked indicates no session key is cached; the caller must unlock
	// with the password or import a session key first.
	ErrLocked = errors.New("vault locked")
)
