package client

import (
	"errors"
	"fmt"
)

// Sentinel errors distinguish "wrong password" from "account not found"
// from "server unreachable"; each implies a different corrective action.
var (
	ErrAccountNotFound = errors.New("account ID not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUnreachable     = errors.New("sync service unreachable")
)

// RegistrationError reports that the remote claim failed during
// registration. The local vault has still been created (offline-first) and
// can be claimed later with a push.
type RegistrationError struct {
	AccountID string
	Err       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("account %s registered locally but not claimed remotely: %v", e.AccountID, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
