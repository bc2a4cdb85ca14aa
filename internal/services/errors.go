package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSelfReference     = errors.New("you cannot add yourself as a friend")
	ErrDuplicateRelation = errors.New("already exists")
	ErrAlreadyInvited    = errors.New("an invite has already been sent")
	ErrExpired           = errors.New("the invite has expired")
	ErrInvalidToken      = errors.New("invalid invite token")
	ErrValidation        = errors.New("validation failed")
	ErrTransport         = errors.New("service unavailable")
	ErrInvalidState      = errors.New("operation not allowed in the current state")
	ErrDeliveryFailed    = errors.New("invite saved but the email could not be delivered")
)

// transportErr wraps a gateway failure so callers can match ErrTransport as
// well as the underlying cause.
func transportErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
