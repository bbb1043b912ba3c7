package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrForbidden          = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrOTPInvalid         = errors.New("invalid OTP")
	ErrOTPExpired         = errors.New("OTP has expired")
	ErrResetTokenInvalid  = errors.New("reset token is invalid or has expired")
	ErrInvalidSignature   = errors.New("invalid payment signature")
	ErrGatewayUnavailable = errors.New("payment gateway is not configured")
)

// ConflictError reports a uniqueness violation on Field
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// InvariantError reports a cross-entity rule the write would break.
// It is raised before anything is written.
type InvariantError struct {
	Rule    string
	Message string
}

func (e *InvariantError) Error() string {
	return e.Message
}

// TransitionError reports a lifecycle move the state machine does not allow
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func invariant(rule, message string) error {
	return &InvariantError{Rule: rule, Message: message}
}

func transition[T ~string](entity string, from, to T) error {
	return &TransitionError{Entity: entity, From: string(from), To: string(to)}
}

// dbError wraps a storage error, mapping a missing row to ErrNotFound
func dbError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
