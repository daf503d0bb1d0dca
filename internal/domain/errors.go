package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("concurrent modification")
	ErrExternalService = errors.New("external service unavailable")
	ErrLockHeld        = errors.New("lock already held")
)

// ValidationKind names which input rule was violated.
type ValidationKind string

const (
	KindMissingName        ValidationKind = "missing-name"
	KindInvalidSize        ValidationKind = "invalid-size"
	KindInvalidPrice       ValidationKind = "invalid-price"
	KindSizeTooLarge       ValidationKind = "size-too-large"
	KindInvalidSide        ValidationKind = "invalid-side"
	KindTradeClosed        ValidationKind = "trade-closed"
	KindAccountInactive    ValidationKind = "account-inactive"
	KindInvalidWallet      ValidationKind = "invalid-wallet"
	KindInvalidEvalType    ValidationKind = "invalid-eval-type"
	KindInvalidAccountSize ValidationKind = "invalid-account-size"
)

// ValidationError is returned when caller input breaks a trading rule. No
// state has been changed when it is returned.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is makes errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(kind ValidationKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationKindOf returns the kind of the first ValidationError in err's
// chain, or "" if there is none.
func ValidationKindOf(err error) ValidationKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}
