// Package errs provides types and support related to client error
// classification.
package errs

import (
	"errors"
	"fmt"
)

// Kind represents the classification of an error.
type Kind int

// Set of possible error classifications.
const (
	Validation Kind = iota
	Network
	NoProvider
	UserRejected
	NoAccounts
	UnknownChain
	WrongNetwork
	SignFailed
	AuthExpired
	BalanceLookup
	Rejected
	Internal
)

var kindNames = [...]string{
	"validation",
	"network",
	"no_provider",
	"user_rejected",
	"no_accounts",
	"unknown_chain",
	"wrong_network",
	"sign_failed",
	"auth_expired",
	"balance_lookup",
	"rejected",
	"internal",
}

// String returns the name of the classification.
func (k Kind) String() string {
	if int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// =============================================================================

// Error represents an error in the system.
type Error struct {
	Kind    Kind
	Message string
}

// New constructs an error based on a classification and an existing error.
func New(kind Kind, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: err.Error(),
	}
}

// Newf constructs an error based on a classification and a format string.
func Newf(kind Kind, format string, v ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, v...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// KindOf returns the classification carried by err, or Internal when err
// carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the specified classification.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
