// Package apperr defines the error kinds returned by the ledger, price store
// and statistics engine.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can tell an invalid request apart from
// a transient store problem.
type Kind string

const (
	KindNotOwned                 Kind = "NotOwned"
	KindNotFound                 Kind = "NotFound"
	KindInsufficientFunds        Kind = "InsufficientFunds"
	KindInsufficientShares       Kind = "InsufficientShares"
	KindInvalidAmount            Kind = "InvalidAmount"
	KindInvalidSymbol            Kind = "InvalidSymbol"
	KindInvalidArgument          Kind = "InvalidArgument"
	KindDuplicateHistoricalEntry Kind = "DuplicateHistoricalEntry"
	KindInvalidTimestamp         Kind = "InvalidTimestamp"
	KindNoHistoricalData         Kind = "NoHistoricalData"
	KindNoReferenceData          Kind = "NoReferenceData"
	KindStoreUnavailable         Kind = "StoreUnavailable"
	KindOperationFailed          Kind = "OperationFailed"
)

// Sentinels for errors.Is comparisons. Any *Error of the same kind matches.
var (
	ErrNotOwned                 = &Error{Kind: KindNotOwned}
	ErrNotFound                 = &Error{Kind: KindNotFound}
	ErrInsufficientFunds        = &Error{Kind: KindInsufficientFunds}
	ErrInsufficientShares       = &Error{Kind: KindInsufficientShares}
	ErrInvalidAmount            = &Error{Kind: KindInvalidAmount}
	ErrInvalidSymbol            = &Error{Kind: KindInvalidSymbol}
	ErrInvalidArgument          = &Error{Kind: KindInvalidArgument}
	ErrDuplicateHistoricalEntry = &Error{Kind: KindDuplicateHistoricalEntry}
	ErrInvalidTimestamp         = &Error{Kind: KindInvalidTimestamp}
	ErrNoHistoricalData         = &Error{Kind: KindNoHistoricalData}
	ErrNoReferenceData          = &Error{Kind: KindNoReferenceData}
	ErrStoreUnavailable         = &Error{Kind: KindStoreUnavailable}
	ErrOperationFailed          = &Error{Kind: KindOperationFailed}
)

// Error is a structured failure with a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind carrying cause for logging.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so that errors.Is(err, ErrNotFound) works for any
// NotFound error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or OperationFailed if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOperationFailed
}

// Retryable reports whether the caller may retry the operation unchanged.
func Retryable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}
