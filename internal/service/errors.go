package service

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a StoreError.
type ErrorKind int

const (
	// KindUnknown is used when the backend error could not be classified.
	KindUnknown ErrorKind = iota
	// KindNetwork covers transport failures and 5xx responses.
	KindNetwork
	// KindTimeout indicates the call ran past its deadline.
	KindTimeout
	// KindPermission indicates rejected or expired credentials.
	KindPermission
	// KindNotFound indicates the addressed task does not exist.
	KindNotFound
	// KindInvalid indicates the store rejected the write.
	KindInvalid
	// KindCanceled indicates the caller gave up on the call.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// StoreError is the uniform failure returned by every Store operation.
type StoreError struct {
	Op      string // store operation, e.g. "list", "create"
	Kind    ErrorKind
	Message string // human-readable, never empty
	Err     error  // underlying cause, may be nil
}

func (e *StoreError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s failed", e.Op)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError builds a StoreError. An empty message falls back to the cause.
func NewStoreError(op string, kind ErrorKind, msg string, err error) *StoreError {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = op + " failed"
	}
	return &StoreError{Op: op, Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the StoreError in err's chain.
// Context errors that were never wrapped map to KindTimeout or KindCanceled.
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindUnknown
}

// IsNotFound reports whether err is a NotFound StoreError.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// Message extracts the human-readable message of err.
// fallback is used when err carries no text.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var se *StoreError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
