// Package kverrors defines the discriminated error taxonomy every sealedkv
// component returns, so callers can branch on failure kind instead of
// string-matching messages.
package kverrors

import "fmt"

// Kind discriminates the category of failure. Callers should compare against
// these constants with Is, not against the formatted message.
type Kind string

const (
	// NotFound covers a missing key, a missing transaction handle, or a
	// missing required reserved entry. What identifies which.
	NotFound Kind = "not_found"

	WriteError    Kind = "write_error"
	ReadError     Kind = "read_error"
	CommitError   Kind = "commit_error"
	CreationError Kind = "creation_error"

	// ConversionError covers non-UTF-8 bytes where a string was expected,
	// and hex-decode failures while restoring a backup.
	ConversionError Kind = "conversion_error"

	SerializationError Kind = "serialization_error"

	// IOError covers filesystem failures outside the engine itself: backup
	// files, the DEK sidecar, and directory removal.
	IOError Kind = "io_error"

	FailedToEncryptData Kind = "failed_to_encrypt_data"
	FailedToDecryptData Kind = "failed_to_decrypt_data"

	WeakPassword  Kind = "weak_password"
	WrongPassword Kind = "wrong_password"
	NoPasswordSet Kind = "no_password_set"

	// GlobalTransactionAlreadyActiveError is reserved for a single-global-
	// transaction storage variant this package does not implement; it is
	// declared so that code written against the full taxonomy compiles, but
	// this package never returns it.
	GlobalTransactionAlreadyActiveError Kind = "global_transaction_already_active"

	RandomDekGenerationError Kind = "random_dek_generation_error"
)

// Error is the concrete error type returned by sealedkv's public packages.
// What carries kind-specific context: the missing key or "Transaction" for
// NotFound, the path for IOError, empty where there's nothing to add.
type Error struct {
	Kind Kind
	What string
	Err  error
}

func New(kind Kind, what string, cause error) *Error {
	return &Error{Kind: kind, What: what, Err: cause}
}

func (e *Error) Error() string {
	if e.What == "" && e.Err == nil {
		return string(e.Kind)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.What)
	}
	if e.What == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.What, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is a *Error of the given kind, unwrapping along the
// way. It lets callers write `kverrors.Is(err, kverrors.WrongPassword)`.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		break
	}
	return false
}
