// Package xerrors defines the structured error taxonomy shared by every
// package in this module. Verification and protocol code returns one of
// these kinds on untrusted input rather than panicking (the one exception
// is board.AccumulatorSet.Add, which panics on a trustee index outside
// 1..MaxTrustees), and lets the caller
// decide whether to refuse to sign, halt the inference engine, or simply
// report the failure.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error without relying on string matching.
type Kind int

const (
	// HashToScalarError indicates the hash-to-scalar primitive failed.
	HashToScalarError Kind = iota
	// HashToElementError indicates hash-to-curve failed (negligible probability).
	HashToElementError
	// EncodingError indicates a plaintext could not be encoded into a group element.
	EncodingError
	// DeserializationError indicates bytes did not decode to the expected shape.
	DeserializationError
	// ProofError indicates a ZKP verification equation failed.
	ProofError
	// SignatureError indicates Ed25519 verification failed.
	SignatureError
	// ProtocolError indicates a bulletin-board invariant was violated.
	ProtocolError
)

func (k Kind) String() string {
	switch k {
	case HashToScalarError:
		return "hash_to_scalar_error"
	case HashToElementError:
		return "hash_to_element_error"
	case EncodingError:
		return "encoding_error"
	case DeserializationError:
		return "deserialization_error"
	case ProofError:
		return "proof_error"
	case SignatureError:
		return "signature_error"
	case ProtocolError:
		return "protocol_error"
	default:
		return "unknown_error"
	}
}

// Error is the structured error value returned across package boundaries.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an Error of the given kind, wrapping an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
