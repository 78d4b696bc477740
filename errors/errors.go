// Package errors defines all exported error sentinels for the surfacehash library.
//
// This is the single source of truth for error values. Both the top-level
// surfacehash package and internal packages import from here, ensuring
// errors.Is checks work across package boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Query errors
var (
	// ErrNotFound is the expected outcome for positions that do not hold a
	// stored sample. It carries no payload.
	ErrNotFound = errors.New("surfacehash: position not found")

	// ErrContentsMismatch is reported by Validate when a stored sample
	// resolves to contents different from its input.
	ErrContentsMismatch = errors.New("surfacehash: stored contents differ from sample")
)

// ErrInvalidInput is the category for caller or data contract violations.
// Every sentinel in the block below wraps it.
var ErrInvalidInput = errors.New("surfacehash: invalid input")

// Input errors
var (
	ErrEmptyInput        = invalid("no samples")
	ErrZeroNormal        = invalid("zero normal is reserved as the empty sentinel")
	ErrDimensionMismatch = invalid("dimension mismatch")
	ErrTooManyDims       = invalid("dimension count exceeds maximum")
	ErrLengthMismatch    = invalid("bit vector length mismatch")
	ErrIndexOutOfRange   = invalid("bit index out of range")
	ErrLocationOutOfBox  = invalid("location outside bounding box")
	ErrAmbiguousNormal   = invalid("normal cannot be recovered unambiguously from position")
	ErrDuplicateSample   = invalid("duplicate sample")
	ErrPayloadTooLarge   = invalid("payload size exceeds maximum 8 bytes")
	ErrPayloadOverflow   = invalid("payload value exceeds configured payload size")
)

// Construction errors
var (
	// ErrAttemptFailed marks a single construction attempt that could not find
	// a perfect hash for the current bounding box. It is retried internally
	// and never returned by Build on its own.
	ErrAttemptFailed = errors.New("surfacehash: construction attempt failed")

	// ErrConstructionExhausted is returned when the attempt cap is reached.
	ErrConstructionExhausted = errors.New("surfacehash: construction exhausted maximum attempts")
)

// Index errors
var (
	ErrInvalidMagic   = errors.New("surfacehash: invalid magic number")
	ErrInvalidVersion = errors.New("surfacehash: unsupported version")
	ErrChecksumFailed = errors.New("surfacehash: file checksum verification failed")
	ErrTruncatedFile  = errors.New("surfacehash: index file is truncated")
	ErrCorruptedIndex = errors.New("surfacehash: index data is corrupted")
	ErrIndexClosed    = errors.New("surfacehash: index is closed")
	ErrNoPayload      = errors.New("surfacehash: index has no payload data")
)

type inputError struct {
	msg string
}

func (e *inputError) Error() string { return "surfacehash: " + e.msg }

func (e *inputError) Unwrap() error { return ErrInvalidInput }

func invalid(msg string) error {
	return &inputError{msg: msg}
}

// Invalidf returns an ad-hoc error in the ErrInvalidInput category.
func Invalidf(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}
