// Package errors consolidates error definitions for the alertfeed engine.
//
// This package provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Convenience wrappers over the standard errors package
//
// The engine itself never panics across its boundary: malformed input and
// unmergeable candidates degrade to drop-or-fallback, and only persistence
// and configuration surfaces return errors to the caller.
package errors

import (
	"errors"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Decode errors (persisted alert records)
	ErrTruncatedRecord = errors.New("truncated alert record")
	ErrUnknownKind     = errors.New("unknown alert kind")
	ErrRecordTooLong   = errors.New("alert record exceeds maximum size")

	// Validation errors
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidChangeType = errors.New("change type out of range")
	ErrInvalidKind       = errors.New("invalid alert kind")

	// State errors
	ErrStoreClosed = errors.New("store is closed")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// IsDecodeError returns true if err arose from decoding a persisted record.
// Decode errors terminate only the record that produced them; a restore
// continues with the remaining records.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrTruncatedRecord) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrRecordTooLong)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidChangeType) ||
		errors.Is(err, ErrInvalidKind)
}
