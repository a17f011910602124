// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"errors"
	"fmt"
)

// FormatErrorCode classifies a structural decode failure
type FormatErrorCode int

// Format error codes
const (
	ErrEmptyFrame FormatErrorCode = iota
	ErrUnknownPort
	ErrTruncatedJump
	ErrTruncatedValue
	ErrTruncatedHK
)

// String returns the name of the format error code
func (c FormatErrorCode) String() string {
	switch c {
	case ErrEmptyFrame:
		return "EmptyFrame"
	case ErrUnknownPort:
		return "UnknownPort"
	case ErrTruncatedJump:
		return "TruncatedJump"
	case ErrTruncatedValue:
		return "TruncatedValue"
	case ErrTruncatedHK:
		return "TruncatedHK"
	default:
		return fmt.Sprintf("FormatError(%d)", int(c))
	}
}

// FormatError is a fatal decode failure. No partial result accompanies it.
type FormatError struct {
	Code    FormatErrorCode
	Port    int // set for ErrUnknownPort
	Channel int // channel cursor when truncation was detected
	Err     error
}

// Error implements the error interface
func (e *FormatError) Error() string {
	switch e.Code {
	case ErrEmptyFrame:
		return "LTX: Payload len < 1"
	case ErrUnknownPort:
		return fmt.Sprintf("LTX: fPort:%d unknown", e.Port)
	case ErrTruncatedJump:
		return fmt.Sprintf("LTX: Format(1) invalid: channel jump without target (%v)", e.Err)
	case ErrTruncatedValue:
		return fmt.Sprintf("LTX: Format(2) invalid: truncated value for channel %d (%v)", e.Channel, e.Err)
	case ErrTruncatedHK:
		return fmt.Sprintf("LTX: Format(4) invalid Data: truncated housekeeping channel %d (%v)", e.Channel, e.Err)
	default:
		return fmt.Sprintf("LTX: %s", e.Code)
	}
}

// Unwrap returns the underlying short read, if any
func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError reports whether err is a FormatError with the given code
func IsFormatError(err error, code FormatErrorCode) bool {
	var fe *FormatError
	return errors.As(err, &fe) && fe.Code == code
}

// ValidationErrorCode classifies a rejected downlink request
type ValidationErrorCode int

// Validation error codes
const (
	ErrMissingCommand ValidationErrorCode = iota
)

// ValidationError rejects a downlink encode request
type ValidationError struct {
	Code    ValidationErrorCode
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}
