// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import "fmt"

// ErrorCode is an LTX in-band error carried by a sentinel value
type ErrorCode uint32

// Error code values. 4 and 5 are reserved.
const (
	ErrNumberOverflow ErrorCode = 0
	ErrNoValue        ErrorCode = 1
	ErrNoReply        ErrorCode = 2
	ErrOldValue       ErrorCode = 3
	ErrErrorCRC       ErrorCode = 6
	ErrDataError      ErrorCode = 7
	ErrNoCachedValue  ErrorCode = 8
)

var errorCodeNames = map[ErrorCode]string{
	ErrNumberOverflow: "NumberOverflow",
	ErrNoValue:        "NoValue",
	ErrNoReply:        "NoReply",
	ErrOldValue:       "OldValue",
	ErrErrorCRC:       "ErrorCRC",
	ErrDataError:      "DataError",
	ErrNoCachedValue:  "NoCachedValue",
}

// Known reports whether the code has a symbolic name
func (c ErrorCode) Known() bool {
	_, ok := errorCodeNames[c]
	return ok
}

// String returns the symbolic name, or Err<n> for unassigned codes
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Err%d", uint32(c))
}

// ParseErrorCode maps a symbolic name or Err<n> back to its code
func ParseErrorCode(s string) (ErrorCode, bool) {
	for code, name := range errorCodeNames {
		if name == s {
			return code, true
		}
	}
	var n uint32
	if _, err := fmt.Sscanf(s, "Err%d", &n); err == nil {
		return ErrorCode(n), true
	}
	return 0, false
}
