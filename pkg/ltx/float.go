// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"math"
	"strconv"

	"github.com/x448/float16"
)

// Significant digits kept when rendering decoded values
const (
	f32Digits = 8
	f16Digits = 6
)

// Float16ToFloat64 converts a half precision bit pattern to float64.
// Subnormals, infinities and NaN follow IEEE 754.
func Float16ToFloat64(bits uint16) float64 {
	return float64(float16.Frombits(bits).Float32())
}

// Float64ToFloat16 converts v to the nearest half precision bit pattern
func Float64ToFloat16(v float64) uint16 {
	return float16.Fromfloat32(float32(v)).Bits()
}

// IsF16Sentinel reports whether bits carry an error code instead of a number
func IsF16Sentinel(bits uint16) bool {
	return bits>>f16SentinelShift == f16SentinelTag
}

// IsF32Sentinel reports whether bits carry an error code instead of a number
func IsF32Sentinel(bits uint32) bool {
	return bits>>f32SentinelShift == f32SentinelTag
}

// F16Sentinel builds the Float16 pattern carrying code
func F16Sentinel(code ErrorCode) uint16 {
	return uint16(f16SentinelTag<<f16SentinelShift) | uint16(code)&f16CodeMask
}

// F32Sentinel builds the Float32 pattern carrying code
func F32Sentinel(code ErrorCode) uint32 {
	return uint32(f32SentinelTag<<f32SentinelShift) | uint32(code)&f32CodeMask
}

// DecodeF16 decodes a Float16 value, returning either a finite number or
// an error code. Non-finite results are reported as ErrNumberOverflow.
func DecodeF16(bits uint16) (float64, ErrorCode, bool) {
	if IsF16Sentinel(bits) {
		return 0, ErrorCode(bits & f16CodeMask), false
	}
	v := Float16ToFloat64(bits)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrNumberOverflow, false
	}
	if exp := (bits >> f16SentinelShift) & 0x1F; exp != 0 {
		v = roundSignificant(v, f16Digits)
	}
	return v, 0, true
}

// DecodeF32 decodes a Float32 value, returning either a finite number or
// an error code. Non-finite results are reported as ErrNumberOverflow.
func DecodeF32(bits uint32) (float64, ErrorCode, bool) {
	if IsF32Sentinel(bits) {
		return 0, ErrorCode(bits & f32CodeMask), false
	}
	v := float64(math.Float32frombits(bits))
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrNumberOverflow, false
	}
	return roundSignificant(v, f32Digits), 0, true
}

// roundSignificant rounds v to the given number of significant decimal digits
func roundSignificant(v float64, digits int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', digits, 64), 64)
	if err != nil {
		return v
	}
	return r
}
