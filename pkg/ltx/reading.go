// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"fmt"
	"math"
)

// Precision is the transmitted width of a channel value
type Precision uint8

// Precision values
const (
	PrecisionF32 Precision = iota
	PrecisionF16
)

// String returns "F32" or "F16"
func (p Precision) String() string {
	if p == PrecisionF16 {
		return "F16"
	}
	return "F32"
}

// ChannelReading is one decoded channel. It holds either a finite value
// or an error code, never both.
type ChannelReading struct {
	channel   int
	precision Precision
	unit      string
	value     float64
	code      ErrorCode
	isError   bool
}

// NewValueReading creates a reading carrying a number. Non-finite values
// are stored as ErrNumberOverflow.
func NewValueReading(channel int, precision Precision, unit string, value float64) ChannelReading {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return NewErrorReading(channel, precision, unit, ErrNumberOverflow)
	}
	return ChannelReading{channel: channel, precision: precision, unit: unit, value: value}
}

// NewErrorReading creates a reading carrying an LTX error code
func NewErrorReading(channel int, precision Precision, unit string, code ErrorCode) ChannelReading {
	return ChannelReading{channel: channel, precision: precision, unit: unit, code: code, isError: true}
}

// Channel returns the channel index
func (r ChannelReading) Channel() int {
	return r.channel
}

// Precision returns the transmitted width
func (r ChannelReading) Precision() Precision {
	return r.precision
}

// Unit returns the unit label, empty when the port has no profile
func (r ChannelReading) Unit() string {
	return r.unit
}

// HasUnit reports whether a unit label is attached
func (r ChannelReading) HasUnit() bool {
	return r.unit != ""
}

// Value returns the number and true, or 0 and false for error readings
func (r ChannelReading) Value() (float64, bool) {
	if r.isError {
		return 0, false
	}
	return r.value, true
}

// Err returns the error code and true, or 0 and false for value readings
func (r ChannelReading) Err() (ErrorCode, bool) {
	if !r.isError {
		return 0, false
	}
	return r.code, true
}

// IsError reports whether the reading carries an error code
func (r ChannelReading) IsError() bool {
	return r.isError
}

// IsHousekeeping reports whether the reading sits in the housekeeping range
func (r ChannelReading) IsHousekeeping() bool {
	return r.channel >= HKFirstChannel && r.channel <= HKLastChannel
}

// String renders the reading for logs, e.g. "#0: 20.610001 °C (F32)"
func (r ChannelReading) String() string {
	var s string
	if r.isError {
		s = fmt.Sprintf("#%d: %s", r.channel, r.code)
	} else {
		s = fmt.Sprintf("#%d: %g", r.channel, r.value)
	}
	if r.unit != "" {
		s += " " + r.unit
	}
	return s + " (" + r.precision.String() + ")"
}

// DecodeResult is the outcome of a successful frame decode
type DecodeResult struct {
	Port        int
	Header      Header
	Channels    []ChannelReading
	Jumped      bool // a channel jump token ended the frame
	NextChannel int  // channel cursor after the last token
}

// Reading returns the first reading for channel
func (d *DecodeResult) Reading(channel int) (ChannelReading, bool) {
	for _, r := range d.Channels {
		if r.channel == channel {
			return r, true
		}
	}
	return ChannelReading{}, false
}

// ErrorReadings returns the readings that carry an error code
func (d *DecodeResult) ErrorReadings() []ChannelReading {
	var out []ChannelReading
	for _, r := range d.Channels {
		if r.isError {
			out = append(out, r)
		}
	}
	return out
}
