// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import "fmt"

// AlarmState is the alarm indication of a frame header
type AlarmState int

// Alarm state values
const (
	AlarmNone AlarmState = iota
	AlarmActive
	AlarmStale
)

// String returns the alarm state name
func (a AlarmState) String() string {
	switch a {
	case AlarmActive:
		return "Alarm"
	case AlarmStale:
		return "old Alarm"
	default:
		return "None"
	}
}

// Reason is the 4-bit transmit reason. Only Auto and Manual are assigned.
type Reason uint8

// Reason values
const (
	ReasonAuto   Reason = reasonCodeAuto
	ReasonManual Reason = reasonCodeMan
)

// Known reports whether the reason has a name
func (r Reason) Known() bool {
	return r == ReasonAuto || r == ReasonManual
}

// String returns the display form used by LTX network-server decoders
func (r Reason) String() string {
	switch r {
	case ReasonAuto:
		return "(Auto)"
	case ReasonManual:
		return "(Manual)"
	default:
		return fmt.Sprintf("(Reason:%d?)", uint8(r))
	}
}

// Header holds the flags and reason carried in byte 0
type Header struct {
	Reset   bool
	Alarm   AlarmState
	Measure bool
	Reason  Reason
}

// ParseHeader decodes the flags byte
func ParseHeader(b byte) Header {
	h := Header{
		Reset:   b&flagReset != 0,
		Measure: b&flagMeasure != 0,
		Reason:  Reason(b & reasonMask),
	}
	if b&flagAlarm != 0 {
		h.Alarm = AlarmActive
	} else if b&flagOldAlarm != 0 {
		h.Alarm = AlarmStale
	}
	return h
}

// Byte re-encodes the header into its flags byte
func (h Header) Byte() byte {
	b := byte(h.Reason) & reasonMask
	if h.Reset {
		b |= flagReset
	}
	switch h.Alarm {
	case AlarmActive:
		b |= flagAlarm
	case AlarmStale:
		b |= flagOldAlarm
	}
	if h.Measure {
		b |= flagMeasure
	}
	return b
}

// FlagsString renders the set flags, e.g. "(Reset)(Alarm)"
func (h Header) FlagsString() string {
	s := ""
	if h.Reset {
		s += "(Reset)"
	}
	if h.Alarm != AlarmNone {
		s += "(" + h.Alarm.String() + ")"
	}
	if h.Measure {
		s += "(Measure)"
	}
	return s
}
