// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"fmt"
	"strings"
	"time"
)

// FormatResult formats a decoded frame into a human-readable string
func FormatResult(ts time.Time, d *DecodeResult) string {
	timestamp := ts.Format("15:04:05.000")
	flags := d.Header.FlagsString()
	if flags == "" {
		flags = "-"
	}

	result := fmt.Sprintf("[%s] LTX fPort=%d flags=%s reason=%s chans=%d\n",
		timestamp, d.Port, flags, d.Header.Reason, len(d.Channels))

	for _, r := range d.Channels {
		result += "  " + FormatReading(r) + "\n"
	}
	if d.Jumped {
		result += fmt.Sprintf("  (jump to channel %d)\n", d.NextChannel)
	}
	return result
}

// FormatReading formats one channel, e.g. "Chan 0: 20.610001 °C (F32)"
func FormatReading(r ChannelReading) string {
	label := fmt.Sprintf("Chan %d:", r.Channel())
	if r.IsHousekeeping() {
		label = fmt.Sprintf("HK %d:", r.Channel())
	}

	var value string
	if code, isErr := r.Err(); isErr {
		value = "<" + code.String() + ">"
	} else {
		v, _ := r.Value()
		value = fmt.Sprintf("%g", v)
	}
	if r.HasUnit() {
		value += " " + r.Unit()
	}
	return fmt.Sprintf("%-8s %s (%s)", label, value, r.Precision())
}

// FormatHex formats a payload as space separated hex pairs
func FormatHex(payload []byte) string {
	parts := make([]string, len(payload))
	for i, b := range payload {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// FormatDownlink formats an encoded command and its warnings
func FormatDownlink(d *Downlink) string {
	result := fmt.Sprintf("fPort=%d bytes=[%s]\n", d.FPort, FormatHex(d.Bytes))
	for _, w := range d.Warnings {
		result += "  warning: " + w + "\n"
	}
	return result
}
