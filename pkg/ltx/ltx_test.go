// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// mustHex decodes a hex string that may contain spaces
func mustHex(s string) []byte {
	data, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return data
}

// expectValue checks that r carries value v with the given unit and precision
func expectValue(t *testing.T, r ChannelReading, channel int, prec Precision, unit string, v float64) {
	t.Helper()
	if r.Channel() != channel {
		t.Errorf("Expected channel %d, got %d", channel, r.Channel())
	}
	if r.Precision() != prec {
		t.Errorf("Channel %d: expected %s, got %s", channel, prec, r.Precision())
	}
	if r.Unit() != unit {
		t.Errorf("Channel %d: expected unit %q, got %q", channel, unit, r.Unit())
	}
	got, ok := r.Value()
	if !ok {
		code, _ := r.Err()
		t.Errorf("Channel %d: expected value %v, got error %s", channel, v, code)
		return
	}
	if got != v {
		t.Errorf("Channel %d: expected value %v, got %v", channel, v, got)
	}
}

// expectError checks that r carries the given error code
func expectError(t *testing.T, r ChannelReading, channel int, prec Precision, code ErrorCode) {
	t.Helper()
	if r.Channel() != channel {
		t.Errorf("Expected channel %d, got %d", channel, r.Channel())
	}
	if r.Precision() != prec {
		t.Errorf("Channel %d: expected %s, got %s", channel, prec, r.Precision())
	}
	got, ok := r.Err()
	if !ok {
		v, _ := r.Value()
		t.Errorf("Channel %d: expected error %s, got value %v", channel, code, v)
		return
	}
	if got != code {
		t.Errorf("Channel %d: expected error %s, got %s", channel, code, got)
	}
	if _, hasValue := r.Value(); hasValue {
		t.Errorf("Channel %d: error reading must not carry a value", channel)
	}
}

// ============================================================
// Header Tests
// ============================================================

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name  string
		b     byte
		want  Header
		flags string
	}{
		{
			name:  "reset measure manual",
			b:     0x93,
			want:  Header{Reset: true, Alarm: AlarmNone, Measure: true, Reason: ReasonManual},
			flags: "(Reset)(Measure)",
		},
		{
			name:  "alarm wins over old alarm",
			b:     0x72,
			want:  Header{Alarm: AlarmActive, Measure: true, Reason: ReasonAuto},
			flags: "(Alarm)(Measure)",
		},
		{
			name:  "old alarm only",
			b:     0x22,
			want:  Header{Alarm: AlarmStale, Reason: ReasonAuto},
			flags: "(old Alarm)",
		},
		{
			name:  "reset alarm manual",
			b:     0xC3,
			want:  Header{Reset: true, Alarm: AlarmActive, Reason: ReasonManual},
			flags: "(Reset)(Alarm)",
		},
		{
			name:  "unknown reason",
			b:     0x05,
			want:  Header{Reason: Reason(5)},
			flags: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ParseHeader(tt.b)
			if h != tt.want {
				t.Errorf("ParseHeader(0x%02X) = %+v, want %+v", tt.b, h, tt.want)
			}
			if h.FlagsString() != tt.flags {
				t.Errorf("FlagsString() = %q, want %q", h.FlagsString(), tt.flags)
			}
			if ParseHeader(h.Byte()) != h {
				t.Errorf("Byte() 0x%02X does not parse back to %+v", h.Byte(), h)
			}
		})
	}
}

func TestReasonString(t *testing.T) {
	tests := []struct {
		reason Reason
		want   string
		known  bool
	}{
		{ReasonAuto, "(Auto)", true},
		{ReasonManual, "(Manual)", true},
		{Reason(0), "(Reason:0?)", false},
		{Reason(15), "(Reason:15?)", false},
	}
	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("Reason(%d).String() = %q, want %q", uint8(tt.reason), got, tt.want)
		}
		if tt.reason.Known() != tt.known {
			t.Errorf("Reason(%d).Known() = %v, want %v", uint8(tt.reason), tt.reason.Known(), tt.known)
		}
	}
}

// ============================================================
// Error Code Tests
// ============================================================

func TestErrorCodeString(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{0, "NumberOverflow"},
		{1, "NoValue"},
		{2, "NoReply"},
		{3, "OldValue"},
		{4, "Err4"},
		{5, "Err5"},
		{6, "ErrorCRC"},
		{7, "DataError"},
		{8, "NoCachedValue"},
		{9, "Err9"},
		{1023, "Err1023"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("ErrorCode(%d).String() = %q, want %q", uint32(tt.code), got, tt.want)
		}
		parsed, ok := ParseErrorCode(tt.want)
		if !ok || parsed != tt.code {
			t.Errorf("ParseErrorCode(%q) = %d, %v; want %d, true", tt.want, parsed, ok, tt.code)
		}
	}

	if _, ok := ParseErrorCode("bogus"); ok {
		t.Error("Expected ParseErrorCode to reject unknown names")
	}
	if ErrorCode(4).Known() {
		t.Error("Reserved code 4 should not be known")
	}
}

// ============================================================
// Cursor Tests
// ============================================================

func TestCursor_Reads(t *testing.T) {
	c := NewCursor([]byte{0x12, 0x42, 0xA3, 0x41, 0xA4, 0xE1, 0x48})

	b, err := c.ReadU8()
	if err != nil || b != 0x12 {
		t.Fatalf("ReadU8() = 0x%02X, %v; want 0x12, nil", b, err)
	}
	u16, err := c.ReadU16BE()
	if err != nil || u16 != 0x42A3 {
		t.Fatalf("ReadU16BE() = 0x%04X, %v; want 0x42A3, nil", u16, err)
	}
	u32, err := c.ReadU32BE()
	if err != nil || u32 != 0x41A4E148 {
		t.Fatalf("ReadU32BE() = 0x%08X, %v; want 0x41A4E148, nil", u32, err)
	}
	if c.Remaining() != 0 || c.Position() != 7 {
		t.Errorf("Expected exhausted cursor at 7, got pos=%d remaining=%d", c.Position(), c.Remaining())
	}
}

func TestCursor_ShortRead(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02, 0x03})
	c.ReadU8()

	_, err := c.ReadU32BE()
	var sr *ShortReadError
	if !errors.As(err, &sr) {
		t.Fatalf("Expected ShortReadError, got %v", err)
	}
	if sr.Offset != 1 || sr.Need != 4 || sr.Have != 2 {
		t.Errorf("Unexpected short read details: %+v", sr)
	}

	// A failed read must not consume bytes
	u16, err := c.ReadU16BE()
	if err != nil || u16 != 0x0203 {
		t.Errorf("ReadU16BE() after short read = 0x%04X, %v; want 0x0203, nil", u16, err)
	}
	if _, err := c.ReadU8(); err == nil {
		t.Error("Expected error reading past end")
	}
}

// ============================================================
// Profile Tests
// ============================================================

func TestDefaultProfiles(t *testing.T) {
	p := DefaultProfiles()

	tests := []struct {
		port  int
		dtidx int
		unit  string
		ok    bool
	}{
		{10, 0, "°C", true},
		{10, 5, "°C", true},
		{11, 0, "%rH", true},
		{11, 1, "°C", true},
		{11, 2, "%rH", true},
		{14, 1, "dBm", true},
		{15, 3, "uS/cm", true},
		{1, 0, "", false},
		{199, 0, "", false},
	}
	for _, tt := range tests {
		unit, ok := p.UnitAt(tt.port, tt.dtidx)
		if unit != tt.unit || ok != tt.ok {
			t.Errorf("UnitAt(%d, %d) = %q, %v; want %q, %v", tt.port, tt.dtidx, unit, ok, tt.unit, tt.ok)
		}
	}
}

func TestProfileTable_Custom(t *testing.T) {
	custom, err := NewProfileTable(map[int][]string{
		3:  {"kPa"},
		10: {"K"},
		4:  {},
	})
	if err != nil {
		t.Fatalf("NewProfileTable failed: %v", err)
	}

	merged := DefaultProfiles().Merge(custom)
	if u, _ := merged.UnitAt(3, 7); u != "kPa" {
		t.Errorf("Expected custom port 3 unit kPa, got %q", u)
	}
	if u, _ := merged.UnitAt(10, 0); u != "K" {
		t.Errorf("Expected override on port 10, got %q", u)
	}
	if u, _ := merged.UnitAt(11, 0); u != "%rH" {
		t.Errorf("Expected built-in port 11 to survive merge, got %q", u)
	}
	if merged.Units(4) != nil {
		t.Error("Empty unit lists should not create a profile")
	}
	if u, _ := DefaultProfiles().UnitAt(10, 0); u != "°C" {
		t.Errorf("Merge must not modify the built-in table, got %q", u)
	}

	if _, err := NewProfileTable(map[int][]string{200: {"V"}}); err == nil {
		t.Error("Expected error for profile port out of range")
	}
}

func TestHKDescription(t *testing.T) {
	tests := map[int]string{
		90: "V(HK_Bat)",
		91: "°C(HK_intTemp)",
		92: "%rH(HK_intHum.)",
		93: "mAh(HK_usedEnergy)",
		94: "mBar(HK_Baro)",
		95: HKUnknown,
		99: HKUnknown,
	}
	for ch, want := range tests {
		if got := HKDescription(ch); got != want {
			t.Errorf("HKDescription(%d) = %q, want %q", ch, got, want)
		}
	}
}

// ============================================================
// Reading Tests
// ============================================================

func TestChannelReading_TaggedUnion(t *testing.T) {
	v := NewValueReading(3, PrecisionF32, "m", 1.25)
	if v.IsError() {
		t.Error("Value reading reports IsError")
	}
	if _, ok := v.Err(); ok {
		t.Error("Value reading must not carry an error code")
	}

	e := NewErrorReading(4, PrecisionF16, "", ErrOldValue)
	if !e.IsError() {
		t.Error("Error reading reports !IsError")
	}
	if _, ok := e.Value(); ok {
		t.Error("Error reading must not carry a value")
	}

	// Non-finite numbers never become values
	inf := NewValueReading(5, PrecisionF32, "", posInf())
	expectError(t, inf, 5, PrecisionF32, ErrNumberOverflow)
}
