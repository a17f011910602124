// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"strings"
	"testing"
)

func hasAnomaly(anomalies []Anomaly, typ AnomalyType, channel int) bool {
	for _, a := range anomalies {
		if a.Type == typ && a.Channel == channel {
			return true
		}
	}
	return false
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateResult_Clean(t *testing.T) {
	res, err := DecodeUplink(mustHex("13 01 41A4E148 9F 42A3 4DA8 5172 2B3F 63E8"), 1)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	anomalies := ValidateResult(res)
	if anomalies == nil {
		t.Error("Expected empty slice, got nil")
	}
	if len(anomalies) != 0 {
		t.Errorf("Expected no anomalies, got %+v", anomalies)
	}
}

func TestValidateResult_SensorErrors(t *testing.T) {
	res, err := DecodeUplink(mustHex("7242FC02FC0201FF800002884479"), 1)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	anomalies := ValidateResult(res)
	if len(anomalies) != 3 {
		t.Fatalf("Expected 3 anomalies, got %+v", anomalies)
	}
	for ch := 0; ch < 3; ch++ {
		if !hasAnomaly(anomalies, AnomalySensorError, ch) {
			t.Errorf("Expected sensor error on channel %d", ch)
		}
	}
	if !strings.Contains(anomalies[0].Message, "NoReply") {
		t.Errorf("Expected message to name the code, got %q", anomalies[0].Message)
	}
}

func TestValidateResult_Housekeeping(t *testing.T) {
	tests := []struct {
		name    string
		hk      map[int]FrameValue
		typ     AnomalyType
		channel int
	}{
		{"low battery", map[int]FrameValue{0: V(2.5)}, AnomalyLowBattery, HKBattery},
		{"cold", map[int]FrameValue{1: V(-50)}, AnomalyInvalidTemp, HKTemperature},
		{"hot", map[int]FrameValue{1: V(90)}, AnomalyInvalidTemp, HKTemperature},
		{"humidity", map[int]FrameValue{2: V(120)}, AnomalyInvalidHumidity, HKHumidity},
		{"unassigned", map[int]FrameValue{6: V(1)}, AnomalyUnknownHK, 96},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := NewFrameBuilder(Header{Reason: ReasonAuto}).HK(tt.hk).MustBytes()
			res, err := DecodeUplink(frame, 1)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			anomalies := ValidateResult(res)
			if len(anomalies) != 1 || !hasAnomaly(anomalies, tt.typ, tt.channel) {
				t.Errorf("Expected %s on channel %d, got %+v", tt.typ, tt.channel, anomalies)
			}
		})
	}
}

func TestValidateResult_HousekeepingErrorIsSensorError(t *testing.T) {
	frame := NewFrameBuilder(Header{}).HK(map[int]FrameValue{0: E(ErrNoValue)}).MustBytes()
	res, err := DecodeUplink(frame, 1)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	anomalies := ValidateResult(res)
	if len(anomalies) != 1 || anomalies[0].Type != AnomalySensorError {
		t.Errorf("Expected a single sensor error, got %+v", anomalies)
	}
}

func TestValidateResult_ChannelConflicts(t *testing.T) {
	// A jump back is terminal, so duplicates only arise from HK
	// blocks re-entering the same slots
	frame := NewFrameBuilder(Header{}).
		F16(V(1)).
		Raw(0x80).
		F16(V(1)).
		MustBytes()
	res, err := DecodeUplink(frame, 1)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(ValidateResult(res)) != 0 {
		t.Errorf("Expected no conflicts, got %+v", ValidateResult(res))
	}

	d := &DecodeResult{Channels: []ChannelReading{
		NewValueReading(4, PrecisionF32, "", 1),
		NewValueReading(4, PrecisionF32, "", 2),
		NewValueReading(130, PrecisionF32, "", 3),
	}}
	anomalies := ValidateResult(d)
	if !hasAnomaly(anomalies, AnomalyDuplicateChannel, 4) {
		t.Errorf("Expected duplicate channel 4, got %+v", anomalies)
	}
	if !hasAnomaly(anomalies, AnomalyChannelRange, 130) {
		t.Errorf("Expected range anomaly on 130, got %+v", anomalies)
	}
}

func TestAnomalyTypeString(t *testing.T) {
	if AnomalyLowBattery.String() != "low_battery" {
		t.Errorf("Unexpected name %q", AnomalyLowBattery.String())
	}
	if AnomalyType(99).String() != "unknown" {
		t.Errorf("Unexpected name %q", AnomalyType(99).String())
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()

	good, err := DecodeUplink(mustHex("13 01 41A4E148 9F 42A3 4DA8 5172 2B3F 63E8"), 1)
	if err != nil {
		t.Fatal(err)
	}
	s.Update(good, nil, ValidateResult(good))

	bad, err := DecodeUplink(mustHex("7242FC02FC0201FF800002884479"), 1)
	if err != nil {
		t.Fatal(err)
	}
	s.Update(bad, nil, ValidateResult(bad))

	_, err = DecodeUplink([]byte{0x12, 0x01, 0x41}, 1)
	s.Update(nil, err, nil)
	_, err = DecodeUplink([]byte{0x12}, 0)
	s.Update(nil, err, nil)
	_, err = DecodeUplink(nil, 1)
	s.Update(nil, err, nil)

	if s.TotalFrames != 5 {
		t.Errorf("Expected 5 frames, got %d", s.TotalFrames)
	}
	if s.ValidFrames != 1 {
		t.Errorf("Expected 1 valid frame, got %d", s.ValidFrames)
	}
	if s.AnomalousFrames != 1 || s.SensorErrors != 3 {
		t.Errorf("Expected 1 anomalous frame with 3 sensor errors, got %d/%d", s.AnomalousFrames, s.SensorErrors)
	}
	if s.Readings != 10 {
		t.Errorf("Expected 10 readings, got %d", s.Readings)
	}
	if s.DecodeErrors != 3 || s.TruncatedFrames != 1 || s.UnknownPorts != 1 || s.EmptyFrames != 1 {
		t.Errorf("Unexpected error breakdown %+v", s)
	}
}

func TestStatistics_StringAndReset(t *testing.T) {
	s := NewStatistics()
	_, err := DecodeUplink([]byte{0x12, 0x00}, 1)
	s.Update(nil, err, nil)

	out := s.String()
	for _, want := range []string{"Total Frames:", "Decode Errors:", "Truncated:", "Frame Rate:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}

	s.Reset()
	if s.TotalFrames != 0 || s.DecodeErrors != 0 {
		t.Errorf("Expected counters cleared, got %+v", s)
	}
}
