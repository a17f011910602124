// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import "fmt"

// AnomalyType represents different kinds of suspicious frame content
type AnomalyType int

const (
	AnomalySensorError AnomalyType = iota
	AnomalyLowBattery
	AnomalyInvalidTemp
	AnomalyInvalidHumidity
	AnomalyUnknownHK
	AnomalyChannelRange
	AnomalyDuplicateChannel
)

// String returns the anomaly type name
func (a AnomalyType) String() string {
	switch a {
	case AnomalySensorError:
		return "sensor_error"
	case AnomalyLowBattery:
		return "low_battery"
	case AnomalyInvalidTemp:
		return "invalid_temp"
	case AnomalyInvalidHumidity:
		return "invalid_humidity"
	case AnomalyUnknownHK:
		return "unknown_hk"
	case AnomalyChannelRange:
		return "channel_range"
	case AnomalyDuplicateChannel:
		return "duplicate_channel"
	default:
		return "unknown"
	}
}

// Plausibility limits for housekeeping values
const (
	MinBatteryVoltage = 2.8
	MinInternalTemp   = -40.0
	MaxInternalTemp   = 85.0
)

// Anomaly describes one suspicious reading in a successfully decoded frame
type Anomaly struct {
	Type    AnomalyType
	Channel int
	Message string
	Details map[string]interface{}
}

// ValidateResult checks a decoded frame for sensor errors and implausible
// housekeeping values. Returns an empty slice when nothing is suspicious.
func ValidateResult(d *DecodeResult) []Anomaly {
	anomalies := []Anomaly{}
	seen := make(map[int]bool, len(d.Channels))

	for _, r := range d.Channels {
		ch := r.Channel()

		if seen[ch] {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalyDuplicateChannel,
				Channel: ch,
				Message: fmt.Sprintf("Channel %d reported more than once", ch),
				Details: map[string]interface{}{"channel": ch},
			})
		}
		seen[ch] = true

		if ch >= ChannelLimitV117 {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalyChannelRange,
				Channel: ch,
				Message: fmt.Sprintf("Channel %d beyond addressable range (max %d)", ch, ChannelLimitV117-1),
				Details: map[string]interface{}{"channel": ch, "max": ChannelLimitV117 - 1},
			})
		}

		if code, isErr := r.Err(); isErr {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalySensorError,
				Channel: ch,
				Message: fmt.Sprintf("Channel %d reports %s", ch, code),
				Details: map[string]interface{}{"code": uint32(code), "name": code.String()},
			})
			continue
		}

		if r.IsHousekeeping() {
			anomalies = append(anomalies, validateHousekeeping(r)...)
		}
	}

	return anomalies
}

// validateHousekeeping checks one housekeeping value against its limits
func validateHousekeeping(r ChannelReading) []Anomaly {
	v, _ := r.Value()
	ch := r.Channel()

	switch ch {
	case HKBattery:
		if v < MinBatteryVoltage {
			return []Anomaly{{
				Type:    AnomalyLowBattery,
				Channel: ch,
				Message: fmt.Sprintf("Battery low (%.3f V, min %.1f V)", v, MinBatteryVoltage),
				Details: map[string]interface{}{"value": v, "min": MinBatteryVoltage},
			}}
		}
	case HKTemperature:
		if v < MinInternalTemp || v > MaxInternalTemp {
			return []Anomaly{{
				Type:    AnomalyInvalidTemp,
				Channel: ch,
				Message: fmt.Sprintf("Internal temperature out of range (%.1f°C, valid: %.0f to %.0f°C)", v, MinInternalTemp, MaxInternalTemp),
				Details: map[string]interface{}{"value": v, "min": MinInternalTemp, "max": MaxInternalTemp},
			}}
		}
	case HKHumidity:
		if v < 0 || v > 100 {
			return []Anomaly{{
				Type:    AnomalyInvalidHumidity,
				Channel: ch,
				Message: fmt.Sprintf("Internal humidity out of range (%.1f%%, valid: 0 to 100%%)", v),
				Details: map[string]interface{}{"value": v, "min": 0.0, "max": 100.0},
			}}
		}
	default:
		if HKDescription(ch) == HKUnknown {
			return []Anomaly{{
				Type:    AnomalyUnknownHK,
				Channel: ch,
				Message: fmt.Sprintf("Unassigned housekeeping channel %d", ch),
				Details: map[string]interface{}{"channel": ch, "value": v},
			}}
		}
	}
	return nil
}
