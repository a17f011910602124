// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import "fmt"

// ProfileTable maps an uplink port to the units its standard channels
// cycle through. Tables are immutable once built.
type ProfileTable struct {
	units map[int][]string
}

// NewProfileTable builds a table from the given entries. Slices are copied.
func NewProfileTable(entries map[int][]string) (*ProfileTable, error) {
	t := &ProfileTable{units: make(map[int][]string, len(entries))}
	for port, units := range entries {
		if port < MinUplinkPort || port > MaxUplinkPort {
			return nil, fmt.Errorf("profile port %d out of range %d-%d", port, MinUplinkPort, MaxUplinkPort)
		}
		if len(units) == 0 {
			continue
		}
		t.units[port] = append([]string(nil), units...)
	}
	return t, nil
}

// Merge returns a new table with other's entries layered over t's
func (t *ProfileTable) Merge(other *ProfileTable) *ProfileTable {
	if other == nil {
		return t
	}
	merged := &ProfileTable{units: make(map[int][]string, len(t.units)+len(other.units))}
	for port, units := range t.units {
		merged.units[port] = units
	}
	for port, units := range other.units {
		merged.units[port] = units
	}
	return merged
}

// Units returns the unit cycle for port, or nil when the port has none
func (t *ProfileTable) Units(port int) []string {
	if t == nil {
		return nil
	}
	return t.units[port]
}

// UnitAt returns the unit for the dtidx'th standard value on port
func (t *ProfileTable) UnitAt(port, dtidx int) (string, bool) {
	units := t.Units(port)
	if len(units) == 0 {
		return "", false
	}
	return units[dtidx%len(units)], true
}

// Ports 1-9 are free for custom sensors
var defaultProfiles = mustProfileTable(map[int][]string{
	10: {"°C"},          // all channels are temperatures
	11: {"%rH", "°C"},   // rH/T sensor
	12: {"Bar", "°C"},   // pressure/level sensor
	13: {"m", "°C"},     // level sensor
	14: {"m", "dBm"},    // radar distance
	15: {"°C", "uS/cm"}, // water conductivity
})

// DefaultProfiles returns the built-in LTX sensor profiles
func DefaultProfiles() *ProfileTable {
	return defaultProfiles
}

func mustProfileTable(entries map[int][]string) *ProfileTable {
	t, err := NewProfileTable(entries)
	if err != nil {
		panic(fmt.Sprintf("ltx: %v", err))
	}
	return t
}

// HKUnknown describes housekeeping channels without an assigned meaning
const HKUnknown = "HK_unknown"

var hkDescriptions = map[int]string{
	HKBattery:     "V(HK_Bat)",
	HKTemperature: "°C(HK_intTemp)",
	HKHumidity:    "%rH(HK_intHum.)",
	HKEnergy:      "mAh(HK_usedEnergy)",
	HKBarometer:   "mBar(HK_Baro)",
}

// HKDescription returns the unit and description of a housekeeping channel
func HKDescription(channel int) string {
	if d, ok := hkDescriptions[channel]; ok {
		return d
	}
	return HKUnknown
}
