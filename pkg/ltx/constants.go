// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ltx decodes LTX uplink frames and encodes LTX downlink commands.
//
// An LTX frame is the compact binary payload a battery powered LTX logger
// sends over LoRaWAN. Byte 0 carries flags and the transmit reason; the rest
// is a token stream of Float32/Float16 channel runs and bitmask addressed
// housekeeping blocks. The fPort selects the physical units of the
// standard channels.
package ltx

// Port range for LTX standard uplinks
const (
	MinUplinkPort = 1
	MaxUplinkPort = 199
)

// Downlink command limits
const (
	CommandPort      = 10
	MaxCommandLength = 51
)

// Header flag bits (byte 0)
const (
	flagReset      = 0x80
	flagAlarm      = 0x40
	flagOldAlarm   = 0x20
	flagMeasure    = 0x10
	reasonMask     = 0x0F
	reasonCodeAuto = 2
	reasonCodeMan  = 3
)

// Token layout
const (
	tokenHK        = 0x80 // set: housekeeping bitmask token
	tokenF16       = 0x40 // standard run carries Float16 values
	tokenCountMask = 0x3F // standard run length, 0 = channel jump
)

// Housekeeping channels occupy 90..99
const (
	HKFirstChannel = 90
	HKLastChannel  = 99
)

// Housekeeping channel indices
const (
	HKBattery     = 90
	HKTemperature = 91
	HKHumidity    = 92
	HKEnergy      = 93
	HKBarometer   = 94
)

// Value widths in bytes
const (
	f32Width = 4
	f16Width = 2
)

// Sentinel patterns. A value whose sign and exponent bits are all set
// carries an LTX error code in its mantissa instead of a number.
const (
	f32SentinelShift = 23
	f32SentinelTag   = 0x1FF
	f32CodeMask      = 0x7FFFFF
	f16SentinelShift = 10
	f16SentinelTag   = 0x3F
	f16CodeMask      = 0x3FF
)

// Format revision parameters
const (
	HKMaskBitsV117     = 7
	HKMaskBitsLegacy   = 6
	ChannelLimitV117   = 128
	ChannelLimitLegacy = 127
)

// Revision selects the frame layout differences between deployed LTX
// firmware generations.
type Revision struct {
	Name         string
	HKMaskBits   int // housekeeping token bits scanned, LSB first
	ChannelLimit int // decoding stops once the channel cursor reaches this
}

// Known revisions
var (
	RevisionV117   = Revision{Name: "v1.17", HKMaskBits: HKMaskBitsV117, ChannelLimit: ChannelLimitV117}
	RevisionLegacy = Revision{Name: "legacy", HKMaskBits: HKMaskBitsLegacy, ChannelLimit: ChannelLimitLegacy}
)

// RevisionByName looks up a known revision by name
func RevisionByName(name string) (Revision, bool) {
	switch name {
	case RevisionV117.Name, "", "latest":
		return RevisionV117, true
	case RevisionLegacy.Name:
		return RevisionLegacy, true
	}
	return Revision{}, false
}

func (r Revision) hkMask() byte {
	return byte(1<<r.HKMaskBits) - 1
}
