// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBOR layout of an exported result:
//
//	{0: port, 1: flags byte, 2: [reading...], 3: jumped, 4: next channel}
//	reading = {0: channel, 1: precision, 2: unit, 3: value | 4: error code}
type cborResult struct {
	Port        int           `cbor:"0,keyasint"`
	Flags       uint8         `cbor:"1,keyasint"`
	Channels    []cborReading `cbor:"2,keyasint"`
	Jumped      bool          `cbor:"3,keyasint,omitempty"`
	NextChannel int           `cbor:"4,keyasint"`
}

type cborReading struct {
	Channel   int      `cbor:"0,keyasint"`
	Precision uint8    `cbor:"1,keyasint"`
	Unit      string   `cbor:"2,keyasint,omitempty"`
	Value     *float64 `cbor:"3,keyasint,omitempty"`
	Code      *uint32  `cbor:"4,keyasint,omitempty"`
}

// Values are re-encoded in the shortest float width that keeps them exact
var cborEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{ShortestFloat: cbor.ShortestFloat16}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("ltx: cbor enc mode: %v", err))
	}
	return em
}()

// MarshalCBOR exports a result as compact CBOR
func MarshalCBOR(d *DecodeResult) ([]byte, error) {
	out := cborResult{
		Port:        d.Port,
		Flags:       d.Header.Byte(),
		Channels:    make([]cborReading, 0, len(d.Channels)),
		Jumped:      d.Jumped,
		NextChannel: d.NextChannel,
	}
	for _, r := range d.Channels {
		cr := cborReading{Channel: r.channel, Precision: uint8(r.precision), Unit: r.unit}
		if r.isError {
			code := uint32(r.code)
			cr.Code = &code
		} else {
			v := r.value
			cr.Value = &v
		}
		out.Channels = append(out.Channels, cr)
	}
	return cborEncMode.Marshal(out)
}

// UnmarshalCBOR imports a result exported by MarshalCBOR
func UnmarshalCBOR(data []byte) (*DecodeResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}
	var in cborResult
	if err := cbor.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}

	d := &DecodeResult{
		Port:        in.Port,
		Header:      ParseHeader(in.Flags),
		Channels:    make([]ChannelReading, 0, len(in.Channels)),
		Jumped:      in.Jumped,
		NextChannel: in.NextChannel,
	}
	for i, cr := range in.Channels {
		precision := Precision(cr.Precision)
		if precision != PrecisionF32 && precision != PrecisionF16 {
			return nil, fmt.Errorf("reading %d: unknown precision %d", i, cr.Precision)
		}
		switch {
		case cr.Code != nil && cr.Value == nil:
			d.Channels = append(d.Channels, NewErrorReading(cr.Channel, precision, cr.Unit, ErrorCode(*cr.Code)))
		case cr.Value != nil && cr.Code == nil:
			d.Channels = append(d.Channels, NewValueReading(cr.Channel, precision, cr.Unit, *cr.Value))
		default:
			return nil, fmt.Errorf("reading %d: expected exactly one of value or error code", i)
		}
	}
	return d, nil
}
