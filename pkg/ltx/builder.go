// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FrameValue is one value queued in a FrameBuilder: a number or an
// error code to be sent as a sentinel
type FrameValue struct {
	Value   float64
	Code    ErrorCode
	IsError bool
}

// V wraps a number
func V(v float64) FrameValue {
	return FrameValue{Value: v}
}

// E wraps an error code
func E(code ErrorCode) FrameValue {
	return FrameValue{Code: code, IsError: true}
}

// FrameBuilder assembles LTX uplink frames the way logger firmware does.
// It is used for simulation and tests.
type FrameBuilder struct {
	revision Revision
	buf      []byte
	err      error
}

// NewFrameBuilder starts a frame with the given header
func NewFrameBuilder(h Header) *FrameBuilder {
	return NewFrameBuilderFor(RevisionV117, h)
}

// NewFrameBuilderFor starts a frame for a specific format revision
func NewFrameBuilderFor(revision Revision, h Header) *FrameBuilder {
	return &FrameBuilder{revision: revision, buf: []byte{h.Byte()}}
}

// F32 appends a run of Float32 values. Runs longer than 63 are split.
func (b *FrameBuilder) F32(values ...FrameValue) *FrameBuilder {
	return b.run(PrecisionF32, values)
}

// F16 appends a run of Float16 values. Runs longer than 63 are split.
func (b *FrameBuilder) F16(values ...FrameValue) *FrameBuilder {
	return b.run(PrecisionF16, values)
}

func (b *FrameBuilder) run(precision Precision, values []FrameValue) *FrameBuilder {
	for len(values) > 0 {
		n := len(values)
		if n > tokenCountMask {
			n = tokenCountMask
		}
		tok := byte(n)
		if precision == PrecisionF16 {
			tok |= tokenF16
		}
		b.buf = append(b.buf, tok)
		for _, v := range values[:n] {
			if precision == PrecisionF16 {
				b.buf = binary.BigEndian.AppendUint16(b.buf, encodeF16(v))
			} else {
				b.buf = binary.BigEndian.AppendUint32(b.buf, encodeF32(v))
			}
		}
		values = values[n:]
	}
	return b
}

// HK appends a housekeeping block. Keys are offsets from the block start
// (0 = first slot after the decoder clamps to channel 90); offsets beyond
// the revision's mask width are rejected.
func (b *FrameBuilder) HK(values map[int]FrameValue) *FrameBuilder {
	var mask byte
	for off := range values {
		if off < 0 || off >= b.revision.HKMaskBits {
			b.err = fmt.Errorf("housekeeping offset %d outside %d-bit mask", off, b.revision.HKMaskBits)
			return b
		}
		mask |= 1 << off
	}
	b.buf = append(b.buf, tokenHK|mask)
	for off := 0; off < b.revision.HKMaskBits; off++ {
		if v, ok := values[off]; ok {
			b.buf = binary.BigEndian.AppendUint16(b.buf, encodeF16(v))
		}
	}
	return b
}

// Jump appends a channel jump marker, which ends decoding
func (b *FrameBuilder) Jump(channel uint8) *FrameBuilder {
	b.buf = append(b.buf, 0x00, channel)
	return b
}

// Raw appends bytes verbatim
func (b *FrameBuilder) Raw(data ...byte) *FrameBuilder {
	b.buf = append(b.buf, data...)
	return b
}

// Bytes returns the assembled frame
func (b *FrameBuilder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return append([]byte(nil), b.buf...), nil
}

// MustBytes returns the assembled frame and panics on a builder error
func (b *FrameBuilder) MustBytes() []byte {
	data, err := b.Bytes()
	if err != nil {
		panic(fmt.Sprintf("ltx: frame builder: %v", err))
	}
	return data
}

func encodeF16(v FrameValue) uint16 {
	if v.IsError {
		return F16Sentinel(v.Code)
	}
	return Float64ToFloat16(v.Value)
}

func encodeF32(v FrameValue) uint32 {
	if v.IsError {
		return F32Sentinel(v.Code)
	}
	return math.Float32bits(float32(v.Value))
}
