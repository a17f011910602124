// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import "errors"

// Decoder decodes LTX uplink frames. A Decoder holds only immutable
// configuration and is safe for concurrent use.
type Decoder struct {
	revision Revision
	profiles *ProfileTable
}

// NewDecoder creates a decoder for the latest format revision with the
// built-in port profiles
func NewDecoder() *Decoder {
	return &Decoder{
		revision: RevisionV117,
		profiles: DefaultProfiles(),
	}
}

// NewDecoderWith creates a decoder for the given revision and profiles.
// A nil profile table disables unit tagging.
func NewDecoderWith(revision Revision, profiles *ProfileTable) *Decoder {
	return &Decoder{revision: revision, profiles: profiles}
}

// Revision returns the format revision the decoder expects
func (d *Decoder) Revision() Revision {
	return d.revision
}

var defaultDecoder = NewDecoder()

// DecodeUplink decodes a frame received on port with the default decoder
func DecodeUplink(payload []byte, port int) (*DecodeResult, error) {
	return defaultDecoder.Decode(payload, port)
}

// Decode decodes a complete frame. On error the result is nil.
func (d *Decoder) Decode(payload []byte, port int) (*DecodeResult, error) {
	if port < MinUplinkPort || port > MaxUplinkPort {
		return nil, &FormatError{Code: ErrUnknownPort, Port: port}
	}
	if len(payload) < 1 {
		return nil, &FormatError{Code: ErrEmptyFrame}
	}

	c := NewCursor(payload)
	flags, _ := c.ReadU8()

	s := &tokenStream{
		cursor:   c,
		revision: d.revision,
		units:    d.profiles.Units(port),
		result: &DecodeResult{
			Port:     port,
			Header:   ParseHeader(flags),
			Channels: make([]ChannelReading, 0, len(payload)/2),
		},
	}
	if err := s.run(); err != nil {
		return nil, err
	}
	s.result.NextChannel = s.ichan
	return s.result, nil
}

// tokenStream is the per-call decode state
type tokenStream struct {
	cursor   *Cursor
	revision Revision
	units    []string
	ichan    int // channel cursor
	dtidx    int // position in the unit cycle, standard runs only
	result   *DecodeResult
}

func (s *tokenStream) run() error {
	for s.cursor.Remaining() > 0 && s.ichan < s.revision.ChannelLimit {
		tok, _ := s.cursor.ReadU8()

		if tok&tokenHK != 0 {
			if err := s.housekeeping(tok); err != nil {
				return err
			}
			continue
		}

		count := int(tok & tokenCountMask)
		if count == 0 {
			target, err := s.cursor.ReadU8()
			if err != nil {
				return &FormatError{Code: ErrTruncatedJump, Channel: s.ichan, Err: err}
			}
			s.ichan = int(target)
			s.result.Jumped = true
			return nil
		}

		precision := PrecisionF32
		if tok&tokenF16 != 0 {
			precision = PrecisionF16
		}
		for ; count > 0; count-- {
			if err := s.standardValue(precision); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *tokenStream) standardValue(precision Precision) error {
	unit := ""
	if len(s.units) > 0 {
		unit = s.units[s.dtidx%len(s.units)]
	}

	r, err := s.readValue(precision, unit)
	if err != nil {
		return &FormatError{Code: ErrTruncatedValue, Channel: s.ichan, Err: err}
	}
	s.result.Channels = append(s.result.Channels, r)
	s.dtidx++
	s.ichan++
	return nil
}

func (s *tokenStream) housekeeping(tok byte) error {
	if s.ichan < HKFirstChannel {
		s.ichan = HKFirstChannel
	}
	bits := tok & s.revision.hkMask()
	for i := 0; i < s.revision.HKMaskBits; i++ {
		if bits&1 != 0 {
			r, err := s.readValue(PrecisionF16, HKDescription(s.ichan))
			if err != nil {
				return &FormatError{Code: ErrTruncatedHK, Channel: s.ichan, Err: err}
			}
			s.result.Channels = append(s.result.Channels, r)
		}
		s.ichan++
		bits >>= 1
	}
	return nil
}

func (s *tokenStream) readValue(precision Precision, unit string) (ChannelReading, error) {
	var (
		v    float64
		code ErrorCode
		ok   bool
	)
	switch precision {
	case PrecisionF16:
		bits, err := s.cursor.ReadU16BE()
		if err != nil {
			return ChannelReading{}, err
		}
		v, code, ok = DecodeF16(bits)
	case PrecisionF32:
		bits, err := s.cursor.ReadU32BE()
		if err != nil {
			return ChannelReading{}, err
		}
		v, code, ok = DecodeF32(bits)
	default:
		return ChannelReading{}, errors.New("unknown precision")
	}
	if !ok {
		return NewErrorReading(s.ichan, precision, unit, code), nil
	}
	return NewValueReading(s.ichan, precision, unit, v), nil
}
