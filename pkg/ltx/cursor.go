// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"encoding/binary"
	"fmt"
)

// ShortReadError reports a read past the end of the frame
type ShortReadError struct {
	Offset int
	Need   int
	Have   int
}

// Error implements the error interface
func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short read at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}

// Cursor walks a frame front to back. Bytes are never re-read.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor creates a cursor positioned at the first byte of data
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Position returns the offset of the next unread byte
func (c *Cursor) Position() int {
	return c.pos
}

// Remaining returns the number of unread bytes
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

func (c *Cursor) take(n int) ([]byte, error) {
	if c.Remaining() < n {
		return nil, &ShortReadError{Offset: c.pos, Need: n, Have: c.Remaining()}
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadU8 reads one byte
func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16BE reads a big-endian uint16
func (c *Cursor) ReadU16BE() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32BE reads a big-endian uint32
func (c *Cursor) ReadU32BE() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}
