// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package uplink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// maxLineLength bounds one bridge line. Longer runs without a newline are
// line noise and are dropped.
const maxLineLength = 4096

// LineSource reads bridge lines from a byte stream, typically a serial
// port attached to a LoRaWAN modem
type LineSource struct {
	rwc     io.ReadWriteCloser
	scanner *bufio.Scanner
	writeMu sync.Mutex
	now     func() time.Time
}

// NewLineSource wraps a byte stream
func NewLineSource(rwc io.ReadWriteCloser) *LineSource {
	scanner := bufio.NewScanner(rwc)
	scanner.Buffer(make([]byte, 0, 512), maxLineLength)
	scanner.Split(scanBridgeLines)
	return &LineSource{
		rwc:     rwc,
		scanner: scanner,
		now:     time.Now,
	}
}

// scanBridgeLines splits like bufio.ScanLines but discards a full buffer
// that holds no newline instead of failing with bufio.ErrTooLong
func scanBridgeLines(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := bufio.ScanLines(data, atEOF)
	if advance == 0 && token == nil && err == nil && len(data) >= maxLineLength {
		return len(data), nil, nil
	}
	return advance, token, err
}

// ReadUplink returns the next valid line. Malformed lines are returned as
// errors so the caller can count them; the stream stays usable. A failed
// read ends the scanner, so it is reported as ErrConnectionClosed.
func (s *LineSource) ReadUplink() (Uplink, error) {
	for s.scanner.Scan() {
		u, ok, err := ParseLine(s.scanner.Text())
		if err != nil {
			return Uplink{}, err
		}
		if !ok {
			continue
		}
		u.Received = s.now()
		return u, nil
	}
	if err := s.scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return Uplink{}, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return Uplink{}, ErrConnectionClosed
}

// WriteDownlink writes d as one bridge line
func (s *LineSource) WriteDownlink(d Downlink) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := io.WriteString(s.rwc, FormatLine(d)+"\n")
	return err
}

// Close closes the underlying stream
func (s *LineSource) Close() error {
	return s.rwc.Close()
}

// OpenSerial opens a serial modem bridge
func OpenSerial(portName string, baudRate int) (*LineSource, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return NewLineSource(port), nil
}
