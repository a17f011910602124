// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ltx

import (
	"fmt"
	"unicode/utf8"
)

// DownlinkInput mirrors the network-server encodeDownlink contract:
// Data["cmd"] holds the command text, FPort the requested port (optional).
type DownlinkInput struct {
	Data  map[string]interface{}
	FPort *int
}

// Downlink is an encoded command ready to queue for the device
type Downlink struct {
	FPort    int
	Bytes    []byte
	Warnings []string
}

// EncodeDownlink validates input and encodes its command. Only a missing
// or non-string command is an error; port and length problems become
// warnings.
func EncodeDownlink(input DownlinkInput) (*Downlink, error) {
	raw, ok := input.Data["cmd"]
	if !ok {
		return nil, &ValidationError{Code: ErrMissingCommand, Message: "LTX: Missing or invalid 'cmd' field"}
	}
	cmd, ok := raw.(string)
	if !ok {
		return nil, &ValidationError{Code: ErrMissingCommand, Message: "LTX: Missing or invalid 'cmd' field"}
	}
	return EncodeCommand(cmd, input.FPort), nil
}

// EncodeCommand encodes cmd one byte per character, truncated to
// MaxCommandLength characters, always for CommandPort
func EncodeCommand(cmd string, fPort *int) *Downlink {
	d := &Downlink{FPort: CommandPort, Bytes: []byte{}}
	if fPort != nil && *fPort != CommandPort {
		d.Warnings = append(d.Warnings, fmt.Sprintf("LTX: fPort:%d set to %d", *fPort, CommandPort))
	}

	n := utf8.RuneCountInString(cmd)
	switch {
	case n < 1:
		d.Warnings = append(d.Warnings, "LTX: Zero-length 'cmd'")
	case n > MaxCommandLength:
		d.Warnings = append(d.Warnings, fmt.Sprintf("LTX: 'cmd' (length %d) truncated to size %d", n, MaxCommandLength))
	}

	for _, r := range cmd {
		if len(d.Bytes) == MaxCommandLength {
			break
		}
		d.Bytes = append(d.Bytes, byte(r))
	}
	return d
}

// DecodeDownlink maps downlink bytes back to command text
func DecodeDownlink(payload []byte, port int) (string, error) {
	if port != CommandPort {
		return "", &FormatError{Code: ErrUnknownPort, Port: port}
	}
	runes := make([]rune, len(payload))
	for i, b := range payload {
		runes[i] = rune(b)
	}
	return string(runes), nil
}
