// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package uplink

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ParseLine parses one bridge line "<fport>,<hex>[,<deveui>]". Blank lines
// and lines starting with '#' return ok=false and no error.
func ParseLine(line string) (u Uplink, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Uplink{}, false, nil
	}

	fields := strings.Split(line, ",")
	if len(fields) < 2 || len(fields) > 3 {
		return Uplink{}, false, fmt.Errorf("malformed line %q: expected <fport>,<hex>[,<deveui>]", line)
	}

	port, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Uplink{}, false, fmt.Errorf("malformed fport %q: %w", fields[0], err)
	}

	payload, err := DecodeHex(fields[1])
	if err != nil {
		return Uplink{}, false, err
	}

	u = Uplink{FPort: port, Payload: payload}
	if len(fields) == 3 {
		u.DevEUI = strings.ToLower(strings.TrimSpace(fields[2]))
	}
	return u, true, nil
}

// FormatLine renders a downlink as a bridge line, without newline
func FormatLine(d Downlink) string {
	return formatLine(d.FPort, d.Payload, d.DevEUI)
}

// FormatUplinkLine renders an uplink the way a modem bridge reports it
func FormatUplinkLine(u Uplink) string {
	return formatLine(u.FPort, u.Payload, u.DevEUI)
}

func formatLine(port int, payload []byte, devEUI string) string {
	s := fmt.Sprintf("%d,%s", port, strings.ToUpper(hex.EncodeToString(payload)))
	if devEUI != "" {
		s += "," + devEUI
	}
	return s
}

// DecodeHex decodes a hex string, ignoring spaces
func DecodeHex(s string) ([]byte, error) {
	clean := strings.Join(strings.Fields(s), "")
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("malformed hex payload %q: %w", s, err)
	}
	return data, nil
}
