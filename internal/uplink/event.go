// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package uplink

import (
	"encoding/json"
	"fmt"
	"strings"
)

// uplinkEvent is the subset of a network-server uplink event we consume
type uplinkEvent struct {
	DeviceInfo struct {
		DevEUI string `json:"devEui"`
	} `json:"deviceInfo"`
	FPort *int   `json:"fPort"`
	Data  []byte `json:"data"` // base64 in JSON
}

type downlinkEvent struct {
	DevEUI    string `json:"devEui"`
	FPort     int    `json:"fPort"`
	Data      []byte `json:"data"`
	Confirmed bool   `json:"confirmed"`
}

// ParseEvent parses a network-server uplink event. Events without fPort
// or data (joins, acks, status) return ok=false and no error.
func ParseEvent(msg []byte) (u Uplink, ok bool, err error) {
	var ev uplinkEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return Uplink{}, false, fmt.Errorf("malformed uplink event: %w", err)
	}
	if ev.FPort == nil || ev.Data == nil {
		return Uplink{}, false, nil
	}
	return Uplink{
		DevEUI:  strings.ToLower(ev.DeviceInfo.DevEUI),
		FPort:   *ev.FPort,
		Payload: ev.Data,
	}, true, nil
}

// EncodeDownlinkEvent renders a downlink queue request
func EncodeDownlinkEvent(d Downlink) ([]byte, error) {
	payload := d.Payload
	if payload == nil {
		payload = []byte{}
	}
	return json.Marshal(downlinkEvent{
		DevEUI:    d.DevEUI,
		FPort:     d.FPort,
		Data:      payload,
		Confirmed: d.Confirmed,
	})
}
