// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package uplink carries LTX frames between ltxscope and a LoRaWAN
// network server or a serial modem bridge.
package uplink

import (
	"errors"
	"time"
)

// Uplink is one frame received from a device
type Uplink struct {
	DevEUI   string
	FPort    int
	Payload  []byte
	Received time.Time
}

// Downlink is one frame queued for a device
type Downlink struct {
	DevEUI    string
	FPort     int
	Payload   []byte
	Confirmed bool
}

// Source delivers uplinks and accepts downlinks
type Source interface {
	// ReadUplink blocks until the next uplink arrives
	ReadUplink() (Uplink, error)
	WriteDownlink(d Downlink) error
	Close() error
}

// ErrConnectionClosed is returned once the underlying connection is gone
var ErrConnectionClosed = errors.New("connection closed")
