// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sink forwards decoded frames to Redis.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Record is one decoded uplink
type Record struct {
	DevEUI   string
	FPort    int
	Received time.Time
	Result   *ltx.DecodeResult
}

// Payload formats
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

type jsonRecord struct {
	DevEUI   string            `json:"devEui,omitempty"`
	FPort    int               `json:"fPort"`
	Received time.Time         `json:"received"`
	Data     *ltx.DecodeResult `json:"data"`
}

type cborRecord struct {
	DevEUI   string          `cbor:"0,keyasint,omitempty"`
	FPort    int             `cbor:"1,keyasint"`
	Received int64           `cbor:"2,keyasint"` // unix milliseconds
	Result   cbor.RawMessage `cbor:"3,keyasint"`
}

// EncodeRecord renders r in the given format
func EncodeRecord(r Record, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.Marshal(jsonRecord{DevEUI: r.DevEUI, FPort: r.FPort, Received: r.Received, Data: r.Result})
	case FormatCBOR:
		result, err := ltx.MarshalCBOR(r.Result)
		if err != nil {
			return nil, err
		}
		return cbor.Marshal(cborRecord{
			DevEUI:   r.DevEUI,
			FPort:    r.FPort,
			Received: r.Received.UnixMilli(),
			Result:   result,
		})
	default:
		return nil, fmt.Errorf("unknown record format %q", format)
	}
}

// DecodeCBORRecord parses a record encoded with FormatCBOR
func DecodeCBORRecord(data []byte) (Record, error) {
	var in cborRecord
	if err := cbor.Unmarshal(data, &in); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	res, err := ltx.UnmarshalCBOR(in.Result)
	if err != nil {
		return Record{}, err
	}
	return Record{
		DevEUI:   in.DevEUI,
		FPort:    in.FPort,
		Received: time.UnixMilli(in.Received).UTC(),
		Result:   res,
	}, nil
}

// Options configures a RedisSink
type Options struct {
	Addr        string
	Password    string
	DB          int
	Channel     string
	Format      string
	History     int // records kept per device, 0 disables the list
	DialTimeout time.Duration
}

// RedisSink publishes records on a Pub/Sub channel and keeps a capped
// history list per device
type RedisSink struct {
	client  *redis.Client
	channel string
	format  string
	history int
	log     *logrus.Logger
}

// NewRedisSink connects and pings the server
func NewRedisSink(ctx context.Context, opts Options, log *logrus.Logger) (*RedisSink, error) {
	if opts.Format != FormatJSON && opts.Format != FormatCBOR {
		return nil, fmt.Errorf("unknown record format %q", opts.Format)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	log.WithFields(logrus.Fields{"addr": opts.Addr, "channel": opts.Channel}).Info("Redis connected")

	return &RedisSink{
		client:  client,
		channel: opts.Channel,
		format:  opts.Format,
		history: opts.History,
		log:     log,
	}, nil
}

// HistoryKey returns the list key holding recent records of a device
func HistoryKey(devEUI string) string {
	if devEUI == "" {
		devEUI = "unknown"
	}
	return fmt.Sprintf("ltx:%s:uplinks", devEUI)
}

// Publish sends r to the channel and prepends it to the device history
func (s *RedisSink) Publish(ctx context.Context, r Record) error {
	data, err := EncodeRecord(r, s.format)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Publish(ctx, s.channel, data)
	if s.history > 0 {
		key := HistoryKey(r.DevEUI)
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(s.history-1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *RedisSink) Close() error {
	return s.client.Close()
}
