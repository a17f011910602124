// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package uplink

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketOptions configures a network-server event stream connection
type WebSocketOptions struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// WebSocketSource reads uplink events from a network-server WebSocket
type WebSocketSource struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool // set after the first read failure
	now     func() time.Time
}

// DialWebSocket connects with optional HTTP Basic auth
func DialWebSocket(opts WebSocketOptions) (*WebSocketSource, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, opts.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return NewWebSocketSource(conn), nil
}

// NewWebSocketSource wraps an established connection
func NewWebSocketSource(conn *websocket.Conn) *WebSocketSource {
	return &WebSocketSource{conn: conn, now: time.Now}
}

// ReadUplink returns the next uplink event, skipping other event types
func (w *WebSocketSource) ReadUplink() (Uplink, error) {
	if w.closed {
		return Uplink{}, ErrConnectionClosed
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return Uplink{}, ErrConnectionClosed
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		u, ok, err := ParseEvent(data)
		if err != nil {
			return Uplink{}, err
		}
		if !ok {
			continue
		}
		u.Received = w.now()
		return u, nil
	}
}

// WriteDownlink queues d as a JSON downlink request
func (w *WebSocketSource) WriteDownlink(d Downlink) error {
	msg, err := EncodeDownlinkEvent(d)
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, msg)
}

// Close closes the connection
func (w *WebSocketSource) Close() error {
	return w.conn.Close()
}
