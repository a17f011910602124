// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package uplink

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================
// Bridge Line Tests
// ============================================================

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		ok      bool
		wantErr bool
		port    int
		payload []byte
		devEUI  string
	}{
		{"port and payload", "11,1242 4D24 4CE4", true, false, 11, []byte{0x12, 0x42, 0x4D, 0x24, 0x4C, 0xE4}, ""},
		{"with device", "1,1301,70B3D57ED0001234\r\n", true, false, 1, []byte{0x13, 0x01}, "70b3d57ed0001234"},
		{"blank", "   ", false, false, 0, nil, ""},
		{"comment", "# modem ready", false, false, 0, nil, ""},
		{"empty payload", "1,", true, false, 1, []byte{}, ""},
		{"missing payload", "11", false, true, 0, nil, ""},
		{"bad port", "x,12", false, true, 0, nil, ""},
		{"bad hex", "1,1G", false, true, 0, nil, ""},
		{"odd hex", "1,123", false, true, 0, nil, ""},
		{"too many fields", "1,12,a,b", false, true, 0, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, ok, err := ParseLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got %+v", u)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if !ok {
				return
			}
			if u.FPort != tt.port || !bytes.Equal(u.Payload, tt.payload) || u.DevEUI != tt.devEUI {
				t.Errorf("Unexpected uplink %+v", u)
			}
		})
	}
}

func TestFormatLine(t *testing.T) {
	got := FormatLine(Downlink{FPort: 10, Payload: []byte("p 300")})
	if got != "10,7020333030" {
		t.Errorf("Unexpected line %q", got)
	}
	got = FormatLine(Downlink{DevEUI: "70b3d57ed0001234", FPort: 10, Payload: []byte{0x76}})
	if got != "10,76,70b3d57ed0001234" {
		t.Errorf("Unexpected line %q", got)
	}

	u, ok, err := ParseLine(FormatUplinkLine(Uplink{DevEUI: "0102", FPort: 11, Payload: []byte{0x12, 0x80}}))
	if err != nil || !ok || u.FPort != 11 || u.DevEUI != "0102" || !bytes.Equal(u.Payload, []byte{0x12, 0x80}) {
		t.Errorf("Uplink line did not round trip: %+v ok=%v err=%v", u, ok, err)
	}
}

// ============================================================
// Network Server Event Tests
// ============================================================

func TestParseEvent(t *testing.T) {
	msg := `{"deviceInfo":{"devEui":"70B3D57ED0001234","deviceName":"logger-7"},"fPort":11,"data":"EkJNJEzk","rssi":-97}`
	u, ok, err := ParseEvent([]byte(msg))
	if err != nil || !ok {
		t.Fatalf("ParseEvent failed: ok=%v err=%v", ok, err)
	}
	if u.DevEUI != "70b3d57ed0001234" || u.FPort != 11 {
		t.Errorf("Unexpected uplink %+v", u)
	}
	want := []byte{0x12, 0x42, 0x4D, 0x24, 0x4C, 0xE4}
	if !bytes.Equal(u.Payload, want) {
		t.Errorf("Expected % X, got % X", want, u.Payload)
	}
}

func TestParseEvent_Skipped(t *testing.T) {
	for _, msg := range []string{
		`{"deviceInfo":{"devEui":"70b3d57ed0001234"},"devAddr":"01020304"}`,
		`{"fPort":1}`,
		`{"data":"EwE="}`,
	} {
		if _, ok, err := ParseEvent([]byte(msg)); ok || err != nil {
			t.Errorf("%s: expected skip, got ok=%v err=%v", msg, ok, err)
		}
	}
	if _, _, err := ParseEvent([]byte("not json")); err == nil {
		t.Error("Expected error for malformed event")
	}
}

func TestEncodeDownlinkEvent(t *testing.T) {
	data, err := EncodeDownlinkEvent(Downlink{DevEUI: "70b3d57ed0001234", FPort: 10, Payload: []byte("v")})
	if err != nil {
		t.Fatalf("EncodeDownlinkEvent error: %v", err)
	}
	want := `{"devEui":"70b3d57ed0001234","fPort":10,"data":"dg==","confirmed":false}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}

	data, err = EncodeDownlinkEvent(Downlink{FPort: 10})
	if err != nil {
		t.Fatalf("EncodeDownlinkEvent error: %v", err)
	}
	if !strings.Contains(string(data), `"data":""`) {
		t.Errorf("Expected empty data string, got %s", data)
	}
}

// ============================================================
// Line Source Tests
// ============================================================

// memStream is an in-memory serial port
type memStream struct {
	in     *strings.Reader
	out    bytes.Buffer
	closed bool
}

func (m *memStream) Read(p []byte) (int, error)  { return m.in.Read(p) }
func (m *memStream) Write(p []byte) (int, error) { return m.out.Write(p) }
func (m *memStream) Close() error                { m.closed = true; return nil }

func TestLineSource(t *testing.T) {
	stream := &memStream{in: strings.NewReader("# boot\n\n1,1301\nbogus\n11,12424D244CE4,AABB\n")}
	src := NewLineSource(stream)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	u, err := src.ReadUplink()
	if err != nil {
		t.Fatalf("ReadUplink error: %v", err)
	}
	if u.FPort != 1 || !bytes.Equal(u.Payload, []byte{0x13, 0x01}) || !u.Received.Equal(fixed) {
		t.Errorf("Unexpected first uplink %+v", u)
	}

	if _, err := src.ReadUplink(); err == nil {
		t.Error("Expected error for malformed line")
	}

	u, err = src.ReadUplink()
	if err != nil {
		t.Fatalf("ReadUplink error after malformed line: %v", err)
	}
	if u.FPort != 11 || u.DevEUI != "aabb" {
		t.Errorf("Unexpected second uplink %+v", u)
	}

	if _, err := src.ReadUplink(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed at end of stream, got %v", err)
	}

	if err := src.WriteDownlink(Downlink{FPort: 10, Payload: []byte("v")}); err != nil {
		t.Fatalf("WriteDownlink error: %v", err)
	}
	if stream.out.String() != "10,76\n" {
		t.Errorf("Unexpected downlink line %q", stream.out.String())
	}

	if err := src.Close(); err != nil || !stream.closed {
		t.Errorf("Close did not close the stream: %v", err)
	}
}

var _ io.ReadWriteCloser = (*memStream)(nil)

// failingStream fails its first read, then serves in
type failingStream struct {
	memStream
	failed bool
}

func (f *failingStream) Read(p []byte) (int, error) {
	if !f.failed {
		f.failed = true
		return 0, errors.New("transient serial read error")
	}
	return f.memStream.Read(p)
}

func TestLineSource_ReadErrorClosesSource(t *testing.T) {
	src := NewLineSource(&failingStream{memStream: memStream{in: strings.NewReader("1,1241FC02\n")}})

	_, err := src.ReadUplink()
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("Expected ErrConnectionClosed after a read error, got %v", err)
	}
	if !strings.Contains(err.Error(), "transient serial read error") {
		t.Errorf("Expected the read error in the message, got %q", err.Error())
	}

	// The scanner is finished; later calls keep reporting the closed source
	if _, err := src.ReadUplink(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed on retry, got %v", err)
	}
}

func TestLineSource_DropsOverlongNoise(t *testing.T) {
	noise := strings.Repeat("A", 2*maxLineLength+1808)
	src := NewLineSource(&memStream{in: strings.NewReader(noise + "\n1,1241FC02\n")})

	// The tail of the noise reaches the parser as one malformed line
	_, err := src.ReadUplink()
	if err == nil || errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("Expected a malformed line error, got %v", err)
	}

	u, err := src.ReadUplink()
	if err != nil {
		t.Fatalf("ReadUplink error after noise: %v", err)
	}
	if u.FPort != 1 || !bytes.Equal(u.Payload, []byte{0x12, 0x41, 0xFC, 0x02}) {
		t.Errorf("Unexpected uplink after noise %+v", u)
	}
}

// ============================================================
// WebSocket Source Tests
// ============================================================

func TestWebSocketSource(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "monitor" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"deviceInfo":{"devEui":"0102"},"devAddr":"x"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"deviceInfo":{"devEui":"0102"},"fPort":1,"data":"EwE="}`))

		_, msg, err := conn.ReadMessage()
		if err == nil {
			received <- msg
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	if _, err := DialWebSocket(WebSocketOptions{URL: wsURL, Username: "monitor", Password: "wrong"}); err == nil {
		t.Fatal("Expected auth failure")
	}

	src, err := DialWebSocket(WebSocketOptions{URL: wsURL, Username: "monitor", Password: "secret"})
	if err != nil {
		t.Fatalf("DialWebSocket error: %v", err)
	}
	defer src.Close()

	u, err := src.ReadUplink()
	if err != nil {
		t.Fatalf("ReadUplink error: %v", err)
	}
	if u.DevEUI != "0102" || u.FPort != 1 || !bytes.Equal(u.Payload, []byte{0x13, 0x01}) {
		t.Errorf("Unexpected uplink %+v", u)
	}

	if err := src.WriteDownlink(Downlink{DevEUI: "0102", FPort: 10, Payload: []byte("v")}); err != nil {
		t.Fatalf("WriteDownlink error: %v", err)
	}

	select {
	case msg := <-received:
		var ev map[string]interface{}
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("Server got malformed downlink: %v", err)
		}
		if ev["devEui"] != "0102" || ev["fPort"] != float64(10) || ev["data"] != "dg==" {
			t.Errorf("Unexpected downlink %v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for downlink")
	}

	// Server handler returned and closed the connection
	if _, err := src.ReadUplink(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}
	if _, err := src.ReadUplink(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed on repeated read, got %v", err)
	}
}

func TestDialWebSocket_BadURL(t *testing.T) {
	if _, err := DialWebSocket(WebSocketOptions{URL: "http://example.com"}); err == nil {
		t.Error("Expected scheme error")
	}
	if _, err := DialWebSocket(WebSocketOptions{URL: "://bad"}); err == nil {
		t.Error("Expected parse error")
	}
}
