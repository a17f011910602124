// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package uplink

import (
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ============================================================
// MQTT Integration Tests
// ============================================================

func TestMQTTTopics(t *testing.T) {
	if got, want := UplinkTopic("12"), "application/12/device/+/event/up"; got != want {
		t.Errorf("UplinkTopic = %q, want %q", got, want)
	}
	if got, want := UplinkTopic(""), "application/+/device/+/event/up"; got != want {
		t.Errorf("UplinkTopic = %q, want %q", got, want)
	}
	if got, want := DownlinkTopic("12", "70B3D57ED0001234"), "application/12/device/70b3d57ed0001234/command/down"; got != want {
		t.Errorf("DownlinkTopic = %q, want %q", got, want)
	}
	if got := topicDevEUI("application/12/device/70B3D57ED0001234/event/up"); got != "70b3d57ed0001234" {
		t.Errorf("topicDevEUI = %q", got)
	}
	if got := topicDevEUI("status"); got != "" {
		t.Errorf("topicDevEUI = %q, want empty", got)
	}
}

func TestMQTTSource_Deliver(t *testing.T) {
	s := newMQTTSource("12")
	received := time.Unix(1700000000, 0)
	s.now = func() time.Time { return received }

	// Join events carry no frame and are dropped
	s.deliver("application/12/device/aa/event/join", []byte(`{"deviceInfo":{"devEui":"aa"}}`))
	// Device EUI falls back to the topic
	s.deliver("application/12/device/70B3D57ED0001234/event/up", []byte(`{"fPort":11,"data":"EkI="}`))
	s.deliver("application/12/device/aa/event/up", []byte(`not json`))

	u, err := s.ReadUplink()
	if err != nil {
		t.Fatalf("ReadUplink error: %v", err)
	}
	if u.DevEUI != "70b3d57ed0001234" || u.FPort != 11 || !u.Received.Equal(received) {
		t.Errorf("Unexpected uplink %+v", u)
	}
	if len(u.Payload) != 2 || u.Payload[0] != 0x12 || u.Payload[1] != 0x42 {
		t.Errorf("Unexpected payload % X", u.Payload)
	}

	if _, err := s.ReadUplink(); err == nil {
		t.Error("Expected error for malformed event")
	}

	s.Close()
	s.Close()
	if _, err := s.ReadUplink(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed after Close, got %v", err)
	}
}

func TestMQTTSource_WriteDownlinkValidation(t *testing.T) {
	s := newMQTTSource("")
	if err := s.WriteDownlink(Downlink{DevEUI: "aa", FPort: 10}); err == nil {
		t.Error("Expected error without application ID")
	}

	s = newMQTTSource("12")
	if err := s.WriteDownlink(Downlink{FPort: 10}); err == nil {
		t.Error("Expected error without device EUI")
	}
}

// stubToken is a completed (or never completing) paho token
type stubToken struct {
	done bool
	err  error
}

func (t stubToken) Wait() bool                     { return t.done }
func (t stubToken) WaitTimeout(time.Duration) bool { return t.done }
func (t stubToken) Error() error                   { return t.err }
func (t stubToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.done {
		close(ch)
	}
	return ch
}

// stubClient answers every Subscribe with token
type stubClient struct {
	mqtt.Client
	token  mqtt.Token
	topics []string
}

func (c *stubClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.topics = append(c.topics, topic)
	return c.token
}

func TestMQTTSource_Subscribe(t *testing.T) {
	tests := []struct {
		name    string
		token   stubToken
		wantErr string
	}{
		{"accepted", stubToken{done: true}, ""},
		{"rejected", stubToken{done: true, err: errors.New("not authorized")}, "not authorized"},
		{"no answer", stubToken{}, "timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMQTTSource("12")
			client := &stubClient{token: tt.token}
			err := s.subscribe(client, UplinkTopic("12"))

			if len(client.topics) != 1 || client.topics[0] != "application/12/device/+/event/up" {
				t.Errorf("Unexpected subscriptions %v", client.topics)
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMQTTSource_OnConnect(t *testing.T) {
	s := newMQTTSource("12")
	handler := s.onConnect(UplinkTopic("12"))

	// First connect reports back to the dialer
	handler(&stubClient{token: stubToken{done: true}})
	select {
	case err := <-s.subscribed:
		if err != nil {
			t.Fatalf("Unexpected subscribe error: %v", err)
		}
	default:
		t.Fatal("Expected the first subscription result to be reported")
	}

	// A refused resubscription ends the source
	handler(&stubClient{token: stubToken{done: true, err: errors.New("not authorized")}})
	_, err := s.ReadUplink()
	if !errors.Is(err, ErrConnectionClosed) || !strings.Contains(err.Error(), "not authorized") {
		t.Errorf("Expected ErrConnectionClosed with the broker error, got %v", err)
	}
}

func TestMQTTSource_OnConnectFirstFailure(t *testing.T) {
	s := newMQTTSource("12")
	s.onConnect(UplinkTopic("12"))(&stubClient{token: stubToken{done: true, err: errors.New("not authorized")}})

	select {
	case err := <-s.subscribed:
		if err == nil {
			t.Fatal("Expected the subscribe error for the dialer")
		}
	default:
		t.Fatal("Expected the first subscription result to be reported")
	}
	select {
	case ev := <-s.events:
		t.Errorf("First failure belongs to the dialer, got event %+v", ev)
	default:
	}
}
