// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package uplink

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions configures a network-server MQTT integration connection
type MQTTOptions struct {
	Broker        string // tcp://host:1883 or ssl://host:8883
	ClientID      string
	Username      string
	Password      string
	Application   string // application ID, empty subscribes to all
	SkipSSLVerify bool
}

// UplinkTopic returns the subscription for uplink events of an application
func UplinkTopic(application string) string {
	if application == "" {
		application = "+"
	}
	return fmt.Sprintf("application/%s/device/+/event/up", application)
}

// DownlinkTopic returns the topic that enqueues a downlink for devEUI
func DownlinkTopic(application, devEUI string) string {
	return fmt.Sprintf("application/%s/device/%s/command/down", application, strings.ToLower(devEUI))
}

// topicDevEUI extracts the device segment of an event topic
func topicDevEUI(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "device" {
			return strings.ToLower(parts[i+1])
		}
	}
	return ""
}

// mqttWaitTimeout bounds each subscribe and publish round trip
const mqttWaitTimeout = 10 * time.Second

type mqttEvent struct {
	uplink Uplink
	err    error
}

// MQTTSource receives uplink events from the network-server MQTT
// integration and publishes downlink commands
type MQTTSource struct {
	client      mqtt.Client
	application string
	events      chan mqttEvent
	subscribed  chan error
	closed      chan struct{}
	closeOnce   sync.Once
	now         func() time.Time
}

func newMQTTSource(application string) *MQTTSource {
	return &MQTTSource{
		application: application,
		events:      make(chan mqttEvent, 64),
		subscribed:  make(chan error, 1),
		closed:      make(chan struct{}),
		now:         time.Now,
	}
}

// DialMQTT connects and subscribes to uplink events. The client reconnects
// on its own and resubscribes after every connect.
func DialMQTT(opts MQTTOptions) (*MQTTSource, error) {
	s := newMQTTSource(opts.Application)

	clientID := opts.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("ltxscope-%d", time.Now().UnixNano())
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(clientID)
	co.SetUsername(opts.Username)
	co.SetPassword(opts.Password)
	co.SetAutoReconnect(true)
	co.SetConnectTimeout(15 * time.Second)
	if strings.HasPrefix(opts.Broker, "ssl://") || strings.HasPrefix(opts.Broker, "tls://") {
		co.SetTLSConfig(&tls.Config{InsecureSkipVerify: opts.SkipSSLVerify})
	}

	topic := UplinkTopic(opts.Application)
	co.SetOnConnectHandler(s.onConnect(topic))

	s.client = mqtt.NewClient(co)
	token := s.client.Connect()
	if !token.WaitTimeout(20 * time.Second) {
		return nil, fmt.Errorf("MQTT connection to %s timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connection failed: %w", err)
	}

	select {
	case err := <-s.subscribed:
		if err != nil {
			s.client.Disconnect(250)
			return nil, err
		}
	case <-time.After(mqttWaitTimeout + 5*time.Second):
		s.client.Disconnect(250)
		return nil, fmt.Errorf("MQTT subscribe to %s got no answer", topic)
	}
	return s, nil
}

// onConnect subscribes after every connect. The first answer goes back to
// DialMQTT; a refused resubscription ends the source.
func (s *MQTTSource) onConnect(topic string) mqtt.OnConnectHandler {
	var first sync.Once
	return func(client mqtt.Client) {
		err := s.subscribe(client, topic)
		reported := false
		first.Do(func() {
			s.subscribed <- err
			reported = true
		})
		if !reported && err != nil {
			s.push(mqttEvent{err: fmt.Errorf("%w: %v", ErrConnectionClosed, err)})
		}
	}
}

// subscribe registers the uplink handler and waits for the broker's answer
func (s *MQTTSource) subscribe(client mqtt.Client, topic string) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s.deliver(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(mqttWaitTimeout) {
		return fmt.Errorf("MQTT subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT subscribe to %s failed: %w", topic, err)
	}
	// 0x80 in the SUBACK is a refusal, e.g. an ACL denial
	if st, ok := token.(*mqtt.SubscribeToken); ok {
		if qos, found := st.Result()[topic]; found && qos == 0x80 {
			return fmt.Errorf("MQTT broker refused subscription to %s", topic)
		}
	}
	return nil
}

// deliver queues one received event. Events without a frame are dropped.
func (s *MQTTSource) deliver(topic string, payload []byte) {
	u, ok, err := ParseEvent(payload)
	if err == nil && !ok {
		return
	}
	if ok {
		if u.DevEUI == "" {
			u.DevEUI = topicDevEUI(topic)
		}
		u.Received = s.now()
	}

	s.push(mqttEvent{uplink: u, err: err})
}

func (s *MQTTSource) push(ev mqttEvent) {
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

// ReadUplink blocks until the next uplink event or Close
func (s *MQTTSource) ReadUplink() (Uplink, error) {
	select {
	case ev := <-s.events:
		return ev.uplink, ev.err
	case <-s.closed:
		return Uplink{}, ErrConnectionClosed
	}
}

// WriteDownlink publishes a downlink command for d.DevEUI
func (s *MQTTSource) WriteDownlink(d Downlink) error {
	if d.DevEUI == "" {
		return fmt.Errorf("MQTT downlink needs a device EUI")
	}
	if s.application == "" {
		return fmt.Errorf("MQTT downlink needs an application ID")
	}
	msg, err := EncodeDownlinkEvent(d)
	if err != nil {
		return err
	}
	token := s.client.Publish(DownlinkTopic(s.application, d.DevEUI), 0, false, msg)
	if !token.WaitTimeout(mqttWaitTimeout) {
		return fmt.Errorf("MQTT publish timed out")
	}
	return token.Error()
}

// Close disconnects from the broker
func (s *MQTTSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.client != nil {
			s.client.Disconnect(250)
		}
	})
	return nil
}
