// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/ltxlabs/ltxscope/internal/uplink"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("LTX_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// Reconnects reuse the first password instead of prompting again
var cachedPassword string

// connectionPassword prompts only when a username is configured
func connectionPassword(username string) (string, error) {
	if username == "" {
		return "", nil
	}
	if cachedPassword != "" {
		return cachedPassword, nil
	}
	pw, err := GetPassword()
	if err != nil {
		return "", err
	}
	cachedPassword = pw
	return pw, nil
}

// OpenConnection opens a serial bridge, a network-server WebSocket or the
// network-server MQTT integration based on the configuration
func OpenConnection() (uplink.Source, string, error) {
	c := cfg.Connection

	if c.URL != "" {
		password, err := connectionPassword(c.Username)
		if err != nil {
			return nil, "", err
		}

		src, err := uplink.DialWebSocket(uplink.WebSocketOptions{
			URL:           c.URL,
			Username:      c.Username,
			Password:      password,
			SkipSSLVerify: c.NoSSLVerify,
		})
		if err != nil {
			return nil, "", err
		}

		logger.WithField("url", c.URL).Info("WebSocket connected")
		return src, fmt.Sprintf("WebSocket: %s", c.URL), nil
	}

	if c.MQTTBroker != "" {
		password, err := connectionPassword(c.Username)
		if err != nil {
			return nil, "", err
		}

		src, err := uplink.DialMQTT(uplink.MQTTOptions{
			Broker:        c.MQTTBroker,
			ClientID:      c.MQTTClientID,
			Username:      c.Username,
			Password:      password,
			Application:   c.MQTTApplication,
			SkipSSLVerify: c.NoSSLVerify,
		})
		if err != nil {
			return nil, "", err
		}

		logger.WithFields(logrus.Fields{
			"broker":      c.MQTTBroker,
			"application": c.MQTTApplication,
		}).Info("MQTT connected")
		return src, fmt.Sprintf("MQTT: %s", c.MQTTBroker), nil
	}

	if c.Port != "" {
		src, err := uplink.OpenSerial(c.Port, c.Baud)
		if err != nil {
			return nil, "", err
		}

		logger.WithFields(logrus.Fields{"port": c.Port, "baud": c.Baud}).Info("Serial bridge opened")
		return src, fmt.Sprintf("Serial: %s @ %d baud", c.Port, c.Baud), nil
	}

	return nil, "", fmt.Errorf("one of --port, --url or --mqtt must be specified")
}

// readRetryDelay returns the pause before reading again after the given
// number of consecutive read errors: 10ms, doubling, capped at one second
func readRetryDelay(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	if failures > 8 {
		failures = 8
	}
	d := 10 * time.Millisecond << uint(failures-1)
	if d > time.Second {
		d = time.Second
	}
	return d
}
