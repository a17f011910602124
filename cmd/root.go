// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/ltxlabs/ltxscope/internal/config"
	"github.com/ltxlabs/ltxscope/internal/logging"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// MQTT integration flags
	mqttBroker      string
	mqttApplication string

	// General flags
	configPath   string
	logLevel     string
	revisionName string
)

// Populated by PersistentPreRunE
var (
	cfg       *config.Config
	logger    *logrus.Logger
	logCloser io.Closer
	decoder   *ltx.Decoder
)

var rootCmd = &cobra.Command{
	Use:   "ltxscope",
	Short: "LTX Uplink Decoder and Monitor",
	Long: `ltxscope - A CLI tool for decoding and monitoring LTX sensor logger frames.

Decodes LTX compact uplink frames offline, encodes downlink commands, and
monitors live traffic from a LoRaWAN network server or a serial modem bridge
with error detection and statistics.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url wss://host/api/events [--username user]
  MQTT:      --mqtt tcp://host:1883 --mqtt-app <application id> [--username user]

For WebSocket and MQTT authentication, the password is read from the LTX_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// MQTT integration flags
	rootCmd.PersistentFlags().StringVar(&mqttBroker, "mqtt", "", "MQTT broker URL (tcp://, ssl://)")
	rootCmd.PersistentFlags().StringVar(&mqttApplication, "mqtt-app", "", "Network-server application ID for MQTT topics")

	// General flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&revisionName, "revision", "", "Frame format revision (v1.17, legacy)")
}

// setup loads the configuration, applies flag overrides and builds the
// logger and decoder
func setup(cmd *cobra.Command, args []string) error {
	loaded := config.Default()
	if configPath != "" {
		var err error
		loaded, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}
	applyFlagOverrides(cmd, loaded)
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	var err error
	logger, logCloser, err = logging.New(cfg.Log)
	if err != nil {
		return err
	}

	decoder, err = cfg.Decoder.Build()
	if err != nil {
		return fmt.Errorf("decoder config: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"revision": decoder.Revision().Name,
		"config":   configPath,
	}).Debug("Configuration loaded")
	return nil
}

// applyFlagOverrides copies explicitly set flags over file values
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		c.Connection.Port = portName
	}
	if flags.Changed("baud") {
		c.Connection.Baud = baudRate
	}
	if flags.Changed("url") {
		c.Connection.URL = wsURL
	}
	if flags.Changed("mqtt") {
		c.Connection.MQTTBroker = mqttBroker
	}
	if flags.Changed("mqtt-app") {
		c.Connection.MQTTApplication = mqttApplication
	}
	if flags.Changed("username") {
		c.Connection.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		c.Connection.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("revision") {
		c.Decoder.Revision = revisionName
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
