// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/ltxlabs/ltxscope/internal/uplink"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	sendDevEUI    string
	sendConfirmed bool
)

var sendCmd = &cobra.Command{
	Use:   "send <cmd>",
	Short: "Send a downlink command to a logger",
	Long: `Encode an LTX text command and queue it as a downlink through the
connection (network-server WebSocket or serial modem bridge).

The logger executes the command after its next uplink.

Example:
  ltxscope send --url wss://lns/api/events --dev-eui 70b3d57ed0001234 "p 300"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendDevEUI, "dev-eui", "", "Target device EUI")
	sendCmd.Flags().BoolVar(&sendConfirmed, "confirmed", false, "Request a confirmed downlink")
}

func runSend(cmd *cobra.Command, args []string) error {
	d := ltx.EncodeCommand(strings.Join(args, " "), nil)
	for _, w := range d.Warnings {
		logger.Warn(w)
	}

	src, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := sendDownlink(src, d, sendDevEUI, sendConfirmed); err != nil {
		return err
	}

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Print(ltx.FormatDownlink(d))
	return nil
}

// sendDownlink writes an encoded command through src
func sendDownlink(src uplink.Source, d *ltx.Downlink, devEUI string, confirmed bool) error {
	err := src.WriteDownlink(uplink.Downlink{
		DevEUI:    strings.ToLower(devEUI),
		FPort:     d.FPort,
		Payload:   d.Bytes,
		Confirmed: confirmed,
	})
	if err != nil {
		return fmt.Errorf("failed to send downlink: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"dev_eui": devEUI,
		"fport":   d.FPort,
		"bytes":   len(d.Bytes),
	}).Info("Downlink queued")
	return nil
}
