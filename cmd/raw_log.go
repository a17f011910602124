// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/ltxlabs/ltxscope/internal/uplink"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display uplink log in human-readable format",
	Long: `Continuously decode and display LTX uplink frames as they arrive.

Each frame is shown with timestamp, port, header flags and every channel
reading with its unit. Frames that fail to decode are shown with the raw
payload in hex.

Supports both serial bridge and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	src, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Printf("ltxscope - Raw Uplink Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Revision: %s\n", decoder.Revision().Name)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	failures := 0
	for {
		u, err := src.ReadUplink()
		if err != nil {
			// A closed connection is permanent - exit gracefully
			if errors.Is(err, uplink.ErrConnectionClosed) {
				logger.WithError(err).Info("Connection closed")
				return nil
			}
			failures++
			logger.WithError(err).Warn("Read error")
			time.Sleep(readRetryDelay(failures))
			continue
		}
		failures = 0

		res, err := decoder.Decode(u.Payload, u.FPort)
		if err != nil {
			fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", u.Received.Format("15:04:05.000"), err)
			fmt.Printf("  fPort=%d payload=%s\n\n", u.FPort, ltx.FormatHex(u.Payload))
			continue
		}
		if u.DevEUI != "" {
			fmt.Printf("%s ", u.DevEUI)
		}
		fmt.Print(ltx.FormatResult(u.Received, res))
	}
}
