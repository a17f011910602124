// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/ltxlabs/ltxscope/internal/uplink"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a decodable LTX frame",
	Long: `Wait for a decodable LTX uplink frame on the connection until timeout.

This command connects to a serial bridge or network-server WebSocket and
waits for any uplink that decodes without format errors. Frames that fail
to decode are counted and skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a decodable frame
  2 - Connection error

Useful for testing connectivity to a gateway or modem bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

type decodedUplink struct {
	uplink uplink.Uplink
	result *ltx.DecodeResult
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	src, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer src.Close()

	fmt.Printf("ltxscope - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for a decodable LTX frame...\n\n")

	// Channel for frame reception
	frameChan := make(chan decodedUplink, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		invalidFrames := 0
		for {
			u, err := src.ReadUplink()
			if err != nil {
				errChan <- err
				return
			}

			res, decodeErr := decoder.Decode(u.Payload, u.FPort)
			if decodeErr != nil {
				// Ignore decode errors, just count invalid frames
				invalidFrames++
				continue
			}
			if invalidFrames > 0 {
				fmt.Printf("(skipped %d undecodable frames)\n", invalidFrames)
			}
			frameChan <- decodedUplink{uplink: u, result: res}
			return
		}
	}()

	// Wait for frame or timeout
	select {
	case f := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		if f.uplink.DevEUI != "" {
			fmt.Printf("  Device: %s\n", f.uplink.DevEUI)
		}
		fmt.Printf("  fPort: %d\n", f.result.Port)
		fmt.Printf("  Flags: %s %s\n", f.result.Header.FlagsString(), f.result.Header.Reason)
		fmt.Printf("  Length: %d bytes\n", len(f.uplink.Payload))
		fmt.Printf("  Readings: %d\n", len(f.result.Channels))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
