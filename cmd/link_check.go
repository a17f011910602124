// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ltxlabs/ltxscope/internal/uplink"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/spf13/cobra"
)

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test connection stability without decoding",
	Long: `Stay connected for a fixed duration and log every uplink received or
error encountered. Payloads are shown in hex and not decoded.

Useful for debugging network-server WebSocket, MQTT or serial bridge stability.

Exit codes:
  0 - Link stayed up for the whole duration
  1 - Link dropped during the check
  2 - Connection error`,
	RunE: runLinkCheck,
}

var linkCheckDuration int

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 30, "Check duration in seconds")
}

// linkTally counts traffic seen during a link check
type linkTally struct {
	started time.Time
	uplinks int
	bytes   int
	devices map[string]struct{}
}

func newLinkTally(now time.Time) *linkTally {
	return &linkTally{started: now, devices: make(map[string]struct{})}
}

func (t *linkTally) record(u uplink.Uplink) {
	t.uplinks++
	t.bytes += len(u.Payload)
	t.devices[u.DevEUI] = struct{}{}
}

// summary writes the closing report; verdict is printed last
func (t *linkTally) summary(w io.Writer, elapsed time.Duration, verdict string) {
	fmt.Fprintf(w, "\n--- Link Check ---\n")
	fmt.Fprintf(w, "Elapsed: %v\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Uplinks: %d from %d device(s)\n", t.uplinks, len(t.devices))
	fmt.Fprintf(w, "Payload bytes: %d\n", t.bytes)
	fmt.Fprintf(w, "Result: %s\n", verdict)
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	src, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer src.Close()

	window := time.Duration(linkCheckDuration) * time.Second
	fmt.Printf("Link check on %s for %v\n\n", connInfo, window)

	uplinks := make(chan uplink.Uplink, 100)
	failed := make(chan error, 1)
	go func() {
		for {
			u, err := src.ReadUplink()
			if err != nil {
				failed <- err
				return
			}
			uplinks <- u
		}
	}()

	tally := newLinkTally(time.Now())
	deadline := time.NewTimer(window)
	defer deadline.Stop()
	heartbeat := time.NewTicker(5 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case u := <-uplinks:
			tally.record(u)
			fmt.Printf("[%s] %s fPort %d (%d bytes) %s\n",
				u.Received.Format("15:04:05.000"), u.DevEUI, u.FPort, len(u.Payload), ltx.FormatHex(u.Payload))

		case err := <-failed:
			fmt.Printf("[%s] Link dropped: %v\n", time.Now().Format("15:04:05.000"), err)
			tally.summary(os.Stdout, time.Since(tally.started), "FAILED (link dropped)")
			os.Exit(1)

		case <-heartbeat.C:
			left := window - time.Since(tally.started)
			fmt.Printf("[%s] link up, %d uplinks so far, %.0fs left\n",
				time.Now().Format("15:04:05.000"), tally.uplinks, left.Seconds())

		case <-deadline.C:
			tally.summary(os.Stdout, time.Since(tally.started), "PASSED (link stable)")
			return nil
		}
	}
}
