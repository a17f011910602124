// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/ltxlabs/ltxscope/internal/uplink"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and sensor errors",
	Long: `Track frame errors, sensor error codes, and anomalous values with statistics.

This command validates each uplink and detects:
  - Format errors (empty frames, unknown ports, truncated values)
  - Sensor error codes (NoReply, Overflow, ...) in channel readings
  - Anomalous housekeeping values (low battery, implausible temperature)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

When enabled in the configuration, decoded frames are also exported as
Prometheus metrics and published to Redis.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	proc, err := newFrameProcessor(ctx)
	if err != nil {
		return err
	}
	defer proc.Close()

	if useTUI {
		return runTUIMode(ctx, proc)
	}

	src, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer src.Close()
	return runTextMode(ctx, src, connInfo, proc)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(ev frameEvent) {
	timestamp := ev.uplink.Received.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, ev.decodeErr)
	if ev.uplink.DevEUI != "" {
		fmt.Printf("  Device: %s\n", ev.uplink.DevEUI)
	}
	fmt.Printf("  fPort=%d payload=%s\n", ev.uplink.FPort, ltx.FormatHex(ev.uplink.Payload))
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// printAnomalies prints the suspicious readings of a decoded frame
func printAnomalies(ev frameEvent) {
	timestamp := ev.uplink.Received.Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m fPort %d %s %s\n", timestamp,
		ev.result.Port, ev.result.Header.FlagsString(), ev.result.Header.Reason)
	if ev.uplink.DevEUI != "" {
		fmt.Printf("  Device: %s\n", ev.uplink.DevEUI)
	}

	for i, a := range ev.anomalies {
		switch a.Type {
		case ltx.AnomalySensorError, ltx.AnomalyDuplicateChannel, ltx.AnomalyChannelRange:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)
		}
		if r, ok := ev.result.Reading(a.Channel); ok {
			fmt.Printf("    %s\n", ltx.FormatReading(r))
		}
	}

	// Alarm flag gives context for sensor errors
	if ev.result.Header.Alarm == ltx.AlarmActive {
		fmt.Printf("  Header alarm: \033[1;31mACTIVE\033[0m\n")
	}
	fmt.Println()
}

// runTextMode runs error detection in text mode
func runTextMode(ctx context.Context, src uplink.Source, connInfo string, proc *frameProcessor) error {
	fmt.Printf("ltxscope - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := ltx.NewStatistics()

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Channel for non-blocking reads
	uplinks := make(chan uplink.Uplink, 10)
	readErr := make(chan error, 1)
	go func() {
		failures := 0
		for {
			u, err := src.ReadUplink()
			if err != nil {
				if errors.Is(err, uplink.ErrConnectionClosed) {
					readErr <- err
					return
				}
				failures++
				logger.WithError(err).Warn("Read error")
				select {
				case <-ctx.Done():
					return
				case <-time.After(readRetryDelay(failures)):
				}
				continue
			}
			failures = 0
			uplinks <- u
		}
	}()

	for {
		select {
		case u := <-uplinks:
			ev := proc.process(ctx, u)
			stats.Update(ev.result, ev.decodeErr, ev.anomalies)

			// Print frame or error based on mode
			switch {
			case ev.decodeErr != nil:
				printDecodeError(ev)
			case len(ev.anomalies) > 0:
				printAnomalies(ev)
			case showAll:
				fmt.Print(ltx.FormatResult(u.Received, ev.result))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case err := <-readErr:
			fmt.Println()
			fmt.Print(stats.String())
			logger.WithError(err).Info("Connection closed")
			return nil

		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil
		}
	}
}
