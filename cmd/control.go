// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ltxlabs/ltxscope/internal/uplink"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for monitoring loggers and sending commands",
	Long: `Monitor LTX loggers and queue downlink commands via an interactive terminal UI.

This command provides a TUI for devices reached through a LoRaWAN network
server WebSocket or a serial modem bridge.

Features:
  - Device list built from received uplinks
  - Latest channel readings per device
  - Downlink command entry (e.g. "p 300")
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the device list and the command input. Arrow keys
navigate the device list. Enter in the command input queues the command
for the selected device.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	src      uplink.Source
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	proc     *frameProcessor
	ctx      context.Context
	done     chan struct{}
}

func newConnectionManager(ctx context.Context, proc *frameProcessor) (*connectionManager, error) {
	src, connInfo, err := OpenConnection()
	if err != nil {
		return nil, err
	}
	return &connectionManager{
		src:      src,
		connInfo: connInfo,
		proc:     proc,
		ctx:      ctx,
		done:     make(chan struct{}),
	}, nil
}

func (cm *connectionManager) getSource() uplink.Source {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.src
}

func (cm *connectionManager) setSource(src uplink.Source, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.src = src
	cm.connInfo = connInfo
}

// run starts the reader, runs the program and shuts everything down
func (cm *connectionManager) run(p *tea.Program) error {
	cm.p = p

	// Console logging would corrupt the alt screen
	if cfg.Log.File == "" {
		logger.SetOutput(io.Discard)
	}

	go cm.readerLoop()

	_, err := p.Run()
	close(cm.done) // Signal goroutines to stop
	if src := cm.getSource(); src != nil {
		src.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

func runControl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	proc, err := newFrameProcessor(ctx)
	if err != nil {
		return err
	}
	defer proc.Close()

	cm, err := newConnectionManager(ctx, proc)
	if err != nil {
		return err
	}

	m := initialControlModel(cm, cm.connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	return cm.run(p)
}

// readerLoop handles reading from the connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		if cm.readFromConnection() {
			// Notify TUI about connection loss
			cm.p.Send(connectionLostMsg{})

			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// readFromConnection processes uplinks until the connection fails.
// Returns true if the connection was lost, false if shutdown was requested.
func (cm *connectionManager) readFromConnection() bool {
	// Buffered channel for batching updates
	batchChan := make(chan frameEvent, 100)
	readerDone := make(chan struct{})

	// Reader goroutine - decodes uplinks and sends to batch channel
	go func() {
		defer close(readerDone)
		failures := 0
		for {
			select {
			case <-cm.done:
				return
			default:
			}

			src := cm.getSource()
			if src == nil {
				return
			}

			u, err := src.ReadUplink()
			if err != nil {
				select {
				case <-cm.done:
					return
				default:
					if errors.Is(err, uplink.ErrConnectionClosed) {
						return
					}
					failures++
					time.Sleep(readRetryDelay(failures))
					continue
				}
			}
			failures = 0

			ev := cm.proc.process(cm.ctx, u)
			select {
			case batchChan <- ev:
			default:
			}
		}
	}()

	// Batch sender goroutine - sends batched updates to TUI at fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				return
			case <-ticker.C:
				var batch frameBatchMsg

				// Drain all available events
			drainLoop:
				for {
					select {
					case ev := <-batchChan:
						batch.events = append(batch.events, ev)
					default:
						break drainLoop
					}
				}

				if len(batch.events) > 0 {
					cm.p.Send(batch)
				}
			}
		}
	}()

	// Wait for reader to finish (connection lost or shutdown)
	<-readerDone

	select {
	case <-cm.done:
		return false
	default:
		return true
	}
}

// reconnect attempts to reconnect with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (cm *connectionManager) reconnect() bool {
	if src := cm.getSource(); src != nil {
		src.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		src, connInfo, err := OpenConnection()
		if err == nil {
			cm.setSource(src, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}
		logger.WithError(err).WithField("backoff", backoff).Debug("Reconnect failed")

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
