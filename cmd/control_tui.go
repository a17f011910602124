// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Devices that have not sent an uplink for this long are shown as stale
const staleDeviceAfter = 15 * time.Minute

// Focus states
const (
	focusDeviceList = iota
	focusCommandInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// device is a logger seen on the connection
type device struct {
	devEUI     string
	frames     uint64
	errors     uint64
	lastSeen   time.Time
	lastResult *ltx.DecodeResult
}

// Implement list.Item interface
func (d device) Title() string {
	if d.devEUI == "" {
		return "(bridge)"
	}
	return d.devEUI
}

func (d device) Description() string {
	state := "active"
	if time.Since(d.lastSeen) > staleDeviceAfter {
		state = "stale"
	}
	return fmt.Sprintf("%d frames, %s", d.frames, state)
}

func (d device) FilterValue() string { return d.devEUI }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (for sending downlinks and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Device tracking
	devices     []device
	deviceIndex map[string]int
	deviceList  list.Model

	// Monitoring
	stats    *ltx.Statistics
	events   eventLog
	readings table.Model
	styles   uiStyles

	// Control
	commandInput textinput.Model
	confirmed    bool
	focusedField int

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

// downlinkResultMsg reports a downlink write that ran off the UI goroutine
type downlinkResultMsg struct {
	text   string
	target string
	bytes  []byte
	err    error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string) controlModel {
	// Initialize text input for downlink commands
	ti := textinput.New()
	ti.Placeholder = "p 300"
	ti.CharLimit = ltx.MaxCommandLength + 16 // longer input is truncated with a warning
	ti.Width = 40

	// Initialize device list with empty items
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	deviceList := list.New([]list.Item{}, delegate, 30, 10)
	deviceList.Title = "Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(false)

	return controlModel{
		connMgr:      connMgr,
		connInfo:     connInfo,
		devices:      make([]device, 0),
		deviceIndex:  make(map[string]int),
		deviceList:   deviceList,
		stats:        ltx.NewStatistics(),
		events:       newEventLog(100),
		styles:       newUIStyles(),
		readings:     newReadingsTable(10),
		commandInput: ti,
		focusedField: focusDeviceList,
		width:        80,
		height:       24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.stats.CalculateRates()
		// Refresh descriptions so stale devices are marked
		m.updateDeviceList()
		return m, controlTickCmd()

	case frameBatchMsg:
		for _, ev := range msg.events {
			m.processFrame(ev)
		}
		m.updateDeviceList()
		m.updateReadings()

	case connectionLostMsg:
		m.connectionLost = true
		m.events.add("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.events.add("Reconnected", false)

	case downlinkResultMsg:
		if msg.err != nil {
			m.events.add(fmt.Sprintf("Command %q to %s failed: %v", msg.text, msg.target, msg.err), true)
			break
		}
		m.connMgr.proc.downlinkSent()
		m.events.add(fmt.Sprintf("Queued %q to %s (%s)", msg.text, msg.target, ltx.FormatHex(msg.bytes)), false)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusCommandInput {
		m.commandInput, cmd = m.commandInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusDeviceList {
		m.deviceList, cmd = m.deviceList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		// q is a valid command character while typing
		if m.focusedField != focusCommandInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		return m.toggleFocus(), nil

	case "ctrl+f":
		m.confirmed = !m.confirmed
		return m, nil

	case "enter":
		if m.focusedField == focusCommandInput {
			return m.sendCommand()
		}

	case "up", "k", "down", "j":
		if m.focusedField == focusDeviceList {
			m.deviceList, _ = m.deviceList.Update(msg)
			m.updateReadings()
			return m, nil
		}
	}

	// Pass through to focused component
	if m.focusedField == focusCommandInput {
		var cmd tea.Cmd
		m.commandInput, cmd = m.commandInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *controlModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	// Pass mouse events to the list
	m.deviceList, _ = m.deviceList.Update(msg)
	m.updateReadings()

	return m, nil
}

func (m *controlModel) toggleFocus() *controlModel {
	if m.focusedField == focusDeviceList {
		m.focusedField = focusCommandInput
		m.commandInput.Focus()
	} else {
		m.focusedField = focusDeviceList
		m.commandInput.Blur()
	}
	return m
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	st := m.styles

	var b strings.Builder
	b.WriteString(st.title.Render("LTXSCOPE CONTROL"))
	b.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = st.warning.Render("RECONNECTING...")
	}
	b.WriteString(st.dim.Render(fmt.Sprintf("| %s | Tab=switch Ctrl+F=confirmed Ctrl+C=quit", connStatus)))
	b.WriteString("\n\n")

	if len(m.devices) > 0 {
		const leftWidth = 30
		panel := st.box
		if m.focusedField == focusDeviceList {
			panel = st.focusedBox
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			panel.Width(leftWidth).Render(m.deviceList.View()),
			" ",
			st.box.Width(m.width-leftWidth-6).Render(m.renderControlPanel())))
		b.WriteString("\n\n")
		b.WriteString(m.renderStatisticsBar())
		b.WriteString("\n\n")
	} else {
		b.WriteString(st.warning.Render("Waiting for uplinks..."))
		b.WriteString("\n\n")
	}

	b.WriteString(st.label.Render("EVENTS"))
	b.WriteString("\n")
	b.WriteString(m.events.render(st, 8, m.width-4, "15:04:05.000"))
	return b.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

// renderControlPanel shows the selected device's latest frame and the command line
func (m controlModel) renderControlPanel() string {
	st := m.styles
	selected := m.getSelectedDevice()
	if selected == nil {
		return st.dim.Render("No device selected")
	}

	var b strings.Builder
	b.WriteString(st.pair("Selected:", selected.Title(), lipgloss.NewStyle()))
	b.WriteString("\n")
	if res := selected.lastResult; res != nil {
		b.WriteString(st.pair("Last:", selected.lastSeen.Format("15:04:05"), st.value))
		b.WriteString("  ")
		b.WriteString(st.pair("Header:", res.Header.FlagsString()+" "+res.Header.Reason.String(), st.value))
		b.WriteString("\n")
		b.WriteString(m.readings.View())
	} else {
		b.WriteString(st.dim.Render("No decoded frame yet"))
	}
	b.WriteString("\n\n")

	b.WriteString(st.label.Render("Command: "))
	if m.focusedField == focusCommandInput {
		b.WriteString(m.commandInput.View())
	} else {
		shown := m.commandInput.Value()
		if shown == "" {
			shown = m.commandInput.Placeholder
		}
		fmt.Fprintf(&b, "[%s]", shown)
	}
	b.WriteString("\n")
	delivery := "unconfirmed"
	if m.confirmed {
		delivery = "confirmed"
	}
	b.WriteString(st.dim.Render(fmt.Sprintf("fPort %d, %s", ltx.CommandPort, delivery)))
	return b.String()
}

// renderStatisticsBar condenses the counters to a single line
func (m controlModel) renderStatisticsBar() string {
	st := m.styles
	s := m.stats
	s.CalculateRates()

	errStyle := st.value
	if s.DecodeErrors > 0 {
		errStyle = st.errorText
	}
	fields := []string{
		st.pair("Total:", fmt.Sprintf("%d", s.TotalFrames), st.value),
		st.pair("Valid:", fmt.Sprintf("%.1f%%", percent(s.ValidFrames, s.TotalFrames)), st.value),
		st.pair("Errors:", fmt.Sprintf("%.1f%%", percent(s.DecodeErrors, s.TotalFrames)), errStyle),
		st.pair("Sensor errors:", fmt.Sprintf("%d", s.SensorErrors), st.value),
		st.pair("Rate:", fmt.Sprintf("%.2f frames/s", s.FrameRate), st.value),
	}
	return st.box.Width(m.width - 4).Render(strings.Join(fields, "  "))
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

// processFrame records one event against its device
func (m *controlModel) processFrame(ev frameEvent) {
	m.stats.Update(ev.result, ev.decodeErr, ev.anomalies)

	idx, known := m.deviceIndex[ev.uplink.DevEUI]
	if !known {
		idx = len(m.devices)
		m.devices = append(m.devices, device{devEUI: ev.uplink.DevEUI})
		m.deviceIndex[ev.uplink.DevEUI] = idx
		m.events.add(fmt.Sprintf("New device: %s", m.devices[idx].Title()), false)
	}
	dev := &m.devices[idx]
	dev.frames++
	dev.lastSeen = ev.uplink.Received

	if ev.decodeErr != nil {
		dev.errors++
		m.events.add(fmt.Sprintf("%s: DECODE ERROR: %v", dev.Title(), ev.decodeErr), true)
		return
	}

	dev.lastResult = ev.result
	for _, a := range ev.anomalies {
		m.events.add(fmt.Sprintf("%s: %s", dev.Title(), a.Message), a.Type == ltx.AnomalySensorError)
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *controlModel) sendCommand() (tea.Model, tea.Cmd) {
	if m.connectionLost {
		m.events.add("Cannot send command: connection lost", true)
		return m, nil
	}

	selected := m.getSelectedDevice()
	if selected == nil {
		return m, nil
	}

	text := m.commandInput.Value()
	if text == "" {
		text = m.commandInput.Placeholder
	}

	d := ltx.EncodeCommand(text, nil)
	for _, w := range d.Warnings {
		m.events.add(w, false)
	}

	src := m.connMgr.getSource()
	if src == nil {
		m.events.add("Cannot send command: connection lost", true)
		return m, nil
	}
	m.commandInput.SetValue("")

	// Publishing can block on the network, keep it off the UI goroutine
	devEUI, target, confirmed := selected.devEUI, selected.Title(), m.confirmed
	return m, func() tea.Msg {
		return downlinkResultMsg{
			text:   text,
			target: target,
			bytes:  d.Bytes,
			err:    sendDownlink(src, d, devEUI, confirmed),
		}
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) getSelectedDevice() *device {
	if len(m.devices) == 0 {
		return nil
	}

	idx := m.deviceList.Index()
	if idx < 0 || idx >= len(m.devices) {
		return nil
	}

	return &m.devices[idx]
}

func (m *controlModel) updateReadings() {
	selected := m.getSelectedDevice()
	if selected == nil || selected.lastResult == nil {
		m.readings.SetRows(nil)
		return
	}
	m.readings.SetRows(readingRows(selected.lastResult))
}

func (m *controlModel) updateDeviceList() {
	items := make([]list.Item, len(m.devices))
	for i, d := range m.devices {
		items[i] = d
	}
	m.deviceList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.deviceList.SetSize(28, listHeight)
}
