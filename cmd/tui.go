// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ltxlabs/ltxscope/pkg/ltx"
)

//////////////////////////////////////////////////////////////
// Shared TUI pieces
//////////////////////////////////////////////////////////////

// uiStyles is the palette shared by the error detection and control views
type uiStyles struct {
	title      lipgloss.Style
	dim        lipgloss.Style
	label      lipgloss.Style
	value      lipgloss.Style
	errorText  lipgloss.Style
	warning    lipgloss.Style
	box        lipgloss.Style
	focusedBox lipgloss.Style
}

func newUIStyles() uiStyles {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	return uiStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		dim:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		label:      lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		value:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		errorText:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warning:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		box:        box,
		focusedBox: box.BorderForeground(lipgloss.Color("12")),
	}
}

// pair renders "label value" with the value in the given style
func (st uiStyles) pair(label string, value string, valueStyle lipgloss.Style) string {
	return st.label.Render(label) + " " + valueStyle.Render(value)
}

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// eventLog keeps the most recent entries
type eventLog struct {
	entries []errorLogEntry
	max     int
}

func newEventLog(max int) eventLog {
	return eventLog{entries: make([]errorLogEntry, 0), max: max}
}

func (l *eventLog) add(message string, isError bool) {
	l.entries = append(l.entries, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

// render shows the last lines entries inside a box of the given width
func (l eventLog) render(st uiStyles, lines, width int, timeLayout string) string {
	var b strings.Builder
	if len(l.entries) == 0 {
		b.WriteString(st.dim.Render("  (no events yet)"))
		return st.box.Width(width).Render(b.String())
	}

	start := len(l.entries) - lines
	if start < 0 {
		start = 0
	}
	for _, entry := range l.entries[start:] {
		icon, style := "ℹ", st.warning
		if entry.isError {
			icon, style = "✗", st.errorText
		}
		fmt.Fprintf(&b, "%s %s\n", st.dim.Render(entry.timestamp.Format(timeLayout)), style.Render(icon+" "+entry.message))
	}
	return st.box.Width(width).Render(b.String())
}

// Messages
type tickMsg time.Time

type frameBatchMsg struct {
	events []frameEvent
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

// formatUptime formats a duration in milliseconds to a human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}

// newReadingsTable creates the table showing one frame's readings
func newReadingsTable(height int) table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Chan", Width: 6},
			{Title: "Value", Width: 16},
			{Title: "Unit", Width: 14},
			{Title: "Prec", Width: 5},
		}),
		table.WithHeight(height),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = lipgloss.NewStyle()
	t.SetStyles(styles)
	return t
}

// readingRows renders the readings of res as table rows
func readingRows(res *ltx.DecodeResult) []table.Row {
	rows := make([]table.Row, 0, len(res.Channels))
	for _, r := range res.Channels {
		chanLabel := strconv.Itoa(r.Channel())
		if r.IsHousekeeping() {
			chanLabel = "HK " + chanLabel
		}
		value := ""
		if code, isErr := r.Err(); isErr {
			value = code.String()
		} else {
			v, _ := r.Value()
			value = strconv.FormatFloat(v, 'g', -1, 64)
		}
		rows = append(rows, table.Row{chanLabel, value, r.Unit(), r.Precision().String()})
	}
	return rows
}

//////////////////////////////////////////////////////////////
// Error detection model
//////////////////////////////////////////////////////////////

// TUI model
type model struct {
	connMgr        *connectionManager
	connInfo       string
	statsInterval  int
	showAll        bool
	stats          *ltx.Statistics
	events         eventLog
	lastFrame      *frameEvent
	readings       table.Model
	styles         uiStyles
	width          int
	height         int
	quitting       bool
	connectionLost bool
}

func initialModel(connMgr *connectionManager, connInfo string, statsInterval int, showAll bool) model {
	return model{
		connMgr:       connMgr,
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         ltx.NewStatistics(),
		events:        newEventLog(100),
		readings:      newReadingsTable(8),
		styles:        newUIStyles(),
		width:         80,
		height:        24,
	}
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(ctx context.Context, proc *frameProcessor) error {
	cm, err := newConnectionManager(ctx, proc)
	if err != nil {
		return err
	}

	m := initialModel(cm, cm.connInfo, statsInterval, showAll)
	return cm.run(tea.NewProgram(m, tea.WithAltScreen()))
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.events.add("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case frameBatchMsg:
		for _, ev := range msg.events {
			m.processFrame(ev)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.events.add("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.events.add("Reconnected", false)
	}

	return m, nil
}

// processFrame updates statistics, readings and the log from one event
func (m *model) processFrame(ev frameEvent) {
	m.stats.Update(ev.result, ev.decodeErr, ev.anomalies)

	if ev.decodeErr != nil {
		m.events.add(fmt.Sprintf("DECODE ERROR: %v [%s]", ev.decodeErr, ltx.FormatHex(ev.uplink.Payload)), true)
		return
	}

	frame := ev
	m.lastFrame = &frame
	m.readings.SetRows(readingRows(ev.result))

	device := ev.uplink.DevEUI
	if device == "" {
		device = fmt.Sprintf("fPort %d", ev.result.Port)
	}
	if len(ev.anomalies) > 0 {
		for _, a := range ev.anomalies {
			m.events.add(fmt.Sprintf("%s: %s", device, a.Message), a.Type == ltx.AnomalySensorError)
		}
	} else if m.showAll {
		m.events.add(fmt.Sprintf("%s: %d readings (valid)", device, len(ev.result.Channels)), false)
	}
}

// percent returns part as a percentage of total
func percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100.0 / float64(total)
}

func (m model) renderStats() string {
	st := m.styles
	s := m.stats
	s.CalculateRates()
	failed := s.DecodeErrors + s.AnomalousFrames

	lines := []string{
		strings.Join([]string{
			st.pair("Total:", fmt.Sprintf("%d", s.TotalFrames), st.value),
			st.pair("Valid:", fmt.Sprintf("%d (%.1f%%)", s.ValidFrames, percent(s.ValidFrames, s.TotalFrames)), st.value),
			st.pair("Errors:", fmt.Sprintf("%d (%.1f%%)", failed, percent(failed, s.TotalFrames)), st.errorText),
		}, "   "),
	}

	if s.DecodeErrors > 0 {
		lines = append(lines, st.pair("Decode Errors:", fmt.Sprintf("%d", s.DecodeErrors), st.errorText)+
			st.dim.Render(fmt.Sprintf(" (empty: %d, unknown port: %d, truncated: %d)", s.EmptyFrames, s.UnknownPorts, s.TruncatedFrames)))
	}
	if s.AnomalousValues > 0 {
		lines = append(lines, st.pair("Anomalous:", fmt.Sprintf("%d", s.AnomalousValues), st.warning)+
			st.dim.Render(fmt.Sprintf(" (sensor errors: %d, low battery: %d, invalid HK: %d)", s.SensorErrors, s.LowBattery, s.InvalidHK)))
	}

	rateStyle := st.value
	if s.ErrorRate > 0 {
		rateStyle = st.errorText
	}
	lines = append(lines, strings.Join([]string{
		st.pair("Frame Rate:", fmt.Sprintf("%.2f frames/s", s.FrameRate), st.value),
		st.pair("Error Rate:", fmt.Sprintf("%.2f err/s", s.ErrorRate), rateStyle),
		st.pair("Uptime:", formatUptime(uint64(time.Since(s.StartTime).Milliseconds())), st.value),
	}, "   "))

	return st.box.Render(strings.Join(lines, "\n"))
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	st := m.styles

	var b strings.Builder
	b.WriteString(st.title.Render("LTXSCOPE - ERROR DETECTION"))
	b.WriteString("\n")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = st.warning.Render("RECONNECTING...")
	}
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	b.WriteString(st.dim.Render(fmt.Sprintf("%s | Revision: %s | Mode: %s | 'r' reset, 'q' quit",
		connStatus, decoder.Revision().Name, mode)))
	b.WriteString("\n\n")

	b.WriteString(m.renderStats())
	b.WriteString("\n\n")

	logLines := m.height - 15
	if m.lastFrame != nil {
		res := m.lastFrame.result
		b.WriteString(st.label.Render("Latest Frame:"))
		b.WriteString(" ")
		b.WriteString(st.dim.Render(fmt.Sprintf("%s fPort %d %s %s",
			m.lastFrame.uplink.Received.Format("15:04:05.000"), res.Port,
			res.Header.FlagsString(), res.Header.Reason)))
		b.WriteString("\n")
		b.WriteString(st.box.Render(m.readings.View()))
		b.WriteString("\n\n")
		logLines -= 12
	}
	if logLines < 5 {
		logLines = 5
	}

	b.WriteString(st.label.Render("Recent Events:"))
	b.WriteString("\n")
	b.WriteString(m.events.render(st, logLines, m.width-4, "01/02/06 15:04:05.000"))

	return b.String()
}
