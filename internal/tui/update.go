package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"neighwatch/internal/models"
	"neighwatch/internal/reporting"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "e":
			m.notice = m.export("csv")
		case "t":
			m.notice = m.export("txt")
		}

	case TickMsg:
		m.now = time.Time(msg)
		m.refresh()
		return m, tickCmd()

	case eventMsg:
		if msg.Type == models.CaptureError && msg.Err != nil {
			m.lastError = fmt.Sprintf("%s: %v", msg.Interface, msg.Err)
		}
		m.now = time.Now()
		m.refresh()
		return m, waitForEvent(m.mgr.Events())

	case eventsClosedMsg:
		return m, tea.Quit
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.neighbors = m.mgr.Snapshot()
	m.statuses = m.mgr.Statuses()

	rows := make([]table.Row, len(m.neighbors))
	for i, rec := range m.neighbors {
		rows[i] = table.Row{
			string(rec.Protocol),
			rec.Interface,
			rec.DeviceID,
			rec.PortID,
			rec.Platform,
			firstIP(rec.IPAddresses),
			vlanCell(rec.NativeVLAN),
			formatAge(m.now.Sub(rec.LastSeen)),
		}
	}
	m.table.SetRows(rows)
	if cursor := m.table.Cursor(); cursor >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// selected returns the neighbor under the cursor, or nil when the table is
// empty.
func (m Model) selected() *models.NeighborRecord {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.neighbors) {
		return nil
	}
	return m.neighbors[cursor]
}

func (m Model) export(format string) string {
	filename, err := reporting.SaveSnapshot(m.neighbors, format)
	if err != nil {
		return fmt.Sprintf("export failed: %v", err)
	}
	return fmt.Sprintf("saved %s", filename)
}

func firstIP(addrs []string) string {
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}

func vlanCell(vlan int) string {
	if vlan <= 0 {
		return ""
	}
	return strconv.Itoa(vlan)
}

func formatAge(age time.Duration) string {
	if age < 0 {
		age = 0
	}
	if age < time.Minute {
		return fmt.Sprintf("%ds", int(age.Seconds()))
	}
	return fmt.Sprintf("%dm", int(age.Minutes()))
}

func joinCapabilities(caps []models.Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
