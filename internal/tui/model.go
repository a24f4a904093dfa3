// Package tui renders the live neighbor table. It is a thin consumer of the
// discovery manager: a periodic tick pulls Snapshot and Statuses, and the
// event channel drives immediate refreshes and the error line.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"neighwatch/internal/discovery"
	"neighwatch/internal/models"
)

type TickMsg time.Time

type eventMsg models.Event

type eventsClosedMsg struct{}

type Model struct {
	mgr       *discovery.Manager
	table     table.Model
	neighbors []*models.NeighborRecord
	statuses  []discovery.InterfaceStatus
	lastError string
	notice    string
	now       time.Time
}

func NewModel(mgr *discovery.Manager) Model {
	columns := []table.Column{
		{Title: "Proto", Width: 5},
		{Title: "Interface", Width: 12},
		{Title: "Device ID", Width: 24},
		{Title: "Port ID", Width: 22},
		{Title: "Platform", Width: 24},
		{Title: "IP Address", Width: 15},
		{Title: "VLAN", Width: 5},
		{Title: "Age", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		mgr:   mgr,
		table: t,
		now:   time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForEvent(m.mgr.Events()))
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForEvent(events <-chan models.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}
