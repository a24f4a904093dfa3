package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"neighwatch/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)
)

func (m Model) View() string {
	title := titleStyle.Render(fmt.Sprintf("neighwatch - %d neighbors", len(m.neighbors)))

	statusBox := infoStyle.Render("Interfaces\n" + m.statusLines())
	tableBox := infoStyle.Render(m.table.View())
	detailBox := infoStyle.Render("Selected Neighbor\n" + m.detailLines())

	body := lipgloss.JoinVertical(lipgloss.Left, title, statusBox, tableBox, detailBox)

	footer := "Press q to quit, e to export CSV, t to export text."
	if m.notice != "" {
		footer += "  " + m.notice
	}
	if m.lastError != "" {
		footer += "\n" + errorStyle.Render("capture error: "+m.lastError)
	}

	return body + "\n" + footer
}

func (m Model) statusLines() string {
	if len(m.statuses) == 0 {
		return "No capture sessions."
	}
	lines := make([]string, len(m.statuses))
	for i, st := range m.statuses {
		lines[i] = fmt.Sprintf("%-12s %-10s frames=%d decoded=%d malformed=%d",
			st.Interface, st.State, st.Stats.Frames, st.Stats.Decoded, st.Stats.Malformed)
	}
	return strings.Join(lines, "\n")
}

func (m Model) detailLines() string {
	rec := m.selected()
	if rec == nil {
		return "Waiting for advertisements..."
	}

	var b strings.Builder
	detail := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%-13s: %s\n", label, value)
	}

	detail("Device ID", rec.DeviceID)
	detail("Port ID", rec.PortID)
	detail("Port Desc", rec.PortDescription)
	detail("Platform", rec.Platform)
	detail("Description", rec.SystemDescription)
	detail("Software", rec.SoftwareVersion)
	detail("IP Addresses", strings.Join(rec.IPAddresses, ", "))
	detail("Capabilities", joinCapabilities(rec.Capabilities))
	if rec.NativeVLAN > 0 {
		detail("Native VLAN", fmt.Sprintf("%d", rec.NativeVLAN))
	}
	if rec.VoiceVLAN > 0 {
		detail("Voice VLAN", fmt.Sprintf("%d", rec.VoiceVLAN))
	}
	detail("VLAN Name", rec.VLANName)
	detail("VTP Domain", rec.VTPDomain)
	detail("Duplex", string(rec.Duplex))
	detail("Source MAC", rec.SourceMAC)
	detail("Port Speed", models.FormatSpeed(rec.LocalPortSpeed))
	detail("Hold Time", rec.ExpiryWindow().String())

	return strings.TrimRight(b.String(), "\n")
}
