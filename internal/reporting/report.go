// Package reporting exports neighbor-table snapshots. It consumes only what
// discovery.Manager.Snapshot returns; the capture core defines no file
// format.
package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"neighwatch/internal/models"
)

// SaveSnapshot writes the records to neighbors_<timestamp>.<format> in the
// working directory and returns the file name. Supported formats: "txt",
// "csv".
func SaveSnapshot(records []*models.NeighborRecord, format string) (string, error) {
	switch format {
	case "txt", "csv":
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}

	filename := fmt.Sprintf("neighbors_%s.%s", time.Now().Format("20060102_150405"), format)
	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := WriteSnapshot(file, records, format); err != nil {
		return "", err
	}
	return filename, nil
}

// WriteSnapshot renders the records to w in the given format.
func WriteSnapshot(w io.Writer, records []*models.NeighborRecord, format string) error {
	switch format {
	case "txt":
		return writeText(w, records)
	case "csv":
		return writeCSV(w, records)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeText(w io.Writer, records []*models.NeighborRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No neighbors discovered.")
		return err
	}
	for _, rec := range records {
		fmt.Fprintln(w, "======================================")
		writeField(w, "Protocol", string(rec.Protocol))
		writeField(w, "Interface", rec.Interface)
		writeField(w, "Device ID", rec.DeviceID)
		writeField(w, "Port ID", rec.PortID)
		writeField(w, "Platform", rec.Platform)
		writeField(w, "Description", rec.SystemDescription)
		writeField(w, "Software", rec.SoftwareVersion)
		writeField(w, "IP Addresses", strings.Join(rec.IPAddresses, ", "))
		writeField(w, "Capabilities", joinCaps(rec.Capabilities))
		if rec.NativeVLAN > 0 {
			writeField(w, "Native VLAN", strconv.Itoa(rec.NativeVLAN))
		}
		if rec.VoiceVLAN > 0 {
			writeField(w, "Voice VLAN", strconv.Itoa(rec.VoiceVLAN))
		}
		writeField(w, "VTP Domain", rec.VTPDomain)
		writeField(w, "Duplex", string(rec.Duplex))
		writeField(w, "Source MAC", rec.SourceMAC)
		writeField(w, "Port Speed", models.FormatSpeed(rec.LocalPortSpeed))
		writeField(w, "First Seen", rec.FirstSeen.Format(time.RFC3339))
		writeField(w, "Last Seen", rec.LastSeen.Format(time.RFC3339))
	}
	_, err := fmt.Fprintln(w, "======================================")
	return err
}

func writeField(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%-13s: %s\n", label, value)
}

var csvHeader = []string{
	"protocol", "interface", "device_id", "port_id", "platform",
	"system_description", "software_version", "ip_addresses", "capabilities",
	"native_vlan", "voice_vlan", "vtp_domain", "duplex", "source_mac",
	"local_port_speed", "first_seen", "last_seen",
}

func writeCSV(w io.Writer, records []*models.NeighborRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			string(rec.Protocol),
			rec.Interface,
			rec.DeviceID,
			rec.PortID,
			rec.Platform,
			rec.SystemDescription,
			rec.SoftwareVersion,
			strings.Join(rec.IPAddresses, " "),
			joinCaps(rec.Capabilities),
			vlanField(rec.NativeVLAN),
			vlanField(rec.VoiceVLAN),
			rec.VTPDomain,
			string(rec.Duplex),
			rec.SourceMAC,
			models.FormatSpeed(rec.LocalPortSpeed),
			rec.FirstSeen.Format(time.RFC3339),
			rec.LastSeen.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func vlanField(vlan int) string {
	if vlan <= 0 {
		return ""
	}
	return strconv.Itoa(vlan)
}

func joinCaps(caps []models.Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
