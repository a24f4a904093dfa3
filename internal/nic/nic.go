// Package nic enumerates capturable network interfaces. It merges pcap's
// device list (whose names are the capture-handle keys) with the OS
// interface table for MAC, state and MTU, and flags adapters that look
// virtual so the presentation layer can hide them by default.
package nic

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/google/gopacket/pcap"

	"neighwatch/internal/models"
)

// Interface describes one capturable interface. ID is the pcap device name
// and is what the capture layer treats as its opaque handle key.
type Interface struct {
	ID          string
	DisplayName string
	MAC         string
	Addresses   []string
	IsUp        bool
	IsLoopback  bool
	IsVirtual   bool
	MTU         int
	SpeedBps    int64
}

// SpeedDisplay renders the link speed like a switch CLI would ("1G").
func (i Interface) SpeedDisplay() string {
	return models.FormatSpeed(i.SpeedBps)
}

func (i Interface) String() string {
	addrs := "no address"
	if len(i.Addresses) > 0 {
		addrs = strings.Join(i.Addresses, ", ")
	}
	return fmt.Sprintf("%s (%s)", i.ID, addrs)
}

// virtualMarkers, matched case-insensitively against the interface name and
// description, flag adapters that cannot hear real switch advertisements.
var virtualMarkers = []string{
	"loopback", "vmware", "virtualbox", "vbox", "hyper-v", "vethernet",
	"docker", "veth", "virbr", "br-", "tap", "tun", "wg", "wsl", "bluetooth",
	"npcap loopback",
}

// List enumerates all capturable interfaces.
func List() ([]Interface, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("enumerating capture devices: %w", err)
	}

	sysIfaces := make(map[string]net.Interface)
	if all, err := net.Interfaces(); err == nil {
		for _, ifi := range all {
			sysIfaces[ifi.Name] = ifi
		}
	}

	out := make([]Interface, 0, len(devs))
	for _, d := range devs {
		ni := Interface{
			ID:          d.Name,
			DisplayName: d.Description,
			IsLoopback:  d.Flags&flagPcapLoopback != 0,
		}
		if ni.DisplayName == "" {
			ni.DisplayName = d.Name
		}
		for _, a := range d.Addresses {
			if a.IP != nil {
				ni.Addresses = append(ni.Addresses, a.IP.String())
			}
		}
		if ifi, ok := sysIfaces[d.Name]; ok {
			ni.MAC = ifi.HardwareAddr.String()
			ni.MTU = ifi.MTU
			ni.IsUp = ifi.Flags&net.FlagUp != 0
			ni.IsLoopback = ni.IsLoopback || ifi.Flags&net.FlagLoopback != 0
		}
		ni.IsVirtual = looksVirtual(d.Name, d.Description) || ni.IsLoopback
		ni.SpeedBps = linkSpeed(d.Name)
		out = append(out, ni)
	}
	return out, nil
}

// flagPcapLoopback mirrors PCAP_IF_LOOPBACK.
const flagPcapLoopback = 0x00000001

// looksVirtual applies the marker list to name and description.
func looksVirtual(name, description string) bool {
	name = strings.ToLower(name)
	description = strings.ToLower(description)
	for _, marker := range virtualMarkers {
		if strings.Contains(name, marker) || strings.Contains(description, marker) {
			return true
		}
	}
	return false
}

// linkSpeed reads the advertised link speed in bits/sec, or 0 when the OS
// does not expose it. Linux publishes megabits in sysfs; a downed link
// reports -1 there.
func linkSpeed(name string) int64 {
	raw, err := os.ReadFile("/sys/class/net/" + name + "/speed")
	if err != nil {
		return 0
	}
	return parseSpeedMbps(string(raw))
}

func parseSpeedMbps(raw string) int64 {
	mbps, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || mbps <= 0 {
		return 0
	}
	return mbps * 1_000_000
}
