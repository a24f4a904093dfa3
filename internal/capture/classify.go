package capture

import (
	"net"

	"github.com/google/gopacket/layers"
)

// Class is the closed set of frame classifications a session recognizes.
type Class int

const (
	ClassUnrecognized Class = iota
	ClassCDP
	ClassLLDP
)

func (c Class) String() string {
	switch c {
	case ClassCDP:
		return "CDP"
	case ClassLLDP:
		return "LLDP"
	default:
		return "unrecognized"
	}
}

const lldpEtherType = layers.EthernetType(0x88cc)

var (
	cdpMulticast = net.HardwareAddr{0x01, 0x00, 0x0c, 0xcc, 0xcc, 0xcc}

	// The three LLDP destination addresses: nearest bridge, nearest
	// non-TPMR bridge, nearest customer bridge.
	lldpMulticasts = []net.HardwareAddr{
		{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e},
		{0x01, 0x80, 0xc2, 0x00, 0x00, 0x03},
		{0x01, 0x80, 0xc2, 0x00, 0x00, 0x00},
	}
)

// bpfFilter admits exactly the frames Classify recognizes.
const bpfFilter = "(ether dst 01:00:0c:cc:cc:cc) or (ether proto 0x88cc) or " +
	"(ether dst 01:80:c2:00:00:0e) or (ether dst 01:80:c2:00:00:03) or (ether dst 01:80:c2:00:00:00)"

// Classify sorts a frame by destination MAC and EtherType. Frames matching
// neither protocol signature are not an error, just noise the BPF filter let
// through.
func Classify(dst net.HardwareAddr, etherType layers.EthernetType) Class {
	if macEqual(dst, cdpMulticast) {
		return ClassCDP
	}
	if etherType == lldpEtherType {
		return ClassLLDP
	}
	for _, mac := range lldpMulticasts {
		if macEqual(dst, mac) {
			return ClassLLDP
		}
	}
	return ClassUnrecognized
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
