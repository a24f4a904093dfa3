package models

import (
	"fmt"
	"time"
)

// Protocol identifies which discovery protocol produced a neighbor record.
type Protocol string

const (
	ProtocolCDP  Protocol = "CDP"
	ProtocolLLDP Protocol = "LLDP"
)

// DefaultHoldTime is the expiry window applied when an advertisement does not
// carry its own lifetime: three times the protocol's default advertisement
// interval (60s for CDP, 30s for LLDP).
func (p Protocol) DefaultHoldTime() time.Duration {
	if p == ProtocolLLDP {
		return 90 * time.Second
	}
	return 180 * time.Second
}

// Duplex is the advertised duplex mode of the remote port.
type Duplex string

const (
	DuplexUnknown Duplex = ""
	DuplexHalf    Duplex = "half"
	DuplexFull    Duplex = "full"
)

// Capability is a named capability flag decoded from the advertisement's
// capability bitmask.
type Capability string

const (
	CapRouter    Capability = "Router"
	CapBridge    Capability = "Bridge"
	CapSwitch    Capability = "Switch"
	CapHost      Capability = "Host"
	CapPhone     Capability = "Phone"
	CapRepeater  Capability = "Repeater"
	CapWLANAP    Capability = "WLAN-AP"
	CapStation   Capability = "Station"
	CapIGMP      Capability = "IGMP"
	CapDOCSIS    Capability = "DOCSIS"
	CapOther     Capability = "Other"
)

// RawTLV preserves a TLV the parser did not interpret. Type is the on-wire
// type code; Value is the raw value bytes.
type RawTLV struct {
	Type  uint16
	Value []byte
}

// Key uniquely identifies a neighbor row: one row per (local interface,
// device ID) pair. The same device heard on two interfaces is two rows.
type Key struct {
	Interface string
	DeviceID  string
}

func (k Key) String() string {
	return k.Interface + "/" + k.DeviceID
}

// NeighborRecord is the unified model both parsers populate. Records are
// value types: parsers build one per decoded frame, the discovery manager
// merges them into its table, and observers only ever see copies.
type NeighborRecord struct {
	Protocol  Protocol
	Interface string // local interface that heard the advertisement

	DeviceID string // CDP Device-ID / LLDP chassis ID
	PortID   string // remote port identifier

	Platform          string
	SystemDescription string
	SoftwareVersion   string
	PortDescription   string

	IPAddresses  []string // unique, insertion-ordered
	Capabilities []Capability

	NativeVLAN int // 0 means not advertised
	VoiceVLAN  int
	VLANName   string
	VTPDomain  string
	Duplex     Duplex

	SourceMAC string

	// HoldTime is the advertised validity lifetime. Zero means the protocol
	// default applies. Withdrawn marks an LLDP shutdown frame (TTL=0): the
	// neighbor must be removed immediately rather than waiting for expiry.
	HoldTime  time.Duration
	Withdrawn bool

	LocalPortSpeed int64 // bits/sec, 0 if unknown

	FirstSeen time.Time
	LastSeen  time.Time

	// UnknownTLVs holds TLVs the parser kept opaque. They never populate
	// named fields and their presence is never an error.
	UnknownTLVs []RawTLV
}

// Key returns the table key for this record.
func (r *NeighborRecord) Key() Key {
	return Key{Interface: r.Interface, DeviceID: r.DeviceID}
}

// AddIP appends an address, keeping the set unique.
func (r *NeighborRecord) AddIP(ip string) {
	for _, existing := range r.IPAddresses {
		if existing == ip {
			return
		}
	}
	r.IPAddresses = append(r.IPAddresses, ip)
}

// HasCapability reports whether the capability flag was advertised.
func (r *NeighborRecord) HasCapability(c Capability) bool {
	for _, have := range r.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ExpiryWindow is the window after LastSeen in which a refresh must arrive,
// honoring a per-record hold time over the protocol default.
func (r *NeighborRecord) ExpiryWindow() time.Duration {
	if r.HoldTime > 0 {
		return r.HoldTime
	}
	return r.Protocol.DefaultHoldTime()
}

// ExpiredAt reports whether the record is stale at the given instant.
func (r *NeighborRecord) ExpiredAt(now time.Time) bool {
	return now.Sub(r.LastSeen) > r.ExpiryWindow()
}

// Clone returns a deep copy safe to hand to observers.
func (r *NeighborRecord) Clone() *NeighborRecord {
	cp := *r
	cp.IPAddresses = append([]string(nil), r.IPAddresses...)
	cp.Capabilities = append([]Capability(nil), r.Capabilities...)
	cp.UnknownTLVs = make([]RawTLV, len(r.UnknownTLVs))
	for i, tlv := range r.UnknownTLVs {
		cp.UnknownTLVs[i] = RawTLV{Type: tlv.Type, Value: append([]byte(nil), tlv.Value...)}
	}
	return &cp
}

// FormatSpeed renders a bits/sec link speed the way switch CLIs do ("1G",
// "100M"). Empty string when the speed is unknown.
func FormatSpeed(bps int64) string {
	switch {
	case bps <= 0:
		return ""
	case bps >= 1e9 && bps%1e9 == 0:
		return fmt.Sprintf("%dG", bps/1e9)
	case bps >= 1e6:
		return fmt.Sprintf("%dM", bps/1e6)
	default:
		return fmt.Sprintf("%d", bps)
	}
}
