// Package lldp decodes IEEE 802.1AB Link Layer Discovery Protocol frames
// into neighbor records.
//
// An LLDPDU is a flat TLV list with a packed 2-byte header (7-bit type,
// 9-bit length) terminated by an End-of-LLDPDU sentinel. The mandatory
// leading order (Chassis ID, Port ID, TTL) is common but not relied upon:
// fields are matched by type, not position.
package lldp

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"neighwatch/internal/models"
	"neighwatch/internal/tlv"
)

// LLDP TLV types.
const (
	tlvChassisID    uint16 = 1
	tlvPortID       uint16 = 2
	tlvTTL          uint16 = 3
	tlvPortDesc     uint16 = 4
	tlvSystemName   uint16 = 5
	tlvSystemDesc   uint16 = 6
	tlvCapabilities uint16 = 7
	tlvMgmtAddress  uint16 = 8
	tlvOrgSpecific  uint16 = 127
)

// Chassis/Port ID subtypes that need structured decoding; anything else is
// treated as a printable string.
const (
	subtypeMACAddress     = 4
	subtypeNetworkAddress = 5

	portSubtypeMACAddress     = 3
	portSubtypeNetworkAddress = 4
)

// System capability bits.
const (
	capOther     uint16 = 0x0001
	capRepeater  uint16 = 0x0002
	capBridge    uint16 = 0x0004
	capWLANAP    uint16 = 0x0008
	capRouter    uint16 = 0x0010
	capTelephone uint16 = 0x0020
	capDOCSIS    uint16 = 0x0040
	capStation   uint16 = 0x0080
)

// Organizationally specific OUIs and subtypes.
var (
	ouiIEEE8021 = [3]byte{0x00, 0x80, 0xc2}
	ouiLLDPMED  = [3]byte{0x00, 0x12, 0xbb}
)

const (
	subtype8021PortVLANID = 1
	subtype8021VLANName   = 3

	subtypeMEDNetworkPolicy = 2
)

// ErrNoChassisID reports an advertisement missing the Chassis ID TLV; such a
// record cannot be keyed and is discarded.
var ErrNoChassisID = errors.New("lldp: advertisement carries no chassis ID")

// Parser decodes LLDP payloads.
type Parser struct {
	log *zap.Logger
}

// NewParser returns a parser logging through the given logger.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log}
}

// Parse decodes an LLDPDU (the EtherType 0x88cc payload) into a neighbor
// record. A TTL of zero marks the record withdrawn: the sender is shutting
// the port down and the neighbor must be dropped immediately.
func (p *Parser) Parse(payload []byte, iface string) (*models.NeighborRecord, error) {
	rec := &models.NeighborRecord{
		Protocol:  models.ProtocolLLDP,
		Interface: iface,
	}

	var supported, enabled uint16

	r := tlv.NewLLDPReader(payload)
	for r.Next() {
		f := r.TLV()
		switch f.Type {
		case tlvChassisID:
			if len(f.Value) >= 2 {
				rec.DeviceID = formatID(f.Value[0], f.Value[1:], subtypeMACAddress, subtypeNetworkAddress)
			}
		case tlvPortID:
			if len(f.Value) >= 2 {
				rec.PortID = formatID(f.Value[0], f.Value[1:], portSubtypeMACAddress, portSubtypeNetworkAddress)
			}
		case tlvTTL:
			if len(f.Value) >= 2 {
				ttl := binary.BigEndian.Uint16(f.Value[:2])
				rec.HoldTime = time.Duration(ttl) * time.Second
				rec.Withdrawn = ttl == 0
			}
		case tlvPortDesc:
			rec.PortDescription = cleanString(f.Value)
		case tlvSystemName:
			rec.Platform = cleanString(f.Value)
		case tlvSystemDesc:
			rec.SystemDescription = cleanString(f.Value)
		case tlvCapabilities:
			if len(f.Value) >= 4 {
				supported = binary.BigEndian.Uint16(f.Value[0:2])
				enabled = binary.BigEndian.Uint16(f.Value[2:4])
			}
		case tlvMgmtAddress:
			if addr := parseMgmtAddress(f.Value); addr != "" {
				rec.AddIP(addr)
			}
		case tlvOrgSpecific:
			p.parseOrgSpecific(f.Value, rec)
		default:
			rec.UnknownTLVs = append(rec.UnknownTLVs, models.RawTLV{
				Type:  f.Type,
				Value: append([]byte(nil), f.Value...),
			})
		}
	}
	if err := r.Err(); err != nil {
		p.log.Debug("lldpdu ends malformed", zap.String("interface", iface), zap.Error(err))
	}

	// Enabled capabilities are what the device is actually doing; fall back
	// to the supported set when the enabled mask is empty.
	mask := enabled
	if mask == 0 {
		mask = supported
	}
	rec.Capabilities = capabilityFlags(mask)

	if rec.DeviceID == "" {
		return nil, ErrNoChassisID
	}
	return rec, nil
}

// parseOrgSpecific handles type-127 TLVs: IEEE 802.1 VLAN information and the
// LLDP-MED network policy (voice VLAN). Everything else stays opaque.
func (p *Parser) parseOrgSpecific(value []byte, rec *models.NeighborRecord) {
	if len(value) < 4 {
		return
	}
	oui := [3]byte{value[0], value[1], value[2]}
	subtype := value[3]
	data := value[4:]

	switch {
	case oui == ouiIEEE8021 && subtype == subtype8021PortVLANID:
		if len(data) >= 2 {
			rec.NativeVLAN = int(binary.BigEndian.Uint16(data[:2]))
		}
	case oui == ouiIEEE8021 && subtype == subtype8021VLANName:
		// 2-byte VLAN ID, 1-byte name length, then the name.
		if len(data) >= 3 {
			nameLen := int(data[2])
			if len(data) >= 3+nameLen {
				rec.VLANName = cleanString(data[3 : 3+nameLen])
			}
			if rec.NativeVLAN == 0 {
				rec.NativeVLAN = int(binary.BigEndian.Uint16(data[0:2]))
			}
		}
	case oui == ouiLLDPMED && subtype == subtypeMEDNetworkPolicy:
		// Vendor encodings differ; the VLAN ID sits in the two bytes after
		// the application type on the gear that matters here.
		if len(data) >= 3 {
			if vlan := binary.BigEndian.Uint16(data[1:3]); vlan != 0 {
				rec.VoiceVLAN = int(vlan)
			}
		}
	default:
		rec.UnknownTLVs = append(rec.UnknownTLVs, models.RawTLV{
			Type:  tlvOrgSpecific,
			Value: append([]byte(nil), value...),
		})
	}
}

// formatID renders a chassis or port identifier according to its subtype:
// MAC addresses as colon-separated hex, network addresses via the IANA
// family byte, anything else as a trimmed string with a hex fallback.
func formatID(subtype byte, id []byte, macSubtype, netSubtype byte) string {
	switch subtype {
	case macSubtype:
		if len(id) == 6 {
			return net.HardwareAddr(id).String()
		}
	case netSubtype:
		if addr := decodeNetworkAddress(id); addr != "" {
			return addr
		}
	}
	s := cleanString(id)
	if s == "" {
		return hex.EncodeToString(id)
	}
	return s
}

// decodeNetworkAddress decodes an IANA address-family-prefixed address
// (1 = IPv4, 2 = IPv6).
func decodeNetworkAddress(b []byte) string {
	if len(b) < 1 {
		return ""
	}
	switch b[0] {
	case 1:
		if len(b) >= 1+net.IPv4len {
			return net.IP(b[1 : 1+net.IPv4len]).String()
		}
	case 2:
		if len(b) >= 1+net.IPv6len {
			return net.IP(b[1 : 1+net.IPv6len]).String()
		}
	}
	return ""
}

// parseMgmtAddress decodes the Management Address TLV: a 1-byte address
// string length (covering the family byte), the IANA family, and the address
// bytes.
func parseMgmtAddress(b []byte) string {
	if len(b) < 2 {
		return ""
	}
	addrLen := int(b[0])
	if addrLen < 2 || len(b) < 1+addrLen {
		return ""
	}
	return decodeNetworkAddress(b[1 : 1+addrLen])
}

func capabilityFlags(mask uint16) []models.Capability {
	var caps []models.Capability
	if mask&capOther != 0 {
		caps = append(caps, models.CapOther)
	}
	if mask&capRepeater != 0 {
		caps = append(caps, models.CapRepeater)
	}
	if mask&capBridge != 0 {
		caps = append(caps, models.CapBridge)
	}
	if mask&capWLANAP != 0 {
		caps = append(caps, models.CapWLANAP)
	}
	if mask&capRouter != 0 {
		caps = append(caps, models.CapRouter)
	}
	if mask&capTelephone != 0 {
		caps = append(caps, models.CapPhone)
	}
	if mask&capDOCSIS != 0 {
		caps = append(caps, models.CapDOCSIS)
	}
	if mask&capStation != 0 {
		caps = append(caps, models.CapStation)
	}
	return caps
}

func cleanString(b []byte) string {
	return strings.TrimSpace(strings.Trim(string(b), "\x00"))
}
