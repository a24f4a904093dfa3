// Package cdp decodes Cisco Discovery Protocol payloads into neighbor
// records.
//
// CDP runs over 802.3 with an LLC/SNAP shim (OUI 0x00000c, protocol ID
// 0x2000) followed by a fixed header (version, TTL, checksum) and a TLV list
// with 2-byte type and 2-byte length fields, the length covering the 4-byte
// TLV header itself.
package cdp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"neighwatch/internal/models"
	"neighwatch/internal/tlv"
)

// CDP TLV type codes.
const (
	tlvDeviceID     uint16 = 0x0001
	tlvAddress      uint16 = 0x0002
	tlvPortID       uint16 = 0x0003
	tlvCapabilities uint16 = 0x0004
	tlvVersion      uint16 = 0x0005
	tlvPlatform     uint16 = 0x0006
	tlvVTPDomain    uint16 = 0x0009
	tlvNativeVLAN   uint16 = 0x000a
	tlvDuplex       uint16 = 0x000b
	tlvVoiceVLAN    uint16 = 0x000e // appliance VLAN-ID
	tlvMgmtAddress  uint16 = 0x0016
)

// Capability bitmask values.
const (
	capRouter       uint32 = 0x01
	capTransBridge  uint32 = 0x02
	capSourceBridge uint32 = 0x04
	capSwitch       uint32 = 0x08
	capHost         uint32 = 0x10
	capIGMP         uint32 = 0x20
	capRepeater     uint32 = 0x40
	capPhone        uint32 = 0x80
)

var (
	// ErrNotCDP reports a payload without the LLC/SNAP signature or a
	// plausible CDP header.
	ErrNotCDP = errors.New("cdp: payload does not carry a CDP PDU")

	// ErrNoDeviceID reports an otherwise decodable advertisement missing the
	// Device-ID TLV. Such a record cannot be keyed and is discarded.
	ErrNoDeviceID = errors.New("cdp: advertisement carries no device ID")
)

// llcSNAP is the 8-byte LLC/SNAP shim that precedes the CDP header in an
// 802.3 frame payload.
var llcSNAP = []byte{0xaa, 0xaa, 0x03, 0x00, 0x00, 0x0c, 0x20, 0x00}

// Parser decodes CDP payloads. The zero value is usable; a logger enables
// best-effort diagnostics such as checksum mismatches.
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

// Parse decodes the 802.3 payload of a CDP frame into a neighbor record.
// Unknown TLV types are preserved opaquely and are never an error; a record
// without a Device-ID is rejected with ErrNoDeviceID.
func (p *Parser) Parse(payload []byte, iface string) (*models.NeighborRecord, error) {
	pdu, err := stripSNAP(payload)
	if err != nil {
		return nil, err
	}

	// Fixed header: version (1), TTL (1), checksum (2).
	version := pdu[0]
	holdTime := time.Duration(pdu[1]) * time.Second
	if version != 1 && version != 2 {
		return nil, fmt.Errorf("%w: version %d", ErrNotCDP, version)
	}
	if sum := checksum(pdu); sum != 0 {
		// Intermediate switches occasionally forward frames with stale
		// checksums; log and keep decoding.
		p.log.Debug("cdp checksum mismatch", zap.String("interface", iface), zap.Uint16("residual", sum))
	}

	rec := &models.NeighborRecord{
		Protocol:  models.ProtocolCDP,
		Interface: iface,
		HoldTime:  holdTime,
	}

	r := tlv.NewCDPReader(pdu[4:])
	for r.Next() {
		f := r.TLV()
		switch f.Type {
		case tlvDeviceID:
			rec.DeviceID = cleanString(f.Value)
		case tlvAddress, tlvMgmtAddress:
			for _, addr := range parseAddresses(f.Value) {
				rec.AddIP(addr)
			}
		case tlvPortID:
			rec.PortID = cleanString(f.Value)
		case tlvCapabilities:
			if len(f.Value) >= 4 {
				rec.Capabilities = capabilityFlags(binary.BigEndian.Uint32(f.Value[:4]))
			}
		case tlvVersion:
			rec.SoftwareVersion = cleanString(f.Value)
		case tlvPlatform:
			rec.Platform = cleanString(f.Value)
		case tlvVTPDomain:
			rec.VTPDomain = cleanString(f.Value)
		case tlvNativeVLAN:
			if len(f.Value) >= 2 {
				rec.NativeVLAN = int(binary.BigEndian.Uint16(f.Value[:2]))
			}
		case tlvDuplex:
			if len(f.Value) >= 1 {
				if f.Value[0] == 0 {
					rec.Duplex = models.DuplexHalf
				} else {
					rec.Duplex = models.DuplexFull
				}
			}
		case tlvVoiceVLAN:
			// One-byte appliance ID followed by the VLAN; some stacks omit
			// the leading byte.
			if len(f.Value) >= 3 {
				rec.VoiceVLAN = int(binary.BigEndian.Uint16(f.Value[1:3]))
			} else if len(f.Value) == 2 {
				rec.VoiceVLAN = int(binary.BigEndian.Uint16(f.Value[:2]))
			}
		default:
			rec.UnknownTLVs = append(rec.UnknownTLVs, models.RawTLV{
				Type:  f.Type,
				Value: append([]byte(nil), f.Value...),
			})
		}
	}
	if err := r.Err(); err != nil {
		// A malformed tail drops the remaining TLVs, not the record.
		p.log.Debug("cdp tlv list ends malformed", zap.String("interface", iface), zap.Error(err))
	}

	if rec.DeviceID == "" {
		return nil, ErrNoDeviceID
	}
	return rec, nil
}

// stripSNAP returns the CDP PDU within an 802.3 payload, accepting either the
// canonical LLC/SNAP shim or a payload that already starts at the CDP header.
func stripSNAP(payload []byte) ([]byte, error) {
	if len(payload) >= len(llcSNAP)+4 && bytes.HasPrefix(payload, llcSNAP) {
		return payload[len(llcSNAP):], nil
	}
	if len(payload) >= 4 && (payload[0] == 1 || payload[0] == 2) {
		return payload, nil
	}
	return nil, ErrNotCDP
}

// checksum computes the ones'-complement sum over the PDU. A PDU carrying a
// correct checksum sums to zero.
func checksum(b []byte) uint16 {
	var sum uint32
	for len(b) > 1 {
		sum += uint32(binary.BigEndian.Uint16(b[:2]))
		b = b[2:]
	}
	if len(b) == 1 {
		sum += uint32(b[0]) << 8
	}
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return ^uint16(sum)
}

// parseAddresses walks the nested structure of the Address TLV: a 4-byte
// entry count, then per entry a protocol type, protocol length, the protocol
// bytes, a 2-byte address length, and the address itself.
func parseAddresses(b []byte) []string {
	if len(b) < 4 {
		return nil
	}
	count := binary.BigEndian.Uint32(b[:4])
	off := 4
	var addrs []string
	for i := uint32(0); i < count; i++ {
		if off+2 > len(b) {
			break
		}
		protoLen := int(b[off+1])
		off += 2 + protoLen
		if off+2 > len(b) {
			break
		}
		addrLen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if off+addrLen > len(b) {
			break
		}
		switch addrLen {
		case net.IPv4len, net.IPv6len:
			addrs = append(addrs, net.IP(b[off:off+addrLen]).String())
		}
		off += addrLen
	}
	return addrs
}

func capabilityFlags(mask uint32) []models.Capability {
	var caps []models.Capability
	if mask&capRouter != 0 {
		caps = append(caps, models.CapRouter)
	}
	if mask&(capTransBridge|capSourceBridge) != 0 {
		caps = append(caps, models.CapBridge)
	}
	if mask&capSwitch != 0 {
		caps = append(caps, models.CapSwitch)
	}
	if mask&capHost != 0 {
		caps = append(caps, models.CapHost)
	}
	if mask&capIGMP != 0 {
		caps = append(caps, models.CapIGMP)
	}
	if mask&capRepeater != 0 {
		caps = append(caps, models.CapRepeater)
	}
	if mask&capPhone != 0 {
		caps = append(caps, models.CapPhone)
	}
	return caps
}

func cleanString(b []byte) string {
	return strings.TrimSpace(strings.Trim(string(b), "\x00"))
}
