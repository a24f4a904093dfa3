package capture

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neighwatch/internal/models"
)

var srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

// ethernetII builds dst/src/type frames (LLDP style).
func ethernetII(dst net.HardwareAddr, etherType uint16, payload []byte) []byte {
	frame := append(append([]byte(nil), dst...), srcMAC...)
	frame = binary.BigEndian.AppendUint16(frame, etherType)
	return append(frame, payload...)
}

// ethernet802dot3 builds dst/src/length frames (CDP style).
func ethernet802dot3(dst net.HardwareAddr, payload []byte) []byte {
	frame := append(append([]byte(nil), dst...), srcMAC...)
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(payload)))
	return append(frame, payload...)
}

func cdpFrame(t *testing.T, tlvs []byte) []byte {
	t.Helper()
	pdu := []byte{0xaa, 0xaa, 0x03, 0x00, 0x00, 0x0c, 0x20, 0x00} // LLC/SNAP
	pdu = append(pdu, 2, 180, 0, 0)                               // version, TTL, checksum (unverified)
	pdu = append(pdu, tlvs...)
	return ethernet802dot3(cdpMulticast, pdu)
}

func cdpTLV(typ uint16, value []byte) []byte {
	buf := make([]byte, 4+len(value))
	binary.BigEndian.PutUint16(buf[0:2], typ)
	binary.BigEndian.PutUint16(buf[2:4], uint16(4+len(value)))
	copy(buf[4:], value)
	return buf
}

func lldpFrame(tlvs []byte) []byte {
	return ethernetII(lldpMulticasts[0], 0x88cc, append(tlvs, 0x00, 0x00))
}

func lldpTLV(typ uint16, value []byte) []byte {
	buf := make([]byte, 2+len(value))
	binary.BigEndian.PutUint16(buf[0:2], typ<<9|uint16(len(value)))
	copy(buf[2:], value)
	return buf
}

func packetOf(frame []byte) gopacket.Packet {
	return gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		dst       net.HardwareAddr
		etherType layers.EthernetType
		want      Class
	}{
		{"cdp multicast", cdpMulticast, layers.EthernetTypeLLC, ClassCDP},
		{"lldp ethertype", net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, lldpEtherType, ClassLLDP},
		{"lldp nearest bridge", lldpMulticasts[0], layers.EthernetTypeLLC, ClassLLDP},
		{"lldp nearest customer bridge", lldpMulticasts[2], layers.EthernetTypeLLC, ClassLLDP},
		{"plain unicast ipv4", srcMAC, layers.EthernetTypeIPv4, ClassUnrecognized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.dst, tc.etherType))
		})
	}
}

func TestProcessCDPFrame(t *testing.T) {
	tlvs := append(cdpTLV(0x0001, []byte("SW1")), cdpTLV(0x0003, []byte("Gi1/0/1"))...)
	tlvs = append(tlvs, cdpTLV(0x000a, []byte{0x00, 0x0a})...)

	sess := NewSession("eth0", DefaultConfig(), zap.NewNop())
	ts := time.Now()
	rec := sess.process(packetOf(cdpFrame(t, tlvs)), ts)

	require.NotNil(t, rec)
	assert.Equal(t, models.ProtocolCDP, rec.Protocol)
	assert.Equal(t, "SW1", rec.DeviceID)
	assert.Equal(t, "Gi1/0/1", rec.PortID)
	assert.Equal(t, 10, rec.NativeVLAN)
	assert.Equal(t, "eth0", rec.Interface)
	assert.Equal(t, srcMAC.String(), rec.SourceMAC)
	assert.Equal(t, ts, rec.LastSeen)

	stats := sess.Stats()
	assert.Equal(t, uint64(1), stats.Frames)
	assert.Equal(t, uint64(1), stats.Decoded)
}

func TestProcessLLDPFrame(t *testing.T) {
	tlvs := lldpTLV(1, append([]byte{4}, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff))
	tlvs = append(tlvs, lldpTLV(2, append([]byte{5}, "1/1"...))...)
	tlvs = append(tlvs, lldpTLV(3, []byte{0x00, 0x78})...) // TTL 120

	sess := NewSession("eth0", DefaultConfig(), zap.NewNop())
	rec := sess.process(packetOf(lldpFrame(tlvs)), time.Now())

	require.NotNil(t, rec)
	assert.Equal(t, models.ProtocolLLDP, rec.Protocol)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", rec.DeviceID)
	assert.Equal(t, "1/1", rec.PortID)
	assert.Equal(t, 120*time.Second, rec.HoldTime)
}

func TestProcessMalformedFrameCountsAndDrops(t *testing.T) {
	// CDP destination but garbage payload: no LLC/SNAP, no plausible header.
	frame := ethernet802dot3(cdpMulticast, []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x00, 0x00, 0x00})

	sess := NewSession("eth0", DefaultConfig(), zap.NewNop())
	rec := sess.process(packetOf(frame), time.Now())

	assert.Nil(t, rec)
	assert.Equal(t, uint64(1), sess.Stats().Malformed)
}

func TestProcessUnrecognizedFrameSilentlyIgnored(t *testing.T) {
	frame := ethernetII(net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, 0x0800, make([]byte, 20))

	sess := NewSession("eth0", DefaultConfig(), zap.NewNop())
	rec := sess.process(packetOf(frame), time.Now())

	assert.Nil(t, rec)
	stats := sess.Stats()
	assert.Equal(t, uint64(1), stats.Ignored)
	assert.Equal(t, uint64(0), stats.Malformed)
}

func TestStopOnIdleSessionIsSafe(t *testing.T) {
	sess := NewSession("eth0", DefaultConfig(), zap.NewNop())
	assert.Equal(t, StateIdle, sess.State())
	sess.Stop()
	sess.Stop()
	assert.Equal(t, StateIdle, sess.State())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, int32(1600), cfg.SnapLen)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
}
