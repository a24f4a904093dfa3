package lldp

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neighwatch/internal/models"
)

type pduBuilder struct {
	buf []byte
}

func (b *pduBuilder) add(typ uint16, value []byte) *pduBuilder {
	hdr := make([]byte, 2)
	binary.BigEndian.PutUint16(hdr, typ<<9|uint16(len(value)))
	b.buf = append(b.buf, hdr...)
	b.buf = append(b.buf, value...)
	return b
}

func (b *pduBuilder) chassisMAC(mac []byte) *pduBuilder {
	return b.add(tlvChassisID, append([]byte{subtypeMACAddress}, mac...))
}

func (b *pduBuilder) portName(name string) *pduBuilder {
	return b.add(tlvPortID, append([]byte{5}, name...)) // interface-name subtype
}

func (b *pduBuilder) ttl(seconds uint16) *pduBuilder {
	v := make([]byte, 2)
	binary.BigEndian.PutUint16(v, seconds)
	return b.add(tlvTTL, v)
}

func (b *pduBuilder) end() []byte {
	return append(b.buf, 0x00, 0x00)
}

var testMAC = []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}

func TestParseTypicalAdvertisement(t *testing.T) {
	caps := make([]byte, 4)
	binary.BigEndian.PutUint16(caps[0:2], capBridge|capRouter|capWLANAP)
	binary.BigEndian.PutUint16(caps[2:4], capBridge|capRouter)

	mgmt := append([]byte{5, 1}, 10, 0, 0, 1) // len 5, IPv4, 10.0.0.1

	pdu := new(pduBuilder).
		chassisMAC(testMAC).
		portName("1/1").
		ttl(120).
		add(tlvSystemName, []byte("core-sw")).
		add(tlvSystemDesc, []byte("Arista EOS 4.30")).
		add(tlvCapabilities, caps).
		add(tlvMgmtAddress, mgmt).
		end()

	rec, err := NewParser(zap.NewNop()).Parse(pdu, "eth0")
	require.NoError(t, err)

	assert.Equal(t, models.ProtocolLLDP, rec.Protocol)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", rec.DeviceID)
	assert.Equal(t, "1/1", rec.PortID)
	assert.Equal(t, 120*time.Second, rec.HoldTime, "advertised TTL must override the default window")
	assert.Equal(t, "core-sw", rec.Platform)
	assert.Equal(t, "Arista EOS 4.30", rec.SystemDescription)
	assert.Equal(t, []string{"10.0.0.1"}, rec.IPAddresses)
	assert.False(t, rec.Withdrawn)

	// Enabled set wins over the supported set.
	assert.ElementsMatch(t, []models.Capability{models.CapBridge, models.CapRouter}, rec.Capabilities)
}

func TestParseReorderedTLVs(t *testing.T) {
	// Vendors that emit system name before the mandatory three still decode.
	pdu := new(pduBuilder).
		add(tlvSystemName, []byte("odd-vendor")).
		ttl(60).
		portName("ge-0/0/0").
		chassisMAC(testMAC).
		end()

	rec, err := NewParser(nil).Parse(pdu, "eth0")
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", rec.DeviceID)
	assert.Equal(t, "ge-0/0/0", rec.PortID)
}

func TestZeroTTLMarksWithdrawal(t *testing.T) {
	pdu := new(pduBuilder).chassisMAC(testMAC).portName("1/1").ttl(0).end()

	rec, err := NewParser(nil).Parse(pdu, "eth0")
	require.NoError(t, err)
	assert.True(t, rec.Withdrawn)
}

func TestChassisIDSubtypes(t *testing.T) {
	t.Run("network address", func(t *testing.T) {
		id := append([]byte{subtypeNetworkAddress, 1}, 192, 0, 2, 1)
		pdu := new(pduBuilder).add(tlvChassisID, id).ttl(120).end()
		rec, err := NewParser(nil).Parse(pdu, "eth0")
		require.NoError(t, err)
		assert.Equal(t, "192.0.2.1", rec.DeviceID)
	})

	t.Run("string", func(t *testing.T) {
		pdu := new(pduBuilder).add(tlvChassisID, append([]byte{7}, "chassis-7"...)).ttl(120).end()
		rec, err := NewParser(nil).Parse(pdu, "eth0")
		require.NoError(t, err)
		assert.Equal(t, "chassis-7", rec.DeviceID)
	})
}

func TestOrgSpecificVLANs(t *testing.T) {
	pvid := []byte{0x00, 0x80, 0xc2, subtype8021PortVLANID, 0x00, 0x0a}
	vlanName := append([]byte{0x00, 0x80, 0xc2, subtype8021VLANName, 0x00, 0x0a, 5}, "users"...)
	voice := []byte{0x00, 0x12, 0xbb, subtypeMEDNetworkPolicy, 0x02, 0x00, 0xc8}

	pdu := new(pduBuilder).
		chassisMAC(testMAC).
		ttl(120).
		add(tlvOrgSpecific, pvid).
		add(tlvOrgSpecific, vlanName).
		add(tlvOrgSpecific, voice).
		end()

	rec, err := NewParser(nil).Parse(pdu, "eth0")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.NativeVLAN)
	assert.Equal(t, "users", rec.VLANName)
	assert.Equal(t, 200, rec.VoiceVLAN)
}

func TestUnknownOrgTLVKeptOpaque(t *testing.T) {
	unknown := []byte{0x00, 0x12, 0x0f, 1, 0xff} // IEEE 802.3 MAC/PHY
	pdu := new(pduBuilder).chassisMAC(testMAC).ttl(120).add(tlvOrgSpecific, unknown).end()

	rec, err := NewParser(nil).Parse(pdu, "eth0")
	require.NoError(t, err)
	require.Len(t, rec.UnknownTLVs, 1)
	assert.Equal(t, uint16(tlvOrgSpecific), rec.UnknownTLVs[0].Type)
	assert.Equal(t, unknown, rec.UnknownTLVs[0].Value)
}

func TestMissingChassisIDDiscardsRecord(t *testing.T) {
	pdu := new(pduBuilder).portName("1/1").ttl(120).end()
	_, err := NewParser(nil).Parse(pdu, "eth0")
	assert.ErrorIs(t, err, ErrNoChassisID)
}

func TestBytesAfterEndSentinelIgnored(t *testing.T) {
	pdu := new(pduBuilder).chassisMAC(testMAC).ttl(120).end()
	pdu = append(pdu, 0xde, 0xad) // trailing garbage past the sentinel

	rec, err := NewParser(nil).Parse(pdu, "eth0")
	require.NoError(t, err)
	assert.Empty(t, rec.UnknownTLVs)
}
