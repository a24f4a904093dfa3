package nic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksVirtual(t *testing.T) {
	cases := []struct {
		name        string
		description string
		want        bool
	}{
		{"eth0", "Intel(R) Ethernet Connection I219-LM", false},
		{"enp3s0", "", false},
		{"vethb2c1d9", "", true},
		{"docker0", "", true},
		{"br-4f2a9c", "", true},
		{"eth1", "VMware Virtual Ethernet Adapter", true},
		{"Ethernet 2", "Hyper-V Virtual Switch Extension Adapter", true},
		{"lo", "Loopback interface", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, looksVirtual(tc.name, tc.description))
		})
	}
}

func TestParseSpeedMbps(t *testing.T) {
	assert.Equal(t, int64(1_000_000_000), parseSpeedMbps("1000\n"))
	assert.Equal(t, int64(100_000_000), parseSpeedMbps("100"))
	assert.Equal(t, int64(0), parseSpeedMbps("-1\n"), "downed links report -1 in sysfs")
	assert.Equal(t, int64(0), parseSpeedMbps("garbage"))
}

func TestSpeedDisplay(t *testing.T) {
	assert.Equal(t, "1G", Interface{SpeedBps: 1_000_000_000}.SpeedDisplay())
	assert.Equal(t, "100M", Interface{SpeedBps: 100_000_000}.SpeedDisplay())
	assert.Equal(t, "", Interface{}.SpeedDisplay())
}
