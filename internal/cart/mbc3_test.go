package cart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMBC3_RTC_LatchAndRead(t *testing.T) {
	// Save and mock time
	prevNow := nowUnix
	nowUnix = func() int64 { return 100 }
	defer func() { nowUnix = prevNow }()

	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000)

	// Enable RAM/RTC access, set RTC values and latch
	m.Write(0x0000, 0x0A) // RAM enable
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = 5, 6, 7, 0x101
	m.rtcHalt, m.rtcCarry = false, false
	m.Write(0x6000, 0x01) // latch (0->1)

	// Select RTC seconds
	m.Write(0x4000, 0x08)
	require.Equal(t, byte(5), m.Read(0xA000), "latched sec")

	// Change live sec; latched read should remain 5
	m.rtcSec = 30
	require.Equal(t, byte(5), m.Read(0xA000), "latched sec changed unexpectedly")

	// Read day low and day high/carry/halt
	m.Write(0x4000, 0x0B)
	require.Equal(t, byte(0x101&0xFF), m.Read(0xA000), "latched day low")

	m.Write(0x4000, 0x0C)
	got := m.Read(0xA000)
	require.NotZero(t, got&0x01, "latched day high bit not set")
	require.Zero(t, got&0x40, "halt bit set unexpectedly")
}

func TestMBC3_RTC_Advance_And_Persist(t *testing.T) {
	prevNow := nowUnix
	// Start at 100s
	nowVal := int64(100)
	nowUnix = func() int64 { return nowVal }
	defer func() { nowUnix = prevNow }()

	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000)
	// Choose sec=30 to avoid crossing minute on first 20s step
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = 30, 59, 23, 0x1FF
	m.rtcHalt, m.rtcCarry = false, false
	m.lastRTCWallSec = nowVal

	// Advance 20s -> sec:50, min stays 59
	nowVal = 120
	_ = m.Read(0x0000) // trigger update
	require.Equal(t, byte(50), m.rtcSec)
	require.Equal(t, byte(59), m.rtcMin)

	// Advance 60s -> min increments (59->0), hour/day rollover, carry set and day wraps to 0
	nowVal = 180
	_ = m.Read(0x0001)
	require.Equal(t, byte(50), m.rtcSec)
	require.Equal(t, byte(0), m.rtcMin)
	require.Equal(t, byte(0), m.rtcHour)
	require.Equal(t, uint16(0), m.rtcDay)
	require.True(t, m.rtcCarry)

	// Save and load into a new cart and verify RTC persisted
	data := m.SaveRAM()
	n := NewMBC3(rom, 0x2000)
	n.LoadRAM(data)
	require.Equal(t, m.rtcSec, n.rtcSec)
	require.Equal(t, m.rtcMin, n.rtcMin)
	require.Equal(t, m.rtcHour, n.rtcHour)
	require.Equal(t, m.rtcDay, n.rtcDay)
}
