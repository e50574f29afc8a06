package cart

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"time"
)

// MBC3 implements ROM/RAM banking plus the real-time clock register file
// (spec.md §4.7 "MBC3 RTC"). Banking behavior:
//   - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
//   - 2000-3FFF: ROM bank, 7 bits (0 maps to 1)
//   - 4000-5FFF: RAM bank 0-3, or RTC register select 0x08-0x0C
//   - 6000-7FFF: latch clock data on a 0x00->0x01 write
//   - A000-BFFF: external RAM, or the latched RTC register selected above
//
// ROM: bank 0 fixed at 0000-3FFF; switchable 4000-7FFF uses bank (1..127).

// nowUnix is the wall-clock source for the RTC; overridden in tests.
var nowUnix = func() int64 { return time.Now().Unix() }

type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	regSelect  byte // 0-3: RAM bank; 0x08-0x0C: RTC register

	lastLatchWrite byte

	rtcSec, rtcMin, rtcHour byte
	rtcDay                  uint16 // 9-bit day counter
	rtcHalt                 bool
	rtcCarry                bool
	lastRTCWallSec          int64

	latchSec, latchMin, latchHour byte
	latchDay                      uint16
	latchHalt, latchCarry         bool
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	m.lastRTCWallSec = nowUnix()
	return m
}

// tickRTC advances the live RTC registers by the wall-clock seconds elapsed
// since the last access, unless halted (spec.md §4.7 "RTC advance").
func (m *MBC3) tickRTC() {
	if m.rtcHalt {
		return
	}
	now := nowUnix()
	elapsed := now - m.lastRTCWallSec
	if elapsed <= 0 {
		return
	}
	total := int64(m.rtcHour)*3600 + int64(m.rtcMin)*60 + int64(m.rtcSec) + elapsed
	dayInc := total / 86400
	rem := total % 86400
	m.rtcHour = byte(rem / 3600)
	m.rtcMin = byte((rem % 3600) / 60)
	m.rtcSec = byte(rem % 60)
	newDay := int64(m.rtcDay) + dayInc
	if newDay > 511 {
		newDay %= 512
		m.rtcCarry = true
	}
	m.rtcDay = uint16(newDay)
	m.lastRTCWallSec = now
}

func (m *MBC3) Read(addr uint16) byte {
	m.tickRTC()
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		switch {
		case m.regSelect <= 0x03:
			if len(m.ram) == 0 {
				return 0xFF
			}
			off := int(m.regSelect)*0x2000 + int(addr-0xA000)
			if off >= 0 && off < len(m.ram) {
				return m.ram[off]
			}
			return 0xFF
		case m.regSelect == 0x08:
			return m.latchSec
		case m.regSelect == 0x09:
			return m.latchMin
		case m.regSelect == 0x0A:
			return m.latchHour
		case m.regSelect == 0x0B:
			return byte(m.latchDay & 0xFF)
		case m.regSelect == 0x0C:
			v := byte(m.latchDay>>8) & 0x01
			if m.latchHalt {
				v |= 1 << 6
			}
			if m.latchCarry {
				v |= 1 << 7
			}
			return v
		default:
			return 0xFF
		}
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	m.tickRTC()
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		if value <= 0x03 || (value >= 0x08 && value <= 0x0C) {
			m.regSelect = value
		}
	case addr < 0x8000:
		if m.lastLatchWrite == 0x00 && value == 0x01 {
			m.latchSec, m.latchMin, m.latchHour = m.rtcSec, m.rtcMin, m.rtcHour
			m.latchDay, m.latchHalt, m.latchCarry = m.rtcDay, m.rtcHalt, m.rtcCarry
		}
		m.lastLatchWrite = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		switch {
		case m.regSelect <= 0x03:
			if len(m.ram) == 0 {
				return
			}
			off := int(m.regSelect)*0x2000 + int(addr-0xA000)
			if off >= 0 && off < len(m.ram) {
				m.ram[off] = value
			}
		case m.regSelect == 0x08:
			m.rtcSec = value
		case m.regSelect == 0x09:
			m.rtcMin = value
		case m.regSelect == 0x0A:
			m.rtcHour = value
		case m.regSelect == 0x0B:
			m.rtcDay = (m.rtcDay & 0x100) | uint16(value)
		case m.regSelect == 0x0C:
			m.rtcDay = (m.rtcDay & 0xFF) | (uint16(value&0x01) << 8)
			m.rtcHalt = value&(1<<6) != 0
			if value&(1<<7) == 0 {
				m.rtcCarry = false
			}
		}
	}
}

// SaveRAM/LoadRAM persist external RAM and the RTC state together, the way
// real battery saves for RTC-equipped carts embed the clock (spec.md §4.7).
func (m *MBC3) SaveRAM() []byte {
	out := make([]byte, len(m.ram)+14)
	copy(out, m.ram)
	f := out[len(m.ram):]
	f[0], f[1], f[2] = m.rtcSec, m.rtcMin, m.rtcHour
	binary.BigEndian.PutUint16(f[3:5], m.rtcDay)
	var flags byte
	if m.rtcHalt {
		flags |= 1
	}
	if m.rtcCarry {
		flags |= 2
	}
	f[5] = flags
	binary.BigEndian.PutUint64(f[6:14], uint64(m.lastRTCWallSec))
	return out
}

func (m *MBC3) LoadRAM(data []byte) {
	if len(data) < 14 {
		return
	}
	ramLen := len(data) - 14
	if ramLen > 0 && ramLen == len(m.ram) {
		copy(m.ram, data[:ramLen])
	}
	f := data[ramLen:]
	m.rtcSec, m.rtcMin, m.rtcHour = f[0], f[1], f[2]
	m.rtcDay = binary.BigEndian.Uint16(f[3:5])
	m.rtcHalt = f[5]&1 != 0
	m.rtcCarry = f[5]&2 != 0
	m.lastRTCWallSec = int64(binary.BigEndian.Uint64(f[6:14]))
}

type mbc3State struct {
	RAM                     []byte
	RamEnabled              bool
	RomBank, RegSelect      byte
	LastLatchWrite          byte
	RTCSec, RTCMin, RTCHour byte
	RTCDay                  uint16
	RTCHalt, RTCCarry       bool
	LastRTCWallSec          int64
	LatchSec, LatchMin, LatchHour byte
	LatchDay                      uint16
	LatchHalt, LatchCarry         bool
}

func (m *MBC3) SaveState() []byte {
	var buf bytes.Buffer
	s := mbc3State{
		RAM: m.ram, RamEnabled: m.ramEnabled, RomBank: m.romBank, RegSelect: m.regSelect,
		LastLatchWrite: m.lastLatchWrite,
		RTCSec:         m.rtcSec, RTCMin: m.rtcMin, RTCHour: m.rtcHour, RTCDay: m.rtcDay,
		RTCHalt: m.rtcHalt, RTCCarry: m.rtcCarry, LastRTCWallSec: m.lastRTCWallSec,
		LatchSec: m.latchSec, LatchMin: m.latchMin, LatchHour: m.latchHour, LatchDay: m.latchDay,
		LatchHalt: m.latchHalt, LatchCarry: m.latchCarry,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.RAM) > 0 {
		copy(m.ram, s.RAM)
	}
	m.ramEnabled, m.romBank, m.regSelect = s.RamEnabled, s.RomBank, s.RegSelect
	m.lastLatchWrite = s.LastLatchWrite
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = s.RTCSec, s.RTCMin, s.RTCHour, s.RTCDay
	m.rtcHalt, m.rtcCarry, m.lastRTCWallSec = s.RTCHalt, s.RTCCarry, s.LastRTCWallSec
	m.latchSec, m.latchMin, m.latchHour, m.latchDay = s.LatchSec, s.LatchMin, s.LatchHour, s.LatchDay
	m.latchHalt, m.latchCarry = s.LatchHalt, s.LatchCarry
}
