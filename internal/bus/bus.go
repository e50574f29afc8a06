// Package bus wires the CPU-visible address space to the cartridge, WRAM,
// HRAM, PPU, timer, interrupt controller, joypad, and APU, and drives OAM
// DMA (spec.md §4.2).
package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/apu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/timer"
)

// Bus implements cpu.Bus and owns every component reachable from the CPU's
// address space.
type Bus struct {
	cart cart.Cartridge

	wram [0x2000]byte // 0xC000–0xDFFF, echoed at 0xE000–0xFDFF
	hram [0x7F]byte   // 0xFF80–0xFFFE

	ppu   *ppu.PPU
	apu   *apu.APU
	timer *timer.Timer
	joyp  *joypad.Joypad
	irq   *interrupt.Controller

	sb byte // FF01 serial data
	sc byte // FF02 serial control
	sw io.Writer

	dma       byte
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int

	bootROM     []byte
	bootEnabled bool

	joypadPressed byte
}

// New constructs a Bus with a ROM-only cartridge for convenience.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom))
}

// NewWithCartridge wires a provided cartridge implementation plus the full
// component set (PPU, APU, timer, joypad, interrupt controller).
func NewWithCartridge(c cart.Cartridge) *Bus {
	irq := interrupt.New()
	b := &Bus{
		cart: c,
		irq:  irq,
		apu:  apu.New(48000),
	}
	b.ppu = ppu.New(func(bit int) { irq.Request(bit) })
	b.timer = timer.New()
	b.timer.IRQRequest = func() { irq.Request(interrupt.Timer) }
	b.joyp = joypad.New()
	b.joyp.IRQRequest = func() { irq.Request(interrupt.Joypad) }
	return b
}

// PPU/APU/Timer/Joypad/Interrupt expose the owned components for the
// top-level scheduler (internal/emu) and host shell.
func (b *Bus) PPU() *ppu.PPU                        { return b.ppu }
func (b *Bus) APU() *apu.APU                        { return b.apu }
func (b *Bus) Timer() *timer.Timer                  { return b.timer }
func (b *Bus) Joypad() *joypad.Joypad                { return b.joyp }
func (b *Bus) Interrupts() *interrupt.Controller     { return b.irq }
func (b *Bus) Cart() cart.Cartridge                  { return b.cart }

// SetWakeFromStop wires the CPU's STOP-wake hook into the joypad, completing
// the joypad->CPU wake path (spec.md §4.3 "Wake").
func (b *Bus) SetWakeFromStop(fn func()) { b.joyp.WakeFromStop = fn }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[addr-0x2000-0xC000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFF00:
		return b.joyp.Read()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF04:
		return b.timer.ReadDIV()
	case addr == 0xFF05:
		return b.timer.ReadTIMA()
	case addr == 0xFF06:
		return b.timer.ReadTMA()
	case addr == 0xFF07:
		return b.timer.ReadTAC()
	case addr == 0xFF0F:
		return b.irq.ReadIF()
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.apu.CPURead(addr)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	case addr == 0xFF50:
		return 0xFF
	case addr == 0xFFFF:
		return b.irq.ReadIE()
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
	case addr >= 0xE000 && addr <= 0xFDFF:
		b.wram[addr-0x2000-0xC000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return
		}
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFF00:
		b.joyp.Write(value)
	case addr == 0xFF01:
		b.sb = value
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.irq.Request(interrupt.Serial)
			b.sc &^= 0x80
		}
	case addr == 0xFF04:
		b.timer.WriteDIV()
	case addr == 0xFF05:
		b.timer.WriteTIMA(value)
	case addr == 0xFF06:
		b.timer.WriteTMA(value)
	case addr == 0xFF07:
		b.timer.WriteTAC(value)
	case addr == 0xFF0F:
		b.irq.WriteIF(value)
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.apu.CPUWrite(addr, value)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
	case addr == 0xFF46:
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
	case addr == 0xFFFF:
		b.irq.WriteIE(value)
	}
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM to be mapped at 0x0000-0x00FF until
// disabled via a 0xFF50 write.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// SetJoypadState sets which buttons are currently pressed this frame,
// diffing against the previous state to raise edge-triggered interrupts.
func (b *Bus) SetJoypadState(mask byte) {
	prev := b.joypadPressed
	b.joypadPressed = mask
	down := mask &^ prev
	up := prev &^ mask
	if down != 0 {
		b.joyp.KeyDown(down)
	}
	if up != 0 {
		b.joyp.KeyUp(up)
	}
}

// Joypad button bitmasks for SetJoypadState, matching joypad.Right.. etc.
const (
	JoypRight     = joypad.Right
	JoypLeft      = joypad.Left
	JoypUp        = joypad.Up
	JoypDown      = joypad.Down
	JoypA         = joypad.A
	JoypB         = joypad.B
	JoypSelectBtn = joypad.Select
	JoypStart     = joypad.Start
)

// Tick advances one master clock cycle: timer, PPU, APU, and OAM DMA all
// observe the same cycle the CPU just spent (spec.md §4.9 "Per-cycle tick
// order").
func (b *Bus) Tick() {
	b.timer.Tick()
	b.ppu.Tick(1)
	b.apu.Tick(1)

	if b.dmaActive {
		if b.dmaIndex < 0xA0 {
			v := b.Read(b.dmaSrc + uint16(b.dmaIndex))
			b.ppu.CPUWrite(0xFE00+uint16(b.dmaIndex), v)
			b.dmaIndex++
		}
		if b.dmaIndex >= 0xA0 {
			b.dmaActive = false
		}
	}
}

// --- Save/Load state ---

type busState struct {
	WRAM          [0x2000]byte
	HRAM          [0x7F]byte
	SB, SC        byte
	DMA           byte
	DMAActive     bool
	DMASrc        uint16
	DMAIdx        int
	BootEn        bool
	JoypadPressed byte
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, HRAM: b.hram,
		SB: b.sb, SC: b.sc,
		DMA: b.dma, DMAActive: b.dmaActive, DMASrc: b.dmaSrc, DMAIdx: b.dmaIndex,
		BootEn: b.bootEnabled, JoypadPressed: b.joypadPressed,
	}
	_ = enc.Encode(s)
	_ = enc.Encode(b.ppu.SaveState())
	_ = enc.Encode(b.apu.SaveState())
	_ = enc.Encode(b.timer.Snapshot())
	_ = enc.Encode(b.irq.Snapshot())
	if sv, ok := b.cart.(interface{ SaveState() []byte }); ok {
		_ = enc.Encode(sv.SaveState())
	} else {
		_ = enc.Encode([]byte(nil))
	}
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram, b.hram = s.WRAM, s.HRAM
	b.sb, b.sc = s.SB, s.SC
	b.dma, b.dmaActive, b.dmaSrc, b.dmaIndex = s.DMA, s.DMAActive, s.DMASrc, s.DMAIdx
	b.bootEnabled = s.BootEn
	b.joypadPressed = s.JoypadPressed

	var ps []byte
	if dec.Decode(&ps) == nil {
		b.ppu.LoadState(ps)
	}
	var as []byte
	if dec.Decode(&as) == nil {
		b.apu.LoadState(as)
	}
	var ts timer.Snapshot
	if dec.Decode(&ts) == nil {
		b.timer.Restore(ts)
	}
	var is interrupt.Snapshot
	if dec.Decode(&is) == nil {
		b.irq.Restore(is)
	}
	var cs []byte
	if dec.Decode(&cs) == nil {
		if lv, ok := b.cart.(interface{ LoadState([]byte) }); ok {
			lv.LoadState(cs)
		}
	}
}
