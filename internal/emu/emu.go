// Package emu wires the CPU, Bus, and cartridge into the top-level
// per-cycle scheduler a host shell drives one frame at a time (spec.md
// §4.9 "Machine").
package emu

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emuerr"
)

// cyclesPerFrame is 154 scanlines * 456 dots, the DMG's fixed frame length.
const cyclesPerFrame = 154 * 456

// Buttons is the host-facing joypad state for one input sample.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// Machine owns the CPU, Bus, and cartridge for a single running game, and
// drives one master-clock cycle of the CPU and every peripheral at a time.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	cartridge cart.Cartridge
	header    *cart.Header
	bootROM   []byte
	romPath   string

	blankFB []byte

	paletteID int
}

func New(cfg Config) *Machine {
	return &Machine{cfg: cfg, blankFB: make([]byte, 160*144*4)}
}

// LoadCartridge builds a cartridge from rom and resets the machine to run
// it, optionally through the supplied boot ROM image. ROM loading is the
// only operation that can fail (spec.md §7); once loaded, Tick never
// reports an error.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	if len(rom) < 0x8000 {
		return fmt.Errorf("%w: rom too small (%d bytes)", emuerr.ErrBadRom, len(rom))
	}
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return err
	}
	if h.IsCGBOnly() {
		return fmt.Errorf("%w: cartridge requires CGB hardware", emuerr.ErrBadRom)
	}
	switch h.CartType {
	case 0x00, 0x01, 0x02, 0x03, 0x0F, 0x10, 0x11, 0x12, 0x13, 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
	default:
		return fmt.Errorf("%w: unsupported cartridge type 0x%02X", emuerr.ErrBadRom, h.CartType)
	}
	if h.ROMBanks == 0 {
		return fmt.Errorf("%w: unsupported ROM size code 0x%02X", emuerr.ErrBadRom, h.ROMSizeCode)
	}
	if h.RAMSizeCode != 0 && h.RAMSizeBytes == 0 {
		return fmt.Errorf("%w: unsupported RAM size code 0x%02X", emuerr.ErrBadRom, h.RAMSizeCode)
	}
	m.cartridge = cart.NewCartridge(rom)
	m.header = h
	if id, ok := autoCompatPaletteFromHeader(h); ok {
		m.paletteID = id
	}
	if boot != nil {
		m.bootROM = boot
	}
	m.resetMachine(m.bootROM)
	return nil
}

// LoadROMFromFile reads path from disk and loads it as the current
// cartridge, preserving any previously configured boot ROM.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data, m.bootROM); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// SetBootROM stages a boot ROM image for the next reset, and maps it
// immediately if a cartridge is already loaded.
func (m *Machine) SetBootROM(data []byte) {
	m.bootROM = data
	if m.bus != nil {
		m.bus.SetBootROM(data)
	}
}

// resetMachine rebuilds the Bus and CPU around the current cartridge, the
// way a physical power cycle would, optionally executing bootROM from 0x0000.
func (m *Machine) resetMachine(bootROM []byte) {
	if m.cartridge == nil {
		return
	}
	m.bus = bus.NewWithCartridge(m.cartridge)
	m.cpu = cpu.New(m.bus, m.bus.Interrupts())
	m.bus.SetWakeFromStop(m.cpu.WakeFromStop)
	m.bus.PPU().SetShades(dmgPalettes[m.paletteID%len(dmgPalettes)])

	if len(bootROM) >= 0x100 {
		m.bus.SetBootROM(bootROM)
		m.cpu.PC = 0x0000
		m.cpu.SP = 0xFFFE
	} else {
		m.cpu.Reset()
	}
	if m.cfg.Trace {
		m.cpu.Trace = func(pc uint16, op byte) {
			log.Printf("PC=%04X OP=%02X", pc, op)
		}
	}
}

// ResetPostBoot power-cycles the machine straight to the documented DMG
// post-boot register state, skipping the boot ROM.
func (m *Machine) ResetPostBoot() { m.resetMachine(nil) }

// ResetWithBoot power-cycles the machine through the staged boot ROM, if any.
func (m *Machine) ResetWithBoot() { m.resetMachine(m.bootROM) }

// ResetCGBPostBoot exists for host-shell compatibility; this machine only
// emulates the DMG (spec.md Non-goals), so it is equivalent to ResetPostBoot.
func (m *Machine) ResetCGBPostBoot(bool) { m.ResetPostBoot() }

// SetSerialWriter routes bytes written to the serial port (0xFF01/0xFF02) to w.
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// StepFrame advances emulation by exactly one frame's worth of master
// cycles and leaves a freshly composited image in Framebuffer().
func (m *Machine) StepFrame() {
	m.stepCycles(cyclesPerFrame)
}

// StepFrameNoRender advances one frame without a host needing the result;
// the scanline renderer always runs inline with PPU ticking, so this costs
// the same as StepFrame but documents headless callers' intent.
func (m *Machine) StepFrameNoRender() {
	m.stepCycles(cyclesPerFrame)
}

func (m *Machine) stepCycles(n int) {
	if m.bus == nil || m.cpu == nil {
		return
	}
	for i := 0; i < n; i++ {
		m.cpu.Tick()
		m.bus.Tick()
	}
}

// Framebuffer returns the most recently composited RGBA8888 160x144 image.
func (m *Machine) Framebuffer() []byte {
	if m.bus == nil {
		return m.blankFB
	}
	return m.bus.PPU().Framebuffer()
}

// SetButtons samples the host's current joypad state for the next ticks.
func (m *Machine) SetButtons(b Buttons) {
	if m.bus == nil {
		return
	}
	m.bus.SetJoypadState(b.mask())
}

// SetUseFetcherBG is kept for host-shell compatibility; the background
// renderer is always the tile-fetcher scanline path (spec.md §4.6), so this
// only records the preference for display purposes.
func (m *Machine) SetUseFetcherBG(v bool) { m.cfg.UseFetcherBG = v }

// ROMPath/ROMTitle expose the currently loaded cartridge's identity.
func (m *Machine) ROMPath() string { return m.romPath }
func (m *Machine) ROMTitle() string {
	if m.header == nil {
		return ""
	}
	return m.header.Title
}

// LoadBattery restores external RAM (and, for MBC3, the RTC) from a .sav
// blob onto the current cartridge.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.cartridge.(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns the current cartridge's external RAM (and RTC state,
// for MBC3) for persistence to a .sav file.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.cartridge.(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// machineState bundles the CPU snapshot with the bus's own gob blob so a
// save state captures every component in one file.
type machineState struct {
	CPU cpu.Snapshot
	Bus []byte
}

// SaveStateToFile/LoadStateFromFile persist/restore the full machine state
// (CPU, Bus, PPU, APU, timer, joypad, interrupt controller, cartridge).
func (m *Machine) SaveStateToFile(path string) error {
	if m.bus == nil || m.cpu == nil {
		return fmt.Errorf("emu: no cartridge loaded")
	}
	var buf bytes.Buffer
	s := machineState{CPU: m.cpu.Snapshot(), Bus: m.bus.SaveState()}
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func (m *Machine) LoadStateFromFile(path string) error {
	if m.bus == nil || m.cpu == nil {
		return fmt.Errorf("emu: no cartridge loaded")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var s machineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	m.bus.LoadState(s.Bus)
	m.cpu.Restore(s.CPU)
	return nil
}

// --- Host-shell DMG palette picker (adapted from the teacher's CGB boot
// palette picker: spec.md excludes CGB emulation, so this only swaps the
// 4-shade RGB lookup table the PPU composites with, spec.md §4.6). ---

// IsCGBCompat reports whether palette selection is available for the
// current ROM; this emulator is DMG-only, so it's true whenever a cartridge
// is loaded.
func (m *Machine) IsCGBCompat() bool { return m.cartridge != nil }

func (m *Machine) CurrentCompatPalette() int { return m.paletteID }

func (m *Machine) CompatPaletteName(id int) string {
	if id < 0 || id >= len(dmgPaletteNames) {
		return "Unknown"
	}
	return dmgPaletteNames[id]
}

func (m *Machine) SetCompatPalette(id int) {
	n := len(dmgPalettes)
	id %= n
	if id < 0 {
		id += n
	}
	m.paletteID = id
	if m.bus != nil {
		m.bus.PPU().SetShades(dmgPalettes[id])
	}
}

func (m *Machine) CycleCompatPalette(delta int) {
	m.SetCompatPalette(m.paletteID + delta)
}

// --- CGB stubs: spec.md's Non-goals exclude the color variant outright, so
// these always report/request DMG-only behavior. ---

func (m *Machine) WantCGBColors() bool { return false }
func (m *Machine) UseCGBBG() bool      { return false }
func (m *Machine) SetUseCGBBG(bool)    {}

// --- Audio pull surface for the host's audio callback (spec.md §4.8). ---

func (m *Machine) APUBufferedStereo() int {
	if m.bus == nil {
		return 0
	}
	return m.bus.APU().StereoAvailable()
}

func (m *Machine) APUPullStereo(n int) []int16 {
	if m.bus == nil {
		return nil
	}
	return m.bus.APU().PullStereo(n)
}

// APUCapBufferedStereo drops buffered samples beyond capFrames, used by the
// host to bound audio latency during fast-forward.
func (m *Machine) APUCapBufferedStereo(capFrames int) {
	if m.bus == nil {
		return
	}
	if avail := m.bus.APU().StereoAvailable(); avail > capFrames {
		m.bus.APU().PullStereo(avail - capFrames)
	}
}

// APUClearAudioLatency drains all buffered audio, used when resuming after
// a pause or seek to avoid playing a backlog of stale samples.
func (m *Machine) APUClearAudioLatency() {
	if m.bus == nil {
		return
	}
	for {
		avail := m.bus.APU().StereoAvailable()
		if avail <= 0 {
			return
		}
		m.bus.APU().PullStereo(avail)
	}
}
