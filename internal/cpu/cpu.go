// Package cpu implements the SM83 interpreter as a cycle-accurate micro-step
// scheduler: Tick() advances the machine clock by exactly one 4.19 MHz
// cycle, and every instruction is a queue of Standard/Instant/
// InstantConditional steps charged against that clock one at a time
// (spec.md §4.1).
package cpu

import (
	"fmt"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
)

// CPU is the SM83 register file plus the micro-step scheduler state. It owns
// no memory directly; all loads/stores go through Bus.
type CPU struct {
	Registers

	bus Bus
	irq *interrupt.Controller

	queue []step
	qi    int

	// tstate counts master clock cycles (0..3) within the current Standard
	// step; a Standard step completes its bus side effect and advances the
	// queue once every 4 Tick() calls.
	tstate int

	halted         bool
	stopped        bool
	haltBugPending bool
	eiDelayArmed   bool

	// operand8/operand16/temp8 are instruction-scratch registers shared
	// across a decoded instruction's steps; they never survive past
	// instruction boundaries.
	operand8  byte
	operand16 uint16
	temp8     byte

	// Trace, if set, is called once per opcode fetch with the PC the
	// opcode was fetched from and the opcode byte itself. Used by
	// cmd/cpurunner for instruction-level logging.
	Trace func(pc uint16, op byte)

	// trap latches the most recent emuerr.ErrUnsupportedOpcode hit. It is
	// never cleared by Tick itself (see LastTrap/ClearTrap): an illegal
	// opcode on real hardware usually means the ROM or the decoder has
	// gone off the rails, so a host should see it even several
	// instructions later rather than have it silently overwritten.
	trap error
}

// New constructs a CPU wired to bus for memory access and irq for
// interrupt/HALT bookkeeping. The caller is responsible for setting the
// post-boot register state (see Reset) before the first Tick.
func New(bus Bus, irq *interrupt.Controller) *CPU {
	c := &CPU{bus: bus, irq: irq}
	c.queue = []step{std(fetchAndDecode)}
	return c
}

// Reset sets the documented DMG post-boot-ROM register state (spec.md §4.1
// "Reset state"), used when the machine starts without a boot ROM image.
func (c *CPU) Reset() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100

	c.irq.IME = false
	c.halted = false
	c.stopped = false
	c.haltBugPending = false
	c.eiDelayArmed = false
	c.tstate = 0
	c.queue = []step{std(fetchAndDecode)}
	c.qi = 0
}

// Halted reports whether the CPU is currently spinning in HALT.
func (c *CPU) Halted() bool { return c.halted }

// Stopped reports whether the CPU is currently in STOP, waiting on a
// joypad press to resume (spec.md §4.1 "STOP").
func (c *CPU) Stopped() bool { return c.stopped }

// WakeFromStop resumes a STOPped CPU; wired as joypad.Joypad.WakeFromStop.
func (c *CPU) WakeFromStop() {
	c.stopped = false
}

// LastTrap reports the most recent emuerr.ErrUnsupportedOpcode fetched, or
// nil if none has occurred since the last ClearTrap. It never affects
// execution; decode() still treats an illegal opcode as a one-cycle no-op
// (spec.md §7 forbids panicking mid-Tick), so this exists purely for a host
// to notice and print a diagnostic dump (see DumpState).
func (c *CPU) LastTrap() error { return c.trap }

// ClearTrap resets the latched trap, e.g. after a host has logged it.
func (c *CPU) ClearTrap() { c.trap = nil }

// DumpState renders the register file, scheduler state, and any latched
// trap as a single diagnostic line, the shape cmd/cpurunner prints when an
// illegal opcode or other unexpected condition is detected.
func (c *CPU) DumpState() string {
	s := fmt.Sprintf("PC=%04X SP=%04X A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X IME=%t halted=%t stopped=%t",
		c.PC, c.SP, c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L, c.irq.IME, c.halted, c.stopped)
	if c.trap != nil {
		s += " trap=" + c.trap.Error()
	}
	return s
}

// Snapshot is the gob-serializable CPU state for save-states.
type Snapshot struct {
	Registers      Registers
	Halted         bool
	Stopped        bool
	HaltBugPending bool
	EIDelayArmed   bool
}

func (c *CPU) Snapshot() Snapshot {
	return Snapshot{
		Registers:      c.Registers,
		Halted:         c.halted,
		Stopped:        c.stopped,
		HaltBugPending: c.haltBugPending,
		EIDelayArmed:   c.eiDelayArmed,
	}
}

func (c *CPU) Restore(s Snapshot) {
	c.Registers = s.Registers
	c.halted = s.Halted
	c.stopped = s.Stopped
	c.haltBugPending = s.HaltBugPending
	c.eiDelayArmed = s.EIDelayArmed
	c.tstate = 0
	c.queue = []step{std(fetchAndDecode)}
	c.qi = 0
}
