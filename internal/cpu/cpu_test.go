package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupt"
)

// flatBus is a 64KB RAM-backed Bus used to exercise the CPU in isolation,
// the way a hardware test harness would wire a bare SM83 to a RAM chip.
type flatBus struct {
	mem [0x10000]byte
}

func (b *flatBus) Read(addr uint16) byte     { return b.mem[addr] }
func (b *flatBus) Write(addr uint16, v byte) { b.mem[addr] = v }

// runToNextFetch ticks c until the opcode fetch that starts the following
// instruction has itself completed. Because a fetch is a 4-cycle Standard
// step like any other, the returned count is the current instruction's full
// documented length plus the 4 cycles spent fetching the next opcode.
func runToNextFetch(c *CPU, maxCycles int) int {
	fetches := 0
	c.Trace = func(pc uint16, op byte) { fetches++ }
	defer func() { c.Trace = nil }()
	n := 0
	for ; n < maxCycles && fetches < 2; n++ {
		c.Tick()
	}
	return n
}

func newTestCPU() (*CPU, *flatBus) {
	b := &flatBus{}
	irq := interrupt.New()
	c := New(b, irq)
	c.Reset()
	return c, b
}

func TestCPU_Reset_PostBootState(t *testing.T) {
	c, _ := newTestCPU()
	require.Equal(t, uint16(0x0100), c.PC)
	require.Equal(t, uint16(0xFFFE), c.SP)
	require.Equal(t, byte(0x01), c.A)
	require.Equal(t, byte(0xB0), c.F)
}

func TestCPU_NOP_TakesFourCycles(t *testing.T) {
	c, b := newTestCPU()
	b.mem[0x0100] = 0x00 // NOP
	b.mem[0x0101] = 0x00 // NOP (fetched next)
	n := runToNextFetch(c, 64)
	require.Equal(t, 8, n, "NOP's 4 cycles plus the next opcode fetch")
	require.Equal(t, uint16(0x0102), c.PC)
}

func TestCPU_LD_B_n(t *testing.T) {
	c, b := newTestCPU()
	b.mem[0x0100] = 0x06 // LD B,n
	b.mem[0x0101] = 0x42
	b.mem[0x0102] = 0x00 // NOP, to end the next instruction
	n := runToNextFetch(c, 64)
	require.Equal(t, 12, n, "LD B,n's 8 cycles plus the next opcode fetch")
	require.Equal(t, byte(0x42), c.B)
	require.Equal(t, uint16(0x0103), c.PC)
}

func TestCPU_INC_B_SetsZeroAndHalfCarry(t *testing.T) {
	c, b := newTestCPU()
	c.B = 0xFF
	b.mem[0x0100] = 0x04 // INC B
	b.mem[0x0101] = 0x00
	runToNextFetch(c, 64)
	require.Equal(t, byte(0x00), c.B)
	require.NotZero(t, c.F&flagZ, "Z flag not set after 0xFF+1 overflow")
	require.NotZero(t, c.F&flagH, "H flag not set after 0x0F->0x10 half-carry")
}

func TestCPU_JP_nn(t *testing.T) {
	c, b := newTestCPU()
	b.mem[0x0100] = 0xC3 // JP nn
	b.mem[0x0101] = 0x34
	b.mem[0x0102] = 0x12
	b.mem[0x1234] = 0x00 // NOP at target
	n := runToNextFetch(c, 64)
	require.Equal(t, 20, n, "JP nn's 16 cycles plus the next opcode fetch")
	require.Equal(t, uint16(0x1235), c.PC)
}

func TestCPU_CALL_and_RET(t *testing.T) {
	c, b := newTestCPU()
	b.mem[0x0100] = 0xCD // CALL nn
	b.mem[0x0101] = 0x00
	b.mem[0x0102] = 0x02
	b.mem[0x0200] = 0xC9 // RET
	b.mem[0x0103] = 0x00 // NOP, landed on after RET

	runToNextFetch(c, 64) // complete CALL, fetch opcode at 0x0200
	require.Equal(t, uint16(0x0201), c.PC)
	require.Equal(t, uint16(0xFFFC), c.SP)
	require.Equal(t, byte(0x03), b.mem[0xFFFC])
	require.Equal(t, byte(0x01), b.mem[0xFFFD])

	// RET was already fetched above, so this call completes RET, runs the NOP
	// at 0x0103, and stops after fetching the opcode at 0x0104.
	runToNextFetch(c, 64)
	require.Equal(t, uint16(0x0105), c.PC)
	require.Equal(t, uint16(0xFFFE), c.SP)
}

func TestCPU_HALT_SpinsUntilInterruptPending(t *testing.T) {
	c, _ := newTestCPU()
	c.irq.IME = false
	c.bus.(*flatBus).mem[0x0100] = 0x76 // HALT
	runToNextFetch(c, 8)                // complete HALT's own fetch-decode step

	for i := 0; i < 40; i++ {
		c.Tick()
	}
	require.True(t, c.Halted(), "CPU left HALT with no pending interrupt")

	c.irq.WriteIE(1 << interrupt.VBlank)
	c.irq.Request(interrupt.VBlank)
	for i := 0; i < 8; i++ {
		c.Tick()
	}
	require.False(t, c.Halted(), "CPU still halted after a pending interrupt arrived")
}

func TestCPU_InterruptDispatch_VectorAndIFClear(t *testing.T) {
	c, b := newTestCPU()
	b.mem[0x0100] = 0x00 // NOP, so dispatchNext sees a clean instruction boundary
	c.irq.IME = true
	c.irq.WriteIE(0xFF)
	c.irq.Request(interrupt.Timer)

	// Run the NOP, then the 5-step ISR dispatch (2 idle + 2 pushes + vector).
	for i := 0; i < (4 + 5*4); i++ {
		c.Tick()
	}
	require.Equal(t, uint16(0x50), c.PC, "Timer ISR vector")
	require.False(t, c.irq.IME, "IME still set after interrupt dispatch")
	require.Zero(t, c.irq.ReadIF()&(1<<interrupt.Timer), "Timer IF bit not cleared after dispatch")
	require.Equal(t, uint16(0xFFFC), c.SP)
}
