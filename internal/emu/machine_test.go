package emu

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// blankROM builds a minimal, valid, ROM-only cartridge image of size n bytes
// (n must be >= 0x8000), with an infinite-loop program at 0x0100 so a real
// CPU doesn't run off into unmapped memory during frame stepping.
func blankROM(n int) []byte {
	rom := make([]byte, n)
	rom[0x0100] = 0x00 // NOP
	rom[0x0101] = 0xC3 // JP 0x0100
	rom[0x0102] = 0x00
	rom[0x0103] = 0x01
	return rom
}

func TestMachine_LoadAndStepFrame(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(0x8000), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()
	fb := m.Framebuffer()
	if len(fb) != 160*144*4 {
		t.Fatalf("framebuffer size = %d, want %d", len(fb), 160*144*4)
	}
}

func TestMachine_LoadROMFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.gb")
	if err := os.WriteFile(path, blankROM(0x8000), 0644); err != nil {
		t.Fatalf("write rom: %v", err)
	}
	m := New(Config{})
	if err := m.LoadROMFromFile(path); err != nil {
		t.Fatalf("LoadROMFromFile: %v", err)
	}
	if m.ROMPath() != path {
		t.Fatalf("ROMPath() = %q, want %q", m.ROMPath(), path)
	}
	m.StepFrameNoRender()
}

func TestMachine_SetButtons(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(0x8000), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	// Should not panic, and JOYP should reflect a pressed direction when
	// the select-bit mode requests it.
	m.SetButtons(Buttons{Right: true})
	m.StepFrame()
	m.bus.Write(0xFF00, 0x20) // P14 low selects the D-pad column
	if got := m.bus.Read(0xFF00) & 0x0F; got != 0x0E {
		t.Fatalf("JOYP D-pad nibble = %#x, want 0xe (Right pressed)", got)
	}
	m.SetButtons(Buttons{})
}

func TestMachine_SerialWriter(t *testing.T) {
	m := New(Config{})
	var buf bytes.Buffer
	if err := m.LoadCartridge(blankROM(0x8000), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.SetSerialWriter(&buf)
	m.StepFrame()
}

func TestMachine_SaveAndLoadState(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(0x8000), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()

	dir := t.TempDir()
	path := filepath.Join(dir, "state.sav")
	if err := m.SaveStateToFile(path); err != nil {
		t.Fatalf("SaveStateToFile: %v", err)
	}

	m2 := New(Config{})
	if err := m2.LoadCartridge(blankROM(0x8000), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if err := m2.LoadStateFromFile(path); err != nil {
		t.Fatalf("LoadStateFromFile: %v", err)
	}
}

func TestMachine_CompatPaletteCycling(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(0x8000), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	start := m.CurrentCompatPalette()
	m.CycleCompatPalette(1)
	if m.CurrentCompatPalette() == start && len(dmgPalettes) > 1 {
		t.Fatalf("CycleCompatPalette did not change palette")
	}
	// Wrap-around both directions should stay in range.
	for i := 0; i < len(dmgPalettes)+2; i++ {
		m.CycleCompatPalette(1)
		if id := m.CurrentCompatPalette(); id < 0 || id >= len(dmgPalettes) {
			t.Fatalf("palette id out of range: %d", id)
		}
	}
	if name := m.CompatPaletteName(0); name == "" {
		t.Fatalf("CompatPaletteName(0) empty")
	}
}

func TestMachine_BatteryRAMRoundTrip(t *testing.T) {
	// MBC1 cart type 0x03 (RAM + battery) with RAM size code 0x02 (8KB).
	rom := blankROM(0x8000)
	rom[0x0147] = 0x03
	rom[0x0149] = 0x02
	m := New(Config{})
	if err := m.LoadCartridge(rom, nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	data, ok := m.SaveBattery()
	if !ok {
		t.Fatalf("SaveBattery: expected ok=true for MBC1+RAM cart")
	}
	if len(data) != 8*1024 {
		t.Fatalf("SaveBattery: got %d bytes, want %d", len(data), 8*1024)
	}
	if !m.LoadBattery(data) {
		t.Fatalf("LoadBattery: expected ok=true")
	}
}

func TestMachine_WantCGBColorsAlwaysFalse(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(blankROM(0x8000), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if m.WantCGBColors() {
		t.Fatalf("WantCGBColors() = true, want false (CGB is out of scope)")
	}
}
