// Package joypad models the DMG column-select input register at 0xFF00,
// factored out of the bus the way the teacher factors out the PPU.
package joypad

// Button bitmasks for SetState. A set bit means "pressed".
const (
	Right = 1 << iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// Joypad tracks which buttons are pressed and the host-selected column line.
type Joypad struct {
	selectLine byte // last value written to bits 5-4 of 0xFF00
	pressed    byte // Button bitmask, 1 = pressed
	lastLower4 byte // last computed active-low lower nibble, for edge detection

	// IRQRequest fires on any 1->0 transition of the selected lower nibble.
	IRQRequest func()
	// WakeFromStop fires on any key-down event, regardless of column select.
	WakeFromStop func()
}

func New() *Joypad { return &Joypad{} }

// Read returns the JOYP byte: bits 7-6 always 1, bits 5-4 echo the selection,
// bits 3-0 are active-low button state for the selected column(s).
func (j *Joypad) Read() byte {
	return 0xC0 | (j.selectLine & 0x30) | j.lowerNibble()
}

func (j *Joypad) lowerNibble() byte {
	n := byte(0x0F)
	if j.selectLine&0x10 == 0 { // P14 low selects D-pad
		if j.pressed&Right != 0 {
			n &^= 0x01
		}
		if j.pressed&Left != 0 {
			n &^= 0x02
		}
		if j.pressed&Up != 0 {
			n &^= 0x04
		}
		if j.pressed&Down != 0 {
			n &^= 0x08
		}
	}
	if j.selectLine&0x20 == 0 { // P15 low selects buttons
		if j.pressed&A != 0 {
			n &^= 0x01
		}
		if j.pressed&B != 0 {
			n &^= 0x02
		}
		if j.pressed&Select != 0 {
			n &^= 0x04
		}
		if j.pressed&Start != 0 {
			n &^= 0x08
		}
	}
	return n
}

// Write handles a write to 0xFF00: only the column-select bits are writable.
func (j *Joypad) Write(v byte) {
	j.selectLine = v & 0x30
	j.refreshIRQ()
}

// KeyDown marks a button pressed and raises a Joypad interrupt if this
// causes the selected lower nibble to fall from 1 to 0. Also wakes the CPU
// from STOP, per spec.md §4.4.
func (j *Joypad) KeyDown(mask byte) {
	j.pressed |= mask
	j.refreshIRQ()
	if j.WakeFromStop != nil {
		j.WakeFromStop()
	}
}

// KeyUp marks a button released.
func (j *Joypad) KeyUp(mask byte) {
	j.pressed &^= mask
	j.refreshIRQ()
}

func (j *Joypad) refreshIRQ() {
	n := j.lowerNibble()
	falling := j.lastLower4 &^ n
	if falling != 0 && j.IRQRequest != nil {
		j.IRQRequest()
	}
	j.lastLower4 = n
}

type Snapshot struct {
	SelectLine, Pressed, LastLower4 byte
}

func (j *Joypad) Snapshot() Snapshot { return Snapshot{j.selectLine, j.pressed, j.lastLower4} }
func (j *Joypad) Restore(s Snapshot) {
	j.selectLine, j.pressed, j.lastLower4 = s.SelectLine, s.Pressed, s.LastLower4
}
