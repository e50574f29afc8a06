// Package headless is a terminal front end, an alternative to the ebiten
// window for running a ROM over SSH or in CI where no display is attached.
// It downsamples the framebuffer to a block-character grid and reads input
// from the keyboard via tcell.
package headless

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
)

const (
	gbWidth   = 160
	gbHeight  = 144
	frameTime = time.Second / 60
	keyExpiry = 100 * time.Millisecond
)

// keymap is the default terminal key layout: arrows for D-pad, Z/X for
// A/B, Enter/Tab for Start/Select. The ebiten front end
// (internal/ui/ebitenapp.go) differs on Select: it uses Right Shift there
// and Tab for fast-forward.
var keymap = map[tcell.Key]func(*emu.Buttons, bool){
	tcell.KeyUp:    func(b *emu.Buttons, v bool) { b.Up = v },
	tcell.KeyDown:  func(b *emu.Buttons, v bool) { b.Down = v },
	tcell.KeyLeft:  func(b *emu.Buttons, v bool) { b.Left = v },
	tcell.KeyRight: func(b *emu.Buttons, v bool) { b.Right = v },
	tcell.KeyEnter: func(b *emu.Buttons, v bool) { b.Start = v },
	tcell.KeyTab:   func(b *emu.Buttons, v bool) { b.Select = v },
}

var runeKeymap = map[rune]func(*emu.Buttons, bool){
	'z': func(b *emu.Buttons, v bool) { b.A = v },
	'x': func(b *emu.Buttons, v bool) { b.B = v },
}

// App drives a Machine from a tcell terminal screen instead of an ebiten
// window. It is meant for headless hosts: a CI box, an SSH session, a
// container with no GPU.
type App struct {
	machine *emu.Machine
	screen  tcell.Screen

	lastPressed map[rune]time.Time
	lastKeyTime map[tcell.Key]time.Time
}

// NewApp constructs a terminal front end. The caller still owns loading a
// cartridge into m before calling Run.
func NewApp(m *emu.Machine) *App {
	return &App{
		machine:     m,
		lastPressed: make(map[rune]time.Time),
		lastKeyTime: make(map[tcell.Key]time.Time),
	}
}

// Run initializes the terminal screen and drives the machine at roughly 60
// frames per second until the user quits (Esc or Ctrl+C).
func (a *App) Run() error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("headless: new screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("headless: init screen: %w", err)
	}
	a.screen = screen
	defer screen.Fini()

	screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	screen.Clear()

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	quit := false
	for !quit {
		for screen.HasPendingEvent() {
			switch ev := screen.PollEvent().(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
					quit = true
				}
				a.recordKey(ev)
			case *tcell.EventResize:
				screen.Sync()
			}
		}
		a.applyButtons()
		a.machine.StepFrame()
		a.draw()
		<-ticker.C
	}
	return nil
}

// recordKey timestamps a key press; applyButtons treats any key seen within
// keyExpiry of "now" as still held, since raw terminal input delivers
// key-down events but no reliable key-up stream.
func (a *App) recordKey(ev *tcell.EventKey) {
	now := time.Now()
	if _, ok := keymap[ev.Key()]; ok {
		a.lastKeyTime[ev.Key()] = now
	}
	if _, ok := runeKeymap[ev.Rune()]; ok {
		a.lastPressed[ev.Rune()] = now
	}
}

func (a *App) applyButtons() {
	now := time.Now()
	var b emu.Buttons
	for k, fn := range keymap {
		if t, ok := a.lastKeyTime[k]; ok && now.Sub(t) < keyExpiry {
			fn(&b, true)
		}
	}
	for r, fn := range runeKeymap {
		if t, ok := a.lastPressed[r]; ok && now.Sub(t) < keyExpiry {
			fn(&b, true)
		}
	}
	a.machine.SetButtons(b)
}

// blockShades from darkest to lightest, mirroring the 4-tone DMG palette.
var blockShades = []rune{'█', '▓', '▒', ' '}

// draw downsamples the 160x144 framebuffer into the available terminal
// cells, picking a block character per cell from the average luminance of
// the GB pixels it covers.
func (a *App) draw() {
	w, h := a.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}
	// Each axis is scaled to fit the terminal on its own: cellW GB columns
	// per cell, cellH/2 GB rows per cell row. No aspect correction is made.
	cellW := gbWidth / w
	if cellW < 1 {
		cellW = 1
	}
	cellH := (gbHeight * 2) / h
	if cellH < 1 {
		cellH = 1
	}

	fb := a.machine.Framebuffer()
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack)

	for cy := 0; cy*cellH/2 < gbHeight && cy < h; cy++ {
		for cx := 0; cx*cellW < gbWidth && cx < w; cx++ {
			sum, n := 0, 0
			y0 := cy * cellH / 2
			x0 := cx * cellW
			for y := y0; y < y0+cellH/2 && y < gbHeight; y++ {
				for x := x0; x < x0+cellW && x < gbWidth; x++ {
					idx := (y*gbWidth + x) * 4
					sum += int(fb[idx]) + int(fb[idx+1]) + int(fb[idx+2])
					n++
				}
			}
			lum := 255
			if n > 0 {
				lum = sum / (n * 3)
			}
			a.screen.SetContent(cx, cy, blockShades[lumToShade(lum)], nil, style)
		}
	}
	a.screen.Show()
}

// lumToShade maps an average 0-255 luminance to a shade index, inverted so
// bright GB pixels (near-white, the DMG's lightest shade) render as the
// emptiest terminal cell.
func lumToShade(lum int) int {
	switch {
	case lum > 192:
		return 3
	case lum > 128:
		return 2
	case lum > 64:
		return 1
	default:
		return 0
	}
}
