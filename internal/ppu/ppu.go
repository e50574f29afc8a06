// Package ppu implements the DMG pixel pipeline: VRAM/OAM storage, the
// LCDC/STAT/LY/LYC/scroll/palette register file, per-dot mode scheduling,
// and a tile-fetcher-backed scanline renderer that composites background,
// window, and sprites into an RGBA framebuffer (spec.md §4.6).
package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// LineRegs is the subset of PPU register state latched at the start of
// pixel-transfer (mode 3) for a given scanline, so rendering reflects the
// values the real fetcher would have seen rather than whatever the CPU
// leaves behind by the time HBlank renders the line.
type LineRegs struct {
	SCX, SCY         byte
	WX, WY           byte
	LCDC             byte
	BGP, OBP0, OBP1  byte
	WinLine          byte
	WindowVisible    bool
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, scroll/window/palettes, mode
// timing, and the scanline compositor.
type PPU struct {
	vram [0x2000]byte // 0x8000–0x9FFF
	oam  [0xA0]byte   // 0xFE00–0xFE9F

	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	windowLineCounter  byte
	curLineWindowDraws bool
	statLinePrev       bool

	lineRegs [144]LineRegs

	fb [160 * 144 * 4]byte // RGBA output, valid after each completed frame

	shades [4][3]byte // 2-bit shade index -> RGB, selectable host palette

	req InterruptRequester
}

func New(req InterruptRequester) *PPU { return &PPU{req: req, shades: dmgShade} }

// SetShades replaces the 2-bit shade -> RGB lookup table used to composite
// scanlines, letting the host pick among several classic DMG color schemes.
func (p *PPU) SetShades(shades [4][3]byte) { p.shades = shades }

// Framebuffer returns the most recently composited frame, RGBA8888, row-major.
func (p *PPU) Framebuffer() []byte { return p.fb[:] }

// LineRegs exposes the registers latched for scanline ly (0..143), mainly
// for tests and debugging overlays.
func (p *PPU) LineRegs(ly int) LineRegs {
	if ly < 0 || ly >= 144 {
		return LineRegs{}
	}
	return p.lineRegs[ly]
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// Read implements VRAMReader for the fetcher/scanline helpers, bypassing
// the mode-3 CPU lockout (the renderer itself is what runs during mode 3).
func (p *PPU) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return p.vram[addr-0x8000]
	}
	return 0xFF
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			p.ly = 0
			p.dot = 0
			p.windowLineCounter = 0
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.windowLineCounter = 0
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
		p.updateStatLine()
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// Tick advances PPU state by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 {
			continue
		}
		p.dot++

		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot < 80+172:
				mode = 3
			default:
				mode = 0
			}
		}
		prevMode := p.stat & 0x03
		p.setMode(mode)
		if prevMode != 3 && mode == 3 {
			p.latchLineRegs()
		}
		if prevMode == 3 && mode == 0 {
			p.renderScanline(int(p.ly))
			if p.curLineWindowDraws {
				p.windowLineCounter++
			}
		}

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0)
				}
				if (p.stat & (1 << 4)) != 0 {
					if p.req != nil {
						p.req(1)
					}
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.windowLineCounter = 0
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

func (p *PPU) setMode(mode byte) {
	if p.stat&0x03 == mode {
		p.updateStatLine()
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	p.updateStatLine()
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
	p.updateStatLine()
}

// updateStatLine models STAT as an OR of the enabled sources (spec.md §4.6
// "stat_irq_line"): an interrupt fires only on a 0->1 transition of that
// combined line, which is what produces the documented "STAT blocking"
// glitch on real hardware.
func (p *PPU) updateStatLine() {
	mode := p.stat & 0x03
	line := false
	if p.stat&(1<<3) != 0 && mode == 0 {
		line = true
	}
	if p.stat&(1<<5) != 0 && mode == 2 {
		line = true
	}
	if p.stat&(1<<4) != 0 && mode == 1 {
		line = true
	}
	if p.stat&(1<<6) != 0 && p.stat&(1<<2) != 0 {
		line = true
	}
	if line && !p.statLinePrev {
		if p.req != nil {
			p.req(1)
		}
	}
	p.statLinePrev = line
}

func (p *PPU) latchLineRegs() {
	windowVisible := p.lcdc&0x20 != 0 && p.lcdc&0x01 != 0 &&
		int(p.ly) >= int(p.wy) && p.wx < 167
	p.curLineWindowDraws = windowVisible

	lr := LineRegs{
		SCX: p.scx, SCY: p.scy, WX: p.wx, WY: p.wy,
		LCDC: p.lcdc, BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WinLine: p.windowLineCounter, WindowVisible: windowVisible,
	}
	if int(p.ly) < 144 {
		p.lineRegs[p.ly] = lr
	}
}

// renderScanline composites BG, window, and sprites for scanline ly into
// the framebuffer, using the registers latched at the start of mode 3.
func (p *PPU) renderScanline(ly int) {
	if ly < 0 || ly >= 144 {
		return
	}
	lr := p.lineRegs[ly]

	var bgci [160]byte
	if lr.LCDC&0x01 != 0 {
		bgMap := uint16(0x9800)
		if lr.LCDC&0x08 != 0 {
			bgMap = 0x9C00
		}
		tileData8000 := lr.LCDC&0x10 != 0
		bgci = RenderBGScanlineUsingFetcher(p, bgMap, tileData8000, lr.SCX, lr.SCY, byte(ly))
	}

	if lr.WindowVisible {
		winMap := uint16(0x9800)
		if lr.LCDC&0x40 != 0 {
			winMap = 0x9C00
		}
		tileData8000 := lr.LCDC&0x10 != 0
		wxStart := int(lr.WX) - 7
		win := RenderWindowScanlineUsingFetcher(p, winMap, tileData8000, wxStart, lr.WinLine)
		start := wxStart
		if start < 0 {
			start = 0
		}
		for x := start; x < 160; x++ {
			bgci[x] = win[x]
		}
	}

	var spriteci [160]byte
	var spriteObp1 [160]bool
	if lr.LCDC&0x02 != 0 {
		tall := lr.LCDC&0x04 != 0
		sprites := scanOAM(&p.oam, ly, tall)
		spriteci, spriteObp1 = composeSpriteLine(p, sprites, ly, bgci, tall)
	}

	for x := 0; x < 160; x++ {
		ci := bgci[x]
		pal := lr.BGP
		if spriteci[x] != 0 {
			ci = spriteci[x]
			if spriteObp1[x] {
				pal = lr.OBP1
			} else {
				pal = lr.OBP0
			}
		}
		shade := (pal >> (ci * 2)) & 0x03
		c := p.shades[shade]
		o := (ly*160 + x) * 4
		p.fb[o+0] = c[0]
		p.fb[o+1] = c[1]
		p.fb[o+2] = c[2]
		p.fb[o+3] = 0xFF
	}
}

// dmgShade maps the 2-bit DMG shade index to an RGB triple, lightest first.
var dmgShade = [4][3]byte{
	{0xE0, 0xF8, 0xD0},
	{0x88, 0xC0, 0x70},
	{0x34, 0x68, 0x56},
	{0x08, 0x18, 0x20},
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }

// ppuState is the gob-serializable subset of PPU state for save-states; the
// framebuffer and per-line register latches are derived, not persisted.
type ppuState struct {
	VRAM                           [0x2000]byte
	OAM                            [0xA0]byte
	LCDC, STAT, SCY, SCX, LY, LYC  byte
	BGP, OBP0, OBP1, WY, WX        byte
	Dot                            int
	WindowLineCounter              byte
	StatLinePrev                   bool
}

func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	s := ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, WindowLineCounter: p.windowLineCounter, StatLinePrev: p.statLinePrev,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) {
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.windowLineCounter, p.statLinePrev = s.Dot, s.WindowLineCounter, s.StatLinePrev
}
