package ppu

import "sort"

// Sprite is one decoded OAM entry as selected for a scanline.
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

// scanOAM selects up to 10 sprites visible on scanline ly, honoring the
// 8x16 height flag, in OAM order (spec.md §4.6 "Sprite buffer").
func scanOAM(oam *[0xA0]byte, ly int, tall bool) []Sprite {
	height := 8
	if tall {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		y := int(oam[base]) - 16
		x := int(oam[base+1]) - 8
		tile := oam[base+2]
		attr := oam[base+3]
		if ly < y || ly >= y+height {
			continue
		}
		out = append(out, Sprite{X: x, Y: y, Tile: tile, Attr: attr, OAMIndex: i})
	}
	return out
}

// ComposeSpriteLine resolves the 160 sprite pixels for a scanline: for each
// sprite column it picks the highest-priority opaque pixel (lowest X, then
// lowest OAM index), applies x/y flip and 8x16 tall-sprite addressing, and
// hides the pixel behind the background when the BG-priority attribute bit
// is set and the background pixel there is non-zero (spec.md §4.6 "Pixel
// mixing").
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly int, bgci [160]byte, tall bool) [160]byte {
	out, _ := composeSpriteLine(mem, sprites, ly, bgci, tall)
	return out
}

// composeSpriteLine additionally reports, per pixel, whether the
// winning sprite selects OBP1 (attribute bit 4) over OBP0.
func composeSpriteLine(mem VRAMReader, sprites []Sprite, ly int, bgci [160]byte, tall bool) ([160]byte, [160]bool) {
	var out [160]byte
	var useObp1 [160]bool
	var winner [160]*Sprite

	ordered := make([]Sprite, len(sprites))
	copy(ordered, sprites)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].X != ordered[j].X {
			return ordered[i].X < ordered[j].X
		}
		return ordered[i].OAMIndex < ordered[j].OAMIndex
	})

	for i := range ordered {
		s := &ordered[i]
		row := ly - s.Y
		height := 8
		if tall {
			height = 16
		}
		if s.Attr&0x40 != 0 { // Y-flip
			row = height - 1 - row
		}
		tile := s.Tile
		if tall {
			tile &^= 1
			if row >= 8 {
				tile |= 1
				row -= 8
			}
		}
		base := uint16(0x8000) + uint16(tile)*16 + uint16(row)*2
		lo := mem.Read(base)
		hi := mem.Read(base + 1)
		for col := 0; col < 8; col++ {
			px := s.X + col
			if px < 0 || px >= 160 {
				continue
			}
			if winner[px] != nil {
				continue
			}
			bit := col
			if s.Attr&0x20 == 0 { // no X-flip: bit7 is leftmost
				bit = 7 - col
			}
			ci := ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
			if ci == 0 {
				continue
			}
			if s.Attr&0x80 != 0 && bgci[px] != 0 {
				continue
			}
			out[px] = ci
			useObp1[px] = s.Attr&0x10 != 0
			winner[px] = s
		}
	}
	return out, useObp1
}
