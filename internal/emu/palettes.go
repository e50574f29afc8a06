package emu

// dmgPaletteNames and dmgPalettes back the host-side shade palette picker
// ("Compat Palette" in the UI menu, renamed from the CGB boot-palette
// mechanism it is adapted from): four shades of RGB per palette, applied to
// the PPU's DMG-shade lookup table (spec.md §4.6 "DMG palette").
var dmgPaletteNames = []string{
	"DMG Green",
	"Pocket Gray",
	"Light Amber",
	"High Contrast",
	"Inverted",
	"Blue Tint",
}

var dmgPalettes = [][4][3]byte{
	{{0xE0, 0xF8, 0xD0}, {0x88, 0xC0, 0x70}, {0x34, 0x68, 0x56}, {0x08, 0x18, 0x20}}, // DMG Green
	{{0xF8, 0xF8, 0xF8}, {0xA8, 0xA8, 0xA8}, {0x60, 0x60, 0x60}, {0x00, 0x00, 0x00}}, // Pocket Gray
	{{0xFF, 0xF2, 0xC8}, {0xE8, 0xB0, 0x5C}, {0x8C, 0x5A, 0x24}, {0x30, 0x18, 0x08}}, // Light Amber
	{{0xFF, 0xFF, 0xFF}, {0xAA, 0xAA, 0xAA}, {0x55, 0x55, 0x55}, {0x00, 0x00, 0x00}}, // High Contrast
	{{0x08, 0x18, 0x20}, {0x34, 0x68, 0x56}, {0x88, 0xC0, 0x70}, {0xE0, 0xF8, 0xD0}}, // Inverted
	{{0xE8, 0xF0, 0xFF}, {0x90, 0xB0, 0xE0}, {0x48, 0x60, 0xA0}, {0x10, 0x18, 0x38}}, // Blue Tint
}
