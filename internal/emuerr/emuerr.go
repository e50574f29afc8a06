// Package emuerr defines the error kinds from spec.md §7. ROM loading is the
// only operation allowed to fail; no error crosses the Tick() boundary.
package emuerr

import "errors"

// ErrBadRom covers a truncated header, unsupported cartridge type/size code,
// or a color-only title flag (0x143 == 0xC0).
var ErrBadRom = errors.New("bad rom")

// ErrSaveIOWarning is reported out-of-band (never fatal) when a save file
// fails to load or persist.
var ErrSaveIOWarning = errors.New("save io warning")

// ErrUnsupportedOpcode should never occur on legitimate ROMs; it surfaces as
// a trap for diagnostic dumps.
var ErrUnsupportedOpcode = errors.New("unsupported opcode")
