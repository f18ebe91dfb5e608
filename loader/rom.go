// Package loader reads CHIP-8 ROM images.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sarchlab/chip8sim/emu"
)

// ErrEmptyROM is returned for a ROM with no bytes.
var ErrEmptyROM = errors.New("empty ROM")

// Program represents a ROM image ready for loading into the emulator.
type Program struct {
	// Name is the base name of the file the ROM was read from.
	Name string
	// Data is the raw program image, loaded at emu.ProgramStart.
	Data []byte
}

// Load reads a ROM file.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ROM file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Read(f, filepath.Base(path))
}

// Read reads a ROM image from r. At most one byte more than fits in memory
// is consumed.
func Read(r io.Reader, name string) (*Program, error) {
	data, err := io.ReadAll(io.LimitReader(r, emu.MaxProgramSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read ROM %s: %w", name, err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyROM)
	}
	if len(data) > emu.MaxProgramSize {
		return nil, fmt.Errorf("%s: %w: limit %d bytes", name, emu.ErrProgramTooLarge, emu.MaxProgramSize)
	}

	return &Program{Name: name, Data: data}, nil
}

// Instructions returns the number of instruction words in the image.
// A trailing odd byte is not counted.
func (p *Program) Instructions() int {
	return len(p.Data) / emu.InstructionSize
}
