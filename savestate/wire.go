// Package savestate encodes emulator snapshots and stores them in named
// slots.
package savestate

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/sarchlab/chip8sim/emu"
)

// Version is the encoding version written by Marshal.
const Version = 1

// ErrBadState is returned when encoded state cannot describe a machine.
var ErrBadState = errors.New("invalid save state")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("savestate: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// state is the wire form of an emu.Snapshot. Pixels and keys are packed
// into bits, most significant bit first.
type state struct {
	Version          uint     `cbor:"1,keyasint"`
	V                []byte   `cbor:"2,keyasint"`
	I                uint16   `cbor:"3,keyasint"`
	PC               uint16   `cbor:"4,keyasint"`
	SP               uint8    `cbor:"5,keyasint"`
	Stack            []uint16 `cbor:"6,keyasint"`
	DT               uint8    `cbor:"7,keyasint"`
	ST               uint8    `cbor:"8,keyasint"`
	Memory           []byte   `cbor:"9,keyasint"`
	PixelCount       int      `cbor:"10,keyasint,omitempty"`
	Pixels           []byte   `cbor:"11,keyasint,omitempty"`
	WaitingForKey    bool     `cbor:"12,keyasint,omitempty"`
	LastKeys         uint16   `cbor:"13,keyasint,omitempty"`
	InstructionCount uint64   `cbor:"14,keyasint"`
}

// Marshal serializes a snapshot to canonical CBOR.
func Marshal(s emu.Snapshot) ([]byte, error) {
	r := s.Registers
	st := state{
		Version:          Version,
		V:                r.V[:],
		I:                r.I,
		PC:               r.PC,
		SP:               r.SP,
		Stack:            r.Stack[:],
		DT:               r.DT,
		ST:               r.ST,
		Memory:           s.Memory[:],
		PixelCount:       len(s.Pixels),
		Pixels:           packBits(s.Pixels),
		WaitingForKey:    s.WaitingForKey,
		LastKeys:         packKeys(s.LastKeys),
		InstructionCount: s.InstructionCount,
	}

	data, err := cborEncMode.Marshal(&st)
	if err != nil {
		return nil, fmt.Errorf("savestate: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes a snapshot written by Marshal.
func Unmarshal(data []byte) (emu.Snapshot, error) {
	var st state
	if err := cbor.Unmarshal(data, &st); err != nil {
		return emu.Snapshot{}, fmt.Errorf("savestate: unmarshal: %w", err)
	}

	if err := st.validate(); err != nil {
		return emu.Snapshot{}, err
	}

	s := emu.Snapshot{
		WaitingForKey:    st.WaitingForKey,
		LastKeys:         unpackKeys(st.LastKeys),
		InstructionCount: st.InstructionCount,
	}
	r := &s.Registers
	copy(r.V[:], st.V)
	r.I = st.I
	r.PC = st.PC
	r.SP = st.SP
	copy(r.Stack[:], st.Stack)
	r.DT = st.DT
	r.ST = st.ST
	copy(s.Memory[:], st.Memory)
	if st.PixelCount > 0 {
		s.Pixels = unpackBits(st.Pixels, st.PixelCount)
	}

	return s, nil
}

func (st *state) validate() error {
	switch {
	case st.Version != Version:
		return fmt.Errorf("%w: version %d, want %d", ErrBadState, st.Version, Version)
	case len(st.V) != emu.NumRegisters:
		return fmt.Errorf("%w: %d registers", ErrBadState, len(st.V))
	case len(st.Stack) != emu.StackDepth:
		return fmt.Errorf("%w: stack of %d entries", ErrBadState, len(st.Stack))
	case int(st.SP) > emu.StackDepth:
		return fmt.Errorf("%w: stack pointer %d", ErrBadState, st.SP)
	case len(st.Memory) != emu.MemorySize:
		return fmt.Errorf("%w: %d bytes of memory", ErrBadState, len(st.Memory))
	case st.PixelCount < 0 || len(st.Pixels) != (st.PixelCount+7)/8:
		return fmt.Errorf("%w: %d pixel bytes for %d pixels", ErrBadState, len(st.Pixels), st.PixelCount)
	}
	return nil
}

func packBits(bits []bool) []byte {
	if len(bits) == 0 {
		return nil
	}
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return out
}

func unpackBits(data []byte, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = data[i/8]&(0x80>>(i%8)) != 0
	}
	return out
}

func packKeys(keys [emu.NumKeys]bool) uint16 {
	var mask uint16
	for i, k := range keys {
		if k {
			mask |= 1 << i
		}
	}
	return mask
}

func unpackKeys(mask uint16) [emu.NumKeys]bool {
	var keys [emu.NumKeys]bool
	for i := range keys {
		keys[i] = mask&(1<<i) != 0
	}
	return keys
}
