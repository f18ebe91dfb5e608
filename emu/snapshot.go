package emu

import "fmt"

// Snapshot is a copy of the complete machine state between two steps.
type Snapshot struct {
	Registers        RegFile
	Memory           [MemorySize]byte
	Pixels           []bool
	WaitingForKey    bool
	LastKeys         [NumKeys]bool
	InstructionCount uint64
}

// Snapshot captures the machine state. Pixels is nil when the display does
// not implement PixelStore.
func (e *Emulator) Snapshot() Snapshot {
	s := Snapshot{
		Registers:        *e.regFile,
		Memory:           e.memory.Bytes(),
		WaitingForKey:    e.waitingForKey,
		LastKeys:         e.lastKeys,
		InstructionCount: e.instructionCount,
	}
	if ps, ok := e.display.(PixelStore); ok {
		s.Pixels = ps.Pixels()
	}
	return s
}

// Restore replaces the machine state with s. When s carries no pixels the
// display is cleared. The instruction cache is emptied and the speaker
// follows the restored sound timer.
func (e *Emulator) Restore(s Snapshot) error {
	if int(s.Registers.SP) > StackDepth {
		return fmt.Errorf("restore: stack pointer %d exceeds depth %d", s.Registers.SP, StackDepth)
	}

	if s.Pixels != nil {
		ps, ok := e.display.(PixelStore)
		if !ok {
			return fmt.Errorf("restore: display %T cannot load pixels", e.display)
		}
		if err := ps.LoadPixels(s.Pixels); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	} else {
		e.display.Clear()
	}

	was := e.regFile.ST
	*e.regFile = s.Registers
	e.soundEdge(was, s.Registers.ST)
	e.memory.Restore(s.Memory)
	e.waitingForKey = s.WaitingForKey
	e.lastKeys = s.LastKeys
	e.instructionCount = s.InstructionCount
	if e.cache != nil {
		e.cache.Reset()
	}

	e.log.Infof("restored state at PC=0x%03X", s.Registers.PC)
	return nil
}
