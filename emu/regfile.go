package emu

// Register file geometry.
const (
	// NumRegisters is the number of general-purpose V registers.
	NumRegisters = 16

	// FlagRegister is VF, the implicit carry/borrow/shift/collision output.
	FlagRegister = 0xF

	// StackDepth is the number of return addresses the call stack holds.
	StackDepth = 16
)

// RegFile represents the CHIP-8 register file.
// It holds the sixteen V registers, the index register I, the program
// counter, the call stack with its pointer, and the two timers.
type RegFile struct {
	// V holds general-purpose registers V0-VF.
	// VF doubles as the flag output of arithmetic, shift and draw instructions.
	V [NumRegisters]uint8

	// I is the index register.
	I uint16

	// PC is the program counter.
	PC uint16

	// SP is the number of occupied stack slots (the next free slot).
	SP uint8

	// Stack holds return addresses pushed by CALL.
	Stack [StackDepth]uint16

	// DT is the delay timer.
	DT uint8

	// ST is the sound timer.
	ST uint8
}

// ReadReg reads a V register. Only the low nibble of reg is used.
func (r *RegFile) ReadReg(reg uint8) uint8 {
	return r.V[reg&0xF]
}

// WriteReg writes a V register. Only the low nibble of reg is used.
func (r *RegFile) WriteReg(reg uint8, value uint8) {
	r.V[reg&0xF] = value
}

// SetFlag writes VF as 1 or 0.
func (r *RegFile) SetFlag(set bool) {
	if set {
		r.V[FlagRegister] = 1
		return
	}
	r.V[FlagRegister] = 0
}

// Push pushes a return address. A full stack returns ErrStackOverflow and
// leaves the stack unchanged.
func (r *RegFile) Push(addr uint16) error {
	if int(r.SP) >= StackDepth {
		return ErrStackOverflow
	}
	r.Stack[r.SP] = addr
	r.SP++
	return nil
}

// Pop pops the most recent return address. An empty stack returns
// ErrStackUnderflow and leaves the stack unchanged.
func (r *RegFile) Pop() (uint16, error) {
	if r.SP == 0 {
		return 0, ErrStackUnderflow
	}
	r.SP--
	return r.Stack[r.SP], nil
}
