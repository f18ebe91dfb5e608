package emu

// InstructionSize is the size of a CHIP-8 instruction in bytes.
const InstructionSize = 2

// BranchUnit implements CHIP-8 control transfer. Every method leaves PC
// pointing at the next instruction to execute.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// JP jumps to the absolute address nnn.
func (b *BranchUnit) JP(nnn uint16) {
	b.regFile.PC = nnn
}

// JPV0 jumps to nnn + V0.
func (b *BranchUnit) JPV0(nnn uint16) {
	b.regFile.PC = nnn + uint16(b.regFile.V[0])
}

// CALL pushes the address of the following instruction and jumps to nnn.
// A full stack returns ErrStackOverflow with PC and stack unchanged.
func (b *BranchUnit) CALL(nnn uint16) error {
	if err := b.regFile.Push(b.regFile.PC + InstructionSize); err != nil {
		return err
	}
	b.regFile.PC = nnn
	return nil
}

// RET pops the return address into PC.
// An empty stack returns ErrStackUnderflow with PC unchanged.
func (b *BranchUnit) RET() error {
	addr, err := b.regFile.Pop()
	if err != nil {
		return err
	}
	b.regFile.PC = addr
	return nil
}

// Skip advances PC past the next instruction when cond holds, otherwise
// to the next instruction.
func (b *BranchUnit) Skip(cond bool) {
	if cond {
		b.regFile.PC += 2 * InstructionSize
		return
	}
	b.regFile.PC += InstructionSize
}
