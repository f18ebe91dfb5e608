package emu

// LoadStoreUnit implements CHIP-8 instructions that move data between the
// register file and memory through the index register. None of them modify
// I, and each checks its whole address range before touching memory or
// registers.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// StoreRegisters writes V0..Vx to mem[I..I+x].
func (lsu *LoadStoreUnit) StoreRegisters(x uint8) error {
	n := int(x&0xF) + 1
	return lsu.memory.WriteBlock(lsu.regFile.I, lsu.regFile.V[:n])
}

// LoadRegisters reads mem[I..I+x] into V0..Vx.
func (lsu *LoadStoreUnit) LoadRegisters(x uint8) error {
	n := int(x&0xF) + 1
	data, err := lsu.memory.ReadBlock(lsu.regFile.I, n)
	if err != nil {
		return err
	}
	copy(lsu.regFile.V[:n], data)
	return nil
}

// StoreBCD writes the hundreds, tens and ones digits of Vx to
// mem[I], mem[I+1] and mem[I+2].
func (lsu *LoadStoreUnit) StoreBCD(x uint8) error {
	value := lsu.regFile.ReadReg(x)
	digits := []byte{value / 100, (value / 10) % 10, value % 10}
	return lsu.memory.WriteBlock(lsu.regFile.I, digits)
}

// ReadSprite returns the n sprite rows at mem[I..I+n).
func (lsu *LoadStoreUnit) ReadSprite(n uint8) ([]byte, error) {
	return lsu.memory.ReadBlock(lsu.regFile.I, int(n&0xF))
}
