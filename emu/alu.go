package emu

// ALU implements CHIP-8 register arithmetic and logic.
//
// Every flag-producing operation computes VF from its operands before the
// result is written, then writes the result, then writes VF. When the
// destination is VF itself the flag therefore wins.
type ALU struct {
	regFile *RegFile
	quirks  Quirks
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile, quirks Quirks) *ALU {
	return &ALU{regFile: regFile, quirks: quirks}
}

// LDImm sets Vx = kk.
func (a *ALU) LDImm(x, kk uint8) {
	a.regFile.WriteReg(x, kk)
}

// ADDImm sets Vx = Vx + kk with 8-bit wraparound. VF is not affected.
func (a *ALU) ADDImm(x, kk uint8) {
	a.regFile.WriteReg(x, a.regFile.ReadReg(x)+kk)
}

// LD sets Vx = Vy.
func (a *ALU) LD(x, y uint8) {
	a.regFile.WriteReg(x, a.regFile.ReadReg(y))
}

// OR sets Vx = Vx | Vy. VF is not affected.
func (a *ALU) OR(x, y uint8) {
	a.regFile.WriteReg(x, a.regFile.ReadReg(x)|a.regFile.ReadReg(y))
}

// AND sets Vx = Vx & Vy. VF is not affected.
func (a *ALU) AND(x, y uint8) {
	a.regFile.WriteReg(x, a.regFile.ReadReg(x)&a.regFile.ReadReg(y))
}

// XOR sets Vx = Vx ^ Vy. VF is not affected.
func (a *ALU) XOR(x, y uint8) {
	a.regFile.WriteReg(x, a.regFile.ReadReg(x)^a.regFile.ReadReg(y))
}

// ADD sets Vx = Vx + Vy. Writes VF = 1 if the unsigned sum exceeds 255.
func (a *ALU) ADD(x, y uint8) {
	op1 := a.regFile.ReadReg(x)
	op2 := a.regFile.ReadReg(y)
	carry := uint16(op1)+uint16(op2) > 0xFF

	a.regFile.WriteReg(x, op1+op2)
	a.regFile.SetFlag(carry)
}

// SUB sets Vx = Vx - Vy. Writes VF = 1 if Vx >= Vy (no borrow).
func (a *ALU) SUB(x, y uint8) {
	op1 := a.regFile.ReadReg(x)
	op2 := a.regFile.ReadReg(y)
	noBorrow := op1 >= op2

	a.regFile.WriteReg(x, op1-op2)
	a.regFile.SetFlag(noBorrow)
}

// SUBN sets Vx = Vy - Vx. Writes VF = 1 if Vy >= Vx (no borrow).
func (a *ALU) SUBN(x, y uint8) {
	op1 := a.regFile.ReadReg(x)
	op2 := a.regFile.ReadReg(y)
	noBorrow := op2 >= op1

	a.regFile.WriteReg(x, op2-op1)
	a.regFile.SetFlag(noBorrow)
}

// SHR sets Vx = Vx >> 1. Writes VF = the bit shifted out (bit 0).
func (a *ALU) SHR(x uint8) {
	value := a.regFile.ReadReg(x)
	out := value & 0x01

	a.regFile.WriteReg(x, value>>1)
	a.regFile.V[FlagRegister] = out
}

// SHL sets Vx = Vx << 1. Writes VF = the bit shifted out (bit 7).
func (a *ALU) SHL(x uint8) {
	value := a.regFile.ReadReg(x)
	out := value >> 7

	a.regFile.WriteReg(x, value<<1)
	a.regFile.V[FlagRegister] = out
}

// RND sets Vx = random & kk.
func (a *ALU) RND(x, kk, random uint8) {
	a.regFile.WriteReg(x, random&kk)
}

// LDI sets I = nnn.
func (a *ALU) LDI(nnn uint16) {
	a.regFile.I = nnn
}

// ADDI sets I = I + Vx with 16-bit wraparound. With
// Quirks.IndexOverflowSetsVF it also writes VF = 1 if the sum leaves the
// 12-bit address range, else 0; without it VF is not affected.
func (a *ALU) ADDI(x uint8) {
	sum := uint32(a.regFile.I) + uint32(a.regFile.ReadReg(x))
	a.regFile.I = uint16(sum)
	if a.quirks.IndexOverflowSetsVF {
		a.regFile.SetFlag(sum > 0x0FFF)
	}
}

// LDF sets I to the font glyph of the low nibble of Vx.
func (a *ALU) LDF(x uint8) {
	a.regFile.I = FontAddress(a.regFile.ReadReg(x))
}
