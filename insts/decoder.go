package insts

import (
	"errors"
	"fmt"
)

// Op represents a CHIP-8 opcode.
type Op uint8

// CHIP-8 opcodes.
const (
	OpUnknown Op = iota
	OpSYS        // 0nnn
	OpCLS        // 00E0
	OpRET        // 00EE
	OpJP         // 1nnn
	OpCALL       // 2nnn
	OpSEImm      // 3xkk
	OpSNEImm     // 4xkk
	OpSEReg      // 5xy0
	OpLDImm      // 6xkk
	OpADDImm     // 7xkk
	OpLDReg      // 8xy0
	OpOR         // 8xy1
	OpAND        // 8xy2
	OpXOR        // 8xy3
	OpADDReg     // 8xy4
	OpSUB        // 8xy5
	OpSHR        // 8xy6
	OpSUBN       // 8xy7
	OpSHL        // 8xyE
	OpSNEReg     // 9xy0
	OpLDI        // Annn
	OpJPV0       // Bnnn
	OpRND        // Cxkk
	OpDRW        // Dxyn
	OpSKP        // Ex9E
	OpSKNP       // ExA1
	OpLDVxDT     // Fx07
	OpLDVxK      // Fx0A
	OpLDDTVx     // Fx15
	OpLDSTVx     // Fx18
	OpADDI       // Fx1E
	OpLDF        // Fx29
	OpLDB        // Fx33
	OpLDIVx      // Fx55
	OpLDVxI      // Fx65

	numOps
)

var opNames = [numOps]string{
	OpUnknown: "UNKNOWN",
	OpSYS:     "SYS",
	OpCLS:     "CLS",
	OpRET:     "RET",
	OpJP:      "JP",
	OpCALL:    "CALL",
	OpSEImm:   "SE",
	OpSNEImm:  "SNE",
	OpSEReg:   "SE",
	OpLDImm:   "LD",
	OpADDImm:  "ADD",
	OpLDReg:   "LD",
	OpOR:      "OR",
	OpAND:     "AND",
	OpXOR:     "XOR",
	OpADDReg:  "ADD",
	OpSUB:     "SUB",
	OpSHR:     "SHR",
	OpSUBN:    "SUBN",
	OpSHL:     "SHL",
	OpSNEReg:  "SNE",
	OpLDI:     "LD",
	OpJPV0:    "JP",
	OpRND:     "RND",
	OpDRW:     "DRW",
	OpSKP:     "SKP",
	OpSKNP:    "SKNP",
	OpLDVxDT:  "LD",
	OpLDVxK:   "LD",
	OpLDDTVx:  "LD",
	OpLDSTVx:  "LD",
	OpADDI:    "ADD",
	OpLDF:     "LD",
	OpLDB:     "LD",
	OpLDIVx:   "LD",
	OpLDVxI:   "LD",
}

// String returns the mnemonic of the opcode.
func (o Op) String() string {
	if o >= numOps {
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
	return opNames[o]
}

// Format represents which operand fields an instruction carries.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatNone           // no operands (CLS, RET)
	FormatNNN            // 12-bit address
	FormatXNN            // register + 8-bit immediate
	FormatXY             // two registers
	FormatXYN            // two registers + 4-bit immediate
	FormatX              // one register
)

// Instruction represents a decoded CHIP-8 instruction.
// Only the fields used by Format are populated; the rest are zero.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Operand layout

	X   uint8  // Register index from bits [11:8]
	Y   uint8  // Register index from bits [7:4]
	N   uint8  // 4-bit immediate from bits [3:0]
	NN  uint8  // 8-bit immediate from bits [7:0]
	NNN uint16 // 12-bit address from bits [11:0]
}

// ErrUnknownOpcode is returned when an instruction word matches no pattern.
var ErrUnknownOpcode = errors.New("unknown opcode")

// DecodeError reports the instruction word that failed to decode.
type DecodeError struct {
	Word uint16
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: 0x%04X", ErrUnknownOpcode, e.Word)
}

// Unwrap returns ErrUnknownOpcode.
func (e *DecodeError) Unwrap() error {
	return ErrUnknownOpcode
}

// pattern matches instruction words whose masked bits equal value.
type pattern struct {
	mask   uint16
	value  uint16
	op     Op
	format Format
}

// patterns is indexed by the leading nibble of the instruction word. Within
// a family, more specific patterns come first.
var patterns = [16][]pattern{
	0x0: {
		{0xFFFF, 0x00E0, OpCLS, FormatNone},
		{0xFFFF, 0x00EE, OpRET, FormatNone},
		{0xF000, 0x0000, OpSYS, FormatNNN},
	},
	0x1: {{0xF000, 0x1000, OpJP, FormatNNN}},
	0x2: {{0xF000, 0x2000, OpCALL, FormatNNN}},
	0x3: {{0xF000, 0x3000, OpSEImm, FormatXNN}},
	0x4: {{0xF000, 0x4000, OpSNEImm, FormatXNN}},
	0x5: {{0xF00F, 0x5000, OpSEReg, FormatXY}},
	0x6: {{0xF000, 0x6000, OpLDImm, FormatXNN}},
	0x7: {{0xF000, 0x7000, OpADDImm, FormatXNN}},
	0x8: {
		{0xF00F, 0x8000, OpLDReg, FormatXY},
		{0xF00F, 0x8001, OpOR, FormatXY},
		{0xF00F, 0x8002, OpAND, FormatXY},
		{0xF00F, 0x8003, OpXOR, FormatXY},
		{0xF00F, 0x8004, OpADDReg, FormatXY},
		{0xF00F, 0x8005, OpSUB, FormatXY},
		{0xF00F, 0x8006, OpSHR, FormatXY},
		{0xF00F, 0x8007, OpSUBN, FormatXY},
		{0xF00F, 0x800E, OpSHL, FormatXY},
	},
	0x9: {{0xF00F, 0x9000, OpSNEReg, FormatXY}},
	0xA: {{0xF000, 0xA000, OpLDI, FormatNNN}},
	0xB: {{0xF000, 0xB000, OpJPV0, FormatNNN}},
	0xC: {{0xF000, 0xC000, OpRND, FormatXNN}},
	0xD: {{0xF000, 0xD000, OpDRW, FormatXYN}},
	0xE: {
		{0xF0FF, 0xE09E, OpSKP, FormatX},
		{0xF0FF, 0xE0A1, OpSKNP, FormatX},
	},
	0xF: {
		{0xF0FF, 0xF007, OpLDVxDT, FormatX},
		{0xF0FF, 0xF00A, OpLDVxK, FormatX},
		{0xF0FF, 0xF015, OpLDDTVx, FormatX},
		{0xF0FF, 0xF018, OpLDSTVx, FormatX},
		{0xF0FF, 0xF01E, OpADDI, FormatX},
		{0xF0FF, 0xF029, OpLDF, FormatX},
		{0xF0FF, 0xF033, OpLDB, FormatX},
		{0xF0FF, 0xF055, OpLDIVx, FormatX},
		{0xF0FF, 0xF065, OpLDVxI, FormatX},
	},
}

// opPatterns maps each opcode back to its pattern, for encoding.
var opPatterns = func() [numOps]pattern {
	var table [numOps]pattern
	for _, family := range patterns {
		for _, p := range family {
			table[p.op] = p
		}
	}
	return table
}()

// Decoder decodes CHIP-8 instruction words into instructions.
type Decoder struct{}

// NewDecoder creates a new CHIP-8 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 16-bit CHIP-8 instruction word.
// Words that match no pattern return a *DecodeError.
func (d *Decoder) Decode(word uint16) (*Instruction, error) {
	family := patterns[word>>12]
	for _, p := range family {
		if word&p.mask != p.value {
			continue
		}
		inst := &Instruction{Op: p.op, Format: p.format}
		d.extractOperands(word, inst)
		return inst, nil
	}
	return nil, &DecodeError{Word: word}
}

// extractOperands fills the operand fields used by inst.Format.
func (d *Decoder) extractOperands(word uint16, inst *Instruction) {
	switch inst.Format {
	case FormatNNN:
		inst.NNN = word & 0x0FFF
	case FormatXNN:
		inst.X = extractX(word)
		inst.NN = uint8(word & 0x00FF)
	case FormatXY:
		inst.X = extractX(word)
		inst.Y = extractY(word)
	case FormatXYN:
		inst.X = extractX(word)
		inst.Y = extractY(word)
		inst.N = uint8(word & 0x000F)
	case FormatX:
		inst.X = extractX(word)
	}
}

// extractX extracts the X register nibble, bits [11:8].
func extractX(word uint16) uint8 {
	return uint8((word & 0x0F00) >> 8)
}

// extractY extracts the Y register nibble, bits [7:4].
func extractY(word uint16) uint8 {
	return uint8((word & 0x00F0) >> 4)
}
