package insts

// Encode packs an instruction back into its 16-bit instruction word.
// Operand fields are truncated to their encoded width. An instruction with
// an unknown opcode encodes to 0.
func Encode(inst *Instruction) uint16 {
	if inst == nil || inst.Op == OpUnknown || inst.Op >= numOps {
		return 0
	}

	p := opPatterns[inst.Op]
	word := p.value

	switch p.format {
	case FormatNNN:
		word |= inst.NNN & 0x0FFF
	case FormatXNN:
		word |= uint16(inst.X&0xF)<<8 | uint16(inst.NN)
	case FormatXY:
		word |= uint16(inst.X&0xF)<<8 | uint16(inst.Y&0xF)<<4
	case FormatXYN:
		word |= uint16(inst.X&0xF)<<8 | uint16(inst.Y&0xF)<<4 | uint16(inst.N&0xF)
	case FormatX:
		word |= uint16(inst.X&0xF) << 8
	}

	return word
}
