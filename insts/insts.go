// Package insts provides CHIP-8 instruction definitions and decoding.
//
// This package turns 16-bit CHIP-8 instruction words into structured
// instruction representations and back. It covers the full classic
// instruction set:
//   - Flow control: SYS, CLS, RET, JP, JP V0, CALL
//   - Conditional skips: SE, SNE, SKP, SKNP
//   - Register arithmetic and logic: LD, ADD, OR, AND, XOR, SUB, SUBN, SHR, SHL
//   - Index, memory and font: LD I, ADD I, LD F, LD B, LD [I], LD Vx [I]
//   - Timers, keypad, random, display: LD DT/ST/K, RND, DRW
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x8124) // ADD V1, V2
//	fmt.Printf("Op: %v, X: %d, Y: %d\n", inst.Op, inst.X, inst.Y)
package insts
