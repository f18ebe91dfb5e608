package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/chip8sim/insts"
)

// Errors returned by the emulator. All of them are fatal to the running
// program: the machine is left as it was before the failing instruction.
var (
	// ErrOutOfBounds is returned when a fetch or memory instruction addresses
	// memory outside the 4096-byte space.
	ErrOutOfBounds = errors.New("memory access out of bounds")

	// ErrUnknownOpcode is returned when an instruction word matches no pattern.
	ErrUnknownOpcode = insts.ErrUnknownOpcode

	// ErrStackOverflow is returned by CALL with a full stack.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrStackUnderflow is returned by RET with an empty stack.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrProgramTooLarge is returned when a program image does not fit
	// between ProgramStart and the end of memory.
	ErrProgramTooLarge = errors.New("program too large")

	// ErrUnsupported is returned by SYS, the machine-code call of the
	// original interpreter.
	ErrUnsupported = errors.New("unsupported instruction")

	// ErrMaxInstructions is returned once the instruction limit is reached.
	ErrMaxInstructions = errors.New("max instructions reached")
)

// ExecError describes a failed Step.
type ExecError struct {
	// PC is the address of the failing instruction.
	PC uint16
	// Word is the instruction word, when it could be fetched.
	Word uint16
	// Err is the underlying error.
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("PC=0x%03X word=0x%04X: %v", e.PC, e.Word, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecError) Unwrap() error {
	return e.Err
}
