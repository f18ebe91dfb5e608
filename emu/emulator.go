// Package emu provides functional CHIP-8 emulation.
package emu

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/sarchlab/chip8sim/insts"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Inst is a copy of the instruction that was executed, nil if fetch or
	// decode failed.
	Inst *insts.Instruction

	// WaitingForKey is true while LD Vx, K is waiting for a key press.
	// PC stays on that instruction until a key goes down.
	WaitingForKey bool

	// Err is set if the instruction failed. It wraps one of the package
	// sentinel errors in an *ExecError.
	Err error
}

// InstructionCache holds decoded instructions by address. Entries for an
// address are dropped when memory at that address is written.
type InstructionCache interface {
	Lookup(addr uint16) (*insts.Instruction, bool)
	Insert(addr uint16, inst *insts.Instruction)
	Invalidate(addr uint16)
	Reset()
}

// Emulator executes CHIP-8 programs functionally.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder
	cache   InstructionCache

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	// Collaborators
	display Display
	keypad  Keypad
	speaker Speaker
	random  RandomSource

	quirks Quirks
	log    commonlog.Logger

	// program is the last accepted program image, reloaded by Reset.
	program []byte

	// Key wait state for LD Vx, K.
	waitingForKey bool
	lastKeys      [NumKeys]bool

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithDisplay sets the display the emulator draws on.
func WithDisplay(d Display) EmulatorOption {
	return func(e *Emulator) {
		e.display = d
	}
}

// WithKeypad sets the keypad the emulator polls.
func WithKeypad(k Keypad) EmulatorOption {
	return func(e *Emulator) {
		e.keypad = k
	}
}

// WithSpeaker sets the speaker notified by the sound timer.
func WithSpeaker(s Speaker) EmulatorOption {
	return func(e *Emulator) {
		e.speaker = s
	}
}

// WithRandomSource sets the source of bytes for RND.
func WithRandomSource(r RandomSource) EmulatorOption {
	return func(e *Emulator) {
		e.random = r
	}
}

// WithQuirks sets interpreter-specific behaviors.
func WithQuirks(q Quirks) EmulatorOption {
	return func(e *Emulator) {
		e.quirks = q
	}
}

// WithInstructionCache enables decoded-instruction caching.
func WithInstructionCache(c InstructionCache) EmulatorOption {
	return func(e *Emulator) {
		e.cache = c
	}
}

// WithLogger sets the logger. The default is the "chip8sim.emu" logger.
func WithLogger(l commonlog.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.log = l
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new CHIP-8 emulator with an empty program loaded.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{PC: ProgramStart},
		memory:  NewMemory(),
		decoder: insts.NewDecoder(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.display == nil {
		e.display = NewFrameBuffer()
	}
	if e.keypad == nil {
		e.keypad = &KeyState{}
	}
	if e.speaker == nil {
		e.speaker = silentSpeaker{}
	}
	if e.random == nil {
		e.random = NewRandom()
	}
	if e.log == nil {
		e.log = commonlog.GetLogger("chip8sim.emu")
	}

	e.alu = NewALU(e.regFile, e.quirks)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)

	if e.cache != nil {
		e.memory.OnWrite(e.cache.Invalidate)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// Display returns the display the emulator draws on.
func (e *Emulator) Display() Display {
	return e.display
}

// Keypad returns the keypad the emulator polls.
func (e *Emulator) Keypad() Keypad {
	return e.keypad
}

// SoundTimer returns the sound timer. A non-zero value means the tone is on.
func (e *Emulator) SoundTimer() uint8 {
	return e.regFile.ST
}

// DelayTimer returns the delay timer.
func (e *Emulator) DelayTimer() uint8 {
	return e.regFile.DT
}

// InstructionCount returns the number of instructions executed. Polls of
// LD Vx, K that are still waiting are not counted.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// WaitingForKey reports whether the emulator is blocked on LD Vx, K.
func (e *Emulator) WaitingForKey() bool {
	return e.waitingForKey
}

// LoadProgram resets the machine and loads program at ProgramStart.
// An oversized program returns ErrProgramTooLarge before anything changes.
func (e *Emulator) LoadProgram(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrProgramTooLarge, len(program), MaxProgramSize)
	}

	e.program = append([]byte(nil), program...)
	e.Reset()
	e.log.Infof("loaded %d byte program at 0x%03X", len(program), ProgramStart)
	return nil
}

// Reset restores the power-on state and reloads the last accepted program.
func (e *Emulator) Reset() {
	was := e.regFile.ST
	*e.regFile = RegFile{PC: ProgramStart}
	e.soundEdge(was, 0)
	// LoadProgram only fails on size, which was checked on acceptance.
	_ = e.memory.LoadProgram(e.program)
	e.display.Clear()
	if e.cache != nil {
		e.cache.Reset()
	}
	e.waitingForKey = false
	e.lastKeys = [NumKeys]bool{}
	e.instructionCount = 0
}

// Tick decrements the delay and sound timers by one each, holding at zero.
// The host calls it at 60 Hz independently of Step.
func (e *Emulator) Tick() {
	if e.regFile.DT > 0 {
		e.regFile.DT--
	}
	if e.regFile.ST > 0 {
		e.regFile.ST--
		if e.regFile.ST == 0 {
			e.speaker.StopSound()
		}
	}
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	pc := e.regFile.PC

	// Check instruction limit before executing
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: &ExecError{PC: pc, Err: ErrMaxInstructions}}
	}

	// 1. Fetch and 2. Decode
	inst, word, err := e.fetch(pc)
	if err != nil {
		e.log.Errorf("PC=0x%03X: %v", pc, err)
		return StepResult{Err: &ExecError{PC: pc, Word: word, Err: err}}
	}

	e.log.Debugf("PC=0x%03X %04X %s", pc, word, inst.Op)

	// 3. Execute
	result := e.execute(inst)
	copied := *inst
	result.Inst = &copied
	if result.Err != nil {
		e.log.Errorf("PC=0x%03X %04X %s: %v", pc, word, inst.Op, result.Err)
		result.Err = &ExecError{PC: pc, Word: word, Err: result.Err}
		return result
	}

	if !result.WaitingForKey {
		e.instructionCount++
	}

	return result
}

// fetch reads and decodes the instruction at pc, going through the
// instruction cache when one is configured.
func (e *Emulator) fetch(pc uint16) (*insts.Instruction, uint16, error) {
	cacheable := e.cache != nil && pc%InstructionSize == 0
	if cacheable {
		if inst, ok := e.cache.Lookup(pc); ok {
			return inst, insts.Encode(inst), nil
		}
	}

	word, err := e.memory.Read16(pc)
	if err != nil {
		return nil, 0, err
	}

	inst, err := e.decoder.Decode(word)
	if err != nil {
		return nil, word, err
	}

	if cacheable {
		e.cache.Insert(pc, inst)
	}

	return inst, word, nil
}

// execute dispatches and executes a decoded instruction.
func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	rf := e.regFile

	switch inst.Op {
	// Control transfer: PC is set by the branch unit.
	case insts.OpJP:
		e.branchUnit.JP(inst.NNN)
		return StepResult{}
	case insts.OpJPV0:
		e.branchUnit.JPV0(inst.NNN)
		return StepResult{}
	case insts.OpCALL:
		return StepResult{Err: e.branchUnit.CALL(inst.NNN)}
	case insts.OpRET:
		return StepResult{Err: e.branchUnit.RET()}
	case insts.OpSEImm:
		e.branchUnit.Skip(rf.ReadReg(inst.X) == inst.NN)
		return StepResult{}
	case insts.OpSNEImm:
		e.branchUnit.Skip(rf.ReadReg(inst.X) != inst.NN)
		return StepResult{}
	case insts.OpSEReg:
		e.branchUnit.Skip(rf.ReadReg(inst.X) == rf.ReadReg(inst.Y))
		return StepResult{}
	case insts.OpSNEReg:
		e.branchUnit.Skip(rf.ReadReg(inst.X) != rf.ReadReg(inst.Y))
		return StepResult{}
	case insts.OpSKP:
		e.branchUnit.Skip(e.keypad.IsPressed(rf.ReadReg(inst.X) & 0xF))
		return StepResult{}
	case insts.OpSKNP:
		e.branchUnit.Skip(!e.keypad.IsPressed(rf.ReadReg(inst.X) & 0xF))
		return StepResult{}
	case insts.OpLDVxK:
		return e.executeWaitKey(inst)

	case insts.OpSYS:
		return StepResult{Err: fmt.Errorf("%w: SYS 0x%03X", ErrUnsupported, inst.NNN)}

	case insts.OpCLS:
		e.display.Clear()
	case insts.OpDRW:
		if err := e.executeDraw(inst); err != nil {
			return StepResult{Err: err}
		}

	case insts.OpLDImm:
		e.alu.LDImm(inst.X, inst.NN)
	case insts.OpADDImm:
		e.alu.ADDImm(inst.X, inst.NN)
	case insts.OpLDReg:
		e.alu.LD(inst.X, inst.Y)
	case insts.OpOR:
		e.alu.OR(inst.X, inst.Y)
	case insts.OpAND:
		e.alu.AND(inst.X, inst.Y)
	case insts.OpXOR:
		e.alu.XOR(inst.X, inst.Y)
	case insts.OpADDReg:
		e.alu.ADD(inst.X, inst.Y)
	case insts.OpSUB:
		e.alu.SUB(inst.X, inst.Y)
	case insts.OpSHR:
		e.alu.SHR(inst.X)
	case insts.OpSUBN:
		e.alu.SUBN(inst.X, inst.Y)
	case insts.OpSHL:
		e.alu.SHL(inst.X)
	case insts.OpRND:
		e.alu.RND(inst.X, inst.NN, e.random.Byte())

	case insts.OpLDI:
		e.alu.LDI(inst.NNN)
	case insts.OpADDI:
		e.alu.ADDI(inst.X)
	case insts.OpLDF:
		e.alu.LDF(inst.X)

	case insts.OpLDB:
		if err := e.lsu.StoreBCD(inst.X); err != nil {
			return StepResult{Err: err}
		}
	case insts.OpLDIVx:
		if err := e.lsu.StoreRegisters(inst.X); err != nil {
			return StepResult{Err: err}
		}
	case insts.OpLDVxI:
		if err := e.lsu.LoadRegisters(inst.X); err != nil {
			return StepResult{Err: err}
		}

	case insts.OpLDVxDT:
		rf.WriteReg(inst.X, rf.DT)
	case insts.OpLDDTVx:
		rf.DT = rf.ReadReg(inst.X)
	case insts.OpLDSTVx:
		e.setSoundTimer(rf.ReadReg(inst.X))

	default:
		return StepResult{Err: &insts.DecodeError{Word: insts.Encode(inst)}}
	}

	// Advance PC (for non-control-transfer instructions)
	rf.PC += InstructionSize

	return StepResult{}
}

// executeDraw reads the sprite at I and XORs it onto the display.
// VF is written with the collision result.
func (e *Emulator) executeDraw(inst *insts.Instruction) error {
	sprite, err := e.lsu.ReadSprite(inst.N)
	if err != nil {
		return err
	}
	collided := drawSprite(e.display, sprite, e.regFile.ReadReg(inst.X), e.regFile.ReadReg(inst.Y))
	e.regFile.SetFlag(collided)
	return nil
}

// executeWaitKey implements LD Vx, K. The first call records the keypad and
// leaves PC in place. Later calls store the first key that went from
// released to pressed since the previous poll and advance PC.
func (e *Emulator) executeWaitKey(inst *insts.Instruction) StepResult {
	current := e.pollKeys()

	if !e.waitingForKey {
		e.waitingForKey = true
		e.lastKeys = current
		return StepResult{WaitingForKey: true}
	}

	for key := range current {
		if current[key] && !e.lastKeys[key] {
			e.regFile.WriteReg(inst.X, uint8(key))
			e.waitingForKey = false
			e.lastKeys = [NumKeys]bool{}
			e.regFile.PC += InstructionSize
			return StepResult{}
		}
	}

	e.lastKeys = current
	return StepResult{WaitingForKey: true}
}

func (e *Emulator) pollKeys() [NumKeys]bool {
	var keys [NumKeys]bool
	for key := range keys {
		keys[key] = e.keypad.IsPressed(uint8(key))
	}
	return keys
}

// setSoundTimer writes ST and notifies the speaker on tone edges.
func (e *Emulator) setSoundTimer(value uint8) {
	was := e.regFile.ST
	e.regFile.ST = value
	e.soundEdge(was, value)
}

// soundEdge notifies the speaker when the sound timer moves between zero
// and non-zero.
func (e *Emulator) soundEdge(was, now uint8) {
	switch {
	case was == 0 && now > 0:
		e.speaker.StartSound()
	case was > 0 && now == 0:
		e.speaker.StopSound()
	}
}
