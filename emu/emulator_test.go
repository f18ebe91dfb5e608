package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/chip8sim/emu"
	"github.com/sarchlab/chip8sim/insts"
)

type spySpeaker struct {
	starts, stops int
}

func (s *spySpeaker) StartSound() { s.starts++ }
func (s *spySpeaker) StopSound()  { s.stops++ }

type fixedRandom byte

func (r fixedRandom) Byte() byte { return byte(r) }

// mapCache is a minimal InstructionCache recording its traffic.
type mapCache struct {
	entries     map[uint16]*insts.Instruction
	hits        int
	invalidated []uint16
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[uint16]*insts.Instruction{}}
}

func (c *mapCache) Lookup(addr uint16) (*insts.Instruction, bool) {
	inst, ok := c.entries[addr]
	if ok {
		c.hits++
	}
	return inst, ok
}

func (c *mapCache) Insert(addr uint16, inst *insts.Instruction) { c.entries[addr] = inst }

func (c *mapCache) Invalidate(addr uint16) {
	c.invalidated = append(c.invalidated, addr)
	delete(c.entries, addr&^1)
}

func (c *mapCache) Reset() { c.entries = map[uint16]*insts.Instruction{} }

var _ = Describe("Emulator", func() {
	var (
		e       *emu.Emulator
		keys    *emu.KeyState
		speaker *spySpeaker
	)

	load := func(ws ...uint16) {
		Expect(e.LoadProgram(words(ws...))).To(Succeed())
	}

	step := func(n int) {
		for i := 0; i < n; i++ {
			result := e.Step()
			Expect(result.Err).NotTo(HaveOccurred())
		}
	}

	BeforeEach(func() {
		keys = &emu.KeyState{}
		speaker = &spySpeaker{}
		e = emu.NewEmulator(
			emu.WithKeypad(keys),
			emu.WithSpeaker(speaker),
			emu.WithRandomSource(fixedRandom(0xA5)),
		)
	})

	Describe("NewEmulator", func() {
		It("should start at the program start with the font loaded", func() {
			Expect(e.RegFile().PC).To(Equal(uint16(emu.ProgramStart)))
			Expect(e.RegFile().SP).To(Equal(uint8(0)))
			Expect(e.Memory().Read8(emu.FontBase)).To(Equal(byte(0xF0)))
		})

		It("should not share state between instances", func() {
			other := emu.NewEmulator()
			e.RegFile().V[0] = 9

			Expect(other.RegFile().V[0]).To(Equal(uint8(0)))
		})
	})

	Describe("LoadProgram", func() {
		It("should copy the program and reset registers", func() {
			e.RegFile().V[3] = 7
			e.RegFile().DT = 4
			load(0x6001)

			Expect(e.Memory().Read16(0x200)).To(Equal(uint16(0x6001)))
			Expect(e.RegFile().V[3]).To(Equal(uint8(0)))
			Expect(e.DelayTimer()).To(Equal(uint8(0)))
		})

		It("should reject an oversized program without changing state", func() {
			load(0x6001)
			step(1)

			err := e.LoadProgram(make([]byte, emu.MaxProgramSize+1))

			Expect(err).To(MatchError(emu.ErrProgramTooLarge))
			Expect(e.RegFile().V[0]).To(Equal(uint8(1)))
			Expect(e.RegFile().PC).To(Equal(uint16(0x202)))
			Expect(e.Memory().Read16(0x200)).To(Equal(uint16(0x6001)))
		})

		It("should reload the program on Reset", func() {
			load(0x6042)
			step(1)
			Expect(e.Memory().Write8(0x200, 0)).To(Succeed())

			e.Reset()

			Expect(e.RegFile().PC).To(Equal(uint16(0x200)))
			Expect(e.RegFile().V[0]).To(Equal(uint8(0)))
			Expect(e.Memory().Read16(0x200)).To(Equal(uint16(0x6042)))
			Expect(e.InstructionCount()).To(Equal(uint64(0)))
		})
	})

	Describe("arithmetic", func() {
		It("should carry on 0xFF + 0x01", func() {
			load(0x60FF, 0x6101, 0x8014)
			step(3)

			Expect(e.RegFile().V[0]).To(Equal(uint8(0x00)))
			Expect(e.RegFile().V[0xF]).To(Equal(uint8(1)))
		})

		It("should borrow on 0x01 - 0x02", func() {
			load(0x6001, 0x6102, 0x8015)
			step(3)

			Expect(e.RegFile().V[0]).To(Equal(uint8(0xFF)))
			Expect(e.RegFile().V[0xF]).To(Equal(uint8(0)))
		})

		It("should advance PC by 2 per instruction", func() {
			load(0x6001, 0x7001, 0x8010)
			step(3)

			Expect(e.RegFile().PC).To(Equal(uint16(0x206)))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
		})

		It("should use the random source for RND", func() {
			load(0xC30F)
			step(1)

			Expect(e.RegFile().V[3]).To(Equal(uint8(0x05)))
		})
	})

	Describe("skips", func() {
		It("should skip by 4 when SE matches", func() {
			load(0x6005, 0x3005)
			step(2)

			Expect(e.RegFile().PC).To(Equal(uint16(0x206)))
		})

		It("should advance by 2 when SE does not match", func() {
			load(0x6005, 0x3006)
			step(2)

			Expect(e.RegFile().PC).To(Equal(uint16(0x204)))
		})

		It("should compare registers for SNE Vx, Vy", func() {
			load(0x6001, 0x6102, 0x9010)
			step(3)

			Expect(e.RegFile().PC).To(Equal(uint16(0x208)))
		})

		It("should skip on a pressed key", func() {
			keys.Press(0xA)
			load(0x620A, 0xE29E)
			step(2)

			Expect(e.RegFile().PC).To(Equal(uint16(0x206)))
		})

		It("should skip on a released key", func() {
			load(0x620A, 0xE2A1)
			step(2)

			Expect(e.RegFile().PC).To(Equal(uint16(0x206)))
		})
	})

	Describe("control transfer", func() {
		It("should call and return", func() {
			load(0x2300)
			Expect(e.Memory().Write8(0x300, 0x00)).To(Succeed())
			Expect(e.Memory().Write8(0x301, 0xEE)).To(Succeed())

			step(1)
			Expect(e.RegFile().PC).To(Equal(uint16(0x300)))
			Expect(e.RegFile().SP).To(Equal(uint8(1)))
			Expect(e.RegFile().Stack[0]).To(Equal(uint16(0x202)))

			step(1)
			Expect(e.RegFile().PC).To(Equal(uint16(0x202)))
			Expect(e.RegFile().SP).To(Equal(uint8(0)))
		})

		It("should overflow on the 17th nested call", func() {
			load(0x2200)
			step(emu.StackDepth)

			result := e.Step()

			Expect(result.Err).To(MatchError(emu.ErrStackOverflow))
			Expect(e.RegFile().SP).To(Equal(uint8(emu.StackDepth)))
			Expect(e.RegFile().PC).To(Equal(uint16(0x200)))
		})

		It("should underflow on RET with an empty stack", func() {
			load(0x00EE)

			Expect(e.Step().Err).To(MatchError(emu.ErrStackUnderflow))
			Expect(e.RegFile().PC).To(Equal(uint16(0x200)))
		})

		It("should jump with V0 offset", func() {
			load(0x6004, 0xB300)
			step(2)

			Expect(e.RegFile().PC).To(Equal(uint16(0x304)))
		})

		It("should fail the fetch after a jump past memory", func() {
			load(0x6002, 0xBFFF)
			step(2)

			result := e.Step()

			Expect(result.Err).To(MatchError(emu.ErrOutOfBounds))
			Expect(result.Inst).To(BeNil())
		})
	})

	Describe("error reporting", func() {
		It("should report SYS as unsupported", func() {
			load(0x0123)

			result := e.Step()

			Expect(result.Err).To(MatchError(emu.ErrUnsupported))
			Expect(result.Inst.Op).To(Equal(insts.OpSYS))
			Expect(e.RegFile().PC).To(Equal(uint16(0x200)))
			Expect(e.InstructionCount()).To(Equal(uint64(0)))
		})

		It("should report an unknown opcode with its PC and word", func() {
			load(0x5121)

			result := e.Step()

			Expect(result.Err).To(MatchError(emu.ErrUnknownOpcode))
			var execErr *emu.ExecError
			Expect(errors.As(result.Err, &execErr)).To(BeTrue())
			Expect(execErr.PC).To(Equal(uint16(0x200)))
			Expect(execErr.Word).To(Equal(uint16(0x5121)))
		})

		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(emu.WithMaxInstructions(2))
			load(0x1200)
			step(2)

			Expect(e.Step().Err).To(MatchError(emu.ErrMaxInstructions))
		})
	})

	Describe("memory instructions", func() {
		It("should store BCD digits", func() {
			load(0x60FE, 0xA300, 0xF033)
			step(3)

			digits, err := e.Memory().ReadBlock(0x300, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(digits).To(Equal([]byte{2, 5, 4}))
			Expect(e.RegFile().I).To(Equal(uint16(0x300)))
		})

		It("should store and load registers through I", func() {
			load(0x6011, 0x6122, 0x6233, 0xA400, 0xF255,
				0x6000, 0x6100, 0x6200, 0xF265)
			step(9)

			Expect(e.RegFile().V[:3]).To(Equal([]uint8{0x11, 0x22, 0x33}))
			Expect(e.Memory().ReadBlock(0x400, 3)).To(Equal([]byte{0x11, 0x22, 0x33}))
			Expect(e.RegFile().I).To(Equal(uint16(0x400)))
		})

		It("should not partially store registers past the end of memory", func() {
			load(0x6011, 0x6122, 0x6233, 0xAFFE, 0xF255)
			step(4)

			result := e.Step()

			Expect(result.Err).To(MatchError(emu.ErrOutOfBounds))
			Expect(e.Memory().Read8(0xFFE)).To(Equal(byte(0)))
			Expect(e.RegFile().PC).To(Equal(uint16(0x208)))
		})

		It("should not partially load registers past the end of memory", func() {
			load(0x6011, 0xAFFF, 0xF165)
			step(2)

			Expect(e.Step().Err).To(MatchError(emu.ErrOutOfBounds))
			Expect(e.RegFile().V[0]).To(Equal(uint8(0x11)))
		})

		It("should point I at a font glyph", func() {
			load(0x600B, 0xF029)
			step(2)

			Expect(e.RegFile().I).To(Equal(emu.FontAddress(0xB)))
		})
	})

	Describe("ADD I, Vx", func() {
		It("should leave VF alone by default", func() {
			load(0xAFFF, 0x6002, 0x6F07, 0xF01E)
			step(4)

			Expect(e.RegFile().I).To(Equal(uint16(0x1001)))
			Expect(e.RegFile().V[0xF]).To(Equal(uint8(7)))
		})

		It("should set VF on overflow with IndexOverflowSetsVF", func() {
			e = emu.NewEmulator(emu.WithQuirks(emu.Quirks{IndexOverflowSetsVF: true}))
			load(0xAFFF, 0x6002, 0x6F07, 0xF01E)
			step(4)

			Expect(e.RegFile().I).To(Equal(uint16(0x1001)))
			Expect(e.RegFile().V[0xF]).To(Equal(uint8(1)))
		})
	})

	Describe("drawing", func() {
		var fb *emu.FrameBuffer

		BeforeEach(func() {
			fb = emu.NewFrameBuffer()
			e = emu.NewEmulator(emu.WithDisplay(fb))
		})

		It("should clear pixels and report collision on a second draw", func() {
			load(0xA050, 0xD005, 0xD005)

			step(2)
			Expect(fb.LitCount()).To(Equal(14))
			Expect(e.RegFile().V[0xF]).To(Equal(uint8(0)))

			step(1)
			Expect(fb.LitCount()).To(Equal(0))
			Expect(e.RegFile().V[0xF]).To(Equal(uint8(1)))
		})

		It("should wrap sprites around both edges", func() {
			load(0x603E, 0x611F, 0xA050, 0xD011)
			step(4)

			Expect(fb.Pixel(62, 31)).To(BeTrue())
			Expect(fb.Pixel(63, 31)).To(BeTrue())
			Expect(fb.Pixel(0, 31)).To(BeTrue())
			Expect(fb.Pixel(1, 31)).To(BeTrue())
			Expect(fb.LitCount()).To(Equal(4))
		})

		It("should wrap the origin", func() {
			load(0x6042, 0x6121, 0xA050, 0xD011)
			step(4)

			Expect(fb.Pixel(2, 1)).To(BeTrue())
			Expect(fb.Pixel(5, 1)).To(BeTrue())
		})

		It("should clear the screen", func() {
			load(0xA050, 0xD005, 0x00E0)
			step(3)

			Expect(fb.LitCount()).To(Equal(0))
		})

		It("should not draw a sprite past the end of memory", func() {
			load(0x6F07, 0xAFFE, 0xD005)
			step(2)

			Expect(e.Step().Err).To(MatchError(emu.ErrOutOfBounds))
			Expect(fb.LitCount()).To(Equal(0))
			Expect(e.RegFile().V[0xF]).To(Equal(uint8(7)))
		})
	})

	Describe("timers", func() {
		It("should tick DT from 2 to 1, 0, 0", func() {
			load(0x6002, 0xF015)
			step(2)
			Expect(e.DelayTimer()).To(Equal(uint8(2)))

			e.Tick()
			Expect(e.DelayTimer()).To(Equal(uint8(1)))
			e.Tick()
			Expect(e.DelayTimer()).To(Equal(uint8(0)))
			e.Tick()
			Expect(e.DelayTimer()).To(Equal(uint8(0)))
		})

		It("should read DT into a register", func() {
			load(0x6009, 0xF015, 0xF307)
			step(3)

			Expect(e.RegFile().V[3]).To(Equal(uint8(9)))
		})

		It("should drive the speaker from the sound timer", func() {
			load(0x6002, 0xF018)
			step(2)
			Expect(speaker.starts).To(Equal(1))
			Expect(e.SoundTimer()).To(Equal(uint8(2)))

			e.Tick()
			Expect(speaker.stops).To(Equal(0))
			e.Tick()
			Expect(speaker.stops).To(Equal(1))
			e.Tick()
			Expect(speaker.stops).To(Equal(1))
		})

		It("should stop the speaker on Reset", func() {
			load(0x6005, 0xF018)
			step(2)

			Expect(e.LoadProgram(words(0x1200))).To(Succeed())
			for i := 0; i < 10; i++ {
				e.Tick()
			}

			Expect(speaker.starts).To(Equal(1))
			Expect(speaker.stops).To(Equal(1))
		})

		It("should stop the speaker when ST is set to zero", func() {
			load(0x6002, 0xF018, 0x6000, 0xF018)
			step(4)

			Expect(speaker.starts).To(Equal(1))
			Expect(speaker.stops).To(Equal(1))
		})
	})

	Describe("waiting for a key", func() {
		BeforeEach(func() {
			load(0xF10A)
		})

		It("should hold PC until a key goes down", func() {
			result := e.Step()

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(result.WaitingForKey).To(BeTrue())
			Expect(e.RegFile().PC).To(Equal(uint16(0x200)))

			keys.Press(0x7)
			result = e.Step()

			Expect(result.WaitingForKey).To(BeFalse())
			Expect(e.RegFile().V[1]).To(Equal(uint8(0x7)))
			Expect(e.RegFile().PC).To(Equal(uint16(0x202)))
		})

		It("should ignore a key held when the wait began", func() {
			keys.Press(0x3)
			Expect(e.Step().WaitingForKey).To(BeTrue())
			Expect(e.Step().WaitingForKey).To(BeTrue())

			keys.Press(0x5)
			Expect(e.Step().WaitingForKey).To(BeFalse())
			Expect(e.RegFile().V[1]).To(Equal(uint8(0x5)))
		})

		It("should accept a held key once it is released and pressed again", func() {
			keys.Press(0x3)
			Expect(e.Step().WaitingForKey).To(BeTrue())

			keys.Release(0x3)
			Expect(e.Step().WaitingForKey).To(BeTrue())

			keys.Press(0x3)
			Expect(e.Step().WaitingForKey).To(BeFalse())
			Expect(e.RegFile().V[1]).To(Equal(uint8(0x3)))
		})
	})

	Describe("random source", func() {
		It("should be deterministic when seeded", func() {
			a := emu.NewEmulator(emu.WithRandomSource(emu.NewSeededRandom(42)))
			b := emu.NewEmulator(emu.WithRandomSource(emu.NewSeededRandom(42)))
			program := words(0xC0FF, 0xC1FF, 0xC2FF)
			Expect(a.LoadProgram(program)).To(Succeed())
			Expect(b.LoadProgram(program)).To(Succeed())

			for i := 0; i < 3; i++ {
				Expect(a.Step().Err).NotTo(HaveOccurred())
				Expect(b.Step().Err).NotTo(HaveOccurred())
			}

			Expect(a.RegFile().V[:3]).To(Equal(b.RegFile().V[:3]))
		})
	})

	Describe("instruction cache", func() {
		var c *mapCache

		BeforeEach(func() {
			c = newMapCache()
			e = emu.NewEmulator(emu.WithInstructionCache(c))
		})

		It("should not let a caller corrupt cached instructions", func() {
			load(0x6001, 0x1200)
			result := e.Step()
			Expect(result.Err).NotTo(HaveOccurred())
			result.Inst.NN = 0x77
			step(1)

			step(1)

			Expect(c.hits).To(Equal(1))
			Expect(e.RegFile().V[0]).To(Equal(uint8(0x01)))
		})

		It("should serve repeated fetches from the cache", func() {
			load(0x1200)
			step(3)

			Expect(c.hits).To(Equal(2))
		})

		It("should invalidate entries overwritten by the program", func() {
			// The JP at 0x206 runs once, is overwritten with LD V5, 0x99,
			// and is reached again.
			load(0x6065, 0x6199, 0xA206, 0x1208, 0xF155, 0x1206)
			step(7)

			Expect(c.invalidated).To(ContainElements(uint16(0x206), uint16(0x207)))
			Expect(e.RegFile().V[5]).To(Equal(uint8(0x99)))
		})
	})

	Describe("snapshots", func() {
		It("should restore a captured state", func() {
			load(0x6001, 0x7001, 0x7001)
			step(1)
			snap := e.Snapshot()

			step(2)
			Expect(e.RegFile().V[0]).To(Equal(uint8(3)))

			Expect(e.Restore(snap)).To(Succeed())
			Expect(e.RegFile().V[0]).To(Equal(uint8(1)))
			Expect(e.RegFile().PC).To(Equal(uint16(0x202)))
			Expect(e.InstructionCount()).To(Equal(uint64(1)))
		})

		It("should capture the display", func() {
			load(0xA050, 0xD005)
			step(2)
			snap := e.Snapshot()

			Expect(snap.Pixels).To(HaveLen(emu.DisplayWidth * emu.DisplayHeight))

			e.Reset()
			Expect(e.Restore(snap)).To(Succeed())
			fb := e.Display().(*emu.FrameBuffer)
			Expect(fb.LitCount()).To(Equal(14))
		})

		It("should clear the display when the snapshot has no pixels", func() {
			snap := e.Snapshot()
			snap.Pixels = nil
			load(0xA050, 0xD005)
			step(2)

			Expect(e.Restore(snap)).To(Succeed())
			fb := e.Display().(*emu.FrameBuffer)
			Expect(fb.LitCount()).To(Equal(0))
		})

		It("should start the speaker for a restored sound timer", func() {
			load(0x6005, 0xF018)
			step(2)
			snap := e.Snapshot()
			e.Reset()
			Expect(speaker.stops).To(Equal(1))

			Expect(e.Restore(snap)).To(Succeed())

			Expect(speaker.starts).To(Equal(2))
			for i := 0; i < 5; i++ {
				e.Tick()
			}
			Expect(speaker.stops).To(Equal(2))
		})

		It("should stop the speaker when restoring a silent state", func() {
			snap := e.Snapshot()
			load(0x6005, 0xF018)
			step(2)

			Expect(e.Restore(snap)).To(Succeed())

			Expect(speaker.starts).To(Equal(1))
			Expect(speaker.stops).To(Equal(1))
			Expect(e.SoundTimer()).To(Equal(uint8(0)))
		})

		It("should reject a stack pointer beyond the stack", func() {
			snap := e.Snapshot()
			snap.Registers.SP = emu.StackDepth + 1

			Expect(e.Restore(snap)).NotTo(Succeed())
		})
	})
})
