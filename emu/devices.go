package emu

import "math/rand/v2"

// NumKeys is the number of keys on the hexadecimal keypad.
const NumKeys = 16

// Keypad reports the press state of the sixteen hexadecimal keys.
// The emulator only reads it.
type Keypad interface {
	IsPressed(key uint8) bool
}

// KeyState is the default Keypad: a host-written array of press states.
type KeyState [NumKeys]bool

// IsPressed reports whether the low nibble of key is pressed.
func (k *KeyState) IsPressed(key uint8) bool {
	return k[key&0xF]
}

// Press marks key as pressed.
func (k *KeyState) Press(key uint8) {
	k[key&0xF] = true
}

// Release marks key as released.
func (k *KeyState) Release(key uint8) {
	k[key&0xF] = false
}

// Speaker is notified when the sound timer starts and stops the tone.
type Speaker interface {
	StartSound()
	StopSound()
}

type silentSpeaker struct{}

func (silentSpeaker) StartSound() {}
func (silentSpeaker) StopSound()  {}

// RandomSource supplies bytes for RND.
type RandomSource interface {
	Byte() byte
}

// Random is a RandomSource backed by math/rand/v2.
type Random struct {
	r *rand.Rand
}

// NewRandom returns a RandomSource drawing from the automatically seeded
// global generator.
func NewRandom() *Random {
	return &Random{}
}

// NewSeededRandom returns a deterministic RandomSource.
func NewSeededRandom(seed uint64) *Random {
	return &Random{r: rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))}
}

// Byte returns a random byte.
func (r *Random) Byte() byte {
	if r.r == nil {
		return byte(rand.UintN(256))
	}
	return byte(r.r.UintN(256))
}

// Quirks selects between behaviors that differ across CHIP-8 interpreters.
type Quirks struct {
	// IndexOverflowSetsVF makes ADD I, Vx write VF = 1 when I+Vx exceeds
	// 0x0FFF and VF = 0 otherwise. When false ADD I, Vx leaves VF alone.
	IndexOverflowSetsVF bool
}
