// Package cache provides a decoded-instruction cache built on Akita cache
// directories.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/chip8sim/insts"
)

// BlockSize is the size of one cached block: a single instruction word.
const BlockSize = 2

// Config holds cache geometry.
type Config struct {
	// Sets is the number of sets.
	Sets int
	// Ways is the associativity (blocks per set).
	Ways int
}

// DefaultConfig returns a geometry holding 2048 instructions, enough for
// every word-aligned address in a 4 KiB memory.
func DefaultConfig() Config {
	return Config{
		Sets: 256,
		Ways: 8,
	}
}

// Validate checks that the geometry is usable.
func (c Config) Validate() error {
	if c.Sets <= 0 {
		return fmt.Errorf("cache sets must be positive, got %d", c.Sets)
	}
	if c.Ways <= 0 {
		return fmt.Errorf("cache ways must be positive, got %d", c.Ways)
	}
	return nil
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Lookups       uint64
	Hits          uint64
	Misses        uint64
	Inserts       uint64
	Evictions     uint64
	Invalidations uint64
}

// DecodeCache maps instruction addresses to decoded instructions.
// Tags and replacement live in the Akita directory; the decoded
// instructions are stored alongside, indexed by block position.
type DecodeCache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Decoded instructions - indexed by (setID * ways + wayID)
	entries []*insts.Instruction

	stats Statistics
}

// New creates a decode cache with the given geometry.
func New(config Config) *DecodeCache {
	return &DecodeCache{
		config: config,
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Ways,
			BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		entries: make([]*insts.Instruction, config.Sets*config.Ways),
	}
}

// Config returns the cache geometry.
func (c *DecodeCache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *DecodeCache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *DecodeCache) ResetStats() {
	c.stats = Statistics{}
}

func (c *DecodeCache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Ways + block.WayID
}

func blockAddr(addr uint16) uint64 {
	return uint64(addr) &^ (BlockSize - 1)
}

// Lookup returns the instruction cached for addr.
func (c *DecodeCache) Lookup(addr uint16) (*insts.Instruction, bool) {
	c.stats.Lookups++

	block := c.directory.Lookup(0, blockAddr(addr))
	if block == nil || !block.IsValid {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	c.directory.Visit(block) // Update LRU

	return c.entries[c.blockIndex(block)], true
}

// Insert caches inst for addr, evicting the least recently used block of
// the set when it is full.
func (c *DecodeCache) Insert(addr uint16, inst *insts.Instruction) {
	tag := blockAddr(addr)

	block := c.directory.Lookup(0, tag)
	if block == nil || !block.IsValid {
		block = c.directory.FindVictim(tag)
		if block == nil {
			return
		}
		if block.IsValid {
			c.stats.Evictions++
		}
		block.Tag = tag
		block.IsValid = true
	}

	c.entries[c.blockIndex(block)] = inst
	c.stats.Inserts++
	c.directory.Visit(block)
}

// Invalidate drops the instruction whose word covers addr. Memory write
// hooks call it with every written byte address.
func (c *DecodeCache) Invalidate(addr uint16) {
	block := c.directory.Lookup(0, blockAddr(addr))
	if block == nil || !block.IsValid {
		return
	}

	block.IsValid = false
	c.entries[c.blockIndex(block)] = nil
	c.stats.Invalidations++
}

// Len returns the number of valid blocks.
func (c *DecodeCache) Len() int {
	n := 0
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				n++
			}
		}
	}
	return n
}

// Reset invalidates every block. Statistics are kept.
func (c *DecodeCache) Reset() {
	c.directory.Reset()
	for i := range c.entries {
		c.entries[i] = nil
	}
}
