// Package config holds the TOML configuration of the simulator.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/sarchlab/chip8sim/cache"
	"github.com/sarchlab/chip8sim/emu"
)

// Config holds every tunable of a simulator run.
type Config struct {
	Quirks QuirksConfig `toml:"quirks"`
	Clock  ClockConfig  `toml:"clock"`
	Random RandomConfig `toml:"random"`
	Cache  CacheConfig  `toml:"cache"`
}

// QuirksConfig selects interpreter-specific behaviors.
type QuirksConfig struct {
	// IndexOverflowSetsVF makes ADD I, Vx report overflow past 0x0FFF in VF.
	// Default: false.
	IndexOverflowSetsVF bool `toml:"index_overflow_sets_vf"`
}

// ClockConfig sets how fast the host drives the CPU and the timers.
type ClockConfig struct {
	// CyclesPerFrame is the number of instructions executed per timer tick.
	// Default: 10 (600 instructions per second at 60 Hz).
	CyclesPerFrame int `toml:"cycles_per_frame"`

	// FrameHz is the timer tick rate. Default: 60.
	FrameHz int `toml:"frame_hz"`
}

// RandomConfig seeds RND.
type RandomConfig struct {
	// Seed makes RND deterministic when non-zero. Zero draws from the
	// automatically seeded global generator.
	Seed uint64 `toml:"seed"`
}

// CacheConfig controls the decoded-instruction cache.
type CacheConfig struct {
	// Enabled turns the cache on. Default: true.
	Enabled bool `toml:"enabled"`
	// Sets is the number of sets. Default: 256.
	Sets int `toml:"sets"`
	// Ways is the associativity. Default: 8.
	Ways int `toml:"ways"`
}

// Default returns the configuration of a classic CHIP-8 interpreter.
func Default() *Config {
	cc := cache.DefaultConfig()
	return &Config{
		Clock: ClockConfig{
			CyclesPerFrame: 10,
			FrameHz:        60,
		},
		Cache: CacheConfig{
			Enabled: true,
			Sets:    cc.Sets,
			Ways:    cc.Ways,
		},
	}
}

// Load reads a TOML file. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes TOML text over the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Clock.CyclesPerFrame <= 0 {
		return fmt.Errorf("clock.cycles_per_frame must be > 0")
	}
	if c.Clock.FrameHz <= 0 {
		return fmt.Errorf("clock.frame_hz must be > 0")
	}
	if c.Cache.Enabled {
		if err := c.cacheConfig().Validate(); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

func (c *Config) cacheConfig() cache.Config {
	return cache.Config{Sets: c.Cache.Sets, Ways: c.Cache.Ways}
}

// EmulatorOptions translates the configuration into emulator options.
// A fresh decode cache and random source are created on every call.
func (c *Config) EmulatorOptions() []emu.EmulatorOption {
	opts := []emu.EmulatorOption{
		emu.WithQuirks(emu.Quirks{
			IndexOverflowSetsVF: c.Quirks.IndexOverflowSetsVF,
		}),
	}

	if c.Random.Seed != 0 {
		opts = append(opts, emu.WithRandomSource(emu.NewSeededRandom(c.Random.Seed)))
	}

	if c.Cache.Enabled {
		opts = append(opts, emu.WithInstructionCache(cache.New(c.cacheConfig())))
	}

	return opts
}
