// Package main provides a profiling wrapper for chip8sim to measure
// interpreter throughput and decode cache behavior.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/chip8sim/cache"
	"github.com/sarchlab/chip8sim/emu"
	"github.com/sarchlab/chip8sim/loader"
)

var (
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile  = flag.String("memprofile", "", "write memory profile to file")
	instruction = flag.Uint64("max-instr", 10000000, "instructions to execute")
	noCache     = flag.Bool("no-cache", false, "disable the decode cache")
	seed        = flag.Uint64("seed", 1, "random seed")
	tickEvery   = flag.Int("tick-every", 10, "instructions between timer ticks")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 || *instruction == 0 || *tickEvery <= 0 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.ch8>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s (%d bytes)\n", prog.Name, len(prog.Data))

	opts := []emu.EmulatorOption{
		emu.WithMaxInstructions(*instruction),
		emu.WithRandomSource(emu.NewSeededRandom(*seed)),
	}

	var decodeCache *cache.DecodeCache
	if !*noCache {
		decodeCache = cache.New(cache.DefaultConfig())
		opts = append(opts, emu.WithInstructionCache(decodeCache))
	}

	emulator := emu.NewEmulator(opts...)
	if err := emulator.LoadProgram(prog.Data); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	stopReason := run(emulator)
	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	instrCount := emulator.InstructionCount()

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Stopped: %s\n", stopReason)
	fmt.Printf("Instructions executed: %d\n", instrCount)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}

	if decodeCache != nil {
		stats := decodeCache.Stats()
		fmt.Printf("\nDecode cache:\n")
		fmt.Printf("Lookups: %d\n", stats.Lookups)
		fmt.Printf("Hits: %d\n", stats.Hits)
		fmt.Printf("Misses: %d\n", stats.Misses)
		fmt.Printf("Evictions: %d\n", stats.Evictions)
		fmt.Printf("Invalidations: %d\n", stats.Invalidations)
		if stats.Lookups > 0 {
			fmt.Printf("Hit rate: %.2f%%\n", 100*float64(stats.Hits)/float64(stats.Lookups))
		}
	}
}

// run steps the emulator until it fails, hits the instruction limit or
// blocks on a key press that can never arrive.
func run(emulator *emu.Emulator) string {
	for cycle := 1; ; cycle++ {
		result := emulator.Step()
		switch {
		case errors.Is(result.Err, emu.ErrMaxInstructions):
			return "instruction limit"
		case result.Err != nil:
			return result.Err.Error()
		case result.WaitingForKey:
			return "waiting for key"
		}

		if cycle%*tickEvery == 0 {
			emulator.Tick()
		}
	}
}
