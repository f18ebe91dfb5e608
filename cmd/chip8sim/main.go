// Package main provides the entry point for chip8sim.
// chip8sim runs CHIP-8 programs headlessly, printing the display and
// optionally keeping save states in an SQLite database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/sarchlab/chip8sim/config"
	"github.com/sarchlab/chip8sim/emu"
	"github.com/sarchlab/chip8sim/host"
	"github.com/sarchlab/chip8sim/loader"
	"github.com/sarchlab/chip8sim/savestate"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath  string
	frames      int
	cycles      int
	seed        uint64
	verbosity   int
	dump        bool
	saveDB      string
	saveSlot    string
	restoreSlot string
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("chip8sim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Path to TOML configuration file")
	fs.IntVar(&o.frames, "frames", 0, "Number of frames to run; 0 runs in real time until interrupted")
	fs.IntVar(&o.cycles, "cycles", 0, "Instructions per frame (overrides config)")
	fs.Uint64Var(&o.seed, "seed", 0, "Random seed (overrides config)")
	fs.IntVar(&o.verbosity, "v", 0, "Log verbosity (0-4)")
	fs.BoolVar(&o.dump, "dump", false, "Print the display when the run ends")
	fs.StringVar(&o.saveDB, "save-db", "", "Path to the save state database")
	fs.StringVar(&o.saveSlot, "save-slot", "", "Save the final state to this slot")
	fs.StringVar(&o.restoreSlot, "restore-slot", "", "Restore this slot before running")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: chip8sim [options] <program.ch8>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return nil, nil, errors.New("missing program")
	}
	if (o.saveSlot != "" || o.restoreSlot != "") && o.saveDB == "" {
		return nil, nil, errors.New("-save-slot and -restore-slot need -save-db")
	}

	return o, fs.Args(), nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, rest, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 2
	}

	commonlog.Configure(o.verbosity, nil)

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	prog, err := loader.Load(rest[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	fb := emu.NewFrameBuffer()
	emulator := emu.NewEmulator(append(cfg.EmulatorOptions(), emu.WithDisplay(fb))...)
	if err := emulator.LoadProgram(prog.Data); err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	var store *savestate.Store
	if o.saveDB != "" {
		store, err = savestate.Open(o.saveDB)
		if err != nil {
			fmt.Fprintf(stderr, "Error opening save database: %v\n", err)
			return 1
		}
		defer func() { _ = store.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if o.restoreSlot != "" {
		snap, info, err := store.Load(ctx, o.restoreSlot)
		if err != nil {
			fmt.Fprintf(stderr, "Error restoring state: %v\n", err)
			return 1
		}
		if info.ROM != prog.Name {
			fmt.Fprintf(stderr, "Warning: slot %q was saved from %s\n", o.restoreSlot, info.ROM)
		}
		if err := emulator.Restore(snap); err != nil {
			fmt.Fprintf(stderr, "Error restoring state: %v\n", err)
			return 1
		}
	}

	runner := host.NewRunner(emulator,
		host.WithCyclesPerFrame(cfg.Clock.CyclesPerFrame),
		host.WithFrameHz(cfg.Clock.FrameHz),
	)

	exitCode := 0
	if o.frames > 0 {
		err = runner.RunFrames(o.frames)
	} else {
		err = runner.Run(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		exitCode = 1
	}

	if o.dump {
		fmt.Fprint(stdout, fb.String())
	}

	if o.verbosity > 0 {
		fmt.Fprintf(stdout, "\nProgram: %s\n", prog.Name)
		fmt.Fprintf(stdout, "Frames: %d\n", runner.Frames())
		fmt.Fprintf(stdout, "Instructions executed: %d\n", emulator.InstructionCount())
	}

	if o.saveSlot != "" && exitCode == 0 {
		if err := store.Save(context.Background(), o.saveSlot, prog.Name, emulator.Snapshot()); err != nil {
			fmt.Fprintf(stderr, "Error saving state: %v\n", err)
			return 1
		}
	}

	return exitCode
}

func loadConfig(o *options) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
	}

	if o.cycles > 0 {
		cfg.Clock.CyclesPerFrame = o.cycles
	}
	if o.seed != 0 {
		cfg.Random.Seed = o.seed
	}

	return cfg, cfg.Validate()
}
