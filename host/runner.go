// Package host drives an emulator the way a front end would: a fixed
// number of instructions per frame followed by one timer tick.
package host

import (
	"context"
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"github.com/sarchlab/chip8sim/emu"
)

// Defaults for a classic interpreter.
const (
	DefaultCyclesPerFrame = 10
	DefaultFrameHz        = 60
)

// FrameHook is called after every frame with the frame number, starting at 1.
type FrameHook func(frame uint64)

// Runner steps an emulator frame by frame.
type Runner struct {
	emulator       *emu.Emulator
	cyclesPerFrame int
	frameHz        int
	onFrame        FrameHook
	log            commonlog.Logger

	frames uint64
}

// RunnerOption is a functional option for configuring the Runner.
type RunnerOption func(*Runner)

// WithCyclesPerFrame sets the number of instructions executed per frame.
func WithCyclesPerFrame(n int) RunnerOption {
	return func(r *Runner) {
		r.cyclesPerFrame = n
	}
}

// WithFrameHz sets the wall-clock frame rate used by Run.
func WithFrameHz(hz int) RunnerOption {
	return func(r *Runner) {
		r.frameHz = hz
	}
}

// WithFrameHook sets a function called after every frame.
func WithFrameHook(fn FrameHook) RunnerOption {
	return func(r *Runner) {
		r.onFrame = fn
	}
}

// NewRunner creates a runner for e.
func NewRunner(e *emu.Emulator, opts ...RunnerOption) *Runner {
	r := &Runner{
		emulator:       e,
		cyclesPerFrame: DefaultCyclesPerFrame,
		frameHz:        DefaultFrameHz,
		log:            commonlog.GetLogger("chip8sim.host"),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.cyclesPerFrame <= 0 {
		r.cyclesPerFrame = DefaultCyclesPerFrame
	}
	if r.frameHz <= 0 {
		r.frameHz = DefaultFrameHz
	}

	return r
}

// Frames returns the number of completed frames.
func (r *Runner) Frames() uint64 {
	return r.frames
}

// Frame executes up to cyclesPerFrame instructions and then ticks the
// timers once. Stepping stops early while the program waits for a key,
// as the keypad cannot change within a frame. The timers are not ticked
// when an instruction fails.
func (r *Runner) Frame() error {
	for i := 0; i < r.cyclesPerFrame; i++ {
		result := r.emulator.Step()
		if result.Err != nil {
			return fmt.Errorf("frame %d: %w", r.frames+1, result.Err)
		}
		if result.WaitingForKey {
			break
		}
	}

	r.emulator.Tick()
	r.frames++

	if r.onFrame != nil {
		r.onFrame(r.frames)
	}

	return nil
}

// RunFrames runs n frames back to back, without waiting for wall-clock time.
func (r *Runner) RunFrames(n int) error {
	for i := 0; i < n; i++ {
		if err := r.Frame(); err != nil {
			return err
		}
	}
	return nil
}

// Run runs frames at frameHz until ctx is done or an instruction fails.
// It returns ctx.Err() on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(r.frameHz))
	defer ticker.Stop()

	r.log.Infof("running at %d Hz, %d cycles per frame", r.frameHz, r.cyclesPerFrame)

	for {
		select {
		case <-ctx.Done():
			r.log.Infof("stopped after %d frames", r.frames)
			return ctx.Err()
		case <-ticker.C:
			if err := r.Frame(); err != nil {
				r.log.Errorf("%v", err)
				return err
			}
		}
	}
}
