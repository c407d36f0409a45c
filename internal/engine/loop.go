// Package engine runs the shared frame loop that ticks every world.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TickFunc advances one world to now.
type TickFunc func(now time.Time)

// FrameLoop invokes every registered TickFunc once per frame, in ID order.
//
// A panicking TickFunc is recovered and logged; it never stops the loop.
type FrameLoop struct {
	interval time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	ticks map[string]TickFunc

	frames atomic.Uint64
	// last is the UnixNano time of the latest frame; 0 before the first.
	last atomic.Int64
}

// NewFrameLoop returns a loop that fires every interval.
//
// Precondition: interval must be > 0.
// Postcondition: a nil logger discards output.
func NewFrameLoop(interval time.Duration, logger *zap.Logger) *FrameLoop {
	if interval <= 0 {
		panic("engine.NewFrameLoop: interval must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrameLoop{
		interval: interval,
		logger:   logger,
		ticks:    make(map[string]TickFunc),
	}
}

// Interval returns the frame duration.
func (f *FrameLoop) Interval() time.Duration { return f.interval }

// Frames returns the number of frames stepped so far.
func (f *FrameLoop) Frames() uint64 { return f.frames.Load() }

// LastFrame returns the time passed to the latest Step, or the zero time
// before any frame ran.
func (f *FrameLoop) LastFrame() time.Time {
	n := f.last.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Register installs fn under id, replacing any previous callback.
func (f *FrameLoop) Register(id string, fn TickFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks[id] = fn
}

// Unregister removes the callback for id.
func (f *FrameLoop) Unregister(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ticks, id)
}

// Step runs one frame at now.
//
// Postcondition: every callback registered when Step began ran exactly once.
func (f *FrameLoop) Step(now time.Time) {
	f.mu.Lock()
	ids := make([]string, 0, len(f.ticks))
	for id := range f.ticks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fns := make([]TickFunc, len(ids))
	for i, id := range ids {
		fns[i] = f.ticks[id]
	}
	f.mu.Unlock()

	for i, fn := range fns {
		f.call(ids[i], fn, now)
	}
	f.last.Store(now.UnixNano())
	f.frames.Add(1)
}

func (f *FrameLoop) call(id string, fn TickFunc, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("frame callback panicked",
				zap.String("world", id),
				zap.Uint64("frame", f.frames.Load()),
				zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	fn(now)
}

// Run steps a frame on every tick of a wall-clock ticker until ctx is cancelled.
func (f *FrameLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			f.Step(now)
		}
	}
}

// Start runs Run in a new goroutine. The returned channel closes when the loop exits.
func (f *FrameLoop) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Run(ctx)
	}()
	return done
}

// Simulate steps frames back to back on a virtual clock from start until d has
// elapsed or ctx is cancelled.
//
// Postcondition: returns the virtual time of the last frame stepped, or start
// when none ran.
func (f *FrameLoop) Simulate(ctx context.Context, start time.Time, d time.Duration) time.Time {
	now := start
	for elapsed := f.interval; elapsed <= d; elapsed += f.interval {
		if ctx.Err() != nil {
			break
		}
		now = start.Add(elapsed)
		f.Step(now)
	}
	return now
}
