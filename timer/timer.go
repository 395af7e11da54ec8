// Package timer implements the CHIP-8 delay and sound timers.
//
// Both counters decay by one every Rate (1/60s) until they hit zero and
// then simply stay there. Decay runs on a single goroutine started by Start
// so it continues while the CPU is blocked waiting on a key or the host is
// running slowly. The counters are atomics so the CPU can read and set them
// from its own goroutine at any time.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Rate is the standard decay interval.
const Rate = time.Second / 60

// Def defines a set of Timers.
type Def struct {
	// Rate overrides the decay interval. Zero means the standard 60Hz.
	Rate time.Duration
}

// Timers holds the delay and sound counters plus the decay goroutine state.
type Timers struct {
	delay atomic.Uint32
	sound atomic.Uint32
	ticks atomic.Uint64 // Total decay ticks run, for debugging.
	rate  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Init returns stopped Timers with both counters at zero.
func Init(def *Def) (*Timers, error) {
	if def == nil {
		def = &Def{}
	}
	if def.Rate < 0 {
		return nil, fmt.Errorf("timer rate %s is invalid", def.Rate)
	}
	t := &Timers{
		rate: def.Rate,
	}
	if t.rate == 0 {
		t.rate = Rate
	}
	return t, nil
}

// Start launches the decay goroutine. It runs until ctx is done or Stop is called
// and may be started again after either. Only one may run at a time.
func (t *Timers) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return errors.New("timers already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, t.done)
	return nil
}

func (t *Timers) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer t.finish(done)
	tk := time.NewTicker(t.rate)
	defer tk.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tk.C:
			last = t.elapse(last, now)
		}
	}
}

// elapse runs one Tick for every full rate period between last and now and
// returns the time decay is accounted up to. Ticker fires dropped under load
// are caught up here so decay tracks wall clock time.
func (t *Timers) elapse(last, now time.Time) time.Time {
	n := now.Sub(last) / t.rate
	if n <= 0 {
		return last
	}
	// Past this both counters are zero regardless.
	ticks := n
	if ticks > 0xFF {
		ticks = 0xFF
	}
	for i := time.Duration(0); i < ticks; i++ {
		t.Tick()
	}
	return last.Add(n * t.rate)
}

// finish clears the running state if it still belongs to the run using done.
// This covers the Start context ending without a call to Stop.
func (t *Timers) finish(done chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != done {
		return
	}
	t.cancel()
	t.cancel, t.done = nil, nil
}

// Stop halts the decay goroutine (if running) and waits for it to exit.
// The counters keep their current values.
func (t *Timers) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the decay goroutine is active.
func (t *Timers) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Tick decrements both counters once, stopping at zero. The decay goroutine
// calls this every Rate but hosts driving time themselves (tests, frame locked
// loops) may call it directly instead of using Start.
func (t *Timers) Tick() {
	decrement(&t.delay)
	decrement(&t.sound)
	t.ticks.Add(1)
}

// decrement drops c by one unless it's already zero. A CAS loop so a
// concurrent Set is never overwritten by a stale decrement.
func decrement(c *atomic.Uint32) {
	for {
		v := c.Load()
		if v == 0 {
			return
		}
		if c.CompareAndSwap(v, v-1) {
			return
		}
	}
}

// Delay returns the current delay timer value.
func (t *Timers) Delay() uint8 {
	return uint8(t.delay.Load())
}

// SetDelay loads the delay timer.
func (t *Timers) SetDelay(v uint8) {
	t.delay.Store(uint32(v))
}

// Sound returns the current sound timer value.
func (t *Timers) Sound() uint8 {
	return uint8(t.sound.Load())
}

// SetSound loads the sound timer.
func (t *Timers) SetSound(v uint8) {
	t.sound.Store(uint32(v))
}

// Debug returns a one line summary of timer state.
func (t *Timers) Debug() string {
	return fmt.Sprintf("ticks: %.6d delay: %.2X sound: %.2X running: %t\n", t.ticks.Load(), t.Delay(), t.Sound(), t.Running())
}
