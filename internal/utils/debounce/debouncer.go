package debounce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Action is the coalesced work. Its error is logged, never returned to Schedule callers.
type Action func(ctx context.Context) error

type pending struct {
	timer *time.Timer
	gen   uint64
}

// Debouncer runs the newest action for a key once the key has been quiet for
// the window. Scheduling again before the window elapses replaces the pending
// action and restarts the window.
type Debouncer struct {
	window        time.Duration
	actionTimeout time.Duration
	logger        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timers  map[string]*pending
	gen     uint64
	stopped bool
	wg      sync.WaitGroup
}

// New creates a Debouncer. actionTimeout bounds each action run; zero means no bound.
func New(window, actionTimeout time.Duration, logger zerolog.Logger) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		window:        window,
		actionTimeout: actionTimeout,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		timers:        make(map[string]*pending),
	}
}

// Schedule registers action for key, superseding any pending action for the same key.
func (d *Debouncer) Schedule(key string, action Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if p, ok := d.timers[key]; ok {
		p.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timers[key] = &pending{
		gen:   gen,
		timer: time.AfterFunc(d.window, func() { d.fire(key, gen, action) }),
	}
}

// Pending returns the number of keys with a pending action.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

func (d *Debouncer) fire(key string, gen uint64, action Action) {
	d.mu.Lock()
	p, ok := d.timers[key]
	// A timer that lost the race against Stop or a newer Schedule must not run.
	if d.stopped || !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.timers, key)
	d.wg.Add(1)
	d.mu.Unlock()
	defer d.wg.Done()

	if err := d.run(action); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("debounced action failed")
	}
}

func (d *Debouncer) run(action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	ctx := d.ctx
	if d.actionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.actionTimeout)
		defer cancel()
	}
	return action(ctx)
}

// Stop drops pending actions and waits for running ones to return.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for key, p := range d.timers {
		p.timer.Stop()
		delete(d.timers, key)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}
