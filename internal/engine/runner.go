package engine

import (
	"context"
	"sync"
	"time"

	"github.com/vthunder/plantbud/internal/logging"
)

// Cycler runs one cycle
type Cycler interface {
	RunCycle(ctx context.Context, now time.Time) *CycleResult
}

// Runner triggers a cycle on a fixed interval
type Runner struct {
	cycler   Cycler
	interval time.Duration
	clock    func() time.Time
	onResult func(*CycleResult)

	mu       sync.Mutex
	stopped  bool
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRunner creates a runner. interval must be positive.
func NewRunner(c Cycler, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Runner{
		cycler:   c,
		interval: interval,
		clock:    time.Now,
		stopChan: make(chan struct{}),
	}
}

// OnResult sets a callback invoked after every cycle
func (r *Runner) OnResult(fn func(*CycleResult)) {
	r.mu.Lock()
	r.onResult = fn
	r.mu.Unlock()
}

// Start runs a cycle immediately, then one per interval, until Stop
func (r *Runner) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	logging.Info("runner", "starting with interval %v", r.interval)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.pollLoop(ctx)
	}()
	return nil
}

// Stop ends the loop and waits for a running cycle to return
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.stopChan)
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
	logging.Info("runner", "stopped")
	return nil
}

// Run blocks until ctx is done
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-r.stopChan:
	}
	return r.Stop()
}

func (r *Runner) pollLoop(ctx context.Context) {
	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	res := r.cycler.RunCycle(ctx, r.clock())

	r.mu.Lock()
	fn := r.onResult
	r.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}
