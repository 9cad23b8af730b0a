package runner

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var ErrInvalidState = errors.New("invalid state transition")

type Options struct {
	Drainer      Drainer
	Hooks        Hooks
	DrainTimeout time.Duration
	// Banner receives the startup banner; nil skips it.
	Banner io.Writer
}

type LifecycleRunner struct {
	state    int32
	service  Service
	opts     Options
	cancel   context.CancelFunc
	mu       sync.Mutex
	onceStop sync.Once
	stopErr  error
}

func NewLifecycleRunner(service Service, opts Options) *LifecycleRunner {
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 10 * time.Second
	}
	return &LifecycleRunner{
		state:   int32(StateNew),
		service: service,
		opts:    opts,
	}
}

// Run blocks until the service returns or ctx ends, then drains. The
// service error wins over a drain error.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.casState(StateNew, StateStarting) {
		return ErrInvalidState
	}
	if ctx == nil {
		ctx = context.Background()
	}
	PrintBanner(r.opts.Banner)
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	if r.opts.Hooks.OnStart != nil {
		if err := r.opts.Hooks.OnStart(); err != nil {
			return errors.Join(err, r.stop())
		}
	}
	r.setState(StateRunning)

	var err error
	if r.service != nil {
		err = r.service(ctx)
	} else {
		<-ctx.Done()
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}
	if stopErr := r.stop(); err == nil {
		err = stopErr
	}
	return err
}

// Stop cancels a running service and waits for the drain.
func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.setState(StateDraining)
		if r.opts.Drainer != nil {
			done := make(chan error, 1)
			go func() { done <- r.opts.Drainer.Drain() }()
			select {
			case err := <-done:
				r.stopErr = err
			case <-time.After(r.opts.DrainTimeout):
				r.stopErr = errors.New("drain timeout")
			}
		}
		if r.opts.Hooks.OnStop != nil {
			r.opts.Hooks.OnStop()
		}
		r.setState(StateStopped)
	})
	return r.stopErr
}

func (r *LifecycleRunner) casState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

func (r *LifecycleRunner) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}

var _ Runner = (*LifecycleRunner)(nil)
