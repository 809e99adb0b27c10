package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrNotConfigured = errors.New("generation provider not configured")
	ErrNoHealthy     = errors.New("no healthy providers")
	ErrNoAcquire     = errors.New("provider not acquired")
)

// Result is a finished generation.
type Result struct {
	URL      string
	Provider string
}

type Dispatcher struct {
	providers         []Provider
	roundRobinCounter atomic.Uint64
	maxAttempts       int
}

func NewDispatcher(provs []Provider, maxAttempts int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{providers: provs, maxAttempts: maxAttempts}
}

// Configured is false when no provider was registered (e.g. no API token).
func (d *Dispatcher) Configured() bool {
	return d != nil && len(d.providers) > 0
}

func (d *Dispatcher) selectProvider() (Provider, error) {
	healthy := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Ready() {
			healthy = append(healthy, p)
		}
	}
	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := d.roundRobinCounter.Add(1)
	return healthy[int((x-1)%uint64(len(healthy)))], nil
}

func (d *Dispatcher) tryOnce(ctx context.Context, req Request) (Result, error) {
	p, err := d.selectProvider()
	if err != nil {
		return Result{}, err
	}
	if !p.Acquire() {
		return Result{}, ErrNoAcquire
	}

	url, err := p.Generate(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return Result{URL: url, Provider: p.Name()}, nil
}

// Generate tries up to maxAttempts times, stopping early when ctx is done.
func (d *Dispatcher) Generate(ctx context.Context, req Request) (Result, error) {
	if !d.Configured() {
		return Result{}, ErrNotConfigured
	}

	var last error
	for i := 0; i < d.maxAttempts; i++ {
		res, err := d.tryOnce(ctx, req)
		if err == nil {
			return res, nil
		}
		last = err
		if ctx.Err() != nil {
			break
		}
	}
	if last == nil {
		last = errors.New("generation failed")
	}
	return Result{}, last
}
