package busstatus

import (
	"context"
	"sync/atomic"
	"time"
)

type PollerState int32

const (
	Idle PollerState = iota
	Fetching
)

func (s PollerState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	}
	return "unknown"
}

type Cycler interface {
	RunCycle(ctx context.Context) (*Result, error)
}

// Runs cycles on a fixed interval. The first cycle starts
// immediately. Cycles never overlap: ticks missed while a cycle runs
// are dropped.
type Poller struct {
	Manager  Cycler
	Interval time.Duration

	// Called after every cycle with its outcome.
	Handle func(*Result, error)

	state atomic.Int32
}

func (p *Poller) State() PollerState {
	return PollerState(p.state.Load())
}

// Runs until ctx is cancelled. Cancellation is checked between
// cycles. With a zero Interval a single cycle runs.
func (p *Poller) Run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p.cycle(ctx)

	if p.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Both may be ready; prefer stopping.
			if ctx.Err() != nil {
				return
			}
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	p.state.Store(int32(Fetching))
	result, err := p.Manager.RunCycle(ctx)
	p.state.Store(int32(Idle))

	if p.Handle != nil {
		p.Handle(result, err)
	}
}
