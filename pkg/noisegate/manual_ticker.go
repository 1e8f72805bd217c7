package noisegate

import (
	"context"
	"time"
)

// ManualTicker is a Ticker that ticks only when asked to. It allows
// stepping a running Controller deterministically.
type ManualTicker struct {
	ch chan time.Time
}

var _ Ticker = (*ManualTicker)(nil)

func NewManualTicker() *ManualTicker {
	return &ManualTicker{
		ch: make(chan time.Time),
	}
}

func (t *ManualTicker) C() <-chan time.Time {
	return t.ch
}

func (t *ManualTicker) Stop() {}

// Tick blocks until the tick is received by the loop or ctx is done.
func (t *ManualTicker) Tick(ctx context.Context) error {
	select {
	case t.ch <- time.Now():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Factory returns a TickerFactory that always returns this ticker.
func (t *ManualTicker) Factory() TickerFactory {
	return func(time.Duration) Ticker {
		return t
	}
}
