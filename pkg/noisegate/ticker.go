package noisegate

import (
	"time"
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(interval time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func NewTimeTicker(interval time.Duration) Ticker {
	return timeTicker{Ticker: time.NewTicker(interval)}
}
