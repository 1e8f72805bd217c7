// Package filterchain tunes the fixed high-pass -> low-pass cascade that
// shapes the signal before the noise gate.
package filterchain

import (
	"sync"
)

// QualityFactor is the Q of both stages. It is fixed.
const QualityFactor = 1.0

// Stage is a single tunable filter stage. Implementations are expected to
// retune without audible discontinuities and to validate the frequency
// range themselves.
type Stage interface {
	SetFrequency(hz float64)
	Frequency() float64
}

type FilterSink interface {
	HighPassStage() Stage
	LowPassStage() Stage
}

type FilterChain struct {
	locker   sync.Mutex
	highPass Stage
	lowPass  Stage
}

func New(
	sink FilterSink,
	highPassHz float64,
	lowPassHz float64,
) *FilterChain {
	c := &FilterChain{
		highPass: sink.HighPassStage(),
		lowPass:  sink.LowPassStage(),
	}
	c.Configure(highPassHz, lowPassHz)
	return c
}

func (c *FilterChain) Configure(highPassHz, lowPassHz float64) {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.highPass.SetFrequency(highPassHz)
	c.lowPass.SetFrequency(lowPassHz)
}

func (c *FilterChain) SetHighPass(hz float64) {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.highPass.SetFrequency(hz)
}

func (c *FilterChain) SetLowPass(hz float64) {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.lowPass.SetFrequency(hz)
}

func (c *FilterChain) HighPass() float64 {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.highPass.Frequency()
}

func (c *FilterChain) LowPass() float64 {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.lowPass.Frequency()
}
