package audiograph

import (
	"math"
	"sync/atomic"
)

// GainStage multiplies the signal by a gain that may be changed from any
// goroutine. Changes are ramped linearly across the next processed block.
type GainStage struct {
	value atomic.Uint64

	// accessed only from Process
	applied    float64
	hasApplied bool
}

func NewGainStage(initial float64) *GainStage {
	g := &GainStage{}
	g.SetGain(initial)
	return g
}

func (g *GainStage) Gain() float64 {
	return math.Float64frombits(g.value.Load())
}

func (g *GainStage) SetGain(v float64) {
	g.value.Store(math.Float64bits(v))
}

// Process applies the gain in place and returns the gain reached at the end of the block.
func (g *GainStage) Process(planes [][]float64) float64 {
	target := g.Gain()
	start := g.applied
	if !g.hasApplied {
		start = target
		g.hasApplied = true
	}
	g.applied = target

	for _, plane := range planes {
		n := float64(len(plane))
		if start == target {
			if target == 1 {
				continue
			}
			for i := range plane {
				plane[i] *= target
			}
			continue
		}
		for i := range plane {
			plane[i] *= start + (target-start)*float64(i+1)/n
		}
	}
	return target
}
