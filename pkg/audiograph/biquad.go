package audiograph

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/xaionaro-go/earmonitor/pkg/filterchain"
)

type FilterType int

const (
	FilterTypeHighPass = FilterType(iota)
	FilterTypeLowPass
)

func (t FilterType) String() string {
	switch t {
	case FilterTypeHighPass:
		return "highpass"
	case FilterTypeLowPass:
		return "lowpass"
	default:
		return fmt.Sprintf("unknown_filter_type_%d", int(t))
	}
}

const (
	minFilterFrequency = 1.0

	// glideFactor is the share of the (logarithmic) distance to the target
	// cutoff covered per block; glideSnapRatio is where the glide ends.
	glideFactor    = 0.5
	glideSnapRatio = 1e-3
)

type biquadState struct {
	x1, x2 float64
	y1, y2 float64
}

// Biquad is a second order high-pass or low-pass section (RBJ cookbook
// coefficients, Direct Form I). Its state is kept across retuning so
// that frequency changes do not reset the filter.
type Biquad struct {
	Type       FilterType
	SampleRate float64
	Q          float64

	target atomic.Uint64

	// accessed only from Process
	frequency      float64
	b0, b1, b2     float64
	a1, a2         float64
	channelsStates []biquadState
}

var _ filterchain.Stage = (*Biquad)(nil)

func NewBiquad(
	filterType FilterType,
	sampleRate float64,
	frequency float64,
) *Biquad {
	b := &Biquad{
		Type:       filterType,
		SampleRate: sampleRate,
		Q:          filterchain.QualityFactor,
	}
	b.SetFrequency(frequency)
	b.frequency = b.effectiveFrequency(frequency)
	b.updateCoefficients()
	return b
}

// SetFrequency publishes a new cutoff frequency; it is applied starting
// from the next processed block.
func (b *Biquad) SetFrequency(hz float64) {
	b.target.Store(math.Float64bits(hz))
}

// Frequency returns the last requested cutoff frequency.
func (b *Biquad) Frequency() float64 {
	return math.Float64frombits(b.target.Load())
}

// effectiveFrequency clamps the requested frequency into what may be
// realized at the sample rate.
func (b *Biquad) effectiveFrequency(hz float64) float64 {
	nyquist := b.SampleRate / 2
	switch {
	case math.IsNaN(hz), hz < minFilterFrequency:
		return minFilterFrequency
	case hz > nyquist*0.999:
		return nyquist * 0.999
	}
	return hz
}

func (b *Biquad) glide() {
	target := b.effectiveFrequency(b.Frequency())
	if target == b.frequency {
		return
	}
	ratio := target / b.frequency
	if math.Abs(ratio-1) < glideSnapRatio {
		b.frequency = target
	} else {
		b.frequency *= math.Pow(ratio, glideFactor)
	}
	b.updateCoefficients()
}

func (b *Biquad) updateCoefficients() {
	w0 := 2 * math.Pi * b.frequency / b.SampleRate
	alpha := math.Sin(w0) / (2 * b.Q)
	cosW0 := math.Cos(w0)
	a0 := 1 + alpha

	switch b.Type {
	case FilterTypeHighPass:
		b.b0 = (1 + cosW0) / 2
		b.b1 = -(1 + cosW0)
		b.b2 = (1 + cosW0) / 2
	case FilterTypeLowPass:
		b.b0 = (1 - cosW0) / 2
		b.b1 = 1 - cosW0
		b.b2 = (1 - cosW0) / 2
	}
	b.a1 = -2 * cosW0
	b.a2 = 1 - alpha

	b.b0 /= a0
	b.b1 /= a0
	b.b2 /= a0
	b.a1 /= a0
	b.a2 /= a0
}

// Process filters every plane (one per channel) in place.
func (b *Biquad) Process(planes [][]float64) {
	b.glide()
	if len(b.channelsStates) < len(planes) {
		b.channelsStates = append(b.channelsStates, make([]biquadState, len(planes)-len(b.channelsStates))...)
	}

	for ch, plane := range planes {
		s := &b.channelsStates[ch]
		for i, x := range plane {
			y := b.b0*x + b.b1*s.x1 + b.b2*s.x2 - b.a1*s.y1 - b.a2*s.y2
			s.x2, s.x1 = s.x1, x
			s.y2, s.y1 = s.y1, y
			plane[i] = y
		}
	}
}

// Reset clears the filter history.
func (b *Biquad) Reset() {
	for i := range b.channelsStates {
		b.channelsStates[i] = biquadState{}
	}
}
