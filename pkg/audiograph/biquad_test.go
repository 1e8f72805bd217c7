package audiograph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 48000

func sine(freq, amplitude float64, offset, count int) []float64 {
	r := make([]float64, count)
	for i := range r {
		r[i] = amplitude * math.Sin(2*math.Pi*freq*float64(offset+i)/testSampleRate)
	}
	return r
}

func rms(s []float64) float64 {
	var sum float64
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(s)))
}

// runFilter pushes `total` samples of the signal through the filter in
// blocks of 480 samples and returns the output.
func runFilter(b *Biquad, gen func(offset, count int) []float64, total int) []float64 {
	const blockSize = 480
	var out []float64
	for offset := 0; offset < total; offset += blockSize {
		block := gen(offset, blockSize)
		b.Process([][]float64{block})
		out = append(out, block...)
	}
	return out
}

func TestBiquadHighPassRemovesDC(t *testing.T) {
	b := NewBiquad(FilterTypeHighPass, testSampleRate, 80)
	out := runFilter(b, func(_, count int) []float64 {
		r := make([]float64, count)
		for i := range r {
			r[i] = 0.5
		}
		return r
	}, testSampleRate)
	assert.Less(t, math.Abs(out[len(out)-1]), 1e-3)
}

func TestBiquadLowPassAttenuatesHighTone(t *testing.T) {
	b := NewBiquad(FilterTypeLowPass, testSampleRate, 1000)
	out := runFilter(b, func(offset, count int) []float64 {
		return sine(15000, 1, offset, count)
	}, testSampleRate)
	assert.Less(t, rms(out[len(out)/2:]), 0.05*math.Sqrt(0.5))
}

func TestBiquadPassBand(t *testing.T) {
	for _, filterType := range []FilterType{FilterTypeHighPass, FilterTypeLowPass} {
		t.Run(filterType.String(), func(t *testing.T) {
			cutoff := 8000.0
			freq := 100.0
			if filterType == FilterTypeHighPass {
				cutoff, freq = 80, 4000
			}
			b := NewBiquad(filterType, testSampleRate, cutoff)
			out := runFilter(b, func(offset, count int) []float64 {
				return sine(freq, 1, offset, count)
			}, testSampleRate)
			assert.InDelta(t, 1, rms(out[len(out)/2:])/math.Sqrt(0.5), 0.05)
		})
	}
}

func TestBiquadGlide(t *testing.T) {
	b := NewBiquad(FilterTypeLowPass, testSampleRate, 1000)
	b.SetFrequency(2000)
	assert.Equal(t, 2000.0, b.Frequency())
	assert.Equal(t, 1000.0, b.frequency)

	b.Process(nil)
	assert.InDelta(t, 1000*math.Sqrt2, b.frequency, 1e-9)

	for i := 0; i < 20; i++ {
		b.Process(nil)
	}
	assert.Equal(t, 2000.0, b.frequency)
}

func TestBiquadClampsFrequency(t *testing.T) {
	for name, tc := range map[string]struct {
		Requested float64
		Effective float64
	}{
		"above_nyquist": {1e6, testSampleRate / 2 * 0.999},
		"negative":      {-5, minFilterFrequency},
		"nan":           {math.NaN(), minFilterFrequency},
	} {
		t.Run(name, func(t *testing.T) {
			b := NewBiquad(FilterTypeHighPass, testSampleRate, 1000)
			b.SetFrequency(tc.Requested)
			for i := 0; i < 50; i++ {
				b.Process(nil)
			}
			assert.InDelta(t, tc.Effective, b.frequency, 1e-9)
		})
	}
}

func TestBiquadRetuneIsContinuous(t *testing.T) {
	b := NewBiquad(FilterTypeLowPass, testSampleRate, 8000)
	var out []float64
	for block := 0; block < 100; block++ {
		if block == 50 {
			b.SetFrequency(2000)
		}
		samples := sine(440, 1, block*480, 480)
		b.Process([][]float64{samples})
		out = append(out, samples...)
	}

	maxStep := 0.0
	for i := 1; i < len(out); i++ {
		maxStep = math.Max(maxStep, math.Abs(out[i]-out[i-1]))
	}
	assert.Less(t, maxStep, 0.2)
}

func TestBiquadChannelsAreIndependent(t *testing.T) {
	b := NewBiquad(FilterTypeHighPass, testSampleRate, 80)
	left := make([]float64, 480)
	for i := range left {
		left[i] = 1
	}
	right := make([]float64, 480)
	b.Process([][]float64{left, right})
	require.Len(t, b.channelsStates, 2)
	for _, v := range right {
		assert.Zero(t, v)
	}
}
