package audiograph

import (
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"
	"sync"

	"github.com/brettbuddin/fourier"
	"github.com/mjibson/go-dsp/window"
	"github.com/xaionaro-go/earmonitor/pkg/noisegate"
)

const (
	DefaultFFTSize               = 2048
	DefaultSmoothingTimeConstant = 0.8
	DefaultMinDecibels           = -100.0
	DefaultMaxDecibels           = -30.0

	minFFTSize = 32
)

// Analyser keeps the most recent FFTSize mono samples of the signal and
// turns them into byte-scaled per-bin magnitudes on request.
type Analyser struct {
	SmoothingTimeConstant float64
	MinDecibels           float64
	MaxDecibels           float64

	locker     sync.Mutex
	fftSize    int
	history    []float64
	writePos   int
	window     []float64
	spectrum   []complex128
	magnitudes []float64
	smoothed   []float64
}

var _ noisegate.EnergySource = (*Analyser)(nil)

func NewAnalyser(fftSize int) (*Analyser, error) {
	if fftSize < minFFTSize || bits.OnesCount(uint(fftSize)) != 1 {
		return nil, fmt.Errorf("the FFT size must be a power of two not less than %d, but it is %d", minFFTSize, fftSize)
	}
	return &Analyser{
		SmoothingTimeConstant: DefaultSmoothingTimeConstant,
		MinDecibels:           DefaultMinDecibels,
		MaxDecibels:           DefaultMaxDecibels,

		fftSize:    fftSize,
		history:    make([]float64, fftSize),
		window:     window.Blackman(fftSize),
		spectrum:   make([]complex128, fftSize),
		magnitudes: make([]float64, fftSize/2),
		smoothed:   make([]float64, fftSize/2),
	}, nil
}

func (a *Analyser) FFTSize() int {
	return a.fftSize
}

func (a *Analyser) BinCount() uint {
	return uint(a.fftSize / 2)
}

// Push appends the channel average of the given planes to the history.
func (a *Analyser) Push(planes [][]float64) {
	if len(planes) == 0 {
		return
	}
	a.locker.Lock()
	defer a.locker.Unlock()

	k := 1 / float64(len(planes))
	for i := range planes[0] {
		var sum float64
		for _, plane := range planes {
			sum += plane[i]
		}
		a.history[a.writePos] = sum * k
		a.writePos = (a.writePos + 1) % a.fftSize
	}
}

// computeMagnitudes fills a.magnitudes with |X[k]|/N of the windowed history.
func (a *Analyser) computeMagnitudes() error {
	for i := 0; i < a.fftSize; i++ {
		sample := a.history[(a.writePos+i)%a.fftSize]
		a.spectrum[i] = complex(sample*a.window[i], 0)
	}
	if err := fourier.Forward(a.spectrum); err != nil {
		return fmt.Errorf("unable to compute FFT: %w", err)
	}
	invN := 1 / float64(a.fftSize)
	for k := range a.magnitudes {
		a.magnitudes[k] = cmplx.Abs(a.spectrum[k]) * invN
	}
	return nil
}

func (a *Analyser) Snapshot(dst noisegate.EnergySnapshot) noisegate.EnergySnapshot {
	a.locker.Lock()
	defer a.locker.Unlock()

	binCount := a.fftSize / 2
	if cap(dst) < binCount {
		dst = make(noisegate.EnergySnapshot, binCount)
	}
	dst = dst[:binCount]

	if err := a.computeMagnitudes(); err != nil {
		// the size is validated in NewAnalyser, so this is unreachable in practice
		clear(dst)
		return dst
	}

	tau := a.SmoothingTimeConstant
	dbRange := a.MaxDecibels - a.MinDecibels
	for k := range dst {
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*a.magnitudes[k]
		db := 20 * math.Log10(a.smoothed[k])
		v := noisegate.MaxMagnitude * (db - a.MinDecibels) / dbRange
		switch {
		case math.IsNaN(v), v <= 0:
			dst[k] = 0
		case v >= noisegate.MaxMagnitude:
			dst[k] = noisegate.MaxMagnitude
		default:
			dst[k] = uint8(v)
		}
	}
	return dst
}

// Reset forgets the history and the smoothing state.
func (a *Analyser) Reset() {
	a.locker.Lock()
	defer a.locker.Unlock()
	clear(a.history)
	clear(a.smoothed)
	a.writePos = 0
}
