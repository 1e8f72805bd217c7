package audiograph

import (
	"time"
)

type config struct {
	ChunkDuration time.Duration
	FFTSize       int
	HighPassHz    float64
	LowPassHz     float64
	Volume        float64
}

var defaultConfig = config{
	ChunkDuration: 10 * time.Millisecond,
	FFTSize:       DefaultFFTSize,
	HighPassHz:    80,
	LowPassHz:     8000,
	Volume:        1,
}

type Option interface {
	apply(*config)
}

type Options []Option

func (s Options) config() config {
	cfg := defaultConfig
	for _, opt := range s {
		opt.apply(&cfg)
	}
	return cfg
}

// OptionChunkDuration defines the size of the chunks the graph
// reports via ChunkSize.
type OptionChunkDuration time.Duration

func (opt OptionChunkDuration) apply(cfg *config) {
	cfg.ChunkDuration = time.Duration(opt)
}

type OptionFFTSize int

func (opt OptionFFTSize) apply(cfg *config) {
	cfg.FFTSize = int(opt)
}

// OptionHighPassHz is the initial cutoff of the high-pass stage.
type OptionHighPassHz float64

func (opt OptionHighPassHz) apply(cfg *config) {
	cfg.HighPassHz = float64(opt)
}

// OptionLowPassHz is the initial cutoff of the low-pass stage.
type OptionLowPassHz float64

func (opt OptionLowPassHz) apply(cfg *config) {
	cfg.LowPassHz = float64(opt)
}

type OptionVolume float64

func (opt OptionVolume) apply(cfg *config) {
	cfg.Volume = float64(opt)
}
