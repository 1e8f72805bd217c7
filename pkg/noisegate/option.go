package noisegate

import (
	"time"
)

type config struct {
	Level         float64
	TickInterval  time.Duration
	TickerFactory TickerFactory
}

func defaultConfig() config {
	return config{
		Level:         0.5,
		TickInterval:  DefaultTickInterval,
		TickerFactory: NewTimeTicker,
	}
}

type Option interface {
	apply(*config)
}

type Options []Option

func (s Options) config() config {
	cfg := defaultConfig()
	for _, opt := range s {
		opt.apply(&cfg)
	}
	return cfg
}

type OptionLevel float64

func (o OptionLevel) apply(cfg *config) {
	cfg.Level = float64(o)
}

type OptionTickInterval time.Duration

func (o OptionTickInterval) apply(cfg *config) {
	cfg.TickInterval = time.Duration(o)
}

type OptionTickerFactory TickerFactory

func (o OptionTickerFactory) apply(cfg *config) {
	cfg.TickerFactory = TickerFactory(o)
}
