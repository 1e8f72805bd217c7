package monitorstream

import (
	"context"
)

type config struct {
	OnChunk func(ctx context.Context, chunk []byte, gain float64)
}

type Option interface {
	apply(*config)
}

type Options []Option

func (s Options) config() config {
	var cfg config
	for _, opt := range s {
		opt.apply(&cfg)
	}
	return cfg
}

// OptionOnChunk is called from the processing loop with every processed
// chunk and the gain applied to it. The chunk must not be retained.
type OptionOnChunk func(ctx context.Context, chunk []byte, gain float64)

func (opt OptionOnChunk) apply(cfg *config) {
	cfg.OnChunk = opt
}
