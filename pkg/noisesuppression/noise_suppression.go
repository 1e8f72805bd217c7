package noisesuppression

import (
	"context"

	"github.com/xaionaro-go/earmonitor/pkg/audio"
)

// NoiseSuppression processes fixed-format PCM chunk by chunk.
type NoiseSuppression interface {
	audio.AbstractAnalyzer

	// ChunkSize is the preferred size (in bytes, all channels included)
	// of the chunks passed to SuppressNoise.
	ChunkSize() uint

	// SuppressNoise writes the processed `input` into `output` (which must
	// be at least as long) and returns the gain applied to the chunk.
	SuppressNoise(ctx context.Context, input []byte, output []byte) (float64, error)
}
