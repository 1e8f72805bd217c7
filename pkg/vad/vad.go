package vad

import (
	"context"
	"time"

	"github.com/xaionaro-go/earmonitor/pkg/audio"
)

type VAD interface {
	audio.AbstractAnalyzer

	// FindNextVoice scans `samples` and returns the highest voice
	// confidence seen and the offset of the first frame whose confidence
	// reached the threshold (-1 if none). Scanning stops once voice was
	// found for at least minDuration in total.
	FindNextVoice(
		_ context.Context,
		samples []byte,
		confidenceThreshold float64,
		minDuration time.Duration,
	) (float64, time.Duration, error)
}
