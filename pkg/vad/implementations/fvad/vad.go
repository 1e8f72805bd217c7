// Package fvad implements vad.VAD on top of the WebRTC voice activity detector.
package fvad

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/josharian/fvad"
	"github.com/xaionaro-go/earmonitor/pkg/audio"
	"github.com/xaionaro-go/earmonitor/pkg/vad"
)

// Mode is the aggressiveness of the detector, from 0 (least) to 3 (most).
type Mode int

const (
	ModeQuality = Mode(iota)
	ModeLowBitrate
	ModeAggressive
	ModeVeryAggressive
)

// DefaultFrameDuration is one of the frame durations the detector supports (10, 20 or 30 ms).
const DefaultFrameDuration = 10 * time.Millisecond

type VAD struct {
	Detector      *fvad.Detector
	EncodingValue audio.EncodingPCM
	ChannelsValue audio.Channel
	FrameDuration time.Duration

	frameSize    int
	frameSamples int
	pcm          []int16
}

var _ vad.VAD = (*VAD)(nil)

func New(
	ctx context.Context,
	encoding audio.EncodingPCM,
	channels audio.Channel,
	mode Mode,
	frameDuration time.Duration,
) (*VAD, error) {
	switch frameDuration {
	case 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond:
	default:
		return nil, fmt.Errorf("unsupported frame duration %v, expected 10ms, 20ms or 30ms", frameDuration)
	}
	if channels == 0 {
		return nil, fmt.Errorf("the amount of channels is not set")
	}
	if encoding.PCMFormat.Size() == 0 {
		return nil, fmt.Errorf("unsupported PCM format: %v", encoding.PCMFormat)
	}

	detector := fvad.NewDetector()
	if err := detector.SetMode(int(mode)); err != nil {
		return nil, fmt.Errorf("unable to set mode %d: %w", mode, err)
	}
	if err := detector.SetSampleRate(int(encoding.SampleRate)); err != nil {
		return nil, fmt.Errorf("unable to set sample rate %d: %w", encoding.SampleRate, err)
	}

	frameSamples := int(uint64(encoding.SampleRate) * uint64(frameDuration) / uint64(time.Second))
	frameSize := frameSamples * int(encoding.BytesPerSample()) * int(channels)
	logger.Debugf(ctx, "VAD frame: %d samples, %d bytes, %v", frameSamples, frameSize, frameDuration)
	return &VAD{
		Detector:      detector,
		EncodingValue: encoding,
		ChannelsValue: channels,
		FrameDuration: frameDuration,
		frameSize:     frameSize,
		frameSamples:  frameSamples,
		pcm:           make([]int16, frameSamples),
	}, nil
}

func (v *VAD) Close() error {
	return nil
}

func (v *VAD) Encoding(context.Context) (audio.Encoding, error) {
	return v.EncodingValue, nil
}

func (v *VAD) Channels(context.Context) (audio.Channel, error) {
	return v.ChannelsValue, nil
}

// FrameSize is the amount of bytes analysed at once.
func (v *VAD) FrameSize() int {
	return v.frameSize
}

// IsVoice reports whether the frame (exactly FrameSize bytes) contains voice.
func (v *VAD) IsVoice(frame []byte) (bool, error) {
	if len(frame) != v.frameSize {
		return false, fmt.Errorf("expected a frame of %d bytes, received %d", v.frameSize, len(frame))
	}
	format := v.EncodingValue.PCMFormat
	sampleSize := int(format.Size())
	channels := int(v.ChannelsValue)
	for i := range v.pcm {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += format.Decode(frame[(i*channels+ch)*sampleSize:])
		}
		v.pcm[i] = toInt16(sum / float64(channels))
	}
	isVoice, err := v.Detector.Process(v.pcm)
	if err != nil {
		return false, fmt.Errorf("unable to process the frame: %w", err)
	}
	return isVoice, nil
}

func toInt16(v float64) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	}
	return int16(v * 32767)
}

func (v *VAD) FindNextVoice(
	ctx context.Context,
	samples []byte,
	confidenceThreshold float64,
	minDuration time.Duration,
) (float64, time.Duration, error) {
	var maxConfidence float64
	var foundVoiceFor time.Duration
	firstVoiceDetection := time.Duration(-1)

	for pos := 0; len(samples) >= v.frameSize; pos++ {
		frame := samples[:v.frameSize]
		samples = samples[v.frameSize:]

		isVoice, err := v.IsVoice(frame)
		if err != nil {
			return maxConfidence, firstVoiceDetection, err
		}
		var confidence float64
		if isVoice {
			confidence = 1
		}
		maxConfidence = max(maxConfidence, confidence)

		if confidence >= confidenceThreshold {
			foundVoiceFor += v.FrameDuration
			if firstVoiceDetection < 0 {
				firstVoiceDetection = v.FrameDuration * time.Duration(pos)
				logger.Tracef(ctx, "voice found at %v", firstVoiceDetection)
			}
		}
		if foundVoiceFor >= minDuration {
			break
		}
	}
	return maxConfidence, firstVoiceDetection, nil
}
