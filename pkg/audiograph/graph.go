package audiograph

import (
	"context"
	"fmt"
	"sync"

	"github.com/xaionaro-go/earmonitor/pkg/audio"
	"github.com/xaionaro-go/earmonitor/pkg/audio/planar"
	"github.com/xaionaro-go/earmonitor/pkg/filterchain"
	"github.com/xaionaro-go/earmonitor/pkg/noisegate"
	"github.com/xaionaro-go/earmonitor/pkg/noisesuppression"
)

// Graph is the processing graph of the monitor:
//
//	source -> analyser (tap)
//	       -> high-pass -> low-pass -> gate gain -> volume -> sink
type Graph struct {
	encoding  audio.EncodingPCM
	channels  audio.Channel
	chunkSize uint

	analyser *Analyser
	highPass *Biquad
	lowPass  *Biquad
	gate     *GainStage
	volume   *GainStage

	processLocker sync.Mutex
	planes        [][]float64
}

var _ noisesuppression.NoiseSuppression = (*Graph)(nil)
var _ filterchain.FilterSink = (*Graph)(nil)
var _ noisegate.EnergySource = (*Graph)(nil)
var _ noisegate.GainSink = (*Graph)(nil)

func New(
	encoding audio.EncodingPCM,
	channels audio.Channel,
	opts ...Option,
) (*Graph, error) {
	if encoding.PCMFormat.Size() == 0 {
		return nil, fmt.Errorf("unsupported PCM format: %v", encoding.PCMFormat)
	}
	if encoding.SampleRate == 0 {
		return nil, fmt.Errorf("the sample rate is not set")
	}
	if channels == 0 {
		return nil, fmt.Errorf("the amount of channels is not set")
	}
	cfg := Options(opts).config()

	analyser, err := NewAnalyser(cfg.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the analyser: %w", err)
	}

	sampleRate := float64(encoding.SampleRate)
	return &Graph{
		encoding:  encoding,
		channels:  channels,
		chunkSize: uint(encoding.BytesForDuration(cfg.ChunkDuration)) * uint(channels),
		analyser:  analyser,
		highPass:  NewBiquad(FilterTypeHighPass, sampleRate, cfg.HighPassHz),
		lowPass:   NewBiquad(FilterTypeLowPass, sampleRate, cfg.LowPassHz),
		gate:      NewGainStage(1),
		volume:    NewGainStage(cfg.Volume),
		planes:    make([][]float64, channels),
	}, nil
}

func (g *Graph) Close() error {
	return nil
}

func (g *Graph) Encoding(context.Context) (audio.Encoding, error) {
	return g.encoding, nil
}

func (g *Graph) Channels(context.Context) (audio.Channel, error) {
	return g.channels, nil
}

func (g *Graph) ChunkSize() uint {
	return g.chunkSize
}

func (g *Graph) Analyser() *Analyser {
	return g.analyser
}

func (g *Graph) BinCount() uint {
	return g.analyser.BinCount()
}

func (g *Graph) Snapshot(dst noisegate.EnergySnapshot) noisegate.EnergySnapshot {
	return g.analyser.Snapshot(dst)
}

// Gain returns the gate gain.
func (g *Graph) Gain() float64 {
	return g.gate.Gain()
}

// SetGain sets the gate gain.
func (g *Graph) SetGain(v float64) {
	g.gate.SetGain(v)
}

func (g *Graph) HighPassStage() filterchain.Stage {
	return g.highPass
}

func (g *Graph) LowPassStage() filterchain.Stage {
	return g.lowPass
}

// Volume is the output gain applied after the gate.
func (g *Graph) Volume() *GainStage {
	return g.volume
}

// SuppressNoise runs `input` through the graph into `output` and returns
// the gate gain applied to the chunk. Any length that is a multiple of
// the frame size is accepted.
func (g *Graph) SuppressNoise(
	ctx context.Context,
	input []byte,
	output []byte,
) (float64, error) {
	sampleSize := int(g.encoding.PCMFormat.Size())
	frameSize := sampleSize * int(g.channels)
	if len(input)%frameSize != 0 {
		return 0, fmt.Errorf("the input size %d is not a multiple of the frame size %d", len(input), frameSize)
	}
	if len(output) < len(input) {
		return 0, fmt.Errorf("the output buffer is too short: %d < %d", len(output), len(input))
	}

	g.processLocker.Lock()
	defer g.processLocker.Unlock()

	format := g.encoding.PCMFormat
	planes, err := planar.Planarize(format, g.channels, g.planes, input)
	if err != nil {
		return 0, fmt.Errorf("unable to decode the input: %w", err)
	}
	g.planes = planes

	g.analyser.Push(planes)
	g.highPass.Process(planes)
	g.lowPass.Process(planes)
	gain := g.gate.Process(planes)
	g.volume.Process(planes)
	for _, plane := range planes {
		for i, v := range plane {
			plane[i] = clip(v)
		}
	}

	if err := planar.Unplanarize(format, output[:len(input)], planes); err != nil {
		return 0, fmt.Errorf("unable to encode the output: %w", err)
	}
	return gain, nil
}

func clip(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
