// Package resampler converts a PCM stream between sample rates, channel
// layouts and sample formats using linear interpolation.
package resampler

import (
	"fmt"
	"io"
	"sync"

	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

type Format struct {
	Channels   types.Channel
	SampleRate types.SampleRate
	PCMFormat  types.PCMFormat
}

func (f Format) frameSize() int {
	return int(f.PCMFormat.Size()) * int(f.Channels)
}

type Resampler struct {
	inReader  io.Reader
	inFormat  Format
	outFormat Format
	step      float64

	locker   sync.Mutex
	readBuf  []byte
	pending  []byte
	prev     []float64
	cur      []float64
	havePrev bool
	pos      float64
}

var _ io.Reader = (*Resampler)(nil)

func NewResampler(
	inFormat Format,
	inReader io.Reader,
	outFormat Format,
) (*Resampler, error) {
	if err := validateFormats(inFormat, outFormat); err != nil {
		return nil, fmt.Errorf("unable to initialize a resampler from %#+v to %#+v: %w", inFormat, outFormat, err)
	}
	return &Resampler{
		inReader:  inReader,
		inFormat:  inFormat,
		outFormat: outFormat,
		step:      float64(inFormat.SampleRate) / float64(outFormat.SampleRate),
		prev:      make([]float64, outFormat.Channels),
		cur:       make([]float64, outFormat.Channels),
	}, nil
}

func validateFormats(in, out Format) error {
	for _, f := range []Format{in, out} {
		if f.PCMFormat.Size() == 0 {
			return fmt.Errorf("unsupported PCM format %v", f.PCMFormat)
		}
		if f.Channels == 0 {
			return fmt.Errorf("the amount of channels must be positive")
		}
		if f.SampleRate == 0 {
			return fmt.Errorf("the sample rate must be positive")
		}
	}
	if in.Channels != out.Channels && in.Channels != 1 && out.Channels != 1 {
		return fmt.Errorf("do not know how to convert %d channels to %d", in.Channels, out.Channels)
	}
	return nil
}

// decodeFrame converts an input frame to r.cur, remapping the channels.
func (r *Resampler) decodeFrame(frame []byte) {
	sampleSize := int(r.inFormat.PCMFormat.Size())
	switch {
	case r.inFormat.Channels == r.outFormat.Channels:
		for ch := range r.cur {
			r.cur[ch] = r.inFormat.PCMFormat.Decode(frame[ch*sampleSize:])
		}
	case r.inFormat.Channels == 1:
		v := r.inFormat.PCMFormat.Decode(frame)
		for ch := range r.cur {
			r.cur[ch] = v
		}
	default:
		var sum float64
		for ch := 0; ch < int(r.inFormat.Channels); ch++ {
			sum += r.inFormat.PCMFormat.Decode(frame[ch*sampleSize:])
		}
		r.cur[0] = sum / float64(r.inFormat.Channels)
	}
}

func (r *Resampler) Read(p []byte) (int, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	inFrameSize := r.inFormat.frameSize()
	outFrameSize := r.outFormat.frameSize()
	outSampleSize := int(r.outFormat.PCMFormat.Size())
	maxOutFrames := len(p) / outFrameSize
	if maxOutFrames == 0 {
		return 0, nil
	}

	var readErr error
	bytesWanted := (int(float64(maxOutFrames)*r.step) + 1) * inFrameSize
	if len(r.pending) < bytesWanted {
		if cap(r.readBuf) < bytesWanted {
			newBuf := make([]byte, bytesWanted)
			r.pending = newBuf[:copy(newBuf, r.pending)]
			r.readBuf = newBuf
		}
		keep := copy(r.readBuf, r.pending)
		n, err := r.inReader.Read(r.readBuf[keep:bytesWanted])
		r.pending = r.readBuf[:keep+n]
		readErr = err
	}

	outFrames := 0
	for len(r.pending) >= inFrameSize && outFrames < maxOutFrames {
		r.decodeFrame(r.pending[:inFrameSize])
		if !r.havePrev {
			copy(r.prev, r.cur)
			r.havePrev = true
			r.pending = r.pending[inFrameSize:]
			continue
		}

		for r.pos < 1 && outFrames < maxOutFrames {
			dst := p[outFrames*outFrameSize:]
			for ch := range r.cur {
				v := r.prev[ch] + (r.cur[ch]-r.prev[ch])*r.pos
				r.outFormat.PCMFormat.Encode(dst[ch*outSampleSize:], v)
			}
			outFrames++
			r.pos += r.step
		}
		if r.pos < 1 {
			// the output is full while this input frame is not consumed yet
			break
		}
		r.pos--
		copy(r.prev, r.cur)
		r.pending = r.pending[inFrameSize:]
	}

	if outFrames > 0 {
		readErr = nil
	}
	return outFrames * outFrameSize, readErr
}
