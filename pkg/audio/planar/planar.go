// Package planar converts between interleaved PCM and per-channel planes
// of normalized samples.
package planar

import (
	"fmt"

	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

func frameSize(format types.PCMFormat, channels types.Channel) (int, error) {
	sampleSize := int(format.Size())
	if sampleSize == 0 {
		return 0, fmt.Errorf("unsupported PCM format: %v", format)
	}
	if channels == 0 {
		return 0, fmt.Errorf("the amount of channels is zero")
	}
	return sampleSize * int(channels), nil
}

// Planarize decodes interleaved `input` into one plane per channel. The
// planes are resized (reallocated if needed) to the amount of frames and
// returned.
func Planarize(
	format types.PCMFormat,
	channels types.Channel,
	planes [][]float64,
	input []byte,
) ([][]float64, error) {
	frameSize, err := frameSize(format, channels)
	if err != nil {
		return planes, err
	}
	if len(input)%frameSize != 0 {
		return planes, fmt.Errorf("expected a message length that is a multiple of %d, but received %d", frameSize, len(input))
	}
	frames := len(input) / frameSize

	if len(planes) != int(channels) {
		planes = make([][]float64, channels)
	}
	for ch := range planes {
		if cap(planes[ch]) < frames {
			planes[ch] = make([]float64, frames)
		}
		planes[ch] = planes[ch][:frames]
	}

	sampleSize := int(format.Size())
	for ch, plane := range planes {
		offset := ch * sampleSize
		for i := range plane {
			plane[i] = format.Decode(input[offset+i*frameSize:])
		}
	}
	return planes, nil
}

// Unplanarize encodes the planes into interleaved `output`, which must be
// exactly frames*channels*sampleSize bytes long.
func Unplanarize(
	format types.PCMFormat,
	output []byte,
	planes [][]float64,
) error {
	frameSize, err := frameSize(format, types.Channel(len(planes)))
	if err != nil {
		return err
	}
	frames := len(planes[0])
	for ch, plane := range planes {
		if len(plane) != frames {
			return fmt.Errorf("the planes have different lengths: %d != %d (channel %d)", len(plane), frames, ch)
		}
	}
	if len(output) != frames*frameSize {
		return fmt.Errorf("the output length is %d, but expected %d", len(output), frames*frameSize)
	}

	sampleSize := int(format.Size())
	for ch, plane := range planes {
		offset := ch * sampleSize
		for i, v := range plane {
			format.Encode(output[offset+i*frameSize:], v)
		}
	}
	return nil
}
