package resampler

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

func readAll(t *testing.T, r io.Reader, chunkSize int) []byte {
	var result []byte
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		result = append(result, buf[:n]...)
		if err == io.EOF {
			return result
		}
		require.NoError(t, err)
	}
}

func TestResampler(t *testing.T) {
	t.Run("Identity_U8_Mono", func(t *testing.T) {
		f := Format{Channels: 1, SampleRate: 44100, PCMFormat: types.PCMFormatU8}
		data := []byte{10, 20, 30, 40, 50}
		r, err := NewResampler(f, bytes.NewReader(data), f)
		require.NoError(t, err)

		// the last frame is held back until the next one arrives
		assert.Equal(t, data[:4], readAll(t, r, 16))
	})

	t.Run("Conversion_U8_to_Float32LE_Mono", func(t *testing.T) {
		inFmt := Format{Channels: 1, SampleRate: 44100, PCMFormat: types.PCMFormatU8}
		outFmt := Format{Channels: 1, SampleRate: 44100, PCMFormat: types.PCMFormatFloat32LE}
		r, err := NewResampler(inFmt, bytes.NewReader([]byte{0, 128, 255, 0}), outFmt)
		require.NoError(t, err)

		out := readAll(t, r, 64)
		require.Len(t, out, 12)
		assert.InDelta(t, -1.0, types.PCMFormatFloat32LE.Decode(out[0:]), 0.01)
		assert.InDelta(t, 0.0, types.PCMFormatFloat32LE.Decode(out[4:]), 0.01)
		assert.InDelta(t, 1.0, types.PCMFormatFloat32LE.Decode(out[8:]), 0.01)
	})

	t.Run("Downsampling_2x", func(t *testing.T) {
		inFmt := Format{Channels: 1, SampleRate: 44100, PCMFormat: types.PCMFormatU8}
		outFmt := Format{Channels: 1, SampleRate: 22050, PCMFormat: types.PCMFormatU8}
		data := make([]byte, 101)
		for i := range data {
			data[i] = byte(i)
		}
		r, err := NewResampler(inFmt, bytes.NewReader(data), outFmt)
		require.NoError(t, err)

		out := readAll(t, r, 7)
		require.Len(t, out, 50)
		for i, v := range out {
			assert.Equal(t, data[i*2], v)
		}
	})

	t.Run("Upsampling_2x_interpolates", func(t *testing.T) {
		inFmt := Format{Channels: 1, SampleRate: 24000, PCMFormat: types.PCMFormatU8}
		outFmt := Format{Channels: 1, SampleRate: 48000, PCMFormat: types.PCMFormatU8}
		r, err := NewResampler(inFmt, bytes.NewReader([]byte{128, 192, 128}), outFmt)
		require.NoError(t, err)

		assert.Equal(t, []byte{128, 160, 192, 160}, readAll(t, r, 3))
	})

	t.Run("Channels_Mono_to_Stereo", func(t *testing.T) {
		inFmt := Format{Channels: 1, SampleRate: 44100, PCMFormat: types.PCMFormatU8}
		outFmt := Format{Channels: 2, SampleRate: 44100, PCMFormat: types.PCMFormatU8}
		r, err := NewResampler(inFmt, bytes.NewReader([]byte{10, 20, 30, 40}), outFmt)
		require.NoError(t, err)

		assert.Equal(t, []byte{10, 10, 20, 20, 30, 30}, readAll(t, r, 6))
	})

	t.Run("Channels_Stereo_to_Mono", func(t *testing.T) {
		inFmt := Format{Channels: 2, SampleRate: 44100, PCMFormat: types.PCMFormatU8}
		outFmt := Format{Channels: 1, SampleRate: 44100, PCMFormat: types.PCMFormatU8}
		r, err := NewResampler(inFmt, bytes.NewReader([]byte{100, 200, 50, 150, 0, 0}), outFmt)
		require.NoError(t, err)

		assert.Equal(t, []byte{150, 100}, readAll(t, r, 2))
	})

	t.Run("Unsupported_channels", func(t *testing.T) {
		_, err := NewResampler(
			Format{Channels: 2, SampleRate: 44100, PCMFormat: types.PCMFormatU8},
			bytes.NewReader(nil),
			Format{Channels: 3, SampleRate: 44100, PCMFormat: types.PCMFormatU8},
		)
		assert.Error(t, err)
	})
}
