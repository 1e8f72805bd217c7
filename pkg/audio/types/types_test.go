package types

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCMFormatEncodeDecode(t *testing.T) {
	for f := PCMFormatU8; f < EndOfPCMFormat; f++ {
		t.Run(f.String(), func(t *testing.T) {
			buf := make([]byte, f.Size())
			for _, v := range []float64{-0.5, 0, 0.25, 0.5} {
				f.Encode(buf, v)
				assert.InDelta(t, v, f.Decode(buf), 1.0/64, fmt.Sprintf("value %v", v))
			}
		})
	}
}

func TestPCMFormatEncodeSaturates(t *testing.T) {
	buf := make([]byte, 2)
	PCMFormatS16LE.Encode(buf, 1.5)
	assert.InDelta(t, 1.0, PCMFormatS16LE.Decode(buf), 0.001)
	PCMFormatS16LE.Encode(buf, -1.5)
	assert.Equal(t, -1.0, PCMFormatS16LE.Decode(buf))

	buf = make([]byte, 8)
	PCMFormatS64LE.Encode(buf, 2)
	assert.Equal(t, float64(math.MaxInt64)/9223372036854775808, PCMFormatS64LE.Decode(buf))
}

func TestParsePCMFormat(t *testing.T) {
	f, err := ParsePCMFormat("f32le")
	require.NoError(t, err)
	assert.Equal(t, PCMFormatFloat32LE, f)

	_, err = ParsePCMFormat("mp3")
	assert.Error(t, err)
}

func TestEncodingPCMBytesForDuration(t *testing.T) {
	enc := EncodingPCM{PCMFormat: PCMFormatFloat32LE, SampleRate: 48000}
	assert.Equal(t, uint(4), enc.BytesPerSample())
	assert.Equal(t, uint64(480*4), enc.BytesForDuration(10*time.Millisecond))
}
