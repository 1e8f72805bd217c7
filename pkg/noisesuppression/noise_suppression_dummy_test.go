package noisesuppression

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/earmonitor/pkg/audio"
)

func TestDummy(t *testing.T) {
	ctx := context.Background()
	encoding := audio.EncodingPCM{PCMFormat: audio.PCMFormatS16LE, SampleRate: 16000}
	d := NewDummy(encoding, 2, 640)
	defer d.Close()

	enc, err := d.Encoding(ctx)
	require.NoError(t, err)
	assert.Equal(t, encoding, enc)
	ch, err := d.Channels(ctx)
	require.NoError(t, err)
	assert.Equal(t, audio.Channel(2), ch)
	assert.Equal(t, uint(640), d.ChunkSize())

	input := []byte{1, 2, 3, 4}
	output := make([]byte, 4)
	gain, err := d.SuppressNoise(ctx, input, output)
	require.NoError(t, err)
	assert.Equal(t, 1.0, gain)
	assert.Equal(t, input, output)

	_, err = d.SuppressNoise(ctx, input, output[:2])
	assert.Error(t, err)
}
