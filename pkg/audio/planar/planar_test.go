package planar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

func TestPlanarize(t *testing.T) {
	// L R L R L R
	input := []byte{0x80, 0x00, 0xc0, 0x40, 0x00, 0x80}
	planes, err := Planarize(types.PCMFormatU8, 2, nil, input)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{
		{0, 0.5, -1},
		{-1, -0.5, 0},
	}, planes)

	output := make([]byte, len(input))
	require.NoError(t, Unplanarize(types.PCMFormatU8, output, planes))
	assert.Equal(t, input, output)
}

func TestPlanarizeReusesPlanes(t *testing.T) {
	planes := [][]float64{make([]float64, 0, 16)}
	backing := &planes[0][:1][0]

	planes, err := Planarize(types.PCMFormatS16LE, 1, planes, make([]byte, 8))
	require.NoError(t, err)
	require.Len(t, planes[0], 4)
	assert.Same(t, backing, &planes[0][0])
}

func TestPlanarizeErrors(t *testing.T) {
	_, err := Planarize(types.PCMFormatS16LE, 2, nil, make([]byte, 6))
	assert.Error(t, err)
	_, err = Planarize(types.PCMFormatUndefined, 2, nil, make([]byte, 8))
	assert.Error(t, err)
	_, err = Planarize(types.PCMFormatS16LE, 0, nil, make([]byte, 8))
	assert.Error(t, err)
}

func TestUnplanarizeErrors(t *testing.T) {
	err := Unplanarize(types.PCMFormatU8, make([]byte, 4), [][]float64{{0, 0}, {0}})
	assert.Error(t, err)
	err = Unplanarize(types.PCMFormatU8, make([]byte, 3), [][]float64{{0, 0}, {0, 0}})
	assert.Error(t, err)
	err = Unplanarize(types.PCMFormatU8, nil, nil)
	assert.Error(t, err)
}
