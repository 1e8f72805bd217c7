package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

type lowFactory struct{}

func (lowFactory) NewRecorderPCM() (types.RecorderPCM, error) { return nil, nil }

type highFactory struct{}

func (*highFactory) NewRecorderPCM() (types.RecorderPCM, error) { return nil, nil }

func TestFactoryRegistryOrder(t *testing.T) {
	var r factoryRegistry[RecorderPCMFactory]
	r.register(10, lowFactory{})
	r.register(100, &highFactory{})

	list := r.list()
	require.Len(t, list, 2)
	assert.IsType(t, &highFactory{}, list[0])
	assert.IsType(t, lowFactory{}, list[1])
}

func TestFactoryRegistryDuplicate(t *testing.T) {
	var r factoryRegistry[RecorderPCMFactory]
	r.register(10, &highFactory{})
	assert.Panics(t, func() {
		r.register(20, &highFactory{})
	})
}
