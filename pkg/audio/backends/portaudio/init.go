package portaudio

import (
	"github.com/xaionaro-go/earmonitor/pkg/audio/registry"
	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

const (
	Priority = 60
)

func init() {
	registry.RegisterPlayerFactory(Priority, PlayerPCMFactory{})
	registry.RegisterRecorderFactory(Priority, RecorderPCMFactory{})
}

type PlayerPCMFactory struct{}

func (PlayerPCMFactory) NewPlayerPCM() (types.PlayerPCM, error) {
	return NewPlayerPCM()
}

type RecorderPCMFactory struct{}

func (RecorderPCMFactory) NewRecorderPCM() (types.RecorderPCM, error) {
	return NewRecorderPCM()
}
