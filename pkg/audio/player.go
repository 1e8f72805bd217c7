package audio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/earmonitor/pkg/audio/registry"
)

const BufferSize = 100 * time.Millisecond

type Player struct {
	PlayerPCM
}

func NewPlayer(playerPCM PlayerPCM) *Player {
	return &Player{
		PlayerPCM: playerPCM,
	}
}

var lastSuccessfulPlayerFactory lastSuccessful[registry.PlayerPCMFactory]

// NewPlayerAuto returns a player using the highest-priority backend that
// responds to a ping. If none does, a dummy player is returned.
func NewPlayerAuto(
	ctx context.Context,
) *Player {
	player, err := selectBackend(
		ctx, "PCM player",
		&lastSuccessfulPlayerFactory,
		registry.PlayerFactories(),
		func(f registry.PlayerPCMFactory) (PlayerPCM, error) { return f.NewPlayerPCM() },
	)
	if err != nil {
		logger.Infof(ctx, "was unable to initialize any PCM player: %v", err)
		return NewPlayer(PlayerPCMDummy{})
	}
	return NewPlayer(player)
}

func (a *Player) PlayPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	pcmFormat PCMFormat,
	bufferSize time.Duration,
	pcmReader io.Reader,
) (PlayStream, error) {
	stream, err := a.PlayerPCM.PlayPCM(
		ctx,
		sampleRate,
		channels,
		pcmFormat,
		bufferSize,
		pcmReader,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to start playing PCM using %T: %w", a.PlayerPCM, err)
	}
	return stream, nil
}
