package oto

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/earmonitor/pkg/audio/resampler"
	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

// drainCheckInterval is how often Drain polls the player state.
const drainCheckInterval = 10 * time.Millisecond

type PlayerPCM struct {
	OtoCtx *oto.Context
}

var _ types.PlayerPCM = (*PlayerPCM)(nil)

func NewPlayerPCM() (*PlayerPCM, error) {
	otoCtx, err := getOtoContext()
	if err != nil {
		return nil, fmt.Errorf("unable to get an oto context: %w", err)
	}

	return &PlayerPCM{
		OtoCtx: otoCtx,
	}, nil
}

func (p *PlayerPCM) Close() error {
	return nil
}

func (p *PlayerPCM) Ping(context.Context) error {
	return p.OtoCtx.Err()
}

func (p *PlayerPCM) PlayPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (types.PlayStream, error) {
	if bufferSize != BufferSize {
		logger.Debugf(ctx, "oto uses a fixed buffer size %v, ignoring the requested %v", BufferSize, bufferSize)
	}
	if sampleRate != SampleRate || channels != Channels || format != Format {
		inFmt := resampler.Format{
			Channels:   channels,
			SampleRate: sampleRate,
			PCMFormat:  format,
		}
		outFmt := resampler.Format{
			Channels:   Channels,
			SampleRate: SampleRate,
			PCMFormat:  Format,
		}
		var err error
		reader, err = resampler.NewResampler(inFmt, reader, outFmt)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize a resampler from %#+v to %#+v: %w", inFmt, outFmt, err)
		}
	}

	player := p.OtoCtx.NewPlayer(reader)
	player.Play()

	return &PlayStream{Player: player}, nil
}

type PlayStream struct {
	Player *oto.Player
}

var _ types.PlayStream = (*PlayStream)(nil)

func (s *PlayStream) Drain() error {
	for s.Player.IsPlaying() {
		time.Sleep(drainCheckInterval)
	}
	return s.Player.Err()
}

func (s *PlayStream) Close() error {
	s.Player.Pause()
	return s.Player.Err()
}
