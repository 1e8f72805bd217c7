package portaudio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

type PlayerPCM struct{}

var _ types.PlayerPCM = (*PlayerPCM)(nil)

func NewPlayerPCM() (*PlayerPCM, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to initialize PortAudio: %w", err)
	}
	return &PlayerPCM{}, nil
}

func (*PlayerPCM) Close() error {
	return portaudio.Terminate()
}

func (*PlayerPCM) Ping(
	ctx context.Context,
) error {
	info, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return err
	}
	logger.Debugf(ctx, "output device info: %#+v", info)
	return nil
}

type PlayPCMStream struct {
	*stream
	Reader io.Reader
}

var _ types.PlayStream = (*PlayPCMStream)(nil)

func (*PlayerPCM) PlayPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (_ types.PlayStream, _err error) {
	logger.Tracef(ctx, "PlayPCM")
	defer func() { logger.Tracef(ctx, "/PlayPCM: %v", _err) }()

	st, err := openStreamForFormat(ctx, false, sampleRate, channels, format, bufferSize)
	if err != nil {
		return nil, err
	}
	s := &PlayPCMStream{
		stream: st,
		Reader: reader,
	}
	if err := s.start(ctx, s.loop); err != nil {
		_ = st.PortAudioStream.Close()
		return nil, err
	}
	return s, nil
}

func (s *PlayPCMStream) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := io.ReadFull(s.Reader, s.Buffer); err != nil {
			return fmt.Errorf("unable to read: %w", err)
		}
		logger.Tracef(ctx, "Write")
		if err := s.PortAudioStream.Write(); err != nil {
			return fmt.Errorf("unable to write: %w", err)
		}
	}
}
