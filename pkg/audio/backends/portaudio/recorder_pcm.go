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

const (
	RecordBufferSize = time.Millisecond * 20
)

type RecorderPCM struct{}

var _ types.RecorderPCM = (*RecorderPCM)(nil)

func NewRecorderPCM() (*RecorderPCM, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to initialize PortAudio: %w", err)
	}
	return &RecorderPCM{}, nil
}

func (*RecorderPCM) Close() error {
	return portaudio.Terminate()
}

func (*RecorderPCM) Ping(
	ctx context.Context,
) error {
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return err
	}
	logger.Debugf(ctx, "input device info: %#+v", info)

	if devices, err := portaudio.Devices(); err == nil {
		for idx, device := range devices {
			logger.Tracef(ctx, "devices[%d]: %#+v", idx, device)
		}
	}
	return nil
}

type RecordPCMStream struct {
	*stream
	Writer io.Writer
}

var _ types.RecordStream = (*RecordPCMStream)(nil)

func (*RecorderPCM) RecordPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	writer io.Writer,
) (_ types.RecordStream, _err error) {
	logger.Tracef(ctx, "RecordPCM")
	defer func() { logger.Tracef(ctx, "/RecordPCM: %v", _err) }()

	st, err := openStreamForFormat(ctx, true, sampleRate, channels, format, RecordBufferSize)
	if err != nil {
		return nil, err
	}
	s := &RecordPCMStream{
		stream: st,
		Writer: writer,
	}
	if err := s.start(ctx, s.loop); err != nil {
		_ = st.PortAudioStream.Close()
		return nil, err
	}
	return s, nil
}

func (s *RecordPCMStream) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logger.Tracef(ctx, "Read")
		if err := s.PortAudioStream.Read(); err != nil {
			return fmt.Errorf("unable to read: %w", err)
		}
		n, err := s.Writer.Write(s.Buffer)
		if err != nil {
			return fmt.Errorf("unable to write: %w", err)
		}
		if n != len(s.Buffer) {
			return fmt.Errorf("invalid write length: %d != %d", n, len(s.Buffer))
		}
	}
}
