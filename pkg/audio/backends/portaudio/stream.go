package portaudio

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
	"github.com/xaionaro-go/observability"
)

// stream is the part shared by the recording and the playing streams:
// a blocking PortAudio stream with a byte view of its sample buffer,
// and a single loop goroutine moving the data.
type stream struct {
	PortAudioStream *portaudio.Stream
	Buffer          []byte
	CancelFunc      context.CancelFunc
	WaitGroup       sync.WaitGroup
	closeOnce       sync.Once
	closeErr        error
	loopErr         error
}

// openStream opens the default device for a blocking stream with samples of type T.
func openStream[T any](
	ctx context.Context,
	isInput bool,
	sampleRate types.SampleRate,
	channels types.Channel,
	bufferSize time.Duration,
) (*stream, error) {
	framesPerBuffer := int(bufferSize.Seconds() * float64(sampleRate))
	buf := make([]T, framesPerBuffer*int(channels))

	var sample T
	logger.Debugf(ctx, "openStream[%T]: input:%v rate:%d channels:%d buffer:%s(%d frames)", sample, isInput, sampleRate, channels, bufferSize, framesPerBuffer)

	var (
		paStream *portaudio.Stream
		err      error
	)
	if isInput {
		paStream, err = portaudio.OpenDefaultStream(int(channels), 0, float64(sampleRate), framesPerBuffer, buf)
	} else {
		paStream, err = portaudio.OpenDefaultStream(0, int(channels), float64(sampleRate), framesPerBuffer, buf)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open the default stream: %w", err)
	}

	return &stream{
		PortAudioStream: paStream,
		Buffer:          unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(buf))), len(buf)*int(unsafe.Sizeof(sample))),
	}, nil
}

func (s *stream) start(
	ctx context.Context,
	loop func(context.Context) error,
) error {
	if err := s.PortAudioStream.Start(); err != nil {
		return fmt.Errorf("unable to start the stream: %w", err)
	}

	ctx, s.CancelFunc = context.WithCancel(ctx)
	s.WaitGroup.Add(1)
	observability.Go(ctx, func() {
		defer s.WaitGroup.Done()
		defer s.CancelFunc()
		err := loop(ctx)
		logger.Debugf(ctx, "the stream loop ended: %v", err)
		s.loopErr = err
	})
	return nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		if s.CancelFunc != nil {
			s.CancelFunc()
		}
		if err := s.PortAudioStream.Abort(); err != nil {
			s.closeErr = fmt.Errorf("unable to abort the stream: %w", err)
		}
		if err := s.PortAudioStream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("unable to close the stream: %w", err)
		}
	})
	return s.closeErr
}

// Drain waits until the loop ends and returns its error if it was not a cancellation.
func (s *stream) Drain() error {
	s.WaitGroup.Wait()
	if s.loopErr != nil && s.loopErr != context.Canceled {
		return s.loopErr
	}
	return nil
}

func openStreamForFormat(
	ctx context.Context,
	isInput bool,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	bufferSize time.Duration,
) (*stream, error) {
	switch format {
	case types.PCMFormatU8:
		return openStream[uint8](ctx, isInput, sampleRate, channels, bufferSize)
	case types.PCMFormatS16LE:
		return openStream[int16](ctx, isInput, sampleRate, channels, bufferSize)
	case types.PCMFormatS32LE:
		return openStream[int32](ctx, isInput, sampleRate, channels, bufferSize)
	case types.PCMFormatFloat32LE:
		return openStream[float32](ctx, isInput, sampleRate, channels, bufferSize)
	default:
		return nil, fmt.Errorf("do not know how to start a stream for PCM format %s", format)
	}
}
