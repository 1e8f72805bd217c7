package monitorstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/earmonitor/pkg/noisesuppression"
	"github.com/xaionaro-go/observability"
)

// Stream reads `input` chunk by chunk on a background loop, runs every
// chunk through a NoiseSuppression and exposes the result as io.Reader.
type Stream struct {
	noisesuppression.NoiseSuppression
	config config

	cancelFunc context.CancelFunc
	readCtx    context.Context
	loopDone   chan struct{}

	outputBufferLocker sync.Mutex
	outputBuffer       *circular.Buffer
	resultError        error
	processedCh        chan struct{}
	consumedCh         chan struct{}
}

var _ io.ReadCloser = (*Stream)(nil)

func New(
	ctx context.Context,
	input io.Reader,
	processor noisesuppression.NoiseSuppression,
	bufferSize uint,
	opts ...Option,
) (*Stream, error) {
	encoding, err := processor.Encoding(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the encoding of the processor: %w", err)
	}
	channels, err := processor.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get the amount of channels of the processor: %w", err)
	}
	frameSize := encoding.BytesPerSample() * uint(channels)
	chunkSize := processor.ChunkSize()
	if frameSize == 0 || chunkSize == 0 || chunkSize%frameSize != 0 {
		return nil, fmt.Errorf("the chunk size %d is not a positive multiple of the frame size %d", chunkSize, frameSize)
	}
	if bufferSize < chunkSize {
		return nil, fmt.Errorf("the buffer size %d is smaller than the chunk size %d", bufferSize, chunkSize)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	s := &Stream{
		NoiseSuppression: processor,
		config:           Options(opts).config(),
		cancelFunc:       cancelFunc,
		readCtx:          ctx,
		loopDone:         make(chan struct{}),
		outputBuffer:     circular.NewBuffer(int(bufferSize)),
		processedCh:      make(chan struct{}),
		consumedCh:       make(chan struct{}),
	}
	observability.Go(ctx, func() {
		defer close(s.loopDone)
		err := s.loop(ctx, input, frameSize)
		s.outputBufferLocker.Lock()
		defer s.outputBufferLocker.Unlock()
		if s.resultError == nil {
			s.resultError = err
		}
		s.notifyProcessed()
	})
	return s, nil
}

func (s *Stream) loop(
	ctx context.Context,
	input io.Reader,
	frameSize uint,
) (_err error) {
	logger.Tracef(ctx, "loop")
	defer func() { logger.Tracef(ctx, "/loop: %v", _err) }()

	chunkSize := s.ChunkSize()
	inputBuf := make([]byte, chunkSize)
	outputBuf := make([]byte, chunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := io.ReadFull(input, inputBuf)
		var lastChunk bool
		switch {
		case err == nil:
		case errors.Is(err, io.ErrUnexpectedEOF):
			n -= n % int(frameSize)
			lastChunk = true
		case errors.Is(err, io.EOF):
			return io.EOF
		default:
			return fmt.Errorf("unable to read the input: %w", err)
		}
		if n == 0 {
			return io.EOF
		}

		gain, err := s.SuppressNoise(ctx, inputBuf[:n], outputBuf[:n])
		if err != nil {
			return fmt.Errorf("unable to process a chunk: %w", err)
		}
		if s.config.OnChunk != nil {
			s.config.OnChunk(ctx, outputBuf[:n], gain)
		}

		if err := s.write(ctx, outputBuf[:n]); err != nil {
			return err
		}
		if lastChunk {
			return io.EOF
		}
	}
}

func (s *Stream) write(ctx context.Context, p []byte) error {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	for {
		w, err := s.outputBuffer.Write(p)
		switch {
		case err == nil:
			if w != len(p) {
				return fmt.Errorf("wrote != processed: %d != %d", w, len(p))
			}
			s.notifyProcessed()
			return nil
		case errors.Is(err, circular.ErrNoSpace):
			if err := s.waitLocked(ctx, s.consumedCh); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
	}
}

// waitLocked releases outputBufferLocker until `ch` is closed or the context is done.
func (s *Stream) waitLocked(ctx context.Context, ch <-chan struct{}) error {
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

func (s *Stream) notifyProcessed() {
	var oldCh chan struct{}
	oldCh, s.processedCh = s.processedCh, make(chan struct{})
	close(oldCh)
}

func (s *Stream) notifyConsumed() {
	var oldCh chan struct{}
	oldCh, s.consumedCh = s.consumedCh, make(chan struct{})
	close(oldCh)
}

// Read blocks until processed audio is available. After the input is
// exhausted and the buffer is drained it returns io.EOF.
func (s *Stream) Read(p []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(p))
	defer func() { logger.Tracef(s.readCtx, "/Read, len:%d: %d, %v", len(p), _ret, _err) }()

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()
	for {
		n, err := s.outputBuffer.Read(p)
		if err == nil {
			s.notifyConsumed()
			return n, nil
		}
		if !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("unable to read from the circular buffer: %w", err)
		}
		if s.resultError != nil {
			return 0, s.resultError
		}
		if err := s.waitLocked(s.readCtx, s.processedCh); err != nil {
			return 0, err
		}
	}
}

// Close stops the processing loop and waits for it to exit. A loop
// blocked on reading the input exits only once that input is closed.
func (s *Stream) Close() error {
	s.cancelFunc()
	<-s.loopDone
	return nil
}
