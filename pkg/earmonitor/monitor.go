// Package earmonitor plays the microphone back into the headphones after
// running it through the filter chain and the adaptive noise gate.
package earmonitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/earmonitor/pkg/audio"
	"github.com/xaionaro-go/earmonitor/pkg/audio/resampler"
	"github.com/xaionaro-go/earmonitor/pkg/audiograph"
	"github.com/xaionaro-go/earmonitor/pkg/monitorstream"
	"github.com/xaionaro-go/earmonitor/pkg/noisegate"
	"github.com/xaionaro-go/earmonitor/pkg/processor"
	"github.com/xaionaro-go/earmonitor/pkg/vad/implementations/fvad"
)

const pcmFormat = audio.PCMFormatFloat32LE

var (
	ErrInvalidArgument = processor.ErrInvalidArgument
	ErrAlreadyRunning  = errors.New("the monitor is already running")
	ErrStopped         = errors.New("the monitor is stopped")
)

type counter interface {
	Count() uint64
}

type Stats struct {
	BytesCaptured uint64
	BytesPlayed   uint64
	NoiseLevel    float64
	Gain          float64
	VoiceActive   bool
}

type Monitor struct {
	// ctx carries the logger of New for calls that get no context
	ctx       context.Context
	config    Config
	recorder  *audio.Recorder
	player    *audio.Player
	graph     *audiograph.Graph
	processor *processor.Processor

	vad         *fvad.VAD
	vadBuf      []byte
	voiceActive atomic.Bool

	locker          sync.Mutex
	running         bool
	closers         []io.Closer
	inputPipe       *io.PipeReader
	capturedCounter counter
	playedCounter   counter
}

func New(
	ctx context.Context,
	cfg Config,
	opts ...Option,
) (_ret *Monitor, _err error) {
	logger.Tracef(ctx, "New")
	defer func() { logger.Tracef(ctx, "/New: %v", _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := Options(opts).options()

	encoding := audio.EncodingPCM{
		PCMFormat:  pcmFormat,
		SampleRate: cfg.SampleRate,
	}
	graph, err := audiograph.New(
		encoding, cfg.Channels,
		audiograph.OptionChunkDuration(cfg.ChunkDuration),
		audiograph.OptionHighPassHz(cfg.Processor.HighPassHz),
		audiograph.OptionLowPassHz(cfg.Processor.LowPassHz),
		audiograph.OptionVolume(cfg.Volume),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the audio graph: %w", err)
	}

	gateOpts := append([]noisegate.Option{noisegate.OptionTickInterval(cfg.TickInterval)}, o.GateOptions...)
	proc, err := processor.New(cfg.Processor, gateOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the processor: %w", err)
	}

	m := &Monitor{
		ctx:       context.WithoutCancel(ctx),
		config:    cfg,
		graph:     graph,
		processor: proc,
	}

	if cfg.VoiceActivity.Enabled {
		m.vad, err = fvad.New(ctx, encoding, cfg.Channels, cfg.VoiceActivity.Mode, fvad.DefaultFrameDuration)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize the voice activity detector: %w", err)
		}
	}

	if o.Recorder != nil {
		m.recorder = audio.NewRecorder(o.Recorder)
	} else if cfg.InputVorbisFile == "" {
		m.recorder = audio.NewRecorderAuto(ctx)
	}
	if o.Player != nil {
		m.player = audio.NewPlayer(o.Player)
	} else {
		m.player = audio.NewPlayerAuto(ctx)
	}
	return m, nil
}

func (m *Monitor) Config() Config {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.config
}

func (m *Monitor) Processor() *processor.Processor {
	return m.processor
}

// Start begins capturing, processing and playing back.
func (m *Monitor) Start(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Start")
	defer func() { logger.Tracef(ctx, "/Start: %v", _err) }()

	m.locker.Lock()
	defer m.locker.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}

	if err := m.processor.Attach(ctx, m.graph); err != nil {
		return fmt.Errorf("unable to attach the processor to the audio graph: %w", err)
	}
	m.voiceActive.Store(false)
	m.vadBuf = m.vadBuf[:0]

	if err := m.startStreams(ctx); err != nil {
		m.processor.Disconnect(ctx)
		if closeErr := m.closeStreams(ctx); closeErr != nil {
			logger.Errorf(ctx, "unable to close the partially started streams: %v", closeErr)
		}
		return err
	}
	m.running = true
	logger.Debugf(ctx, "the monitor is started")
	return nil
}

func (m *Monitor) startStreams(ctx context.Context) error {
	cfg := m.config

	input, err := m.openInput(ctx)
	if err != nil {
		return err
	}

	bufferSize := uint(audio.EncodingPCM{PCMFormat: pcmFormat, SampleRate: cfg.SampleRate}.BytesForDuration(cfg.BufferSize)) * uint(cfg.Channels)
	stream, err := monitorstream.New(
		ctx, input, m.graph, bufferSize,
		monitorstream.OptionOnChunk(m.onChunk),
	)
	if err != nil {
		return fmt.Errorf("unable to initialize the monitor stream: %w", err)
	}
	m.closers = append(m.closers, stream)

	playedCounter := datacounter.NewReaderCounter(stream)
	m.playedCounter = playedCounter
	playStream, err := m.player.PlayPCM(ctx, cfg.SampleRate, cfg.Channels, pcmFormat, cfg.BufferSize, playedCounter)
	if err != nil {
		return fmt.Errorf("unable to start the playback: %w", err)
	}
	m.closers = append(m.closers, playStream)
	return nil
}

func (m *Monitor) openInput(ctx context.Context) (io.Reader, error) {
	if m.config.InputVorbisFile != "" {
		return m.openVorbisFile(ctx)
	}
	return m.openRecorder(ctx)
}

func (m *Monitor) openRecorder(ctx context.Context) (io.Reader, error) {
	cfg := m.config
	pr, pw := io.Pipe()
	m.inputPipe = pr
	capturedCounter := datacounter.NewWriterCounter(pw)
	m.capturedCounter = capturedCounter

	recordStream, err := m.recorder.RecordPCM(ctx, cfg.SampleRate, cfg.Channels, pcmFormat, capturedCounter)
	if err != nil {
		return nil, fmt.Errorf("unable to start the capture: %w", err)
	}
	m.closers = append(m.closers, recordStream)
	return pr, nil
}

func (m *Monitor) openVorbisFile(ctx context.Context) (io.Reader, error) {
	cfg := m.config
	f, err := os.Open(cfg.InputVorbisFile)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", cfg.InputVorbisFile, err)
	}
	m.closers = append(m.closers, f)

	vorbis, err := audio.NewVorbisReader(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode '%s': %w", cfg.InputVorbisFile, err)
	}

	var input io.Reader = vorbis
	inFormat := resampler.Format{
		Channels:   vorbis.Channels(),
		SampleRate: vorbis.SampleRate(),
		PCMFormat:  vorbis.PCMFormat(),
	}
	outFormat := resampler.Format{
		Channels:   cfg.Channels,
		SampleRate: cfg.SampleRate,
		PCMFormat:  pcmFormat,
	}
	if inFormat != outFormat {
		logger.Debugf(ctx, "resampling '%s' from %#+v to %#+v", cfg.InputVorbisFile, inFormat, outFormat)
		input, err = resampler.NewResampler(inFormat, vorbis, outFormat)
		if err != nil {
			return nil, fmt.Errorf("unable to convert '%s': %w", cfg.InputVorbisFile, err)
		}
	}

	capturedCounter := datacounter.NewReaderCounter(input)
	m.capturedCounter = capturedCounter
	return capturedCounter, nil
}

func (m *Monitor) onChunk(ctx context.Context, chunk []byte, _ float64) {
	if m.vad == nil {
		return
	}
	m.vadBuf = append(m.vadBuf, chunk...)
	frameSize := m.vad.FrameSize()
	framed := len(m.vadBuf) / frameSize * frameSize
	if framed == 0 {
		return
	}
	// a chunk is voiced if any of its frames is
	confidence, voiceAt, err := m.vad.FindNextVoice(ctx, m.vadBuf[:framed], 1, m.vad.FrameDuration)
	m.vadBuf = m.vadBuf[:copy(m.vadBuf, m.vadBuf[framed:])]
	if err != nil {
		logger.Errorf(ctx, "unable to detect voice activity: %v", err)
		return
	}
	isVoice := confidence >= 1
	if m.voiceActive.Swap(isVoice) != isVoice {
		logger.Debugf(ctx, "voice active: %v (first voiced frame at %v)", isVoice, voiceAt)
	}
}

// Stop halts the monitor. Stopping a stopped monitor does nothing.
func (m *Monitor) Stop(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Stop")
	defer func() { logger.Tracef(ctx, "/Stop: %v", _err) }()

	m.locker.Lock()
	defer m.locker.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	m.processor.Disconnect(ctx)
	m.voiceActive.Store(false)
	return m.closeStreams(ctx)
}

func (m *Monitor) closeStreams(ctx context.Context) error {
	var mErr *multierror.Error
	if m.inputPipe != nil {
		// unblocks both the capture backend and the processing loop
		m.inputPipe.CloseWithError(ErrStopped)
		m.inputPipe = nil
	}
	for idx := len(m.closers) - 1; idx >= 0; idx-- {
		closer := m.closers[idx]
		logger.Tracef(ctx, "closing %T", closer)
		if err := closer.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close %T: %w", closer, err))
		}
	}
	m.closers = m.closers[:0]
	return mErr.ErrorOrNil()
}

func (m *Monitor) IsRunning() bool {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.running
}

// SetVolume sets the output volume; 1 is unity gain.
func (m *Monitor) SetVolume(v float64) error {
	if err := validateVolume(v); err != nil {
		return err
	}
	m.locker.Lock()
	defer m.locker.Unlock()
	m.graph.Volume().SetGain(v)
	m.config.Volume = v
	return nil
}

func (m *Monitor) Volume() float64 {
	return m.graph.Volume().Gain()
}

// VoiceActive reports whether the last analysed frame contained voice.
// It is always false if voice activity detection is disabled.
func (m *Monitor) VoiceActive() bool {
	return m.voiceActive.Load()
}

func (m *Monitor) Stats() Stats {
	m.locker.Lock()
	defer m.locker.Unlock()
	s := Stats{
		NoiseLevel:  m.processor.NoiseLevel(),
		Gain:        m.processor.Gain(),
		VoiceActive: m.voiceActive.Load(),
	}
	if m.capturedCounter != nil {
		s.BytesCaptured = m.capturedCounter.Count()
	}
	if m.playedCounter != nil {
		s.BytesPlayed = m.playedCounter.Count()
	}
	return s
}

// Close stops the monitor and releases the audio backends.
func (m *Monitor) Close() error {
	ctx := m.ctx
	var mErr *multierror.Error
	if err := m.Stop(ctx); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	if err := m.processor.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the processor: %w", err))
	}
	if m.vad != nil {
		if err := m.vad.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the voice activity detector: %w", err))
		}
	}
	if m.recorder != nil {
		if err := m.recorder.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the recorder: %w", err))
		}
	}
	if err := m.player.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the player: %w", err))
	}
	if err := m.graph.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the audio graph: %w", err))
	}
	return mErr.ErrorOrNil()
}
