package noisegate

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
)

// Controller drives a GainSink according to the energy reported by an EnergySource.
//
// States: stopped (initial) and running. The noise level estimate survives
// Stop/Start cycles and is reset only by constructing a new Controller.
type Controller struct {
	source EnergySource
	sink   GainSink
	config config

	lifecycleLocker sync.Mutex
	cancelFunc      context.CancelFunc
	loopDone        chan struct{}

	stateLocker sync.Mutex
	level       float64
	noiseLevel  float64
	snapshot    EnergySnapshot
}

func New(
	source EnergySource,
	sink GainSink,
	opts ...Option,
) (*Controller, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: the energy source is nil", ErrInvalidArgument)
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: the gain sink is nil", ErrInvalidArgument)
	}
	cfg := Options(opts).config()
	if !isValidLevel(cfg.Level) {
		return nil, fmt.Errorf("%w: noise reduction level %v is out of range [0, 1]", ErrInvalidArgument, cfg.Level)
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("%w: tick interval must be positive, got %v", ErrInvalidArgument, cfg.TickInterval)
	}
	if cfg.TickerFactory == nil {
		return nil, fmt.Errorf("%w: the ticker factory is nil", ErrInvalidArgument)
	}

	sink.SetGain(1)
	return &Controller{
		source:   source,
		sink:     sink,
		config:   cfg,
		level:    cfg.Level,
		snapshot: make(EnergySnapshot, source.BinCount()),
	}, nil
}

// Start begins ticking. It does nothing if the controller is already running.
func (c *Controller) Start(ctx context.Context) {
	logger.Tracef(ctx, "Start")
	defer logger.Tracef(ctx, "/Start")

	c.lifecycleLocker.Lock()
	defer c.lifecycleLocker.Unlock()
	if c.isRunningLocked() {
		logger.Debugf(ctx, "the noise gate controller is already running")
		return
	}

	ticker := c.config.TickerFactory(c.config.TickInterval)
	// only Stop ends the loop; the caller's context may be request-scoped
	ctx, cancelFn := context.WithCancel(context.WithoutCancel(ctx))
	loopDone := make(chan struct{})
	c.cancelFunc, c.loopDone = cancelFn, loopDone

	logger.Debugf(ctx, "starting the noise gate controller with interval %v", c.config.TickInterval)
	observability.Go(ctx, func() {
		defer close(loopDone)
		defer ticker.Stop()
		c.loop(ctx, ticker)
	})
}

func (c *Controller) loop(
	ctx context.Context,
	ticker Ticker,
) {
	logger.Debugf(ctx, "loop")
	defer logger.Debugf(ctx, "/loop")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}

		c.stateLocker.Lock()
		if ctx.Err() == nil {
			c.tick(ctx)
		}
		c.stateLocker.Unlock()
	}
}

// Stop halts ticking and opens the gate fully. When Stop returns, no tick
// is in progress and none will happen until the next Start. Calling Stop
// on a stopped controller only resets the gain.
func (c *Controller) Stop(ctx context.Context) {
	logger.Tracef(ctx, "Stop")
	defer logger.Tracef(ctx, "/Stop")

	c.lifecycleLocker.Lock()
	defer c.lifecycleLocker.Unlock()

	cancelFn, loopDone := c.cancelFunc, c.loopDone
	c.cancelFunc, c.loopDone = nil, nil
	if cancelFn != nil {
		cancelFn()
		<-loopDone
		logger.Debugf(ctx, "the noise gate controller is stopped")
	}
	c.sink.SetGain(1)
}

func (c *Controller) IsRunning() bool {
	c.lifecycleLocker.Lock()
	defer c.lifecycleLocker.Unlock()
	return c.isRunningLocked()
}

func (c *Controller) isRunningLocked() bool {
	if c.loopDone == nil {
		return false
	}
	select {
	case <-c.loopDone:
		return false
	default:
		return true
	}
}

// Tick performs a single control step and returns the new gain. It is what
// the running loop calls on every tick; it may also be called directly by
// callers that drive the cadence themselves.
func (c *Controller) Tick(ctx context.Context) float64 {
	c.stateLocker.Lock()
	defer c.stateLocker.Unlock()
	return c.tick(ctx)
}

func (c *Controller) tick(ctx context.Context) float64 {
	c.snapshot = c.source.Snapshot(c.snapshot)
	normalizedAverage := NormalizedAverage(c.snapshot)
	c.noiseLevel = c.noiseLevel*noiseLevelRetention + normalizedAverage*noiseLevelUpdate

	targetGain := TargetGain(normalizedAverage, c.level)
	gain := clampGain(c.sink.Gain())*gainRetention + targetGain*gainUpdate
	c.sink.SetGain(gain)

	logger.Tracef(ctx, "noise gate tick: energy:%.4f noise:%.4f target:%.3f gain:%.3f", normalizedAverage, c.noiseLevel, targetGain, gain)
	return gain
}

// clampGain keeps a foreign gain value within the range the controller itself produces.
func clampGain(gain float64) float64 {
	switch {
	case math.IsNaN(gain), gain > 1:
		return 1
	case gain < minGain:
		return minGain
	}
	return gain
}

// SetLevel sets the noise reduction level; it is used starting from the next tick.
func (c *Controller) SetLevel(level float64) error {
	if !isValidLevel(level) {
		return fmt.Errorf("%w: noise reduction level %v is out of range [0, 1]", ErrInvalidArgument, level)
	}
	c.stateLocker.Lock()
	defer c.stateLocker.Unlock()
	c.level = level
	return nil
}

func (c *Controller) Level() float64 {
	c.stateLocker.Lock()
	defer c.stateLocker.Unlock()
	return c.level
}

// NoiseLevel returns the current noise level estimate, within [0, 1].
func (c *Controller) NoiseLevel() float64 {
	c.stateLocker.Lock()
	defer c.stateLocker.Unlock()
	return c.noiseLevel
}

// Gain returns the gain currently published to the sink.
func (c *Controller) Gain() float64 {
	return c.sink.Gain()
}
