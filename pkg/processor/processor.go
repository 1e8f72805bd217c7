// Package processor is the control surface of the monitor's signal
// processing: it owns the parameters, tunes the filter chain and runs the
// noise gate controller against an attached audio graph.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/earmonitor/pkg/filterchain"
	"github.com/xaionaro-go/earmonitor/pkg/noisegate"
)

var (
	ErrInvalidArgument = noisegate.ErrInvalidArgument
	ErrAlreadyAttached = errors.New("the processor is already attached")
)

// Nodes is what the processor needs from the audio graph.
type Nodes interface {
	noisegate.EnergySource
	noisegate.GainSink
	filterchain.FilterSink
}

type Processor struct {
	locker      sync.Mutex
	config      Config
	gateOptions []noisegate.Option

	// set by Attach, dropped by Disconnect
	nodes       Nodes
	filterChain *filterchain.FilterChain
	controller  *noisegate.Controller
}

// New returns a processor that is not attached to anything yet. The
// options are passed to the noise gate controller created on Attach.
func New(
	cfg Config,
	opts ...noisegate.Option,
) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Processor{
		config:      cfg,
		gateOptions: opts,
	}, nil
}

// Attach builds the filter chain and the gate controller on top of the
// given nodes and starts the controller if noise reduction is enabled.
func (p *Processor) Attach(
	ctx context.Context,
	nodes Nodes,
) (_err error) {
	logger.Tracef(ctx, "Attach")
	defer func() { logger.Tracef(ctx, "/Attach: %v", _err) }()

	if nodes == nil {
		return fmt.Errorf("%w: nodes are nil", ErrInvalidArgument)
	}

	p.locker.Lock()
	defer p.locker.Unlock()
	if p.nodes != nil {
		return ErrAlreadyAttached
	}

	opts := append(noisegate.Options{}, p.gateOptions...)
	opts = append(opts, noisegate.OptionLevel(p.config.NoiseReductionLevel))
	controller, err := noisegate.New(nodes, nodes, opts...)
	if err != nil {
		return fmt.Errorf("unable to initialize the noise gate controller: %w", err)
	}

	p.nodes = nodes
	p.filterChain = filterchain.New(nodes, p.config.HighPassHz, p.config.LowPassHz)
	p.controller = controller
	if p.config.NoiseReductionEnabled {
		controller.Start(ctx)
	}
	return nil
}

// GateStage reports whether the gate is currently driven by the controller.
func (p *Processor) GateStage() GateStage {
	p.locker.Lock()
	defer p.locker.Unlock()
	return p.gateStageLocked()
}

func (p *Processor) gateStageLocked() GateStage {
	if p.controller == nil || !p.config.NoiseReductionEnabled {
		return GateStageBypassed{}
	}
	return GateStageActive{Controller: p.controller}
}

// SetNoiseReductionEnabled starts or stops the noise gate. Disabling
// opens the gate fully.
func (p *Processor) SetNoiseReductionEnabled(
	ctx context.Context,
	enabled bool,
) (_err error) {
	logger.Tracef(ctx, "SetNoiseReductionEnabled(%v)", enabled)
	defer func() { logger.Tracef(ctx, "/SetNoiseReductionEnabled(%v): %v", enabled, _err) }()

	if enabled {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("unable to enable noise reduction: %w", err)
		}
	}

	p.locker.Lock()
	defer p.locker.Unlock()
	p.config.NoiseReductionEnabled = enabled
	if p.controller == nil {
		return nil
	}
	switch {
	case enabled && !p.controller.IsRunning():
		p.controller.Start(ctx)
	case !enabled:
		p.controller.Stop(ctx)
	}
	logger.Debugf(ctx, "noise reduction enabled: %v", enabled)
	return nil
}

// SetNoiseReductionLevel sets how aggressively quiet passages are attenuated.
// It takes effect on the next tick.
func (p *Processor) SetNoiseReductionLevel(level float64) error {
	if !isValidLevel(level) {
		return fmt.Errorf("%w: noise reduction level %v is out of range [0, 1]", ErrInvalidArgument, level)
	}

	p.locker.Lock()
	defer p.locker.Unlock()
	if p.controller != nil {
		if err := p.controller.SetLevel(level); err != nil {
			return err
		}
	}
	p.config.NoiseReductionLevel = level
	return nil
}

// SetLowPassFrequency retunes the low-pass stage. Before Attach it does nothing.
func (p *Processor) SetLowPassFrequency(hz float64) {
	p.locker.Lock()
	defer p.locker.Unlock()
	if p.filterChain == nil {
		return
	}
	p.filterChain.SetLowPass(hz)
	p.config.LowPassHz = hz
}

// SetHighPassFrequency retunes the high-pass stage. Before Attach it does nothing.
func (p *Processor) SetHighPassFrequency(hz float64) {
	p.locker.Lock()
	defer p.locker.Unlock()
	if p.filterChain == nil {
		return
	}
	p.filterChain.SetHighPass(hz)
	p.config.HighPassHz = hz
}

func (p *Processor) Config() Config {
	p.locker.Lock()
	defer p.locker.Unlock()
	return p.config
}

// NoiseLevel returns the noise level estimate, or 0 if not attached.
func (p *Processor) NoiseLevel() float64 {
	p.locker.Lock()
	defer p.locker.Unlock()
	if p.controller == nil {
		return 0
	}
	return p.controller.NoiseLevel()
}

// Gain returns the gate gain, or 1 if not attached.
func (p *Processor) Gain() float64 {
	p.locker.Lock()
	defer p.locker.Unlock()
	if p.nodes == nil {
		return 1
	}
	return p.nodes.Gain()
}

func (p *Processor) IsNoiseReductionRunning() bool {
	p.locker.Lock()
	defer p.locker.Unlock()
	switch stage := p.gateStageLocked().(type) {
	case GateStageActive:
		return stage.Controller.IsRunning()
	case GateStageBypassed:
		return false
	default:
		panic(fmt.Sprintf("unexpected gate stage: %T", stage))
	}
}

// Disconnect stops the gate, opens it fully and detaches from the nodes.
// It may be called any number of times, including before Attach.
func (p *Processor) Disconnect(ctx context.Context) {
	logger.Tracef(ctx, "Disconnect")
	defer logger.Tracef(ctx, "/Disconnect")

	p.locker.Lock()
	defer p.locker.Unlock()
	if p.controller != nil {
		p.controller.Stop(ctx)
	}
	p.nodes = nil
	p.filterChain = nil
	p.controller = nil
}

func (p *Processor) Close() error {
	p.Disconnect(context.Background())
	return nil
}
