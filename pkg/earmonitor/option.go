package earmonitor

import (
	"github.com/xaionaro-go/earmonitor/pkg/audio"
	"github.com/xaionaro-go/earmonitor/pkg/noisegate"
)

type options struct {
	Recorder    audio.RecorderPCM
	Player      audio.PlayerPCM
	GateOptions []noisegate.Option
}

type Option interface {
	apply(*options)
}

type Options []Option

func (s Options) options() options {
	var opts options
	for _, opt := range s {
		opt.apply(&opts)
	}
	return opts
}

// OptionRecorder overrides the automatically selected capture backend.
type OptionRecorder struct {
	audio.RecorderPCM
}

func (opt OptionRecorder) apply(opts *options) {
	opts.Recorder = opt.RecorderPCM
}

// OptionPlayer overrides the automatically selected playback backend.
type OptionPlayer struct {
	audio.PlayerPCM
}

func (opt OptionPlayer) apply(opts *options) {
	opts.Player = opt.PlayerPCM
}

// OptionGateOptions are passed through to the noise gate controller.
type OptionGateOptions []noisegate.Option

func (opt OptionGateOptions) apply(opts *options) {
	opts.GateOptions = append(opts.GateOptions, opt...)
}
