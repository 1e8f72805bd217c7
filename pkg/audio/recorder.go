package audio

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/earmonitor/pkg/audio/registry"
)

type Recorder struct {
	RecorderPCM
}

func NewRecorder(recorderPCM RecorderPCM) *Recorder {
	return &Recorder{
		RecorderPCM: recorderPCM,
	}
}

var lastSuccessfulRecorderFactory lastSuccessful[registry.RecorderPCMFactory]

func NewRecorderAuto(
	ctx context.Context,
) *Recorder {
	recorder, err := selectBackend(
		ctx, "PCM recorder",
		&lastSuccessfulRecorderFactory,
		registry.RecorderFactories(),
		func(f registry.RecorderPCMFactory) (RecorderPCM, error) { return f.NewRecorderPCM() },
	)
	if err != nil {
		logger.Infof(ctx, "was unable to initialize any PCM recorder: %v", err)
		return NewRecorder(RecorderPCMDummy{})
	}
	return NewRecorder(recorder)
}

func (a *Recorder) RecordPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	pcmFormat PCMFormat,
	pcmWriter io.Writer,
) (RecordStream, error) {
	stream, err := a.RecorderPCM.RecordPCM(
		ctx,
		sampleRate,
		channels,
		pcmFormat,
		pcmWriter,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to start recording PCM using %T: %w", a.RecorderPCM, err)
	}
	return stream, nil
}
