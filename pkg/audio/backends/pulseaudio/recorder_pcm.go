package pulseaudio

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

type RecorderPCM struct {
	PulseClient *pulse.Client
}

var _ types.RecorderPCM = (*RecorderPCM)(nil)

func NewRecorderPCM() (*RecorderPCM, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("unable to open a client to Pulse: %w", err)
	}
	return &RecorderPCM{
		PulseClient: c,
	}, nil
}

func (r *RecorderPCM) Close() error {
	r.PulseClient.Close()
	return nil
}

func (r *RecorderPCM) Ping(context.Context) error {
	_, err := r.PulseClient.DefaultSource()
	return err
}

func (r *RecorderPCM) RecordPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	rawWriter io.Writer,
) (_ types.RecordStream, _err error) {
	logger.Tracef(ctx, "RecordPCM")
	defer func() { logger.Tracef(ctx, "/RecordPCM: %v", _err) }()

	pFormat, err := pulseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a writer for Pulse: %w", err)
	}
	chanMap, err := channelMap(channels)
	if err != nil {
		return nil, err
	}

	stream, err := r.PulseClient.NewRecord(
		pulseWriter{pulseFormat: pFormat, Writer: rawWriter},
		pulse.RecordSampleRate(int(sampleRate)),
		pulse.RecordChannels(chanMap),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a recording: %w", err)
	}

	stream.Start()
	if stream.Error() != nil {
		return nil, fmt.Errorf("an error occurred during recording: %w", stream.Error())
	}

	return &RecordStream{RecordStream: stream}, nil
}

type pulseWriter struct {
	pulseFormat byte
	io.Writer
}

var _ pulse.Writer = pulseWriter{}

func (w pulseWriter) Format() byte {
	return w.pulseFormat
}

type RecordStream struct {
	*pulse.RecordStream
}

var _ types.RecordStream = (*RecordStream)(nil)

func (stream *RecordStream) Close() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	stream.RecordStream.Stop()
	stream.RecordStream.Close()
	return
}
