package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	_ "github.com/xaionaro-go/earmonitor/pkg/audio/backends/oto"
	_ "github.com/xaionaro-go/earmonitor/pkg/audio/backends/portaudio"
	_ "github.com/xaionaro-go/earmonitor/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/earmonitor/pkg/earmonitor"
	"github.com/xaionaro-go/observability"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	configPath := pflag.String("config", "", "path to a YAML config file")
	dumpConfig := pflag.Bool("dump-config", false, "print the resulting config and exit")
	noiseReduction := pflag.Bool("noise-reduction", true, "enable the adaptive noise gate")
	noiseReductionLevel := pflag.Float64("noise-reduction-level", 0.5, "noise reduction level within [0, 1]")
	lowPass := pflag.Float64("low-pass", 8000, "low-pass cutoff frequency, Hz")
	highPass := pflag.Float64("high-pass", 80, "high-pass cutoff frequency, Hz")
	volume := pflag.Float64("volume", 1, "output volume within [0, 2]")
	bufferSize := pflag.Duration("buffer", 100*time.Millisecond, "playback buffer size")
	inputVorbis := pflag.String("input-vorbis", "", "use an Ogg Vorbis file instead of the microphone")
	voiceActivity := pflag.Bool("vad", true, "report voice activity")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	cfg := earmonitor.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = earmonitor.LoadConfig(*configPath)
		assertNoError(err)
	}
	flags := pflag.CommandLine
	if flags.Changed("noise-reduction") {
		cfg.Processor.NoiseReductionEnabled = *noiseReduction
	}
	if flags.Changed("noise-reduction-level") {
		cfg.Processor.NoiseReductionLevel = *noiseReductionLevel
	}
	if flags.Changed("low-pass") {
		cfg.Processor.LowPassHz = *lowPass
	}
	if flags.Changed("high-pass") {
		cfg.Processor.HighPassHz = *highPass
	}
	if flags.Changed("volume") {
		cfg.Volume = *volume
	}
	if flags.Changed("buffer") {
		cfg.BufferSize = *bufferSize
	}
	if flags.Changed("input-vorbis") {
		cfg.InputVorbisFile = *inputVorbis
	}
	if flags.Changed("vad") {
		cfg.VoiceActivity.Enabled = *voiceActivity
	}
	assertNoError(cfg.Validate())

	if *dumpConfig {
		b, err := cfg.Bytes()
		assertNoError(err)
		fmt.Print(string(b))
		return
	}

	ctx, cancelFn := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancelFn()

	logger.Infof(ctx, "starting...")
	m, err := earmonitor.New(ctx, cfg)
	assertNoError(err)
	defer func() {
		assertNoError(m.Close())
	}()
	assertNoError(m.Start(ctx))
	logger.Infof(ctx, "started")

	observability.Go(ctx, func() {
		logger.Tracef(ctx, "started the stats printer loop")
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				stats := m.Stats()
				logger.Debugf(ctx, "captured:%d played:%d noise:%.4f gain:%.3f voice:%v",
					stats.BytesCaptured, stats.BytesPlayed, stats.NoiseLevel, stats.Gain, stats.VoiceActive)
			}
		}
	})

	<-ctx.Done()
	logger.Infof(ctx, "stopping...")
	assertNoError(m.Stop(context.WithoutCancel(ctx)))
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
