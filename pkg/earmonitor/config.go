package earmonitor

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/xaionaro-go/earmonitor/pkg/audio"
	"github.com/xaionaro-go/earmonitor/pkg/noisegate"
	"github.com/xaionaro-go/earmonitor/pkg/processor"
	"github.com/xaionaro-go/earmonitor/pkg/vad/implementations/fvad"
	"gopkg.in/yaml.v3"
)

const (
	MaxVolume = 2.0
)

type VoiceActivityConfig struct {
	Enabled bool      `yaml:"enabled"`
	Mode    fvad.Mode `yaml:"mode"`
}

type Config struct {
	SampleRate audio.SampleRate `yaml:"sample_rate"`
	Channels   audio.Channel    `yaml:"channels"`

	// ChunkDuration is the amount of audio processed at once.
	ChunkDuration time.Duration `yaml:"chunk_duration"`

	// TickInterval is the cadence of the noise gate controller.
	TickInterval time.Duration `yaml:"tick_interval"`

	// BufferSize is the playback buffer; it dominates the monitoring latency.
	BufferSize time.Duration `yaml:"buffer_size"`

	Volume float64 `yaml:"volume"`

	// InputVorbisFile replaces the microphone with an Ogg Vorbis file if set.
	InputVorbisFile string `yaml:"input_vorbis_file,omitempty"`

	Processor     processor.Config    `yaml:"processor"`
	VoiceActivity VoiceActivityConfig `yaml:"voice_activity"`
}

func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		Channels:      1,
		ChunkDuration: 10 * time.Millisecond,
		TickInterval:  noisegate.DefaultTickInterval,
		BufferSize:    audio.BufferSize,
		Volume:        1,
		Processor:     processor.DefaultConfig(),
		VoiceActivity: VoiceActivityConfig{
			Enabled: true,
			Mode:    fvad.ModeAggressive,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read the config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse the config file '%s': %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config in '%s': %w", path, err)
	}
	return cfg, nil
}

func (cfg Config) Bytes() ([]byte, error) {
	return yaml.Marshal(cfg)
}

func (cfg Config) Validate() error {
	if cfg.SampleRate == 0 {
		return fmt.Errorf("%w: sample rate is zero", ErrInvalidArgument)
	}
	if cfg.Channels == 0 {
		return fmt.Errorf("%w: amount of channels is zero", ErrInvalidArgument)
	}
	if cfg.ChunkDuration <= 0 {
		return fmt.Errorf("%w: chunk duration must be positive, got %v", ErrInvalidArgument, cfg.ChunkDuration)
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive, got %v", ErrInvalidArgument, cfg.TickInterval)
	}
	if cfg.BufferSize < cfg.ChunkDuration {
		return fmt.Errorf("%w: buffer size %v is shorter than the chunk duration %v", ErrInvalidArgument, cfg.BufferSize, cfg.ChunkDuration)
	}
	if err := validateVolume(cfg.Volume); err != nil {
		return err
	}
	if cfg.VoiceActivity.Mode < fvad.ModeQuality || cfg.VoiceActivity.Mode > fvad.ModeVeryAggressive {
		return fmt.Errorf("%w: voice activity mode %d is out of range [0, 3]", ErrInvalidArgument, cfg.VoiceActivity.Mode)
	}
	return cfg.Processor.Validate()
}

func validateVolume(v float64) error {
	if math.IsNaN(v) || v < 0 || v > MaxVolume {
		return fmt.Errorf("%w: volume %v is out of range [0, %v]", ErrInvalidArgument, v, MaxVolume)
	}
	return nil
}
