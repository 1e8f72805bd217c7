package processor

import (
	"fmt"
)

// Config is the set of user-facing parameters of the processor.
type Config struct {
	NoiseReductionEnabled bool    `yaml:"noise_reduction_enabled"`
	NoiseReductionLevel   float64 `yaml:"noise_reduction_level"`
	LowPassHz             float64 `yaml:"low_pass_hz"`
	HighPassHz            float64 `yaml:"high_pass_hz"`
}

func DefaultConfig() Config {
	return Config{
		NoiseReductionEnabled: true,
		NoiseReductionLevel:   0.5,
		LowPassHz:             8000,
		HighPassHz:            80,
	}
}

func (cfg Config) Validate() error {
	if !isValidLevel(cfg.NoiseReductionLevel) {
		return fmt.Errorf("%w: noise reduction level %v is out of range [0, 1]", ErrInvalidArgument, cfg.NoiseReductionLevel)
	}
	return nil
}

func isValidLevel(level float64) bool {
	return level >= 0 && level <= 1
}
