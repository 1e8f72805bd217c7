// Package noisegate implements an adaptive noise gate controller.
//
// The controller runs at control rate: on every tick it reads an energy
// snapshot of the unfiltered signal, updates a slow estimate of the noise
// level and moves the gain of a downstream gain stage toward a target
// attenuation. It never touches samples itself; the audio engine applies
// the published gain on its own schedule.
//
// Two one-pole smoothers are involved: the noise level estimate follows
// the normalized energy with weights 0.9/0.1, and the applied gain follows
// the target gain with weights 0.7/0.3.
package noisegate

import (
	"errors"
	"math"
	"time"
)

// EnergySnapshot contains one magnitude per frequency bin.
type EnergySnapshot []uint8

// MaxMagnitude is the largest value a bin of an EnergySnapshot may have.
const MaxMagnitude = math.MaxUint8

// EnergySource provides energy snapshots of the live (pre-filter) signal.
type EnergySource interface {
	BinCount() uint

	// Snapshot fills dst (reallocating it if it is too short) with the
	// current magnitudes and returns it.
	Snapshot(dst EnergySnapshot) EnergySnapshot
}

// GainSink is the gain parameter of the stage placed after the filters.
type GainSink interface {
	Gain() float64
	SetGain(float64)
}

const (
	noiseLevelRetention = 0.9
	noiseLevelUpdate    = 0.1

	thresholdBase  = 0.01
	thresholdRange = 0.05

	minGain = 0.1

	gainRetention = 0.7
	gainUpdate    = 0.3

	// DefaultTickInterval approximates a display refresh cadence.
	DefaultTickInterval = time.Second / 60
)

var ErrInvalidArgument = errors.New("invalid argument")

// Threshold returns the normalized energy below which the signal is
// considered noise for the given reduction level.
func Threshold(level float64) float64 {
	return thresholdBase + level*thresholdRange
}

// TargetGain returns the gain the controller aims for when the normalized
// average energy is `normalizedAverage` and the reduction level is `level`.
func TargetGain(normalizedAverage, level float64) float64 {
	threshold := Threshold(level)
	if normalizedAverage >= threshold {
		return 1
	}
	reduction := (threshold - normalizedAverage) / threshold
	return math.Max(minGain, 1-reduction*level)
}

// NormalizedAverage returns the mean magnitude of the snapshot mapped to [0, 1].
// An empty snapshot is treated as silence.
func NormalizedAverage(snapshot EnergySnapshot) float64 {
	if len(snapshot) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range snapshot {
		sum += uint64(v)
	}
	average := float64(sum) / float64(len(snapshot))
	return average / MaxMagnitude
}

func isValidLevel(level float64) bool {
	return level >= 0 && level <= 1
}
