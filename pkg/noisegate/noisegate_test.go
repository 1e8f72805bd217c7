package noisegate

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	locker    sync.Mutex
	bins      uint
	snapshots []EnergySnapshot
	next      int
	calls     atomic.Uint64
}

func newConstantSource(bins uint, value uint8) *fakeSource {
	snapshot := make(EnergySnapshot, bins)
	for i := range snapshot {
		snapshot[i] = value
	}
	return &fakeSource{bins: bins, snapshots: []EnergySnapshot{snapshot}}
}

func (s *fakeSource) BinCount() uint {
	return s.bins
}

func (s *fakeSource) Snapshot(dst EnergySnapshot) EnergySnapshot {
	s.calls.Add(1)
	s.locker.Lock()
	defer s.locker.Unlock()
	src := s.snapshots[s.next%len(s.snapshots)]
	s.next++
	dst = dst[:0]
	return append(dst, src...)
}

type fakeSink struct {
	locker sync.Mutex
	gain   float64
}

func (s *fakeSink) Gain() float64 {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.gain
}

func (s *fakeSink) SetGain(v float64) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.gain = v
}

func TestTargetGain(t *testing.T) {
	for _, tc := range []struct {
		name              string
		normalizedAverage float64
		level             float64
		expected          float64
	}{
		{"silence_half_level", 0, 0.5, 0.5},
		{"silence_full_level", 0, 1, 0.1},
		{"silence_zero_level", 0, 0, 1},
		{"above_threshold", 0.04, 0.5, 1},
		{"loud", 1, 1, 1},
		{"half_of_threshold", 0.03, 1, 0.5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, TargetGain(tc.normalizedAverage, tc.level), 1e-12)
		})
	}
}

func TestThreshold(t *testing.T) {
	assert.InDelta(t, 0.01, Threshold(0), 1e-12)
	assert.InDelta(t, 0.035, Threshold(0.5), 1e-12)
	assert.InDelta(t, 0.06, Threshold(1), 1e-12)
}

func TestNormalizedAverage(t *testing.T) {
	assert.Equal(t, 0.0, NormalizedAverage(nil))
	assert.Equal(t, 1.0, NormalizedAverage(EnergySnapshot{255, 255}))
	assert.InDelta(t, 0.5, NormalizedAverage(EnergySnapshot{0, 255}), 1e-12)
}

func TestControllerSilenceConverges(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	c, err := New(newConstantSource(1024, 0), sink, OptionLevel(0.5))
	require.NoError(t, err)
	require.Equal(t, 1.0, sink.Gain())

	assert.InDelta(t, 0.85, c.Tick(ctx), 1e-12)

	prev := sink.Gain()
	for i := 1; i < 50; i++ {
		gain := c.Tick(ctx)
		assert.Less(t, gain, prev)
		assert.Greater(t, gain, 0.5)
		assert.GreaterOrEqual(t, gain, 0.1)
		prev = gain
	}
	assert.InDelta(t, 0.5, prev, 1e-6)
	assert.Equal(t, 0.0, c.NoiseLevel())
}

func TestControllerLoudConvergesToOne(t *testing.T) {
	ctx := context.Background()
	for _, level := range []float64{0, 0.3, 1} {
		sink := &fakeSink{}
		c, err := New(newConstantSource(1024, MaxMagnitude), sink, OptionLevel(level))
		require.NoError(t, err)
		sink.SetGain(0.3)

		prev := sink.Gain()
		for i := 0; i < 60; i++ {
			gain := c.Tick(ctx)
			assert.Greater(t, gain, prev)
			assert.LessOrEqual(t, gain, 1.0)
			prev = gain
		}
		assert.InDelta(t, 1.0, prev, 1e-6)
	}
}

func TestControllerNoiseLevelEstimate(t *testing.T) {
	ctx := context.Background()
	c, err := New(newConstantSource(16, MaxMagnitude), &fakeSink{})
	require.NoError(t, err)

	for n := 1; n <= 30; n++ {
		c.Tick(ctx)
		assert.InDelta(t, 1-math.Pow(0.9, float64(n)), c.NoiseLevel(), 1e-9)
	}
}

func randomSnapshots(rng *rand.Rand, count int, bins uint) []EnergySnapshot {
	snapshots := make([]EnergySnapshot, count)
	for i := range snapshots {
		snapshot := make(EnergySnapshot, bins)
		scale := rng.Intn(MaxMagnitude + 1)
		for j := range snapshot {
			snapshot[j] = uint8(rng.Intn(scale + 1))
		}
		snapshots[i] = snapshot
	}
	return snapshots
}

func TestControllerGainStaysInRange(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))
	for run := 0; run < 20; run++ {
		level := rng.Float64()
		source := &fakeSource{bins: 64, snapshots: randomSnapshots(rng, 200, 64)}
		c, err := New(source, &fakeSink{}, OptionLevel(level))
		require.NoError(t, err)
		for i := 0; i < 200; i++ {
			gain := c.Tick(ctx)
			require.Greater(t, gain, 0.0)
			require.LessOrEqual(t, gain, 1.0)
			require.GreaterOrEqual(t, c.NoiseLevel(), 0.0)
			require.LessOrEqual(t, c.NoiseLevel(), 1.0)
		}
	}
}

func TestControllerDeterminism(t *testing.T) {
	ctx := context.Background()
	snapshots := randomSnapshots(rand.New(rand.NewSource(42)), 100, 128)

	run := func() []float64 {
		c, err := New(&fakeSource{bins: 128, snapshots: snapshots}, &fakeSink{}, OptionLevel(0.7))
		require.NoError(t, err)
		gains := make([]float64, 0, len(snapshots))
		for range snapshots {
			gains = append(gains, c.Tick(ctx))
		}
		return gains
	}
	assert.Equal(t, run(), run())
}

func TestControllerEmptySnapshotIsSilence(t *testing.T) {
	c, err := New(&fakeSource{snapshots: []EnergySnapshot{{}}}, &fakeSink{}, OptionLevel(0.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.85, c.Tick(context.Background()), 1e-12)
}

func TestControllerSetLevel(t *testing.T) {
	c, err := New(newConstantSource(8, 0), &fakeSink{}, OptionLevel(0.2))
	require.NoError(t, err)

	for _, level := range []float64{0, 0.25, 1} {
		require.NoError(t, c.SetLevel(level))
		assert.Equal(t, level, c.Level())
	}

	require.NoError(t, c.SetLevel(0.4))
	for _, level := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		err := c.SetLevel(level)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Equal(t, 0.4, c.Level())
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(newConstantSource(8, 0), &fakeSink{}, OptionLevel(2))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(newConstantSource(8, 0), &fakeSink{}, OptionTickInterval(0))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(nil, &fakeSink{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(newConstantSource(8, 0), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestControllerStartStop(t *testing.T) {
	ctx := context.Background()
	ticker := NewManualTicker()
	source := newConstantSource(32, 0)
	sink := &fakeSink{}
	c, err := New(source, sink, OptionLevel(1), OptionTickerFactory(ticker.Factory()))
	require.NoError(t, err)
	assert.False(t, c.IsRunning())

	c.Start(ctx)
	c.Start(ctx)
	assert.True(t, c.IsRunning())

	for i := 0; i < 5; i++ {
		require.NoError(t, ticker.Tick(ctx))
	}
	require.Eventually(t, func() bool {
		return source.calls.Load() == 5
	}, time.Second, time.Millisecond)
	assert.Less(t, sink.Gain(), 1.0)

	c.Stop(ctx)
	assert.False(t, c.IsRunning())
	assert.Equal(t, 1.0, sink.Gain())

	tickCtx, cancelFn := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancelFn()
	assert.Error(t, ticker.Tick(tickCtx), "no loop should receive ticks after Stop")
	assert.Equal(t, uint64(5), source.calls.Load())

	c.Stop(ctx)
	assert.False(t, c.IsRunning())
	assert.Equal(t, 1.0, sink.Gain())
}

func TestControllerStopResetsAttenuation(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	c, err := New(newConstantSource(8, 0), sink, OptionTickerFactory(NewManualTicker().Factory()))
	require.NoError(t, err)
	c.Start(ctx)
	sink.SetGain(0.3)

	c.Stop(ctx)
	assert.Equal(t, 1.0, sink.Gain())
}

func TestControllerRestartKeepsNoiseLevel(t *testing.T) {
	ctx := context.Background()
	c, err := New(newConstantSource(8, MaxMagnitude), &fakeSink{}, OptionTickerFactory(NewManualTicker().Factory()))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		c.Tick(ctx)
	}
	noiseLevel := c.NoiseLevel()
	require.Greater(t, noiseLevel, 0.0)

	c.Start(ctx)
	c.Stop(ctx)
	c.Start(ctx)
	assert.Equal(t, noiseLevel, c.NoiseLevel())
	c.Stop(ctx)
}

func TestControllerParentContextCancelled(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	ticker := NewManualTicker()
	source := newConstantSource(8, 0)
	sink := &fakeSink{}
	c, err := New(source, sink, OptionLevel(1), OptionTickerFactory(ticker.Factory()))
	require.NoError(t, err)

	c.Start(ctx)
	for i := 0; i < 5; i++ {
		require.NoError(t, ticker.Tick(context.Background()))
	}
	require.Eventually(t, func() bool {
		return source.calls.Load() == 5
	}, time.Second, time.Millisecond)
	attenuated := sink.Gain()
	require.Less(t, attenuated, 1.0)

	cancelFn()
	assert.True(t, c.IsRunning())

	tickCtx, tickCancelFn := context.WithTimeout(context.Background(), time.Second)
	defer tickCancelFn()
	require.NoError(t, ticker.Tick(tickCtx), "the loop must outlive the caller's context")
	require.Eventually(t, func() bool {
		return source.calls.Load() == 6
	}, time.Second, time.Millisecond)
	assert.Less(t, sink.Gain(), attenuated)

	c.Stop(context.Background())
	assert.False(t, c.IsRunning())
	assert.Equal(t, 1.0, sink.Gain())
}

func BenchmarkControllerTick(b *testing.B) {
	ctx := context.Background()
	c, err := New(newConstantSource(1024, 3), &fakeSink{})
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Tick(ctx)
	}
}
