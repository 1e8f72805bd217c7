package filterchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStage struct {
	frequency float64
	sets      int
}

func (s *fakeStage) SetFrequency(hz float64) {
	s.frequency = hz
	s.sets++
}

func (s *fakeStage) Frequency() float64 {
	return s.frequency
}

type fakeSink struct {
	highPass fakeStage
	lowPass  fakeStage
}

func (s *fakeSink) HighPassStage() Stage { return &s.highPass }
func (s *fakeSink) LowPassStage() Stage  { return &s.lowPass }

func TestFilterChain(t *testing.T) {
	sink := &fakeSink{}
	c := New(sink, 80, 8000)
	assert.Equal(t, 80.0, sink.highPass.frequency)
	assert.Equal(t, 8000.0, sink.lowPass.frequency)

	c.SetHighPass(120)
	assert.Equal(t, 120.0, c.HighPass())
	assert.Equal(t, 8000.0, c.LowPass())
	assert.Equal(t, 1, sink.lowPass.sets)

	c.SetLowPass(6000)
	assert.Equal(t, 120.0, c.HighPass())
	assert.Equal(t, 6000.0, c.LowPass())

	c.Configure(50, 12000)
	assert.Equal(t, 50.0, c.HighPass())
	assert.Equal(t, 12000.0, c.LowPass())
}

func TestFilterChainDoesNotValidate(t *testing.T) {
	sink := &fakeSink{}
	c := New(sink, 80, 8000)
	c.SetLowPass(30000)
	assert.Equal(t, 30000.0, c.LowPass())
}
