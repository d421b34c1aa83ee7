package metrics

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_DefaultShape(t *testing.T) {
	h := Synthesizer{}.Generate(40, 512)
	require.Equal(t, DefaultSamples, h.Len())
	for i, s := range h.Samples {
		assert.Equal(t, i, s.Index)
		assert.InDelta(t, 40, s.CPU, DefaultCPUVariance)
		assert.InDelta(t, 512, s.Memory, DefaultMemoryVariance)
	}
}

func TestGenerate_ClampsToValidRanges(t *testing.T) {
	syn := Synthesizer{Samples: 200, Rand: rand.New(rand.NewPCG(1, 2))}

	low := syn.Generate(1, 10)
	for _, s := range low.Samples {
		assert.GreaterOrEqual(t, s.CPU, 0.0)
		assert.GreaterOrEqual(t, s.Memory, 0.0)
	}

	high := syn.Generate(99, 0)
	for _, s := range high.Samples {
		assert.LessOrEqual(t, s.CPU, 100.0)
		assert.GreaterOrEqual(t, s.Memory, 0.0)
	}
}

func TestGenerate_SeededIsDeterministic(t *testing.T) {
	a := Synthesizer{Rand: rand.New(rand.NewPCG(7, 7))}.Generate(20, 300)
	b := Synthesizer{Rand: rand.New(rand.NewPCG(7, 7))}.Generate(20, 300)
	assert.Equal(t, a, b)
}

func TestHistoryScales(t *testing.T) {
	h := History{Samples: []Sample{{Memory: 100}, {Memory: 250}}}
	assert.InDelta(t, 300, h.MemoryScale(), 1e-9)
	assert.Equal(t, 100.0, h.CPUScale())
	assert.InDelta(t, 1.2, History{}.MemoryScale(), 1e-9)
	assert.Equal(t, []float64{100, 250}, h.Memory())
	assert.Len(t, h.CPU(), 2)
}
