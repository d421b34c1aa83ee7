// Package metrics synthesizes short resource histories for services that
// only report instantaneous usage.
package metrics

import (
	"math/rand/v2"
	"slices"
)

// Defaults for Synthesizer fields left zero.
const (
	DefaultSamples        = 24
	DefaultCPUVariance    = 5.0
	DefaultMemoryVariance = 100.0
)

// Sample is one point of a History.
type Sample struct {
	Index  int
	CPU    float64 // percent
	Memory float64 // MB
}

// History is a fixed-length window of synthetic samples.
type History struct {
	Samples []Sample
}

// Len returns the number of samples.
func (h History) Len() int { return len(h.Samples) }

// CPUScale is the upper bound of the CPU axis.
func (h History) CPUScale() float64 { return 100 }

// MemoryScale is the upper bound of the memory axis: the largest sample
// (at least 1) plus 20% headroom.
func (h History) MemoryScale() float64 {
	peak := 1.0
	for _, s := range h.Samples {
		peak = max(peak, s.Memory)
	}
	return peak * 1.2
}

// CPU returns the CPU series.
func (h History) CPU() []float64 {
	out := make([]float64, len(h.Samples))
	for i, s := range h.Samples {
		out[i] = s.CPU
	}
	return out
}

// Memory returns the memory series.
func (h History) Memory() []float64 {
	out := make([]float64, len(h.Samples))
	for i, s := range h.Samples {
		out[i] = s.Memory
	}
	return out
}

// Synthesizer perturbs current usage figures into a History.
type Synthesizer struct {
	Samples        int
	CPUVariance    float64
	MemoryVariance float64
	// Rand supplies randomness; nil uses the global source.
	Rand *rand.Rand
}

// Generate builds a history around the given CPU percent and memory MB.
// CPU samples are clamped to [0, 100] and memory samples to >= 0.
func (s Synthesizer) Generate(cpu, memory float64) History {
	n := s.Samples
	if n <= 0 {
		n = DefaultSamples
	}
	cpuVar := s.CPUVariance
	if cpuVar <= 0 {
		cpuVar = DefaultCPUVariance
	}
	memVar := s.MemoryVariance
	if memVar <= 0 {
		memVar = DefaultMemoryVariance
	}

	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{
			Index:  i,
			CPU:    clamp(cpu+s.jitter(cpuVar), 0, 100),
			Memory: max(0, memory+s.jitter(memVar)),
		}
	}
	return History{Samples: slices.Clip(samples)}
}

// jitter returns a value in [-variance, variance).
func (s Synthesizer) jitter(variance float64) float64 {
	f := rand.Float64
	if s.Rand != nil {
		f = s.Rand.Float64
	}
	return (f()*2 - 1) * variance
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
