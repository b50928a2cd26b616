// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync/atomic"
)

// Gate holds back blocks whose peak amplitude stays at or below a threshold,
// such as a flat channel from a detached electrode. The threshold is a
// fraction of full scale in [0, 1] where 0 lets every non-silent block pass.
// Gate is safe for concurrent use.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Uint64 // math.Float64bits of the threshold.
}

// NewGate returns an enabled gate with the given threshold.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	g.Enable()
	return g
}

func (g *Gate) Enable() {
	g.enabled.Store(true)
}

func (g *Gate) Disable() {
	g.enabled.Store(false)
}

// Enabled reports whether the gate is filtering blocks.
func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// SetThreshold clamps threshold to [0, 1].
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 || math.IsNaN(threshold) {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(math.Float64bits(threshold))
}

// Threshold returns the current threshold.
func (g *Gate) Threshold() float64 {
	return math.Float64frombits(g.threshold.Load())
}

// Open reports whether samples should be analysed. A disabled gate is always
// open.
func (g *Gate) Open(samples []float32) bool {
	if !g.Enabled() {
		return true
	}
	return float64(PeakAmplitude(samples)) > g.Threshold()
}

// PeakAmplitude returns the largest absolute sample value.
func PeakAmplitude(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		peak = max(peak, s)
	}
	return peak
}
