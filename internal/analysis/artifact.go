// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	applog "biosignal/internal/log"
)

// ArtifactDetector flags blocks whose RMS energy exceeds a threshold and
// jumps by more than minEnergyRatio over the block with the preceding index,
// the signature of motion and blink artifacts. Energies are keyed by block
// index, so blocks may be processed out of order, as they are when one write
// publishes several blocks newest first. It is not safe for concurrent use.
type ArtifactDetector struct {
	threshold      float64 // Absolute RMS a block must exceed.
	minEnergyRatio float64 // Minimum ratio over the previous block's RMS.
	energies       map[int64]float64
	highest        int64
	detected       uint64
}

// artifactHistory is how many block indices of energy are remembered.
const artifactHistory = 64

func NewArtifactDetector(threshold, minEnergyRatio float64) *ArtifactDetector {
	applog.Infof("Analysis: Initializing ArtifactDetector (Threshold: %.3f, MinRatio: %.2f)", threshold, minEnergyRatio)
	return &ArtifactDetector{
		threshold:      threshold,
		minEnergyRatio: minEnergyRatio,
		energies:       make(map[int64]float64),
	}
}

// Process reports whether the samples of block index look like an artifact
// and remembers their energy. A block whose predecessor is unknown or
// silent is compared against the threshold only.
func (d *ArtifactDetector) Process(index int64, samples []float32) bool {
	energy := d.Observe(index, samples)
	last := d.energies[index-1]
	hit := energy > d.threshold && (last == 0 || energy/last > d.minEnergyRatio)
	if hit {
		d.detected++
	}
	return hit
}

// Observe records the energy of block index without judging it and returns
// it. Use it to seed the predecessor of a block that arrives first.
func (d *ArtifactDetector) Observe(index int64, samples []float32) float64 {
	energy := RMS(samples)
	d.energies[index] = energy
	if index > d.highest {
		d.highest = index
		for i := range d.energies {
			if i <= d.highest-artifactHistory {
				delete(d.energies, i)
			}
		}
	}
	return energy
}

// Known reports whether the energy of block index is remembered.
func (d *ArtifactDetector) Known(index int64) bool {
	_, ok := d.energies[index]
	return ok
}

// Detected counts blocks flagged so far.
func (d *ArtifactDetector) Detected() uint64 { return d.detected }

// Reset forgets every remembered block.
func (d *ArtifactDetector) Reset() {
	clear(d.energies)
	d.highest = 0
}

// RMS calculates the root mean square of samples, 0 for none.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}
	var sumSquare float64
	for _, s := range samples {
		sumSquare += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquare / float64(len(samples)))
}
