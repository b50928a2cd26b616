// SPDX-License-Identifier: MIT
package spectrum

// FrequencyBin describes the frequency span of one magnitude value. Bins are
// left-aligned: the bin at index i starts at FirstFrequency + i*FrequencyStep.
type FrequencyBin struct {
	Start  float64
	Middle float64
	End    float64
	Width  float64
}

// NewFrequencyBin returns the bin at index i of a grid that starts at first
// with the given step.
func NewFrequencyBin(first, step float64, i int) FrequencyBin {
	start := first + float64(i)*step
	return FrequencyBin{
		Start:  start,
		Middle: start + step/2,
		End:    start + step,
		Width:  step,
	}
}

// Contains reports whether f lies in [Start, End).
func (b FrequencyBin) Contains(f float64) bool {
	return f >= b.Start && f < b.End
}

// Overlap returns the width of the frequency range shared by b and o.
func (b FrequencyBin) Overlap(o FrequencyBin) float64 {
	lo := max(b.Start, o.Start)
	hi := min(b.End, o.End)
	if hi <= lo {
		return 0
	}
	return hi - lo
}
