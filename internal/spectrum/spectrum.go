// SPDX-License-Identifier: MIT
/*
Package spectrum holds FFT magnitude spectra with explicit bin geometry and
the transformations that retarget them:
- Downsample redistributes energy onto a coarser, possibly non-integral grid
- ApplyProfile downsamples and windows a spectrum onto a named Profile
- Median and compressor filters normalise magnitudes in place

Transformations return new Spectrum values; filters mutate the receiver and
are not safe to run concurrently with reads of the same Spectrum.
*/
package spectrum

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Spectrum is a magnitude array on a uniform frequency grid.
type Spectrum struct {
	Name      string
	Timestamp time.Time // Start of the analysis window, zero if unknown.

	firstFrequency float64
	frequencyStep  float64
	lastFrequency  float64
	magnitude      []float64
	filters        []string
}

// New creates a spectrum whose first bin starts at first Hz and whose bins are
// step Hz wide. magnitude is used as is, not copied.
func New(name string, first, step float64, magnitude []float64) *Spectrum {
	s := &Spectrum{
		Name:           name,
		firstFrequency: first,
		frequencyStep:  step,
	}
	s.SetMagnitude(magnitude)
	return s
}

// SetMagnitude replaces the magnitude array and recomputes FFTSize and
// LastFrequency from it.
func (s *Spectrum) SetMagnitude(magnitude []float64) {
	s.magnitude = magnitude
	if len(magnitude) == 0 {
		s.lastFrequency = s.firstFrequency
		return
	}
	s.lastFrequency = s.firstFrequency + float64(len(magnitude)-1)*s.frequencyStep
}

func (s *Spectrum) Magnitude() []float64 { return s.magnitude }
func (s *Spectrum) FFTSize() int { return len(s.magnitude) }
func (s *Spectrum) FirstFrequency() float64 { return s.firstFrequency }
func (s *Spectrum) FrequencyStep() float64 { return s.frequencyStep }
func (s *Spectrum) LastFrequency() float64 { return s.lastFrequency }

// AppliedFilters returns a copy of the filter log in application order.
func (s *Spectrum) AppliedFilters() []string {
	return slices.Clone(s.filters)
}

// HasFilter reports whether an entry equal to name was logged.
func (s *Spectrum) HasFilter(name string) bool {
	return slices.Contains(s.filters, name)
}

// AppendFilter records a filter entry. It is used by collaborators that
// restore a persisted spectrum.
func (s *Spectrum) AppendFilter(entry string) {
	s.filters = append(s.filters, entry)
}

// Bin returns the geometry of the bin at index i.
func (s *Spectrum) Bin(i int) FrequencyBin {
	return NewFrequencyBin(s.firstFrequency, s.frequencyStep, i)
}

// Clone returns a deep copy.
func (s *Spectrum) Clone() *Spectrum {
	c := New(s.Name, s.firstFrequency, s.frequencyStep, slices.Clone(s.magnitude))
	c.Timestamp = s.Timestamp
	c.filters = slices.Clone(s.filters)
	return c
}

// Stats summarises a magnitude array.
type Stats struct {
	Min      float64
	MinIndex int
	Max      float64
	MaxIndex int
	Average  float64
	Median   float64
}

// MagnitudeStats computes Min/Max with their first indices, Average and
// Median. The median sorts a full copy, which is fine at analysis-window
// sizes. An empty spectrum yields zero Stats with indices -1.
func (s *Spectrum) MagnitudeStats() Stats {
	if len(s.magnitude) == 0 {
		return Stats{MinIndex: -1, MaxIndex: -1}
	}
	minIdx := floats.MinIdx(s.magnitude)
	maxIdx := floats.MaxIdx(s.magnitude)
	return Stats{
		Min:      s.magnitude[minIdx],
		MinIndex: minIdx,
		Max:      s.magnitude[maxIdx],
		MaxIndex: maxIdx,
		Average:  stat.Mean(s.magnitude, nil),
		Median:   median(s.magnitude),
	}
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// ApplyMedianFilter divides every magnitude by the median magnitude. A zero
// median leaves the values untouched but is still logged.
func (s *Spectrum) ApplyMedianFilter() {
	if len(s.magnitude) == 0 {
		s.filters = append(s.filters, "Median(0)")
		return
	}
	m := median(s.magnitude)
	if m != 0 {
		floats.Scale(1/m, s.magnitude)
	}
	s.filters = append(s.filters, "Median("+formatFloat(m)+")")
}

// ApplyCompressorFilter raises every magnitude to power, which must be
// positive.
func (s *Spectrum) ApplyCompressorFilter(power float64) error {
	if !(power > 0) {
		return domainErrorf(ConstraintPositivePower, "compressor power must be positive, got %s", formatFloat(power))
	}
	for i, v := range s.magnitude {
		s.magnitude[i] = math.Pow(v, power)
	}
	s.filters = append(s.filters, "Compressor("+formatFloat(power)+")")
	return nil
}

// FFTRangeLabel is a compact, filename-safe description of the grid such as
// "0Hz-6Hz (2Hz/4)". Decimal points are written as 'p', so 0.5 Hz is "0p5Hz".
func (s *Spectrum) FFTRangeLabel() string {
	label := fmt.Sprintf("%sHz-%sHz (%sHz/%d)",
		formatFloat(s.firstFrequency),
		formatFloat(s.lastFrequency),
		formatFloat(s.frequencyStep),
		len(s.magnitude))
	return strings.ReplaceAll(label, ".", "p")
}

func (s *Spectrum) String() string {
	return fmt.Sprintf("Spectrum(%s %s)", s.Name, s.FFTRangeLabel())
}

// formatFloat renders f with the shortest exact decimal representation,
// independent of locale.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
