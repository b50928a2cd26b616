// SPDX-License-Identifier: MIT
package spectrum

import (
	"fmt"
	"slices"
)

// Profile is a named target grid and range spectra are projected onto.
type Profile struct {
	Name          string  `yaml:"name" json:"name"`
	FrequencyStep float64 `yaml:"frequency_step" json:"frequency_step"`
	MinFrequency  float64 `yaml:"min_frequency" json:"min_frequency"`
	MaxFrequency  float64 `yaml:"max_frequency" json:"max_frequency"`
}

func (p Profile) String() string {
	return fmt.Sprintf("Profile(%s step=%sHz range=%sHz..%sHz)",
		p.Name, formatFloat(p.FrequencyStep), formatFloat(p.MinFrequency), formatFloat(p.MaxFrequency))
}

// DownsampleFilter is the filter log entry Downsample appends.
func DownsampleFilter(step float64) string {
	return "Downsample(" + formatFloat(step) + ")"
}

// Downsample returns a copy of s on a coarser grid of newStep Hz. The source
// must start at 0 Hz and newStep must exceed the current step.
//
// Source bins are walked left to right and their magnitude is accumulated
// into the output bin they fall in. A source bin straddling an output
// boundary is split by frequency overlap and the remainder opens the next
// output bin. Every output value is scaled by oldStep/newStep so the energy
// density is preserved.
func (s *Spectrum) Downsample(newStep float64) (*Spectrum, error) {
	if s.firstFrequency != 0 {
		return nil, domainErrorf(ConstraintZeroFirstFrequency,
			"downsample requires FirstFrequency 0, got %sHz", formatFloat(s.firstFrequency))
	}
	if !(newStep > s.frequencyStep) {
		return nil, domainErrorf(ConstraintIncreasingStep,
			"downsample step %sHz must exceed current step %sHz", formatFloat(newStep), formatFloat(s.frequencyStep))
	}

	// Tolerance for boundary comparisons so grids that align exactly in
	// decimal do not split on rounding noise.
	eps := newStep * 1e-9

	out := make([]float64, 0, int(float64(len(s.magnitude))*s.frequencyStep/newStep)+2)
	if len(s.magnitude) > 0 {
		out = append(out, 0)
	}
	j := 0
	for i, m := range s.magnitude {
		src := s.Bin(i)
		dst := NewFrequencyBin(0, newStep, j)
		if src.End <= dst.End+eps {
			out[j] += m
			continue
		}
		frac := (dst.End - src.Start) / src.Width
		frac = min(max(frac, 0), 1)
		out[j] += m * frac
		out = append(out, m*(1-frac))
		j++
	}

	scale := s.frequencyStep / newStep
	for i := range out {
		out[i] *= scale
	}

	d := New(s.Name, 0, newStep, out)
	d.Timestamp = s.Timestamp
	d.filters = append(slices.Clone(s.filters), DownsampleFilter(newStep))
	return d, nil
}

// ApplyProfile projects s onto p. When the steps differ the spectrum is
// downsampled first. The result keeps the bins from the first one ending
// above p.MinFrequency through the last one starting at or below
// p.MaxFrequency, and is named after the profile.
func (s *Spectrum) ApplyProfile(p Profile) (*Spectrum, error) {
	eff := s
	if p.FrequencyStep != s.frequencyStep && len(s.magnitude) > 0 {
		d, err := s.Downsample(p.FrequencyStep)
		if err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", p, err)
		}
		eff = d
	}

	if eff.firstFrequency > p.MinFrequency || eff.lastFrequency < p.MaxFrequency {
		return nil, domainErrorf(ConstraintProfileCoverage,
			"spectrum covers %sHz..%sHz at %sHz steps, %s needs %sHz..%sHz",
			formatFloat(eff.firstFrequency), formatFloat(eff.lastFrequency), formatFloat(eff.frequencyStep),
			p.Name, formatFloat(p.MinFrequency), formatFloat(p.MaxFrequency))
	}

	n := len(eff.magnitude)
	start := 0
	for start < n && eff.Bin(start).End <= p.MinFrequency {
		start++
	}
	end := start - 1
	for end+1 < n && eff.Bin(end+1).Start <= p.MaxFrequency {
		end++
	}

	first := eff.firstFrequency
	if start < n {
		first = eff.Bin(start).Start
	}
	window := slices.Clone(eff.magnitude[start : end+1])

	r := New(p.Name, first, eff.frequencyStep, window)
	r.Timestamp = s.Timestamp
	r.filters = slices.Clone(eff.filters)
	return r, nil
}
