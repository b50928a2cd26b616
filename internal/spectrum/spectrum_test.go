// SPDX-License-Identifier: MIT
package spectrum

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func almostEqualSlice(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !almostEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func seq(from, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(from + i)
	}
	return out
}

func TestSetMagnitudeDerivesGeometry(t *testing.T) {
	tests := []struct {
		name     string
		first    float64
		step     float64
		mags     []float64
		wantSize int
		wantLast float64
	}{
		{"empty", 3, 0.5, nil, 0, 3},
		{"single", 3, 0.5, []float64{1}, 1, 3},
		{"eight bins", 0, 1, seq(1, 8), 8, 7},
		{"fractional step", 1, 0.25, seq(0, 5), 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("x", tt.first, tt.step, tt.mags)
			if s.FFTSize() != tt.wantSize {
				t.Errorf("FFTSize = %d, want %d", s.FFTSize(), tt.wantSize)
			}
			if !almostEqual(s.LastFrequency(), tt.wantLast) {
				t.Errorf("LastFrequency = %g, want %g", s.LastFrequency(), tt.wantLast)
			}
		})
	}

	s := New("x", 0, 1, seq(0, 4))
	s.SetMagnitude(seq(0, 10))
	if s.FFTSize() != 10 || s.LastFrequency() != 9 {
		t.Errorf("after SetMagnitude: size=%d last=%g, want 10/9", s.FFTSize(), s.LastFrequency())
	}
}

func TestFrequencyBin(t *testing.T) {
	b := NewFrequencyBin(10, 2, 3)
	want := FrequencyBin{Start: 16, Middle: 17, End: 18, Width: 2}
	if b != want {
		t.Errorf("bin = %+v, want %+v", b, want)
	}
	if !b.Contains(16) || b.Contains(18) {
		t.Error("Contains should be half-open [Start, End)")
	}
	if got := b.Overlap(NewFrequencyBin(2, 3, 5)); got != 1 {
		t.Errorf("Overlap = %g, want 1", got)
	}
	if got := b.Overlap(NewFrequencyBin(0, 1, 0)); got != 0 {
		t.Errorf("disjoint Overlap = %g, want 0", got)
	}
}

func TestDownsample(t *testing.T) {
	s := New("eeg", 0, 1.0, seq(1, 8))

	d, err := s.Downsample(2.0)
	if err != nil {
		t.Fatalf("Downsample() error: %v", err)
	}
	if want := []float64{1.5, 3.5, 5.5, 7.5}; !almostEqualSlice(d.Magnitude(), want) {
		t.Errorf("magnitude = %v, want %v", d.Magnitude(), want)
	}
	if d.FrequencyStep() != 2 || d.FirstFrequency() != 0 || d.LastFrequency() != 6 {
		t.Errorf("grid = %g/%g/%g, want step 2 first 0 last 6",
			d.FrequencyStep(), d.FirstFrequency(), d.LastFrequency())
	}
	if !d.HasFilter("Downsample(2)") {
		t.Errorf("filters = %v, want Downsample(2)", d.AppliedFilters())
	}
	if want := seq(1, 8); !almostEqualSlice(s.Magnitude(), want) {
		t.Errorf("source mutated: %v", s.Magnitude())
	}
	if len(s.AppliedFilters()) != 0 {
		t.Errorf("source filter log mutated: %v", s.AppliedFilters())
	}
}

func TestDownsampleNonIntegralRatio(t *testing.T) {
	s := New("flat", 0, 1.0, []float64{1, 1, 1, 1})

	d, err := s.Downsample(1.5)
	if err != nil {
		t.Fatalf("Downsample() error: %v", err)
	}
	// Bins [0,1.5) and [1.5,3) each receive 1.5 units of energy, the open
	// bin [3,4.5) receives the last source bin.
	want := []float64{1, 1, 2.0 / 3.0}
	if !almostEqualSlice(d.Magnitude(), want) {
		t.Errorf("magnitude = %v, want %v", d.Magnitude(), want)
	}
	if !d.HasFilter("Downsample(1.5)") {
		t.Errorf("filters = %v, want Downsample(1.5)", d.AppliedFilters())
	}
}

func TestDownsamplePreservesEnergyDensity(t *testing.T) {
	mags := make([]float64, 300)
	for i := range mags {
		mags[i] = 4
	}
	s := New("flat", 0, 0.1, mags)

	d, err := s.Downsample(0.7)
	if err != nil {
		t.Fatalf("Downsample() error: %v", err)
	}
	// 300 bins of 0.1 Hz span 30 Hz, which is an exact multiple of 0.7 Hz
	// only up to 29.4 Hz; every complete output bin keeps the density.
	for i, v := range d.Magnitude()[:len(d.Magnitude())-1] {
		if math.Abs(v-4) > 1e-6 {
			t.Fatalf("bin %d = %g, want 4", i, v)
		}
	}
}

func TestDownsampleConstraints(t *testing.T) {
	tests := []struct {
		name       string
		first      float64
		step       float64
		newStep    float64
		constraint string
	}{
		{"non-zero first frequency", 0.5, 1, 2, ConstraintZeroFirstFrequency},
		{"equal step", 0, 1, 1, ConstraintIncreasingStep},
		{"smaller step", 0, 1, 0.5, ConstraintIncreasingStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("x", tt.first, tt.step, seq(0, 8))
			_, err := s.Downsample(tt.newStep)
			if !errors.Is(err, ErrDomain) {
				t.Fatalf("expected ErrDomain, got %v", err)
			}
			var de *DomainError
			if !errors.As(err, &de) || de.Constraint != tt.constraint {
				t.Errorf("error = %v, want constraint %s", err, tt.constraint)
			}
		})
	}
}

func TestApplyProfile(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New("raw", 0, 1.0, seq(0, 8))
	s.Timestamp = ts

	p := Profile{Name: "alpha_2hz", FrequencyStep: 2.0, MinFrequency: 2.0, MaxFrequency: 5.0}
	r, err := s.ApplyProfile(p)
	if err != nil {
		t.Fatalf("ApplyProfile() error: %v", err)
	}
	if want := []float64{2.5, 4.5}; !almostEqualSlice(r.Magnitude(), want) {
		t.Errorf("magnitude = %v, want %v", r.Magnitude(), want)
	}
	if r.FirstFrequency() != 2.0 {
		t.Errorf("FirstFrequency = %g, want 2", r.FirstFrequency())
	}
	if r.LastFrequency() != 4.0 {
		t.Errorf("LastFrequency = %g, want 4", r.LastFrequency())
	}
	if r.Name != p.Name {
		t.Errorf("Name = %q, want %q", r.Name, p.Name)
	}
	if !r.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", r.Timestamp, ts)
	}
	if !r.HasFilter("Downsample(2)") {
		t.Errorf("filters = %v, want Downsample(2)", r.AppliedFilters())
	}
}

func TestApplyProfileSameStep(t *testing.T) {
	s := New("raw", 1, 0.5, seq(10, 10)) // bins start at 1.0 .. 5.5
	s.AppendFilter("Median(3)")

	r, err := s.ApplyProfile(Profile{Name: "p", FrequencyStep: 0.5, MinFrequency: 2.2, MaxFrequency: 3.5})
	if err != nil {
		t.Fatalf("ApplyProfile() error: %v", err)
	}
	// First bin ending above 2.2 is [2.0,2.5) at index 2, last starting at or
	// below 3.5 is index 5.
	if want := []float64{12, 13, 14, 15}; !almostEqualSlice(r.Magnitude(), want) {
		t.Errorf("magnitude = %v, want %v", r.Magnitude(), want)
	}
	if r.FirstFrequency() != 2.0 {
		t.Errorf("FirstFrequency = %g, want 2", r.FirstFrequency())
	}
	if got := r.AppliedFilters(); len(got) != 1 || got[0] != "Median(3)" {
		t.Errorf("filters = %v, want [Median(3)]", got)
	}

	r.Magnitude()[0] = -1
	if s.Magnitude()[2] != 12 {
		t.Error("profiled spectrum shares storage with the source")
	}
}

func TestApplyProfileCoverage(t *testing.T) {
	tests := []struct {
		name    string
		first   float64
		profile Profile
	}{
		{"first above min", 3, Profile{Name: "theta_band", FrequencyStep: 1, MinFrequency: 2, MaxFrequency: 5}},
		{"last below max", 0, Profile{Name: "theta_band", FrequencyStep: 1, MinFrequency: 0, MaxFrequency: 8}},
		{"last below max after downsample", 0, Profile{Name: "theta_band", FrequencyStep: 2, MinFrequency: 0, MaxFrequency: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("raw", tt.first, 1, seq(0, 8))
			_, err := s.ApplyProfile(tt.profile)
			var de *DomainError
			if !errors.As(err, &de) || de.Constraint != ConstraintProfileCoverage {
				t.Fatalf("expected coverage DomainError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.profile.Name) {
				t.Errorf("error %q does not name the profile", err)
			}
		})
	}
}

func TestApplyProfileDownsampleFailure(t *testing.T) {
	s := New("raw", 1, 1, seq(0, 8))
	_, err := s.ApplyProfile(Profile{Name: "p", FrequencyStep: 2, MinFrequency: 2, MaxFrequency: 4})
	var de *DomainError
	if !errors.As(err, &de) || de.Constraint != ConstraintZeroFirstFrequency {
		t.Fatalf("expected FirstFrequency DomainError, got %v", err)
	}
}

func TestMagnitudeStats(t *testing.T) {
	s := New("x", 0, 1, []float64{5, 1, 3, 2, 4})
	got := s.MagnitudeStats()
	want := Stats{Min: 1, MinIndex: 1, Max: 5, MaxIndex: 0, Average: 3, Median: 3}
	if got != want {
		t.Errorf("MagnitudeStats = %+v, want %+v", got, want)
	}

	even := New("x", 0, 1, []float64{4, 1, 3, 2}).MagnitudeStats()
	if even.Median != 2.5 {
		t.Errorf("even Median = %g, want 2.5", even.Median)
	}

	empty := New("x", 0, 1, nil).MagnitudeStats()
	if empty.MinIndex != -1 || empty.MaxIndex != -1 {
		t.Errorf("empty stats = %+v, want indices -1", empty)
	}
}

func TestApplyCompressorFilter(t *testing.T) {
	for _, p := range []float64{0.5, 1, 2, 3.3} {
		s := New("x", 0, 1, []float64{1, 2, 3, 4})
		if err := s.ApplyCompressorFilter(p); err != nil {
			t.Fatalf("ApplyCompressorFilter(%g) error: %v", p, err)
		}
		want := []float64{1, math.Pow(2, p), math.Pow(3, p), math.Pow(4, p)}
		if !almostEqualSlice(s.Magnitude(), want) {
			t.Errorf("power %g: magnitude = %v, want %v", p, s.Magnitude(), want)
		}
		if !s.HasFilter("Compressor(" + formatFloat(p) + ")") {
			t.Errorf("filters = %v", s.AppliedFilters())
		}
	}

	for _, p := range []float64{0, -1, math.NaN()} {
		s := New("x", 0, 1, []float64{1, 2, 3, 4})
		err := s.ApplyCompressorFilter(p)
		var de *DomainError
		if !errors.As(err, &de) || de.Constraint != ConstraintPositivePower {
			t.Errorf("power %g: expected DomainError, got %v", p, err)
		}
		if len(s.AppliedFilters()) != 0 {
			t.Errorf("power %g: failed filter was logged", p)
		}
	}
}

func TestApplyMedianFilter(t *testing.T) {
	s := New("x", 0, 1, []float64{2, 4, 6})
	s.ApplyMedianFilter()
	if want := []float64{0.5, 1, 1.5}; !almostEqualSlice(s.Magnitude(), want) {
		t.Errorf("magnitude = %v, want %v", s.Magnitude(), want)
	}
	if !s.HasFilter("Median(4)") {
		t.Errorf("filters = %v, want Median(4)", s.AppliedFilters())
	}

	zero := New("x", 0, 1, []float64{0, 0, 1})
	zero.ApplyMedianFilter()
	if want := []float64{0, 0, 1}; !almostEqualSlice(zero.Magnitude(), want) {
		t.Errorf("zero median changed magnitudes: %v", zero.Magnitude())
	}
}

func TestFFTRangeLabel(t *testing.T) {
	tests := []struct {
		first, step float64
		n           int
		want        string
	}{
		{0, 2, 4, "0Hz-6Hz (2Hz/4)"},
		{0.5, 0.25, 3, "0p5Hz-1Hz (0p25Hz/3)"},
		{1, 0.5, 0, "1Hz-1Hz (0p5Hz/0)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			s := New("x", tt.first, tt.step, make([]float64, tt.n))
			if got := s.FFTRangeLabel(); got != tt.want {
				t.Errorf("FFTRangeLabel = %q, want %q", got, tt.want)
			}
		})
	}
}

func BenchmarkDownsample(b *testing.B) {
	mags := make([]float64, 4097)
	for i := range mags {
		mags[i] = float64(i % 17)
	}
	s := New("bench", 0, 0.06103515625, mags)

	b.ReportAllocs()
	for b.Loop() {
		_, _ = s.Downsample(0.25)
	}
}
