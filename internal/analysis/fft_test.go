// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
	"time"

	"biosignal/internal/buffer"
	"biosignal/internal/spectrum"
	"biosignal/pkg/utils"
)

const (
	testFFTSize    = 256
	testSampleRate = 256.0
)

func sineBlock(index int64, n int, freq float64) buffer.Block {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return buffer.Block{
		Index:      index,
		BlockSize:  n,
		StartIndex: index,
		EndIndex:   index,
		Data:       utils.SineWave(n, testSampleRate, freq, 1),
		Start:      start,
		End:        start.Add(time.Second),
	}
}

func TestNewAnalyzerValidation(t *testing.T) {
	tests := []struct {
		name       string
		fftSize    int
		sampleRate float64
		wantErr    bool
	}{
		{"valid", 256, 256, false},
		{"not power of two", 250, 256, true},
		{"zero size", 0, 256, true},
		{"zero rate", 256, 0, true},
		{"NaN rate", 256, math.NaN(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAnalyzer(tt.fftSize, tt.sampleRate, Hann)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewAnalyzer() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnalyzePeakBin(t *testing.T) {
	tests := []struct {
		name      string
		window    WindowFunc
		frequency float64
	}{
		{"hann alpha", Hann, 10},
		{"hamming theta", Hamming, 6},
		{"blackman beta", Blackman, 20},
		{"rectangular", Rectangular, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAnalyzer(testFFTSize, testSampleRate, tt.window)
			if err != nil {
				t.Fatalf("NewAnalyzer() error: %v", err)
			}
			block := sineBlock(7, testFFTSize, tt.frequency)

			s, err := a.Analyze(block)
			if err != nil {
				t.Fatalf("Analyze() error: %v", err)
			}
			if s.FFTSize() != testFFTSize/2+1 {
				t.Errorf("FFTSize = %d, want %d", s.FFTSize(), testFFTSize/2+1)
			}
			if s.FirstFrequency() != 0 || s.FrequencyStep() != 1 || s.LastFrequency() != 128 {
				t.Errorf("grid = %s", s.FFTRangeLabel())
			}

			want := int(tt.frequency / s.FrequencyStep())
			if got := s.MagnitudeStats().MaxIndex; got != want {
				t.Errorf("peak bin = %d, want %d", got, want)
			}
			if got := utils.FindPeakBin(s.Magnitude(), 0, s.FFTSize()-1); got != want {
				t.Errorf("FindPeakBin = %d, want %d", got, want)
			}
			if s.Name != "block7" || !s.Timestamp.Equal(block.Start) {
				t.Errorf("spectrum %q at %v", s.Name, s.Timestamp)
			}
		})
	}
}

func TestAnalyzeUsesMostRecentSamples(t *testing.T) {
	a, _ := NewAnalyzer(testFFTSize, testSampleRate, Hann)

	// Older half is 5 Hz, newest fftSize samples are 40 Hz.
	block := sineBlock(2, 2*testFFTSize, 5)
	copy(block.Data[testFFTSize:], utils.SineWave(testFFTSize, testSampleRate, 40, 1))

	s, err := a.Analyze(block)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got := s.MagnitudeStats().MaxIndex; got != 40 {
		t.Errorf("peak bin = %d, want 40", got)
	}
}

func TestAnalyzeZeroPads(t *testing.T) {
	a, _ := NewAnalyzer(testFFTSize, testSampleRate, Rectangular)
	block := sineBlock(1, testFFTSize/2, 16)

	s, err := a.Analyze(block)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if got := s.MagnitudeStats().MaxIndex; got != 16 {
		t.Errorf("peak bin = %d, want 16", got)
	}
}

func TestAnalyzeEmptyBlock(t *testing.T) {
	a, _ := NewAnalyzer(testFFTSize, testSampleRate, Hann)
	if _, err := a.Analyze(buffer.Block{BufferPosition: -1}); err == nil {
		t.Error("expected error for empty block")
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		in      string
		want    WindowFunc
		wantErr bool
	}{
		{"Hann", Hann, false},
		{"hanning", Hann, false},
		{"", Hann, false},
		{"BLACKMAN", Blackman, false},
		{"blackmannuttall", BlackmanNuttall, false},
		{"none", Rectangular, false},
		{"kaiser", Hann, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseWindowFunc(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestBandEnergies(t *testing.T) {
	// 1 Hz bins starting at 0 Hz.
	s := spectrum.New("raw", 0, 1, []float64{9, 1, 1, 1, 2, 2, 2, 2, 3, 3})
	bands := []FrequencyBand{
		{Name: "low", LowHz: 1, HighHz: 4},
		{Name: "mid", LowHz: 4, HighHz: 8},
		{Name: "high", LowHz: 8, HighHz: 100},
		{Name: "none", LowHz: 200, HighHz: 300},
	}

	got := BandEnergies(s, bands)
	want := []BandEnergy{
		{Name: "low", Energy: 1, Bins: 3},
		{Name: "mid", Energy: 4, Bins: 4},
		{Name: "high", Energy: 9, Bins: 2},
		{Name: "none", Energy: 0, Bins: 0},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("band %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	rel := RelativeEnergies(got)
	if math.Abs(rel[0].Energy-1.0/14) > 1e-12 || math.Abs(rel[2].Energy-9.0/14) > 1e-12 {
		t.Errorf("RelativeEnergies = %v", rel)
	}
	if got[0].Energy != 1 {
		t.Error("RelativeEnergies modified its input")
	}
}

func BenchmarkAnalyze(b *testing.B) {
	a, _ := NewAnalyzer(1024, 1024, Hann)
	block := buffer.Block{Index: 1, BlockSize: 1024, Data: utils.ComplexWave(1024, 1024)}

	b.ReportAllocs()
	for b.Loop() {
		_, _ = a.Analyze(block)
	}
}
