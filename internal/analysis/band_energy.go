// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"biosignal/internal/spectrum"
)

// FrequencyBand defines the name and frequency range for an energy band.
// A bin belongs to the band when its start frequency lies in [LowHz, HighHz).
type FrequencyBand struct {
	Name   string  `yaml:"name"`
	LowHz  float64 `yaml:"low_hz"`
	HighHz float64 `yaml:"high_hz"`
}

// DefaultBands are the conventional EEG rhythm bands.
var DefaultBands = []FrequencyBand{
	{Name: "delta", LowHz: 0.5, HighHz: 4},
	{Name: "theta", LowHz: 4, HighHz: 8},
	{Name: "alpha", LowHz: 8, HighHz: 13},
	{Name: "beta", LowHz: 13, HighHz: 30},
	{Name: "gamma", LowHz: 30, HighHz: 45},
}

// BandEnergy is the mean squared magnitude over the bins of one band.
type BandEnergy struct {
	Name   string
	Energy float64
	Bins   int
}

// BandEnergies sums magnitude squared per band and normalises by the number
// of contributing bins. Bands no bin falls into report zero energy.
func BandEnergies(s *spectrum.Spectrum, bands []FrequencyBand) []BandEnergy {
	out := make([]BandEnergy, len(bands))
	for i, band := range bands {
		out[i].Name = band.Name
	}

	for i, m := range s.Magnitude() {
		freq := s.Bin(i).Start
		for j, band := range bands {
			if freq >= band.LowHz && freq < band.HighHz {
				out[j].Energy += m * m
				out[j].Bins++
				break
			}
		}
	}

	for i := range out {
		if out[i].Bins > 0 {
			out[i].Energy /= float64(out[i].Bins)
		}
	}
	return out
}

// RelativeEnergies scales energies so they sum to 1. All-zero input is
// returned unchanged.
func RelativeEnergies(energies []BandEnergy) []BandEnergy {
	var total float64
	for _, e := range energies {
		total += e.Energy
	}
	out := make([]BandEnergy, len(energies))
	copy(out, energies)
	if total == 0 || math.IsNaN(total) {
		return out
	}
	for i := range out {
		out[i].Energy /= total
	}
	return out
}

func (e BandEnergy) String() string {
	return fmt.Sprintf("%s=%.4g", e.Name, e.Energy)
}
