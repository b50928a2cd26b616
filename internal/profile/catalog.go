// SPDX-License-Identifier: MIT
package profile

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"biosignal/internal/spectrum"

	"gopkg.in/yaml.v3"
)

// Catalog holds named Profile definitions.
type Catalog struct {
	profiles map[string]spectrum.Profile
	order    []string
}

// document is the on-disk layout of a catalog file.
type document struct {
	Profiles []spectrum.Profile `yaml:"profiles"`
}

// NewCatalog builds a catalog from profiles, validating each one.
func NewCatalog(profiles ...spectrum.Profile) (*Catalog, error) {
	c := &Catalog{profiles: make(map[string]spectrum.Profile, len(profiles))}
	for _, p := range profiles {
		if err := c.add(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Load reads a YAML catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog of the form
//
//	profiles:
//	  - name: alpha
//	    frequency_step: 0.5
//	    min_frequency: 8
//	    max_frequency: 12
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse profile catalog: %w", err)
	}
	return NewCatalog(doc.Profiles...)
}

func (c *Catalog) add(p spectrum.Profile) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return fmt.Errorf("profile %d: name is required", len(c.order))
	case !(p.FrequencyStep > 0):
		return fmt.Errorf("profile %q: frequency_step must be positive, got %g", p.Name, p.FrequencyStep)
	case p.MinFrequency < 0:
		return fmt.Errorf("profile %q: min_frequency must not be negative, got %g", p.Name, p.MinFrequency)
	case p.MaxFrequency < p.MinFrequency:
		return fmt.Errorf("profile %q: max_frequency %g is below min_frequency %g", p.Name, p.MaxFrequency, p.MinFrequency)
	}
	if _, ok := c.profiles[p.Name]; ok {
		return fmt.Errorf("profile %q: duplicate name", p.Name)
	}
	c.profiles[p.Name] = p
	c.order = append(c.order, p.Name)
	return nil
}

// Get returns the profile called name.
func (c *Catalog) Get(name string) (spectrum.Profile, error) {
	p, ok := c.profiles[name]
	if !ok {
		return spectrum.Profile{}, fmt.Errorf("unknown profile: '%s'", name)
	}
	return p, nil
}

// Names lists profile names in definition order.
func (c *Catalog) Names() []string {
	return slices.Clone(c.order)
}

// Len is the number of profiles.
func (c *Catalog) Len() int {
	return len(c.order)
}
