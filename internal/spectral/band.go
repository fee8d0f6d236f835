// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spectral

import (
	"fmt"
	"sort"
)

// Category is the detected cutting activity.
type Category int

const (
	None Category = iota
	Saw
	Axe
	Chainsaw
)

var categoryNames = map[Category]string{
	None:     "none",
	Saw:      "saw",
	Axe:      "axe",
	Chainsaw: "chainsaw",
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return fmt.Sprintf("category(%d)", int(c))
}

func (c Category) MarshalText() ([]byte, error) {
	if _, ok := categoryNames[c]; !ok {
		return nil, fmt.Errorf("unknown category %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	cat, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = cat
	return nil
}

// ParseCategory maps a category name back to its value.
func ParseCategory(s string) (Category, error) {
	for c, n := range categoryNames {
		if n == s {
			return c, nil
		}
	}
	return None, fmt.Errorf("unknown category %q", s)
}

// Describe returns the operator-facing message for c.
func (c Category) Describe() string {
	switch c {
	case Chainsaw:
		return "Chainsaw cutting detected!"
	case Axe:
		return "Hand axe/hatchet cutting detected!"
	case Saw:
		return "Handsaw cutting detected!"
	default:
		return "No significant cutting activity detected."
	}
}

// Band is a frequency interval [MinHz, MaxHz) tied to one category.
type Band struct {
	Category Category `json:"category"`
	MinHz    float64  `json:"min_hz"`
	MaxHz    float64  `json:"max_hz"`
}

// Contains reports whether hz falls inside the band.
func (b Band) Contains(hz float64) bool {
	return hz >= b.MinHz && hz < b.MaxHz
}

func (b Band) String() string {
	return fmt.Sprintf("%s [%g, %g) Hz", b.Category, b.MinHz, b.MaxHz)
}

// DefaultBands returns the disjoint saw, axe and chainsaw bands.
func DefaultBands() []Band {
	return []Band{
		{Category: Saw, MinHz: 5, MaxHz: 20},
		{Category: Axe, MinHz: 20, MaxHz: 50},
		{Category: Chainsaw, MinHz: 50, MaxHz: 250},
	}
}

// ValidateBands checks that every band is non-empty, names a detectable
// category at most once, and does not overlap another band.
func ValidateBands(bands []Band) error {
	if len(bands) == 0 {
		return fmt.Errorf("no frequency bands configured")
	}
	seen := make(map[Category]bool, len(bands))
	for _, b := range bands {
		if b.Category == None {
			return fmt.Errorf("band %s: category none cannot be detected", b)
		}
		if _, ok := categoryNames[b.Category]; !ok {
			return fmt.Errorf("band %s: unknown category", b)
		}
		if seen[b.Category] {
			return fmt.Errorf("band %s: category configured twice", b)
		}
		seen[b.Category] = true
		if b.MinHz < 0 || b.MaxHz <= b.MinHz {
			return fmt.Errorf("band %s: invalid range", b)
		}
	}

	sorted := append([]Band(nil), bands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinHz < sorted[j].MinHz })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].MinHz < sorted[i-1].MaxHz {
			return fmt.Errorf("bands %s and %s overlap", sorted[i-1], sorted[i])
		}
	}
	return nil
}

// Peaks holds the largest bin magnitude seen in each band.
type Peaks map[Category]float64

// priority lists detectable categories from most to least severe.
var priority = []Category{Chainsaw, Axe, Saw}

// Resolve picks exactly one category: the highest-priority band whose peak
// strictly exceeds threshold, or None.
func Resolve(peaks Peaks, threshold float64) Category {
	for _, c := range priority {
		if peaks[c] > threshold {
			return c
		}
	}
	return None
}
