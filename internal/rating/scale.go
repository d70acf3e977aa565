package rating

import (
	"fmt"
	"math"
)

const (
	// MinRating is the lowest canonical rating.
	MinRating = 1
	// MaxRating is the highest canonical rating.
	MaxRating = 10
)

// Scale describes a site's native rating range. Canonical ratings are 1-10.
type Scale struct {
	Name string
	Max  float64 // Highest native value, e.g. 10 for IMDb or 5 for five-star sites
	Step float64 // Smallest native increment, e.g. 1 or 0.5
}

var (
	// TenPoint is the 1-10 integer scale used by IMDb and Trakt. Conversion is identity.
	TenPoint = Scale{Name: "ten-point", Max: 10, Step: 1}
	// FiveStar is the 0.5-5 half-star scale used by Letterboxd and MovieLens.
	// Native to canonical is value * 2; canonical to native is value / 2.
	FiveStar = Scale{Name: "five-star", Max: 5, Step: 0.5}
)

// ToCanonical converts a native rating into the canonical 1-10 scale.
func (s Scale) ToCanonical(value float64) (int, error) {
	if s.Max <= 0 {
		return 0, fmt.Errorf("scale %q has no maximum", s.Name)
	}
	if value <= 0 || value > s.Max {
		return 0, fmt.Errorf("rating %g outside %s range (0, %g]", value, s.Name, s.Max)
	}
	canonical := int(math.Round(value * MaxRating / s.Max))
	return clamp(canonical), nil
}

// FromCanonical converts a canonical rating into the native scale, rounded to
// the scale's step.
func (s Scale) FromCanonical(value int) float64 {
	native := float64(clamp(value)) * s.Max / MaxRating
	if s.Step > 0 {
		native = math.Round(native/s.Step) * s.Step
		if native < s.Step {
			native = s.Step
		}
	}
	return native
}

func clamp(v int) int {
	if v < MinRating {
		return MinRating
	}
	if v > MaxRating {
		return MaxRating
	}
	return v
}
