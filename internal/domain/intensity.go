package domain

import (
	"fmt"
	"strconv"
)

// Scale selects the choice set offered after each round.
type Scale string

const (
	ScaleNumeric     Scale = "numeric"     // 1..5
	ScaleCategorical Scale = "categorical" // low, mid, high
)

// Valid reports whether s is a known scale.
func (s Scale) Valid() bool {
	return s == ScaleNumeric || s == ScaleCategorical
}

// Max is the highest value on the scale.
func (s Scale) Max() int {
	if s == ScaleCategorical {
		return 3
	}
	return 5
}

var categoricalNames = map[int]string{1: "low", 2: "mid", 3: "high"}

// Intensity is a post-round subjective effort score.
type Intensity struct {
	Scale Scale `json:"scale"`
	Value int   `json:"value"` // categorical: 1=low 2=mid 3=high
}

// NewIntensity validates value against scale.
func NewIntensity(scale Scale, value int) (Intensity, error) {
	in := Intensity{Scale: scale, Value: value}
	if !in.Valid() {
		return Intensity{}, fmt.Errorf("%w: %d on %s scale", ErrInvalidScore, value, scale)
	}
	return in, nil
}

// Valid reports whether the value lies within its scale.
func (i Intensity) Valid() bool {
	return i.Scale.Valid() && i.Value >= 1 && i.Value <= i.Scale.Max()
}

func (i Intensity) String() string {
	if i.Scale == ScaleCategorical {
		if name, ok := categoricalNames[i.Value]; ok {
			return name
		}
	}
	return strconv.Itoa(i.Value)
}

// Normalized maps the score onto 0..1 so numeric and categorical sessions compare.
func (i Intensity) Normalized() float64 {
	max := i.Scale.Max()
	if max <= 1 {
		return 0
	}
	return float64(i.Value-1) / float64(max-1)
}
