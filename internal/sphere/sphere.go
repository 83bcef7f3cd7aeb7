// Package sphere computes the basic measurements of a sphere.
package sphere

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrInvalidRadius is returned for negative, NaN, or infinite radii.
var ErrInvalidRadius = errors.New("radius must be a finite non-negative number")

// Properties holds the measurements of a sphere of a given radius.
type Properties struct {
	Radius        float64 `json:"radius"`
	Diameter      float64 `json:"diameter"`
	Circumference float64 `json:"circumference"`
	SurfaceArea   float64 `json:"surface_area"`
	Volume        float64 `json:"volume"`
}

// Compute returns the properties of a sphere with radius r.
func Compute(r float64) (Properties, error) {
	if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return Properties{}, fmt.Errorf("%w: %v", ErrInvalidRadius, r)
	}
	return Properties{
		Radius:        r,
		Diameter:      2 * r,
		Circumference: 2 * math.Pi * r,
		SurfaceArea:   4 * math.Pi * r * r,
		Volume:        4.0 / 3.0 * math.Pi * r * r * r,
	}, nil
}

// Write prints p with two decimals, one measurement per line.
func Write(w io.Writer, p Properties) error {
	_, err := fmt.Fprintf(w,
		"Diameter is %.2f\nCircumference is %.2f\nSurface area is %.2f\nVolume is %.2f\n",
		p.Diameter, p.Circumference, p.SurfaceArea, p.Volume)
	return err
}
