// Package noise synthesizes reproducible pseudo-random 3D scalar fields.
//
// A field is sampled from a coherent gradient-noise Basis over the grid
// embedded in a unit cube, shifted by a random offset so every call yields an
// independent realization, and then rescaled so its sampled extremes land
// exactly on the requested bounds.
package noise

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/models"
)

var (
	// ErrDegenerateRange is returned when a noise field is requested with
	// max == min, i.e. a constant field.
	ErrDegenerateRange = errors.New("noise range is degenerate (max == min)")

	// ErrFlatField is returned when every sampled cell has the same raw value,
	// so there is no spread to rescale.
	ErrFlatField = errors.New("sampled noise field has no spread")

	// ErrNonPositiveLog is returned when a log distribution has a bound <= 0.
	ErrNonPositiveLog = errors.New("log distribution requires positive bounds")
)

// Synthesizer generates noise fields from a Basis.
type Synthesizer struct {
	basis Basis
}

// NewSynthesizer creates a synthesizer over basis.
func NewSynthesizer(basis Basis) *Synthesizer {
	return &Synthesizer{basis: basis}
}

// Offset draws the per-field sampling offset from rng (x, y, z in order).
func Offset(rng *rand.Rand) models.Vec3 {
	var off models.Vec3
	for i := range off {
		off[i] = rng.Float64() * constants.NoiseOffsetScale
	}
	return off
}

// Synthesize draws a fresh offset from rng and samples a field for params.
func (s *Synthesizer) Synthesize(rng *rand.Rand, shape [3]int, params *models.Noise, dist models.Distribution) (*models.Field, error) {
	if !params.Frequency.Resolved() {
		return nil, fmt.Errorf("noise frequency range was not resolved")
	}
	return s.Field(shape, params.Frequency.XYZ, params.Min, params.Max, dist, Offset(rng))
}

// Field samples a field of the given shape and rescales it to [min, max].
// Under the log distribution the bounds are rescaled in log10 space and the
// result is exponentiated.
func (s *Synthesizer) Field(shape [3]int, freq models.Vec3, min, max float64, dist models.Distribution, offset models.Vec3) (*models.Field, error) {
	if min == max {
		return nil, ErrDegenerateRange
	}
	lo, hi := min, max
	if dist == models.DistributionLog {
		if min <= 0 || max <= 0 {
			return nil, fmt.Errorf("%w: [%g, %g]", ErrNonPositiveLog, min, max)
		}
		lo, hi = math.Log10(min), math.Log10(max)
	}

	f := models.NewField(shape)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s.sample(f, freq, offset)

	if err := Rescale(f.Values, lo, hi); err != nil {
		return nil, err
	}
	if dist == models.DistributionLog {
		for i, v := range f.Values {
			f.Values[i] = math.Pow(10, v)
		}
	}
	return f, nil
}

// sample fills f with raw basis samples. Each axis is scaled by
// size/max(shape), so cell (i, j, k) sits at (i, j, k)/max(shape).
func (s *Synthesizer) sample(f *models.Field, freq, offset models.Vec3) {
	nx, ny, nz := f.Shape[0], f.Shape[1], f.Shape[2]
	extent := float64(max(nx, ny, nz))
	for i := 0; i < nx; i++ {
		x := (float64(i)/extent + offset[0]) * freq[0]
		for j := 0; j < ny; j++ {
			y := (float64(j)/extent + offset[1]) * freq[1]
			for k := 0; k < nz; k++ {
				z := (float64(k)/extent + offset[2]) * freq[2]
				f.Set(i, j, k, s.basis.Sample(x, y, z))
			}
		}
	}
}

// Rescale maps values affinely in place so the smallest becomes min and the
// largest becomes max.
func Rescale(values []float64, min, max float64) error {
	if min == max {
		return ErrDegenerateRange
	}
	lo, hi := floats.Min(values), floats.Max(values)
	spread := hi - lo
	if spread == 0 {
		return ErrFlatField
	}
	for i, v := range values {
		values[i] = (v-lo)/spread*(max-min) + min
	}
	return nil
}

// PressureFromGradient integrates a head-gradient field into a hydrostatic
// pressure field. Along y every column starts at the reference pressure and
// accumulates gradient*resolution_y*1000; the result is then reversed along x.
func PressureFromGradient(gradient *models.Field, resolution models.Vec3) *models.Field {
	nx, ny, nz := gradient.Shape[0], gradient.Shape[1], gradient.Shape[2]
	out := models.NewField(gradient.Shape)

	steps := make([]float64, ny)
	column := make([]float64, ny)
	for i := 0; i < nx; i++ {
		for k := 0; k < nz; k++ {
			steps[0] = constants.ReferencePressure
			for j := 1; j < ny; j++ {
				steps[j] = gradient.At(i, j, k) * resolution[1] * constants.PressureUnitScale
			}
			floats.CumSum(column, steps)
			for j := 0; j < ny; j++ {
				out.Set(nx-1-i, j, k, column[j])
			}
		}
	}
	return out
}
