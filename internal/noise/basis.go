package noise

import (
	"fmt"
	"strings"

	perlin "github.com/aquilax/go-perlin"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/nvandessel/vampireman/internal/constants"
)

// Basis is a coherent 3D gradient-noise function. Samples are roughly in
// [-1, 1] but callers must not rely on the exact range.
type Basis interface {
	Sample(x, y, z float64) float64
}

// Supported basis names.
const (
	BasisPerlin  = "perlin"
	BasisSimplex = "simplex"
)

// NewBasis constructs the named basis summing the given number of octaves.
func NewBasis(name string, octaves int) (Basis, error) {
	if octaves < 1 {
		return nil, fmt.Errorf("noise octaves must be >= 1, got %d", octaves)
	}
	switch strings.ToLower(name) {
	case "", BasisPerlin:
		return NewPerlinBasis(octaves), nil
	case BasisSimplex:
		return NewSimplexBasis(octaves), nil
	default:
		return nil, fmt.Errorf("unknown noise basis %q (valid: %s, %s)", name, BasisPerlin, BasisSimplex)
	}
}

// PerlinBasis samples classic 3D Perlin noise.
type PerlinBasis struct {
	p *perlin.Perlin
}

// NewPerlinBasis creates a Perlin basis with a fixed permutation table.
func NewPerlinBasis(octaves int) *PerlinBasis {
	return &PerlinBasis{
		p: perlin.NewPerlin(constants.PerlinAlpha, constants.PerlinBeta, int32(octaves), constants.NoiseBasisSeed),
	}
}

func (b *PerlinBasis) Sample(x, y, z float64) float64 {
	return b.p.Noise3D(x, y, z)
}

// SimplexBasis samples OpenSimplex noise, summed as fractional Brownian
// motion when more than one octave is requested.
type SimplexBasis struct {
	noise   opensimplex.Noise
	octaves int
}

// NewSimplexBasis creates an OpenSimplex basis with a fixed seed.
func NewSimplexBasis(octaves int) *SimplexBasis {
	return &SimplexBasis{
		noise:   opensimplex.New(constants.NoiseBasisSeed),
		octaves: octaves,
	}
}

func (b *SimplexBasis) Sample(x, y, z float64) float64 {
	var sum float64
	amp, freq := 1.0, 1.0
	for o := 0; o < b.octaves; o++ {
		sum += amp * b.noise.Eval3(x*freq, y*freq, z*freq)
		amp /= constants.PerlinAlpha
		freq *= constants.PerlinBeta
	}
	return sum
}
