package noise

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/vampireman/internal/models"
)

func newTestSynth(t *testing.T, basis string) *Synthesizer {
	t.Helper()
	b, err := NewBasis(basis, 1)
	require.NoError(t, err)
	return NewSynthesizer(b)
}

func TestNewBasis(t *testing.T) {
	tests := []struct {
		name    string
		basis   string
		octaves int
		wantErr bool
	}{
		{"default is perlin", "", 1, false},
		{"perlin", "perlin", 3, false},
		{"simplex", "SIMPLEX", 2, false},
		{"unknown basis", "worley", 1, true},
		{"zero octaves", "perlin", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBasis(tt.basis, tt.octaves)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, b)
		})
	}
}

func TestField_SpansRequestedRange(t *testing.T) {
	for _, basis := range []string{BasisPerlin, BasisSimplex} {
		t.Run(basis, func(t *testing.T) {
			s := newTestSynth(t, basis)
			rng := rand.New(rand.NewSource(7))

			f, err := s.Field([3]int{16, 24, 2}, models.Vec3{4, 4, 4}, -3, 12, models.DistributionLinear, Offset(rng))
			require.NoError(t, err)
			require.Equal(t, 16*24*2, f.Len())

			assert.InDelta(t, -3, f.Min(), 1e-9)
			assert.InDelta(t, 12, f.Max(), 1e-9)
		})
	}
}

func TestField_LogDistribution(t *testing.T) {
	s := newTestSynth(t, BasisPerlin)
	rng := rand.New(rand.NewSource(11))

	f, err := s.Field([3]int{20, 20, 1}, models.Vec3{6, 6, 6}, 1e-12, 1e-9, models.DistributionLog, Offset(rng))
	require.NoError(t, err)

	assert.InEpsilon(t, 1e-12, f.Min(), 1e-9)
	assert.InEpsilon(t, 1e-9, f.Max(), 1e-9)
	// log-uniform fields have their mean well below the arithmetic midpoint
	assert.Less(t, f.Mean(), 0.5e-9)
}

func TestField_Errors(t *testing.T) {
	s := newTestSynth(t, BasisPerlin)
	off := models.Vec3{1.3, 2.7, 0.4}

	_, err := s.Field([3]int{8, 8, 1}, models.Vec3{1, 1, 1}, 5, 5, models.DistributionLinear, off)
	assert.ErrorIs(t, err, ErrDegenerateRange)

	_, err = s.Field([3]int{8, 8, 1}, models.Vec3{1, 1, 1}, -1, 5, models.DistributionLog, off)
	assert.ErrorIs(t, err, ErrNonPositiveLog)

	// a single cell has nothing to rescale against
	_, err = s.Field([3]int{1, 1, 1}, models.Vec3{1, 1, 1}, 0, 1, models.DistributionLinear, off)
	assert.ErrorIs(t, err, ErrFlatField)

	_, err = s.Field([3]int{0, 8, 1}, models.Vec3{1, 1, 1}, 0, 1, models.DistributionLinear, off)
	assert.Error(t, err)
}

func TestSynthesize_IndependentRealizations(t *testing.T) {
	s := newTestSynth(t, BasisPerlin)
	rng := rand.New(rand.NewSource(3))
	params := &models.Noise{Frequency: models.Frequency{XYZ: models.Vec3{5, 5, 5}}, Min: 0, Max: 1}

	a, err := s.Synthesize(rng, [3]int{12, 12, 1}, params, models.DistributionLinear)
	require.NoError(t, err)
	b, err := s.Synthesize(rng, [3]int{12, 12, 1}, params, models.DistributionLinear)
	require.NoError(t, err)

	assert.NotEqual(t, a.Values, b.Values)
}

func TestSynthesize_Reproducible(t *testing.T) {
	s := newTestSynth(t, BasisSimplex)
	params := &models.Noise{Frequency: models.Frequency{XYZ: models.Vec3{2, 3, 1}}, Min: 10, Max: 20}

	a, err := s.Synthesize(rand.New(rand.NewSource(99)), [3]int{10, 6, 3}, params, models.DistributionLinear)
	require.NoError(t, err)
	b, err := s.Synthesize(rand.New(rand.NewSource(99)), [3]int{10, 6, 3}, params, models.DistributionLinear)
	require.NoError(t, err)

	assert.Equal(t, a.Values, b.Values)
}

func TestSynthesize_UnresolvedFrequency(t *testing.T) {
	s := newTestSynth(t, BasisPerlin)
	params := &models.Noise{Frequency: models.Frequency{Range: &models.Range{Min: 1, Max: 2}}, Min: 0, Max: 1}

	_, err := s.Synthesize(rand.New(rand.NewSource(1)), [3]int{4, 4, 1}, params, models.DistributionLinear)
	assert.Error(t, err)
}

func TestOffset_ScaledDraws(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	ref := rand.New(rand.NewSource(5))

	off := Offset(rng)
	for i := range off {
		assert.Equal(t, ref.Float64()*4242, off[i])
	}
}

func TestRescale(t *testing.T) {
	values := []float64{-0.5, 0, 0.25, 0.5}
	require.NoError(t, Rescale(values, 100, 200))
	assert.InDeltaSlice(t, []float64{100, 150, 175, 200}, values, 1e-9)

	assert.ErrorIs(t, Rescale([]float64{1, 1, 1}, 0, 1), ErrFlatField)
	assert.ErrorIs(t, Rescale([]float64{1, 2}, 3, 3), ErrDegenerateRange)
}

func TestPressureFromGradient(t *testing.T) {
	grad := models.NewField([3]int{2, 3, 1})
	// x=0 column has gradient 1, x=1 column gradient 2
	for j := 0; j < 3; j++ {
		grad.Set(0, j, 0, 1)
		grad.Set(1, j, 0, 2)
	}
	res := models.Vec3{5, 10, 5}

	p := PressureFromGradient(grad, res)

	// the x axis is reversed, so the gradient-2 column lands at x=0
	assert.Equal(t, 101325.0, p.At(0, 0, 0))
	assert.Equal(t, 101325.0+2*10*1000, p.At(0, 1, 0))
	assert.Equal(t, 101325.0+4*10*1000, p.At(0, 2, 0))
	assert.Equal(t, 101325.0+1*10*1000, p.At(1, 1, 0))
	assert.Equal(t, 101325.0+2*10*1000, p.At(1, 2, 0))
	assert.False(t, math.IsNaN(p.Mean()))
}
