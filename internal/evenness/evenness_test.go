package evenness

import (
	"errors"
	"math/rand"
	"testing"

	"gobiodiv/domain/community"
	"gobiodiv/domain/core"
	apperrors "gobiodiv/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIEKnownValues(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		pie  float64
		ens  float64
	}{
		{"single species", []float64{10, 0, 0}, 0, 1},
		{"two even", []float64{0, 5, 5}, 0.5, 2},
		{"pooled group", []float64{10, 5, 5}, 0.625, 1 / 0.375},
		{"four even", []float64{3, 3, 3, 3}, 0.75, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pie, err := Default.PIE(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.pie, pie.V, 1e-12)

			ens, err := Default.ENSPIE(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.ens, ens.V, 1e-12)
		})
	}
}

func TestPIEUniformK(t *testing.T) {
	for k := 1; k <= 50; k++ {
		x := make([]float64, k)
		for i := range x {
			x[i] = 7
		}
		pie, err := Default.PIE(x)
		require.NoError(t, err)
		assert.InDelta(t, 1-1/float64(k), pie.V, 1e-12)

		ens, err := Default.ENSPIE(x)
		require.NoError(t, err)
		assert.InDelta(t, float64(k), ens.V, 1e-9)
	}
}

func TestPIEBoundsRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 500; trial++ {
		x := make([]float64, 1+rng.Intn(12))
		nonzero := 0
		for i := range x {
			if rng.Float64() < 0.6 {
				x[i] = float64(rng.Intn(40))
			}
			if x[i] > 0 {
				nonzero++
			}
		}
		pie, err := Default.PIE(x)
		require.NoError(t, err)
		if nonzero == 0 {
			assert.False(t, pie.Valid)
			continue
		}
		require.True(t, pie.Valid)
		assert.GreaterOrEqual(t, pie.V, 0.0)
		assert.Less(t, pie.V, 1.0)
		assert.Equal(t, nonzero == 1, pie.V == 0, "PIE is zero exactly when one species is present: %v", x)
	}
}

func TestZeroTotalIsMissing(t *testing.T) {
	pie, err := Default.PIE([]float64{0, 0})
	require.NoError(t, err)
	assert.False(t, pie.Valid)

	ens, err := Default.ENSPIE([]float64{0, 0})
	require.NoError(t, err)
	assert.False(t, ens.Valid)
}

func TestNegativeFailsWithoutPartialResult(t *testing.T) {
	out, err := Default.PIERows([][]float64{{1, 2}, {3, 4}, {5, -1}})
	assert.Nil(t, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNegativeAbundance))
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))

	_, err = Default.ENSPIE([]float64{-1})
	assert.Error(t, err)
}

func TestUnbiasedCorrection(t *testing.T) {
	c := NewCalculator(Options{Unbiased: true})
	pie, err := c.PIE([]float64{2, 2})
	require.NoError(t, err)
	// 4/3 * (1 - 0.5)
	assert.InDelta(t, 2.0/3.0, pie.V, 1e-12)

	single, err := c.PIE([]float64{1})
	require.NoError(t, err)
	assert.False(t, single.Valid)
}

func TestMatrixRows(t *testing.T) {
	m, err := community.NewMatrix([][]float64{{10, 0, 0}, {0, 5, 5}, {0, 0, 0}}, nil, nil)
	require.NoError(t, err)

	pie, ens := Default.Matrix(m)
	assert.InDelta(t, 0.0, pie[0].V, 1e-12)
	assert.InDelta(t, 0.5, pie[1].V, 1e-12)
	assert.False(t, pie[2].Valid)
	assert.InDelta(t, 2.0, ens[1].V, 1e-12)
	assert.False(t, ens[2].Valid)
}
