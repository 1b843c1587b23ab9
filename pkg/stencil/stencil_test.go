package stencil

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"wbcore/internal/models"
)

func TestUnitGridStencil(t *testing.T) {
	s, err := New(r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1}, 1)
	require.NoError(t, err)

	// centre plus the six face neighbours
	assert.Equal(t, 7, s.Len())
	assert.Equal(t, [3]int{1, 1, 1}, s.Range)
	for _, o := range s.Offsets {
		assert.LessOrEqual(t, o.Distance, 1.0)
	}
}

func TestRadiusTwoCount(t *testing.T) {
	s, err := New(r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1}, 2)
	require.NoError(t, err)

	count := 0
	for k := -2; k <= 2; k++ {
		for j := -2; j <= 2; j++ {
			for i := -2; i <= 2; i++ {
				if i*i+j*j+k*k <= 4 {
					count++
				}
			}
		}
	}
	assert.Equal(t, count, s.Len())
}

func TestAnisotropicRange(t *testing.T) {
	s, err := New(r3.Vec{X: 2}, r3.Vec{Y: 1}, r3.Vec{Z: 3}, 3)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 3, 1}, s.Range)

	for _, o := range s.Offsets {
		want := math.Sqrt(float64(4*o.DI*o.DI + o.DJ*o.DJ + 9*o.DK*o.DK))
		assert.InDelta(t, want, o.Distance, 1e-12)
		assert.LessOrEqual(t, o.Distance, 3.0)
	}
}

func TestObliqueGridEnclosesSphere(t *testing.T) {
	// sheared axes: stepping along j also moves in x
	ivec := r3.Vec{X: 1}
	jvec := r3.Vec{X: 0.9, Y: 0.5}
	kvec := r3.Vec{Z: 1}
	limit := 2.0

	s, err := New(ivec, jvec, kvec, limit)
	require.NoError(t, err)

	// brute force over a generous box must not find anything the stencil missed
	found := map[[3]int]bool{}
	for _, o := range s.Offsets {
		found[[3]int{o.DI, o.DJ, o.DK}] = true
	}
	for dk := -10; dk <= 10; dk++ {
		for dj := -10; dj <= 10; dj++ {
			for di := -10; di <= 10; di++ {
				p := r3.Add(r3.Add(r3.Scale(float64(di), ivec), r3.Scale(float64(dj), jvec)), r3.Scale(float64(dk), kvec))
				if r3.Norm(p) <= limit {
					assert.True(t, found[[3]int{di, dj, dk}], "missing offset %d %d %d", di, dj, dk)
				}
			}
		}
	}
}

func TestForVolumeUsesSform(t *testing.T) {
	sform := models.IdentitySform()
	sform[0][0] = 2
	v := models.NewVolume([]int{5, 5, 5}, sform, 1, models.VolumeAnatomy)

	s, err := ForVolume(v, 2)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 2, 2}, s.Range)
}

func TestInvalidStencil(t *testing.T) {
	_, err := New(r3.Vec{X: 1}, r3.Vec{X: 1}, r3.Vec{Z: 1}, 1)
	assert.True(t, errors.Is(err, models.ErrPrecondition))

	_, err = New(r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1}, -1)
	assert.True(t, errors.Is(err, models.ErrPrecondition))
}
