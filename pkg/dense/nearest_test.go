package dense

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"wbcore/internal/models"
)

func TestVoxelLocator(t *testing.T) {
	labels := makeLabelVolume()
	labels.Sform = [3][4]float64{
		{2, 0, 0, 10},
		{0, 2, 0, 0},
		{0, 0, 2, 0},
	}
	surfaces := SurfaceInputs{Left: makeMetric(models.CortexLeft, 2, 1, 0)}
	m, err := Build(context.Background(), AlongColumn, nil, labels, surfaces, DefaultStructureTable())
	require.NoError(t, err)

	loc, err := NewVoxelLocator(m)
	require.NoError(t, err)

	for _, tc := range []struct {
		p    r3.Vec
		want int
		dist float64
	}{
		{r3.Vec{X: 13.9, Y: 0.2}, 2, math.Sqrt(0.05)},
		{r3.Vec{X: 10, Z: 2.5}, 3, 0.5},
		{r3.Vec{X: 12, Y: 2, Z: 3}, 4, 1},
	} {
		got, dist := loc.Nearest(tc.p)
		assert.Equal(t, tc.want, got, "%v", tc.p)
		assert.InDelta(t, tc.dist, dist, 1e-9)

		e, ok := m.Entry(got)
		require.True(t, ok)
		assert.False(t, e.IsSurface())
	}

	for _, tc := range []struct {
		p      r3.Vec
		inside bool
	}{
		{r3.Vec{X: 10}, true},
		{r3.Vec{X: 8.9}, false},
		{r3.Vec{X: 9.1}, true},
		{r3.Vec{X: 12, Y: -2, Z: 2}, false},
	} {
		inside, err := loc.Inside(tc.p)
		require.NoError(t, err)
		assert.Equal(t, tc.inside, inside, "%v", tc.p)
	}

	surfaceOnly, err := Build(context.Background(), AlongColumn, nil, nil, surfaces, nil)
	require.NoError(t, err)
	_, err = NewVoxelLocator(surfaceOnly)
	assert.True(t, errors.Is(err, models.ErrNoInput))
}
