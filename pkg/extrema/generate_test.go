package extrema

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"wbcore/internal/models"
	"wbcore/pkg/logging"
)

// lineVolume is an n x 1 x 1 volume with nonzero values at the given i
func lineVolume(n int, seeds ...int) *models.Volume {
	v := models.NewVolume([]int{n, 1, 1}, models.IdentitySform(), 1, models.VolumeAnatomy)
	for _, i := range seeds {
		v.SetValue(1, i, 0, 0, 0, 0)
	}
	return v
}

func TestOverlapPolicies(t *testing.T) {
	ctx := context.Background()
	in := lineVolume(7, 1, 4)

	allow, err := Generate(ctx, in, 2, Options{Overlap: Allow, Subvolume: AllSubvolumes})
	require.NoError(t, err)
	require.Equal(t, 2, allow.NumberOfMaps())
	for _, i := range []int{2, 3} {
		assert.Equal(t, 1.0, allow.Value(i, 0, 0, 0, 0))
		assert.Equal(t, 1.0, allow.Value(i, 0, 0, 1, 0))
	}
	assert.Equal(t, []float64{1, 1, 1, 1, 0, 0, 0}, allow.Frame(0, 0))
	assert.Equal(t, []float64{0, 0, 1, 1, 1, 1, 1}, allow.Frame(1, 0))

	exclude, err := Generate(ctx, in, 2, Options{Overlap: Exclude, Subvolume: AllSubvolumes})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 0, 0, 0, 0, 0}, exclude.Frame(0, 0))
	assert.Equal(t, []float64{0, 0, 0, 0, 1, 1, 1}, exclude.Frame(1, 0))

	closest, err := Generate(ctx, in, 2, Options{Overlap: Closest, Subvolume: AllSubvolumes})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 0, 0, 0, 0}, closest.Frame(0, 0))
	assert.Equal(t, []float64{0, 0, 0, 1, 1, 1, 1}, closest.Frame(1, 0))
}

func TestClosestTieKeepsFirstSeed(t *testing.T) {
	in := lineVolume(7, 1, 5)
	out, err := Generate(context.Background(), in, 2, Options{Overlap: Closest, Subvolume: AllSubvolumes})
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.Value(3, 0, 0, 0, 0))
	assert.Equal(t, 0.0, out.Value(3, 0, 0, 1, 0))
}

func TestExcludeIsPermanent(t *testing.T) {
	// voxel 3 is covered by all three seeds; after the second seed revokes
	// it the third may not claim it
	in := lineVolume(7, 2, 4, 3)
	out, err := Generate(context.Background(), in, 1, Options{Overlap: Exclude, Subvolume: AllSubvolumes})
	require.NoError(t, err)
	require.Equal(t, 3, out.NumberOfMaps())
	for m := 0; m < 3; m++ {
		assert.Equal(t, 0.0, out.Value(3, 0, 0, m, 0), "map %d", m)
	}
}

func TestGaussianNormalization(t *testing.T) {
	in := models.NewVolume([]int{9, 9, 5}, [3][4]float64{
		{1.5, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0.3, 2, 0},
	}, 1, models.VolumeAnatomy)
	in.SetValue(3, 2, 2, 2, 0, 0)
	in.SetValue(-1, 5, 4, 2, 0, 0)
	in.SetValue(2, 6, 6, 1, 0, 0)

	for _, overlap := range []Overlap{Allow, Closest, Exclude} {
		out, err := Generate(context.Background(), in, 4, Options{Sigma: 1.5, Overlap: overlap, Subvolume: AllSubvolumes})
		require.NoError(t, err)
		require.Equal(t, 3, out.NumberOfMaps())
		for m := 0; m < 3; m++ {
			assert.InDelta(t, 1.0, floats.Sum(out.Frame(m, 0)), 1e-9, "%s map %d", overlap, m)
		}
	}
}

func TestROIRestrictsSeedsAndRegions(t *testing.T) {
	in := lineVolume(6, 1, 4)
	roi := models.NewVolume([]int{6, 1, 1}, models.IdentitySform(), 1, models.VolumeAnatomy)
	copy(roi.Frame(0, 0), []float64{1, 1, 0, 0, 0, 0})

	out, err := Generate(context.Background(), in, 2, Options{ROI: roi, Subvolume: AllSubvolumes})
	require.NoError(t, err)
	require.Equal(t, 1, out.NumberOfMaps())
	assert.Equal(t, []float64{1, 1, 0, 0, 0, 0}, out.Frame(0, 0))

	wrong := models.NewVolume([]int{5, 1, 1}, models.IdentitySform(), 1, models.VolumeAnatomy)
	_, err = Generate(context.Background(), in, 2, Options{ROI: wrong, Subvolume: AllSubvolumes})
	assert.True(t, errors.Is(err, models.ErrPrecondition))
}

func TestNoSeedsWarns(t *testing.T) {
	logger, hook := test.NewNullLogger()
	ctx := logging.WithLogger(context.Background(), logger)

	out, err := Generate(ctx, lineVolume(4), 1, Options{Subvolume: AllSubvolumes})
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumberOfMaps())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSubvolumeSelectsSeedMap(t *testing.T) {
	in := models.NewVolume([]int{5, 1, 1, 2}, models.IdentitySform(), 1, models.VolumeAnatomy)
	in.SetValue(1, 0, 0, 0, 0, 0)
	in.SetValue(1, 3, 0, 0, 1, 0)
	in.SetValue(1, 4, 0, 0, 1, 0)

	out, err := Generate(context.Background(), in, 0, Options{Subvolume: 1})
	require.NoError(t, err)
	require.Equal(t, 2, out.NumberOfMaps())
	assert.Equal(t, "extremum 3, 0, 0 of map 2", out.MapName(0))
	assert.Equal(t, []float64{0, 0, 0, 1, 0}, out.Frame(0, 0))

	all, err := Generate(context.Background(), in, 0, Options{Subvolume: AllSubvolumes})
	require.NoError(t, err)
	assert.Equal(t, 3, all.NumberOfMaps())

	_, err = Generate(context.Background(), in, 0, Options{Subvolume: 2})
	assert.True(t, errors.Is(err, models.ErrIndexRange))
}

func TestFindSeedsOrder(t *testing.T) {
	in := models.NewVolume([]int{2, 2, 2}, models.IdentitySform(), 1, models.VolumeAnatomy)
	in.SetValue(1, 1, 0, 1, 0, 0)
	in.SetValue(1, 0, 1, 0, 0, 0)
	in.SetValue(1, 1, 0, 0, 0, 0)

	seeds := FindSeeds(in, nil, AllSubvolumes)
	require.Len(t, seeds, 3)
	assert.Equal(t, [3]int{1, 0, 0}, seeds[0].IJK)
	assert.Equal(t, [3]int{0, 1, 0}, seeds[1].IJK)
	assert.Equal(t, [3]int{1, 0, 1}, seeds[2].IJK)
}

func TestParseOverlap(t *testing.T) {
	for in, want := range map[string]Overlap{"allow": Allow, "CLOSEST": Closest, " Exclude ": Exclude} {
		got, err := ParseOverlap(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, want, mustParse(t, got.String()))
	}
	_, err := ParseOverlap("nearest")
	assert.Error(t, err)
}

func mustParse(t *testing.T, s string) Overlap {
	o, err := ParseOverlap(s)
	require.NoError(t, err)
	return o
}
