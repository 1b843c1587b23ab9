package smoothing

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbcore/internal/models"
)

// rowLabels builds an nx x ny x 1 label volume whose row j carries key
// keys[j]; keys 1 and 2 are registered, 0 is unassigned
func rowLabels(nx int, keys []int) *models.Volume {
	v := models.NewVolume([]int{nx, len(keys), 1}, models.IdentitySform(), 1, models.VolumeLabel)
	v.MapLabelTable(0).Add("one", 1)
	v.MapLabelTable(0).Add("two", 2)
	for j, key := range keys {
		for i := 0; i < nx; i++ {
			v.SetValue(float64(key), i, j, 0, 0, 0)
		}
	}
	return v
}

func TestParcelSmoothScenario(t *testing.T) {
	ctx := context.Background()
	labels := rowLabels(3, []int{0, 1, 2})

	run := func(twoValue float64) *models.Volume {
		data := models.NewVolume([]int{3, 3, 1}, models.IdentitySform(), 1, models.VolumeAnatomy)
		data.SetMapName(0, "data")
		for i := 0; i < 3; i++ {
			data.SetValue(9, i, 0, 0, 0, 0)
			data.SetValue(float64(i+1), i, 1, 0, 0, 0)
			data.SetValue(twoValue*float64(i+1), i, 2, 0, 0, 0)
		}
		out, err := ParcelSmooth(ctx, data, labels, 1.0, ParcelOptions{Subvolume: AllSubvolumes})
		require.NoError(t, err)
		return out
	}

	a := run(100)
	b := run(-50)

	for i := 0; i < 3; i++ {
		// unassigned voxels are never visited
		assert.Equal(t, 0.0, a.Value(i, 0, 0, 0, 0))
		// key-1 voxels do not depend on key-2 values
		assert.Equal(t, a.Value(i, 1, 0, 0, 0), b.Value(i, 1, 0, 0, 0))
	}

	// smoothing within the key-1 row pulls the ends toward the middle
	assert.Greater(t, a.Value(0, 1, 0, 0, 0), 1.0)
	assert.Less(t, a.Value(2, 1, 0, 0, 0), 3.0)
	assert.InDelta(t, 2.0, a.Value(1, 1, 0, 0, 0), 1e-12)

	assert.Equal(t, "data, parcel smoothed 1", a.MapName(0))
}

func TestParcelSmoothUniformParcelUnchanged(t *testing.T) {
	labels := models.NewVolume([]int{6, 5, 4}, models.IdentitySform(), 1, models.VolumeLabel)
	labels.MapLabelTable(0).Add("inside", 3)
	labels.MapLabelTable(0).Add("outside", 8)
	data := models.NewVolume([]int{6, 5, 4}, models.IdentitySform(), 1, models.VolumeAnatomy)
	for k := 0; k < 4; k++ {
		for j := 0; j < 5; j++ {
			for i := 0; i < 6; i++ {
				if i >= 1 && i <= 3 && j >= 1 && j <= 3 {
					labels.SetValue(3, i, j, k, 0, 0)
					data.SetValue(7.5, i, j, k, 0, 0)
				} else {
					labels.SetValue(8, i, j, k, 0, 0)
					data.SetValue(float64(i*j+k), i, j, k, 0, 0)
				}
			}
		}
	}

	for _, sigma := range []float64{0.5, 1, 2.5} {
		out, err := ParcelSmooth(context.Background(), data, labels, sigma, ParcelOptions{Subvolume: AllSubvolumes})
		require.NoError(t, err)
		for k := 0; k < 4; k++ {
			for j := 1; j <= 3; j++ {
				for i := 1; i <= 3; i++ {
					assert.InDelta(t, 7.5, out.Value(i, j, k, 0, 0), 1e-12)
				}
			}
		}
	}
}

func TestParcelSmoothFixZeros(t *testing.T) {
	labels := rowLabels(5, []int{1})
	data := models.NewVolume([]int{5, 1, 1}, models.IdentitySform(), 1, models.VolumeAnatomy)
	for i := 0; i < 5; i++ {
		data.SetValue(5, i, 0, 0, 0, 0)
	}
	data.SetValue(0, 2, 0, 0, 0, 0)

	plain, err := ParcelSmooth(context.Background(), data, labels, 1, ParcelOptions{Subvolume: AllSubvolumes})
	require.NoError(t, err)
	assert.Less(t, plain.Value(2, 0, 0, 0, 0), 5.0)

	fixed, err := ParcelSmooth(context.Background(), data, labels, 1, ParcelOptions{Subvolume: AllSubvolumes, FixZeros: true})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.InDelta(t, 5.0, fixed.Value(i, 0, 0, 0, 0), 1e-12)
	}
}

func TestParcelSmoothSubvolume(t *testing.T) {
	labels := rowLabels(3, []int{1, 2})
	data := models.NewVolume([]int{3, 2, 1, 3}, models.IdentitySform(), 2, models.VolumeFunctional)
	data.MapNames = []string{"t0", "t1", "t2"}
	for i := 0; i < 3; i++ {
		data.SetValue(4, i, 0, 0, 1, 0)
		data.SetValue(6, i, 0, 0, 1, 1)
	}

	out, err := ParcelSmooth(context.Background(), data, labels, 2, ParcelOptions{Subvolume: 1})
	require.NoError(t, err)
	assert.Equal(t, [5]int{3, 2, 1, 1, 2}, out.Dimensions())
	assert.Equal(t, "t1, parcel smoothed 2", out.MapName(0))
	assert.InDelta(t, 4.0, out.Value(1, 0, 0, 0, 0), 1e-12)
	assert.InDelta(t, 6.0, out.Value(1, 0, 0, 0, 1), 1e-12)

	all, err := ParcelSmooth(context.Background(), data, labels, 2, ParcelOptions{Subvolume: AllSubvolumes})
	require.NoError(t, err)
	assert.Equal(t, [5]int{3, 2, 1, 3, 2}, all.Dimensions())
	assert.Equal(t, "t2, parcel smoothed 2", all.MapName(2))
}

func TestParcelSmoothWorkersAgree(t *testing.T) {
	labels := models.NewVolume([]int{8, 8, 3}, models.IdentitySform(), 1, models.VolumeLabel)
	data := models.NewVolume([]int{8, 8, 3}, models.IdentitySform(), 1, models.VolumeAnatomy)
	for key := 1; key <= 4; key++ {
		labels.MapLabelTable(0).Add("p", key)
	}
	for n := range labels.Data {
		labels.Data[n] = float64(n%5) // key 0 unassigned
		data.Data[n] = float64((n * 7919) % 101)
	}

	var calls int32
	var started string
	serial, err := ParcelSmooth(context.Background(), data, labels, 1.5, ParcelOptions{Subvolume: AllSubvolumes, Workers: 1})
	require.NoError(t, err)
	parallel, err := ParcelSmooth(context.Background(), data, labels, 1.5, ParcelOptions{
		Subvolume: AllSubvolumes,
		Workers:   4,
		Progress: func(_, total int, message string) {
			if total == 0 {
				started = message
				return
			}
			atomic.AddInt32(&calls, 1)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, serial.Data, parallel.Data)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, "smoothing 4 parcels with 4 workers", started)
	for n := range labels.Data {
		if n%5 == 0 {
			assert.Equal(t, 0.0, parallel.Data[n])
		}
	}
}

func TestParcelSmoothUnregisteredKeySkipped(t *testing.T) {
	labels := rowLabels(3, []int{1, 2})
	labels.SetValue(5, 0, 0, 0, 0, 0)
	data := models.NewVolume([]int{3, 2, 1}, models.IdentitySform(), 1, models.VolumeAnatomy)
	for n := range data.Data {
		data.Data[n] = 3
	}

	out, err := ParcelSmooth(context.Background(), data, labels, 1, ParcelOptions{Subvolume: AllSubvolumes})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Value(0, 0, 0, 0, 0))
	assert.InDelta(t, 3.0, out.Value(1, 0, 0, 0, 0), 1e-12)
}

func TestParcelSmoothPreconditions(t *testing.T) {
	ctx := context.Background()
	labels := rowLabels(3, []int{1, 2})
	data := models.NewVolume([]int{3, 2, 1}, models.IdentitySform(), 1, models.VolumeAnatomy)

	_, err := ParcelSmooth(ctx, data, data, 1, ParcelOptions{Subvolume: AllSubvolumes})
	assert.True(t, errors.Is(err, models.ErrPrecondition))

	other := models.NewVolume([]int{3, 3, 1}, models.IdentitySform(), 1, models.VolumeAnatomy)
	_, err = ParcelSmooth(ctx, other, labels, 1, ParcelOptions{Subvolume: AllSubvolumes})
	assert.True(t, errors.Is(err, models.ErrPrecondition))

	_, err = ParcelSmooth(ctx, data, labels, 0, ParcelOptions{Subvolume: AllSubvolumes})
	assert.True(t, errors.Is(err, models.ErrPrecondition))

	_, err = ParcelSmooth(ctx, data, labels, 1, ParcelOptions{Subvolume: 1})
	assert.True(t, errors.Is(err, models.ErrIndexRange))

	_, err = ParcelSmooth(ctx, nil, labels, 1, ParcelOptions{Subvolume: AllSubvolumes})
	assert.True(t, errors.Is(err, models.ErrNoInput))
}

func TestSmoothUniformAndROI(t *testing.T) {
	ctx := context.Background()
	data := models.NewVolume([]int{4, 4, 4}, models.IdentitySform(), 1, models.VolumeAnatomy)
	for n := range data.Data {
		data.Data[n] = 2
	}

	out, err := Smooth(ctx, data, 1, nil, false, AllSubvolumes)
	require.NoError(t, err)
	for _, v := range out.Data {
		assert.InDelta(t, 2.0, v, 1e-12)
	}

	roi := models.NewVolume([]int{4, 4, 4}, models.IdentitySform(), 1, models.VolumeAnatomy)
	roi.SetValue(1, 1, 1, 1, 0, 0)
	roi.SetValue(1, 2, 1, 1, 0, 0)
	data.SetValue(10, 3, 1, 1, 0, 0) // outside the roi, must not leak in

	out, err = Smooth(ctx, data, 1, roi, false, 0)
	require.NoError(t, err)
	assert.Equal(t, [5]int{4, 4, 4, 1, 1}, out.Dimensions())
	assert.InDelta(t, 2.0, out.Value(2, 1, 1, 0, 0), 1e-12)
	assert.Equal(t, 0.0, out.Value(3, 1, 1, 0, 0))

	small := models.NewVolume([]int{4, 4, 3}, models.IdentitySform(), 1, models.VolumeAnatomy)
	_, err = Smooth(ctx, data, 1, small, false, AllSubvolumes)
	assert.True(t, errors.Is(err, models.ErrPrecondition))
	_, err = Smooth(ctx, data, -1, nil, false, AllSubvolumes)
	assert.True(t, errors.Is(err, models.ErrPrecondition))
}

func TestParcelBounds(t *testing.T) {
	p := &parcel{voxels: []int{3, 1, 4, 1, 5, 9, 2, 6, 5}}
	lo, hi := p.bounds()
	assert.Equal(t, [3]int{1, 1, 4}, lo)
	assert.Equal(t, [3]int{3, 6, 9}, hi)
}
