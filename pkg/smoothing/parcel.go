package smoothing

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"wbcore/internal/models"
	"wbcore/pkg/logging"
	"wbcore/pkg/progress"
)

// ParcelOptions controls ParcelSmooth
type ParcelOptions struct {
	// FixZeros treats zero input values as missing data
	FixZeros bool

	// Subvolume selects one map, or AllSubvolumes
	Subvolume int

	// Workers is the number of parcels smoothed concurrently; zero or less
	// uses every CPU
	Workers int

	// Progress receives a start message, then one step per parcel
	Progress progress.Callback
}

// parcel is the flattened (i, j, k) list of the voxels sharing one label key
type parcel struct {
	key    int
	voxels []int
}

// bounds returns the inclusive bounding box [min, max] of the parcel
func (p *parcel) bounds() (lo, hi [3]int) {
	lo = [3]int{p.voxels[0], p.voxels[1], p.voxels[2]}
	hi = lo
	for n := 0; n+2 < len(p.voxels); n += 3 {
		for a := 0; a < 3; a++ {
			if p.voxels[n+a] < lo[a] {
				lo[a] = p.voxels[n+a]
			}
			if p.voxels[n+a] > hi[a] {
				hi[a] = p.voxels[n+a]
			}
		}
	}
	return lo, hi
}

// collectParcels scans map 0 of a label volume and groups voxels by key,
// skipping the unassigned key and values that are not registered keys
func collectParcels(labelVolume *models.Volume) []*parcel {
	table := labelVolume.MapLabelTable(0)
	byKey := make(map[int]*parcel)
	for _, key := range table.Keys() {
		if key == table.UnassignedKey() {
			continue
		}
		byKey[key] = &parcel{key: key}
	}

	dims := labelVolume.Dimensions()
	frame := labelVolume.Frame(0, 0)
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				p, ok := byKey[models.RoundLabel(frame[labelVolume.VoxelIndex(i, j, k)])]
				if !ok {
					continue
				}
				p.voxels = append(p.voxels, i, j, k)
			}
		}
	}

	var out []*parcel
	for _, p := range byKey {
		if len(p.voxels) > 0 && len(p.voxels)%3 == 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].key < out[b].key })
	return out
}

// ParcelSmooth smooths a volume within each parcel of a label volume, so
// that no value is ever mixed across a parcel boundary.
//
// Parcels are taken from map 0 of labelVolume, one per registered label key
// other than the unassigned key. Each parcel's bounding box is cut out of the
// input, smoothed with the parcel as ROI, and scattered back. Voxels that
// belong to no parcel stay zero. With a subvolume selected the output holds
// only that map.
func ParcelSmooth(ctx context.Context, in, labelVolume *models.Volume, sigma float64, opts ParcelOptions) (*models.Volume, error) {
	log := logging.Component(ctx, "parcel-smoothing")

	if in == nil || labelVolume == nil {
		return nil, models.NoInputf("parcel smoothing needs a data volume and a label volume")
	}
	if labelVolume.Type != models.VolumeLabel {
		return nil, models.Preconditionf("parcel volume must be a label volume, got %s", labelVolume.Type)
	}
	if labelVolume.NumberOfMaps() < 1 {
		return nil, models.Preconditionf("parcel volume has no maps")
	}
	if !in.MatchesVolumeSpace(labelVolume) {
		return nil, models.Preconditionf("label volume does not match the data volume's grid")
	}
	dims := in.Dimensions()
	if opts.Subvolume < AllSubvolumes || opts.Subvolume >= dims[3] {
		return nil, models.IndexRangef("subvolume %d is invalid for a volume with %d maps", opts.Subvolume, dims[3])
	}
	k, err := newKernel(in, sigma)
	if err != nil {
		return nil, err
	}

	parcels := collectParcels(labelVolume)
	log.Debugf("smoothing %d parcels with %d kernel offsets", len(parcels), k.st.Len())

	maps := selectedMaps(dims[3], opts.Subvolume)
	out := newOutput(in, opts.Subvolume)
	for outMap, m := range maps {
		out.SetMapName(outMap, in.MapName(m)+", parcel smoothed "+formatSigma(sigma))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	tracker := progress.NewTracker(opts.Progress, len(parcels))
	tracker.Info(fmt.Sprintf("smoothing %d parcels with %d workers", len(parcels), workers))

	jobs := make(chan *parcel)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				smoothParcel(k, in, out, p, maps, opts.FixZeros)
				tracker.Step(1, fmt.Sprintf("parcel %d", p.key))
			}
		}()
	}
	for _, p := range parcels {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	return out, nil
}

// smoothParcel smooths one parcel. Parcels never share voxels, so concurrent
// calls write disjoint elements of out.
func smoothParcel(k *kernel, in, out *models.Volume, p *parcel, maps []int, fixZeros bool) {
	lo, hi := p.bounds()
	sub := [3]int{hi[0] - lo[0] + 1, hi[1] - lo[1] + 1, hi[2] - lo[2] + 1}
	subIndex := func(i, j, k int) int {
		return (i - lo[0]) + sub[0]*((j-lo[1])+sub[1]*(k-lo[2]))
	}

	// the sub-volume keeps the parent's voxel axes, only its origin moves
	subSform := in.Sform
	origin := in.IndexToSpace(float64(lo[0]), float64(lo[1]), float64(lo[2]))
	subSform[0][3], subSform[1][3], subSform[2][3] = origin.X, origin.Y, origin.Z
	components := in.NumberOfComponents()
	subVolume := models.NewVolume([]int{sub[0], sub[1], sub[2], len(maps)}, subSform, components, in.Type)
	roi := make([]float64, sub[0]*sub[1]*sub[2])
	for n := 0; n < len(p.voxels); n += 3 {
		roi[subIndex(p.voxels[n], p.voxels[n+1], p.voxels[n+2])] = 1
	}

	smoothed := make([]float64, len(roi))
	for outMap, m := range maps {
		for c := 0; c < components; c++ {
			subFrame := subVolume.Frame(outMap, c)
			for kk := lo[2]; kk <= hi[2]; kk++ {
				for jj := lo[1]; jj <= hi[1]; jj++ {
					for ii := lo[0]; ii <= hi[0]; ii++ {
						subFrame[subIndex(ii, jj, kk)] = in.Value(ii, jj, kk, m, c)
					}
				}
			}
			k.smoothFrame(sub, subFrame, roi, smoothed, fixZeros)
			for n := 0; n < len(p.voxels); n += 3 {
				i, j, kk := p.voxels[n], p.voxels[n+1], p.voxels[n+2]
				out.SetValue(smoothed[subIndex(i, j, kk)], i, j, kk, outMap, c)
			}
		}
	}
}
