// Package extrema grows one region of interest around every nonzero voxel
// ("extremum") of a volume.
package extrema

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"wbcore/internal/models"
	"wbcore/pkg/logging"
	"wbcore/pkg/progress"
	"wbcore/pkg/stencil"
)

// AllSubvolumes searches every map for seeds
const AllSubvolumes = -1

// Options controls Generate
type Options struct {
	// Sigma > 0 produces normalized Gaussian weights instead of flat ROIs
	Sigma float64

	// ROI restricts seeds and region voxels to positive ROI values (map 0)
	ROI *models.Volume

	Overlap Overlap

	// Subvolume restricts the seed search to one map, or AllSubvolumes
	Subvolume int

	// Progress receives one step per seed
	Progress progress.Callback
}

// Seed is a nonzero voxel that receives its own output map
type Seed struct {
	Map       int
	Component int
	IJK       [3]int
	Value     float64
}

type member struct {
	idx  int
	dist float64
}

// FindSeeds lists every nonzero voxel inside the ROI, scanning maps, then
// components, then k, j, i. That order is also the order in which overlap
// contests are decided.
func FindSeeds(in *models.Volume, roi *models.Volume, subvolume int) []Seed {
	var mask []float64
	if roi != nil {
		mask = roi.Frame(0, 0)
	}
	dims := in.Dimensions()
	first, last := 0, dims[3]-1
	if subvolume != AllSubvolumes {
		first, last = subvolume, subvolume
	}

	var seeds []Seed
	for m := first; m <= last; m++ {
		for c := 0; c < dims[4]; c++ {
			frame := in.Frame(m, c)
			for k := 0; k < dims[2]; k++ {
				for j := 0; j < dims[1]; j++ {
					for i := 0; i < dims[0]; i++ {
						idx := in.VoxelIndex(i, j, k)
						if frame[idx] == 0 || (mask != nil && !(mask[idx] > 0)) {
							continue
						}
						seeds = append(seeds, Seed{Map: m, Component: c, IJK: [3]int{i, j, k}, Value: frame[idx]})
					}
				}
			}
		}
	}
	return seeds
}

// Generate builds one output map per seed, holding the voxels within limit
// millimetres of the seed. Overlapping regions are resolved by opts.Overlap.
// Flat regions hold 1; Gaussian regions hold exp(-d²/2σ²) normalized to sum
// to 1 over the voxels the region kept. With no seeds the output has no maps.
func Generate(ctx context.Context, in *models.Volume, limit float64, opts Options) (*models.Volume, error) {
	log := logging.Component(ctx, "extrema-to-roi")

	if in == nil {
		return nil, models.NoInputf("no volume supplied")
	}
	if opts.ROI != nil && !in.MatchesVolumeSpace(opts.ROI) {
		return nil, models.Preconditionf("ROI volume does not match the input volume's grid")
	}
	dims := in.Dimensions()
	if opts.Subvolume < AllSubvolumes || opts.Subvolume >= dims[3] {
		return nil, models.IndexRangef("subvolume %d is invalid for a volume with %d maps", opts.Subvolume, dims[3])
	}
	st, err := stencil.ForVolume(in, limit)
	if err != nil {
		return nil, err
	}

	seeds := FindSeeds(in, opts.ROI, opts.Subvolume)
	out := models.NewVolume([]int{dims[0], dims[1], dims[2], len(seeds)}, in.Sform, 1, models.VolumeAnatomy)
	if len(seeds) == 0 {
		log.Warn("no nonzero voxels found, output has no maps")
		return out, nil
	}
	log.Debugf("found %d seeds, stencil has %d offsets", len(seeds), st.Len())

	var mask []float64
	if opts.ROI != nil {
		mask = opts.ROI.Frame(0, 0)
	}
	pol := newPolicy(opts.Overlap, in.FrameSize())
	tracker := progress.NewTracker(opts.Progress, len(seeds))

	regions := make([][]member, len(seeds))
	for s, seed := range seeds {
		for _, off := range st.Offsets {
			i, j, k := seed.IJK[0]+off.DI, seed.IJK[1]+off.DJ, seed.IJK[2]+off.DK
			if !in.InBounds(i, j, k) {
				continue
			}
			idx := in.VoxelIndex(i, j, k)
			if mask != nil && !(mask[idx] > 0) {
				continue
			}
			if pol.claim(idx, off.Distance, s) {
				regions[s] = append(regions[s], member{idx: idx, dist: off.Distance})
			}
		}
		tracker.Step(1, "")
	}

	for s, seed := range seeds {
		name := fmt.Sprintf("extremum %d, %d, %d", seed.IJK[0], seed.IJK[1], seed.IJK[2])
		if dims[3] > 1 {
			name += fmt.Sprintf(" of map %d", seed.Map+1)
		}
		out.SetMapName(s, name)

		var kept []member
		for _, mem := range regions[s] {
			if pol.owns(mem.idx, s) {
				kept = append(kept, mem)
			}
		}
		frame := out.Frame(s, 0)
		if opts.Sigma > 0 {
			weights := make([]float64, len(kept))
			for n, mem := range kept {
				weights[n] = math.Exp(-mem.dist * mem.dist / (2 * opts.Sigma * opts.Sigma))
			}
			if total := floats.Sum(weights); total > 0 {
				floats.Scale(1/total, weights)
			}
			for n, mem := range kept {
				frame[mem.idx] = weights[n]
			}
		} else {
			for _, mem := range kept {
				frame[mem.idx] = 1
			}
		}
	}
	return out, nil
}
