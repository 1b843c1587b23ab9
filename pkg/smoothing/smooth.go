// Package smoothing implements ROI-restricted Gaussian volume smoothing and
// the parcel-constrained smoother built on it.
package smoothing

import (
	"context"
	"math"
	"strconv"

	"wbcore/internal/models"
	"wbcore/pkg/logging"
	"wbcore/pkg/stencil"
)

// KernelCutoff is the kernel radius in units of sigma
const KernelCutoff = 3.0

// kernel is a stencil plus the Gaussian weight of each offset
type kernel struct {
	st      *stencil.Stencil
	weights []float64
}

func newKernel(v *models.Volume, sigma float64) (*kernel, error) {
	if !(sigma > 0) {
		return nil, models.Preconditionf("smoothing sigma must be positive, got %v", sigma)
	}
	st, err := stencil.ForVolume(v, KernelCutoff*sigma)
	if err != nil {
		return nil, err
	}
	k := &kernel{st: st, weights: make([]float64, st.Len())}
	for i, o := range st.Offsets {
		k.weights[i] = math.Exp(-o.Distance * o.Distance / (2 * sigma * sigma))
	}
	return k, nil
}

// smoothFrame smooths one spatial frame of size dims into out. Voxels with a
// non-positive roi value are neither read nor written (they are set to 0).
// A nil roi includes every voxel. With fixZeros, zero inputs carry no weight.
func (k *kernel) smoothFrame(dims [3]int, in, roi, out []float64, fixZeros bool) {
	nx, ny, nz := dims[0], dims[1], dims[2]
	inROI := func(idx int) bool { return roi == nil || roi[idx] > 0 }

	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				idx := x + nx*(y+ny*z)
				if !inROI(idx) {
					out[idx] = 0
					continue
				}
				sum, weightSum := 0.0, 0.0
				for o, off := range k.st.Offsets {
					xx, yy, zz := x+off.DI, y+off.DJ, z+off.DK
					if xx < 0 || yy < 0 || zz < 0 || xx >= nx || yy >= ny || zz >= nz {
						continue
					}
					nidx := xx + nx*(yy+ny*zz)
					if !inROI(nidx) {
						continue
					}
					value := in[nidx]
					if fixZeros && value == 0 {
						continue
					}
					sum += k.weights[o] * value
					weightSum += k.weights[o]
				}
				if weightSum > 0 {
					out[idx] = sum / weightSum
				} else {
					out[idx] = 0
				}
			}
		}
	}
}

// AllSubvolumes selects every map of the input
const AllSubvolumes = -1

// Smooth applies a Gaussian kernel of the given sigma (mm) to a volume.
//
// When roi is given it must share the input's grid; only voxels with a
// positive roi value (map 0) contribute and receive output. fixZeros treats
// zero input values as missing data. subvolume selects a single map, or
// AllSubvolumes for every map; components are always all processed.
func Smooth(ctx context.Context, in *models.Volume, sigma float64, roi *models.Volume, fixZeros bool, subvolume int) (*models.Volume, error) {
	log := logging.Component(ctx, "smoothing")

	if in == nil {
		return nil, models.NoInputf("no volume to smooth")
	}
	if roi != nil && !in.MatchesVolumeSpace(roi) {
		return nil, models.Preconditionf("ROI volume does not match the input volume's grid")
	}
	dims := in.Dimensions()
	if subvolume < AllSubvolumes || subvolume >= dims[3] {
		return nil, models.IndexRangef("subvolume %d is invalid for a volume with %d maps", subvolume, dims[3])
	}
	k, err := newKernel(in, sigma)
	if err != nil {
		return nil, err
	}
	log.Debugf("smoothing with %d kernel offsets", k.st.Len())

	var mask []float64
	if roi != nil {
		mask = roi.Frame(0, 0)
	}

	maps := selectedMaps(dims[3], subvolume)
	out := newOutput(in, subvolume)
	spatial := [3]int{dims[0], dims[1], dims[2]}
	for outMap, m := range maps {
		out.SetMapName(outMap, in.MapName(m)+", smoothed "+formatSigma(sigma))
		for c := 0; c < dims[4]; c++ {
			k.smoothFrame(spatial, in.Frame(m, c), mask, out.Frame(outMap, c), fixZeros)
		}
	}
	return out, nil
}

// selectedMaps lists the input maps an operation processes
func selectedMaps(numMaps, subvolume int) []int {
	if subvolume != AllSubvolumes {
		return []int{subvolume}
	}
	maps := make([]int, numMaps)
	for m := range maps {
		maps[m] = m
	}
	return maps
}

// newOutput allocates the output of a smoothing pass: the input's full shape,
// or spatial dimensions with the input's components for a single subvolume
func newOutput(in *models.Volume, subvolume int) *models.Volume {
	dims := in.Dimensions()
	outType := in.Type
	if outType == models.VolumeLabel {
		outType = models.VolumeAnatomy
	}
	if subvolume == AllSubvolumes {
		return models.NewVolume(dims[:4], in.Sform, dims[4], outType)
	}
	return models.NewVolume(dims[:3], in.Sform, dims[4], outType)
}

func formatSigma(sigma float64) string {
	return strconv.FormatFloat(sigma, 'g', -1, 64)
}
