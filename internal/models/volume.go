package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// VolumeType tells how the values of a volume are interpreted
type VolumeType int

const (
	// VolumeAnatomy holds continuous scalar data
	VolumeAnatomy VolumeType = iota

	// VolumeFunctional holds scalar series such as timeseries frames
	VolumeFunctional

	// VolumeLabel holds integer label keys stored as floats, with one label
	// table per map
	VolumeLabel
)

func (t VolumeType) String() string {
	switch t {
	case VolumeAnatomy:
		return "ANATOMY"
	case VolumeFunctional:
		return "FUNCTIONAL"
	case VolumeLabel:
		return "LABEL"
	}
	return fmt.Sprintf("VolumeType(%d)", int(t))
}

// VolumeTypeFromName parses the String form of a VolumeType
func VolumeTypeFromName(name string) (VolumeType, bool) {
	for _, t := range []VolumeType{VolumeAnatomy, VolumeFunctional, VolumeLabel} {
		if t.String() == name {
			return t, true
		}
	}
	return VolumeAnatomy, false
}

// Volume is a voxel grid with any number of maps, each map holding one or
// more value components per voxel.
type Volume struct {
	// Dims is [x, y, z, maps, components]
	Dims [5]int

	// Sform maps voxel indices (i, j, k, 1) to millimetre coordinates
	Sform [3][4]float64

	// Type selects scalar or label interpretation
	Type VolumeType

	// MapNames has one entry per map
	MapNames []string

	// LabelTables has one entry per map for label volumes, nil otherwise
	LabelTables []*LabelTable

	// Data is stored frame by frame, frame index = map*components + component,
	// and within a frame i varies fastest, then j, then k
	Data []float64
}

// IdentitySform returns an sform with unit voxels and no offset
func IdentitySform() [3][4]float64 {
	return [3][4]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
}

// NewVolume allocates a zero-filled volume. A components count below one is
// treated as one.
func NewVolume(dims []int, sform [3][4]float64, components int, volumeType VolumeType) *Volume {
	v := &Volume{}
	v.Reinitialize(dims, sform, components, volumeType)
	return v
}

// Reinitialize resets the volume to the given shape, discarding all data.
// dims holds at least x, y and z; a fourth entry is the map count (default 1).
func (v *Volume) Reinitialize(dims []int, sform [3][4]float64, components int, volumeType VolumeType) {
	if components < 1 {
		components = 1
	}
	var d [5]int
	d[0], d[1], d[2], d[3] = 1, 1, 1, 1
	for i := 0; i < len(dims) && i < 4; i++ {
		d[i] = dims[i]
	}
	d[4] = components

	v.Dims = d
	v.Sform = sform
	v.Type = volumeType
	v.MapNames = make([]string, d[3])
	v.LabelTables = nil
	if volumeType == VolumeLabel {
		v.LabelTables = make([]*LabelTable, d[3])
		for m := range v.LabelTables {
			v.LabelTables[m] = NewLabelTable()
		}
	}
	v.Data = make([]float64, d[0]*d[1]*d[2]*d[3]*d[4])
}

// Dimensions returns [x, y, z, maps, components]
func (v *Volume) Dimensions() [5]int { return v.Dims }

// NumberOfMaps returns the fourth dimension
func (v *Volume) NumberOfMaps() int { return v.Dims[3] }

// NumberOfComponents returns the number of values stored per voxel per map
func (v *Volume) NumberOfComponents() int { return v.Dims[4] }

// FrameSize returns the number of voxels in one spatial frame
func (v *Volume) FrameSize() int { return v.Dims[0] * v.Dims[1] * v.Dims[2] }

// VoxelIndex flattens (i, j, k) within a frame
func (v *Volume) VoxelIndex(i, j, k int) int {
	return i + v.Dims[0]*(j+v.Dims[1]*k)
}

// InBounds reports whether (i, j, k) lies inside the spatial grid
func (v *Volume) InBounds(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < v.Dims[0] && j < v.Dims[1] && k < v.Dims[2]
}

func (v *Volume) frameOffset(mapIndex, component int) int {
	return v.FrameSize() * (mapIndex*v.Dims[4] + component)
}

// Value returns the value at a voxel for one map and component
func (v *Volume) Value(i, j, k, mapIndex, component int) float64 {
	return v.Data[v.frameOffset(mapIndex, component)+v.VoxelIndex(i, j, k)]
}

// SetValue stores the value at a voxel for one map and component
func (v *Volume) SetValue(value float64, i, j, k, mapIndex, component int) {
	v.Data[v.frameOffset(mapIndex, component)+v.VoxelIndex(i, j, k)] = value
}

// Frame returns a view of one spatial frame. Writes through the returned
// slice modify the volume.
func (v *Volume) Frame(mapIndex, component int) []float64 {
	start := v.frameOffset(mapIndex, component)
	return v.Data[start : start+v.FrameSize()]
}

// SetFrame copies a full spatial frame into the volume
func (v *Volume) SetFrame(frame []float64, mapIndex, component int) {
	copy(v.Frame(mapIndex, component), frame)
}

// MapLabelTable returns the label table of a map, or nil for non-label volumes
func (v *Volume) MapLabelTable(mapIndex int) *LabelTable {
	if mapIndex < 0 || mapIndex >= len(v.LabelTables) {
		return nil
	}
	return v.LabelTables[mapIndex]
}

// MapName returns the name of a map, empty when unnamed
func (v *Volume) MapName(mapIndex int) string {
	if mapIndex < 0 || mapIndex >= len(v.MapNames) {
		return ""
	}
	return v.MapNames[mapIndex]
}

// SetMapName names a map
func (v *Volume) SetMapName(mapIndex int, name string) {
	v.MapNames[mapIndex] = name
}

// sformTolerance is the largest per-element sform difference still treated as
// the same space
const sformTolerance = 1e-5

// MatchesVolumeSpace reports whether two volumes share a spatial grid: same
// x, y, z dimensions and the same voxel-to-space transform.
func (v *Volume) MatchesVolumeSpace(other *Volume) bool {
	if other == nil {
		return false
	}
	for i := 0; i < 3; i++ {
		if v.Dims[i] != other.Dims[i] {
			return false
		}
	}
	return mat.EqualApprox(sformDense(v.Sform), sformDense(other.Sform), sformTolerance)
}

func sformDense(s [3][4]float64) *mat.Dense {
	data := make([]float64, 0, 12)
	for r := 0; r < 3; r++ {
		data = append(data, s[r][:]...)
	}
	return mat.NewDense(3, 4, data)
}

// IndexToSpace converts voxel indices to millimetre coordinates
func (v *Volume) IndexToSpace(i, j, k float64) r3.Vec {
	s := v.Sform
	return r3.Vec{
		X: s[0][0]*i + s[0][1]*j + s[0][2]*k + s[0][3],
		Y: s[1][0]*i + s[1][1]*j + s[1][2]*k + s[1][3],
		Z: s[2][0]*i + s[2][1]*j + s[2][2]*k + s[2][3],
	}
}

// SpaceToIndex converts millimetre coordinates to fractional voxel indices.
// It fails when the sform is singular.
func (v *Volume) SpaceToIndex(p r3.Vec) (r3.Vec, error) {
	full := mat.NewDense(4, 4, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			full.Set(r, c, v.Sform[r][c])
		}
	}
	full.Set(3, 3, 1)
	var inv mat.Dense
	if err := inv.Inverse(full); err != nil {
		return r3.Vec{}, Preconditionf("sform is not invertible: %v", err)
	}
	out := mat.NewVecDense(4, nil)
	out.MulVec(&inv, mat.NewVecDense(4, []float64{p.X, p.Y, p.Z, 1}))
	return r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}, nil
}

// AxisVectors returns the millimetre displacement of one voxel step along
// i, j and k.
func (v *Volume) AxisVectors() (r3.Vec, r3.Vec, r3.Vec) {
	s := v.Sform
	return r3.Vec{X: s[0][0], Y: s[1][0], Z: s[2][0]},
		r3.Vec{X: s[0][1], Y: s[1][1], Z: s[2][1]},
		r3.Vec{X: s[0][2], Y: s[1][2], Z: s[2][2]}
}

// RoundLabel recovers an integer label key from float storage, rounding
// half up.
func RoundLabel(value float64) int {
	return int(math.Floor(value + 0.5))
}
