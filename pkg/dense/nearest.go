package dense

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"wbcore/internal/models"
)

// voxelPoint is the millimetre position of one volume entry
type voxelPoint struct {
	pos        r3.Vec
	denseIndex int
}

func (p voxelPoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.pos.X
	case 1:
		return p.pos.Y
	case 2:
		return p.pos.Z
	default:
		panic("illegal dimension")
	}
}

// Compare implements the kdtree.Comparable interface
func (p voxelPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(voxelPoint).coord(d)
}

// Dims returns the number of dimensions for the KD-tree
func (p voxelPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p voxelPoint) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.pos, c.(voxelPoint).pos))
}

// voxelPoints satisfies kdtree.Interface
type voxelPoints []voxelPoint

func (p voxelPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p voxelPoints) Len() int                              { return len(p) }
func (p voxelPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p voxelPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(voxelPlane{voxelPoints: p, Dim: d}, kdtree.MedianOfRandoms(voxelPlane{voxelPoints: p, Dim: d}, 100))
}

// voxelPlane implements sort.Interface and kdtree.SortSlicer for voxelPoints
type voxelPlane struct {
	voxelPoints
	kdtree.Dim
}

func (p voxelPlane) Less(i, j int) bool {
	return p.voxelPoints[i].coord(p.Dim) < p.voxelPoints[j].coord(p.Dim)
}

func (p voxelPlane) Slice(start, end int) kdtree.SortSlicer {
	return voxelPlane{voxelPoints: p.voxelPoints[start:end], Dim: p.Dim}
}

func (p voxelPlane) Swap(i, j int) {
	p.voxelPoints[i], p.voxelPoints[j] = p.voxelPoints[j], p.voxelPoints[i]
}

// VoxelLocator finds the volume entry of a mapping nearest to a millimetre
// coordinate. Surface entries carry no coordinates and are never returned.
type VoxelLocator struct {
	tree *kdtree.Tree

	// grid carries the volume geometry only, it holds no data
	grid *models.Volume
}

// NewVoxelLocator indexes the voxel positions of a mapping
func NewVoxelLocator(m *Mapping) (*VoxelLocator, error) {
	voxels := m.VolumeMap()
	if len(voxels) == 0 {
		return nil, models.NoInputf("mapping has no volume entries")
	}
	s := m.VolumeSform()
	points := make(voxelPoints, len(voxels))
	for n, e := range voxels {
		i, j, k := float64(e.IJK[0]), float64(e.IJK[1]), float64(e.IJK[2])
		points[n] = voxelPoint{
			pos: r3.Vec{
				X: s[0][0]*i + s[0][1]*j + s[0][2]*k + s[0][3],
				Y: s[1][0]*i + s[1][1]*j + s[1][2]*k + s[1][3],
				Z: s[2][0]*i + s[2][1]*j + s[2][2]*k + s[2][3],
			},
			denseIndex: e.DenseIndex,
		}
	}
	dims := m.VolumeDims()
	grid := &models.Volume{Dims: [5]int{dims[0], dims[1], dims[2], 1, 1}, Sform: s}
	return &VoxelLocator{tree: kdtree.New(points, true), grid: grid}, nil
}

// Inside reports whether p falls within the volume grid of the mapping,
// whether or not the voxel there is part of the mapping
func (l *VoxelLocator) Inside(p r3.Vec) (bool, error) {
	ijk, err := l.grid.SpaceToIndex(p)
	if err != nil {
		return false, err
	}
	i, j, k := int(math.Floor(ijk.X+0.5)), int(math.Floor(ijk.Y+0.5)), int(math.Floor(ijk.Z+0.5))
	return l.grid.InBounds(i, j, k), nil
}

// Nearest returns the dense index of the voxel closest to p and its distance
// in millimetres. When several voxels are equally close any one of them may
// be returned.
func (l *VoxelLocator) Nearest(p r3.Vec) (int, float64) {
	got, d2 := l.tree.Nearest(voxelPoint{pos: p})
	return got.(voxelPoint).denseIndex, math.Sqrt(d2)
}
