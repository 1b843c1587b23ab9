// Package dense builds the combined surface+volume "dense" index space and
// assembles per-structure data into rows ordered by it.
package dense

import (
	"context"
	"fmt"

	"wbcore/internal/models"
	"wbcore/pkg/logging"
)

// Direction says which matrix dimension the dense index runs along
type Direction int

const (
	// AlongColumn puts dense indices down the rows: one row per vertex or
	// voxel, one column per map (dense timeseries layout)
	AlongColumn Direction = iota

	// AlongRow puts dense indices across the columns: one row per map
	AlongRow
)

func (d Direction) String() string {
	if d == AlongRow {
		return "ROW"
	}
	return "COLUMN"
}

// Entry is one position of the dense index space. Surface entries carry a
// vertex; volume entries carry voxel indices and have Vertex set to -1.
type Entry struct {
	DenseIndex int              `json:"denseIndex"`
	Structure  models.Structure `json:"structure"`
	Vertex     int              `json:"vertex"`
	IJK        [3]int           `json:"ijk"`
}

// IsSurface reports whether the entry is a surface vertex
func (e Entry) IsSurface() bool { return e.Vertex >= 0 }

// SurfaceInputs holds the optional per-structure surface data and masks.
// A nil ROI includes every vertex of its structure.
type SurfaceInputs struct {
	Left          *models.Metric
	LeftROI       *models.Metric
	Right         *models.Metric
	RightROI      *models.Metric
	Cerebellum    *models.Metric
	CerebellumROI *models.Metric
}

type surfaceSlot struct {
	structure models.Structure
	data      *models.Metric
	roi       *models.Metric
}

func (s SurfaceInputs) slots() []surfaceSlot {
	return []surfaceSlot{
		{models.CortexLeft, s.Left, s.LeftROI},
		{models.CortexRight, s.Right, s.RightROI},
		{models.Cerebellum, s.Cerebellum, s.CerebellumROI},
	}
}

// Mapping is the bidirectional map between dense indices and vertices or
// voxels. Dense indices are contiguous from zero, surfaces first.
type Mapping struct {
	direction   Direction
	entries     []Entry
	surfaces    map[models.Structure][]Entry
	numVertices map[models.Structure]int
	volume      []Entry
	voxels      map[[3]int]int
	volumeDims  [3]int
	sform       [3][4]float64
}

// Build constructs the dense index space.
//
// Surface structures are appended in left cortex, right cortex, cerebellum
// order, each in ascending vertex order, keeping only vertices whose ROI value
// is positive when an ROI is given. The voxels of labelVolume (map 0) follow
// in k, j, i scan order, kept when their label name is in table. volume, when
// given, must share labelVolume's grid; its values are read by Assemble.
func Build(ctx context.Context, direction Direction, volume, labelVolume *models.Volume, surfaces SurfaceInputs, table *StructureTable) (*Mapping, error) {
	log := logging.Component(ctx, "dense-mapping")

	if volume == nil && labelVolume == nil && surfaces.Left == nil && surfaces.Right == nil && surfaces.Cerebellum == nil {
		return nil, models.NoInputf("no surface or volume data was supplied")
	}

	m := &Mapping{
		direction:   direction,
		surfaces:    make(map[models.Structure][]Entry),
		numVertices: make(map[models.Structure]int),
		voxels:      make(map[[3]int]int),
	}

	for _, slot := range surfaces.slots() {
		if slot.data == nil {
			if slot.roi != nil {
				return nil, models.Preconditionf("an ROI was given for %s without data", slot.structure)
			}
			continue
		}
		if slot.roi != nil && slot.roi.NumVertices != slot.data.NumVertices {
			return nil, models.Preconditionf("%s data has %d vertices but its ROI has %d",
				slot.structure, slot.data.NumVertices, slot.roi.NumVertices)
		}
		if slot.roi != nil && slot.roi.NumberOfMaps() < 1 {
			return nil, models.Preconditionf("%s ROI has no maps", slot.structure)
		}
		m.numVertices[slot.structure] = slot.data.NumVertices
		for v := 0; v < slot.data.NumVertices; v++ {
			if slot.roi != nil && !(slot.roi.Value(v, 0) > 0) {
				continue
			}
			m.appendEntry(Entry{Structure: slot.structure, Vertex: v})
		}
		log.Debugf("added %d vertices for %s", len(m.surfaces[slot.structure]), slot.structure)
	}

	if volume != nil && labelVolume == nil {
		return nil, models.Preconditionf("volume data requires a label volume to select voxels")
	}
	if labelVolume != nil {
		if labelVolume.Type != models.VolumeLabel {
			return nil, models.Preconditionf("structure label volume must be of label type, got %s", labelVolume.Type)
		}
		if volume != nil && !volume.MatchesVolumeSpace(labelVolume) {
			return nil, models.Preconditionf("data volume and structure label volume are not on the same grid")
		}
		if table == nil {
			table = DefaultStructureTable()
		}
		if err := m.addVolume(labelVolume, table); err != nil {
			return nil, err
		}
		log.Debugf("added %d voxels", len(m.volume))
	}

	return m, nil
}

func (m *Mapping) appendEntry(e Entry) {
	e.DenseIndex = len(m.entries)
	if e.IsSurface() {
		m.surfaces[e.Structure] = append(m.surfaces[e.Structure], e)
	} else {
		m.volume = append(m.volume, e)
		m.voxels[e.IJK] = e.DenseIndex
	}
	m.entries = append(m.entries, e)
}

func (m *Mapping) addVolume(labelVolume *models.Volume, table *StructureTable) error {
	labels := labelVolume.MapLabelTable(0)
	if labels == nil || labelVolume.NumberOfMaps() < 1 {
		return models.Preconditionf("structure label volume has no label table")
	}

	// resolve every key of the label table once
	keyStructure := make(map[int]models.Structure)
	for _, l := range labels.Labels() {
		if s, ok := table.Lookup(l.Name); ok {
			keyStructure[l.Key] = s
		}
	}

	dims := labelVolume.Dimensions()
	m.volumeDims = [3]int{dims[0], dims[1], dims[2]}
	m.sform = labelVolume.Sform
	frame := labelVolume.Frame(0, 0)
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				key := models.RoundLabel(frame[labelVolume.VoxelIndex(i, j, k)])
				s, ok := keyStructure[key]
				if !ok {
					continue
				}
				m.appendEntry(Entry{Structure: s, Vertex: -1, IJK: [3]int{i, j, k}})
			}
		}
	}
	return nil
}

// Direction returns the direction the mapping was built for
func (m *Mapping) Direction() Direction { return m.direction }

// Len returns the number of dense indices
func (m *Mapping) Len() int { return len(m.entries) }

// Entries returns every entry in dense index order
func (m *Mapping) Entries() []Entry { return m.entries }

// Entry returns the entry at a dense index
func (m *Mapping) Entry(denseIndex int) (Entry, bool) {
	if denseIndex < 0 || denseIndex >= len(m.entries) {
		return Entry{}, false
	}
	return m.entries[denseIndex], true
}

// SurfaceMap returns the entries of one surface structure
func (m *Mapping) SurfaceMap(structure models.Structure) []Entry {
	return m.surfaces[structure]
}

// SurfaceStructures returns the surface structures present, in dense order
func (m *Mapping) SurfaceStructures() []models.Structure {
	var out []models.Structure
	for _, s := range []models.Structure{models.CortexLeft, models.CortexRight, models.Cerebellum} {
		if _, ok := m.numVertices[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// NumberOfVertices returns the full vertex count of a surface structure,
// including vertices excluded by its ROI
func (m *Mapping) NumberOfVertices(structure models.Structure) int {
	return m.numVertices[structure]
}

// VolumeMap returns the volume entries in dense order
func (m *Mapping) VolumeMap() []Entry { return m.volume }

// VolumeDims returns the spatial dimensions of the volume part
func (m *Mapping) VolumeDims() [3]int { return m.volumeDims }

// VolumeSform returns the sform of the volume part
func (m *Mapping) VolumeSform() [3][4]float64 { return m.sform }

// DenseIndexForVertex looks up the dense index of a surface vertex
func (m *Mapping) DenseIndexForVertex(structure models.Structure, vertex int) (int, bool) {
	entries := m.surfaces[structure]
	// entries are sorted by vertex
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].Vertex < vertex {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(entries) && entries[lo].Vertex == vertex {
		return entries[lo].DenseIndex, true
	}
	return -1, false
}

// DenseIndexForVoxel looks up the dense index of a voxel
func (m *Mapping) DenseIndexForVoxel(i, j, k int) (int, bool) {
	idx, ok := m.voxels[[3]int{i, j, k}]
	if !ok {
		return -1, false
	}
	return idx, true
}

// Restore rebuilds a mapping from stored entries, validating that dense
// indices are contiguous from zero and that surfaces precede voxels.
func Restore(direction Direction, entries []Entry, numVertices map[models.Structure]int, volumeDims [3]int, sform [3][4]float64) (*Mapping, error) {
	m := &Mapping{
		direction:   direction,
		surfaces:    make(map[models.Structure][]Entry),
		numVertices: make(map[models.Structure]int),
		voxels:      make(map[[3]int]int),
		volumeDims:  volumeDims,
		sform:       sform,
	}
	for s, n := range numVertices {
		m.numVertices[s] = n
	}
	seenVolume := false
	for i, e := range entries {
		if e.DenseIndex != i {
			return nil, models.Preconditionf("entry %d has dense index %d", i, e.DenseIndex)
		}
		if e.IsSurface() && seenVolume {
			return nil, models.Preconditionf("surface entry %d follows volume entries", i)
		}
		seenVolume = seenVolume || !e.IsSurface()
		m.appendEntry(e)
	}
	return m, nil
}

func (m *Mapping) String() string {
	return fmt.Sprintf("dense mapping along %s: %d entries (%d voxels)", m.direction, len(m.entries), len(m.volume))
}
