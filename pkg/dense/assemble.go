package dense

import (
	"gonum.org/v1/gonum/mat"

	"wbcore/internal/models"
)

// RowSink receives assembled rows
type RowSink interface {
	SetRow(data []float64, index int) error
}

// Sources supplies values for each part of a mapping
type Sources struct {
	Left       *models.Metric
	Right      *models.Metric
	Cerebellum *models.Metric
	Volume     *models.Volume
}

type namedCount struct {
	name  string
	count int
}

// counts lists the present sources in name-priority order
func (s Sources) counts() []namedCount {
	var out []namedCount
	if s.Left != nil {
		out = append(out, namedCount{"left cortex", s.Left.NumberOfMaps()})
	}
	if s.Right != nil {
		out = append(out, namedCount{"right cortex", s.Right.NumberOfMaps()})
	}
	if s.Cerebellum != nil {
		out = append(out, namedCount{"cerebellum", s.Cerebellum.NumberOfMaps()})
	}
	if s.Volume != nil {
		out = append(out, namedCount{"volume", s.Volume.NumberOfMaps()})
	}
	return out
}

func (s Sources) metric(structure models.Structure) *models.Metric {
	switch structure {
	case models.CortexLeft:
		return s.Left
	case models.CortexRight:
		return s.Right
	case models.Cerebellum:
		return s.Cerebellum
	}
	return nil
}

// mapNames copies names from the first source present in left, right,
// cerebellum, volume order
func (s Sources) mapNames(numMaps int) []string {
	names := make([]string, numMaps)
	switch {
	case s.Left != nil:
		copy(names, s.Left.MapNames)
	case s.Right != nil:
		copy(names, s.Right.MapNames)
	case s.Cerebellum != nil:
		copy(names, s.Cerebellum.MapNames)
	case s.Volume != nil:
		copy(names, s.Volume.MapNames)
	}
	return names
}

// NumberOfMaps validates that every source has the same map count and
// returns it
func (s Sources) NumberOfMaps() (int, error) {
	counts := s.counts()
	if len(counts) == 0 {
		return 0, models.NoInputf("no data sources were supplied")
	}
	for _, c := range counts[1:] {
		if c.count != counts[0].count {
			return 0, models.Preconditionf("%s has %d maps but %s has %d maps",
				counts[0].name, counts[0].count, c.name, c.count)
		}
	}
	return counts[0].count, nil
}

// Assemble copies source values into rows of the dense layout and returns
// the map names. Values are copied without any scaling.
//
// For AlongColumn mappings each row is one dense index holding one value per
// map; for AlongRow mappings each row is one map holding one value per dense
// index.
func Assemble(mapping *Mapping, sources Sources, sink RowSink) ([]string, error) {
	numMaps, err := sources.NumberOfMaps()
	if err != nil {
		return nil, err
	}

	for _, structure := range mapping.SurfaceStructures() {
		metric := sources.metric(structure)
		if metric == nil {
			return nil, models.Preconditionf("mapping contains %s but no data was supplied for it", structure)
		}
		if metric.NumVertices != mapping.NumberOfVertices(structure) {
			return nil, models.Preconditionf("%s data has %d vertices but the mapping was built for %d",
				structure, metric.NumVertices, mapping.NumberOfVertices(structure))
		}
	}
	if len(mapping.VolumeMap()) > 0 {
		if sources.Volume == nil {
			return nil, models.Preconditionf("mapping contains voxels but no volume data was supplied")
		}
		dims := sources.Volume.Dimensions()
		if [3]int{dims[0], dims[1], dims[2]} != mapping.VolumeDims() {
			return nil, models.Preconditionf("volume data dimensions %v do not match the mapping's %v",
				dims[:3], mapping.VolumeDims())
		}
	}

	value := func(e Entry, m int) float64 {
		if e.IsSurface() {
			return sources.metric(e.Structure).Value(e.Vertex, m)
		}
		return sources.Volume.Value(e.IJK[0], e.IJK[1], e.IJK[2], m, 0)
	}

	if mapping.Direction() == AlongRow {
		row := make([]float64, mapping.Len())
		for m := 0; m < numMaps; m++ {
			for _, e := range mapping.Entries() {
				row[e.DenseIndex] = value(e, m)
			}
			if err := sink.SetRow(row, m); err != nil {
				return nil, err
			}
		}
	} else {
		row := make([]float64, numMaps)
		for _, e := range mapping.Entries() {
			for m := 0; m < numMaps; m++ {
				row[m] = value(e, m)
			}
			if err := sink.SetRow(row, e.DenseIndex); err != nil {
				return nil, err
			}
		}
	}

	return sources.mapNames(numMaps), nil
}

// Matrix is an in-memory RowSink backed by a gonum dense matrix
type Matrix struct {
	*mat.Dense
}

// NewMatrix allocates a zero matrix. Both dimensions must be positive.
func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, models.Preconditionf("cannot allocate a %dx%d matrix", rows, cols)
	}
	return &Matrix{Dense: mat.NewDense(rows, cols, nil)}, nil
}

// NewMatrixFor allocates a matrix shaped for a mapping and map count
func NewMatrixFor(mapping *Mapping, numMaps int) (*Matrix, error) {
	if mapping.Direction() == AlongRow {
		return NewMatrix(numMaps, mapping.Len())
	}
	return NewMatrix(mapping.Len(), numMaps)
}

// SetRow copies data into row index
func (m *Matrix) SetRow(data []float64, index int) error {
	rows, cols := m.Dims()
	if index < 0 || index >= rows {
		return models.IndexRangef("row %d outside matrix with %d rows", index, rows)
	}
	if len(data) != cols {
		return models.Preconditionf("row has %d values but matrix has %d columns", len(data), cols)
	}
	m.Dense.SetRow(index, data)
	return nil
}

// Row returns a view of one row
func (m *Matrix) Row(index int) []float64 {
	raw := m.RawMatrix()
	return raw.Data[index*raw.Stride : index*raw.Stride+raw.Cols]
}
