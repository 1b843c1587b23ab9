package workspace

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"wbcore/internal/models"
	"wbcore/pkg/dense"
)

// Kind names the record type of a stored item
type Kind string

const (
	KindVolume Kind = "volume"
	KindMetric Kind = "metric"
	KindDense  Kind = "dense"
)

// labelTableRecord is the stored form of one map's label table
type labelTableRecord struct {
	Unassigned int            `json:"unassigned"`
	Labels     []models.Label `json:"labels"`
}

// VolumeRecord is the stored form of a models.Volume. Values are packed as
// little-endian float64 so that NaN and Inf survive the JSON encoder.
type VolumeRecord struct {
	Name        string             `json:"name" boltholdKey:"Name"`
	Type        string             `json:"type" boltholdIndex:"Type"`
	Dims        [5]int             `json:"dims"`
	Sform       [3][4]float64      `json:"sform"`
	MapNames    []string           `json:"mapNames"`
	LabelTables []labelTableRecord `json:"labelTables,omitempty"`
	Data        []byte             `json:"data"`
	UpdatedAt   int64              `json:"updatedAt" boltholdIndex:"UpdatedAt"`
}

// MetricRecord is the stored form of a models.Metric
type MetricRecord struct {
	Name        string   `json:"name" boltholdKey:"Name"`
	Structure   string   `json:"structure" boltholdIndex:"Structure"`
	NumVertices int      `json:"numVertices"`
	MapNames    []string `json:"mapNames"`
	Data        []byte   `json:"data"`
	UpdatedAt   int64    `json:"updatedAt" boltholdIndex:"UpdatedAt"`
}

// DenseRecord is a dense matrix with the mapping that indexes it
type DenseRecord struct {
	Name        string         `json:"name" boltholdKey:"Name"`
	Direction   string         `json:"direction"`
	Rows        int            `json:"rows"`
	Cols        int            `json:"cols"`
	MapNames    []string       `json:"mapNames"`
	Entries     []dense.Entry  `json:"entries"`
	NumVertices map[string]int `json:"numVertices"`
	VolumeDims  [3]int         `json:"volumeDims"`
	Sform       [3][4]float64  `json:"sform"`
	Data        []byte         `json:"data"`
	UpdatedAt   int64          `json:"updatedAt" boltholdIndex:"UpdatedAt"`
}

// Dense is a loaded dense matrix together with its mapping
type Dense struct {
	Mapping  *dense.Mapping
	Matrix   *dense.Matrix
	MapNames []string
}

func packFloats(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func unpackFloats(buf []byte, want int) ([]float64, error) {
	if len(buf) != 8*want {
		return nil, errors.Errorf("stored data holds %d bytes, expected %d values", len(buf), want)
	}
	out := make([]float64, want)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return out, nil
}

func newVolumeRecord(name string, v *models.Volume) *VolumeRecord {
	rec := &VolumeRecord{
		Name:     name,
		Type:     v.Type.String(),
		Dims:     v.Dims,
		Sform:    v.Sform,
		MapNames: append([]string(nil), v.MapNames...),
		Data:     packFloats(v.Data),
	}
	for _, t := range v.LabelTables {
		rec.LabelTables = append(rec.LabelTables, labelTableRecord{Unassigned: t.UnassignedKey(), Labels: t.Labels()})
	}
	return rec
}

func (r *VolumeRecord) volume() (*models.Volume, error) {
	vt, ok := models.VolumeTypeFromName(r.Type)
	if !ok {
		return nil, errors.Errorf("volume %s has unknown type %q", r.Name, r.Type)
	}
	v := models.NewVolume(r.Dims[:4], r.Sform, r.Dims[4], vt)
	data, err := unpackFloats(r.Data, len(v.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "volume %s", r.Name)
	}
	v.Data = data
	copy(v.MapNames, r.MapNames)
	if vt == models.VolumeLabel {
		if len(r.LabelTables) != len(v.LabelTables) {
			return nil, errors.Errorf("volume %s has %d label tables for %d maps", r.Name, len(r.LabelTables), len(v.LabelTables))
		}
		for m, stored := range r.LabelTables {
			t := models.NewLabelTable()
			for _, l := range stored.Labels {
				t.Add(l.Name, l.Key)
			}
			t.SetUnassignedKey(stored.Unassigned)
			v.LabelTables[m] = t
		}
	}
	return v, nil
}

func newMetricRecord(name string, m *models.Metric) *MetricRecord {
	return &MetricRecord{
		Name:        name,
		Structure:   m.Structure.String(),
		NumVertices: m.NumVertices,
		MapNames:    append([]string(nil), m.MapNames...),
		Data:        packFloats(m.Data),
	}
}

func (r *MetricRecord) metric() (*models.Metric, error) {
	s, ok := models.StructureFromName(r.Structure)
	if !ok || !s.IsSurface() {
		return nil, errors.Errorf("metric %s has invalid surface structure %q", r.Name, r.Structure)
	}
	m := models.NewMetric(s, r.NumVertices, len(r.MapNames))
	data, err := unpackFloats(r.Data, len(m.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "metric %s", r.Name)
	}
	m.Data = data
	copy(m.MapNames, r.MapNames)
	return m, nil
}

func newDenseRecord(name string, d *Dense) *DenseRecord {
	rows, cols := d.Matrix.Dims()
	rec := &DenseRecord{
		Name:        name,
		Direction:   d.Mapping.Direction().String(),
		Rows:        rows,
		Cols:        cols,
		MapNames:    append([]string(nil), d.MapNames...),
		Entries:     d.Mapping.Entries(),
		NumVertices: make(map[string]int),
		VolumeDims:  d.Mapping.VolumeDims(),
		Sform:       d.Mapping.VolumeSform(),
	}
	for _, s := range d.Mapping.SurfaceStructures() {
		rec.NumVertices[s.String()] = d.Mapping.NumberOfVertices(s)
	}
	values := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		values = append(values, d.Matrix.Row(r)...)
	}
	rec.Data = packFloats(values)
	return rec
}

func (r *DenseRecord) dense() (*Dense, error) {
	direction := dense.AlongColumn
	if r.Direction == dense.AlongRow.String() {
		direction = dense.AlongRow
	}
	numVertices := make(map[models.Structure]int, len(r.NumVertices))
	for name, n := range r.NumVertices {
		s, ok := models.StructureFromName(name)
		if !ok {
			return nil, errors.Errorf("dense %s has unknown structure %q", r.Name, name)
		}
		numVertices[s] = n
	}
	mapping, err := dense.Restore(direction, r.Entries, numVertices, r.VolumeDims, r.Sform)
	if err != nil {
		return nil, errors.Wrapf(err, "dense %s", r.Name)
	}
	matrix, err := dense.NewMatrix(r.Rows, r.Cols)
	if err != nil {
		return nil, errors.Wrapf(err, "dense %s", r.Name)
	}
	values, err := unpackFloats(r.Data, r.Rows*r.Cols)
	if err != nil {
		return nil, errors.Wrapf(err, "dense %s", r.Name)
	}
	for row := 0; row < r.Rows; row++ {
		if err := matrix.SetRow(values[row*r.Cols:(row+1)*r.Cols], row); err != nil {
			return nil, err
		}
	}
	return &Dense{Mapping: mapping, Matrix: matrix, MapNames: r.MapNames}, nil
}

// ReadRawFloat32 reads count little-endian float32 values
func ReadRawFloat32(r io.Reader, count int) ([]float64, error) {
	raw := make([]float32, count)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, errors.Wrapf(err, "error reading %d float32 values", count)
	}
	out := make([]float64, count)
	for i, v := range raw {
		out[i] = float64(v)
	}
	// trailing bytes mean the declared shape is wrong
	var probe [1]byte
	if n, _ := r.Read(probe[:]); n > 0 {
		return nil, models.Preconditionf("input holds more than %d float32 values", count)
	}
	return out, nil
}

// WriteRawFloat32 writes values as little-endian float32
func WriteRawFloat32(w io.Writer, values []float64) error {
	raw := make([]float32, len(values))
	for i, v := range values {
		raw[i] = float32(v)
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, raw); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return errors.Wrap(err, "error writing float32 values")
}
