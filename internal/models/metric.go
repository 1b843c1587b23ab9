package models

// Metric holds per-vertex scalar maps for one surface structure
type Metric struct {
	Structure   Structure
	NumVertices int
	MapNames    []string

	// Data is map-major: all vertices of map 0, then map 1, ...
	Data []float64
}

// NewMetric allocates a zero-filled metric
func NewMetric(structure Structure, numVertices, numMaps int) *Metric {
	return &Metric{
		Structure:   structure,
		NumVertices: numVertices,
		MapNames:    make([]string, numMaps),
		Data:        make([]float64, numVertices*numMaps),
	}
}

// NumberOfMaps returns how many maps (columns, time points) the metric has
func (m *Metric) NumberOfMaps() int { return len(m.MapNames) }

// Value returns the value of one vertex in one map
func (m *Metric) Value(vertex, mapIndex int) float64 {
	return m.Data[mapIndex*m.NumVertices+vertex]
}

// SetValue stores the value of one vertex in one map
func (m *Metric) SetValue(value float64, vertex, mapIndex int) {
	m.Data[mapIndex*m.NumVertices+vertex] = value
}

// MapName returns the name of a map
func (m *Metric) MapName(mapIndex int) string { return m.MapNames[mapIndex] }

// MapValues returns a view of one map
func (m *Metric) MapValues(mapIndex int) []float64 {
	return m.Data[mapIndex*m.NumVertices : (mapIndex+1)*m.NumVertices]
}
