package dense

import (
	"sort"

	"wbcore/internal/models"
)

// StructureTable decides which label names of a label volume denote volume
// structures that belong in the dense index space. It is built once and
// passed to Build; it is never modified afterwards.
type StructureTable struct {
	byName map[string]models.Structure
}

// NewStructureTable builds a table from label names. Each name must be the
// name of a volume structure.
func NewStructureTable(names []string) (*StructureTable, error) {
	t := &StructureTable{byName: make(map[string]models.Structure, len(names))}
	for _, name := range names {
		s, ok := models.StructureFromName(name)
		if !ok || s.IsSurface() {
			return nil, models.Preconditionf("%q is not a volume structure name", name)
		}
		t.byName[name] = s
	}
	return t, nil
}

// DefaultStructureTable accepts every known volume structure
func DefaultStructureTable() *StructureTable {
	t, _ := NewStructureTable(DefaultStructureNames())
	return t
}

// DefaultStructureNames lists the names accepted by DefaultStructureTable
func DefaultStructureNames() []string {
	var names []string
	for _, s := range models.VolumeStructures() {
		names = append(names, s.String())
	}
	return names
}

// Lookup returns the structure a label name denotes
func (t *StructureTable) Lookup(name string) (models.Structure, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Names returns the accepted names in sorted order
func (t *StructureTable) Names() []string {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
