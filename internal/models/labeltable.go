package models

import "sort"

// UnassignedLabelName is the name given to the default unassigned key
const UnassignedLabelName = "???"

// InvalidLabelKey is returned by lookups that find nothing
const InvalidLabelKey = -1

// Label is one entry of a label table
type Label struct {
	Key  int    `json:"key" yaml:"key"`
	Name string `json:"name" yaml:"name"`
}

// LabelTable maps integer keys to label names for one map of a label volume
type LabelTable struct {
	labels     map[int]*Label
	unassigned int
}

// NewLabelTable creates a table holding only the unassigned label (key 0)
func NewLabelTable() *LabelTable {
	t := &LabelTable{labels: make(map[int]*Label)}
	t.labels[0] = &Label{Key: 0, Name: UnassignedLabelName}
	return t
}

// Add registers or renames a key
func (t *LabelTable) Add(name string, key int) {
	t.labels[key] = &Label{Key: key, Name: name}
}

// Keys returns every registered key in ascending order, including the
// unassigned key
func (t *LabelTable) Keys() []int {
	keys := make([]int, 0, len(t.labels))
	for k := range t.labels {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Labels returns every entry in ascending key order
func (t *LabelTable) Labels() []Label {
	out := make([]Label, 0, len(t.labels))
	for _, k := range t.Keys() {
		out = append(out, *t.labels[k])
	}
	return out
}

// KeyFromName finds the key carrying a name. When several keys share the
// name the smallest one wins.
func (t *LabelTable) KeyFromName(name string) (int, bool) {
	for _, k := range t.Keys() {
		if t.labels[k].Name == name {
			return k, true
		}
	}
	return InvalidLabelKey, false
}

// Label returns the entry for a key, or nil when the key is not registered
func (t *LabelTable) Label(key int) *Label {
	return t.labels[key]
}

// UnassignedKey returns the key used for voxels belonging to no label
func (t *LabelTable) UnassignedKey() int { return t.unassigned }

// SetUnassignedKey changes which key counts as unassigned
func (t *LabelTable) SetUnassignedKey(key int) {
	if _, ok := t.labels[key]; !ok {
		t.labels[key] = &Label{Key: key, Name: UnassignedLabelName}
	}
	t.unassigned = key
}
