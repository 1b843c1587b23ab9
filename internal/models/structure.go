package models

// Structure tags an anatomical region
type Structure int

const (
	StructureInvalid Structure = iota
	CortexLeft
	CortexRight
	Cerebellum
	AccumbensLeft
	AccumbensRight
	AmygdalaLeft
	AmygdalaRight
	BrainStem
	CaudateLeft
	CaudateRight
	CerebellumLeft
	CerebellumRight
	DiencephalonVentralLeft
	DiencephalonVentralRight
	HippocampusLeft
	HippocampusRight
	PallidumLeft
	PallidumRight
	PutamenLeft
	PutamenRight
	ThalamusLeft
	ThalamusRight
)

var structureNames = map[Structure]string{
	StructureInvalid:         "INVALID",
	CortexLeft:               "CORTEX_LEFT",
	CortexRight:              "CORTEX_RIGHT",
	Cerebellum:               "CEREBELLUM",
	AccumbensLeft:            "ACCUMBENS_LEFT",
	AccumbensRight:           "ACCUMBENS_RIGHT",
	AmygdalaLeft:             "AMYGDALA_LEFT",
	AmygdalaRight:            "AMYGDALA_RIGHT",
	BrainStem:                "BRAIN_STEM",
	CaudateLeft:              "CAUDATE_LEFT",
	CaudateRight:             "CAUDATE_RIGHT",
	CerebellumLeft:           "CEREBELLUM_LEFT",
	CerebellumRight:          "CEREBELLUM_RIGHT",
	DiencephalonVentralLeft:  "DIENCEPHALON_VENTRAL_LEFT",
	DiencephalonVentralRight: "DIENCEPHALON_VENTRAL_RIGHT",
	HippocampusLeft:          "HIPPOCAMPUS_LEFT",
	HippocampusRight:         "HIPPOCAMPUS_RIGHT",
	PallidumLeft:             "PALLIDUM_LEFT",
	PallidumRight:            "PALLIDUM_RIGHT",
	PutamenLeft:              "PUTAMEN_LEFT",
	PutamenRight:             "PUTAMEN_RIGHT",
	ThalamusLeft:             "THALAMUS_LEFT",
	ThalamusRight:            "THALAMUS_RIGHT",
}

func (s Structure) String() string {
	if name, ok := structureNames[s]; ok {
		return name
	}
	return structureNames[StructureInvalid]
}

// IsSurface reports whether the structure is represented by surface vertices
func (s Structure) IsSurface() bool {
	return s == CortexLeft || s == CortexRight || s == Cerebellum
}

// StructureFromName parses a structure name such as "THALAMUS_LEFT"
func StructureFromName(name string) (Structure, bool) {
	for s, n := range structureNames {
		if n == name && s != StructureInvalid {
			return s, true
		}
	}
	return StructureInvalid, false
}

// VolumeStructures lists every structure that can appear in the volume part
// of a dense file, in enumeration order
func VolumeStructures() []Structure {
	var out []Structure
	for s := AccumbensLeft; s <= ThalamusRight; s++ {
		out = append(out, s)
	}
	return out
}
