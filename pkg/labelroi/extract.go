// Package labelroi turns one label of a label volume into a binary ROI volume.
package labelroi

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"wbcore/internal/models"
	"wbcore/pkg/logging"
)

// AllMaps selects every map of the label volume
const AllMaps = -1

// Selector chooses a label either by name or by key
type Selector struct {
	name   string
	key    int
	byName bool
}

// ByName selects the label carrying name in each map's label table
func ByName(name string) Selector { return Selector{name: name, byName: true} }

// ByKey selects a label key directly
func ByKey(key int) Selector { return Selector{key: key} }

func (s Selector) String() string {
	if s.byName {
		return strconv.Quote(s.name)
	}
	return fmt.Sprintf("key %d", s.key)
}

// Extract returns a volume holding 1 where the label volume's rounded value
// equals the selected key and 0 elsewhere.
//
// With mapIndex == AllMaps the output has one map per input map and each map
// resolves the selector against its own label table; a map lacking the label
// only logs a warning and stays zero, but finding no matching voxel in any map
// is an error. With mapIndex >= 0 only that map is processed and the output
// has a single map.
func Extract(ctx context.Context, labelVolume *models.Volume, sel Selector, mapIndex int) (*models.Volume, error) {
	log := logging.Component(ctx, "label-to-roi")

	if labelVolume == nil {
		return nil, models.NoInputf("no label volume supplied")
	}
	if labelVolume.Type != models.VolumeLabel {
		return nil, models.Preconditionf("input volume must be a label volume, got %s", labelVolume.Type)
	}
	if labelVolume.NumberOfComponents() != 1 {
		return nil, models.Preconditionf("label volume must have one component per voxel, got %d", labelVolume.NumberOfComponents())
	}
	dims := labelVolume.Dimensions()
	if mapIndex < AllMaps || mapIndex >= dims[3] {
		return nil, models.IndexRangef("map index %d is invalid for a volume with %d maps", mapIndex, dims[3])
	}

	if mapIndex == AllMaps {
		out := models.NewVolume(dims[:4], labelVolume.Sform, 1, models.VolumeAnatomy)
		total := 0
		for m := 0; m < dims[3]; m++ {
			out.SetMapName(m, labelVolume.MapName(m))
			key, ok := resolve(log, labelVolume.MapLabelTable(m), sel, m)
			if !ok {
				continue
			}
			total += fill(out.Frame(m, 0), labelVolume.Frame(m, 0), key)
		}
		if total == 0 {
			return nil, models.NotFoundf("label %s matched no voxels in any map", sel)
		}
		return out, nil
	}

	out := models.NewVolume(dims[:3], labelVolume.Sform, 1, models.VolumeAnatomy)
	out.SetMapName(0, labelVolume.MapName(mapIndex))
	key, ok := resolve(log, labelVolume.MapLabelTable(mapIndex), sel, mapIndex)
	if !ok {
		return nil, models.NotFoundf("label %s not found in map %d", sel, mapIndex)
	}
	if fill(out.Frame(0, 0), labelVolume.Frame(mapIndex, 0), key) == 0 {
		log.WithField("map", mapIndex).Warnf("label %s matched no voxels", sel)
	}
	return out, nil
}

// resolve finds the key to match in one map. Name lookups that fail log a
// warning and report false; unregistered keys only log a warning.
func resolve(log logrus.FieldLogger, table *models.LabelTable, sel Selector, mapIndex int) (int, bool) {
	if sel.byName {
		if table != nil {
			if key, ok := table.KeyFromName(sel.name); ok {
				return key, true
			}
		}
		log.WithField("map", mapIndex).Warnf("label name %q not found in label table", sel.name)
		return models.InvalidLabelKey, false
	}
	if table == nil || table.Label(sel.key) == nil {
		log.WithField("map", mapIndex).Warnf("label key %d is not in label table", sel.key)
	}
	return sel.key, true
}

// fill writes the indicator frame and returns the number of matches
func fill(out, in []float64, key int) int {
	matched := 0
	for i, v := range in {
		if models.RoundLabel(v) == key {
			out[i] = 1
			matched++
		} else {
			out[i] = 0
		}
	}
	return matched
}
