package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"wbcore/internal/models"
	"wbcore/pkg/dense"
	"wbcore/pkg/extrema"
)

// overlapValue is a pflag.Value accepting ALLOW, CLOSEST or EXCLUDE
type overlapValue struct {
	value extrema.Overlap
}

var _ pflag.Value = (*overlapValue)(nil)

func (o *overlapValue) String() string { return o.value.String() }
func (o *overlapValue) Type() string   { return "overlap" }

func (o *overlapValue) Set(s string) error {
	v, err := extrema.ParseOverlap(s)
	if err != nil {
		return err
	}
	o.value = v
	return nil
}

// directionValue is a pflag.Value accepting COLUMN or ROW
type directionValue struct {
	value dense.Direction
}

var _ pflag.Value = (*directionValue)(nil)

func (d *directionValue) String() string { return d.value.String() }
func (d *directionValue) Type() string   { return "direction" }

func (d *directionValue) Set(s string) error {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case dense.AlongColumn.String():
		d.value = dense.AlongColumn
	case dense.AlongRow.String():
		d.value = dense.AlongRow
	default:
		return errors.Errorf("unrecognized direction %q, expected COLUMN or ROW", s)
	}
	return nil
}

// volumeTypeValue is a pflag.Value accepting ANATOMY, FUNCTIONAL or LABEL
type volumeTypeValue struct {
	value models.VolumeType
}

var _ pflag.Value = (*volumeTypeValue)(nil)

func (v *volumeTypeValue) String() string { return v.value.String() }
func (v *volumeTypeValue) Type() string   { return "type" }

func (v *volumeTypeValue) Set(s string) error {
	t, ok := models.VolumeTypeFromName(strings.ToUpper(strings.TrimSpace(s)))
	if !ok {
		return errors.Errorf("unrecognized volume type %q", s)
	}
	v.value = t
	return nil
}

// parseSform turns 12 row-major values into an sform; an empty slice gives
// the identity
func parseSform(values []float64) ([3][4]float64, error) {
	if len(values) == 0 {
		return models.IdentitySform(), nil
	}
	if len(values) != 12 {
		return [3][4]float64{}, errors.Errorf("sform needs 12 values, got %d", len(values))
	}
	var s [3][4]float64
	for r := 0; r < 3; r++ {
		copy(s[r][:], values[r*4:r*4+4])
	}
	return s, nil
}

// boolSetting returns the flag value when the user set it, the configured
// value otherwise
func boolSetting(flags *pflag.FlagSet, name string, configured bool) bool {
	if !flags.Changed(name) {
		return configured
	}
	v, err := flags.GetBool(name)
	if err != nil {
		return configured
	}
	return v
}
