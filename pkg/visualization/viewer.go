// Package visualization renders slices of a volume map as grayscale images
// for quick inspection of ROI and smoothing output.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"wbcore/internal/models"
)

// Viewer renders one frame (map and component) of a volume. Intensities are
// scaled linearly so that the frame minimum is black and its maximum white.
type Viewer struct {
	frame []float64

	// dimensions of the volume
	width  int
	height int
	depth  int

	low, high float64
}

// NewViewer creates a viewer for the given map and component of a volume
func NewViewer(vol *models.Volume, mapIndex, component int) (*Viewer, error) {
	dims := vol.Dimensions()
	if mapIndex < 0 || mapIndex >= dims[3] {
		return nil, models.IndexRangef("map %d outside [0, %d)", mapIndex, dims[3])
	}
	if component < 0 || component >= dims[4] {
		return nil, models.IndexRangef("component %d outside [0, %d)", component, dims[4])
	}
	frame := vol.Frame(mapIndex, component)
	return &Viewer{
		frame:  frame,
		width:  dims[0],
		height: dims[1],
		depth:  dims[2],
		low:    floats.Min(frame),
		high:   floats.Max(frame),
	}, nil
}

// Range returns the values mapped to black and white
func (v *Viewer) Range() (low, high float64) { return v.low, v.high }

func (v *Viewer) gray(value float64) color.Gray16 {
	if v.high <= v.low {
		return color.Gray16{}
	}
	scaled := (value - v.low) / (v.high - v.low)
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(1, scaled)) * 65535))}
}

func (v *Viewer) at(i, j, k int) float64 {
	return v.frame[i+v.width*(j+v.height*k)]
}

// ExtractSlice extracts a 2D slice perpendicular to the given axis. The
// image x axis follows the lower of the two remaining volume axes.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, models.IndexRangef("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// JK plane
		if position >= v.width {
			return nil, models.IndexRangef("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.height, v.depth))
		for k := 0; k < v.depth; k++ {
			for j := 0; j < v.height; j++ {
				img.SetGray16(j, k, v.gray(v.at(position, j, k)))
			}
		}

	case "y", "Y":
		// IK plane
		if position >= v.height {
			return nil, models.IndexRangef("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for k := 0; k < v.depth; k++ {
			for i := 0; i < v.width; i++ {
				img.SetGray16(i, k, v.gray(v.at(i, position, k)))
			}
		}

	case "z", "Z":
		// IJ plane
		if position >= v.depth {
			return nil, models.IndexRangef("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for j := 0; j < v.height; j++ {
			for i := 0; i < v.width; i++ {
				img.SetGray16(i, j, v.gray(v.at(i, j, position)))
			}
		}

	default:
		return nil, models.Preconditionf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
// and returns the number of files written
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return 0, models.Preconditionf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, errors.Wrap(err, "error creating preview directory")
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, errors.Wrapf(err, "error writing %s", filename)
		}
	}

	return maxPos, nil
}
