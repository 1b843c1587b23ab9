package visualization

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"wbcore/internal/models"
)

// gradientVolume has two maps: map 0 holds k, map 1 holds i+j+k
func gradientVolume(width, height, depth int) *models.Volume {
	vol := models.NewVolume([]int{width, height, depth, 2}, models.IdentitySform(), 1, models.VolumeFunctional)
	for k := 0; k < depth; k++ {
		for j := 0; j < height; j++ {
			for i := 0; i < width; i++ {
				vol.SetValue(float64(k), i, j, k, 0, 0)
				vol.SetValue(float64(i+j+k), i, j, k, 1, 0)
			}
		}
	}
	return vol
}

// TestNewViewer verifies the intensity range and index checks
func TestNewViewer(t *testing.T) {
	vol := gradientVolume(10, 8, 5)

	viewer, err := NewViewer(vol, 1, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	if low, high := viewer.Range(); low != 0 || high != 9+7+4 {
		t.Errorf("Expected range [0, 20], got [%f, %f]", low, high)
	}

	if _, err := NewViewer(vol, 2, 0); err == nil {
		t.Error("Expected error for map out of range, got nil")
	}
	if _, err := NewViewer(vol, 0, 1); err == nil {
		t.Error("Expected error for component out of range, got nil")
	}
}

// TestExtractSlice verifies that slices are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	viewer, err := NewViewer(gradientVolume(width, height, depth), 0, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	// each Z slice is uniform; its gray level is k/(depth-1) of full scale
	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}
		expected := viewer.gray(float64(z)).Y
		if got := gray16Img.Gray16At(width/2, height/2).Y; got != expected {
			t.Errorf("Expected Z slice value %d at center, got %d", expected, got)
		}
	}

	if got := viewer.gray(0).Y; got != 0 {
		t.Errorf("Expected minimum to map to 0, got %d", got)
	}
	if got := viewer.gray(float64(depth - 1)).Y; got != 65535 {
		t.Errorf("Expected maximum to map to 65535, got %d", got)
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != height || b.Dy() != depth {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", height, depth, b.Dx(), b.Dy())
	}

	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	if _, err = viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err = viewer.ExtractSlice("z", depth); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err = viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestUniformFrameIsBlack verifies that a constant frame renders without
// dividing by a zero range
func TestUniformFrameIsBlack(t *testing.T) {
	vol := models.NewVolume([]int{3, 3, 1}, models.IdentitySform(), 1, models.VolumeAnatomy)
	for i := range vol.Data {
		vol.Data[i] = 4
	}
	viewer, err := NewViewer(vol, 0, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if got := img.(*image.Gray16).Gray16At(1, 1).Y; got != 0 {
		t.Errorf("Expected black pixel, got %d", got)
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()
	depth := 3
	viewer, err := NewViewer(gradientVolume(5, 5, depth), 1, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	outputDir := filepath.Join(tempDir, "slices")
	written, err := viewer.SaveSliceSequence("z", outputDir)
	if err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
	if written != depth {
		t.Errorf("Expected %d files, got %d", depth, written)
	}

	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.jpg", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if _, err = viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
