// Package stencil enumerates the voxel offsets that fall within a physical
// radius of a voxel, for grids whose axes may be anisotropic or oblique.
package stencil

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"wbcore/internal/models"
)

// Offset is a voxel displacement with its length in millimetres
type Offset struct {
	DI, DJ, DK int
	Distance   float64
}

// Stencil is the set of offsets whose length is at most Limit
type Stencil struct {
	Limit   float64
	Offsets []Offset

	// Range is the half-width of the enumerated box along i, j and k
	Range [3]int
}

// ForVolume builds a stencil from a volume's voxel axes
func ForVolume(v *models.Volume, limit float64) (*Stencil, error) {
	ivec, jvec, kvec := v.AxisVectors()
	return New(ivec, jvec, kvec, limit)
}

// New builds a stencil from the millimetre displacement of one step along
// each voxel axis. The per-axis range is chosen from the spacing between
// successive planes of constant index, so a sphere of radius limit is always
// enclosed even when the axes are not orthogonal.
func New(ivec, jvec, kvec r3.Vec, limit float64) (*Stencil, error) {
	if limit < 0 || math.IsNaN(limit) {
		return nil, models.Preconditionf("stencil radius must be non-negative, got %v", limit)
	}

	jkNormal := r3.Cross(jvec, kvec)
	kiNormal := r3.Cross(kvec, ivec)
	ijNormal := r3.Cross(ivec, jvec)
	if r3.Norm(jkNormal) == 0 || r3.Norm(kiNormal) == 0 || r3.Norm(ijNormal) == 0 {
		return nil, models.Preconditionf("voxel axes are degenerate")
	}

	// spacing between planes of constant i, j and k
	iSpacing := math.Abs(r3.Dot(ivec, r3.Unit(jkNormal)))
	jSpacing := math.Abs(r3.Dot(jvec, r3.Unit(kiNormal)))
	kSpacing := math.Abs(r3.Dot(kvec, r3.Unit(ijNormal)))

	s := &Stencil{Limit: limit}
	s.Range[0] = int(math.Floor(limit / iSpacing))
	s.Range[1] = int(math.Floor(limit / jSpacing))
	s.Range[2] = int(math.Floor(limit / kSpacing))

	for dk := -s.Range[2]; dk <= s.Range[2]; dk++ {
		kpart := r3.Scale(float64(dk), kvec)
		for dj := -s.Range[1]; dj <= s.Range[1]; dj++ {
			jkpart := r3.Add(kpart, r3.Scale(float64(dj), jvec))
			for di := -s.Range[0]; di <= s.Range[0]; di++ {
				dist := r3.Norm(r3.Add(jkpart, r3.Scale(float64(di), ivec)))
				if dist <= limit {
					s.Offsets = append(s.Offsets, Offset{DI: di, DJ: dj, DK: dk, Distance: dist})
				}
			}
		}
	}
	return s, nil
}

// Len returns the number of offsets
func (s *Stencil) Len() int { return len(s.Offsets) }
