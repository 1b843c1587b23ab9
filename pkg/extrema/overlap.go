package extrema

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Overlap decides what happens when the regions of two seeds cover the same
// voxel
type Overlap int

const (
	// Allow lets regions overlap freely
	Allow Overlap = iota

	// Closest gives a contested voxel to the seed nearest to it; on a tie the
	// seed processed first keeps it
	Closest

	// Exclude removes a contested voxel from every region
	Exclude
)

func (o Overlap) String() string {
	switch o {
	case Allow:
		return "ALLOW"
	case Closest:
		return "CLOSEST"
	case Exclude:
		return "EXCLUDE"
	}
	return fmt.Sprintf("Overlap(%d)", int(o))
}

// ParseOverlap accepts ALLOW, CLOSEST or EXCLUDE in any case
func ParseOverlap(s string) (Overlap, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ALLOW":
		return Allow, nil
	case "CLOSEST":
		return Closest, nil
	case "EXCLUDE":
		return Exclude, nil
	}
	return Allow, errors.Errorf("unrecognized overlap logic %q, expected ALLOW, CLOSEST or EXCLUDE", s)
}

// exclusion tracks which seed owns each voxel. dist is -1 for a voxel nobody
// has claimed; source is -1 for a voxel nobody owns, which after a claim
// means it was revoked.
type exclusion struct {
	dist   []float64
	source []int
}

func newExclusion(size int) *exclusion {
	e := &exclusion{dist: make([]float64, size), source: make([]int, size)}
	for i := range e.dist {
		e.dist[i] = -1
		e.source[i] = -1
	}
	return e
}

// policy is resolved once per run. claim records that seed covers voxel idx
// at distance d and reports whether the voxel joins the seed's region for
// now; owns reports whether a recorded voxel survived to the end.
type policy struct {
	claim func(idx int, d float64, seed int) bool
	owns  func(idx int, seed int) bool
}

func newPolicy(o Overlap, size int) policy {
	switch o {
	case Closest:
		ex := newExclusion(size)
		return policy{
			claim: func(idx int, d float64, seed int) bool {
				if ex.dist[idx] < 0 || d < ex.dist[idx] {
					ex.dist[idx] = d
					ex.source[idx] = seed
					return true
				}
				return false
			},
			owns: func(idx int, seed int) bool { return ex.source[idx] == seed },
		}
	case Exclude:
		ex := newExclusion(size)
		return policy{
			claim: func(idx int, d float64, seed int) bool {
				if ex.dist[idx] < 0 {
					ex.dist[idx] = d
					ex.source[idx] = seed
					return true
				}
				if ex.source[idx] != seed {
					ex.source[idx] = -1
				}
				return false
			},
			owns: func(idx int, seed int) bool { return ex.source[idx] == seed },
		}
	}
	return policy{
		claim: func(int, float64, int) bool { return true },
		owns:  func(int, int) bool { return true },
	}
}
