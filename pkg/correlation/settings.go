package correlation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Mode selects the statistic computed between two series
type Mode int

const (
	// Pearson correlation
	Correlation Mode = iota

	// Population covariance (divides by the element count)
	Covariance
)

func (m Mode) String() string {
	switch m {
	case Correlation:
		return "CORRELATION"
	case Covariance:
		return "COVARIANCE"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts CORRELATION or COVARIANCE in any case
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CORRELATION":
		return Correlation, nil
	case "COVARIANCE":
		return Covariance, nil
	}
	return Correlation, errors.Errorf("unrecognized correlation mode %q", s)
}

// Settings configures an Engine. The zero value is plain demeaned Pearson
// correlation. Settings are compared with ==.
type Settings struct {
	mode     Mode
	fisherZ  bool
	noDemean bool
}

// NewSettings builds a Settings value
func NewSettings(mode Mode, fisherZ, noDemean bool) Settings {
	return Settings{mode: mode, fisherZ: fisherZ, noDemean: noDemean}
}

func (s Settings) Mode() Mode { return s.mode }

// IsFisherZEnabled reports whether correlations are passed through atanh.
// It only has an effect in Correlation mode.
func (s Settings) IsFisherZEnabled() bool { return s.fisherZ }

// IsNoDemeanEnabled reports whether means are left in the data. It only has
// an effect in Correlation mode.
func (s Settings) IsNoDemeanEnabled() bool { return s.noDemean }

func (s *Settings) SetMode(mode Mode)               { s.mode = mode }
func (s *Settings) SetFisherZEnabled(enabled bool)  { s.fisherZ = enabled }
func (s *Settings) SetNoDemeanEnabled(enabled bool) { s.noDemean = enabled }

func (s Settings) String() string {
	if s.mode != Correlation {
		return s.mode.String()
	}
	return fmt.Sprintf("%s fisherZ=%t noDemean=%t", s.mode, s.fisherZ, s.noDemean)
}

func (s Settings) useFisherZ() bool  { return s.mode == Correlation && s.fisherZ }
func (s Settings) useNoDemean() bool { return s.mode == Correlation && s.noDemean }
