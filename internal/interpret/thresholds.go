package interpret

import (
	"github.com/rotisserie/eris"
)

// ErrInvalidThresholds is returned by Thresholds.Validate.
var ErrInvalidThresholds = eris.New("interpret: invalid thresholds")

// Default cut points, in percent of risk_score.
const (
	DefaultRedThreshold = 75
	DefaultYellowMin    = 45
	DefaultMinGap       = 5
)

// Thresholds are the gauge cut points in percent. A score at or above Red is
// rojo, at or above YellowMin is amarillo, anything lower is verde.
type Thresholds struct {
	Red       float64 `json:"red" yaml:"red" mapstructure:"red"`
	YellowMin float64 `json:"yellow_min" yaml:"yellow_min" mapstructure:"yellow_min"`
	MinGap    float64 `json:"min_gap" yaml:"min_gap" mapstructure:"min_gap"`
}

// DefaultThresholds returns 75 / 45 with a 5 point minimum gap.
func DefaultThresholds() Thresholds {
	return Thresholds{Red: DefaultRedThreshold, YellowMin: DefaultYellowMin, MinGap: DefaultMinGap}
}

// Validate checks MinGap > 0, 0 <= YellowMin <= Red-MinGap and Red <= 100.
func (t Thresholds) Validate() error {
	switch {
	case t.MinGap <= 0:
		return eris.Wrapf(ErrInvalidThresholds, "min gap %.1f must be positive", t.MinGap)
	case t.Red <= 0 || t.Red > 100:
		return eris.Wrapf(ErrInvalidThresholds, "red %.1f outside (0,100]", t.Red)
	case t.YellowMin < 0:
		return eris.Wrapf(ErrInvalidThresholds, "yellow min %.1f is negative", t.YellowMin)
	case t.YellowMin > t.Red-t.MinGap:
		return eris.Wrapf(ErrInvalidThresholds, "yellow min %.1f must be at most red %.1f minus gap %.1f", t.YellowMin, t.Red, t.MinGap)
	}
	return nil
}

// Clamp forces user-adjusted values into a valid configuration. A missing or
// non-positive MinGap becomes DefaultMinGap, Red is kept in [MinGap,100] and
// YellowMin is pulled into [0, Red-MinGap].
func (t Thresholds) Clamp() Thresholds {
	if t.MinGap <= 0 {
		t.MinGap = DefaultMinGap
	}
	if t.MinGap > 100 {
		t.MinGap = 100
	}
	if t.Red > 100 {
		t.Red = 100
	}
	if t.Red < t.MinGap {
		t.Red = t.MinGap
	}
	if t.YellowMin > t.Red-t.MinGap {
		t.YellowMin = t.Red - t.MinGap
	}
	if t.YellowMin < 0 {
		t.YellowMin = 0
	}
	return t
}

// Classify maps a 0..100 gauge value to a level.
func (t Thresholds) Classify(value float64) Level {
	switch {
	case value >= t.Red:
		return LevelHigh
	case value >= t.YellowMin:
		return LevelMedium
	default:
		return LevelLow
	}
}
