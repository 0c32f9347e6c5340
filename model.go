package capops

import (
	"errors"
	"fmt"
	"math"
)

// Grid and scoring constants shared by every archetype.
const (
	// GridResolution is the lattice size per axis: 0% to 100% in 1% steps.
	GridResolution = 101

	// PassThreshold is the combined score at which a position counts as
	// inside the viable zone.
	PassThreshold = 0.5

	// SigmoidK is the sharpness of the sigmoid transitions.
	SigmoidK = 12.0

	// Temperature divides every raw margin before the sigmoid is applied.
	Temperature = 0.08
)

// NumDimensions and NumSliders fix the shape of the data model.
const (
	NumDimensions = 8
	NumSliders    = 4
)

// Dimension indices into a DimensionProfile.
const (
	DimConsequence = iota // D1: Consequence of Failure
	DimMarketPressure     // D2: Market Pressure
	DimComplexity         // D3: System Complexity
	DimRegulation         // D4: Regulatory Burden
	DimTeamStability      // D5: Team Stability
	DimOutsourcing        // D6: Outsourcing Dependency
	DimLifecycle          // D7: Product Lifecycle Stage
	DimCoherence          // D8: Organisational Coherence
)

// Slider indices into CapacitySliders.
const (
	SliderInvestment = iota
	SliderRecovery
	SliderOverwork
	SliderTime
)

// DimensionNames gives the short display name per dimension index.
var DimensionNames = [NumDimensions]string{
	"Consequence", "Market Pressure", "Complexity", "Regulation",
	"Team Stability", "Outsourcing", "Lifecycle", "Coherence",
}

// SliderNames gives the display name per slider index.
var SliderNames = [NumSliders]string{"Investment", "Recovery", "Overwork", "Time"}

// Validation failures surfaced by the engine's entry points.
var (
	ErrInvalidProfile  = errors.New("invalid dimension profile")
	ErrInvalidSliders  = errors.New("invalid capacity sliders")
	ErrInvalidPosition = errors.New("invalid grid position")
)

// DimensionProfile is an ordered set of 8 structural project characteristics,
// each scored 1-5. Profiles are value types: copies never alias.
type DimensionProfile [NumDimensions]int

// Validate checks every dimension is within [1,5].
func (p DimensionProfile) Validate() error {
	for i, d := range p {
		if d < 1 || d > 5 {
			return fmt.Errorf("%w: %s = %d (want 1-5)", ErrInvalidProfile, DimensionNames[i], d)
		}
	}
	return nil
}

// norm rescales a dimension value from 1-5 to [0,1].
func (p DimensionProfile) norm(i int) float64 {
	return float64(p[i]-1) / 4.0
}

// CapacitySliders holds the four organisational resourcing capacities, each
// in [0,1]: Investment, Recovery, Overwork, Time.
type CapacitySliders [NumSliders]float64

// Validate checks every slider is within [0,1].
func (s CapacitySliders) Validate() error {
	for i, v := range s {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s = %v (want 0-1)", ErrInvalidSliders, SliderNames[i], v)
		}
	}
	return nil
}

// With returns a copy with one slider replaced. The receiver is unchanged;
// overrides never mutate the profile-derived baseline.
func (s CapacitySliders) With(slider int, value float64) CapacitySliders {
	out := s
	out[slider] = value
	return out
}

// GridPosition is a transient (cap, ops) point on the maturity grid,
// both coordinates in [0,1].
type GridPosition struct {
	Cap float64 `yaml:"cap"`
	Ops float64 `yaml:"ops"`
}

// Validate checks both coordinates are within [0,1].
func (g GridPosition) Validate() error {
	if g.Cap < 0 || g.Cap > 1 || math.IsNaN(g.Cap) {
		return fmt.Errorf("%w: cap = %v (want 0-1)", ErrInvalidPosition, g.Cap)
	}
	if g.Ops < 0 || g.Ops > 1 || math.IsNaN(g.Ops) {
		return fmt.Errorf("%w: ops = %v (want 0-1)", ErrInvalidPosition, g.Ops)
	}
	return nil
}

// ViabilityScore holds the three test scores and their combination at one
// grid position. All values are in [0,1].
type ViabilityScore struct {
	Viable      float64
	Sufficient  float64
	Sustainable float64
	Combined    float64 // Viable × Sufficient × Sustainable
}

// InZone reports whether the combined score clears PassThreshold.
func (v ViabilityScore) InZone() bool {
	return v.Combined >= PassThreshold
}

// Binding names the test with the lowest score: the constraint that gives
// way first if the position degrades.
func (v ViabilityScore) Binding() string {
	switch {
	case v.Viable <= v.Sufficient && v.Viable <= v.Sustainable:
		return "viable"
	case v.Sufficient <= v.Sustainable:
		return "sufficient"
	default:
		return "sustainable"
	}
}

// CategoricalBands maps continuous slider values to display labels.
var CategoricalBands = []struct {
	Low, High float64
	Label     string
}{
	{0.00, 0.15, "Very Low"},
	{0.15, 0.30, "Low"},
	{0.30, 0.40, "Low-Med"},
	{0.40, 0.55, "Medium"},
	{0.55, 0.70, "Med-High"},
	{0.70, 0.85, "High"},
	{0.85, 1.01, "Very High"},
}

// Categorise converts a continuous slider value in [0,1] to its band label.
func Categorise(value float64) string {
	for _, b := range CategoricalBands {
		if value >= b.Low && value < b.High {
			return b.Label
		}
	}
	return "Very High"
}

// sigmoid squashes a scaled margin into (0,1) with sharpness SigmoidK.
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-SigmoidK*x))
}

// clamp01 clips v to [0,1].
func clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}
