package capops

import (
	"fmt"
	"math"
)

// Transform maps a dimension level (1-5) to [0,1], interpolating linearly
// between integer levels. The five shapes below cover every relationship the
// structural model needs; transforms are fixed, only weights are calibrated.
type Transform struct {
	Name   string
	Levels [5]float64 // value at dimension levels 1..5
}

// At evaluates the transform, clamping the input to [1,5].
func (t Transform) At(d float64) float64 {
	d = math.Max(1.0, math.Min(5.0, d))
	lo := int(math.Floor(d))
	if lo > 4 {
		lo = 4
	}
	frac := d - float64(lo)
	return t.Levels[lo-1]*(1-frac) + t.Levels[lo]*frac
}

// linearUp: low dimension → low output, high → high.
func linearUp() Transform {
	return Transform{Name: "linear", Levels: [5]float64{0.0, 0.25, 0.50, 0.75, 1.0}}
}

// linearDown: low dimension → high output, high → low.
func linearDown() Transform {
	return Transform{Name: "inverse", Levels: [5]float64{1.0, 0.75, 0.50, 0.25, 0.0}}
}

// maturePeak peaks at level 3 (mature), drops at greenfield and legacy/EOL.
func maturePeak() Transform {
	return Transform{Name: "mature_peak", Levels: [5]float64{0.10, 0.40, 0.90, 0.20, 0.10}}
}

// startupPeak peaks at level 1 (greenfield), decays toward mature.
func startupPeak() Transform {
	return Transform{Name: "startup_peak", Levels: [5]float64{0.90, 0.70, 0.30, 0.20, 0.20}}
}

// timeLifecycle: mature projects have an established pace, legacy/EOL moderate.
func timeLifecycle() Transform {
	return Transform{Name: "time_lifecycle", Levels: [5]float64{0.10, 0.30, 0.70, 0.60, 0.50}}
}

// SliderSpec describes how one slider is computed from the dimension profile:
// a bias plus a weighted sum of transformed dimension values, clamped to [0,1].
// Weights and bias are the calibratable parameters; Dims and Transforms are
// fixed structure.
type SliderSpec struct {
	Name       string
	Dims       []int // dimension indices (0-7) that contribute
	Transforms []Transform
	Weights    []float64
	Bias       float64
}

// SliderModel is the complete two-layer mapper from dimensions (plus optional
// project state) to the four capacity sliders. Construct with NewSliderModel
// and optionally replace the calibrated parameters via ApplyWeights. The
// model is an explicit value, not process-wide state, so tests can substitute
// alternate weight tables freely.
type SliderModel struct {
	Specs [NumSliders]SliderSpec
}

// NewSliderModel returns the model with domain-derived prior weights. These
// priors are both the runtime default and the regularisation anchor for
// Calibrate.
func NewSliderModel() *SliderModel {
	return &SliderModel{Specs: [NumSliders]SliderSpec{
		{
			// Investment: "can you afford to move on the grid?"
			Name: "Investment",
			Dims: []int{DimComplexity, DimRegulation, DimTeamStability, DimOutsourcing, DimLifecycle},
			Transforms: []Transform{
				linearUp(), linearUp(), linearUp(), linearUp(), maturePeak(),
			},
			Weights: []float64{0.18, 0.22, 0.22, 0.12, 0.18},
			Bias:    0.02,
		},
		{
			// Recovery: "can you survive if things go wrong?"
			Name: "Recovery",
			Dims: []int{DimConsequence, DimComplexity, DimRegulation, DimTeamStability, DimLifecycle, DimCoherence},
			Transforms: []Transform{
				linearUp(), linearDown(), linearUp(), linearUp(), maturePeak(), linearUp(),
			},
			Weights: []float64{0.08, 0.10, 0.10, 0.28, 0.18, 0.20},
			Bias:    0.02,
		},
		{
			// Overwork: "can the team compensate through effort?"
			Name: "Overwork",
			Dims: []int{DimConsequence, DimMarketPressure, DimRegulation, DimTeamStability, DimLifecycle, DimCoherence},
			Transforms: []Transform{
				linearDown(), linearUp(), linearDown(), linearDown(), startupPeak(), linearDown(),
			},
			Weights: []float64{0.10, 0.18, 0.14, 0.20, 0.22, 0.12},
			Bias:    0.05,
		},
		{
			// Time: "can you afford to be slow?"
			Name: "Time",
			Dims: []int{DimConsequence, DimMarketPressure, DimRegulation, DimLifecycle},
			Transforms: []Transform{
				linearUp(), linearDown(), linearUp(), timeLifecycle(),
			},
			Weights: []float64{0.15, 0.32, 0.30, 0.14},
			Bias:    0.05,
		},
	}}
}

// ComputeStructural runs Layer 1 only: the calibrated structural baseline
// derived from the dimension profile alone.
func (m *SliderModel) ComputeStructural(p DimensionProfile) (CapacitySliders, error) {
	if err := p.Validate(); err != nil {
		return CapacitySliders{}, err
	}
	return m.structural(p), nil
}

// structural evaluates Layer 1 without input validation. Calibration calls
// this in a tight loop on pre-validated profiles.
func (m *SliderModel) structural(p DimensionProfile) CapacitySliders {
	var dims [NumDimensions]float64
	for i, d := range p {
		dims[i] = float64(d)
	}
	return m.structuralAt(dims)
}

// structuralAt evaluates Layer 1 at a possibly fractional dimension vector.
// Transition paths blend two integer profiles continuously; the transforms
// interpolate between levels, so fractional inputs are well defined.
func (m *SliderModel) structuralAt(dims [NumDimensions]float64) CapacitySliders {
	var out CapacitySliders
	for i := range m.Specs {
		s := &m.Specs[i]
		total := s.Bias
		for j, dim := range s.Dims {
			total += s.Weights[j] * s.Transforms[j].At(dims[dim])
		}
		out[i] = clamp01(total)
	}
	return out
}

// Compute runs both layers: structural baseline plus additive state
// modifiers, clamped to [0,1] per slider. A zero-value ProjectState is
// neutral, so Compute(p, ProjectState{}) equals ComputeStructural(p).
func (m *SliderModel) Compute(p DimensionProfile, state ProjectState) (CapacitySliders, error) {
	out, err := m.ComputeStructural(p)
	if err != nil {
		return CapacitySliders{}, err
	}
	mod := StateModifier(state, p)
	for i := range out {
		out[i] = clamp01(out[i] + mod[i])
	}
	return out, nil
}

// parameters flattens the calibratable weights and biases into one vector.
func (m *SliderModel) parameters() []float64 {
	var params []float64
	for i := range m.Specs {
		params = append(params, m.Specs[i].Weights...)
		params = append(params, m.Specs[i].Bias)
	}
	return params
}

// setParameters writes a flat parameter vector back into the model.
func (m *SliderModel) setParameters(params []float64) {
	idx := 0
	for i := range m.Specs {
		s := &m.Specs[i]
		for j := range s.Weights {
			s.Weights[j] = params[idx]
			idx++
		}
		s.Bias = params[idx]
		idx++
	}
}

// parameterBounds returns the box constraints per parameter: weights stay in
// [-1,1], biases in [-0.5,0.5].
func (m *SliderModel) parameterBounds() (lo, hi []float64) {
	for i := range m.Specs {
		for range m.Specs[i].Weights {
			lo = append(lo, -1.0)
			hi = append(hi, 1.0)
		}
		lo = append(lo, -0.5)
		hi = append(hi, 0.5)
	}
	return lo, hi
}

// Layer 2: state modifiers. These capture information the 8 dimensions
// structurally cannot encode: where the project has been, not what it is.

// Phase is the project lifecycle phase.
type Phase string

// CrisisLevel describes how far an active crisis has progressed.
type CrisisLevel string

// Culture is the delivery culture descriptor.
type Culture string

// Erosion is the resource erosion level for legacy/declining projects.
type Erosion string

const (
	PhasePlanning       Phase = "planning"
	PhaseEarlyExecution Phase = "early_execution"
	PhaseExecution      Phase = "execution"
	PhaseLateExecution  Phase = "late_execution"
	PhaseTransition     Phase = "transition"
	PhaseMaintenance    Phase = "maintenance"

	CrisisNone     CrisisLevel = "none"
	CrisisEmerging CrisisLevel = "emerging"
	CrisisAcute    CrisisLevel = "acute"
	CrisisTerminal CrisisLevel = "terminal"

	CultureTraditional  Culture = "traditional"
	CultureHybrid       Culture = "hybrid"
	CultureDevOpsNative Culture = "devops_native"

	ErosionNone     Erosion = "none"
	ErosionModerate Erosion = "moderate"
	ErosionSevere   Erosion = "severe"
)

// ProjectState is the Layer-2 context beyond dimensions. The zero value (and
// DefaultProjectState) applies no modifier, so the state layer is opt-in.
type ProjectState struct {
	Phase   Phase       `yaml:"phase"`
	Crisis  CrisisLevel `yaml:"crisis"`
	Culture Culture     `yaml:"culture"`
	Erosion Erosion     `yaml:"erosion"`
}

// DefaultProjectState is the neutral state: steady execution, no crisis,
// traditional culture, no erosion.
func DefaultProjectState() ProjectState {
	return ProjectState{
		Phase:   PhaseExecution,
		Crisis:  CrisisNone,
		Culture: CultureTraditional,
		Erosion: ErosionNone,
	}
}

// String renders the non-neutral parts of the state, or "(structural only)".
func (s ProjectState) String() string {
	var parts []string
	if s.Phase != "" && s.Phase != PhaseExecution {
		parts = append(parts, fmt.Sprintf("phase=%s", s.Phase))
	}
	if s.Crisis != "" && s.Crisis != CrisisNone {
		parts = append(parts, fmt.Sprintf("crisis=%s", s.Crisis))
	}
	if s.Culture != "" && s.Culture != CultureTraditional {
		parts = append(parts, fmt.Sprintf("culture=%s", s.Culture))
	}
	if s.Erosion != "" && s.Erosion != ErosionNone {
		parts = append(parts, fmt.Sprintf("erosion=%s", s.Erosion))
	}
	if len(parts) == 0 {
		return "(structural only)"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// Modifier rows adjust [Investment, Recovery, Overwork, Time] additively.
// Unknown keys fall through to a zero modifier.

var phaseModifiers = map[Phase][NumSliders]float64{
	PhasePlanning:       {0.05, 0.05, -0.20, 0.35}, // no execution pressure, time abundant
	PhaseEarlyExecution: {0.00, 0.00, -0.05, 0.05},
	PhaseExecution:      {0.00, 0.00, 0.00, 0.00},
	PhaseLateExecution:  {-0.05, -0.05, 0.10, -0.15}, // crunch time, resources thinning
	PhaseTransition:     {-0.05, 0.00, 0.05, -0.10},
	PhaseMaintenance:    {0.00, 0.05, -0.10, 0.05},
}

var crisisModifiers = map[CrisisLevel][NumSliders]float64{
	CrisisNone:     {0.00, 0.00, 0.00, 0.00},
	CrisisEmerging: {-0.05, -0.05, 0.08, -0.05},
	CrisisAcute:    {-0.15, -0.10, 0.20, -0.25}, // resources spent, recovery eroded
	CrisisTerminal: {-0.25, -0.20, 0.25, -0.35},
}

var cultureModifiers = map[Culture][NumSliders]float64{
	CultureTraditional:  {0.00, 0.00, 0.00, 0.00},
	CultureHybrid:       {0.00, 0.05, -0.05, 0.00},
	CultureDevOpsNative: {-0.05, 0.15, -0.20, 0.00},
}

var erosionModifiers = map[Erosion][NumSliders]float64{
	ErosionNone:     {0.00, 0.00, 0.00, 0.00},
	ErosionModerate: {-0.15, -0.05, -0.05, 0.00}, // budget cuts, team shrinking
	ErosionSevere:   {-0.25, -0.15, -0.10, -0.05},
}

// StateModifier sums the applicable Layer-2 adjustments for a state.
//
// The culture modifier is gated on the profile: a DevOps/hybrid culture bonus
// only applies when D5 < 4 or D8 < 4, because high team stability and
// coherence already carry the culture's benefits through the structural
// baseline; applying both would double-count.
func StateModifier(state ProjectState, p DimensionProfile) [NumSliders]float64 {
	var mod [NumSliders]float64
	add := func(row [NumSliders]float64) {
		for i := range mod {
			mod[i] += row[i]
		}
	}
	add(phaseModifiers[state.Phase])
	add(crisisModifiers[state.Crisis])
	add(erosionModifiers[state.Erosion])

	if state.Culture == CultureHybrid || state.Culture == CultureDevOpsNative {
		if p[DimTeamStability] >= 4 && p[DimCoherence] >= 4 {
			return mod // culture already captured by the baseline
		}
	}
	add(cultureModifiers[state.Culture])
	return mod
}
