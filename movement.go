package capops

import (
	"fmt"
	"math"
)

// PathStep is one point along an archetype transition path.
type PathStep struct {
	T float64

	// Profile is the blended dimension vector rounded to the nearest valid
	// integer levels; Sliders and Position blend continuously.
	Profile  DimensionProfile
	Sliders  CapacitySliders
	Position GridPosition

	ZoneArea float64
	Score    ViabilityScore
	InZone   bool
	Binding  string
}

// TransitionPath is a full interpolated transition between two archetypes.
type TransitionPath struct {
	From, To string
	Steps    []PathStep

	ZoneAreaStart float64
	ZoneAreaEnd   float64

	// Precarity marks the first step at which the path drops out of the
	// zone after having been inside it. A path can be precarious even when
	// both endpoints are viable: the intermediate organisational shapes
	// are what kill transitions. A path that starts outside the zone never
	// had viability to lose, so it is not flagged; Steps[0].InZone tells
	// that story.
	Precarity  bool
	PrecarityT float64
}

// Interpolate walks the straight line between two archetypes in steps points
// (inclusive of both ends). At each t the dimension vector blends linearly
// and rounds to the nearest integer levels, the grid position blends
// continuously, and the sliders are re-derived from the blended (fractional)
// dimension vector through the mapper. Deriving rather than blending sliders
// keeps them consistent with the structure they respond to: a dimension
// moving monotonically drags its sliders monotonically with it.
func Interpolate(model *SliderModel, cache *SweepCache, from, to Archetype, steps int) (TransitionPath, error) {
	if model == nil {
		return TransitionPath{}, fmt.Errorf("interpolate: nil model")
	}
	if steps < 2 {
		return TransitionPath{}, fmt.Errorf("interpolate: need at least 2 steps, got %d", steps)
	}
	if err := from.Validate(); err != nil {
		return TransitionPath{}, err
	}
	if err := to.Validate(); err != nil {
		return TransitionPath{}, err
	}
	if cache == nil {
		cache = NewSweepCache()
	}

	path := TransitionPath{
		From:  from.Name,
		To:    to.Name,
		Steps: make([]PathStep, 0, steps),
	}

	wasInZone := false
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)

		var blended [NumDimensions]float64
		var profile DimensionProfile
		for d := 0; d < NumDimensions; d++ {
			blended[d] = float64(from.Profile[d]) + t*float64(to.Profile[d]-from.Profile[d])
			profile[d] = int(math.Round(blended[d]))
		}

		sliders := model.structuralAt(blended)
		pos := GridPosition{
			Cap: from.Position.Cap + t*(to.Position.Cap-from.Position.Cap),
			Ops: from.Position.Ops + t*(to.Position.Ops-from.Position.Ops),
		}

		grid, err := cache.Grid(profile, sliders)
		if err != nil {
			return TransitionPath{}, err
		}
		score, _, err := EvaluatePosition(profile, sliders, pos)
		if err != nil {
			return TransitionPath{}, err
		}

		step := PathStep{
			T:        t,
			Profile:  profile,
			Sliders:  sliders,
			Position: pos,
			ZoneArea: grid.Zone.ZoneArea,
			Score:    score,
			InZone:   score.InZone(),
			Binding:  score.Binding(),
		}
		if step.InZone {
			wasInZone = true
		} else if wasInZone && !path.Precarity {
			path.Precarity = true
			path.PrecarityT = t
		}
		path.Steps = append(path.Steps, step)
	}

	path.ZoneAreaStart = path.Steps[0].ZoneArea
	path.ZoneAreaEnd = path.Steps[len(path.Steps)-1].ZoneArea
	return path, nil
}

// RetrodictionStage is one labelled point in a project's history, described
// by the full project state in effect at that point.
type RetrodictionStage struct {
	Label string
	State ProjectState
}

// RetrodictionStep is the model's assessment of one stage.
type RetrodictionStep struct {
	Label   string
	State   ProjectState
	Sliders CapacitySliders

	Zone     ZoneMetrics
	ZoneArea float64
	Score    ViabilityScore
	InZone   bool
	Binding  string
}

// Retrodiction replays a project's history through the model. Steps[0] is the
// structural baseline (no state applied); each following step applies one
// stage's state.
type Retrodiction struct {
	Profile  DimensionProfile
	Position GridPosition
	Steps    []RetrodictionStep

	// CollapseStage indexes the first stage (in Steps, so the baseline is
	// stage 0) whose position falls out of the zone, or -1 when the
	// position stays viable throughout.
	CollapseStage int
}

// Collapsed reports whether any stage dropped the position out of the zone.
func (r Retrodiction) Collapsed() bool { return r.CollapseStage >= 0 }

// Retrodict asks whether the model would have predicted a known outcome:
// hold the structure and position fixed, apply each historical stage's state,
// and watch where the viable zone goes. A model that cannot retrodict a real
// collapse is not explaining it.
func Retrodict(model *SliderModel, cache *SweepCache, profile DimensionProfile, position GridPosition, stages []RetrodictionStage) (Retrodiction, error) {
	if model == nil {
		return Retrodiction{}, fmt.Errorf("retrodict: nil model")
	}
	if err := profile.Validate(); err != nil {
		return Retrodiction{}, err
	}
	if err := position.Validate(); err != nil {
		return Retrodiction{}, err
	}
	if cache == nil {
		cache = NewSweepCache()
	}

	result := Retrodiction{
		Profile:       profile,
		Position:      position,
		Steps:         make([]RetrodictionStep, 0, len(stages)+1),
		CollapseStage: -1,
	}

	appendStep := func(label string, state ProjectState) error {
		sliders, err := model.Compute(profile, state)
		if err != nil {
			return err
		}
		grid, err := cache.Grid(profile, sliders)
		if err != nil {
			return err
		}
		score, _, err := EvaluatePosition(profile, sliders, position)
		if err != nil {
			return err
		}
		step := RetrodictionStep{
			Label:    label,
			State:    state,
			Sliders:  sliders,
			Zone:     grid.Zone,
			ZoneArea: grid.Zone.ZoneArea,
			Score:    score,
			InZone:   score.InZone(),
			Binding:  score.Binding(),
		}
		if !step.InZone && result.CollapseStage < 0 {
			result.CollapseStage = len(result.Steps)
		}
		result.Steps = append(result.Steps, step)
		return nil
	}

	if err := appendStep("baseline", ProjectState{}); err != nil {
		return Retrodiction{}, err
	}
	for _, stage := range stages {
		if err := appendStep(stage.Label, stage.State); err != nil {
			return Retrodiction{}, err
		}
	}
	return result, nil
}

// Verdict classifies how a position sustains itself, separating genuinely
// healthy positions from those surviving on a compensating capacity.
type Verdict string

const (
	VerdictUnsustainable          Verdict = "Unsustainable"
	VerdictSurvivingOnOverwork    Verdict = "Surviving on overwork"
	VerdictGenuinelySustainable   Verdict = "Genuinely sustainable"
	VerdictSustainableCompensated Verdict = "Sustainable (compensated)"
	VerdictMarginal               Verdict = "Marginal"
)

// Decomposition pairs the cost breakdown at a position with a verdict on how
// the position is being sustained.
type Decomposition struct {
	Score   ViabilityScore
	Costs   CostBreakdown
	Verdict Verdict
}

// DecomposePosition evaluates a position and classifies its sustainability
// mode. Two positions with identical sustainable scores can earn different
// verdicts: one absorbs its gap with deliberate pacing, the other with
// overtime that cannot last.
func DecomposePosition(p DimensionProfile, s CapacitySliders, pos GridPosition) (Decomposition, error) {
	score, costs, err := EvaluatePosition(p, s, pos)
	if err != nil {
		return Decomposition{}, err
	}

	var verdict Verdict
	switch {
	case score.Sustainable < PassThreshold:
		verdict = VerdictUnsustainable
	case s[SliderOverwork] > 0.6 && costs.GapCost > 0.05 && costs.GapDirection == GapOpsHeavy:
		verdict = VerdictSurvivingOnOverwork
	case score.Sustainable > 0.9 && (costs.TotalCost < 0.01 || costs.GapCost/math.Max(costs.TotalCost, 0.001) < 0.3):
		verdict = VerdictGenuinelySustainable
	case score.Sustainable > 0.9:
		verdict = VerdictSustainableCompensated
	default:
		verdict = VerdictMarginal
	}

	return Decomposition{Score: score, Costs: costs, Verdict: verdict}, nil
}
