package capops

import "math"

// Cost-model constants. Shared across all archetypes; the archetype-specific
// inputs are the floors derived from its dimension profile.
const (
	// BufferWeight is how much maturity one unit of buffering capacity is
	// worth: recovery buffers the capability floor, overwork the
	// operational floor.
	BufferWeight = 0.15

	// CostThreshold is the net cost an organisation can absorb before the
	// position stops being sustainable.
	CostThreshold = 0.35

	// debtFloor is the average maturity below which compounding debt accrues.
	debtFloor = 0.30

	// processRate and executionRate price the upkeep of high capability and
	// high operations respectively.
	processRate   = 0.45
	executionRate = 0.35

	// reliefRate converts investment capacity into cost relief.
	reliefRate = 0.10

	// balancedBand is the |cap−ops| width treated as "Balanced" when
	// reporting gap direction.
	balancedBand = 0.02
)

// CapFloor is the minimum viable capability given the project's stakes.
// Driven by consequence, complexity, regulation and outsourcing; capped at
// 0.80 so no archetype needs near-perfect capability just to exist.
func CapFloor(p DimensionProfile) float64 {
	floor := 0.10 +
		0.15*p.norm(DimConsequence) +
		0.10*p.norm(DimComplexity) +
		0.15*p.norm(DimRegulation) +
		0.05*p.norm(DimOutsourcing)
	return math.Min(floor, 0.80)
}

// OpsFloor is the minimum sufficient operational maturity given market
// demands. Driven by market pressure and complexity; capped at 0.60.
func OpsFloor(p DimensionProfile) float64 {
	floor := 0.08 +
		0.20*p.norm(DimMarketPressure) +
		0.10*p.norm(DimComplexity)
	return math.Min(floor, 0.60)
}

// GapDirection classifies which maturity leads at a position.
type GapDirection string

const (
	GapBalanced GapDirection = "Balanced"
	GapCapHeavy GapDirection = "Cap>Ops"
	GapOpsHeavy GapDirection = "Ops>Cap"
)

// CostBreakdown is the full sustainability cost decomposition at one grid
// position. The compensator fields are descriptive metadata: they name which
// capacity is absorbing a cost, not an input to the pass/fail computation.
type CostBreakdown struct {
	// Position info.
	Cap, Ops     float64
	Gap          float64
	GapDirection GapDirection

	// Floors and headroom against them.
	CapFloor, OpsFloor       float64
	CapHeadroom, OpsHeadroom float64

	// Individual cost components, each >= 0.
	GapCost       float64
	DebtCost      float64
	ProcessCost   float64
	ExecutionCost float64

	// Which slider compensates the gap (Time, Recovery or Overwork) and the
	// capacity sustaining execution cadence.
	GapCompensator       string
	GapCompensatorValue  float64
	ExecCompensator      string
	ExecCompensatorValue float64

	// Totals. Headroom = Threshold − NetCost; Sustainable iff Headroom >= 0.
	TotalCost        float64
	InvestmentRelief float64
	NetCost          float64
	Threshold        float64
	Headroom         float64
	Sustainable      bool

	// The largest single cost component.
	DominantCost  string
	DominantValue float64
}

// EvaluatePosition scores one grid position with the three-test model and
// returns the full cost decomposition alongside. Pure: same inputs, same
// outputs, no side effects.
func EvaluatePosition(p DimensionProfile, s CapacitySliders, pos GridPosition) (ViabilityScore, CostBreakdown, error) {
	if err := p.Validate(); err != nil {
		return ViabilityScore{}, CostBreakdown{}, err
	}
	if err := s.Validate(); err != nil {
		return ViabilityScore{}, CostBreakdown{}, err
	}
	if err := pos.Validate(); err != nil {
		return ViabilityScore{}, CostBreakdown{}, err
	}
	return scoreAt(p, s, pos.Cap, pos.Ops), costAt(p, s, pos.Cap, pos.Ops), nil
}

// RawMargins returns the pre-sigmoid margins of the three tests: positive
// means passing, negative failing, and the magnitude says how far inside or
// outside the zone the position sits.
func RawMargins(p DimensionProfile, s CapacitySliders, pos GridPosition) (viable, sufficient, sustainable float64, err error) {
	if err := p.Validate(); err != nil {
		return 0, 0, 0, err
	}
	if err := s.Validate(); err != nil {
		return 0, 0, 0, err
	}
	if err := pos.Validate(); err != nil {
		return 0, 0, 0, err
	}
	viable, sufficient, sustainable = marginsAt(p, s, pos.Cap, pos.Ops)
	return viable, sufficient, sustainable, nil
}

// marginsAt computes the three raw margins without validation (hot path for
// the grid sweep).
func marginsAt(p DimensionProfile, s CapacitySliders, cap, ops float64) (vm, sm, um float64) {
	// Viable: recovery buffers the capability floor.
	effectiveCap := cap + s[SliderRecovery]*BufferWeight
	vm = (effectiveCap - CapFloor(p)) / Temperature

	// Sufficient: overwork buffers the operational floor.
	effectiveOps := ops + s[SliderOverwork]*BufferWeight
	sm = (effectiveOps - OpsFloor(p)) / Temperature

	// Sustainable: cost model against the shared threshold.
	um = (CostThreshold - netCostAt(s, cap, ops)) / Temperature
	return vm, sm, um
}

// scoreAt squashes the margins into the three scores plus their product.
func scoreAt(p DimensionProfile, s CapacitySliders, cap, ops float64) ViabilityScore {
	vm, sm, um := marginsAt(p, s, cap, ops)
	v := sigmoid(vm)
	su := sigmoid(sm)
	st := sigmoid(um)
	return ViabilityScore{
		Viable:      v,
		Sufficient:  su,
		Sustainable: st,
		Combined:    v * su * st,
	}
}

// netCostAt is the sustainability cost arithmetic shared by the margin and
// breakdown paths.
func netCostAt(s CapacitySliders, cap, ops float64) float64 {
	investment := s[SliderInvestment]
	recovery := s[SliderRecovery]
	overwork := s[SliderOverwork]
	timeCap := s[SliderTime]

	// Gap cost: off-diagonal positions are inherently costly. Cap leading
	// means process without execution (Time absorbs it); Ops leading means
	// execution without process (Overwork or Recovery absorbs it; resilient
	// automation is an alternative to human effort).
	gap := math.Abs(cap - ops)
	var gapCost float64
	if cap > ops {
		gapCost = gap * (1.0 - timeCap)
	} else {
		gapCost = gap * (1.0 - math.Max(overwork, recovery))
	}

	// Debt cost: very low maturity accumulates compounding debt.
	avgMaturity := (cap + ops) / 2.0
	debtCost := math.Max(0.0, debtFloor-avgMaturity) * 2.0

	// Process maintenance: high capability needs investment to keep
	// governance, documentation and quality gates alive.
	processCost := cap * processRate * (1.0 - investment)

	// Execution overhead: high operations need capacity to sustain delivery
	// cadence, monitoring and incident response.
	bestOpsCapacity := math.Max(overwork, math.Max(timeCap, recovery))
	executionCost := ops * executionRate * (1.0 - bestOpsCapacity)

	total := gapCost + debtCost + processCost + executionCost
	return total - investment*reliefRate
}

// costAt produces the full decomposition without validation.
func costAt(p DimensionProfile, s CapacitySliders, cap, ops float64) CostBreakdown {
	investment := s[SliderInvestment]
	recovery := s[SliderRecovery]
	overwork := s[SliderOverwork]
	timeCap := s[SliderTime]

	capFloor := CapFloor(p)
	opsFloor := OpsFloor(p)

	gap := math.Abs(cap - ops)
	var (
		direction   GapDirection
		gapCost     float64
		compensator string
		compValue   float64
	)
	switch {
	case gap < balancedBand:
		direction = GapBalanced
		compensator = "none"
	case cap > ops:
		direction = GapCapHeavy
		gapCost = gap * (1.0 - timeCap)
		compensator = SliderNames[SliderTime]
		compValue = timeCap
	default:
		direction = GapOpsHeavy
		gapCost = gap * (1.0 - math.Max(overwork, recovery))
		compValue = math.Max(overwork, recovery)
		if recovery >= overwork {
			compensator = SliderNames[SliderRecovery]
		} else {
			compensator = SliderNames[SliderOverwork]
		}
	}

	avgMaturity := (cap + ops) / 2.0
	debtCost := math.Max(0.0, debtFloor-avgMaturity) * 2.0
	processCost := cap * processRate * (1.0 - investment)

	bestOpsCapacity := math.Max(overwork, math.Max(timeCap, recovery))
	var execCompensator string
	switch {
	case timeCap >= overwork && timeCap >= recovery:
		execCompensator = SliderNames[SliderTime]
	case recovery >= overwork:
		execCompensator = SliderNames[SliderRecovery]
	default:
		execCompensator = SliderNames[SliderOverwork]
	}
	executionCost := ops * executionRate * (1.0 - bestOpsCapacity)

	total := gapCost + debtCost + processCost + executionCost
	relief := investment * reliefRate
	net := total - relief
	headroom := CostThreshold - net

	dominant := "Gap cost"
	dominantValue := gapCost
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"Debt cost", debtCost},
		{"Process cost", processCost},
		{"Execution cost", executionCost},
	} {
		if c.value > dominantValue {
			dominant = c.name
			dominantValue = c.value
		}
	}

	return CostBreakdown{
		Cap:                  cap,
		Ops:                  ops,
		Gap:                  gap,
		GapDirection:         direction,
		CapFloor:             capFloor,
		OpsFloor:             opsFloor,
		CapHeadroom:          cap - capFloor,
		OpsHeadroom:          ops - opsFloor,
		GapCost:              gapCost,
		DebtCost:             debtCost,
		ProcessCost:          processCost,
		ExecutionCost:        executionCost,
		GapCompensator:       compensator,
		GapCompensatorValue:  compValue,
		ExecCompensator:      execCompensator,
		ExecCompensatorValue: bestOpsCapacity,
		TotalCost:            total,
		InvestmentRelief:     relief,
		NetCost:              net,
		Threshold:            CostThreshold,
		Headroom:             headroom,
		Sustainable:          headroom >= 0,
		DominantCost:         dominant,
		DominantValue:        dominantValue,
	}
}

// EffectiveCapFloor is the capability floor after recovery buffering,
// clamped at zero.
func EffectiveCapFloor(p DimensionProfile, s CapacitySliders) float64 {
	return math.Max(0, CapFloor(p)-s[SliderRecovery]*BufferWeight)
}

// EffectiveOpsFloor is the operational floor after overwork buffering,
// clamped at zero.
func EffectiveOpsFloor(p DimensionProfile, s CapacitySliders) float64 {
	return math.Max(0, OpsFloor(p)-s[SliderOverwork]*BufferWeight)
}
