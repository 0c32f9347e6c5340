package capops

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// MarginClip bounds the pre-sigmoid combined margin stored per grid cell,
// giving renderers a smooth gradient instead of the near-binary sigmoid
// output.
const MarginClip = 4.0

// Range is a closed [Min, Max] interval on one grid axis.
type Range struct {
	Min float64
	Max float64
}

// ZoneMetrics summarise the viable zone extracted from one grid sweep.
type ZoneMetrics struct {
	// ZoneArea is the percentage of grid cells with combined >= PassThreshold.
	ZoneArea float64

	// CapRange and OpsRange bound the zone along each axis: the lowest and
	// highest value at which some point on the other axis is inside the zone.
	// Both are {0,0} when the zone is empty.
	CapRange Range
	OpsRange Range

	// CapFloor and OpsFloor are the effective floors after slider buffering.
	CapFloor float64
	OpsFloor float64
}

// GridResult is one full sweep of the maturity grid for a fixed
// (profile, sliders) pair.
//
// Cells and Margins are indexed [opsIdx][capIdx]: row 0 is Ops = 0%, column 0
// is Cap = 0%. Margins holds the combined pre-sigmoid margin per cell,
// clipped to [−MarginClip, MarginClip]; its sign always agrees with the
// cell's zone membership.
type GridResult struct {
	Resolution int
	Cells      [][]ViabilityScore
	Margins    [][]float64
	Zone       ZoneMetrics
}

// At returns the score of the cell nearest to a position.
func (g *GridResult) At(pos GridPosition) ViabilityScore {
	n := g.Resolution - 1
	i := int(clamp01(pos.Ops)*float64(n) + 0.5)
	j := int(clamp01(pos.Cap)*float64(n) + 0.5)
	return g.Cells[i][j]
}

// SweepGrid evaluates the three-test model at every cell of the
// GridResolution×GridResolution lattice and extracts the zone metrics.
//
// Cells are independent, so rows are evaluated in parallel; results are
// deterministic regardless of scheduling.
func SweepGrid(p DimensionProfile, s CapacitySliders) (*GridResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	res := GridResolution
	cells := make([][]ViabilityScore, res)
	margins := make([][]float64, res)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < res; i++ {
		i := i
		g.Go(func() error {
			ops := float64(i) / float64(res-1)
			row := make([]ViabilityScore, res)
			marginRow := make([]float64, res)
			for j := 0; j < res; j++ {
				cap := float64(j) / float64(res-1)
				row[j] = scoreAt(p, s, cap, ops)

				vm, sm, um := marginsAt(p, s, cap, ops)
				marginRow[j] = clipMargin(combinedMargin(vm, sm, um))
			}
			cells[i] = row
			margins[i] = marginRow
			return nil
		})
	}
	// Workers cannot fail: inputs were validated up front.
	_ = g.Wait()

	result := &GridResult{
		Resolution: res,
		Cells:      cells,
		Margins:    margins,
	}
	result.Zone = extractZone(result, p, s)
	return result, nil
}

// extractZone derives the zone metrics from a completed sweep.
func extractZone(g *GridResult, p DimensionProfile, s CapacitySliders) ZoneMetrics {
	res := g.Resolution
	inZone := 0
	capAny := make([]bool, res) // some ops makes this cap column viable
	opsAny := make([]bool, res)

	for i := 0; i < res; i++ {
		for j := 0; j < res; j++ {
			if g.Cells[i][j].InZone() {
				inZone++
				capAny[j] = true
				opsAny[i] = true
			}
		}
	}

	metrics := ZoneMetrics{
		ZoneArea: float64(inZone) / float64(res*res) * 100.0,
		CapRange: axisRange(capAny, res),
		OpsRange: axisRange(opsAny, res),
		CapFloor: EffectiveCapFloor(p, s),
		OpsFloor: EffectiveOpsFloor(p, s),
	}
	return metrics
}

// axisRange converts a per-index "any cell viable" projection into the axis
// interval of the zone.
func axisRange(any []bool, res int) Range {
	first, last := -1, -1
	for i, ok := range any {
		if !ok {
			continue
		}
		if first == -1 {
			first = i
		}
		last = i
	}
	if first == -1 {
		return Range{}
	}
	return Range{
		Min: float64(first) / float64(res-1),
		Max: float64(last) / float64(res-1),
	}
}

// combinedMargin folds the three raw margins into one pre-sigmoid margin
// whose zero crossing is the PassThreshold contour of the product score:
// it is the inverse sigmoid of the combined score. Taking the binding
// (smallest) margin instead leaves a thin band where every test clears 0.5
// individually but their product does not, and the margin sign would
// contradict zone membership there. Far from the boundary, where the other
// two sigmoids saturate, this tends to the binding margin anyway.
//
// The product is assembled in log space: near 1.0 the combined score loses
// all resolution in a float64, which would flatten the gradient deep inside
// the zone.
func combinedMargin(vm, sm, um float64) float64 {
	const k = SigmoidK
	logC := logSigmoid(k*vm) + logSigmoid(k*sm) + logSigmoid(k*um)
	oneMinusC := -math.Expm1(logC)
	if oneMinusC <= 0 {
		return MarginClip
	}
	return (logC - math.Log(oneMinusC)) / k
}

// logSigmoid is ln(1/(1+e^-x)) without overflow on either tail.
func logSigmoid(x float64) float64 {
	if x >= 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}

func clipMargin(m float64) float64 {
	if m > MarginClip {
		return MarginClip
	}
	if m < -MarginClip {
		return -MarginClip
	}
	return m
}
