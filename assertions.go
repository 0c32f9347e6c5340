package capops

import (
	"math"
	"testing"
)

// InvariantConfig contains thresholds for model invariant assertions.
type InvariantConfig struct {
	// Maximum |difference| treated as equal when comparing scores.
	ScoreTolerance float64

	// Violations of monotonicity smaller than this are float noise, not
	// model defects.
	MonotonicSlack float64
}

// DefaultInvariantConfig returns conservative thresholds.
func DefaultInvariantConfig() InvariantConfig {
	return InvariantConfig{
		ScoreTolerance: 1e-12, // pure float arithmetic should agree exactly
		MonotonicSlack: 1e-9,
	}
}

// AssertDeterministic verifies that two full grid sweeps of the same inputs
// agree cell for cell. The sweep is parallel across rows; any divergence
// means a data race or hidden state.
func AssertDeterministic(t *testing.T, p DimensionProfile, s CapacitySliders, cfg InvariantConfig) {
	t.Helper()

	first, err := SweepGrid(p, s)
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	second, err := SweepGrid(p, s)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}

	diffs := 0
	for i := range first.Cells {
		for j := range first.Cells[i] {
			if math.Abs(first.Cells[i][j].Combined-second.Cells[i][j].Combined) > cfg.ScoreTolerance {
				diffs++
			}
		}
	}
	if diffs > 0 {
		t.Errorf("Sweep is non-deterministic: %d of %d cells differ between runs.\n"+
			"Evaluation must be pure; check for shared mutable state in the row workers.",
			diffs, first.Resolution*first.Resolution)
		return
	}
	t.Logf("✓ Deterministic: %d cells agree across repeated sweeps", first.Resolution*first.Resolution)
}

// AssertViableMonotonicInCap verifies the viability score never decreases as
// capability increases with everything else fixed.
//
// Mathematical property:
//
//	∂viable/∂cap > 0 everywhere (the sigmoid is strictly increasing and
//	cap enters its margin positively)
func AssertViableMonotonicInCap(t *testing.T, p DimensionProfile, s CapacitySliders, ops float64, cfg InvariantConfig) {
	t.Helper()

	grid, err := SweepGrid(p, s)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	row := int(math.Round(ops * float64(grid.Resolution-1)))
	violations := 0
	for j := 1; j < grid.Resolution; j++ {
		if grid.Cells[row][j].Viable < grid.Cells[row][j-1].Viable-cfg.MonotonicSlack {
			violations++
		}
	}
	if violations > 0 {
		t.Errorf("Viable score not monotone in cap at ops=%.2f: %d decreasing steps", ops, violations)
		return
	}
	t.Logf("✓ Viable monotone in cap along ops=%.2f", ops)
}

// AssertSufficientMonotonicInOps verifies the sufficiency score never
// decreases as operational maturity increases with everything else fixed.
func AssertSufficientMonotonicInOps(t *testing.T, p DimensionProfile, s CapacitySliders, cap float64, cfg InvariantConfig) {
	t.Helper()

	grid, err := SweepGrid(p, s)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	col := int(math.Round(cap * float64(grid.Resolution-1)))
	violations := 0
	for i := 1; i < grid.Resolution; i++ {
		if grid.Cells[i][col].Sufficient < grid.Cells[i-1][col].Sufficient-cfg.MonotonicSlack {
			violations++
		}
	}
	if violations > 0 {
		t.Errorf("Sufficient score not monotone in ops at cap=%.2f: %d decreasing steps", cap, violations)
		return
	}
	t.Logf("✓ Sufficient monotone in ops along cap=%.2f", cap)
}

// AssertZoneAreaInRange verifies the reported zone area is a valid
// percentage.
func AssertZoneAreaInRange(t *testing.T, grid *GridResult) {
	t.Helper()

	area := grid.Zone.ZoneArea
	if area < 0.0 || area > 100.0 {
		t.Errorf("Zone area out of range: %.3f%% (want 0-100%%)", area)
		return
	}
	t.Logf("✓ Zone area in range: %.1f%%", area)
}

// AssertBoundaryBehaviour verifies the grid corners behave as the model
// promises: the origin with zero capacities fails, full maturity with full
// capacities passes.
func AssertBoundaryBehaviour(t *testing.T, p DimensionProfile) {
	t.Helper()

	worst, _, err := EvaluatePosition(p, CapacitySliders{0, 0, 0, 0}, GridPosition{Cap: 0, Ops: 0})
	if err != nil {
		t.Fatalf("evaluate origin: %v", err)
	}
	if worst.InZone() {
		t.Errorf("Origin with zero capacities should fail, got combined=%.4f", worst.Combined)
	}

	best, _, err := EvaluatePosition(p, CapacitySliders{1, 1, 1, 1}, GridPosition{Cap: 1, Ops: 1})
	if err != nil {
		t.Fatalf("evaluate far corner: %v", err)
	}
	if !best.InZone() {
		t.Errorf("Full maturity with full capacities should pass, got combined=%.4f", best.Combined)
	}

	if !t.Failed() {
		t.Logf("✓ Boundary behaviour: origin fails (%.4f), far corner passes (%.4f)",
			worst.Combined, best.Combined)
	}
}
