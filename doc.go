// Package capops models which combinations of Capability and Operational
// maturity are organisationally viable for a given project archetype.
//
// # Overview
//
// A project is described by an 8-value dimension profile (each dimension
// scored 1-5) and four capacity sliders in [0,1]: Investment, Recovery,
// Overwork and Time. The engine answers one question at any point (cap, ops)
// of the maturity grid: can an organisation with these capacities hold this
// position?
//
// # The Three-Test Model
//
// Every grid position is scored by three independent sigmoid tests:
//
//	viable      = σ((cap + 0.15·recovery − cap_floor) / τ)
//	sufficient  = σ((ops + 0.15·overwork − ops_floor) / τ)
//	sustainable = σ((0.35 − net_cost) / τ)
//
// with σ(x) = 1/(1+e^(−12x)) and temperature τ = 0.08. The combined score is
// the product of the three; a position is inside the viable zone when the
// combined score reaches 0.5. Recovery buffers the capability floor, overwork
// buffers the operational floor, and the sustainability test runs a cost
// model with four components:
//
//	gap_cost       = |cap − ops| · (1 − compensator)
//	debt_cost      = max(0, 0.30 − (cap+ops)/2) · 2
//	process_cost   = cap · 0.45 · (1 − investment)
//	execution_cost = ops · 0.35 · (1 − max(overwork, time, recovery))
//
// minus an investment relief of 0.10·investment. The gap compensator is Time
// when capability leads, and the better of Overwork and Recovery when
// operations lead.
//
// # The Two-Layer Mapper
//
// Slider values are derived from the dimension profile by a two-layer model.
// Layer 1 is a calibrated structural baseline:
//
//	S_i = clamp(b_i + Σ_j w_ij · T_ij(D_j), 0, 1)
//
// where each T_ij is a fixed piecewise-linear transform of one dimension and
// the weights w_ij and biases b_i are fitted offline (see Calibrate) against
// twelve validated reference profiles. Layer 2 adds state modifiers (project
// phase, crisis level, delivery culture, resource erosion) that encode where
// a project HAS BEEN rather than what it structurally IS. Modifiers are
// domain-derived lookup tables, not fitted.
//
// # Quick Start
//
//	model := capops.NewSliderModel()
//
//	profile := capops.DimensionProfile{5, 1, 4, 5, 4, 3, 3, 3}
//	sliders, err := model.ComputeStructural(profile)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	score, cost, err := capops.EvaluatePosition(profile, sliders,
//	    capops.GridPosition{Cap: 0.70, Ops: 0.35})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("combined: %.3f (in zone: %v)\n", score.Combined, score.InZone())
//	fmt.Printf("net cost: %.3f (headroom: %+.3f)\n", cost.NetCost, cost.Headroom)
//
// Sweep the whole grid and characterise an archetype's viable region:
//
//	grid, err := capops.SweepGrid(profile, sliders)
//	fmt.Printf("zone area: %.1f%% of grid\n", grid.Zone.ZoneArea)
//
// # Sensitivity Analysis
//
// AnalyseSensitivity sweeps each slider across its full range and tests all
// six slider pairs for interaction effects. Sweeps are memoised in an
// explicit SweepCache so repeated analyses pay first-touch cost only:
//
//	cache := capops.NewSweepCache()
//	a, _ := capops.DefaultArchetypes().Get("Regulated Stage-Gate")
//
//	sens, err := capops.AnalyseSensitivity(cache, a.Profile, a.Sliders)
//	fmt.Printf("dominant slider: %s\n", sens.DominantSlider)
//
// A pair whose joint effect is materially worse than the additive prediction
// is flagged toxic: losing both capacities compounds rather than adds.
//
// # Determinism
//
// Every operation is a pure function of (profile, sliders, position) once the
// weight table is loaded. There is no hidden state; repeated calls return
// bit-identical results, and all grid cells are independent, so sweeps run
// row-parallel with no locking discipline.
//
// # Testing
//
// Use the assertion helpers to validate model properties in your own suites:
//
//	func TestMyArchetype(t *testing.T) {
//	    cfg := capops.DefaultInvariantConfig()
//	    capops.AssertDeterministic(t, profile, sliders, cfg)
//	    capops.AssertViableMonotonicInCap(t, profile, sliders, 0.35, cfg)
//	    capops.AssertBoundaryBehaviour(t, profile)
//	}
package capops
