package capops

import (
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestSweepCache_MatchesFreshSweep verifies a cached grid is identical to a
// freshly computed one for the same key.
func TestSweepCache_MatchesFreshSweep(t *testing.T) {
	p, s, _ := regulatedStageGate()
	cache := NewSweepCache()

	cached, err := cache.Grid(p, s)
	if err != nil {
		t.Fatalf("cached sweep: %v", err)
	}
	fresh, err := SweepGrid(p, s)
	if err != nil {
		t.Fatalf("fresh sweep: %v", err)
	}

	if diff := cmp.Diff(fresh, cached); diff != "" {
		t.Errorf("❌ cached grid differs from fresh sweep (-fresh +cached):\n%s", diff)
	}
}

func TestSweepCache_SameKeySamePointer(t *testing.T) {
	p, s, _ := regulatedStageGate()
	cache := NewSweepCache()

	first, err := cache.Grid(p, s)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	second, err := cache.Grid(p, s)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if first != second {
		t.Errorf("❌ repeated lookups should return the shared result")
	}
	if cache.Len() != 1 {
		t.Errorf("❌ cache holds %d entries, want 1", cache.Len())
	}
}

// TestSweepCache_ConcurrentSingleEntry hammers one key from many goroutines
// and verifies they all land on a single cache entry.
func TestSweepCache_ConcurrentSingleEntry(t *testing.T) {
	p, s, _ := regulatedStageGate()
	cache := NewSweepCache()

	const goroutines = 16
	results := make([]*GridResult, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			grid, err := cache.Grid(p, s)
			if err != nil {
				t.Errorf("goroutine %d: %v", g, err)
				return
			}
			results[g] = grid
		}(g)
	}
	wg.Wait()

	if cache.Len() != 1 {
		t.Errorf("❌ cache holds %d entries after concurrent access, want 1", cache.Len())
	}
	for g := 1; g < goroutines; g++ {
		if results[g] != results[0] {
			t.Errorf("❌ goroutine %d got a different grid instance", g)
		}
	}
	t.Logf("✓ %d concurrent lookups shared one sweep", goroutines)
}

func TestSweepCache_DistinctKeys(t *testing.T) {
	p, s, _ := regulatedStageGate()
	cache := NewSweepCache()

	if _, err := cache.Grid(p, s); err != nil {
		t.Fatalf("grid: %v", err)
	}
	if _, err := cache.Grid(p, s.With(SliderTime, 0.5)); err != nil {
		t.Fatalf("grid: %v", err)
	}
	if cache.Len() != 2 {
		t.Errorf("❌ cache holds %d entries, want 2", cache.Len())
	}
}

func TestSweepSlider_CoversFullRange(t *testing.T) {
	p, s, _ := regulatedStageGate()
	cache := NewSweepCache()

	sweep, err := SweepSlider(cache, p, s, SliderTime)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if len(sweep.Values) != SweepSteps || len(sweep.ZoneAreas) != SweepSteps {
		t.Fatalf("❌ %d values, %d areas, want %d", len(sweep.Values), len(sweep.ZoneAreas), SweepSteps)
	}
	if sweep.Values[0] != 0.0 || sweep.Values[SweepSteps-1] != 1.0 {
		t.Errorf("❌ sweep range [%.2f, %.2f], want [0, 1]", sweep.Values[0], sweep.Values[SweepSteps-1])
	}
	if sweep.Name != "Time" {
		t.Errorf("❌ sweep name = %q", sweep.Name)
	}
	for i, area := range sweep.ZoneAreas {
		if area < 0.0 || area > 100.0 {
			t.Errorf("❌ zone area %.2f%% at step %d out of range", area, i)
		}
	}
	if sweep.TotalImpact < 0 {
		t.Errorf("❌ negative total impact %.2f", sweep.TotalImpact)
	}
	t.Logf("✓ Time sweep: impact %.1f points, marginal %.2f/0.1 at default %.2f",
		sweep.TotalImpact, sweep.MarginalAtDefault, sweep.Default)
}

func TestSweepSlider_RejectsBadIndex(t *testing.T) {
	p, s, _ := regulatedStageGate()

	if _, err := SweepSlider(nil, p, s, -1); err == nil {
		t.Errorf("❌ slider -1 accepted")
	}
	if _, err := SweepSlider(nil, p, s, NumSliders); err == nil {
		t.Errorf("❌ slider %d accepted", NumSliders)
	}
}

// TestAnalyseInteraction_CornersFromCache verifies the interaction arithmetic
// against its four corner sweeps computed directly.
func TestAnalyseInteraction_CornersFromCache(t *testing.T) {
	p, s, _ := regulatedStageGate()
	cache := NewSweepCache()

	in, err := AnalyseInteraction(cache, p, s, SliderRecovery, SliderTime)
	if err != nil {
		t.Fatalf("interaction: %v", err)
	}

	area := func(sl CapacitySliders) float64 {
		a, err := cache.ZoneArea(p, sl)
		if err != nil {
			t.Fatalf("zone area: %v", err)
		}
		return a
	}

	wantDefault := area(s)
	wantALow := area(s.With(SliderRecovery, InteractionLow))
	wantBLow := area(s.With(SliderTime, InteractionLow))
	wantBoth := area(s.With(SliderRecovery, InteractionLow).With(SliderTime, InteractionLow))

	if in.AreaDefault != wantDefault || in.AreaALow != wantALow ||
		in.AreaBLow != wantBLow || in.AreaBothLow != wantBoth {
		t.Errorf("❌ corner areas disagree with direct sweeps")
	}

	wantPredicted := wantALow + wantBLow - wantDefault
	if math.Abs(in.PredictedBothLow-wantPredicted) > 1e-12 {
		t.Errorf("❌ predicted = %.4f, want %.4f", in.PredictedBothLow, wantPredicted)
	}
	if math.Abs(in.Strength-(wantBoth-wantPredicted)) > 1e-12 {
		t.Errorf("❌ strength = %.4f, want %.4f", in.Strength, wantBoth-wantPredicted)
	}
	t.Logf("✓ Recovery×Time interaction strength %.2f points", in.Strength)
}

func TestAnalyseInteraction_RejectsSamePair(t *testing.T) {
	p, s, _ := regulatedStageGate()
	if _, err := AnalyseInteraction(nil, p, s, SliderTime, SliderTime); err == nil {
		t.Errorf("❌ identical pair accepted")
	}
}

func TestAnalyseSensitivity_FullProfile(t *testing.T) {
	p, s, _ := regulatedStageGate()
	cache := NewSweepCache()

	profile, err := AnalyseSensitivity(cache, p, s)
	if err != nil {
		t.Fatalf("sensitivity: %v", err)
	}

	if len(profile.Interactions) != 6 {
		t.Fatalf("❌ %d interactions, want 6 pairs", len(profile.Interactions))
	}
	if profile.DominantSlider == "" || profile.BindingLever == "" {
		t.Errorf("❌ dominant=%q lever=%q, want names", profile.DominantSlider, profile.BindingLever)
	}

	// The dominant slider must actually have the largest full-range impact.
	var dominant SliderSweep
	for _, sw := range profile.Sweeps {
		if sw.Name == profile.DominantSlider {
			dominant = sw
		}
	}
	for _, sweep := range profile.Sweeps {
		if sweep.TotalImpact > dominant.TotalImpact {
			t.Errorf("❌ %s impact %.2f exceeds dominant %s (%.2f)",
				sweep.Name, sweep.TotalImpact, dominant.Name, dominant.TotalImpact)
		}
	}

	t.Logf("✓ Sensitivity: zone %.1f%%, dominant=%s lever=%s, %d unique sweeps cached",
		profile.DefaultZoneArea, profile.DominantSlider, profile.BindingLever, cache.Len())
}

// TestAnalyseSensitivity_CacheReuse verifies a second analysis with the same
// inputs adds no new sweeps.
func TestAnalyseSensitivity_CacheReuse(t *testing.T) {
	p, s, _ := regulatedStageGate()
	cache := NewSweepCache()

	if _, err := AnalyseSensitivity(cache, p, s); err != nil {
		t.Fatalf("first analysis: %v", err)
	}
	before := cache.Len()

	if _, err := AnalyseSensitivity(cache, p, s); err != nil {
		t.Fatalf("second analysis: %v", err)
	}
	if cache.Len() != before {
		t.Errorf("❌ repeated analysis grew the cache: %d -> %d", before, cache.Len())
	}
	t.Logf("✓ Second analysis reused all %d cached sweeps", before)
}
