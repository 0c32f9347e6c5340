package capops

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Sensitivity-analysis constants.
const (
	// SweepSteps is the number of values per slider sweep: 0.0, 0.1, … 1.0.
	SweepSteps = 11

	// InteractionLow is the "capacity lost" value used in pairwise
	// interaction tests.
	InteractionLow = 0.10

	// ToxicThreshold and BufferingThreshold classify interaction strength
	// (percentage points of zone area versus the additive prediction).
	ToxicThreshold     = -2.0
	BufferingThreshold = 2.0

	// marginalEpsilon is the half-width of the numerical derivative around
	// the default slider value.
	marginalEpsilon = 0.02

	// saturationGain: a sweep step whose marginal gain (per 0.1 slider)
	// stays below this for two consecutive steps marks saturation.
	saturationGain = 0.5
)

// SweepCache memoises grid sweeps keyed by the full (profile, sliders) input
// tuple. Sensitivity and movement analyses revisit identical tuples
// constantly; caching reduces hundreds of 101×101 sweeps to first-touch cost.
//
// The cache is safe for concurrent use and computes each key at most once:
// concurrent callers for the same key share a single in-flight sweep. That is
// an efficiency guarantee, not a correctness one: sweeps are pure, so a
// recomputed value would be identical anyway.
//
// Pass the cache explicitly into analyses; its lifetime is the caller's
// decision, not a hidden global.
type SweepCache struct {
	flight singleflight.Group

	mu    sync.RWMutex
	grids map[string]*GridResult
}

// NewSweepCache returns an empty cache.
func NewSweepCache() *SweepCache {
	return &SweepCache{grids: make(map[string]*GridResult)}
}

// cacheKey canonically serialises the sweep inputs. Sliders are rounded to
// four decimal places so float noise doesn't split equivalent entries.
func cacheKey(p DimensionProfile, s CapacitySliders) string {
	var b strings.Builder
	for _, d := range p {
		fmt.Fprintf(&b, "%d,", d)
	}
	b.WriteByte('|')
	for _, v := range s {
		fmt.Fprintf(&b, "%.4f,", v)
	}
	return b.String()
}

// Grid returns the sweep for (p, s), computing it on first touch.
// The returned GridResult is shared: callers must treat it as read-only.
func (c *SweepCache) Grid(p DimensionProfile, s CapacitySliders) (*GridResult, error) {
	key := cacheKey(p, s)

	c.mu.RLock()
	grid, ok := c.grids[key]
	c.mu.RUnlock()
	if ok {
		return grid, nil
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		grid, err := SweepGrid(p, s)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.grids[key] = grid
		c.mu.Unlock()
		return grid, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*GridResult), nil
}

// ZoneArea returns the zone area (%) for (p, s) via the cache.
func (c *SweepCache) ZoneArea(p DimensionProfile, s CapacitySliders) (float64, error) {
	grid, err := c.Grid(p, s)
	if err != nil {
		return 0, err
	}
	return grid.Zone.ZoneArea, nil
}

// Len reports how many sweeps the cache currently holds.
func (c *SweepCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.grids)
}

// SliderSweep is the result of sweeping one slider across its full range
// while holding the other three at baseline.
type SliderSweep struct {
	Slider  int
	Name    string
	Default float64

	Values    []float64 // slider values swept
	ZoneAreas []float64 // zone area (%) at each value

	// TotalImpact is max − min zone area across the sweep.
	TotalImpact float64

	// MarginalAtDefault is the numerical derivative of zone area at the
	// baseline value, scaled to percentage points per 0.1 slider movement.
	MarginalAtDefault float64

	// SaturationPoint is the value beyond which marginal gain stays below
	// saturationGain; valid only when Saturated is true.
	SaturationPoint float64
	Saturated       bool
}

// SweepSlider sweeps one slider from 0 to 1 in SweepSteps steps, recording
// the viable-zone area at each step. A nil cache is allowed (a private one is
// created), but sharing a cache across calls is what makes repeated analyses
// cheap.
func SweepSlider(cache *SweepCache, p DimensionProfile, baseline CapacitySliders, slider int) (SliderSweep, error) {
	if slider < 0 || slider >= NumSliders {
		return SliderSweep{}, fmt.Errorf("%w: slider index %d (want 0-%d)", ErrInvalidSliders, slider, NumSliders-1)
	}
	if cache == nil {
		cache = NewSweepCache()
	}
	if err := baseline.Validate(); err != nil {
		return SliderSweep{}, err
	}

	sweep := SliderSweep{
		Slider:    slider,
		Name:      SliderNames[slider],
		Default:   baseline[slider],
		Values:    make([]float64, SweepSteps),
		ZoneAreas: make([]float64, SweepSteps),
	}

	minArea, maxArea := math.Inf(1), math.Inf(-1)
	for i := 0; i < SweepSteps; i++ {
		v := float64(i) / float64(SweepSteps-1)
		area, err := cache.ZoneArea(p, baseline.With(slider, v))
		if err != nil {
			return SliderSweep{}, err
		}
		sweep.Values[i] = v
		sweep.ZoneAreas[i] = area
		minArea = math.Min(minArea, area)
		maxArea = math.Max(maxArea, area)
	}
	sweep.TotalImpact = maxArea - minArea

	marginal, err := marginalZoneArea(cache, p, baseline, slider, baseline[slider])
	if err != nil {
		return SliderSweep{}, err
	}
	sweep.MarginalAtDefault = marginal

	sweep.SaturationPoint, sweep.Saturated = detectSaturation(sweep.Values, sweep.ZoneAreas)
	return sweep, nil
}

// marginalZoneArea is the numerical derivative of zone area with respect to
// one slider, scaled to per-0.1-slider units.
func marginalZoneArea(cache *SweepCache, p DimensionProfile, baseline CapacitySliders, slider int, at float64) (float64, error) {
	lo := math.Max(0.0, at-marginalEpsilon)
	hi := math.Min(1.0, at+marginalEpsilon)

	areaLo, err := cache.ZoneArea(p, baseline.With(slider, lo))
	if err != nil {
		return 0, err
	}
	areaHi, err := cache.ZoneArea(p, baseline.With(slider, hi))
	if err != nil {
		return 0, err
	}
	return (areaHi - areaLo) / (hi - lo) * 0.1, nil
}

// detectSaturation finds the slider value beyond which the per-step marginal
// gain drops below saturationGain. Two consecutive low steps are required to
// avoid flagging noise.
func detectSaturation(values, areas []float64) (float64, bool) {
	if len(values) < 3 {
		return 0, false
	}
	step := values[1] - values[0]
	consecutive := 0
	for i := 0; i < len(values)-1; i++ {
		marginal := math.Abs(areas[i+1]-areas[i]) / step * 0.1
		if marginal < saturationGain {
			consecutive++
			if consecutive >= 2 {
				return values[i-1], true
			}
		} else {
			consecutive = 0
		}
	}
	return 0, false
}

// Interaction is the result of testing one slider pair for compounding
// effects with an additive-independence model. The four corners compare the
// baseline ("high") against InteractionLow for each slider alone and both
// together; Strength is the actual joint zone area minus the additive
// prediction.
type Interaction struct {
	SliderA, SliderB int

	AreaDefault float64 // both at baseline
	AreaALow    float64 // A low, B at baseline
	AreaBLow    float64 // B low, A at baseline
	AreaBothLow float64 // both low

	PredictedBothLow float64 // AreaALow + AreaBLow − AreaDefault
	Strength         float64 // AreaBothLow − PredictedBothLow
}

// Toxic reports a materially worse-than-additive joint effect: losing both
// capacities compounds.
func (i Interaction) Toxic() bool { return i.Strength < ToxicThreshold }

// Buffering reports a better-than-additive joint effect: either capacity
// covers for the other.
func (i Interaction) Buffering() bool { return i.Strength > BufferingThreshold }

// AnalyseInteraction evaluates the four corner combinations for one slider
// pair.
func AnalyseInteraction(cache *SweepCache, p DimensionProfile, baseline CapacitySliders, sliderA, sliderB int) (Interaction, error) {
	if sliderA < 0 || sliderA >= NumSliders || sliderB < 0 || sliderB >= NumSliders || sliderA == sliderB {
		return Interaction{}, fmt.Errorf("%w: interaction pair (%d, %d)", ErrInvalidSliders, sliderA, sliderB)
	}
	if cache == nil {
		cache = NewSweepCache()
	}
	if err := baseline.Validate(); err != nil {
		return Interaction{}, err
	}

	areaDefault, err := cache.ZoneArea(p, baseline)
	if err != nil {
		return Interaction{}, err
	}
	areaALow, err := cache.ZoneArea(p, baseline.With(sliderA, InteractionLow))
	if err != nil {
		return Interaction{}, err
	}
	areaBLow, err := cache.ZoneArea(p, baseline.With(sliderB, InteractionLow))
	if err != nil {
		return Interaction{}, err
	}
	areaBothLow, err := cache.ZoneArea(p, baseline.With(sliderA, InteractionLow).With(sliderB, InteractionLow))
	if err != nil {
		return Interaction{}, err
	}

	predicted := areaALow + areaBLow - areaDefault
	return Interaction{
		SliderA:          sliderA,
		SliderB:          sliderB,
		AreaDefault:      areaDefault,
		AreaALow:         areaALow,
		AreaBLow:         areaBLow,
		AreaBothLow:      areaBothLow,
		PredictedBothLow: predicted,
		Strength:         areaBothLow - predicted,
	}, nil
}

// SensitivityProfile is the complete slider sensitivity analysis for one
// (profile, baseline sliders) pair: four full-range sweeps and all six
// pairwise interactions.
type SensitivityProfile struct {
	DefaultZoneArea float64

	Sweeps       [NumSliders]SliderSweep
	Interactions []Interaction

	// DominantSlider has the largest absolute zone-area change across its
	// full-range sweep; BindingLever has the steepest marginal at the
	// baseline value.
	DominantSlider string
	BindingLever   string
}

// WorstInteraction returns the pair with the most negative strength.
func (s *SensitivityProfile) WorstInteraction() Interaction {
	worst := s.Interactions[0]
	for _, in := range s.Interactions[1:] {
		if in.Strength < worst.Strength {
			worst = in
		}
	}
	return worst
}

// AnalyseSensitivity runs the full sensitivity analysis: every slider swept
// across its range, every pair tested for interaction. Sweeps repeat the same
// (profile, sliders) tuples across sub-analyses, so passing a shared cache
// collapses the workload to unique sweeps only.
func AnalyseSensitivity(cache *SweepCache, p DimensionProfile, baseline CapacitySliders) (*SensitivityProfile, error) {
	if cache == nil {
		cache = NewSweepCache()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := baseline.Validate(); err != nil {
		return nil, err
	}

	defaultArea, err := cache.ZoneArea(p, baseline)
	if err != nil {
		return nil, err
	}

	profile := &SensitivityProfile{DefaultZoneArea: defaultArea}

	for i := 0; i < NumSliders; i++ {
		sweep, err := SweepSlider(cache, p, baseline, i)
		if err != nil {
			return nil, err
		}
		profile.Sweeps[i] = sweep
	}

	for a := 0; a < NumSliders; a++ {
		for b := a + 1; b < NumSliders; b++ {
			in, err := AnalyseInteraction(cache, p, baseline, a, b)
			if err != nil {
				return nil, err
			}
			profile.Interactions = append(profile.Interactions, in)
		}
	}

	dominant := profile.Sweeps[0]
	lever := profile.Sweeps[0]
	for _, sw := range profile.Sweeps[1:] {
		if sw.TotalImpact > dominant.TotalImpact {
			dominant = sw
		}
		if sw.MarginalAtDefault > lever.MarginalAtDefault {
			lever = sw
		}
	}
	profile.DominantSlider = dominant.Name
	profile.BindingLever = lever.Name

	return profile, nil
}
