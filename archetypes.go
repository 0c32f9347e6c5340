package capops

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed archetypes.yaml
var archetypesYAML []byte

// ErrUnknownArchetype is returned by lookups for names not in the set.
var ErrUnknownArchetype = errors.New("unknown archetype")

// Archetype is one named entry in the archetype library: a representative
// dimension profile, the slider values its organisations typically hold, and
// the default grid position (the midpoint of its documented operating range).
type Archetype struct {
	Name     string           `yaml:"name"`
	Profile  DimensionProfile `yaml:"profile"`
	Sliders  CapacitySliders  `yaml:"sliders"`
	Position GridPosition     `yaml:"position"`
}

// Validate checks all three parts of the archetype.
func (a Archetype) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("archetype: empty name")
	}
	if err := a.Profile.Validate(); err != nil {
		return fmt.Errorf("archetype %q: %w", a.Name, err)
	}
	if err := a.Sliders.Validate(); err != nil {
		return fmt.Errorf("archetype %q: %w", a.Name, err)
	}
	if err := a.Position.Validate(); err != nil {
		return fmt.Errorf("archetype %q: %w", a.Name, err)
	}
	return nil
}

// ArchetypeSet is an ordered, name-indexed archetype collection.
type ArchetypeSet struct {
	ordered []Archetype
	byName  map[string]int
}

type archetypeFile struct {
	Archetypes []Archetype `yaml:"archetypes"`
}

// LoadArchetypes reads an archetype library from YAML. Every entry is
// validated and names must be unique.
func LoadArchetypes(r io.Reader) (*ArchetypeSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read archetypes: %w", err)
	}
	var file archetypeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse archetypes: %w", err)
	}
	if len(file.Archetypes) == 0 {
		return nil, fmt.Errorf("parse archetypes: no entries")
	}

	set := &ArchetypeSet{
		ordered: file.Archetypes,
		byName:  make(map[string]int, len(file.Archetypes)),
	}
	for i, a := range set.ordered {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := set.byName[a.Name]; dup {
			return nil, fmt.Errorf("archetype %q: duplicate name", a.Name)
		}
		set.byName[a.Name] = i
	}
	return set, nil
}

var (
	defaultArchetypesOnce sync.Once
	defaultArchetypes     *ArchetypeSet
)

// DefaultArchetypes returns the embedded 15-archetype library. The embedded
// data is validated at first use; a corrupt embed is a build defect, so it
// panics rather than returning an error.
func DefaultArchetypes() *ArchetypeSet {
	defaultArchetypesOnce.Do(func() {
		set, err := LoadArchetypes(bytes.NewReader(archetypesYAML))
		if err != nil {
			panic(fmt.Sprintf("embedded archetypes: %v", err))
		}
		defaultArchetypes = set
	})
	return defaultArchetypes
}

// Get looks an archetype up by name.
func (s *ArchetypeSet) Get(name string) (Archetype, error) {
	i, ok := s.byName[name]
	if !ok {
		return Archetype{}, fmt.Errorf("%w: %q", ErrUnknownArchetype, name)
	}
	return s.ordered[i], nil
}

// All returns the archetypes in library order. The slice is a copy.
func (s *ArchetypeSet) All() []Archetype {
	out := make([]Archetype, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Names returns the archetype names in library order.
func (s *ArchetypeSet) Names() []string {
	out := make([]string, len(s.ordered))
	for i, a := range s.ordered {
		out[i] = a.Name
	}
	return out
}

// Len reports the number of archetypes.
func (s *ArchetypeSet) Len() int { return len(s.ordered) }

// ZoneAnalysis is the full viability picture for one archetype at its default
// sliders and position.
type ZoneAnalysis struct {
	Archetype Archetype
	Grid      *GridResult

	ZoneArea float64
	Score    ViabilityScore
	Costs    CostBreakdown

	// InZone reports whether the default position clears the threshold;
	// Binding names the constraint closest to failing there.
	InZone  bool
	Binding string
}

// AnalyseArchetype sweeps an archetype's grid and scores its default
// position.
func AnalyseArchetype(cache *SweepCache, a Archetype) (ZoneAnalysis, error) {
	if cache == nil {
		cache = NewSweepCache()
	}
	if err := a.Validate(); err != nil {
		return ZoneAnalysis{}, err
	}

	grid, err := cache.Grid(a.Profile, a.Sliders)
	if err != nil {
		return ZoneAnalysis{}, err
	}
	score, costs, err := EvaluatePosition(a.Profile, a.Sliders, a.Position)
	if err != nil {
		return ZoneAnalysis{}, err
	}

	return ZoneAnalysis{
		Archetype: a,
		Grid:      grid,
		ZoneArea:  grid.Zone.ZoneArea,
		Score:     score,
		Costs:     costs,
		InZone:    score.InZone(),
		Binding:   score.Binding(),
	}, nil
}

// RankByPrecariousness analyses every archetype in the set and returns the
// results sorted by ascending zone area: the smaller the viable zone, the
// less room the archetype has to move before failing a test.
func RankByPrecariousness(cache *SweepCache, set *ArchetypeSet) ([]ZoneAnalysis, error) {
	if cache == nil {
		cache = NewSweepCache()
	}
	out := make([]ZoneAnalysis, 0, set.Len())
	for _, a := range set.ordered {
		za, err := AnalyseArchetype(cache, a)
		if err != nil {
			return nil, err
		}
		out = append(out, za)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZoneArea < out[j].ZoneArea
	})
	return out, nil
}
