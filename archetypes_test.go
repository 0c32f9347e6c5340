package capops

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultArchetypes(t *testing.T) {
	set := DefaultArchetypes()
	require.Equal(t, 15, set.Len())

	// Library order is stable: Names and All must agree.
	names := set.Names()
	all := set.All()
	require.Len(t, names, 15)
	for i, a := range all {
		assert.Equal(t, names[i], a.Name)
	}

	for _, a := range all {
		assert.NoError(t, a.Validate())
	}
}

func TestDefaultArchetypes_ReferenceEntry(t *testing.T) {
	a, err := DefaultArchetypes().Get("Regulated Stage-Gate")
	require.NoError(t, err)

	assert.Equal(t, DimensionProfile{5, 1, 4, 5, 4, 3, 3, 3}, a.Profile)
	assert.Equal(t, CapacitySliders{0.80, 0.65, 0.25, 0.80}, a.Sliders)
	assert.Equal(t, GridPosition{Cap: 0.70, Ops: 0.35}, a.Position)
}

func TestArchetypeSet_UnknownName(t *testing.T) {
	_, err := DefaultArchetypes().Get("Skunkworks")
	assert.ErrorIs(t, err, ErrUnknownArchetype)
}

func TestLoadArchetypes_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"empty document", "archetypes: []"},
		{"dimension out of range", `
archetypes:
  - name: Broken
    profile: [9, 1, 1, 1, 1, 1, 1, 1]
    sliders: [0.5, 0.5, 0.5, 0.5]
    position: {cap: 0.5, ops: 0.5}
`},
		{"slider out of range", `
archetypes:
  - name: Broken
    profile: [3, 3, 3, 3, 3, 3, 3, 3]
    sliders: [1.5, 0.5, 0.5, 0.5]
    position: {cap: 0.5, ops: 0.5}
`},
		{"duplicate names", `
archetypes:
  - name: Twin
    profile: [3, 3, 3, 3, 3, 3, 3, 3]
    sliders: [0.5, 0.5, 0.5, 0.5]
    position: {cap: 0.5, ops: 0.5}
  - name: Twin
    profile: [2, 2, 2, 2, 2, 2, 2, 2]
    sliders: [0.4, 0.4, 0.4, 0.4]
    position: {cap: 0.4, ops: 0.4}
`},
		{"not yaml", "{{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadArchetypes(strings.NewReader(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestArchetypes_YAMLRoundTrip(t *testing.T) {
	set := DefaultArchetypes()

	out, err := yaml.Marshal(archetypeFile{Archetypes: set.All()})
	require.NoError(t, err)

	reloaded, err := LoadArchetypes(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, set.Len(), reloaded.Len())
	assert.Equal(t, set.All(), reloaded.All())
}

func TestAnalyseArchetype(t *testing.T) {
	cache := NewSweepCache()
	a, err := DefaultArchetypes().Get("Regulated Stage-Gate")
	require.NoError(t, err)

	za, err := AnalyseArchetype(cache, a)
	require.NoError(t, err)

	assert.True(t, za.InZone, "default position should sit inside the zone")
	assert.Equal(t, "sufficient", za.Binding)
	assert.Equal(t, za.Grid.Zone.ZoneArea, za.ZoneArea)
	assert.InDelta(t, 0.50, za.Costs.CapFloor, 1e-12)
}

// TestRankByPrecariousness verifies ordering and that the crisis archetype
// ranks tighter than the balanced enterprise.
func TestRankByPrecariousness(t *testing.T) {
	cache := NewSweepCache()
	set := DefaultArchetypes()

	ranked, err := RankByPrecariousness(cache, set)
	require.NoError(t, err)
	require.Len(t, ranked, set.Len())

	for i := 1; i < len(ranked); i++ {
		assert.LessOrEqual(t, ranked[i-1].ZoneArea, ranked[i].ZoneArea,
			"ranking must be ascending by zone area")
	}

	index := func(name string) int {
		for i, za := range ranked {
			if za.Archetype.Name == name {
				return i
			}
		}
		t.Fatalf("archetype %q missing from ranking", name)
		return -1
	}
	assert.Less(t, index("Crisis Firefight"), index("Enterprise Balanced"),
		"a crisis delivery should have less room to move than a balanced enterprise")

	for _, za := range ranked {
		t.Logf("  %-22s zone=%5.1f%% in_zone=%v binding=%s",
			za.Archetype.Name, za.ZoneArea, za.InZone, za.Binding)
	}
}
