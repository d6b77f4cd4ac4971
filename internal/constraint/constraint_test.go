package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFillsLibraryDefaults(t *testing.T) {
	c, err := New("", TeamRest, map[string]any{"min_days": 2.0})
	require.NoError(t, err)

	assert.Equal(t, TeamRest, c.Kind)
	assert.Equal(t, Hard, c.Hardness)
	assert.Equal(t, 100, c.BasePriority)
	assert.Equal(t, "scheduling", c.Category)
	assert.Equal(t, 2.0, c.ParamFloat("min_days", 0))
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New("", Kind("CURFEW"), nil)
	assert.Error(t, err)
}

func TestKnownKindCoversLibrary(t *testing.T) {
	for _, kind := range AllKinds() {
		assert.True(t, KnownKind(kind), string(kind))
	}
	assert.False(t, KnownKind(Kind("NOT_A_KIND")))
}

func TestHardnessRankOrdering(t *testing.T) {
	assert.Less(t, Hard.Rank(), Soft.Rank())
	assert.Less(t, Soft.Rank(), Preference.Rank())
}

func TestAppliesToSport(t *testing.T) {
	c, err := New("", TravelDistance, nil)
	require.NoError(t, err)

	assert.True(t, c.AppliesTo("football"), "empty scope applies to every sport")

	c.Sports = []string{"football"}
	assert.True(t, c.AppliesTo("football"))
	assert.False(t, c.AppliesTo("basketball"))
}

func TestSportMultiplier(t *testing.T) {
	tests := []struct {
		sport  string
		kind   Kind
		factor float64
	}{
		{"football", TeamRest, 1.5},
		{"football", TVBroadcastMandatory, 1.8},
		{"football", TravelDistance, 1.3},
		{"basketball", ConsecutiveAwayGames, 1.4},
		{"baseball", WeatherWindow, 2.0},
		{"baseball", SeriesStructure, 1.5},
		{"baseball", TeamRest, 0.8},
		{"softball", WeatherWindow, 2.0},
		{"volleyball", WeekendDistribution, 1.2},
		{"soccer", TravelDistance, 1.1},
		{"basketball", TeamRest, 1.0},
		{"curling", TeamRest, 1.0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.factor, SportMultiplier(tt.sport, tt.kind), "%s/%s", tt.sport, tt.kind)
	}
}

func TestParamFloatToleratesInts(t *testing.T) {
	c, err := New("", ConsecutiveHomeGames, map[string]any{"max_run": 3})
	require.NoError(t, err)
	assert.Equal(t, 3.0, c.ParamFloat("max_run", 0))
	assert.Equal(t, 7.0, c.ParamFloat("missing", 7.0))
}
