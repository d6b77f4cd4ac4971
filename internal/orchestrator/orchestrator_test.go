package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedulehq/conference-optimizer/internal/annealer"
	"github.com/schedulehq/conference-optimizer/internal/constraint"
	"github.com/schedulehq/conference-optimizer/internal/domain"
	"github.com/schedulehq/conference-optimizer/internal/engine"
	"github.com/schedulehq/conference-optimizer/internal/scoring"
)

func optimizeFixture() *domain.Schedule {
	mkTeam := func(id string, lat, lon float64) *domain.Team {
		return &domain.Team{
			ID: id, Location: domain.Location{Lat: lat, Lon: lon},
			VenueIDs: []string{id + "-arena"}, PrimaryVenueID: id + "-arena",
		}
	}
	teams := map[string]*domain.Team{
		"lex": mkTeam("lex", 38.03, -84.50),
		"lou": mkTeam("lou", 38.25, -85.76),
		"kno": mkTeam("kno", 35.96, -83.92),
		"nas": mkTeam("nas", 36.16, -86.78),
	}
	venues := map[string]*domain.Venue{}
	for id, team := range teams {
		venues[id+"-arena"] = &domain.Venue{ID: id + "-arena", Location: team.Location}
	}

	day := func(d int) time.Time { return time.Date(2026, 1, d, 19, 0, 0, 0, time.UTC) }
	games := []domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: day(3)},
		{ID: "g2", Sport: "basketball", HomeID: "kno", AwayID: "nas", VenueID: "kno-arena", Date: day(3)},
		{ID: "g3", Sport: "basketball", HomeID: "lou", AwayID: "lex", VenueID: "lou-arena", Date: day(7)},
		{ID: "g4", Sport: "basketball", HomeID: "nas", AwayID: "kno", VenueID: "nas-arena", Date: day(7)},
		{ID: "g5", Sport: "basketball", HomeID: "lex", AwayID: "kno", VenueID: "lex-arena", Date: day(12)},
		{ID: "g6", Sport: "basketball", HomeID: "nas", AwayID: "lou", VenueID: "nas-arena", Date: day(12)},
	}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Schedule{
		ID: "opt-1", Sport: "basketball", Season: "2025-26",
		Teams: teams, Venues: venues, Games: games,
		SeasonStart: &start, SeasonEnd: &end,
	}
}

func optimizeConstraints() []constraint.Constraint {
	return []constraint.Constraint{
		{ID: "rest", Kind: constraint.TeamRest, Params: map[string]any{"min_days": 2.0}},
		{ID: "balance", Kind: constraint.HomeAwayBalance, Params: map[string]any{"max_deviation": 0.2}},
		{ID: "travel", Kind: constraint.TravelDistance, Hardness: constraint.Soft, Params: map[string]any{"max_miles": 500.0}},
	}
}

func testOptions() Options {
	return Options{
		MaxIterations:      400,
		InitialTemperature: 50.0,
		CoolingRate:        0.9,
		ParallelChains:     2,
		MaxWorkers:         2,
		AdaptiveCooling:    true,
		EnableCache:        true,
		CacheSize:          64,
		BaseSeed:           42,
		PerChainTimeoutMs:  60000,
		DiversityThreshold: 0.1,
		RefinementPasses:   2,
	}
}

func TestOptimizeNeverWorsens(t *testing.T) {
	s := optimizeFixture()
	opt := New(engine.New(nil), nil)

	out, err := opt.Optimize(context.Background(), s, optimizeConstraints(), testOptions())
	require.NoError(t, err)
	require.NotNil(t, out)

	require.NoError(t, out.Validate())
	assert.Len(t, out.Games, len(s.Games))

	final := out.Meta["final_score"].(float64)
	initial := out.Meta["initial_score"].(float64)
	assert.LessOrEqual(t, final, initial)
	assert.False(t, out.Meta["partial"].(bool))
}

func TestOptimizeDoesNotMutateInput(t *testing.T) {
	s := optimizeFixture()
	before := s.Clone()

	_, err := New(engine.New(nil), nil).Optimize(context.Background(), s, optimizeConstraints(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, before.Games, s.Games)
	assert.Nil(t, s.Meta)
}

func TestOptimizeDeterministicForSeed(t *testing.T) {
	first, err := New(engine.New(nil), nil).Optimize(context.Background(), optimizeFixture(), optimizeConstraints(), testOptions())
	require.NoError(t, err)
	second, err := New(engine.New(nil), nil).Optimize(context.Background(), optimizeFixture(), optimizeConstraints(), testOptions())
	require.NoError(t, err)

	assert.Equal(t, first.Games, second.Games)
	assert.Equal(t, first.Meta["final_score"], second.Meta["final_score"])
	assert.Equal(t, first.Meta["chain_scores"], second.Meta["chain_scores"])
}

func TestOptimizeMetadata(t *testing.T) {
	out, err := New(engine.New(nil), nil).Optimize(context.Background(), optimizeFixture(), optimizeConstraints(), testOptions())
	require.NoError(t, err)

	for _, key := range []string{
		"final_score", "initial_score", "iterations", "improvements",
		"chain_scores", "chain_score_mean", "chain_score_stddev",
		"conflicts_unresolved", "cache_hit_rate", "elapsed_ms", "partial",
	} {
		assert.Contains(t, out.Meta, key)
	}

	scores := out.Meta["chain_scores"].([]float64)
	assert.Len(t, scores, 2)
	assert.Positive(t, out.Meta["iterations"].(int))

	rate := out.Meta["cache_hit_rate"].(float64)
	assert.GreaterOrEqual(t, rate, 0.0)
	assert.LessOrEqual(t, rate, 1.0)
}

func TestOptimizeCancelledContextReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := New(engine.New(nil), nil).Optimize(ctx, optimizeFixture(), optimizeConstraints(), testOptions())
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.True(t, out.Meta["partial"].(bool))
	assert.Len(t, out.Games, 6, "best-so-far schedule is still complete")
}

func TestOptimizeRejectsInvalidSchedule(t *testing.T) {
	s := optimizeFixture()
	s.Games[1].ID = s.Games[0].ID

	_, err := New(engine.New(nil), nil).Optimize(context.Background(), s, optimizeConstraints(), testOptions())
	require.Error(t, err)
	var invalid *domain.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestOptimizeRejectsUnknownConstraintKind(t *testing.T) {
	_, err := New(engine.New(nil), nil).Optimize(
		context.Background(), optimizeFixture(),
		[]constraint.Constraint{{Kind: "CURFEW"}}, testOptions())
	require.Error(t, err)
}

func TestOptimizeEmitsProgress(t *testing.T) {
	opt := New(engine.New(nil), nil)
	var kinds []string
	opt.SetProgress(func(e Event) { kinds = append(kinds, e.Kind) })

	_, err := opt.Optimize(context.Background(), optimizeFixture(), optimizeConstraints(), testOptions())
	require.NoError(t, err)

	require.NotEmpty(t, kinds)
	assert.Equal(t, EventOptimizationStart, kinds[0])
	assert.Equal(t, EventOptimizationComplete, kinds[len(kinds)-1])

	counts := map[string]int{}
	for _, k := range kinds {
		counts[k]++
	}
	assert.Equal(t, 2, counts[EventChainDone], "one event per chain")
	assert.Equal(t, 1, counts[EventRefinementDone])
}

func TestOptionsNormalize(t *testing.T) {
	got := Options{}.normalize()
	def := DefaultOptions()

	assert.Equal(t, def.MaxIterations, got.MaxIterations)
	assert.Equal(t, def.InitialTemperature, got.InitialTemperature)
	assert.Equal(t, def.CoolingRate, got.CoolingRate)
	assert.Equal(t, def.ParallelChains, got.ParallelChains)
	assert.Equal(t, def.CacheSize, got.CacheSize)
	assert.Equal(t, def.PerChainTimeoutMs, got.PerChainTimeoutMs)
	assert.Equal(t, def.DiversityThreshold, got.DiversityThreshold)
	assert.Equal(t, def.RefinementPasses, got.RefinementPasses)
	assert.NotZero(t, got.BaseSeed)

	// Boolean knobs are taken as given, not defaulted.
	assert.False(t, got.AdaptiveCooling)
	assert.False(t, got.EnableCache)

	custom := Options{MaxIterations: 500, CoolingRate: 0.8}.normalize()
	assert.Equal(t, 500, custom.MaxIterations)
	assert.Equal(t, 0.8, custom.CoolingRate)
}

func TestDefaultChainsClamp(t *testing.T) {
	n := defaultChains()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 8)
}

func outcomeWith(index int, score float64, s *domain.Schedule) chainOutcome {
	return chainOutcome{
		index:  index,
		result: &annealer.Result{Best: s, BestScore: score},
	}
}

func TestSelectCandidatesClamping(t *testing.T) {
	s := optimizeFixture()

	one := []chainOutcome{outcomeWith(0, 1, s)}
	assert.Len(t, selectCandidates(one, 0.1), 1)

	// Identical schedules: no diverse extra qualifies.
	five := make([]chainOutcome, 5)
	for i := range five {
		five[i] = outcomeWith(i, float64(i), s)
	}
	assert.Len(t, selectCandidates(five, 0.1), 3, "ceil(0.6*5) = 3")

	ten := make([]chainOutcome, 10)
	for i := range ten {
		ten[i] = outcomeWith(i, float64(i), s)
	}
	assert.Len(t, selectCandidates(ten, 0.1), 3, "top-k clamps at 3")
}

func TestSelectCandidatesAddsDiverseExtra(t *testing.T) {
	s := optimizeFixture()
	shifted := s.Clone()
	for i := range shifted.Games {
		shifted.Games[i].Date = shifted.Games[i].Date.AddDate(0, 0, 1)
	}
	shifted.SortGames()

	outcomes := []chainOutcome{
		outcomeWith(0, 1, s),
		outcomeWith(1, 2, s),
		outcomeWith(2, 3, s),
		outcomeWith(3, 4, s),
		outcomeWith(4, 5, shifted),
	}
	got := selectCandidates(outcomes, 0.1)
	require.Len(t, got, 4, "three top candidates plus the diverse extra")
	assert.Equal(t, 4, got[3].index)
}

func TestDiversity(t *testing.T) {
	s := optimizeFixture()
	assert.Zero(t, diversity(s, s.Clone()))

	half := s.Clone()
	for i := 0; i < 3; i++ {
		half.Games[i].Date = half.Games[i].Date.AddDate(0, 0, 2)
	}
	assert.InDelta(t, 0.5, diversity(s, half), 1e-9)

	shorter := s.Clone()
	shorter.Games = shorter.Games[:4]
	assert.Equal(t, 1.0, diversity(s, shorter))
}

func TestMergeEnsembleAdoptsBalance(t *testing.T) {
	mkTeam := func(id string) *domain.Team {
		return &domain.Team{ID: id, VenueIDs: []string{id + "-arena"}, PrimaryVenueID: id + "-arena"}
	}
	teams := map[string]*domain.Team{"lex": mkTeam("lex"), "lou": mkTeam("lou")}
	venues := map[string]*domain.Venue{
		"lex-arena": {ID: "lex-arena"},
		"lou-arena": {ID: "lou-arena"},
	}
	day := func(d int) time.Time { return time.Date(2026, 1, d, 19, 0, 0, 0, time.UTC) }

	base := &domain.Schedule{
		ID: "b", Sport: "basketball", Teams: teams, Venues: venues,
		Games: []domain.Game{
			{ID: "g1", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: day(3)},
			{ID: "g2", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: day(10)},
		},
	}
	cand := base.Clone()
	cand.Games[1].HomeID, cand.Games[1].AwayID = "lou", "lex"
	cand.Games[1].VenueID = "lou-arena"

	distances := scoring.NewDistanceTable(scoring.HaversineProvider{}, scoring.ScheduleLocations(base))
	merged := mergeEnsemble(base, []*domain.Schedule{cand}, distances)

	ha := merged.HomeAwayCounts("lex")
	assert.Equal(t, 1, ha.Home)
	assert.Equal(t, 1, ha.Away)
	assert.Equal(t, base.HomeAwayCounts("lex").Home, 2, "input untouched")

	for i := range merged.Games {
		require.NoError(t, merged.ValidateGame(&merged.Games[i]))
	}
}

func TestMinRestDaysFromConstraints(t *testing.T) {
	mk := func(id string, days float64) constraint.Constraint {
		c, _ := constraint.New(id, constraint.TeamRest, map[string]any{"min_days": days})
		return c
	}
	assert.Equal(t, 3.0, minRestDays([]constraint.Constraint{mk("a", 2), mk("b", 3)}))
	assert.Zero(t, minRestDays(nil))
}
