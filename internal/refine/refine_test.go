package refine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedulehq/conference-optimizer/internal/domain"
)

func refineFixture(games []domain.Game) *domain.Schedule {
	mkTeam := func(id string) *domain.Team {
		return &domain.Team{ID: id, VenueIDs: []string{id + "-arena"}, PrimaryVenueID: id + "-arena"}
	}
	teams := map[string]*domain.Team{
		"lex": mkTeam("lex"), "lou": mkTeam("lou"),
		"kno": mkTeam("kno"), "pro": mkTeam("pro"),
	}
	teams["pro"].NoPlayOnSunday = true
	venues := map[string]*domain.Venue{}
	for id := range teams {
		venues[id+"-arena"] = &domain.Venue{ID: id + "-arena"}
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := &domain.Schedule{
		ID: "rf-1", Sport: "basketball",
		Teams: teams, Venues: venues, Games: games,
		SeasonStart: &start, SeasonEnd: &end,
	}
	s.SortGames()
	return s
}

func at(d int) time.Time { return time.Date(2026, 1, d, 19, 0, 0, 0, time.UTC) }

func gameDate(t *testing.T, s *domain.Schedule, id string) time.Time {
	t.Helper()
	for i := range s.Games {
		if s.Games[i].ID == id {
			return s.Games[i].Date
		}
	}
	t.Fatalf("game %s not found", id)
	return time.Time{}
}

func TestRefineMovesSundayGames(t *testing.T) {
	// January 4 2026 is a Sunday and pro does not play Sundays.
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "pro", AwayID: "lex", VenueID: "pro-arena", Date: time.Date(2026, 1, 4, 13, 0, 0, 0, time.UTC)},
		{ID: "g2", Sport: "basketball", HomeID: "lou", AwayID: "kno", VenueID: "lou-arena", Date: at(10)},
	})

	out, changes, err := New(Config{Seed: 1}, nil).Refine(s)
	require.NoError(t, err)
	assert.Equal(t, 1, changes)
	assert.Equal(t, time.Monday, gameDate(t, out, "g1").Weekday())
	assert.Equal(t, at(10), gameDate(t, out, "g2"), "unrelated games stay put")
}

func TestRefineMovesSundayGameAtSeasonEnd(t *testing.T) {
	// March 1 2026 is both a Sunday and the final day of the season, so the
	// usual Monday shift leaves the window and the game backs up to Saturday.
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "pro", AwayID: "lex", VenueID: "pro-arena", Date: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)},
	})
	end := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	s.SeasonEnd = &end

	out, changes, err := New(Config{Seed: 1}, nil).Refine(s)
	require.NoError(t, err)
	assert.Equal(t, 1, changes)

	d := gameDate(t, out, "g1")
	assert.Equal(t, time.Saturday, d.Weekday())
	assert.Equal(t, 28, d.Day())
}

func TestRefineRepairsRest(t *testing.T) {
	// lex and lou play back to back days with a two day minimum.
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: at(6)},
		{ID: "g2", Sport: "basketball", HomeID: "lou", AwayID: "lex", VenueID: "lou-arena", Date: at(7)},
	})

	out, changes, err := New(Config{MinRestDays: 2, Seed: 1}, nil).Refine(s)
	require.NoError(t, err)
	assert.Positive(t, changes)

	gap := gameDate(t, out, "g2").Sub(gameDate(t, out, "g1")).Hours() / 24
	assert.GreaterOrEqual(t, gap, 2.0)
}

func TestRefineSkipsSeriesRest(t *testing.T) {
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "baseball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", SeriesID: "sr1", Date: at(9)},
		{ID: "g2", Sport: "baseball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", SeriesID: "sr1", Date: at(10)},
	})
	s.Sport = "baseball"

	out, changes, err := New(Config{MinRestDays: 2, Seed: 1}, nil).Refine(s)
	require.NoError(t, err)
	assert.Zero(t, changes, "consecutive series games keep their dates")
	assert.Equal(t, at(10), gameDate(t, out, "g2"))
}

func TestRefineRepairsHomeAwayBalance(t *testing.T) {
	// All four meetings at Lexington: lex is two games over, lou two under.
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: at(3)},
		{ID: "g2", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: at(6)},
		{ID: "g3", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: at(10)},
		{ID: "g4", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: at(13)},
	})

	out, changes, err := New(Config{Seed: 1}, nil).Refine(s)
	require.NoError(t, err)
	assert.Positive(t, changes)

	ha := out.HomeAwayCounts("lex")
	assert.Equal(t, 3, ha.Home)
	assert.Equal(t, 1, ha.Away)

	for i := range out.Games {
		if out.Games[i].HomeID == "lou" {
			assert.Equal(t, "lou-arena", out.Games[i].VenueID, "swapped game follows the new home team's venue")
		}
	}
}

func TestRefineSpacesSharedVenues(t *testing.T) {
	// Two games at the same arena two hours apart; the second is a neutral
	// site game so no team plays twice that day.
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: time.Date(2026, 1, 6, 17, 0, 0, 0, time.UTC)},
		{ID: "g2", Sport: "basketball", HomeID: "kno", AwayID: "pro", VenueID: "lex-arena", Neutral: true, Date: time.Date(2026, 1, 6, 19, 0, 0, 0, time.UTC)},
	})

	out, changes, err := New(Config{Seed: 1}, nil).Refine(s)
	require.NoError(t, err)
	assert.Positive(t, changes)
	assert.Equal(t, 7, gameDate(t, out, "g2").Day(), "later game pushed to the next day")
}

func TestRefinePlacesRivalriesLate(t *testing.T) {
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: at(5), Rivalry: true, LateSeasonPreferred: true},
		{ID: "g2", Sport: "basketball", HomeID: "kno", AwayID: "lex", VenueID: "kno-arena", Date: at(20)},
	})

	out, changes, err := New(Config{Seed: 1}, nil).Refine(s)
	require.NoError(t, err)
	assert.Positive(t, changes)

	// Last quarter of Jan 1 .. Mar 1 begins mid February.
	cutoff := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	assert.False(t, gameDate(t, out, "g1").Before(cutoff), "rivalry game lands in the late-season window")
}

func TestRefineDoesNotMutateInput(t *testing.T) {
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "pro", AwayID: "lex", VenueID: "pro-arena", Date: time.Date(2026, 1, 4, 13, 0, 0, 0, time.UTC)},
	})
	before := s.Clone()

	_, _, err := New(Config{Seed: 1}, nil).Refine(s)
	require.NoError(t, err)
	assert.Equal(t, before.Games, s.Games)
}

func TestRefineIdempotent(t *testing.T) {
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "pro", AwayID: "lex", VenueID: "pro-arena", Date: time.Date(2026, 1, 4, 13, 0, 0, 0, time.UTC)},
		{ID: "g2", Sport: "basketball", HomeID: "lou", AwayID: "kno", VenueID: "lou-arena", Date: at(10)},
	})

	once, _, err := New(Config{Seed: 1}, nil).Refine(s)
	require.NoError(t, err)

	twice, changes, err := New(Config{Seed: 1}, nil).Refine(once)
	require.NoError(t, err)
	assert.Zero(t, changes)
	assert.Equal(t, once.Games, twice.Games)
}

func TestRollbackErrorNamesGameAndInvariant(t *testing.T) {
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: at(3)},
	})
	s.Games[0].Date = time.Date(2026, 4, 1, 19, 0, 0, 0, time.UTC)

	err := asInvariantViolation(s, s.Validate())
	var violation *domain.InvariantViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "date_in_window", violation.Invariant)
	assert.Equal(t, "g1", violation.GameID)
}

func TestRefineCleanScheduleUntouched(t *testing.T) {
	s := refineFixture([]domain.Game{
		{ID: "g1", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: at(3)},
		{ID: "g2", Sport: "basketball", HomeID: "lou", AwayID: "lex", VenueID: "lou-arena", Date: at(10)},
	})

	out, changes, err := New(Config{Seed: 1}, nil).Refine(s)
	require.NoError(t, err)
	assert.Zero(t, changes)
	assert.Equal(t, s.Games, out.Games)
}
