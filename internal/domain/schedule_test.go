package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchedule() *Schedule {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	teams := map[string]*Team{
		"lex": {ID: "lex", Name: "Lexington", Location: Location{Lat: 38.03, Lon: -84.50}, VenueIDs: []string{"lex-arena"}, PrimaryVenueID: "lex-arena"},
		"lou": {ID: "lou", Name: "Louisville", Location: Location{Lat: 38.25, Lon: -85.76}, VenueIDs: []string{"lou-arena"}, PrimaryVenueID: "lou-arena"},
		"kno": {ID: "kno", Name: "Knoxville", Location: Location{Lat: 35.96, Lon: -83.92}, VenueIDs: []string{"kno-arena"}, PrimaryVenueID: "kno-arena"},
		"nas": {ID: "nas", Name: "Nashville", Location: Location{Lat: 36.16, Lon: -86.78}, VenueIDs: []string{"nas-arena"}, PrimaryVenueID: "nas-arena"},
	}
	venues := map[string]*Venue{
		"lex-arena": {ID: "lex-arena", Location: Location{Lat: 38.03, Lon: -84.50}},
		"lou-arena": {ID: "lou-arena", Location: Location{Lat: 38.25, Lon: -85.76}},
		"kno-arena": {ID: "kno-arena", Location: Location{Lat: 35.96, Lon: -83.92}},
		"nas-arena": {ID: "nas-arena", Location: Location{Lat: 36.16, Lon: -86.78}},
	}

	day := func(d int) time.Time { return time.Date(2026, 1, d, 19, 0, 0, 0, time.UTC) }
	games := []Game{
		{ID: "g1", Sport: "basketball", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: day(3)},
		{ID: "g2", Sport: "basketball", HomeID: "kno", AwayID: "nas", VenueID: "kno-arena", Date: day(3)},
		{ID: "g3", Sport: "basketball", HomeID: "lou", AwayID: "kno", VenueID: "lou-arena", Date: day(7)},
		{ID: "g4", Sport: "basketball", HomeID: "nas", AwayID: "lex", VenueID: "nas-arena", Date: day(7)},
		{ID: "g5", Sport: "basketball", HomeID: "lex", AwayID: "kno", VenueID: "lex-arena", Date: day(12)},
		{ID: "g6", Sport: "basketball", HomeID: "nas", AwayID: "lou", VenueID: "nas-arena", Date: day(12)},
	}

	return &Schedule{
		ID:           "sched-1",
		Sport:        "basketball",
		Season:       "2025-26",
		Teams:        teams,
		Venues:       venues,
		Games:        games,
		SeasonStart:  &start,
		SeasonEnd:    &end,
		GamesPerTeam: 3,
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := testSchedule()
	s.Meta = map[string]any{"source": "fixture"}

	c := s.Clone()
	c.Games[0].HomeID = "nas"
	c.Meta["source"] = "clone"

	assert.Equal(t, "lex", s.Games[0].HomeID, "clone game edits must not leak back")
	assert.Equal(t, "fixture", s.Meta["source"])

	// Teams are shared by reference on purpose.
	assert.Same(t, s.Teams["lex"], c.Teams["lex"])
}

func TestValidateGame(t *testing.T) {
	s := testSchedule()

	tests := []struct {
		name      string
		game      Game
		invariant string
	}{
		{
			name:      "home equals away",
			game:      Game{ID: "bad", HomeID: "lex", AwayID: "lex", Date: s.Games[0].Date},
			invariant: "home_not_away",
		},
		{
			name:      "unknown team",
			game:      Game{ID: "bad", HomeID: "lex", AwayID: "xyz", Date: s.Games[0].Date},
			invariant: "team_in_set",
		},
		{
			name:      "venue not owned by home",
			game:      Game{ID: "bad", HomeID: "lex", AwayID: "lou", VenueID: "lou-arena", Date: s.Games[0].Date},
			invariant: "venue_belongs_to_home",
		},
		{
			name:      "date before window",
			game:      Game{ID: "bad", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)},
			invariant: "date_in_window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateGame(&tt.game)
			require.Error(t, err)
			var inv *InvalidScheduleError
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, tt.invariant, inv.Invariant)
		})
	}

	good := Game{ID: "ok", HomeID: "lex", AwayID: "lou", VenueID: "lex-arena", Date: s.Games[0].Date}
	assert.NoError(t, s.ValidateGame(&good))

	// Neutral-site games may use any venue.
	neutral := Game{ID: "n1", HomeID: "lex", AwayID: "lou", VenueID: "nas-arena", Neutral: true, Date: s.Games[0].Date}
	assert.NoError(t, s.ValidateGame(&neutral))
}

func TestValidateRejectsDuplicateGameIDs(t *testing.T) {
	s := testSchedule()
	dup := s.Games[0]
	dup.HomeID, dup.AwayID = "kno", "nas"
	dup.VenueID = "kno-arena"
	s.Games = append(s.Games, dup)

	err := s.Validate()
	require.Error(t, err)
	var input *InvalidInputError
	assert.ErrorAs(t, err, &input)
}

func TestValidateGamesPerTeam(t *testing.T) {
	s := testSchedule()
	require.NoError(t, s.Validate())

	s.Games = s.Games[:len(s.Games)-1]
	err := s.Validate()
	require.Error(t, err)
	var inv *InvalidScheduleError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "games_per_team", inv.Invariant)
}

func TestSortGamesDeterministic(t *testing.T) {
	s := testSchedule()
	s.SortGames()
	first := make([]string, len(s.Games))
	for i, g := range s.Games {
		first[i] = g.ID
	}

	// Same dates, reversed input order must yield the same ordering.
	for i, j := 0, len(s.Games)-1; i < j; i, j = i+1, j-1 {
		s.Games[i], s.Games[j] = s.Games[j], s.Games[i]
	}
	s.SortGames()
	for i, g := range s.Games {
		assert.Equal(t, first[i], g.ID)
	}
}

func TestGamesForTeamSortedByDate(t *testing.T) {
	s := testSchedule()
	games := s.GamesForTeam("lex")
	require.Len(t, games, 3)
	for i := 1; i < len(games); i++ {
		assert.False(t, games[i].Date.Before(games[i-1].Date))
	}
}

func TestHomeAwayCounts(t *testing.T) {
	s := testSchedule()
	ha := s.HomeAwayCounts("lex")
	assert.Equal(t, 2, ha.Home)
	assert.Equal(t, 1, ha.Away)
}

func TestAddGameKeepsOrder(t *testing.T) {
	s := testSchedule()
	g := Game{ID: "g0", Sport: "basketball", HomeID: "lou", AwayID: "nas", VenueID: "lou-arena", Date: time.Date(2026, 1, 2, 19, 0, 0, 0, time.UTC)}
	require.NoError(t, s.AddGame(g))
	assert.Equal(t, "g0", s.Games[0].ID)
}
