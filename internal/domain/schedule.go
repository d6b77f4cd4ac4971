package domain

import (
	"fmt"
	"sort"
)

// Clone produces a deep copy of the schedule's games and metadata. Teams and
// venues are aliased by reference: they are shared read-only state.
func (s *Schedule) Clone() *Schedule {
	games := make([]Game, len(s.Games))
	copy(games, s.Games)

	var meta map[string]any
	if s.Meta != nil {
		meta = make(map[string]any, len(s.Meta))
		for k, v := range s.Meta {
			meta[k] = v
		}
	}

	return &Schedule{
		ID:           s.ID,
		Sport:        s.Sport,
		Season:       s.Season,
		Teams:        s.Teams,
		Venues:       s.Venues,
		Games:        games,
		SeasonStart:  s.SeasonStart,
		SeasonEnd:    s.SeasonEnd,
		GamesPerTeam: s.GamesPerTeam,
		Meta:         meta,
	}
}

// AddGame validates the game against schedule invariants and appends it,
// keeping the games list ordered by date.
func (s *Schedule) AddGame(g Game) error {
	if err := s.ValidateGame(&g); err != nil {
		return err
	}
	s.Games = append(s.Games, g)
	s.SortGames()
	return nil
}

// ValidateGame checks a single game against the schedule invariants without
// inserting it.
func (s *Schedule) ValidateGame(g *Game) error {
	if g.HomeID == g.AwayID {
		return &InvalidScheduleError{
			Invariant: "home_not_away",
			Detail:    fmt.Sprintf("game %s has identical home and away team %s", g.ID, g.HomeID),
		}
	}

	home, ok := s.Teams[g.HomeID]
	if !ok {
		return &InvalidScheduleError{
			Invariant: "team_in_set",
			Detail:    fmt.Sprintf("home team %s is not in the schedule team set", g.HomeID),
		}
	}
	if _, ok := s.Teams[g.AwayID]; !ok {
		return &InvalidScheduleError{
			Invariant: "team_in_set",
			Detail:    fmt.Sprintf("away team %s is not in the schedule team set", g.AwayID),
		}
	}

	if g.VenueID != "" && !g.Neutral && !home.HasVenue(g.VenueID) {
		return &InvalidScheduleError{
			Invariant: "venue_belongs_to_home",
			Detail:    fmt.Sprintf("venue %s is not among home team %s venues", g.VenueID, g.HomeID),
		}
	}

	if s.SeasonStart != nil && g.Date.Before(*s.SeasonStart) {
		return &InvalidScheduleError{
			Invariant: "date_in_window",
			Detail:    fmt.Sprintf("game %s on %s is before season start %s", g.ID, g.Date.Format("2006-01-02"), s.SeasonStart.Format("2006-01-02")),
		}
	}
	if s.SeasonEnd != nil && g.Date.After(*s.SeasonEnd) {
		return &InvalidScheduleError{
			Invariant: "date_in_window",
			Detail:    fmt.Sprintf("game %s on %s is after season end %s", g.ID, g.Date.Format("2006-01-02"), s.SeasonEnd.Format("2006-01-02")),
		}
	}

	return nil
}

// Validate checks every schedule invariant: team membership, date windows,
// duplicate game IDs, and the per-team game count target when configured.
func (s *Schedule) Validate() error {
	seen := make(map[string]bool, len(s.Games))
	for i := range s.Games {
		g := &s.Games[i]
		if g.ID != "" {
			if seen[g.ID] {
				return &InvalidInputError{Reason: fmt.Sprintf("duplicate game id %s", g.ID)}
			}
			seen[g.ID] = true
		}
		if err := s.ValidateGame(g); err != nil {
			return err
		}
	}

	if s.GamesPerTeam > 0 {
		for id := range s.Teams {
			count := 0
			for i := range s.Games {
				if s.Games[i].Involves(id) {
					count++
				}
			}
			if count != s.GamesPerTeam {
				return &InvalidScheduleError{
					Invariant: "games_per_team",
					Detail:    fmt.Sprintf("team %s has %d games, target is %d", id, count, s.GamesPerTeam),
				}
			}
		}
	}

	return nil
}

// SortGames orders the games list by date, breaking ties by game ID so the
// ordering is deterministic.
func (s *Schedule) SortGames() {
	sort.SliceStable(s.Games, func(i, j int) bool {
		if s.Games[i].Date.Equal(s.Games[j].Date) {
			return s.Games[i].ID < s.Games[j].ID
		}
		return s.Games[i].Date.Before(s.Games[j].Date)
	})
}

// GamesForTeam returns the team's games sorted by date.
func (s *Schedule) GamesForTeam(teamID string) []Game {
	var games []Game
	for i := range s.Games {
		if s.Games[i].Involves(teamID) {
			games = append(games, s.Games[i])
		}
	}
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].Date.Before(games[j].Date)
	})
	return games
}

// HomeAwayCounts returns the number of home and away games for the team.
func (s *Schedule) HomeAwayCounts(teamID string) HomeAway {
	var ha HomeAway
	for i := range s.Games {
		switch teamID {
		case s.Games[i].HomeID:
			ha.Home++
		case s.Games[i].AwayID:
			ha.Away++
		}
	}
	return ha
}

// TeamIDs returns the team set in deterministic sorted order.
func (s *Schedule) TeamIDs() []string {
	ids := make([]string, 0, len(s.Teams))
	for id := range s.Teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VenueIDs returns the venue set in deterministic sorted order.
func (s *Schedule) VenueIDs() []string {
	ids := make([]string, 0, len(s.Venues))
	for id := range s.Venues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DateRange returns the earliest and latest game dates. The season window
// takes precedence when present.
func (s *Schedule) DateRange() (start, end *Game, ok bool) {
	if len(s.Games) == 0 {
		return nil, nil, false
	}
	first := &s.Games[0]
	last := &s.Games[0]
	for i := range s.Games {
		if s.Games[i].Date.Before(first.Date) {
			first = &s.Games[i]
		}
		if s.Games[i].Date.After(last.Date) {
			last = &s.Games[i]
		}
	}
	return first, last, true
}
