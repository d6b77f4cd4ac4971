package orchestrator

import (
	"math"

	"github.com/schedulehq/conference-optimizer/internal/domain"
	"github.com/schedulehq/conference-optimizer/internal/scoring"
)

// travelAdoptionRatio is the per-team improvement bar for adopting a
// candidate's travel pattern: the candidate's travel cost must be at or below
// this fraction of the base's.
const travelAdoptionRatio = 0.95

// mergeEnsemble folds improvements from the other candidates into a clone of
// the best candidate, team by team:
//
//   - travel: adopt the candidate's dates and venues for the team's games when
//     the candidate's travel cost clears the adoption bar;
//   - balance: adopt the candidate's home/away orientation when its
//     |home - away| imbalance for the team is strictly smaller.
//
// Adoptions that would break a schedule invariant are rolled back per team.
// Candidates are never mutated.
func mergeEnsemble(best *domain.Schedule, others []*domain.Schedule, distances *scoring.DistanceTable) *domain.Schedule {
	base := best.Clone()

	for _, cand := range others {
		for _, teamID := range base.TeamIDs() {
			adoptTravel(base, cand, teamID, distances)
			adoptBalance(base, cand, teamID)
		}
	}
	return base
}

func adoptTravel(base, cand *domain.Schedule, teamID string, distances *scoring.DistanceTable) {
	baseMiles := scoring.TeamTravelMiles(distances, base, teamID)
	candMiles := scoring.TeamTravelMiles(distances, cand, teamID)
	if baseMiles == 0 || candMiles > baseMiles*travelAdoptionRatio {
		return
	}

	undo := snapshotTeamGames(base, teamID)
	candGames := gamesByID(cand)

	for i := range base.Games {
		g := &base.Games[i]
		if !g.Involves(teamID) {
			continue
		}
		src, ok := candGames[g.ID]
		if !ok {
			continue
		}
		g.Date = src.Date
		g.VenueID = src.VenueID
	}
	base.SortGames()

	if !teamGamesValid(base, teamID) {
		restoreTeamGames(base, undo)
	}
}

func adoptBalance(base, cand *domain.Schedule, teamID string) {
	baseHA := base.HomeAwayCounts(teamID)
	candHA := cand.HomeAwayCounts(teamID)
	if math.Abs(float64(candHA.Home-candHA.Away)) >= math.Abs(float64(baseHA.Home-baseHA.Away)) {
		return
	}

	undo := snapshotTeamGames(base, teamID)
	candGames := gamesByID(cand)

	for i := range base.Games {
		g := &base.Games[i]
		if !g.Involves(teamID) {
			continue
		}
		src, ok := candGames[g.ID]
		if !ok || src.HomeID == g.HomeID {
			continue
		}
		if src.HomeID != g.AwayID || src.AwayID != g.HomeID {
			continue
		}
		g.HomeID, g.AwayID = g.AwayID, g.HomeID
		g.VenueID = src.VenueID
	}

	if !teamGamesValid(base, teamID) {
		restoreTeamGames(base, undo)
	}
}

// diversity is the fraction of games that differ between two schedules in day
// bucket, venue, or home team, matched by game ID. Schedules with unequal
// game counts are maximally diverse.
func diversity(a, b *domain.Schedule) float64 {
	if len(a.Games) != len(b.Games) {
		return 1
	}
	if len(a.Games) == 0 {
		return 0
	}

	bGames := gamesByID(b)
	differing := 0
	for i := range a.Games {
		ga := &a.Games[i]
		gb, ok := bGames[ga.ID]
		if !ok {
			differing++
			continue
		}
		sameDay := ga.Date.UTC().Format("2006-01-02") == gb.Date.UTC().Format("2006-01-02")
		if !sameDay || ga.VenueID != gb.VenueID || ga.HomeID != gb.HomeID {
			differing++
		}
	}
	return float64(differing) / float64(len(a.Games))
}

func gamesByID(s *domain.Schedule) map[string]*domain.Game {
	byID := make(map[string]*domain.Game, len(s.Games))
	for i := range s.Games {
		byID[s.Games[i].ID] = &s.Games[i]
	}
	return byID
}

func snapshotTeamGames(s *domain.Schedule, teamID string) map[string]domain.Game {
	snap := map[string]domain.Game{}
	for i := range s.Games {
		if s.Games[i].Involves(teamID) {
			snap[s.Games[i].ID] = s.Games[i]
		}
	}
	return snap
}

func restoreTeamGames(s *domain.Schedule, snap map[string]domain.Game) {
	for i := range s.Games {
		if orig, ok := snap[s.Games[i].ID]; ok {
			s.Games[i] = orig
		}
	}
	s.SortGames()
}

func teamGamesValid(s *domain.Schedule, teamID string) bool {
	for i := range s.Games {
		if !s.Games[i].Involves(teamID) {
			continue
		}
		if err := s.ValidateGame(&s.Games[i]); err != nil {
			return false
		}
	}
	return true
}
