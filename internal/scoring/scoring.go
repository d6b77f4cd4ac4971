package scoring

import (
	"math"

	"github.com/schedulehq/conference-optimizer/internal/constraint"
	"github.com/schedulehq/conference-optimizer/internal/domain"
)

// Weights maps score components to their aggregation weight. The orchestrator
// derives them from the effective constraint set's per-kind weights.
type Weights struct {
	Travel      float64
	Balance     float64
	Rest        float64
	Consecutive float64
	Constraint  float64
}

// DefaultWeights gives every component unit weight.
func DefaultWeights() Weights {
	return Weights{Travel: 1, Balance: 1, Rest: 1, Consecutive: 1, Constraint: 1}
}

// WeightsFromConstraints aggregates effective constraint weights into score
// component weights. Kinds that feed a component sum into it; all other kinds
// contribute through the constraint engine term.
func WeightsFromConstraints(constraints []constraint.Constraint) Weights {
	w := DefaultWeights()
	for i := range constraints {
		c := &constraints[i]
		switch c.Kind {
		case constraint.TravelDistance, constraint.FanTravelPreference:
			w.Travel += c.Weight
		case constraint.HomeAwayBalance:
			w.Balance += c.Weight
		case constraint.TeamRest:
			w.Rest += c.Weight
		case constraint.ConsecutiveHomeGames, constraint.ConsecutiveAwayGames:
			w.Consecutive += c.Weight
		}
	}
	return w
}

// EngineFunc supplies the constraint engine's numeric contribution (weighted
// penalty, lower is better) without coupling the scorer to the engine.
type EngineFunc func(s *domain.Schedule) (float64, error)

// Scorer aggregates weighted component penalties for a candidate schedule.
// Lower scores are better. Scorers are read-only over schedules and safe to
// share across goroutines once built.
type Scorer struct {
	weights   Weights
	distances *DistanceTable
	engine    EngineFunc
}

// NewScorer builds a scorer over a precomputed distance table. engine may be
// nil when constraint scoring is disabled.
func NewScorer(weights Weights, distances *DistanceTable, engine EngineFunc) *Scorer {
	return &Scorer{weights: weights, distances: distances, engine: engine}
}

// Score computes the total weighted penalty. A NaN or Inf in any component
// fails with ScoringError rather than propagating silently.
func (sc *Scorer) Score(s *domain.Schedule) (float64, error) {
	components := []struct {
		name   string
		weight float64
		fn     func(*domain.Schedule) float64
	}{
		{"travel", sc.weights.Travel, sc.TravelScore},
		{"balance", sc.weights.Balance, sc.BalanceScore},
		{"rest", sc.weights.Rest, sc.RestScore},
		{"consecutive", sc.weights.Consecutive, sc.ConsecutiveScore},
	}

	total := 0.0
	for _, comp := range components {
		v := comp.fn(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &domain.ScoringError{Component: comp.name, Value: v}
		}
		total += comp.weight * v
	}

	if sc.engine != nil {
		v, err := sc.engine(s)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &domain.ScoringError{Component: "constraints", Value: v}
		}
		total += sc.weights.Constraint * v
	}

	return total, nil
}

// TravelScore sums each team's season travel loop in miles: home base to the
// first venue, venue to venue in date order, and back home, averaged over the
// team count.
func (sc *Scorer) TravelScore(s *domain.Schedule) float64 {
	if len(s.Teams) == 0 {
		return 0
	}

	total := 0.0
	for _, teamID := range s.TeamIDs() {
		total += TeamTravelMiles(sc.distances, s, teamID)
	}

	return total / float64(len(s.Teams))
}

// TeamTravelMiles computes one team's season travel loop in miles: home base
// to the first venue, venue to venue in date order, and back home.
func TeamTravelMiles(distances *DistanceTable, s *domain.Schedule, teamID string) float64 {
	games := s.GamesForTeam(teamID)
	if len(games) == 0 {
		return 0
	}

	miles := 0.0
	at := "team:" + teamID
	for i := range games {
		stop := gameLocationKey(&games[i])
		if stop == "" {
			continue
		}
		miles += distances.Between(at, stop)
		at = stop
	}
	return miles + distances.Between(at, "team:"+teamID)
}

// BalanceScore measures per-team deviation of home games from the expected
// half of the team's games, averaged across teams and scaled by 100.
func (sc *Scorer) BalanceScore(s *domain.Schedule) float64 {
	teamIDs := s.TeamIDs()
	if len(teamIDs) == 0 {
		return 0
	}

	total := 0.0
	counted := 0
	for _, teamID := range teamIDs {
		ha := s.HomeAwayCounts(teamID)
		games := ha.Home + ha.Away
		if games == 0 {
			continue
		}
		expected := float64(games) / 2
		total += math.Abs(float64(ha.Home)-expected) / float64(games)
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted) * 100
}

// RestScore penalizes gaps of less than one day between a team's consecutive
// games by (1 - gapDays) * 10. Games are date-sorted so gaps are never
// negative.
func (sc *Scorer) RestScore(s *domain.Schedule) float64 {
	total := 0.0
	for _, teamID := range s.TeamIDs() {
		games := s.GamesForTeam(teamID)
		for i := 1; i < len(games); i++ {
			gapDays := games[i].Date.Sub(games[i-1].Date).Hours() / 24
			if gapDays < 1 {
				total += (1 - gapDays) * 10
			}
		}
	}
	return total
}

// ConsecutiveScore penalizes home or away runs longer than three games by
// (runLength - 3) per run.
func (sc *Scorer) ConsecutiveScore(s *domain.Schedule) float64 {
	total := 0.0
	for _, teamID := range s.TeamIDs() {
		games := s.GamesForTeam(teamID)
		runLength := 0
		atHome := false
		for i := range games {
			home := games[i].HomeID == teamID
			if i == 0 || home != atHome {
				total += runPenalty(runLength)
				runLength = 1
				atHome = home
			} else {
				runLength++
			}
		}
		total += runPenalty(runLength)
	}
	return total
}

func runPenalty(runLength int) float64 {
	if runLength > 3 {
		return float64(runLength - 3)
	}
	return 0
}

func gameLocationKey(g *domain.Game) string {
	if g.VenueID == "" {
		return ""
	}
	return "venue:" + g.VenueID
}
