package engine

import (
	"fmt"
	"time"

	"github.com/schedulehq/conference-optimizer/internal/constraint"
	"github.com/schedulehq/conference-optimizer/internal/domain"
	"github.com/schedulehq/conference-optimizer/internal/scoring"
)

// Violation describes one concrete constraint breach.
type Violation struct {
	GameID string `json:"game_id,omitempty"`
	TeamID string `json:"team_id,omitempty"`
	Detail string `json:"detail"`
}

// Status classifies a constraint evaluation outcome.
type Status string

const (
	StatusSatisfied Status = "satisfied"
	StatusPartial   Status = "partial"
	StatusViolated  Status = "violated"
)

// ConstraintResult is the outcome of evaluating one constraint against a
// schedule. Score is in [0,1] where 1 is fully satisfied; WeightedScore is
// the penalty contribution (lower is better).
type ConstraintResult struct {
	ConstraintID  string      `json:"constraint_id"`
	Kind          constraint.Kind `json:"kind"`
	Status        Status      `json:"status"`
	Score         float64     `json:"score"`
	WeightedScore float64     `json:"weighted_score"`
	Violations    []Violation `json:"violations,omitempty"`
	Suggestions   []string    `json:"suggestions,omitempty"`
}

// hardPenaltyFactor keeps hard violations from ever cancelling out against
// soft successes in the aggregate.
const hardPenaltyFactor = 10.0

// evaluateConstraint scores a single constraint. Evaluation is total: every
// library kind yields a numeric result and never an error.
func evaluateConstraint(c *constraint.Constraint, s *domain.Schedule) ConstraintResult {
	var score float64
	var violations []Violation
	var suggestions []string

	switch c.Kind {
	case constraint.TeamRest:
		score, violations = evalTeamRest(c, s)
	case constraint.VenueAvailability:
		score, violations = evalVenueAvailability(c, s)
	case constraint.ReligiousDayRestriction:
		score, violations, suggestions = evalReligiousDay(c, s)
	case constraint.ChampionshipDates:
		score, violations = evalChampionshipDates(c, s)
	case constraint.SeriesStructure:
		score, violations = evalSeriesStructure(c, s)
	case constraint.WeatherWindow:
		score, violations = evalWeatherWindow(c, s)
	case constraint.TVBroadcastMandatory:
		score, violations = evalTVBroadcast(c, s, true)
	case constraint.TVBroadcastPreferred:
		score, violations = evalTVBroadcast(c, s, false)
	case constraint.TravelDistance:
		score, violations = evalTravelDistance(c, s)
	case constraint.HomeAwayBalance:
		score, violations = evalHomeAwayBalance(c, s)
	case constraint.ConsecutiveHomeGames:
		score, violations = evalConsecutiveRuns(c, s, true)
	case constraint.ConsecutiveAwayGames:
		score, violations = evalConsecutiveRuns(c, s, false)
	case constraint.RivalryGame:
		score, violations, suggestions = evalRivalryPlacement(c, s)
	case constraint.WeekendDistribution:
		score, violations = evalWeekendDistribution(c, s)
	case constraint.FanTravelPreference:
		score, violations = evalFanTravel(c, s)
	default:
		// Unknown kinds are rejected by Process; evaluation stays total.
		score = 1.0
	}

	result := ConstraintResult{
		ConstraintID: c.ID,
		Kind:         c.Kind,
		Score:        score,
		Violations:   violations,
		Suggestions:  suggestions,
	}

	switch {
	case len(violations) == 0 && score >= 1.0:
		result.Status = StatusSatisfied
	case score > 0.5:
		result.Status = StatusPartial
	default:
		result.Status = StatusViolated
	}

	penalty := c.Weight * (1.0 - score) * float64(c.BasePriority) / 100.0
	if c.Hardness == constraint.Hard && len(violations) > 0 {
		penalty *= hardPenaltyFactor
	}
	result.WeightedScore = penalty

	return result
}

// ratioScore turns a satisfied/total count into a [0,1] score, treating an
// empty population as satisfied.
func ratioScore(satisfied, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(satisfied) / float64(total)
}

func evalTeamRest(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation) {
	minDays := c.ParamFloat("min_days", 1)
	var violations []Violation
	pairs, ok := 0, 0

	for _, teamID := range s.TeamIDs() {
		if !c.AppliesToTeam(teamID) {
			continue
		}
		games := s.GamesForTeam(teamID)
		for i := 1; i < len(games); i++ {
			// Fri/Sat/Sun series games share a SeriesID and are exempt from
			// the between-series rest requirement.
			if games[i].SeriesID != "" && games[i].SeriesID == games[i-1].SeriesID {
				continue
			}
			pairs++
			gapDays := games[i].Date.Sub(games[i-1].Date).Hours() / 24
			if gapDays >= minDays {
				ok++
			} else {
				violations = append(violations, Violation{
					GameID: games[i].ID,
					TeamID: teamID,
					Detail: fmt.Sprintf("%.1f days rest before game, minimum is %.1f", gapDays, minDays),
				})
			}
		}
	}
	return ratioScore(ok, pairs), violations
}

func evalVenueAvailability(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation) {
	unavailable := map[string]map[string]bool{}
	if venueID := c.ParamString("venue_id", ""); venueID != "" {
		days := map[string]bool{}
		if raw, ok := c.Params["unavailable_dates"].([]string); ok {
			for _, d := range raw {
				days[d] = true
			}
		} else if raw, ok := c.Params["unavailable_dates"].([]any); ok {
			for _, d := range raw {
				if str, ok := d.(string); ok {
					days[str] = true
				}
			}
		}
		unavailable[venueID] = days
	}

	var violations []Violation
	total, ok := 0, 0
	for i := range s.Games {
		g := &s.Games[i]
		if g.VenueID == "" {
			continue
		}
		total++
		venue := s.Venues[g.VenueID]
		day := g.Date.Format("2006-01-02")
		switch {
		case venue != nil && !venue.SupportsSport(g.Sport):
			violations = append(violations, Violation{
				GameID: g.ID,
				Detail: fmt.Sprintf("venue %s does not host %s", g.VenueID, g.Sport),
			})
		case unavailable[g.VenueID][day]:
			violations = append(violations, Violation{
				GameID: g.ID,
				Detail: fmt.Sprintf("venue %s is unavailable on %s", g.VenueID, day),
			})
		default:
			ok++
		}
	}
	return ratioScore(ok, total), violations
}

func evalReligiousDay(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation, []string) {
	restrictedDay := time.Weekday(int(c.ParamFloat("weekday", float64(time.Sunday))))
	var violations []Violation
	var suggestions []string
	total, ok := 0, 0

	for i := range s.Games {
		g := &s.Games[i]
		restricted := false
		for _, teamID := range []string{g.HomeID, g.AwayID} {
			team := s.Teams[teamID]
			if team != nil && team.NoPlayOnSunday && c.AppliesToTeam(teamID) {
				restricted = true
			}
		}
		if !restricted {
			continue
		}
		total++
		if g.Date.Weekday() == restrictedDay {
			violations = append(violations, Violation{
				GameID: g.ID,
				Detail: fmt.Sprintf("game on restricted %s for a no-play team", restrictedDay),
			})
			suggestions = append(suggestions, fmt.Sprintf("move game %s to the following Monday", g.ID))
		} else {
			ok++
		}
	}
	return ratioScore(ok, total), violations, suggestions
}

func evalChampionshipDates(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation) {
	start, errStart := time.Parse("2006-01-02", c.ParamString("start", ""))
	end, errEnd := time.Parse("2006-01-02", c.ParamString("end", ""))
	if errStart != nil || errEnd != nil {
		return 1.0, nil
	}

	var violations []Violation
	total := len(s.Games)
	ok := 0
	for i := range s.Games {
		g := &s.Games[i]
		if !g.Date.Before(start) && !g.Date.After(end) {
			violations = append(violations, Violation{
				GameID: g.ID,
				Detail: fmt.Sprintf("regular season game inside championship window %s..%s", start.Format("2006-01-02"), end.Format("2006-01-02")),
			})
		} else {
			ok++
		}
	}
	return ratioScore(ok, total), violations
}

func evalSeriesStructure(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation) {
	length := int(c.ParamFloat("series_length", 3))
	series := map[string][]*domain.Game{}
	for i := range s.Games {
		g := &s.Games[i]
		if g.SeriesID != "" {
			series[g.SeriesID] = append(series[g.SeriesID], g)
		}
	}

	var violations []Violation
	total, ok := len(series), 0
	for id, games := range series {
		if valid, detail := seriesValid(games, length); valid {
			ok++
		} else {
			violations = append(violations, Violation{
				GameID: games[0].ID,
				Detail: fmt.Sprintf("series %s: %s", id, detail),
			})
		}
	}
	return ratioScore(ok, total), violations
}

// seriesValid checks a series is the right length, single-venue, between one
// pair of teams, on consecutive days.
func seriesValid(games []*domain.Game, length int) (bool, string) {
	if len(games) != length {
		return false, fmt.Sprintf("has %d games, expected %d", len(games), length)
	}
	venue := games[0].VenueID
	home, away := games[0].HomeID, games[0].AwayID
	prev := games[0].Date
	for _, g := range games[1:] {
		if g.VenueID != venue {
			return false, "games split across venues"
		}
		if g.HomeID != home || g.AwayID != away {
			return false, "games split across matchups"
		}
		gap := g.Date.Sub(prev).Hours() / 24
		if gap < 0.5 || gap > 1.5 {
			return false, "games are not on consecutive days"
		}
		prev = g.Date
	}
	return true, ""
}

func evalWeatherWindow(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation) {
	start := c.ParamString("start", "")
	end := c.ParamString("end", "")
	if start == "" || end == "" {
		return 1.0, nil
	}

	var violations []Violation
	total := len(s.Games)
	ok := 0
	for i := range s.Games {
		g := &s.Games[i]
		day := g.Date.Format("01-02")
		inWindow := day >= start && day <= end
		if start > end { // window wraps the year boundary
			inWindow = day >= start || day <= end
		}
		if inWindow {
			ok++
		} else {
			violations = append(violations, Violation{
				GameID: g.ID,
				Detail: fmt.Sprintf("game on %s outside weather window %s..%s", day, start, end),
			})
		}
	}
	return ratioScore(ok, total), violations
}

// evalTVBroadcast checks games carrying a TV window land on broadcast-worthy
// days (Thursday through Sunday). Mandatory windows are hard; preferred ones
// score softly.
func evalTVBroadcast(c *constraint.Constraint, s *domain.Schedule, mandatory bool) (float64, []Violation) {
	var violations []Violation
	total, ok := 0, 0
	for i := range s.Games {
		g := &s.Games[i]
		if g.TVWindow == "" {
			continue
		}
		total++
		wd := g.Date.Weekday()
		if wd >= time.Thursday || wd == time.Sunday {
			ok++
		} else if mandatory {
			violations = append(violations, Violation{
				GameID: g.ID,
				Detail: fmt.Sprintf("TV game (%s) scheduled on %s", g.TVWindow, wd),
			})
		}
	}
	return ratioScore(ok, total), violations
}

func evalTravelDistance(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation) {
	maxMiles := c.ParamFloat("max_miles", 1200)
	var violations []Violation
	total, ok := 0, 0

	for _, teamID := range s.TeamIDs() {
		if !c.AppliesToTeam(teamID) {
			continue
		}
		team := s.Teams[teamID]
		games := s.GamesForTeam(teamID)
		for i := range games {
			if games[i].HomeID == teamID || games[i].VenueID == "" {
				continue
			}
			venue := s.Venues[games[i].VenueID]
			if venue == nil {
				continue
			}
			total++
			miles := scoring.Haversine(team.Location, venue.Location)
			if miles <= maxMiles {
				ok++
			} else {
				violations = append(violations, Violation{
					GameID: games[i].ID,
					TeamID: teamID,
					Detail: fmt.Sprintf("%.0f mile trip exceeds %.0f mile limit", miles, maxMiles),
				})
			}
		}
	}
	return ratioScore(ok, total), violations
}

func evalHomeAwayBalance(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation) {
	maxDeviation := c.ParamFloat("max_deviation", 0.1)
	var violations []Violation
	total, score := 0, 0.0

	for _, teamID := range s.TeamIDs() {
		if !c.AppliesToTeam(teamID) {
			continue
		}
		ha := s.HomeAwayCounts(teamID)
		games := ha.Home + ha.Away
		if games == 0 {
			continue
		}
		total++
		deviation := float64(ha.Home)/float64(games) - 0.5
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation <= maxDeviation {
			score += 1.0 - deviation/maxDeviation
		} else {
			violations = append(violations, Violation{
				TeamID: teamID,
				Detail: fmt.Sprintf("home ratio deviates %.2f from even split, limit %.2f", deviation, maxDeviation),
			})
		}
	}
	if total == 0 {
		return 1.0, nil
	}
	return score / float64(total), violations
}

func evalConsecutiveRuns(c *constraint.Constraint, s *domain.Schedule, home bool) (float64, []Violation) {
	maxRun := int(c.ParamFloat("max_run", 3))
	var violations []Violation
	total, ok := 0, 0

	for _, teamID := range s.TeamIDs() {
		if !c.AppliesToTeam(teamID) {
			continue
		}
		total++
		longest := longestRun(s.GamesForTeam(teamID), teamID, home)
		if longest <= maxRun {
			ok++
		} else {
			side := "away"
			if home {
				side = "home"
			}
			violations = append(violations, Violation{
				TeamID: teamID,
				Detail: fmt.Sprintf("run of %d consecutive %s games exceeds limit %d", longest, side, maxRun),
			})
		}
	}
	return ratioScore(ok, total), violations
}

func longestRun(games []domain.Game, teamID string, home bool) int {
	longest, current := 0, 0
	for i := range games {
		onSide := (games[i].HomeID == teamID) == home
		if onSide {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

func evalRivalryPlacement(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation, []string) {
	lateFraction := c.ParamFloat("late_season_fraction", 0.25)
	start, end, ok := seasonWindow(s)
	if !ok {
		return 1.0, nil, nil
	}
	cutoff := start.Add(time.Duration(float64(end.Sub(start)) * (1 - lateFraction)))

	var violations []Violation
	var suggestions []string
	total, placed := 0, 0
	for i := range s.Games {
		g := &s.Games[i]
		if !g.Rivalry || !g.LateSeasonPreferred {
			continue
		}
		total++
		if g.Date.Before(cutoff) {
			violations = append(violations, Violation{
				GameID: g.ID,
				Detail: fmt.Sprintf("rivalry game on %s falls before the late-season window", g.Date.Format("2006-01-02")),
			})
			suggestions = append(suggestions, fmt.Sprintf("move rivalry game %s after %s", g.ID, cutoff.Format("2006-01-02")))
		} else {
			placed++
		}
	}
	return ratioScore(placed, total), violations, suggestions
}

func evalWeekendDistribution(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation) {
	minRatio := c.ParamFloat("min_weekend_ratio", 0.4)
	if len(s.Games) == 0 {
		return 1.0, nil
	}
	weekend := 0
	for i := range s.Games {
		wd := s.Games[i].Date.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			weekend++
		}
	}
	ratio := float64(weekend) / float64(len(s.Games))
	if ratio >= minRatio {
		return 1.0, nil
	}
	return ratio / minRatio, []Violation{{
		Detail: fmt.Sprintf("only %.0f%% of games on weekends, target %.0f%%", ratio*100, minRatio*100),
	}}
}

// evalFanTravel prefers clustering opponents from the same travel zone: a
// higher share of intra-zone matchups keeps fan trips short.
func evalFanTravel(c *constraint.Constraint, s *domain.Schedule) (float64, []Violation) {
	total, intraZone := 0, 0
	for i := range s.Games {
		g := &s.Games[i]
		home, away := s.Teams[g.HomeID], s.Teams[g.AwayID]
		if home == nil || away == nil || home.TravelZone == "" || away.TravelZone == "" {
			continue
		}
		total++
		if home.TravelZone == away.TravelZone {
			intraZone++
		}
	}
	if total == 0 {
		return 1.0, nil
	}
	target := c.ParamFloat("min_intra_zone_ratio", 0.3)
	ratio := float64(intraZone) / float64(total)
	if ratio >= target {
		return 1.0, nil
	}
	return ratio / target, nil
}

func seasonWindow(s *domain.Schedule) (time.Time, time.Time, bool) {
	if s.SeasonStart != nil && s.SeasonEnd != nil {
		return *s.SeasonStart, *s.SeasonEnd, true
	}
	first, last, ok := s.DateRange()
	if !ok || first.Date.Equal(last.Date) {
		return time.Time{}, time.Time{}, false
	}
	return first.Date, last.Date, true
}
