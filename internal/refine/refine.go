package refine

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/schedulehq/conference-optimizer/internal/domain"
)

// DefaultPasses is how many times the full rule sequence is repeated looking
// for a fixpoint.
const DefaultPasses = 3

// Config parameterizes the final refinement pass.
type Config struct {
	MinRestDays float64
	Passes      int
	Seed        int64
}

// Refiner repairs residual violations in an optimized schedule: balance,
// rest, religious days, travel-zone clustering, shared-venue spacing, and
// rivalry placement. The pass is idempotent: refining an already refined
// schedule changes nothing.
type Refiner struct {
	cfg Config
	rng *rand.Rand
	log *logrus.Entry
}

// New creates a refiner with a deterministic seeded RNG.
func New(cfg Config, log *logrus.Entry) *Refiner {
	if cfg.Passes <= 0 {
		cfg.Passes = DefaultPasses
	}
	if cfg.MinRestDays <= 0 {
		cfg.MinRestDays = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Refiner{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed)), log: log}
}

// Refine runs the rule sequence on a clone of the schedule, repeating up to
// the configured pass count until no rule fires. The input is never mutated;
// any rule failure rolls back to the pre-refinement schedule.
func (r *Refiner) Refine(s *domain.Schedule) (*domain.Schedule, int, error) {
	out := s.Clone()
	totalChanges := 0

	for pass := 0; pass < r.cfg.Passes; pass++ {
		changes := 0
		changes += r.repairHomeAwayBalance(out)
		changes += r.repairRest(out)
		changes += r.enforceReligiousDays(out)
		changes += r.clusterTravelZones(out)
		changes += r.spaceSharedVenues(out)
		changes += r.placeRivalries(out)

		totalChanges += changes
		if changes == 0 {
			break
		}
	}

	out.SortGames()
	if err := out.Validate(); err != nil {
		r.log.WithError(err).Warn("Refinement produced an invalid schedule, rolling back")
		return s.Clone(), 0, asInvariantViolation(out, err)
	}

	r.log.WithFields(logrus.Fields{"changes": totalChanges}).Debug("Refinement complete")
	return out, totalChanges, nil
}

// repairHomeAwayBalance pairs the team most over on home games with the team
// most over on away games and swaps sides on one game between them.
func (r *Refiner) repairHomeAwayBalance(s *domain.Schedule) int {
	type imbalance struct {
		teamID string
		excess float64 // home minus expected; positive means too many home games
	}
	var over, under []imbalance

	for _, teamID := range s.TeamIDs() {
		ha := s.HomeAwayCounts(teamID)
		games := ha.Home + ha.Away
		if games == 0 {
			continue
		}
		excess := float64(ha.Home) - float64(games)/2
		if excess >= 2 {
			over = append(over, imbalance{teamID, excess})
		} else if excess <= -2 {
			under = append(under, imbalance{teamID, excess})
		}
	}
	if len(over) == 0 || len(under) == 0 {
		return 0
	}

	sort.Slice(over, func(i, j int) bool { return over[i].excess > over[j].excess })
	sort.Slice(under, func(i, j int) bool { return under[i].excess < under[j].excess })

	overHome, overAway := over[0].teamID, under[0].teamID
	for i := range s.Games {
		g := &s.Games[i]
		if g.HomeID != overHome || g.AwayID != overAway || g.Neutral {
			continue
		}
		newHome := s.Teams[g.AwayID]
		if newHome == nil {
			continue
		}
		g.HomeID, g.AwayID = g.AwayID, g.HomeID
		g.VenueID = newHome.PrimaryVenueID
		return 1
	}
	return 0
}

// repairRest pushes the later of two too-close games forward by one or two
// days, randomly but reproducibly.
func (r *Refiner) repairRest(s *domain.Schedule) int {
	changes := 0
	touched := map[string]bool{}

	for _, teamID := range s.TeamIDs() {
		games := s.GamesForTeam(teamID)
		for i := 1; i < len(games); i++ {
			if games[i].SeriesID != "" && games[i].SeriesID == games[i-1].SeriesID {
				continue
			}
			gapDays := games[i].Date.Sub(games[i-1].Date).Hours() / 24
			if gapDays >= r.cfg.MinRestDays || touched[games[i].ID] {
				continue
			}
			shift := 1 + r.rng.Intn(2)
			if r.shiftGame(s, games[i].ID, shift) {
				touched[games[i].ID] = true
				changes++
			}
		}
	}
	return changes
}

// enforceReligiousDays moves Sunday games involving a no-Sunday team to the
// following Monday, or back to Saturday when Monday falls outside the season
// window.
func (r *Refiner) enforceReligiousDays(s *domain.Schedule) int {
	changes := 0
	for i := range s.Games {
		g := &s.Games[i]
		if g.Date.Weekday() != time.Sunday {
			continue
		}
		home, away := s.Teams[g.HomeID], s.Teams[g.AwayID]
		if (home == nil || !home.NoPlayOnSunday) && (away == nil || !away.NoPlayOnSunday) {
			continue
		}
		if r.shiftGameInPlace(s, g, 1) || r.shiftGameInPlace(s, g, -1) {
			changes++
		}
	}
	return changes
}

// clusterTravelZones keeps a team's adjacent inter-zone games within three
// days of each other when they fall inside the same week, pulling the later
// game earlier by up to three days.
func (r *Refiner) clusterTravelZones(s *domain.Schedule) int {
	changes := 0
	touched := map[string]bool{}

	for _, teamID := range s.TeamIDs() {
		team := s.Teams[teamID]
		if team == nil || team.TravelZone == "" {
			continue
		}
		games := s.GamesForTeam(teamID)
		for i := 1; i < len(games); i++ {
			prev, cur := &games[i-1], &games[i]
			if !r.interZone(s, teamID, prev) || !r.interZone(s, teamID, cur) || touched[cur.ID] {
				continue
			}
			gapDays := cur.Date.Sub(prev.Date).Hours() / 24
			if gapDays > 7 || gapDays <= 3 {
				continue
			}
			pull := int(math.Min(gapDays-3, 3))
			if pull > 0 && r.shiftGame(s, cur.ID, -pull) {
				touched[cur.ID] = true
				changes++
			}
		}
	}
	return changes
}

// interZone reports whether the game takes the team outside its travel zone.
func (r *Refiner) interZone(s *domain.Schedule, teamID string, g *domain.Game) bool {
	team := s.Teams[teamID]
	oppID := g.HomeID
	if oppID == teamID {
		oppID = g.AwayID
	}
	opp := s.Teams[oppID]
	if team == nil || opp == nil || team.TravelZone == "" || opp.TravelZone == "" {
		return false
	}
	return team.TravelZone != opp.TravelZone
}

// spaceSharedVenues enforces a four hour gap between games at the same
// physical venue on the same day, pushing the later game to the next day.
func (r *Refiner) spaceSharedVenues(s *domain.Schedule) int {
	const minGap = 4 * time.Hour

	byVenueDay := map[string][]int{}
	for i := range s.Games {
		g := &s.Games[i]
		if g.VenueID == "" {
			continue
		}
		key := g.VenueID + "|" + g.Date.Format("2006-01-02")
		byVenueDay[key] = append(byVenueDay[key], i)
	}

	changes := 0
	for _, idxs := range byVenueDay {
		if len(idxs) < 2 {
			continue
		}
		sort.Slice(idxs, func(a, b int) bool {
			return s.Games[idxs[a]].Date.Before(s.Games[idxs[b]].Date)
		})
		for k := 1; k < len(idxs); k++ {
			earlier, later := &s.Games[idxs[k-1]], &s.Games[idxs[k]]
			if later.Date.Sub(earlier.Date) >= minGap {
				continue
			}
			if r.shiftGameInPlace(s, later, 1) {
				changes++
			}
		}
	}
	return changes
}

// placeRivalries moves late-season-preferred rivalry games from the first 75%
// of the season into the last 25%, at a uniformly random in-window date.
func (r *Refiner) placeRivalries(s *domain.Schedule) int {
	start, end, ok := seasonWindow(s)
	if !ok {
		return 0
	}
	cutoff := start.Add(time.Duration(float64(end.Sub(start)) * 0.75))

	changes := 0
	for i := range s.Games {
		g := &s.Games[i]
		if !g.Rivalry || !g.LateSeasonPreferred || !g.Date.Before(cutoff) {
			continue
		}
		lateDays := int(end.Sub(cutoff).Hours()/24) + 1
		if lateDays < 1 {
			continue
		}
		day := cutoff.AddDate(0, 0, r.rng.Intn(lateDays))
		moved := *g
		moved.Date = time.Date(day.Year(), day.Month(), day.Day(), g.Date.Hour(), g.Date.Minute(), 0, 0, g.Date.Location())
		if s.ValidateGame(&moved) == nil {
			s.Games[i] = moved
			changes++
		}
	}
	return changes
}

// shiftGame moves the identified game by days, keeping it inside the season
// window. Returns false when the shift would break an invariant.
func (r *Refiner) shiftGame(s *domain.Schedule, gameID string, days int) bool {
	for i := range s.Games {
		if s.Games[i].ID == gameID {
			return r.shiftGameInPlace(s, &s.Games[i], days)
		}
	}
	return false
}

func (r *Refiner) shiftGameInPlace(s *domain.Schedule, g *domain.Game, days int) bool {
	moved := *g
	moved.Date = g.Date.AddDate(0, 0, days)
	if err := s.ValidateGame(&moved); err != nil {
		return false
	}
	*g = moved
	return true
}

// asInvariantViolation converts a validation failure on a refined schedule
// into the fatal error the orchestrator reports. Refinement only moves
// existing games, so a failure here is a bug in a refinement rule, not bad
// input.
func asInvariantViolation(s *domain.Schedule, err error) error {
	var bad *domain.InvalidScheduleError
	if !errors.As(err, &bad) {
		return err
	}
	v := &domain.InvariantViolation{Invariant: bad.Invariant}
	for i := range s.Games {
		if s.ValidateGame(&s.Games[i]) != nil {
			v.GameID = s.Games[i].ID
			break
		}
	}
	return v
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
