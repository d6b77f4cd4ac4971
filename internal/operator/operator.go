package operator

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/schedulehq/conference-optimizer/internal/domain"
)

// MoveKind identifies a neighborhood move.
type MoveKind int

const (
	SwapDates MoveKind = iota
	SwapHomeAway
	ReassignDate
	SwapVenues
	numMoveKinds
)

func (k MoveKind) String() string {
	switch k {
	case SwapDates:
		return "swap_dates"
	case SwapHomeAway:
		return "swap_home_away"
	case ReassignDate:
		return "reassign_date"
	case SwapVenues:
		return "swap_venues"
	default:
		return "unknown"
	}
}

// maxRetries bounds how many times a move is resampled after producing an
// invalid schedule before the move is abandoned.
const maxRetries = 8

// ErrNoMove reports that no valid move could be produced within the retry
// budget.
var ErrNoMove = errors.New("no valid neighborhood move found")

// Operator produces neighbor schedules through uniform random local moves.
// The RNG is chain-local, so operators are not safe to share across chains.
type Operator struct {
	rng *rand.Rand
}

// New creates an operator over a chain-local RNG.
func New(rng *rand.Rand) *Operator {
	return &Operator{rng: rng}
}

// Apply returns a new cloned schedule with exactly one change. Move kind and
// target games are chosen uniformly at random; moves breaking schedule
// invariants are rejected and resampled up to the retry budget. Returns
// immediately when ctx is cancelled.
func (op *Operator) Apply(ctx context.Context, s *domain.Schedule) (*domain.Schedule, MoveKind, error) {
	if len(s.Games) < 1 {
		return nil, 0, ErrNoMove
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		kind := MoveKind(op.rng.Intn(int(numMoveKinds)))
		cand := s.Clone()

		var ok bool
		switch kind {
		case SwapDates:
			ok = op.swapDates(cand)
		case SwapHomeAway:
			ok = op.swapHomeAway(cand)
		case ReassignDate:
			ok = op.reassignDate(cand)
		case SwapVenues:
			ok = op.swapVenues(cand)
		}
		if !ok {
			continue
		}

		cand.SortGames()
		if !movePreservesInvariants(cand) {
			continue
		}
		return cand, kind, nil
	}

	return nil, 0, ErrNoMove
}

// swapDates exchanges the scheduled instants of two distinct games.
func (op *Operator) swapDates(s *domain.Schedule) bool {
	if len(s.Games) < 2 {
		return false
	}
	i, j := op.twoDistinct(len(s.Games))
	s.Games[i].Date, s.Games[j].Date = s.Games[j].Date, s.Games[i].Date
	return true
}

// swapHomeAway flips the home and away teams of one game. When the game sat
// at the old home team's primary venue it moves to the new home team's
// primary venue.
func (op *Operator) swapHomeAway(s *domain.Schedule) bool {
	g := &s.Games[op.rng.Intn(len(s.Games))]
	oldHome := s.Teams[g.HomeID]
	newHome := s.Teams[g.AwayID]
	if oldHome == nil || newHome == nil {
		return false
	}

	g.HomeID, g.AwayID = g.AwayID, g.HomeID
	if !g.Neutral && g.VenueID == oldHome.PrimaryVenueID {
		g.VenueID = newHome.PrimaryVenueID
	}
	return true
}

// reassignDate moves one game to a uniformly random date within the
// schedule's current date range, preserving the original time of day.
func (op *Operator) reassignDate(s *domain.Schedule) bool {
	first, last, ok := s.DateRange()
	if !ok {
		return false
	}
	startDay := truncateToDay(first.Date)
	endDay := truncateToDay(last.Date)
	spanDays := int(endDay.Sub(startDay).Hours()/24) + 1
	if spanDays < 2 {
		return false
	}

	g := &s.Games[op.rng.Intn(len(s.Games))]
	day := startDay.AddDate(0, 0, op.rng.Intn(spanDays))
	hour, minute := g.Date.Hour(), g.Date.Minute()
	g.Date = time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, g.Date.Location())
	return true
}

// swapVenues exchanges venue assignments between two distinct games. Only
// valid when each venue belongs to the other game's home team, which the
// invariant check enforces.
func (op *Operator) swapVenues(s *domain.Schedule) bool {
	if len(s.Games) < 2 {
		return false
	}
	i, j := op.twoDistinct(len(s.Games))
	if s.Games[i].VenueID == "" || s.Games[j].VenueID == "" {
		return false
	}
	s.Games[i].VenueID, s.Games[j].VenueID = s.Games[j].VenueID, s.Games[i].VenueID
	return true
}

func (op *Operator) twoDistinct(n int) (int, int) {
	i := op.rng.Intn(n)
	j := op.rng.Intn(n - 1)
	if j >= i {
		j++
	}
	return i, j
}

// movePreservesInvariants checks every game still satisfies per-game
// invariants after a move. Per-team game counts are untouched by all four
// move kinds (date swaps and venue/side flips never add or remove games).
func movePreservesInvariants(s *domain.Schedule) bool {
	for i := range s.Games {
		if err := s.ValidateGame(&s.Games[i]); err != nil {
			return false
		}
	}
	return true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
