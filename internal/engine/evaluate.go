package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/schedulehq/conference-optimizer/internal/constraint"
	"github.com/schedulehq/conference-optimizer/internal/domain"
)

// EvaluationResult aggregates per-constraint results for a schedule.
// TotalScore is the sum of weighted penalties (lower is better);
// OverallCompliance is the satisfied-hard to total-hard ratio.
type EvaluationResult struct {
	Results           []ConstraintResult `json:"results"`
	TotalScore        float64            `json:"total_score"`
	OverallCompliance float64            `json:"overall_compliance"`
	HardViolations    int                `json:"hard_violations"`
	CacheHit          bool               `json:"cache_hit,omitempty"`
}

// Evaluate scores every effective constraint against the schedule. When a
// cache is supplied, the (constraints, schedule) fingerprint is consulted
// first and populated on miss.
func (e *Engine) Evaluate(constraints []constraint.Constraint, s *domain.Schedule, cache *ResultCache) *EvaluationResult {
	var key string
	if cache != nil {
		key = Fingerprint(constraints, s)
		if cached, ok := cache.Get(key); ok {
			hit := *cached
			hit.CacheHit = true
			return &hit
		}
	}

	result := &EvaluationResult{Results: make([]ConstraintResult, 0, len(constraints))}
	totalHard, satisfiedHard := 0, 0

	for i := range constraints {
		c := &constraints[i]
		cr := evaluateConstraint(c, s)
		result.Results = append(result.Results, cr)
		result.TotalScore += cr.WeightedScore

		if c.Hardness == constraint.Hard {
			totalHard++
			if cr.Status == StatusSatisfied {
				satisfiedHard++
			} else if len(cr.Violations) > 0 {
				result.HardViolations += len(cr.Violations)
			}
		}
	}

	if totalHard == 0 {
		result.OverallCompliance = 1.0
	} else {
		result.OverallCompliance = float64(satisfiedHard) / float64(totalHard)
	}

	if cache != nil {
		cache.Put(key, result)
	}
	return result
}

// Modification is a proposed local schedule edit checked interactively before
// being applied.
type Modification struct {
	GameID       string     `json:"game_id"`
	NewDate      *time.Time `json:"new_date,omitempty"`
	NewVenueID   *string    `json:"new_venue,omitempty"`
	SwapHomeAway bool       `json:"swap_home_away,omitempty"`
}

// ValidationResult reports whether a modification is safe to apply.
type ValidationResult struct {
	Valid       bool     `json:"valid"`
	Reason      string   `json:"reason,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ValidateModification applies the modification to a clone and checks that no
// hard constraint is violated strictly more than before. It is a cheap local
// check intended for interactive use.
func (e *Engine) ValidateModification(mod Modification, active []constraint.Constraint, s *domain.Schedule) *ValidationResult {
	candidate := s.Clone()
	idx := -1
	for i := range candidate.Games {
		if candidate.Games[i].ID == mod.GameID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &ValidationResult{Valid: false, Reason: "game not found: " + mod.GameID}
	}

	g := &candidate.Games[idx]
	if mod.NewDate != nil {
		g.Date = *mod.NewDate
	}
	if mod.NewVenueID != nil {
		g.VenueID = *mod.NewVenueID
	}
	if mod.SwapHomeAway {
		g.HomeID, g.AwayID = g.AwayID, g.HomeID
		if home := candidate.Teams[g.HomeID]; home != nil && !g.Neutral {
			g.VenueID = home.PrimaryVenueID
		}
	}
	if err := candidate.ValidateGame(g); err != nil {
		return &ValidationResult{Valid: false, Reason: err.Error()}
	}
	candidate.SortGames()

	hard := hardOnly(active)
	before := e.Evaluate(hard, s, nil)
	after := e.Evaluate(hard, candidate, nil)

	beforeCounts := make(map[string]int, len(before.Results))
	for _, r := range before.Results {
		beforeCounts[r.ConstraintID] = len(r.Violations)
	}

	var suggestions []string
	for _, r := range after.Results {
		suggestions = append(suggestions, r.Suggestions...)
	}

	// An improvement on one hard constraint never buys a regression on
	// another: each hard constraint is compared against its own baseline.
	for _, r := range after.Results {
		if len(r.Violations) <= beforeCounts[r.ConstraintID] {
			continue
		}
		e.log.WithFields(logrus.Fields{
			"game_id":           mod.GameID,
			"constraint_id":     r.ConstraintID,
			"violations_before": beforeCounts[r.ConstraintID],
			"violations_after":  len(r.Violations),
		}).Debug("Modification rejected")
		return &ValidationResult{
			Valid:       false,
			Reason:      "modification increases violations of hard constraint " + r.ConstraintID,
			Suggestions: suggestions,
		}
	}

	return &ValidationResult{Valid: true, Suggestions: suggestions}
}

func hardOnly(constraints []constraint.Constraint) []constraint.Constraint {
	var hard []constraint.Constraint
	for i := range constraints {
		if constraints[i].Hardness == constraint.Hard {
			hard = append(hard, constraints[i])
		}
	}
	return hard
}
