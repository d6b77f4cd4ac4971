package engine

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/schedulehq/conference-optimizer/internal/constraint"
	"github.com/schedulehq/conference-optimizer/internal/domain"
)

// Context carries the schedule attributes that influence constraint
// weighting: the sport and the size of the conference.
type Context struct {
	Sport     string `json:"sport"`
	TeamCount int    `json:"team_count"`
}

// largeConferenceTeams is the size at which logistics constraints are
// strengthened: coordinating travel across a bigger footprint costs more.
const largeConferenceTeams = 12

const logisticsBoost = 1.2

// ProcessResult is the output of constraint processing: the ordered effective
// set, any unresolved conflicts, and the resolution log.
type ProcessResult struct {
	Effective  []constraint.Constraint     `json:"effective_constraints"`
	Conflicts  []domain.ConstraintConflict `json:"conflicts,omitempty"`
	Resolution []Resolution                `json:"resolution_log,omitempty"`
}

// Resolution records one conflict-resolution decision.
type Resolution struct {
	FirstID  string `json:"first_id"`
	SecondID string `json:"second_id"`
	Strategy string `json:"strategy"`
	Detail   string `json:"detail"`
}

// Engine normalizes, weights and evaluates constraints. It holds no mutable
// schedule state; the fingerprint cache is supplied per call site so chains
// can keep private caches.
type Engine struct {
	log *logrus.Entry
}

// New creates a constraint engine.
func New(log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{log: log}
}

// Process normalizes raw constraints, applies per-sport multipliers and
// contextual adjustments, detects pairwise conflicts and resolves them,
// returning a stably ordered effective constraint list.
//
// Ordering is by hardness (hard < soft < preference), then descending
// priority, then ascending ID.
func (e *Engine) Process(raw []constraint.Constraint, ctx Context) (*ProcessResult, error) {
	effective := make([]constraint.Constraint, 0, len(raw))

	for i := range raw {
		c := raw[i]
		if !constraint.KnownKind(c.Kind) {
			return nil, &domain.InvalidInputError{Reason: fmt.Sprintf("unknown constraint kind %q", c.Kind)}
		}
		normalize(&c, i)
		if !c.AppliesTo(ctx.Sport) {
			continue
		}

		c.Weight *= constraint.SportMultiplier(ctx.Sport, c.Kind)
		if ctx.TeamCount >= largeConferenceTeams && c.Category == "logistics" {
			c.Weight *= logisticsBoost
		}
		effective = append(effective, c)
	}

	resolver := newConflictResolver(ctx)
	effective, conflicts, log := resolver.resolve(effective)

	sortConstraints(effective)

	e.log.WithFields(logrus.Fields{
		"input_constraints":     len(raw),
		"effective_constraints": len(effective),
		"conflicts_unresolved":  len(conflicts),
		"sport":                 ctx.Sport,
		"team_count":            ctx.TeamCount,
	}).Debug("Constraint processing complete")

	return &ProcessResult{Effective: effective, Conflicts: conflicts, Resolution: log}, nil
}

// normalize fills library defaults for zero-valued fields and stamps an ID
// when the constraint has none. Stamped IDs derive from the input position so
// repeated runs over the same request produce the same IDs, which keeps
// conflict resolution tie-breaks reproducible.
func normalize(c *constraint.Constraint, idx int) {
	def, _ := constraint.LookupDefinition(c.Kind)
	if c.Hardness == "" {
		c.Hardness = def.Hardness
	}
	if c.BasePriority == 0 {
		c.BasePriority = def.BasePriority
	}
	if c.Category == "" {
		c.Category = def.Category
	}
	if c.Weight == 0 {
		c.Weight = 1.0
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("%s-%d", c.Kind, idx)
	}
}

func sortConstraints(constraints []constraint.Constraint) {
	sort.SliceStable(constraints, func(i, j int) bool {
		a, b := &constraints[i], &constraints[j]
		if a.Hardness.Rank() != b.Hardness.Rank() {
			return a.Hardness.Rank() < b.Hardness.Rank()
		}
		if a.BasePriority != b.BasePriority {
			return a.BasePriority > b.BasePriority
		}
		return a.ID < b.ID
	})
}
