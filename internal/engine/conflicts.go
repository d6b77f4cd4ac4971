package engine

import (
	"fmt"
	"math"

	"github.com/schedulehq/conference-optimizer/internal/constraint"
	"github.com/schedulehq/conference-optimizer/internal/domain"
)

// conflictParams maps each kind to the parameter whose disagreement makes two
// same-kind constraints incompatible. Kinds without a tunable parameter never
// conflict with themselves.
var conflictParams = map[constraint.Kind]string{
	constraint.TeamRest:             "min_days",
	constraint.HomeAwayBalance:      "max_deviation",
	constraint.ConsecutiveHomeGames: "max_run",
	constraint.ConsecutiveAwayGames: "max_run",
	constraint.TravelDistance:       "max_miles",
	constraint.WeekendDistribution:  "min_weekend_ratio",
	constraint.SeriesStructure:      "series_length",
}

// weightAdjustmentGap is the minimum weight difference at which the weight
// adjustment strategy applies.
const weightAdjustmentGap = 0.25

// priorityReorderGap is the minimum priority difference at which priority
// reordering applies.
const priorityReorderGap = 10

type conflictResolver struct {
	ctx Context
}

func newConflictResolver(ctx Context) *conflictResolver {
	return &conflictResolver{ctx: ctx}
}

// resolve runs the pairwise conflict pass and applies the five resolution
// strategies in fixed order: weight adjustment, priority reordering,
// relaxation of the lower-priority side, alternative generation, contextual
// exemption. Pairs no strategy can settle are returned as unresolved.
func (r *conflictResolver) resolve(constraints []constraint.Constraint) ([]constraint.Constraint, []domain.ConstraintConflict, []Resolution) {
	var unresolved []domain.ConstraintConflict
	var log []Resolution
	dropped := make(map[int]bool)

	for i := 0; i < len(constraints); i++ {
		for j := i + 1; j < len(constraints); j++ {
			if dropped[i] || dropped[j] {
				continue
			}
			a, b := &constraints[i], &constraints[j]
			reason, conflicting := r.detect(a, b)
			if !conflicting {
				continue
			}

			if res, ok := r.apply(a, b, i, j, dropped); ok {
				log = append(log, res)
				continue
			}

			unresolved = append(unresolved, domain.ConstraintConflict{
				FirstID:  a.ID,
				SecondID: b.ID,
				Reason:   reason,
			})
		}
	}

	kept := make([]constraint.Constraint, 0, len(constraints))
	for i := range constraints {
		if !dropped[i] {
			kept = append(kept, constraints[i])
		}
	}
	return kept, unresolved, log
}

// detect reports whether two constraints address overlapping scope with
// incompatible parameters.
func (r *conflictResolver) detect(a, b *constraint.Constraint) (string, bool) {
	if a.Kind != b.Kind {
		return "", false
	}
	param, ok := conflictParams[a.Kind]
	if !ok {
		return "", false
	}
	if !scopesOverlap(a, b) {
		return "", false
	}

	va := a.ParamFloat(param, math.NaN())
	vb := b.ParamFloat(param, math.NaN())
	if math.IsNaN(va) || math.IsNaN(vb) || va == vb {
		return "", false
	}

	return fmt.Sprintf("%s: %s=%v vs %v on overlapping scope", a.Kind, param, va, vb), true
}

// scopesOverlap reports whether the team scopes of two constraints intersect.
// An empty team list means every team and overlaps everything.
func scopesOverlap(a, b *constraint.Constraint) bool {
	if len(a.Teams) == 0 || len(b.Teams) == 0 {
		return true
	}
	for _, ta := range a.Teams {
		for _, tb := range b.Teams {
			if ta == tb {
				return true
			}
		}
	}
	return false
}

// apply tries each strategy in order against a detected conflict.
func (r *conflictResolver) apply(a, b *constraint.Constraint, ai, bi int, dropped map[int]bool) (Resolution, bool) {
	lower, _ := orderByPriority(a, b)

	// 1. Weight adjustment: a clear weight gap means one side was already
	// meant to dominate; halving the weaker side settles the pair.
	if math.Abs(a.Weight-b.Weight) >= weightAdjustmentGap {
		weaker := a
		if b.Weight < a.Weight {
			weaker = b
		}
		weaker.Weight *= 0.5
		return Resolution{
			FirstID: a.ID, SecondID: b.ID,
			Strategy: "weight_adjustment",
			Detail:   fmt.Sprintf("halved weight of %s to %.3f", weaker.ID, weaker.Weight),
		}, true
	}

	// 2. Priority reordering: widen an existing priority gap so evaluation
	// order favors the stronger side decisively.
	if priorityGap(a, b) >= priorityReorderGap {
		lower.BasePriority -= priorityReorderGap
		if lower.BasePriority < 0 {
			lower.BasePriority = 0
		}
		return Resolution{
			FirstID: a.ID, SecondID: b.ID,
			Strategy: "priority_reordering",
			Detail:   fmt.Sprintf("demoted %s to priority %d", lower.ID, lower.BasePriority),
		}, true
	}

	// 3. Relaxation: the lower-priority side adopts the higher-priority
	// side's parameter value.
	if priorityGap(a, b) > 0 {
		param := conflictParams[a.Kind]
		higher := a
		if higher == lower {
			higher = b
		}
		if lower.Params == nil {
			lower.Params = map[string]any{}
		}
		lower.Params = copyParams(lower.Params)
		lower.Params[param] = higher.ParamFloat(param, 0)
		return Resolution{
			FirstID: a.ID, SecondID: b.ID,
			Strategy: "relaxation",
			Detail:   fmt.Sprintf("%s adopts %s=%v from %s", lower.ID, param, lower.Params[param], higher.ID),
		}, true
	}

	// Equal priority: prefer the more narrowly scoped side.
	if ba, bb := scopeBreadth(a), scopeBreadth(b); ba != bb {
		// 4. Alternative generation: narrow the broader side's team scope to
		// the teams the narrow side does not claim.
		general, specific := a, b
		if ba < bb {
			general, specific = b, a
		}
		if remainder := scopeRemainder(general, specific); remainder != nil {
			general.Teams = remainder
			return Resolution{
				FirstID: a.ID, SecondID: b.ID,
				Strategy: "alternative_generation",
				Detail:   fmt.Sprintf("rescoped %s to %d teams outside %s", general.ID, len(remainder), specific.ID),
			}, true
		}
	}

	// 5. Contextual exemption: a side whose sport scope excludes the run's
	// sport is exempt for this run.
	for idx, c := range []*constraint.Constraint{a, b} {
		if len(c.Sports) > 0 && !c.AppliesTo(r.ctx.Sport) {
			if idx == 0 {
				dropped[ai] = true
			} else {
				dropped[bi] = true
			}
			return Resolution{
				FirstID: a.ID, SecondID: b.ID,
				Strategy: "contextual_exemption",
				Detail:   fmt.Sprintf("%s exempt for sport %s", c.ID, r.ctx.Sport),
			}, true
		}
	}

	// Last resort for equal priority, equal specificity: keep both and
	// downgrade the weaker side to preference.
	weaker := a
	if b.Weight < a.Weight || (b.Weight == a.Weight && b.ID > a.ID) {
		weaker = b
	}
	if weaker.Hardness != constraint.Preference {
		weaker.Hardness = constraint.Preference
		return Resolution{
			FirstID: a.ID, SecondID: b.ID,
			Strategy: "downgrade",
			Detail:   fmt.Sprintf("downgraded %s to preference", weaker.ID),
		}, true
	}

	return Resolution{}, false
}

func orderByPriority(a, b *constraint.Constraint) (lower, higher *constraint.Constraint) {
	if a.BasePriority <= b.BasePriority {
		return a, b
	}
	return b, a
}

func priorityGap(a, b *constraint.Constraint) int {
	gap := a.BasePriority - b.BasePriority
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// scopeBreadth measures how many teams a constraint claims; an unscoped
// constraint claims every team.
func scopeBreadth(c *constraint.Constraint) int {
	if len(c.Teams) == 0 {
		return math.MaxInt
	}
	return len(c.Teams)
}

// scopeRemainder returns general's teams minus specific's teams. When general
// has an unscoped (empty) team list there is no finite remainder to rescope.
func scopeRemainder(general, specific *constraint.Constraint) []string {
	if len(general.Teams) == 0 {
		return nil
	}
	claimed := make(map[string]bool, len(specific.Teams))
	for _, t := range specific.Teams {
		claimed[t] = true
	}
	var remainder []string
	for _, t := range general.Teams {
		if !claimed[t] {
			remainder = append(remainder, t)
		}
	}
	return remainder
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
