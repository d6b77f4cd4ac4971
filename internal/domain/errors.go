package domain

import (
	"fmt"
)

// InvalidScheduleError reports a schedule invariant violation, naming the
// invariant that failed.
type InvalidScheduleError struct {
	Invariant string
	Detail    string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule: %s: %s", e.Invariant, e.Detail)
}

// InvalidInputError reports malformed caller input: unknown constraint kinds,
// duplicate game IDs, or games referencing teams outside the team set.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// InvariantViolation reports that a move or refinement produced a schedule
// violating its own invariants. This is an internal bug and is fatal.
type InvariantViolation struct {
	Invariant string
	GameID    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation on game %s: %s", e.GameID, e.Invariant)
}

// ScoringError reports a numeric failure (NaN or Inf) in a score component.
// It is fatal for the chain that produced it.
type ScoringError struct {
	Component string
	Value     float64
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring error in %s component: non-finite value %v", e.Component, e.Value)
}

// OptimizationFailedError reports that every chain failed or timed out
// without producing output.
type OptimizationFailedError struct {
	Chains int
	Reason string
}

func (e *OptimizationFailedError) Error() string {
	return fmt.Sprintf("optimization failed across %d chains: %s", e.Chains, e.Reason)
}

// ConstraintConflict records a constraint pair left unresolved after all
// resolution strategies. Surfaced as a warning in result metadata, not fatal.
type ConstraintConflict struct {
	FirstID  string `json:"first_id"`
	SecondID string `json:"second_id"`
	Reason   string `json:"reason"`
}

func (e *ConstraintConflict) Error() string {
	return fmt.Sprintf("unresolved constraint conflict between %s and %s: %s", e.FirstID, e.SecondID, e.Reason)
}
