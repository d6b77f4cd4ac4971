package annealer

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/schedulehq/conference-optimizer/internal/domain"
	"github.com/schedulehq/conference-optimizer/internal/operator"
)

// minTemperature is the floor at which a chain stops exploring.
const minTemperature = 0.1

// coolingInterval is how many iterations pass between temperature updates.
const coolingInterval = 100

// stagnationWindow is how many iterations without improvement trigger faster
// cooling when adaptive cooling is on.
const defaultStagnationWindow = 500

// ScoreFunc evaluates a candidate schedule. It has read access only and must
// not mutate the schedule. Lower is better.
type ScoreFunc func(*domain.Schedule) (float64, error)

// Config parameterizes one annealing chain. Given identical config and
// initial schedule, a chain is fully deterministic: its RNG is private and
// seeded from Seed.
type Config struct {
	InitialTemperature float64
	CoolingRate        float64
	MaxIterations      int
	AdaptiveCooling    bool
	StagnationWindow   int
	Seed               int64
}

// Result is a completed chain's output.
type Result struct {
	Best           *domain.Schedule
	BestScore      float64
	Iterations     int
	Improvements   int
	AcceptanceRate float64
	Partial        bool
}

// Chain is a single simulated annealing run over schedule neighborhoods.
type Chain struct {
	cfg   Config
	score ScoreFunc
	log   *logrus.Entry
}

// New creates a chain. log may be nil.
func New(cfg Config, score ScoreFunc, log *logrus.Entry) *Chain {
	if cfg.StagnationWindow <= 0 {
		cfg.StagnationWindow = defaultStagnationWindow
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Chain{cfg: cfg, score: score, log: log}
}

// Run executes the annealing loop until the temperature floor, the iteration
// budget, or cancellation. On cancellation the best schedule found so far is
// returned with Partial set.
func (c *Chain) Run(ctx context.Context, initial *domain.Schedule) (*Result, error) {
	rng := rand.New(rand.NewSource(c.cfg.Seed))
	op := operator.New(rng)

	current := initial.Clone()
	currentScore, err := c.score(current)
	if err != nil {
		return nil, err
	}

	best := current
	bestScore := currentScore

	temperature := c.cfg.InitialTemperature
	cooling := c.cfg.CoolingRate
	cooledForStagnation := false

	iterations := 0
	accepted := 0
	improvements := 0
	lastImprovement := 0

	for temperature > minTemperature && iterations < c.cfg.MaxIterations {
		if ctx.Err() != nil {
			return c.result(best, bestScore, iterations, improvements, accepted, true), nil
		}

		cand, _, err := op.Apply(ctx, current)
		if err != nil {
			if errors.Is(err, operator.ErrNoMove) {
				iterations++
				continue
			}
			// Context cancellation surfaces through the operator too.
			return c.result(best, bestScore, iterations, improvements, accepted, true), nil
		}

		candScore, err := c.score(cand)
		if err != nil {
			return nil, err
		}

		if accept(candScore, currentScore, temperature, rng) {
			current = cand
			currentScore = candScore
			accepted++

			if candScore < bestScore {
				best = cand
				bestScore = candScore
				improvements++
				lastImprovement = iterations
			}
		}

		iterations++
		if iterations%coolingInterval == 0 {
			temperature *= cooling
		}

		// One-time cooling acceleration when the chain has gone stale.
		if c.cfg.AdaptiveCooling && !cooledForStagnation &&
			iterations-lastImprovement >= c.cfg.StagnationWindow {
			cooling *= 1.05
			if cooling > 0.999 {
				cooling = 0.999
			}
			cooledForStagnation = true
		}
	}

	res := c.result(best, bestScore, iterations, improvements, accepted, false)
	c.log.WithFields(logrus.Fields{
		"iterations":      res.Iterations,
		"improvements":    res.Improvements,
		"acceptance_rate": res.AcceptanceRate,
		"best_score":      res.BestScore,
	}).Debug("Chain complete")
	return res, nil
}

func (c *Chain) result(best *domain.Schedule, bestScore float64, iterations, improvements, accepted int, partial bool) *Result {
	rate := 0.0
	if iterations > 0 {
		rate = float64(accepted) / float64(iterations)
	}
	return &Result{
		Best:           best,
		BestScore:      bestScore,
		Iterations:     iterations,
		Improvements:   improvements,
		AcceptanceRate: rate,
		Partial:        partial,
	}
}

// accept implements the Metropolis criterion: always take improvements,
// otherwise accept with probability exp(-(delta)/T). The exponent is computed
// in one place so acceptance semantics cannot drift between optimizers.
func accept(candScore, currentScore, temperature float64, rng *rand.Rand) bool {
	if candScore < currentScore {
		return true
	}
	if temperature <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(-(candScore-currentScore)/temperature)
}
