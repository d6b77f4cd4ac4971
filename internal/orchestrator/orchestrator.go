package orchestrator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/schedulehq/conference-optimizer/internal/annealer"
	"github.com/schedulehq/conference-optimizer/internal/constraint"
	"github.com/schedulehq/conference-optimizer/internal/domain"
	"github.com/schedulehq/conference-optimizer/internal/engine"
	"github.com/schedulehq/conference-optimizer/internal/refine"
	"github.com/schedulehq/conference-optimizer/internal/scoring"
	"github.com/schedulehq/conference-optimizer/pkg/logger"
)

// topKFraction of successful chains feeds the ensemble, clamped to [1, 3]
// candidates.
const topKFraction = 0.6

// Polish chain scaling relative to the main run.
const (
	polishTempFactor    = 0.5
	polishIterFactor    = 0.2
	polishCoolingFactor = 1.1
)

// Optimizer coordinates the full run: constraint processing, parallel
// annealing chains, candidate selection, ensemble merge, focused polish, and
// final refinement.
type Optimizer struct {
	engine   *engine.Engine
	log      *logrus.Entry
	progress ProgressFunc
}

// New creates an optimizer. log may be nil.
func New(eng *engine.Engine, log *logrus.Entry) *Optimizer {
	if log == nil {
		log = logger.WithService("orchestrator")
	}
	return &Optimizer{engine: eng, log: log}
}

// SetProgress installs an optional progress callback. Events are emitted from
// the orchestrator goroutine.
func (o *Optimizer) SetProgress(fn ProgressFunc) { o.progress = fn }

func (o *Optimizer) emit(kind string, payload map[string]any) {
	if o.progress != nil {
		o.progress(Event{Kind: kind, Payload: payload})
	}
}

type chainOutcome struct {
	index  int
	result *annealer.Result
	cache  *engine.ResultCache
	err    error
}

// Optimize runs the full pipeline and returns a new schedule carrying run
// metadata. The input schedule and constraints are never mutated. On context
// cancellation the best schedule found so far is returned with the partial
// metadata flag set.
func (o *Optimizer) Optimize(ctx context.Context, s *domain.Schedule, raw []constraint.Constraint, opts Options) (*domain.Schedule, error) {
	start := time.Now()
	opts = opts.normalize()
	log := o.log.WithFields(logrus.Fields{"schedule_id": s.ID, "sport": s.Sport})

	if err := s.Validate(); err != nil {
		return nil, &domain.InvalidInputError{Reason: err.Error()}
	}

	processed, err := o.engine.Process(raw, engine.Context{Sport: s.Sport, TeamCount: len(s.Teams)})
	if err != nil {
		return nil, err
	}
	effective := processed.Effective

	distances := scoring.NewDistanceTable(scoring.HaversineProvider{}, scoring.ScheduleLocations(s))
	weights := scoring.WeightsFromConstraints(effective)
	makeScorer := func(cache *engine.ResultCache) annealer.ScoreFunc {
		sc := scoring.NewScorer(weights, distances, func(sched *domain.Schedule) (float64, error) {
			return o.engine.Evaluate(effective, sched, cache).TotalScore, nil
		})
		return sc.Score
	}

	initialScore, err := makeScorer(nil)(s)
	if err != nil {
		return nil, err
	}

	o.emit(EventOptimizationStart, map[string]any{
		"schedule_id":   s.ID,
		"sport":         s.Sport,
		"chains":        opts.ParallelChains,
		"initial_score": initialScore,
	})
	log.WithFields(logrus.Fields{
		"chains":        opts.ParallelChains,
		"constraints":   len(effective),
		"initial_score": initialScore,
	}).Info("Optimization started")

	outcomes := o.runChains(ctx, s, opts, makeScorer, log)

	var ok []chainOutcome
	for _, out := range outcomes {
		if out.err != nil {
			log.WithError(out.err).WithFields(logrus.Fields{"chain": out.index}).Warn("Chain failed")
			continue
		}
		ok = append(ok, out)
	}
	if len(ok) == 0 {
		return nil, &domain.OptimizationFailedError{
			Chains: opts.ParallelChains,
			Reason: "all chains failed or timed out",
		}
	}

	sort.Slice(ok, func(i, j int) bool {
		if ok[i].result.BestScore != ok[j].result.BestScore {
			return ok[i].result.BestScore < ok[j].result.BestScore
		}
		return ok[i].index < ok[j].index
	})

	candidates := selectCandidates(ok, opts.DiversityThreshold)
	best := candidates[0]
	others := make([]*domain.Schedule, 0, len(candidates)-1)
	for _, c := range candidates[1:] {
		others = append(others, c.result.Best)
	}

	ensembled := mergeEnsemble(best.result.Best, others, distances)

	// Ensemble adoption is per-team; keep the chain winner when the combined
	// result regresses.
	ensembleScorer := makeScorer(engine.NewResultCache(opts.CacheSize))
	ensembleScore, err := ensembleScorer(ensembled)
	if err != nil {
		return nil, err
	}
	if ensembleScore > best.result.BestScore {
		ensembled = best.result.Best.Clone()
		ensembleScore = best.result.BestScore
	}

	polished, polishedScore, polishIterations := o.polish(ctx, ensembled, ensembleScore, opts, makeScorer, log)

	refiner := refine.New(refine.Config{
		Passes:      opts.RefinementPasses,
		Seed:        opts.BaseSeed,
		MinRestDays: minRestDays(effective),
	}, log)
	final, refineChanges, refineErr := refiner.Refine(polished)
	if refineErr != nil {
		log.WithError(refineErr).Warn("Refinement failed, keeping pre-refinement schedule")
		final = polished.Clone()
	}
	o.emit(EventRefinementDone, map[string]any{"changes": refineChanges})

	finalScore, err := ensembleScorer(final)
	if err != nil {
		return nil, err
	}
	if finalScore > initialScore {
		// Refinement repairs must not cost more than the whole run gained.
		final = polished.Clone()
		finalScore = polishedScore
	}

	attachMetadata(final, ok, processed, opts, metadataArgs{
		initialScore: initialScore,
		finalScore:   finalScore,
		polishIters:  polishIterations,
		elapsed:      time.Since(start),
		partial:      ctx.Err() != nil || anyPartial(ok),
	})

	o.emit(EventOptimizationComplete, map[string]any{
		"final_score": finalScore,
		"elapsed_ms":  time.Since(start).Milliseconds(),
		"partial":     final.Meta["partial"],
	})
	log.WithFields(logrus.Fields{
		"final_score":   finalScore,
		"initial_score": initialScore,
		"elapsed_ms":    time.Since(start).Milliseconds(),
	}).Info("Optimization complete")

	return final, nil
}

// runChains forks the configured number of annealing chains, each with a
// private RNG seed, perturbed starting temperature, iteration share, private
// evaluation cache, and deadline.
func (o *Optimizer) runChains(ctx context.Context, s *domain.Schedule, opts Options, makeScorer func(*engine.ResultCache) annealer.ScoreFunc, log *logrus.Entry) []chainOutcome {
	n := opts.ParallelChains
	budget := opts.MaxIterations / n
	if budget < 1 {
		budget = 1
	}

	// Temperature perturbations come from one seeded stream so runs with the
	// same base seed replay identically.
	perturb := rand.New(rand.NewSource(opts.BaseSeed))
	temps := make([]float64, n)
	for i := range temps {
		temps[i] = opts.InitialTemperature * (0.8 + 0.4*perturb.Float64())
	}

	sem := make(chan struct{}, opts.MaxWorkers)
	outcomes := make([]chainOutcome, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			chainCtx, cancel := context.WithTimeout(ctx, opts.perChainTimeout())
			defer cancel()

			var cache *engine.ResultCache
			if opts.EnableCache {
				cache = engine.NewResultCache(opts.CacheSize)
			}

			chain := annealer.New(annealer.Config{
				InitialTemperature: temps[idx],
				CoolingRate:        opts.CoolingRate,
				MaxIterations:      budget,
				AdaptiveCooling:    opts.AdaptiveCooling,
				Seed:               opts.BaseSeed ^ int64(idx),
			}, makeScorer(cache), logger.WithChain(s.ID, idx))

			res, err := chain.Run(chainCtx, s)
			outcomes[idx] = chainOutcome{index: idx, result: res, cache: cache, err: err}
		}(i)
	}
	wg.Wait()

	for _, out := range outcomes {
		if out.err == nil {
			o.emit(EventChainDone, map[string]any{
				"chain":      out.index,
				"best_score": out.result.BestScore,
				"iterations": out.result.Iterations,
				"partial":    out.result.Partial,
			})
		}
	}
	return outcomes
}

// polish runs one short low-temperature chain from the ensemble, keeping the
// ensemble when the polish does not improve on it.
func (o *Optimizer) polish(ctx context.Context, ensembled *domain.Schedule, ensembleScore float64, opts Options, makeScorer func(*engine.ResultCache) annealer.ScoreFunc, log *logrus.Entry) (*domain.Schedule, float64, int) {
	cooling := opts.CoolingRate * polishCoolingFactor
	if cooling >= 1 {
		cooling = 0.999
	}
	iters := int(float64(opts.MaxIterations) * polishIterFactor)
	if iters < 1 {
		iters = 1
	}

	var cache *engine.ResultCache
	if opts.EnableCache {
		cache = engine.NewResultCache(opts.CacheSize)
	}
	chain := annealer.New(annealer.Config{
		InitialTemperature: opts.InitialTemperature * polishTempFactor,
		CoolingRate:        cooling,
		MaxIterations:      iters,
		AdaptiveCooling:    opts.AdaptiveCooling,
		Seed:               opts.BaseSeed ^ int64(opts.ParallelChains),
	}, makeScorer(cache), log.WithFields(logrus.Fields{"stage": "polish"}))

	chainCtx, cancel := context.WithTimeout(ctx, opts.perChainTimeout())
	defer cancel()

	res, err := chain.Run(chainCtx, ensembled)
	if err != nil || res.BestScore > ensembleScore {
		if err != nil {
			log.WithError(err).Warn("Polish chain failed, keeping ensemble")
		}
		return ensembled, ensembleScore, 0
	}
	return res.Best, res.BestScore, res.Iterations
}

// selectCandidates takes the top ceil(0.6 * successful) chains (clamped to
// [1, 3]) plus at most one diverse extra whose schedule differs from the best
// by more than the threshold.
func selectCandidates(sorted []chainOutcome, diversityThreshold float64) []chainOutcome {
	k := int(math.Ceil(topKFraction * float64(len(sorted))))
	if k < 1 {
		k = 1
	}
	if k > 3 {
		k = 3
	}
	if k > len(sorted) {
		k = len(sorted)
	}

	candidates := sorted[:k]
	for _, out := range sorted[k:] {
		if diversity(sorted[0].result.Best, out.result.Best) > diversityThreshold {
			candidates = append(candidates[:k:k], out)
			break
		}
	}
	return candidates
}

type metadataArgs struct {
	initialScore float64
	finalScore   float64
	polishIters  int
	elapsed      time.Duration
	partial      bool
}

func attachMetadata(s *domain.Schedule, ok []chainOutcome, processed *engine.ProcessResult, opts Options, args metadataArgs) {
	if s.Meta == nil {
		s.Meta = map[string]any{}
	}

	chainScores := make([]float64, 0, len(ok))
	iterations := args.polishIters
	improvements := 0
	var hits, misses int64
	for _, out := range ok {
		chainScores = append(chainScores, out.result.BestScore)
		iterations += out.result.Iterations
		improvements += out.result.Improvements
		if out.cache != nil {
			hits += out.cache.Hits()
			misses += out.cache.Misses()
		}
	}

	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	conflicts := make([]string, 0, len(processed.Conflicts))
	for _, c := range processed.Conflicts {
		conflicts = append(conflicts, fmt.Sprintf("%s/%s: %s", c.FirstID, c.SecondID, c.Reason))
	}

	s.Meta["final_score"] = args.finalScore
	s.Meta["initial_score"] = args.initialScore
	s.Meta["iterations"] = iterations
	s.Meta["improvements"] = improvements
	s.Meta["chain_scores"] = chainScores
	s.Meta["chain_score_mean"] = stat.Mean(chainScores, nil)
	if len(chainScores) > 1 {
		s.Meta["chain_score_stddev"] = stat.StdDev(chainScores, nil)
	} else {
		s.Meta["chain_score_stddev"] = 0.0
	}
	s.Meta["conflicts_unresolved"] = conflicts
	s.Meta["cache_hit_rate"] = hitRate
	s.Meta["elapsed_ms"] = args.elapsed.Milliseconds()
	s.Meta["partial"] = args.partial
}

func anyPartial(ok []chainOutcome) bool {
	for _, out := range ok {
		if out.result.Partial {
			return true
		}
	}
	return false
}

// minRestDays extracts the tightest rest requirement from the effective set
// so refinement repairs against the same bar the constraints scored.
func minRestDays(effective []constraint.Constraint) float64 {
	days := 0.0
	for i := range effective {
		c := &effective[i]
		if c.Kind != constraint.TeamRest {
			continue
		}
		if v := c.ParamFloat("min_days", 0); v > days {
			days = v
		}
	}
	return days
}
