package epipolar

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the RANSAC estimator.
type Config struct {
	Threshold          float64    // Inlier distance in pixels
	MaxIterations      int        // Initial iteration budget, only ever shrinks
	FailureProbability float64    // Target probability of never drawing an all-inlier sample
	MinSupport         int        // Best inlier count above which the budget adapts
	MaxTrials          int        // Hard trial cap, 0 disables
	Workers            int        // Number of concurrent workers, <= 1 runs sequentially
	Normalizer         Normalizer // Conditioning strategy, nil means FixedScale{DefaultScale}
	Symmetric          bool       // Also check the image B distance
	Refine             bool       // Refit on all inliers after the loop
	MinSampleSpread    float64    // Reject samples with points closer than this (pixels), 0 disables
	Verbose            bool       // Log best-model improvements
	RNG                *rand.Rand // Random number generator for deterministic behavior
}

// DefaultConfig returns the classic settings: 1.5 px threshold, 100000
// initial trials, 1% failure probability, adaptation after 50 inliers.
func DefaultConfig() Config {
	return Config{
		Threshold:          DefaultThreshold,
		MaxIterations:      100000,
		FailureProbability: 0.01,
		MinSupport:         50,
		Workers:            1,
		Normalizer:         FixedScale{Scale: DefaultScale},
		RNG:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// withDefaults fills zero values from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.FailureProbability <= 0 || c.FailureProbability >= 1 {
		c.FailureProbability = d.FailureProbability
	}
	if c.MinSupport <= 0 {
		c.MinSupport = d.MinSupport
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Normalizer == nil {
		c.Normalizer = d.Normalizer
	}
	if c.RNG == nil {
		c.RNG = d.RNG
	}
	return c
}

// Improvement records one replacement of the best model
type Improvement struct {
	Trial   int `json:"trial"`
	Inliers int `json:"inliers"`
	Budget  int `json:"budget"`
}

// Result is the outcome of an estimation run
type Result struct {
	F           FundamentalMatrix `json:"f"`
	Inliers     []int             `json:"inliers"` // Indices into the store before compaction
	InlierCount int               `json:"inlierCount"`
	Total       int               `json:"total"`
	Trials      int               `json:"trials"`
	Budget      int               `json:"budget"`
	BestTrial   int               `json:"bestTrial"`
	Refined     bool              `json:"refined"`
	Status      Status            `json:"status"`
	Trace       []Improvement     `json:"trace,omitempty"`
}

// InlierRatio returns InlierCount / Total
func (r Result) InlierRatio() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.InlierCount) / float64(r.Total)
}

// Estimator runs RANSAC over the eight-point solver. It draws from the
// configured RNG, so a single Estimator must not run concurrent Estimate calls.
type Estimator struct {
	config Config
}

// NewEstimator creates an estimator; zero-valued fields take defaults
func NewEstimator(config Config) *Estimator {
	return &Estimator{config: config.withDefaults()}
}

// Config returns the effective configuration
func (e *Estimator) Config() Config {
	return e.config
}

// AdaptiveBudget returns min(current, ceil(log β / log(1 − w^k))) with
// w = inliers/total. The current budget is kept when the bound is undefined
// or larger.
func AdaptiveBudget(current, inliers, total, k int, beta float64) int {
	if total <= 0 || inliers <= 0 {
		return current
	}
	w := float64(inliers) / float64(total)
	miss := 1 - math.Pow(w, float64(k))
	if miss <= 0 {
		// Every sample is all-inlier; one trial is enough.
		return min(current, 1)
	}
	n := math.Ceil(math.Log(beta) / math.Log(miss))
	if math.IsNaN(n) || math.IsInf(n, 0) || n >= float64(current) {
		return current
	}
	if n < 1 {
		n = 1
	}
	return int(n)
}

// model is one candidate: matrix, inliers and the trial that produced it
type model struct {
	f       Matrix3
	inliers []int
	trial   int
}

// better reports whether a trial result should replace the best model.
// The first trial always wins, so a best model exists after one trial.
// Strictly more inliers wins; equal counts go to the lowest trial index.
func (m *model) better(count, trial int) bool {
	if m.trial < 0 || count > len(m.inliers) {
		return true
	}
	return count == len(m.inliers) && trial < m.trial
}

// worker holds the per-goroutine sampler and scratch buffers
type worker struct {
	cfg     *Config
	store   *Store
	sampler *Sampler
	idx     []int
	sample  []Correspondence
	inliers []int
}

func newWorker(cfg *Config, store *Store, rng *rand.Rand) *worker {
	return &worker{
		cfg:     cfg,
		store:   store,
		sampler: NewSampler(rng),
		idx:     make([]int, SampleSize),
		sample:  make([]Correspondence, SampleSize),
		inliers: make([]int, 0, store.Len()),
	}
}

// maxResample bounds the redraws of a sample rejected by the spread check
const maxResample = 100

// trial draws a sample, fits a candidate and scores it. The returned inlier
// slice aliases the worker buffer. ok is false when the solver produced no
// usable matrix; such a trial counts but never becomes the best model.
func (w *worker) trial() (f Matrix3, inliers []int, ok bool) {
	for attempt := 0; ; attempt++ {
		// Estimate has checked store.Len() >= SampleSize, the only failure.
		w.idx, _ = w.sampler.Sample(w.store.Len(), SampleSize, w.idx)
		for i, j := range w.idx {
			w.sample[i] = w.store.At(j)
		}
		if w.cfg.MinSampleSpread <= 0 || attempt >= maxResample ||
			minSampleSpread(w.sample) >= w.cfg.MinSampleSpread {
			break
		}
	}
	f, err := FitSample(w.sample, w.cfg.Normalizer)
	if err != nil {
		return Matrix3{}, w.inliers[:0], false
	}
	w.inliers = appendInliers(w.inliers, w.store, f, w.cfg.Threshold, w.cfg.Symmetric)
	return f, w.inliers, true
}

// minSampleSpread returns the smallest pairwise distance between sample
// points within either image.
func minSampleSpread(sample []Correspondence) float64 {
	minDist := math.MaxFloat64
	for i := range sample {
		for j := i + 1; j < len(sample); j++ {
			dA := planar.Distance(orb.Point{sample[i].X1, sample[i].Y1}, orb.Point{sample[j].X1, sample[j].Y1})
			dB := planar.Distance(orb.Point{sample[i].X2, sample[i].Y2}, orb.Point{sample[j].X2, sample[j].Y2})
			minDist = math.Min(minDist, math.Min(dA, dB))
		}
	}
	return minDist
}

// Estimate runs RANSAC on the store and returns the best model. On return the
// store holds only the winning inliers, in their original relative order.
// Only ErrInsufficientCorrespondences aborts; non-convergence and
// cancellation are reported through Result.Status.
func (e *Estimator) Estimate(ctx context.Context, store *Store) (Result, error) {
	cfg := e.config
	n := store.Len()
	if n < SampleSize {
		return Result{}, fmt.Errorf("estimating fundamental matrix from %d correspondences: %w", n, ErrInsufficientCorrespondences)
	}

	var st *searchState
	if cfg.Workers > 1 {
		st = e.runParallel(ctx, store)
	} else {
		st = e.runSequential(ctx, store)
	}

	if st.best.trial < 0 {
		return Result{}, fmt.Errorf("no usable model after %d trials: %w", st.trials, ErrDegenerateModel)
	}

	best := st.best
	result := Result{
		F:         best.f,
		Inliers:   best.inliers,
		Total:     n,
		Trials:    st.trials,
		Budget:    st.budget,
		BestTrial: best.trial,
		Trace:     st.trace,
	}

	if cfg.Refine && len(best.inliers) >= SampleSize {
		pairs := make([]Correspondence, len(best.inliers))
		for i, idx := range best.inliers {
			pairs[i] = store.At(idx)
		}
		refined, err := FitSample(pairs, cfg.Normalizer)
		if err != nil {
			if cfg.Verbose {
				log.Printf("RANSAC: refinement skipped: %v", err)
			}
		} else if inl := Classify(store, refined, cfg.Threshold, cfg.Symmetric); len(inl) >= len(best.inliers) {
			result.F = refined
			result.Inliers = inl
			result.Refined = true
		}
	}

	result.InlierCount = len(result.Inliers)
	switch {
	case st.cancelled:
		result.Status = StatusCancelled
	case len(best.inliers) > cfg.MinSupport:
		result.Status = StatusConverged
	default:
		result.Status = StatusNoConvergence
	}

	if cfg.Verbose {
		log.Printf("RANSAC: done status=%s trials=%d inliers=%d/%d", result.Status, result.Trials, result.InlierCount, n)
	}

	store.Retain(result.Inliers)
	return result, nil
}

// searchState is the Best-Model State plus the shared budget
type searchState struct {
	mu        sync.Mutex
	best      model
	budget    int
	trials    int
	cancelled bool
	trace     []Improvement

	// Parallel runs only: results waiting for lower trial indices, the next
	// index to apply and whether the budget or MaxTrials has been reached.
	pending map[int]trialResult
	next    int
	done    bool
}

// trialResult is one finished trial; inliers is owned by the result
type trialResult struct {
	trial   int
	f       Matrix3
	inliers []int
	ok      bool
}

func newSearchState(cfg *Config) *searchState {
	return &searchState{
		budget:  cfg.MaxIterations,
		best:    model{trial: -1},
		pending: make(map[int]trialResult),
	}
}

// offer considers a trial result; the caller holds st.mu when running in
// parallel.
func (st *searchState) offer(cfg *Config, f Matrix3, inliers []int, trial, total int) {
	if !st.best.better(len(inliers), trial) {
		return
	}
	st.best = model{f: f, inliers: append([]int(nil), inliers...), trial: trial}
	if len(inliers) > cfg.MinSupport {
		st.budget = AdaptiveBudget(st.budget, len(inliers), total, SampleSize, cfg.FailureProbability)
	}
	st.trace = append(st.trace, Improvement{Trial: trial, Inliers: len(inliers), Budget: st.budget})
	if cfg.Verbose {
		log.Printf("RANSAC: trial=%d inliers=%d/%d budget=%d", trial, len(inliers), total, st.budget)
	}
}

// complete records a parallel trial and applies every result whose lower
// indices are all in, in trial order, with the same stopping rules as the
// sequential loop. Results at or past the stopping point are dropped. The
// caller holds st.mu.
func (st *searchState) complete(cfg *Config, r trialResult, total int) {
	if st.done || r.trial < st.next {
		return
	}
	st.pending[r.trial] = r
	for !st.done {
		p, ok := st.pending[st.next]
		if !ok {
			return
		}
		delete(st.pending, st.next)
		if p.ok {
			st.offer(cfg, p.f, p.inliers, p.trial, total)
		}
		st.next++
		st.trials = st.next
		switch {
		case cfg.MaxTrials > 0 && st.next >= cfg.MaxTrials && st.next < st.budget:
			st.cancelled = true
			st.done = true
		case st.next >= st.budget:
			st.done = true
		}
	}
	clear(st.pending)
}

// stop reports whether a worker should skip trial t; the caller holds st.mu
func (st *searchState) stop(cfg *Config, t int) bool {
	return st.done || t >= st.budget || (cfg.MaxTrials > 0 && t >= cfg.MaxTrials)
}

func (e *Estimator) runSequential(ctx context.Context, store *Store) *searchState {
	cfg := &e.config
	st := newSearchState(cfg)
	w := newWorker(cfg, store, cfg.RNG)

	for t := 0; ; {
		if f, inliers, ok := w.trial(); ok {
			st.offer(cfg, f, inliers, t, store.Len())
		}

		t++
		st.trials = t
		if ctx.Err() != nil || (cfg.MaxTrials > 0 && t >= cfg.MaxTrials && t < st.budget) {
			st.cancelled = true
			break
		}
		if t >= st.budget {
			break
		}
	}
	return st
}

// runParallel spreads trials over cfg.Workers goroutines. Worker w runs trial
// indices w, w+W, w+2W… with its own PRNG. Results are applied in trial
// order, so the outcome depends on the seed and worker count but not on
// scheduling. The budget seen by workers only reflects trials applied so far,
// which keeps it at or above the final budget: every trial below the final
// budget runs.
func (e *Estimator) runParallel(ctx context.Context, store *Store) *searchState {
	cfg := &e.config
	st := newSearchState(cfg)
	workers := cfg.Workers

	seeds := make([]int64, workers)
	for i := range seeds {
		seeds[i] = cfg.RNG.Int63()
	}

	g, gctx := errgroup.WithContext(ctx)
	for wi := 0; wi < workers; wi++ {
		g.Go(func() error {
			w := newWorker(cfg, store, rand.New(rand.NewSource(seeds[wi])))
			for t := wi; ; t += workers {
				st.mu.Lock()
				stop := st.stop(cfg, t)
				st.mu.Unlock()
				if stop {
					return nil
				}

				f, inliers, ok := w.trial()
				r := trialResult{trial: t, f: f, inliers: append([]int(nil), inliers...), ok: ok}

				st.mu.Lock()
				st.complete(cfg, r, store.Len())
				st.mu.Unlock()

				if gctx.Err() != nil {
					return nil
				}
			}
		})
	}
	// Workers never return an error; Wait only joins them.
	_ = g.Wait()

	// Trial 0 always runs, so an unfinished replay means cancellation.
	if !st.done {
		st.cancelled = true
	}
	return st
}

// EstimateFundamental is a convenience wrapper: builds a store from matches,
// runs the estimator and returns the result with the retained inliers.
func EstimateFundamental(ctx context.Context, matches []Correspondence, config Config) (Result, []Correspondence, error) {
	store, err := NewStore(matches)
	if err != nil {
		return Result{}, nil, err
	}
	result, err := NewEstimator(config).Estimate(ctx, store)
	if err != nil {
		return Result{}, nil, err
	}
	return result, store.Correspondences(), nil
}
