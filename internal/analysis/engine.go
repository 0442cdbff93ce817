// Package analysis runs the sample- and group-scale biodiversity statistics
// and the permutation ANOVA that tests them for group differences.
package analysis

import (
	"context"
	"log"
	"math"
	"runtime"
	"time"

	"gobiodiv/adapters/rng"
	"gobiodiv/domain/community"
	"gobiodiv/domain/core"
	"gobiodiv/domain/stats"
	"gobiodiv/internal/evenness"
	apperrors "gobiodiv/internal/errors"
	"gobiodiv/ports"
)

// Request describes one analysis
type Request struct {
	Matrix      *community.Matrix
	Grouping    *community.Grouping
	GroupColumn string
	NMin        float64
	NPerm       int
	// Seed 0 asks for a fresh seed, which is recorded in the result
	Seed    int64
	Workers int
}

// NewRequest builds a request from raw rows and per-site group labels
func NewRequest(rows [][]float64, labels []string, nMin float64, nperm int, seed int64) (Request, error) {
	m, err := community.NewMatrix(rows, nil, nil)
	if err != nil {
		return Request{}, err
	}
	g, err := community.NewGrouping(labels, nil)
	if err != nil {
		return Request{}, err
	}
	return Request{Matrix: m, Grouping: g, NMin: nMin, NPerm: nperm, Seed: seed}, nil
}

// Validate reports the first input error. It runs before any computation.
func (r Request) Validate() error {
	if r.Matrix == nil {
		return apperrors.InvalidInputf(core.ErrEmptyCommunity, "request has no community matrix")
	}
	if r.Grouping == nil {
		return apperrors.InvalidInput("request has no grouping")
	}
	if r.NPerm < 1 {
		return apperrors.InvalidInputf(core.ErrInvalidPermutations, "nperm must be at least 1, got %d", r.NPerm)
	}
	if math.IsNaN(r.NMin) || math.IsInf(r.NMin, 0) || r.NMin <= 0 {
		return apperrors.InvalidInput("n_min must be a positive number")
	}
	for i := 0; i < r.Matrix.Sites(); i++ {
		if err := community.CheckAbundances(r.Matrix.Row(i)); err != nil {
			return apperrors.Wrapf(err, "site %d", i+1)
		}
	}
	return r.Grouping.Validate(r.Matrix)
}

// Fingerprint identifies the input and every parameter that changes the
// result. Worker count is excluded since results do not depend on it.
func (r Request) Fingerprint() core.Fingerprint {
	b := core.NewFingerprintBuilder().
		Int(int64(r.Matrix.Fingerprint())).
		Float(r.NMin).
		Int(int64(r.NPerm)).
		Int(r.Seed)
	for _, l := range r.Grouping.Labels() {
		b.String(l)
	}
	b.String("|")
	for _, l := range r.Grouping.Levels() {
		b.String(l)
	}
	return b.Sum()
}

// Fingerprint extends the request fingerprint with the engine settings
// that change results: the PIE formula and the richness estimator.
func (e *Engine) Fingerprint(req Request) core.Fingerprint {
	return core.NewFingerprintBuilder().
		Int(int64(req.Fingerprint())).
		Bool(e.evenness.Options().Unbiased).
		String(e.estimator.Name()).
		Sum()
}

// Observer receives one call per finished run. bundle is nil on failure.
type Observer interface {
	ObserveRun(bundle *stats.ResultBundle, elapsed time.Duration, err error)
}

// Observers fans one run out to several observers in order
type Observers []Observer

func (os Observers) ObserveRun(bundle *stats.ResultBundle, elapsed time.Duration, err error) {
	for _, o := range os {
		if o != nil {
			o.ObserveRun(bundle, elapsed, err)
		}
	}
}

// Engine computes result bundles
type Engine struct {
	rarefier  ports.Rarefier
	estimator ports.RichnessEstimator
	rng       ports.RNGPort
	evenness  *evenness.Calculator
	workers   int
	observer  Observer
	freshSeed func() int64
}

// NewEngine creates an engine using the given collaborators
func NewEngine(rarefier ports.Rarefier, estimator ports.RichnessEstimator, rngPort ports.RNGPort) *Engine {
	return &Engine{
		rarefier:  rarefier,
		estimator: estimator,
		rng:       rngPort,
		evenness:  evenness.Default,
		workers:   runtime.NumCPU(),
		freshSeed: rng.FreshSeed,
	}
}

// SetWorkers sets the default permutation worker count
func (e *Engine) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	e.workers = n
}

// SetObserver attaches run instrumentation
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// SetEvenness replaces the PIE calculator
func (e *Engine) SetEvenness(c *evenness.Calculator) { e.evenness = c }

// Run computes every metric at both scales, tests the tested metrics for
// group differences and returns the immutable result
func (e *Engine) Run(ctx context.Context, req Request) (*stats.ResultBundle, error) {
	start := time.Now()
	bundle, err := e.run(ctx, req)
	if e.observer != nil {
		e.observer.ObserveRun(bundle, time.Since(start), err)
	}
	return bundle, err
}

func (e *Engine) run(ctx context.Context, req Request) (*stats.ResultBundle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m, g := req.Matrix, req.Grouping
	seed := req.Seed
	if seed == 0 {
		seed = e.freshSeed()
	}
	workers := req.Workers
	if workers < 1 {
		workers = e.workers
	}
	runID := core.NewRunID()
	diag := newDiagnostics()

	log.Printf("[Engine] run %s: %d sites, %d species, %d groups, nperm=%d, seed=%d",
		runID, m.Sites(), m.Species(), g.NumLevels(), req.NPerm, seed)

	sites, siteEffort := e.scale(m, req.NMin, stats.ScaleSample, diag)

	pooled, err := Pool(m, g)
	if err != nil {
		return nil, err
	}
	groupRows, groupEffort := e.scale(pooled, req.NMin, stats.ScaleGroup, diag)

	sizes := g.Sizes()
	groups := make([]stats.GroupMetrics, g.NumLevels())
	for k, r := range groupRows {
		groups[k] = stats.GroupMetrics{
			Group:   g.Level(k),
			Size:    sizes[k],
			N:       r.N,
			S:       r.S,
			SRare:   r.SRare,
			SAsymp:  r.SAsymp,
			PIE:     r.PIE,
			ENSPIE:  r.ENSPIE,
			BetaPIE: stats.Missing(),
		}
	}

	for i := range sites {
		k := g.Code(i)
		sites[i].Group = g.Level(k)
		sites[i].BetaPIE = groups[k].PIE.Sub(sites[i].PIE)
	}

	codes := g.Codes()
	cols := make([]*column, len(stats.TestedMetrics))
	observed := make([]fStat, len(cols))
	sc := newScratch(g.NumLevels())
	degenerate := 0
	for c, metric := range stats.TestedMetrics {
		cols[c] = newColumn(metric, stats.SiteColumn(sites, metric.TestStatistic()))
		observed[c] = cols[c].fit(codes, sc)
		if !observed[c].defined() {
			degenerate++
		}
	}
	diag.add(stats.DiagDegenerateANOVA, stats.ScaleSample, degenerate,
		"%d metric(s) have an undefined F statistic and no p-value", degenerate)

	perm := &permutationTest{rng: e.rng, seed: seed, workers: workers}
	null, err := perm.run(ctx, cols, codes, g.NumLevels(), req.NPerm)
	if err != nil {
		return nil, err
	}

	pvalues := make(stats.PValues, len(cols))
	tests := make([]stats.TestDetail, len(cols))
	for c, col := range cols {
		p := empiricalP(observed[c].F, null[c])
		pvalues[col.metric] = p
		tests[c] = stats.TestDetail{
			Metric:      col.metric,
			Statistic:   col.metric.TestStatistic(),
			FObserved:   stats.Of(observed[c].F),
			DFBetween:   observed[c].DFBetween,
			DFWithin:    observed[c].DFWithin,
			ParametricP: observed[c].parametricP(),
			PValue:      p,
			Null:        summarizeNull(null[c]),
		}
	}

	bundle := stats.NewResultBundle(stats.BundleParts{
		RunID:       runID,
		CreatedAt:   core.Now(),
		Fingerprint: e.Fingerprint(req),
		Params: stats.Parameters{
			GroupColumn: req.GroupColumn,
			Levels:      g.Levels(),
			NMin:        req.NMin,
			NPerm:       req.NPerm,
			Seed:        seed,
			Workers:     workers,
			UnbiasedPIE: e.evenness.Options().Unbiased,
			Estimator:   e.estimator.Name(),
			SiteEffort:  siteEffort,
			GroupEffort: groupEffort,
		},
		PValues:     pvalues,
		Sites:       sites,
		Groups:      groups,
		Tests:       tests,
		Diagnostics: diag.list(),
	})

	log.Printf("[Engine] run %s complete: %d diagnostics", runID, len(bundle.Diagnostics()))
	return bundle, nil
}

// scale computes N, S, S_rare, S_asymp, PIE and ENS_PIE for every row of m.
// BetaPIE is left missing.
func (e *Engine) scale(m *community.Matrix, nMin float64, scale stats.Scale, diag *diagnostics) ([]stats.SiteMetrics, stats.Value) {
	totals := m.RowTotals()
	richness := m.Richness()

	zero := 0
	for _, n := range totals {
		if n == 0 {
			zero++
		}
	}
	diag.add(stats.DiagZeroIndividuals, scale, zero,
		"%d %s(s) with no individuals excluded from PIE and ENS_PIE", zero, scale)

	srare, effort := rarefyRows(e.rarefier, m.Rows(), totals, nMin, scale, diag)
	pie, ens := e.evenness.Matrix(m)

	sasymp, err := e.estimator.Estimate(m)
	if err != nil || len(sasymp) != m.Sites() {
		diag.add(stats.DiagEstimatorFailed, scale, m.Sites(),
			"%s estimator failed: %v", e.estimator.Name(), err)
		sasymp = make([]stats.Value, m.Sites())
	}

	out := make([]stats.SiteMetrics, m.Sites())
	for i := range out {
		out[i] = stats.SiteMetrics{
			SiteID:  m.SiteID(i),
			N:       stats.Of(totals[i]),
			S:       stats.Of(float64(richness[i])),
			SRare:   srare[i],
			SAsymp:  sasymp[i],
			PIE:     pie[i],
			ENSPIE:  ens[i],
			BetaPIE: stats.Missing(),
		}
	}
	return out, effort
}
