package analysis

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"gobiodiv/adapters/diversity"
	"gobiodiv/adapters/rng"
	"gobiodiv/domain/community"
	"gobiodiv/domain/core"
	"gobiodiv/domain/stats"
	"gobiodiv/internal/evenness"
	apperrors "gobiodiv/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	e := NewEngine(diversity.NewHurlbertRarefier(), diversity.NewChao1Estimator(), rng.NewSeededRNG())
	e.SetWorkers(4)
	return e
}

func scenarioRequest(t *testing.T) Request {
	t.Helper()
	req, err := NewRequest(
		[][]float64{{10, 0, 0}, {0, 5, 5}, {0, 0, 10}},
		[]string{"A", "A", "B"},
		1, 50, 7,
	)
	require.NoError(t, err)
	return req
}

func TestScenarioThreeSites(t *testing.T) {
	b, err := newTestEngine().Run(context.Background(), scenarioRequest(t))
	require.NoError(t, err)

	sites := b.Sites()
	require.Len(t, sites, 3)
	wantPIE := []float64{0, 0.5, 0}
	wantS := []float64{1, 2, 1}
	for i, s := range sites {
		assert.InDelta(t, wantPIE[i], s.PIE.V, 1e-12, "site %d PIE", i)
		assert.Equal(t, wantS[i], s.S.V, "site %d S", i)
		assert.Equal(t, 10.0, s.N.V)
		assert.InDelta(t, wantS[i], s.SRare.V, 1e-9, "rarefied at own total equals S")
	}
	assert.Equal(t, "A", sites[0].Group)
	assert.Equal(t, "B", sites[2].Group)

	a, ok := b.Group("A")
	require.True(t, ok)
	assert.Equal(t, 2, a.Size)
	assert.Equal(t, 20.0, a.N.V)
	assert.InDelta(t, 0.625, a.PIE.V, 1e-12)
	assert.False(t, a.BetaPIE.Valid)

	assert.InDelta(t, 0.625, sites[0].BetaPIE.V, 1e-12)
	assert.InDelta(t, 0.125, sites[1].BetaPIE.V, 1e-12)
	assert.InDelta(t, 0.0, sites[2].BetaPIE.V, 1e-12)

	assert.Equal(t, 10.0, b.Params().SiteEffort.V)
	assert.Equal(t, int64(7), b.Params().Seed)
	assert.Equal(t, []string{"A", "B"}, b.Params().Levels)
}

func TestScenarioANOVA(t *testing.T) {
	b, err := newTestEngine().Run(context.Background(), scenarioRequest(t))
	require.NoError(t, err)

	s, ok := b.Test(stats.MetricS)
	require.True(t, ok)
	// groups {1,2} and {1}: SSB = 1/6, SSW = 1/2
	assert.InDelta(t, 1.0/3.0, s.FObserved.V, 1e-12)
	assert.Equal(t, 1, s.DFBetween)
	assert.Equal(t, 1, s.DFWithin)
	assert.True(t, s.ParametricP.Valid)
	assert.Equal(t, 50, s.Null.Draws)

	pie, ok := b.Test(stats.MetricPIE)
	require.True(t, ok)
	assert.Equal(t, stats.MetricENSPIE, pie.Statistic)

	// every site holds 10 individuals, so N cannot separate the groups
	n, ok := b.Test(stats.MetricN)
	require.True(t, ok)
	assert.False(t, n.FObserved.Valid)
	assert.False(t, b.PValue(stats.MetricN).Valid)

	var degenerate bool
	for _, d := range b.Diagnostics() {
		if d.Category == stats.DiagDegenerateANOVA {
			degenerate = true
		}
	}
	assert.True(t, degenerate)
}

func TestPValuesWithinBounds(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for _, nperm := range []int{1, 7, 64, 65, 150} {
		rows, labels := randomCommunity(r, 12, 8, 3)
		req, err := NewRequest(rows, labels, 1, nperm, 99)
		require.NoError(t, err)

		b, err := newTestEngine().Run(context.Background(), req)
		require.NoError(t, err)
		for _, m := range stats.TestedMetrics {
			p := b.PValue(m)
			if !p.Valid {
				continue
			}
			assert.GreaterOrEqual(t, p.V, 1/float64(nperm), "%s with nperm=%d", m, nperm)
			assert.LessOrEqual(t, p.V, 1.0)
		}
	}
}

func TestSeededRunsAreIdentical(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	rows, labels := randomCommunity(r, 15, 10, 3)
	req, err := NewRequest(rows, labels, 2, 300, 1234)
	require.NoError(t, err)

	first, err := newTestEngine().Run(context.Background(), req)
	require.NoError(t, err)

	for _, workers := range []int{1, 3, 16} {
		req.Workers = workers
		again, err := newTestEngine().Run(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.PValues(), again.PValues(), "workers=%d", workers)
		assert.Equal(t, first.Fingerprint(), again.Fingerprint())
	}
}

func TestUnseededRunsAgreeWithinNoise(t *testing.T) {
	if testing.Short() {
		t.Skip("large permutation count")
	}
	rows := [][]float64{
		{30, 1, 1, 0}, {28, 2, 0, 1}, {35, 0, 1, 1}, {29, 1, 2, 0},
		{5, 9, 8, 10}, {4, 11, 9, 8}, {6, 8, 10, 9}, {5, 10, 9, 11},
	}
	labels := []string{"a", "a", "a", "a", "b", "b", "b", "b"}
	req, err := NewRequest(rows, labels, 1, 10000, 0)
	require.NoError(t, err)

	e := newTestEngine()
	b1, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	b2, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, int64(0), b1.Params().Seed)
	for _, m := range []stats.Metric{stats.MetricS, stats.MetricPIE} {
		p1, p2 := b1.PValue(m), b2.PValue(m)
		require.True(t, p1.Valid && p2.Valid)
		assert.Less(t, math.Abs(p1.V-p2.V), 0.02, "%s", m)
	}
}

func TestInvalidInputBeforeComputation(t *testing.T) {
	req := scenarioRequest(t)
	req.NPerm = 0
	_, err := newTestEngine().Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidPermutations))
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))

	req = scenarioRequest(t)
	req.NMin = 0
	_, err = newTestEngine().Run(context.Background(), req)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))

	_, err = NewRequest([][]float64{{1, -2}}, []string{"a"}, 1, 10, 1)
	assert.True(t, errors.Is(err, core.ErrNegativeAbundance))

	req = scenarioRequest(t)
	req.Grouping, _ = community.NewGrouping([]string{"A", "B"}, nil)
	_, err = newTestEngine().Run(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrGroupingMismatch))
}

func TestAllSitesBelowMinimum(t *testing.T) {
	req := scenarioRequest(t)
	req.NMin = 1000

	b, err := newTestEngine().Run(context.Background(), req)
	require.NoError(t, err)

	for _, s := range b.Sites() {
		assert.False(t, s.SRare.Valid)
		assert.True(t, s.PIE.Valid, "PIE does not depend on n_min")
	}
	assert.False(t, b.Params().SiteEffort.Valid)
	assert.False(t, b.PValue(stats.MetricSRare).Valid)

	var below []stats.Diagnostic
	for _, d := range b.Diagnostics() {
		if d.Category == stats.DiagBelowMinimum {
			below = append(below, d)
		}
	}
	require.Len(t, below, 2, "one advisory per scale")
	assert.Equal(t, 3, below[0].Count)
	assert.Equal(t, stats.ScaleSample, below[0].Scale)
}

func TestZeroSiteIsMaskedNotFatal(t *testing.T) {
	req, err := NewRequest(
		[][]float64{{4, 4, 0}, {0, 0, 0}, {3, 1, 6}, {2, 2, 2}},
		[]string{"x", "x", "y", "y"}, 1, 20, 8)
	require.NoError(t, err)

	b, err := newTestEngine().Run(context.Background(), req)
	require.NoError(t, err)

	zero := b.Sites()[1]
	assert.False(t, zero.PIE.Valid)
	assert.False(t, zero.ENSPIE.Valid)
	assert.False(t, zero.BetaPIE.Valid)
	assert.False(t, zero.SRare.Valid)
	assert.Equal(t, 0.0, zero.N.V)

	var zeroDiag int
	for _, d := range b.Diagnostics() {
		if d.Category == stats.DiagZeroIndividuals {
			zeroDiag++
		}
	}
	assert.Equal(t, 1, zeroDiag)
}

func TestIdenticalRowsHaveNoSignal(t *testing.T) {
	row := []float64{7, 3, 0, 12, 1}
	rows := [][]float64{row, row, row, row, row, row}
	req, err := NewRequest(rows, []string{"b", "a", "b", "a", "a", "b"}, 1, 40, 2)
	require.NoError(t, err)

	b, err := newTestEngine().Run(context.Background(), req)
	require.NoError(t, err)
	for _, m := range stats.TestedMetrics {
		assert.False(t, b.PValue(m).Valid, "constant %s cannot differ between groups", m)
	}
}

func TestSameCommunityPValuesLookUniform(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	e := newTestEngine()

	var sumN, sumPIE float64
	const trials = 60
	for trial := 0; trial < trials; trial++ {
		rows, labels := randomCommunity(r, 12, 6, 2)
		req, err := NewRequest(rows, labels, 1, 199, int64(trial+1))
		require.NoError(t, err)
		b, err := e.Run(context.Background(), req)
		require.NoError(t, err)
		sumN += b.PValue(stats.MetricN).V
		sumPIE += b.PValue(stats.MetricPIE).V
	}
	assert.InDelta(t, 0.5, sumN/trials, 0.2)
	assert.InDelta(t, 0.5, sumPIE/trials, 0.2)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := scenarioRequest(t)
	_, err := newTestEngine().Run(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingEstimator struct{}

func (failingEstimator) Name() string { return "broken" }
func (failingEstimator) Estimate(*community.Matrix) ([]stats.Value, error) {
	return nil, errors.New("boom")
}

func TestEstimatorFailureIsAdvisory(t *testing.T) {
	e := NewEngine(diversity.NewHurlbertRarefier(), failingEstimator{}, rng.NewSeededRNG())
	b, err := e.Run(context.Background(), scenarioRequest(t))
	require.NoError(t, err)

	for _, s := range b.Sites() {
		assert.False(t, s.SAsymp.Valid)
	}
	var found bool
	for _, d := range b.Diagnostics() {
		if d.Category == stats.DiagEstimatorFailed && d.Scale == stats.ScaleSample {
			found = true
			assert.Equal(t, 3, d.Count)
		}
	}
	assert.True(t, found)
}

type recordingObserver struct {
	calls int
	err   error
}

func (o *recordingObserver) ObserveRun(_ *stats.ResultBundle, _ time.Duration, err error) {
	o.calls++
	o.err = err
}

func TestObserverSeesEveryRun(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine()
	e.SetObserver(obs)

	_, err := e.Run(context.Background(), scenarioRequest(t))
	require.NoError(t, err)

	bad := scenarioRequest(t)
	bad.NPerm = -1
	_, err = e.Run(context.Background(), bad)
	require.Error(t, err)

	assert.Equal(t, 2, obs.calls)
	assert.Error(t, obs.err)
}

// randomCommunity draws every site from the same species pool, so group
// labels carry no signal
func randomCommunity(r *rand.Rand, sites, species, groups int) ([][]float64, []string) {
	rows := make([][]float64, sites)
	labels := make([]string, sites)
	for i := range rows {
		rows[i] = make([]float64, species)
		for j := range rows[i] {
			rows[i][j] = float64(r.Intn(2 + j*3))
		}
		rows[i][0]++
		labels[i] = string(rune('A' + i%groups))
	}
	return rows, labels
}

type renamedEstimator struct{ diversity.Chao1Estimator }

func (renamedEstimator) Name() string { return "chao1-copy" }

func TestFingerprintCoversEngineSettings(t *testing.T) {
	req := scenarioRequest(t)

	plain := newTestEngine()
	unbiased := newTestEngine()
	unbiased.SetEvenness(evenness.NewCalculator(evenness.Options{Unbiased: true}))
	other := NewEngine(diversity.NewHurlbertRarefier(), renamedEstimator{}, rng.NewSeededRNG())

	assert.Equal(t, plain.Fingerprint(req), newTestEngine().Fingerprint(req))
	assert.NotEqual(t, plain.Fingerprint(req), unbiased.Fingerprint(req))
	assert.NotEqual(t, plain.Fingerprint(req), other.Fingerprint(req))

	a, err := plain.Run(context.Background(), req)
	require.NoError(t, err)
	b, err := unbiased.Run(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, plain.Fingerprint(req), a.Fingerprint())
	assert.False(t, a.Params().UnbiasedPIE)
	assert.True(t, b.Params().UnbiasedPIE)
	assert.Equal(t, "chao1", a.Params().Estimator)
	ga, _ := a.Group("A")
	gb, _ := b.Group("A")
	assert.NotEqual(t, ga.PIE, gb.PIE)
}
