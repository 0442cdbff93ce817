package stats

import (
	"encoding/json"

	"gobiodiv/domain/core"
)

// Kind tags a result so presentation code can dispatch on it
type Kind string

const KindMobStats Kind = "mob_stats"

// PValues holds one empirical p-value per tested metric
type PValues map[Metric]Value

// NullSummary describes a permutation null distribution
type NullSummary struct {
	Draws        int     `json:"draws"`
	Defined      int     `json:"defined"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
}

// TestDetail records the one-way ANOVA for one metric
type TestDetail struct {
	Metric      Metric      `json:"metric"`
	Statistic   Metric      `json:"statistic"`
	FObserved   Value       `json:"f_observed"`
	DFBetween   int         `json:"df_between"`
	DFWithin    int         `json:"df_within"`
	ParametricP Value       `json:"parametric_p"`
	PValue      Value       `json:"p_value"`
	Null        NullSummary `json:"null"`
}

// DiagnosticCategory names a class of non-fatal condition
type DiagnosticCategory string

const (
	DiagBelowMinimum      DiagnosticCategory = "below_n_min"
	DiagZeroIndividuals   DiagnosticCategory = "zero_individuals"
	DiagRarefactionFailed DiagnosticCategory = "rarefaction_failed"
	DiagEstimatorFailed   DiagnosticCategory = "estimator_failed"
	DiagDegenerateANOVA   DiagnosticCategory = "degenerate_anova"
)

// Scale says whether a diagnostic concerns samples or pooled groups
type Scale string

const (
	ScaleSample Scale = "sample"
	ScaleGroup  Scale = "group"
)

// Diagnostic is an advisory raised once per category and scale
type Diagnostic struct {
	Category DiagnosticCategory `json:"category"`
	Scale    Scale              `json:"scale"`
	Count    int                `json:"count"`
	Message  string             `json:"message"`
}

// Parameters records the inputs that shaped a run
type Parameters struct {
	GroupColumn string   `json:"group_column,omitempty"`
	Levels      []string `json:"levels"`
	NMin        float64  `json:"n_min"`
	NPerm       int      `json:"nperm"`
	Seed        int64    `json:"seed"`
	Workers     int      `json:"workers"`
	UnbiasedPIE bool     `json:"unbiased_pie"`
	Estimator   string   `json:"estimator,omitempty"`
	SiteEffort  Value    `json:"site_effort"`
	GroupEffort Value    `json:"group_effort"`
}

// BundleParts carries everything needed to build a ResultBundle
type BundleParts struct {
	RunID       core.RunID
	CreatedAt   core.Timestamp
	Fingerprint core.Fingerprint
	Params      Parameters
	PValues     PValues
	Sites       []SiteMetrics
	Groups      []GroupMetrics
	Tests       []TestDetail
	Diagnostics []Diagnostic
}

// ResultBundle is the immutable product of one analysis. All accessors
// return copies.
type ResultBundle struct {
	parts BundleParts
}

// NewResultBundle deep-copies parts into a bundle
func NewResultBundle(parts BundleParts) *ResultBundle {
	return &ResultBundle{parts: copyParts(parts)}
}

func copyParts(p BundleParts) BundleParts {
	out := p
	out.Params.Levels = append([]string(nil), p.Params.Levels...)
	out.PValues = make(PValues, len(p.PValues))
	for k, v := range p.PValues {
		out.PValues[k] = v
	}
	out.Sites = append([]SiteMetrics(nil), p.Sites...)
	out.Groups = append([]GroupMetrics(nil), p.Groups...)
	out.Tests = append([]TestDetail(nil), p.Tests...)
	out.Diagnostics = append([]Diagnostic(nil), p.Diagnostics...)
	return out
}

// Kind returns the dispatch tag
func (b *ResultBundle) Kind() Kind { return KindMobStats }

// RunID returns the run identifier
func (b *ResultBundle) RunID() core.RunID { return b.parts.RunID }

// CreatedAt returns when the analysis finished
func (b *ResultBundle) CreatedAt() core.Timestamp { return b.parts.CreatedAt }

// Fingerprint returns the digest of the analysed input and parameters
func (b *ResultBundle) Fingerprint() core.Fingerprint { return b.parts.Fingerprint }

// Params returns the run parameters
func (b *ResultBundle) Params() Parameters {
	p := b.parts.Params
	p.Levels = append([]string(nil), p.Levels...)
	return p
}

// Sites returns the site table in input order
func (b *ResultBundle) Sites() []SiteMetrics { return append([]SiteMetrics(nil), b.parts.Sites...) }

// Site returns the metrics of the i-th site in input order
func (b *ResultBundle) Site(i int) (SiteMetrics, bool) {
	if i < 0 || i >= len(b.parts.Sites) {
		return SiteMetrics{}, false
	}
	return b.parts.Sites[i], true
}

// Groups returns the group table in level order
func (b *ResultBundle) Groups() []GroupMetrics { return append([]GroupMetrics(nil), b.parts.Groups...) }

// Tests returns the per-metric ANOVA details
func (b *ResultBundle) Tests() []TestDetail { return append([]TestDetail(nil), b.parts.Tests...) }

// Diagnostics returns the advisories raised during the run
func (b *ResultBundle) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), b.parts.Diagnostics...)
}

// PValues returns a copy of the p-value table
func (b *ResultBundle) PValues() PValues {
	out := make(PValues, len(b.parts.PValues))
	for k, v := range b.parts.PValues {
		out[k] = v
	}
	return out
}

// PValue returns the p-value of one tested metric
func (b *ResultBundle) PValue(m Metric) Value {
	return b.parts.PValues[m]
}

// Test returns the ANOVA detail for m
func (b *ResultBundle) Test(m Metric) (TestDetail, bool) {
	for _, t := range b.parts.Tests {
		if t.Metric == m {
			return t, true
		}
	}
	return TestDetail{}, false
}

// Group returns the group record for a level label
func (b *ResultBundle) Group(level string) (GroupMetrics, bool) {
	for _, g := range b.parts.Groups {
		if g.Group == level {
			return g, true
		}
	}
	return GroupMetrics{}, false
}

type bundleWire struct {
	Kind        Kind           `json:"kind"`
	RunID       core.RunID     `json:"run_id"`
	CreatedAt   core.Timestamp `json:"created_at"`
	Fingerprint string         `json:"fingerprint"`
	Params      Parameters     `json:"parameters"`
	PValues     PValues        `json:"p_values"`
	Sites       []SiteMetrics  `json:"sites"`
	Groups      []GroupMetrics `json:"groups"`
	Tests       []TestDetail   `json:"tests"`
	Diagnostics []Diagnostic   `json:"diagnostics"`
}

// MarshalJSON exposes the bundle for persistence and HTTP responses
func (b *ResultBundle) MarshalJSON() ([]byte, error) {
	p := b.parts
	return json.Marshal(bundleWire{
		Kind:        KindMobStats,
		RunID:       p.RunID,
		CreatedAt:   p.CreatedAt,
		Fingerprint: p.Fingerprint.String(),
		Params:      p.Params,
		PValues:     p.PValues,
		Sites:       p.Sites,
		Groups:      p.Groups,
		Tests:       p.Tests,
		Diagnostics: p.Diagnostics,
	})
}

// UnmarshalJSON restores a persisted bundle
func (b *ResultBundle) UnmarshalJSON(data []byte) error {
	var w bundleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	fp, err := core.ParseFingerprint(w.Fingerprint)
	if err != nil {
		return err
	}
	b.parts = copyParts(BundleParts{
		RunID:       w.RunID,
		CreatedAt:   w.CreatedAt,
		Fingerprint: fp,
		Params:      w.Params,
		PValues:     w.PValues,
		Sites:       w.Sites,
		Groups:      w.Groups,
		Tests:       w.Tests,
		Diagnostics: w.Diagnostics,
	})
	return nil
}
