package stats

import (
	"fmt"
)

// Metric identifies one derived biodiversity quantity
type Metric int

const (
	MetricN Metric = iota
	MetricS
	MetricSRare
	MetricSAsymp
	MetricPIE
	MetricENSPIE
	MetricBetaPIE
	numMetrics
)

var metricNames = [numMetrics]string{
	MetricN:       "N",
	MetricS:       "S",
	MetricSRare:   "S_rare",
	MetricSAsymp:  "S_asymp",
	MetricPIE:     "PIE",
	MetricENSPIE:  "ENS_PIE",
	MetricBetaPIE: "betaPIE",
}

// AllMetrics lists every per-site metric in table order
var AllMetrics = []Metric{MetricN, MetricS, MetricSRare, MetricSAsymp, MetricPIE, MetricENSPIE, MetricBetaPIE}

// TestedMetrics lists the metrics that receive a permutation p-value
var TestedMetrics = []Metric{MetricS, MetricN, MetricSRare, MetricPIE, MetricSAsymp, MetricBetaPIE}

func (m Metric) String() string {
	if m < 0 || m >= numMetrics {
		return fmt.Sprintf("Metric(%d)", int(m))
	}
	return metricNames[m]
}

// TestStatistic returns the column whose F statistic is reported for m.
// PIE is tested on ENS_PIE.
func (m Metric) TestStatistic() Metric {
	if m == MetricPIE {
		return MetricENSPIE
	}
	return m
}

// ParseMetric maps a label back to its Metric
func ParseMetric(s string) (Metric, error) {
	for i, name := range metricNames {
		if name == s {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}

// MarshalText lets metrics key JSON objects
func (m Metric) MarshalText() ([]byte, error) {
	if m < 0 || m >= numMetrics {
		return nil, fmt.Errorf("unknown metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText parses a metric label
func (m *Metric) UnmarshalText(b []byte) error {
	parsed, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// SiteMetrics holds the derived values for one sample
type SiteMetrics struct {
	SiteID  string `json:"site_id"`
	Group   string `json:"group"`
	N       Value  `json:"N"`
	S       Value  `json:"S"`
	SRare   Value  `json:"S_rare"`
	SAsymp  Value  `json:"S_asymp"`
	PIE     Value  `json:"PIE"`
	ENSPIE  Value  `json:"ENS_PIE"`
	BetaPIE Value  `json:"betaPIE"`
}

// GroupMetrics holds the same values computed on a group's pooled
// abundances. BetaPIE is always missing at this scale.
type GroupMetrics struct {
	Group   string `json:"group"`
	Size    int    `json:"n_sites"`
	N       Value  `json:"N"`
	S       Value  `json:"S"`
	SRare   Value  `json:"S_rare"`
	SAsymp  Value  `json:"S_asymp"`
	PIE     Value  `json:"PIE"`
	ENSPIE  Value  `json:"ENS_PIE"`
	BetaPIE Value  `json:"betaPIE"`
}

var siteColumns = [numMetrics]func(*SiteMetrics) Value{
	MetricN:       func(s *SiteMetrics) Value { return s.N },
	MetricS:       func(s *SiteMetrics) Value { return s.S },
	MetricSRare:   func(s *SiteMetrics) Value { return s.SRare },
	MetricSAsymp:  func(s *SiteMetrics) Value { return s.SAsymp },
	MetricPIE:     func(s *SiteMetrics) Value { return s.PIE },
	MetricENSPIE:  func(s *SiteMetrics) Value { return s.ENSPIE },
	MetricBetaPIE: func(s *SiteMetrics) Value { return s.BetaPIE },
}

var groupColumns = [numMetrics]func(*GroupMetrics) Value{
	MetricN:       func(g *GroupMetrics) Value { return g.N },
	MetricS:       func(g *GroupMetrics) Value { return g.S },
	MetricSRare:   func(g *GroupMetrics) Value { return g.SRare },
	MetricSAsymp:  func(g *GroupMetrics) Value { return g.SAsymp },
	MetricPIE:     func(g *GroupMetrics) Value { return g.PIE },
	MetricENSPIE:  func(g *GroupMetrics) Value { return g.ENSPIE },
	MetricBetaPIE: func(g *GroupMetrics) Value { return g.BetaPIE },
}

// Get returns the value of metric m for this site
func (s SiteMetrics) Get(m Metric) Value {
	if m < 0 || m >= numMetrics {
		return Missing()
	}
	return siteColumns[m](&s)
}

// Get returns the value of metric m for this group
func (g GroupMetrics) Get(m Metric) Value {
	if m < 0 || m >= numMetrics {
		return Missing()
	}
	return groupColumns[m](&g)
}

// SiteColumn extracts one metric across sites
func SiteColumn(sites []SiteMetrics, m Metric) []Value {
	out := make([]Value, len(sites))
	for i := range sites {
		out[i] = sites[i].Get(m)
	}
	return out
}

// GroupColumn extracts one metric across groups
func GroupColumn(groups []GroupMetrics, m Metric) []Value {
	out := make([]Value, len(groups))
	for i := range groups {
		out[i] = groups[i].Get(m)
	}
	return out
}
