package ports

import (
	"context"
	"time"

	"gobiodiv/domain/core"
	"gobiodiv/domain/stats"
)

// ResultSummary is the listing view of a stored analysis
type ResultSummary struct {
	RunID       core.RunID `json:"run_id" db:"run_id"`
	Name        string     `json:"name" db:"name"`
	Fingerprint string     `json:"fingerprint" db:"fingerprint"`
	Sites       int        `json:"n_sites" db:"n_sites"`
	Groups      int        `json:"n_groups" db:"n_groups"`
	NPerm       int        `json:"nperm" db:"nperm"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// ResultRepository persists result bundles
type ResultRepository interface {
	Save(ctx context.Context, name string, bundle *stats.ResultBundle) error
	Get(ctx context.Context, runID core.RunID) (*stats.ResultBundle, error)
	FindByFingerprint(ctx context.Context, fp core.Fingerprint) (*stats.ResultBundle, error)
	List(ctx context.Context, limit, offset int) ([]ResultSummary, error)
}
