package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"gobiodiv/domain/core"
	"gobiodiv/domain/stats"
	apperrors "gobiodiv/internal/errors"
	"gobiodiv/ports"

	"github.com/jmoiron/sqlx"
)

// resultRepository implements the ResultRepository interface
type resultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &resultRepository{db: db}
}

// Save stores a bundle. Saving the same run twice is a no-op.
func (r *resultRepository) Save(ctx context.Context, name string, bundle *stats.ResultBundle) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal result bundle")
	}

	params := bundle.Params()
	created := bundle.CreatedAt().Time()
	if created.IsZero() {
		created = time.Now().UTC()
	}

	query := `INSERT INTO analysis_runs (
		run_id, name, fingerprint, n_sites, n_groups, nperm, seed, bundle, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9
	) ON CONFLICT (run_id) DO NOTHING`

	_, err = r.db.ExecContext(ctx, query,
		bundle.RunID().String(), name, bundle.Fingerprint().String(),
		len(bundle.Sites()), len(bundle.Groups()), params.NPerm, params.Seed,
		payload, created,
	)
	if err != nil {
		return apperrors.DatabaseError("failed to save analysis run", err)
	}
	return nil
}

// Get retrieves a bundle by run ID
func (r *resultRepository) Get(ctx context.Context, runID core.RunID) (*stats.ResultBundle, error) {
	var payload []byte
	err := r.db.GetContext(ctx, &payload, `SELECT bundle FROM analysis_runs WHERE run_id = $1`, runID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.WithCode(apperrors.CodeNotFound, core.NewNotFoundError("analysis run", runID.String()))
		}
		return nil, apperrors.DatabaseError("failed to get analysis run", err)
	}
	return decodeBundle(payload)
}

// FindByFingerprint returns the newest bundle computed from the same input
// and parameters
func (r *resultRepository) FindByFingerprint(ctx context.Context, fp core.Fingerprint) (*stats.ResultBundle, error) {
	var payload []byte
	err := r.db.GetContext(ctx, &payload, `
		SELECT bundle FROM analysis_runs
		WHERE fingerprint = $1
		ORDER BY created_at DESC
		LIMIT 1`, fp.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.WithCode(apperrors.CodeNotFound, core.NewNotFoundError("analysis run", "fingerprint "+fp.String()))
		}
		return nil, apperrors.DatabaseError("failed to look up fingerprint", err)
	}
	return decodeBundle(payload)
}

// List returns run summaries, newest first
func (r *resultRepository) List(ctx context.Context, limit, offset int) ([]ports.ResultSummary, error) {
	var summaries []ports.ResultSummary
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT run_id, name, fingerprint, n_sites, n_groups, nperm, created_at
		FROM analysis_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list analysis runs", err)
	}
	return summaries, nil
}

func decodeBundle(payload []byte) (*stats.ResultBundle, error) {
	var b stats.ResultBundle
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal result bundle")
	}
	return &b, nil
}
