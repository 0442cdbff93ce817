package postgres

import (
	"context"
	"os"
	"testing"

	"gobiodiv/domain/core"
	"gobiodiv/domain/stats"
	apperrors "gobiodiv/internal/errors"
	"gobiodiv/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL or skips
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	return db
}

func TestResultRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewResultRepository(db)
	ctx := context.Background()

	fp := core.NewFingerprintBuilder().String(t.Name()).Sum()
	bundle := stats.NewResultBundle(stats.BundleParts{
		RunID:       core.NewRunID(),
		CreatedAt:   core.Now(),
		Fingerprint: fp,
		Params:      stats.Parameters{Levels: []string{"A", "B"}, NMin: 5, NPerm: 99, Seed: 3},
		PValues:     stats.PValues{stats.MetricS: stats.Of(0.04), stats.MetricSRare: stats.Missing()},
		Sites:       []stats.SiteMetrics{{SiteID: "s1", Group: "A", N: stats.Of(10)}},
		Groups:      []stats.GroupMetrics{{Group: "A", Size: 1}, {Group: "B"}},
	})

	require.NoError(t, repo.Save(ctx, "meadow", bundle))
	require.NoError(t, repo.Save(ctx, "meadow", bundle), "saving twice is a no-op")

	got, err := repo.Get(ctx, bundle.RunID())
	require.NoError(t, err)
	assert.Equal(t, bundle.PValues(), got.PValues())
	assert.Equal(t, bundle.Sites(), got.Sites())

	byFP, err := repo.FindByFingerprint(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, bundle.RunID(), byFP.RunID())

	list, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, bundle.RunID(), list[0].RunID)
	assert.Equal(t, 2, list[0].Groups)
}

func TestResultRepositoryNotFound(t *testing.T) {
	repo := NewResultRepository(openTestDB(t))

	_, err := repo.Get(context.Background(), core.NewRunID())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
	assert.True(t, core.IsNotFoundError(err))
}
