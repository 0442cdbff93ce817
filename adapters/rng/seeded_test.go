package rng

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDeterminism(t *testing.T) {
	ctx := context.Background()
	r := NewSeededRNG()

	a, err := r.Stream(ctx, "", "permutation", "chunk-3", 42)
	require.NoError(t, err)
	b, err := r.Stream(ctx, "", "permutation", "chunk-3", 42)
	require.NoError(t, err)
	c, err := r.Stream(ctx, "", "permutation", "chunk-4", 42)
	require.NoError(t, err)

	av, bv, cv := a.Int63(), b.Int63(), c.Int63()
	assert.Equal(t, av, bv)
	assert.NotEqual(t, av, cv)
}

func TestValidateSeed(t *testing.T) {
	ctx := context.Background()
	r := NewSeededRNG()

	stream, err := r.SeededStream(ctx, "check", 7)
	require.NoError(t, err)
	expected := []float64{stream.Float64(), stream.Float64(), stream.Float64()}

	assert.NoError(t, r.ValidateSeed(ctx, "check", 7, expected))
	assert.Error(t, r.ValidateSeed(ctx, "check", 8, expected))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSeededRNG().Stream(ctx, "", "permutation", "chunk-0", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFreshSeedNonZero(t *testing.T) {
	assert.NotZero(t, FreshSeed())
}
