package ports

import (
	"context"
	"math/rand"
)

// RNGPort hands out reproducible random streams. Permutation draws never
// touch a shared source; each chunk of draws asks for its own stream.
type RNGPort interface {
	// SeededStream returns a generator keyed by name and seed
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream returns the generator for one key of one run stage. Equal
	// arguments give identical sequences.
	Stream(ctx context.Context, runID, stageName, workerKey string, baseSeed int64) (*rand.Rand, error)

	// ValidateSeed checks that a seed reproduces a recorded sequence
	ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error
}
