package analysis

import (
	"context"
	"math"
	"math/rand"
	"strconv"

	"gobiodiv/domain/stats"
	"gobiodiv/ports"

	"golang.org/x/sync/errgroup"
)

// permutationChunk is the number of draws sharing one RNG stream. Streams
// are keyed by chunk index, so the null distribution for a seed does not
// depend on how many workers run the chunks.
const permutationChunk = 64

// permutationTest builds the null distribution of every column's F
// statistic by refitting against shuffled group codes
type permutationTest struct {
	rng     ports.RNGPort
	seed    int64
	workers int
}

// run returns null[c][d], the F statistic of column c under draw d. Draw 0
// is the observed labelling, so the null always contains the observed F and
// only nperm-1 shuffles are drawn; this keeps every p-value in
// [1/nperm, 1]. Draws 1..nperm-1 are independent uniform shuffles of codes.
// Each draw writes only its own index.
func (p *permutationTest) run(ctx context.Context, cols []*column, codes []int, levels, nperm int) ([][]float64, error) {
	null := make([][]float64, len(cols))
	for c := range null {
		null[c] = make([]float64, nperm)
	}

	workers := p.workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	chunks := (nperm + permutationChunk - 1) / permutationChunk
	for chunk := 0; chunk < chunks; chunk++ {
		chunk := chunk
		g.Go(func() error {
			stream, err := p.rng.Stream(gctx, "", "permutation", strconv.Itoa(chunk), p.seed)
			if err != nil {
				return err
			}

			perm := make([]int, len(codes))
			sc := newScratch(levels)
			lo := chunk * permutationChunk
			hi := min(lo+permutationChunk, nperm)
			for d := lo; d < hi; d++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				copy(perm, codes)
				if d > 0 {
					shuffle(stream, perm)
				}
				for c, col := range cols {
					null[c][d] = col.fit(perm, sc).F
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return null, nil
}

// shuffle is a Fisher-Yates shuffle
func shuffle(r *rand.Rand, x []int) {
	for i := len(x) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		x[i], x[j] = x[j], x[i]
	}
}

// empiricalP is the share of draws whose F is at least the observed F.
// Undefined draws never count; an undefined observed F has no p-value.
func empiricalP(observed float64, null []float64) stats.Value {
	if math.IsNaN(observed) || len(null) == 0 {
		return stats.Missing()
	}
	extreme := 0
	for _, f := range null {
		if !math.IsNaN(f) && observed <= f {
			extreme++
		}
	}
	return stats.Of(float64(extreme) / float64(len(null)))
}
