package testkit

import (
	"context"
	"sort"
	"sync"

	"gobiodiv/adapters/diversity"
	"gobiodiv/adapters/rng"
	"gobiodiv/domain/core"
	"gobiodiv/domain/stats"
	"gobiodiv/internal/analysis"
	apperrors "gobiodiv/internal/errors"
	"gobiodiv/ports"
)

// TestKit wires in-process adapters for tests and database-less runs
type TestKit struct {
	results *InMemoryResultRepository
	rng     *rng.SeededRNG
}

// NewTestKit creates a new test kit instance
func NewTestKit() (*TestKit, error) {
	return &TestKit{
		results: NewInMemoryResultRepository(),
		rng:     rng.NewSeededRNG(),
	}, nil
}

// RNGAdapter returns the seeded RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return t.rng
}

// ResultRepository returns the shared in-memory result store
func (t *TestKit) ResultRepository() ports.ResultRepository {
	return t.results
}

// Engine returns an engine using the Hurlbert rarefier and Chao1
func (t *TestKit) Engine() *analysis.Engine {
	return analysis.NewEngine(diversity.NewHurlbertRarefier(), diversity.NewChao1Estimator(), t.rng)
}

type storedResult struct {
	name   string
	bundle *stats.ResultBundle
	seq    int
}

// InMemoryResultRepository implements ports.ResultRepository in memory
type InMemoryResultRepository struct {
	runs map[core.RunID]storedResult
	seq  int
	mu   sync.RWMutex
}

var _ ports.ResultRepository = (*InMemoryResultRepository)(nil)

func NewInMemoryResultRepository() *InMemoryResultRepository {
	return &InMemoryResultRepository{runs: make(map[core.RunID]storedResult)}
}

func (s *InMemoryResultRepository) Save(ctx context.Context, name string, bundle *stats.ResultBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[bundle.RunID()]; exists {
		return nil
	}
	s.seq++
	s.runs[bundle.RunID()] = storedResult{name: name, bundle: bundle, seq: s.seq}
	return nil
}

func (s *InMemoryResultRepository) Get(ctx context.Context, runID core.RunID) (*stats.ResultBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, apperrors.WithCode(apperrors.CodeNotFound, core.NewNotFoundError("analysis run", runID.String()))
	}
	return r.bundle, nil
}

func (s *InMemoryResultRepository) FindByFingerprint(ctx context.Context, fp core.Fingerprint) (*stats.ResultBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *storedResult
	for _, r := range s.runs {
		if r.bundle.Fingerprint() != fp {
			continue
		}
		if newest == nil || r.seq > newest.seq {
			r := r
			newest = &r
		}
	}
	if newest == nil {
		return nil, apperrors.WithCode(apperrors.CodeNotFound, core.NewNotFoundError("analysis run", "fingerprint "+fp.String()))
	}
	return newest.bundle, nil
}

func (s *InMemoryResultRepository) List(ctx context.Context, limit, offset int) ([]ports.ResultSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]storedResult, 0, len(s.runs))
	for _, r := range s.runs {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq > all[j].seq })

	if offset >= len(all) {
		return []ports.ResultSummary{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]ports.ResultSummary, len(all))
	for i, r := range all {
		out[i] = ports.ResultSummary{
			RunID:       r.bundle.RunID(),
			Name:        r.name,
			Fingerprint: r.bundle.Fingerprint().String(),
			Sites:       len(r.bundle.Sites()),
			Groups:      len(r.bundle.Groups()),
			NPerm:       r.bundle.Params().NPerm,
			CreatedAt:   r.bundle.CreatedAt().Time(),
		}
	}
	return out, nil
}
