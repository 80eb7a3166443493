package scheduler

import (
	"errors"
	"sync"
	"testing"

	"github.com/aristath/structura/internal/domain"
	"github.com/aristath/structura/internal/evaluation"
	testingpkg "github.com/aristath/structura/internal/testing"
	"github.com/aristath/structura/internal/work"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBook struct {
	items []work.Item
	err   error
}

func (b *stubBook) LoadItems() ([]work.Item, error) { return b.items, b.err }

type recordingMatchStore struct {
	mu    sync.Mutex
	saved map[string][]domain.PaymentMatch
}

func (s *recordingMatchStore) SaveMatch(isin string, match domain.PaymentMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string][]domain.PaymentMatch)
	}
	s.saved[isin] = append(s.saved[isin], match)
	return nil
}

func TestEvaluationJob_EvaluatesBookAndPersistsMatches(t *testing.T) {
	prices := testingpkg.NewMockPriceSource()
	ops := testingpkg.NewMockOperationSource()
	svc := evaluation.NewService(prices, ops, zerolog.Nop())
	runner := work.NewRunner(svc, 4, 0, zerolog.Nop())

	product := testingpkg.NewPhoenixProduct()
	underlyings := testingpkg.NewPhoenixUnderlyings()
	// Autocall on the first observation pays one coupon.
	testingpkg.SetBasketPrices(prices, underlyings, testingpkg.Day(2025, 4, 10), 105)
	ops.SetOperations([]domain.Operation{
		{
			ID: 1, ISIN: product.ISIN,
			ValueDate:     testingpkg.Day(2025, 4, 14),
			OperationDate: testingpkg.Day(2025, 4, 14),
			OperationType: "coupon", GrossAmount: 25_000,
		},
	})

	store := &recordingMatchStore{}
	job := NewEvaluationJob(EvaluationJobConfig{
		Book:    &stubBook{items: []work.Item{{Product: product, Underlyings: underlyings}}},
		Service: svc,
		Runner:  runner,
		Matches: store,
		Log:     zerolog.Nop(),
	})

	require.NoError(t, job.Run())

	matches := store.saved[product.ISIN]
	require.Len(t, matches, 2, "one coupon, one principal redemption")
	assert.Equal(t, domain.ConfidenceHigh, matches[0].Confidence)
}

func TestEvaluationJob_EmptyBookIsANoOp(t *testing.T) {
	svc := evaluation.NewService(testingpkg.NewMockPriceSource(), testingpkg.NewMockOperationSource(), zerolog.Nop())
	job := NewEvaluationJob(EvaluationJobConfig{
		Book:    &stubBook{},
		Service: svc,
		Runner:  work.NewRunner(svc, 4, 0, zerolog.Nop()),
		Log:     zerolog.Nop(),
	})
	assert.NoError(t, job.Run())
}

func TestEvaluationJob_BookLoadFailurePropagates(t *testing.T) {
	svc := evaluation.NewService(testingpkg.NewMockPriceSource(), testingpkg.NewMockOperationSource(), zerolog.Nop())
	job := NewEvaluationJob(EvaluationJobConfig{
		Book:    &stubBook{err: errors.New("bad book file")},
		Service: svc,
		Runner:  work.NewRunner(svc, 4, 0, zerolog.Nop()),
		Log:     zerolog.Nop(),
	})
	assert.Error(t, job.Run())
}
