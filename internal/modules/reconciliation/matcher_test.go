package reconciliation

import (
	"testing"

	"github.com/aristath/structura/internal/domain"
	testingpkg "github.com/aristath/structura/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCandidates_TwoDaysLateCouponIsMediumConfirmed(t *testing.T) {
	m := NewMatcher(nil, CouponRuleset())
	scheduled := testingpkg.Day(2026, 1, 10)

	match := m.MatchCandidates(scheduled, []domain.Operation{
		{
			ID:            7,
			ISIN:          "XS1000000001",
			ValueDate:     testingpkg.Day(2026, 1, 12),
			OperationDate: testingpkg.Day(2026, 1, 20),
			OperationType: "transfer",
			GrossAmount:   12_500,
		},
	})

	assert.Equal(t, int64(7), match.OperationID)
	assert.Equal(t, 40, match.DateScore)
	assert.Equal(t, 30, match.AmountScore)
	assert.Equal(t, 0, match.TypeScore)
	assert.Equal(t, 0, match.TradeDateScore)
	assert.Equal(t, 70, match.Score)
	assert.Equal(t, domain.ConfidenceMedium, match.Confidence)
	assert.True(t, match.Confirmed)
}

func TestMatchCandidates_ExactDateTypedCouponIsHigh(t *testing.T) {
	m := NewMatcher(nil, CouponRuleset())
	scheduled := testingpkg.Day(2026, 1, 10)

	match := m.MatchCandidates(scheduled, []domain.Operation{
		{
			ID:            3,
			ValueDate:     scheduled,
			OperationDate: testingpkg.Day(2026, 1, 11),
			OperationType: "Dividend",
			GrossAmount:   9_000,
		},
	})

	assert.Equal(t, 50+30+20+10, match.Score)
	assert.Equal(t, domain.ConfidenceHigh, match.Confidence)
	assert.True(t, match.Confirmed)
}

func TestMatchCandidates_EarlyPaymentScoresZeroOnDate(t *testing.T) {
	m := NewMatcher(nil, CouponRuleset())
	scheduled := testingpkg.Day(2026, 1, 10)

	// Payments never arrive early: a day-before candidate gets no date score.
	match := m.MatchCandidates(scheduled, []domain.Operation{
		{ID: 1, ValueDate: testingpkg.Day(2026, 1, 9), OperationType: "coupon", GrossAmount: 100},
	})

	assert.Equal(t, 0, match.DateScore)
	assert.Equal(t, 50, match.Score)
	assert.Equal(t, domain.ConfidenceMedium, match.Confidence)
}

func TestDateScore_WindowEdges(t *testing.T) {
	assert.Equal(t, 50, dateScore(0, 7))
	assert.Equal(t, 40, dateScore(1, 7))
	assert.Equal(t, 40, dateScore(3, 7))
	assert.Equal(t, 30, dateScore(4, 7))
	assert.Equal(t, 30, dateScore(7, 7))
	assert.Equal(t, 0, dateScore(8, 7))
	assert.Equal(t, 0, dateScore(-1, 7))
}

func TestMatchCandidates_BeyondToleranceIsLow(t *testing.T) {
	m := NewMatcher(nil, CouponRuleset())
	scheduled := testingpkg.Day(2026, 1, 10)

	match := m.MatchCandidates(scheduled, []domain.Operation{
		{ID: 1, ValueDate: testingpkg.Day(2026, 1, 20), GrossAmount: 100},
	})

	assert.Equal(t, 30, match.Score)
	assert.Equal(t, domain.ConfidenceLow, match.Confidence)
	assert.False(t, match.Confirmed, "low confidence needs manual review")
}

func TestMatchCandidates_HighestScoreWins(t *testing.T) {
	m := NewMatcher(nil, CouponRuleset())
	scheduled := testingpkg.Day(2026, 1, 10)

	match := m.MatchCandidates(scheduled, []domain.Operation{
		{ID: 1, ValueDate: testingpkg.Day(2026, 1, 16), GrossAmount: 100},
		{ID: 2, ValueDate: testingpkg.Day(2026, 1, 10), OperationType: "coupon", GrossAmount: 100},
		{ID: 3, ValueDate: testingpkg.Day(2026, 1, 11), GrossAmount: 100},
	})

	assert.Equal(t, int64(2), match.OperationID)
	assert.Equal(t, domain.ConfidenceHigh, match.Confidence)
}

func TestMatchCandidates_TieBrokenByOffsetThenID(t *testing.T) {
	m := NewMatcher(nil, CouponRuleset())
	scheduled := testingpkg.Day(2026, 1, 10)

	// Same score, the candidate closer to the scheduled date wins.
	match := m.MatchCandidates(scheduled, []domain.Operation{
		{ID: 9, ValueDate: testingpkg.Day(2026, 1, 12), GrossAmount: 100},
		{ID: 4, ValueDate: testingpkg.Day(2026, 1, 11), GrossAmount: 100},
	})
	assert.Equal(t, int64(4), match.OperationID)

	// Same score and offset, the lower ID wins.
	match = m.MatchCandidates(scheduled, []domain.Operation{
		{ID: 9, ValueDate: testingpkg.Day(2026, 1, 11), GrossAmount: 100},
		{ID: 4, ValueDate: testingpkg.Day(2026, 1, 11), GrossAmount: 100},
	})
	assert.Equal(t, int64(4), match.OperationID)
	assert.False(t, match.Ambiguous)
}

func TestMatchCandidates_ExactTieDegradesToAmbiguous(t *testing.T) {
	m := NewMatcher(nil, CouponRuleset())
	scheduled := testingpkg.Day(2026, 1, 10)

	// Unset IDs leave no tie-break key at all.
	match := m.MatchCandidates(scheduled, []domain.Operation{
		{ValueDate: testingpkg.Day(2026, 1, 11), GrossAmount: 100},
		{ValueDate: testingpkg.Day(2026, 1, 11), GrossAmount: 200},
	})

	assert.True(t, match.Ambiguous)
	assert.Equal(t, domain.ConfidenceNone, match.Confidence)
	assert.False(t, match.Confirmed)
	assert.Zero(t, match.OperationID)
}

func TestMatchCandidates_NoCandidatesDegradesToNone(t *testing.T) {
	m := NewMatcher(nil, CouponRuleset())

	match := m.MatchCandidates(testingpkg.Day(2026, 1, 10), nil)

	assert.Equal(t, domain.ConfidenceNone, match.Confidence)
	assert.False(t, match.Confirmed)
	assert.False(t, match.Ambiguous)
	assert.Zero(t, match.OperationID)
}

func TestMatchCandidates_RedemptionHeuristics(t *testing.T) {
	m := NewMatcher(nil, RedemptionRuleset())
	scheduled := testingpkg.Day(2026, 1, 9)

	// Negative quantity at a near-par price on the scheduled day.
	match := m.MatchCandidates(scheduled, []domain.Operation{
		{
			ID:            11,
			ValueDate:     scheduled,
			OperationDate: scheduled,
			OperationType: "redemption",
			Quantity:      -250,
			Price:         98.5,
		},
	})
	assert.Equal(t, 50, match.DateScore)
	assert.Equal(t, 30, match.AmountScore)
	assert.Equal(t, 20, match.TypeScore)
	assert.Equal(t, 10, match.TradeDateScore)
	assert.Equal(t, domain.ConfidenceHigh, match.Confidence)

	// A buy at a deep discount looks nothing like a redemption.
	match = m.MatchCandidates(scheduled, []domain.Operation{
		{ID: 12, ValueDate: scheduled, OperationType: "purchase", Quantity: 250, Price: 12},
	})
	assert.Equal(t, 0, match.AmountScore)
	assert.Equal(t, 50+10, match.Score)
}

func TestMatch_FetchesCandidatesThroughSource(t *testing.T) {
	ops := testingpkg.NewMockOperationSource()
	ops.SetOperations([]domain.Operation{
		{
			ID:            21,
			ISIN:          "XS1000000001",
			ValueDate:     testingpkg.Day(2026, 1, 12),
			OperationDate: testingpkg.Day(2026, 1, 12),
			OperationType: "coupon",
			GrossAmount:   12_500,
		},
		// Different instrument, must not be considered.
		{
			ID:          22,
			ISIN:        "XS9999999999",
			ValueDate:   testingpkg.Day(2026, 1, 10),
			GrossAmount: 99_999,
		},
	})

	m := NewMatcher(ops, CouponRuleset())
	product := testingpkg.NewPhoenixProduct()
	product.ISIN = "XS1000000001"

	match, err := m.Match(product, testingpkg.Day(2026, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(21), match.OperationID)
	assert.Equal(t, 40+30+20+10, match.Score)
	assert.Equal(t, domain.ConfidenceHigh, match.Confidence)
}
