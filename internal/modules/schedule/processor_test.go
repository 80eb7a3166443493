package schedule

import (
	"testing"
	"time"

	"github.com/aristath/structura/internal/domain"
	testingpkg "github.com/aristath/structura/internal/testing"
	"github.com/aristath/structura/internal/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	obs1  = testingpkg.Day(2025, 4, 10)
	obs2  = testingpkg.Day(2025, 7, 10)
	obs3  = testingpkg.Day(2025, 10, 10)
	final = testingpkg.Day(2026, 1, 9)
)

func setAll(prices *testingpkg.MockPriceSource, date time.Time, acme, globx float64) {
	prices.SetPrice("ACME", date, acme)
	prices.SetPrice("GLOBX", date, globx)
}

func TestEvaluate_AutocallOnFirstObservation(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	setAll(prices, obs1, 105, 107)

	processor := NewProcessor(prices, nil)
	result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2025, 5, 1))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAutocalled, result.Status)
	require.NotNil(t, result.TerminationDate)
	assert.Equal(t, obs1, *result.TerminationDate)

	require.Len(t, result.Outcomes, 4)
	first := result.Outcomes[0]
	assert.True(t, first.AutocallTriggered)
	assert.Equal(t, domain.ObservationFrozen, first.Status)
	assert.Equal(t, 2.5, first.CouponPaid)

	// Everything after the autocall is skipped
	for _, o := range result.Outcomes[1:] {
		assert.Equal(t, domain.ObservationSkipped, o.Status)
	}
}

func TestEvaluate_MemoryCouponAccumulatesAndReleases(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	// obs1: worst-of 60 -> below coupon barrier 70, coupon carried
	setAll(prices, obs1, 60, 95)
	// obs2: worst-of 75 -> coupon barrier met, memory released
	setAll(prices, obs2, 75, 96)

	processor := NewProcessor(prices, nil)
	result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2025, 8, 1))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusLive, result.Status)

	first := result.Outcomes[0]
	assert.Equal(t, 0.0, first.CouponPaid)
	assert.Equal(t, 2.5, first.MemoryAfter)

	second := result.Outcomes[1]
	assert.Equal(t, 5.0, second.CouponPaid, "current coupon plus carried memory")
	assert.Equal(t, 0.0, second.MemoryAfter)

	// Remaining observations are in the future
	assert.Equal(t, domain.ObservationPending, result.Outcomes[2].Status)
	assert.Equal(t, domain.ObservationPending, result.Outcomes[3].Status)
	assert.Equal(t, 5.0, result.TotalCouponsPaid)
	assert.Equal(t, 0.0, result.MemoryBalance)
}

func TestEvaluate_NoMemoryFeatureDropsMissedCoupon(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	product.Structure.MemoryCoupon = false
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	setAll(prices, obs1, 60, 95)
	setAll(prices, obs2, 75, 96)

	processor := NewProcessor(prices, nil)
	result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2025, 8, 1))
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Outcomes[0].CouponPaid)
	assert.Equal(t, 0.0, result.Outcomes[0].MemoryAfter)
	assert.Equal(t, 2.5, result.Outcomes[1].CouponPaid, "only the current coupon")
}

func TestEvaluate_MemoryAutocallRequiresAllUnderlyings(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	product.Structure.MemoryAutocall = true
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	// obs1: only ACME at/above the autocall level
	setAll(prices, obs1, 104, 90)
	// obs2: only GLOBX above; ACME below, but its earlier reading sticks
	setAll(prices, obs2, 80, 103)

	processor := NewProcessor(prices, nil)
	result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2025, 8, 1))
	require.NoError(t, err)

	assert.Equal(t, domain.ObservationFrozen, result.Outcomes[0].Status)
	assert.False(t, result.Outcomes[0].AutocallTriggered)

	// The qualifying set {ACME} u {GLOBX} now covers the basket
	assert.True(t, result.Outcomes[1].AutocallTriggered)
	assert.Equal(t, domain.StatusAutocalled, result.Status)
}

func TestEvaluate_StandardAutocallUsesBasketLevel(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	// Worst-of is 99.9: no autocall even though one underlying is at 120
	setAll(prices, obs1, 99.9, 120)

	processor := NewProcessor(prices, nil)
	result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2025, 5, 1))
	require.NoError(t, err)

	assert.False(t, result.Outcomes[0].AutocallTriggered)
	// Worst-of 99.9 is above the coupon barrier though
	assert.Equal(t, 2.5, result.Outcomes[0].CouponPaid)
}

func TestEvaluate_PerObservationOverrides(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	lowLevel := 95.0
	highBarrier := 99.0
	product.Schedule[0].AutocallLevel = &lowLevel
	product.Schedule[0].CouponBarrier = &highBarrier
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	setAll(prices, obs1, 96, 98)

	processor := NewProcessor(prices, nil)
	result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2025, 5, 1))
	require.NoError(t, err)

	// Basket 96 meets the overridden autocall level 95
	assert.True(t, result.Outcomes[0].AutocallTriggered)
}

func TestEvaluate_MaturityLeveragedDownside(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	product.Structure.MemoryCoupon = false
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	setAll(prices, obs1, 60, 95)
	setAll(prices, obs2, 60, 95)
	setAll(prices, obs3, 60, 95)
	setAll(prices, final, 50, 95)

	processor := NewProcessor(prices, nil)
	result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2026, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusMatured, result.Status)
	require.NotNil(t, result.Redemption)
	assert.Equal(t, domain.RedemptionLeveragedDownside, result.Redemption.Tag)
	assert.InDelta(t, 71.4286, result.Redemption.Value, 0.001)

	last := result.Outcomes[len(result.Outcomes)-1]
	assert.True(t, last.MaturityEvent)
	assert.Equal(t, 2.5, last.CouponPaid, "final coupon settles at maturity")
}

func TestEvaluate_MaturityReleasesMemoryWithFinalCoupon(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	setAll(prices, obs1, 60, 95)
	setAll(prices, obs2, 60, 95)
	setAll(prices, obs3, 60, 95)
	setAll(prices, final, 80, 95)

	processor := NewProcessor(prices, nil)
	result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2026, 2, 1))
	require.NoError(t, err)

	last := result.Outcomes[len(result.Outcomes)-1]
	// 3 carried coupons + the final one
	assert.Equal(t, 10.0, last.CouponPaid)
	assert.Equal(t, 0.0, result.MemoryBalance)
	require.NotNil(t, result.Redemption)
	assert.Equal(t, domain.RedemptionCapitalProtected, result.Redemption.Tag)
	assert.Equal(t, 100.0, result.Redemption.Value)
}

func TestEvaluate_DataErrorIsolatedPerObservation(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	// obs1 has no GLOBX close; obs2 is complete
	prices.SetPrice("ACME", obs1, 90)
	setAll(prices, obs2, 90, 95)

	collector := trace.NewCollector()
	processor := NewProcessor(prices, collector)
	result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2025, 8, 1))
	require.NoError(t, err)

	first := result.Outcomes[0]
	assert.Equal(t, domain.ObservationDataError, first.Status)
	assert.False(t, first.Basket.Valid())
	assert.NotEmpty(t, first.Error)
	assert.Equal(t, 0.0, first.CouponPaid)

	// Downstream observations still evaluate
	assert.Equal(t, domain.ObservationFrozen, result.Outcomes[1].Status)
	assert.Equal(t, 2.5, result.Outcomes[1].CouponPaid)

	// But aggregate coupon figures are flagged incomplete, not zeroed
	assert.False(t, result.CouponsComplete)
	assert.NotEmpty(t, collector.OfType(trace.EventDataError))
}

func TestEvaluate_DataErrorOnFinalObservationWithholdsRedemption(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	setAll(prices, obs1, 90, 95)
	setAll(prices, obs2, 90, 95)
	setAll(prices, obs3, 90, 95)
	// no final closes at all

	processor := NewProcessor(prices, nil)
	result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2026, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusMatured, result.Status)
	assert.Nil(t, result.Redemption, "no best-guess redemption on missing final data")
	assert.False(t, result.CouponsComplete)
}

func TestEvaluate_PendingObservationsUntouchedMemory(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	asOf := testingpkg.Day(2025, 2, 1)
	// live closes for the provisional view
	setAll(prices, asOf, 102, 99)

	processor := NewProcessor(prices, nil)
	result, err := processor.Evaluate(product, underlyings, asOf)
	require.NoError(t, err)

	for _, o := range result.Outcomes {
		assert.Equal(t, domain.ObservationPending, o.Status)
		assert.Equal(t, 0.0, o.CouponPaid)
		assert.Equal(t, 0.0, o.MemoryAfter)
	}
	// Provisional basket reflects the as-of worst-of
	v, ok := result.Outcomes[0].Basket.Value()
	require.True(t, ok)
	assert.Equal(t, 99.0, v)
	assert.Equal(t, domain.StatusLive, result.Status)
}

func TestEvaluate_FrozenOutcomesAreIdempotent(t *testing.T) {
	product := testingpkg.NewPhoenixProduct()
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	setAll(prices, obs1, 60, 95)
	setAll(prices, obs2, 85, 95)
	asOf := testingpkg.Day(2025, 8, 1)

	processor := NewProcessor(prices, nil)
	first, err := processor.Evaluate(product, underlyings, asOf)
	require.NoError(t, err)
	second, err := processor.Evaluate(product, underlyings, asOf)
	require.NoError(t, err)

	assert.Equal(t, first.Outcomes, second.Outcomes)
	assert.Equal(t, first.TotalCouponsPaid, second.TotalCouponsPaid)
	assert.Equal(t, first.MemoryBalance, second.MemoryBalance)
}

func TestEvaluate_CouponConservation(t *testing.T) {
	// Across any price path, paid coupons plus remaining memory equal the
	// coupons accrued over the occurred observations.
	paths := [][]float64{
		{60, 60, 60, 60},
		{60, 85, 60, 60},
		{85, 85, 85, 85},
		{60, 60, 60, 85},
	}
	underlyings := testingpkg.NewPhoenixUnderlyings()
	dates := []time.Time{obs1, obs2, obs3, final}

	for _, path := range paths {
		product := testingpkg.NewPhoenixProduct()
		prices := testingpkg.NewMockPriceSource()
		for i, level := range path {
			setAll(prices, dates[i], level, level)
		}

		processor := NewProcessor(prices, nil)
		result, err := processor.Evaluate(product, underlyings, testingpkg.Day(2026, 2, 1))
		require.NoError(t, err)

		occurred := 0
		for _, o := range result.Outcomes {
			if o.Status == domain.ObservationFrozen {
				occurred++
			}
		}
		accrued := float64(occurred) * product.Structure.CouponRate
		assert.InDelta(t, accrued, result.TotalCouponsPaid+result.MemoryBalance, 1e-9,
			"coupon conservation violated for path %v", path)
	}
}

func TestEvaluate_ScheduleValidation(t *testing.T) {
	underlyings := testingpkg.NewPhoenixUnderlyings()
	prices := testingpkg.NewMockPriceSource()
	processor := NewProcessor(prices, nil)

	empty := testingpkg.NewPhoenixProduct()
	empty.Schedule = nil
	_, err := processor.Evaluate(empty, underlyings, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidScheduleDate)

	unordered := testingpkg.NewPhoenixProduct()
	unordered.Schedule[0], unordered.Schedule[1] = unordered.Schedule[1], unordered.Schedule[0]
	_, err = processor.Evaluate(unordered, underlyings, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidScheduleDate)

	zeroDate := testingpkg.NewPhoenixProduct()
	zeroDate.Schedule[2].Date = time.Time{}
	_, err = processor.Evaluate(zeroDate, underlyings, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidScheduleDate)
}

func TestEvaluate_NoUnderlyings(t *testing.T) {
	processor := NewProcessor(testingpkg.NewMockPriceSource(), nil)
	_, err := processor.Evaluate(testingpkg.NewPhoenixProduct(), nil, time.Now())
	assert.Error(t, err)
}

func TestMemoryTracker(t *testing.T) {
	m := NewMemoryTracker()
	assert.Equal(t, 0.0, m.Balance())

	m.Accrue(2.5)
	m.Accrue(2.5)
	assert.Equal(t, 5.0, m.Balance())

	assert.Equal(t, 5.0, m.Flush())
	assert.Equal(t, 0.0, m.Balance())
	assert.Equal(t, 0.0, m.Flush())
}
