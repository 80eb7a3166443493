// Package himalaya implements the Himalaya sequential-selection payoff:
// at each observation the best available performer is locked in and removed
// from the pool for all remaining observations.
package himalaya

import (
	"fmt"
	"time"

	"github.com/aristath/structura/internal/domain"
	"github.com/aristath/structura/internal/trace"
	"gonum.org/v1/gonum/stat"
)

// poolEntry tracks one underlying's availability across the run. Entries
// are consumed by flag rather than removed in place, so the input slice is
// never aliased or mutated.
type poolEntry struct {
	underlying domain.Underlying
	consumed   bool
}

// Selector evaluates Himalaya products.
type Selector struct {
	prices domain.PriceSource
	sink   trace.Sink
}

// NewSelector creates a Himalaya selector reading from the given price
// source. Pass trace.NopSink{} to discard diagnostics.
func NewSelector(prices domain.PriceSource, sink trace.Sink) *Selector {
	if sink == nil {
		sink = trace.NopSink{}
	}
	return &Selector{prices: prices, sink: sink}
}

// Evaluate runs the selection over the product's observation dates. A
// Himalaya basket has as many observations as underlyings; each observation
// locks exactly one underlying's return, and the first selection is final
// even if that underlying later trades higher.
//
// Ties between available underlyings resolve by basket order: the
// first-listed underlying wins. Deterministic but arbitrary; no business
// rule specifies otherwise.
func (s *Selector) Evaluate(product domain.Product, underlyings []domain.Underlying, asOf time.Time) (domain.EvaluationResult, error) {
	if len(underlyings) == 0 {
		return domain.EvaluationResult{}, fmt.Errorf("product %s has no underlyings", product.ISIN)
	}
	if len(product.Schedule) != len(underlyings) {
		return domain.EvaluationResult{}, fmt.Errorf("%w: himalaya product %s has %d observations for %d underlyings",
			domain.ErrInvalidScheduleDate, product.ISIN, len(product.Schedule), len(underlyings))
	}

	result := domain.EvaluationResult{
		ISIN:            product.ISIN,
		Template:        domain.TemplateHimalaya,
		EvaluatedAt:     domain.NormalizeDate(asOf),
		Status:          domain.StatusLive,
		Outcomes:        make([]domain.ObservationOutcome, 0, len(product.Schedule)),
		CouponsComplete: true,
	}

	pool := make([]poolEntry, len(underlyings))
	for i, u := range underlyings {
		pool[i] = poolEntry{underlying: u}
	}

	asOfDay := domain.NormalizeDate(asOf)
	locked := make([]float64, 0, len(product.Schedule))
	lockedLevels := make([]domain.UnderlyingLevel, 0, len(product.Schedule))
	complete := true

	for _, obs := range product.Schedule {
		if obs.Date.IsZero() {
			return domain.EvaluationResult{}, fmt.Errorf("%w: himalaya product %s", domain.ErrInvalidScheduleDate, product.ISIN)
		}
		obsDay := domain.NormalizeDate(obs.Date)
		outcome := domain.ObservationOutcome{
			Date:        obsDay,
			PaymentDate: domain.NormalizeDate(obs.EffectivePaymentDate()),
		}

		if obsDay.After(asOfDay) {
			// The algorithm cannot proceed deterministically past a future
			// date: this and every later observation stays provisional,
			// reported against the latest prices but never locked.
			outcome.Status = domain.ObservationPending
			outcome.Basket = s.provisionalBest(pool, asOfDay)
			result.Outcomes = append(result.Outcomes, outcome)
			complete = false
			continue
		}

		best, perf, err := s.selectBest(pool, obsDay)
		if err != nil {
			outcome.Status = domain.ObservationDataError
			outcome.Basket = domain.MissingPerformance()
			outcome.Error = err.Error()
			result.Outcomes = append(result.Outcomes, outcome)
			result.CouponsComplete = false
			complete = false
			s.sink.Emit(trace.Event{
				Type: trace.EventDataError, ISIN: product.ISIN, Date: obsDay,
				Detail: err.Error(),
			})
			continue
		}

		pool[best].consumed = true
		locked = append(locked, perf)
		lockedLevels = append(lockedLevels, domain.UnderlyingLevel{
			Ticker: pool[best].underlying.Ticker,
			Level:  domain.NewPerformance(perf),
		})
		outcome.Status = domain.ObservationFrozen
		outcome.Basket = domain.NewPerformance(perf)
		result.Outcomes = append(result.Outcomes, outcome)
		s.sink.Emit(trace.Event{
			Type: trace.EventHimalayaLocked, ISIN: product.ISIN, Date: obsDay,
			Ticker: pool[best].underlying.Ticker, Value: perf,
		})
	}

	// The payout only exists once every observation has locked a return.
	if complete {
		mean := stat.Mean(locked, nil)
		floored := maxFloat(mean-100, product.Structure.FloorLevel-100)
		payout := 100 + floored
		lastDay := domain.NormalizeDate(product.Schedule[len(product.Schedule)-1].Date)
		result.Status = domain.StatusMatured
		result.TerminationDate = &lastDay
		result.Redemption = &domain.RedemptionDetail{
			Value:       payout,
			Tag:         domain.RedemptionHimalaya,
			Basket:      domain.NewPerformance(mean),
			Underlyings: lockedLevels,
			Explanation: fmt.Sprintf(
				"mean of %d locked returns = %.2f; floored performance max(%.2f, %.2f) = %.2f; payout = %.2f%%",
				len(locked), mean, mean-100, product.Structure.FloorLevel-100, floored, payout),
		}
		s.sink.Emit(trace.Event{
			Type: trace.EventRedemptionComputed, ISIN: product.ISIN, Date: lastDay,
			Value: payout, Detail: string(domain.RedemptionHimalaya),
		})
	}

	return result, nil
}

// selectBest finds the best-performing available underlying at one
// observation date. A missing close for any available underlying fails the
// observation: a partial maximum could pick the wrong name.
func (s *Selector) selectBest(pool []poolEntry, date time.Time) (int, float64, error) {
	best := -1
	bestPerf := 0.0
	for i := range pool {
		if pool[i].consumed {
			continue
		}
		u := pool[i].underlying
		price, err := s.prices.GetClosePrice(u.Ticker, date)
		if err != nil {
			return -1, 0, fmt.Errorf("%s on %s: %w", u.Ticker, date.Format("2006-01-02"), err)
		}
		perf, ok := domain.PerformanceRatio(price, u.InitialPrice).Value()
		if !ok {
			return -1, 0, fmt.Errorf("%s on %s: %w: non-positive price or strike",
				u.Ticker, date.Format("2006-01-02"), domain.ErrMissingPriceData)
		}
		// Strictly greater keeps the first-listed underlying on ties.
		if best == -1 || perf > bestPerf {
			best = i
			bestPerf = perf
		}
	}
	if best == -1 {
		return -1, 0, fmt.Errorf("%w: no available underlyings left", domain.ErrMissingPriceData)
	}
	return best, bestPerf, nil
}

// provisionalBest reports the would-be selection against as-of prices for a
// Pending observation, without consuming anything.
func (s *Selector) provisionalBest(pool []poolEntry, asOfDay time.Time) domain.Performance {
	best := domain.MissingPerformance()
	for i := range pool {
		if pool[i].consumed {
			continue
		}
		u := pool[i].underlying
		price, err := s.prices.GetClosePrice(u.Ticker, asOfDay)
		if err != nil {
			continue
		}
		if perf, ok := domain.PerformanceRatio(price, u.InitialPrice).Value(); ok {
			if v, valid := best.Value(); !valid || perf > v {
				best = domain.NewPerformance(perf)
			}
		}
	}
	return best
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
