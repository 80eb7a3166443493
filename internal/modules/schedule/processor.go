package schedule

import (
	"fmt"
	"time"

	"github.com/aristath/structura/internal/domain"
	"github.com/aristath/structura/internal/modules/basket"
	"github.com/aristath/structura/internal/modules/maturity"
	"github.com/aristath/structura/internal/trace"
)

// Processor evaluates Phoenix-style products: a per-product state machine
// that walks the observation schedule chronologically. Processing within one
// product is strictly sequential because every observation's outcome depends
// on the cumulative state (memory balance, termination, memory-autocall set)
// of all prior observations.
type Processor struct {
	prices domain.PriceSource
	sink   trace.Sink
}

// NewProcessor creates a schedule processor reading from the given price
// source. Pass trace.NopSink{} to discard diagnostics.
func NewProcessor(prices domain.PriceSource, sink trace.Sink) *Processor {
	if sink == nil {
		sink = trace.NopSink{}
	}
	return &Processor{prices: prices, sink: sink}
}

// Evaluate runs the observation schedule of product as of the given date and
// returns a freshly constructed result. Inputs are read-only: re-running
// with identical historical prices yields identical Frozen outcomes.
func (p *Processor) Evaluate(product domain.Product, underlyings []domain.Underlying, asOf time.Time) (domain.EvaluationResult, error) {
	if err := validateSchedule(product.Schedule); err != nil {
		return domain.EvaluationResult{}, err
	}
	if len(underlyings) == 0 {
		return domain.EvaluationResult{}, fmt.Errorf("product %s has no underlyings", product.ISIN)
	}

	result := domain.EvaluationResult{
		ISIN:            product.ISIN,
		Template:        domain.TemplatePhoenix,
		EvaluatedAt:     domain.NormalizeDate(asOf),
		Status:          domain.StatusLive,
		Outcomes:        make([]domain.ObservationOutcome, 0, len(product.Schedule)),
		CouponsComplete: true,
	}

	mem := NewMemoryTracker()
	// Monotonic set of underlyings that have ever met the autocall level;
	// only grows across observations.
	called := make(map[string]bool)
	terminated := false
	asOfDay := domain.NormalizeDate(asOf)
	lastIdx := len(product.Schedule) - 1

	for i, obs := range product.Schedule {
		obsDay := domain.NormalizeDate(obs.Date)
		outcome := domain.ObservationOutcome{
			Date:        obsDay,
			PaymentDate: domain.NormalizeDate(obs.EffectivePaymentDate()),
		}

		if terminated {
			outcome.Status = domain.ObservationSkipped
			outcome.MemoryAfter = mem.Balance()
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		if obsDay.After(asOfDay) {
			// Future observation: provisional only, computed against the
			// latest available prices, memory state untouched. Recomputed
			// in full once the date passes.
			outcome.Status = domain.ObservationPending
			outcome.Basket = p.provisionalBasket(product, underlyings, asOfDay)
			outcome.MemoryAfter = mem.Balance()
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		// The observation has occurred: only the historical closes of this
		// specific date count. A current price is never substituted.
		perfs, levels, err := p.resolveAt(underlyings, obsDay)
		if err != nil {
			outcome.Status = domain.ObservationDataError
			outcome.Basket = domain.MissingPerformance()
			outcome.Error = err.Error()
			outcome.MemoryAfter = mem.Balance()
			result.Outcomes = append(result.Outcomes, outcome)
			result.CouponsComplete = false
			p.sink.Emit(trace.Event{
				Type: trace.EventDataError, ISIN: product.ISIN, Date: obsDay,
				Detail: err.Error(),
			})
			continue
		}

		basketPerf, err := basket.Reduce(perfs, product.Structure.Reference)
		if err != nil {
			return domain.EvaluationResult{}, fmt.Errorf("product %s observation %s: %w",
				product.ISIN, obsDay.Format("2006-01-02"), err)
		}
		basketValue, _ := basketPerf.Value()
		outcome.Status = domain.ObservationFrozen
		outcome.Basket = basketPerf
		p.sink.Emit(trace.Event{
			Type: trace.EventObservationEvaluated, ISIN: product.ISIN, Date: obsDay,
			Value: basketValue,
		})

		if i == lastIdx {
			// Maturity settlement: the final coupon plus the whole memory
			// balance is paid out, then the principal redemption is handed
			// to the maturity calculator.
			coupon := product.Structure.CouponRate + mem.Flush()
			outcome.MaturityEvent = true
			outcome.CouponPaid = coupon
			outcome.MemoryAfter = 0
			result.Outcomes = append(result.Outcomes, outcome)
			result.Status = domain.StatusMatured
			term := obsDay
			result.TerminationDate = &term
			p.sink.Emit(trace.Event{
				Type: trace.EventCouponPaid, ISIN: product.ISIN, Date: obsDay,
				Value: coupon, Detail: "maturity settlement",
			})

			// Memory was settled with the final coupon above, so the
			// redemption formula receives a zero balance.
			redemption, err := maturity.Compute(maturity.Input{
				Basket:            basketValue,
				ProtectionBarrier: product.Structure.ProtectionBarrier,
				MemoryBalance:     0,
				OneStar:           product.Structure.OneStarRating,
				Underlyings:       levels,
			})
			if err != nil {
				return domain.EvaluationResult{}, fmt.Errorf("product %s maturity: %w", product.ISIN, err)
			}
			result.Redemption = &redemption
			p.sink.Emit(trace.Event{
				Type: trace.EventRedemptionComputed, ISIN: product.ISIN, Date: obsDay,
				Value: redemption.Value, Detail: string(redemption.Tag),
			})
			continue
		}

		if obs.Callable {
			level := product.Structure.AutocallLevel
			if obs.AutocallLevel != nil {
				level = *obs.AutocallLevel
			}
			if p.autocallFires(product, perfs, underlyings, basketValue, level, called) {
				coupon := product.Structure.CouponRate + mem.Flush()
				outcome.AutocallTriggered = true
				outcome.CouponPaid = coupon
				outcome.MemoryAfter = 0
				result.Outcomes = append(result.Outcomes, outcome)
				result.Status = domain.StatusAutocalled
				term := obsDay
				result.TerminationDate = &term
				terminated = true
				p.sink.Emit(trace.Event{
					Type: trace.EventAutocallTriggered, ISIN: product.ISIN, Date: obsDay,
					Value: basketValue, Detail: fmt.Sprintf("autocall level %.2f", level),
				})
				continue
			}
		}

		barrier := product.Structure.CouponBarrier
		if obs.CouponBarrier != nil {
			barrier = *obs.CouponBarrier
		}
		switch {
		case basketValue >= barrier:
			coupon := product.Structure.CouponRate + mem.Flush()
			outcome.CouponPaid = coupon
			p.sink.Emit(trace.Event{
				Type: trace.EventCouponPaid, ISIN: product.ISIN, Date: obsDay,
				Value: coupon,
			})
		case product.Structure.MemoryCoupon:
			mem.Accrue(product.Structure.CouponRate)
			p.sink.Emit(trace.Event{
				Type: trace.EventCouponCarried, ISIN: product.ISIN, Date: obsDay,
				Value: product.Structure.CouponRate,
				Detail: fmt.Sprintf("memory balance %.2f", mem.Balance()),
			})
		}
		outcome.MemoryAfter = mem.Balance()
		result.Outcomes = append(result.Outcomes, outcome)
	}

	for _, o := range result.Outcomes {
		result.TotalCouponsPaid += o.CouponPaid
	}
	result.MemoryBalance = mem.Balance()

	// A matured product whose final observation could not be evaluated has
	// no redemption figure: the calendar says matured, the data does not.
	if result.Status == domain.StatusLive && !result.CouponsComplete {
		last := result.Outcomes[lastIdx]
		if last.Status == domain.ObservationDataError {
			result.Status = domain.StatusMatured
			term := last.Date
			result.TerminationDate = &term
		}
	}

	return result, nil
}

// autocallFires applies the product's autocall rule at one observation.
// In memory-autocall mode the set of underlyings that have ever met the
// level is unioned across observations and fires once it covers the basket.
func (p *Processor) autocallFires(product domain.Product, perfs []domain.Performance, underlyings []domain.Underlying, basketValue, level float64, called map[string]bool) bool {
	if !product.Structure.MemoryAutocall {
		return basketValue >= level
	}
	for i, perf := range perfs {
		if v, ok := perf.Value(); ok && v >= level {
			called[underlyings[i].Ticker] = true
		}
	}
	return len(called) == len(underlyings)
}

// resolveAt fetches every underlying's historical close for one observation
// date. Any absent price fails the whole observation.
func (p *Processor) resolveAt(underlyings []domain.Underlying, date time.Time) ([]domain.Performance, []domain.UnderlyingLevel, error) {
	perfs := make([]domain.Performance, len(underlyings))
	levels := make([]domain.UnderlyingLevel, len(underlyings))
	for i, u := range underlyings {
		price, err := p.prices.GetClosePrice(u.Ticker, date)
		if err != nil {
			return nil, nil, fmt.Errorf("%s on %s: %w", u.Ticker, date.Format("2006-01-02"), err)
		}
		perfs[i] = domain.PerformanceRatio(price, u.InitialPrice)
		levels[i] = domain.UnderlyingLevel{Ticker: u.Ticker, Level: perfs[i]}
		if !perfs[i].Valid() {
			return nil, nil, fmt.Errorf("%s on %s: %w: non-positive price or strike",
				u.Ticker, date.Format("2006-01-02"), domain.ErrMissingPriceData)
		}
	}
	return perfs, levels, nil
}

// provisionalBasket computes a best-effort basket level against the as-of
// closes for Pending observations. Missing data simply leaves the basket
// missing; it is informational only and carries no coupon or memory effect.
func (p *Processor) provisionalBasket(product domain.Product, underlyings []domain.Underlying, asOfDay time.Time) domain.Performance {
	perfs := make([]domain.Performance, len(underlyings))
	for i, u := range underlyings {
		price, err := p.prices.GetClosePrice(u.Ticker, asOfDay)
		if err != nil {
			return domain.MissingPerformance()
		}
		perfs[i] = domain.PerformanceRatio(price, u.InitialPrice)
	}
	basketPerf, err := basket.Reduce(perfs, product.Structure.Reference)
	if err != nil {
		return domain.MissingPerformance()
	}
	return basketPerf
}

func validateSchedule(schedule []domain.Observation) error {
	if len(schedule) == 0 {
		return fmt.Errorf("%w: empty observation schedule", domain.ErrInvalidScheduleDate)
	}
	var prev time.Time
	for i, obs := range schedule {
		if obs.Date.IsZero() {
			return fmt.Errorf("%w: observation %d has no date", domain.ErrInvalidScheduleDate, i)
		}
		day := domain.NormalizeDate(obs.Date)
		if i > 0 && !day.After(prev) {
			return fmt.Errorf("%w: observation %d (%s) is not after its predecessor",
				domain.ErrInvalidScheduleDate, i, day.Format("2006-01-02"))
		}
		prev = day
	}
	return nil
}
