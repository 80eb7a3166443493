// Package barrier detects knockout barrier touches for the Shark Note
// family and computes the resulting redemption.
package barrier

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/structura/internal/domain"
	"github.com/aristath/structura/internal/modules/basket"
	"github.com/aristath/structura/internal/trace"
)

// Detector evaluates Shark products by scanning the basket's performance
// history for the first breach of the upper barrier.
type Detector struct {
	prices domain.PriceSource
	sink   trace.Sink
}

// NewDetector creates a barrier detector reading from the given price
// source. Pass trace.NopSink{} to discard diagnostics.
func NewDetector(prices domain.PriceSource, sink trace.Sink) *Detector {
	if sink == nil {
		sink = trace.NopSink{}
	}
	return &Detector{prices: prices, sink: sink}
}

// Evaluate scans the observed history from trade date to the earlier of the
// as-of date and the final observation date. Once the basket has closed at
// or above the upper barrier the touch is terminal: no later, lower reading
// can untouch it.
func (d *Detector) Evaluate(product domain.Product, underlyings []domain.Underlying, asOf time.Time) (domain.EvaluationResult, error) {
	if product.Structure.UpperBarrier <= 0 {
		return domain.EvaluationResult{}, fmt.Errorf("%w: upper barrier %.2f on %s",
			domain.ErrInvalidBarrierConfig, product.Structure.UpperBarrier, product.ISIN)
	}
	if len(underlyings) == 0 {
		return domain.EvaluationResult{}, fmt.Errorf("product %s has no underlyings", product.ISIN)
	}

	asOfDay := domain.NormalizeDate(asOf)
	finalDay := domain.NormalizeDate(product.FinalObservationDate)
	scanEnd := asOfDay
	if finalDay.Before(scanEnd) {
		scanEnd = finalDay
	}

	result := domain.EvaluationResult{
		ISIN:            product.ISIN,
		Template:        domain.TemplateShark,
		EvaluatedAt:     asOfDay,
		Status:          domain.StatusLive,
		CouponsComplete: true,
		Barrier:         &domain.BarrierTouch{},
	}

	history, err := d.basketHistory(product, underlyings, domain.NormalizeDate(product.TradeDate), scanEnd)
	if err != nil {
		return domain.EvaluationResult{}, err
	}

	for _, point := range history {
		if point.level >= product.Structure.UpperBarrier {
			result.Barrier.Touched = true
			result.Barrier.Date = point.date
			result.Barrier.Level = point.level
			d.sink.Emit(trace.Event{
				Type: trace.EventBarrierTouched, ISIN: product.ISIN, Date: point.date,
				Value: point.level,
				Detail: fmt.Sprintf("upper barrier %.2f", product.Structure.UpperBarrier),
			})
			break
		}
	}

	// Redemption is only due once the product has run its course.
	if asOfDay.Before(finalDay) {
		return result, nil
	}

	result.Status = domain.StatusMatured
	term := finalDay
	result.TerminationDate = &term

	if result.Barrier.Touched {
		value := 100 + product.Structure.RebateValue
		result.Redemption = &domain.RedemptionDetail{
			Value: value,
			Tag:   domain.RedemptionBarrierRebate,
			Explanation: fmt.Sprintf(
				"barrier %.2f touched on %s at basket level %.2f; redemption = par + %.2f rebate = %.2f%%",
				product.Structure.UpperBarrier, result.Barrier.Date.Format("2006-01-02"),
				result.Barrier.Level, product.Structure.RebateValue, value),
		}
	} else {
		finalBasket, levels, err := d.basketAt(product, underlyings, finalDay)
		if err != nil {
			// No touch and no final closes: the redemption figure is
			// unavailable, never a guess.
			result.CouponsComplete = false
			d.sink.Emit(trace.Event{
				Type: trace.EventDataError, ISIN: product.ISIN, Date: finalDay,
				Detail: err.Error(),
			})
			return result, nil
		}
		value := maxFloat(finalBasket, product.Structure.FloorLevel)
		result.Redemption = &domain.RedemptionDetail{
			Value:       value,
			Tag:         domain.RedemptionBarrierParticipation,
			Basket:      domain.NewPerformance(finalBasket),
			Underlyings: levels,
			Explanation: fmt.Sprintf(
				"barrier %.2f never touched; redemption = max(final basket %.2f, floor %.2f) = %.2f%%",
				product.Structure.UpperBarrier, finalBasket, product.Structure.FloorLevel, value),
		}
	}

	d.sink.Emit(trace.Event{
		Type: trace.EventRedemptionComputed, ISIN: product.ISIN, Date: finalDay,
		Value: result.Redemption.Value, Detail: string(result.Redemption.Tag),
	})
	return result, nil
}

type basketPoint struct {
	date  time.Time
	level float64
}

// basketHistory builds the chronological basket performance series over
// [from, to]. Only dates on which every underlying has a close participate:
// a partial basket level is not a basket level.
func (d *Detector) basketHistory(product domain.Product, underlyings []domain.Underlying, from, to time.Time) ([]basketPoint, error) {
	perDate := make(map[time.Time][]domain.Performance)
	for i, u := range underlyings {
		series, err := d.prices.GetPriceSeries(u.Ticker, from, to)
		if err != nil {
			return nil, fmt.Errorf("price series for %s: %w", u.Ticker, err)
		}
		for _, p := range series {
			day := domain.NormalizeDate(p.Date)
			if perDate[day] == nil {
				perDate[day] = make([]domain.Performance, len(underlyings))
			}
			perDate[day][i] = domain.PerformanceRatio(p.Close, u.InitialPrice)
		}
	}

	var points []basketPoint
	for day, perfs := range perDate {
		level, err := basket.Reduce(perfs, product.Structure.Reference)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", product.ISIN, err)
		}
		if v, ok := level.Value(); ok {
			points = append(points, basketPoint{date: day, level: v})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].date.Before(points[j].date) })
	return points, nil
}

// basketAt resolves the basket level on one specific day.
func (d *Detector) basketAt(product domain.Product, underlyings []domain.Underlying, day time.Time) (float64, []domain.UnderlyingLevel, error) {
	perfs := make([]domain.Performance, len(underlyings))
	levels := make([]domain.UnderlyingLevel, len(underlyings))
	for i, u := range underlyings {
		price, err := d.prices.GetClosePrice(u.Ticker, day)
		if err != nil {
			return 0, nil, fmt.Errorf("%s on %s: %w", u.Ticker, day.Format("2006-01-02"), err)
		}
		perfs[i] = domain.PerformanceRatio(price, u.InitialPrice)
		levels[i] = domain.UnderlyingLevel{Ticker: u.Ticker, Level: perfs[i]}
	}
	level, err := basket.Reduce(perfs, product.Structure.Reference)
	if err != nil {
		return 0, nil, err
	}
	v, ok := level.Value()
	if !ok {
		return 0, nil, fmt.Errorf("%w: basket level on %s", domain.ErrMissingPriceData, day.Format("2006-01-02"))
	}
	return v, levels, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
