// Package basket reduces per-underlying performances to a single basket
// performance under a product's reference rule.
package basket

import (
	"fmt"

	"github.com/aristath/structura/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// Reduce applies the reference rule to a list of per-underlying performance
// values (100 = unchanged vs strike). If any required input is missing the
// result is the missing-data variant: missing data propagates as an explicit
// state, it never becomes a number that participates in min/max/mean.
func Reduce(perfs []domain.Performance, ref domain.ReferenceType) (domain.Performance, error) {
	if len(perfs) == 0 {
		return domain.MissingPerformance(), fmt.Errorf("basket has no underlyings")
	}

	values := make([]float64, 0, len(perfs))
	for _, p := range perfs {
		v, ok := p.Value()
		if !ok {
			return domain.MissingPerformance(), nil
		}
		values = append(values, v)
	}

	switch ref {
	case domain.ReferenceWorstOf:
		return domain.NewPerformance(minOf(values)), nil
	case domain.ReferenceBestOf:
		return domain.NewPerformance(maxOf(values)), nil
	case domain.ReferenceAverage:
		return domain.NewPerformance(stat.Mean(values, nil)), nil
	case domain.ReferenceSingle:
		if len(values) != 1 {
			return domain.MissingPerformance(), fmt.Errorf("single reference requires exactly one underlying, got %d", len(values))
		}
		return domain.NewPerformance(values[0]), nil
	default:
		return domain.MissingPerformance(), fmt.Errorf("unknown reference type: %s", ref)
	}
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
