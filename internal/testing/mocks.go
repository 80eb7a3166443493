// Package testing provides shared fixtures and mock collaborators for
// engine tests. Import it aliased (testingpkg) to avoid clashing with the
// standard library testing package.
package testing

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/structura/internal/domain"
)

// MockPriceSource is an in-memory implementation of domain.PriceSource for
// tests. Prices are keyed by ticker and calendar day.
type MockPriceSource struct {
	mu     sync.RWMutex
	prices map[string]map[string]float64 // ticker -> yyyy-mm-dd -> close
	err    error
}

// NewMockPriceSource creates an empty price source.
func NewMockPriceSource() *MockPriceSource {
	return &MockPriceSource{prices: make(map[string]map[string]float64)}
}

// SetPrice records a close for ticker on the given day.
func (m *MockPriceSource) SetPrice(ticker string, date time.Time, close float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := domain.NormalizeDate(date).Format("2006-01-02")
	if m.prices[ticker] == nil {
		m.prices[ticker] = make(map[string]float64)
	}
	m.prices[ticker][day] = close
}

// RemovePrice deletes a close, simulating a data gap.
func (m *MockPriceSource) RemovePrice(ticker string, date time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prices[ticker], domain.NormalizeDate(date).Format("2006-01-02"))
}

// SetError makes every lookup fail with err.
func (m *MockPriceSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// GetClosePrice implements domain.PriceSource.
func (m *MockPriceSource) GetClosePrice(ticker string, date time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	day := domain.NormalizeDate(date).Format("2006-01-02")
	close, ok := m.prices[ticker][day]
	if !ok {
		return 0, fmt.Errorf("%w: %s on %s", domain.ErrMissingPriceData, ticker, day)
	}
	return close, nil
}

// GetPriceSeries implements domain.PriceSource.
func (m *MockPriceSource) GetPriceSeries(ticker string, from, to time.Time) ([]domain.ClosePrice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	days, ok := m.prices[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no data", domain.ErrMissingPriceData, ticker)
	}

	fromDay := domain.NormalizeDate(from)
	toDay := domain.NormalizeDate(to)
	var series []domain.ClosePrice
	for day, close := range days {
		d, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, err
		}
		if d.Before(fromDay) || d.After(toDay) {
			continue
		}
		series = append(series, domain.ClosePrice{Date: d, Close: close})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

// MockOperationSource is an in-memory implementation of
// domain.OperationSource for tests.
type MockOperationSource struct {
	mu         sync.RWMutex
	operations []domain.Operation
	err        error
}

// NewMockOperationSource creates an empty operation source.
func NewMockOperationSource() *MockOperationSource {
	return &MockOperationSource{}
}

// SetOperations replaces the stored operations.
func (m *MockOperationSource) SetOperations(ops []domain.Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = ops
}

// SetError makes every lookup fail with err.
func (m *MockOperationSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// GetCandidateOperations implements domain.OperationSource.
func (m *MockOperationSource) GetCandidateOperations(isin string, filter domain.OperationFilter) ([]domain.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Operation
	for _, op := range m.operations {
		if op.ISIN != isin {
			continue
		}
		if !filter.From.IsZero() && op.ValueDate.Before(domain.NormalizeDate(filter.From)) {
			continue
		}
		if !filter.To.IsZero() && op.ValueDate.After(domain.NormalizeDate(filter.To)) {
			continue
		}
		if len(filter.Types) > 0 && !typeListed(op.OperationType, filter.Types) {
			continue
		}
		out = append(out, op)
	}
	return out, nil
}

func typeListed(opType string, types []string) bool {
	for _, t := range types {
		if strings.EqualFold(opType, t) {
			return true
		}
	}
	return false
}
