// Package schedule walks a product's observation schedule in order,
// determining autocall and coupon events and carrying memory state between
// observations.
package schedule

// MemoryTracker accumulates unpaid coupon percentage across observations of
// a single evaluation run. Missed coupons accrue; the full balance is
// released the next time a payment condition is met.
type MemoryTracker struct {
	balance float64
}

// NewMemoryTracker starts a run with an empty balance.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{}
}

// Accrue adds a missed coupon percentage to the balance.
func (m *MemoryTracker) Accrue(coupon float64) {
	m.balance += coupon
}

// Flush returns the accumulated balance and resets it to zero.
func (m *MemoryTracker) Flush() float64 {
	b := m.balance
	m.balance = 0
	return b
}

// Balance returns the current unpaid balance without clearing it.
func (m *MemoryTracker) Balance() float64 {
	return m.balance
}
