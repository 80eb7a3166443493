// Package domain provides core domain models and types.
package domain

import "time"

// Currency represents a currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
)

// Template identifies the payoff family of a structured product.
// It selects which evaluator runs the product's lifecycle.
type Template string

const (
	// TemplatePhoenix covers observation-schedule products: autocallable
	// notes with coupon barriers, optionally with memory features.
	TemplatePhoenix Template = "phoenix"
	// TemplateHimalaya covers sequential best-performer selection products.
	TemplateHimalaya Template = "himalaya"
	// TemplateShark covers knockout barrier notes with rebate.
	TemplateShark Template = "shark"
)

// ReferenceType determines how N underlying performances reduce to one
// basket performance.
type ReferenceType string

const (
	ReferenceWorstOf ReferenceType = "worst_of"
	ReferenceBestOf  ReferenceType = "best_of"
	ReferenceAverage ReferenceType = "average"
	ReferenceSingle  ReferenceType = "single"
)

// StructureParams holds the payoff parameters of a structured product.
// All levels are expressed on the 100-based performance scale
// (100 = unchanged vs strike).
type StructureParams struct {
	// ProtectionBarrier is the capital protection barrier B at maturity.
	ProtectionBarrier float64 `json:"protection_barrier"`
	// CouponBarrier is the product-level default coupon barrier.
	// Individual observations may override it.
	CouponBarrier float64 `json:"coupon_barrier"`
	// AutocallLevel is the product-level default autocall trigger level.
	// Individual observations may override it.
	AutocallLevel float64 `json:"autocall_level"`
	// CouponRate is the per-observation coupon, in percent of notional.
	CouponRate float64 `json:"coupon_rate"`
	// MemoryCoupon carries missed coupons forward until a later barrier hit.
	MemoryCoupon bool `json:"memory_coupon"`
	// MemoryAutocall fires the autocall once every underlying has
	// individually met the autocall level at some observation (the set of
	// qualifying underlyings only ever grows).
	MemoryAutocall bool `json:"memory_autocall"`
	// Reference selects the basket reduction rule.
	Reference ReferenceType `json:"reference"`
	// FloorLevel floors the final payout for Himalaya and Shark products.
	FloorLevel float64 `json:"floor_level"`
	// UpperBarrier is the knockout level for Shark products.
	UpperBarrier float64 `json:"upper_barrier"`
	// RebateValue is paid on top of par when a Shark barrier was touched,
	// in percentage points.
	RebateValue float64 `json:"rebate_value"`
	// OneStarRating enables the maturity override: if any single underlying
	// closes at or above its strike, capital is protected regardless of the
	// basket level.
	OneStarRating bool `json:"one_star_rating"`
}

// Observation is one entry of a product's observation schedule.
// Schedule entries are input data and are never mutated by the engine.
type Observation struct {
	// Date is the observation date on which basket performance is assessed.
	Date time.Time `json:"date"`
	// PaymentDate is the scheduled settlement date for any cash flow
	// triggered by this observation. Zero means same as Date.
	PaymentDate time.Time `json:"payment_date"`
	// Callable marks observations on which the product may autocall.
	Callable bool `json:"callable"`
	// AutocallLevel overrides StructureParams.AutocallLevel when non-nil.
	AutocallLevel *float64 `json:"autocall_level,omitempty"`
	// CouponBarrier overrides StructureParams.CouponBarrier when non-nil.
	CouponBarrier *float64 `json:"coupon_barrier,omitempty"`
}

// EffectivePaymentDate returns the payment date, falling back to the
// observation date when no explicit payment date is scheduled.
func (o Observation) EffectivePaymentDate() time.Time {
	if o.PaymentDate.IsZero() {
		return o.Date
	}
	return o.PaymentDate
}

// Underlying is one component of a product's basket. The strike is set once
// at trade date and never mutated afterwards.
type Underlying struct {
	Ticker       string   `json:"ticker"`
	Name         string   `json:"name,omitempty"`
	InitialPrice float64  `json:"initial_price"`
	Currency     Currency `json:"currency"`
}

// Product is a structured product definition. The engine treats it as a
// read-only input: evaluation never mutates the product, its schedule, or
// its underlyings, so re-running an evaluation is repeatable.
type Product struct {
	ISIN                 string          `json:"isin"`
	Name                 string          `json:"name,omitempty"`
	Currency             Currency        `json:"currency"`
	Notional             float64         `json:"notional"`
	Template             Template        `json:"template"`
	TradeDate            time.Time       `json:"trade_date"`
	MaturityDate         time.Time       `json:"maturity_date"`
	FinalObservationDate time.Time       `json:"final_observation_date"`
	Structure            StructureParams `json:"structure"`
	// Schedule is ordered chronologically. The engine validates ordering
	// and reports InvalidScheduleDate rather than re-sorting input data.
	Schedule []Observation `json:"schedule"`
}

// NormalizeDate truncates a timestamp to midnight UTC. All observation and
// price dates are compared at day granularity.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return NormalizeDate(a).Equal(NormalizeDate(b))
}

// DaysBetween returns the whole number of calendar days from a to b
// (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(NormalizeDate(b).Sub(NormalizeDate(a)).Hours() / 24)
}
