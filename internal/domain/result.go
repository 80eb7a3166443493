package domain

import "time"

// ProductStatus is the lifecycle status of a product after an evaluation run.
type ProductStatus string

const (
	StatusLive       ProductStatus = "live"
	StatusAutocalled ProductStatus = "autocalled"
	StatusMatured    ProductStatus = "matured"
)

// ObservationStatus is the computed state of a single schedule entry.
type ObservationStatus string

const (
	// ObservationPending marks an observation whose date is still in the
	// future. Its performance is provisional (computed against the latest
	// available prices) and is fully recomputed once the date passes.
	ObservationPending ObservationStatus = "pending"
	// ObservationFrozen marks a past observation evaluated against
	// historical closes. Frozen outcomes are deterministic for fixed inputs.
	ObservationFrozen ObservationStatus = "frozen"
	// ObservationSkipped marks observations after the product terminated.
	ObservationSkipped ObservationStatus = "skipped"
	// ObservationDataError marks a past observation for which a required
	// historical price was absent.
	ObservationDataError ObservationStatus = "data_error"
)

// ObservationOutcome is the evaluated result of one schedule entry for one
// evaluation run.
type ObservationOutcome struct {
	Date        time.Time         `json:"date"`
	PaymentDate time.Time         `json:"payment_date"`
	Status      ObservationStatus `json:"status"`
	// Basket is the basket performance at this observation; missing for
	// Skipped observations and for data errors.
	Basket Performance `json:"basket"`
	// CouponPaid is the coupon settled at this observation, in percent of
	// notional, including any released memory balance.
	CouponPaid float64 `json:"coupon_paid"`
	// AutocallTriggered marks the observation that terminated the product.
	AutocallTriggered bool `json:"autocall_triggered"`
	// MaturityEvent marks the final observation settlement (distinct from
	// an autocall).
	MaturityEvent bool `json:"maturity_event"`
	// MemoryAfter is the unpaid memory balance after this observation.
	MemoryAfter float64 `json:"memory_after"`
	// Error describes the data problem for DataError outcomes.
	Error string `json:"error,omitempty"`
}

// RedemptionTag classifies how the final redemption was computed.
type RedemptionTag string

const (
	RedemptionCapitalProtected     RedemptionTag = "capital_protected"
	RedemptionLeveragedDownside    RedemptionTag = "leveraged_downside"
	RedemptionOneStarTriggered     RedemptionTag = "one_star_triggered"
	RedemptionBarrierRebate        RedemptionTag = "barrier_rebate"
	RedemptionBarrierParticipation RedemptionTag = "barrier_participation"
	RedemptionHimalaya             RedemptionTag = "himalaya"
)

// UnderlyingLevel is one underlying's final performance, part of the
// redemption audit breakdown.
type UnderlyingLevel struct {
	Ticker string      `json:"ticker"`
	Level  Performance `json:"level"`
}

// RedemptionDetail is the final principal redemption computed at maturity,
// in percent of notional, with a per-underlying breakdown and a
// human-readable explanation for audit.
type RedemptionDetail struct {
	Value       float64           `json:"value"`
	Tag         RedemptionTag     `json:"tag"`
	Basket      Performance       `json:"basket"`
	Underlyings []UnderlyingLevel `json:"underlyings,omitempty"`
	Explanation string            `json:"explanation"`
}

// BarrierTouch records the first knockout barrier breach of a Shark note.
// Once touched the state is terminal for the remaining life of the product.
type BarrierTouch struct {
	Touched bool      `json:"touched"`
	Date    time.Time `json:"date,omitempty"`
	Level   float64   `json:"level,omitempty"`
}

// EvaluationResult is the outcome of one evaluation run for one product.
// A new run logically supersedes the prior one; at most one result is
// active per product at any time.
type EvaluationResult struct {
	// RunID identifies this evaluation run.
	RunID string `json:"run_id"`
	ISIN  string `json:"isin"`
	// EvaluatedAt is the as-of date that fixed the Pending/Frozen boundary.
	EvaluatedAt time.Time     `json:"evaluated_at"`
	Template    Template      `json:"template"`
	Status      ProductStatus `json:"status"`
	// TerminationDate is set when the product autocalled or matured.
	TerminationDate *time.Time           `json:"termination_date,omitempty"`
	Outcomes        []ObservationOutcome `json:"outcomes"`
	// Redemption is set only for matured products whose final observation
	// evaluated cleanly; it stays nil when the final observation carries a
	// data error, never a best-guess number.
	Redemption *RedemptionDetail `json:"redemption,omitempty"`
	// Barrier is set for Shark products.
	Barrier *BarrierTouch `json:"barrier,omitempty"`
	// TotalCouponsPaid sums CouponPaid across outcomes. It is only
	// trustworthy when CouponsComplete is true; a data error on any
	// occurred observation makes the total incomplete, not zero.
	TotalCouponsPaid float64 `json:"total_coupons_paid"`
	CouponsComplete  bool    `json:"coupons_complete"`
	// MemoryBalance is the unpaid memory coupon percentage remaining after
	// the run.
	MemoryBalance float64 `json:"memory_balance"`
}

// ConfidenceLevel grades a payment reconciliation match.
type ConfidenceLevel string

const (
	ConfidenceNone   ConfidenceLevel = "none"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// PaymentMatch is the result of scoring candidate transactions against one
// expected scheduled payment.
type PaymentMatch struct {
	// ID identifies this match record.
	ID string `json:"id"`
	// ScheduledDate is the expected payment date being reconciled.
	ScheduledDate time.Time `json:"scheduled_date"`
	// OperationID is the winning candidate, zero when nothing matched.
	OperationID int64 `json:"operation_id,omitempty"`
	// Score is the total match score; the component scores explain it.
	Score          int             `json:"score"`
	DateScore      int             `json:"date_score"`
	AmountScore    int             `json:"amount_score"`
	TypeScore      int             `json:"type_score"`
	TradeDateScore int             `json:"trade_date_score"`
	Confidence     ConfidenceLevel `json:"confidence"`
	// Confirmed is true for medium and high confidence matches; low
	// confidence matches are flagged for manual review instead.
	Confirmed bool `json:"confirmed"`
	// Ambiguous marks an exact top-score tie that no tie-break rule could
	// resolve; the match degrades to none confidence.
	Ambiguous bool `json:"ambiguous,omitempty"`
}
