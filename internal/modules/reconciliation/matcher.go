// Package reconciliation matches expected scheduled payments against
// custodian transaction records.
package reconciliation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/structura/internal/domain"
	"github.com/google/uuid"
)

// PaymentKind selects the scoring variant for one expected payment.
type PaymentKind string

const (
	PaymentCoupon     PaymentKind = "coupon"
	PaymentRedemption PaymentKind = "redemption"
)

// Ruleset holds the scoring knobs for one payment category. Coupon and
// redemption reconciliation share the date rule and differ only in how the
// cash leg of a candidate is judged.
type Ruleset struct {
	Kind PaymentKind

	// ToleranceDays bounds the late window. Payments only arrive late,
	// never early: a candidate dated before the scheduled date scores zero.
	ToleranceDays int

	// Types are the operation types earning the type score, matched
	// case-insensitively.
	Types []string

	// ParBandLow/ParBandHigh bound the near-par price heuristic used by
	// redemption matching; unused for coupons.
	ParBandLow  float64
	ParBandHigh float64
}

// CouponRuleset is the scoring configuration for coupon payments.
func CouponRuleset() Ruleset {
	return Ruleset{
		Kind:          PaymentCoupon,
		ToleranceDays: 7,
		Types:         []string{"coupon", "dividend", "interest"},
	}
}

// RedemptionRuleset is the scoring configuration for principal redemptions.
// The cash leg is judged by quantity sign and near-par price instead of a
// simple positive-amount check.
func RedemptionRuleset() Ruleset {
	return Ruleset{
		Kind:          PaymentRedemption,
		ToleranceDays: 7,
		Types:         []string{"redemption", "maturity", "repayment"},
		ParBandLow:    50,
		ParBandHigh:   150,
	}
}

// Matcher scores candidate operations against expected scheduled payments.
// It is pure given its inputs: fetching candidates is delegated to the
// OperationSource and every scoring decision is reflected in the returned
// PaymentMatch component scores.
type Matcher struct {
	ops   domain.OperationSource
	rules Ruleset
}

// NewMatcher creates a matcher over the given operation source.
func NewMatcher(ops domain.OperationSource, rules Ruleset) *Matcher {
	return &Matcher{ops: ops, rules: rules}
}

// Match fetches the candidate operations for the product around the
// scheduled date and scores them. Scoring failures degrade: no candidates or
// an unresolvable tie produce a none-confidence match, not an error.
func (m *Matcher) Match(product domain.Product, scheduledDate time.Time) (domain.PaymentMatch, error) {
	day := domain.NormalizeDate(scheduledDate)
	filter := domain.OperationFilter{
		From: day,
		To:   day.AddDate(0, 0, m.rules.ToleranceDays),
	}
	candidates, err := m.ops.GetCandidateOperations(product.ISIN, filter)
	if err != nil {
		return domain.PaymentMatch{}, fmt.Errorf("candidates for %s: %w", product.ISIN, err)
	}
	return m.MatchCandidates(scheduledDate, candidates), nil
}

// MatchCandidates scores an already-fetched candidate set against one
// scheduled date and returns the winning match.
func (m *Matcher) MatchCandidates(scheduledDate time.Time, candidates []domain.Operation) domain.PaymentMatch {
	match, err := m.pick(scheduledDate, candidates)
	if err != nil {
		// Nothing to score against, or an exact tie: report it, never guess.
		degraded := domain.PaymentMatch{
			ID:            uuid.NewString(),
			ScheduledDate: domain.NormalizeDate(scheduledDate),
			Confidence:    domain.ConfidenceNone,
			Ambiguous:     errors.Is(err, domain.ErrAmbiguousMatch),
		}
		return degraded
	}
	return match
}

type scoredCandidate struct {
	op     domain.Operation
	offset int
	match  domain.PaymentMatch
}

func (m *Matcher) pick(scheduledDate time.Time, candidates []domain.Operation) (domain.PaymentMatch, error) {
	day := domain.NormalizeDate(scheduledDate)
	if len(candidates) == 0 {
		return domain.PaymentMatch{}, fmt.Errorf("%w: scheduled %s", domain.ErrNoCandidateOperations, day.Format("2006-01-02"))
	}

	scored := make([]scoredCandidate, 0, len(candidates))
	for _, op := range candidates {
		scored = append(scored, m.score(day, op))
	}
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.match.Score != b.match.Score {
			return a.match.Score > b.match.Score
		}
		if absInt(a.offset) != absInt(b.offset) {
			return absInt(a.offset) < absInt(b.offset)
		}
		return a.op.ID < b.op.ID
	})

	best := scored[0]
	if len(scored) > 1 {
		next := scored[1]
		if best.match.Score == next.match.Score &&
			absInt(best.offset) == absInt(next.offset) &&
			best.op.ID == next.op.ID {
			return domain.PaymentMatch{}, fmt.Errorf("%w: operations %d and %d both score %d",
				domain.ErrAmbiguousMatch, best.op.ID, next.op.ID, best.match.Score)
		}
	}
	return best.match, nil
}

// score applies the ruleset to one candidate. The date rule is shared by
// both payment kinds; the cash leg differs.
func (m *Matcher) score(scheduledDate time.Time, op domain.Operation) scoredCandidate {
	offset := domain.DaysBetween(scheduledDate, domain.NormalizeDate(op.ValueDate))

	match := domain.PaymentMatch{
		ID:            uuid.NewString(),
		ScheduledDate: scheduledDate,
		OperationID:   op.ID,
	}
	match.DateScore = dateScore(offset, m.rules.ToleranceDays)
	match.AmountScore = m.amountScore(op)
	if m.typeMatches(op.OperationType) {
		match.TypeScore = 20
	}
	tradeOffset := domain.DaysBetween(scheduledDate, domain.NormalizeDate(op.OperationDate))
	if tradeOffset >= 0 && tradeOffset <= m.rules.ToleranceDays {
		match.TradeDateScore = 10
	}
	match.Score = match.DateScore + match.AmountScore + match.TypeScore + match.TradeDateScore

	match.Confidence, match.Confirmed = grade(match.Score)
	return scoredCandidate{op: op, offset: offset, match: match}
}

func (m *Matcher) amountScore(op domain.Operation) int {
	if m.rules.Kind == PaymentRedemption {
		// A redemption closes the position: the custodian books a negative
		// quantity at a price near par (in percent-of-notional terms).
		score := 0
		if op.Quantity < 0 {
			score += 20
		}
		if op.Price >= m.rules.ParBandLow && op.Price <= m.rules.ParBandHigh {
			score += 10
		}
		return score
	}
	if op.GrossAmount > 0 {
		return 30
	}
	return 0
}

func (m *Matcher) typeMatches(opType string) bool {
	for _, t := range m.rules.Types {
		if strings.EqualFold(opType, t) {
			return true
		}
	}
	return false
}

// dateScore applies the one-directional late window: exact day 50, up to
// three days late 40, up to a week 30, anything early or later zero.
func dateScore(offsetDays, tolerance int) int {
	switch {
	case offsetDays < 0 || offsetDays > tolerance:
		return 0
	case offsetDays == 0:
		return 50
	case offsetDays <= 3:
		return 40
	default:
		return 30
	}
}

func grade(score int) (domain.ConfidenceLevel, bool) {
	switch {
	case score >= 80:
		return domain.ConfidenceHigh, true
	case score >= 50:
		return domain.ConfidenceMedium, true
	case score >= 30:
		return domain.ConfidenceLow, false
	default:
		return domain.ConfidenceNone, false
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
