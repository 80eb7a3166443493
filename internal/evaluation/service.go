// Package evaluation orchestrates product lifecycle evaluation: it selects
// the evaluator matching a product's template and runs payment
// reconciliation against the ledger.
package evaluation

import (
	"fmt"
	"time"

	"github.com/aristath/structura/internal/domain"
	"github.com/aristath/structura/internal/modules/barrier"
	"github.com/aristath/structura/internal/modules/himalaya"
	"github.com/aristath/structura/internal/modules/reconciliation"
	"github.com/aristath/structura/internal/modules/schedule"
	"github.com/aristath/structura/internal/trace"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service evaluates structured products. The evaluators it dispatches to
// are pure; all logging happens here, at the orchestration boundary.
type Service struct {
	prices           domain.PriceSource
	operations       domain.OperationSource
	couponMatcher    *reconciliation.Matcher
	principalMatcher *reconciliation.Matcher
	log              zerolog.Logger
}

// NewService creates the evaluation service.
func NewService(prices domain.PriceSource, operations domain.OperationSource, log zerolog.Logger) *Service {
	return &Service{
		prices:           prices,
		operations:       operations,
		couponMatcher:    reconciliation.NewMatcher(operations, reconciliation.CouponRuleset()),
		principalMatcher: reconciliation.NewMatcher(operations, reconciliation.RedemptionRuleset()),
		log:              log.With().Str("component", "evaluation").Logger(),
	}
}

// Evaluate runs the evaluator matching the product's template as of the
// given date and stamps the result with a fresh run ID. The previous run's
// result is logically superseded by the returned one.
func (s *Service) Evaluate(product domain.Product, underlyings []domain.Underlying, asOf time.Time) (domain.EvaluationResult, error) {
	collector := trace.NewCollector()
	sink := trace.Tee{collector, trace.NewLoggerSink(s.log)}

	var result domain.EvaluationResult
	var err error
	switch product.Template {
	case domain.TemplatePhoenix:
		result, err = schedule.NewProcessor(s.prices, sink).Evaluate(product, underlyings, asOf)
	case domain.TemplateHimalaya:
		result, err = himalaya.NewSelector(s.prices, sink).Evaluate(product, underlyings, asOf)
	case domain.TemplateShark:
		result, err = barrier.NewDetector(s.prices, sink).Evaluate(product, underlyings, asOf)
	default:
		return domain.EvaluationResult{}, fmt.Errorf("product %s has unknown template %q", product.ISIN, product.Template)
	}
	if err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("evaluate %s: %w", product.ISIN, err)
	}

	result.RunID = uuid.NewString()

	summary := s.log.Info().
		Str("isin", product.ISIN).
		Str("run_id", result.RunID).
		Str("template", string(product.Template)).
		Str("status", string(result.Status)).
		Float64("total_coupons", result.TotalCouponsPaid).
		Bool("coupons_complete", result.CouponsComplete).
		Int("data_errors", len(collector.OfType(trace.EventDataError)))
	if result.Redemption != nil {
		summary = summary.Float64("redemption", result.Redemption.Value)
	}
	summary.Msg("Product evaluated")

	return result, nil
}

// ScheduledPayment pairs one expected payment with its reconciliation
// outcome.
type ScheduledPayment struct {
	ObservationDate time.Time                  `json:"observation_date"`
	PaymentDate     time.Time                  `json:"payment_date"`
	Kind            reconciliation.PaymentKind `json:"kind"`
	Match           domain.PaymentMatch        `json:"match"`
}

// MatchScheduledPayment reconciles one observation's expected coupon
// against the ledger.
func (s *Service) MatchScheduledPayment(product domain.Product, obs domain.Observation) (domain.PaymentMatch, error) {
	return s.couponMatcher.Match(product, obs.EffectivePaymentDate())
}

// MatchAllScheduledPayments reconciles every paid coupon in an evaluation
// result, plus the principal redemption when the product has terminated.
// Confirmed operations are consumed: one ledger row settles at most one
// scheduled payment.
func (s *Service) MatchAllScheduledPayments(product domain.Product, result domain.EvaluationResult) ([]ScheduledPayment, error) {
	var payments []ScheduledPayment
	used := make(map[int64]bool)

	for _, outcome := range result.Outcomes {
		if outcome.Status != domain.ObservationFrozen || outcome.CouponPaid <= 0 {
			continue
		}
		match, err := s.matchExcluding(s.couponMatcher, product, outcome.PaymentDate, used)
		if err != nil {
			return nil, err
		}
		if match.Confirmed && match.OperationID != 0 {
			used[match.OperationID] = true
		}
		payments = append(payments, ScheduledPayment{
			ObservationDate: outcome.Date,
			PaymentDate:     outcome.PaymentDate,
			Kind:            reconciliation.PaymentCoupon,
			Match:           match,
		})
	}

	if result.Status != domain.StatusLive && result.TerminationDate != nil {
		match, err := s.matchExcluding(s.principalMatcher, product, *result.TerminationDate, used)
		if err != nil {
			return nil, err
		}
		payments = append(payments, ScheduledPayment{
			ObservationDate: *result.TerminationDate,
			PaymentDate:     *result.TerminationDate,
			Kind:            reconciliation.PaymentRedemption,
			Match:           match,
		})
	}

	return payments, nil
}

func (s *Service) matchExcluding(m *reconciliation.Matcher, product domain.Product, scheduled time.Time, used map[int64]bool) (domain.PaymentMatch, error) {
	day := domain.NormalizeDate(scheduled)
	candidates, err := s.operations.GetCandidateOperations(product.ISIN, domain.OperationFilter{
		From: day,
		To:   day.AddDate(0, 0, 7),
	})
	if err != nil {
		return domain.PaymentMatch{}, fmt.Errorf("candidates for %s: %w", product.ISIN, err)
	}

	available := candidates[:0]
	for _, op := range candidates {
		if !used[op.ID] {
			available = append(available, op)
		}
	}
	return m.MatchCandidates(scheduled, available), nil
}
