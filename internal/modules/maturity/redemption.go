// Package maturity computes the final principal redemption of a product
// that reached its final observation without autocall.
package maturity

import (
	"fmt"

	"github.com/aristath/structura/internal/domain"
)

// Input carries everything the redemption formula needs. All levels are on
// the 100-based performance scale.
type Input struct {
	// Basket is the basket performance at the final observation.
	Basket float64
	// ProtectionBarrier is the capital protection barrier B.
	ProtectionBarrier float64
	// MemoryBalance is the carried unpaid memory coupon percentage.
	MemoryBalance float64
	// OneStar enables the override: any single underlying at or above its
	// strike protects capital regardless of the basket level.
	OneStar bool
	// Underlyings is the per-underlying final levels, used by the one-star
	// override and included in the audit breakdown.
	Underlyings []domain.UnderlyingLevel
}

// Compute applies the capital-protection / leveraged-downside redemption
// formula. The leverage factor is L = 100 / B, so a basket that finishes
// below the barrier loses (basket - barrier) x L percentage points from par.
func Compute(in Input) (domain.RedemptionDetail, error) {
	b := in.ProtectionBarrier
	if b <= 0 {
		return domain.RedemptionDetail{}, fmt.Errorf("%w: protection barrier %.2f", domain.ErrInvalidBarrierConfig, b)
	}

	detail := domain.RedemptionDetail{
		Basket:      domain.NewPerformance(in.Basket),
		Underlyings: in.Underlyings,
	}

	if in.OneStar && anyAtOrAboveStrike(in.Underlyings) {
		detail.Value = 100 + in.MemoryBalance
		detail.Tag = domain.RedemptionOneStarTriggered
		detail.Explanation = fmt.Sprintf(
			"one-star override: at least one underlying finished at or above its strike; "+
				"principal redeemed at par plus %.2f%% memory balance = %.2f%%",
			in.MemoryBalance, detail.Value)
		return detail, nil
	}

	if in.Basket >= b {
		detail.Value = 100 + in.MemoryBalance
		detail.Tag = domain.RedemptionCapitalProtected
		detail.Explanation = fmt.Sprintf(
			"basket %.2f at or above protection barrier %.2f; "+
				"principal redeemed at par plus %.2f%% memory balance = %.2f%%",
			in.Basket, b, in.MemoryBalance, detail.Value)
		return detail, nil
	}

	leverage := 100 / b
	downsideFromBarrier := (in.Basket - 100) - (b - 100)
	leveragedLoss := downsideFromBarrier * leverage
	detail.Value = 100 + leveragedLoss + in.MemoryBalance
	detail.Tag = domain.RedemptionLeveragedDownside
	detail.Explanation = fmt.Sprintf(
		"basket %.2f below protection barrier %.2f; downside from barrier %.2f x leverage %.4f "+
			"= %.2f%% loss; redemption = 100 %+.2f %+.2f memory = %.2f%%",
		in.Basket, b, downsideFromBarrier, leverage, leveragedLoss, leveragedLoss, in.MemoryBalance, detail.Value)
	return detail, nil
}

func anyAtOrAboveStrike(levels []domain.UnderlyingLevel) bool {
	for _, l := range levels {
		if v, ok := l.Level.Value(); ok && v >= 100 {
			return true
		}
	}
	return false
}
