package testing

import (
	"time"

	"github.com/aristath/structura/internal/domain"
)

// Day builds a UTC calendar day, keeping date literals in tests short.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NewPhoenixProduct returns a worst-of memory-coupon autocallable note with
// a quarterly four-observation schedule over 2025. Coupon barrier 70,
// autocall level 100, coupon 2.5% per observation, protection barrier 70.
func NewPhoenixProduct() domain.Product {
	return domain.Product{
		ISIN:                 "XS1000000001",
		Name:                 "Phoenix Memory Autocallable 2025",
		Currency:             domain.CurrencyEUR,
		Notional:             1_000_000,
		Template:             domain.TemplatePhoenix,
		TradeDate:            Day(2025, 1, 10),
		MaturityDate:         Day(2026, 1, 12),
		FinalObservationDate: Day(2026, 1, 9),
		Structure: domain.StructureParams{
			ProtectionBarrier: 70,
			CouponBarrier:     70,
			AutocallLevel:     100,
			CouponRate:        2.5,
			MemoryCoupon:      true,
			Reference:         domain.ReferenceWorstOf,
		},
		Schedule: []domain.Observation{
			{Date: Day(2025, 4, 10), PaymentDate: Day(2025, 4, 14), Callable: true},
			{Date: Day(2025, 7, 10), PaymentDate: Day(2025, 7, 14), Callable: true},
			{Date: Day(2025, 10, 10), PaymentDate: Day(2025, 10, 14), Callable: true},
			{Date: Day(2026, 1, 9), PaymentDate: Day(2026, 1, 12)},
		},
	}
}

// NewPhoenixUnderlyings returns the two-stock basket used with
// NewPhoenixProduct, both struck at 100.
func NewPhoenixUnderlyings() []domain.Underlying {
	return []domain.Underlying{
		{Ticker: "ACME", Name: "Acme Corp", InitialPrice: 100, Currency: domain.CurrencyEUR},
		{Ticker: "GLOBX", Name: "Globex SA", InitialPrice: 100, Currency: domain.CurrencyEUR},
	}
}

// NewHimalayaProduct returns a two-underlying, two-observation Himalaya note
// with a 100 floor.
func NewHimalayaProduct() domain.Product {
	return domain.Product{
		ISIN:                 "XS2000000002",
		Name:                 "Himalaya Selection Note",
		Currency:             domain.CurrencyEUR,
		Notional:             500_000,
		Template:             domain.TemplateHimalaya,
		TradeDate:            Day(2025, 1, 10),
		MaturityDate:         Day(2025, 7, 14),
		FinalObservationDate: Day(2025, 7, 10),
		Structure: domain.StructureParams{
			FloorLevel: 100,
			Reference:  domain.ReferenceBestOf,
		},
		Schedule: []domain.Observation{
			{Date: Day(2025, 4, 10)},
			{Date: Day(2025, 7, 10)},
		},
	}
}

// NewSharkProduct returns a worst-of Shark note: knockout at 130, rebate 5,
// floor 100.
func NewSharkProduct() domain.Product {
	return domain.Product{
		ISIN:                 "XS3000000003",
		Name:                 "Shark Note 130",
		Currency:             domain.CurrencyUSD,
		Notional:             250_000,
		Template:             domain.TemplateShark,
		TradeDate:            Day(2025, 1, 10),
		MaturityDate:         Day(2025, 7, 14),
		FinalObservationDate: Day(2025, 7, 10),
		Structure: domain.StructureParams{
			UpperBarrier: 130,
			RebateValue:  5,
			FloorLevel:   100,
			Reference:    domain.ReferenceWorstOf,
		},
		Schedule: []domain.Observation{
			{Date: Day(2025, 7, 10)},
		},
	}
}

// SetBasketPrices records the same close for every underlying on one day.
func SetBasketPrices(src *MockPriceSource, underlyings []domain.Underlying, date time.Time, close float64) {
	for _, u := range underlyings {
		src.SetPrice(u.Ticker, date, close)
	}
}
