package domain

import "time"

// ClosePrice is one daily close of an underlying.
type ClosePrice struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSource supplies historical closes for underlyings. Implementations
// must fail fast with ErrMissingPriceData when no data exists for a
// requested date; they never substitute a different date's price.
type PriceSource interface {
	// GetClosePrice returns the close of ticker on the given calendar day.
	GetClosePrice(ticker string, date time.Time) (float64, error)

	// GetPriceSeries returns the closes of ticker in [from, to], ordered by
	// date ascending. An empty range is not an error; a ticker with no data
	// at all returns ErrMissingPriceData.
	GetPriceSeries(ticker string, from, to time.Time) ([]ClosePrice, error)
}

// Operation is a normalized custodian transaction record, supplied by the
// file-ingestion collaborator and persisted for reconciliation.
type Operation struct {
	ID            int64     `json:"id"`
	ISIN          string    `json:"isin"`
	ValueDate     time.Time `json:"value_date"`
	OperationDate time.Time `json:"operation_date"`
	OperationType string    `json:"operation_type"`
	GrossAmount   float64   `json:"gross_amount"`
	NetAmount     float64   `json:"net_amount"`
	Quantity      float64   `json:"quantity"`
	Price         float64   `json:"price"`
	Currency      Currency  `json:"currency"`
}

// OperationFilter narrows candidate operations for the matcher.
type OperationFilter struct {
	// From/To bound the value date window; zero values leave the bound open.
	From time.Time
	To   time.Time
	// Types restricts operation types when non-empty (case-insensitive).
	Types []string
}

// OperationSource supplies candidate transaction records for reconciliation.
type OperationSource interface {
	GetCandidateOperations(isin string, filter OperationFilter) ([]Operation, error)
}
