package domain

import "errors"

// Error taxonomy for evaluation and reconciliation. Callers classify with
// errors.Is; call sites wrap these with product/observation context.
var (
	// ErrMissingPriceData: a historical close required for a past
	// observation is absent. Recorded per-observation as a DataError
	// outcome rather than aborting the whole product.
	ErrMissingPriceData = errors.New("missing price data")

	// ErrInvalidScheduleDate: an observation or payment date is absent,
	// unparseable, or out of chronological order.
	ErrInvalidScheduleDate = errors.New("invalid schedule date")

	// ErrNoCandidateOperations: the reconciliation matcher has nothing to
	// score against.
	ErrNoCandidateOperations = errors.New("no candidate operations")

	// ErrInvalidBarrierConfig: a barrier level is non-positive or otherwise
	// nonsensical.
	ErrInvalidBarrierConfig = errors.New("invalid barrier configuration")

	// ErrAmbiguousMatch: two candidates tie at the top score after all
	// tie-break keys.
	ErrAmbiguousMatch = errors.New("ambiguous payment match")
)
