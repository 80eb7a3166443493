// Package work runs product evaluations in bounded batches. Evaluations of
// different products share no mutable state, so each batch runs in
// parallel; the inter-batch delay keeps load on the price source bounded.
package work

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/structura/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultBatchSize bounds how many products evaluate concurrently.
const DefaultBatchSize = 8

// DefaultBatchDelay is the pause between batches.
const DefaultBatchDelay = 250 * time.Millisecond

// Evaluator is the per-product evaluation entry point the runner drives.
type Evaluator interface {
	Evaluate(product domain.Product, underlyings []domain.Underlying, asOf time.Time) (domain.EvaluationResult, error)
}

// Item is one product queued for evaluation together with its basket.
type Item struct {
	Product     domain.Product
	Underlyings []domain.Underlying
}

// Outcome is the result of evaluating one item. Failures are isolated: a
// product that cannot be evaluated reports its error here and never stops
// the batch.
type Outcome struct {
	ISIN   string
	Result domain.EvaluationResult
	Err    error
}

// Runner evaluates batches of products against one evaluator.
type Runner struct {
	evaluator  Evaluator
	batchSize  int
	batchDelay time.Duration
	log        zerolog.Logger
}

// NewRunner creates a batch runner. Non-positive batch size or negative
// delay fall back to the defaults.
func NewRunner(evaluator Evaluator, batchSize int, batchDelay time.Duration, log zerolog.Logger) *Runner {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchDelay < 0 {
		batchDelay = DefaultBatchDelay
	}
	return &Runner{
		evaluator:  evaluator,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		log:        log.With().Str("component", "runner").Logger(),
	}
}

// Run evaluates every item as of the given date and returns one outcome per
// item, in input order. It stops early only when the context is cancelled.
func (r *Runner) Run(ctx context.Context, items []Item, asOf time.Time) ([]Outcome, error) {
	outcomes := make([]Outcome, len(items))

	for start := 0; start < len(items); start += r.batchSize {
		if err := ctx.Err(); err != nil {
			return outcomes, fmt.Errorf("evaluation run cancelled: %w", err)
		}

		end := start + r.batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = r.evaluateOne(items[i], asOf)
			}(i)
		}
		wg.Wait()

		r.log.Debug().
			Int("batch_start", start).
			Int("batch_end", end).
			Int("total", len(items)).
			Msg("Evaluation batch complete")

		if end < len(items) && r.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return outcomes, fmt.Errorf("evaluation run cancelled: %w", ctx.Err())
			case <-time.After(r.batchDelay):
			}
		}
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	r.log.Info().
		Int("products", len(items)).
		Int("failed", failed).
		Time("as_of", asOf).
		Msg("Evaluation run complete")

	return outcomes, nil
}

func (r *Runner) evaluateOne(item Item, asOf time.Time) Outcome {
	out := Outcome{ISIN: item.Product.ISIN}

	defer func() {
		if p := recover(); p != nil {
			out.Err = fmt.Errorf("panic evaluating %s: %v", item.Product.ISIN, p)
		}
	}()

	result, err := r.evaluator.Evaluate(item.Product, item.Underlyings, asOf)
	if err != nil {
		r.log.Warn().Err(err).Str("isin", item.Product.ISIN).Msg("Product evaluation failed")
		out.Err = err
		return out
	}
	out.Result = result
	return out
}
