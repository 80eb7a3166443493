package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/structura/internal/domain"
	"github.com/aristath/structura/internal/evaluation"
	"github.com/aristath/structura/internal/work"
	"github.com/rs/zerolog"
)

// ProductBook supplies the products to evaluate on each run.
type ProductBook interface {
	LoadItems() ([]work.Item, error)
}

// MatchStore persists reconciliation outcomes per scheduled payment.
type MatchStore interface {
	SaveMatch(isin string, match domain.PaymentMatch) error
}

// EvaluationJob re-evaluates the whole product book and reconciles the
// expected payments of every product that has paid or terminated.
type EvaluationJob struct {
	book    ProductBook
	service *evaluation.Service
	runner  *work.Runner
	matches MatchStore
	timeout time.Duration
	log     zerolog.Logger
}

// EvaluationJobConfig holds the job's collaborators.
type EvaluationJobConfig struct {
	Book    ProductBook
	Service *evaluation.Service
	Runner  *work.Runner
	Matches MatchStore
	Timeout time.Duration
	Log     zerolog.Logger
}

// NewEvaluationJob creates the periodic re-evaluation job.
func NewEvaluationJob(cfg EvaluationJobConfig) *EvaluationJob {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &EvaluationJob{
		book:    cfg.Book,
		service: cfg.Service,
		runner:  cfg.Runner,
		matches: cfg.Matches,
		timeout: cfg.Timeout,
		log:     cfg.Log.With().Str("job", "evaluate_products").Logger(),
	}
}

// Name implements Job.
func (j *EvaluationJob) Name() string { return "evaluate_products" }

// Run implements Job.
func (j *EvaluationJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	items, err := j.book.LoadItems()
	if err != nil {
		return fmt.Errorf("load product book: %w", err)
	}
	if len(items) == 0 {
		j.log.Info().Msg("Product book is empty, nothing to evaluate")
		return nil
	}

	outcomes, err := j.runner.Run(ctx, items, time.Now().UTC())
	if err != nil {
		return err
	}

	for i, outcome := range outcomes {
		if outcome.Err != nil {
			j.log.Warn().Err(outcome.Err).Str("isin", outcome.ISIN).
				Msg("Skipping reconciliation for failed evaluation")
			continue
		}
		j.reconcile(items[i].Product, outcome.Result)
	}
	return nil
}

func (j *EvaluationJob) reconcile(product domain.Product, result domain.EvaluationResult) {
	payments, err := j.service.MatchAllScheduledPayments(product, result)
	if err != nil {
		j.log.Warn().Err(err).Str("isin", product.ISIN).Msg("Payment reconciliation failed")
		return
	}
	if j.matches == nil {
		return
	}
	for _, p := range payments {
		if err := j.matches.SaveMatch(product.ISIN, p.Match); err != nil {
			j.log.Warn().Err(err).Str("isin", product.ISIN).
				Time("scheduled", p.Match.ScheduledDate).
				Msg("Failed to persist payment match")
		}
	}
}
