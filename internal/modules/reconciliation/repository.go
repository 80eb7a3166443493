package reconciliation

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/structura/internal/domain"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// OperationRepository persists custodian operations and reconciliation
// matches in the ledger database. It implements domain.OperationSource.
type OperationRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewOperationRepository creates a repository over the ledger database.
func NewOperationRepository(db *sql.DB, log zerolog.Logger) *OperationRepository {
	return &OperationRepository{
		db:  db,
		log: log.With().Str("repository", "operations").Logger(),
	}
}

// SaveOperation inserts or replaces one custodian operation. A zero ID lets
// SQLite assign one; the stored ID is returned either way.
func (r *OperationRepository) SaveOperation(op domain.Operation) (int64, error) {
	if op.ID != 0 {
		_, err := r.db.Exec(`
			INSERT OR REPLACE INTO operations
				(id, isin, value_date, operation_date, operation_type,
				 gross_amount, net_amount, quantity, price, currency)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, op.ID, op.ISIN, domain.NormalizeDate(op.ValueDate).Unix(),
			domain.NormalizeDate(op.OperationDate).Unix(), op.OperationType,
			op.GrossAmount, op.NetAmount, op.Quantity, op.Price, string(op.Currency))
		if err != nil {
			return 0, fmt.Errorf("failed to save operation %d: %w", op.ID, err)
		}
		return op.ID, nil
	}

	res, err := r.db.Exec(`
		INSERT INTO operations
			(isin, value_date, operation_date, operation_type,
			 gross_amount, net_amount, quantity, price, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ISIN, domain.NormalizeDate(op.ValueDate).Unix(),
		domain.NormalizeDate(op.OperationDate).Unix(), op.OperationType,
		op.GrossAmount, op.NetAmount, op.Quantity, op.Price, string(op.Currency))
	if err != nil {
		return 0, fmt.Errorf("failed to save operation for %s: %w", op.ISIN, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read operation id: %w", err)
	}
	return id, nil
}

// GetCandidateOperations returns the operations for an instrument matching
// the filter, ordered by value date then ID.
func (r *OperationRepository) GetCandidateOperations(isin string, filter domain.OperationFilter) ([]domain.Operation, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, isin, value_date, operation_date, operation_type,
		       gross_amount, net_amount, quantity, price, currency
		FROM operations
		WHERE isin = ?
	`)
	args := []interface{}{isin}

	if !filter.From.IsZero() {
		query.WriteString(" AND value_date >= ?")
		args = append(args, domain.NormalizeDate(filter.From).Unix())
	}
	if !filter.To.IsZero() {
		query.WriteString(" AND value_date <= ?")
		args = append(args, domain.NormalizeDate(filter.To).Unix())
	}
	if len(filter.Types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Types)), ",")
		query.WriteString(" AND LOWER(operation_type) IN (" + placeholders + ")")
		for _, t := range filter.Types {
			args = append(args, strings.ToLower(t))
		}
	}
	query.WriteString(" ORDER BY value_date ASC, id ASC")

	rows, err := r.db.Query(query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []domain.Operation
	for rows.Next() {
		var op domain.Operation
		var valueUnix, opUnix int64
		var currency string
		err := rows.Scan(&op.ID, &op.ISIN, &valueUnix, &opUnix, &op.OperationType,
			&op.GrossAmount, &op.NetAmount, &op.Quantity, &op.Price, &currency)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		op.ValueDate = time.Unix(valueUnix, 0).UTC()
		op.OperationDate = time.Unix(opUnix, 0).UTC()
		op.Currency = domain.Currency(currency)
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}
	return ops, nil
}

// SaveMatch persists one reconciliation outcome. Re-reconciling the same
// scheduled payment replaces the prior record.
func (r *OperationRepository) SaveMatch(isin string, match domain.PaymentMatch) error {
	_, err := r.db.Exec(`
		INSERT INTO payment_matches
			(id, isin, scheduled_date, operation_id, score, date_score,
			 amount_score, type_score, trade_date_score, confidence,
			 confirmed, ambiguous, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(isin, scheduled_date) DO UPDATE SET
			id = excluded.id,
			operation_id = excluded.operation_id,
			score = excluded.score,
			date_score = excluded.date_score,
			amount_score = excluded.amount_score,
			type_score = excluded.type_score,
			trade_date_score = excluded.trade_date_score,
			confidence = excluded.confidence,
			confirmed = excluded.confirmed,
			ambiguous = excluded.ambiguous,
			created_at = excluded.created_at
	`, match.ID, isin, domain.NormalizeDate(match.ScheduledDate).Unix(),
		nullableID(match.OperationID), match.Score, match.DateScore,
		match.AmountScore, match.TypeScore, match.TradeDateScore,
		string(match.Confidence), match.Confirmed, match.Ambiguous,
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save match for %s: %w", isin, err)
	}
	return nil
}

// GetMatches returns the stored reconciliation outcomes for an instrument,
// ordered by scheduled date.
func (r *OperationRepository) GetMatches(isin string) ([]domain.PaymentMatch, error) {
	rows, err := r.db.Query(`
		SELECT id, scheduled_date, operation_id, score, date_score,
		       amount_score, type_score, trade_date_score, confidence,
		       confirmed, ambiguous
		FROM payment_matches
		WHERE isin = ?
		ORDER BY scheduled_date ASC
	`, isin)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.PaymentMatch
	for rows.Next() {
		var m domain.PaymentMatch
		var scheduledUnix int64
		var opID sql.NullInt64
		var confidence string
		err := rows.Scan(&m.ID, &scheduledUnix, &opID, &m.Score, &m.DateScore,
			&m.AmountScore, &m.TypeScore, &m.TradeDateScore, &confidence,
			&m.Confirmed, &m.Ambiguous)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.ScheduledDate = time.Unix(scheduledUnix, 0).UTC()
		if opID.Valid {
			m.OperationID = opID.Int64
		}
		m.Confidence = domain.ConfidenceLevel(confidence)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return matches, nil
}

func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
