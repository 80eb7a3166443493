// Package prices provides the historical close price store backing
// evaluation, with an optional encoded series cache in front of it.
package prices

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/structura/internal/domain"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// Store reads and writes daily closes in history.db. It implements
// domain.PriceSource; lookups for absent data fail with
// domain.ErrMissingPriceData rather than guessing a nearby close.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a price store over the history database.
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("component", "price_store").Logger(),
	}
}

// SaveDailyClose upserts one close for a ticker and calendar day.
func (s *Store) SaveDailyClose(ticker string, date time.Time, close float64) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_closes (ticker, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close
	`, ticker, domain.NormalizeDate(date).Unix(), close)
	if err != nil {
		return fmt.Errorf("failed to save close for %s: %w", ticker, err)
	}
	return nil
}

// SaveDailyCloses upserts a batch of closes for one ticker.
func (s *Store) SaveDailyCloses(ticker string, closes []domain.ClosePrice) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin close batch for %s: %w", ticker, err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO daily_closes (ticker, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare close batch for %s: %w", ticker, err)
	}
	defer stmt.Close()

	for _, c := range closes {
		if _, err := stmt.Exec(ticker, domain.NormalizeDate(c.Date).Unix(), c.Close); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save close for %s on %s: %w",
				ticker, c.Date.Format("2006-01-02"), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit close batch for %s: %w", ticker, err)
	}
	return nil
}

// GetClosePrice returns the close of ticker on the given calendar day.
func (s *Store) GetClosePrice(ticker string, date time.Time) (float64, error) {
	var close float64
	err := s.db.QueryRow(`
		SELECT close FROM daily_closes WHERE ticker = ? AND date = ?
	`, ticker, domain.NormalizeDate(date).Unix()).Scan(&close)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s on %s", domain.ErrMissingPriceData,
			ticker, date.Format("2006-01-02"))
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query close for %s: %w", ticker, err)
	}
	return close, nil
}

// GetPriceSeries returns the closes of ticker in [from, to], date ascending.
// A ticker with no data at all is a data error; an empty sub-range of a
// known ticker is not.
func (s *Store) GetPriceSeries(ticker string, from, to time.Time) ([]domain.ClosePrice, error) {
	rows, err := s.db.Query(`
		SELECT date, close FROM daily_closes
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, ticker, domain.NormalizeDate(from).Unix(), domain.NormalizeDate(to).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query series for %s: %w", ticker, err)
	}
	defer rows.Close()

	var series []domain.ClosePrice
	for rows.Next() {
		var dateUnix int64
		var c domain.ClosePrice
		if err := rows.Scan(&dateUnix, &c.Close); err != nil {
			return nil, fmt.Errorf("failed to scan close for %s: %w", ticker, err)
		}
		c.Date = time.Unix(dateUnix, 0).UTC()
		series = append(series, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series for %s: %w", ticker, err)
	}

	if len(series) == 0 {
		known, err := s.hasTicker(ticker)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("%w: no history for %s", domain.ErrMissingPriceData, ticker)
		}
	}
	return series, nil
}

func (s *Store) hasTicker(ticker string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM daily_closes WHERE ticker = ? LIMIT 1`, ticker).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe ticker %s: %w", ticker, err)
	}
	return true, nil
}
