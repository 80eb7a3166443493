package prices

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/structura/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// cachedSeries is the encoded payload stored per cache entry.
type cachedSeries struct {
	Ticker string              `msgpack:"ticker"`
	Closes []domain.ClosePrice `msgpack:"closes"`
}

// CachedSource wraps a PriceSource with an encoded series cache in cache.db.
// Barrier scans re-read the same multi-month windows on every evaluation
// run; caching the encoded series avoids re-materializing them row by row.
// Single-day lookups pass straight through.
type CachedSource struct {
	source domain.PriceSource
	db     *sql.DB
	maxAge time.Duration
}

// NewCachedSource creates a caching wrapper. Entries older than maxAge are
// treated as misses; a zero maxAge disables expiry.
func NewCachedSource(source domain.PriceSource, db *sql.DB, maxAge time.Duration) *CachedSource {
	return &CachedSource{source: source, db: db, maxAge: maxAge}
}

// GetClosePrice delegates to the underlying source.
func (c *CachedSource) GetClosePrice(ticker string, date time.Time) (float64, error) {
	return c.source.GetClosePrice(ticker, date)
}

// GetPriceSeries returns the cached series when present, otherwise reads
// through and stores the encoded result. Cache failures degrade to the
// underlying source; they never fail the lookup.
func (c *CachedSource) GetPriceSeries(ticker string, from, to time.Time) ([]domain.ClosePrice, error) {
	key := seriesKey(ticker, from, to)
	if series, ok := c.lookup(key); ok {
		return series, nil
	}

	series, err := c.source.GetPriceSeries(ticker, from, to)
	if err != nil {
		return nil, err
	}
	c.store(key, ticker, series)
	return series, nil
}

// Invalidate drops every cache entry for a ticker, for use after new closes
// are ingested.
func (c *CachedSource) Invalidate(ticker string) error {
	_, err := c.db.Exec(`DELETE FROM series_cache WHERE cache_key LIKE ?`, ticker+":%")
	if err != nil {
		return fmt.Errorf("failed to invalidate series cache for %s: %w", ticker, err)
	}
	return nil
}

func (c *CachedSource) lookup(key string) ([]domain.ClosePrice, bool) {
	var payload []byte
	var createdAt int64
	err := c.db.QueryRow(`
		SELECT payload, created_at FROM series_cache WHERE cache_key = ?
	`, key).Scan(&payload, &createdAt)
	if err != nil {
		return nil, false
	}
	if c.maxAge > 0 && time.Since(time.Unix(createdAt, 0)) > c.maxAge {
		return nil, false
	}

	var entry cachedSeries
	if err := msgpack.Unmarshal(payload, &entry); err != nil {
		// Corrupt entry: drop it and fall through to the source.
		_, _ = c.db.Exec(`DELETE FROM series_cache WHERE cache_key = ?`, key)
		return nil, false
	}
	return entry.Closes, true
}

func (c *CachedSource) store(key, ticker string, series []domain.ClosePrice) {
	payload, err := msgpack.Marshal(cachedSeries{Ticker: ticker, Closes: series})
	if err != nil {
		return
	}
	_, _ = c.db.Exec(`
		INSERT INTO series_cache (cache_key, payload, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at
	`, key, payload, time.Now().Unix())
}

func seriesKey(ticker string, from, to time.Time) string {
	return fmt.Sprintf("%s:%d:%d", ticker,
		domain.NormalizeDate(from).Unix(), domain.NormalizeDate(to).Unix())
}
