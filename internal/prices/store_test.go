package prices

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/aristath/structura/internal/database"
	"github.com/aristath/structura/internal/domain"
	testingpkg "github.com/aristath/structura/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHistoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(database.HistorySchema)
	require.NoError(t, err)
	return db
}

func TestStore_SaveAndGetClose(t *testing.T) {
	store := NewStore(setupHistoryDB(t), zerolog.Nop())
	day := testingpkg.Day(2025, 4, 10)

	require.NoError(t, store.SaveDailyClose("ACME", day, 101.5))

	close, err := store.GetClosePrice("ACME", day)
	require.NoError(t, err)
	assert.Equal(t, 101.5, close)

	// Upsert replaces the close for the same day.
	require.NoError(t, store.SaveDailyClose("ACME", day, 102.0))
	close, err = store.GetClosePrice("ACME", day)
	require.NoError(t, err)
	assert.Equal(t, 102.0, close)
}

func TestStore_MissingCloseFailsFast(t *testing.T) {
	store := NewStore(setupHistoryDB(t), zerolog.Nop())

	_, err := store.GetClosePrice("ACME", testingpkg.Day(2025, 4, 10))
	assert.ErrorIs(t, err, domain.ErrMissingPriceData)
}

func TestStore_SeriesOrderedAscending(t *testing.T) {
	store := NewStore(setupHistoryDB(t), zerolog.Nop())
	require.NoError(t, store.SaveDailyCloses("ACME", []domain.ClosePrice{
		{Date: testingpkg.Day(2025, 4, 12), Close: 103},
		{Date: testingpkg.Day(2025, 4, 10), Close: 101},
		{Date: testingpkg.Day(2025, 4, 11), Close: 102},
	}))

	series, err := store.GetPriceSeries("ACME",
		testingpkg.Day(2025, 4, 10), testingpkg.Day(2025, 4, 12))
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, 101.0, series[0].Close)
	assert.Equal(t, 102.0, series[1].Close)
	assert.Equal(t, 103.0, series[2].Close)
	assert.Equal(t, testingpkg.Day(2025, 4, 10), series[0].Date)
}

func TestStore_EmptyRangeOfKnownTickerIsNotAnError(t *testing.T) {
	store := NewStore(setupHistoryDB(t), zerolog.Nop())
	require.NoError(t, store.SaveDailyClose("ACME", testingpkg.Day(2025, 4, 10), 101))

	series, err := store.GetPriceSeries("ACME",
		testingpkg.Day(2026, 1, 1), testingpkg.Day(2026, 1, 31))
	require.NoError(t, err)
	assert.Empty(t, series)

	_, err = store.GetPriceSeries("UNKNOWN",
		testingpkg.Day(2026, 1, 1), testingpkg.Day(2026, 1, 31))
	assert.ErrorIs(t, err, domain.ErrMissingPriceData)
}

func setupCacheDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(database.CacheSchema)
	require.NoError(t, err)
	return db
}

type countingSource struct {
	*testingpkg.MockPriceSource
	seriesCalls int
}

func (c *countingSource) GetPriceSeries(ticker string, from, to time.Time) ([]domain.ClosePrice, error) {
	c.seriesCalls++
	return c.MockPriceSource.GetPriceSeries(ticker, from, to)
}

func TestCachedSource_ReadThrough(t *testing.T) {
	source := &countingSource{MockPriceSource: testingpkg.NewMockPriceSource()}
	source.SetPrice("ACME", testingpkg.Day(2025, 4, 10), 101)
	source.SetPrice("ACME", testingpkg.Day(2025, 4, 11), 102)

	cached := NewCachedSource(source, setupCacheDB(t), 0)
	from, to := testingpkg.Day(2025, 4, 10), testingpkg.Day(2025, 4, 11)

	first, err := cached.GetPriceSeries("ACME", from, to)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, source.seriesCalls)

	second, err := cached.GetPriceSeries("ACME", from, to)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.seriesCalls, "second read served from cache")

	// A different window is a different entry.
	_, err = cached.GetPriceSeries("ACME", from, testingpkg.Day(2025, 4, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, source.seriesCalls)
}

func TestCachedSource_InvalidateDropsTickerEntries(t *testing.T) {
	source := &countingSource{MockPriceSource: testingpkg.NewMockPriceSource()}
	source.SetPrice("ACME", testingpkg.Day(2025, 4, 10), 101)

	cached := NewCachedSource(source, setupCacheDB(t), 0)
	from, to := testingpkg.Day(2025, 4, 10), testingpkg.Day(2025, 4, 10)

	_, err := cached.GetPriceSeries("ACME", from, to)
	require.NoError(t, err)
	require.NoError(t, cached.Invalidate("ACME"))

	_, err = cached.GetPriceSeries("ACME", from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, source.seriesCalls)
}

func TestCachedSource_SourceErrorsAreNotCached(t *testing.T) {
	source := &countingSource{MockPriceSource: testingpkg.NewMockPriceSource()}
	cached := NewCachedSource(source, setupCacheDB(t), 0)

	_, err := cached.GetPriceSeries("GHOST",
		testingpkg.Day(2025, 4, 10), testingpkg.Day(2025, 4, 11))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingPriceData))
}
