package database

// HistorySchema backs history.db: daily closes per underlying ticker.
// Dates are stored as Unix timestamps at UTC midnight.
const HistorySchema = `
CREATE TABLE IF NOT EXISTS daily_closes (
    ticker TEXT NOT NULL,
    date INTEGER NOT NULL,
    close REAL NOT NULL,
    PRIMARY KEY (ticker, date)
);

CREATE INDEX IF NOT EXISTS idx_daily_closes_date ON daily_closes(date);
`

// LedgerSchema backs ledger.db: custodian operations and the reconciliation
// matches scored against them.
const LedgerSchema = `
CREATE TABLE IF NOT EXISTS operations (
    id INTEGER PRIMARY KEY,
    isin TEXT NOT NULL,
    value_date INTEGER NOT NULL,
    operation_date INTEGER NOT NULL,
    operation_type TEXT,
    gross_amount REAL NOT NULL DEFAULT 0,
    net_amount REAL NOT NULL DEFAULT 0,
    quantity REAL NOT NULL DEFAULT 0,
    price REAL NOT NULL DEFAULT 0,
    currency TEXT
);

CREATE INDEX IF NOT EXISTS idx_operations_isin_value_date ON operations(isin, value_date);

CREATE TABLE IF NOT EXISTS payment_matches (
    id TEXT NOT NULL,
    isin TEXT NOT NULL,
    scheduled_date INTEGER NOT NULL,
    operation_id INTEGER,
    score INTEGER NOT NULL,
    date_score INTEGER NOT NULL,
    amount_score INTEGER NOT NULL,
    type_score INTEGER NOT NULL,
    trade_date_score INTEGER NOT NULL,
    confidence TEXT NOT NULL,
    confirmed INTEGER NOT NULL DEFAULT 0,
    ambiguous INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (isin, scheduled_date)
);
`

// CacheSchema backs cache.db: encoded price series blobs keyed by ticker
// and date range. Ephemeral, rebuilt from history.db on miss.
const CacheSchema = `
CREATE TABLE IF NOT EXISTS series_cache (
    cache_key TEXT PRIMARY KEY,
    payload BLOB NOT NULL,
    created_at INTEGER NOT NULL
);
`

// schemas maps database names to the DDL Migrate applies for them.
var schemas = map[string]string{
	"history": HistorySchema,
	"ledger":  LedgerSchema,
	"cache":   CacheSchema,
}
