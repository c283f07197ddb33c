package ledger

// Amounts are stored as decimal TEXT so no float rounding happens on disk.
const Schema = `
CREATE TABLE IF NOT EXISTS holdings (
	symbol TEXT PRIMARY KEY,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	avg_price TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	order_type TEXT NOT NULL CHECK (order_type IN ('BUY', 'SELL')),
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	price TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	status TEXT NOT NULL,
	strategy TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_orders_timestamp ON orders(timestamp);

CREATE TABLE IF NOT EXISTS cash_balance (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	balance TEXT NOT NULL
);
`

// timestampLayout is fixed width so that lexical order equals time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
