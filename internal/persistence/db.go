// Package persistence provides the SQLite-backed journal: settled
// transactions and market state checkpoints survive process restarts.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/electro-bazaar/internal/catalog"
	"github.com/talgya/electro-bazaar/internal/shop"
	"github.com/talgya/electro-bazaar/internal/trade"
)

// DB wraps a SQLite connection for marketplace storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		shop_id INTEGER NOT NULL,
		shop_name TEXT NOT NULL,
		kind TEXT NOT NULL,
		item TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price INTEGER NOT NULL,
		total INTEGER NOT NULL,
		profit REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS market_state (
		item INTEGER PRIMARY KEY,
		price INTEGER NOT NULL,
		demand REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS market_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_session ON transactions(session_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveTransaction appends one settled trade to the journal.
func (db *DB) SaveTransaction(sessionID string, txn trade.Transaction) error {
	_, err := db.conn.Exec(`INSERT INTO transactions
		(session_id, shop_id, shop_name, kind, item, quantity, unit_price, total, profit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, txn.Shop, txn.ShopName, txn.Kind.String(), txn.ItemName,
		txn.Quantity, txn.UnitPrice, txn.Total, txn.Profit, txn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// TransactionRow is one journal row as served by the API.
type TransactionRow struct {
	ID        int64     `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	ShopID    shop.ID   `db:"shop_id" json:"shop_id"`
	ShopName  string    `db:"shop_name" json:"shop_name"`
	Kind      string    `db:"kind" json:"kind"`
	Item      string    `db:"item" json:"item"`
	Quantity  int       `db:"quantity" json:"quantity"`
	UnitPrice int       `db:"unit_price" json:"unit_price"`
	Total     int       `db:"total" json:"total"`
	Profit    float64   `db:"profit" json:"profit"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RecentTransactions returns the most recent N journal rows, newest first.
func (db *DB) RecentTransactions(limit int) ([]TransactionRow, error) {
	var rows []TransactionRow
	err := db.conn.Select(&rows,
		`SELECT id, session_id, shop_id, shop_name, kind, item, quantity, unit_price, total, profit, created_at
		 FROM transactions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return rows, nil
}

// SaveMarketState checkpoints prices, demand, and the last update time.
func (db *DB) SaveMarketState(prices map[catalog.ItemType]int, demand map[catalog.ItemType]float64, lastUpdate time.Time) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for item, price := range prices {
		_, err := tx.Exec(
			"INSERT OR REPLACE INTO market_state (item, price, demand) VALUES (?, ?, ?)",
			item, price, demand[item],
		)
		if err != nil {
			return fmt.Errorf("upsert market state for item %d: %w", item, err)
		}
	}

	_, err = tx.Exec(
		"INSERT OR REPLACE INTO market_meta (key, value) VALUES ('last_update', ?)",
		strconv.FormatInt(lastUpdate.Unix(), 10),
	)
	if err != nil {
		return fmt.Errorf("upsert market meta: %w", err)
	}

	return tx.Commit()
}

// LoadMarketState restores a checkpoint. found is false on a fresh database.
func (db *DB) LoadMarketState() (prices map[catalog.ItemType]int, demand map[catalog.ItemType]float64, lastUpdate time.Time, found bool, err error) {
	type row struct {
		Item   catalog.ItemType `db:"item"`
		Price  int              `db:"price"`
		Demand float64          `db:"demand"`
	}
	var rows []row
	if err := db.conn.Select(&rows, "SELECT item, price, demand FROM market_state"); err != nil {
		return nil, nil, time.Time{}, false, fmt.Errorf("select market state: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, time.Time{}, false, nil
	}

	prices = make(map[catalog.ItemType]int, len(rows))
	demand = make(map[catalog.ItemType]float64, len(rows))
	for _, r := range rows {
		prices[r.Item] = r.Price
		demand[r.Item] = r.Demand
	}

	var raw string
	err = db.conn.Get(&raw, "SELECT value FROM market_meta WHERE key = 'last_update'")
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Prices without a timestamp: usable, the gate just opens immediately.
	case err != nil:
		return nil, nil, time.Time{}, false, fmt.Errorf("select market meta: %w", err)
	default:
		if unix, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			lastUpdate = time.Unix(unix, 0)
		}
	}

	slog.Info("market state restored", "items", len(prices), "last_update", lastUpdate)
	return prices, demand, lastUpdate, true, nil
}
