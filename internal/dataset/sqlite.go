package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// Store is a SQLite-backed ledger of transactions and balance snapshots.
// Amounts are kept as TEXT so no precision is lost to REAL columns.
type Store struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at dsn and ensures the
// tables exist. Pass ":memory:" for an in-memory database.
func OpenSQLite(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			ts DATETIME NOT NULL,
			amount TEXT NOT NULL,
			asset TEXT NOT NULL,
			counterparty TEXT NOT NULL,
			direction TEXT NOT NULL,
			account_type TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions(ts)`,

		`CREATE TABLE IF NOT EXISTS balances (
			asset TEXT NOT NULL,
			account_type TEXT NOT NULL,
			recorded TEXT NOT NULL,
			observed TEXT NOT NULL,
			as_of DATETIME,
			PRIMARY KEY (asset, account_type)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// InsertTransactions stores txns in one SQL transaction, ignoring IDs that
// already exist. It returns the number of rows inserted.
func (s *Store) InsertTransactions(ctx context.Context, txns []domain.Transaction) (int, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	stmt, err := sqlTx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO transactions
		(id, ts, amount, asset, counterparty, direction, account_type, category)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range txns {
		t := &txns[i]
		res, err := stmt.ExecContext(ctx,
			t.ID, t.Timestamp.UTC().Format(time.RFC3339Nano), t.Amount.String(),
			t.Asset, t.Counterparty, string(t.Direction), t.AccountType, t.Category)
		if err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}
	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Transactions returns every stored transaction ordered by timestamp then id.
func (s *Store) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, amount, asset, counterparty, direction, account_type, category
		FROM transactions ORDER BY ts, id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t      domain.Transaction
			ts     string
			amount string
			dir    string
		)
		if err := rows.Scan(&t.ID, &ts, &amount, &t.Asset, &t.Counterparty, &dir, &t.AccountType, &t.Category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("transaction %s timestamp: %w", t.ID, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", t.ID, err)
		}
		t.Direction = domain.Direction(dir)
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertBalances stores one snapshot per (asset, account_type), replacing
// any earlier snapshot of the same pair.
func (s *Store) UpsertBalances(ctx context.Context, pairs []domain.BalancePair) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	for i, p := range pairs {
		var asOf interface{}
		if !p.AsOf.IsZero() {
			asOf = p.AsOf.UTC().Format(time.RFC3339Nano)
		}
		if _, err := sqlTx.ExecContext(ctx,
			`INSERT OR REPLACE INTO balances (asset, account_type, recorded, observed, as_of)
			VALUES (?,?,?,?,?)`,
			p.Asset, p.AccountType, p.Recorded.String(), p.Observed.String(), asOf); err != nil {
			return fmt.Errorf("upsert balance %d: %w", i, err)
		}
	}
	return sqlTx.Commit()
}

// Balances returns every stored balance pair ordered by asset and account type.
func (s *Store) Balances(ctx context.Context) ([]domain.BalancePair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset, account_type, recorded, observed, as_of
		FROM balances ORDER BY asset, account_type`)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	var out []domain.BalancePair
	for rows.Next() {
		var (
			p                  domain.BalancePair
			recorded, observed string
			asOf               sql.NullString
		)
		if err := rows.Scan(&p.Asset, &p.AccountType, &recorded, &observed, &asOf); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		if p.Recorded, err = decimal.NewFromString(recorded); err != nil {
			return nil, fmt.Errorf("balance %s/%s recorded: %w", p.Asset, p.AccountType, err)
		}
		if p.Observed, err = decimal.NewFromString(observed); err != nil {
			return nil, fmt.Errorf("balance %s/%s observed: %w", p.Asset, p.AccountType, err)
		}
		if asOf.Valid && asOf.String != "" {
			if p.AsOf, err = time.Parse(time.RFC3339Nano, asOf.String); err != nil {
				return nil, fmt.Errorf("balance %s/%s as_of: %w", p.Asset, p.AccountType, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
