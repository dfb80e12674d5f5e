package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go-donate/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a unit of work opened by WithTx. It is only valid inside the callback.
type Tx struct {
	tx *sql.Tx
}

// InitDB initializes the database connection and creates tables.
//
// Every transaction is opened with BEGIN IMMEDIATE (_txlock=immediate), so a
// unit of work holds the write lock from its first statement until commit or
// rollback. Competing units of work wait up to the busy timeout instead of
// failing. Callers keep units of work short and never call out to the
// network inside one.
func InitDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=30000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	wrapper := &DB{db}

	if err := wrapper.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := wrapper.seedReferenceData(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed reference data: %w", err)
	}

	return wrapper, nil
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back on error, panic or context cancellation.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS currencies (
			currency_id INTEGER PRIMARY KEY AUTOINCREMENT,
			currency_name TEXT NOT NULL,
			currency_code TEXT UNIQUE NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS donation_types (
			donation_id INTEGER PRIMARY KEY AUTOINCREMENT,
			donation_name TEXT NOT NULL,
			is_general_donation BOOLEAN DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS riders (
			rider_id INTEGER PRIMARY KEY AUTOINCREMENT,
			rider_name TEXT NOT NULL,
			rider_email TEXT,
			mobile_no TEXT,
			rider_goal_cents INTEGER NOT NULL DEFAULT 0,
			rider_raise_cents INTEGER NOT NULL DEFAULT 0,
			rider_img TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS donations (
			record_id INTEGER PRIMARY KEY AUTOINCREMENT,
			first_name TEXT NOT NULL,
			second_name TEXT,
			email TEXT NOT NULL,
			mobile_no TEXT,
			message TEXT,
			currency_id INTEGER NOT NULL,
			amount_cents INTEGER NOT NULL,
			donation_type_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			payment_done_at DATETIME,
			FOREIGN KEY (currency_id) REFERENCES currencies(currency_id),
			FOREIGN KEY (donation_type_id) REFERENCES donation_types(donation_id)
		)`,

		`CREATE TABLE IF NOT EXISTS rider_donations (
			rider_id INTEGER NOT NULL,
			donation_id INTEGER NOT NULL,
			PRIMARY KEY (rider_id, donation_id),
			FOREIGN KEY (rider_id) REFERENCES riders(rider_id),
			FOREIGN KEY (donation_id) REFERENCES donations(record_id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			donation_id INTEGER NOT NULL,
			mpgs_order_id TEXT UNIQUE NOT NULL,
			session_id TEXT NOT NULL,
			success_indicator TEXT UNIQUE NOT NULL,
			amount_cents INTEGER NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'initiated',
			gateway_code TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (donation_id) REFERENCES donations(record_id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS api_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_url TEXT NOT NULL,
			request_method TEXT NOT NULL,
			request_headers TEXT,
			request_payload TEXT,
			response_status INTEGER,
			response_headers TEXT,
			response_body TEXT,
			error TEXT,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			email TEXT,
			role TEXT DEFAULT 'admin',
			last_login DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_donations_type ON donations(donation_type_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_donation ON transactions(donation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_api_logs_created ON api_logs(created_at)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) seedReferenceData() error {
	currencies := []struct{ name, code string }{
		{"Sri Lankan Rupee", "LKR"},
		{"British Pound", "GBP"},
		{"US Dollar", "USD"},
		{"Euro", "EUR"},
	}
	for _, c := range currencies {
		if _, err := db.Exec(`INSERT OR IGNORE INTO currencies (currency_name, currency_code) VALUES (?, ?)`, c.name, c.code); err != nil {
			return err
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM donation_types").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := db.Exec(`INSERT INTO donation_types (donation_id, donation_name, is_general_donation) VALUES (?, ?, 1), (?, ?, 0)`,
			models.DonationTypeGeneral, "General Donation", models.DonationTypeRiderPledge, "Rider Pledge"); err != nil {
			return err
		}
	}
	return nil
}
