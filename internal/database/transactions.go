package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-donate/internal/models"
)

const transactionColumns = `id, donation_id, mpgs_order_id, session_id, success_indicator, amount_cents, currency, status, gateway_code, created_at, updated_at`

// InsertTransaction persists a new gateway session in status initiated
func (tx *Tx) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	if t.Status == "" {
		t.Status = models.TransactionInitiated
	}
	result, err := tx.tx.ExecContext(ctx, `
		INSERT INTO transactions (donation_id, mpgs_order_id, session_id, success_indicator, amount_cents, currency, status, gateway_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.DonationID, t.OrderID, t.SessionID, t.SuccessIndicator, toCents(t.Amount), t.Currency, t.Status, nullString(t.GatewayCode), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// GetTransactionBySuccessIndicator re-reads the transaction a callback refers
// to. The surrounding unit of work holds the database write lock
// (BEGIN IMMEDIATE), so the row cannot change until the unit of work ends.
func (tx *Tx) GetTransactionBySuccessIndicator(ctx context.Context, indicator string) (*models.Transaction, error) {
	row := tx.tx.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE success_indicator = ?`, indicator)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction with indicator %q: %w", indicator, ErrNotFound)
	}
	return t, err
}

// SettleTransaction moves an initiated transaction to its terminal status.
// A transaction that already left initiated is never rewritten.
func (tx *Tx) SettleTransaction(ctx context.Context, id int64, status models.TransactionStatus, gatewayCode string) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("settle transaction %d: %q is not a terminal status", id, status)
	}
	result, err := tx.tx.ExecContext(ctx, `
		UPDATE transactions SET status = ?, gateway_code = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, status, gatewayCode, time.Now().UTC(), id, models.TransactionInitiated)
	if err != nil {
		return false, fmt.Errorf("settle transaction %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LatestTransactionForDonation returns the most recently created transaction of a donation
func (db *DB) LatestTransactionForDonation(ctx context.Context, donationID int64) (*models.Transaction, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE donation_id = ? ORDER BY created_at DESC, id DESC LIMIT 1
	`, donationID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction for donation %d: %w", donationID, ErrNotFound)
	}
	return t, err
}

// GetTransactionBySuccessIndicator reads a transaction outside of any unit of work
func (db *DB) GetTransactionBySuccessIndicator(ctx context.Context, indicator string) (*models.Transaction, error) {
	row := db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE success_indicator = ?`, indicator)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction with indicator %q: %w", indicator, ErrNotFound)
	}
	return t, err
}

// GetTransactions retrieves transactions with optional status filtering
func (db *DB) GetTransactions(ctx context.Context, status string, limit, offset int) ([]*models.Transaction, int64, error) {
	var conditions []string
	var args []any

	if status != "" && status != "all" {
		conditions = append(conditions, "status = ?")
		args = append(args, status)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, transactionColumns, whereClause)
	args = append(args, limit, offset)
	transactions, err := db.queryTransactions(ctx, query, args...)
	return transactions, total, err
}

// GetStaleTransactions lists initiated transactions created inside [createdAfter, createdBefore), oldest first
func (db *DB) GetStaleTransactions(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]*models.Transaction, error) {
	return db.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE status = ? AND created_at >= ? AND created_at < ? ORDER BY created_at ASC LIMIT ?
	`, models.TransactionInitiated, createdAfter.UTC(), createdBefore.UTC(), limit)
}

func (db *DB) queryTransactions(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func scanTransaction(s scanner) (*models.Transaction, error) {
	var t models.Transaction
	var gatewayCode sql.NullString
	var cents int64
	err := s.Scan(&t.ID, &t.DonationID, &t.OrderID, &t.SessionID, &t.SuccessIndicator, &cents,
		&t.Currency, &t.Status, &gatewayCode, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Amount = fromCents(cents)
	t.GatewayCode = gatewayCode.String
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
