package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-donate/internal/models"

	"github.com/shopspring/decimal"
)

// ============== Reference Data ==============

// ListCurrencies returns every configured currency
func (db *DB) ListCurrencies(ctx context.Context) ([]*models.Currency, error) {
	rows, err := db.QueryContext(ctx, `SELECT currency_id, currency_name, currency_code FROM currencies ORDER BY currency_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var currencies []*models.Currency
	for rows.Next() {
		var c models.Currency
		if err := rows.Scan(&c.ID, &c.Name, &c.Code); err != nil {
			return nil, err
		}
		currencies = append(currencies, &c)
	}
	return currencies, rows.Err()
}

// GetCurrency retrieves a currency by id
func (db *DB) GetCurrency(ctx context.Context, id int64) (*models.Currency, error) {
	var c models.Currency
	err := db.QueryRowContext(ctx, `SELECT currency_id, currency_name, currency_code FROM currencies WHERE currency_id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("currency %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListDonationTypes returns every donation category
func (db *DB) ListDonationTypes(ctx context.Context) ([]*models.DonationType, error) {
	rows, err := db.QueryContext(ctx, `SELECT donation_id, donation_name, is_general_donation FROM donation_types ORDER BY donation_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*models.DonationType
	for rows.Next() {
		var t models.DonationType
		if err := rows.Scan(&t.ID, &t.Name, &t.IsGeneralDonation); err != nil {
			return nil, err
		}
		types = append(types, &t)
	}
	return types, rows.Err()
}

// GetDonationType retrieves a donation category by id
func (db *DB) GetDonationType(ctx context.Context, id int64) (*models.DonationType, error) {
	var t models.DonationType
	err := db.QueryRowContext(ctx, `SELECT donation_id, donation_name, is_general_donation FROM donation_types WHERE donation_id = ?`, id).
		Scan(&t.ID, &t.Name, &t.IsGeneralDonation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("donation type %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SumGeneralDonations totals every general-fund donation row
func (db *DB) SumGeneralDonations(ctx context.Context) (decimal.Decimal, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM donations WHERE donation_type_id = ?`, models.DonationTypeGeneral).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return fromCents(total), nil
}

// ============== Donation Operations ==============

// GetDonation retrieves a donation by id
func (db *DB) GetDonation(ctx context.Context, id int64) (*models.Donation, error) {
	return getDonation(ctx, db, id)
}

// CountDonations returns the number of donation rows
func (db *DB) CountDonations(ctx context.Context) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM donations`).Scan(&n)
	return n, err
}

// DeleteDonationCascade removes a donation together with its rider link and
// reverses the rider total it contributed. It reports whether a row existed.
func (db *DB) DeleteDonationCascade(ctx context.Context, id int64) (bool, error) {
	var existed bool
	err := db.WithTx(ctx, func(tx *Tx) error {
		d, err := getDonation(ctx, tx.tx, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true

		var riderID int64
		err = tx.tx.QueryRowContext(ctx, `SELECT rider_id FROM rider_donations WHERE donation_id = ?`, id).Scan(&riderID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			if _, err := tx.tx.ExecContext(ctx, `UPDATE riders SET rider_raise_cents = rider_raise_cents - ? WHERE rider_id = ?`, toCents(d.Amount), riderID); err != nil {
				return err
			}
			if _, err := tx.tx.ExecContext(ctx, `DELETE FROM rider_donations WHERE donation_id = ?`, id); err != nil {
				return err
			}
		}

		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM transactions WHERE donation_id = ?`, id); err != nil {
			return err
		}
		_, err = tx.tx.ExecContext(ctx, `DELETE FROM donations WHERE record_id = ?`, id)
		return err
	})
	return existed, err
}

// InsertDonation creates the donation row and fills in its id and creation time
func (tx *Tx) InsertDonation(ctx context.Context, d *models.Donation) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	result, err := tx.tx.ExecContext(ctx, `
		INSERT INTO donations (first_name, second_name, email, mobile_no, message, currency_id, amount_cents, donation_type_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.FirstName, d.SecondName, d.Email, d.MobileNo, d.Message, d.CurrencyID, toCents(d.Amount), d.DonationTypeID, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// InsertRiderDonation links a donation to a rider
func (tx *Tx) InsertRiderDonation(ctx context.Context, riderID, donationID int64) error {
	if _, err := tx.tx.ExecContext(ctx, `INSERT INTO rider_donations (rider_id, donation_id) VALUES (?, ?)`, riderID, donationID); err != nil {
		return fmt.Errorf("link donation %d to rider %d: %w", donationID, riderID, err)
	}
	return nil
}

// IncrementRiderRaise adds amount to the rider's running total with a single
// set-based update, so concurrent pledges never lose an increment.
func (tx *Tx) IncrementRiderRaise(ctx context.Context, riderID int64, amount decimal.Decimal) error {
	result, err := tx.tx.ExecContext(ctx, `UPDATE riders SET rider_raise_cents = rider_raise_cents + ? WHERE rider_id = ?`, toCents(amount), riderID)
	if err != nil {
		return fmt.Errorf("increment rider %d: %w", riderID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rider %d: %w", riderID, ErrNotFound)
	}
	return nil
}

// GetDonation reads a donation inside the unit of work
func (tx *Tx) GetDonation(ctx context.Context, id int64) (*models.Donation, error) {
	return getDonation(ctx, tx.tx, id)
}

// MarkDonationPaid sets payment_done_at unless it is already set.
// It reports whether the timestamp was written.
func (tx *Tx) MarkDonationPaid(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := tx.tx.ExecContext(ctx, `UPDATE donations SET payment_done_at = ? WHERE record_id = ? AND payment_done_at IS NULL`, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("mark donation %d paid: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func getDonation(ctx context.Context, q querier, id int64) (*models.Donation, error) {
	var d models.Donation
	var secondName, mobile, message sql.NullString
	var paidAt sql.NullTime
	var cents int64
	err := q.QueryRowContext(ctx, `
		SELECT record_id, first_name, second_name, email, mobile_no, message, currency_id, amount_cents, donation_type_id, created_at, payment_done_at
		FROM donations WHERE record_id = ?
	`, id).Scan(&d.ID, &d.FirstName, &secondName, &d.Email, &mobile, &message, &d.CurrencyID, &cents, &d.DonationTypeID, &d.CreatedAt, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("donation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	d.Amount = fromCents(cents)
	d.SecondName = secondName.String
	d.MobileNo = mobile.String
	d.Message = message.String
	if paidAt.Valid {
		d.PaymentDoneAt = &paidAt.Time
	}
	return &d, nil
}
