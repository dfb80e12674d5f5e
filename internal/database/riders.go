package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-donate/internal/models"
)

// ListRiders returns every rider with the current pledge totals
func (db *DB) ListRiders(ctx context.Context) ([]*models.Rider, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT rider_id, rider_name, rider_email, mobile_no, rider_goal_cents, rider_raise_cents, rider_img
		FROM riders ORDER BY rider_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var riders []*models.Rider
	for rows.Next() {
		r, err := scanRider(rows)
		if err != nil {
			return nil, err
		}
		riders = append(riders, r)
	}
	return riders, rows.Err()
}

// GetRider retrieves a rider by id
func (db *DB) GetRider(ctx context.Context, id int64) (*models.Rider, error) {
	return getRider(ctx, db, id)
}

// CreateRider creates a new rider
func (db *DB) CreateRider(ctx context.Context, r *models.Rider) (*models.Rider, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO riders (rider_name, rider_email, mobile_no, rider_goal_cents, rider_raise_cents, rider_img)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.Name, r.Email, r.MobileNo, toCents(r.Goal), toCents(r.Raise), r.Image)
	if err != nil {
		return nil, err
	}
	id, _ := result.LastInsertId()
	r.ID = id
	return r, nil
}

// CountRiderDonations returns how many donations are linked to the rider
func (db *DB) CountRiderDonations(ctx context.Context, riderID int64) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rider_donations WHERE rider_id = ?`, riderID).Scan(&n)
	return n, err
}

// GetDonationRider returns the rider a pledge-type donation is linked to,
// or nil when the donation has no rider link.
func (tx *Tx) GetDonationRider(ctx context.Context, donationID int64) (*models.Rider, error) {
	var riderID int64
	err := tx.tx.QueryRowContext(ctx, `SELECT rider_id FROM rider_donations WHERE donation_id = ?`, donationID).Scan(&riderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return getRider(ctx, tx.tx, riderID)
}

func getRider(ctx context.Context, q querier, id int64) (*models.Rider, error) {
	row := q.QueryRowContext(ctx, `
		SELECT rider_id, rider_name, rider_email, mobile_no, rider_goal_cents, rider_raise_cents, rider_img
		FROM riders WHERE rider_id = ?
	`, id)
	r, err := scanRider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rider %d: %w", id, ErrNotFound)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRider(s scanner) (*models.Rider, error) {
	var r models.Rider
	var email, mobile, img sql.NullString
	var goal, raise int64
	if err := s.Scan(&r.ID, &r.Name, &email, &mobile, &goal, &raise, &img); err != nil {
		return nil, err
	}
	r.Goal = fromCents(goal)
	r.Raise = fromCents(raise)
	r.Email = email.String
	r.MobileNo = mobile.String
	r.Image = img.String
	return &r, nil
}
