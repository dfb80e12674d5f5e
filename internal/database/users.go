package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-donate/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, password, email, role, last_login, created_at, updated_at FROM users WHERE username = ?`
	var user models.User
	var lastLogin sql.NullTime
	var email sql.NullString

	err := db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Password, &email, &user.Role, &lastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return nil, err
	}

	user.Email = email.String
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return &user, nil
}

// TouchLastLogin records a successful login
func (db *DB) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET last_login = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, at.UTC(), userID)
	return err
}

// CreateUser hashes the password and stores a new user
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	hashed, err := HashPassword(user.Password)
	if err != nil {
		return err
	}
	if user.Role == "" {
		user.Role = models.RoleAdmin
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO users (username, password, email, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		user.Username, hashed, user.Email, user.Role,
	)
	if err != nil {
		return err
	}
	user.ID, _ = result.LastInsertId()
	user.Password = hashed
	return nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// EnsureDefaultAdmin creates the admin account on first start
func (db *DB) EnsureDefaultAdmin(ctx context.Context, username, password string) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check for existing admin: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	user := &models.User{Username: username, Password: password, Role: models.RoleAdmin}
	if err := db.CreateUser(ctx, user); err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}
	return true, nil
}
