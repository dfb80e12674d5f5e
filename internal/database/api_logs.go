package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go-donate/internal/models"
)

// CreateAPILog appends one outbound gateway call to the audit trail
func (db *DB) CreateAPILog(ctx context.Context, entry *models.APILog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	reqHeaders, err := marshalNullable(entry.RequestHeaders)
	if err != nil {
		return err
	}
	respHeaders, err := marshalNullable(entry.ResponseHeaders)
	if err != nil {
		return err
	}
	var payload sql.NullString
	if len(entry.RequestPayload) > 0 {
		payload = sql.NullString{String: string(entry.RequestPayload), Valid: true}
	}
	var status sql.NullInt64
	if entry.ResponseStatus != nil {
		status = sql.NullInt64{Int64: int64(*entry.ResponseStatus), Valid: true}
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO api_logs (request_url, request_method, request_headers, request_payload, response_status, response_headers, response_body, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.RequestURL, entry.RequestMethod, reqHeaders, payload, status, respHeaders,
		nullString(entry.ResponseBody), nullString(entry.Error), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api log: %w", err)
	}
	id, _ := result.LastInsertId()
	entry.ID = id
	return nil
}

// RecordAPICall lets the database act as the gateway client's audit sink
func (db *DB) RecordAPICall(ctx context.Context, entry *models.APILog) error {
	return db.CreateAPILog(ctx, entry)
}

// GetAPILogs returns audit entries, newest first
func (db *DB) GetAPILogs(ctx context.Context, limit, offset int) ([]*models.APILog, int64, error) {
	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM api_logs").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, request_url, request_method, request_headers, request_payload, response_status, response_headers, response_body, error, created_at
		FROM api_logs ORDER BY id DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var logs []*models.APILog
	for rows.Next() {
		var l models.APILog
		var reqHeaders, payload, respHeaders, body, errText sql.NullString
		var status sql.NullInt64
		if err := rows.Scan(&l.ID, &l.RequestURL, &l.RequestMethod, &reqHeaders, &payload, &status, &respHeaders, &body, &errText, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		if reqHeaders.Valid {
			json.Unmarshal([]byte(reqHeaders.String), &l.RequestHeaders)
		}
		if respHeaders.Valid {
			json.Unmarshal([]byte(respHeaders.String), &l.ResponseHeaders)
		}
		if payload.Valid {
			l.RequestPayload = json.RawMessage(payload.String)
		}
		if status.Valid {
			code := int(status.Int64)
			l.ResponseStatus = &code
		}
		l.ResponseBody = body.String
		l.Error = errText.String
		logs = append(logs, &l)
	}
	return logs, total, rows.Err()
}

func marshalNullable(m map[string]string) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
