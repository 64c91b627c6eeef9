package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresRequestLog persists the request log in PostgreSQL (users, companies, requests).
type PostgresRequestLog struct {
	db *sql.DB
}

// NewPostgresRequestLog constructs a PostgreSQL-backed request log.
func NewPostgresRequestLog(db *sql.DB) *PostgresRequestLog {
	return &PostgresRequestLog{db: db}
}

// Save upserts the user and company and inserts the request row in one transaction.
func (l *PostgresRequestLog) Save(ctx context.Context, entry *RequestEntry) error {
	if entry == nil {
		return fmt.Errorf("request entry is required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin request log tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, external_id)
		VALUES ($1, $2)
		ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		RETURNING id
	`, uuid.New(), entry.UserID).Scan(&userID)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	var companyID uuid.NullUUID
	if entry.Company != nil {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO companies (id, inn, ogrn, is_sole_proprietor)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (inn, ogrn) DO UPDATE SET is_sole_proprietor = EXCLUDED.is_sole_proprietor
			RETURNING id
		`, uuid.New(), entry.Company.INN, entry.Company.OGRN, entry.Company.SoleProprietor).Scan(&companyID)
		if err != nil {
			return fmt.Errorf("upsert company: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO requests (id, user_id, company_id, operation, query, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, userID, companyID, entry.Operation, entry.Query, entry.RequestedAt)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit request log tx: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent entries, newest first.
// A limit of zero or less returns every entry.
func (l *PostgresRequestLog) ListByUser(ctx context.Context, userID string, limit int) ([]RequestEntry, error) {
	query := `
		SELECT r.id, u.external_id, r.operation, r.query, r.requested_at,
			c.inn, c.ogrn, c.is_sole_proprietor
		FROM requests r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN companies c ON c.id = r.company_id
		WHERE u.external_id = $1
		ORDER BY r.requested_at DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []RequestEntry
	for rows.Next() {
		var (
			entry RequestEntry
			inn   sql.NullString
			ogrn  sql.NullString
			sole  sql.NullBool
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Operation, &entry.Query, &entry.RequestedAt, &inn, &ogrn, &sole); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		if inn.Valid {
			entry.Company = &Company{INN: inn.String, OGRN: ogrn.String, SoleProprietor: sole.Bool}
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}
