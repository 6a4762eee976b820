package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepository persists audit events to the audit_logs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a repository over db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts one audit event row.
func (r *PostgresRepository) Create(ctx context.Context, e *Event) error {
	const q = `
		INSERT INTO audit_logs (id, user_id, action, client_key, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, q, e.ID, e.UserID, e.Action, e.ClientKey, e.Metadata, e.CreatedAt); err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}
