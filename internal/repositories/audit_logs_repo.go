package repositories

import (
	"context"
	"time"

	"ledgerdesk/internal/models"

	"github.com/google/uuid"
)

// AuditLogsRepository is the append-only record of executed commands and
// explicit operator decisions (approvals, duplicate overrides).
type AuditLogsRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	List(ctx context.Context, action string, limit, offset int) ([]*models.AuditEntry, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]*models.AuditEntry, error)
}

type auditLogsRepo struct {
	db Database
}

func NewAuditLogsRepo(db Database) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

func (r *auditLogsRepo) Create(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now()

	query := `
		INSERT INTO audit_logs (id, action, actor, detail, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, entry.ID, entry.Action, entry.Actor, entry.Detail, entry.Outcome, entry.CreatedAt)
	return err
}

func (r *auditLogsRepo) List(ctx context.Context, action string, limit, offset int) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, action, actor, detail, outcome, created_at
		FROM audit_logs
		WHERE ($1 = '' OR action = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, action, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

func (r *auditLogsRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, action, actor, detail, outcome, created_at
		FROM audit_logs
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

type auditRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAuditRows(rows auditRows) ([]*models.AuditEntry, error) {
	var entries []*models.AuditEntry
	for rows.Next() {
		entry := &models.AuditEntry{}
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Actor, &entry.Detail, &entry.Outcome, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
