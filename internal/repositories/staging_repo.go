package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ledgerdesk/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StagingRepository persists batches and candidates so the pipeline can
// suspend at FieldsPending/Summarized and resume deterministically.
type StagingRepository interface {
	CreateBatch(ctx context.Context, batch *models.StagedBatch) error
	GetBatch(ctx context.Context, id uuid.UUID) (*models.StagedBatch, error)
	ListOpenBatches(ctx context.Context) ([]*models.StagedBatch, error)
	SaveCandidate(ctx context.Context, candidate *models.Candidate) error
	GetCandidate(ctx context.Context, id uuid.UUID) (*models.Candidate, error)
	CloseBatch(ctx context.Context, id uuid.UUID) error
	IsIngested(ctx context.Context, objectKey string) (bool, error)
}

type stagingRepo struct {
	db Database
}

func NewStagingRepo(db Database) StagingRepository {
	return &stagingRepo{db: db}
}

func (r *stagingRepo) CreateBatch(ctx context.Context, batch *models.StagedBatch) error {
	docs, err := json.Marshal(batch.Documents)
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}

	query := `
		INSERT INTO staged_batches (id, documents, created_at)
		VALUES ($1, $2, NOW())
	`
	if _, err := r.db.Exec(ctx, query, batch.ID, docs); err != nil {
		return err
	}

	for _, c := range batch.Candidates {
		if err := r.SaveCandidate(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// candidatePayload is the jsonb shape of a candidate row. The state and
// fingerprint are kept in their own columns so they can be queried.
type candidatePayload struct {
	Kind       string                    `json:"kind"`
	InvoiceDoc *models.ExtractedDocument `json:"invoice_doc,omitempty"`
	PaymentDoc *models.ExtractedDocument `json:"payment_doc,omitempty"`
	Txn        models.Transaction        `json:"transaction"`
	Fields     models.RequiredFields     `json:"fields"`
	DupMatches []string                  `json:"duplicate_matches,omitempty"`
	Overridden bool                      `json:"override,omitempty"`
	LastError  string                    `json:"last_error,omitempty"`
}

func (r *stagingRepo) SaveCandidate(ctx context.Context, c *models.Candidate) error {
	payload, err := json.Marshal(candidatePayload{
		Kind:       c.Kind,
		InvoiceDoc: c.InvoiceDoc,
		PaymentDoc: c.PaymentDoc,
		Txn:        c.Txn,
		Fields:     c.Fields,
		DupMatches: c.DupMatches,
		Overridden: c.Overridden,
		LastError:  c.LastError,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal candidate: %w", err)
	}

	query := `
		INSERT INTO staged_candidates (id, batch_id, state, fingerprint, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id)
		DO UPDATE SET state = $3, fingerprint = $4, payload = $5, updated_at = NOW()
	`
	_, err = r.db.Exec(ctx, query, c.ID, c.BatchID, string(c.State), c.Fingerprint, payload)
	return err
}

func (r *stagingRepo) GetCandidate(ctx context.Context, id uuid.UUID) (*models.Candidate, error) {
	query := `
		SELECT id, batch_id, state, fingerprint, payload, updated_at
		FROM staged_candidates
		WHERE id = $1
	`
	return scanCandidate(r.db.QueryRow(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	c := &models.Candidate{}
	var state string
	var payload []byte
	err := row.Scan(&c.ID, &c.BatchID, &state, &c.Fingerprint, &payload, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p candidatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal candidate payload: %w", err)
	}
	c.State = models.CandidateState(state)
	c.Kind = p.Kind
	c.InvoiceDoc = p.InvoiceDoc
	c.PaymentDoc = p.PaymentDoc
	c.Txn = p.Txn
	c.Fields = p.Fields
	c.DupMatches = p.DupMatches
	c.Overridden = p.Overridden
	c.LastError = p.LastError
	return c, nil
}

func (r *stagingRepo) GetBatch(ctx context.Context, id uuid.UUID) (*models.StagedBatch, error) {
	query := `SELECT id, documents, created_at, closed_at FROM staged_batches WHERE id = $1`
	batch := &models.StagedBatch{}
	var docs []byte
	err := r.db.QueryRow(ctx, query, id).Scan(&batch.ID, &docs, &batch.CreatedAt, &batch.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(docs, &batch.Documents); err != nil {
		return nil, fmt.Errorf("failed to unmarshal documents: %w", err)
	}

	candQuery := `
		SELECT id, batch_id, state, fingerprint, payload, updated_at
		FROM staged_candidates
		WHERE batch_id = $1
		ORDER BY updated_at
	`
	rows, err := r.db.Query(ctx, candQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		batch.Candidates = append(batch.Candidates, c)
	}
	return batch, rows.Err()
}

func (r *stagingRepo) ListOpenBatches(ctx context.Context) ([]*models.StagedBatch, error) {
	query := `SELECT id FROM staged_batches WHERE closed_at IS NULL ORDER BY created_at`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	batches := make([]*models.StagedBatch, 0, len(ids))
	for _, id := range ids {
		batch, err := r.GetBatch(ctx, id)
		if err != nil {
			return nil, err
		}
		if batch != nil {
			batches = append(batches, batch)
		}
	}
	return batches, nil
}

func (r *stagingRepo) CloseBatch(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE staged_batches SET closed_at = NOW() WHERE id = $1 AND closed_at IS NULL`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// IsIngested reports whether a document object key already belongs to a
// batch, so the inbox scan does not start a second ingestion for it.
func (r *stagingRepo) IsIngested(ctx context.Context, objectKey string) (bool, error) {
	query := `SELECT COUNT(*) FROM staged_batches WHERE documents @> $1`
	keyDoc, err := json.Marshal([]map[string]string{{"object_key": objectKey}})
	if err != nil {
		return false, err
	}
	var count int
	if err := r.db.QueryRow(ctx, query, keyDoc).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
