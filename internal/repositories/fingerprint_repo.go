package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ProcessedTxn is one row of the append-only processed-transaction index.
// Rows are never deleted; a failed post flips the row to "failed" so the
// fingerprint can be claimed again, and the row itself stays as audit
// trail.
type ProcessedTxn struct {
	Fingerprint string
	Kind        string
	LedgerID    string
	AmountCents int64
	Payee       string
	TxnDate     time.Time
	Status      string
	CreatedAt   time.Time
}

const (
	TxnStatusPending   = "pending"
	TxnStatusPosted    = "posted"
	TxnStatusUncertain = "uncertain"
	TxnStatusFailed    = "failed"
)

type FingerprintRepository interface {
	// Reserve claims a fingerprint ahead of a post. It wins when no row
	// exists or the only prior attempt failed outright; a pending, posted
	// or uncertain row loses the claim. The UNIQUE constraint on
	// fingerprint makes this race-safe across processes.
	Reserve(ctx context.Context, txn *ProcessedTxn) (bool, error)
	// Confirm records the assigned ledger id after a successful post.
	Confirm(ctx context.Context, fingerprint, ledgerID string) error
	// Fail marks a reservation whose post failed cleanly, keeping the
	// candidate re-postable.
	Fail(ctx context.Context, fingerprint string) error
	// MarkUncertain records a write whose outcome is unknown. Uncertain
	// rows block future claims until resolved by an operator.
	MarkUncertain(ctx context.Context, fingerprint string) error
	// Lookup returns the row for a fingerprint, or nil when none exists.
	Lookup(ctx context.Context, fingerprint string) (*ProcessedTxn, error)
}

type fingerprintRepo struct {
	db Database
}

func NewFingerprintRepo(db Database) FingerprintRepository {
	return &fingerprintRepo{db: db}
}

func (r *fingerprintRepo) Reserve(ctx context.Context, txn *ProcessedTxn) (bool, error) {
	query := `
		INSERT INTO processed_transactions (fingerprint, kind, ledger_id, amount_cents, payee, txn_date, status, created_at)
		VALUES ($1, $2, '', $3, $4, $5, $6, NOW())
		ON CONFLICT (fingerprint)
		DO UPDATE SET status = $6, kind = $2, created_at = NOW()
		WHERE processed_transactions.status = $7
	`
	tag, err := r.db.Exec(ctx, query, txn.Fingerprint, txn.Kind, txn.AmountCents, txn.Payee, txn.TxnDate, TxnStatusPending, TxnStatusFailed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *fingerprintRepo) Confirm(ctx context.Context, fingerprint, ledgerID string) error {
	query := `UPDATE processed_transactions SET ledger_id = $2, status = $3 WHERE fingerprint = $1`
	_, err := r.db.Exec(ctx, query, fingerprint, ledgerID, TxnStatusPosted)
	return err
}

func (r *fingerprintRepo) Fail(ctx context.Context, fingerprint string) error {
	query := `UPDATE processed_transactions SET status = $2 WHERE fingerprint = $1 AND status = $3`
	_, err := r.db.Exec(ctx, query, fingerprint, TxnStatusFailed, TxnStatusPending)
	return err
}

func (r *fingerprintRepo) MarkUncertain(ctx context.Context, fingerprint string) error {
	query := `UPDATE processed_transactions SET status = $2 WHERE fingerprint = $1`
	_, err := r.db.Exec(ctx, query, fingerprint, TxnStatusUncertain)
	return err
}

func (r *fingerprintRepo) Lookup(ctx context.Context, fingerprint string) (*ProcessedTxn, error) {
	query := `
		SELECT fingerprint, kind, ledger_id, amount_cents, payee, txn_date, status, created_at
		FROM processed_transactions
		WHERE fingerprint = $1
	`
	txn := &ProcessedTxn{}
	err := r.db.QueryRow(ctx, query, fingerprint).Scan(
		&txn.Fingerprint, &txn.Kind, &txn.LedgerID, &txn.AmountCents,
		&txn.Payee, &txn.TxnDate, &txn.Status, &txn.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}
