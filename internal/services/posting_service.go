package services

import (
	"context"
	"errors"
	"log"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
	"ledgerdesk/internal/repositories"
)

// PostingService is the guarded write path for directly-commanded
// payments. Every post runs the duplicate guard first; a suspected
// duplicate blocks until the caller forces past it, and a force is always
// audit-logged. The fingerprint claim and the ledger create are one
// critical section per fingerprint, so a concurrent post of the same
// candidate loses cleanly instead of double-posting.
type PostingService interface {
	Post(ctx context.Context, kind ledger.Kind, txn *models.Transaction, opts PostOptions) (string, error)
}

// PostOptions control one guarded post.
type PostOptions struct {
	Force          bool
	Actor          string
	Reason         string
	ToleranceCents int64
	DateWindowDays int
}

type postingService struct {
	backend ledger.Backend
	guard   DupGuardService
	index   repositories.FingerprintRepository
	audit   AuditService
	locks   *keyedMutex
}

func NewPostingService(backend ledger.Backend, guard DupGuardService, index repositories.FingerprintRepository, audit AuditService) PostingService {
	return &postingService{backend: backend, guard: guard, index: index, audit: audit, locks: newKeyedMutex()}
}

func (s *postingService) Post(ctx context.Context, kind ledger.Kind, txn *models.Transaction, opts PostOptions) (string, error) {
	if err := ledger.ValidateKind(kind); err != nil {
		return "", err
	}
	if err := txn.ValidateAmount(); err != nil {
		return "", err
	}

	verdict, err := s.guard.Check(ctx, txn, opts.ToleranceCents, opts.DateWindowDays)
	if err != nil {
		return "", err
	}
	if verdict.IsDuplicate {
		if !opts.Force {
			return "", &common.Error{
				Kind:       common.ErrDuplicateSuspected,
				Message:    "a matching transaction may already exist; re-issue with force=true to post anyway",
				Candidates: verdict.Matches,
			}
		}
		s.audit.LogOverride(ctx, opts.Actor, verdict.Fingerprint, opts.Reason)
	}

	unlock := s.locks.Lock(verdict.Fingerprint)
	defer unlock()

	fp := NewFingerprint(txn)
	won, err := s.index.Reserve(ctx, &repositories.ProcessedTxn{
		Fingerprint: verdict.Fingerprint,
		Kind:        string(kind),
		AmountCents: fp.AmountCents,
		Payee:       fp.Payee,
		TxnDate:     fp.Date,
	})
	if err != nil {
		return "", common.BackendError("reserve fingerprint", err)
	}
	if !won && !opts.Force {
		return "", common.NewError(common.ErrDuplicateSuspected,
			"fingerprint %s was already claimed", verdict.Fingerprint)
	}

	ledgerID, postErr := s.backend.CreateTransaction(ctx, kind, txn)
	if postErr != nil {
		var ce *common.Error
		if errors.As(postErr, &ce) && ce.Kind == common.ErrUncertainOutcome {
			// The write may have landed; keep the claim conservative.
			if err := s.index.MarkUncertain(ctx, verdict.Fingerprint); err != nil {
				log.Printf("WARN: failed to mark fingerprint %s uncertain: %v", verdict.Fingerprint, err)
			}
		} else if won {
			if err := s.index.Fail(ctx, verdict.Fingerprint); err != nil {
				log.Printf("WARN: failed to release fingerprint %s: %v", verdict.Fingerprint, err)
			}
		}
		return "", postErr
	}

	if won {
		if err := s.index.Confirm(ctx, verdict.Fingerprint, ledgerID); err != nil {
			log.Printf("WARN: failed to confirm fingerprint %s: %v", verdict.Fingerprint, err)
		}
	}
	txn.LedgerID = ledgerID
	return ledgerID, nil
}
