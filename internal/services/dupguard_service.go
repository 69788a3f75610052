package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
	"ledgerdesk/internal/repositories"
)

// Fingerprint is the derived duplicate-detection key: amount in cents,
// normalized payee, transaction date. The date window is applied at query
// time, not baked into the key.
type Fingerprint struct {
	AmountCents int64
	Payee       string
	Date        time.Time
}

// NewFingerprint derives the key from a candidate transaction.
func NewFingerprint(txn *models.Transaction) Fingerprint {
	return Fingerprint{
		AmountCents: models.Cents(txn.Amount),
		Payee:       common.NormalizePayee(txn.Payee),
		Date:        txn.Date,
	}
}

// Key is the string form stored in the processed-transaction index.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%d|%s|%s", f.AmountCents, f.Payee, f.Date.Format("2006-01-02"))
}

// DuplicateVerdict is what Check returns. The guard never auto-resolves;
// the caller decides what a duplicate means.
type DuplicateVerdict struct {
	IsDuplicate bool     `json:"is_duplicate"`
	Matches     []string `json:"matches,omitempty"`
	Confidence  float64  `json:"confidence"`
	Fingerprint string   `json:"fingerprint"`
	// Uncertain is set when the verdict comes from an earlier write with
	// an unknown outcome rather than an observed ledger record.
	Uncertain bool `json:"uncertain,omitempty"`
}

// DupGuardService detects likely duplicate postings against both the
// external ledger and the local processed-transaction index.
type DupGuardService interface {
	Check(ctx context.Context, candidate *models.Transaction, toleranceCents int64, dateWindowDays int) (*DuplicateVerdict, error)
}

type dupGuardService struct {
	backend ledger.Backend
	index   repositories.FingerprintRepository
}

func NewDupGuardService(backend ledger.Backend, index repositories.FingerprintRepository) DupGuardService {
	return &dupGuardService{backend: backend, index: index}
}

// Check is a pure read: no index rows are written, so checking twice in a
// row returns the same verdict.
func (s *dupGuardService) Check(ctx context.Context, candidate *models.Transaction, toleranceCents int64, dateWindowDays int) (*DuplicateVerdict, error) {
	fp := NewFingerprint(candidate)
	verdict := &DuplicateVerdict{Fingerprint: fp.Key()}

	// Local index first: it also covers writes the backend has not yet
	// made searchable, and uncertain outcomes that must be assumed
	// posted.
	row, err := s.index.Lookup(ctx, fp.Key())
	if err != nil {
		return nil, common.BackendError("lookup processed transactions", err)
	}
	if row != nil && row.Status != repositories.TxnStatusFailed {
		verdict.IsDuplicate = true
		verdict.Confidence = 1.0
		verdict.Uncertain = row.Status == repositories.TxnStatusUncertain
		if row.LedgerID != "" {
			verdict.Matches = append(verdict.Matches, row.LedgerID)
		} else {
			verdict.Matches = append(verdict.Matches, "processed:"+row.Fingerprint)
		}
		return verdict, nil
	}

	filter := ledger.SearchFilter{
		DateFrom:        fp.Date.AddDate(0, 0, -dateWindowDays),
		DateTo:          fp.Date.AddDate(0, 0, dateWindowDays),
		Amount:          candidate.Amount,
		AmountTolerance: float64(toleranceCents) / 100,
	}

	payee := fp.Payee
	for _, kind := range ledger.PaymentKinds {
		existing, err := s.backend.SearchTransactions(ctx, kind, filter)
		if err != nil {
			return nil, err
		}
		for _, txn := range existing {
			conf := matchConfidence(candidate, txn, payee, toleranceCents)
			if conf == 0 {
				continue
			}
			verdict.IsDuplicate = true
			verdict.Matches = append(verdict.Matches, fmt.Sprintf("%s:%s", kind, txn.LedgerID))
			if conf > verdict.Confidence {
				verdict.Confidence = conf
			}
		}
	}

	if verdict.IsDuplicate {
		log.Printf("duplicate suspected for %s: %d match(es), confidence %.2f",
			fp.Key(), len(verdict.Matches), verdict.Confidence)
	}
	return verdict, nil
}

// matchConfidence scores one existing ledger transaction against the
// candidate. Zero means "not a match". Amounts outside tolerance and
// dates outside the window were already excluded by the search filter;
// what remains is how exact the amount and payee are.
func matchConfidence(candidate, existing *models.Transaction, normPayee string, toleranceCents int64) float64 {
	diffCents := models.Cents(math.Abs(existing.Amount - candidate.Amount))
	if diffCents > toleranceCents {
		return 0
	}

	samePayee := normPayee != "" && common.NormalizePayee(existing.Payee) == normPayee
	switch {
	case diffCents == 0 && samePayee:
		return 0.95
	case samePayee:
		return 0.8
	case diffCents == 0:
		// Same amount in the window but a different payee still warrants
		// a human look; payee names on scanned documents drift.
		return 0.7
	default:
		return 0.5
	}
}
