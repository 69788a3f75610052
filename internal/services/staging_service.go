package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/config"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
	"ledgerdesk/internal/repositories"
)

// StagingService drives scanned documents from ingestion to a single
// approved post each. A batch moves through extraction, pairing,
// duplicate checking and field collection; every write-side transition is
// an explicit operator decision, and at most one post per fingerprint
// ever reaches the ledger.
type StagingService interface {
	Ingest(ctx context.Context, objectKeys []string) (*models.StagedBatch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*models.StagedBatch, error)
	ListOpen(ctx context.Context) ([]*models.StagedBatch, error)
	ProvideFields(ctx context.Context, candidateID uuid.UUID, fields models.RequiredFields) (*models.Candidate, error)
	OverrideDuplicate(ctx context.Context, candidateID uuid.UUID, actor, reason string) (*models.Candidate, error)
	Approve(ctx context.Context, candidateID uuid.UUID, actor string) (*models.Candidate, error)
	Reject(ctx context.Context, candidateID uuid.UUID, actor string) (*models.Candidate, error)
	Post(ctx context.Context, candidateID uuid.UUID) (*models.Candidate, error)
	Abandon(ctx context.Context, batchID uuid.UUID, actor string) error
}

type stagingService struct {
	repo    repositories.StagingRepository
	index   repositories.FingerprintRepository
	guard   DupGuardService
	backend ledger.Backend
	docs    DocumentService
	audit   AuditService
	cfg     config.StagingConfig
	locks   *keyedMutex
}

func NewStagingService(
	repo repositories.StagingRepository,
	index repositories.FingerprintRepository,
	guard DupGuardService,
	backend ledger.Backend,
	docs DocumentService,
	audit AuditService,
	cfg config.StagingConfig,
) StagingService {
	return &stagingService{
		repo:    repo,
		index:   index,
		guard:   guard,
		backend: backend,
		docs:    docs,
		audit:   audit,
		cfg:     cfg,
		locks:   newKeyedMutex(),
	}
}

// sidecar is the structured extraction result stored next to each scanned
// document. Extraction itself happens upstream; this pipeline only reads
// its output.
type sidecar struct {
	Type      string            `json:"type"` // invoice | receipt | payment
	Vendor    string            `json:"vendor"`
	Date      string            `json:"date"`
	Total     float64           `json:"total"`
	RefNumber string            `json:"ref_number"`
	LineItems []models.LineItem `json:"line_items"`
}

// Ingest builds a batch: extract every document, pair them, run each
// candidate through the duplicate guard. No ledger mutation happens here.
func (s *stagingService) Ingest(ctx context.Context, objectKeys []string) (*models.StagedBatch, error) {
	if len(objectKeys) == 0 {
		return nil, common.FieldError(common.ErrMissingParameter, "documents", "at least one document is required")
	}

	batch := &models.StagedBatch{ID: uuid.New(), CreatedAt: time.Now()}

	for _, key := range objectKeys {
		doc, err := s.extract(ctx, key)
		if err != nil {
			return nil, err
		}
		batch.Documents = append(batch.Documents, *doc)
	}

	for _, c := range pairDocuments(batch.Documents, s.cfg.PairingTolerance) {
		c.BatchID = batch.ID
		if err := s.duplicateCheck(ctx, c); err != nil {
			return nil, err
		}
		batch.Candidates = append(batch.Candidates, c)
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, common.BackendError("save staged batch", err)
	}
	return batch, nil
}

func (s *stagingService) extract(ctx context.Context, objectKey string) (*models.ExtractedDocument, error) {
	raw, err := s.docs.GetSidecar(ctx, objectKey)
	if err != nil {
		return nil, common.BackendError(fmt.Sprintf("read extraction for %s", objectKey), err)
	}

	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, common.FieldError(common.ErrInvalidParameter, "document",
			"extraction result for %s is not valid JSON: %v", objectKey, err)
	}

	doc := &models.ExtractedDocument{
		ID:         uuid.New(),
		ObjectKey:  objectKey,
		VendorHint: sc.Vendor,
		Total:      sc.Total,
		RefNumber:  sc.RefNumber,
		LineItems:  sc.LineItems,
	}
	switch sc.Type {
	case "invoice":
		doc.Role = models.RoleInvoice
	case "receipt":
		doc.Role = models.RoleReceipt
	case "payment":
		doc.Role = models.RolePayment
	default:
		doc.Role = models.RoleUnknown
	}
	if sc.Date != "" {
		date, err := common.ParseDate(sc.Date, "date")
		if err != nil {
			return nil, err
		}
		doc.Date = date
	}
	return doc, nil
}

// pairDocuments groups documents into transaction candidates. A pairing
// is one invoice-like document plus at most one payment-like document
// with a similar vendor, a comparable amount, and a payment date on or
// after the invoice date. Unmatched documents become singleton
// candidates.
func pairDocuments(docs []models.ExtractedDocument, amountTolerance float64) []*models.Candidate {
	paymentLike := func(d models.ExtractedDocument) bool {
		return d.Role == models.RolePayment || d.Role == models.RoleReceipt
	}
	invoiceLike := func(d models.ExtractedDocument) bool {
		return d.Role == models.RoleInvoice || d.Role == models.RoleUnknown
	}

	used := make([]bool, len(docs))
	var candidates []*models.Candidate

	for i := range docs {
		if used[i] || !invoiceLike(docs[i]) {
			continue
		}
		for j := range docs {
			if used[j] || i == j || !paymentLike(docs[j]) {
				continue
			}
			if common.NormalizePayee(docs[i].VendorHint) != common.NormalizePayee(docs[j].VendorHint) {
				continue
			}
			if math.Abs(docs[i].Total-docs[j].Total) > amountTolerance {
				continue
			}
			if docs[j].Date.Before(docs[i].Date) {
				continue
			}
			used[i], used[j] = true, true
			candidates = append(candidates, newCandidate(&docs[i], &docs[j]))
			break
		}
	}

	for i := range docs {
		if used[i] {
			continue
		}
		if invoiceLike(docs[i]) {
			candidates = append(candidates, newCandidate(&docs[i], nil))
		} else {
			candidates = append(candidates, newCandidate(nil, &docs[i]))
		}
	}
	return candidates
}

// newCandidate synthesizes the transaction a pairing would post. A paired
// or payment-backed candidate posts as a check; a bare invoice posts as a
// bill awaiting payment.
func newCandidate(invoice, payment *models.ExtractedDocument) *models.Candidate {
	c := &models.Candidate{
		ID:         uuid.New(),
		State:      models.StatePaired,
		InvoiceDoc: invoice,
		PaymentDoc: payment,
		UpdatedAt:  time.Now(),
	}

	src := invoice
	if src == nil {
		src = payment
	}
	c.Txn = models.Transaction{
		Payee:     src.VendorHint,
		Amount:    src.Total,
		Date:      src.Date,
		RefNumber: src.RefNumber,
		LineItems: src.LineItems,
	}
	if payment != nil {
		c.Kind = string(ledger.KindCheck)
		c.Txn.Date = payment.Date
	} else {
		c.Kind = string(ledger.KindBill)
	}
	return c
}

// duplicateCheck advances a candidate from Paired. Duplicates halt at
// DuplicateChecked until an operator overrides; clean candidates move
// straight to FieldsPending.
func (s *stagingService) duplicateCheck(ctx context.Context, c *models.Candidate) error {
	verdict, err := s.guard.Check(ctx, &c.Txn, s.cfg.AmountToleranceCts, s.cfg.DateWindowDays)
	if err != nil {
		return err
	}
	c.Fingerprint = verdict.Fingerprint
	c.DupMatches = verdict.Matches
	c.UpdatedAt = time.Now()
	if verdict.IsDuplicate {
		c.State = models.StateDuplicateChecked
	} else {
		c.State = models.StateFieldsPending
	}
	return nil
}

func (s *stagingService) GetBatch(ctx context.Context, id uuid.UUID) (*models.StagedBatch, error) {
	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return nil, common.BackendError("load staged batch", err)
	}
	if batch == nil {
		return nil, common.NewError(common.ErrEntityNotFound, "batch %s not found", id)
	}
	return batch, nil
}

func (s *stagingService) ListOpen(ctx context.Context) ([]*models.StagedBatch, error) {
	batches, err := s.repo.ListOpenBatches(ctx)
	if err != nil {
		return nil, common.BackendError("list staged batches", err)
	}
	return batches, nil
}

func (s *stagingService) loadCandidate(ctx context.Context, id uuid.UUID) (*models.Candidate, error) {
	c, err := s.repo.GetCandidate(ctx, id)
	if err != nil {
		return nil, common.BackendError("load candidate", err)
	}
	if c == nil {
		return nil, common.NewError(common.ErrEntityNotFound, "candidate %s not found", id)
	}
	return c, nil
}

func (s *stagingService) save(ctx context.Context, c *models.Candidate) (*models.Candidate, error) {
	c.UpdatedAt = time.Now()
	if err := s.repo.SaveCandidate(ctx, c); err != nil {
		return nil, common.BackendError("save candidate", err)
	}
	return c, nil
}

// ProvideFields supplies required fields. There are no defaults: the
// candidate reaches Summarized only once every field is set.
func (s *stagingService) ProvideFields(ctx context.Context, candidateID uuid.UUID, fields models.RequiredFields) (*models.Candidate, error) {
	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.State != models.StateFieldsPending {
		return nil, transitionError(c.State, models.StateFieldsPending)
	}

	if fields.Job != "" {
		c.Fields.Job = fields.Job
	}
	if fields.Item != "" {
		c.Fields.Item = fields.Item
	}
	if fields.Account != "" {
		c.Fields.Account = fields.Account
	}

	if c.Fields.Complete() {
		c.Txn.Account = c.Fields.Account
		for i := range c.Txn.LineItems {
			if c.Txn.LineItems[i].Item == "" {
				c.Txn.LineItems[i].Item = c.Fields.Item
			}
			if c.Txn.LineItems[i].Job == "" {
				c.Txn.LineItems[i].Job = c.Fields.Job
			}
		}
		c.State = models.StateSummarized
	}
	return s.save(ctx, c)
}

// OverrideDuplicate is the only path past a duplicate halt. The override
// is always written to the audit trail.
func (s *stagingService) OverrideDuplicate(ctx context.Context, candidateID uuid.UUID, actor, reason string) (*models.Candidate, error) {
	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.State != models.StateDuplicateChecked {
		return nil, transitionError(c.State, models.StateDuplicateChecked)
	}
	if reason == "" {
		return nil, common.FieldError(common.ErrMissingParameter, "reason", "an override reason is required")
	}

	c.Overridden = true
	c.State = models.StateFieldsPending
	s.audit.LogOverride(ctx, actor, c.Fingerprint, reason)
	return s.save(ctx, c)
}

func (s *stagingService) Approve(ctx context.Context, candidateID uuid.UUID, actor string) (*models.Candidate, error) {
	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.State != models.StateSummarized {
		return nil, transitionError(c.State, models.StateSummarized)
	}
	if !c.Fields.Complete() {
		return nil, common.NewError(common.ErrPolicyViolation,
			"candidate %s is missing required fields: %v", c.ID, c.Fields.Missing())
	}

	c.State = models.StateApproved
	s.audit.LogDecision(ctx, actor, "candidate_approved", c.ID.String())
	return s.save(ctx, c)
}

// Reject moves a candidate to its terminal sink without side effects.
// Any non-terminal state may be rejected.
func (s *stagingService) Reject(ctx context.Context, candidateID uuid.UUID, actor string) (*models.Candidate, error) {
	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.State.Terminal() {
		return nil, transitionError(c.State, models.StateRejected)
	}

	c.State = models.StateRejected
	s.audit.LogDecision(ctx, actor, "candidate_rejected", c.ID.String())
	return s.save(ctx, c)
}

// Post performs the exactly-once Approved -> Posted transition. The
// fingerprint check and claim run inside one critical section so two
// concurrent approvals of the same fingerprint cannot both post; the
// index's unique constraint backs the same guarantee across processes.
func (s *stagingService) Post(ctx context.Context, candidateID uuid.UUID) (*models.Candidate, error) {
	c, err := s.loadCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.State != models.StateApproved {
		return nil, transitionError(c.State, models.StateApproved)
	}

	unlock := s.locks.Lock(c.Fingerprint)
	defer unlock()

	// Re-check between approval time and post time: another approval of
	// the same fingerprint may have posted while this one waited.
	row, err := s.index.Lookup(ctx, c.Fingerprint)
	if err != nil {
		return nil, common.BackendError("lookup processed transactions", err)
	}
	if row != nil && row.Status != repositories.TxnStatusFailed {
		return nil, common.NewError(common.ErrDuplicateSuspected,
			"fingerprint %s already processed (status %s)", c.Fingerprint, row.Status)
	}

	fp := NewFingerprint(&c.Txn)
	won, err := s.index.Reserve(ctx, &repositories.ProcessedTxn{
		Fingerprint: c.Fingerprint,
		Kind:        c.Kind,
		AmountCents: fp.AmountCents,
		Payee:       fp.Payee,
		TxnDate:     fp.Date,
	})
	if err != nil {
		return nil, common.BackendError("reserve fingerprint", err)
	}
	if !won {
		return nil, common.NewError(common.ErrDuplicateSuspected,
			"fingerprint %s was claimed by a concurrent post", c.Fingerprint)
	}

	ledgerID, postErr := s.backend.CreateTransaction(ctx, ledger.Kind(c.Kind), &c.Txn)
	if postErr != nil {
		c.LastError = postErr.Error()
		if _, saveErr := s.save(ctx, c); saveErr != nil {
			log.Printf("WARN: failed to record post error on candidate %s: %v", c.ID, saveErr)
		}
		var ce *common.Error
		if errors.As(postErr, &ce) && ce.Kind == common.ErrUncertainOutcome {
			// The write may have landed. Keep the claim so the next
			// duplicate check treats it as possibly posted.
			if err := s.index.MarkUncertain(ctx, c.Fingerprint); err != nil {
				log.Printf("WARN: failed to mark fingerprint %s uncertain: %v", c.Fingerprint, err)
			}
			return nil, postErr
		}
		// Clean failure: release the claim so the candidate stays
		// re-postable. The failed row remains in the index as audit
		// trail.
		if err := s.index.Fail(ctx, c.Fingerprint); err != nil {
			log.Printf("WARN: failed to release fingerprint %s: %v", c.Fingerprint, err)
		}
		return nil, postErr
	}

	if err := s.index.Confirm(ctx, c.Fingerprint, ledgerID); err != nil {
		log.Printf("WARN: failed to confirm fingerprint %s: %v", c.Fingerprint, err)
	}

	c.Txn.LedgerID = ledgerID
	c.State = models.StatePosted
	c.LastError = ""
	s.archiveDocs(ctx, c)

	saved, err := s.save(ctx, c)
	if err != nil {
		return nil, err
	}
	s.closeBatchIfDone(ctx, c.BatchID)
	return saved, nil
}

func (s *stagingService) archiveDocs(ctx context.Context, c *models.Candidate) {
	now := time.Now()
	for _, doc := range []*models.ExtractedDocument{c.InvoiceDoc, c.PaymentDoc} {
		if doc == nil {
			continue
		}
		if _, err := s.docs.Archive(ctx, doc.ObjectKey, c.Txn.Payee, now); err != nil {
			// Archiving is bookkeeping, not part of the post; the
			// transaction is already in the ledger.
			log.Printf("WARN: failed to archive %s: %v", doc.ObjectKey, err)
		}
	}
}

func (s *stagingService) closeBatchIfDone(ctx context.Context, batchID uuid.UUID) {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil || batch == nil {
		return
	}
	if !batch.Open() {
		if err := s.repo.CloseBatch(ctx, batchID); err != nil {
			log.Printf("WARN: failed to close batch %s: %v", batchID, err)
		}
	}
}

// Abandon terminates every non-terminal candidate in a batch without
// posting anything.
func (s *stagingService) Abandon(ctx context.Context, batchID uuid.UUID, actor string) error {
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	for _, c := range batch.Candidates {
		if c.State.Terminal() {
			continue
		}
		c.State = models.StateAbandoned
		if _, err := s.save(ctx, c); err != nil {
			return err
		}
	}
	s.audit.LogDecision(ctx, actor, "batch_abandoned", batchID.String())
	if err := s.repo.CloseBatch(ctx, batchID); err != nil {
		return common.BackendError("close batch", err)
	}
	return nil
}

func transitionError(current, expected models.CandidateState) *common.Error {
	return common.NewError(common.ErrInvalidTransition,
		"candidate is %s, expected %s", current, expected)
}
