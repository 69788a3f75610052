package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"ledgerdesk/internal/caching"
	"ledgerdesk/internal/common"
	"ledgerdesk/internal/config"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
)

// JobCostService merges bills, checks and item receipts into one per-job
// cost figure. Reports are derived on demand and never persisted.
type JobCostService interface {
	Report(ctx context.Context, job string) (*models.JobCostReport, error)
}

type jobCostService struct {
	backend ledger.Backend
	cache   caching.CacheService
	cfg     config.PolicyConfig
}

func NewJobCostService(backend ledger.Backend, cache caching.CacheService, cfg config.PolicyConfig) JobCostService {
	return &jobCostService{backend: backend, cache: cache, cfg: cfg}
}

const reportBasisTTL = 30 * time.Minute

// basis resolves the report basis: config override first, then the
// backend's own setting (cached, since it changes rarely).
func (s *jobCostService) basis(ctx context.Context) (ledger.Basis, error) {
	if s.cfg.ReportBasisOverride != "" {
		switch b := ledger.Basis(strings.ToLower(s.cfg.ReportBasisOverride)); b {
		case ledger.BasisCash, ledger.BasisAccrual:
			return b, nil
		default:
			return "", common.FieldError(common.ErrInvalidParameter, "report_basis_override",
				"report basis must be cash or accrual, got %q", s.cfg.ReportBasisOverride)
		}
	}
	if s.cache != nil {
		if cached, err := s.cache.GetReportBasis(ctx); err == nil && cached != "" {
			return ledger.Basis(cached), nil
		}
	}
	basis, err := s.backend.ReportBasis(ctx)
	if err != nil {
		return "", common.BackendError("read report basis", err)
	}
	if s.cache != nil {
		if err := s.cache.SetReportBasis(ctx, string(basis), reportBasisTTL); err != nil {
			log.Printf("WARN: failed to cache report basis: %v", err)
		}
	}
	return basis, nil
}

// Report pulls bills and checks unconditionally and item receipts only on
// an accrual basis, since cash-basis backends exclude unpaid receipts
// until converted. A receipt already converted to a bill never counts
// twice: receipts linked to an included bill are dropped by id.
func (s *jobCostService) Report(ctx context.Context, job string) (*models.JobCostReport, error) {
	if err := common.ValidateRequiredString(job, "job"); err != nil {
		return nil, err
	}

	basis, err := s.basis(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.JobCostReport{
		Job:         job,
		Basis:       string(basis),
		ByVendor:    make(map[string]float64),
		GeneratedAt: time.Now(),
	}

	filter := ledger.SearchFilter{Job: job, IncludeLines: true}

	// ids of every bill and check already counted, plus any transactions
	// they reference. A receipt converted to a bill appears in the bill's
	// linked ids.
	counted := make(map[string]bool)

	for _, kind := range []ledger.Kind{ledger.KindBill, ledger.KindCheck} {
		txns, err := s.backend.SearchTransactions(ctx, kind, filter)
		if err != nil {
			return nil, common.BackendError(fmt.Sprintf("search %s transactions", kind), err)
		}
		for _, txn := range txns {
			amount := jobShare(txn, job)
			report.MaterialCost += amount
			report.ByVendor[txn.Payee] += amount
			counted[txn.LedgerID] = true
			for _, linked := range txn.LinkedIDs {
				counted[linked] = true
			}
		}
	}

	if basis == ledger.BasisAccrual {
		receipts, err := s.backend.SearchTransactions(ctx, ledger.KindItemReceipt, filter)
		if err != nil {
			return nil, common.BackendError("search item receipts", err)
		}
		for _, txn := range receipts {
			if counted[txn.LedgerID] {
				continue
			}
			amount := jobShare(txn, job)
			report.ReceiptCost += amount
			report.ByVendor[txn.Payee] += amount
		}
	} else {
		report.BasisNote = "item receipts excluded: backend reports on a cash basis; unpaid receipts do not count until converted"
	}

	report.Total = report.MaterialCost + report.ReceiptCost
	return report, nil
}

// jobShare is the portion of a transaction attributable to one job. When
// line items carry job refs only the matching lines count; a transaction
// with no line detail is attributed whole (the search already filtered it
// to this job).
func jobShare(txn *models.Transaction, job string) float64 {
	if len(txn.LineItems) == 0 {
		return txn.Amount
	}
	tagged := false
	var share float64
	for _, line := range txn.LineItems {
		if line.Job != "" {
			tagged = true
			if strings.EqualFold(line.Job, job) {
				share += line.Extension()
			}
		}
	}
	if !tagged {
		return txn.Amount
	}
	return share
}
