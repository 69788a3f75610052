package models

import (
	"time"

	"github.com/google/uuid"
)

// CandidateState is the staging pipeline state of one transaction candidate.
type CandidateState string

const (
	StateIngested         CandidateState = "ingested"
	StateExtracted        CandidateState = "extracted"
	StatePaired           CandidateState = "paired"
	StateDuplicateChecked CandidateState = "duplicate_checked"
	StateFieldsPending    CandidateState = "fields_pending"
	StateSummarized       CandidateState = "summarized"
	StateApproved         CandidateState = "approved"
	StatePosted           CandidateState = "posted"
	StateRejected         CandidateState = "rejected"
	StateAbandoned        CandidateState = "abandoned"
)

// Terminal reports whether no further transitions are possible.
func (s CandidateState) Terminal() bool {
	return s == StatePosted || s == StateRejected || s == StateAbandoned
}

// DocumentRole classifies an extracted document for pairing.
type DocumentRole string

const (
	RoleInvoice DocumentRole = "invoice"
	RolePayment DocumentRole = "payment"
	RoleReceipt DocumentRole = "receipt"
	RoleUnknown DocumentRole = "unknown"
)

// ExtractedDocument is one source document after extraction.
type ExtractedDocument struct {
	ID         uuid.UUID    `json:"id"`
	ObjectKey  string       `json:"object_key"`
	Role       DocumentRole `json:"role"`
	VendorHint string       `json:"vendor_hint"`
	Date       time.Time    `json:"date"`
	Total      float64      `json:"total"`
	LineItems  []LineItem   `json:"line_items,omitempty"`
	RefNumber  string       `json:"ref_number,omitempty"`
}

// RequiredFields are the per-candidate values that have no defaults and
// must be supplied before a candidate can be summarized.
type RequiredFields struct {
	Job     string `json:"job"`
	Item    string `json:"item"`
	Account string `json:"account"`
}

// Complete reports whether every required field has been supplied.
func (f RequiredFields) Complete() bool {
	return f.Job != "" && f.Item != "" && f.Account != ""
}

// Missing lists the unset required field names, in a stable order.
func (f RequiredFields) Missing() []string {
	var missing []string
	if f.Job == "" {
		missing = append(missing, "job")
	}
	if f.Item == "" {
		missing = append(missing, "item")
	}
	if f.Account == "" {
		missing = append(missing, "account")
	}
	return missing
}

// Candidate is one pairing's synthesized transaction moving through the
// staging pipeline.
type Candidate struct {
	ID          uuid.UUID      `json:"id"`
	BatchID     uuid.UUID      `json:"batch_id"`
	State       CandidateState `json:"state"`
	Kind        string         `json:"kind"`
	InvoiceDoc  *ExtractedDocument
	PaymentDoc  *ExtractedDocument
	Txn         Transaction    `json:"transaction"`
	Fields      RequiredFields `json:"fields"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	DupMatches  []string       `json:"duplicate_matches,omitempty"`
	Overridden  bool           `json:"override,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// StagedBatch groups the candidates produced by one ingestion run.
type StagedBatch struct {
	ID         uuid.UUID           `json:"id"`
	Documents  []ExtractedDocument `json:"documents"`
	Candidates []*Candidate        `json:"candidates"`
	CreatedAt  time.Time           `json:"created_at"`
	ClosedAt   *time.Time          `json:"closed_at,omitempty"`
}

// Open reports whether any candidate still awaits a decision or post.
func (b *StagedBatch) Open() bool {
	for _, c := range b.Candidates {
		if !c.State.Terminal() {
			return true
		}
	}
	return false
}
