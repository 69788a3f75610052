package models

import (
	"fmt"
	"math"
	"time"
)

// LineItem is a single transaction line. Amount is the extension
// (quantity * unit cost) unless overridden by the backend.
type LineItem struct {
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
	Item        string  `json:"item,omitempty"`
	Job         string  `json:"job,omitempty"`
	LineID      string  `json:"line_id,omitempty"`
}

// Extension returns the line amount.
func (l LineItem) Extension() float64 {
	return l.Quantity * l.UnitCost
}

// Transaction is the common shape for bills, checks, invoices, payments,
// item receipts and deposits. LedgerID is empty until the backend has
// accepted the transaction; a transaction without a LedgerID is staged and
// carries no accounting effect.
type Transaction struct {
	LedgerID   string     `json:"ledger_id,omitempty"`
	Payee      string     `json:"payee,omitempty"`
	Customer   string     `json:"customer,omitempty"`
	Amount     float64    `json:"amount"`
	Date       time.Time  `json:"date"`
	RefNumber  string     `json:"ref_number,omitempty"`
	Memo       string     `json:"memo,omitempty"`
	Account    string     `json:"account,omitempty"`
	LineItems  []LineItem `json:"line_items,omitempty"`
	LinkedIDs  []string   `json:"linked_ids,omitempty"`
	IsPaid     bool       `json:"is_paid,omitempty"`
	CheckNum   string     `json:"check_number,omitempty"`
	AppliedTo  string     `json:"applied_to,omitempty"`
	PaymentVia string     `json:"payment_method,omitempty"`
}

// Posted reports whether the backend has assigned an identifier.
func (t *Transaction) Posted() bool {
	return t.LedgerID != ""
}

// LineTotal sums the line item extensions.
func (t *Transaction) LineTotal() float64 {
	var total float64
	for _, l := range t.LineItems {
		total += l.Extension()
	}
	return total
}

// ValidateAmount checks the invariant that the header amount matches the
// line item extensions when lines are present.
func (t *Transaction) ValidateAmount() error {
	if len(t.LineItems) == 0 {
		return nil
	}
	if math.Abs(t.Amount-t.LineTotal()) > 0.005 {
		return fmt.Errorf("amount %.2f does not match line item total %.2f", t.Amount, t.LineTotal())
	}
	return nil
}

// Cents returns the amount rounded to whole cents.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
