// Package ledger defines the adapter contract for the external accounting
// system of record. The backend is opaque beyond this interface: writes are
// not idempotent, deletes require canonical string discriminators, and the
// report basis (cash vs accrual) is backend configuration the core must
// read, not assume.
package ledger

import (
	"context"
	"time"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/models"
)

// Kind is a transaction type discriminator. The backend only accepts the
// canonical strings below; in particular delete calls built with numeric
// discriminators fail inside the SDK bridge, so the core validates kinds
// before any call is attempted.
type Kind string

const (
	KindBill           Kind = "Bill"
	KindCheck          Kind = "Check"
	KindInvoice        Kind = "Invoice"
	KindBillPayment    Kind = "BillPaymentCheck"
	KindReceivePayment Kind = "ReceivePayment"
	KindItemReceipt    Kind = "ItemReceipt"
	KindDeposit        Kind = "Deposit"
	KindPurchaseOrder  Kind = "PurchaseOrder"
)

var validKinds = map[Kind]bool{
	KindBill: true, KindCheck: true, KindInvoice: true, KindBillPayment: true,
	KindReceivePayment: true, KindItemReceipt: true, KindDeposit: true, KindPurchaseOrder: true,
}

// Valid reports whether k is one of the canonical discriminators.
func (k Kind) Valid() bool {
	return validKinds[k]
}

// ValidateKind rejects anything but a canonical discriminator, before the
// adapter is called.
func ValidateKind(k Kind) error {
	if !k.Valid() {
		return common.FieldError(common.ErrInvalidParameter, "kind",
			"transaction kind must be a canonical discriminator string, got %q", string(k))
	}
	return nil
}

// PaymentKinds are the transaction kinds the duplicate guard sweeps when
// looking for an existing posting of a candidate amount.
var PaymentKinds = []Kind{KindBill, KindCheck, KindBillPayment, KindItemReceipt}

// EntityKind discriminates name-list entities.
type EntityKind string

const (
	EntityVendor    EntityKind = "Vendor"
	EntityCustomer  EntityKind = "Customer"
	EntityItem      EntityKind = "Item"
	EntityAccount   EntityKind = "Account"
	EntityOtherName EntityKind = "OtherName"
)

// Basis is the backend's report basis.
type Basis string

const (
	BasisCash    Basis = "cash"
	BasisAccrual Basis = "accrual"
)

// SearchFilter narrows a transaction search. Zero values mean "no
// constraint". AmountTolerance only applies when Amount is set.
type SearchFilter struct {
	DateFrom        time.Time
	DateTo          time.Time
	Amount          float64
	AmountTolerance float64
	Entity          string
	Job             string
	RefNumber       string
	IncludeLines    bool
	MaxReturned     int
}

// EntityFields carries the writable attributes of a ledger entity.
type EntityFields struct {
	Name        string  `json:"name"`
	CompanyName string  `json:"company_name,omitempty"`
	AccountType string  `json:"account_type,omitempty"`
	ItemType    string  `json:"item_type,omitempty"`
	Parent      string  `json:"parent,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	Cost        float64 `json:"cost,omitempty"`
	ActiveOnly  bool    `json:"-"`
}

// Backend is the raw CRUD surface of the accounting engine. Calls are
// blocking and non-cancelable once issued; the core never retries a write
// on its own.
type Backend interface {
	FindEntity(ctx context.Context, kind EntityKind, nameQuery string) ([]models.EntityRef, error)
	CreateEntity(ctx context.Context, kind EntityKind, fields EntityFields) (models.EntityRef, error)
	UpdateEntity(ctx context.Context, kind EntityKind, id string, fields EntityFields) error
	CreateTransaction(ctx context.Context, kind Kind, txn *models.Transaction) (string, error)
	GetTransaction(ctx context.Context, kind Kind, id string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, kind Kind, id string, txn *models.Transaction) error
	SearchTransactions(ctx context.Context, kind Kind, filter SearchFilter) ([]*models.Transaction, error)
	DeleteTransaction(ctx context.Context, kind Kind, id string) error
	ReportBasis(ctx context.Context) (Basis, error)
}
