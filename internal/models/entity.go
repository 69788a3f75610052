package models

import "time"

// EntityRef is a resolved ledger entity: the opaque backend identifier
// plus the exact name the backend knows it by.
type EntityRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VendorPolicy is the static per-vendor configuration consulted before
// payment and work bill commands. Zero values mean "not configured".
type VendorPolicy struct {
	Vendor           string  `json:"vendor"`
	DefaultDailyCost float64 `json:"default_daily_cost,omitempty"`
	DefaultAccount   string  `json:"default_account,omitempty"`
	DefaultMemo      string  `json:"default_memo,omitempty"`
	Initials         string  `json:"initials,omitempty"`
}

// JobCostReport is the derived per-job profitability figure. Never
// persisted; recomputed on demand.
type JobCostReport struct {
	Job          string             `json:"job"`
	MaterialCost float64            `json:"material_cost"`
	ReceiptCost  float64            `json:"receipt_cost"`
	Total        float64            `json:"total"`
	Basis        string             `json:"basis"`
	BasisNote    string             `json:"basis_note,omitempty"`
	ByVendor     map[string]float64 `json:"by_vendor,omitempty"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// AuditEntry records an executed command or an explicit operator decision
// (duplicate override, approval) in the append-only audit log.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}
