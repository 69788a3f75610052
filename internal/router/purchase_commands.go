package router

import (
	"context"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
)

func (r *Router) registerPurchaseCommands() {
	r.register("GET_PURCHASE_ORDERS", nil, searchFilterSchema(), r.searchTransactions(ledger.KindPurchaseOrder))

	r.register("CREATE_PURCHASE_ORDER",
		[]paramSpec{
			req("vendor", typeString),
			req("line_items", typeLineItems),
		},
		[]paramSpec{
			opt("date", typeDate, nil),
			opt("memo", typeString, nil),
			opt("ref_number", typeString, nil),
		},
		r.createPurchaseOrder)

	r.register("DELETE_PURCHASE_ORDER",
		[]paramSpec{req("purchase_order_id", typeString)},
		nil,
		r.deleteTransaction(ledger.KindPurchaseOrder, "purchase_order_id"))

	r.register("RECEIVE_PURCHASE_ORDER",
		[]paramSpec{req("purchase_order_id", typeString)},
		[]paramSpec{opt("date", typeDate, nil)},
		r.receivePurchaseOrder)

	r.register("GET_ITEM_RECEIPTS", nil, searchFilterSchema(), r.searchTransactions(ledger.KindItemReceipt))
	r.register("SEARCH_ITEM_RECEIPTS", nil, searchFilterSchema(), r.searchTransactions(ledger.KindItemReceipt))

	r.register("SEARCH_TRANSACTION_BY_AMOUNT",
		[]paramSpec{req("amount", typeFloat)},
		[]paramSpec{
			opt("tolerance", typeFloat, 0.0),
			opt("date_from", typeDate, nil),
			opt("date_to", typeDate, nil),
		},
		r.searchTransactionByAmount)

	r.register("GET_JOB_PROFIT",
		[]paramSpec{req("job", typeString)},
		nil,
		r.getJobProfit)
}

func (r *Router) createPurchaseOrder(ctx context.Context, p *ParamSet) (any, error) {
	vendor, err := r.resolveVendorName(ctx, p.Str("vendor"))
	if err != nil {
		return nil, err
	}
	lines := p.LineItems("line_items")
	if len(lines) == 0 {
		return nil, common.FieldError(common.ErrMissingParameter, "line_items",
			"a purchase order needs at least one line item")
	}
	for i, line := range lines {
		if line.Item == "" {
			return nil, common.FieldError(common.ErrMissingParameter, "line_items",
				"line %d has no item; there is no default item", i+1)
		}
	}

	txn := &models.Transaction{
		Payee:     vendor,
		Date:      txnDate(p),
		Memo:      p.Str("memo"),
		RefNumber: p.Str("ref_number"),
		LineItems: lines,
	}
	txn.Amount = txn.LineTotal()

	poID, err := r.backend.CreateTransaction(ctx, ledger.KindPurchaseOrder, txn)
	if err != nil {
		return nil, err
	}
	return map[string]any{"purchase_order_id": poID, "amount": txn.Amount, "vendor": vendor}, nil
}

// receivePurchaseOrder converts an open purchase order into an item
// receipt carrying the same lines, linked back to the order.
func (r *Router) receivePurchaseOrder(ctx context.Context, p *ParamSet) (any, error) {
	poID := p.Str("purchase_order_id")
	po, err := r.backend.GetTransaction(ctx, ledger.KindPurchaseOrder, poID)
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Payee:     po.Payee,
		Amount:    po.Amount,
		Date:      txnDate(p),
		RefNumber: po.RefNumber,
		LineItems: po.LineItems,
		LinkedIDs: []string{poID},
	}
	receiptID, err := r.backend.CreateTransaction(ctx, ledger.KindItemReceipt, txn)
	if err != nil {
		return nil, err
	}
	return map[string]any{"item_receipt_id": receiptID, "amount": po.Amount, "vendor": po.Payee}, nil
}

// searchTransactionByAmount sweeps every payment kind for a matching
// amount; useful when reconciling a bank line with an unknown source.
func (r *Router) searchTransactionByAmount(ctx context.Context, p *ParamSet) (any, error) {
	amount := p.Float("amount")
	if err := common.ValidatePositiveAmount(amount, "amount"); err != nil {
		return nil, err
	}
	filter := ledger.SearchFilter{
		Amount:          amount,
		AmountTolerance: p.Float("tolerance"),
		DateFrom:        p.Date("date_from"),
		DateTo:          p.Date("date_to"),
	}

	results := make(map[string][]*models.Transaction)
	for _, kind := range ledger.PaymentKinds {
		txns, err := r.backend.SearchTransactions(ctx, kind, filter)
		if err != nil {
			return nil, err
		}
		if len(txns) > 0 {
			results[string(kind)] = txns
		}
	}
	return results, nil
}

func (r *Router) getJobProfit(ctx context.Context, p *ParamSet) (any, error) {
	job, err := r.resolver.Resolve(ctx, ledger.EntityCustomer, p.Str("job"))
	if err != nil {
		return nil, err
	}
	report, err := r.jobcost.Report(ctx, job.Name)
	if err != nil {
		return nil, err
	}
	return report, nil
}
