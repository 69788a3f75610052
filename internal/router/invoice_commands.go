package router

import (
	"context"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
)

func (r *Router) registerInvoiceCommands() {
	r.register("SEARCH_INVOICES", nil, searchFilterSchema(), r.searchTransactions(ledger.KindInvoice))
	r.register("GET_INVOICES_THIS_WEEK", nil, nil, r.thisWeek(ledger.KindInvoice))
	r.register("GET_INVOICE",
		[]paramSpec{req("invoice_id", typeString)},
		nil,
		r.getTransaction(ledger.KindInvoice, "invoice_id"))

	r.register("CREATE_INVOICE",
		[]paramSpec{
			req("customer", typeString),
			req("line_items", typeLineItems),
		},
		[]paramSpec{
			opt("date", typeDate, nil),
			opt("memo", typeString, nil),
			opt("ref_number", typeString, nil),
		},
		r.createInvoice)

	r.register("RECEIVE_PAYMENT",
		[]paramSpec{
			req("customer", typeString),
			req("amount", typeFloat),
		},
		[]paramSpec{
			opt("invoice_ids", typeStringList, nil),
			opt("date", typeDate, nil),
			opt("memo", typeString, nil),
			opt("payment_method", typeString, nil),
		},
		r.receivePayment)

	r.register("SEARCH_CUSTOMER_PAYMENTS", nil, searchFilterSchema(), r.searchTransactions(ledger.KindReceivePayment))

	r.register("DELETE_CUSTOMER_PAYMENT",
		[]paramSpec{req("payment_id", typeString)},
		nil,
		r.deleteTransaction(ledger.KindReceivePayment, "payment_id"))

	r.register("SEARCH_DEPOSITS", nil, searchFilterSchema(), r.searchTransactions(ledger.KindDeposit))

	r.register("DEPOSIT_CUSTOMER_PAYMENT",
		[]paramSpec{
			req("payment_id", typeString),
			req("account", typeString),
		},
		[]paramSpec{opt("date", typeDate, nil)},
		r.depositCustomerPayment)
}

// createInvoice is a receivable, not a payment: it never runs the
// duplicate guard, which only sweeps outgoing money.
func (r *Router) createInvoice(ctx context.Context, p *ParamSet) (any, error) {
	customer, err := r.resolver.Resolve(ctx, ledger.EntityCustomer, p.Str("customer"))
	if err != nil {
		return nil, err
	}

	lines := p.LineItems("line_items")
	if len(lines) == 0 {
		return nil, common.FieldError(common.ErrMissingParameter, "line_items",
			"an invoice needs at least one line item")
	}
	for i, line := range lines {
		if line.Item == "" {
			return nil, common.FieldError(common.ErrMissingParameter, "line_items",
				"line %d has no item; there is no default item", i+1)
		}
		if _, err := r.resolver.Resolve(ctx, ledger.EntityItem, line.Item); err != nil {
			return nil, err
		}
	}

	txn := &models.Transaction{
		Customer:  customer.Name,
		Date:      txnDate(p),
		Memo:      p.Str("memo"),
		RefNumber: p.Str("ref_number"),
		LineItems: lines,
	}
	txn.Amount = txn.LineTotal()

	invoiceID, err := r.backend.CreateTransaction(ctx, ledger.KindInvoice, txn)
	if err != nil {
		return nil, err
	}
	return map[string]any{"invoice_id": invoiceID, "amount": txn.Amount, "customer": customer.Name}, nil
}

func (r *Router) receivePayment(ctx context.Context, p *ParamSet) (any, error) {
	customer, err := r.resolver.Resolve(ctx, ledger.EntityCustomer, p.Str("customer"))
	if err != nil {
		return nil, err
	}
	amount := p.Float("amount")
	if err := common.ValidatePositiveAmount(amount, "amount"); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Customer:   customer.Name,
		Amount:     amount,
		Date:       txnDate(p),
		Memo:       p.Str("memo"),
		PaymentVia: p.Str("payment_method"),
		LinkedIDs:  p.StrList("invoice_ids"),
	}
	paymentID, err := r.backend.CreateTransaction(ctx, ledger.KindReceivePayment, txn)
	if err != nil {
		return nil, err
	}
	return map[string]any{"payment_id": paymentID, "amount": amount, "customer": customer.Name}, nil
}

// depositCustomerPayment moves a received payment from undeposited funds
// into a bank account.
func (r *Router) depositCustomerPayment(ctx context.Context, p *ParamSet) (any, error) {
	paymentID := p.Str("payment_id")
	payment, err := r.backend.GetTransaction(ctx, ledger.KindReceivePayment, paymentID)
	if err != nil {
		return nil, err
	}
	account, err := r.resolver.Resolve(ctx, ledger.EntityAccount, p.Str("account"))
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Customer:  payment.Customer,
		Amount:    payment.Amount,
		Date:      txnDate(p),
		Account:   account.Name,
		LinkedIDs: []string{paymentID},
	}
	depositID, err := r.backend.CreateTransaction(ctx, ledger.KindDeposit, txn)
	if err != nil {
		return nil, err
	}
	return map[string]any{"deposit_id": depositID, "amount": payment.Amount, "account": account.Name}, nil
}
