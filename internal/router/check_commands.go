package router

import (
	"context"
	"time"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
	"ledgerdesk/internal/services"
)

func (r *Router) registerCheckCommands() {
	r.register("CREATE_CHECK",
		[]paramSpec{
			req("payee", typeString),
			req("amount", typeFloat),
			req("account", typeString),
		},
		[]paramSpec{
			opt("date", typeDate, nil),
			opt("memo", typeString, nil),
			opt("check_number", typeString, nil),
			opt("job", typeString, nil),
			opt("line_items", typeLineItems, nil),
			opt("force", typeBool, false),
		},
		r.createCheck)

	r.register("GET_CHECK",
		[]paramSpec{req("check_id", typeString)},
		nil,
		r.getTransaction(ledger.KindCheck, "check_id"))

	r.register("SEARCH_CHECKS", nil, searchFilterSchema(), r.searchTransactions(ledger.KindCheck))

	r.register("GET_CHECKS_THIS_WEEK", nil, nil, r.thisWeek(ledger.KindCheck))

	r.register("UPDATE_CHECK",
		[]paramSpec{req("check_id", typeString)},
		[]paramSpec{
			opt("amount", typeFloat, nil),
			opt("date", typeDate, nil),
			opt("memo", typeString, nil),
			opt("check_number", typeString, nil),
		},
		r.updateCheck)

	r.register("DELETE_CHECK",
		[]paramSpec{req("check_id", typeString)},
		nil,
		r.deleteTransaction(ledger.KindCheck, "check_id"))

	r.register("PAY_BILLS",
		[]paramSpec{
			req("vendor", typeString),
			req("account", typeString),
		},
		[]paramSpec{
			opt("bill_ids", typeStringList, nil),
			opt("amount", typeFloat, nil),
			opt("date", typeDate, nil),
			opt("check_number", typeString, nil),
			opt("force", typeBool, false),
		},
		r.payBills)

	r.register("CREATE_BILL_PAYMENT",
		[]paramSpec{
			req("vendor", typeString),
			req("amount", typeFloat),
			req("account", typeString),
		},
		[]paramSpec{
			opt("bill_ids", typeStringList, nil),
			opt("date", typeDate, nil),
			opt("check_number", typeString, nil),
			opt("memo", typeString, nil),
			opt("force", typeBool, false),
		},
		r.createBillPayment)

	r.register("SEARCH_BILL_PAYMENTS", nil, searchFilterSchema(), r.searchTransactions(ledger.KindBillPayment))

	r.register("UPDATE_BILL_PAYMENT",
		[]paramSpec{req("payment_id", typeString)},
		[]paramSpec{
			opt("amount", typeFloat, nil),
			opt("date", typeDate, nil),
			opt("memo", typeString, nil),
		},
		r.updateBillPayment)

	r.register("DELETE_BILL_PAYMENT",
		[]paramSpec{req("payment_id", typeString)},
		nil,
		r.deleteTransaction(ledger.KindBillPayment, "payment_id"))
}

func searchFilterSchema() []paramSpec {
	return []paramSpec{
		opt("payee", typeString, nil),
		opt("date_from", typeDate, nil),
		opt("date_to", typeDate, nil),
		opt("amount", typeFloat, nil),
		opt("ref_number", typeString, nil),
		opt("max_returned", typeInt, 50),
	}
}

func (r *Router) buildFilter(ctx context.Context, p *ParamSet, payeeKind ledger.EntityKind) (ledger.SearchFilter, error) {
	filter := ledger.SearchFilter{
		DateFrom:    p.Date("date_from"),
		DateTo:      p.Date("date_to"),
		Amount:      p.Float("amount"),
		RefNumber:   p.Str("ref_number"),
		MaxReturned: p.Int("max_returned"),
	}
	if !filter.DateFrom.IsZero() && !filter.DateTo.IsZero() {
		if err := common.ValidateDateRange(filter.DateFrom, filter.DateTo); err != nil {
			return filter, err
		}
	}
	if payee := p.Str("payee"); payee != "" {
		ref, err := r.resolver.Resolve(ctx, payeeKind, payee)
		if err != nil {
			return filter, err
		}
		filter.Entity = ref.Name
	}
	return filter, nil
}

func (r *Router) searchTransactions(kind ledger.Kind) Handler {
	payeeKind := ledger.EntityVendor
	if kind == ledger.KindInvoice || kind == ledger.KindReceivePayment || kind == ledger.KindDeposit {
		payeeKind = ledger.EntityCustomer
	}
	return func(ctx context.Context, p *ParamSet) (any, error) {
		filter, err := r.buildFilter(ctx, p, payeeKind)
		if err != nil {
			return nil, err
		}
		txns, err := r.backend.SearchTransactions(ctx, kind, filter)
		if err != nil {
			return nil, err
		}
		return txns, nil
	}
}

func (r *Router) thisWeek(kind ledger.Kind) Handler {
	return func(ctx context.Context, p *ParamSet) (any, error) {
		start := models.WeekStart(time.Now())
		txns, err := r.backend.SearchTransactions(ctx, kind, ledger.SearchFilter{
			DateFrom: start,
			DateTo:   start.AddDate(0, 0, 6),
		})
		if err != nil {
			return nil, err
		}
		return txns, nil
	}
}

func (r *Router) getTransaction(kind ledger.Kind, idKey string) Handler {
	return func(ctx context.Context, p *ParamSet) (any, error) {
		txn, err := r.backend.GetTransaction(ctx, kind, p.Str(idKey))
		if err != nil {
			return nil, err
		}
		return txn, nil
	}
}

func (r *Router) deleteTransaction(kind ledger.Kind, idKey string) Handler {
	return func(ctx context.Context, p *ParamSet) (any, error) {
		id := p.Str(idKey)
		if err := common.ValidateRequiredString(id, idKey); err != nil {
			return nil, err
		}
		if err := r.backend.DeleteTransaction(ctx, kind, id); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": id}, nil
	}
}

// txnDate defaults the payment date to today.
func txnDate(p *ParamSet) time.Time {
	if d := p.Date("date"); !d.IsZero() {
		return d
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *Router) createCheck(ctx context.Context, p *ParamSet) (any, error) {
	amount := p.Float("amount")
	if err := common.ValidatePositiveAmount(amount, "amount"); err != nil {
		return nil, err
	}

	payee, err := r.resolvePayee(ctx, p.Str("payee"))
	if err != nil {
		return nil, err
	}
	account, err := r.resolver.Resolve(ctx, ledger.EntityAccount, p.Str("account"))
	if err != nil {
		return nil, err
	}

	lines := p.LineItems("line_items")
	if job := p.Str("job"); job != "" {
		jobRef, err := r.resolver.Resolve(ctx, ledger.EntityCustomer, job)
		if err != nil {
			return nil, err
		}
		for i := range lines {
			if lines[i].Job == "" {
				lines[i].Job = jobRef.Name
			}
		}
	}

	txn := &models.Transaction{
		Payee:     payee,
		Amount:    amount,
		Date:      txnDate(p),
		Memo:      p.Str("memo"),
		Account:   account.Name,
		CheckNum:  p.Str("check_number"),
		LineItems: lines,
	}

	ledgerID, err := r.posting.Post(ctx, ledger.KindCheck, txn, services.PostOptions{
		Force:          p.Bool("force"),
		Reason:         "CREATE_CHECK force flag",
		ToleranceCents: r.cfg.AmountToleranceCts,
		DateWindowDays: r.cfg.DateWindowDays,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"check_id": ledgerID, "amount": amount, "payee": payee}, nil
}

func (r *Router) updateCheck(ctx context.Context, p *ParamSet) (any, error) {
	id := p.Str("check_id")
	existing, err := r.backend.GetTransaction(ctx, ledger.KindCheck, id)
	if err != nil {
		return nil, err
	}
	if p.Has("amount") {
		if err := common.ValidatePositiveAmount(p.Float("amount"), "amount"); err != nil {
			return nil, err
		}
		existing.Amount = p.Float("amount")
		existing.LineItems = nil
	}
	if p.Has("date") {
		existing.Date = p.Date("date")
	}
	if p.Has("memo") {
		existing.Memo = p.Str("memo")
	}
	if p.Has("check_number") {
		existing.CheckNum = p.Str("check_number")
	}
	if err := r.backend.UpdateTransaction(ctx, ledger.KindCheck, id, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// payBills settles a vendor's open bills with one payment. With no
// explicit bill list, every open bill for the vendor is selected.
func (r *Router) payBills(ctx context.Context, p *ParamSet) (any, error) {
	vendor, err := r.resolveVendorName(ctx, p.Str("vendor"))
	if err != nil {
		return nil, err
	}
	account, err := r.resolver.Resolve(ctx, ledger.EntityAccount, p.Str("account"))
	if err != nil {
		return nil, err
	}

	billIDs := p.StrList("bill_ids")
	amount := p.Float("amount")
	if len(billIDs) == 0 {
		open, err := r.backend.SearchTransactions(ctx, ledger.KindBill, ledger.SearchFilter{Entity: vendor})
		if err != nil {
			return nil, common.BackendError("search open bills", err)
		}
		for _, bill := range open {
			if bill.IsPaid {
				continue
			}
			billIDs = append(billIDs, bill.LedgerID)
			amount += bill.Amount
		}
		if len(billIDs) == 0 {
			return nil, common.NewError(common.ErrEntityNotFound, "no open bills for vendor %q", vendor)
		}
	}
	if err := common.ValidatePositiveAmount(amount, "amount"); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Payee:     vendor,
		Amount:    amount,
		Date:      txnDate(p),
		Account:   account.Name,
		CheckNum:  p.Str("check_number"),
		LinkedIDs: billIDs,
	}
	ledgerID, err := r.posting.Post(ctx, ledger.KindBillPayment, txn, services.PostOptions{
		Force:          p.Bool("force"),
		Reason:         "PAY_BILLS force flag",
		ToleranceCents: r.cfg.AmountToleranceCts,
		DateWindowDays: r.cfg.DateWindowDays,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"payment_id": ledgerID, "amount": amount, "bills_paid": billIDs}, nil
}

func (r *Router) createBillPayment(ctx context.Context, p *ParamSet) (any, error) {
	vendor, err := r.resolveVendorName(ctx, p.Str("vendor"))
	if err != nil {
		return nil, err
	}
	account, err := r.resolver.Resolve(ctx, ledger.EntityAccount, p.Str("account"))
	if err != nil {
		return nil, err
	}
	amount := p.Float("amount")
	if err := common.ValidatePositiveAmount(amount, "amount"); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Payee:     vendor,
		Amount:    amount,
		Date:      txnDate(p),
		Memo:      p.Str("memo"),
		Account:   account.Name,
		CheckNum:  p.Str("check_number"),
		LinkedIDs: p.StrList("bill_ids"),
	}
	ledgerID, err := r.posting.Post(ctx, ledger.KindBillPayment, txn, services.PostOptions{
		Force:          p.Bool("force"),
		Reason:         "CREATE_BILL_PAYMENT force flag",
		ToleranceCents: r.cfg.AmountToleranceCts,
		DateWindowDays: r.cfg.DateWindowDays,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"payment_id": ledgerID, "amount": amount, "vendor": vendor}, nil
}

func (r *Router) updateBillPayment(ctx context.Context, p *ParamSet) (any, error) {
	id := p.Str("payment_id")
	existing, err := r.backend.GetTransaction(ctx, ledger.KindBillPayment, id)
	if err != nil {
		return nil, err
	}
	if p.Has("amount") {
		if err := common.ValidatePositiveAmount(p.Float("amount"), "amount"); err != nil {
			return nil, err
		}
		existing.Amount = p.Float("amount")
	}
	if p.Has("date") {
		existing.Date = p.Date("date")
	}
	if p.Has("memo") {
		existing.Memo = p.Str("memo")
	}
	if err := r.backend.UpdateTransaction(ctx, ledger.KindBillPayment, id, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// resolvePayee tries vendor first, then other names, then customers,
// the order a check payee is most likely to live in.
func (r *Router) resolvePayee(ctx context.Context, name string) (string, error) {
	if err := common.ValidateRequiredString(name, "payee"); err != nil {
		return "", err
	}
	var lastErr error
	for _, kind := range []ledger.EntityKind{ledger.EntityVendor, ledger.EntityOtherName, ledger.EntityCustomer} {
		ref, err := r.resolver.Resolve(ctx, kind, name)
		if err == nil {
			return ref.Name, nil
		}
		if common.KindOf(err) == common.ErrAmbiguousEntity {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}
