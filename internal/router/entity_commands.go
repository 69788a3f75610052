package router

import (
	"context"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
)

func (r *Router) registerEntityCommands() {
	searchSchema := []paramSpec{opt("query", typeString, "")}

	r.register("SEARCH_VENDORS", nil, searchSchema, r.searchEntities(ledger.EntityVendor))
	r.register("SEARCH_CUSTOMERS", nil, searchSchema, r.searchEntities(ledger.EntityCustomer))
	r.register("SEARCH_ITEMS", nil, searchSchema, r.searchEntities(ledger.EntityItem))
	r.register("SEARCH_ACCOUNTS", nil, searchSchema, r.searchEntities(ledger.EntityAccount))
	r.register("SEARCH_OTHER_NAMES", nil, searchSchema, r.searchEntities(ledger.EntityOtherName))
	r.register("SEARCH_PAYEES", nil, searchSchema, r.searchPayees)

	r.register("CREATE_VENDOR",
		[]paramSpec{req("name", typeString)},
		[]paramSpec{
			opt("company_name", typeString, nil),
			opt("notes", typeString, nil),
			opt("daily_cost", typeFloat, nil),
		},
		r.createVendor)

	r.register("UPDATE_VENDOR",
		[]paramSpec{req("name", typeString)},
		[]paramSpec{
			opt("company_name", typeString, nil),
			opt("notes", typeString, nil),
		},
		r.updateEntity(ledger.EntityVendor))

	r.register("CREATE_CUSTOMER",
		[]paramSpec{req("name", typeString)},
		[]paramSpec{
			opt("company_name", typeString, nil),
			opt("parent", typeString, nil),
			opt("notes", typeString, nil),
		},
		r.createEntity(ledger.EntityCustomer))

	r.register("UPDATE_CUSTOMER",
		[]paramSpec{req("name", typeString)},
		[]paramSpec{
			opt("company_name", typeString, nil),
			opt("notes", typeString, nil),
		},
		r.updateEntity(ledger.EntityCustomer))

	r.register("CREATE_OTHER_NAME",
		[]paramSpec{req("name", typeString)},
		[]paramSpec{opt("notes", typeString, nil)},
		r.createEntity(ledger.EntityOtherName))

	r.register("CREATE_ITEM",
		[]paramSpec{req("name", typeString)},
		[]paramSpec{
			opt("item_type", typeString, "Service"),
			opt("account", typeString, nil),
			opt("cost", typeFloat, nil),
			opt("parent", typeString, nil),
		},
		r.createItem)

	r.register("UPDATE_ITEM",
		[]paramSpec{req("name", typeString)},
		[]paramSpec{
			opt("cost", typeFloat, nil),
			opt("notes", typeString, nil),
		},
		r.updateEntity(ledger.EntityItem))

	r.register("CREATE_ACCOUNT",
		[]paramSpec{req("name", typeString), req("account_type", typeString)},
		[]paramSpec{opt("parent", typeString, nil)},
		r.createAccount)

	r.register("UPDATE_ACCOUNT",
		[]paramSpec{req("name", typeString)},
		[]paramSpec{opt("notes", typeString, nil)},
		r.updateEntity(ledger.EntityAccount))
}

func (r *Router) searchEntities(kind ledger.EntityKind) Handler {
	return func(ctx context.Context, p *ParamSet) (any, error) {
		refs, err := r.resolver.Candidates(ctx, kind, p.Str("query"))
		if err != nil {
			return nil, err
		}
		return refs, nil
	}
}

// searchPayees spans every entity list a check payee can come from.
func (r *Router) searchPayees(ctx context.Context, p *ParamSet) (any, error) {
	query := p.Str("query")
	var out []models.EntityRef
	for _, kind := range []ledger.EntityKind{ledger.EntityVendor, ledger.EntityOtherName, ledger.EntityCustomer} {
		refs, err := r.resolver.Candidates(ctx, kind, query)
		if err != nil {
			return nil, err
		}
		out = append(out, refs...)
	}
	return out, nil
}

func (r *Router) createEntity(kind ledger.EntityKind) Handler {
	return func(ctx context.Context, p *ParamSet) (any, error) {
		fields := ledger.EntityFields{
			Name:        p.Str("name"),
			CompanyName: p.Str("company_name"),
			Parent:      p.Str("parent"),
			Notes:       p.Str("notes"),
		}
		ref, err := r.backend.CreateEntity(ctx, kind, fields)
		if err != nil {
			return nil, err
		}
		r.resolver.Invalidate(ctx, kind)
		return ref, nil
	}
}

func (r *Router) updateEntity(kind ledger.EntityKind) Handler {
	return func(ctx context.Context, p *ParamSet) (any, error) {
		ref, err := r.resolver.Resolve(ctx, kind, p.Str("name"))
		if err != nil {
			return nil, err
		}
		fields := ledger.EntityFields{
			Name:        ref.Name,
			CompanyName: p.Str("company_name"),
			Notes:       p.Str("notes"),
			Cost:        p.Float("cost"),
		}
		if err := r.backend.UpdateEntity(ctx, kind, ref.ID, fields); err != nil {
			return nil, err
		}
		r.resolver.Invalidate(ctx, kind)
		return ref, nil
	}
}

// createVendor also seeds vendor policy when a daily cost is supplied, so
// work-bill defaults apply from the first week.
func (r *Router) createVendor(ctx context.Context, p *ParamSet) (any, error) {
	ref, err := r.backend.CreateEntity(ctx, ledger.EntityVendor, ledger.EntityFields{
		Name:        p.Str("name"),
		CompanyName: p.Str("company_name"),
		Notes:       p.Str("notes"),
	})
	if err != nil {
		return nil, err
	}
	r.resolver.Invalidate(ctx, ledger.EntityVendor)

	if cost := p.Float("daily_cost"); cost > 0 {
		if err := r.policy.SetVendorDailyCost(ctx, ref.Name, cost); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

func (r *Router) createItem(ctx context.Context, p *ParamSet) (any, error) {
	if account := p.Str("account"); account != "" {
		if _, err := r.resolver.Resolve(ctx, ledger.EntityAccount, account); err != nil {
			return nil, err
		}
	}
	ref, err := r.backend.CreateEntity(ctx, ledger.EntityItem, ledger.EntityFields{
		Name:     p.Str("name"),
		ItemType: p.Str("item_type"),
		Parent:   p.Str("parent"),
		Cost:     p.Float("cost"),
	})
	if err != nil {
		return nil, err
	}
	r.resolver.Invalidate(ctx, ledger.EntityItem)
	return ref, nil
}

func (r *Router) createAccount(ctx context.Context, p *ParamSet) (any, error) {
	accountType := p.Str("account_type")
	if !validAccountTypes[accountType] {
		return nil, common.FieldError(common.ErrInvalidParameter, "account_type",
			"unknown account type %q", accountType)
	}
	ref, err := r.backend.CreateEntity(ctx, ledger.EntityAccount, ledger.EntityFields{
		Name:        p.Str("name"),
		AccountType: accountType,
		Parent:      p.Str("parent"),
	})
	if err != nil {
		return nil, err
	}
	r.resolver.Invalidate(ctx, ledger.EntityAccount)
	return ref, nil
}

var validAccountTypes = map[string]bool{
	"Bank":                  true,
	"AccountsPayable":       true,
	"AccountsReceivable":    true,
	"CostOfGoodsSold":       true,
	"CreditCard":            true,
	"Expense":               true,
	"Income":                true,
	"FixedAsset":            true,
	"OtherAsset":            true,
	"OtherCurrentAsset":     true,
	"OtherCurrentLiability": true,
	"LongTermLiability":     true,
	"Equity":                true,
}
