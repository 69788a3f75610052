package router

import (
	"context"
	"fmt"
	"time"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
	"ledgerdesk/internal/services"
)

// defaultLaborItem is used for the days_worked shorthand only; explicit
// day entries must always name their item.
const defaultLaborItem = "Labor"

func (r *Router) registerWorkBillCommands() {
	r.register("GET_WORK_BILL",
		[]paramSpec{req("vendor", typeString)},
		[]paramSpec{opt("week", typeString, nil)},
		r.getWorkBill)

	r.register("CREATE_WORK_BILL",
		[]paramSpec{req("vendor", typeString)},
		[]paramSpec{
			opt("week", typeString, nil),
			opt("days_worked", typeInt, nil),
			opt("daily_cost", typeFloat, nil),
			opt("job", typeString, nil),
			opt("item", typeString, nil),
			opt("days", typeDayEntries, nil),
			opt("force", typeBool, false),
		},
		r.createWorkBill)

	r.register("UPDATE_WORK_BILL",
		[]paramSpec{req("vendor", typeString)},
		[]paramSpec{
			opt("week", typeString, nil),
			opt("add_days", typeDayEntries, nil),
			opt("update_days", typeDayEntries, nil),
			opt("remove_days", typeStringList, nil),
		},
		r.updateWorkBill)

	r.register("DELETE_BILL",
		nil,
		[]paramSpec{
			opt("bill_id", typeString, nil),
			opt("ref_number", typeString, nil),
			opt("vendor", typeString, nil),
		},
		r.deleteBill)

	r.register("GET_WORK_WEEK_SUMMARY",
		nil,
		[]paramSpec{opt("week", typeString, nil)},
		r.getWorkWeekSummary)

	r.register("SET_VENDOR_DAILY_COST",
		[]paramSpec{req("vendor", typeString), req("daily_cost", typeFloat)},
		nil,
		r.setVendorDailyCost)
}

// weekRef resolves the optional week parameter, defaulting to the current
// ISO week.
func (r *Router) weekRef(p *ParamSet) (string, error) {
	ref := p.Str("week")
	if ref == "" {
		return models.ISOWeekRef(time.Now()), nil
	}
	if _, err := models.ParseWeekRef(ref); err != nil {
		return "", common.FieldError(common.ErrInvalidParameter, "week", "%v", err)
	}
	return ref, nil
}

type workBillView struct {
	Week    *models.WorkWeek    `json:"week"`
	Preview *models.Transaction `json:"preview,omitempty"`
	Total   float64             `json:"total"`
}

func (r *Router) getWorkBill(ctx context.Context, p *ParamSet) (any, error) {
	vendor, err := r.resolveVendorName(ctx, p.Str("vendor"))
	if err != nil {
		return nil, err
	}
	ref, err := r.weekRef(p)
	if err != nil {
		return nil, err
	}

	week, err := r.workweek.GetWeek(ctx, vendor, ref)
	if err != nil {
		return nil, err
	}
	view := &workBillView{Week: week, Total: week.Total()}
	if len(week.Days) > 0 {
		preview, err := r.workweek.MaterializeBill(ctx, vendor, ref)
		if err != nil {
			return nil, err
		}
		view.Preview = preview
	}
	return view, nil
}

// createWorkBill accepts either the days_worked shorthand (N consecutive
// days starting Monday at one daily cost) or explicit day entries, then
// materializes and posts the bill through the duplicate guard. The work
// week itself is left in place so follow-up edits and reads see it.
func (r *Router) createWorkBill(ctx context.Context, p *ParamSet) (any, error) {
	vendor, err := r.resolveVendorName(ctx, p.Str("vendor"))
	if err != nil {
		return nil, err
	}
	ref, err := r.weekRef(p)
	if err != nil {
		return nil, err
	}

	entries := p.DayEntries("days")
	if n := p.Int("days_worked"); n > 0 {
		if len(entries) > 0 {
			return nil, common.FieldError(common.ErrInvalidParameter, "days_worked",
				"days_worked and days are mutually exclusive")
		}
		if n > 7 {
			return nil, common.FieldError(common.ErrInvalidParameter, "days_worked",
				"days_worked cannot exceed 7, got %d", n)
		}
		item := p.Str("item")
		if item == "" {
			item = defaultLaborItem
		}
		for d := 0; d < n; d++ {
			entries = append(entries, models.WorkDay{
				Day:      models.Weekday(d),
				Quantity: 1,
				Item:     item,
				Job:      p.Str("job"),
				Cost:     p.Float("daily_cost"),
			})
		}
	}
	if len(entries) == 0 {
		return nil, common.FieldError(common.ErrMissingParameter, "days",
			"either days_worked or days must be supplied")
	}

	if _, err := r.workweek.AddDays(ctx, vendor, ref, entries); err != nil {
		return nil, err
	}

	txn, err := r.workweek.MaterializeBill(ctx, vendor, ref)
	if err != nil {
		return nil, err
	}

	ledgerID, err := r.posting.Post(ctx, ledger.KindBill, txn, services.PostOptions{
		Force:          p.Bool("force"),
		Reason:         "CREATE_WORK_BILL force flag",
		ToleranceCents: r.cfg.AmountToleranceCts,
		DateWindowDays: r.cfg.DateWindowDays,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"bill_id":    ledgerID,
		"ref_number": txn.RefNumber,
		"amount":     txn.Amount,
		"week":       ref,
	}, nil
}

func (r *Router) updateWorkBill(ctx context.Context, p *ParamSet) (any, error) {
	vendor, err := r.resolveVendorName(ctx, p.Str("vendor"))
	if err != nil {
		return nil, err
	}
	ref, err := r.weekRef(p)
	if err != nil {
		return nil, err
	}

	addDays := p.DayEntries("add_days")
	updateDays := p.DayEntries("update_days")
	removeDays := p.StrList("remove_days")
	if len(addDays) == 0 && len(updateDays) == 0 && len(removeDays) == 0 {
		return nil, common.FieldError(common.ErrMissingParameter, "add_days",
			"supply at least one of add_days, update_days, remove_days")
	}

	if len(addDays) > 0 {
		if _, err := r.workweek.AddDays(ctx, vendor, ref, addDays); err != nil {
			return nil, err
		}
	}
	if len(updateDays) > 0 {
		if _, err := r.workweek.UpdateDays(ctx, vendor, ref, updateDays); err != nil {
			return nil, err
		}
	}
	if len(removeDays) > 0 {
		days := make([]models.Weekday, 0, len(removeDays))
		for _, name := range removeDays {
			day, err := models.ParseWeekday(name)
			if err != nil {
				return nil, common.FieldError(common.ErrInvalidParameter, "remove_days", "%v", err)
			}
			days = append(days, day)
		}
		if _, err := r.workweek.RemoveDays(ctx, vendor, ref, days); err != nil {
			return nil, err
		}
	}

	week, err := r.workweek.GetWeek(ctx, vendor, ref)
	if err != nil {
		return nil, err
	}
	return &workBillView{Week: week, Total: week.Total()}, nil
}

// deleteBill looks the bill up by id or by ref number, then issues the
// delete with the canonical "Bill" discriminator.
func (r *Router) deleteBill(ctx context.Context, p *ParamSet) (any, error) {
	billID := p.Str("bill_id")
	if billID == "" {
		refNumber := p.Str("ref_number")
		if refNumber == "" {
			return nil, common.FieldError(common.ErrMissingParameter, "bill_id",
				"either bill_id or ref_number is required")
		}
		filter := ledger.SearchFilter{RefNumber: refNumber}
		if vendor := p.Str("vendor"); vendor != "" {
			resolved, err := r.resolveVendorName(ctx, vendor)
			if err != nil {
				return nil, err
			}
			filter.Entity = resolved
		}
		matches, err := r.backend.SearchTransactions(ctx, ledger.KindBill, filter)
		if err != nil {
			return nil, common.BackendError("search bills", err)
		}
		switch len(matches) {
		case 0:
			return nil, common.NewError(common.ErrEntityNotFound, "no bill with ref number %q", refNumber)
		case 1:
			billID = matches[0].LedgerID
		default:
			ids := make([]string, len(matches))
			for i, m := range matches {
				ids[i] = fmt.Sprintf("%s (%s, %s)", m.LedgerID, m.Payee, common.FormatMoney(m.Amount))
			}
			return nil, &common.Error{
				Kind:       common.ErrAmbiguousEntity,
				Message:    fmt.Sprintf("ref number %q matches %d bills", refNumber, len(matches)),
				Candidates: ids,
			}
		}
	}

	if err := r.backend.DeleteTransaction(ctx, ledger.KindBill, billID); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": billID}, nil
}

func (r *Router) getWorkWeekSummary(ctx context.Context, p *ParamSet) (any, error) {
	ref, err := r.weekRef(p)
	if err != nil {
		return nil, err
	}
	weeks, err := r.workweek.WeekSummary(ctx, ref)
	if err != nil {
		return nil, err
	}

	type vendorSummary struct {
		Vendor string  `json:"vendor"`
		Days   int     `json:"days"`
		Total  float64 `json:"total"`
	}
	summaries := make([]vendorSummary, 0, len(weeks))
	var grand float64
	for _, w := range weeks {
		summaries = append(summaries, vendorSummary{Vendor: w.Vendor, Days: len(w.Days), Total: w.Total()})
		grand += w.Total()
	}
	return map[string]any{"week": ref, "vendors": summaries, "total": grand}, nil
}

func (r *Router) setVendorDailyCost(ctx context.Context, p *ParamSet) (any, error) {
	vendor, err := r.resolveVendorName(ctx, p.Str("vendor"))
	if err != nil {
		return nil, err
	}
	cost := p.Float("daily_cost")
	if err := common.ValidatePositiveAmount(cost, "daily_cost"); err != nil {
		return nil, err
	}
	if err := r.policy.SetVendorDailyCost(ctx, vendor, cost); err != nil {
		return nil, err
	}
	return map[string]any{"vendor": vendor, "daily_cost": cost}, nil
}

// resolveVendorName resolves a fuzzy vendor name to its canonical ledger
// name. Zero matches and ambiguous matches both fail; the router never
// guesses.
func (r *Router) resolveVendorName(ctx context.Context, name string) (string, error) {
	if err := common.ValidateRequiredString(name, "vendor"); err != nil {
		return "", err
	}
	ref, err := r.resolver.Resolve(ctx, ledger.EntityVendor, name)
	if err != nil {
		return "", err
	}
	return ref.Name, nil
}
