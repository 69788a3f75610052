package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/models"
	"ledgerdesk/internal/repositories"
)

// WorkWeekService owns the per-vendor, per-ISO-week labor day model.
// Edits to the same vendor-week are mutually exclusive; edits to
// different vendor-weeks run in parallel. Materializing never mutates.
type WorkWeekService interface {
	GetWeek(ctx context.Context, vendor, weekRef string) (*models.WorkWeek, error)
	AddDays(ctx context.Context, vendor, weekRef string, entries []models.WorkDay) (*models.WorkWeek, error)
	UpdateDays(ctx context.Context, vendor, weekRef string, entries []models.WorkDay) (*models.WorkWeek, error)
	RemoveDays(ctx context.Context, vendor, weekRef string, days []models.Weekday) (*models.WorkWeek, error)
	ClearWeek(ctx context.Context, vendor, weekRef string) error
	MaterializeBill(ctx context.Context, vendor, weekRef string) (*models.Transaction, error)
	WeekSummary(ctx context.Context, weekRef string) ([]*models.WorkWeek, error)
}

type workWeekService struct {
	repo   repositories.WorkWeekRepository
	policy PolicyService
	locks  *keyedMutex
}

func NewWorkWeekService(repo repositories.WorkWeekRepository, policy PolicyService) WorkWeekService {
	return &workWeekService{repo: repo, policy: policy, locks: newKeyedMutex()}
}

func weekKey(vendor, weekRef string) string {
	return common.NormalizePayee(vendor) + "|" + weekRef
}

func (s *workWeekService) GetWeek(ctx context.Context, vendor, weekRef string) (*models.WorkWeek, error) {
	week, err := s.repo.GetWeek(ctx, vendor, weekRef)
	if err != nil {
		return nil, common.BackendError("load work week", err)
	}
	return week, nil
}

// validateEntries rejects duplicate weekdays within one call. Across
// calls the last writer wins, but a single call naming the same day twice
// cannot be resolved safely.
func validateEntries(entries []models.WorkDay) error {
	if len(entries) == 0 {
		return common.FieldError(common.ErrMissingParameter, "days", "at least one day entry is required")
	}
	seen := map[models.Weekday]bool{}
	for _, e := range entries {
		if e.Day < models.Monday || e.Day > models.Sunday {
			return common.FieldError(common.ErrInvalidParameter, "day", "invalid day of week %d", int(e.Day))
		}
		if seen[e.Day] {
			return common.FieldError(common.ErrInvalidParameter, "days", "day %s appears more than once in a single call", e.Day)
		}
		seen[e.Day] = true
		if e.Quantity < 0 {
			return common.FieldError(common.ErrInvalidParameter, "quantity", "quantity for %s cannot be negative", e.Day)
		}
		if e.Cost < 0 {
			return common.FieldError(common.ErrInvalidParameter, "cost", "cost for %s cannot be negative", e.Day)
		}
		if e.Item == "" {
			return common.FieldError(common.ErrMissingParameter, "item", "item must be specified for %s; there is no default item", e.Day)
		}
	}
	return nil
}

// applyDefaults fills missing cost from vendor policy. A day with neither
// a cost nor a policy default is a policy violation, not a silent zero.
func (s *workWeekService) applyDefaults(vendor string, entries []models.WorkDay) ([]models.WorkDay, error) {
	defaults, _ := s.policy.Snapshot().VendorDefaults(vendor)
	out := make([]models.WorkDay, len(entries))
	for i, e := range entries {
		if e.Quantity == 0 {
			e.Quantity = 1
		}
		if e.Cost == 0 {
			if defaults.DefaultDailyCost == 0 {
				return nil, common.NewError(common.ErrPolicyViolation,
					"no cost given for %s and vendor %q has no default daily cost", e.Day, vendor)
			}
			e.Cost = defaults.DefaultDailyCost
		}
		out[i] = e
	}
	return out, nil
}

func (s *workWeekService) AddDays(ctx context.Context, vendor, weekRef string, entries []models.WorkDay) (*models.WorkWeek, error) {
	if err := validateEntries(entries); err != nil {
		return nil, err
	}
	entries, err := s.applyDefaults(vendor, entries)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(weekKey(vendor, weekRef))
	defer unlock()

	for _, e := range entries {
		if err := s.repo.UpsertDay(ctx, vendor, weekRef, e); err != nil {
			return nil, common.BackendError("save work day", err)
		}
	}
	return s.GetWeek(ctx, vendor, weekRef)
}

// UpdateDays shares add's overwrite semantics: updating a day that does
// not exist yet creates it.
func (s *workWeekService) UpdateDays(ctx context.Context, vendor, weekRef string, entries []models.WorkDay) (*models.WorkWeek, error) {
	return s.AddDays(ctx, vendor, weekRef, entries)
}

// RemoveDays is tolerant: removing a day that is not present succeeds
// silently.
func (s *workWeekService) RemoveDays(ctx context.Context, vendor, weekRef string, days []models.Weekday) (*models.WorkWeek, error) {
	seen := map[models.Weekday]bool{}
	for _, d := range days {
		if d < models.Monday || d > models.Sunday {
			return nil, common.FieldError(common.ErrInvalidParameter, "remove_days", "invalid day of week %d", int(d))
		}
		if seen[d] {
			return nil, common.FieldError(common.ErrInvalidParameter, "remove_days", "day %s appears more than once in a single call", d)
		}
		seen[d] = true
	}

	unlock := s.locks.Lock(weekKey(vendor, weekRef))
	defer unlock()

	for _, d := range days {
		if _, err := s.repo.DeleteDay(ctx, vendor, weekRef, d); err != nil {
			return nil, common.BackendError("remove work day", err)
		}
	}
	return s.GetWeek(ctx, vendor, weekRef)
}

// ClearWeek drops all days for a vendor-week. Called after the
// corresponding bill is confirmed posted.
func (s *workWeekService) ClearWeek(ctx context.Context, vendor, weekRef string) error {
	unlock := s.locks.Lock(weekKey(vendor, weekRef))
	defer unlock()

	if err := s.repo.DeleteWeek(ctx, vendor, weekRef); err != nil {
		return common.BackendError("clear work week", err)
	}
	return nil
}

// MaterializeBill turns the current week state into a bill transaction.
// It is a pure read: the stored week is untouched, and calling it twice
// on the same state yields the same bill.
func (s *workWeekService) MaterializeBill(ctx context.Context, vendor, weekRef string) (*models.Transaction, error) {
	week, err := s.GetWeek(ctx, vendor, weekRef)
	if err != nil {
		return nil, err
	}
	if len(week.Days) == 0 {
		return nil, common.NewError(common.ErrEntityNotFound, "no work days recorded for %s in week %s", vendor, weekRef)
	}

	weekStart, err := models.ParseWeekRef(weekRef)
	if err != nil {
		return nil, common.FieldError(common.ErrInvalidParameter, "week", "%v", err)
	}
	weekEnd := weekStart.AddDate(0, 0, 6)

	txn := &models.Transaction{
		Payee:     vendor,
		Date:      weekEnd,
		RefNumber: workBillRef(vendor, s.policy.Snapshot(), weekStart, weekEnd),
		Memo:      fmt.Sprintf("Work week %s", weekRef),
	}
	for _, d := range week.SortedDays() {
		desc := d.Desc
		if desc == "" {
			desc = fmt.Sprintf("%s %s", capitalize(d.Day.String()), weekStart.AddDate(0, 0, int(d.Day)).Format("01/02"))
		}
		txn.LineItems = append(txn.LineItems, models.LineItem{
			Description: desc,
			Quantity:    d.Quantity,
			UnitCost:    d.Cost,
			Item:        d.Item,
			Job:         d.Job,
		})
	}
	txn.Amount = txn.LineTotal()
	return txn, nil
}

func (s *workWeekService) WeekSummary(ctx context.Context, weekRef string) ([]*models.WorkWeek, error) {
	weeks, err := s.repo.ListWeek(ctx, weekRef)
	if err != nil {
		return nil, common.BackendError("load week summary", err)
	}
	return weeks, nil
}

// workBillRef builds the reference number the way the back office writes
// them by hand: vendor initials plus the week span.
func workBillRef(vendor string, snap *PolicySnapshot, start, end time.Time) string {
	initials := ""
	if policy, ok := snap.VendorDefaults(vendor); ok && policy.Initials != "" {
		initials = policy.Initials
	} else {
		for _, part := range strings.Fields(vendor) {
			initials += strings.ToUpper(part[:1])
		}
	}
	return fmt.Sprintf("%s_%s-%s", initials, start.Format("01/02"), end.Format("01/02/06"))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
