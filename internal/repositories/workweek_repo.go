package repositories

import (
	"context"

	"ledgerdesk/internal/models"
)

type WorkWeekRepository interface {
	GetWeek(ctx context.Context, vendor, weekRef string) (*models.WorkWeek, error)
	UpsertDay(ctx context.Context, vendor, weekRef string, day models.WorkDay) error
	DeleteDay(ctx context.Context, vendor, weekRef string, day models.Weekday) (bool, error)
	DeleteWeek(ctx context.Context, vendor, weekRef string) error
	ListWeek(ctx context.Context, weekRef string) ([]*models.WorkWeek, error)
}

type workWeekRepo struct {
	db Database
}

func NewWorkWeekRepo(db Database) WorkWeekRepository {
	return &workWeekRepo{db: db}
}

func (r *workWeekRepo) GetWeek(ctx context.Context, vendor, weekRef string) (*models.WorkWeek, error) {
	query := `
		SELECT day, quantity, item, job, cost, description
		FROM work_days
		WHERE vendor = $1 AND week_ref = $2
		ORDER BY day
	`
	rows, err := r.db.Query(ctx, query, vendor, weekRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	week := &models.WorkWeek{Vendor: vendor, WeekRef: weekRef, Days: map[models.Weekday]models.WorkDay{}}
	for rows.Next() {
		var d models.WorkDay
		var dayIdx int
		if err := rows.Scan(&dayIdx, &d.Quantity, &d.Item, &d.Job, &d.Cost, &d.Desc); err != nil {
			return nil, err
		}
		d.Day = models.Weekday(dayIdx)
		week.Days[d.Day] = d
	}
	return week, rows.Err()
}

func (r *workWeekRepo) UpsertDay(ctx context.Context, vendor, weekRef string, day models.WorkDay) error {
	query := `
		INSERT INTO work_days (vendor, week_ref, day, quantity, item, job, cost, description, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (vendor, week_ref, day)
		DO UPDATE SET quantity = $4, item = $5, job = $6, cost = $7, description = $8, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, vendor, weekRef, int(day.Day), day.Quantity, day.Item, day.Job, day.Cost, day.Desc)
	return err
}

// DeleteDay reports whether a row existed. Deleting an absent day is not
// an error at this layer either.
func (r *workWeekRepo) DeleteDay(ctx context.Context, vendor, weekRef string, day models.Weekday) (bool, error) {
	query := `DELETE FROM work_days WHERE vendor = $1 AND week_ref = $2 AND day = $3`
	tag, err := r.db.Exec(ctx, query, vendor, weekRef, int(day))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *workWeekRepo) DeleteWeek(ctx context.Context, vendor, weekRef string) error {
	query := `DELETE FROM work_days WHERE vendor = $1 AND week_ref = $2`
	_, err := r.db.Exec(ctx, query, vendor, weekRef)
	return err
}

func (r *workWeekRepo) ListWeek(ctx context.Context, weekRef string) ([]*models.WorkWeek, error) {
	query := `
		SELECT vendor, day, quantity, item, job, cost, description
		FROM work_days
		WHERE week_ref = $1
		ORDER BY vendor, day
	`
	rows, err := r.db.Query(ctx, query, weekRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byVendor := map[string]*models.WorkWeek{}
	var order []string
	for rows.Next() {
		var vendor string
		var d models.WorkDay
		var dayIdx int
		if err := rows.Scan(&vendor, &dayIdx, &d.Quantity, &d.Item, &d.Job, &d.Cost, &d.Desc); err != nil {
			return nil, err
		}
		d.Day = models.Weekday(dayIdx)
		week, ok := byVendor[vendor]
		if !ok {
			week = &models.WorkWeek{Vendor: vendor, WeekRef: weekRef, Days: map[models.Weekday]models.WorkDay{}}
			byVendor[vendor] = week
			order = append(order, vendor)
		}
		week.Days[d.Day] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	weeks := make([]*models.WorkWeek, 0, len(order))
	for _, vendor := range order {
		weeks = append(weeks, byVendor[vendor])
	}
	return weeks, nil
}
