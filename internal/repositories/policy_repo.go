package repositories

import (
	"context"
	"errors"

	"ledgerdesk/internal/models"

	"github.com/jackc/pgx/v5"
)

type PolicyRepository interface {
	GetVendorPolicy(ctx context.Context, vendor string) (*models.VendorPolicy, error)
	UpsertVendorPolicy(ctx context.Context, policy *models.VendorPolicy) error
	ListVendorPolicies(ctx context.Context) ([]*models.VendorPolicy, error)
}

type policyRepo struct {
	db Database
}

func NewPolicyRepo(db Database) PolicyRepository {
	return &policyRepo{db: db}
}

func (r *policyRepo) GetVendorPolicy(ctx context.Context, vendor string) (*models.VendorPolicy, error) {
	query := `
		SELECT vendor, default_daily_cost, default_account, default_memo, initials
		FROM vendor_policies
		WHERE vendor = $1
	`
	policy := &models.VendorPolicy{}
	err := r.db.QueryRow(ctx, query, vendor).Scan(
		&policy.Vendor, &policy.DefaultDailyCost, &policy.DefaultAccount,
		&policy.DefaultMemo, &policy.Initials,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return policy, nil
}

func (r *policyRepo) UpsertVendorPolicy(ctx context.Context, policy *models.VendorPolicy) error {
	query := `
		INSERT INTO vendor_policies (vendor, default_daily_cost, default_account, default_memo, initials, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (vendor)
		DO UPDATE SET default_daily_cost = $2, default_account = $3, default_memo = $4, initials = $5, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, policy.Vendor, policy.DefaultDailyCost, policy.DefaultAccount, policy.DefaultMemo, policy.Initials)
	return err
}

func (r *policyRepo) ListVendorPolicies(ctx context.Context) ([]*models.VendorPolicy, error) {
	query := `
		SELECT vendor, default_daily_cost, default_account, default_memo, initials
		FROM vendor_policies
		ORDER BY vendor
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*models.VendorPolicy
	for rows.Next() {
		policy := &models.VendorPolicy{}
		if err := rows.Scan(&policy.Vendor, &policy.DefaultDailyCost, &policy.DefaultAccount, &policy.DefaultMemo, &policy.Initials); err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}
