package services

import (
	"context"
	"sync"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/models"
	"ledgerdesk/internal/repositories"
)

// PolicySnapshot is an immutable view of the per-vendor configuration,
// taken at construction (or explicit reload) time. Commands read the
// snapshot; nothing mutates it mid-request.
type PolicySnapshot struct {
	vendors map[string]models.VendorPolicy
}

// VendorDefaults looks up policy by normalized vendor name. The second
// return reports whether the vendor is configured at all.
func (s *PolicySnapshot) VendorDefaults(vendor string) (models.VendorPolicy, bool) {
	policy, ok := s.vendors[common.NormalizePayee(vendor)]
	return policy, ok
}

// PolicyService loads and refreshes policy snapshots and writes through
// policy changes (SET_VENDOR_DAILY_COST).
type PolicyService interface {
	Snapshot() *PolicySnapshot
	Reload(ctx context.Context) error
	SetVendorDailyCost(ctx context.Context, vendor string, dailyCost float64) error
}

type policyService struct {
	repo repositories.PolicyRepository

	mu   sync.RWMutex
	snap *PolicySnapshot
}

func NewPolicyService(repo repositories.PolicyRepository) PolicyService {
	return &policyService{repo: repo, snap: &PolicySnapshot{vendors: map[string]models.VendorPolicy{}}}
}

func (s *policyService) Snapshot() *PolicySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *policyService) Reload(ctx context.Context) error {
	policies, err := s.repo.ListVendorPolicies(ctx)
	if err != nil {
		return common.BackendError("load vendor policies", err)
	}

	vendors := make(map[string]models.VendorPolicy, len(policies))
	for _, p := range policies {
		vendors[common.NormalizePayee(p.Vendor)] = *p
	}

	s.mu.Lock()
	s.snap = &PolicySnapshot{vendors: vendors}
	s.mu.Unlock()
	return nil
}

func (s *policyService) SetVendorDailyCost(ctx context.Context, vendor string, dailyCost float64) error {
	if err := common.ValidatePositiveAmount(dailyCost, "daily_cost"); err != nil {
		return err
	}

	existing, err := s.repo.GetVendorPolicy(ctx, common.NormalizePayee(vendor))
	if err != nil {
		return common.BackendError("read vendor policy", err)
	}
	policy := models.VendorPolicy{Vendor: common.NormalizePayee(vendor)}
	if existing != nil {
		policy = *existing
	}
	policy.DefaultDailyCost = dailyCost

	if err := s.repo.UpsertVendorPolicy(ctx, &policy); err != nil {
		return common.BackendError("save vendor policy", err)
	}
	return s.Reload(ctx)
}
