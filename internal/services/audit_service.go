package services

import (
	"context"
	"log"
	"time"

	"ledgerdesk/internal/models"
	"ledgerdesk/internal/repositories"
)

// AuditService records executed commands and operator decisions. Writing
// the trail never blocks or fails the command it describes.
type AuditService interface {
	LogCommand(ctx context.Context, command, detail, outcome string)
	LogOverride(ctx context.Context, actor, fingerprint, detail string)
	LogDecision(ctx context.Context, actor, action, detail string)
	Recent(ctx context.Context, since time.Time, limit int) ([]*models.AuditEntry, error)
	ByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditEntry, error)
}

type auditService struct {
	repo repositories.AuditLogsRepository
}

func NewAuditService(repo repositories.AuditLogsRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) write(ctx context.Context, entry *models.AuditEntry) {
	if err := s.repo.Create(ctx, entry); err != nil {
		log.Printf("WARN: audit write failed for %s: %v", entry.Action, err)
	}
}

func (s *auditService) LogCommand(ctx context.Context, command, detail, outcome string) {
	s.write(ctx, &models.AuditEntry{
		Action:  "command:" + command,
		Detail:  detail,
		Outcome: outcome,
	})
}

// LogOverride records an explicit duplicate override. Overrides are the
// one path past a duplicate halt, so they always land in the trail.
func (s *auditService) LogOverride(ctx context.Context, actor, fingerprint, detail string) {
	s.write(ctx, &models.AuditEntry{
		Action:  "duplicate_override",
		Actor:   actor,
		Detail:  "fingerprint " + fingerprint + ": " + detail,
		Outcome: "overridden",
	})
}

func (s *auditService) LogDecision(ctx context.Context, actor, action, detail string) {
	s.write(ctx, &models.AuditEntry{
		Action:  action,
		Actor:   actor,
		Detail:  detail,
		Outcome: "recorded",
	})
}

func (s *auditService) Recent(ctx context.Context, since time.Time, limit int) ([]*models.AuditEntry, error) {
	return s.repo.ListSince(ctx, since, limit)
}

// ByAction pages through the trail filtered to one action. An empty
// action returns every entry.
func (s *auditService) ByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditEntry, error) {
	return s.repo.List(ctx, action, limit, offset)
}
