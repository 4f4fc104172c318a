package service

import (
	"context"

	"github.com/pretty1020/lept-reviewer/internal/model"
	"github.com/pretty1020/lept-reviewer/internal/repository"
)

// AuditService exposes the admin action log with a bounded page size.
type AuditService interface {
	ListActions(ctx context.Context) ([]model.AdminAction, error)
}

type auditService struct {
	audit    repository.AuditRepository
	pageSize int
}

func NewAuditService(audit repository.AuditRepository, pageSize int) AuditService {
	return &auditService{audit: audit, pageSize: pageSize}
}

func (s *auditService) ListActions(ctx context.Context) ([]model.AdminAction, error) {
	return s.audit.ListActions(ctx, s.pageSize)
}
