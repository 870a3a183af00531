package service

import (
	"context"

	"shipledger/internal/model"
	"shipledger/internal/repository"
)

type AuditService interface {
	ListLogs(ctx context.Context, page, limit int) ([]model.AuditLog, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

func (s *auditService) ListLogs(ctx context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	return s.auditRepo.List(ctx, page, limit)
}
