package service

import (
	"context"
	"errors"
	"fmt"

	"shipledger/internal/model"
	"shipledger/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreatePartnerRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
	Note  string `json:"note"`
}

// PartnerService covers the import-side counterparties: goods suppliers and
// shipping companies.
type PartnerService interface {
	CreateSupplier(ctx context.Context, req CreatePartnerRequest) (*model.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*model.Supplier, error)
	ListSuppliers(ctx context.Context, search string, page, limit int) ([]model.Supplier, int64, error)

	CreateShippingCompany(ctx context.Context, req CreatePartnerRequest) (*model.ShippingCompany, error)
	GetShippingCompany(ctx context.Context, id string) (*model.ShippingCompany, error)
	ListShippingCompanies(ctx context.Context, search string, page, limit int) ([]model.ShippingCompany, int64, error)
}

type partnerService struct {
	supplierRepo repository.SupplierRepository
	companyRepo  repository.ShippingCompanyRepository
}

func NewPartnerService(supplierRepo repository.SupplierRepository, companyRepo repository.ShippingCompanyRepository) PartnerService {
	return &partnerService{supplierRepo: supplierRepo, companyRepo: companyRepo}
}

func (s *partnerService) CreateSupplier(ctx context.Context, req CreatePartnerRequest) (*model.Supplier, error) {
	supplier := &model.Supplier{
		Name:     req.Name,
		Phone:    req.Phone,
		Note:     req.Note,
		IsActive: true,
	}
	if err := s.supplierRepo.Create(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to create supplier: %w", err)
	}
	return supplier, nil
}

func (s *partnerService) GetSupplier(ctx context.Context, id string) (*model.Supplier, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrSupplierNotFound
	}
	supplier, err := s.supplierRepo.FindByID(ctx, parsed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSupplierNotFound
		}
		return nil, fmt.Errorf("failed to load supplier: %w", err)
	}
	return supplier, nil
}

func (s *partnerService) ListSuppliers(ctx context.Context, search string, page, limit int) ([]model.Supplier, int64, error) {
	return s.supplierRepo.List(ctx, search, page, limit)
}

func (s *partnerService) CreateShippingCompany(ctx context.Context, req CreatePartnerRequest) (*model.ShippingCompany, error) {
	company := &model.ShippingCompany{
		Name:     req.Name,
		Phone:    req.Phone,
		Note:     req.Note,
		IsActive: true,
	}
	if err := s.companyRepo.Create(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to create shipping company: %w", err)
	}
	return company, nil
}

func (s *partnerService) GetShippingCompany(ctx context.Context, id string) (*model.ShippingCompany, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrShippingCompanyNotFound
	}
	company, err := s.companyRepo.FindByID(ctx, parsed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShippingCompanyNotFound
		}
		return nil, fmt.Errorf("failed to load shipping company: %w", err)
	}
	return company, nil
}

func (s *partnerService) ListShippingCompanies(ctx context.Context, search string, page, limit int) ([]model.ShippingCompany, int64, error) {
	return s.companyRepo.List(ctx, search, page, limit)
}
