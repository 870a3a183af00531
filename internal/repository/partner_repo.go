package repository

import (
	"context"

	"shipledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SupplierRepository covers goods suppliers referenced by shipment items and
// payment allocations.
type SupplierRepository interface {
	Create(ctx context.Context, supplier *model.Supplier) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Supplier, int64, error)
}

type supplierRepository struct {
	db *gorm.DB
}

func NewSupplierRepository(db *gorm.DB) SupplierRepository {
	return &supplierRepository{db: db}
}

func (r *supplierRepository) Create(ctx context.Context, supplier *model.Supplier) error {
	return GetDB(ctx, r.db).Create(supplier).Error
}

func (r *supplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := GetDB(ctx, r.db).First(&supplier, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *supplierRepository) List(ctx context.Context, search string, page, limit int) ([]model.Supplier, int64, error) {
	var suppliers []model.Supplier
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Supplier{})
	if search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&suppliers).Error; err != nil {
		return nil, 0, err
	}
	return suppliers, total, nil
}

// ShippingCompanyRepository covers freight forwarders / collection agents.
type ShippingCompanyRepository interface {
	Create(ctx context.Context, company *model.ShippingCompany) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ShippingCompany, error)
	List(ctx context.Context, search string, page, limit int) ([]model.ShippingCompany, int64, error)
}

type shippingCompanyRepository struct {
	db *gorm.DB
}

func NewShippingCompanyRepository(db *gorm.DB) ShippingCompanyRepository {
	return &shippingCompanyRepository{db: db}
}

func (r *shippingCompanyRepository) Create(ctx context.Context, company *model.ShippingCompany) error {
	return GetDB(ctx, r.db).Create(company).Error
}

func (r *shippingCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ShippingCompany, error) {
	var company model.ShippingCompany
	if err := GetDB(ctx, r.db).First(&company, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *shippingCompanyRepository) List(ctx context.Context, search string, page, limit int) ([]model.ShippingCompany, int64, error) {
	var companies []model.ShippingCompany
	var total int64

	query := GetDB(ctx, r.db).Model(&model.ShippingCompany{})
	if search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&companies).Error; err != nil {
		return nil, 0, err
	}
	return companies, total, nil
}
