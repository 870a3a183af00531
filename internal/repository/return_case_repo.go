package repository

import (
	"context"

	"shipledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReturnCaseRepository interface {
	Create(ctx context.Context, returnCase *model.ReturnCase) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ReturnCase, error)
	Update(ctx context.Context, returnCase *model.ReturnCase) error
	List(ctx context.Context, status string, page, limit int) ([]model.ReturnCase, int64, error)
}

type returnCaseRepository struct {
	db *gorm.DB
}

func NewReturnCaseRepository(db *gorm.DB) ReturnCaseRepository {
	return &returnCaseRepository{db: db}
}

func (r *returnCaseRepository) Create(ctx context.Context, returnCase *model.ReturnCase) error {
	return GetDB(ctx, r.db).Create(returnCase).Error
}

func (r *returnCaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ReturnCase, error) {
	var returnCase model.ReturnCase
	if err := GetDB(ctx, r.db).First(&returnCase, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &returnCase, nil
}

func (r *returnCaseRepository) Update(ctx context.Context, returnCase *model.ReturnCase) error {
	return GetDB(ctx, r.db).Save(returnCase).Error
}

func (r *returnCaseRepository) List(ctx context.Context, status string, page, limit int) ([]model.ReturnCase, int64, error) {
	var cases []model.ReturnCase
	var total int64

	query := GetDB(ctx, r.db).Model(&model.ReturnCase{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Preload("Party").Order("created_at desc").Offset(offset).Limit(limit).Find(&cases).Error; err != nil {
		return nil, 0, err
	}

	return cases, total, nil
}
