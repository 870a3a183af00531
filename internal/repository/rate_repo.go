package repository

import (
	"context"

	"shipledger/internal/model"

	"gorm.io/gorm"
)

type RateRepository interface {
	Create(ctx context.Context, rate *model.ExchangeRate) error
	FindLatest(ctx context.Context, currency string) (*model.ExchangeRate, error)
	List(ctx context.Context, currency string, page, limit int) ([]model.ExchangeRate, int64, error)
}

type rateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) RateRepository {
	return &rateRepository{db: db}
}

func (r *rateRepository) Create(ctx context.Context, rate *model.ExchangeRate) error {
	return GetDB(ctx, r.db).Create(rate).Error
}

func (r *rateRepository) FindLatest(ctx context.Context, currency string) (*model.ExchangeRate, error) {
	var rate model.ExchangeRate
	if err := GetDB(ctx, r.db).Where("currency = ?", currency).
		Order("created_at desc").First(&rate).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *rateRepository) List(ctx context.Context, currency string, page, limit int) ([]model.ExchangeRate, int64, error) {
	var rates []model.ExchangeRate
	var total int64

	query := GetDB(ctx, r.db).Model(&model.ExchangeRate{})
	if currency != "" {
		query = query.Where("currency = ?", currency)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&rates).Error; err != nil {
		return nil, 0, err
	}

	return rates, total, nil
}
