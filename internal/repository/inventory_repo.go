package repository

import (
	"context"

	"shipledger/internal/model"

	"gorm.io/gorm"
)

type InventoryRepository interface {
	CreateMovement(ctx context.Context, movement *model.InventoryMovement) error
}

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) CreateMovement(ctx context.Context, movement *model.InventoryMovement) error {
	return GetDB(ctx, r.db).Create(movement).Error
}
