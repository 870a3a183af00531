package repository

import (
	"context"

	"shipledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.ShipmentPayment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ShipmentPayment, error)
	FindByIDWithAllocations(ctx context.Context, id uuid.UUID) (*model.ShipmentPayment, error)
	ListByShipment(ctx context.Context, shipmentID uuid.UUID) ([]model.ShipmentPayment, error)
	Delete(ctx context.Context, id uuid.UUID) error

	CreateAllocation(ctx context.Context, allocation *model.PaymentAllocation) error
	ListAllocationsByShipment(ctx context.Context, shipmentID uuid.UUID) ([]model.PaymentAllocation, error)
	DeleteAllocationsByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.ShipmentPayment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.ShipmentPayment, error) {
	var payment model.ShipmentPayment
	if err := GetDB(ctx, r.db).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByIDWithAllocations(ctx context.Context, id uuid.UUID) (*model.ShipmentPayment, error) {
	var payment model.ShipmentPayment
	if err := GetDB(ctx, r.db).Preload("Allocations").First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) ListByShipment(ctx context.Context, shipmentID uuid.UUID) ([]model.ShipmentPayment, error) {
	var payments []model.ShipmentPayment
	if err := GetDB(ctx, r.db).Where("shipment_id = ?", shipmentID).Order("payment_date asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.ShipmentPayment{}).Error
}

func (r *paymentRepository) CreateAllocation(ctx context.Context, allocation *model.PaymentAllocation) error {
	return GetDB(ctx, r.db).Create(allocation).Error
}

func (r *paymentRepository) ListAllocationsByShipment(ctx context.Context, shipmentID uuid.UUID) ([]model.PaymentAllocation, error) {
	var allocations []model.PaymentAllocation
	if err := GetDB(ctx, r.db).Where("shipment_id = ?", shipmentID).Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

func (r *paymentRepository) DeleteAllocationsByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	result := GetDB(ctx, r.db).Where("payment_id = ?", paymentID).Delete(&model.PaymentAllocation{})
	return result.RowsAffected, result.Error
}
