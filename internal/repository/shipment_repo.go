package repository

import (
	"context"

	"shipledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ShipmentRepository interface {
	Create(ctx context.Context, shipment *model.Shipment) error
	Update(ctx context.Context, shipment *model.Shipment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shipment, error)
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Shipment, error)
	// FindByIDForUpdate takes a row-level lock (SELECT ... FOR UPDATE); it is
	// the sole mutual exclusion for concurrent payments on one shipment.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Shipment, error)
	List(ctx context.Context, page, limit int, search string) ([]model.Shipment, int64, error)
	CountByPrefix(ctx context.Context, prefix string) (int64, error)

	CreateItem(ctx context.Context, item *model.ShipmentItem) error
	ListItems(ctx context.Context, shipmentID uuid.UUID) ([]model.ShipmentItem, error)
	CreateShippingDetail(ctx context.Context, detail *model.ShippingDetail) error
	ListShippingDetails(ctx context.Context, shipmentID uuid.UUID) ([]model.ShippingDetail, error)
	CreateCustomsDetail(ctx context.Context, detail *model.CustomsDetail) error
	ListCustomsDetails(ctx context.Context, shipmentID uuid.UUID) ([]model.CustomsDetail, error)
}

type shipmentRepository struct {
	db *gorm.DB
}

func NewShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &shipmentRepository{db: db}
}

func (r *shipmentRepository) Create(ctx context.Context, shipment *model.Shipment) error {
	return GetDB(ctx, r.db).Create(shipment).Error
}

func (r *shipmentRepository) Update(ctx context.Context, shipment *model.Shipment) error {
	return GetDB(ctx, r.db).Save(shipment).Error
}

func (r *shipmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	var shipment model.Shipment
	if err := GetDB(ctx, r.db).First(&shipment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *shipmentRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	var shipment model.Shipment
	if err := GetDB(ctx, r.db).Preload("Items").Preload("ShippingCompany").First(&shipment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *shipmentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	var shipment model.Shipment
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shipment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *shipmentRepository) List(ctx context.Context, page, limit int, search string) ([]model.Shipment, int64, error) {
	var shipments []model.Shipment
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Shipment{})
	if search != "" {
		query = query.Where("code ILIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Preload("Items").Preload("ShippingCompany")
	if search != "" {
		fetchQuery = fetchQuery.Where("code ILIKE ?", "%"+search+"%")
	}
	if err := fetchQuery.Order("created_at desc").Offset(offset).Limit(limit).Find(&shipments).Error; err != nil {
		return nil, 0, err
	}

	return shipments, total, nil
}

func (r *shipmentRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Shipment{}).Where("code LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *shipmentRepository) CreateItem(ctx context.Context, item *model.ShipmentItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *shipmentRepository) ListItems(ctx context.Context, shipmentID uuid.UUID) ([]model.ShipmentItem, error) {
	var items []model.ShipmentItem
	if err := GetDB(ctx, r.db).Where("shipment_id = ?", shipmentID).Order("created_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *shipmentRepository) CreateShippingDetail(ctx context.Context, detail *model.ShippingDetail) error {
	return GetDB(ctx, r.db).Create(detail).Error
}

func (r *shipmentRepository) ListShippingDetails(ctx context.Context, shipmentID uuid.UUID) ([]model.ShippingDetail, error) {
	var details []model.ShippingDetail
	if err := GetDB(ctx, r.db).Where("shipment_id = ?", shipmentID).Find(&details).Error; err != nil {
		return nil, err
	}
	return details, nil
}

func (r *shipmentRepository) CreateCustomsDetail(ctx context.Context, detail *model.CustomsDetail) error {
	return GetDB(ctx, r.db).Create(detail).Error
}

func (r *shipmentRepository) ListCustomsDetails(ctx context.Context, shipmentID uuid.UUID) ([]model.CustomsDetail, error) {
	var details []model.CustomsDetail
	if err := GetDB(ctx, r.db).Where("shipment_id = ?", shipmentID).Find(&details).Error; err != nil {
		return nil, err
	}
	return details, nil
}
