package database

import (
	"log"

	"shipledger/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Supplier{},
		&model.ShippingCompany{},
		&model.Shipment{},
		&model.ShipmentItem{},
		&model.ShippingDetail{},
		&model.CustomsDetail{},
		&model.ShipmentPayment{},
		&model.PaymentAllocation{},
		&model.Party{},
		&model.PartySeason{},
		&model.PartyLedgerEntry{},
		&model.ReturnCase{},
		&model.InventoryMovement{},
		&model.ExchangeRate{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
