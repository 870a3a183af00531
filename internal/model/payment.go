package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency enum constants
const (
	CurrencyEGP = "EGP"
	CurrencyRMB = "RMB"
)

// Payment party type enum constants
const (
	PartyTypeSupplier        = "SUPPLIER"
	PartyTypeShippingCompany = "SHIPPING_COMPANY"
)

// PaymentMethod enum constants
const (
	MethodCash     = "CASH"
	MethodTransfer = "TRANSFER"
	MethodCheque   = "CHEQUE"
)

// ShipmentPayment is an immutable record of money paid against a shipment.
// amount_egp is derived at creation time (amount_original x rate_to_egp for
// RMB payments) and never recomputed afterwards.
type ShipmentPayment struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ShipmentID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"shipment_id"`
	Shipment       *Shipment        `gorm:"foreignKey:ShipmentID" json:"shipment,omitempty"`
	PartyType      *string          `gorm:"type:varchar(20);index" json:"party_type"` // SUPPLIER or SHIPPING_COMPANY
	PartyID        *uuid.UUID       `gorm:"type:uuid;index" json:"party_id"`
	Currency       string           `gorm:"type:varchar(3);not null" json:"currency"`
	AmountOriginal decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"amount_original"`
	RateToEgp      *decimal.Decimal `gorm:"type:decimal(12,4)" json:"rate_to_egp"`
	AmountEgp      decimal.Decimal  `gorm:"type:decimal(18,4);not null" json:"amount_egp"`
	CostComponent  string           `gorm:"type:varchar(20);not null;index" json:"cost_component"`
	Method         string           `gorm:"type:varchar(20);not null;default:'CASH'" json:"method"`
	AttachmentURL  string           `gorm:"type:text" json:"attachment_url"`
	Note           string           `gorm:"type:text" json:"note"`
	PaymentDate    time.Time        `gorm:"not null;index" json:"payment_date"`

	Allocations []PaymentAllocation `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE" json:"allocations,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// PaymentAllocation is a derived split of one shipping-company payment across
// one supplier's goods obligation, always denominated in RMB. For any payment
// the sum of its allocations never exceeds amount_original.
type PaymentAllocation struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PaymentID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"payment_id"`
	ShipmentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"shipment_id"`
	SupplierID uuid.UUID       `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier   *Supplier       `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	AmountRmb  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount_rmb"`
	CreatedAt  time.Time       `json:"created_at"`
}
