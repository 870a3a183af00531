package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CostComponent enum constants — the five cost categories a payment can be
// earmarked against.
const (
	ComponentGoods      = "GOODS"
	ComponentShipping   = "SHIPPING"
	ComponentCommission = "COMMISSION"
	ComponentCustoms    = "CUSTOMS"
	ComponentClearance  = "CLEARANCE"
)

// Shipment is a purchase-and-delivery unit. Each cost component carries a
// declared RMB and EGP pair; whichever is available feeds the known-total
// resolution. balance_egp = max(0, final_total_cost_egp - total_paid_egp).
type Shipment struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code              string           `gorm:"type:varchar(30);uniqueIndex;not null" json:"code"`
	ShippingCompanyID *uuid.UUID       `gorm:"type:uuid;index" json:"shipping_company_id"`
	ShippingCompany   *ShippingCompany `gorm:"foreignKey:ShippingCompanyID" json:"shipping_company,omitempty"`

	PurchaseCostRmb   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"purchase_cost_rmb"`
	PurchaseCostEgp   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"purchase_cost_egp"`
	ShippingCostRmb   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"shipping_cost_rmb"`
	ShippingCostEgp   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"shipping_cost_egp"`
	CommissionRmb     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"commission_rmb"`
	CommissionEgp     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"commission_egp"`
	CustomsCostRmb    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"customs_cost_rmb"`
	CustomsCostEgp    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"customs_cost_egp"`
	ClearanceCostRmb  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"clearance_cost_rmb"`
	ClearanceCostEgp  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"clearance_cost_egp"`
	GoodsDiscountRmb  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"goods_discount_rmb"` // partial discount subtracted from the goods component
	PurchaseRate      decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0" json:"purchase_rate"`      // RMB -> EGP rate agreed at purchase time
	TotalPaidEgp      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_paid_egp"`
	BalanceEgp        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"balance_egp"`
	FinalTotalCostEgp decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"final_total_cost_egp"`

	// CostRecovered marks shipments whose cost fields were backfilled from
	// item-level data rather than declared up front.
	CostRecovered   bool       `gorm:"default:false" json:"cost_recovered"`
	Archived        bool       `gorm:"default:false;index" json:"archived"`
	LastPaymentDate *time.Time `json:"last_payment_date"`

	Items     []ShipmentItem `gorm:"foreignKey:ShipmentID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ShipmentItem is one line of goods, optionally attributed to a supplier.
// Per-supplier goods totals drive proportional payment allocation.
type ShipmentItem struct {
	ID                    uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ShipmentID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"shipment_id"`
	SupplierID            *uuid.UUID      `gorm:"type:uuid;index" json:"supplier_id"`
	Supplier              *Supplier       `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Description           string          `gorm:"type:varchar(255)" json:"description"`
	Cartons               int             `gorm:"not null;default:0" json:"cartons"`
	PurchaseCostRmb       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"purchase_cost_rmb"`
	CustomsPerCartonEgp   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"customs_per_carton_egp"`
	ClearancePerCartonEgp decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"clearance_per_carton_egp"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// ShippingDetail is a freight record attached to a shipment, carrying RMB
// figures used as a fallback source for purchase/shipping/commission costs.
type ShippingDetail struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ShipmentID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"shipment_id"`
	Description   string          `gorm:"type:varchar(255)" json:"description"`
	PurchaseRmb   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"purchase_rmb"`
	ShippingRmb   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"shipping_rmb"`
	CommissionRmb decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"commission_rmb"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CustomsDetail is a clearance record attached to a shipment, carrying EGP
// figures used as a fallback source for customs/clearance costs.
type CustomsDetail struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ShipmentID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"shipment_id"`
	Description  string          `gorm:"type:varchar(255)" json:"description"`
	CustomsEgp   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"customs_egp"`
	ClearanceEgp decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"clearance_egp"`
	CreatedAt    time.Time       `json:"created_at"`
}
