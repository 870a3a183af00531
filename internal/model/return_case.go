package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnCase status enum constants
const (
	CaseUnderInspection = "UNDER_INSPECTION"
	CaseResolved        = "RESOLVED"
)

// ReturnCase resolution enum constants
const (
	ResolutionAcceptedReturn = "ACCEPTED_RETURN"
	ResolutionExchange       = "EXCHANGE"
	ResolutionDeductValue    = "DEDUCT_VALUE"
	ResolutionDamaged        = "DAMAGED"
)

// ReturnCase is a margin/shortage case against a trading party. Its
// resolution determines the signed ledger adjustment and, for accepted or
// damaged goods with a quantity, an inventory reduction.
type ReturnCase struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PartyID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"party_id"`
	Party       *Party          `gorm:"foreignKey:PartyID" json:"party,omitempty"`
	SeasonID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"season_id"`
	ProductName string          `gorm:"type:varchar(255)" json:"product_name"`
	Quantity    int             `gorm:"not null;default:0" json:"quantity"`
	ValueEgp    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"value_egp"`
	Status      string          `gorm:"type:varchar(20);not null;default:'UNDER_INSPECTION';index" json:"status"`
	Resolution  *string         `gorm:"type:varchar(20)" json:"resolution"`
	ResolvedBy  *uuid.UUID      `gorm:"type:uuid" json:"resolved_by"`
	ResolvedAt  *time.Time      `json:"resolved_at"`
	Note        string          `gorm:"type:text" json:"note"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InventoryMovement records a stock adjustment caused by a resolved return
// case (negative quantity for reductions).
type InventoryMovement struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReturnCaseID *uuid.UUID `gorm:"type:uuid;index" json:"return_case_id"`
	ProductName  string     `gorm:"type:varchar(255);not null" json:"product_name"`
	Quantity     int        `gorm:"not null" json:"quantity"`
	Reason       string     `gorm:"type:varchar(50);not null" json:"reason"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}
