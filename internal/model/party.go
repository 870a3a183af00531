package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade party type enum constants (local trade module)
const (
	TradePartyMerchant = "MERCHANT"
	TradePartyCustomer = "CUSTOMER"
	TradePartyBoth     = "BOTH"
)

// Ledger entry source enum constants
const (
	SourceLocalInvoice = "LOCAL_INVOICE"
	SourceLocalPayment = "LOCAL_PAYMENT"
	SourceReturnCase   = "RETURN_CASE"
)

// Party is a local trading partner. Its balance is never stored; it is always
// the signed sum of ledger entries (debit positive, credit negative).
type Party struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Type      string         `gorm:"type:varchar(20);not null;index" json:"type"` // MERCHANT, CUSTOMER, BOTH
	Phone     string         `gorm:"type:varchar(50)" json:"phone"`
	Note      string         `gorm:"type:text" json:"note"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	Seasons   []PartySeason  `gorm:"foreignKey:PartyID;constraint:OnDelete:CASCADE" json:"seasons,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PartySeason is a bounded accounting period. At most one season per party is
// open (closed_at null); a season may only close at exactly zero balance.
type PartySeason struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PartyID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"party_id"`
	Name     string     `gorm:"type:varchar(100);not null" json:"name"`
	OpenedAt time.Time  `gorm:"not null" json:"opened_at"`
	ClosedAt *time.Time `gorm:"index" json:"closed_at"`
}

// PartyLedgerEntry is the atomic unit of balance computation. Sign convention:
// debit positive (party owes more), credit negative.
type PartyLedgerEntry struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PartyID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"party_id"`
	SeasonID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"season_id"`
	SourceType string          `gorm:"type:varchar(20);not null;index" json:"source_type"` // LOCAL_INVOICE, LOCAL_PAYMENT, RETURN_CASE
	SourceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"source_id"`
	AmountEgp  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount_egp"`
	Note       string          `gorm:"type:text" json:"note"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
}
