package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExchangeRate is a market RMB->EGP quote. The newest row is the "latest
// market rate" candidate in known-total resolution.
type ExchangeRate struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Currency  string          `gorm:"type:varchar(3);not null;default:'RMB';index" json:"currency"`
	RateToEgp decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"rate_to_egp"`
	Source    string          `gorm:"type:varchar(100)" json:"source"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}
