package repository

import (
	"context"

	"shipledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PartyRepository interface {
	Create(ctx context.Context, party *model.Party) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Party, error)
	List(ctx context.Context, partyType, search string, page, limit int) ([]model.Party, int64, error)

	CreateSeason(ctx context.Context, season *model.PartySeason) error
	FindOpenSeason(ctx context.Context, partyID uuid.UUID) (*model.PartySeason, error)
	CloseSeason(ctx context.Context, season *model.PartySeason) error

	CreateLedgerEntry(ctx context.Context, entry *model.PartyLedgerEntry) error
	SumLedger(ctx context.Context, partyID uuid.UUID, seasonID *uuid.UUID) (decimal.Decimal, error)
	ListLedgerEntries(ctx context.Context, partyID uuid.UUID, seasonID *uuid.UUID, page, limit int) ([]model.PartyLedgerEntry, int64, error)
}

type partyRepository struct {
	db *gorm.DB
}

func NewPartyRepository(db *gorm.DB) PartyRepository {
	return &partyRepository{db: db}
}

func (r *partyRepository) Create(ctx context.Context, party *model.Party) error {
	return GetDB(ctx, r.db).Create(party).Error
}

func (r *partyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Party, error) {
	var party model.Party
	if err := GetDB(ctx, r.db).Preload("Seasons").First(&party, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &party, nil
}

func (r *partyRepository) List(ctx context.Context, partyType, search string, page, limit int) ([]model.Party, int64, error) {
	var parties []model.Party
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Party{})
	if partyType != "" {
		query = query.Where("type = ?", partyType)
	}
	if search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Preload("Seasons").Order("created_at desc").Offset(offset).Limit(limit).Find(&parties).Error; err != nil {
		return nil, 0, err
	}

	return parties, total, nil
}

func (r *partyRepository) CreateSeason(ctx context.Context, season *model.PartySeason) error {
	return GetDB(ctx, r.db).Create(season).Error
}

func (r *partyRepository) FindOpenSeason(ctx context.Context, partyID uuid.UUID) (*model.PartySeason, error) {
	var season model.PartySeason
	if err := GetDB(ctx, r.db).Where("party_id = ? AND closed_at IS NULL", partyID).
		Order("opened_at desc").First(&season).Error; err != nil {
		return nil, err
	}
	return &season, nil
}

func (r *partyRepository) CloseSeason(ctx context.Context, season *model.PartySeason) error {
	return GetDB(ctx, r.db).Save(season).Error
}

func (r *partyRepository) CreateLedgerEntry(ctx context.Context, entry *model.PartyLedgerEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

// SumLedger returns the signed sum of ledger entries; seasonID nil means the
// party's lifetime balance.
func (r *partyRepository) SumLedger(ctx context.Context, partyID uuid.UUID, seasonID *uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	query := GetDB(ctx, r.db).Model(&model.PartyLedgerEntry{}).
		Select("COALESCE(SUM(amount_egp), 0)").
		Where("party_id = ?", partyID)
	if seasonID != nil {
		query = query.Where("season_id = ?", *seasonID)
	}
	if err := query.Scan(&sum).Error; err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *partyRepository) ListLedgerEntries(ctx context.Context, partyID uuid.UUID, seasonID *uuid.UUID, page, limit int) ([]model.PartyLedgerEntry, int64, error) {
	var entries []model.PartyLedgerEntry
	var total int64

	query := GetDB(ctx, r.db).Model(&model.PartyLedgerEntry{}).Where("party_id = ?", partyID)
	if seasonID != nil {
		query = query.Where("season_id = ?", *seasonID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
