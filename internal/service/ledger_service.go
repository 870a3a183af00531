package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shipledger/internal/model"
	"shipledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreatePartyRequest struct {
	Name       string `json:"name" binding:"required"`
	Type       string `json:"type" binding:"required"` // MERCHANT, CUSTOMER, BOTH
	Phone      string `json:"phone"`
	Note       string `json:"note"`
	SeasonName string `json:"season_name"` // name for the initial open season
}

type LedgerEntryRequest struct {
	AmountEgp string `json:"amount_egp" binding:"required"`
	Note      string `json:"note"`
}

// PartyBalance reports the signed ledger sum with a human direction:
// debit (positive) means the party owes us, credit (negative) means we owe
// the party.
type PartyBalance struct {
	PartyID    string  `json:"party_id"`
	SeasonID   *string `json:"season_id,omitempty"`
	BalanceEgp string  `json:"balance_egp"`
	Direction  string  `json:"direction"` // debit, credit, zero
}

type CreateReturnCaseRequest struct {
	PartyID     string `json:"party_id" binding:"required"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	ValueEgp    string `json:"value_egp"`
	Note        string `json:"note"`
}

type ResolveReturnCaseRequest struct {
	Resolution string `json:"resolution" binding:"required"` // ACCEPTED_RETURN, EXCHANGE, DEDUCT_VALUE, DAMAGED
	Note       string `json:"note"`
}

type CloseSeasonResult struct {
	ClosedSeasonID string `json:"closed_season_id"`
	NewSeasonID    string `json:"new_season_id"`
}

// --- Interface ---

type LedgerService interface {
	CreateParty(ctx context.Context, req CreatePartyRequest) (*model.Party, error)
	GetParty(ctx context.Context, partyID string) (*model.Party, error)
	ListParties(ctx context.Context, partyType, search string, page, limit int) ([]model.Party, int64, error)

	CreateLocalInvoice(ctx context.Context, userID string, partyID string, req LedgerEntryRequest) (*model.PartyLedgerEntry, error)
	CreateLocalPayment(ctx context.Context, userID string, partyID string, req LedgerEntryRequest) (*model.PartyLedgerEntry, error)
	GetPartyBalance(ctx context.Context, partyID string, currentSeasonOnly bool) (*PartyBalance, error)
	ListLedgerEntries(ctx context.Context, partyID string, currentSeasonOnly bool, page, limit int) ([]model.PartyLedgerEntry, int64, error)
	CloseSeason(ctx context.Context, userID string, partyID string, newSeasonName string) (*CloseSeasonResult, error)

	CreateReturnCase(ctx context.Context, req CreateReturnCaseRequest) (*model.ReturnCase, error)
	ResolveReturnCase(ctx context.Context, userID string, caseID string, req ResolveReturnCaseRequest) (*model.ReturnCase, error)
	ListReturnCases(ctx context.Context, status string, page, limit int) ([]model.ReturnCase, int64, error)
}

type ledgerService struct {
	partyRepo      repository.PartyRepository
	returnCaseRepo repository.ReturnCaseRepository
	inventoryRepo  repository.InventoryRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
}

func NewLedgerService(
	partyRepo repository.PartyRepository,
	returnCaseRepo repository.ReturnCaseRepository,
	inventoryRepo repository.InventoryRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) LedgerService {
	return &ledgerService{
		partyRepo:      partyRepo,
		returnCaseRepo: returnCaseRepo,
		inventoryRepo:  inventoryRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
	}
}

// --- Parties & seasons ---

func (s *ledgerService) CreateParty(ctx context.Context, req CreatePartyRequest) (*model.Party, error) {
	if req.Type != model.TradePartyMerchant && req.Type != model.TradePartyCustomer && req.Type != model.TradePartyBoth {
		return nil, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{"field": "type"})
	}

	var created *model.Party
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		party := &model.Party{
			Name:     req.Name,
			Type:     req.Type,
			Phone:    req.Phone,
			Note:     req.Note,
			IsActive: true,
		}
		if err := s.partyRepo.Create(txCtx, party); err != nil {
			return fmt.Errorf("failed to create party: %w", err)
		}

		// Every party starts with one open season.
		seasonName := req.SeasonName
		if seasonName == "" {
			seasonName = fmt.Sprintf("Season %s", time.Now().Format("2006-01"))
		}
		season := &model.PartySeason{
			PartyID:  party.ID,
			Name:     seasonName,
			OpenedAt: time.Now(),
		}
		if err := s.partyRepo.CreateSeason(txCtx, season); err != nil {
			return fmt.Errorf("failed to open initial season: %w", err)
		}
		party.Seasons = append(party.Seasons, *season)

		created = party
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ledgerService) GetParty(ctx context.Context, partyID string) (*model.Party, error) {
	id, err := uuid.Parse(partyID)
	if err != nil {
		return nil, ErrPartyNotFound
	}
	party, err := s.partyRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPartyNotFound
		}
		return nil, fmt.Errorf("failed to load party: %w", err)
	}
	return party, nil
}

func (s *ledgerService) ListParties(ctx context.Context, partyType, search string, page, limit int) ([]model.Party, int64, error) {
	return s.partyRepo.List(ctx, partyType, search, page, limit)
}

// --- Ledger entries ---

func (s *ledgerService) CreateLocalInvoice(ctx context.Context, userID string, partyID string, req LedgerEntryRequest) (*model.PartyLedgerEntry, error) {
	amount := RoundEgp(ParseAmountOrZero(req.AmountEgp))
	if !amount.IsPositive() {
		return nil, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{"field": "amount_egp"})
	}
	// Invoices debit the party: it owes more.
	return s.createLedgerEntry(ctx, userID, partyID, model.SourceLocalInvoice, amount, req.Note, model.ActionCreateLocalInvoice)
}

func (s *ledgerService) CreateLocalPayment(ctx context.Context, userID string, partyID string, req LedgerEntryRequest) (*model.PartyLedgerEntry, error) {
	amount := RoundEgp(ParseAmountOrZero(req.AmountEgp))
	if !amount.IsPositive() {
		return nil, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{"field": "amount_egp"})
	}
	// Payments credit the party: the signed entry is negative.
	return s.createLedgerEntry(ctx, userID, partyID, model.SourceLocalPayment, amount.Neg(), req.Note, model.ActionCreateLocalPayment)
}

func (s *ledgerService) createLedgerEntry(ctx context.Context, userID string, partyID string, sourceType string, signedAmount decimal.Decimal, note string, auditAction string) (*model.PartyLedgerEntry, error) {
	id, err := uuid.Parse(partyID)
	if err != nil {
		return nil, ErrPartyNotFound
	}

	var created *model.PartyLedgerEntry
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		party, findErr := s.partyRepo.FindByID(txCtx, id)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrPartyNotFound
			}
			return fmt.Errorf("failed to load party: %w", findErr)
		}

		season, seasonErr := s.partyRepo.FindOpenSeason(txCtx, party.ID)
		if seasonErr != nil {
			return fmt.Errorf("failed to find open season: %w", seasonErr)
		}

		entry := &model.PartyLedgerEntry{
			PartyID:    party.ID,
			SeasonID:   season.ID,
			SourceType: sourceType,
			SourceID:   uuid.New(),
			AmountEgp:  signedAmount,
			Note:       note,
		}
		if createErr := s.partyRepo.CreateLedgerEntry(txCtx, entry); createErr != nil {
			return fmt.Errorf("failed to create ledger entry: %w", createErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"party_id":   party.ID.String(),
			"season_id":  season.ID.String(),
			"amount_egp": signedAmount.StringFixed(2),
		})
		audit := &model.AuditLog{
			UserID:     parseUserID(userID),
			Action:     auditAction,
			EntityID:   entry.ID.String(),
			EntityName: party.Name,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		created = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ledgerService) GetPartyBalance(ctx context.Context, partyID string, currentSeasonOnly bool) (*PartyBalance, error) {
	id, err := uuid.Parse(partyID)
	if err != nil {
		return nil, ErrPartyNotFound
	}
	if _, err := s.partyRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPartyNotFound
		}
		return nil, fmt.Errorf("failed to load party: %w", err)
	}

	var seasonID *uuid.UUID
	if currentSeasonOnly {
		season, seasonErr := s.partyRepo.FindOpenSeason(ctx, id)
		if seasonErr != nil {
			return nil, fmt.Errorf("failed to find open season: %w", seasonErr)
		}
		seasonID = &season.ID
	}

	sum, err := s.partyRepo.SumLedger(ctx, id, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}

	balance := &PartyBalance{
		PartyID:    id.String(),
		BalanceEgp: sum.StringFixed(2),
	}
	if seasonID != nil {
		sid := seasonID.String()
		balance.SeasonID = &sid
	}
	switch {
	case sum.IsPositive():
		balance.Direction = "debit"
	case sum.IsNegative():
		balance.Direction = "credit"
	default:
		balance.Direction = "zero"
	}
	return balance, nil
}

func (s *ledgerService) ListLedgerEntries(ctx context.Context, partyID string, currentSeasonOnly bool, page, limit int) ([]model.PartyLedgerEntry, int64, error) {
	id, err := uuid.Parse(partyID)
	if err != nil {
		return nil, 0, ErrPartyNotFound
	}

	var seasonID *uuid.UUID
	if currentSeasonOnly {
		season, seasonErr := s.partyRepo.FindOpenSeason(ctx, id)
		if seasonErr != nil {
			return nil, 0, fmt.Errorf("failed to find open season: %w", seasonErr)
		}
		seasonID = &season.ID
	}

	return s.partyRepo.ListLedgerEntries(ctx, id, seasonID, page, limit)
}

// CloseSeason closes the open season and opens its successor. A season may
// only close when its balance is exactly zero, not merely within tolerance.
func (s *ledgerService) CloseSeason(ctx context.Context, userID string, partyID string, newSeasonName string) (*CloseSeasonResult, error) {
	id, err := uuid.Parse(partyID)
	if err != nil {
		return nil, ErrPartyNotFound
	}

	var result *CloseSeasonResult
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		party, findErr := s.partyRepo.FindByID(txCtx, id)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrPartyNotFound
			}
			return fmt.Errorf("failed to load party: %w", findErr)
		}

		season, seasonErr := s.partyRepo.FindOpenSeason(txCtx, party.ID)
		if seasonErr != nil {
			return fmt.Errorf("failed to find open season: %w", seasonErr)
		}

		sum, sumErr := s.partyRepo.SumLedger(txCtx, party.ID, &season.ID)
		if sumErr != nil {
			return fmt.Errorf("failed to sum ledger: %w", sumErr)
		}
		if !sum.IsZero() {
			return ErrSeasonBalanceNotZero.WithDetails(map[string]interface{}{
				"balance_egp": sum.StringFixed(2),
			})
		}

		now := time.Now()
		season.ClosedAt = &now
		if closeErr := s.partyRepo.CloseSeason(txCtx, season); closeErr != nil {
			return fmt.Errorf("failed to close season: %w", closeErr)
		}

		name := newSeasonName
		if name == "" {
			name = fmt.Sprintf("Season %s", now.Format("2006-01"))
		}
		next := &model.PartySeason{
			PartyID:  party.ID,
			Name:     name,
			OpenedAt: now,
		}
		if createErr := s.partyRepo.CreateSeason(txCtx, next); createErr != nil {
			return fmt.Errorf("failed to open next season: %w", createErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"closed_season_id": season.ID.String(),
			"new_season_id":    next.ID.String(),
		})
		audit := &model.AuditLog{
			UserID:     parseUserID(userID),
			Action:     model.ActionCloseSeason,
			EntityID:   season.ID.String(),
			EntityName: party.Name,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		result = &CloseSeasonResult{
			ClosedSeasonID: season.ID.String(),
			NewSeasonID:    next.ID.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- Return cases ---

func (s *ledgerService) CreateReturnCase(ctx context.Context, req CreateReturnCaseRequest) (*model.ReturnCase, error) {
	id, err := uuid.Parse(req.PartyID)
	if err != nil {
		return nil, ErrPartyNotFound
	}

	var created *model.ReturnCase
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, findErr := s.partyRepo.FindByID(txCtx, id); findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrPartyNotFound
			}
			return fmt.Errorf("failed to load party: %w", findErr)
		}

		season, seasonErr := s.partyRepo.FindOpenSeason(txCtx, id)
		if seasonErr != nil {
			return fmt.Errorf("failed to find open season: %w", seasonErr)
		}

		returnCase := &model.ReturnCase{
			PartyID:     id,
			SeasonID:    season.ID,
			ProductName: req.ProductName,
			Quantity:    req.Quantity,
			ValueEgp:    RoundEgp(ParseAmountOrZero(req.ValueEgp)),
			Status:      model.CaseUnderInspection,
			Note:        req.Note,
		}
		if createErr := s.returnCaseRepo.Create(txCtx, returnCase); createErr != nil {
			return fmt.Errorf("failed to create return case: %w", createErr)
		}

		created = returnCase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ResolveReturnCase applies a resolution exactly once. ACCEPTED_RETURN and
// DEDUCT_VALUE credit the party's ledger with the case value; ACCEPTED_RETURN
// and DAMAGED with a quantity also write a negative inventory movement.
func (s *ledgerService) ResolveReturnCase(ctx context.Context, userID string, caseID string, req ResolveReturnCaseRequest) (*model.ReturnCase, error) {
	id, err := uuid.Parse(caseID)
	if err != nil {
		return nil, ErrReturnCaseNotFound
	}

	switch req.Resolution {
	case model.ResolutionAcceptedReturn, model.ResolutionExchange, model.ResolutionDeductValue, model.ResolutionDamaged:
	default:
		return nil, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{"field": "resolution"})
	}

	var resolved *model.ReturnCase
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		returnCase, findErr := s.returnCaseRepo.FindByID(txCtx, id)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrReturnCaseNotFound
			}
			return fmt.Errorf("failed to load return case: %w", findErr)
		}
		if returnCase.Status == model.CaseResolved {
			return ErrReturnCaseResolved
		}

		now := time.Now()
		resolution := req.Resolution
		returnCase.Status = model.CaseResolved
		returnCase.Resolution = &resolution
		returnCase.ResolvedBy = parseUserID(userID)
		returnCase.ResolvedAt = &now
		if req.Note != "" {
			returnCase.Note = req.Note
		}
		if updErr := s.returnCaseRepo.Update(txCtx, returnCase); updErr != nil {
			return fmt.Errorf("failed to update return case: %w", updErr)
		}

		if resolution == model.ResolutionAcceptedReturn || resolution == model.ResolutionDeductValue {
			if returnCase.ValueEgp.IsPositive() {
				entry := &model.PartyLedgerEntry{
					PartyID:    returnCase.PartyID,
					SeasonID:   returnCase.SeasonID,
					SourceType: model.SourceReturnCase,
					SourceID:   returnCase.ID,
					AmountEgp:  returnCase.ValueEgp.Neg(),
					Note:       fmt.Sprintf("return case %s resolved as %s", returnCase.ID, resolution),
				}
				if entryErr := s.partyRepo.CreateLedgerEntry(txCtx, entry); entryErr != nil {
					return fmt.Errorf("failed to create ledger entry: %w", entryErr)
				}
			}
		}

		if (resolution == model.ResolutionAcceptedReturn || resolution == model.ResolutionDamaged) && returnCase.Quantity != 0 {
			caseRef := returnCase.ID
			movement := &model.InventoryMovement{
				ReturnCaseID: &caseRef,
				ProductName:  returnCase.ProductName,
				Quantity:     -returnCase.Quantity,
				Reason:       resolution,
			}
			if movErr := s.inventoryRepo.CreateMovement(txCtx, movement); movErr != nil {
				return fmt.Errorf("failed to create inventory movement: %w", movErr)
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"resolution": resolution,
			"value_egp":  returnCase.ValueEgp.StringFixed(2),
			"quantity":   returnCase.Quantity,
		})
		audit := &model.AuditLog{
			UserID:     parseUserID(userID),
			Action:     model.ActionResolveReturnCase,
			EntityID:   returnCase.ID.String(),
			EntityName: returnCase.ProductName,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		resolved = returnCase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (s *ledgerService) ListReturnCases(ctx context.Context, status string, page, limit int) ([]model.ReturnCase, int64, error) {
	return s.returnCaseRepo.List(ctx, status, page, limit)
}
