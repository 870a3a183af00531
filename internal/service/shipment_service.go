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
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateShipmentItemRequest struct {
	SupplierID            string `json:"supplier_id"`
	Description           string `json:"description"`
	Cartons               int    `json:"cartons"`
	PurchaseCostRmb       string `json:"purchase_cost_rmb"`
	CustomsPerCartonEgp   string `json:"customs_per_carton_egp"`
	ClearancePerCartonEgp string `json:"clearance_per_carton_egp"`
}

type CreateShipmentRequest struct {
	ShippingCompanyID string `json:"shipping_company_id"`

	PurchaseCostRmb  string `json:"purchase_cost_rmb"`
	PurchaseCostEgp  string `json:"purchase_cost_egp"`
	ShippingCostRmb  string `json:"shipping_cost_rmb"`
	ShippingCostEgp  string `json:"shipping_cost_egp"`
	CommissionRmb    string `json:"commission_rmb"`
	CommissionEgp    string `json:"commission_egp"`
	CustomsCostRmb   string `json:"customs_cost_rmb"`
	CustomsCostEgp   string `json:"customs_cost_egp"`
	ClearanceCostRmb string `json:"clearance_cost_rmb"`
	ClearanceCostEgp string `json:"clearance_cost_egp"`
	GoodsDiscountRmb string `json:"goods_discount_rmb"`
	PurchaseRate     string `json:"purchase_rate"`

	Items []CreateShipmentItemRequest `json:"items"`
}

type AddShippingDetailRequest struct {
	Description   string `json:"description"`
	PurchaseRmb   string `json:"purchase_rmb"`
	ShippingRmb   string `json:"shipping_rmb"`
	CommissionRmb string `json:"commission_rmb"`
}

type AddCustomsDetailRequest struct {
	Description  string `json:"description"`
	CustomsEgp   string `json:"customs_egp"`
	ClearanceEgp string `json:"clearance_egp"`
}

// ShipmentDetail is the read model: the shipment row plus the resolved cost
// breakdown and its payments.
type ShipmentDetail struct {
	Shipment   *model.Shipment         `json:"shipment"`
	KnownTotal KnownTotal              `json:"known_total"`
	Payments   []model.ShipmentPayment `json:"payments"`
}

// --- Interface ---

type ShipmentService interface {
	CreateShipment(ctx context.Context, userID string, req CreateShipmentRequest) (*model.Shipment, error)
	GetShipment(ctx context.Context, shipmentID string) (*ShipmentDetail, error)
	ListShipments(ctx context.Context, page, limit int, search string) ([]model.Shipment, int64, error)
	AddShippingDetail(ctx context.Context, shipmentID string, req AddShippingDetailRequest) (*model.ShippingDetail, error)
	AddCustomsDetail(ctx context.Context, shipmentID string, req AddCustomsDetailRequest) (*model.CustomsDetail, error)
	SetArchived(ctx context.Context, userID string, shipmentID string, archived bool) (*model.Shipment, error)
}

type shipmentService struct {
	shipmentRepo repository.ShipmentRepository
	paymentRepo  repository.PaymentRepository
	supplierRepo repository.SupplierRepository
	companyRepo  repository.ShippingCompanyRepository
	rateRepo     repository.RateRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewShipmentService(
	shipmentRepo repository.ShipmentRepository,
	paymentRepo repository.PaymentRepository,
	supplierRepo repository.SupplierRepository,
	companyRepo repository.ShippingCompanyRepository,
	rateRepo repository.RateRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) ShipmentService {
	return &shipmentService{
		shipmentRepo: shipmentRepo,
		paymentRepo:  paymentRepo,
		supplierRepo: supplierRepo,
		companyRepo:  companyRepo,
		rateRepo:     rateRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

// --- Implementation ---

func (s *shipmentService) CreateShipment(ctx context.Context, userID string, req CreateShipmentRequest) (*model.Shipment, error) {
	var companyID *uuid.UUID
	if req.ShippingCompanyID != "" {
		parsed, err := uuid.Parse(req.ShippingCompanyID)
		if err != nil {
			return nil, ErrShippingCompanyNotFound
		}
		if _, err := s.companyRepo.FindByID(ctx, parsed); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrShippingCompanyNotFound
			}
			return nil, fmt.Errorf("failed to load shipping company: %w", err)
		}
		companyID = &parsed
	}

	// Validate suppliers up front so the transaction does not churn on bad input.
	supplierIDs := make(map[string]uuid.UUID)
	for _, item := range req.Items {
		if item.SupplierID == "" {
			continue
		}
		if _, ok := supplierIDs[item.SupplierID]; ok {
			continue
		}
		parsed, err := uuid.Parse(item.SupplierID)
		if err != nil {
			return nil, ErrSupplierNotFound
		}
		if _, err := s.supplierRepo.FindByID(ctx, parsed); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSupplierNotFound
			}
			return nil, fmt.Errorf("failed to load supplier: %w", err)
		}
		supplierIDs[item.SupplierID] = parsed
	}

	var created *model.Shipment
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		code, codeErr := s.nextShipmentCode(txCtx)
		if codeErr != nil {
			return codeErr
		}

		shipment := &model.Shipment{
			Code:              code,
			ShippingCompanyID: companyID,
			PurchaseCostRmb:   ParseAmountOrZero(req.PurchaseCostRmb),
			PurchaseCostEgp:   RoundEgp(ParseAmountOrZero(req.PurchaseCostEgp)),
			ShippingCostRmb:   ParseAmountOrZero(req.ShippingCostRmb),
			ShippingCostEgp:   RoundEgp(ParseAmountOrZero(req.ShippingCostEgp)),
			CommissionRmb:     ParseAmountOrZero(req.CommissionRmb),
			CommissionEgp:     RoundEgp(ParseAmountOrZero(req.CommissionEgp)),
			CustomsCostRmb:    ParseAmountOrZero(req.CustomsCostRmb),
			CustomsCostEgp:    RoundEgp(ParseAmountOrZero(req.CustomsCostEgp)),
			ClearanceCostRmb:  ParseAmountOrZero(req.ClearanceCostRmb),
			ClearanceCostEgp:  RoundEgp(ParseAmountOrZero(req.ClearanceCostEgp)),
			GoodsDiscountRmb:  ParseAmountOrZero(req.GoodsDiscountRmb),
			PurchaseRate:      RoundRate(ParseAmountOrZero(req.PurchaseRate)),
		}
		if createErr := s.shipmentRepo.Create(txCtx, shipment); createErr != nil {
			return fmt.Errorf("failed to create shipment: %w", createErr)
		}

		for _, itemReq := range req.Items {
			item := &model.ShipmentItem{
				ShipmentID:            shipment.ID,
				Description:           itemReq.Description,
				Cartons:               itemReq.Cartons,
				PurchaseCostRmb:       ParseAmountOrZero(itemReq.PurchaseCostRmb),
				CustomsPerCartonEgp:   RoundEgp(ParseAmountOrZero(itemReq.CustomsPerCartonEgp)),
				ClearancePerCartonEgp: RoundEgp(ParseAmountOrZero(itemReq.ClearancePerCartonEgp)),
			}
			if id, ok := supplierIDs[itemReq.SupplierID]; ok {
				supplierID := id
				item.SupplierID = &supplierID
			}
			if itemErr := s.shipmentRepo.CreateItem(txCtx, item); itemErr != nil {
				return fmt.Errorf("failed to create shipment item: %w", itemErr)
			}
			shipment.Items = append(shipment.Items, *item)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"code":  shipment.Code,
			"items": len(req.Items),
		})
		audit := &model.AuditLog{
			UserID:     parseUserID(userID),
			Action:     model.ActionCreateShipment,
			EntityID:   shipment.ID.String(),
			EntityName: shipment.Code,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		created = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *shipmentService) GetShipment(ctx context.Context, shipmentID string) (*ShipmentDetail, error) {
	id, err := uuid.Parse(shipmentID)
	if err != nil {
		return nil, ErrShipmentNotFound
	}

	shipment, err := s.shipmentRepo.FindByIDWithItems(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("failed to load shipment: %w", err)
	}

	shippingDetails, err := s.shipmentRepo.ListShippingDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipping details: %w", err)
	}
	customsDetails, err := s.shipmentRepo.ListCustomsDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load customs details: %w", err)
	}
	payments, err := s.paymentRepo.ListByShipment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	hints := RateHints{}
	if rate, rateErr := s.rateRepo.FindLatest(ctx, model.CurrencyRMB); rateErr == nil {
		hints.LatestMarketRate = rate.RateToEgp
	}

	known, err := ComputeShipmentKnownTotal(shipment, shippingDetails, customsDetails, shipment.Items, hints)
	if err != nil {
		var missing *MissingRmbRateError
		if errors.As(err, &missing) {
			// Costs only known in RMB with no rate on file; surface the
			// shipment anyway with a zero breakdown.
			known = KnownTotal{}
		} else {
			return nil, err
		}
	}

	return &ShipmentDetail{Shipment: shipment, KnownTotal: known, Payments: payments}, nil
}

func (s *shipmentService) ListShipments(ctx context.Context, page, limit int, search string) ([]model.Shipment, int64, error) {
	return s.shipmentRepo.List(ctx, page, limit, search)
}

func (s *shipmentService) AddShippingDetail(ctx context.Context, shipmentID string, req AddShippingDetailRequest) (*model.ShippingDetail, error) {
	id, err := uuid.Parse(shipmentID)
	if err != nil {
		return nil, ErrShipmentNotFound
	}
	if _, err := s.shipmentRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("failed to load shipment: %w", err)
	}

	detail := &model.ShippingDetail{
		ShipmentID:    id,
		Description:   req.Description,
		PurchaseRmb:   ParseAmountOrZero(req.PurchaseRmb),
		ShippingRmb:   ParseAmountOrZero(req.ShippingRmb),
		CommissionRmb: ParseAmountOrZero(req.CommissionRmb),
	}
	if err := s.shipmentRepo.CreateShippingDetail(ctx, detail); err != nil {
		return nil, fmt.Errorf("failed to create shipping detail: %w", err)
	}
	return detail, nil
}

func (s *shipmentService) AddCustomsDetail(ctx context.Context, shipmentID string, req AddCustomsDetailRequest) (*model.CustomsDetail, error) {
	id, err := uuid.Parse(shipmentID)
	if err != nil {
		return nil, ErrShipmentNotFound
	}
	if _, err := s.shipmentRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("failed to load shipment: %w", err)
	}

	detail := &model.CustomsDetail{
		ShipmentID:   id,
		Description:  req.Description,
		CustomsEgp:   RoundEgp(ParseAmountOrZero(req.CustomsEgp)),
		ClearanceEgp: RoundEgp(ParseAmountOrZero(req.ClearanceEgp)),
	}
	if err := s.shipmentRepo.CreateCustomsDetail(ctx, detail); err != nil {
		return nil, fmt.Errorf("failed to create customs detail: %w", err)
	}
	return detail, nil
}

func (s *shipmentService) SetArchived(ctx context.Context, userID string, shipmentID string, archived bool) (*model.Shipment, error) {
	id, err := uuid.Parse(shipmentID)
	if err != nil {
		return nil, ErrShipmentNotFound
	}

	var updated *model.Shipment
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		shipment, findErr := s.shipmentRepo.FindByIDForUpdate(txCtx, id)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrShipmentNotFound
			}
			return fmt.Errorf("failed to lock shipment: %w", findErr)
		}

		shipment.Archived = archived
		if updErr := s.shipmentRepo.Update(txCtx, shipment); updErr != nil {
			return fmt.Errorf("failed to update shipment: %w", updErr)
		}
		updated = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// nextShipmentCode generates a sequential code like SHP-20260829-00001.
func (s *shipmentService) nextShipmentCode(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("SHP-%s-", time.Now().Format("20060102"))
	count, err := s.shipmentRepo.CountByPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to count shipment codes: %w", err)
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}
