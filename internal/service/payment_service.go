package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shipledger/internal/model"
	"shipledger/internal/repository"
	ws "shipledger/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// overpayTolerance absorbs conversion noise when comparing a candidate
// payment against the remaining allowance.
var overpayTolerance = decimal.New(1, -4) // 0.0001

// --- DTOs ---

type CreatePaymentRequest struct {
	ShipmentID     string `json:"shipment_id" binding:"required"`
	PartyType      string `json:"party_type"` // SUPPLIER or SHIPPING_COMPANY, optional
	PartyID        string `json:"party_id"`
	Currency       string `json:"currency" binding:"required"`
	AmountOriginal string `json:"amount_original" binding:"required"`
	RateToEgp      string `json:"rate_to_egp"`
	CostComponent  string `json:"cost_component" binding:"required"`
	Method         string `json:"method"`
	AttachmentURL  string `json:"attachment_url"`
	Note           string `json:"note"`
	PaymentDate    string `json:"payment_date"` // RFC3339 or YYYY-MM-DD, defaults to now
}

// CreatePaymentOptions toggles auto allocation and the rollback test hook.
type CreatePaymentOptions struct {
	AutoAllocate bool
	// SimulateFailureAfterInsert forces a failure after the payment and
	// allocation rows are written, to prove the transaction leaves no
	// partial state behind.
	SimulateFailureAfterInsert bool
}

type AllocationResponse struct {
	SupplierID string `json:"supplier_id"`
	AmountRmb  string `json:"amount_rmb"`
}

type PaymentResponse struct {
	ID             string               `json:"id"`
	ShipmentID     string               `json:"shipment_id"`
	PartyType      *string              `json:"party_type"`
	PartyID        *string              `json:"party_id"`
	Currency       string               `json:"currency"`
	AmountOriginal string               `json:"amount_original"`
	RateToEgp      *string              `json:"rate_to_egp"`
	AmountEgp      string               `json:"amount_egp"`
	CostComponent  string               `json:"cost_component"`
	Method         string               `json:"method"`
	AttachmentURL  string               `json:"attachment_url"`
	Note           string               `json:"note"`
	PaymentDate    string               `json:"payment_date"`
	Allocations    []AllocationResponse `json:"allocations,omitempty"`
	CreatedAt      string               `json:"created_at"`
}

type PaymentAllowance struct {
	KnownTotal         string `json:"known_total"`
	AlreadyPaid        string `json:"already_paid"`
	RemainingAllowed   string `json:"remaining_allowed"`
	RecoveredFromItems bool   `json:"recovered_from_items"`
}

type SupplierAllocationPreview struct {
	SupplierID     string `json:"supplier_id"`
	GoodsTotalRmb  string `json:"goods_total_rmb"`
	OutstandingRmb string `json:"outstanding_rmb"`
	AllocatedRmb   string `json:"allocated_rmb"`
}

type AllocationPreview struct {
	AmountRmb           string                      `json:"amount_rmb"`
	TotalOutstandingRmb string                      `json:"total_outstanding_rmb"`
	Suppliers           []SupplierAllocationPreview `json:"suppliers"`
}

type DeletePaymentResult struct {
	Deleted            bool  `json:"deleted"`
	AllocationsDeleted int64 `json:"allocations_deleted"`
}

// --- Interface ---

type PaymentService interface {
	CreatePayment(ctx context.Context, userID string, req CreatePaymentRequest, opts CreatePaymentOptions) (PaymentResponse, error)
	DeletePayment(ctx context.Context, userID string, paymentID string) (DeletePaymentResult, error)
	GetPaymentAllowance(ctx context.Context, shipmentID string) (PaymentAllowance, error)
	GetAllocationPreview(ctx context.Context, shipmentID string, amountRmb string) (AllocationPreview, error)
}

type paymentService struct {
	shipmentRepo repository.ShipmentRepository
	paymentRepo  repository.PaymentRepository
	supplierRepo repository.SupplierRepository
	companyRepo  repository.ShippingCompanyRepository
	rateRepo     repository.RateRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	hub          *ws.Hub
}

func NewPaymentService(
	shipmentRepo repository.ShipmentRepository,
	paymentRepo repository.PaymentRepository,
	supplierRepo repository.SupplierRepository,
	companyRepo repository.ShippingCompanyRepository,
	rateRepo repository.RateRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) PaymentService {
	return &paymentService{
		shipmentRepo: shipmentRepo,
		paymentRepo:  paymentRepo,
		supplierRepo: supplierRepo,
		companyRepo:  companyRepo,
		rateRepo:     rateRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		hub:          hub,
	}
}

// --- Implementation ---

func (s *paymentService) CreatePayment(ctx context.Context, userID string, req CreatePaymentRequest, opts CreatePaymentOptions) (PaymentResponse, error) {
	shipmentID, err := uuid.Parse(req.ShipmentID)
	if err != nil {
		return PaymentResponse{}, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{"field": "shipment_id"})
	}

	amount := ParseAmountOrZero(req.AmountOriginal)
	if !amount.IsPositive() {
		return PaymentResponse{}, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{"field": "amount_original"})
	}

	if !validComponent(req.CostComponent) {
		return PaymentResponse{}, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{"field": "cost_component"})
	}

	if req.PartyType != "" && req.PartyType != model.PartyTypeSupplier && req.PartyType != model.PartyTypeShippingCompany {
		return PaymentResponse{}, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{"field": "party_type"})
	}

	paymentDate, err := parsePaymentDate(req.PaymentDate)
	if err != nil {
		return PaymentResponse{}, err
	}

	var created *model.ShipmentPayment

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		// Row lock serializes concurrent payments against this shipment; all
		// validation below happens under the lock.
		shipment, findErr := s.shipmentRepo.FindByIDForUpdate(txCtx, shipmentID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrShipmentNotFound
			}
			return fmt.Errorf("failed to lock shipment: %w", findErr)
		}
		if shipment.Archived {
			return ErrShipmentLocked
		}

		items, loadErr := s.shipmentRepo.ListItems(txCtx, shipmentID)
		if loadErr != nil {
			return fmt.Errorf("failed to load shipment items: %w", loadErr)
		}
		shippingDetails, loadErr := s.shipmentRepo.ListShippingDetails(txCtx, shipmentID)
		if loadErr != nil {
			return fmt.Errorf("failed to load shipping details: %w", loadErr)
		}
		customsDetails, loadErr := s.shipmentRepo.ListCustomsDetails(txCtx, shipmentID)
		if loadErr != nil {
			return fmt.Errorf("failed to load customs details: %w", loadErr)
		}
		payments, loadErr := s.paymentRepo.ListByShipment(txCtx, shipmentID)
		if loadErr != nil {
			return fmt.Errorf("failed to load payments: %w", loadErr)
		}
		allocations, loadErr := s.paymentRepo.ListAllocationsByShipment(txCtx, shipmentID)
		if loadErr != nil {
			return fmt.Errorf("failed to load allocations: %w", loadErr)
		}

		latestRate := s.latestMarketRate(txCtx)

		// Resolve the payment's own rate: supplied, else latest market rate
		// for RMB payments.
		var paymentRate *decimal.Decimal
		if req.RateToEgp != "" {
			parsed := ParseAmountOrZero(req.RateToEgp)
			if !parsed.IsPositive() {
				return ErrPaymentRateMissing
			}
			paymentRate = &parsed
		} else if req.Currency == model.CurrencyRMB {
			if !latestRate.IsPositive() {
				return ErrPaymentRateMissing
			}
			paymentRate = &latestRate
		}

		normalized, normErr := NormalizePaymentAmounts(req.Currency, amount, paymentRate)
		if normErr != nil {
			return normErr
		}

		hints := RateHints{LatestMarketRate: latestRate}
		if paymentRate != nil {
			hints.PaymentRate = *paymentRate
		}

		// Recovery backfill: a brand-new shipment with no declared costs gets
		// its cost fields reconstructed from items once, so later
		// computations are stable.
		if !HasDeclaredCosts(shipment) && len(items) > 0 {
			recovered, recErr := RecoverCostsFromItems(items, latestRate)
			if recErr == nil && recovered.TotalEgp.IsPositive() {
				backfillShipmentCosts(shipment, items, recovered)
				if updErr := s.shipmentRepo.Update(txCtx, shipment); updErr != nil {
					return fmt.Errorf("failed to backfill shipment costs: %w", updErr)
				}
			}
		}

		known, totalErr := ComputeShipmentKnownTotal(shipment, shippingDetails, customsDetails, items, hints)
		if totalErr != nil {
			return totalErr
		}

		partyType, partyID, partyErr := s.resolveParty(txCtx, shipment, items, req.PartyType, req.PartyID)
		if partyErr != nil {
			return partyErr
		}

		if partyType != nil && partyID != nil {
			if guardErr := s.guardComponentOverpay(
				shipment, items, shippingDetails, customsDetails, payments, allocations,
				*partyType, *partyID, req.CostComponent, req.Currency, amount, paymentRate, latestRate,
			); guardErr != nil {
				return guardErr
			}
		}

		// Coarse backstop against the shipment aggregate, applied even when
		// no party/component could be pinned down.
		alreadyPaid := sumPaymentsEgp(payments)
		remainingAggregate := known.TotalEgp.Sub(alreadyPaid)
		if normalized.AmountEgp.GreaterThan(remainingAggregate.Add(overpayTolerance)) {
			return ErrPaymentOverpay.WithDetails(map[string]interface{}{
				"known_total":  known.TotalEgp.StringFixed(2),
				"already_paid": alreadyPaid.StringFixed(2),
				"remaining":    decimal.Max(decimal.Zero, remainingAggregate).StringFixed(2),
				"currency":     model.CurrencyEGP,
			})
		}

		var plan []Allocation
		if opts.AutoAllocate {
			beneficiaries, eligErr := s.allocationBeneficiaries(items, payments, allocations, partyType, req.CostComponent, req.Currency, latestRate)
			if eligErr != nil {
				return eligErr
			}
			plan = AllocateProportionally(amount, beneficiaries)
		}

		payment := &model.ShipmentPayment{
			ShipmentID:     shipmentID,
			PartyType:      partyType,
			PartyID:        partyID,
			Currency:       req.Currency,
			AmountOriginal: normalized.AmountOriginal,
			RateToEgp:      normalized.RateToEgp,
			AmountEgp:      normalized.AmountEgp,
			CostComponent:  req.CostComponent,
			Method:         defaultMethod(req.Method),
			AttachmentURL:  req.AttachmentURL,
			Note:           req.Note,
			PaymentDate:    paymentDate,
		}
		if createErr := s.paymentRepo.Create(txCtx, payment); createErr != nil {
			return fmt.Errorf("failed to create payment: %w", createErr)
		}

		for _, a := range plan {
			allocation := &model.PaymentAllocation{
				PaymentID:  payment.ID,
				ShipmentID: shipmentID,
				SupplierID: a.BeneficiaryID,
				AmountRmb:  a.Amount,
			}
			if allocErr := s.paymentRepo.CreateAllocation(txCtx, allocation); allocErr != nil {
				return fmt.Errorf("failed to create allocation: %w", allocErr)
			}
			payment.Allocations = append(payment.Allocations, *allocation)
		}

		if auditErr := s.auditPaymentCreated(txCtx, userID, shipment, payment, plan); auditErr != nil {
			return auditErr
		}

		if opts.SimulateFailureAfterInsert {
			return fmt.Errorf("simulated failure after payment insert")
		}

		// Recompute aggregates from scratch; the just-inserted payment is
		// visible inside this transaction.
		if aggErr := s.recomputeShipmentAggregates(txCtx, shipment, known, &paymentDate); aggErr != nil {
			return aggErr
		}

		created = payment
		return nil
	})

	if err != nil {
		return PaymentResponse{}, err
	}

	s.broadcast("payment.created", created)
	return toPaymentResponse(*created), nil
}

func (s *paymentService) DeletePayment(ctx context.Context, userID string, paymentID string) (DeletePaymentResult, error) {
	id, err := uuid.Parse(paymentID)
	if err != nil {
		return DeletePaymentResult{}, ErrPaymentNotFound
	}

	var result DeletePaymentResult
	var deleted *model.ShipmentPayment

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		payment, findErr := s.paymentRepo.FindByID(txCtx, id)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("failed to load payment: %w", findErr)
		}

		shipment, lockErr := s.shipmentRepo.FindByIDForUpdate(txCtx, payment.ShipmentID)
		if lockErr != nil {
			if errors.Is(lockErr, gorm.ErrRecordNotFound) {
				return ErrShipmentNotFound
			}
			return fmt.Errorf("failed to lock shipment: %w", lockErr)
		}

		allocationsDeleted, delErr := s.paymentRepo.DeleteAllocationsByPayment(txCtx, id)
		if delErr != nil {
			return fmt.Errorf("failed to delete allocations: %w", delErr)
		}
		if delErr := s.paymentRepo.Delete(txCtx, id); delErr != nil {
			return fmt.Errorf("failed to delete payment: %w", delErr)
		}

		items, loadErr := s.shipmentRepo.ListItems(txCtx, shipment.ID)
		if loadErr != nil {
			return fmt.Errorf("failed to load shipment items: %w", loadErr)
		}
		shippingDetails, loadErr := s.shipmentRepo.ListShippingDetails(txCtx, shipment.ID)
		if loadErr != nil {
			return fmt.Errorf("failed to load shipping details: %w", loadErr)
		}
		customsDetails, loadErr := s.shipmentRepo.ListCustomsDetails(txCtx, shipment.ID)
		if loadErr != nil {
			return fmt.Errorf("failed to load customs details: %w", loadErr)
		}

		known, totalErr := ComputeShipmentKnownTotal(shipment, shippingDetails, customsDetails, items,
			RateHints{LatestMarketRate: s.latestMarketRate(txCtx)})
		if totalErr != nil {
			return totalErr
		}

		if aggErr := s.recomputeShipmentAggregates(txCtx, shipment, known, nil); aggErr != nil {
			return aggErr
		}

		details, _ := json.Marshal(map[string]interface{}{
			"payment_id":          payment.ID.String(),
			"amount_egp":          payment.AmountEgp.StringFixed(2),
			"allocations_deleted": allocationsDeleted,
		})
		audit := &model.AuditLog{
			UserID:     parseUserID(userID),
			Action:     model.ActionDeletePayment,
			EntityID:   payment.ID.String(),
			EntityName: shipment.Code,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		deleted = payment
		result = DeletePaymentResult{Deleted: true, AllocationsDeleted: allocationsDeleted}
		return nil
	})

	if err != nil {
		return DeletePaymentResult{}, err
	}

	s.broadcast("payment.deleted", deleted)
	return result, nil
}

func (s *paymentService) GetPaymentAllowance(ctx context.Context, shipmentID string) (PaymentAllowance, error) {
	id, err := uuid.Parse(shipmentID)
	if err != nil {
		return PaymentAllowance{}, ErrShipmentNotFound
	}

	shipment, err := s.shipmentRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PaymentAllowance{}, ErrShipmentNotFound
		}
		return PaymentAllowance{}, fmt.Errorf("failed to load shipment: %w", err)
	}

	items, err := s.shipmentRepo.ListItems(ctx, id)
	if err != nil {
		return PaymentAllowance{}, fmt.Errorf("failed to load shipment items: %w", err)
	}
	shippingDetails, err := s.shipmentRepo.ListShippingDetails(ctx, id)
	if err != nil {
		return PaymentAllowance{}, fmt.Errorf("failed to load shipping details: %w", err)
	}
	customsDetails, err := s.shipmentRepo.ListCustomsDetails(ctx, id)
	if err != nil {
		return PaymentAllowance{}, fmt.Errorf("failed to load customs details: %w", err)
	}
	payments, err := s.paymentRepo.ListByShipment(ctx, id)
	if err != nil {
		return PaymentAllowance{}, fmt.Errorf("failed to load payments: %w", err)
	}

	latestRate := s.latestMarketRate(ctx)
	known, err := ComputeShipmentKnownTotal(shipment, shippingDetails, customsDetails, items,
		RateHints{LatestMarketRate: latestRate})
	if err != nil {
		return PaymentAllowance{}, err
	}

	recovered := false
	if !known.TotalEgp.IsPositive() && !HasDeclaredCosts(shipment) && len(items) > 0 {
		recoveredTotal, recErr := RecoverCostsFromItems(items, latestRate)
		if recErr == nil && recoveredTotal.TotalEgp.IsPositive() {
			known = recoveredTotal
			recovered = true
		}
	}

	alreadyPaid := sumPaymentsEgp(payments)
	remaining := decimal.Max(decimal.Zero, known.TotalEgp.Sub(alreadyPaid))
	return PaymentAllowance{
		KnownTotal:         known.TotalEgp.StringFixed(2),
		AlreadyPaid:        alreadyPaid.StringFixed(2),
		RemainingAllowed:   remaining.StringFixed(2),
		RecoveredFromItems: recovered || shipment.CostRecovered,
	}, nil
}

func (s *paymentService) GetAllocationPreview(ctx context.Context, shipmentID string, amountRmb string) (AllocationPreview, error) {
	id, err := uuid.Parse(shipmentID)
	if err != nil {
		return AllocationPreview{}, ErrShipmentNotFound
	}

	amount := ParseAmountOrZero(amountRmb)
	if !amount.IsPositive() {
		return AllocationPreview{}, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{"field": "amount_rmb"})
	}

	if _, err := s.shipmentRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AllocationPreview{}, ErrShipmentNotFound
		}
		return AllocationPreview{}, fmt.Errorf("failed to load shipment: %w", err)
	}

	items, err := s.shipmentRepo.ListItems(ctx, id)
	if err != nil {
		return AllocationPreview{}, fmt.Errorf("failed to load shipment items: %w", err)
	}
	payments, err := s.paymentRepo.ListByShipment(ctx, id)
	if err != nil {
		return AllocationPreview{}, fmt.Errorf("failed to load payments: %w", err)
	}
	allocations, err := s.paymentRepo.ListAllocationsByShipment(ctx, id)
	if err != nil {
		return AllocationPreview{}, fmt.Errorf("failed to load allocations: %w", err)
	}

	beneficiaries := supplierBeneficiaries(items, payments, allocations, s.latestMarketRate(ctx))
	plan := AllocateProportionally(amount, beneficiaries)

	allocated := make(map[uuid.UUID]decimal.Decimal, len(plan))
	for _, a := range plan {
		allocated[a.BeneficiaryID] = a.Amount
	}

	preview := AllocationPreview{AmountRmb: amount.StringFixed(2)}
	totalOutstanding := decimal.Zero
	for _, b := range beneficiaries {
		totalOutstanding = totalOutstanding.Add(b.Remaining)
		preview.Suppliers = append(preview.Suppliers, SupplierAllocationPreview{
			SupplierID:     b.ID.String(),
			GoodsTotalRmb:  b.Total.StringFixed(2),
			OutstandingRmb: b.Remaining.StringFixed(2),
			AllocatedRmb:   allocated[b.ID].StringFixed(2),
		})
	}
	preview.TotalOutstandingRmb = totalOutstanding.StringFixed(2)
	return preview, nil
}

// --- Party resolution (default only when exactly one candidate is eligible) ---

type partyCandidate struct {
	partyType string
	partyID   uuid.UUID
}

func (s *paymentService) resolveParty(ctx context.Context, shipment *model.Shipment, items []model.ShipmentItem, reqType, reqID string) (*string, *uuid.UUID, error) {
	candidates := eligibleParties(shipment, items)

	if reqType == "" && reqID == "" {
		switch len(candidates) {
		case 0:
			return nil, nil, nil
		case 1:
			t := candidates[0].partyType
			id := candidates[0].partyID
			if err := s.verifyPartyExists(ctx, t, id); err != nil {
				return nil, nil, err
			}
			return &t, &id, nil
		default:
			allowed := make([]map[string]string, 0, len(candidates))
			for _, c := range candidates {
				allowed = append(allowed, map[string]string{"party_type": c.partyType, "party_id": c.partyID.String()})
			}
			return nil, nil, ErrPartyRequired.WithDetails(map[string]interface{}{"eligible_parties": allowed})
		}
	}

	if reqType == "" || reqID == "" {
		return nil, nil, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{
			"field": "party_type/party_id must be supplied together",
		})
	}

	id, err := uuid.Parse(reqID)
	if err != nil {
		return nil, nil, ErrPaymentPayloadInvalid.WithDetails(map[string]interface{}{"field": "party_id"})
	}

	for _, c := range candidates {
		if c.partyType == reqType && c.partyID == id {
			if err := s.verifyPartyExists(ctx, reqType, id); err != nil {
				return nil, nil, err
			}
			t := reqType
			return &t, &id, nil
		}
	}
	return nil, nil, ErrPartyMismatch.WithDetails(map[string]interface{}{
		"party_type": reqType,
		"party_id":   reqID,
	})
}

func eligibleParties(shipment *model.Shipment, items []model.ShipmentItem) []partyCandidate {
	var candidates []partyCandidate
	seen := make(map[uuid.UUID]bool)
	for _, item := range items {
		if item.SupplierID != nil && !seen[*item.SupplierID] {
			seen[*item.SupplierID] = true
			candidates = append(candidates, partyCandidate{partyType: model.PartyTypeSupplier, partyID: *item.SupplierID})
		}
	}
	if shipment.ShippingCompanyID != nil {
		candidates = append(candidates, partyCandidate{partyType: model.PartyTypeShippingCompany, partyID: *shipment.ShippingCompanyID})
	}
	return candidates
}

func (s *paymentService) verifyPartyExists(ctx context.Context, partyType string, id uuid.UUID) error {
	switch partyType {
	case model.PartyTypeSupplier:
		if _, err := s.supplierRepo.FindByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSupplierNotFound
			}
			return fmt.Errorf("failed to load supplier: %w", err)
		}
	case model.PartyTypeShippingCompany:
		if _, err := s.companyRepo.FindByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShippingCompanyNotFound
			}
			return fmt.Errorf("failed to load shipping company: %w", err)
		}
	}
	return nil
}

// --- Overpayment guard ---

// componentCurrencyFor returns the currency a component's balances are kept
// in: customs and clearance in EGP, everything else in RMB.
func componentCurrencyFor(component string) string {
	if component == model.ComponentCustoms || component == model.ComponentClearance {
		return model.CurrencyEGP
	}
	return model.CurrencyRMB
}

func (s *paymentService) guardComponentOverpay(
	shipment *model.Shipment,
	items []model.ShipmentItem,
	shippingDetails []model.ShippingDetail,
	customsDetails []model.CustomsDetail,
	payments []model.ShipmentPayment,
	allocations []model.PaymentAllocation,
	partyType string,
	partyID uuid.UUID,
	component string,
	currency string,
	amount decimal.Decimal,
	paymentRate *decimal.Decimal,
	latestRate decimal.Decimal,
) error {
	componentCurrency := componentCurrencyFor(component)
	fallbackRate := shipment.PurchaseRate
	if !fallbackRate.IsPositive() {
		fallbackRate = latestRate
	}

	totalAllowed, err := s.componentTotalAllowed(shipment, items, shippingDetails, customsDetails, partyType, partyID, component, fallbackRate)
	if err != nil {
		return err
	}

	paidSoFar := decimal.Zero
	for _, p := range payments {
		if p.PartyType == nil || p.PartyID == nil || *p.PartyType != partyType || *p.PartyID != partyID || p.CostComponent != component {
			continue
		}
		converted, convErr := convertAmount(p.AmountOriginal, p.Currency, componentCurrency, p.RateToEgp, fallbackRate)
		if convErr != nil {
			return convErr
		}
		paidSoFar = paidSoFar.Add(converted)
	}

	// Supplier goods balances also absorb proportional allocations made on
	// their behalf by the shipping company.
	if partyType == model.PartyTypeSupplier && component == model.ComponentGoods {
		for _, a := range allocations {
			if a.SupplierID == partyID {
				paidSoFar = paidSoFar.Add(a.AmountRmb)
			}
		}
	}

	remaining := decimal.Max(decimal.Zero, totalAllowed.Sub(paidSoFar))

	candidate, err := convertAmount(amount, currency, componentCurrency, paymentRate, fallbackRate)
	if err != nil {
		return err
	}

	if candidate.GreaterThan(remaining.Add(overpayTolerance)) {
		return ErrPaymentOverpay.WithDetails(map[string]interface{}{
			"party_type":     partyType,
			"party_id":       partyID.String(),
			"cost_component": component,
			"currency":       componentCurrency,
			"total_allowed":  totalAllowed.StringFixed(2),
			"paid_so_far":    paidSoFar.StringFixed(2),
			"remaining":      remaining.StringFixed(2),
		})
	}
	return nil
}

// componentTotalAllowed computes how much a party may receive in total for a
// component, in the component's currency. Suppliers are capped at their own
// item-level goods total; shipping companies at the shipment-level component
// total, with the partial discount subtracted from goods.
func (s *paymentService) componentTotalAllowed(
	shipment *model.Shipment,
	items []model.ShipmentItem,
	shippingDetails []model.ShippingDetail,
	customsDetails []model.CustomsDetail,
	partyType string,
	partyID uuid.UUID,
	component string,
	fallbackRate decimal.Decimal,
) (decimal.Decimal, error) {
	if partyType == model.PartyTypeSupplier {
		if component != model.ComponentGoods {
			return decimal.Zero, nil
		}
		total := decimal.Zero
		for _, item := range items {
			if item.SupplierID != nil && *item.SupplierID == partyID {
				total = total.Add(item.PurchaseCostRmb)
			}
		}
		return total, nil
	}

	var detailPurchaseRmb, detailShippingRmb, detailCommissionRmb decimal.Decimal
	for _, d := range shippingDetails {
		detailPurchaseRmb = detailPurchaseRmb.Add(d.PurchaseRmb)
		detailShippingRmb = detailShippingRmb.Add(d.ShippingRmb)
		detailCommissionRmb = detailCommissionRmb.Add(d.CommissionRmb)
	}
	var detailCustomsEgp, detailClearanceEgp decimal.Decimal
	for _, d := range customsDetails {
		detailCustomsEgp = detailCustomsEgp.Add(d.CustomsEgp)
		detailClearanceEgp = detailClearanceEgp.Add(d.ClearanceEgp)
	}
	var itemPurchaseRmb, itemCustomsEgp, itemClearanceEgp decimal.Decimal
	for _, item := range items {
		cartons := decimal.NewFromInt(int64(item.Cartons))
		itemPurchaseRmb = itemPurchaseRmb.Add(item.PurchaseCostRmb)
		itemCustomsEgp = itemCustomsEgp.Add(cartons.Mul(item.CustomsPerCartonEgp))
		itemClearanceEgp = itemClearanceEgp.Add(cartons.Mul(item.ClearancePerCartonEgp))
	}

	switch component {
	case model.ComponentGoods:
		total := firstPositive(shipment.PurchaseCostRmb, detailPurchaseRmb, itemPurchaseRmb)
		if !total.IsPositive() && shipment.PurchaseCostEgp.IsPositive() {
			converted, err := convertAmount(shipment.PurchaseCostEgp, model.CurrencyEGP, model.CurrencyRMB, nil, fallbackRate)
			if err != nil {
				return decimal.Zero, err
			}
			total = converted
		}
		return decimal.Max(decimal.Zero, total.Sub(shipment.GoodsDiscountRmb)), nil
	case model.ComponentShipping:
		return firstPositive(shipment.ShippingCostRmb, detailShippingRmb), nil
	case model.ComponentCommission:
		return firstPositive(shipment.CommissionRmb, detailCommissionRmb), nil
	case model.ComponentCustoms:
		return firstPositive(shipment.CustomsCostEgp, detailCustomsEgp, itemCustomsEgp), nil
	case model.ComponentClearance:
		return firstPositive(shipment.ClearanceCostEgp, detailClearanceEgp, itemClearanceEgp), nil
	}
	return decimal.Zero, nil
}

// convertAmount converts between EGP and RMB using the payment's own rate or
// a shipment-level fallback.
func convertAmount(amount decimal.Decimal, from, to string, ownRate *decimal.Decimal, fallbackRate decimal.Decimal) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate := fallbackRate
	if ownRate != nil && ownRate.IsPositive() {
		rate = *ownRate
	}
	if !rate.IsPositive() {
		return decimal.Zero, ErrPaymentRateMissing
	}
	if from == model.CurrencyRMB && to == model.CurrencyEGP {
		return amount.Mul(rate), nil
	}
	if from == model.CurrencyEGP && to == model.CurrencyRMB {
		return amount.Div(rate), nil
	}
	return decimal.Zero, ErrCurrencyUnsupported.WithDetails(map[string]interface{}{"currency": from})
}

// --- Auto allocation ---

// allocationBeneficiaries checks auto-allocation eligibility and builds the
// per-supplier obligations. Eligibility reasons are reported individually so
// callers can correct the request.
func (s *paymentService) allocationBeneficiaries(
	items []model.ShipmentItem,
	payments []model.ShipmentPayment,
	allocations []model.PaymentAllocation,
	partyType *string,
	component string,
	currency string,
	latestRate decimal.Decimal,
) ([]AllocationBeneficiary, error) {
	if partyType == nil || *partyType != model.PartyTypeShippingCompany {
		return nil, ErrAllocationNotEligible.WithDetails(map[string]interface{}{"reason": "partyType"})
	}
	if component != model.ComponentGoods {
		return nil, ErrAllocationNotEligible.WithDetails(map[string]interface{}{"reason": "costComponent"})
	}
	if currency != model.CurrencyRMB {
		return nil, ErrAllocationNotEligible.WithDetails(map[string]interface{}{"reason": "paymentCurrency"})
	}

	goodsTotal := decimal.Zero
	for _, item := range items {
		goodsTotal = goodsTotal.Add(item.PurchaseCostRmb)
	}
	if !goodsTotal.IsPositive() {
		return nil, ErrAllocationNotEligible.WithDetails(map[string]interface{}{"reason": "shipmentGoodsTotal"})
	}

	return supplierBeneficiaries(items, payments, allocations, latestRate), nil
}

// supplierBeneficiaries computes each supplier's goods total and what is
// still unpaid after direct payments and earlier allocations.
func supplierBeneficiaries(
	items []model.ShipmentItem,
	payments []model.ShipmentPayment,
	allocations []model.PaymentAllocation,
	latestRate decimal.Decimal,
) []AllocationBeneficiary {
	totals := make(map[uuid.UUID]decimal.Decimal)
	var order []uuid.UUID
	for _, item := range items {
		if item.SupplierID == nil {
			continue
		}
		if _, ok := totals[*item.SupplierID]; !ok {
			order = append(order, *item.SupplierID)
		}
		totals[*item.SupplierID] = totals[*item.SupplierID].Add(item.PurchaseCostRmb)
	}

	paid := make(map[uuid.UUID]decimal.Decimal)
	for _, a := range allocations {
		paid[a.SupplierID] = paid[a.SupplierID].Add(a.AmountRmb)
	}
	for _, p := range payments {
		if p.PartyType == nil || p.PartyID == nil || *p.PartyType != model.PartyTypeSupplier || p.CostComponent != model.ComponentGoods {
			continue
		}
		converted, err := convertAmount(p.AmountOriginal, p.Currency, model.CurrencyRMB, p.RateToEgp, latestRate)
		if err != nil {
			continue
		}
		paid[*p.PartyID] = paid[*p.PartyID].Add(converted)
	}

	beneficiaries := make([]AllocationBeneficiary, 0, len(order))
	for _, id := range order {
		total := totals[id]
		remaining := decimal.Max(decimal.Zero, total.Sub(paid[id]))
		beneficiaries = append(beneficiaries, AllocationBeneficiary{ID: id, Total: total, Remaining: remaining})
	}
	return beneficiaries
}

// --- Aggregates & helpers ---

func (s *paymentService) recomputeShipmentAggregates(ctx context.Context, shipment *model.Shipment, known KnownTotal, paymentDate *time.Time) error {
	payments, err := s.paymentRepo.ListByShipment(ctx, shipment.ID)
	if err != nil {
		return fmt.Errorf("failed to reload payments: %w", err)
	}

	totalPaid := sumPaymentsEgp(payments)
	shipment.TotalPaidEgp = RoundEgp(totalPaid)
	shipment.FinalTotalCostEgp = known.TotalEgp
	shipment.BalanceEgp = decimal.Max(decimal.Zero, known.TotalEgp.Sub(totalPaid)).Round(2)
	if known.Recovered {
		shipment.CostRecovered = true
	}
	if paymentDate != nil {
		shipment.LastPaymentDate = paymentDate
	}

	if err := s.shipmentRepo.Update(ctx, shipment); err != nil {
		return fmt.Errorf("failed to update shipment aggregates: %w", err)
	}
	return nil
}

func (s *paymentService) auditPaymentCreated(ctx context.Context, userID string, shipment *model.Shipment, payment *model.ShipmentPayment, plan []Allocation) error {
	allocSummary := make([]map[string]string, 0, len(plan))
	for _, a := range plan {
		allocSummary = append(allocSummary, map[string]string{
			"supplier_id": a.BeneficiaryID.String(),
			"amount_rmb":  a.Amount.StringFixed(2),
		})
	}
	details, _ := json.Marshal(map[string]interface{}{
		"shipment_code":  shipment.Code,
		"currency":       payment.Currency,
		"amount":         payment.AmountOriginal.String(),
		"amount_egp":     payment.AmountEgp.StringFixed(2),
		"cost_component": payment.CostComponent,
		"allocations":    allocSummary,
	})

	action := model.ActionCreatePayment
	if len(plan) > 0 {
		action = model.ActionAllocate
	}
	audit := &model.AuditLog{
		UserID:     parseUserID(userID),
		Action:     action,
		EntityID:   payment.ID.String(),
		EntityName: shipment.Code,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, audit); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *paymentService) latestMarketRate(ctx context.Context) decimal.Decimal {
	rate, err := s.rateRepo.FindLatest(ctx, model.CurrencyRMB)
	if err != nil {
		return decimal.Zero
	}
	return rate.RateToEgp
}

func (s *paymentService) broadcast(event string, payment *model.ShipmentPayment) {
	if s.hub == nil || payment == nil {
		return
	}
	message, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data": map[string]interface{}{
			"payment_id":  payment.ID.String(),
			"shipment_id": payment.ShipmentID.String(),
			"amount_egp":  payment.AmountEgp.StringFixed(2),
		},
	})
	if err != nil {
		return
	}
	s.hub.Broadcast <- message
}

func backfillShipmentCosts(shipment *model.Shipment, items []model.ShipmentItem, recovered KnownTotal) {
	var purchaseRmb decimal.Decimal
	for _, item := range items {
		purchaseRmb = purchaseRmb.Add(item.PurchaseCostRmb)
	}
	// Idempotent: only fields still at zero are written.
	if shipment.PurchaseCostRmb.IsZero() {
		shipment.PurchaseCostRmb = purchaseRmb
	}
	if shipment.CustomsCostEgp.IsZero() {
		shipment.CustomsCostEgp = RoundEgp(recovered.CustomsEgp)
	}
	if shipment.ClearanceCostEgp.IsZero() {
		shipment.ClearanceCostEgp = RoundEgp(recovered.ClearanceEgp)
	}
	shipment.CostRecovered = true
}

func sumPaymentsEgp(payments []model.ShipmentPayment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.AmountEgp)
	}
	return total
}

func firstPositive(values ...decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if v.IsPositive() {
			return v
		}
	}
	return decimal.Zero
}

func validComponent(component string) bool {
	switch component {
	case model.ComponentGoods, model.ComponentShipping, model.ComponentCommission,
		model.ComponentCustoms, model.ComponentClearance:
		return true
	}
	return false
}

func defaultMethod(method string) string {
	if method == "" {
		return model.MethodCash
	}
	return method
}

func parsePaymentDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, ErrPaymentDateInvalid
}

func parseUserID(userID string) *uuid.UUID {
	if parsed, err := uuid.Parse(userID); err == nil {
		return &parsed
	}
	return nil
}

func toPaymentResponse(p model.ShipmentPayment) PaymentResponse {
	resp := PaymentResponse{
		ID:             p.ID.String(),
		ShipmentID:     p.ShipmentID.String(),
		Currency:       p.Currency,
		AmountOriginal: p.AmountOriginal.StringFixed(2),
		AmountEgp:      p.AmountEgp.StringFixed(2),
		CostComponent:  p.CostComponent,
		Method:         p.Method,
		AttachmentURL:  p.AttachmentURL,
		Note:           p.Note,
		PaymentDate:    p.PaymentDate.Format(time.RFC3339),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
	if p.PartyType != nil {
		resp.PartyType = p.PartyType
	}
	if p.PartyID != nil {
		id := p.PartyID.String()
		resp.PartyID = &id
	}
	if p.RateToEgp != nil {
		rate := p.RateToEgp.StringFixed(4)
		resp.RateToEgp = &rate
	}
	for _, a := range p.Allocations {
		resp.Allocations = append(resp.Allocations, AllocationResponse{
			SupplierID: a.SupplierID.String(),
			AmountRmb:  a.AmountRmb.StringFixed(2),
		})
	}
	return resp
}
