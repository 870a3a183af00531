package service

import (
	"shipledger/internal/model"

	"github.com/shopspring/decimal"
)

// RateHints are the RMB->EGP rate candidates tried after the shipment's own
// purchase rate, in this exact order: latest market rate, the rate attached
// to the triggering payment, a caller-supplied default. The first positive
// candidate wins. Downstream overpayment guards depend on this precedence.
type RateHints struct {
	LatestMarketRate decimal.Decimal
	PaymentRate      decimal.Decimal
	DefaultRate      decimal.Decimal
}

// KnownTotal is the resolved, best-available cost of a shipment broken down
// by component, all in EGP. Recovered marks totals reconstructed from line
// items rather than declared figures.
type KnownTotal struct {
	PurchaseEgp   decimal.Decimal `json:"purchase_egp"`
	ShippingEgp   decimal.Decimal `json:"shipping_egp"`
	CommissionEgp decimal.Decimal `json:"commission_egp"`
	CustomsEgp    decimal.Decimal `json:"customs_egp"`
	ClearanceEgp  decimal.Decimal `json:"clearance_egp"`
	TotalEgp      decimal.Decimal `json:"total_egp"`
	Recovered     bool            `json:"recovered"`
}

// costCandidate is one source in a component's fallback chain.
type costCandidate struct {
	amount decimal.Decimal
	inRmb  bool
}

func resolveRmbRate(shipmentRate decimal.Decimal, hints RateHints) (decimal.Decimal, bool) {
	for _, candidate := range []decimal.Decimal{
		shipmentRate,
		hints.LatestMarketRate,
		hints.PaymentRate,
		hints.DefaultRate,
	} {
		if candidate.IsPositive() {
			return candidate, true
		}
	}
	return decimal.Zero, false
}

// resolveComponent walks the candidate chain and returns the first positive
// value in EGP. An RMB candidate with no usable rate fails with
// MissingRmbRateError; a chain with no positive candidate resolves to zero
// without error.
func resolveComponent(name string, candidates []costCandidate, rate decimal.Decimal, hasRate bool) (decimal.Decimal, error) {
	for _, c := range candidates {
		if !c.amount.IsPositive() {
			continue
		}
		if !c.inRmb {
			return c.amount, nil
		}
		if !hasRate {
			return decimal.Zero, &MissingRmbRateError{Component: name}
		}
		return c.amount.Mul(rate), nil
	}
	return decimal.Zero, nil
}

// HasDeclaredCosts reports whether any shipment-level cost figure was entered.
func HasDeclaredCosts(s *model.Shipment) bool {
	for _, d := range []decimal.Decimal{
		s.PurchaseCostRmb, s.PurchaseCostEgp,
		s.ShippingCostRmb, s.ShippingCostEgp,
		s.CommissionRmb, s.CommissionEgp,
		s.CustomsCostRmb, s.CustomsCostEgp,
		s.ClearanceCostRmb, s.ClearanceCostEgp,
	} {
		if d.IsPositive() {
			return true
		}
	}
	return false
}

// ComputeShipmentKnownTotal resolves the five cost components independently:
// declared EGP, then declared RMB converted with the rate chain, then
// shipping-detail RMB figures (purchase/shipping/commission), then line-item
// derived values (purchase in RMB, customs/clearance in EGP). Pure function;
// identical inputs always produce identical output.
func ComputeShipmentKnownTotal(
	s *model.Shipment,
	shippingDetails []model.ShippingDetail,
	customsDetails []model.CustomsDetail,
	items []model.ShipmentItem,
	hints RateHints,
) (KnownTotal, error) {
	rate, hasRate := resolveRmbRate(s.PurchaseRate, hints)

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

	var result KnownTotal
	var err error

	result.PurchaseEgp, err = resolveComponent(model.ComponentGoods, []costCandidate{
		{amount: s.PurchaseCostEgp},
		{amount: s.PurchaseCostRmb, inRmb: true},
		{amount: detailPurchaseRmb, inRmb: true},
		{amount: itemPurchaseRmb, inRmb: true},
	}, rate, hasRate)
	if err != nil {
		return KnownTotal{}, err
	}

	result.CommissionEgp, err = resolveComponent(model.ComponentCommission, []costCandidate{
		{amount: s.CommissionEgp},
		{amount: s.CommissionRmb, inRmb: true},
		{amount: detailCommissionRmb, inRmb: true},
	}, rate, hasRate)
	if err != nil {
		return KnownTotal{}, err
	}

	result.ShippingEgp, err = resolveComponent(model.ComponentShipping, []costCandidate{
		{amount: s.ShippingCostEgp},
		{amount: s.ShippingCostRmb, inRmb: true},
		{amount: detailShippingRmb, inRmb: true},
	}, rate, hasRate)
	if err != nil {
		return KnownTotal{}, err
	}

	result.CustomsEgp, err = resolveComponent(model.ComponentCustoms, []costCandidate{
		{amount: s.CustomsCostEgp},
		{amount: s.CustomsCostRmb, inRmb: true},
		{amount: detailCustomsEgp},
		{amount: itemCustomsEgp},
	}, rate, hasRate)
	if err != nil {
		return KnownTotal{}, err
	}

	result.ClearanceEgp, err = resolveComponent(model.ComponentClearance, []costCandidate{
		{amount: s.ClearanceCostEgp},
		{amount: s.ClearanceCostRmb, inRmb: true},
		{amount: detailClearanceEgp},
		{amount: itemClearanceEgp},
	}, rate, hasRate)
	if err != nil {
		return KnownTotal{}, err
	}

	result.TotalEgp = RoundEgp(result.PurchaseEgp.
		Add(result.CommissionEgp).
		Add(result.ShippingEgp).
		Add(result.CustomsEgp).
		Add(result.ClearanceEgp))
	return result, nil
}

// RecoverCostsFromItems reconstructs a shipment's costs from its line items
// for brand-new shipments with no declared totals: purchase as item RMB at
// the latest market rate, customs/clearance as cartons times the per-carton
// EGP rates. The result is flagged Recovered for downstream reporting.
func RecoverCostsFromItems(items []model.ShipmentItem, latestRate decimal.Decimal) (KnownTotal, error) {
	var purchaseRmb, customsEgp, clearanceEgp decimal.Decimal
	for _, item := range items {
		cartons := decimal.NewFromInt(int64(item.Cartons))
		purchaseRmb = purchaseRmb.Add(item.PurchaseCostRmb)
		customsEgp = customsEgp.Add(cartons.Mul(item.CustomsPerCartonEgp))
		clearanceEgp = clearanceEgp.Add(cartons.Mul(item.ClearancePerCartonEgp))
	}

	result := KnownTotal{
		CustomsEgp:   customsEgp,
		ClearanceEgp: clearanceEgp,
		Recovered:    true,
	}
	if purchaseRmb.IsPositive() {
		if !latestRate.IsPositive() {
			return KnownTotal{}, &MissingRmbRateError{Component: model.ComponentGoods}
		}
		result.PurchaseEgp = purchaseRmb.Mul(latestRate)
	}

	result.TotalEgp = RoundEgp(result.PurchaseEgp.Add(result.CustomsEgp).Add(result.ClearanceEgp))
	return result, nil
}
