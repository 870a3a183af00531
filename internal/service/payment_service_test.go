package service

import (
	"context"
	"testing"

	"shipledger/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentTestEnv struct {
	store *memStore
	svc   PaymentService
}

func newPaymentTestEnv() *paymentTestEnv {
	store := newMemStore()
	return &paymentTestEnv{
		store: store,
		svc: NewPaymentService(
			&fakeShipmentRepo{store: store},
			&fakePaymentRepo{store: store},
			&fakeSupplierRepo{store: store},
			&fakeCompanyRepo{store: store},
			&fakeRateRepo{store: store},
			&fakeAuditRepo{store: store},
			&fakeTxManager{store: store},
			nil,
		),
	}
}

func (e *paymentTestEnv) addSupplier(name string) uuid.UUID {
	supplier := model.Supplier{ID: uuid.New(), Name: name, IsActive: true}
	e.store.suppliers[supplier.ID] = supplier
	return supplier.ID
}

func (e *paymentTestEnv) addCompany(name string) uuid.UUID {
	company := model.ShippingCompany{ID: uuid.New(), Name: name, IsActive: true}
	e.store.companies[company.ID] = company
	return company.ID
}

func (e *paymentTestEnv) addShipment(s model.Shipment) uuid.UUID {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Code == "" {
		s.Code = "SHP-20260801-00001"
	}
	e.store.shipments[s.ID] = s
	return s.ID
}

func (e *paymentTestEnv) addItem(shipmentID uuid.UUID, supplierID *uuid.UUID, goodsRmb string, cartons int) {
	e.store.items = append(e.store.items, model.ShipmentItem{
		ID:              uuid.New(),
		ShipmentID:      shipmentID,
		SupplierID:      supplierID,
		Cartons:         cartons,
		PurchaseCostRmb: dec(goodsRmb),
	})
}

func TestCreatePaymentEgpAgainstSupplierGoods(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	shipmentID := env.addShipment(model.Shipment{
		PurchaseCostRmb: dec("100"),
		PurchaseRate:    dec("10"),
	})
	env.addItem(shipmentID, &supplierID, "100", 10)

	payment, err := env.svc.CreatePayment(context.Background(), uuid.New().String(), CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "400",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	require.NoError(t, err)

	// Single eligible party is used as the default.
	require.NotNil(t, payment.PartyType)
	assert.Equal(t, model.PartyTypeSupplier, *payment.PartyType)
	require.NotNil(t, payment.PartyID)
	assert.Equal(t, supplierID.String(), *payment.PartyID)
	assert.Equal(t, "400.00", payment.AmountEgp)

	shipment := env.store.shipments[shipmentID]
	assert.True(t, shipment.TotalPaidEgp.Equal(dec("400.00")))
	assert.True(t, shipment.FinalTotalCostEgp.Equal(dec("1000.00")))
	assert.True(t, shipment.BalanceEgp.Equal(dec("600.00")), "got %s", shipment.BalanceEgp)
	require.NotNil(t, shipment.LastPaymentDate)
	require.Len(t, env.store.audits, 1)
	assert.Equal(t, model.ActionCreatePayment, env.store.audits[0].Action)
}

func TestCreatePaymentRejectsOverpayAgainstComponent(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	shipmentID := env.addShipment(model.Shipment{
		PurchaseCostRmb: dec("100"),
		PurchaseRate:    dec("10"),
	})
	env.addItem(shipmentID, &supplierID, "100", 10)

	_, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "400",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	require.NoError(t, err)

	// 40 of 100 RMB already settled; 70 RMB worth must be rejected.
	_, err = env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "700",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	require.ErrorIs(t, err, ErrPaymentOverpay)

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "60.00", domainErr.Details["remaining"])

	assert.Len(t, env.store.payments, 1)
}

func TestCreatePaymentPartyRequiredWhenAmbiguous(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	companyID := env.addCompany("Nile Freight")
	shipmentID := env.addShipment(model.Shipment{
		ShippingCompanyID: &companyID,
		PurchaseCostRmb:   dec("100"),
		PurchaseRate:      dec("10"),
	})
	env.addItem(shipmentID, &supplierID, "100", 10)

	_, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "100",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	require.ErrorIs(t, err, ErrPartyRequired)

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Len(t, domainErr.Details["eligible_parties"], 2)
}

func TestCreatePaymentPartyMismatch(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	shipmentID := env.addShipment(model.Shipment{
		PurchaseCostRmb: dec("100"),
		PurchaseRate:    dec("10"),
	})
	env.addItem(shipmentID, &supplierID, "100", 10)

	_, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		PartyType:      model.PartyTypeSupplier,
		PartyID:        uuid.New().String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "100",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	assert.ErrorIs(t, err, ErrPartyMismatch)
}

func TestCreatePaymentArchivedShipmentLocked(t *testing.T) {
	env := newPaymentTestEnv()
	shipmentID := env.addShipment(model.Shipment{
		PurchaseCostEgp: dec("1000"),
		Archived:        true,
	})

	_, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "100",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	assert.ErrorIs(t, err, ErrShipmentLocked)
}

func TestCreatePaymentShipmentNotFound(t *testing.T) {
	env := newPaymentTestEnv()

	_, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     uuid.New().String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "100",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	assert.ErrorIs(t, err, ErrShipmentNotFound)
}

func TestCreatePaymentRollsBackOnFailureAfterInsert(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	shipmentID := env.addShipment(model.Shipment{
		PurchaseCostRmb: dec("100"),
		PurchaseRate:    dec("10"),
	})
	env.addItem(shipmentID, &supplierID, "100", 10)

	_, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "400",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{SimulateFailureAfterInsert: true})
	require.Error(t, err)

	// Nothing may survive the rollback: no payment, no audit row, and the
	// shipment aggregates stay untouched.
	assert.Empty(t, env.store.payments)
	assert.Empty(t, env.store.allocations)
	assert.Empty(t, env.store.audits)
	shipment := env.store.shipments[shipmentID]
	assert.True(t, shipment.TotalPaidEgp.IsZero())
	assert.Nil(t, shipment.LastPaymentDate)
}

func TestCreatePaymentAutoAllocatesAcrossSuppliers(t *testing.T) {
	env := newPaymentTestEnv()
	s1 := env.addSupplier("Golden Dragon")
	s2 := env.addSupplier("Jade River")
	companyID := env.addCompany("Nile Freight")
	shipmentID := env.addShipment(model.Shipment{
		ShippingCompanyID: &companyID,
		PurchaseCostRmb:   dec("300"),
		PurchaseRate:      dec("10"),
	})
	env.addItem(shipmentID, &s1, "100", 5)
	env.addItem(shipmentID, &s2, "200", 5)

	payment, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		PartyType:      model.PartyTypeShippingCompany,
		PartyID:        companyID.String(),
		Currency:       model.CurrencyRMB,
		AmountOriginal: "150",
		RateToEgp:      "10",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{AutoAllocate: true})
	require.NoError(t, err)

	require.Len(t, payment.Allocations, 2)
	byID := map[string]string{}
	for _, a := range payment.Allocations {
		byID[a.SupplierID] = a.AmountRmb
	}
	assert.Equal(t, "50.00", byID[s1.String()])
	assert.Equal(t, "100.00", byID[s2.String()])
	assert.Len(t, env.store.allocations, 2)
	assert.Equal(t, "1500.00", payment.AmountEgp)

	require.Len(t, env.store.audits, 1)
	assert.Equal(t, model.ActionAllocate, env.store.audits[0].Action)
}

func TestCreatePaymentAutoAllocateRejectsSupplierParty(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	shipmentID := env.addShipment(model.Shipment{
		PurchaseCostRmb: dec("100"),
		PurchaseRate:    dec("10"),
	})
	env.addItem(shipmentID, &supplierID, "100", 5)

	_, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		PartyType:      model.PartyTypeSupplier,
		PartyID:        supplierID.String(),
		Currency:       model.CurrencyRMB,
		AmountOriginal: "50",
		RateToEgp:      "10",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{AutoAllocate: true})
	require.ErrorIs(t, err, ErrAllocationNotEligible)

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "partyType", domainErr.Details["reason"])
}

func TestCreatePaymentBackfillsRecoveredCosts(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	shipmentID := env.addShipment(model.Shipment{})
	env.store.items = append(env.store.items, model.ShipmentItem{
		ID:                  uuid.New(),
		ShipmentID:          shipmentID,
		SupplierID:          &supplierID,
		Cartons:             10,
		PurchaseCostRmb:     dec("100"),
		CustomsPerCartonEgp: dec("2"),
	})
	env.store.rates = append(env.store.rates, model.ExchangeRate{
		ID: uuid.New(), Currency: model.CurrencyRMB, RateToEgp: dec("8"),
	})

	_, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "100",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	require.NoError(t, err)

	shipment := env.store.shipments[shipmentID]
	assert.True(t, shipment.CostRecovered)
	assert.True(t, shipment.PurchaseCostRmb.Equal(dec("100")))
	assert.True(t, shipment.CustomsCostEgp.Equal(dec("20.00")))
	// 100 RMB x 8 + 20 EGP customs = 820; 100 paid leaves 720.
	assert.True(t, shipment.FinalTotalCostEgp.Equal(dec("820.00")), "got %s", shipment.FinalTotalCostEgp)
	assert.True(t, shipment.BalanceEgp.Equal(dec("720.00")))
}

func TestDeletePaymentRestoresAggregates(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	shipmentID := env.addShipment(model.Shipment{
		PurchaseCostRmb: dec("100"),
		PurchaseRate:    dec("10"),
	})
	env.addItem(shipmentID, &supplierID, "100", 5)

	created, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "400",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	require.NoError(t, err)

	result, err := env.svc.DeletePayment(context.Background(), "", created.ID)
	require.NoError(t, err)
	assert.True(t, result.Deleted)

	assert.Empty(t, env.store.payments)
	shipment := env.store.shipments[shipmentID]
	assert.True(t, shipment.TotalPaidEgp.IsZero())
	assert.True(t, shipment.BalanceEgp.Equal(dec("1000.00")))
}

func TestGetPaymentAllowance(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	shipmentID := env.addShipment(model.Shipment{
		PurchaseCostRmb: dec("100"),
		PurchaseRate:    dec("10"),
	})
	env.addItem(shipmentID, &supplierID, "100", 5)

	_, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyEGP,
		AmountOriginal: "250",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	require.NoError(t, err)

	allowance, err := env.svc.GetPaymentAllowance(context.Background(), shipmentID.String())
	require.NoError(t, err)
	assert.Equal(t, "1000.00", allowance.KnownTotal)
	assert.Equal(t, "250.00", allowance.AlreadyPaid)
	assert.Equal(t, "750.00", allowance.RemainingAllowed)
}

func TestGetAllocationPreviewDoesNotPersist(t *testing.T) {
	env := newPaymentTestEnv()
	s1 := env.addSupplier("Golden Dragon")
	s2 := env.addSupplier("Jade River")
	companyID := env.addCompany("Nile Freight")
	shipmentID := env.addShipment(model.Shipment{
		ShippingCompanyID: &companyID,
		PurchaseCostRmb:   dec("300"),
		PurchaseRate:      dec("10"),
	})
	env.addItem(shipmentID, &s1, "100", 5)
	env.addItem(shipmentID, &s2, "200", 5)

	preview, err := env.svc.GetAllocationPreview(context.Background(), shipmentID.String(), "150")
	require.NoError(t, err)

	assert.Equal(t, "300.00", preview.TotalOutstandingRmb)
	require.Len(t, preview.Suppliers, 2)
	assert.Equal(t, "50.00", preview.Suppliers[0].AllocatedRmb)
	assert.Equal(t, "100.00", preview.Suppliers[1].AllocatedRmb)
	assert.Empty(t, env.store.allocations)
	assert.Empty(t, env.store.payments)
}

func TestCreatePaymentRmbWithoutRateUsesLatestMarketRate(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	shipmentID := env.addShipment(model.Shipment{
		PurchaseCostRmb: dec("100"),
		PurchaseRate:    dec("10"),
	})
	env.addItem(shipmentID, &supplierID, "100", 5)
	env.store.rates = append(env.store.rates, model.ExchangeRate{
		ID: uuid.New(), Currency: model.CurrencyRMB, RateToEgp: dec("9.5"),
	})

	payment, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyRMB,
		AmountOriginal: "10",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	require.NoError(t, err)
	assert.Equal(t, "95.00", payment.AmountEgp)
	require.NotNil(t, payment.RateToEgp)
	assert.Equal(t, "9.5000", *payment.RateToEgp)
}

func TestCreatePaymentRmbWithoutAnyRateFails(t *testing.T) {
	env := newPaymentTestEnv()
	supplierID := env.addSupplier("Golden Dragon")
	shipmentID := env.addShipment(model.Shipment{PurchaseCostRmb: dec("100")})
	env.addItem(shipmentID, &supplierID, "100", 5)

	_, err := env.svc.CreatePayment(context.Background(), "", CreatePaymentRequest{
		ShipmentID:     shipmentID.String(),
		Currency:       model.CurrencyRMB,
		AmountOriginal: "10",
		CostComponent:  model.ComponentGoods,
	}, CreatePaymentOptions{})
	assert.ErrorIs(t, err, ErrPaymentRateMissing)
}
