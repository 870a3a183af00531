package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"shipledger/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shipmentTestEnv struct {
	store *memStore
	svc   ShipmentService
}

func newShipmentTestEnv() *shipmentTestEnv {
	store := newMemStore()
	return &shipmentTestEnv{
		store: store,
		svc: NewShipmentService(
			&fakeShipmentRepo{store: store},
			&fakePaymentRepo{store: store},
			&fakeSupplierRepo{store: store},
			&fakeCompanyRepo{store: store},
			&fakeRateRepo{store: store},
			&fakeAuditRepo{store: store},
			&fakeTxManager{store: store},
		),
	}
}

func TestCreateShipmentGeneratesSequentialCodes(t *testing.T) {
	env := newShipmentTestEnv()

	first, err := env.svc.CreateShipment(context.Background(), "", CreateShipmentRequest{})
	require.NoError(t, err)
	second, err := env.svc.CreateShipment(context.Background(), "", CreateShipmentRequest{})
	require.NoError(t, err)

	prefix := fmt.Sprintf("SHP-%s-", time.Now().Format("20060102"))
	assert.Equal(t, prefix+"00001", first.Code)
	assert.Equal(t, prefix+"00002", second.Code)
}

func TestCreateShipmentWithItemsAndSuppliers(t *testing.T) {
	env := newShipmentTestEnv()
	supplier := model.Supplier{ID: uuid.New(), Name: "Golden Dragon", IsActive: true}
	env.store.suppliers[supplier.ID] = supplier
	company := model.ShippingCompany{ID: uuid.New(), Name: "Nile Freight", IsActive: true}
	env.store.companies[company.ID] = company

	shipment, err := env.svc.CreateShipment(context.Background(), uuid.New().String(), CreateShipmentRequest{
		ShippingCompanyID: company.ID.String(),
		PurchaseRate:      "6.9543",
		Items: []CreateShipmentItemRequest{
			{
				SupplierID:          supplier.ID.String(),
				Description:         "ceramic tiles",
				Cartons:             40,
				PurchaseCostRmb:     "1200.50",
				CustomsPerCartonEgp: "3.25",
			},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, shipment.ShippingCompanyID)
	assert.Equal(t, company.ID, *shipment.ShippingCompanyID)
	assert.True(t, shipment.PurchaseRate.Equal(dec("6.9543")))

	require.Len(t, shipment.Items, 1)
	item := shipment.Items[0]
	require.NotNil(t, item.SupplierID)
	assert.Equal(t, supplier.ID, *item.SupplierID)
	assert.Equal(t, 40, item.Cartons)
	assert.True(t, item.PurchaseCostRmb.Equal(dec("1200.50")))

	require.Len(t, env.store.audits, 1)
	assert.Equal(t, model.ActionCreateShipment, env.store.audits[0].Action)
}

func TestCreateShipmentRejectsUnknownSupplier(t *testing.T) {
	env := newShipmentTestEnv()

	_, err := env.svc.CreateShipment(context.Background(), "", CreateShipmentRequest{
		Items: []CreateShipmentItemRequest{
			{SupplierID: uuid.New().String(), PurchaseCostRmb: "100"},
		},
	})
	assert.ErrorIs(t, err, ErrSupplierNotFound)
	assert.Empty(t, env.store.shipments)
}

func TestCreateShipmentRejectsUnknownCompany(t *testing.T) {
	env := newShipmentTestEnv()

	_, err := env.svc.CreateShipment(context.Background(), "", CreateShipmentRequest{
		ShippingCompanyID: uuid.New().String(),
	})
	assert.ErrorIs(t, err, ErrShippingCompanyNotFound)
}

func TestGetShipmentResolvesKnownTotal(t *testing.T) {
	env := newShipmentTestEnv()

	created, err := env.svc.CreateShipment(context.Background(), "", CreateShipmentRequest{
		PurchaseCostRmb: "1000",
		CustomsCostEgp:  "50",
		PurchaseRate:    "10",
	})
	require.NoError(t, err)

	detail, err := env.svc.GetShipment(context.Background(), created.ID.String())
	require.NoError(t, err)
	assert.True(t, detail.KnownTotal.TotalEgp.Equal(dec("10050.00")), "got %s", detail.KnownTotal.TotalEgp)
	assert.Empty(t, detail.Payments)
}

func TestGetShipmentToleratesMissingRate(t *testing.T) {
	env := newShipmentTestEnv()

	// RMB-only costs and no rate anywhere: the shipment must still be
	// readable, with a zero cost breakdown.
	created, err := env.svc.CreateShipment(context.Background(), "", CreateShipmentRequest{
		PurchaseCostRmb: "1000",
	})
	require.NoError(t, err)

	detail, err := env.svc.GetShipment(context.Background(), created.ID.String())
	require.NoError(t, err)
	assert.True(t, detail.KnownTotal.TotalEgp.IsZero())
}

func TestSetArchivedTogglesLock(t *testing.T) {
	env := newShipmentTestEnv()

	created, err := env.svc.CreateShipment(context.Background(), "", CreateShipmentRequest{
		PurchaseCostEgp: "500",
	})
	require.NoError(t, err)

	archived, err := env.svc.SetArchived(context.Background(), "", created.ID.String(), true)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.True(t, env.store.shipments[created.ID].Archived)

	restored, err := env.svc.SetArchived(context.Background(), "", created.ID.String(), false)
	require.NoError(t, err)
	assert.False(t, restored.Archived)
}

func TestAddDetailsRequireExistingShipment(t *testing.T) {
	env := newShipmentTestEnv()

	_, err := env.svc.AddShippingDetail(context.Background(), uuid.New().String(), AddShippingDetailRequest{PurchaseRmb: "100"})
	assert.ErrorIs(t, err, ErrShipmentNotFound)

	_, err = env.svc.AddCustomsDetail(context.Background(), uuid.New().String(), AddCustomsDetailRequest{CustomsEgp: "100"})
	assert.ErrorIs(t, err, ErrShipmentNotFound)
}

func TestAddDetailsExtendKnownTotal(t *testing.T) {
	env := newShipmentTestEnv()

	created, err := env.svc.CreateShipment(context.Background(), "", CreateShipmentRequest{PurchaseRate: "5"})
	require.NoError(t, err)

	_, err = env.svc.AddShippingDetail(context.Background(), created.ID.String(), AddShippingDetailRequest{
		PurchaseRmb: "100",
		ShippingRmb: "20",
	})
	require.NoError(t, err)
	_, err = env.svc.AddCustomsDetail(context.Background(), created.ID.String(), AddCustomsDetailRequest{
		CustomsEgp: "40",
	})
	require.NoError(t, err)

	detail, err := env.svc.GetShipment(context.Background(), created.ID.String())
	require.NoError(t, err)
	// 120 RMB x 5 + 40 EGP customs
	assert.True(t, detail.KnownTotal.TotalEgp.Equal(dec("640.00")), "got %s", detail.KnownTotal.TotalEgp)
}
