package service

import (
	"context"

	"shipledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// memStore is shared in-memory state backing the fake repositories. The fake
// transaction manager snapshots it before each unit of work and restores the
// snapshot on error, mirroring a database rollback.
type memStore struct {
	shipments   map[uuid.UUID]model.Shipment
	items       []model.ShipmentItem
	shipDetails []model.ShippingDetail
	custDetails []model.CustomsDetail
	payments    []model.ShipmentPayment
	allocations []model.PaymentAllocation
	suppliers   map[uuid.UUID]model.Supplier
	companies   map[uuid.UUID]model.ShippingCompany
	rates       []model.ExchangeRate
	audits      []model.AuditLog
	parties     map[uuid.UUID]model.Party
	seasons     []model.PartySeason
	ledger      []model.PartyLedgerEntry
	cases       map[uuid.UUID]model.ReturnCase
	movements   []model.InventoryMovement
}

func newMemStore() *memStore {
	return &memStore{
		shipments: make(map[uuid.UUID]model.Shipment),
		suppliers: make(map[uuid.UUID]model.Supplier),
		companies: make(map[uuid.UUID]model.ShippingCompany),
		parties:   make(map[uuid.UUID]model.Party),
		cases:     make(map[uuid.UUID]model.ReturnCase),
	}
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	for k, v := range s.shipments {
		c.shipments[k] = v
	}
	for k, v := range s.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range s.companies {
		c.companies[k] = v
	}
	for k, v := range s.parties {
		c.parties[k] = v
	}
	for k, v := range s.cases {
		c.cases[k] = v
	}
	c.items = append([]model.ShipmentItem(nil), s.items...)
	c.shipDetails = append([]model.ShippingDetail(nil), s.shipDetails...)
	c.custDetails = append([]model.CustomsDetail(nil), s.custDetails...)
	c.payments = append([]model.ShipmentPayment(nil), s.payments...)
	c.allocations = append([]model.PaymentAllocation(nil), s.allocations...)
	c.rates = append([]model.ExchangeRate(nil), s.rates...)
	c.audits = append([]model.AuditLog(nil), s.audits...)
	c.seasons = append([]model.PartySeason(nil), s.seasons...)
	c.ledger = append([]model.PartyLedgerEntry(nil), s.ledger...)
	c.movements = append([]model.InventoryMovement(nil), s.movements...)
	return c
}

type fakeTxManager struct {
	store *memStore
}

func (t *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	snapshot := t.store.clone()
	if err := fn(ctx); err != nil {
		*t.store = *snapshot
		return err
	}
	return nil
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// --- Shipment repository ---

type fakeShipmentRepo struct {
	store *memStore
}

func (r *fakeShipmentRepo) Create(ctx context.Context, shipment *model.Shipment) error {
	ensureID(&shipment.ID)
	r.store.shipments[shipment.ID] = *shipment
	return nil
}

func (r *fakeShipmentRepo) Update(ctx context.Context, shipment *model.Shipment) error {
	r.store.shipments[shipment.ID] = *shipment
	return nil
}

func (r *fakeShipmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	s, ok := r.store.shipments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *fakeShipmentRepo) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	s, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, _ := r.ListItems(ctx, id)
	s.Items = items
	return s, nil
}

func (r *fakeShipmentRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeShipmentRepo) List(ctx context.Context, page, limit int, search string) ([]model.Shipment, int64, error) {
	var out []model.Shipment
	for _, s := range r.store.shipments {
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

func (r *fakeShipmentRepo) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	for _, s := range r.store.shipments {
		if len(s.Code) >= len(prefix) && s.Code[:len(prefix)] == prefix {
			count++
		}
	}
	return count, nil
}

func (r *fakeShipmentRepo) CreateItem(ctx context.Context, item *model.ShipmentItem) error {
	ensureID(&item.ID)
	r.store.items = append(r.store.items, *item)
	return nil
}

func (r *fakeShipmentRepo) ListItems(ctx context.Context, shipmentID uuid.UUID) ([]model.ShipmentItem, error) {
	var out []model.ShipmentItem
	for _, item := range r.store.items {
		if item.ShipmentID == shipmentID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeShipmentRepo) CreateShippingDetail(ctx context.Context, detail *model.ShippingDetail) error {
	ensureID(&detail.ID)
	r.store.shipDetails = append(r.store.shipDetails, *detail)
	return nil
}

func (r *fakeShipmentRepo) ListShippingDetails(ctx context.Context, shipmentID uuid.UUID) ([]model.ShippingDetail, error) {
	var out []model.ShippingDetail
	for _, d := range r.store.shipDetails {
		if d.ShipmentID == shipmentID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeShipmentRepo) CreateCustomsDetail(ctx context.Context, detail *model.CustomsDetail) error {
	ensureID(&detail.ID)
	r.store.custDetails = append(r.store.custDetails, *detail)
	return nil
}

func (r *fakeShipmentRepo) ListCustomsDetails(ctx context.Context, shipmentID uuid.UUID) ([]model.CustomsDetail, error) {
	var out []model.CustomsDetail
	for _, d := range r.store.custDetails {
		if d.ShipmentID == shipmentID {
			out = append(out, d)
		}
	}
	return out, nil
}

// --- Payment repository ---

type fakePaymentRepo struct {
	store *memStore
}

func (r *fakePaymentRepo) Create(ctx context.Context, payment *model.ShipmentPayment) error {
	ensureID(&payment.ID)
	r.store.payments = append(r.store.payments, *payment)
	return nil
}

func (r *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ShipmentPayment, error) {
	for _, p := range r.store.payments {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) FindByIDWithAllocations(ctx context.Context, id uuid.UUID) (*model.ShipmentPayment, error) {
	p, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, a := range r.store.allocations {
		if a.PaymentID == id {
			p.Allocations = append(p.Allocations, a)
		}
	}
	return p, nil
}

func (r *fakePaymentRepo) ListByShipment(ctx context.Context, shipmentID uuid.UUID) ([]model.ShipmentPayment, error) {
	var out []model.ShipmentPayment
	for _, p := range r.store.payments {
		if p.ShipmentID == shipmentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	kept := r.store.payments[:0]
	for _, p := range r.store.payments {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	r.store.payments = kept
	return nil
}

func (r *fakePaymentRepo) CreateAllocation(ctx context.Context, allocation *model.PaymentAllocation) error {
	ensureID(&allocation.ID)
	r.store.allocations = append(r.store.allocations, *allocation)
	return nil
}

func (r *fakePaymentRepo) ListAllocationsByShipment(ctx context.Context, shipmentID uuid.UUID) ([]model.PaymentAllocation, error) {
	var out []model.PaymentAllocation
	for _, a := range r.store.allocations {
		if a.ShipmentID == shipmentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) DeleteAllocationsByPayment(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	var deleted int64
	kept := r.store.allocations[:0]
	for _, a := range r.store.allocations {
		if a.PaymentID == paymentID {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	r.store.allocations = kept
	return deleted, nil
}

// --- Partner repositories ---

type fakeSupplierRepo struct {
	store *memStore
}

func (r *fakeSupplierRepo) Create(ctx context.Context, supplier *model.Supplier) error {
	ensureID(&supplier.ID)
	r.store.suppliers[supplier.ID] = *supplier
	return nil
}

func (r *fakeSupplierRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	s, ok := r.store.suppliers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *fakeSupplierRepo) List(ctx context.Context, search string, page, limit int) ([]model.Supplier, int64, error) {
	var out []model.Supplier
	for _, s := range r.store.suppliers {
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

type fakeCompanyRepo struct {
	store *memStore
}

func (r *fakeCompanyRepo) Create(ctx context.Context, company *model.ShippingCompany) error {
	ensureID(&company.ID)
	r.store.companies[company.ID] = *company
	return nil
}

func (r *fakeCompanyRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ShippingCompany, error) {
	c, ok := r.store.companies[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *fakeCompanyRepo) List(ctx context.Context, search string, page, limit int) ([]model.ShippingCompany, int64, error) {
	var out []model.ShippingCompany
	for _, c := range r.store.companies {
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

// --- Rate repository ---

type fakeRateRepo struct {
	store *memStore
}

func (r *fakeRateRepo) Create(ctx context.Context, rate *model.ExchangeRate) error {
	ensureID(&rate.ID)
	r.store.rates = append(r.store.rates, *rate)
	return nil
}

func (r *fakeRateRepo) FindLatest(ctx context.Context, currency string) (*model.ExchangeRate, error) {
	for i := len(r.store.rates) - 1; i >= 0; i-- {
		if r.store.rates[i].Currency == currency {
			found := r.store.rates[i]
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRateRepo) List(ctx context.Context, currency string, page, limit int) ([]model.ExchangeRate, int64, error) {
	return r.store.rates, int64(len(r.store.rates)), nil
}

// --- Audit repository ---

type fakeAuditRepo struct {
	store *memStore
}

func (r *fakeAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	ensureID(&entry.ID)
	r.store.audits = append(r.store.audits, *entry)
	return nil
}

func (r *fakeAuditRepo) List(ctx context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	return r.store.audits, int64(len(r.store.audits)), nil
}

// --- Party repository ---

type fakePartyRepo struct {
	store *memStore
}

func (r *fakePartyRepo) Create(ctx context.Context, party *model.Party) error {
	ensureID(&party.ID)
	r.store.parties[party.ID] = *party
	return nil
}

func (r *fakePartyRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Party, error) {
	p, ok := r.store.parties[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *fakePartyRepo) List(ctx context.Context, partyType, search string, page, limit int) ([]model.Party, int64, error) {
	var out []model.Party
	for _, p := range r.store.parties {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (r *fakePartyRepo) CreateSeason(ctx context.Context, season *model.PartySeason) error {
	ensureID(&season.ID)
	r.store.seasons = append(r.store.seasons, *season)
	return nil
}

func (r *fakePartyRepo) FindOpenSeason(ctx context.Context, partyID uuid.UUID) (*model.PartySeason, error) {
	for i := len(r.store.seasons) - 1; i >= 0; i-- {
		s := r.store.seasons[i]
		if s.PartyID == partyID && s.ClosedAt == nil {
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePartyRepo) CloseSeason(ctx context.Context, season *model.PartySeason) error {
	for i := range r.store.seasons {
		if r.store.seasons[i].ID == season.ID {
			r.store.seasons[i] = *season
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakePartyRepo) CreateLedgerEntry(ctx context.Context, entry *model.PartyLedgerEntry) error {
	ensureID(&entry.ID)
	r.store.ledger = append(r.store.ledger, *entry)
	return nil
}

func (r *fakePartyRepo) SumLedger(ctx context.Context, partyID uuid.UUID, seasonID *uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range r.store.ledger {
		if e.PartyID != partyID {
			continue
		}
		if seasonID != nil && e.SeasonID != *seasonID {
			continue
		}
		sum = sum.Add(e.AmountEgp)
	}
	return sum, nil
}

func (r *fakePartyRepo) ListLedgerEntries(ctx context.Context, partyID uuid.UUID, seasonID *uuid.UUID, page, limit int) ([]model.PartyLedgerEntry, int64, error) {
	var out []model.PartyLedgerEntry
	for _, e := range r.store.ledger {
		if e.PartyID != partyID {
			continue
		}
		if seasonID != nil && e.SeasonID != *seasonID {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

// --- Return case & inventory repositories ---

type fakeReturnCaseRepo struct {
	store *memStore
}

func (r *fakeReturnCaseRepo) Create(ctx context.Context, returnCase *model.ReturnCase) error {
	ensureID(&returnCase.ID)
	r.store.cases[returnCase.ID] = *returnCase
	return nil
}

func (r *fakeReturnCaseRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ReturnCase, error) {
	c, ok := r.store.cases[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *fakeReturnCaseRepo) Update(ctx context.Context, returnCase *model.ReturnCase) error {
	r.store.cases[returnCase.ID] = *returnCase
	return nil
}

func (r *fakeReturnCaseRepo) List(ctx context.Context, status string, page, limit int) ([]model.ReturnCase, int64, error) {
	var out []model.ReturnCase
	for _, c := range r.store.cases {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return out, int64(len(out)), nil
}

type fakeInventoryRepo struct {
	store *memStore
}

func (r *fakeInventoryRepo) CreateMovement(ctx context.Context, movement *model.InventoryMovement) error {
	ensureID(&movement.ID)
	r.store.movements = append(r.store.movements, *movement)
	return nil
}
