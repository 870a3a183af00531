package service

import (
	"context"
	"testing"

	"shipledger/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerTestEnv struct {
	store *memStore
	svc   LedgerService
}

func newLedgerTestEnv() *ledgerTestEnv {
	store := newMemStore()
	return &ledgerTestEnv{
		store: store,
		svc: NewLedgerService(
			&fakePartyRepo{store: store},
			&fakeReturnCaseRepo{store: store},
			&fakeInventoryRepo{store: store},
			&fakeAuditRepo{store: store},
			&fakeTxManager{store: store},
		),
	}
}

func (e *ledgerTestEnv) addParty(t *testing.T, name string) *model.Party {
	t.Helper()
	party, err := e.svc.CreateParty(context.Background(), CreatePartyRequest{
		Name: name,
		Type: model.TradePartyMerchant,
	})
	require.NoError(t, err)
	return party
}

func TestCreatePartyOpensInitialSeason(t *testing.T) {
	env := newLedgerTestEnv()

	party, err := env.svc.CreateParty(context.Background(), CreatePartyRequest{
		Name:       "Abu Karim Trading",
		Type:       model.TradePartyMerchant,
		SeasonName: "Winter 2026",
	})
	require.NoError(t, err)

	require.Len(t, env.store.seasons, 1)
	season := env.store.seasons[0]
	assert.Equal(t, party.ID, season.PartyID)
	assert.Equal(t, "Winter 2026", season.Name)
	assert.Nil(t, season.ClosedAt)
}

func TestCreatePartyRejectsUnknownType(t *testing.T) {
	env := newLedgerTestEnv()

	_, err := env.svc.CreateParty(context.Background(), CreatePartyRequest{
		Name: "Abu Karim Trading",
		Type: "WHOLESALER",
	})
	assert.ErrorIs(t, err, ErrPaymentPayloadInvalid)
}

func TestPartyBalanceDebitAfterInvoiceAndPayment(t *testing.T) {
	env := newLedgerTestEnv()
	party := env.addParty(t, "Abu Karim Trading")

	_, err := env.svc.CreateLocalInvoice(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "5000"})
	require.NoError(t, err)
	_, err = env.svc.CreateLocalPayment(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "3000"})
	require.NoError(t, err)

	balance, err := env.svc.GetPartyBalance(context.Background(), party.ID.String(), false)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", balance.BalanceEgp)
	assert.Equal(t, "debit", balance.Direction)
	assert.Nil(t, balance.SeasonID)
}

func TestPartyBalanceSignedCreditWhenOverpaid(t *testing.T) {
	env := newLedgerTestEnv()
	party := env.addParty(t, "Abu Karim Trading")

	_, err := env.svc.CreateLocalInvoice(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "1000"})
	require.NoError(t, err)
	_, err = env.svc.CreateLocalPayment(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "1500"})
	require.NoError(t, err)

	// The balance keeps its sign: we owe the party 500.
	balance, err := env.svc.GetPartyBalance(context.Background(), party.ID.String(), true)
	require.NoError(t, err)
	assert.Equal(t, "-500.00", balance.BalanceEgp)
	assert.Equal(t, "credit", balance.Direction)
	require.NotNil(t, balance.SeasonID)
}

func TestLedgerEntryRejectsNonPositiveAmount(t *testing.T) {
	env := newLedgerTestEnv()
	party := env.addParty(t, "Abu Karim Trading")

	_, err := env.svc.CreateLocalInvoice(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "0"})
	assert.ErrorIs(t, err, ErrPaymentPayloadInvalid)

	_, err = env.svc.CreateLocalPayment(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "-50"})
	assert.ErrorIs(t, err, ErrPaymentPayloadInvalid)
}

func TestCloseSeasonRequiresExactZeroBalance(t *testing.T) {
	env := newLedgerTestEnv()
	party := env.addParty(t, "Abu Karim Trading")

	_, err := env.svc.CreateLocalInvoice(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "5000"})
	require.NoError(t, err)
	_, err = env.svc.CreateLocalPayment(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "3000"})
	require.NoError(t, err)

	_, err = env.svc.CloseSeason(context.Background(), "", party.ID.String(), "")
	require.ErrorIs(t, err, ErrSeasonBalanceNotZero)

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "2000.00", domainErr.Details["balance_egp"])

	// The failed close must not have touched the season.
	require.Len(t, env.store.seasons, 1)
	assert.Nil(t, env.store.seasons[0].ClosedAt)
}

func TestCloseSeasonAtZeroOpensSuccessor(t *testing.T) {
	env := newLedgerTestEnv()
	party := env.addParty(t, "Abu Karim Trading")

	_, err := env.svc.CreateLocalInvoice(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "5000"})
	require.NoError(t, err)
	_, err = env.svc.CreateLocalPayment(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "5000"})
	require.NoError(t, err)

	balance, err := env.svc.GetPartyBalance(context.Background(), party.ID.String(), true)
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance.BalanceEgp)
	assert.Equal(t, "zero", balance.Direction)

	result, err := env.svc.CloseSeason(context.Background(), "", party.ID.String(), "Summer 2027")
	require.NoError(t, err)
	assert.NotEqual(t, result.ClosedSeasonID, result.NewSeasonID)

	require.Len(t, env.store.seasons, 2)
	assert.NotNil(t, env.store.seasons[0].ClosedAt)
	assert.Nil(t, env.store.seasons[1].ClosedAt)
	assert.Equal(t, "Summer 2027", env.store.seasons[1].Name)

	// New entries land in the successor season, so the season-scoped balance
	// starts fresh.
	_, err = env.svc.CreateLocalInvoice(context.Background(), "", party.ID.String(), LedgerEntryRequest{AmountEgp: "700"})
	require.NoError(t, err)
	balance, err = env.svc.GetPartyBalance(context.Background(), party.ID.String(), true)
	require.NoError(t, err)
	assert.Equal(t, "700.00", balance.BalanceEgp)
	assert.Equal(t, "debit", balance.Direction)
}

func TestResolveReturnCaseDeductValueCreditsLedger(t *testing.T) {
	env := newLedgerTestEnv()
	party := env.addParty(t, "Abu Karim Trading")

	returnCase, err := env.svc.CreateReturnCase(context.Background(), CreateReturnCaseRequest{
		PartyID:     party.ID.String(),
		ProductName: "ceramic tiles",
		Quantity:    3,
		ValueEgp:    "800",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseUnderInspection, returnCase.Status)

	resolved, err := env.svc.ResolveReturnCase(context.Background(), "", returnCase.ID.String(), ResolveReturnCaseRequest{
		Resolution: model.ResolutionDeductValue,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CaseResolved, resolved.Status)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, model.ResolutionDeductValue, *resolved.Resolution)

	require.Len(t, env.store.ledger, 1)
	entry := env.store.ledger[0]
	assert.Equal(t, model.SourceReturnCase, entry.SourceType)
	assert.Equal(t, returnCase.ID, entry.SourceID)
	assert.True(t, entry.AmountEgp.Equal(dec("-800")), "got %s", entry.AmountEgp)

	// DEDUCT_VALUE keeps the goods with the customer, so no stock moves.
	assert.Empty(t, env.store.movements)
}

func TestResolveReturnCaseDamagedMovesStockOnly(t *testing.T) {
	env := newLedgerTestEnv()
	party := env.addParty(t, "Abu Karim Trading")

	returnCase, err := env.svc.CreateReturnCase(context.Background(), CreateReturnCaseRequest{
		PartyID:     party.ID.String(),
		ProductName: "ceramic tiles",
		Quantity:    5,
		ValueEgp:    "400",
	})
	require.NoError(t, err)

	_, err = env.svc.ResolveReturnCase(context.Background(), "", returnCase.ID.String(), ResolveReturnCaseRequest{
		Resolution: model.ResolutionDamaged,
	})
	require.NoError(t, err)

	assert.Empty(t, env.store.ledger)
	require.Len(t, env.store.movements, 1)
	movement := env.store.movements[0]
	assert.Equal(t, -5, movement.Quantity)
	assert.Equal(t, model.ResolutionDamaged, movement.Reason)
	require.NotNil(t, movement.ReturnCaseID)
	assert.Equal(t, returnCase.ID, *movement.ReturnCaseID)
}

func TestResolveReturnCaseAcceptedReturnDoesBoth(t *testing.T) {
	env := newLedgerTestEnv()
	party := env.addParty(t, "Abu Karim Trading")

	returnCase, err := env.svc.CreateReturnCase(context.Background(), CreateReturnCaseRequest{
		PartyID:     party.ID.String(),
		ProductName: "ceramic tiles",
		Quantity:    2,
		ValueEgp:    "250",
	})
	require.NoError(t, err)

	_, err = env.svc.ResolveReturnCase(context.Background(), "", returnCase.ID.String(), ResolveReturnCaseRequest{
		Resolution: model.ResolutionAcceptedReturn,
	})
	require.NoError(t, err)

	require.Len(t, env.store.ledger, 1)
	assert.True(t, env.store.ledger[0].AmountEgp.Equal(dec("-250")))
	require.Len(t, env.store.movements, 1)
	assert.Equal(t, -2, env.store.movements[0].Quantity)
}

func TestResolveReturnCaseOnlyOnce(t *testing.T) {
	env := newLedgerTestEnv()
	party := env.addParty(t, "Abu Karim Trading")

	returnCase, err := env.svc.CreateReturnCase(context.Background(), CreateReturnCaseRequest{
		PartyID:  party.ID.String(),
		ValueEgp: "100",
	})
	require.NoError(t, err)

	_, err = env.svc.ResolveReturnCase(context.Background(), "", returnCase.ID.String(), ResolveReturnCaseRequest{
		Resolution: model.ResolutionDeductValue,
	})
	require.NoError(t, err)

	_, err = env.svc.ResolveReturnCase(context.Background(), "", returnCase.ID.String(), ResolveReturnCaseRequest{
		Resolution: model.ResolutionDeductValue,
	})
	require.ErrorIs(t, err, ErrReturnCaseResolved)

	// The second attempt must not double-credit the ledger.
	assert.Len(t, env.store.ledger, 1)
}

func TestResolveReturnCaseRejectsUnknownResolution(t *testing.T) {
	env := newLedgerTestEnv()
	party := env.addParty(t, "Abu Karim Trading")

	returnCase, err := env.svc.CreateReturnCase(context.Background(), CreateReturnCaseRequest{
		PartyID:  party.ID.String(),
		ValueEgp: "100",
	})
	require.NoError(t, err)

	_, err = env.svc.ResolveReturnCase(context.Background(), "", returnCase.ID.String(), ResolveReturnCaseRequest{
		Resolution: "STORE_CREDIT",
	})
	assert.ErrorIs(t, err, ErrPaymentPayloadInvalid)
}
