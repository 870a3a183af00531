package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func sumAllocations(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}

func TestAllocateProportionallySplitsByTotals(t *testing.T) {
	s1 := uuid.New()
	s2 := uuid.New()

	allocations := AllocateProportionally(dec("150"), []AllocationBeneficiary{
		{ID: s1, Total: dec("100"), Remaining: dec("100")},
		{ID: s2, Total: dec("200"), Remaining: dec("200")},
	})

	require.Len(t, allocations, 2)
	assert.True(t, allocations[0].Amount.Equal(dec("50")), "got %s", allocations[0].Amount)
	assert.True(t, allocations[1].Amount.Equal(dec("100")), "got %s", allocations[1].Amount)
	assert.True(t, sumAllocations(allocations).Equal(dec("150")))
}

func TestAllocateProportionallyNeverExceedsRemaining(t *testing.T) {
	s1 := uuid.New()
	s2 := uuid.New()

	// s1 is nearly paid off; its proportional share must be capped and the
	// overflow redirected to s2.
	beneficiaries := []AllocationBeneficiary{
		{ID: s1, Total: dec("300"), Remaining: dec("10")},
		{ID: s2, Total: dec("100"), Remaining: dec("100")},
	}
	allocations := AllocateProportionally(dec("100"), beneficiaries)

	require.Len(t, allocations, 2)
	byID := map[uuid.UUID]decimal.Decimal{}
	for _, a := range allocations {
		byID[a.BeneficiaryID] = a.Amount
	}
	assert.True(t, byID[s1].LessThanOrEqual(dec("10")))
	assert.True(t, byID[s2].LessThanOrEqual(dec("100")))
	assert.True(t, sumAllocations(allocations).Equal(dec("100")))
}

func TestAllocateProportionallyCapsAtTotalOutstanding(t *testing.T) {
	s1 := uuid.New()

	allocations := AllocateProportionally(dec("500"), []AllocationBeneficiary{
		{ID: s1, Total: dec("120"), Remaining: dec("120")},
	})

	require.Len(t, allocations, 1)
	assert.True(t, allocations[0].Amount.Equal(dec("120")))
}

func TestAllocateProportionallyCentReconciliation(t *testing.T) {
	s1 := uuid.New()
	s2 := uuid.New()
	s3 := uuid.New()

	// 100 over three equal obligations leaves repeating thirds; the rounded
	// amounts must still sum to exactly 100.00.
	allocations := AllocateProportionally(dec("100"), []AllocationBeneficiary{
		{ID: s1, Total: dec("100"), Remaining: dec("100")},
		{ID: s2, Total: dec("100"), Remaining: dec("100")},
		{ID: s3, Total: dec("100"), Remaining: dec("100")},
	})

	require.Len(t, allocations, 3)
	assert.True(t, sumAllocations(allocations).Equal(dec("100.00")), "sum %s", sumAllocations(allocations))
	for _, a := range allocations {
		assert.True(t, a.Amount.Exponent() >= -2, "more than 2 decimal places: %s", a.Amount)
	}
}

func TestAllocateProportionallyIgnoresIneligible(t *testing.T) {
	paid := uuid.New()
	open := uuid.New()

	allocations := AllocateProportionally(dec("50"), []AllocationBeneficiary{
		{ID: paid, Total: dec("100"), Remaining: decimal.Zero},
		{ID: open, Total: dec("100"), Remaining: dec("100")},
	})

	require.Len(t, allocations, 1)
	assert.Equal(t, open, allocations[0].BeneficiaryID)
	assert.True(t, allocations[0].Amount.Equal(dec("50")))
}

func TestAllocateProportionallyEmptyInputs(t *testing.T) {
	assert.Nil(t, AllocateProportionally(dec("100"), nil))
	assert.Nil(t, AllocateProportionally(decimal.Zero, []AllocationBeneficiary{
		{ID: uuid.New(), Total: dec("100"), Remaining: dec("100")},
	}))
}
