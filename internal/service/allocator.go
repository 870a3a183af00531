package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// allocEpsilon is the cutoff below which leftover payment or capacity is
// considered exhausted.
var (
	allocEpsilon = decimal.New(1, -4) // 0.0001
	oneCent      = decimal.New(1, -2) // 0.01
)

// AllocationBeneficiary is one supplier's standing in a proportional split:
// its full goods obligation and the unpaid part of it.
type AllocationBeneficiary struct {
	ID        uuid.UUID
	Total     decimal.Decimal
	Remaining decimal.Decimal
}

// Allocation is one beneficiary's share of a payment.
type Allocation struct {
	BeneficiaryID uuid.UUID
	Amount        decimal.Decimal
}

// AllocateProportionally distributes a payment across beneficiaries in
// proportion to their total obligations, capped at each one's remaining
// capacity. When a beneficiary caps out, the leftover is re-proportioned
// among the rest, so no money is silently dropped. The returned allocations
// are rounded to 2 decimals and cent-corrected so their sum equals
// round(min(payment, total remaining), 2) exactly.
func AllocateProportionally(payment decimal.Decimal, beneficiaries []AllocationBeneficiary) []Allocation {
	type state struct {
		id        uuid.UUID
		total     decimal.Decimal
		remaining decimal.Decimal
		allocated decimal.Decimal
	}

	eligible := make([]*state, 0, len(beneficiaries))
	totalRemaining := decimal.Zero
	for _, b := range beneficiaries {
		if !b.Total.IsPositive() || !b.Remaining.IsPositive() {
			continue
		}
		eligible = append(eligible, &state{id: b.ID, total: b.Total, remaining: b.Remaining})
		totalRemaining = totalRemaining.Add(b.Remaining)
	}
	if len(eligible) == 0 || !payment.IsPositive() {
		return nil
	}

	// Cap at total capacity; allocation can never exceed what is owed.
	capped := decimal.Min(payment, totalRemaining)
	left := capped
	active := eligible

	for left.GreaterThan(allocEpsilon) && len(active) > 0 {
		totalsSum := decimal.Zero
		for _, s := range active {
			totalsSum = totalsSum.Add(s.total)
		}
		if !totalsSum.IsPositive() {
			break
		}

		// Shares are computed against the same snapshot of `left`, then
		// applied simultaneously.
		applied := decimal.Zero
		for _, s := range active {
			share := left.Mul(s.total).Div(totalsSum)
			if share.GreaterThan(s.remaining) {
				share = s.remaining
			}
			s.allocated = s.allocated.Add(share)
			s.remaining = s.remaining.Sub(share)
			applied = applied.Add(share)
		}
		if !applied.IsPositive() {
			break
		}
		left = left.Sub(applied)

		next := active[:0]
		for _, s := range active {
			if s.remaining.GreaterThan(allocEpsilon) {
				next = append(next, s)
			}
		}
		active = next
	}

	// Round at the boundary, then reconcile cent-level drift against the
	// rounded target.
	target := RoundEgp(capped)
	rounded := make([]decimal.Decimal, len(eligible))
	sum := decimal.Zero
	for i, s := range eligible {
		rounded[i] = s.allocated.Round(2)
		sum = sum.Add(rounded[i])
	}

	for diff := target.Sub(sum); diff.Abs().GreaterThanOrEqual(oneCent); diff = target.Sub(sum) {
		if diff.IsPositive() {
			// Add a cent to the beneficiary with the most headroom left.
			best := -1
			bestHeadroom := decimal.Zero
			for i, s := range eligible {
				headroom := decimal.Min(s.total, beneficiaryCap(beneficiaries, s.id)).Sub(rounded[i])
				if best == -1 || headroom.GreaterThan(bestHeadroom) {
					best = i
					bestHeadroom = headroom
				}
			}
			rounded[best] = rounded[best].Add(oneCent)
			sum = sum.Add(oneCent)
		} else {
			// Remove a cent from the largest current allocation.
			best := -1
			for i := range eligible {
				if rounded[i].IsPositive() && (best == -1 || rounded[i].GreaterThan(rounded[best])) {
					best = i
				}
			}
			if best == -1 {
				break
			}
			rounded[best] = rounded[best].Sub(oneCent)
			sum = sum.Sub(oneCent)
		}
	}

	allocations := make([]Allocation, 0, len(eligible))
	for i, s := range eligible {
		if rounded[i].IsPositive() {
			allocations = append(allocations, Allocation{BeneficiaryID: s.id, Amount: rounded[i]})
		}
	}
	return allocations
}

func beneficiaryCap(beneficiaries []AllocationBeneficiary, id uuid.UUID) decimal.Decimal {
	for _, b := range beneficiaries {
		if b.ID == id {
			return b.Remaining
		}
	}
	return decimal.Zero
}
