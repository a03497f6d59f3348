// Package settle computes the pairwise transfers that square up shared
// trip expenses among members.
//
// The computation is pure and stateless: balances are folded from the
// expense list on every call, then a greedy two-pointer sweep pairs
// creditors with debtors in roster order. The sweep minimizes transfers
// for that traversal order only; it makes no global optimality claim.
package settle

import "tripsplit/internal/core"

// epsilonCents is the threshold below which a balance counts as settled.
// One cent absorbs the residue of uneven splits.
const epsilonCents = 1

type (
	// Share is one participant's portion of an expense.
	Share struct {
		UserID string
		Amount core.Money
	}

	// Expense is the engine-facing view of a shared expense: who fronted
	// the money and how the cost is attributed. Split amounts are not
	// required to sum to Amount; inconsistent data yields inconsistent
	// balances, which is the caller's bookkeeping problem.
	Expense struct {
		PayerID      string
		Amount       core.Money
		SplitBetween []Share
	}

	// Transfer is a proposed payment from a debtor to a creditor.
	Transfer struct {
		FromUserID string
		ToUserID   string
		Amount     core.Money
	}
)

// Balances is a balance sheet keyed by participant id. Positive means the
// participant is owed money, negative means they owe. Matching depends on
// iteration order, so ids are kept in the order they were seeded.
type Balances struct {
	ids   []string
	cents map[string]int64
}

// NewBalances seeds every roster id at zero, preserving roster order and
// dropping duplicates. Participants with no activity stay at zero and are
// excluded from matching.
func NewBalances(roster []string) *Balances {
	b := &Balances{cents: make(map[string]int64, len(roster))}
	for _, id := range roster {
		if _, ok := b.cents[id]; ok {
			continue
		}
		b.ids = append(b.ids, id)
		b.cents[id] = 0
	}
	return b
}

// Get returns a participant's net balance and whether they are on the sheet.
func (b *Balances) Get(id string) (core.Money, bool) {
	c, ok := b.cents[id]
	return core.Money{Cents: c}, ok
}

// Len returns the number of participants on the sheet.
func (b *Balances) Len() int {
	return len(b.ids)
}

// Sum returns the net of all balances. Zero (within epsilon) for any
// expense list whose splits are consistent with its amounts.
func (b *Balances) Sum() core.Money {
	var total int64
	for _, c := range b.cents {
		total += c
	}
	return core.Money{Cents: total}
}

// add accumulates into an existing entry. Ids outside the seeded roster
// are ignored, so malformed expenses cannot grow the sheet.
func (b *Balances) add(id string, cents int64) {
	if _, ok := b.cents[id]; !ok {
		return
	}
	b.cents[id] += cents
}

// ComputeBalances folds the expense list into a net balance per roster
// participant: the payer gains the full amount, each split participant
// loses their share. Pure function of its inputs.
func ComputeBalances(expenses []Expense, roster []string) *Balances {
	b := NewBalances(roster)
	for _, e := range expenses {
		b.add(e.PayerID, e.Amount.Cents)
		for _, s := range e.SplitBetween {
			b.add(s.UserID, -s.Amount.Cents)
		}
	}
	return b
}

// party is one side of the sweep carrying its remaining unsettled cents.
type party struct {
	userID string
	cents  int64
}

// MatchSettlements partitions the sheet into creditors and debtors in
// insertion order and walks both lists with a two-pointer greedy sweep,
// emitting the smaller of the two open amounts at each step. Each step
// exhausts at least one side, so the loop runs at most
// len(creditors)+len(debtors)-1 times. Either side empty means nothing to
// do and an empty list comes back.
func MatchSettlements(b *Balances) []Transfer {
	var creditors, debtors []party
	for _, id := range b.ids {
		switch c := b.cents[id]; {
		case c > epsilonCents:
			creditors = append(creditors, party{userID: id, cents: c})
		case c < -epsilonCents:
			debtors = append(debtors, party{userID: id, cents: -c})
		}
	}

	var transfers []Transfer
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		amount := min(creditors[i].cents, debtors[j].cents)
		transfers = append(transfers, Transfer{
			FromUserID: debtors[j].userID,
			ToUserID:   creditors[i].userID,
			Amount:     core.Money{Cents: amount},
		})
		creditors[i].cents -= amount
		debtors[j].cents -= amount
		if creditors[i].cents < epsilonCents {
			i++
		}
		if debtors[j].cents < epsilonCents {
			j++
		}
	}
	return transfers
}

// Resolve is the public entry point: balance computation followed by
// matching. Deterministic for identical input order. It never fails;
// validating expense data against the roster belongs to the expense
// creation path, not here.
func Resolve(expenses []Expense, roster []string) []Transfer {
	return MatchSettlements(ComputeBalances(expenses, roster))
}
