package settlement

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Transfer is one directed payment that helps settle the group's balances.
type Transfer struct {
	FromParticipantID string
	ToParticipantID   string
	Amount            decimal.Decimal
}

// Minimize reduces net balances to a short list of transfers using greedy
// debtor/creditor matching. Participants whose |net| is below epsilon are
// already settled and are skipped. Debtors are visited largest debt first and
// creditors largest credit first, ties broken by ascending participant id, so
// the output is deterministic for a given balance set. The result has at most
// one fewer transfer than there are unsettled participants.
func Minimize(balances []Balance, epsilon decimal.Decimal) []Transfer {
	var debtors, creditors []Balance
	for _, b := range balances {
		net := b.Net()
		switch {
		case net.Abs().LessThan(epsilon):
			// settled
		case net.IsNegative():
			debtors = append(debtors, b)
		default:
			creditors = append(creditors, b)
		}
	}

	sort.Slice(debtors, func(i, j int) bool {
		ni, nj := debtors[i].Net(), debtors[j].Net()
		if !ni.Equal(nj) {
			return ni.LessThan(nj) // most negative first
		}
		return debtors[i].ParticipantID < debtors[j].ParticipantID
	})
	sort.Slice(creditors, func(i, j int) bool {
		ni, nj := creditors[i].Net(), creditors[j].Net()
		if !ni.Equal(nj) {
			return ni.GreaterThan(nj) // largest credit first
		}
		return creditors[i].ParticipantID < creditors[j].ParticipantID
	})

	owed := make(map[string]decimal.Decimal, len(debtors))
	for _, d := range debtors {
		owed[d.ParticipantID] = d.Net().Neg()
	}
	due := make(map[string]decimal.Decimal, len(creditors))
	for _, c := range creditors {
		due[c.ParticipantID] = c.Net()
	}

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := debtors[i].ParticipantID
		creditor := creditors[j].ParticipantID

		amount := owed[debtor]
		if due[creditor].LessThan(amount) {
			amount = due[creditor]
		}

		if amount.GreaterThanOrEqual(epsilon) {
			transfers = append(transfers, Transfer{
				FromParticipantID: debtor,
				ToParticipantID:   creditor,
				Amount:            amount,
			})
		}

		owed[debtor] = owed[debtor].Sub(amount)
		due[creditor] = due[creditor].Sub(amount)

		if owed[debtor].LessThan(epsilon) {
			i++
		}
		if due[creditor].LessThan(epsilon) {
			j++
		}
	}
	return transfers
}
