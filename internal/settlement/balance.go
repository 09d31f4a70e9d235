// Package settlement derives per-participant balances from the expense ledger
// and reduces them to a minimal set of transfers. It is pure: it reads nothing
// from storage and holds no locks.
package settlement

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripsplit/tripsplit-server/internal/models"
)

// ConvertFunc converts an amount in the given currency into base-currency
// terms using the rate effective on date.
type ConvertFunc func(ctx context.Context, amount decimal.Decimal, currency string, date time.Time) (decimal.Decimal, error)

// Balance is one participant's aggregated paid/assigned totals in base
// currency.
type Balance struct {
	ParticipantID string
	Paid          decimal.Decimal
	Assigned      decimal.Decimal
}

// Net returns paid minus assigned. Positive means the group owes the
// participant; negative means the participant owes the group.
func (b Balance) Net() decimal.Decimal {
	return b.Paid.Sub(b.Assigned)
}

// ExpenseTotal is one expense's total converted to base currency.
type ExpenseTotal struct {
	ExpenseID string
	Amount    decimal.Decimal
}

// Result is the outcome of aggregating a set of expenses.
type Result struct {
	Expenses []ExpenseTotal
	Balances []Balance // ascending by participant id

	// TotalPaid is the sum of all expense totals; TotalAssigned the sum of
	// all assignment amounts, both in base currency. A difference between
	// the two indicates unassigned or partially assigned items.
	TotalPaid     decimal.Decimal
	TotalAssigned decimal.Decimal
}

// Aggregate computes per-participant balances over expenses. Every amount is
// converted with the expense's own currency and payment date, never the query
// date. participantIDs seeds the result so inactive participants appear with
// zero balances; payers and assignees outside the seed are added as seen.
func Aggregate(ctx context.Context, participantIDs []string, expenses []models.Expense, convert ConvertFunc) (*Result, error) {
	balances := make(map[string]*Balance, len(participantIDs))
	for _, id := range participantIDs {
		balances[id] = &Balance{ParticipantID: id}
	}
	get := func(id string) *Balance {
		if b, ok := balances[id]; ok {
			return b
		}
		b := &Balance{ParticipantID: id}
		balances[id] = b
		return b
	}

	res := &Result{}
	for _, exp := range expenses {
		total, err := convert(ctx, exp.TotalAmount, exp.CurrencyCode, exp.PaymentDate)
		if err != nil {
			return nil, err
		}
		res.Expenses = append(res.Expenses, ExpenseTotal{ExpenseID: exp.ID, Amount: total})
		res.TotalPaid = res.TotalPaid.Add(total)

		payer := get(exp.PayerID)
		payer.Paid = payer.Paid.Add(total)

		for _, item := range exp.Items {
			for _, a := range item.Assignments {
				amount, err := convert(ctx, a.Amount, exp.CurrencyCode, exp.PaymentDate)
				if err != nil {
					return nil, err
				}
				b := get(a.ParticipantID)
				b.Assigned = b.Assigned.Add(amount)
				res.TotalAssigned = res.TotalAssigned.Add(amount)
			}
		}
	}

	res.Balances = make([]Balance, 0, len(balances))
	for _, b := range balances {
		res.Balances = append(res.Balances, *b)
	}
	sort.Slice(res.Balances, func(i, j int) bool {
		return res.Balances[i].ParticipantID < res.Balances[j].ParticipantID
	})
	return res, nil
}
