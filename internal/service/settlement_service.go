package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tripsplit/tripsplit-server/internal/models"
	"github.com/tripsplit/tripsplit-server/internal/settlement"
	"github.com/tripsplit/tripsplit-server/internal/split"
)

// Settlement reads. These are pure derivations over the ledger: aggregate
// per-participant balances in base currency, then reduce the nets to a
// minimal set of transfers. A read issued after any ledger write observes
// that write because both paths go through the same transactional store.

// GetDailySettlement settles the expenses paid on one calendar date.
func (s *DefaultService) GetDailySettlement(
	ctx context.Context,
	userID string,
	tripID string,
	date time.Time,
) (*models.SettlementResponse, error) {
	participants, _, err := s.requireMember(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.repo.ListExpensesByDate(ctx, tripID, date)
	if err != nil {
		return nil, fmt.Errorf("error listing expenses: %w", err)
	}

	resp, err := s.settle(ctx, tripID, participants, expenses)
	if err != nil {
		return nil, err
	}
	resp.Date = date.Format("2006-01-02")
	return resp, nil
}

// GetTotalSettlement settles every expense of the trip.
func (s *DefaultService) GetTotalSettlement(ctx context.Context, userID, tripID string) (*models.SettlementResponse, error) {
	participants, _, err := s.requireMember(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.repo.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("error listing expenses: %w", err)
	}

	return s.settle(ctx, tripID, participants, expenses)
}

func (s *DefaultService) settle(
	ctx context.Context,
	tripID string,
	participants []models.Participant,
	expenses []models.Expense,
) (*models.SettlementResponse, error) {
	ids := make([]string, len(participants))
	names := make(map[string]string, len(participants))
	for i := range participants {
		ids[i] = participants[i].ID
		names[participants[i].ID] = participants[i].Name
	}

	// Every amount converts at the rate effective on its expense's own
	// payment date. A missing rate fails the whole settlement; silently
	// omitting an expense would misstate everyone's balance.
	result, err := settlement.Aggregate(ctx, ids, expenses, s.converter.ToBase)
	if err != nil {
		return nil, err
	}

	// Unassigned or partially assigned items make the paid and assigned
	// totals diverge. Valid transient state, so warn and carry on.
	if !result.TotalPaid.Equal(result.TotalAssigned) {
		s.logger.Warn("paid and assigned totals differ",
			"trip_id", tripID,
			"total_paid", result.TotalPaid,
			"total_assigned", result.TotalAssigned)
	}

	epsilon := split.Epsilon(s.converter.Scale())
	transfers := settlement.Minimize(result.Balances, epsilon)

	summaries := make([]models.ExpenseSummary, len(result.Expenses))
	for i, et := range result.Expenses {
		exp := &expenses[i]
		summaries[i] = models.ExpenseSummary{
			ExpenseID:      et.ExpenseID,
			Title:          exp.Title,
			PayerID:        exp.PayerID,
			Amount:         et.Amount,
			CurrencyCode:   exp.CurrencyCode,
			OriginalAmount: exp.TotalAmount,
		}
	}

	balances := make([]models.ParticipantSummary, len(result.Balances))
	for i, b := range result.Balances {
		balances[i] = models.ParticipantSummary{
			ParticipantID:  b.ParticipantID,
			Name:           names[b.ParticipantID],
			PaidAmount:     b.Paid,
			AssignedAmount: b.Assigned,
			NetAmount:      b.Net(),
		}
	}

	relations := make([]models.DebtRelationResponse, len(transfers))
	for i, t := range transfers {
		relations[i] = models.DebtRelationResponse{
			FromParticipantID: t.FromParticipantID,
			ToParticipantID:   t.ToParticipantID,
			Amount:            t.Amount,
		}
	}

	return &models.SettlementResponse{
		Status:        "success",
		TripID:        tripID,
		BaseCurrency:  s.converter.BaseCurrency(),
		TotalAmount:   result.TotalPaid,
		Expenses:      summaries,
		Participants:  balances,
		DebtRelations: relations,
	}, nil
}
