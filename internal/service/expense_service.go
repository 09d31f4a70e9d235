package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripsplit/tripsplit-server/internal/models"
	"github.com/tripsplit/tripsplit-server/internal/split"
)

// Expense ledger operations. All writes validate before touching storage and
// run inside a single repository transaction; no partial item or assignment
// state is ever visible.

func (s *DefaultService) CreateExpense(
	ctx context.Context,
	userID string,
	tripID string,
	req models.CreateExpenseRequest,
) (*models.ExpenseResponse, error) {
	participants, _, err := s.requireMember(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}

	if !isActiveParticipant(req.PayerID, participants) {
		return nil, models.ErrParticipantNotFound
	}

	date, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		return nil, models.ErrInvalidDate
	}

	items, err := buildItems(req.Items, req.TotalAmount)
	if err != nil {
		return nil, err
	}

	currency := req.CurrencyCode
	if currency == "" {
		currency = s.converter.BaseCurrency()
	}
	entryMethod := req.EntryMethod
	if entryMethod == "" {
		entryMethod = models.EntryManual
	}

	expense := &models.Expense{
		TripID:       tripID,
		PayerID:      req.PayerID,
		Title:        req.Title,
		TotalAmount:  req.TotalAmount,
		CurrencyCode: currency,
		PaymentDate:  date,
		EntryMethod:  entryMethod,
		Items:        items,
	}

	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("error creating expense: %w", err)
	}

	s.logger.Info("expense created",
		"trip_id", tripID, "expense_id", expense.ID,
		"total", expense.TotalAmount, "currency", expense.CurrencyCode)

	return &models.ExpenseResponse{
		Status:  "success",
		Expense: expense,
	}, nil
}

// UpdateExpense replaces the expense's payer, title, total and item set.
// Existing assignments are discarded as part of the rewrite; the new item set
// must be re-assigned afterwards.
func (s *DefaultService) UpdateExpense(
	ctx context.Context,
	userID string,
	tripID string,
	expenseID string,
	req models.UpdateExpenseRequest,
) (*models.ExpenseResponse, error) {
	participants, _, err := s.requireMember(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}

	existing, err := s.getTripExpense(ctx, tripID, expenseID)
	if err != nil {
		return nil, err
	}

	if !isActiveParticipant(req.PayerID, participants) {
		return nil, models.ErrParticipantNotFound
	}

	items, err := buildItems(req.Items, req.TotalAmount)
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		ID:           existing.ID,
		TripID:       tripID,
		PayerID:      req.PayerID,
		Title:        req.Title,
		TotalAmount:  req.TotalAmount,
		CurrencyCode: existing.CurrencyCode,
		PaymentDate:  existing.PaymentDate,
		EntryMethod:  existing.EntryMethod,
		Items:        items,
	}

	if err := s.repo.UpdateExpense(ctx, expense); err != nil {
		return nil, fmt.Errorf("error updating expense: %w", err)
	}

	updated, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("error reloading expense: %w", err)
	}

	return &models.ExpenseResponse{
		Status:  "success",
		Expense: updated,
	}, nil
}

func (s *DefaultService) DeleteExpense(ctx context.Context, userID, tripID, expenseID string) error {
	_, _, err := s.requireMember(ctx, userID, tripID)
	if err != nil {
		return err
	}

	if _, err := s.getTripExpense(ctx, tripID, expenseID); err != nil {
		return err
	}

	if err := s.repo.DeleteExpense(ctx, expenseID); err != nil {
		return fmt.Errorf("error deleting expense: %w", err)
	}
	return nil
}

// AssignParticipants replaces the assignments of the targeted items. Each
// item's price is divided fairly over the given participants; items not
// targeted keep their current split.
func (s *DefaultService) AssignParticipants(
	ctx context.Context,
	userID string,
	tripID string,
	expenseID string,
	req models.AssignParticipantsRequest,
) (*models.ExpenseResponse, error) {
	participants, _, err := s.requireMember(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}

	expense, err := s.getTripExpense(ctx, tripID, expenseID)
	if err != nil {
		return nil, err
	}

	itemsByID := make(map[string]*models.ExpenseItem, len(expense.Items))
	for i := range expense.Items {
		itemsByID[expense.Items[i].ID] = &expense.Items[i]
	}

	byItem := make(map[string][]models.ExpenseAssignment, len(req.Assignments))
	for _, assignment := range req.Assignments {
		item, ok := itemsByID[assignment.ItemID]
		if !ok {
			return nil, models.ErrItemNotFound
		}

		ids := assignment.ParticipantIDs
		if hasDuplicates(ids) {
			return nil, models.ErrInvalidParticipantCount
		}
		for _, pid := range ids {
			if !isActiveParticipant(pid, participants) {
				return nil, models.ErrParticipantNotFound
			}
		}

		// Ascending participant id is the canonical order; the fair-share
		// remainder lands on the first id of that order.
		ordered := split.SortParticipantIDs(ids)
		shares := split.Allocate(item.Price, len(ordered), s.converter.Scale())

		rows := make([]models.ExpenseAssignment, len(ordered))
		for i, pid := range ordered {
			rows[i] = models.ExpenseAssignment{
				ItemID:        item.ID,
				ParticipantID: pid,
				Amount:        shares[i],
			}
		}
		byItem[item.ID] = rows
	}

	if err := s.repo.ReplaceAssignments(ctx, expenseID, byItem); err != nil {
		return nil, fmt.Errorf("error replacing assignments: %w", err)
	}

	updated, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("error reloading expense: %w", err)
	}

	return &models.ExpenseResponse{
		Status:  "success",
		Expense: updated,
	}, nil
}

func (s *DefaultService) ListExpenses(ctx context.Context, userID, tripID string) (*models.ExpenseListResponse, error) {
	_, _, err := s.requireMember(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.repo.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("error listing expenses: %w", err)
	}

	return &models.ExpenseListResponse{
		Status:   "success",
		TripID:   tripID,
		Expenses: expenses,
	}, nil
}

// getTripExpense loads an expense and verifies it belongs to the trip.
func (s *DefaultService) getTripExpense(ctx context.Context, tripID, expenseID string) (*models.Expense, error) {
	expense, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("error getting expense: %w", err)
	}
	if expense == nil || expense.TripID != tripID {
		return nil, models.ErrExpenseNotFound
	}
	return expense, nil
}

// buildItems validates the requested items against the expense total: no
// negative amounts, and the prices must sum to the total exactly.
func buildItems(reqs []models.ExpenseItemRequest, total decimal.Decimal) ([]models.ExpenseItem, error) {
	if total.IsNegative() {
		return nil, models.ErrNegativeAmount
	}

	items := make([]models.ExpenseItem, len(reqs))
	sum := decimal.Zero
	for i, r := range reqs {
		if r.Price.IsNegative() {
			return nil, models.ErrNegativeAmount
		}
		sum = sum.Add(r.Price)
		items[i] = models.ExpenseItem{
			ID:    r.ID,
			Name:  r.Name,
			Price: r.Price,
		}
	}

	if !sum.Equal(total) {
		return nil, models.ErrAmountMismatch
	}
	return items, nil
}

// isActiveParticipant reports whether id names a participant who is still
// part of the settlement (not kicked or exited).
func isActiveParticipant(id string, participants []models.Participant) bool {
	for i := range participants {
		p := &participants[i]
		if p.ID == id && p.Role != models.RoleKicked && p.Role != models.RoleExited {
			return true
		}
	}
	return false
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}
