package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tripsplit/tripsplit-server/internal/models"
	"github.com/tripsplit/tripsplit-server/internal/split"
)

// MemoryRepository is an in-memory Repository used by tests. It mirrors the
// PostgresRepository semantics, including the transactional guarantees of the
// write operations (each write mutates under one lock, all or nothing).
type MemoryRepository struct {
	mu           sync.RWMutex
	users        map[string]*models.User
	trips        map[string]*models.Trip
	participants []*models.Participant
	expenses     map[string]*models.Expense
	rates        map[string]*models.ExchangeRate
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[string]*models.User),
		trips:    make(map[string]*models.Trip),
		expenses: make(map[string]*models.Expense),
		rates:    make(map[string]*models.ExchangeRate),
	}
}

// User operations
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			user := *u
			return &user, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.users[id]; ok {
		user := *u
		return &user, nil
	}
	return nil, nil
}

// Trip operations
func (r *MemoryRepository) CreateTrip(ctx context.Context, trip *models.Trip, ownerName string) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	trip.CreatedAt = now
	trip.UpdatedAt = now

	t := *trip
	r.trips[trip.ID] = &t

	owner := &models.Participant{
		ID:        uuid.New().String(),
		TripID:    trip.ID,
		UserID:    &trip.CreatedBy,
		Name:      ownerName,
		Role:      models.RoleOwner,
		CreatedAt: now,
	}
	r.participants = append(r.participants, owner)

	out := *owner
	return &out, nil
}

func (r *MemoryRepository) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.trips[tripID]; ok {
		trip := *t
		return &trip, nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserTrips(ctx context.Context, userID string) ([]models.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var trips []models.Trip
	for _, p := range r.participants {
		if p.UserID == nil || *p.UserID != userID {
			continue
		}
		if p.Role == models.RoleKicked || p.Role == models.RoleExited {
			continue
		}
		if t, ok := r.trips[p.TripID]; ok {
			trips = append(trips, *t)
		}
	}
	return trips, nil
}

// Participant operations
func (r *MemoryRepository) AddParticipant(ctx context.Context, participant *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if participant.ID == "" {
		participant.ID = uuid.New().String()
	}
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = time.Now().UTC()
	}

	p := *participant
	r.participants = append(r.participants, &p)
	return nil
}

func (r *MemoryRepository) GetParticipants(ctx context.Context, tripID string) ([]models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Participant
	for _, p := range r.participants {
		if p.TripID == tripID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) GetParticipant(ctx context.Context, tripID, participantID string) (*models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.participants {
		if p.TripID == tripID && p.ID == participantID {
			out := *p
			return &out, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetOwner(ctx context.Context, tripID string) (*models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.participants {
		if p.TripID == tripID && p.Role == models.RoleOwner {
			out := *p
			return &out, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateParticipantRole(ctx context.Context, tripID, participantID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.participants {
		if p.TripID == tripID && p.ID == participantID {
			p.Role = role
			return nil
		}
	}
	return models.ErrParticipantNotFound
}

func (r *MemoryRepository) RemoveParticipant(ctx context.Context, tripID, participantID, ownerID string, scale int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.participants {
		if p.TripID == tripID && p.ID == participantID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return models.ErrParticipantNotFound
	}

	for _, exp := range r.expenses {
		if exp.TripID != tripID {
			continue
		}
		if exp.PayerID == participantID {
			exp.PayerID = ownerID
			exp.UpdatedAt = time.Now().UTC()
		}

		for i := range exp.Items {
			item := &exp.Items[i]

			var remaining []models.ExpenseAssignment
			touched := false
			for _, a := range item.Assignments {
				if a.ParticipantID == participantID {
					touched = true
					continue
				}
				remaining = append(remaining, a)
			}
			if !touched {
				continue
			}
			if len(remaining) == 0 {
				item.Assignments = nil
				continue
			}

			sort.Slice(remaining, func(a, b int) bool {
				return remaining[a].ParticipantID < remaining[b].ParticipantID
			})
			shares := split.Allocate(item.Price, len(remaining), scale)
			for i := range remaining {
				remaining[i].Amount = shares[i]
			}
			item.Assignments = remaining
		}
	}

	r.participants = append(r.participants[:idx], r.participants[idx+1:]...)
	return nil
}

// Expense operations
func (r *MemoryRepository) CreateExpense(ctx context.Context, expense *models.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	expense.CreatedAt = now
	expense.UpdatedAt = now

	for i := range expense.Items {
		item := &expense.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.ExpenseID = expense.ID
	}

	r.expenses[expense.ID] = copyExpense(expense)
	return nil
}

func (r *MemoryRepository) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if exp, ok := r.expenses[expenseID]; ok {
		return copyExpense(exp), nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.expenses[expense.ID]
	if !ok {
		return models.ErrExpenseNotFound
	}

	stored.PayerID = expense.PayerID
	stored.Title = expense.Title
	stored.TotalAmount = expense.TotalAmount
	stored.UpdatedAt = time.Now().UTC()

	items := make([]models.ExpenseItem, len(expense.Items))
	for i := range expense.Items {
		item := expense.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.ExpenseID = expense.ID
		item.Assignments = nil // edits reset the distribution
		items[i] = item
		expense.Items[i].ID = item.ID
	}
	stored.Items = items
	return nil
}

func (r *MemoryRepository) DeleteExpense(ctx context.Context, expenseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.expenses[expenseID]; !ok {
		return models.ErrExpenseNotFound
	}
	delete(r.expenses, expenseID)
	return nil
}

func (r *MemoryRepository) ReplaceAssignments(ctx context.Context, expenseID string, byItem map[string][]models.ExpenseAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.expenses[expenseID]
	if !ok {
		return models.ErrExpenseNotFound
	}

	for itemID, assignments := range byItem {
		found := false
		for i := range stored.Items {
			if stored.Items[i].ID != itemID {
				continue
			}
			found = true

			rows := make([]models.ExpenseAssignment, len(assignments))
			for j, a := range assignments {
				if a.ID == "" {
					a.ID = uuid.New().String()
				}
				a.ItemID = itemID
				rows[j] = a
			}
			sort.Slice(rows, func(a, b int) bool {
				return rows[a].ParticipantID < rows[b].ParticipantID
			})
			stored.Items[i].Assignments = rows
		}
		if !found {
			return models.ErrItemNotFound
		}
	}
	return nil
}

func (r *MemoryRepository) ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Expense
	for _, exp := range r.expenses {
		if exp.TripID == tripID {
			out = append(out, *copyExpense(exp))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].PaymentDate.Before(out[j].PaymentDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) ListExpensesByDate(ctx context.Context, tripID string, date time.Time) ([]models.Expense, error) {
	expenses, err := r.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, err
	}

	var out []models.Expense
	for _, exp := range expenses {
		if exp.PaymentDate.Equal(date) {
			out = append(out, exp)
		}
	}
	return out, nil
}

// Exchange rate operations
func (r *MemoryRepository) GetExchangeRate(ctx context.Context, code string, date time.Time) (*models.ExchangeRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rate, ok := r.rates[rateKey(code, date)]; ok {
		out := *rate
		return &out, nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpsertExchangeRate(ctx context.Context, rate *models.ExchangeRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rateKey(rate.CurrencyCode, rate.DateEffective)
	if _, ok := r.rates[key]; ok {
		return nil // immutable once published
	}
	if rate.CreatedAt.IsZero() {
		rate.CreatedAt = time.Now().UTC()
	}

	rec := *rate
	r.rates[key] = &rec
	return nil
}

func rateKey(code string, date time.Time) string {
	return fmt.Sprintf("%s|%s", code, date.Format("2006-01-02"))
}

func copyExpense(exp *models.Expense) *models.Expense {
	out := *exp
	out.Items = make([]models.ExpenseItem, len(exp.Items))
	for i, item := range exp.Items {
		copied := item
		copied.Assignments = append([]models.ExpenseAssignment(nil), item.Assignments...)
		out.Items[i] = copied
	}
	return &out
}
