package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/tripsplit/tripsplit-server/internal/models"
	"github.com/tripsplit/tripsplit-server/internal/split"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Trip operations
	CreateTrip(ctx context.Context, trip *models.Trip, ownerName string) (*models.Participant, error)
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	GetUserTrips(ctx context.Context, userID string) ([]models.Trip, error)

	// Participant directory
	AddParticipant(ctx context.Context, participant *models.Participant) error
	GetParticipants(ctx context.Context, tripID string) ([]models.Participant, error)
	GetParticipant(ctx context.Context, tripID, participantID string) (*models.Participant, error)
	GetOwner(ctx context.Context, tripID string) (*models.Participant, error)
	UpdateParticipantRole(ctx context.Context, tripID, participantID, role string) error
	RemoveParticipant(ctx context.Context, tripID, participantID, ownerID string, scale int32) error

	// Expense ledger
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, expense *models.Expense) error
	DeleteExpense(ctx context.Context, expenseID string) error
	ReplaceAssignments(ctx context.Context, expenseID string, byItem map[string][]models.ExpenseAssignment) error
	ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error)
	ListExpensesByDate(ctx context.Context, tripID string, date time.Time) ([]models.Expense, error)

	// Exchange rates
	GetExchangeRate(ctx context.Context, code string, date time.Time) (*models.ExchangeRate, error)
	UpsertExchangeRate(ctx context.Context, rate *models.ExchangeRate) error
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Password, user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

// Trip repository methods

// CreateTrip inserts the trip and its owner participant in one transaction.
func (r *PostgresRepository) CreateTrip(ctx context.Context, trip *models.Trip, ownerName string) (*models.Participant, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	trip.CreatedAt = now
	trip.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trips (id, name, destination, base_currency, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		trip.ID, trip.Name, trip.Destination, trip.BaseCurrency,
		trip.CreatedBy, trip.CreatedAt, trip.UpdatedAt)
	if err != nil {
		return nil, err
	}

	owner := &models.Participant{
		ID:        uuid.New().String(),
		TripID:    trip.ID,
		UserID:    &trip.CreatedBy,
		Name:      ownerName,
		IsGuest:   false,
		Role:      models.RoleOwner,
		CreatedAt: now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO participants (id, trip_id, user_id, name, is_guest, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		owner.ID, owner.TripID, owner.UserID, owner.Name, owner.IsGuest, owner.Role, owner.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return owner, nil
}

func (r *PostgresRepository) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	query := `SELECT * FROM trips WHERE id = $1`

	var trip models.Trip
	err := r.db.GetContext(ctx, &trip, query, tripID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Trip not found
		}
		return nil, err
	}

	return &trip, nil
}

func (r *PostgresRepository) GetUserTrips(ctx context.Context, userID string) ([]models.Trip, error) {
	query := `
		SELECT t.* FROM trips t
		JOIN participants p ON t.id = p.trip_id
		WHERE p.user_id = $1 AND p.role NOT IN ($2, $3)
		ORDER BY t.created_at DESC
	`

	var trips []models.Trip
	err := r.db.SelectContext(ctx, &trips, query, userID, models.RoleKicked, models.RoleExited)
	if err != nil {
		return nil, err
	}

	return trips, nil
}

// Participant repository methods
func (r *PostgresRepository) AddParticipant(ctx context.Context, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = uuid.New().String()
	}
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO participants (id, trip_id, user_id, name, is_guest, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		participant.ID, participant.TripID, participant.UserID, participant.Name,
		participant.IsGuest, participant.Role, participant.CreatedAt)
	return err
}

func (r *PostgresRepository) GetParticipants(ctx context.Context, tripID string) ([]models.Participant, error) {
	query := `SELECT * FROM participants WHERE trip_id = $1 ORDER BY created_at ASC`

	var participants []models.Participant
	err := r.db.SelectContext(ctx, &participants, query, tripID)
	if err != nil {
		return nil, err
	}

	return participants, nil
}

func (r *PostgresRepository) GetParticipant(ctx context.Context, tripID, participantID string) (*models.Participant, error) {
	query := `SELECT * FROM participants WHERE trip_id = $1 AND id = $2`

	var participant models.Participant
	err := r.db.GetContext(ctx, &participant, query, tripID, participantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Participant not found
		}
		return nil, err
	}

	return &participant, nil
}

func (r *PostgresRepository) GetOwner(ctx context.Context, tripID string) (*models.Participant, error) {
	query := `SELECT * FROM participants WHERE trip_id = $1 AND role = $2`

	var owner models.Participant
	err := r.db.GetContext(ctx, &owner, query, tripID, models.RoleOwner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &owner, nil
}

func (r *PostgresRepository) UpdateParticipantRole(ctx context.Context, tripID, participantID, role string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE participants SET role = $1 WHERE trip_id = $2 AND id = $3`,
		role, tripID, participantID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrParticipantNotFound
	}
	return nil
}

// RemoveParticipant hard-deletes a participant and repairs the ledger in the
// same transaction: expenses paid by the removed participant are reassigned
// to the trip owner, the participant's assignments are deleted, and every
// touched item's remaining split is recomputed so it still sums to the item
// price. Items left with no assignees stay unassigned.
func (r *PostgresRepository) RemoveParticipant(ctx context.Context, tripID, participantID, ownerID string, scale int32) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Lock the expenses being rewritten so a concurrent edit cannot
	// interleave with the redistribution.
	_, err = tx.ExecContext(ctx, `
		SELECT id FROM expenses
		WHERE trip_id = $1 AND (payer_id = $2 OR id IN (
			SELECT i.expense_id FROM expense_items i
			JOIN expense_assignments a ON a.item_id = i.id
			WHERE a.participant_id = $2
		))
		FOR UPDATE`,
		tripID, participantID)
	if err != nil {
		return err
	}

	// Payer reassignment: no expense may be left with a dangling payer.
	_, err = tx.ExecContext(ctx,
		`UPDATE expenses SET payer_id = $1, updated_at = $2 WHERE trip_id = $3 AND payer_id = $4`,
		ownerID, time.Now().UTC(), tripID, participantID)
	if err != nil {
		return err
	}

	// Items whose split includes the removed participant.
	type affectedItem struct {
		ID    string          `db:"id"`
		Price decimal.Decimal `db:"price"`
	}
	var affected []affectedItem
	err = tx.SelectContext(ctx, &affected, `
		SELECT i.id, i.price FROM expense_items i
		JOIN expenses e ON e.id = i.expense_id
		JOIN expense_assignments a ON a.item_id = i.id
		WHERE e.trip_id = $1 AND a.participant_id = $2`,
		tripID, participantID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM expense_assignments
		WHERE participant_id = $1 AND item_id IN (
			SELECT i.id FROM expense_items i
			JOIN expenses e ON e.id = i.expense_id
			WHERE e.trip_id = $2
		)`,
		participantID, tripID)
	if err != nil {
		return err
	}

	// Redistribute each touched item over its remaining assignees.
	for _, item := range affected {
		var remaining []string
		err = tx.SelectContext(ctx, &remaining,
			`SELECT participant_id FROM expense_assignments WHERE item_id = $1 ORDER BY participant_id ASC`,
			item.ID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			continue // item is left unassigned
		}

		shares := split.Allocate(item.Price, len(remaining), scale)
		for i, pid := range remaining {
			_, err = tx.ExecContext(ctx,
				`UPDATE expense_assignments SET amount = $1 WHERE item_id = $2 AND participant_id = $3`,
				shares[i], item.ID, pid)
			if err != nil {
				return err
			}
		}
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		`DELETE FROM participants WHERE trip_id = $1 AND id = $2`,
		tripID, participantID)
	if err != nil {
		return err
	}

	var rows int64
	rows, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		err = models.ErrParticipantNotFound
		return err
	}

	return tx.Commit()
}

// Expense ledger repository methods

// CreateExpense persists the expense and its items atomically.
func (r *PostgresRepository) CreateExpense(ctx context.Context, expense *models.Expense) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	expense.CreatedAt = now
	expense.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (id, trip_id, payer_id, title, total_amount, currency_code, payment_date, entry_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		expense.ID, expense.TripID, expense.PayerID, expense.Title, expense.TotalAmount,
		expense.CurrencyCode, expense.PaymentDate, expense.EntryMethod,
		expense.CreatedAt, expense.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range expense.Items {
		item := &expense.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.ExpenseID = expense.ID

		_, err = tx.ExecContext(ctx,
			`INSERT INTO expense_items (id, expense_id, name, price) VALUES ($1, $2, $3, $4)`,
			item.ID, item.ExpenseID, item.Name, item.Price)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	var expense models.Expense
	err := r.db.GetContext(ctx, &expense, `SELECT * FROM expenses WHERE id = $1`, expenseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Expense not found
		}
		return nil, err
	}

	expenses := []models.Expense{expense}
	if err := r.loadItems(ctx, expenses); err != nil {
		return nil, err
	}

	return &expenses[0], nil
}

// UpdateExpense rewrites the expense and its item set in one transaction.
// Items carrying an id are updated in place, items without one are inserted,
// and items missing from the new set are removed. Every assignment tied to
// the expense is discarded; the new item set must be re-assigned separately.
func (r *PostgresRepository) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Row lock so concurrent edits to the same expense serialize.
	var lockedID string
	err = tx.GetContext(ctx, &lockedID, `SELECT id FROM expenses WHERE id = $1 FOR UPDATE`, expense.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = models.ErrExpenseNotFound
		}
		return err
	}

	expense.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE expenses SET payer_id = $1, title = $2, total_amount = $3, updated_at = $4
		WHERE id = $5`,
		expense.PayerID, expense.Title, expense.TotalAmount, expense.UpdatedAt, expense.ID)
	if err != nil {
		return err
	}

	// Editing the item set resets its distribution entirely.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM expense_assignments
		WHERE item_id IN (SELECT id FROM expense_items WHERE expense_id = $1)`,
		expense.ID)
	if err != nil {
		return err
	}

	var existingIDs []string
	err = tx.SelectContext(ctx, &existingIDs,
		`SELECT id FROM expense_items WHERE expense_id = $1`, expense.ID)
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	kept := make(map[string]bool, len(expense.Items))
	for i := range expense.Items {
		item := &expense.Items[i]
		item.ExpenseID = expense.ID

		if item.ID != "" && existing[item.ID] {
			kept[item.ID] = true
			_, err = tx.ExecContext(ctx,
				`UPDATE expense_items SET name = $1, price = $2 WHERE id = $3`,
				item.Name, item.Price, item.ID)
		} else {
			if item.ID == "" {
				item.ID = uuid.New().String()
			}
			kept[item.ID] = true
			_, err = tx.ExecContext(ctx,
				`INSERT INTO expense_items (id, expense_id, name, price) VALUES ($1, $2, $3, $4)`,
				item.ID, item.ExpenseID, item.Name, item.Price)
		}
		if err != nil {
			return err
		}
	}

	for _, id := range existingIDs {
		if kept[id] {
			continue
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM expense_items WHERE id = $1`, id)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteExpense removes the expense with its items and assignments in one
// transaction.
func (r *PostgresRepository) DeleteExpense(ctx context.Context, expenseID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM expense_assignments
		WHERE item_id IN (SELECT id FROM expense_items WHERE expense_id = $1)`,
		expenseID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM expense_items WHERE expense_id = $1`, expenseID)
	if err != nil {
		return err
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, expenseID)
	if err != nil {
		return err
	}

	var rows int64
	rows, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		err = models.ErrExpenseNotFound
		return err
	}

	return tx.Commit()
}

// ReplaceAssignments swaps out all assignments of the targeted items in one
// transaction. Items not listed keep their assignments.
func (r *PostgresRepository) ReplaceAssignments(ctx context.Context, expenseID string, byItem map[string][]models.ExpenseAssignment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var lockedID string
	err = tx.GetContext(ctx, &lockedID, `SELECT id FROM expenses WHERE id = $1 FOR UPDATE`, expenseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = models.ErrExpenseNotFound
		}
		return err
	}

	for itemID, assignments := range byItem {
		var ownerExpense string
		err = tx.GetContext(ctx, &ownerExpense,
			`SELECT expense_id FROM expense_items WHERE id = $1`, itemID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = models.ErrItemNotFound
			}
			return err
		}
		if ownerExpense != expenseID {
			err = models.ErrItemNotFound
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM expense_assignments WHERE item_id = $1`, itemID)
		if err != nil {
			return err
		}

		for _, a := range assignments {
			id := a.ID
			if id == "" {
				id = uuid.New().String()
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO expense_assignments (id, item_id, participant_id, amount) VALUES ($1, $2, $3, $4)`,
				id, itemID, a.ParticipantID, a.Amount)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) ListExpenses(ctx context.Context, tripID string) ([]models.Expense, error) {
	query := `SELECT * FROM expenses WHERE trip_id = $1 ORDER BY payment_date ASC, created_at ASC`

	var expenses []models.Expense
	err := r.db.SelectContext(ctx, &expenses, query, tripID)
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *PostgresRepository) ListExpensesByDate(ctx context.Context, tripID string, date time.Time) ([]models.Expense, error) {
	query := `SELECT * FROM expenses WHERE trip_id = $1 AND payment_date = $2 ORDER BY created_at ASC`

	var expenses []models.Expense
	err := r.db.SelectContext(ctx, &expenses, query, tripID, date)
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// loadItems attaches items and assignments to the given expenses.
func (r *PostgresRepository) loadItems(ctx context.Context, expenses []models.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	expenseIDs := make([]string, len(expenses))
	byExpense := make(map[string]*models.Expense, len(expenses))
	for i := range expenses {
		expenseIDs[i] = expenses[i].ID
		byExpense[expenses[i].ID] = &expenses[i]
	}

	query, args, err := sqlx.In(
		`SELECT * FROM expense_items WHERE expense_id IN (?) ORDER BY id ASC`, expenseIDs)
	if err != nil {
		return err
	}

	var items []models.ExpenseItem
	err = r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	itemIDs := make([]string, len(items))
	byItem := make(map[string]*models.ExpenseItem, len(items))
	for i := range items {
		itemIDs[i] = items[i].ID
		byItem[items[i].ID] = &items[i]
	}

	query, args, err = sqlx.In(
		`SELECT * FROM expense_assignments WHERE item_id IN (?) ORDER BY participant_id ASC`, itemIDs)
	if err != nil {
		return err
	}

	var assignments []models.ExpenseAssignment
	err = r.db.SelectContext(ctx, &assignments, r.db.Rebind(query), args...)
	if err != nil {
		return err
	}

	for _, a := range assignments {
		item := byItem[a.ItemID]
		item.Assignments = append(item.Assignments, a)
	}
	for i := range items {
		exp := byExpense[items[i].ExpenseID]
		exp.Items = append(exp.Items, items[i])
	}
	return nil
}

// Exchange rate repository methods
func (r *PostgresRepository) GetExchangeRate(ctx context.Context, code string, date time.Time) (*models.ExchangeRate, error) {
	query := `SELECT * FROM exchange_rates WHERE currency_code = $1 AND date_effective = $2`

	var rate models.ExchangeRate
	err := r.db.GetContext(ctx, &rate, query, code, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Rate not published
		}
		return nil, err
	}

	return &rate, nil
}

// UpsertExchangeRate publishes a rate record. Records are immutable once
// published for a given (code, date); re-publishing the same key is a no-op.
func (r *PostgresRepository) UpsertExchangeRate(ctx context.Context, rate *models.ExchangeRate) error {
	if rate.CreatedAt.IsZero() {
		rate.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (currency_code, date_effective, rate, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (currency_code, date_effective) DO NOTHING`,
		rate.CurrencyCode, rate.DateEffective, rate.Rate, rate.CreatedAt)
	return err
}
