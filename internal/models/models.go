package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant roles within a trip
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleGuest  = "guest"
	RoleKicked = "kicked"
	RoleExited = "exited"
)

// Expense entry methods
const (
	EntryManual  = "manual"
	EntryReceipt = "receipt"
)

// User represents a registered account holder
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Trip represents a trip shared by a group of participants. All settlement
// amounts for a trip are expressed in the server's base currency.
type Trip struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Destination  string    `db:"destination" json:"destination"`
	BaseCurrency string    `db:"base_currency" json:"baseCurrency"`
	CreatedBy    string    `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Participant is a trip member eligible to pay or be assigned expense shares.
// Guests have no user reference and may be hard-deleted; registered members
// are retained with role kicked/exited instead.
type Participant struct {
	ID        string    `db:"id" json:"id"`
	TripID    string    `db:"trip_id" json:"tripId"`
	UserID    *string   `db:"user_id" json:"userId,omitempty"`
	Name      string    `db:"name" json:"name"`
	IsGuest   bool      `db:"is_guest" json:"isGuest"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Expense represents one payment event. The items always sum to TotalAmount.
type Expense struct {
	ID           string          `db:"id" json:"id"`
	TripID       string          `db:"trip_id" json:"tripId"`
	PayerID      string          `db:"payer_id" json:"payerId"`
	Title        string          `db:"title" json:"title"`
	TotalAmount  decimal.Decimal `db:"total_amount" json:"totalAmount"`
	CurrencyCode string          `db:"currency_code" json:"currencyCode"`
	PaymentDate  time.Time       `db:"payment_date" json:"paymentDate"`
	EntryMethod  string          `db:"entry_method" json:"entryMethod"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`

	Items []ExpenseItem `db:"-" json:"items"`
}

// ExpenseItem is one line item of an expense. Price is immutable independent
// of assignments; only the split over the price changes.
type ExpenseItem struct {
	ID        string          `db:"id" json:"id"`
	ExpenseID string          `db:"expense_id" json:"expenseId"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`

	Assignments []ExpenseAssignment `db:"-" json:"assignments"`
}

// ExpenseAssignment is the share of one item owed by one participant. For any
// item with at least one assignment the amounts sum exactly to the item price.
type ExpenseAssignment struct {
	ID            string          `db:"id" json:"id"`
	ItemID        string          `db:"item_id" json:"itemId"`
	ParticipantID string          `db:"participant_id" json:"participantId"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
}

// ExchangeRate maps (currency code, effective date) to a per-unit rate into
// the base currency. Immutable once published for a given code and date.
type ExchangeRate struct {
	CurrencyCode  string          `db:"currency_code" json:"currencyCode"`
	DateEffective time.Time       `db:"date_effective" json:"dateEffective"`
	Rate          decimal.Decimal `db:"rate" json:"rate"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}
