package models

import "github.com/shopspring/decimal"

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateTripRequest struct {
	Name        string `json:"name" binding:"required"`
	Destination string `json:"destination"`
}

// AddParticipantRequest adds either a registered user (by email) or a guest
// (by display name) to a trip.
type AddParticipantRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsGuest bool   `json:"isGuest"`
}

// ExpenseItemRequest carries one line item. ID is set when updating an
// existing item in place; items without an ID are inserted as new.
type ExpenseItemRequest struct {
	ID    string          `json:"id"`
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
}

type CreateExpenseRequest struct {
	PayerID      string               `json:"payerId" binding:"required"`
	Title        string               `json:"title" binding:"required"`
	TotalAmount  decimal.Decimal      `json:"totalAmount"`
	CurrencyCode string               `json:"currencyCode"`
	PaymentDate  string               `json:"paymentDate" binding:"required"` // YYYY-MM-DD
	EntryMethod  string               `json:"entryMethod"`
	Items        []ExpenseItemRequest `json:"items" binding:"required,min=1"`
}

type UpdateExpenseRequest struct {
	PayerID     string               `json:"payerId" binding:"required"`
	Title       string               `json:"title" binding:"required"`
	TotalAmount decimal.Decimal      `json:"totalAmount"`
	Items       []ExpenseItemRequest `json:"items" binding:"required,min=1"`
}

type ItemAssignmentRequest struct {
	ItemID         string   `json:"itemId" binding:"required"`
	ParticipantIDs []string `json:"participantIds" binding:"required"`
}

type AssignParticipantsRequest struct {
	Assignments []ItemAssignmentRequest `json:"assignments" binding:"required,min=1"`
}

// UpsertRateRequest publishes a rate at the ingestion boundary. PerUnits
// covers sources quoting per 100 units (e.g. JPY); the stored rate is always
// per unit.
type UpsertRateRequest struct {
	CurrencyCode string          `json:"currencyCode" binding:"required"`
	Date         string          `json:"date" binding:"required"` // YYYY-MM-DD
	Rate         decimal.Decimal `json:"rate"`
	PerUnits     int64           `json:"perUnits"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type TripResponse struct {
	Status       string `json:"status"`
	TripID       string `json:"tripId,omitempty"`
	Name         string `json:"name,omitempty"`
	BaseCurrency string `json:"baseCurrency,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

type TripListResponse struct {
	Status string `json:"status"`
	Trips  []Trip `json:"trips"`
}

type ParticipantResponse struct {
	Status      string       `json:"status"`
	Participant *Participant `json:"participant,omitempty"`
}

type ParticipantListResponse struct {
	Status       string        `json:"status"`
	TripID       string        `json:"tripId"`
	Participants []Participant `json:"participants"`
}

type ExpenseResponse struct {
	Status  string   `json:"status"`
	Expense *Expense `json:"expense,omitempty"`
}

type ExpenseListResponse struct {
	Status   string    `json:"status"`
	TripID   string    `json:"tripId"`
	Expenses []Expense `json:"expenses"`
}

// ExpenseSummary is one expense of a settlement, converted to base currency.
type ExpenseSummary struct {
	ExpenseID      string          `json:"expenseId"`
	Title          string          `json:"title"`
	PayerID        string          `json:"payerId"`
	Amount         decimal.Decimal `json:"amount"` // base currency
	CurrencyCode   string          `json:"currencyCode"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
}

// ParticipantSummary is one participant's aggregated balance in base currency.
type ParticipantSummary struct {
	ParticipantID  string          `json:"participantId"`
	Name           string          `json:"name"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	AssignedAmount decimal.Decimal `json:"assignedAmount"`
	NetAmount      decimal.Decimal `json:"netAmount"`
}

// DebtRelationResponse is one minimal transfer needed to settle balances.
type DebtRelationResponse struct {
	FromParticipantID string          `json:"fromParticipantId"`
	ToParticipantID   string          `json:"toParticipantId"`
	Amount            decimal.Decimal `json:"amount"`
}

type SettlementResponse struct {
	Status        string                 `json:"status"`
	TripID        string                 `json:"tripId"`
	Date          string                 `json:"date,omitempty"`
	BaseCurrency  string                 `json:"baseCurrency"`
	TotalAmount   decimal.Decimal        `json:"totalAmount"`
	Expenses      []ExpenseSummary       `json:"expenses,omitempty"`
	Participants  []ParticipantSummary   `json:"participants"`
	DebtRelations []DebtRelationResponse `json:"debtRelations"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
