package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tripsplit/tripsplit-server/internal/exchange"
	"github.com/tripsplit/tripsplit-server/internal/models"
	"github.com/tripsplit/tripsplit-server/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)

	// Trips and participants
	CreateTrip(ctx context.Context, userID string, req models.CreateTripRequest) (*models.TripResponse, error)
	GetUserTrips(ctx context.Context, userID string) (*models.TripListResponse, error)
	ListParticipants(ctx context.Context, userID, tripID string) (*models.ParticipantListResponse, error)
	AddParticipant(ctx context.Context, userID, tripID string, req models.AddParticipantRequest) (*models.ParticipantResponse, error)
	RemoveParticipant(ctx context.Context, userID, tripID, participantID string) error

	// Expense ledger
	CreateExpense(ctx context.Context, userID, tripID string, req models.CreateExpenseRequest) (*models.ExpenseResponse, error)
	UpdateExpense(ctx context.Context, userID, tripID, expenseID string, req models.UpdateExpenseRequest) (*models.ExpenseResponse, error)
	DeleteExpense(ctx context.Context, userID, tripID, expenseID string) error
	AssignParticipants(ctx context.Context, userID, tripID, expenseID string, req models.AssignParticipantsRequest) (*models.ExpenseResponse, error)
	ListExpenses(ctx context.Context, userID, tripID string) (*models.ExpenseListResponse, error)

	// Settlement
	GetDailySettlement(ctx context.Context, userID, tripID string, date time.Time) (*models.SettlementResponse, error)
	GetTotalSettlement(ctx context.Context, userID, tripID string) (*models.SettlementResponse, error)

	// Exchange rates
	PublishRate(ctx context.Context, req models.UpsertRateRequest) error
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	converter     *exchange.Converter
	logger        *slog.Logger
	jwtSecret     []byte
	tokenDuration time.Duration
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, converter *exchange.Converter, logger *slog.Logger, jwtSecret string) Service {
	return &DefaultService{
		repo:          repo,
		converter:     converter,
		logger:        logger,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, models.ErrEmailTaken
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	// Create the user
	user := &models.User{
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return &models.AuthResponse{
		Status: "success",
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	// Get the user
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, errors.New("invalid email or password")
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// Trip operations
func (s *DefaultService) CreateTrip(
	ctx context.Context,
	userID string,
	req models.CreateTripRequest,
) (*models.TripResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, models.ErrParticipantNotFound
	}

	trip := &models.Trip{
		Name:         req.Name,
		Destination:  req.Destination,
		BaseCurrency: s.converter.BaseCurrency(),
		CreatedBy:    userID,
	}

	// The creator becomes the owner participant in the same transaction.
	if _, err := s.repo.CreateTrip(ctx, trip, user.Name); err != nil {
		return nil, fmt.Errorf("error creating trip: %w", err)
	}

	return &models.TripResponse{
		Status:       "success",
		TripID:       trip.ID,
		Name:         trip.Name,
		BaseCurrency: trip.BaseCurrency,
		CreatedAt:    trip.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *DefaultService) GetUserTrips(ctx context.Context, userID string) (*models.TripListResponse, error) {
	trips, err := s.repo.GetUserTrips(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting trips: %w", err)
	}

	return &models.TripListResponse{
		Status: "success",
		Trips:  trips,
	}, nil
}

func (s *DefaultService) ListParticipants(ctx context.Context, userID, tripID string) (*models.ParticipantListResponse, error) {
	participants, _, err := s.requireMember(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}

	return &models.ParticipantListResponse{
		Status:       "success",
		TripID:       tripID,
		Participants: participants,
	}, nil
}

func (s *DefaultService) AddParticipant(
	ctx context.Context,
	userID string,
	tripID string,
	req models.AddParticipantRequest,
) (*models.ParticipantResponse, error) {
	_, _, err := s.requireMember(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}

	participant := &models.Participant{
		TripID: tripID,
	}

	if req.IsGuest {
		if req.Name == "" {
			return nil, errors.New("guest participants require a name")
		}
		participant.Name = req.Name
		participant.IsGuest = true
		participant.Role = models.RoleGuest
	} else {
		if req.Email == "" {
			return nil, errors.New("registered participants require an email")
		}
		user, err := s.repo.GetUserByEmail(ctx, req.Email)
		if err != nil {
			return nil, fmt.Errorf("error getting user: %w", err)
		}
		if user == nil {
			return nil, models.ErrParticipantNotFound
		}
		participant.UserID = &user.ID
		participant.Name = user.Name
		participant.Role = models.RoleMember
	}

	if err := s.repo.AddParticipant(ctx, participant); err != nil {
		return nil, fmt.Errorf("error adding participant: %w", err)
	}

	s.logger.Info("participant added",
		"trip_id", tripID, "participant_id", participant.ID, "is_guest", participant.IsGuest)

	return &models.ParticipantResponse{
		Status:      "success",
		Participant: participant,
	}, nil
}

// RemoveParticipant removes a participant from active settlement. Guests are
// hard-deleted together with a ledger repair (payer reassignment to the trip
// owner and redistribution of their shares) in one transaction; registered
// members are retained with role kicked, or exited when leaving themselves.
func (s *DefaultService) RemoveParticipant(ctx context.Context, userID, tripID, participantID string) error {
	participants, caller, err := s.requireMember(ctx, userID, tripID)
	if err != nil {
		return err
	}

	var target *models.Participant
	for i := range participants {
		if participants[i].ID == participantID {
			target = &participants[i]
			break
		}
	}
	if target == nil {
		return models.ErrParticipantNotFound
	}

	if target.Role == models.RoleOwner {
		return errors.New("the trip owner cannot be removed")
	}

	leaving := caller.ID == target.ID
	if !leaving && caller.Role != models.RoleOwner && caller.Role != models.RoleAdmin {
		return models.ErrNotTripMember
	}

	if target.IsGuest {
		owner, err := s.repo.GetOwner(ctx, tripID)
		if err != nil {
			return fmt.Errorf("error getting trip owner: %w", err)
		}
		if owner == nil {
			return models.ErrTripNotFound
		}

		if err := s.repo.RemoveParticipant(ctx, tripID, participantID, owner.ID, s.converter.Scale()); err != nil {
			return fmt.Errorf("error removing guest: %w", err)
		}
		s.logger.Info("guest removed and ledger repaired",
			"trip_id", tripID, "participant_id", participantID, "new_payer", owner.ID)
		return nil
	}

	role := models.RoleKicked
	if leaving {
		role = models.RoleExited
	}
	if err := s.repo.UpdateParticipantRole(ctx, tripID, participantID, role); err != nil {
		return fmt.Errorf("error updating participant role: %w", err)
	}
	return nil
}

// PublishRate publishes an exchange rate at the ingestion boundary.
func (s *DefaultService) PublishRate(ctx context.Context, req models.UpsertRateRequest) error {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return models.ErrInvalidDate
	}

	perUnits := req.PerUnits
	if perUnits <= 0 {
		perUnits = 1
	}

	if err := s.converter.Ingest(ctx, req.CurrencyCode, date, req.Rate, perUnits); err != nil {
		return fmt.Errorf("error publishing rate: %w", err)
	}

	s.logger.Info("exchange rate published",
		"currency", req.CurrencyCode, "date", req.Date, "per_units", perUnits)
	return nil
}

// Helper methods

// requireMember loads the trip's participants and verifies the user is an
// active member. It returns all participants plus the caller's own record.
func (s *DefaultService) requireMember(ctx context.Context, userID, tripID string) ([]models.Participant, *models.Participant, error) {
	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting trip: %w", err)
	}
	if trip == nil {
		return nil, nil, models.ErrTripNotFound
	}

	participants, err := s.repo.GetParticipants(ctx, tripID)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting participants: %w", err)
	}

	for i := range participants {
		p := &participants[i]
		if p.UserID != nil && *p.UserID == userID &&
			p.Role != models.RoleKicked && p.Role != models.RoleExited {
			return participants, p, nil
		}
	}
	return nil, nil, models.ErrNotTripMember
}

func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
