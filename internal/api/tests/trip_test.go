package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripsplit/tripsplit-server/internal/api/testutils"
	"github.com/tripsplit/tripsplit-server/internal/models"
)

// createTestTrip creates a trip through the API and returns its id.
func createTestTrip(t *testing.T, testCtx *testutils.TestContext) string {
	t.Helper()

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/trips",
		models.CreateTripRequest{Name: "Jeju Weekend", Destination: "Jeju"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.TripResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TripID)
	return resp.TripID
}

func TestCreateTrip(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/trips",
		models.CreateTripRequest{Name: "Jeju Weekend", Destination: "Jeju"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp models.TripResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Jeju Weekend", resp.Name)
	assert.Equal(t, "KRW", resp.BaseCurrency)

	// Missing name fails validation
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/trips",
		models.CreateTripRequest{Destination: "Jeju"},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTrips(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	tripID := createTestTrip(t, testCtx)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/trips",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.TripListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Trips, 1)
	assert.Equal(t, tripID, resp.Trips[0].ID)
}

func TestParticipantLifecycle(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	tripID := createTestTrip(t, testCtx)

	// The creator is already the owner participant.
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/api/trips/%s/participants", tripID),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	var list models.ParticipantListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Participants, 1)
	assert.Equal(t, models.RoleOwner, list.Participants[0].Role)

	// Add a guest
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		fmt.Sprintf("/api/trips/%s/participants", tripID),
		models.AddParticipantRequest{Name: "Guest Gwen", IsGuest: true},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	require.Equal(t, http.StatusCreated, w.Code)

	var added models.ParticipantResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	require.NotNil(t, added.Participant)
	assert.True(t, added.Participant.IsGuest)
	assert.Equal(t, models.RoleGuest, added.Participant.Role)

	// Remove the guest again
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		fmt.Sprintf("/api/trips/%s/participants/%s", tripID, added.Participant.ID),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	// Removing an unknown participant is a 404
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		fmt.Sprintf("/api/trips/%s/participants/no-such-id", tripID),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownTripReturnsNotFound(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/trips/no-such-trip/participants",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestNonMemberIsForbidden(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	tripID := createTestTrip(t, testCtx)

	// A second user signs up and logs in but never joins the trip.
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/signup",
		models.SignUpRequest{Email: "outsider@example.com", Password: "Password123", Name: "Outsider"},
		nil,
	)
	require.Equal(t, http.StatusCreated, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/auth/login",
		models.LoginRequest{Email: "outsider@example.com", Password: "Password123"},
		nil,
	)
	require.Equal(t, http.StatusOK, w.Code)

	var login models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/api/trips/%s/participants", tripID),
		nil,
		testutils.AuthHeaders(login.Token),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "FORBIDDEN", resp.Code)
}
