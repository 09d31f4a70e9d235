package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripsplit/tripsplit-server/internal/api"
	"github.com/tripsplit/tripsplit-server/internal/exchange"
	"github.com/tripsplit/tripsplit-server/internal/models"
	"github.com/tripsplit/tripsplit-server/internal/repository"
	"github.com/tripsplit/tripsplit-server/internal/service"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for API tests. The service runs over the
// in-memory repository, so every test starts from an empty store.
type TestContext struct {
	Router      *gin.Engine
	Repository  *repository.MemoryRepository
	Service     service.Service
	JWTSecret   []byte
	TestUserID  string
	TestUserJWT string
}

// SetupTestContext creates a router wired to a fresh in-memory backend plus a
// registered user with a valid token.
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	repo := repository.NewMemoryRepository()
	converter := exchange.NewConverter(repo, nil, "KRW", time.Second)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewDefaultService(repo, converter, logger, testJWTSecret)

	handler := api.NewHandler(svc)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})
	handler.SetupRoutes(router)

	testUserID, token := createTestUser(t, repo)

	return &TestContext{
		Router:      router,
		Repository:  repo,
		Service:     svc,
		JWTSecret:   []byte(testJWTSecret),
		TestUserID:  testUserID,
		TestUserJWT: token,
	}
}

func createTestUser(t *testing.T, repo repository.Repository) (string, string) {
	t.Helper()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    "testuser@example.com",
		Name:     "Test User",
		Password: string(hashedPassword),
	}
	require.NoError(t, repo.CreateUser(context.Background(), user), "Failed to create test user")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})
	tokenString, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err, "Failed to generate JWT token")

	return user.ID, tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
