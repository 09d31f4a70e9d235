package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tripsplit/tripsplit-server/internal/models"
	"github.com/tripsplit/tripsplit-server/internal/service"
)

// Handler holds the service and exposes the HTTP endpoints
type Handler struct {
	svc service.Service
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{svc: svc}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", h.signUp)
		auth.POST("/login", h.login)
	}

	api := router.Group("/api", AuthMiddleware())
	{
		api.POST("/trips", h.createTrip)
		api.GET("/trips", h.listTrips)

		api.GET("/trips/:id/participants", h.listParticipants)
		api.POST("/trips/:id/participants", h.addParticipant)
		api.DELETE("/trips/:id/participants/:participantId", h.removeParticipant)

		api.POST("/trips/:id/expenses", h.createExpense)
		api.GET("/trips/:id/expenses", h.listExpenses)
		api.PUT("/trips/:id/expenses/:expenseId", h.updateExpense)
		api.DELETE("/trips/:id/expenses/:expenseId", h.deleteExpense)
		api.PUT("/trips/:id/expenses/:expenseId/assignments", h.assignParticipants)

		api.GET("/trips/:id/settlements/daily", h.dailySettlement)
		api.GET("/trips/:id/settlements/total", h.totalSettlement)

		api.PUT("/rates", h.publishRate)
	}
}

// Auth handlers
func (h *Handler) signUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Status:  "error",
				Code:    "CONFLICT",
				Message: err.Error(),
			})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		unauthorized(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Trip handlers
func (h *Handler) createTrip(c *gin.Context) {
	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.CreateTrip(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listTrips(c *gin.Context) {
	resp, err := h.svc.GetUserTrips(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Participant handlers
func (h *Handler) listParticipants(c *gin.Context) {
	resp, err := h.svc.ListParticipants(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) addParticipant(c *gin.Context) {
	var req models.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.AddParticipant(c.Request.Context(), c.GetString("userId"), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) removeParticipant(c *gin.Context) {
	err := h.svc.RemoveParticipant(c.Request.Context(),
		c.GetString("userId"), c.Param("id"), c.Param("participantId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{
		Status:  "success",
		Message: "Participant removed",
	})
}

// Expense handlers
func (h *Handler) createExpense(c *gin.Context) {
	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.CreateExpense(c.Request.Context(), c.GetString("userId"), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listExpenses(c *gin.Context) {
	resp, err := h.svc.ListExpenses(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) updateExpense(c *gin.Context) {
	var req models.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.UpdateExpense(c.Request.Context(),
		c.GetString("userId"), c.Param("id"), c.Param("expenseId"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) deleteExpense(c *gin.Context) {
	err := h.svc.DeleteExpense(c.Request.Context(),
		c.GetString("userId"), c.Param("id"), c.Param("expenseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{
		Status:  "success",
		Message: "Expense deleted",
	})
}

func (h *Handler) assignParticipants(c *gin.Context) {
	var req models.AssignParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.svc.AssignParticipants(c.Request.Context(),
		c.GetString("userId"), c.Param("id"), c.Param("expenseId"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Settlement handlers
func (h *Handler) dailySettlement(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		badRequest(c, models.ErrInvalidDate)
		return
	}

	resp, err := h.svc.GetDailySettlement(c.Request.Context(), c.GetString("userId"), c.Param("id"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) totalSettlement(c *gin.Context) {
	resp, err := h.svc.GetTotalSettlement(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Rate handlers
func (h *Handler) publishRate(c *gin.Context) {
	var req models.UpsertRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.PublishRate(c.Request.Context(), req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{
		Status:  "success",
		Message: "Rate published",
	})
}

// Error mapping
func unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Status:  "error",
		Code:    "UNAUTHORIZED",
		Message: message,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "INVALID_REQUEST",
		Message: err.Error(),
	})
}

// writeError maps domain errors to transport status codes. Validation errors
// are caller-correctable, not-found errors are final, and a missing exchange
// rate is reported as such so the caller can distinguish it from bad input.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrAmountMismatch),
		errors.Is(err, models.ErrInvalidParticipantCount),
		errors.Is(err, models.ErrNegativeAmount),
		errors.Is(err, models.ErrInvalidDate):
		badRequest(c, err)
	case errors.Is(err, models.ErrTripNotFound),
		errors.Is(err, models.ErrExpenseNotFound),
		errors.Is(err, models.ErrItemNotFound),
		errors.Is(err, models.ErrParticipantNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_FOUND",
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrExchangeRateNotFound):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Status:  "error",
			Code:    "EXCHANGE_RATE_NOT_FOUND",
			Message: err.Error(),
		})
	case errors.Is(err, models.ErrNotTripMember):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Status:  "error",
			Code:    "FORBIDDEN",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:  "error",
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
		})
	}
}
