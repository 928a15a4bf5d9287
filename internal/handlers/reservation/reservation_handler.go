package reservation

import (
	"net/http"
	"strconv"

	"tablevoice-service/internal/domain/reservation"
	"tablevoice-service/internal/middleware"
	"tablevoice-service/internal/pkg/response"
	resService "tablevoice-service/internal/service/reservation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	resService *resService.ReservationService
	logger     *zap.Logger
}

func NewReservationHandler(svc *resService.ReservationService, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{
		resService: svc,
		logger:     logger,
	}
}

// Create books a table.
func (h *ReservationHandler) Create(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}

	var req reservation.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	res, err := h.resService.Create(c.Request.Context(), identityID, restaurantID, &req)
	if err != nil {
		response.FromError(c, "failed to create reservation", err)
		return
	}

	response.Success(c, http.StatusCreated, "reservation created", res)
}

// List pages through a restaurant's reservations.
func (h *ReservationHandler) List(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}

	var filters reservation.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	list, err := h.resService.List(c.Request.Context(), identityID, restaurantID, &filters)
	if err != nil {
		response.FromError(c, "failed to list reservations", err)
		return
	}

	response.Success(c, http.StatusOK, "reservations", list)
}

// GetByCode looks a reservation up by its confirmation code.
func (h *ReservationHandler) GetByCode(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}
	code := c.Param("code")

	res, err := h.resService.GetByCode(c.Request.Context(), identityID, restaurantID, code)
	if err != nil {
		response.FromError(c, "failed to load reservation", err)
		return
	}

	response.Success(c, http.StatusOK, "reservation", res)
}

// CheckAvailability reports whether a slot can take a party.
func (h *ReservationHandler) CheckAvailability(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}

	var req reservation.AvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	avail, err := h.resService.CheckAvailability(c.Request.Context(), identityID, restaurantID, &req)
	if err != nil {
		response.FromError(c, "availability check failed", err)
		return
	}

	response.Success(c, http.StatusOK, "availability", avail)
}

// Get returns one reservation.
func (h *ReservationHandler) Get(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	reservationID, ok := pathID(c, "reservationID")
	if !ok {
		return
	}

	res, err := h.resService.Get(c.Request.Context(), identityID, reservationID)
	if err != nil {
		response.FromError(c, "failed to load reservation", err)
		return
	}

	response.Success(c, http.StatusOK, "reservation", res)
}

// Update edits reservation details.
func (h *ReservationHandler) Update(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	reservationID, ok := pathID(c, "reservationID")
	if !ok {
		return
	}

	var req reservation.UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	res, err := h.resService.Update(c.Request.Context(), identityID, reservationID, &req)
	if err != nil {
		response.FromError(c, "failed to update reservation", err)
		return
	}

	response.Success(c, http.StatusOK, "reservation updated", res)
}

type updateStatusRequest struct {
	Status reservation.Status `json:"status" binding:"required"`
}

// UpdateStatus moves a reservation through its lifecycle.
func (h *ReservationHandler) UpdateStatus(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	reservationID, ok := pathID(c, "reservationID")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	res, err := h.resService.UpdateStatus(c.Request.Context(), identityID, reservationID, req.Status)
	if err != nil {
		response.FromError(c, "failed to update reservation status", err)
		return
	}

	response.Success(c, http.StatusOK, "reservation status updated", res)
}

// Delete removes a reservation.
func (h *ReservationHandler) Delete(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	reservationID, ok := pathID(c, "reservationID")
	if !ok {
		return
	}

	if err := h.resService.Delete(c.Request.Context(), identityID, reservationID); err != nil {
		response.FromError(c, "failed to delete reservation", err)
		return
	}

	response.Success(c, http.StatusOK, "reservation deleted", nil)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ValidationError(c, "invalid "+name, err)
		return 0, false
	}
	return id, true
}
