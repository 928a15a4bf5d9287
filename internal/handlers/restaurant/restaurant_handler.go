package restaurant

import (
	"net/http"
	"strconv"

	"tablevoice-service/internal/domain/restaurant"
	"tablevoice-service/internal/middleware"
	"tablevoice-service/internal/pkg/response"
	restService "tablevoice-service/internal/service/restaurant"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RestaurantHandler struct {
	restService *restService.RestaurantService
	logger      *zap.Logger
}

func NewRestaurantHandler(svc *restService.RestaurantService, logger *zap.Logger) *RestaurantHandler {
	return &RestaurantHandler{
		restService: svc,
		logger:      logger,
	}
}

// Create creates a restaurant under personal or organization ownership.
func (h *RestaurantHandler) Create(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req restaurant.CreateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	rest, err := h.restService.Create(c.Request.Context(), identityID, &req)
	if err != nil {
		response.FromError(c, "failed to create restaurant", err)
		return
	}

	response.Success(c, http.StatusCreated, "restaurant created", rest)
}

// List lists every restaurant the caller can see.
func (h *RestaurantHandler) List(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	restaurants, err := h.restService.ListMine(c.Request.Context(), identityID)
	if err != nil {
		response.FromError(c, "failed to list restaurants", err)
		return
	}

	response.Success(c, http.StatusOK, "restaurants", restaurants)
}

// Get returns one restaurant.
func (h *RestaurantHandler) Get(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}

	rest, err := h.restService.Get(c.Request.Context(), identityID, restaurantID)
	if err != nil {
		response.FromError(c, "failed to load restaurant", err)
		return
	}

	response.Success(c, http.StatusOK, "restaurant", rest)
}

// Update applies a partial update.
func (h *RestaurantHandler) Update(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}

	var req restaurant.UpdateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	rest, err := h.restService.Update(c.Request.Context(), identityID, restaurantID, &req)
	if err != nil {
		response.FromError(c, "failed to update restaurant", err)
		return
	}

	response.Success(c, http.StatusOK, "restaurant updated", rest)
}

// Delete removes the restaurant and everything under it.
func (h *RestaurantHandler) Delete(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}

	if err := h.restService.Delete(c.Request.Context(), identityID, restaurantID); err != nil {
		response.FromError(c, "failed to delete restaurant", err)
		return
	}

	response.Success(c, http.StatusOK, "restaurant deleted", nil)
}

// GrantAccess gives an organization member a role on the restaurant.
func (h *RestaurantHandler) GrantAccess(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}

	var req restaurant.GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	access, err := h.restService.GrantAccess(c.Request.Context(), identityID, restaurantID, &req)
	if err != nil {
		response.FromError(c, "failed to grant access", err)
		return
	}

	response.Success(c, http.StatusCreated, "access granted", access)
}

// ListAccess lists the restaurant's access records.
func (h *RestaurantHandler) ListAccess(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}

	records, err := h.restService.ListAccess(c.Request.Context(), identityID, restaurantID)
	if err != nil {
		response.FromError(c, "failed to list access records", err)
		return
	}

	response.Success(c, http.StatusOK, "access records", records)
}

// UpdateAccess changes a member's restaurant role.
func (h *RestaurantHandler) UpdateAccess(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}
	targetUserID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	var req restaurant.UpdateAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	access, err := h.restService.UpdateAccess(c.Request.Context(), identityID, restaurantID, targetUserID, &req)
	if err != nil {
		response.FromError(c, "failed to update access", err)
		return
	}

	response.Success(c, http.StatusOK, "access updated", access)
}

// RevokeAccess removes a member's access record.
func (h *RestaurantHandler) RevokeAccess(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}
	targetUserID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	if err := h.restService.RevokeAccess(c.Request.Context(), identityID, restaurantID, targetUserID); err != nil {
		response.FromError(c, "failed to revoke access", err)
		return
	}

	response.Success(c, http.StatusOK, "access revoked", nil)
}

// RepairAccess rewrites access permission lists that drifted from the
// canonical role mapping. Safe to run repeatedly.
func (h *RestaurantHandler) RepairAccess(c *gin.Context) {
	report, err := h.restService.RepairAccessPermissions(c.Request.Context())
	if err != nil {
		response.FromError(c, "repair failed", err)
		return
	}

	response.Success(c, http.StatusOK, "repair finished", report)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ValidationError(c, "invalid "+name, err)
		return 0, false
	}
	return id, true
}
