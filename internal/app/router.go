package app

import (
	"net/http"

	agentHandler "tablevoice-service/internal/handlers/agent"
	authHandler "tablevoice-service/internal/handlers/auth"
	orgHandler "tablevoice-service/internal/handlers/organization"
	reservationHandler "tablevoice-service/internal/handlers/reservation"
	restaurantHandler "tablevoice-service/internal/handlers/restaurant"
	telephonyHandler "tablevoice-service/internal/handlers/telephony"
	webhookHandler "tablevoice-service/internal/handlers/webhook"
	wsHandler "tablevoice-service/internal/handlers/ws"
	"tablevoice-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	AuthHandler        *authHandler.AuthHandler
	OrgHandler         *orgHandler.OrganizationHandler
	RestaurantHandler  *restaurantHandler.RestaurantHandler
	AgentHandler       *agentHandler.AgentHandler
	ReservationHandler *reservationHandler.ReservationHandler
	TelephonyHandler   *telephonyHandler.TelephonyHandler
	WebhookHandler     *webhookHandler.WebhookHandler
	WSHandler          *wsHandler.WSHandler
	AuthMiddleware     *middleware.AuthMiddleware
}

// SetupRouter mounts all routes on the engine.
func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ----- Auth -----
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/register", h.AuthHandler.Register)
		authPublic.POST("/login", h.AuthHandler.Login)
	}

	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/logout-all", h.AuthHandler.LogoutAll)
		authProtected.GET("/me", h.AuthHandler.Me)
		authProtected.PATCH("/me", h.AuthHandler.UpdateProfile)
	}

	// ----- Organizations -----
	orgs := api.Group("/organizations")
	orgs.Use(h.AuthMiddleware.Auth())
	{
		orgs.POST("", h.OrgHandler.Create)
		orgs.GET("", h.OrgHandler.List)
		orgs.GET("/:orgID", h.OrgHandler.Get)
		orgs.PATCH("/:orgID", h.OrgHandler.Rename)
		orgs.GET("/:orgID/members", h.OrgHandler.ListMembers)
		orgs.PATCH("/:orgID/members/:userID", h.OrgHandler.UpdateMemberRole)
		orgs.DELETE("/:orgID/members/:userID", h.OrgHandler.RemoveMember)
		orgs.POST("/:orgID/invitations", h.OrgHandler.InviteMember)
		orgs.DELETE("/:orgID/invitations/:invitationID", h.OrgHandler.RevokeInvitation)
	}

	// ----- Invitations -----
	// Details are public so invitees can see what they were invited to before
	// registering; accepting requires a logged-in account.
	api.GET("/invitations", h.OrgHandler.InvitationDetails)

	invitations := api.Group("/invitations")
	invitations.Use(h.AuthMiddleware.Auth())
	{
		invitations.POST("/accept", h.OrgHandler.AcceptInvitation)
	}

	// ----- Restaurants -----
	restaurants := api.Group("/restaurants")
	restaurants.Use(h.AuthMiddleware.Auth())
	{
		restaurants.POST("", h.RestaurantHandler.Create)
		restaurants.GET("", h.RestaurantHandler.List)
		restaurants.GET("/:restaurantID", h.RestaurantHandler.Get)
		restaurants.PATCH("/:restaurantID", h.RestaurantHandler.Update)
		restaurants.DELETE("/:restaurantID", h.RestaurantHandler.Delete)

		restaurants.POST("/:restaurantID/access", h.RestaurantHandler.GrantAccess)
		restaurants.GET("/:restaurantID/access", h.RestaurantHandler.ListAccess)
		restaurants.PATCH("/:restaurantID/access/:userID", h.RestaurantHandler.UpdateAccess)
		restaurants.DELETE("/:restaurantID/access/:userID", h.RestaurantHandler.RevokeAccess)
		restaurants.POST("/:restaurantID/access/repair", h.RestaurantHandler.RepairAccess)

		restaurants.GET("/:restaurantID/agents", h.AgentHandler.ListByRestaurant)

		restaurants.POST("/:restaurantID/reservations", h.ReservationHandler.Create)
		restaurants.GET("/:restaurantID/reservations", h.ReservationHandler.List)
		restaurants.GET("/:restaurantID/reservations/availability", h.ReservationHandler.CheckAvailability)
		restaurants.GET("/:restaurantID/reservations/code/:code", h.ReservationHandler.GetByCode)
	}

	// ----- Agents -----
	agents := api.Group("/agents")
	agents.Use(h.AuthMiddleware.Auth())
	{
		agents.POST("", h.AgentHandler.Create)
		agents.GET("/:agentID", h.AgentHandler.Get)
		agents.PATCH("/:agentID", h.AgentHandler.Update)
		agents.DELETE("/:agentID", h.AgentHandler.Delete)

		agents.POST("/:agentID/documents", h.AgentHandler.AddDocument)
		agents.DELETE("/:agentID/documents/:documentID", h.AgentHandler.RemoveDocument)
		agents.POST("/:agentID/knowledge-base/sync", h.AgentHandler.SyncKnowledgeBase)
		agents.POST("/:agentID/test-call", h.AgentHandler.TestCall)

		agents.PUT("/:agentID/tools", h.AgentHandler.UpsertTool)
		agents.GET("/:agentID/tools", h.AgentHandler.ListTools)
		agents.DELETE("/:agentID/tools/:toolName", h.AgentHandler.DeleteTool)
	}

	// ----- Reservations -----
	reservations := api.Group("/reservations")
	reservations.Use(h.AuthMiddleware.Auth())
	{
		reservations.GET("/:reservationID", h.ReservationHandler.Get)
		reservations.PATCH("/:reservationID", h.ReservationHandler.Update)
		reservations.PATCH("/:reservationID/status", h.ReservationHandler.UpdateStatus)
		reservations.DELETE("/:reservationID", h.ReservationHandler.Delete)
	}

	// ----- Telephony -----
	telephony := api.Group("/telephony")
	telephony.Use(h.AuthMiddleware.Auth())
	{
		telephony.GET("/numbers/search", h.TelephonyHandler.SearchNumbers)
		telephony.POST("/numbers", h.TelephonyHandler.ProvisionNumber)
	}

	// ----- Provider webhooks (signature-authenticated, no session) -----
	api.POST("/twilio/webhook/:agentID", h.TelephonyHandler.VoiceWebhook)
	api.POST("/webhooks/elevenlabs", h.WebhookHandler.VoiceProviderEvent)

	// ----- WebSocket -----
	ws := r.Group("/ws")
	ws.Use(h.AuthMiddleware.Auth())
	{
		ws.GET("/restaurants/:restaurantID", h.WSHandler.Subscribe)
	}

	logger.Info("routes registered")
}
