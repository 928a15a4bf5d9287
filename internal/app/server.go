package app

import (
	"context"
	"fmt"
	"log"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/config"
	"tablevoice-service/internal/db"
	agentHandler "tablevoice-service/internal/handlers/agent"
	authHandler "tablevoice-service/internal/handlers/auth"
	orgHandler "tablevoice-service/internal/handlers/organization"
	reservationHandler "tablevoice-service/internal/handlers/reservation"
	restaurantHandler "tablevoice-service/internal/handlers/restaurant"
	telephonyHandler "tablevoice-service/internal/handlers/telephony"
	webhookHandler "tablevoice-service/internal/handlers/webhook"
	wsHandler "tablevoice-service/internal/handlers/ws"
	"tablevoice-service/internal/integrations/elevenlabs"
	"tablevoice-service/internal/integrations/twilio"
	"tablevoice-service/internal/middleware"
	"tablevoice-service/internal/pkg/jwt"
	"tablevoice-service/internal/pkg/session"
	"tablevoice-service/internal/repository/postgres"
	agentUsecase "tablevoice-service/internal/service/agent"
	authUsecase "tablevoice-service/internal/service/auth"
	"tablevoice-service/internal/service/email"
	orgUsecase "tablevoice-service/internal/service/organization"
	reservationUsecase "tablevoice-service/internal/service/reservation"
	restaurantUsecase "tablevoice-service/internal/service/restaurant"
	telephonyUsecase "tablevoice-service/internal/service/telephony"
	"tablevoice-service/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient)

	// ----- Email -----
	emailSender := email.NewSMTPSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFromName,
		s.cfg.SMTPSecure,
	)

	// ----- Repositories -----
	userRepo := postgres.NewUserRepository(pool)
	orgRepo := postgres.NewOrganizationRepository(pool)
	membershipRepo := postgres.NewMembershipRepository(pool)
	invitationRepo := postgres.NewInvitationRepository(pool)
	restaurantRepo := postgres.NewRestaurantRepository(pool)
	accessRepo := postgres.NewAccessRepository(pool)
	agentRepo := postgres.NewAgentRepository(pool)
	agentToolRepo := postgres.NewAgentToolRepository(pool)
	reservationRepo := postgres.NewReservationRepository(pool)

	// ----- Authorization -----
	authorizer := authz.NewAuthorizer(restaurantRepo, membershipRepo, accessRepo, logger)

	// ----- WebSocket hub -----
	hub := ws.NewHub(logger)
	go hub.Run(context.Background())

	// ----- Provider clients -----
	voiceProvider := elevenlabs.NewClient(
		s.cfg.ElevenLabsBaseURL,
		s.cfg.ElevenLabsAPIKey,
		s.cfg.ElevenLabsWebhookSecret,
		logger,
	)
	telephonyProvider := twilio.NewClient(s.cfg.TwilioAccountSID, s.cfg.TwilioAuthToken, logger)

	// ----- Services -----
	authService := authUsecase.NewAuthService(userRepo, jwtManager, sessionManager, rateLimiter, logger)
	orgService := orgUsecase.NewOrganizationService(
		orgRepo,
		membershipRepo,
		invitationRepo,
		userRepo,
		jwtManager,
		emailSender,
		s.cfg.AppBaseURL,
		logger,
	)
	agentService := agentUsecase.NewAgentService(
		agentRepo,
		agentToolRepo,
		restaurantRepo,
		voiceProvider,
		telephonyProvider,
		authorizer,
		hub,
		logger,
	)
	restaurantService := restaurantUsecase.NewRestaurantService(
		restaurantRepo,
		accessRepo,
		membershipRepo,
		reservationRepo,
		agentService,
		authorizer,
		logger,
	)
	reservationService := reservationUsecase.NewReservationService(
		reservationRepo,
		restaurantRepo,
		authorizer,
		emailSender,
		hub,
		logger,
	)
	telephonyService := telephonyUsecase.NewTelephonyService(
		agentRepo,
		restaurantRepo,
		telephonyProvider,
		authorizer,
		s.cfg.AppBaseURL,
		s.cfg.ElevenLabsBaseURL,
		logger,
	)

	// Agent webhooks record reservations through the reservation service.
	// Wired after construction because the two services reference each other.
	agentService.SetBookingRecorder(reservationService)

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authService, logger)
	orgHandlerInst := orgHandler.NewOrganizationHandler(orgService, logger)
	restaurantHandlerInst := restaurantHandler.NewRestaurantHandler(restaurantService, logger)
	agentHandlerInst := agentHandler.NewAgentHandler(agentService, logger)
	reservationHandlerInst := reservationHandler.NewReservationHandler(reservationService, logger)
	telephonyHandlerInst := telephonyHandler.NewTelephonyHandler(telephonyService, telephonyProvider, s.cfg.AppBaseURL, logger)
	webhookHandlerInst := webhookHandler.NewWebhookHandler(agentService, voiceProvider, logger)
	wsHandlerInst := wsHandler.NewWSHandler(hub, authorizer, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:        authHandlerInst,
		OrgHandler:         orgHandlerInst,
		RestaurantHandler:  restaurantHandlerInst,
		AgentHandler:       agentHandlerInst,
		ReservationHandler: reservationHandlerInst,
		TelephonyHandler:   telephonyHandlerInst,
		WebhookHandler:     webhookHandlerInst,
		WSHandler:          wsHandlerInst,
		AuthMiddleware:     authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server listening on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
