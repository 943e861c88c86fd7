package server

import (
	"context"
	"fmt"
	"time"

	"rallypoint/internal/cache"
	"rallypoint/internal/clients"
	"rallypoint/internal/config"
	"rallypoint/internal/database"
	"rallypoint/internal/middleware"
	"rallypoint/internal/notifications"
	"rallypoint/internal/repository"
	"rallypoint/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus

	registry *notifications.ConnectionRegistry

	userRepo      repository.UserRepository
	chatRepo      repository.ChatRepository
	blockRepo     repository.BlockRepository
	friendInvRepo repository.FriendInvitationRepository
	gameInvRepo   repository.GameInvitationRepository

	chatService         *service.ChatService
	blockService        *service.BlockService
	friendInviteService *service.FriendInviteService
	gameInviteService   *service.GameInviteService
	accountService      *service.AccountService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	roomClient := clients.NewRoomClient(cfg.RoomServiceURL)
	friendshipClient := clients.NewFriendshipClient(cfg.FriendServiceURL)

	return NewServerWithDeps(cfg, db, redisClient, roomClient, friendshipClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, roomClient clients.RoomClient, friendshipClient clients.FriendshipClient) (*Server, error) {
	middleware.InitMiddleware(cfg)

	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	friendInvRepo := repository.NewFriendInvitationRepository(db)
	gameInvRepo := repository.NewGameInvitationRepository(db)

	registry := notifications.NewConnectionRegistry(cfg.RegistrySweepInterval())

	prom := fiberprometheus.New("rallypoint-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		registry:       registry,
		userRepo:       userRepo,
		chatRepo:       chatRepo,
		blockRepo:      blockRepo,
		friendInvRepo:  friendInvRepo,
		gameInvRepo:    gameInvRepo,
	}

	server.chatService = service.NewChatService(chatRepo, blockRepo, registry)
	server.blockService = service.NewBlockService(blockRepo)
	server.friendInviteService = service.NewFriendInviteService(
		friendInvRepo, chatRepo, server.chatService, friendshipClient, registry,
		cfg.FriendInviteTTL(), cfg.FriendInviteAutoExpire,
	)
	server.gameInviteService = service.NewGameInviteService(
		gameInvRepo, blockRepo, userRepo, server.chatService, roomClient, registry, cfg.GameInviteTTL(),
	)
	server.accountService = service.NewAccountService(
		userRepo, chatRepo, blockRepo, friendInvRepo, gameInvRepo, registry,
	)

	return server, nil
}

// Registry exposes the connection registry for the bootstrap layer.
func (s *Server) Registry() *notifications.ConnectionRegistry {
	return s.registry
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing, carried into the context as the correlation id
	app.Use(requestid.New())
	app.Use(middleware.CorrelationContext())

	// Request logging
	app.Use(middleware.RequestLogger())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Security headers
	app.Use(helmet.New())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	// Conversation routes
	conversations := protected.Group("/conversations")
	conversations.Get("/", s.GetConversations)
	conversations.Get("/:id/messages", s.GetMessages)
	conversations.Post("/:id/read", s.MarkConversationRead)

	// Message send over HTTP (the WebSocket frame is the primary path)
	protected.Post("/messages", middleware.RateLimit(
		s.redis, 15, time.Minute, "send_chat"), s.SendMessage)

	// Block routes
	blocks := protected.Group("/blocks")
	blocks.Post("/:userId", s.BlockUser)
	blocks.Delete("/:userId", s.UnblockUser)

	// Friend invitation routes
	friendInvites := protected.Group("/invitations/friends")
	friendInvites.Post("/", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "friend_invite"), s.CreateFriendInvitation)
	friendInvites.Get("/", s.GetPendingFriendInvitations)
	friendInvites.Post("/:invitationId/accept", s.AcceptFriendInvitation)
	friendInvites.Post("/:invitationId/reject", s.RejectFriendInvitation)

	// Game invitation routes
	gameInvites := protected.Group("/invitations/games")
	gameInvites.Post("/", middleware.RateLimit(
		s.redis, 10, time.Minute, "game_invite"), s.CreateGameInvitation)
	gameInvites.Get("/", s.GetPendingGameInvitations)
	gameInvites.Get("/sent", s.GetSentGameInvitations)
	gameInvites.Post("/:invitationId/accept", s.AcceptGameInvitation)
	gameInvites.Post("/:invitationId/reject", s.RejectGameInvitation)
	gameInvites.Get("/:invitationId", s.GetGameInvitation)

	// Presence
	protected.Get("/presence", s.GetOnlineUsers)

	// Account lifecycle hooks driven by the identity service
	users := protected.Group("/users")
	users.Post("/sync", s.SyncUser)
	users.Delete("/me", s.DeleteMyAccount)

	// Websocket endpoint
	ws := api.Group("/ws", middleware.WebSocketAuthRequired)
	ws.Get("/", s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Shutdown stops background loops and closes open connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.registry.Shutdown(ctx)
}
