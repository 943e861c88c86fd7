package server

import (
	"context"
	"testing"
	"time"

	"rallypoint/internal/clients"
	"rallypoint/internal/config"
	"rallypoint/internal/database"
	"rallypoint/internal/notifications"
	"rallypoint/internal/repository"
	"rallypoint/internal/service"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type roomClientStub struct {
	createRoomFn func(ctx context.Context, bearer, gameType string) (string, error)
	addPlayerFn  func(ctx context.Context, bearer, roomID string, userID uint) error
}

func (s *roomClientStub) CreateRoom(ctx context.Context, bearer, gameType string) (string, error) {
	if s.createRoomFn == nil {
		return "room-1", nil
	}
	return s.createRoomFn(ctx, bearer, gameType)
}

func (s *roomClientStub) AddPlayer(ctx context.Context, bearer, roomID string, userID uint) error {
	if s.addPlayerFn == nil {
		return nil
	}
	return s.addPlayerFn(ctx, bearer, roomID, userID)
}

type friendshipClientStub struct {
	registerFn func(ctx context.Context, bearer string, accepterID, inviterID uint) error
}

func (s *friendshipClientStub) RegisterFriendship(ctx context.Context, bearer string, accepterID, inviterID uint) error {
	if s.registerFn == nil {
		return nil
	}
	return s.registerFn(ctx, bearer, accepterID, inviterID)
}

// newTestServer wires a Server against an in-memory database and stubbed
// external services. The Prometheus middleware is left out so repeated test
// servers do not fight over collector registration.
func newTestServer(t *testing.T, room clients.RoomClient, friends clients.FriendshipClient) *Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:            "test-secret",
		Port:                 "0",
		Env:                  "test",
		FriendInviteTTLHours: 24,
		GameInviteTTLMinutes: 2,
		RegistrySweepMinutes: 3,
	}

	if room == nil {
		room = &roomClientStub{}
	}
	if friends == nil {
		friends = &friendshipClientStub{}
	}

	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	friendInvRepo := repository.NewFriendInvitationRepository(db)
	gameInvRepo := repository.NewGameInvitationRepository(db)

	registry := notifications.NewConnectionRegistry(time.Minute)

	s := &Server{
		config:        cfg,
		db:            db,
		registry:      registry,
		userRepo:      userRepo,
		chatRepo:      chatRepo,
		blockRepo:     blockRepo,
		friendInvRepo: friendInvRepo,
		gameInvRepo:   gameInvRepo,
	}

	s.chatService = service.NewChatService(chatRepo, blockRepo, registry)
	s.blockService = service.NewBlockService(blockRepo)
	s.friendInviteService = service.NewFriendInviteService(
		friendInvRepo, chatRepo, s.chatService, friends, registry,
		cfg.FriendInviteTTL(), cfg.FriendInviteAutoExpire,
	)
	s.gameInviteService = service.NewGameInviteService(
		gameInvRepo, blockRepo, userRepo, s.chatService, room, registry, cfg.GameInviteTTL(),
	)
	s.accountService = service.NewAccountService(
		userRepo, chatRepo, blockRepo, friendInvRepo, gameInvRepo, registry,
	)

	return s
}

// newAuthedApp builds a Fiber app that treats every request as coming from
// the given user and mounts the server's routes without the auth middleware.
func newAuthedApp(s *Server, userID uint) *fiber.App {
	app := fiber.New()

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})

	app.Get("/conversations", s.GetConversations)
	app.Get("/conversations/:id/messages", s.GetMessages)
	app.Post("/conversations/:id/read", s.MarkConversationRead)
	app.Post("/messages", s.SendMessage)
	app.Post("/blocks/:userId", s.BlockUser)
	app.Delete("/blocks/:userId", s.UnblockUser)
	app.Post("/invitations/friends", s.CreateFriendInvitation)
	app.Get("/invitations/friends", s.GetPendingFriendInvitations)
	app.Post("/invitations/friends/:invitationId/accept", s.AcceptFriendInvitation)
	app.Post("/invitations/friends/:invitationId/reject", s.RejectFriendInvitation)
	app.Post("/invitations/games", s.CreateGameInvitation)
	app.Get("/invitations/games", s.GetPendingGameInvitations)
	app.Get("/invitations/games/sent", s.GetSentGameInvitations)
	app.Post("/invitations/games/:invitationId/accept", s.AcceptGameInvitation)
	app.Post("/invitations/games/:invitationId/reject", s.RejectGameInvitation)
	app.Get("/invitations/games/:invitationId", s.GetGameInvitation)
	app.Get("/presence", s.GetOnlineUsers)
	app.Post("/users/sync", s.SyncUser)
	app.Delete("/users/me", s.DeleteMyAccount)

	return app
}
