package service

import (
	"context"
	"log/slog"

	"rallypoint/internal/cache"
	"rallypoint/internal/models"
	"rallypoint/internal/notifications"
	"rallypoint/internal/observability"
	"rallypoint/internal/repository"
)

// AccountService handles account lifecycle hooks driven by the external
// identity service.
type AccountService struct {
	userRepo      repository.UserRepository
	chatRepo      repository.ChatRepository
	blockRepo     repository.BlockRepository
	friendInvRepo repository.FriendInvitationRepository
	gameInvRepo   repository.GameInvitationRepository
	pusher        Pusher
}

// NewAccountService returns a new AccountService.
func NewAccountService(
	userRepo repository.UserRepository,
	chatRepo repository.ChatRepository,
	blockRepo repository.BlockRepository,
	friendInvRepo repository.FriendInvitationRepository,
	gameInvRepo repository.GameInvitationRepository,
	pusher Pusher,
) *AccountService {
	return &AccountService{
		userRepo:      userRepo,
		chatRepo:      chatRepo,
		blockRepo:     blockRepo,
		friendInvRepo: friendInvRepo,
		gameInvRepo:   gameInvRepo,
		pusher:        pusher,
	}
}

// SyncUser mirrors a user row from the identity service.
func (s *AccountService) SyncUser(ctx context.Context, user *models.User) error {
	if user.ID == 0 || user.Username == "" {
		return models.NewValidationError("User id and username are required")
	}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// PurgeUser removes everything the deleted user owned or participated in:
// conversations with their messages, blocks and invitations in both roles,
// and the mirrored user row. Former conversation peers are told so their UIs
// can drop the user immediately.
func (s *AccountService) PurgeUser(ctx context.Context, userID uint) error {
	peers, err := s.chatRepo.DeleteUserConversations(ctx, userID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.blockRepo.DeleteAllForUser(ctx, userID); err != nil {
		return models.NewInternalError(err)
	}
	if err := s.friendInvRepo.DeleteAllForUser(ctx, userID); err != nil {
		return models.NewInternalError(err)
	}
	if err := s.gameInvRepo.DeleteAllForUser(ctx, userID); err != nil {
		return models.NewInternalError(err)
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return models.NewInternalError(err)
	}

	keys := []string{cache.ConversationsKey(userID)}
	for _, peer := range peers {
		keys = append(keys, cache.ConversationsKey(peer))
	}
	if err := cache.Delete(ctx, keys...); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "Failed to invalidate conversation caches after purge",
			slog.String("error", err.Error()),
		)
	}

	// Only former conversation peers care; everyone else never sees the user.
	deleted := notifications.DataEvent{
		Kind:    notifications.KindUserDeleted,
		Payload: map[string]interface{}{"user_id": userID},
	}
	for _, peer := range peers {
		s.pusher.Send(peer, deleted)
	}

	observability.GlobalLogger.InfoContext(ctx, "Purged user data",
		slog.Uint64("user_id", uint64(userID)),
		slog.Int("conversations_removed", len(peers)),
	)
	return nil
}
