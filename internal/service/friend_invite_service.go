package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rallypoint/internal/clients"
	"rallypoint/internal/models"
	"rallypoint/internal/notifications"
	"rallypoint/internal/observability"
	"rallypoint/internal/repository"

	"gorm.io/gorm"
)

// MessageSender creates the carrier message an invitation rides on.
// Implemented by ChatService.
type MessageSender interface {
	SendMessage(ctx context.Context, senderID, recipientID uint, content string, kind models.MessageKind) (*models.Message, error)
}

// FriendInviteService provides friend invitation business logic.
type FriendInviteService struct {
	inviteRepo repository.FriendInvitationRepository
	chatRepo   repository.ChatRepository
	sender     MessageSender
	friends    clients.FriendshipClient
	pusher     Pusher

	ttl        time.Duration
	autoExpire bool
	now        func() time.Time
}

// NewFriendInviteService returns a new FriendInviteService.
func NewFriendInviteService(
	inviteRepo repository.FriendInvitationRepository,
	chatRepo repository.ChatRepository,
	sender MessageSender,
	friends clients.FriendshipClient,
	pusher Pusher,
	ttl time.Duration,
	autoExpire bool,
) *FriendInviteService {
	return &FriendInviteService{
		inviteRepo: inviteRepo,
		chatRepo:   chatRepo,
		sender:     sender,
		friends:    friends,
		pusher:     pusher,
		ttl:        ttl,
		autoExpire: autoExpire,
		now:        time.Now,
	}
}

// AcceptFriendInvitationResult reports an accepted invitation. The external
// friendship registration can fail without failing the accept;
// FriendshipPersisted tells the caller which case they got.
type AcceptFriendInvitationResult struct {
	Invitation          *models.FriendInvitation
	FriendshipPersisted bool
}

// Create sends a friend invitation riding on a conversation message. The
// carrier message goes through the normal send path, so block checks and the
// recipient push come for free.
func (s *FriendInviteService) Create(ctx context.Context, inviterID, inviteeID uint, content string) (*models.FriendInvitation, error) {
	if inviterID == inviteeID {
		return nil, models.NewValidationError("Cannot invite yourself")
	}

	existing, err := s.inviteRepo.GetActiveBetween(ctx, inviterID, inviteeID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewInternalError(err)
	}
	if existing != nil {
		if existing.Status == models.InvitationStatusAccepted {
			return nil, models.NewConflictError("You are already friends")
		}
		return nil, models.NewConflictError("An invitation between these users is already pending")
	}

	if content == "" {
		content = "wants to be your friend"
	}
	msg, err := s.sender.SendMessage(ctx, inviterID, inviteeID, content, models.MessageKindFriendInvite)
	if err != nil {
		return nil, err
	}

	inv := &models.FriendInvitation{
		InviterID: inviterID,
		InviteeID: inviteeID,
		Status:    models.InvitationStatusPending,
		MessageID: msg.ID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.inviteRepo.Create(ctx, inv); err != nil {
		// The unique index catches creates that interleaved past the
		// GetActiveBetween read.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewConflictError("An invitation between these users is already pending")
		}
		return nil, models.NewInternalError(err)
	}

	observability.RecordInvitationTransition("friend", "created")
	s.pusher.Send(inviteeID, notifications.DataEvent{
		Kind: notifications.KindFriendInvitationMessage,
		Payload: map[string]interface{}{
			"invitation_id": inv.ID,
			"inviter_id":    inviterID,
			"message_id":    msg.ID,
			"status":        inv.Status,
		},
	})
	return inv, nil
}

// Accept transitions a pending invitation to accepted, rewrites the carrier
// message and registers the friendship with the external social graph. A
// registration failure degrades the result instead of failing it: the accept
// already happened.
func (s *FriendInviteService) Accept(ctx context.Context, userID, invitationID uint, bearer string) (*AcceptFriendInvitationResult, error) {
	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.InviteeID != userID {
		return nil, models.NewUnauthorizedError("Only the invitee can accept an invitation")
	}

	if s.autoExpire && s.now().After(inv.ExpiresAt) {
		if _, err := s.inviteRepo.UpdateStatusIfPending(ctx, inv.ID, models.InvitationStatusExpired); err == nil {
			observability.RecordInvitationTransition("friend", "expired")
		}
		return nil, models.NewConflictError("Invitation has expired")
	}

	ok, err := s.inviteRepo.UpdateStatusIfPending(ctx, inv.ID, models.InvitationStatusAccepted)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !ok {
		return nil, models.NewConflictError("Invitation is no longer pending")
	}
	inv.Status = models.InvitationStatusAccepted
	observability.RecordInvitationTransition("friend", "accepted")

	s.rewriteCarrier(ctx, inv.MessageID, models.MessageKindFriendInviteAccepted)

	persisted := true
	if err := s.friends.RegisterFriendship(ctx, bearer, userID, inv.InviterID); err != nil {
		persisted = false
		observability.GlobalLogger.ErrorContext(ctx, "Friendship registration failed after accept",
			slog.Uint64("invitation_id", uint64(inv.ID)),
			slog.String("error", err.Error()),
		)
	}

	s.pusher.Send(inv.InviterID, notifications.DataEvent{
		Kind: notifications.KindFriendInvitationMessage,
		Payload: map[string]interface{}{
			"invitation_id": inv.ID,
			"invitee_id":    inv.InviteeID,
			"message_id":    inv.MessageID,
			"status":        inv.Status,
		},
	})

	return &AcceptFriendInvitationResult{Invitation: inv, FriendshipPersisted: persisted}, nil
}

// Reject transitions a pending invitation to rejected and rewrites the
// carrier message. Only the challenged party hears about their own choice,
// so the push goes to the inviter alone.
func (s *FriendInviteService) Reject(ctx context.Context, userID, invitationID uint) (*models.FriendInvitation, error) {
	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.InviteeID != userID {
		return nil, models.NewUnauthorizedError("Only the invitee can reject an invitation")
	}

	ok, err := s.inviteRepo.UpdateStatusIfPending(ctx, inv.ID, models.InvitationStatusRejected)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !ok {
		return nil, models.NewConflictError("Invitation is no longer pending")
	}
	inv.Status = models.InvitationStatusRejected
	observability.RecordInvitationTransition("friend", "rejected")

	s.rewriteCarrier(ctx, inv.MessageID, models.MessageKindFriendInviteRejected)

	s.pusher.Send(inv.InviterID, notifications.DataEvent{
		Kind: notifications.KindFriendInvitationMessage,
		Payload: map[string]interface{}{
			"invitation_id": inv.ID,
			"invitee_id":    inv.InviteeID,
			"message_id":    inv.MessageID,
			"status":        inv.Status,
		},
	})
	return inv, nil
}

// ListPending returns the invitations awaiting the user's answer. With
// auto-expiry enabled, stale rows are swept first; otherwise expiry stays
// advisory and pending rows remain actionable past their expires_at.
func (s *FriendInviteService) ListPending(ctx context.Context, userID uint) ([]*models.FriendInvitation, error) {
	if s.autoExpire {
		if n, err := s.inviteRepo.ExpireOld(ctx, s.now()); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "Friend invitation sweep failed",
				slog.String("error", err.Error()),
			)
		} else if n > 0 {
			observability.RecordInvitationTransition("friend", "expired")
		}
	}
	invs, err := s.inviteRepo.ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return invs, nil
}

func (s *FriendInviteService) load(ctx context.Context, id uint) (*models.FriendInvitation, error) {
	inv, err := s.inviteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Invitation not found")
		}
		return nil, models.NewInternalError(err)
	}
	return inv, nil
}

func (s *FriendInviteService) rewriteCarrier(ctx context.Context, messageID uint, kind models.MessageKind) {
	if err := s.chatRepo.UpdateMessageKind(ctx, messageID, kind); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "Failed to rewrite invitation carrier message",
			slog.Uint64("message_id", uint64(messageID)),
			slog.String("error", err.Error()),
		)
	}
}
