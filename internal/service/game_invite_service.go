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

// GameInviteService provides game invitation business logic. Game
// invitations are short-lived: a lazy sweep flips stale pending rows to
// expired before every list read and transition.
type GameInviteService struct {
	inviteRepo repository.GameInvitationRepository
	blockRepo  repository.BlockRepository
	userRepo   repository.UserRepository
	sender     MessageSender
	rooms      clients.RoomClient
	pusher     Pusher

	ttl time.Duration
	now func() time.Time
}

// NewGameInviteService returns a new GameInviteService.
func NewGameInviteService(
	inviteRepo repository.GameInvitationRepository,
	blockRepo repository.BlockRepository,
	userRepo repository.UserRepository,
	sender MessageSender,
	rooms clients.RoomClient,
	pusher Pusher,
	ttl time.Duration,
) *GameInviteService {
	return &GameInviteService{
		inviteRepo: inviteRepo,
		blockRepo:  blockRepo,
		userRepo:   userRepo,
		sender:     sender,
		rooms:      rooms,
		pusher:     pusher,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Create challenges another user to a match. Game types that play in a
// dedicated room get theirs provisioned up front, before anything is
// persisted, so a challenge that exists always has somewhere to be played;
// a provisioning failure aborts the whole create. The carrier message and
// the push to the challenged user come after the row exists and are
// best-effort.
func (s *GameInviteService) Create(ctx context.Context, fromID, toID uint, gameType models.GameType, bearer string) (*models.GameInvitation, error) {
	if fromID == toID {
		return nil, models.NewValidationError("Cannot challenge yourself")
	}
	if gameType != models.GameTypePong {
		return nil, models.NewValidationError("Unknown game type")
	}

	blocked, err := s.blockRepo.AreBlocked(ctx, fromID, toID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if blocked {
		return nil, models.NewBlockedError("Cannot challenge this user")
	}

	s.sweep(ctx)

	existing, err := s.inviteRepo.GetPendingBetween(ctx, fromID, toID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewInternalError(err)
	}
	if existing != nil {
		return nil, models.NewConflictError("You already have a pending challenge to this user")
	}

	var roomID *string
	if gameType.NeedsRoom() {
		created, err := s.rooms.CreateRoom(ctx, bearer, string(gameType))
		if err != nil {
			return nil, models.NewUpstreamError("Could not provision a match room", err)
		}
		roomID = &created
	}

	inv := &models.GameInvitation{
		FromID:    fromID,
		ToID:      toID,
		GameType:  gameType,
		Status:    models.InvitationStatusPending,
		RoomID:    roomID,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.inviteRepo.Create(ctx, inv); err != nil {
		// The unique index catches creates that interleaved past the
		// GetPendingBetween read.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, models.NewConflictError("You already have a pending challenge to this user")
		}
		return nil, models.NewInternalError(err)
	}

	if roomID != nil {
		if _, err := s.sender.SendMessage(ctx, fromID, toID, "challenged you to a game of "+string(gameType), models.MessageKindGameInvite); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "Failed to append challenge carrier message",
				slog.Uint64("invitation_id", uint64(inv.ID)),
				slog.String("error", err.Error()),
			)
		}
	}

	observability.RecordInvitationTransition("game", "created")
	payload := map[string]interface{}{
		"invitation_id": inv.ID,
		"from_id":       fromID,
		"game_type":     gameType,
		"expires_at":    inv.ExpiresAt,
	}
	// Username is display sugar for the challenge toast; skip it on a miss.
	if from, err := s.userRepo.GetByID(ctx, fromID); err == nil {
		payload["from_username"] = from.Username
	}
	if roomID != nil {
		payload["room_id"] = *roomID
	}
	s.pusher.Send(toID, notifications.DataEvent{
		Kind:    notifications.KindGameInvitation,
		Payload: payload,
	})
	return inv, nil
}

// Accept transitions a pending challenge to accepted. Joining the match room
// is best-effort; both players are told about the accepted match either way.
func (s *GameInviteService) Accept(ctx context.Context, userID, invitationID uint, bearer string) (*models.GameInvitation, error) {
	s.sweep(ctx)

	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.ToID != userID {
		return nil, models.NewUnauthorizedError("Only the challenged user can accept")
	}
	if inv.Status != models.InvitationStatusPending {
		return nil, models.NewConflictError("Invitation is no longer pending")
	}

	ok, err := s.inviteRepo.UpdateStatusIfPending(ctx, inv.ID, models.InvitationStatusAccepted, nil)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !ok {
		return nil, models.NewConflictError("Invitation is no longer pending")
	}
	inv.Status = models.InvitationStatusAccepted
	observability.RecordInvitationTransition("game", "accepted")

	if inv.RoomID != nil {
		if err := s.rooms.AddPlayer(ctx, bearer, *inv.RoomID, userID); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "Failed to add accepter to match room",
				slog.Uint64("invitation_id", uint64(inv.ID)),
				slog.String("room_id", *inv.RoomID),
				slog.String("error", err.Error()),
			)
		}
	}

	payload := map[string]interface{}{
		"invitation_id": inv.ID,
		"from_id":       inv.FromID,
		"to_id":         inv.ToID,
		"game_type":     inv.GameType,
	}
	if inv.RoomID != nil {
		payload["room_id"] = *inv.RoomID
	}
	accepted := notifications.DataEvent{Kind: notifications.KindGameInvitationAccepted, Payload: payload}
	s.pusher.Send(inv.FromID, accepted)
	s.pusher.Send(inv.ToID, accepted)

	return inv, nil
}

// Reject transitions a pending challenge to rejected. Only the challenger is
// told; the decliner already knows.
func (s *GameInviteService) Reject(ctx context.Context, userID, invitationID uint) (*models.GameInvitation, error) {
	s.sweep(ctx)

	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.ToID != userID {
		return nil, models.NewUnauthorizedError("Only the challenged user can reject")
	}

	ok, err := s.inviteRepo.UpdateStatusIfPending(ctx, inv.ID, models.InvitationStatusRejected, nil)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !ok {
		return nil, models.NewConflictError("Invitation is no longer pending")
	}
	inv.Status = models.InvitationStatusRejected
	observability.RecordInvitationTransition("game", "rejected")

	s.pusher.Send(inv.FromID, notifications.DataEvent{
		Kind: notifications.KindGameInvitationRejected,
		Payload: map[string]interface{}{
			"invitation_id": inv.ID,
			"to_id":         inv.ToID,
			"game_type":     inv.GameType,
		},
	})
	return inv, nil
}

// ListPending returns the challenges awaiting the user's answer.
func (s *GameInviteService) ListPending(ctx context.Context, userID uint) ([]*models.GameInvitation, error) {
	s.sweep(ctx)
	invs, err := s.inviteRepo.ListPendingForUser(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return invs, nil
}

// ListSent returns the user's own outstanding challenges.
func (s *GameInviteService) ListSent(ctx context.Context, userID uint) ([]*models.GameInvitation, error) {
	s.sweep(ctx)
	invs, err := s.inviteRepo.ListSentByUser(ctx, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return invs, nil
}

// Get returns one invitation the user is a party to.
func (s *GameInviteService) Get(ctx context.Context, userID, invitationID uint) (*models.GameInvitation, error) {
	s.sweep(ctx)
	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.FromID != userID && inv.ToID != userID {
		return nil, models.NewUnauthorizedError("Not a party to this invitation")
	}
	return inv, nil
}

func (s *GameInviteService) sweep(ctx context.Context) {
	n, err := s.inviteRepo.ExpireOld(ctx, s.now())
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "Game invitation sweep failed",
			slog.String("error", err.Error()),
		)
		return
	}
	if n > 0 {
		observability.RecordInvitationTransition("game", "expired")
	}
}

func (s *GameInviteService) load(ctx context.Context, id uint) (*models.GameInvitation, error) {
	inv, err := s.inviteRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Invitation not found")
		}
		return nil, models.NewInternalError(err)
	}
	return inv, nil
}
