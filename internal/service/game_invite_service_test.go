package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rallypoint/internal/models"
	"rallypoint/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newGameInviteService(
	inviteRepo *gameInvRepoStub,
	blockRepo *blockRepoStub,
	sender *senderStub,
	rooms *roomClientStub,
	pusher *pusherStub,
) *GameInviteService {
	return NewGameInviteService(inviteRepo, blockRepo, &userRepoStub{}, sender, rooms, pusher, 2*time.Minute)
}

func pendingChallenge() *models.GameInvitation {
	roomID := "room-9"
	return &models.GameInvitation{
		ID:        5,
		FromID:    1,
		ToID:      2,
		GameType:  models.GameTypePong,
		Status:    models.InvitationStatusPending,
		RoomID:    &roomID,
		ExpiresAt: time.Now().Add(2 * time.Minute),
	}
}

func emptyGameInvRepo() *gameInvRepoStub {
	return &gameInvRepoStub{
		getPendingBetweenFn: func(context.Context, uint, uint) (*models.GameInvitation, error) {
			return nil, gorm.ErrRecordNotFound
		},
		createFn: func(_ context.Context, inv *models.GameInvitation) error {
			inv.ID = 5
			return nil
		},
	}
}

func TestGameInviteService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions room, creates challenge with carrier message and push", func(t *testing.T) {
		pusher := &pusherStub{online: map[uint]bool{2: true}}
		var carrierKind models.MessageKind
		sender := &senderStub{
			sendMessageFn: func(_ context.Context, senderID, recipientID uint, content string, kind models.MessageKind) (*models.Message, error) {
				carrierKind = kind
				return &models.Message{ID: 7, Kind: kind}, nil
			},
		}
		rooms := &roomClientStub{
			createRoomFn: func(_ context.Context, bearer, gameType string) (string, error) {
				assert.Equal(t, "token-abc", bearer)
				assert.Equal(t, "pong", gameType)
				return "room-9", nil
			},
		}
		svc := newGameInviteService(emptyGameInvRepo(), &blockRepoStub{}, sender, rooms, pusher)

		inv, err := svc.Create(ctx, 1, 2, models.GameTypePong, "token-abc")
		require.NoError(t, err)
		assert.Equal(t, models.MessageKindGameInvite, carrierKind)
		assert.Equal(t, models.InvitationStatusPending, inv.Status)
		require.NotNil(t, inv.RoomID)
		assert.Equal(t, "room-9", *inv.RoomID)
		assert.False(t, inv.ExpiresAt.IsZero())

		events := pusher.sentTo(2)
		require.Len(t, events, 1)
		data, ok := events[0].(notifications.DataEvent)
		require.True(t, ok)
		assert.Equal(t, notifications.KindGameInvitation, data.Kind)
		assert.Equal(t, "room-9", data.Payload["room_id"])
	})

	t.Run("room provisioning failure aborts the challenge", func(t *testing.T) {
		pusher := &pusherStub{}
		created := false
		inviteRepo := emptyGameInvRepo()
		inviteRepo.createFn = func(context.Context, *models.GameInvitation) error {
			created = true
			return nil
		}
		rooms := &roomClientStub{
			createRoomFn: func(context.Context, string, string) (string, error) {
				return "", errors.New("room service down")
			},
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, rooms, pusher)

		_, err := svc.Create(ctx, 1, 2, models.GameTypePong, "token-abc")
		assertAppErrorCode(t, err, "UPSTREAM_ERROR")
		assert.False(t, created, "nothing may be persisted without a room")
		assert.Empty(t, pusher.sent)
	})

	t.Run("carrier failure does not undo the challenge", func(t *testing.T) {
		sender := &senderStub{
			sendMessageFn: func(context.Context, uint, uint, string, models.MessageKind) (*models.Message, error) {
				return nil, models.NewInternalError(errors.New("db hiccup"))
			},
		}
		svc := newGameInviteService(emptyGameInvRepo(), &blockRepoStub{}, sender, &roomClientStub{}, &pusherStub{})

		inv, err := svc.Create(ctx, 1, 2, models.GameTypePong, "token-abc")
		require.NoError(t, err)
		assert.Equal(t, models.InvitationStatusPending, inv.Status)
	})

	t.Run("blocked pair is refused before any provisioning", func(t *testing.T) {
		provisioned := false
		rooms := &roomClientStub{
			createRoomFn: func(context.Context, string, string) (string, error) {
				provisioned = true
				return "room-9", nil
			},
		}
		blockRepo := &blockRepoStub{
			areBlockedFn: func(context.Context, uint, uint) (bool, error) { return true, nil },
		}
		svc := newGameInviteService(emptyGameInvRepo(), blockRepo, &senderStub{}, rooms, &pusherStub{})

		_, err := svc.Create(ctx, 1, 2, models.GameTypePong, "token-abc")
		assertAppErrorCode(t, err, "BLOCKED")
		assert.False(t, provisioned)
	})

	t.Run("duplicate pending challenge is refused", func(t *testing.T) {
		inviteRepo := &gameInvRepoStub{
			getPendingBetweenFn: func(context.Context, uint, uint) (*models.GameInvitation, error) {
				return pendingChallenge(), nil
			},
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		_, err := svc.Create(ctx, 1, 2, models.GameTypePong, "token-abc")
		assertAppErrorCode(t, err, "CONFLICT")
	})

	t.Run("a create racing past the read loses on the unique index", func(t *testing.T) {
		inviteRepo := &gameInvRepoStub{
			getPendingBetweenFn: func(context.Context, uint, uint) (*models.GameInvitation, error) {
				return nil, gorm.ErrRecordNotFound
			},
			createFn: func(context.Context, *models.GameInvitation) error {
				return gorm.ErrDuplicatedKey
			},
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		_, err := svc.Create(ctx, 1, 2, models.GameTypePong, "token-abc")
		assertAppErrorCode(t, err, "CONFLICT")
	})

	t.Run("unknown game type is refused", func(t *testing.T) {
		svc := newGameInviteService(&gameInvRepoStub{}, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		_, err := svc.Create(ctx, 1, 2, models.GameType("chess"), "token-abc")
		assertAppErrorCode(t, err, "VALIDATION_ERROR")
	})

	t.Run("self challenge is refused", func(t *testing.T) {
		svc := newGameInviteService(&gameInvRepoStub{}, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		_, err := svc.Create(ctx, 1, 1, models.GameTypePong, "token-abc")
		assertAppErrorCode(t, err, "VALIDATION_ERROR")
	})
}

func TestGameInviteService_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts, joins the room and tells both players", func(t *testing.T) {
		pusher := &pusherStub{online: map[uint]bool{1: true, 2: true}}
		var addedPlayer uint
		rooms := &roomClientStub{
			addPlayerFn: func(_ context.Context, bearer, roomID string, userID uint) error {
				assert.Equal(t, "token-abc", bearer)
				assert.Equal(t, "room-9", roomID)
				addedPlayer = userID
				return nil
			},
		}
		inviteRepo := &gameInvRepoStub{
			getByIDFn: func(context.Context, uint) (*models.GameInvitation, error) { return pendingChallenge(), nil },
			updateStatusIfPendingFn: func(_ context.Context, _ uint, status models.InvitationStatus, roomID *string) (bool, error) {
				assert.Equal(t, models.InvitationStatusAccepted, status)
				assert.Nil(t, roomID)
				return true, nil
			},
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, rooms, pusher)

		inv, err := svc.Accept(ctx, 2, 5, "token-abc")
		require.NoError(t, err)
		assert.Equal(t, models.InvitationStatusAccepted, inv.Status)
		assert.Equal(t, uint(2), addedPlayer)

		require.Len(t, pusher.sentTo(1), 1)
		require.Len(t, pusher.sentTo(2), 1)
		data := pusher.sentTo(1)[0].(notifications.DataEvent)
		assert.Equal(t, notifications.KindGameInvitationAccepted, data.Kind)
		assert.Equal(t, "room-9", data.Payload["room_id"])
	})

	t.Run("add-player failure does not fail the accept", func(t *testing.T) {
		pusher := &pusherStub{online: map[uint]bool{1: true, 2: true}}
		rooms := &roomClientStub{
			addPlayerFn: func(context.Context, string, string, uint) error {
				return errors.New("room is grumpy")
			},
		}
		inviteRepo := &gameInvRepoStub{
			getByIDFn: func(context.Context, uint) (*models.GameInvitation, error) { return pendingChallenge(), nil },
			updateStatusIfPendingFn: func(context.Context, uint, models.InvitationStatus, *string) (bool, error) {
				return true, nil
			},
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, rooms, pusher)

		inv, err := svc.Accept(ctx, 2, 5, "token-abc")
		require.NoError(t, err)
		assert.Equal(t, models.InvitationStatusAccepted, inv.Status)
		assert.Len(t, pusher.sentTo(1), 1)
		assert.Len(t, pusher.sentTo(2), 1)
	})

	t.Run("only the challenged user can accept", func(t *testing.T) {
		inviteRepo := &gameInvRepoStub{
			getByIDFn: func(context.Context, uint) (*models.GameInvitation, error) { return pendingChallenge(), nil },
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		_, err := svc.Accept(ctx, 1, 5, "token-abc")
		assertAppErrorCode(t, err, "UNAUTHORIZED")
	})

	t.Run("expired challenge is refused", func(t *testing.T) {
		expired := pendingChallenge()
		expired.Status = models.InvitationStatusExpired
		inviteRepo := &gameInvRepoStub{
			getByIDFn: func(context.Context, uint) (*models.GameInvitation, error) { return expired, nil },
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		_, err := svc.Accept(ctx, 2, 5, "token-abc")
		assertAppErrorCode(t, err, "CONFLICT")
	})

	t.Run("losing the transition race is a conflict", func(t *testing.T) {
		inviteRepo := &gameInvRepoStub{
			getByIDFn: func(context.Context, uint) (*models.GameInvitation, error) { return pendingChallenge(), nil },
			updateStatusIfPendingFn: func(context.Context, uint, models.InvitationStatus, *string) (bool, error) {
				return false, nil
			},
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		_, err := svc.Accept(ctx, 2, 5, "token-abc")
		assertAppErrorCode(t, err, "CONFLICT")
	})
}

func TestGameInviteService_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("tells only the challenger", func(t *testing.T) {
		pusher := &pusherStub{online: map[uint]bool{1: true, 2: true}}
		inviteRepo := &gameInvRepoStub{
			getByIDFn: func(context.Context, uint) (*models.GameInvitation, error) { return pendingChallenge(), nil },
			updateStatusIfPendingFn: func(_ context.Context, _ uint, status models.InvitationStatus, roomID *string) (bool, error) {
				assert.Equal(t, models.InvitationStatusRejected, status)
				assert.Nil(t, roomID)
				return true, nil
			},
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, pusher)

		inv, err := svc.Reject(ctx, 2, 5)
		require.NoError(t, err)
		assert.Equal(t, models.InvitationStatusRejected, inv.Status)

		require.Len(t, pusher.sentTo(1), 1)
		assert.Empty(t, pusher.sentTo(2))
		data := pusher.sentTo(1)[0].(notifications.DataEvent)
		assert.Equal(t, notifications.KindGameInvitationRejected, data.Kind)
	})

	t.Run("only the challenged user can reject", func(t *testing.T) {
		inviteRepo := &gameInvRepoStub{
			getByIDFn: func(context.Context, uint) (*models.GameInvitation, error) { return pendingChallenge(), nil },
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		_, err := svc.Reject(ctx, 1, 5)
		assertAppErrorCode(t, err, "UNAUTHORIZED")
	})
}

func TestGameInviteService_Listings(t *testing.T) {
	ctx := context.Background()

	t.Run("lists sweep stale invitations first", func(t *testing.T) {
		swept := false
		inviteRepo := &gameInvRepoStub{
			expireOldFn: func(context.Context, time.Time) (int64, error) {
				swept = true
				return 2, nil
			},
			listPendingForUserFn: func(context.Context, uint) ([]*models.GameInvitation, error) {
				return []*models.GameInvitation{pendingChallenge()}, nil
			},
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		invs, err := svc.ListPending(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, invs, 1)
		assert.True(t, swept)
	})

	t.Run("sent listing", func(t *testing.T) {
		inviteRepo := &gameInvRepoStub{
			listSentByUserFn: func(context.Context, uint) ([]*models.GameInvitation, error) {
				return []*models.GameInvitation{pendingChallenge()}, nil
			},
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		invs, err := svc.ListSent(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, invs, 1)
	})

	t.Run("Get refuses outsiders", func(t *testing.T) {
		inviteRepo := &gameInvRepoStub{
			getByIDFn: func(context.Context, uint) (*models.GameInvitation, error) { return pendingChallenge(), nil },
		}
		svc := newGameInviteService(inviteRepo, &blockRepoStub{}, &senderStub{}, &roomClientStub{}, &pusherStub{})

		_, err := svc.Get(ctx, 9, 5)
		assertAppErrorCode(t, err, "UNAUTHORIZED")

		inv, err := svc.Get(ctx, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, uint(5), inv.ID)
	})
}
