package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendInvitationHandlers(t *testing.T) {
	t.Run("create then accept", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		resp, body := fiberJSON(t, s, 1, http.MethodPost, "/invitations/friends", map[string]interface{}{
			"invitee_id": 2,
			"content":    "let's be friends",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		invitationID := uint(body["id"].(float64))

		resp, body = fiberJSON(t, s, 2, http.MethodPost,
			fmt.Sprintf("/invitations/friends/%d/accept", invitationID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Friend invitation accepted", body["message"])
	})

	t.Run("duplicate invitation conflicts", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		resp, _ := fiberJSON(t, s, 1, http.MethodPost, "/invitations/friends", map[string]interface{}{
			"invitee_id": 2,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, _ = fiberJSON(t, s, 1, http.MethodPost, "/invitations/friends", map[string]interface{}{
			"invitee_id": 2,
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("registration outage still accepts", func(t *testing.T) {
		s := newTestServer(t, nil, &friendshipClientStub{
			registerFn: func(context.Context, string, uint, uint) error {
				return errors.New("friend service down")
			},
		})

		_, body := fiberJSON(t, s, 1, http.MethodPost, "/invitations/friends", map[string]interface{}{
			"invitee_id": 2,
		})
		invitationID := uint(body["id"].(float64))

		resp, body := fiberJSON(t, s, 2, http.MethodPost,
			fmt.Sprintf("/invitations/friends/%d/accept", invitationID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Contains(t, body["message"], "delayed")
	})

	t.Run("only the invitee may answer", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		_, body := fiberJSON(t, s, 1, http.MethodPost, "/invitations/friends", map[string]interface{}{
			"invitee_id": 2,
		})
		invitationID := uint(body["id"].(float64))

		resp, body := fiberJSON(t, s, 3, http.MethodPost,
			fmt.Sprintf("/invitations/friends/%d/accept", invitationID), nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, false, body["success"])
	})

	t.Run("reject answers with a workflow result", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		_, body := fiberJSON(t, s, 1, http.MethodPost, "/invitations/friends", map[string]interface{}{
			"invitee_id": 2,
		})
		invitationID := uint(body["id"].(float64))

		resp, body := fiberJSON(t, s, 2, http.MethodPost,
			fmt.Sprintf("/invitations/friends/%d/reject", invitationID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Friend invitation rejected", body["message"])
	})

	t.Run("pending list shows only the invitee's invitations", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		_, _ = fiberJSON(t, s, 1, http.MethodPost, "/invitations/friends", map[string]interface{}{
			"invitee_id": 2,
		})

		_, body := fiberJSON(t, s, 2, http.MethodGet, "/invitations/friends", nil)
		invitations := body["invitations"].([]interface{})
		assert.Len(t, invitations, 1)

		_, body = fiberJSON(t, s, 1, http.MethodGet, "/invitations/friends", nil)
		invitations, _ = body["invitations"].([]interface{})
		assert.Empty(t, invitations)
	})
}

func TestGameInvitationHandlers(t *testing.T) {
	t.Run("create provisions a room, accept joins it", func(t *testing.T) {
		s := newTestServer(t, &roomClientStub{
			createRoomFn: func(_ context.Context, _ string, gameType string) (string, error) {
				assert.Equal(t, "pong", gameType)
				return "room-9", nil
			},
		}, nil)

		resp, body := fiberJSON(t, s, 1, http.MethodPost, "/invitations/games", map[string]interface{}{
			"to_id":     2,
			"game_type": "pong",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		invitationID := uint(body["id"].(float64))

		resp, body = fiberJSON(t, s, 2, http.MethodPost,
			fmt.Sprintf("/invitations/games/%d/accept", invitationID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "room-9", body["room_id"])
	})

	t.Run("room outage aborts the challenge", func(t *testing.T) {
		s := newTestServer(t, &roomClientStub{
			createRoomFn: func(context.Context, string, string) (string, error) {
				return "", errors.New("room service down")
			},
		}, nil)

		resp, _ := fiberJSON(t, s, 1, http.MethodPost, "/invitations/games", map[string]interface{}{
			"to_id":     2,
			"game_type": "pong",
		})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		// Nothing was persisted
		_, body := fiberJSON(t, s, 2, http.MethodGet, "/invitations/games", nil)
		invitations, _ := body["invitations"].([]interface{})
		assert.Empty(t, invitations)
	})

	t.Run("unknown game type is refused", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		resp, _ := fiberJSON(t, s, 1, http.MethodPost, "/invitations/games", map[string]interface{}{
			"to_id":     2,
			"game_type": "chess",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("pending and sent listings split by role", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		_, _ = fiberJSON(t, s, 1, http.MethodPost, "/invitations/games", map[string]interface{}{
			"to_id":     2,
			"game_type": "pong",
		})

		_, body := fiberJSON(t, s, 2, http.MethodGet, "/invitations/games", nil)
		assert.Len(t, body["invitations"].([]interface{}), 1)

		_, body = fiberJSON(t, s, 1, http.MethodGet, "/invitations/games/sent", nil)
		assert.Len(t, body["invitations"].([]interface{}), 1)

		_, body = fiberJSON(t, s, 1, http.MethodGet, "/invitations/games", nil)
		invitations, _ := body["invitations"].([]interface{})
		assert.Empty(t, invitations)
	})

	t.Run("only parties may fetch a challenge", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		_, body := fiberJSON(t, s, 1, http.MethodPost, "/invitations/games", map[string]interface{}{
			"to_id":     2,
			"game_type": "pong",
		})
		invitationID := uint(body["id"].(float64))

		resp, _ := fiberJSON(t, s, 2, http.MethodGet,
			fmt.Sprintf("/invitations/games/%d", invitationID), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = fiberJSON(t, s, 3, http.MethodGet,
			fmt.Sprintf("/invitations/games/%d", invitationID), nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("reject answers with a workflow result", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		_, body := fiberJSON(t, s, 1, http.MethodPost, "/invitations/games", map[string]interface{}{
			"to_id":     2,
			"game_type": "pong",
		})
		invitationID := uint(body["id"].(float64))

		resp, body := fiberJSON(t, s, 2, http.MethodPost,
			fmt.Sprintf("/invitations/games/%d/reject", invitationID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
	})
}

func TestAccountHandlers(t *testing.T) {
	t.Run("sync mirrors own identity only", func(t *testing.T) {
		s := newTestServer(t, nil, nil)

		resp, body := fiberJSON(t, s, 4, http.MethodPost, "/users/sync", map[string]interface{}{
			"id":       4,
			"username": "dana",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])

		resp, _ = fiberJSON(t, s, 4, http.MethodPost, "/users/sync", map[string]interface{}{
			"id":       5,
			"username": "mallory",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("account deletion purges conversations", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		ctx := context.Background()

		_, err := s.chatService.SendMessage(ctx, 1, 2, "bye", "text")
		require.NoError(t, err)

		resp, body := fiberJSON(t, s, 1, http.MethodDelete, "/users/me", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])

		conversations, err := s.chatService.GetConversations(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, conversations)
	})
}
