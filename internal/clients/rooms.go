// Package clients contains HTTP clients for the external services the core
// depends on: match room provisioning and friendship registration.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rallypoint/internal/observability"
)

// RoomClient provisions match rooms in the external room service. Calls carry
// the acting user's bearer token so the room service sees who asked.
type RoomClient interface {
	CreateRoom(ctx context.Context, bearer string, gameType string) (string, error)
	AddPlayer(ctx context.Context, bearer string, roomID string, userID uint) error
}

type roomClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRoomClient creates a room service client for the given base URL.
func NewRoomClient(baseURL string) RoomClient {
	return &roomClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type createRoomRequest struct {
	GameType string `json:"game_type"`
}

type createRoomResponse struct {
	RoomID string `json:"room_id"`
}

func (c *roomClient) CreateRoom(ctx context.Context, bearer string, gameType string) (string, error) {
	defer observability.TrackUpstreamCall("rooms", "create_room")()

	body, err := json.Marshal(createRoomRequest{GameType: gameType})
	if err != nil {
		return "", fmt.Errorf("failed to marshal room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rooms", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create room request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("room service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("room service returned status %d", resp.StatusCode)
	}

	var created createRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode room response: %w", err)
	}
	if created.RoomID == "" {
		return "", fmt.Errorf("room service returned an empty room id")
	}
	return created.RoomID, nil
}

type addPlayerRequest struct {
	UserID uint `json:"user_id"`
}

func (c *roomClient) AddPlayer(ctx context.Context, bearer string, roomID string, userID uint) error {
	defer observability.TrackUpstreamCall("rooms", "add_player")()

	body, err := json.Marshal(addPlayerRequest{UserID: userID})
	if err != nil {
		return fmt.Errorf("failed to marshal player request: %w", err)
	}

	url := fmt.Sprintf("%s/api/rooms/%s/players", c.baseURL, roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create player request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("room service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("room service returned status %d", resp.StatusCode)
	}
	return nil
}
