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

// FriendshipClient registers accepted friendships with the external social
// graph service.
type FriendshipClient interface {
	RegisterFriendship(ctx context.Context, bearer string, accepterID, inviterID uint) error
}

type friendshipClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFriendshipClient creates a friendship service client for the given base URL.
func NewFriendshipClient(baseURL string) FriendshipClient {
	return &friendshipClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type registerFriendshipRequest struct {
	AccepterID uint `json:"accepter_id"`
	InviterID  uint `json:"inviter_id"`
}

func (c *friendshipClient) RegisterFriendship(ctx context.Context, bearer string, accepterID, inviterID uint) error {
	defer observability.TrackUpstreamCall("friendships", "register")()

	body, err := json.Marshal(registerFriendshipRequest{AccepterID: accepterID, InviterID: inviterID})
	if err != nil {
		return fmt.Errorf("failed to marshal friendship request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/friendships", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create friendship request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("friendship service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("friendship service returned status %d", resp.StatusCode)
	}
	return nil
}
