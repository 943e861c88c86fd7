package cache

import (
	"fmt"
	"time"
)

// ConversationsTTL bounds staleness of cached conversation listings.
const ConversationsTTL = 30 * time.Second

// ConversationsKey is the cache key for a user's conversation summaries.
func ConversationsKey(userID uint) string {
	return fmt.Sprintf("conversations:user:%d", userID)
}
