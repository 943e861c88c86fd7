// Package service contains the business logic for messaging, blocking,
// invitations and account lifecycle.
package service

import (
	"context"
	"errors"
	"log/slog"

	"rallypoint/internal/cache"
	"rallypoint/internal/models"
	"rallypoint/internal/notifications"
	"rallypoint/internal/observability"
	"rallypoint/internal/repository"

	"gorm.io/gorm"
)

// Pusher delivers real-time events to connected users. Delivery is always
// best-effort: an offline recipient is not an error.
type Pusher interface {
	Send(userID uint, e notifications.Event) bool
	BroadcastAll(e notifications.Event)
	IsOnline(userID uint) bool
}

// maxMessageLength bounds a single chat message body.
const maxMessageLength = 4000

// defaultMessageWindow is how many recent messages a history read returns
// when the caller does not say.
const defaultMessageWindow = 50

// ChatService provides conversation and message business logic.
type ChatService struct {
	chatRepo  repository.ChatRepository
	blockRepo repository.BlockRepository
	pusher    Pusher
}

// NewChatService returns a new ChatService.
func NewChatService(chatRepo repository.ChatRepository, blockRepo repository.BlockRepository, pusher Pusher) *ChatService {
	return &ChatService{
		chatRepo:  chatRepo,
		blockRepo: blockRepo,
		pusher:    pusher,
	}
}

// SendMessage routes one message from sender to recipient: block check,
// conversation resolution, persistence, then best-effort push. Persistence
// failure fails the send; push failure never does.
func (s *ChatService) SendMessage(ctx context.Context, senderID, recipientID uint, content string, kind models.MessageKind) (*models.Message, error) {
	if senderID == recipientID {
		return nil, models.NewValidationError("Cannot message yourself")
	}
	if content == "" {
		return nil, models.NewValidationError("Message content cannot be empty")
	}
	if len(content) > maxMessageLength {
		return nil, models.NewValidationError("Message content too long")
	}
	if kind == "" {
		kind = models.MessageKindText
	}

	blocked, err := s.blockRepo.AreBlocked(ctx, senderID, recipientID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if blocked {
		return nil, models.NewBlockedError("Messaging is not available between these users")
	}

	conv, err := s.chatRepo.GetOrCreateConversation(ctx, senderID, recipientID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Kind:           kind,
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, models.NewInternalError(err)
	}

	if err := s.chatRepo.TouchConversation(ctx, conv.ID); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "Failed to touch conversation",
			slog.Uint64("conversation_id", uint64(conv.ID)),
			slog.String("error", err.Error()),
		)
	}

	s.invalidateConversations(ctx, senderID, recipientID)
	s.pusher.Send(recipientID, notifications.NewMessage{Message: msg})

	return msg, nil
}

// GetMessages returns the newest window of a conversation in chronological
// order and marks the peer's messages as read, pushing a read receipt back.
func (s *ChatService) GetMessages(ctx context.Context, userID, conversationID uint, limit, offset int) ([]*models.Message, error) {
	conv, err := s.chatRepo.GetConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Conversation not found")
		}
		return nil, models.NewInternalError(err)
	}

	peerID := conv.PeerOf(userID)
	if peerID == 0 {
		return nil, models.NewUnauthorizedError("Not a participant in this conversation")
	}

	if limit <= 0 {
		limit = defaultMessageWindow
	}
	msgs, err := s.chatRepo.GetRecentMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	if err := s.chatRepo.MarkMessagesRead(ctx, conversationID, userID); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "Failed to mark messages read",
			slog.Uint64("conversation_id", uint64(conversationID)),
			slog.String("error", err.Error()),
		)
	} else {
		s.pusher.Send(peerID, notifications.MessageRead{ConversationID: conversationID, ReaderID: userID})
	}

	return msgs, nil
}

// GetConversations lists the user's conversations, most recently active
// first, through a short-lived cache.
func (s *ChatService) GetConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	var summaries []models.ConversationSummary
	err := cache.Aside(ctx, cache.ConversationsKey(userID), &summaries, cache.ConversationsTTL, func() error {
		var fetchErr error
		summaries, fetchErr = s.chatRepo.GetUserConversations(ctx, userID)
		return fetchErr
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return summaries, nil
}

// NotifyTyping forwards a typing signal to the conversation peer.
func (s *ChatService) NotifyTyping(ctx context.Context, userID, conversationID uint) error {
	return s.notifyPeer(ctx, userID, conversationID, func(peerID uint) {
		s.pusher.Send(peerID, notifications.Typing{ConversationID: conversationID, UserID: userID})
	})
}

// NotifyStoppedTyping forwards a stop-typing signal to the conversation peer.
func (s *ChatService) NotifyStoppedTyping(ctx context.Context, userID, conversationID uint) error {
	return s.notifyPeer(ctx, userID, conversationID, func(peerID uint) {
		s.pusher.Send(peerID, notifications.StoppedTyping{ConversationID: conversationID, UserID: userID})
	})
}

// MarkDelivered records a delivery receipt for a message the user received
// and tells the sender.
func (s *ChatService) MarkDelivered(ctx context.Context, userID, messageID uint) error {
	msg, err := s.chatRepo.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Message not found")
		}
		return models.NewInternalError(err)
	}
	if msg.SenderID == userID {
		return models.NewValidationError("Cannot confirm delivery of your own message")
	}

	conv, err := s.chatRepo.GetConversationByID(ctx, msg.ConversationID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if conv.PeerOf(userID) == 0 {
		return models.NewUnauthorizedError("Not a participant in this conversation")
	}

	if err := s.chatRepo.MarkMessageDelivered(ctx, messageID); err != nil {
		return models.NewInternalError(err)
	}

	s.pusher.Send(msg.SenderID, notifications.MessageDelivered{
		ConversationID: msg.ConversationID,
		MessageID:      messageID,
	})
	return nil
}

// MarkRead marks the peer's messages in the conversation as read and pushes
// a read receipt to the peer.
func (s *ChatService) MarkRead(ctx context.Context, userID, conversationID uint) error {
	return s.notifyPeer(ctx, userID, conversationID, func(peerID uint) {
		if err := s.chatRepo.MarkMessagesRead(ctx, conversationID, userID); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "Failed to mark messages read",
				slog.Uint64("conversation_id", uint64(conversationID)),
				slog.String("error", err.Error()),
			)
			return
		}
		s.pusher.Send(peerID, notifications.MessageRead{ConversationID: conversationID, ReaderID: userID})
	})
}

// notifyPeer resolves the conversation, verifies membership and the block
// state, then hands the peer id to fn.
func (s *ChatService) notifyPeer(ctx context.Context, userID, conversationID uint, fn func(peerID uint)) error {
	conv, err := s.chatRepo.GetConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Conversation not found")
		}
		return models.NewInternalError(err)
	}

	peerID := conv.PeerOf(userID)
	if peerID == 0 {
		return models.NewUnauthorizedError("Not a participant in this conversation")
	}

	blocked, err := s.blockRepo.AreBlocked(ctx, userID, peerID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if blocked {
		return models.NewBlockedError("Messaging is not available between these users")
	}

	fn(peerID)
	return nil
}

func (s *ChatService) invalidateConversations(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cache.ConversationsKey(id))
	}
	if err := cache.Delete(ctx, keys...); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "Failed to invalidate conversation cache",
			slog.String("error", err.Error()),
		)
	}
}
