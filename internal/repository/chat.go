package repository

import (
	"context"
	"errors"
	"time"

	"rallypoint/internal/models"

	"gorm.io/gorm"
)

// ChatRepository defines the interface for conversation and message data operations.
type ChatRepository interface {
	GetOrCreateConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	GetConversationBetween(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error)
	TouchConversation(ctx context.Context, id uint) error
	GetUserConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error)
	DeleteUserConversations(ctx context.Context, userID uint) ([]uint, error)

	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id uint) (*models.Message, error)
	GetRecentMessages(ctx context.Context, convID uint, limit, offset int) ([]*models.Message, error)
	UpdateMessageKind(ctx context.Context, msgID uint, kind models.MessageKind) error
	MarkMessageDelivered(ctx context.Context, msgID uint) error
	MarkMessagesRead(ctx context.Context, convID, readerID uint) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// GetOrCreateConversation returns the conversation between two users,
// creating it on first contact. This is the single creation path for
// conversations, which keeps the one-per-pair invariant in one place.
func (r *chatRepository) GetOrCreateConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	conv, err := r.GetConversationBetween(ctx, userA, userB)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.Conversation{UserAID: userA, UserBID: userB}
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		// Concurrent first contact: the other writer won, reuse its row.
		if existing, lookupErr := r.GetConversationBetween(ctx, userA, userB); lookupErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return created, nil
}

// GetConversationBetween matches the pair in either orientation.
func (r *chatRepository) GetConversationBetween(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("(user_a_id = ? AND user_b_id = ?) OR (user_a_id = ? AND user_b_id = ?)",
			userA, userB, userB, userA).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepository) GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// TouchConversation bumps updated_at so listings sort by recent activity.
func (r *chatRepository) TouchConversation(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

func (r *chatRepository) GetUserConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	var conversations []*models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, models.ConversationSummary{
			ConversationID: conv.ID,
			PeerID:         conv.PeerOf(userID),
			CreatedAt:      conv.CreatedAt,
			UpdatedAt:      conv.UpdatedAt,
		})
	}
	return summaries, nil
}

// DeleteUserConversations soft-deletes every conversation the user is part of,
// messages included, and returns the peer ids of the removed conversations so
// callers can notify them.
func (r *chatRepository) DeleteUserConversations(ctx context.Context, userID uint) ([]uint, error) {
	var conversations []*models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	if len(conversations) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(conversations))
	peers := make([]uint, 0, len(conversations))
	for _, conv := range conversations {
		ids = append(ids, conv.ID)
		peers = append(peers, conv.PeerOf(userID))
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id IN ?", ids).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, ids).Error
	})
	if err != nil {
		return nil, err
	}
	return peers, nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *chatRepository) GetMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *chatRepository) GetRecentMessages(ctx context.Context, convID uint, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse messages to return them in chronological order (oldest -> newest)
	// We fetched DESC to get the *latest* messages, but client expects ASC
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// UpdateMessageKind rewrites the kind of an invitation carrier message in
// place when its invitation changes status.
func (r *chatRepository) UpdateMessageKind(ctx context.Context, msgID uint, kind models.MessageKind) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", msgID).
		Update("kind", kind).Error
}

func (r *chatRepository) MarkMessageDelivered(ctx context.Context, msgID uint) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND delivered_at IS NULL", msgID).
		Update("delivered_at", time.Now()).Error
}

// MarkMessagesRead marks every unread message sent to readerID in the
// conversation. The reader's own messages are untouched.
func (r *chatRepository) MarkMessagesRead(ctx context.Context, convID, readerID uint) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", convID, readerID).
		Update("read_at", time.Now()).Error
}
