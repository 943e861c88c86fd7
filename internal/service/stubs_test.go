package service

import (
	"context"
	"time"

	"rallypoint/internal/models"
	"rallypoint/internal/notifications"
)

type sentEvent struct {
	userID uint
	event  notifications.Event
}

type pusherStub struct {
	sent       []sentEvent
	broadcasts []notifications.Event
	online     map[uint]bool
}

func (p *pusherStub) Send(userID uint, e notifications.Event) bool {
	p.sent = append(p.sent, sentEvent{userID: userID, event: e})
	return p.online == nil || p.online[userID]
}

func (p *pusherStub) BroadcastAll(e notifications.Event) {
	p.broadcasts = append(p.broadcasts, e)
}

func (p *pusherStub) IsOnline(userID uint) bool {
	return p.online != nil && p.online[userID]
}

func (p *pusherStub) sentTo(userID uint) []notifications.Event {
	var events []notifications.Event
	for _, s := range p.sent {
		if s.userID == userID {
			events = append(events, s.event)
		}
	}
	return events
}

type chatRepoStub struct {
	getOrCreateConversationFn func(context.Context, uint, uint) (*models.Conversation, error)
	getConversationBetweenFn  func(context.Context, uint, uint) (*models.Conversation, error)
	getConversationByIDFn     func(context.Context, uint) (*models.Conversation, error)
	touchConversationFn       func(context.Context, uint) error
	getUserConversationsFn    func(context.Context, uint) ([]models.ConversationSummary, error)
	deleteUserConversationsFn func(context.Context, uint) ([]uint, error)
	createMessageFn           func(context.Context, *models.Message) error
	getMessageByIDFn          func(context.Context, uint) (*models.Message, error)
	getRecentMessagesFn       func(context.Context, uint, int, int) ([]*models.Message, error)
	updateMessageKindFn       func(context.Context, uint, models.MessageKind) error
	markMessageDeliveredFn    func(context.Context, uint) error
	markMessagesReadFn        func(context.Context, uint, uint) error
}

func (s *chatRepoStub) GetOrCreateConversation(ctx context.Context, a, b uint) (*models.Conversation, error) {
	return s.getOrCreateConversationFn(ctx, a, b)
}
func (s *chatRepoStub) GetConversationBetween(ctx context.Context, a, b uint) (*models.Conversation, error) {
	return s.getConversationBetweenFn(ctx, a, b)
}
func (s *chatRepoStub) GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	return s.getConversationByIDFn(ctx, id)
}
func (s *chatRepoStub) TouchConversation(ctx context.Context, id uint) error {
	if s.touchConversationFn == nil {
		return nil
	}
	return s.touchConversationFn(ctx, id)
}
func (s *chatRepoStub) GetUserConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	return s.getUserConversationsFn(ctx, userID)
}
func (s *chatRepoStub) DeleteUserConversations(ctx context.Context, userID uint) ([]uint, error) {
	return s.deleteUserConversationsFn(ctx, userID)
}
func (s *chatRepoStub) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.createMessageFn(ctx, msg)
}
func (s *chatRepoStub) GetMessageByID(ctx context.Context, id uint) (*models.Message, error) {
	return s.getMessageByIDFn(ctx, id)
}
func (s *chatRepoStub) GetRecentMessages(ctx context.Context, convID uint, limit, offset int) ([]*models.Message, error) {
	return s.getRecentMessagesFn(ctx, convID, limit, offset)
}
func (s *chatRepoStub) UpdateMessageKind(ctx context.Context, msgID uint, kind models.MessageKind) error {
	if s.updateMessageKindFn == nil {
		return nil
	}
	return s.updateMessageKindFn(ctx, msgID, kind)
}
func (s *chatRepoStub) MarkMessageDelivered(ctx context.Context, msgID uint) error {
	return s.markMessageDeliveredFn(ctx, msgID)
}
func (s *chatRepoStub) MarkMessagesRead(ctx context.Context, convID, readerID uint) error {
	if s.markMessagesReadFn == nil {
		return nil
	}
	return s.markMessagesReadFn(ctx, convID, readerID)
}

type blockRepoStub struct {
	createFn           func(context.Context, uint, uint) error
	deleteFn           func(context.Context, uint, uint) error
	areBlockedFn       func(context.Context, uint, uint) (bool, error)
	deleteAllForUserFn func(context.Context, uint) error
}

func (s *blockRepoStub) Create(ctx context.Context, blockerID, blockedID uint) error {
	return s.createFn(ctx, blockerID, blockedID)
}
func (s *blockRepoStub) Delete(ctx context.Context, blockerID, blockedID uint) error {
	return s.deleteFn(ctx, blockerID, blockedID)
}
func (s *blockRepoStub) AreBlocked(ctx context.Context, a, b uint) (bool, error) {
	if s.areBlockedFn == nil {
		return false, nil
	}
	return s.areBlockedFn(ctx, a, b)
}
func (s *blockRepoStub) DeleteAllForUser(ctx context.Context, userID uint) error {
	return s.deleteAllForUserFn(ctx, userID)
}

type friendInvRepoStub struct {
	createFn                func(context.Context, *models.FriendInvitation) error
	getByIDFn               func(context.Context, uint) (*models.FriendInvitation, error)
	getActiveBetweenFn      func(context.Context, uint, uint) (*models.FriendInvitation, error)
	updateStatusIfPendingFn func(context.Context, uint, models.InvitationStatus) (bool, error)
	listPendingForUserFn    func(context.Context, uint) ([]*models.FriendInvitation, error)
	expireOldFn             func(context.Context, time.Time) (int64, error)
	deleteAllForUserFn      func(context.Context, uint) error
}

func (s *friendInvRepoStub) Create(ctx context.Context, inv *models.FriendInvitation) error {
	return s.createFn(ctx, inv)
}
func (s *friendInvRepoStub) GetByID(ctx context.Context, id uint) (*models.FriendInvitation, error) {
	return s.getByIDFn(ctx, id)
}
func (s *friendInvRepoStub) GetActiveBetween(ctx context.Context, a, b uint) (*models.FriendInvitation, error) {
	return s.getActiveBetweenFn(ctx, a, b)
}
func (s *friendInvRepoStub) UpdateStatusIfPending(ctx context.Context, id uint, status models.InvitationStatus) (bool, error) {
	return s.updateStatusIfPendingFn(ctx, id, status)
}
func (s *friendInvRepoStub) ListPendingForUser(ctx context.Context, userID uint) ([]*models.FriendInvitation, error) {
	return s.listPendingForUserFn(ctx, userID)
}
func (s *friendInvRepoStub) ExpireOld(ctx context.Context, now time.Time) (int64, error) {
	if s.expireOldFn == nil {
		return 0, nil
	}
	return s.expireOldFn(ctx, now)
}
func (s *friendInvRepoStub) DeleteAllForUser(ctx context.Context, userID uint) error {
	return s.deleteAllForUserFn(ctx, userID)
}

type gameInvRepoStub struct {
	createFn                func(context.Context, *models.GameInvitation) error
	getByIDFn               func(context.Context, uint) (*models.GameInvitation, error)
	getPendingBetweenFn     func(context.Context, uint, uint) (*models.GameInvitation, error)
	updateStatusIfPendingFn func(context.Context, uint, models.InvitationStatus, *string) (bool, error)
	listPendingForUserFn    func(context.Context, uint) ([]*models.GameInvitation, error)
	listSentByUserFn        func(context.Context, uint) ([]*models.GameInvitation, error)
	expireOldFn             func(context.Context, time.Time) (int64, error)
	deleteAllForUserFn      func(context.Context, uint) error
}

func (s *gameInvRepoStub) Create(ctx context.Context, inv *models.GameInvitation) error {
	return s.createFn(ctx, inv)
}
func (s *gameInvRepoStub) GetByID(ctx context.Context, id uint) (*models.GameInvitation, error) {
	return s.getByIDFn(ctx, id)
}
func (s *gameInvRepoStub) GetPendingBetween(ctx context.Context, fromID, toID uint) (*models.GameInvitation, error) {
	return s.getPendingBetweenFn(ctx, fromID, toID)
}
func (s *gameInvRepoStub) UpdateStatusIfPending(ctx context.Context, id uint, status models.InvitationStatus, roomID *string) (bool, error) {
	return s.updateStatusIfPendingFn(ctx, id, status, roomID)
}
func (s *gameInvRepoStub) ListPendingForUser(ctx context.Context, userID uint) ([]*models.GameInvitation, error) {
	return s.listPendingForUserFn(ctx, userID)
}
func (s *gameInvRepoStub) ListSentByUser(ctx context.Context, userID uint) ([]*models.GameInvitation, error) {
	return s.listSentByUserFn(ctx, userID)
}
func (s *gameInvRepoStub) ExpireOld(ctx context.Context, now time.Time) (int64, error) {
	if s.expireOldFn == nil {
		return 0, nil
	}
	return s.expireOldFn(ctx, now)
}
func (s *gameInvRepoStub) DeleteAllForUser(ctx context.Context, userID uint) error {
	return s.deleteAllForUserFn(ctx, userID)
}

type userRepoStub struct {
	getByIDFn func(context.Context, uint) (*models.User, error)
	upsertFn  func(context.Context, *models.User) error
	deleteFn  func(context.Context, uint) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if s.getByIDFn == nil {
		return &models.User{ID: id, Username: "player"}, nil
	}
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) Upsert(ctx context.Context, user *models.User) error {
	return s.upsertFn(ctx, user)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

type senderStub struct {
	sendMessageFn func(context.Context, uint, uint, string, models.MessageKind) (*models.Message, error)
}

func (s *senderStub) SendMessage(ctx context.Context, senderID, recipientID uint, content string, kind models.MessageKind) (*models.Message, error) {
	if s.sendMessageFn == nil {
		return &models.Message{ID: 1, SenderID: senderID, Content: content, Kind: kind}, nil
	}
	return s.sendMessageFn(ctx, senderID, recipientID, content, kind)
}

type roomClientStub struct {
	createRoomFn func(context.Context, string, string) (string, error)
	addPlayerFn  func(context.Context, string, string, uint) error
}

func (s *roomClientStub) CreateRoom(ctx context.Context, bearer, gameType string) (string, error) {
	if s.createRoomFn == nil {
		return "room-1", nil
	}
	return s.createRoomFn(ctx, bearer, gameType)
}
func (s *roomClientStub) AddPlayer(ctx context.Context, bearer, roomID string, userID uint) error {
	if s.addPlayerFn == nil {
		return nil
	}
	return s.addPlayerFn(ctx, bearer, roomID, userID)
}

type friendshipClientStub struct {
	registerFn func(context.Context, string, uint, uint) error
}

func (s *friendshipClientStub) RegisterFriendship(ctx context.Context, bearer string, accepterID, inviterID uint) error {
	if s.registerFn == nil {
		return nil
	}
	return s.registerFn(ctx, bearer, accepterID, inviterID)
}
