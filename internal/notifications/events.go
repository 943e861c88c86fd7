// Package notifications provides real-time notification delivery and management.
package notifications

import (
	"encoding/json"

	"rallypoint/internal/models"
)

// Event is a typed payload pushed to connected clients. Encode translates
// each variant into the wire envelope the frontend dispatches on.
type Event interface {
	EventType() string
}

// UserConnected announces a user coming online.
type UserConnected struct {
	UserID uint
}

// EventType identifies the wire type of the event.
func (UserConnected) EventType() string { return "user_connected" }

// UserDisconnected announces a user going offline.
type UserDisconnected struct {
	UserID uint
}

// EventType identifies the wire type of the event.
func (UserDisconnected) EventType() string { return "user_disconnected" }

// ConnectedUsersList is the presence snapshot sent to a freshly registered
// client so it does not have to wait for individual status events.
type ConnectedUsersList struct {
	UserIDs []uint
}

// EventType identifies the wire type of the event.
func (ConnectedUsersList) EventType() string { return "connected_users_list" }

// NewMessage carries a persisted conversation message to its recipient.
type NewMessage struct {
	Message *models.Message
}

// EventType identifies the wire type of the event.
func (NewMessage) EventType() string { return "message" }

// Typing signals that a user started typing in a conversation.
type Typing struct {
	ConversationID uint
	UserID         uint
}

// EventType identifies the wire type of the event.
func (Typing) EventType() string { return "typing" }

// StoppedTyping signals that a user stopped typing in a conversation.
type StoppedTyping struct {
	ConversationID uint
	UserID         uint
}

// EventType identifies the wire type of the event.
func (StoppedTyping) EventType() string { return "stop_typing" }

// MessageRead tells the sender their messages in a conversation were read.
type MessageRead struct {
	ConversationID uint
	ReaderID       uint
}

// EventType identifies the wire type of the event.
func (MessageRead) EventType() string { return "read" }

// MessageDelivered tells the sender a specific message reached its recipient.
type MessageDelivered struct {
	ConversationID uint
	MessageID      uint
}

// EventType identifies the wire type of the event.
func (MessageDelivered) EventType() string { return "delivered" }

// DataEvent is a loosely shaped notification for workflows whose payloads
// vary: invitation lifecycle pushes and account deletion fan-out. Kind goes
// out as the event_type discriminator inside the payload.
type DataEvent struct {
	Kind    string
	Payload map[string]interface{}
}

// EventType identifies the wire type of the event.
func (e DataEvent) EventType() string { return e.Kind }

// Well-known DataEvent kinds.
const (
	KindFriendInvitationMessage = "friend_invitation_message"
	KindGameInvitation          = "game_invitation"
	KindGameInvitationAccepted  = "game_invitation_accepted"
	KindGameInvitationRejected  = "game_invitation_rejected"
	KindUserDeleted             = "user_deleted"
)

// envelope is the wire shape: a type tag plus whatever fields the variant needs.
type envelope map[string]interface{}

// Encode translates an event into its wire JSON.
func Encode(e Event) ([]byte, error) {
	var env envelope
	switch ev := e.(type) {
	case UserConnected:
		env = envelope{"type": "user_connected", "user_id": ev.UserID}
	case UserDisconnected:
		env = envelope{"type": "user_disconnected", "user_id": ev.UserID}
	case ConnectedUsersList:
		ids := ev.UserIDs
		if ids == nil {
			ids = []uint{}
		}
		env = envelope{"type": "connected_users_list", "payload": map[string]interface{}{"user_ids": ids}}
	case NewMessage:
		env = envelope{"type": "message", "conversation_id": ev.Message.ConversationID, "payload": ev.Message}
	case Typing:
		env = envelope{"type": "typing", "conversation_id": ev.ConversationID, "user_id": ev.UserID}
	case StoppedTyping:
		env = envelope{"type": "stop_typing", "conversation_id": ev.ConversationID, "user_id": ev.UserID}
	case MessageRead:
		env = envelope{"type": "read", "conversation_id": ev.ConversationID, "user_id": ev.ReaderID}
	case MessageDelivered:
		env = envelope{"type": "delivered", "conversation_id": ev.ConversationID, "message_id": ev.MessageID}
	case DataEvent:
		payload := envelope{"event_type": ev.Kind}
		for k, v := range ev.Payload {
			payload[k] = v
		}
		env = envelope{"type": ev.Kind, "payload": payload}
	default:
		env = envelope{"type": e.EventType()}
	}
	return json.Marshal(env)
}
