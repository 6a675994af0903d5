package service

import "chatcore/internal/domain"

// Outbound event types pushed to sessions. The broadcast engine owns
// these shapes; the gateway only relays them.
const (
	EventPresence     = "presence"
	EventHistory      = "history"
	EventConversation = "conversation"
	EventProfile      = "profile"
	EventError        = "error"
)

// PresenceEvent carries the full online set. Connect and disconnect both
// broadcast a complete snapshot, never a delta.
type PresenceEvent struct {
	Type   string  `json:"type"`
	Online []int64 `json:"online"`
}

func NewPresenceEvent(online []int64) PresenceEvent {
	return PresenceEvent{Type: EventPresence, Online: online}
}

// HistoryEvent carries the ordered message list of one conversation.
type HistoryEvent struct {
	Type           string            `json:"type"`
	ConversationID int64             `json:"conversation_id"`
	Messages       []*domain.Message `json:"messages"`
}

func NewHistoryEvent(conversationID int64, messages []*domain.Message) HistoryEvent {
	if messages == nil {
		messages = []*domain.Message{}
	}
	return HistoryEvent{Type: EventHistory, ConversationID: conversationID, Messages: messages}
}

// ConversationEvent carries a user's sidebar summary list.
type ConversationEvent struct {
	Type          string                       `json:"type"`
	Conversations []domain.ConversationSummary `json:"conversations"`
}

func NewConversationEvent(summaries []domain.ConversationSummary) ConversationEvent {
	if summaries == nil {
		summaries = []domain.ConversationSummary{}
	}
	return ConversationEvent{Type: EventConversation, Conversations: summaries}
}

// ProfileEvent carries one user's profile plus their live online flag.
type ProfileEvent struct {
	Type   string         `json:"type"`
	User   domain.Profile `json:"user"`
	Online bool           `json:"online"`
}

func NewProfileEvent(p domain.Profile, online bool) ProfileEvent {
	return ProfileEvent{Type: EventProfile, User: p, Online: online}
}

// ErrorEvent reports a failed operation back to the issuing session only.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorEvent(msg string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: msg}
}
