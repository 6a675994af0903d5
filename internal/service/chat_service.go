package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"chatcore/internal/domain"
	"chatcore/internal/presence"
)

// ChatService coordinates store writes with presence lookups and decides
// which sessions receive which events. Every mutation completes against
// the store before anything is pushed, so no session observes state that
// was not committed.
type ChatService struct {
	users         domain.UserRepository
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	registry      *presence.Registry
	summaries     *SummaryService
	log           *zap.Logger

	// HistoryLimit caps how many messages a single history push carries.
	HistoryLimit int

	pairMu    sync.Mutex
	pairLocks map[[2]int64]*sync.Mutex
}

func NewChatService(
	users domain.UserRepository,
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	registry *presence.Registry,
	summaries *SummaryService,
	log *zap.Logger,
	historyLimit int,
) *ChatService {
	if historyLimit <= 0 {
		historyLimit = 1000
	}
	return &ChatService{
		users:         users,
		conversations: conversations,
		messages:      messages,
		registry:      registry,
		summaries:     summaries,
		log:           log,
		HistoryLimit:  historyLimit,
		pairLocks:     make(map[[2]int64]*sync.Mutex),
	}
}

// pairLock returns the mutex serializing the create path for one
// unordered pair. The store's unique index is the backstop; the lock
// keeps both participants' concurrent sends orderly.
func (s *ChatService) pairLock(a, b int64) *sync.Mutex {
	if a > b {
		a, b = b, a
	}
	key := [2]int64{a, b}

	s.pairMu.Lock()
	defer s.pairMu.Unlock()
	mu, ok := s.pairLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.pairLocks[key] = mu
	}
	return mu
}

type SendMessageInput struct {
	ReceiverID int64
	Text       string
	ImageURL   string
	VideoURL   string
}

// SendMessage persists a message into the pair's single conversation and
// pushes the refreshed history plus each side's own sidebar to every live
// session of sender and receiver. An offline receiver still gets the
// message persisted; they catch up on their next fetch.
func (s *ChatService) SendMessage(ctx context.Context, senderID int64, in SendMessageInput) error {
	if in.Text == "" && in.ImageURL == "" && in.VideoURL == "" {
		return fmt.Errorf("message needs text or media: %w", domain.ErrInvalidInput)
	}
	if err := s.requireUser(ctx, senderID); err != nil {
		return fmt.Errorf("sender %d: %w", senderID, err)
	}
	if err := s.requireUser(ctx, in.ReceiverID); err != nil {
		return fmt.Errorf("receiver %d: %w", in.ReceiverID, err)
	}

	mu := s.pairLock(senderID, in.ReceiverID)
	mu.Lock()
	conv, err := s.conversations.FindOrCreate(ctx, senderID, in.ReceiverID)
	mu.Unlock()
	if err != nil {
		return fmt.Errorf("find or create conversation: %w", err)
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		AuthorID:       senderID,
		Text:           in.Text,
		ImageURL:       in.ImageURL,
		VideoURL:       in.VideoURL,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	history, err := s.messages.ListForConversation(ctx, conv.ID, s.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	event := NewHistoryEvent(conv.ID, history)
	s.pushToUser(senderID, event)
	if in.ReceiverID != senderID {
		s.pushToUser(in.ReceiverID, event)
	}

	s.pushSummaries(ctx, senderID, in.ReceiverID)
	return nil
}

// MarkSeen flags every unseen message the author wrote in the viewer's
// conversation with them, then refreshes both sides' sidebars so the
// author learns their messages were read.
func (s *ChatService) MarkSeen(ctx context.Context, viewerID, authorID int64) error {
	if err := s.requireUser(ctx, authorID); err != nil {
		return fmt.Errorf("author %d: %w", authorID, err)
	}

	conv, err := s.conversations.GetByPair(ctx, viewerID, authorID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv != nil {
		if _, err := s.messages.MarkSeenByAuthor(ctx, conv.ID, authorID); err != nil {
			return fmt.Errorf("mark seen: %w", err)
		}
	}

	s.pushSummaries(ctx, viewerID, authorID)
	return nil
}

// FetchHistory answers only the requesting session: the target's profile
// with live online status, then the conversation's messages in append
// order. A missing conversation yields an empty history, not an error.
func (s *ChatService) FetchHistory(ctx context.Context, sess presence.Session, targetID int64) error {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("get target: %w", err)
	}
	if target == nil {
		return fmt.Errorf("target %d: %w", targetID, domain.ErrInvalidInput)
	}

	if err := sess.Send(NewProfileEvent(target.Profile(), s.registry.IsOnline(targetID))); err != nil {
		return fmt.Errorf("send profile: %w", err)
	}

	var history []*domain.Message
	conv, err := s.conversations.GetByPair(ctx, sess.UserID(), targetID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	var convID int64
	if conv != nil {
		convID = conv.ID
		history, err = s.messages.ListForConversation(ctx, conv.ID, s.HistoryLimit)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
	}

	if err := sess.Send(NewHistoryEvent(convID, history)); err != nil {
		return fmt.Errorf("send history: %w", err)
	}
	return nil
}

// Sidebar answers only the requesting session with its own summary list.
func (s *ChatService) Sidebar(ctx context.Context, sess presence.Session) error {
	summaries, err := s.summaries.Summarize(ctx, sess.UserID())
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	if err := sess.Send(NewConversationEvent(summaries)); err != nil {
		return fmt.Errorf("send sidebar: %w", err)
	}
	return nil
}

// AnnouncePresence pushes the full online snapshot to every connected
// session. Called by the gateway after each register and deregister.
func (s *ChatService) AnnouncePresence() {
	event := NewPresenceEvent(s.registry.Snapshot())
	for _, sess := range s.registry.Sessions() {
		if err := sess.Send(event); err != nil {
			s.log.Warn("presence push failed",
				zap.String("session", sess.ID()),
				zap.Int64("user", sess.UserID()),
				zap.Error(err))
		}
	}
}

// pushSummaries recomputes and pushes each user's own sidebar. Sender and
// receiver get their own perspective, never a shared payload.
func (s *ChatService) pushSummaries(ctx context.Context, userIDs ...int64) {
	pushed := make(map[int64]struct{}, len(userIDs))
	for _, uid := range userIDs {
		if _, done := pushed[uid]; done {
			continue
		}
		pushed[uid] = struct{}{}

		if len(s.registry.Route(uid)) == 0 {
			continue
		}
		summaries, err := s.summaries.Summarize(ctx, uid)
		if err != nil {
			s.log.Warn("summary refresh failed", zap.Int64("user", uid), zap.Error(err))
			continue
		}
		s.pushToUser(uid, NewConversationEvent(summaries))
	}
}

// pushToUser fans one payload out to every live session of the user.
func (s *ChatService) pushToUser(userID int64, payload any) {
	for _, sess := range s.registry.Route(userID) {
		if err := sess.Send(payload); err != nil {
			s.log.Warn("push failed",
				zap.String("session", sess.ID()),
				zap.Int64("user", userID),
				zap.Error(err))
		}
	}
}

func (s *ChatService) requireUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return domain.ErrInvalidInput
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return domain.ErrInvalidInput
	}
	return nil
}
