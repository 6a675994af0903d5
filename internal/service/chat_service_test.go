package service_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatcore/internal/domain"
	"chatcore/internal/presence"
	"chatcore/internal/service"
	"chatcore/internal/store/sqlite"
)

// fakeSession records every payload pushed to it.
type fakeSession struct {
	id     string
	userID int64

	mu     sync.Mutex
	events []any
}

func (f *fakeSession) ID() string    { return f.id }
func (f *fakeSession) UserID() int64 { return f.userID }

func (f *fakeSession) Send(payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, payload)
	return nil
}

func (f *fakeSession) Events() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.events...)
}

func (f *fakeSession) lastHistory(t *testing.T) service.HistoryEvent {
	t.Helper()
	for i := len(f.events) - 1; i >= 0; i-- {
		if e, ok := f.events[i].(service.HistoryEvent); ok {
			return e
		}
	}
	t.Fatalf("session %s: no history event among %d events", f.id, len(f.events))
	return service.HistoryEvent{}
}

func (f *fakeSession) lastSidebar(t *testing.T) service.ConversationEvent {
	t.Helper()
	for i := len(f.events) - 1; i >= 0; i-- {
		if e, ok := f.events[i].(service.ConversationEvent); ok {
			return e
		}
	}
	t.Fatalf("session %s: no conversation event among %d events", f.id, len(f.events))
	return service.ConversationEvent{}
}

type fixture struct {
	db       *sql.DB
	registry *presence.Registry
	chat     *service.ChatService
	users    *sqlite.UserRepo
	convs    *sqlite.ConversationRepo
	msgs     *sqlite.MessageRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	registry := presence.NewRegistry()
	users := sqlite.NewUserRepo(db)
	convs := sqlite.NewConversationRepo(db)
	msgs := sqlite.NewMessageRepo(db)
	summaries := service.NewSummaryService(convs, msgs, users, registry)
	chat := service.NewChatService(users, convs, msgs, registry, summaries, zap.NewNop(), 100)

	return &fixture{db: db, registry: registry, chat: chat, users: users, convs: convs, msgs: msgs}
}

func (fx *fixture) seedUser(t *testing.T, username string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, HashedPassword: "x"}
	require.NoError(t, fx.users.Create(context.Background(), u))
	return u
}

func (fx *fixture) connect(id string, userID int64) *fakeSession {
	s := &fakeSession{id: id, userID: userID}
	fx.registry.Add(s)
	return s
}

func TestSendMessageFanout(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	alice := fx.seedUser(t, "alice")
	bob := fx.seedUser(t, "bob")

	// Alice has two tabs open; every one of her sessions gets the push.
	aliceTab1 := fx.connect("a1", alice.ID)
	aliceTab2 := fx.connect("a2", alice.ID)
	bobTab := fx.connect("b1", bob.ID)

	require.NoError(t, fx.chat.SendMessage(ctx, alice.ID, service.SendMessageInput{
		ReceiverID: bob.ID,
		Text:       "hi",
	}))

	for _, sess := range []*fakeSession{aliceTab1, aliceTab2, bobTab} {
		history := sess.lastHistory(t)
		require.NotEmpty(t, history.Messages)
		last := history.Messages[len(history.Messages)-1]
		assert.Equal(t, "hi", last.Text)
		assert.Equal(t, alice.ID, last.AuthorID)
		assert.False(t, last.Seen)
	}

	// Each side gets its own perspective, not a shared payload.
	aliceSidebar := aliceTab1.lastSidebar(t)
	require.Len(t, aliceSidebar.Conversations, 1)
	assert.Equal(t, bob.ID, aliceSidebar.Conversations[0].PartnerID)
	assert.Equal(t, 0, aliceSidebar.Conversations[0].UnseenCount)
	assert.True(t, aliceSidebar.Conversations[0].Online)

	bobSidebar := bobTab.lastSidebar(t)
	require.Len(t, bobSidebar.Conversations, 1)
	assert.Equal(t, alice.ID, bobSidebar.Conversations[0].PartnerID)
	assert.Equal(t, 1, bobSidebar.Conversations[0].UnseenCount)
}

func TestSendMessageOfflineReceiverStillPersists(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	alice := fx.seedUser(t, "alice")
	bob := fx.seedUser(t, "bob")

	aliceTab := fx.connect("a1", alice.ID)

	require.NoError(t, fx.chat.SendMessage(ctx, alice.ID, service.SendMessageInput{
		ReceiverID: bob.ID,
		Text:       "you there?",
	}))

	// Alice's own sidebar updated even though bob is offline.
	sidebar := aliceTab.lastSidebar(t)
	require.Len(t, sidebar.Conversations, 1)
	assert.False(t, sidebar.Conversations[0].Online)

	// Bob connects later and fetches: the message is there.
	bobTab := fx.connect("b1", bob.ID)
	require.NoError(t, fx.chat.FetchHistory(ctx, bobTab, alice.ID))

	history := bobTab.lastHistory(t)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "you there?", history.Messages[0].Text)
}

func TestSendMessageValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	alice := fx.seedUser(t, "alice")
	bob := fx.seedUser(t, "bob")
	aliceTab := fx.connect("a1", alice.ID)

	// No content at all.
	err := fx.chat.SendMessage(ctx, alice.ID, service.SendMessageInput{ReceiverID: bob.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Unknown receiver.
	err = fx.chat.SendMessage(ctx, alice.ID, service.SendMessageInput{ReceiverID: 9999, Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Nothing persisted, nothing pushed.
	conv, err := fx.convs.GetByPair(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, conv)
	assert.Empty(t, aliceTab.Events())
}

func TestMarkSeenRefreshesBothSides(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	alice := fx.seedUser(t, "alice")
	bob := fx.seedUser(t, "bob")

	aliceTab := fx.connect("a1", alice.ID)
	bobTab := fx.connect("b1", bob.ID)

	require.NoError(t, fx.chat.SendMessage(ctx, alice.ID, service.SendMessageInput{
		ReceiverID: bob.ID,
		Text:       "hi",
	}))
	require.Equal(t, 1, bobTab.lastSidebar(t).Conversations[0].UnseenCount)

	// Bob reads alice's messages.
	require.NoError(t, fx.chat.MarkSeen(ctx, bob.ID, alice.ID))

	assert.Equal(t, 0, bobTab.lastSidebar(t).Conversations[0].UnseenCount)
	// The author is informed their messages were read.
	assert.Equal(t, 0, aliceTab.lastSidebar(t).Conversations[0].UnseenCount)

	// Both parties now see the message as seen.
	require.NoError(t, fx.chat.FetchHistory(ctx, aliceTab, bob.ID))
	history := aliceTab.lastHistory(t)
	require.Len(t, history.Messages, 1)
	assert.True(t, history.Messages[0].Seen)

	// Applying it again changes nothing.
	require.NoError(t, fx.chat.MarkSeen(ctx, bob.ID, alice.ID))
	require.NoError(t, fx.chat.FetchHistory(ctx, bobTab, alice.ID))
	history = bobTab.lastHistory(t)
	require.Len(t, history.Messages, 1)
	assert.True(t, history.Messages[0].Seen)
}

func TestMarkSeenWithoutConversation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	alice := fx.seedUser(t, "alice")
	bob := fx.seedUser(t, "bob")
	fx.connect("a1", alice.ID)

	// No conversation yet: nothing to flag, no failure.
	require.NoError(t, fx.chat.MarkSeen(ctx, alice.ID, bob.ID))
}

func TestFetchHistoryProfileThenMessages(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	alice := fx.seedUser(t, "alice")
	bob := fx.seedUser(t, "bob")

	aliceTab := fx.connect("a1", alice.ID)
	fx.connect("b1", bob.ID)

	require.NoError(t, fx.chat.FetchHistory(ctx, aliceTab, bob.ID))

	events := aliceTab.Events()
	require.Len(t, events, 2)

	profile, ok := events[0].(service.ProfileEvent)
	require.True(t, ok, "first event must be the profile")
	assert.Equal(t, bob.ID, profile.User.ID)
	assert.Equal(t, "bob", profile.User.Username)
	assert.True(t, profile.Online)

	history, ok := events[1].(service.HistoryEvent)
	require.True(t, ok, "second event must be the history")
	assert.Empty(t, history.Messages)
}

func TestFetchHistoryUnknownTarget(t *testing.T) {
	fx := newFixture(t)

	alice := fx.seedUser(t, "alice")
	aliceTab := fx.connect("a1", alice.ID)

	err := fx.chat.FetchHistory(context.Background(), aliceTab, 9999)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, aliceTab.Events())
}

func TestSidebarAnswersOnlyRequester(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	alice := fx.seedUser(t, "alice")
	bob := fx.seedUser(t, "bob")

	aliceTab1 := fx.connect("a1", alice.ID)
	aliceTab2 := fx.connect("a2", alice.ID)

	require.NoError(t, fx.chat.SendMessage(ctx, alice.ID, service.SendMessageInput{
		ReceiverID: bob.ID,
		Text:       "hi",
	}))

	before := len(aliceTab2.Events())
	require.NoError(t, fx.chat.Sidebar(ctx, aliceTab1))

	assert.Len(t, aliceTab2.Events(), before, "other sessions must not receive the reply")
	sidebar := aliceTab1.lastSidebar(t)
	require.Len(t, sidebar.Conversations, 1)
	assert.Equal(t, bob.ID, sidebar.Conversations[0].PartnerID)
}

func TestAnnouncePresenceSnapshot(t *testing.T) {
	fx := newFixture(t)

	alice := fx.seedUser(t, "alice")
	bob := fx.seedUser(t, "bob")

	aliceTab := fx.connect("a1", alice.ID)
	bobTab := fx.connect("b1", bob.ID)

	fx.chat.AnnouncePresence()

	for _, sess := range []*fakeSession{aliceTab, bobTab} {
		events := sess.Events()
		require.NotEmpty(t, events)
		snap, ok := events[len(events)-1].(service.PresenceEvent)
		require.True(t, ok)
		assert.Equal(t, []int64{alice.ID, bob.ID}, snap.Online)
	}

	// After bob's last session goes, the snapshot shrinks.
	fx.registry.Remove(bobTab)
	fx.chat.AnnouncePresence()

	events := aliceTab.Events()
	snap := events[len(events)-1].(service.PresenceEvent)
	assert.Equal(t, []int64{alice.ID}, snap.Online)
}
