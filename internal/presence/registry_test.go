package presence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatcore/internal/presence"
)

type stubSession struct {
	id     string
	userID int64
}

func (s *stubSession) ID() string     { return s.id }
func (s *stubSession) UserID() int64  { return s.userID }
func (s *stubSession) Send(any) error { return nil }

func TestRegistryMultiSession(t *testing.T) {
	r := presence.NewRegistry()

	tab1 := &stubSession{id: "s1", userID: 7}
	tab2 := &stubSession{id: "s2", userID: 7}

	r.Add(tab1)
	r.Add(tab2)
	assert.True(t, r.IsOnline(7))
	assert.Len(t, r.Route(7), 2)

	// Still online while one session remains.
	r.Remove(tab1)
	assert.True(t, r.IsOnline(7))
	assert.Len(t, r.Route(7), 1)

	r.Remove(tab2)
	assert.False(t, r.IsOnline(7))
	assert.Empty(t, r.Route(7))
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := presence.NewRegistry()
	s := &stubSession{id: "s1", userID: 1}

	r.Add(s)
	r.Remove(s)
	r.Remove(s)

	assert.False(t, r.IsOnline(1))
	assert.Empty(t, r.Snapshot())
}

func TestRegistrySnapshot(t *testing.T) {
	r := presence.NewRegistry()

	r.Add(&stubSession{id: "a", userID: 3})
	r.Add(&stubSession{id: "b", userID: 1})
	r.Add(&stubSession{id: "c", userID: 1})
	r.Add(&stubSession{id: "d", userID: 2})
	r.Remove(&stubSession{id: "d", userID: 2})

	assert.Equal(t, []int64{1, 3}, r.Snapshot())
	assert.Len(t, r.Sessions(), 3)
}

func TestRegistryRouteOffline(t *testing.T) {
	r := presence.NewRegistry()
	assert.Empty(t, r.Route(42))
	assert.False(t, r.IsOnline(42))
}
