package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatcore/internal/presence"
)

// session binds one websocket connection to an authenticated user. The
// write mutex serializes Send calls because gorilla connections allow a
// single concurrent writer.
type session struct {
	id     string
	userID int64

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ presence.Session = (*session)(nil)

func newSession(userID int64, conn *websocket.Conn) *session {
	return &session{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
	}
}

func (s *session) ID() string    { return s.id }
func (s *session) UserID() int64 { return s.userID }

func (s *session) Send(payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(payload)
}
