package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatcore/internal/domain"
	"chatcore/internal/presence"
	"chatcore/internal/security"
	"chatcore/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// MakeHandler returns the HTTP handler for the /ws endpoint.
// Authentication via Bearer token (Authorization header or
// Sec-WebSocket-Protocol) completes before any event is read; a rejected
// connection is never registered. Inbound events:
//   - history -> target profile + message history, to this session only
//   - send    -> persist + fan out history and sidebars to both sides
//   - sidebar -> this user's summary list, to this session only
//   - seen    -> mark author's messages seen + refresh both sidebars
func MakeHandler(
	registry *presence.Registry,
	tokens *security.TokenService,
	users domain.UserRepository,
	chat *service.ChatService,
	logger *zap.Logger,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sub, err := tokens.Subject(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := users.GetByUsername(ctx, sub)
		if err != nil || user == nil || !user.IsActive {
			http.Error(w, "user not found or inactive", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := newSession(user.ID, conn)
		registry.Add(sess)
		logger.Info("session connected",
			zap.String("session", sess.ID()),
			zap.Int64("user", user.ID))

		defer func() {
			registry.Remove(sess)
			if err := users.TouchLastSeen(context.Background(), user.ID); err != nil {
				logger.Warn("touch last seen", zap.Int64("user", user.ID), zap.Error(err))
			}
			chat.AnnouncePresence()
			logger.Info("session disconnected",
				zap.String("session", sess.ID()),
				zap.Int64("user", user.ID))
		}()
		chat.AnnouncePresence()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}

			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				sendError(sess, "invalid event")
				continue
			}

			switch env.Type {

			case eventHistory:
				req, err := decodeEvent[historyRequest](raw)
				if err != nil {
					logger.Warn("history event rejected", zap.Int64("user", user.ID), zap.Error(err))
					sendError(sess, "history requires a valid target_id")
					continue
				}
				if err := chat.FetchHistory(ctx, sess, req.TargetID); err != nil {
					logger.Warn("fetch history", zap.Int64("user", user.ID), zap.Error(err))
					sendError(sess, "failed to fetch history")
				}

			case eventSend:
				req, err := decodeEvent[sendRequest](raw)
				if err != nil {
					logger.Warn("send event rejected", zap.Int64("user", user.ID), zap.Error(err))
					sendError(sess, "send requires a valid receiver_id and content")
					continue
				}
				err = chat.SendMessage(ctx, user.ID, service.SendMessageInput{
					ReceiverID: req.ReceiverID,
					Text:       req.Text,
					ImageURL:   req.ImageURL,
					VideoURL:   req.VideoURL,
				})
				if err != nil {
					logger.Warn("send message", zap.Int64("user", user.ID), zap.Error(err))
					sendError(sess, "failed to send message")
				}

			case eventSidebar:
				if _, err := decodeEvent[sidebarRequest](raw); err != nil {
					logger.Warn("sidebar event rejected", zap.Int64("user", user.ID), zap.Error(err))
					sendError(sess, "invalid sidebar payload")
					continue
				}
				if err := chat.Sidebar(ctx, sess); err != nil {
					logger.Warn("sidebar", zap.Int64("user", user.ID), zap.Error(err))
					sendError(sess, "failed to load sidebar")
				}

			case eventSeen:
				req, err := decodeEvent[seenRequest](raw)
				if err != nil {
					logger.Warn("seen event rejected", zap.Int64("user", user.ID), zap.Error(err))
					sendError(sess, "seen requires a valid author_id")
					continue
				}
				if err := chat.MarkSeen(ctx, user.ID, req.AuthorID); err != nil {
					logger.Warn("mark seen", zap.Int64("user", user.ID), zap.Error(err))
					sendError(sess, "failed to mark messages seen")
				}

			default:
				logger.Warn("unknown event type",
					zap.String("event", env.Type),
					zap.Int64("user", user.ID))
			}
		}
	}
}

func sendError(sess presence.Session, msg string) {
	_ = sess.Send(service.NewErrorEvent(msg))
}
