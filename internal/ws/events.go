package ws

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"chatcore/internal/domain"
)

// Inbound event types. Each carries a flat JSON payload next to its
// "type" tag; malformed shapes are rejected before business logic runs.
const (
	eventHistory = "history"
	eventSend    = "send"
	eventSidebar = "sidebar"
	eventSeen    = "seen"
)

var validate = validator.New()

// envelope is decoded first to learn which payload variant follows.
type envelope struct {
	Type string `json:"type"`
}

type historyRequest struct {
	TargetID int64 `json:"target_id" validate:"required,gt=0"`
}

type sendRequest struct {
	ReceiverID int64  `json:"receiver_id" validate:"required,gt=0"`
	Text       string `json:"text" validate:"max=5000"`
	ImageURL   string `json:"image_url" validate:"omitempty,url"`
	VideoURL   string `json:"video_url" validate:"omitempty,url"`
}

type seenRequest struct {
	AuthorID int64 `json:"author_id" validate:"required,gt=0"`
}

// sidebarRequest has no fields; the requester is the session identity.
type sidebarRequest struct{}

func decodeEvent[T any](raw []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %v: %w", err, domain.ErrInvalidInput)
	}
	if err := validate.Struct(&v); err != nil {
		return nil, fmt.Errorf("validate payload: %v: %w", err, domain.ErrInvalidInput)
	}
	return &v, nil
}
