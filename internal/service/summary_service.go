package service

import (
	"context"
	"fmt"

	"chatcore/internal/domain"
	"chatcore/internal/presence"
)

// SummaryService derives a user's sidebar view from the conversation
// store, the user directory, and the presence registry. It holds no state
// of its own.
type SummaryService struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	users         domain.UserRepository
	registry      *presence.Registry
}

func NewSummaryService(
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	registry *presence.Registry,
) *SummaryService {
	return &SummaryService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		registry:      registry,
	}
}

// Summarize returns one row per conversation partner, most recently
// updated conversation first. The unseen count is the number of partner
// messages the viewer has not seen yet. Partners that no longer resolve
// to a user are skipped rather than failing the whole view.
func (s *SummaryService) Summarize(ctx context.Context, userID int64) ([]domain.ConversationSummary, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]domain.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		partnerID := conv.PartnerOf(userID)

		partner, err := s.users.GetByID(ctx, partnerID)
		if err != nil {
			return nil, fmt.Errorf("get partner %d: %w", partnerID, err)
		}
		if partner == nil {
			continue
		}

		last, err := s.messages.LatestForConversation(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("latest message: %w", err)
		}

		unseen, err := s.messages.CountUnseenFrom(ctx, conv.ID, partnerID)
		if err != nil {
			return nil, fmt.Errorf("count unseen: %w", err)
		}

		summaries = append(summaries, domain.ConversationSummary{
			ConversationID: conv.ID,
			PartnerID:      partnerID,
			Partner:        partner.Profile(),
			LastMessage:    last,
			UnseenCount:    unseen,
			Online:         s.registry.IsOnline(partnerID),
			UpdatedAt:      conv.UpdatedAt,
		})
	}
	return summaries, nil
}
