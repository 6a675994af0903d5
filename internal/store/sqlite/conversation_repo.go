package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"chatcore/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

// canonicalPair orders an unordered pair so lookups and the unique index
// see the same key regardless of argument order.
func canonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func (r *ConversationRepo) FindOrCreate(ctx context.Context, userA, userB int64) (*domain.Conversation, error) {
	low, high := canonicalPair(userA, userB)

	conv, err := r.getCanonical(ctx, low, high)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	// INSERT OR IGNORE plus the unique index makes the create path safe
	// when both participants race it; the loser re-reads the winner's row.
	if _, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversations (user_low, user_high, created_at, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, low, high); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	conv, err = r.getCanonical(ctx, low, high)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation (%d,%d) missing after insert: %w", low, high, domain.ErrStore)
	}
	return conv, nil
}

func (r *ConversationRepo) GetByPair(ctx context.Context, userA, userB int64) (*domain.Conversation, error) {
	low, high := canonicalPair(userA, userB)
	return r.getCanonical(ctx, low, high)
}

func (r *ConversationRepo) getCanonical(ctx context.Context, low, high int64) (*domain.Conversation, error) {
	query := `
		SELECT id, user_low, user_high, created_at, updated_at
		FROM conversations
		WHERE user_low = ? AND user_high = ?
	`
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, query, low, high).Scan(
		&c.ID,
		&c.UserLow,
		&c.UserHigh,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	query := `
		SELECT id, user_low, user_high, created_at, updated_at
		FROM conversations
		WHERE user_low = ? OR user_high = ?
		ORDER BY updated_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		if err := rows.Scan(
			&c.ID,
			&c.UserLow,
			&c.UserHigh,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
