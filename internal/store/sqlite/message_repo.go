package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"chatcore/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, author_id, text, image_url, video_url, seen, created_at)
		VALUES (?, ?, ?, ?, ?, 0, CURRENT_TIMESTAMP)
	`, m.ConversationID, m.AuthorID, m.Text, m.ImageURL, m.VideoURL)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	m.Seen = false

	// The conversation's recency drives sidebar ordering.
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, m.ConversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, author_id, text, image_url, video_url, seen, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) LatestForConversation(ctx context.Context, conversationID int64) (*domain.Message, error) {
	query := `
		SELECT id, conversation_id, author_id, text, image_url, video_url, seen, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, conversationID)
	m := &domain.Message{}
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.AuthorID,
		&m.Text,
		&m.ImageURL,
		&m.VideoURL,
		&m.Seen,
		&m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	return m, nil
}

// MarkSeenByAuthor only ever sets seen; there is no path back to unseen,
// so repeated calls are idempotent.
func (r *MessageRepo) MarkSeenByAuthor(ctx context.Context, conversationID, authorID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET seen = 1
		WHERE conversation_id = ? AND author_id = ? AND seen = 0
	`, conversationID, authorID)
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (r *MessageRepo) CountUnseenFrom(ctx context.Context, conversationID, authorID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = ? AND author_id = ? AND seen = 0
	`, conversationID, authorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unseen: %w", err)
	}
	return count, nil
}

func scanMessage(rows *sql.Rows) (*domain.Message, error) {
	m := &domain.Message{}
	if err := rows.Scan(
		&m.ID,
		&m.ConversationID,
		&m.AuthorID,
		&m.Text,
		&m.ImageURL,
		&m.VideoURL,
		&m.Seen,
		&m.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return m, nil
}
