package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "property-concierge/internal/common/errors"
	"property-concierge/internal/models"
)

type MessageStore struct {
	db     *sql.DB
	logger Logger
}

func NewMessageStore(db *sql.DB, log Logger) *MessageStore {
	return &MessageStore{
		db: db,
		logger: log.With(map[string]interface{}{
			"component": "message-store",
		}),
	}
}

const insertMessageQuery = `
	INSERT INTO messages (id, conversation_id, role, content, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Append persists one message and returns it with id and timestamp filled.
// Messages are append-only; there is no update path.
func (s *MessageStore) Append(ctx context.Context, conversationID string, role models.Role, content string, metadata []byte) (models.Message, error) {
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}

	var meta interface{}
	if len(metadata) > 0 {
		meta = metadata
	}

	_, err := s.db.ExecContext(ctx, insertMessageQuery,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, meta, msg.CreatedAt)
	if err != nil {
		return models.Message{}, apperrors.NewStorageError("append message", err)
	}
	return msg, nil
}

const listMessagesQuery = `
	SELECT id, conversation_id, role, content, metadata, created_at
	FROM messages
	WHERE conversation_id = $1
	ORDER BY created_at ASC`

// ListByConversation returns the full history in insertion order.
func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, listMessagesQuery, conversationID)
	if err != nil {
		return nil, apperrors.NewStorageError("list messages", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		var metadata sql.NullString

		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &metadata, &m.CreatedAt); err != nil {
			return nil, apperrors.NewStorageError("scan message", err)
		}
		m.Role = models.Role(role)
		if metadata.Valid {
			m.Metadata = []byte(metadata.String)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list messages", err)
	}
	return messages, nil
}
