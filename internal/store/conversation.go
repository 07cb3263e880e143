package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "property-concierge/internal/common/errors"
	"property-concierge/internal/models"
)

type ConversationStore struct {
	db     *sql.DB
	logger Logger
}

func NewConversationStore(db *sql.DB, log Logger) *ConversationStore {
	return &ConversationStore{
		db: db,
		logger: log.With(map[string]interface{}{
			"component": "conversation-store",
		}),
	}
}

const findHomeQuery = `
	SELECT id, user_id, property_id, title, created_at, updated_at
	FROM conversations
	WHERE user_id = $1 AND property_id IS NULL
	ORDER BY created_at DESC
	LIMIT 1`

// FindHome looks up the user's home conversation. Absence is a NotFound
// error; get-or-create callers treat it as "go create one".
func (s *ConversationStore) FindHome(ctx context.Context, userID string) (models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, findHomeQuery, userID)
	return s.scanConversation(row, "home conversation", userID)
}

const findForPropertyQuery = `
	SELECT id, user_id, property_id, title, created_at, updated_at
	FROM conversations
	WHERE user_id = $1 AND property_id = $2
	ORDER BY created_at DESC
	LIMIT 1`

// FindForProperty looks up the user's conversation for one property.
func (s *ConversationStore) FindForProperty(ctx context.Context, userID, propertyID string) (models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, findForPropertyQuery, userID, propertyID)
	return s.scanConversation(row, "property conversation", userID+"/"+propertyID)
}

const getConversationQuery = `
	SELECT id, user_id, property_id, title, created_at, updated_at
	FROM conversations
	WHERE id = $1`

// GetByID fetches one conversation by primary key.
func (s *ConversationStore) GetByID(ctx context.Context, id string) (models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, getConversationQuery, id)
	return s.scanConversation(row, "conversation", id)
}

const insertConversationQuery = `
	INSERT INTO conversations (id, user_id, property_id, title, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5)
	ON CONFLICT DO NOTHING`

// Create inserts a new conversation. A unique-constraint conflict (another
// request created the same thread first) is not an error: created reports
// whether this call actually inserted the row, and the caller re-selects
// when it did not.
func (s *ConversationStore) Create(ctx context.Context, userID string, propertyID *string, title string) (created bool, err error) {
	now := time.Now().UTC()

	var pid sql.NullString
	if propertyID != nil {
		pid = sql.NullString{String: *propertyID, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, insertConversationQuery, uuid.NewString(), userID, pid, title, now)
	if err != nil {
		return false, apperrors.NewStorageError("create conversation", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError("create conversation", err)
	}
	return affected > 0, nil
}

const touchConversationQuery = `
	UPDATE conversations SET updated_at = $2 WHERE id = $1`

// Touch bumps updated_at to mark a completed exchange.
func (s *ConversationStore) Touch(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, touchConversationQuery, id, time.Now().UTC()); err != nil {
		return apperrors.NewStorageError("touch conversation", err)
	}
	return nil
}

func (s *ConversationStore) scanConversation(row rowScanner, resource, id string) (models.Conversation, error) {
	var c models.Conversation
	var propertyID sql.NullString

	err := row.Scan(&c.ID, &c.UserID, &propertyID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Conversation{}, apperrors.NewNotFoundError(resource, id)
	}
	if err != nil {
		return models.Conversation{}, apperrors.NewStorageError("get conversation", err)
	}
	if propertyID.Valid {
		c.PropertyID = &propertyID.String
	}
	return c, nil
}
