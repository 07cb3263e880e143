// Package session owns conversation lifecycle: one home conversation per
// user, one conversation per (user, property) pair, and the message history
// attached to each.
package session

import (
	"context"
	"fmt"

	apperrors "property-concierge/internal/common/errors"
	"property-concierge/internal/models"
	"property-concierge/internal/store"
)

const homeTitle = "Home Chat"

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Manager struct {
	conversations *store.ConversationStore
	properties    *store.PropertyStore
	messages      *store.MessageStore
	logger        Logger
}

func NewManager(conversations *store.ConversationStore, properties *store.PropertyStore, messages *store.MessageStore, log Logger) *Manager {
	return &Manager{
		conversations: conversations,
		properties:    properties,
		messages:      messages,
		logger: log.With(map[string]interface{}{
			"component": "session",
		}),
	}
}

// GetOrCreateHome returns the user's single home conversation, creating it
// on first use. Safe under concurrent duplicate calls: the insert is
// conflict-tolerant and every path ends with a re-select, so all callers
// converge on the same row.
func (m *Manager) GetOrCreateHome(ctx context.Context, userID string) (models.Conversation, error) {
	conv, err := m.conversations.FindHome(ctx, userID)
	if err == nil {
		return conv, nil
	}
	if !apperrors.IsNotFound(err) {
		return models.Conversation{}, err
	}

	if _, err := m.conversations.Create(ctx, userID, nil, homeTitle); err != nil {
		return models.Conversation{}, err
	}
	return m.conversations.FindHome(ctx, userID)
}

// GetOrCreateForProperty returns the user's conversation for one property,
// creating it on first use. The property must exist; NotFound propagates.
func (m *Manager) GetOrCreateForProperty(ctx context.Context, userID, propertyID string) (models.Conversation, error) {
	conv, err := m.conversations.FindForProperty(ctx, userID, propertyID)
	if err == nil {
		return conv, nil
	}
	if !apperrors.IsNotFound(err) {
		return models.Conversation{}, err
	}

	property, err := m.properties.GetByID(ctx, propertyID)
	if err != nil {
		return models.Conversation{}, err
	}

	title := fmt.Sprintf("Chat for: %s", property.Name)
	if _, err := m.conversations.Create(ctx, userID, &propertyID, title); err != nil {
		return models.Conversation{}, err
	}
	return m.conversations.FindForProperty(ctx, userID, propertyID)
}

// SwitchTo loads a conversation and its full history in creation order.
// Callers replace, never merge, whatever history they held before.
func (m *Manager) SwitchTo(ctx context.Context, conversationID string) (models.Conversation, []models.Message, error) {
	conv, err := m.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, nil, err
	}

	history, err := m.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, nil, err
	}
	return conv, history, nil
}

// History returns the conversation's messages in creation order.
func (m *Manager) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	return m.messages.ListByConversation(ctx, conversationID)
}

// AppendMessage persists one message. Roles are not required to alternate.
func (m *Manager) AppendMessage(ctx context.Context, conversationID string, role models.Role, content string, metadata []byte) (models.Message, error) {
	return m.messages.Append(ctx, conversationID, role, content, metadata)
}

// GetProperty resolves a property record by id.
func (m *Manager) GetProperty(ctx context.Context, id string) (models.Property, error) {
	return m.properties.GetByID(ctx, id)
}

// Touch marks a completed exchange on the conversation.
func (m *Manager) Touch(ctx context.Context, conversationID string) error {
	return m.conversations.Touch(ctx, conversationID)
}
