package models

import "time"

// Conversation is one chat thread for a user. PropertyID is nil for the
// single "home" conversation; otherwise it points at exactly one property.
// A user has at most one conversation per target.
type Conversation struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	PropertyID *string   `json:"propertyId"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsHome reports whether this is the user's home conversation.
func (c Conversation) IsHome() bool {
	return c.PropertyID == nil
}
