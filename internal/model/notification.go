package model

import (
	"encoding/json"
	"time"
)

// NotificationType enumerates the kinds of alerts the dispatcher creates.
type NotificationType string

const (
	NotificationMessage NotificationType = "MESSAGE"
	NotificationMatch   NotificationType = "MATCH"
)

// Notification is an alert persisted for a recipient.  Data holds an
// opaque JSON payload (MessagePayload or MatchPayload).  Only IsRead is
// ever updated after creation.
type Notification struct {
	ID        uint64           `json:"id"`         // notifications.id
	UserID    uint64           `json:"user_id"`    // notifications.user_id
	Type      NotificationType `json:"type"`       // notifications.type
	Title     string           `json:"title"`      // notifications.title
	Body      string           `json:"body"`       // notifications.body
	Data      json.RawMessage  `json:"data"`       // notifications.data (JSON)
	IsRead    bool             `json:"is_read"`    // notifications.is_read
	CreatedAt time.Time        `json:"created_at"` // notifications.created_at
}

// MessagePayload is stored in Data for MESSAGE notifications.
type MessagePayload struct {
	ConversationID uint64 `json:"conversation_id"`
	MessageID      uint64 `json:"message_id"`
	SenderName     string `json:"sender_name"`
	Preview        string `json:"preview"`
}

// MatchPayload is stored in Data for MATCH notifications.
type MatchPayload struct {
	ListingID        uint64 `json:"listing_id"`
	MatchedListingID uint64 `json:"matched_listing_id"`
	Score            int    `json:"score"`
	Description      string `json:"description"`
}
