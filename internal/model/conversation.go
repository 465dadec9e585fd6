package model

import "time"

// ConversationStatus is the state of a conversation.
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "ACTIVE"
	ConversationEnded  ConversationStatus = "ENDED"
)

// Conversation is a direct-message thread between exactly two users,
// optionally about one listing.  For a given unordered user pair and
// listing (including no listing) at most one conversation exists; the
// `conversations` table enforces that with a unique key on
// (user_low, user_high, listing_key).
type Conversation struct {
	ID           uint64                    `json:"id"`           // conversations.id
	ListingID    *uint64                   `json:"listing_id"`   // conversations.listing_id (nullable)
	Status       ConversationStatus        `json:"status"`       // conversations.status
	Participants []ConversationParticipant `json:"participants"` // conversation_participants rows
	CreatedAt    time.Time                 `json:"created_at"`   // conversations.created_at
	UpdatedAt    time.Time                 `json:"updated_at"`   // conversations.updated_at
}

// ConversationParticipant links a user to a conversation.  Archived is
// per user and independent of the other participant's flag.
type ConversationParticipant struct {
	ConversationID uint64 `json:"conversation_id"` // conversation_participants.conversation_id
	UserID         uint64 `json:"user_id"`         // conversation_participants.user_id
	Archived       bool   `json:"archived"`        // conversation_participants.archived
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID uint64) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID, or 0.
func (c *Conversation) OtherParticipant(userID uint64) uint64 {
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p.UserID
		}
	}
	return 0
}

// PairKey returns the participant ids in ascending order.  Together
// with the listing id it forms the conversation dedup key.
func PairKey(a, b uint64) (low, high uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// Message is a single direct message inside a conversation.
type Message struct {
	ID             uint64    `json:"id"`              // messages.id
	ConversationID uint64    `json:"conversation_id"` // messages.conversation_id
	SenderID       uint64    `json:"sender_id"`       // messages.sender_id
	Text           string    `json:"text"`            // messages.body
	CreatedAt      time.Time `json:"created_at"`      // messages.created_at
}
