package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seatswap/internal/model"
)

// MessageEvent is the JSON published on a conversation channel.
type MessageEvent struct {
	ID             string        `json:"id"`
	Type           string        `json:"type"`
	ConversationID uint64        `json:"conversation_id"`
	Message        model.Message `json:"message"`
	SentAt         time.Time     `json:"sent_at"`
}

// ConversationChannel is the pub/sub channel clients of a conversation
// subscribe to.
func ConversationChannel(conversationID uint64) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

// RedisPublisher publishes message events over Redis pub/sub.  A nil
// client turns it into a no-op.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher { return &RedisPublisher{rdb: rdb} }

func (p *RedisPublisher) PublishMessage(ctx context.Context, m model.Message) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	body, err := json.Marshal(MessageEvent{
		ID:             uuid.NewString(),
		Type:           "message.created",
		ConversationID: m.ConversationID,
		Message:        m,
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, ConversationChannel(m.ConversationID), body).Err()
}
