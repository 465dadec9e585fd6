package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/seatswap/internal/model"
)

const (
	MaxMessageLen = 2000
	previewLen    = 100
)

// MessageStore persists messages.  Create also bumps the conversation
// and un-archives it for the recipient.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message, recipientID uint64) error
	ListByConversation(ctx context.Context, conversationID, beforeID uint64, limit int) ([]model.Message, error)
}

// ConversationReader loads a conversation with its participants.
type ConversationReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Conversation, error)
}

// RealtimePublisher pushes a persisted message to subscribers of its
// conversation.
type RealtimePublisher interface {
	PublishMessage(ctx context.Context, m model.Message) error
}

type MessageService struct {
	convs    ConversationReader
	msgs     MessageStore
	users    UserStore
	notify   *Dispatcher
	realtime RealtimePublisher
	log      *slog.Logger
}

// NewMessageService wires a MessageService.  realtime may be nil.
func NewMessageService(convs ConversationReader, msgs MessageStore, users UserStore, notify *Dispatcher, realtime RealtimePublisher, log *slog.Logger) *MessageService {
	return &MessageService{convs: convs, msgs: msgs, users: users, notify: notify, realtime: realtime, log: log}
}

// Send stores a message from senderID, then publishes it and notifies
// the other participant.  Neither side effect can fail the send.
func (s *MessageService) Send(ctx context.Context, conversationID, senderID uint64, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationf("text is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		return nil, validationf("text must be at most %d characters", MaxMessageLen)
	}
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, translate(err)
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrForbidden
	}
	if conv.Status != model.ConversationActive {
		return nil, ErrConflict
	}
	recipientID := conv.OtherParticipant(senderID)

	m := &model.Message{ConversationID: conversationID, SenderID: senderID, Text: text}
	if err := s.msgs.Create(ctx, m, recipientID); err != nil {
		return nil, err
	}

	if s.realtime != nil {
		if err := s.realtime.PublishMessage(ctx, *m); err != nil {
			s.log.Warn("publish message", "conversation_id", conversationID, "message_id", m.ID, "err", err)
		}
	}
	senderName := "Someone"
	if u, err := s.users.GetByID(ctx, senderID); err == nil && u.Name != "" {
		senderName = u.Name
	}
	s.notify.NotifyMessage(ctx, recipientID, conversationID, m.ID, senderName, preview(text))
	return m, nil
}

// List pages backwards through a conversation, newest first.
func (s *MessageService) List(ctx context.Context, conversationID, userID, beforeID uint64, limit int) ([]model.Message, error) {
	if limit < 1 || limit > 100 {
		return nil, validationf("limit must be between 1 and 100")
	}
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, translate(err)
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrForbidden
	}
	out, err := s.msgs.ListByConversation(ctx, conversationID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Message{}
	}
	return out, nil
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLen {
		return text
	}
	r := []rune(text)
	return string(r[:previewLen]) + "…"
}
