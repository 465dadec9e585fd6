package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/seatswap/internal/model"
)

// NotificationStore persists alerts.  MarkRead and MarkAllRead report
// how many rows changed.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID uint64) (int64, error)
	MarkRead(ctx context.Context, id, userID uint64) (int64, error)
	MarkAllRead(ctx context.Context, userID uint64) (int64, error)
}

// UserStore is the read side of users the services need.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// EmailSender hands an email to the outbound channel.  Delivery is not
// confirmed.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// emailTimeout bounds a single queued send.
const emailTimeout = 10 * time.Second

// Dispatcher turns messages and matches into persisted notifications and
// optional emails.  The Notify methods never return errors: failures are
// logged and the triggering request carries on.
type Dispatcher struct {
	store NotificationStore
	users UserStore
	mail  EmailSender
	log   *slog.Logger
	spawn runner
}

// NewDispatcher wires a Dispatcher.  mail may be nil, which disables
// email entirely.
func NewDispatcher(store NotificationStore, users UserStore, mail EmailSender, log *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, users: users, mail: mail, log: log, spawn: goRunner}
}

// NotifyMessage alerts recipientID about a new message.
func (d *Dispatcher) NotifyMessage(ctx context.Context, recipientID, conversationID, messageID uint64, senderName, preview string) {
	payload := model.MessagePayload{
		ConversationID: conversationID,
		MessageID:      messageID,
		SenderName:     senderName,
		Preview:        preview,
	}
	title := fmt.Sprintf("New message from %s", senderName)
	d.dispatch(ctx, recipientID, model.NotificationMessage, title, preview, payload)
}

// NotifyMatch alerts userID that matchedListingID fits listingID.
func (d *Dispatcher) NotifyMatch(ctx context.Context, userID, listingID, matchedListingID uint64, score int, description string) {
	payload := model.MatchPayload{
		ListingID:        listingID,
		MatchedListingID: matchedListingID,
		Score:            score,
		Description:      description,
	}
	d.dispatch(ctx, userID, model.NotificationMatch, "New seat match", description, payload)
}

func (d *Dispatcher) dispatch(ctx context.Context, userID uint64, typ model.NotificationType, title, body string, payload any) {
	log := d.log.With("user_id", userID, "type", typ)
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("encode notification payload", "err", err)
		return
	}
	n := &model.Notification{UserID: userID, Type: typ, Title: title, Body: body, Data: data}
	if err := d.store.Create(ctx, n); err != nil {
		log.Warn("persist notification", "err", err)
	}
	if d.mail == nil {
		return
	}
	u, err := d.users.GetByID(ctx, userID)
	if err != nil {
		log.Warn("load notification recipient", "err", err)
		return
	}
	if !u.EmailNotifications || u.Email == "" {
		return
	}
	to := u.Email
	d.spawn(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailTimeout)
		defer cancel()
		if err := d.mail.Send(ctx, to, title, body); err != nil {
			log.Warn("queue notification email", "err", err)
		}
	})
}

// List returns the newest notifications of userID first.
func (d *Dispatcher) List(ctx context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit < 1 || limit > 100 {
		return nil, validationf("limit must be between 1 and 100")
	}
	out, err := d.store.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Notification{}
	}
	return out, nil
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	return d.store.CountUnread(ctx, userID)
}

// MarkRead marks one notification as read.  Ownership is part of the
// update predicate, so an id that belongs to someone else changes
// nothing and is not an error.
func (d *Dispatcher) MarkRead(ctx context.Context, id, userID uint64) error {
	_, err := d.store.MarkRead(ctx, id, userID)
	return err
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	return d.store.MarkAllRead(ctx, userID)
}
