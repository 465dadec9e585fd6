package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iliyamo/seatswap/internal/model"
	"github.com/iliyamo/seatswap/internal/repository"
)

// ConversationStore persists conversations.  Create must rely on a
// unique key over (ordered pair, listing) and report a violation as
// repository.ErrConversationExists; when a Charge is supplied it is
// applied in the same transaction.
type ConversationStore interface {
	FindByKey(ctx context.Context, a, b uint64, listingID *uint64) (*model.Conversation, error)
	Create(ctx context.Context, in repository.NewConversation) (*model.Conversation, error)
	AttachListing(ctx context.Context, id, listingID uint64) error
	GetByID(ctx context.Context, id uint64) (*model.Conversation, error)
	ListForUser(ctx context.Context, userID uint64, archived *bool, limit, offset int) ([]model.Conversation, error)
	SetArchived(ctx context.Context, conversationID, userID uint64, archived bool) error
	Complete(ctx context.Context, id, actorID uint64) (*model.Conversation, error)
}

// ListingReader loads a single listing.
type ListingReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Listing, error)
}

// ConversationCost is what starting a new conversation costs when the
// paywall is on.
const ConversationCost int64 = 1

// Coordinator finds or creates the single conversation between two users
// about a listing (or about nothing in particular).
type Coordinator struct {
	convs    ConversationStore
	users    UserStore
	listings ListingReader
	ledger   *CreditLedger
	paywall  bool
	log      *slog.Logger
}

func NewCoordinator(convs ConversationStore, users UserStore, listings ListingReader, ledger *CreditLedger, paywall bool, log *slog.Logger) *Coordinator {
	return &Coordinator{convs: convs, users: users, listings: listings, ledger: ledger, paywall: paywall, log: log}
}

// StartOrGet returns the conversation between userID and otherUserID
// about listingID (nil for none), creating it when absent.  With the
// paywall on, creation charges ConversationCost in the same transaction
// as the insert; a short balance yields *PaymentRequiredError and
// writes nothing.  Concurrent identical calls converge on one row: the
// loser of the insert race gets the winner's conversation back.
func (c *Coordinator) StartOrGet(ctx context.Context, userID, otherUserID uint64, listingID *uint64) (*model.Conversation, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	if otherUserID == 0 {
		return nil, validationf("other_user_id is required")
	}
	if otherUserID == userID {
		return nil, validationf("cannot start a conversation with yourself")
	}
	other, err := c.users.GetByID(ctx, otherUserID)
	if err != nil {
		return nil, translate(err)
	}
	if listingID != nil {
		l, err := c.listings.GetByID(ctx, *listingID)
		if err != nil {
			return nil, translate(err)
		}
		if l.OwnerID != otherUserID {
			return nil, validationf("listing %d does not belong to user %d", *listingID, otherUserID)
		}
	}

	conv, err := c.existing(ctx, userID, otherUserID, listingID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repository.ErrConversationNotFound) {
		return nil, err
	}

	in := repository.NewConversation{UserID: userID, OtherUserID: otherUserID, ListingID: listingID}
	note := fmt.Sprintf("Conversation with %s", other.Name)
	if c.paywall {
		in.Charge = &repository.Charge{UserID: userID, Amount: ConversationCost, Note: note}
	} else {
		// last look before the insert; the unique key still decides
		if conv, err := c.convs.FindByKey(ctx, userID, otherUserID, listingID); err == nil {
			return conv, nil
		}
	}

	conv, err = c.convs.Create(ctx, in)
	if errors.Is(err, repository.ErrConversationExists) {
		return c.convs.FindByKey(ctx, userID, otherUserID, listingID)
	}
	if err != nil {
		return nil, translate(err)
	}
	c.log.Info("conversation started", "conversation_id", conv.ID, "user_id", userID, "other_user_id", otherUserID, "paid", c.paywall)

	if !c.paywall {
		if err := c.ledger.RecordAudit(ctx, userID, note+" (free)"); err != nil {
			c.log.Warn("record conversation audit", "user_id", userID, "err", err)
		}
	}
	return conv, nil
}

// existing looks the conversation up by its dedup key.  A conversation
// without a listing is adopted when a listing is now supplied, unless a
// concurrent request adopts it for another listing first.
func (c *Coordinator) existing(ctx context.Context, userID, otherUserID uint64, listingID *uint64) (*model.Conversation, error) {
	conv, err := c.convs.FindByKey(ctx, userID, otherUserID, listingID)
	if err == nil || listingID == nil || !errors.Is(err, repository.ErrConversationNotFound) {
		return conv, err
	}
	bare, err := c.convs.FindByKey(ctx, userID, otherUserID, nil)
	if err != nil {
		return nil, err
	}
	switch err := c.convs.AttachListing(ctx, bare.ID, *listingID); {
	case errors.Is(err, repository.ErrConversationExists),
		errors.Is(err, repository.ErrConversationNotFound):
		// another request attached a listing first; a miss here falls
		// through to creation
		return c.convs.FindByKey(ctx, userID, otherUserID, listingID)
	case err != nil:
		return nil, err
	}
	return c.convs.GetByID(ctx, bare.ID)
}

// Get returns a conversation the caller takes part in.
func (c *Coordinator) Get(ctx context.Context, id, userID uint64) (*model.Conversation, error) {
	conv, err := c.convs.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrForbidden
	}
	return conv, nil
}

// List returns the caller's conversations, most recently updated first.
func (c *Coordinator) List(ctx context.Context, userID uint64, archived *bool, limit, offset int) ([]model.Conversation, error) {
	if limit < 1 || limit > 100 {
		return nil, validationf("limit must be between 1 and 100")
	}
	if offset < 0 {
		return nil, validationf("offset must not be negative")
	}
	out, err := c.convs.ListForUser(ctx, userID, archived, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Conversation{}
	}
	return out, nil
}

// SetArchived flips the caller's own archived flag.
func (c *Coordinator) SetArchived(ctx context.Context, id, userID uint64, archived bool) error {
	return translate(c.convs.SetArchived(ctx, id, userID, archived))
}

// Complete ends the conversation.  When it is about a listing, only the
// listing owner may do so and the listing becomes MATCHED.
func (c *Coordinator) Complete(ctx context.Context, id, userID uint64) (*model.Conversation, error) {
	conv, err := c.convs.Complete(ctx, id, userID)
	if err != nil {
		return nil, translate(err)
	}
	c.log.Info("conversation completed", "conversation_id", id, "user_id", userID)
	return conv, nil
}
