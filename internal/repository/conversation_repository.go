package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/seatswap/internal/model"
)

// ConversationRepo manages conversations and their participants.  The
// `conversations` table carries the ordered participant pair (user_low,
// user_high) and listing_key (listing id, or 0 for "no listing") under
// a unique key, so the dedup invariant holds even when two requests
// race past their existence checks.
type ConversationRepo struct {
	db       *sql.DB
	credits  *CreditRepo
	listings *ListingRepo
}

// NewConversationRepo returns a ConversationRepo.  credits is used to
// charge for a conversation in the same transaction that creates it,
// listings to mark a listing MATCHED when a swap completes.
func NewConversationRepo(db *sql.DB, credits *CreditRepo, listings *ListingRepo) *ConversationRepo {
	return &ConversationRepo{db: db, credits: credits, listings: listings}
}

// DB exposes the underlying sql.DB.
func (r *ConversationRepo) DB() *sql.DB { return r.db }

// Charge describes a ledger append that must commit together with a
// new conversation.
type Charge struct {
	UserID uint64
	Amount int64
	Note   string
}

// NewConversation is the input to Create.
type NewConversation struct {
	UserID      uint64
	OtherUserID uint64
	ListingID   *uint64
	Charge      *Charge
}

func listingKey(listingID *uint64) uint64 {
	if listingID == nil {
		return 0
	}
	return *listingID
}

// FindByKey returns the conversation for the unordered pair (a, b) and
// listingID (nil meaning "no listing").  ErrConversationNotFound is
// returned when none exists.
func (r *ConversationRepo) FindByKey(ctx context.Context, a, b uint64, listingID *uint64) (*model.Conversation, error) {
	low, high := model.PairKey(a, b)
	var id uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE user_low = ? AND user_high = ? AND listing_key = ?`,
		low, high, listingKey(listingID)).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Create inserts a conversation and both participants in one
// transaction.  When in.Charge is set the ledger append runs first in
// the same transaction; a short balance aborts everything with
// *InsufficientCreditsError.  A unique key violation is reported as
// ErrConversationExists after rolling back, so a charge is never kept
// for a conversation that was not created.
func (r *ConversationRepo) Create(ctx context.Context, in NewConversation) (*model.Conversation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if in.Charge != nil {
		if _, _, err := r.credits.ApplyTx(ctx, tx, in.Charge.UserID, -in.Charge.Amount, in.Charge.Note); err != nil {
			return nil, err
		}
	}

	low, high := model.PairKey(in.UserID, in.OtherUserID)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (listing_id, listing_key, user_low, user_high, status) VALUES (?, ?, ?, ?, ?)`,
		in.ListingID, listingKey(in.ListingID), low, high, model.ConversationActive)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrConversationExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_participants (conversation_id, user_id, archived) VALUES (?, ?, FALSE), (?, ?, FALSE)`,
		id, in.UserID, id, in.OtherUserID); err != nil {
		return nil, err
	}
	conv, err := getConversation(ctx, tx, uint64(id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return conv, nil
}

// AttachListing sets the listing of a conversation that has none.  If
// the pair already has a conversation about that listing the unique key
// rejects the update and ErrConversationExists is returned.  When the
// conversation is gone or already carries a listing nothing changes and
// ErrConversationNotFound is returned.
func (r *ConversationRepo) AttachListing(ctx context.Context, id, listingID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET listing_id = ?, listing_key = ? WHERE id = ? AND listing_id IS NULL`,
		listingID, listingID, id)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConversationExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// GetByID loads a conversation with its participants.
func (r *ConversationRepo) GetByID(ctx context.Context, id uint64) (*model.Conversation, error) {
	return getConversation(ctx, r.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getConversation(ctx context.Context, q queryer, id uint64) (*model.Conversation, error) {
	var (
		c         model.Conversation
		listingID sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, listing_id, status, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &listingID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if listingID.Valid {
		v := uint64(listingID.Int64)
		c.ListingID = &v
	}
	rows, err := q.QueryContext(ctx,
		`SELECT conversation_id, user_id, archived FROM conversation_participants WHERE conversation_id = ? ORDER BY user_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.ConversationParticipant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.Archived); err != nil {
			return nil, err
		}
		c.Participants = append(c.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListForUser returns the conversations userID takes part in, most
// recently updated first.  archived filters on the caller's own flag
// when non-nil.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID uint64, archived *bool, limit, offset int) ([]model.Conversation, error) {
	where := []string{"p.user_id = ?"}
	args := []any{userID}
	if archived != nil {
		where = append(where, "p.archived = ?")
		args = append(args, *archived)
	}
	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, `SELECT c.id FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY c.updated_at DESC, c.id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	out := make([]model.Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// SetArchived updates userID's archived flag on a conversation.  The
// other participant's flag is untouched.
func (r *ConversationRepo) SetArchived(ctx context.Context, conversationID, userID uint64, archived bool) error {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM conversation_participants WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConversationNotFound
		}
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE conversation_participants SET archived = ? WHERE conversation_id = ? AND user_id = ?`,
		archived, conversationID, userID)
	return err
}

// Complete ends a conversation on behalf of actorID and, when the
// conversation is about a listing, marks that listing MATCHED in the
// same transaction.  Only the listing owner may complete a listing
// conversation; either participant may end one without a listing.
func (r *ConversationRepo) Complete(ctx context.Context, id, actorID uint64) (*model.Conversation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var (
		status    model.ConversationStatus
		listingID sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT status, listing_id FROM conversations WHERE id = ? FOR UPDATE`, id).Scan(&status, &listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	conv, err := getConversation(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actorID) {
		return nil, ErrForbidden
	}
	if status == model.ConversationEnded {
		return nil, ErrConflict
	}
	if listingID.Valid {
		var owner uint64
		if err := tx.QueryRowContext(ctx, `SELECT owner_id FROM listings WHERE id = ?`, listingID.Int64).Scan(&owner); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrListingNotFound
			}
			return nil, err
		}
		if owner != actorID {
			return nil, ErrForbidden
		}
		if err := r.listings.MarkMatchedTx(ctx, tx, uint64(listingID.Int64)); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, model.ConversationEnded, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	conv.Status = model.ConversationEnded
	return conv, nil
}
