// Package repository contains data access logic for listings.  A listing
// is a HAVE or WANT seat posting for one game of one team.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/seatswap/internal/model"
)

const listingColumns = `id, owner_id, team_id, game_date, kind, section, seat_row, seat, zone,
	want_zones, want_sections, face_value_cents, status, boosted, boosted_at, created_at, updated_at`

// ListingRepo manages persistence for listings.
type ListingRepo struct {
	db      *sql.DB
	credits *CreditRepo
}

// NewListingRepo constructs a ListingRepo.  credits is used by BoostByOwner
// to charge the boost inside the same transaction.
func NewListingRepo(db *sql.DB, credits *CreditRepo) *ListingRepo {
	return &ListingRepo{db: db, credits: credits}
}

// DB exposes the underlying sql.DB for multi-repository transactions.
func (r *ListingRepo) DB() *sql.DB { return r.db }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(s rowScanner) (*model.Listing, error) {
	var (
		l            model.Listing
		wantZones    []byte
		wantSections []byte
		boostedAt    sql.NullTime
	)
	err := s.Scan(&l.ID, &l.OwnerID, &l.TeamID, &l.GameDate, &l.Kind, &l.Section, &l.Row, &l.Seat, &l.Zone,
		&wantZones, &wantSections, &l.FaceValueCents, &l.Status, &l.Boosted, &boostedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if l.WantZones, err = decodeSet(wantZones); err != nil {
		return nil, err
	}
	if l.WantSections, err = decodeSet(wantSections); err != nil {
		return nil, err
	}
	if boostedAt.Valid {
		t := boostedAt.Time
		l.BoostedAt = &t
	}
	return &l, nil
}

func encodeSet(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func decodeSet(b []byte) ([]string, error) {
	out := []string{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func scanListings(rows *sql.Rows) ([]model.Listing, error) {
	defer rows.Close()
	out := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Create inserts a new listing and reloads it so DB defaults (status,
// timestamps) are populated on l.
func (r *ListingRepo) Create(ctx context.Context, l *model.Listing) error {
	zones, err := encodeSet(l.WantZones)
	if err != nil {
		return err
	}
	sections, err := encodeSet(l.WantSections)
	if err != nil {
		return err
	}
	const q = `INSERT INTO listings (owner_id, team_id, game_date, kind, section, seat_row, seat, zone,
		want_zones, want_sections, face_value_cents, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, l.OwnerID, l.TeamID, l.GameDate.UTC().Format("2006-01-02"), l.Kind,
		l.Section, l.Row, l.Seat, l.Zone, zones, sections, l.FaceValueCents, model.StatusActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*l = *got
	return nil
}

// GetByID retrieves a listing by its ID.  It returns ErrListingNotFound
// if there is no matching row.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64) (*model.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return l, nil
}

// ListingQuery defines filters & pagination for browsing listings.
type ListingQuery struct {
	TeamID   uint64
	OwnerID  uint64
	Kind     model.ListingKind
	Status   model.ListingStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// Search returns one page of listings matching q, boosted listings
// first and then most recent first, plus the total number of matches.
func (r *ListingRepo) Search(ctx context.Context, q ListingQuery) ([]model.Listing, int64, error) {
	where := []string{}
	args := []any{}
	if q.TeamID != 0 {
		where = append(where, "team_id = ?")
		args = append(args, q.TeamID)
	}
	if q.OwnerID != 0 {
		where = append(where, "owner_id = ?")
		args = append(args, q.OwnerID)
	}
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, q.Kind)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}
	if q.From != nil {
		where = append(where, "game_date >= ?")
		args = append(args, q.From.UTC().Format("2006-01-02"))
	}
	if q.To != nil {
		where = append(where, "game_date <= ?")
		args = append(args, q.To.UTC().Format("2006-01-02"))
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (q.Page - 1) * q.PageSize
	dataArgs := append(append([]any{}, args...), q.PageSize, offset)
	rows, err := r.db.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE `+cond+`
		ORDER BY boosted DESC, boosted_at DESC, created_at DESC, id DESC
		LIMIT ? OFFSET ?`, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	out, err := scanListings(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ActiveByTeam returns up to limit ACTIVE listings of teamID, boosted
// first and then most recent first.  When excludeOwnerID is non-zero,
// listings of that owner are left out.  The result is the candidate
// pool handed to the match finder.
func (r *ListingRepo) ActiveByTeam(ctx context.Context, teamID, excludeOwnerID uint64, limit int) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings
		WHERE team_id = ? AND status = ? AND owner_id <> ?
		ORDER BY boosted DESC, boosted_at DESC, created_at DESC, id DESC
		LIMIT ?`, teamID, model.StatusActive, excludeOwnerID, limit)
	if err != nil {
		return nil, err
	}
	return scanListings(rows)
}

// lockForOwnerTx loads the owner and status of a listing with a row lock
// and enforces ownership.
func lockForOwnerTx(ctx context.Context, tx *sql.Tx, id, ownerID uint64) (model.ListingStatus, error) {
	var (
		dbOwner uint64
		status  model.ListingStatus
	)
	err := tx.QueryRowContext(ctx, `SELECT owner_id, status FROM listings WHERE id = ? FOR UPDATE`, id).Scan(&dbOwner, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrListingNotFound
		}
		return "", err
	}
	if dbOwner != ownerID {
		return "", ErrForbidden
	}
	return status, nil
}

// UpdateStatusByOwner changes the status of a listing owned by ownerID.
// Listings already in a terminal state are rejected with ErrConflict.
func (r *ListingRepo) UpdateStatusByOwner(ctx context.Context, id, ownerID uint64, status model.ListingStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	current, err := lockForOwnerTx(ctx, tx, id, ownerID)
	if err != nil {
		return err
	}
	if current.Terminal() {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `UPDATE listings SET status = ? WHERE id = ?`, status, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// BoostByOwner promotes an ACTIVE listing and charges cost credits to
// the owner in one transaction.  A short balance surfaces as
// *InsufficientCreditsError and leaves both the ledger and the listing
// untouched.
func (r *ListingRepo) BoostByOwner(ctx context.Context, id, ownerID uint64, cost int64, note string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	status, err := lockForOwnerTx(ctx, tx, id, ownerID)
	if err != nil {
		return 0, err
	}
	if status != model.StatusActive {
		return 0, ErrConflict
	}
	var balance int64
	if cost > 0 {
		if _, balance, err = r.credits.ApplyTx(ctx, tx, ownerID, -cost, note); err != nil {
			return balance, err
		}
	} else if err := tx.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ?`, ownerID).Scan(&balance); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET boosted = TRUE, boosted_at = UTC_TIMESTAMP() WHERE id = ?`, id); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return balance, nil
}

// MarkMatchedTx moves a non-terminal listing to MATCHED inside tx.
func (r *ListingRepo) MarkMatchedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var status model.ListingStatus
	err := tx.QueryRowContext(ctx, `SELECT status FROM listings WHERE id = ? FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrListingNotFound
		}
		return err
	}
	if status.Terminal() {
		return ErrConflict
	}
	_, err = tx.ExecContext(ctx, `UPDATE listings SET status = ? WHERE id = ?`, model.StatusMatched, id)
	return err
}

// ExpireBefore moves every ACTIVE or INACTIVE listing whose game date is
// before day to EXPIRED and returns how many rows changed.
func (r *ListingRepo) ExpireBefore(ctx context.Context, day time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = ? WHERE game_date < ? AND status IN (?, ?)`,
		model.StatusExpired, day.UTC().Format("2006-01-02"), model.StatusActive, model.StatusInactive)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByIDAndOwner removes a listing owned by ownerID together with the
// conversations about it (their messages and participants).  Everything
// happens in one transaction so no partial cleanup is observable.
func (r *ListingRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := lockForOwnerTx(ctx, tx, id, ownerID); err != nil {
		return err
	}
	stmts := []string{
		`DELETE m FROM messages m JOIN conversations c ON c.id = m.conversation_id WHERE c.listing_id = ?`,
		`DELETE p FROM conversation_participants p JOIN conversations c ON c.id = p.conversation_id WHERE c.listing_id = ?`,
		`DELETE FROM conversations WHERE listing_id = ?`,
		`DELETE FROM listings WHERE id = ?`,
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s, id); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
