package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/seatswap/internal/matching"
	"github.com/iliyamo/seatswap/internal/model"
	"github.com/iliyamo/seatswap/internal/repository"
)

// ListingStore is the persistence behind ListingService.
type ListingStore interface {
	Create(ctx context.Context, l *model.Listing) error
	GetByID(ctx context.Context, id uint64) (*model.Listing, error)
	Search(ctx context.Context, q repository.ListingQuery) ([]model.Listing, int64, error)
	ActiveByTeam(ctx context.Context, teamID, excludeOwnerID uint64, limit int) ([]model.Listing, error)
	UpdateStatusByOwner(ctx context.Context, id, ownerID uint64, status model.ListingStatus) error
	BoostByOwner(ctx context.Context, id, ownerID uint64, cost int64, note string) (int64, error)
	ExpireBefore(ctx context.Context, day time.Time) (int64, error)
	DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) error
}

// ListingOptions are the tunables of ListingService.
type ListingOptions struct {
	NotifyLimit  int   // matches notified per side after creation
	RelatedLimit int   // listings returned by Related
	MinScore     int   // matches below this are not notified
	PoolSize     int   // candidates loaded per scoring run
	BoostCost    int64 // credits charged by Boost
}

// enrichTimeout bounds the background match run after a create.
const enrichTimeout = 30 * time.Second

type ListingService struct {
	store  ListingStore
	finder *matching.Finder
	notify *Dispatcher
	opts   ListingOptions
	log    *slog.Logger
	spawn  runner
	now    func() time.Time
}

func NewListingService(store ListingStore, finder *matching.Finder, notify *Dispatcher, opts ListingOptions, log *slog.Logger) *ListingService {
	return &ListingService{
		store:  store,
		finder: finder,
		notify: notify,
		opts:   opts,
		log:    log,
		spawn:  goRunner,
		now:    time.Now,
	}
}

// ListingInput is what an owner submits.
type ListingInput struct {
	TeamID         uint64            `json:"team_id"`
	GameDate       string            `json:"game_date"` // YYYY-MM-DD
	Kind           model.ListingKind `json:"kind"`
	Section        string            `json:"section"`
	Row            string            `json:"row"`
	Seat           string            `json:"seat"`
	Zone           string            `json:"zone"`
	WantZones      []string          `json:"want_zones"`
	WantSections   []string          `json:"want_sections"`
	FaceValueCents int64             `json:"face_value_cents"`
}

func (in ListingInput) toModel(ownerID uint64) (*model.Listing, error) {
	if in.TeamID == 0 {
		return nil, validationf("team_id is required")
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(in.GameDate))
	if err != nil {
		return nil, validationf("game_date must be YYYY-MM-DD")
	}
	if in.FaceValueCents < 0 {
		return nil, validationf("face_value_cents must not be negative")
	}
	l := &model.Listing{
		OwnerID:        ownerID,
		TeamID:         in.TeamID,
		GameDate:       date,
		Kind:           in.Kind,
		WantZones:      cleanSet(in.WantZones),
		WantSections:   cleanSet(in.WantSections),
		FaceValueCents: in.FaceValueCents,
	}
	switch in.Kind {
	case model.KindHave:
		l.Section = strings.TrimSpace(in.Section)
		l.Row = strings.TrimSpace(in.Row)
		l.Seat = strings.TrimSpace(in.Seat)
		l.Zone = strings.TrimSpace(in.Zone)
		if l.Section == "" && l.Zone == "" {
			return nil, validationf("a HAVE listing needs a section or a zone")
		}
	case model.KindWant:
		// location stays empty; preferences live in the want sets
	default:
		return nil, validationf("kind must be HAVE or WANT")
	}
	return l, nil
}

func cleanSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Create stores a listing and schedules match enrichment.  The listing
// is returned as soon as it is durable; enrichment failures are only
// logged.
func (s *ListingService) Create(ctx context.Context, ownerID uint64, in ListingInput) (*model.Listing, error) {
	l, err := in.toModel(ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, l); err != nil {
		return nil, err
	}
	s.log.Info("listing created", "listing_id", l.ID, "owner_id", ownerID, "team_id", l.TeamID, "kind", l.Kind)
	created := *l
	s.spawn(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enrichTimeout)
		defer cancel()
		s.EnrichMatches(ctx, created)
	})
	return l, nil
}

// EnrichMatches scores l against other owners' active listings of the
// same team and notifies both sides of the best matches.  It returns
// the notified results.
func (s *ListingService) EnrichMatches(ctx context.Context, l model.Listing) []model.MatchResult {
	pool, err := s.store.ActiveByTeam(ctx, l.TeamID, l.OwnerID, s.opts.PoolSize)
	if err != nil {
		s.log.Error("load match pool", "listing_id", l.ID, "err", err)
		return nil
	}
	var top []model.MatchResult
	for _, r := range s.finder.Find(l, pool) {
		if len(top) == s.opts.NotifyLimit || r.Score < s.opts.MinScore {
			break
		}
		top = append(top, r)
	}
	for _, r := range top {
		desc := fmt.Sprintf("Listing #%d matches your listing #%d (%s)", r.Listing.ID, l.ID, r.Reason)
		s.notify.NotifyMatch(ctx, l.OwnerID, l.ID, r.Listing.ID, r.Score, desc)
		back := fmt.Sprintf("Listing #%d matches your listing #%d (%s)", l.ID, r.Listing.ID, r.Reason)
		s.notify.NotifyMatch(ctx, r.Listing.OwnerID, r.Listing.ID, l.ID, r.Score, back)
	}
	if len(top) > 0 {
		s.log.Info("matches notified", "listing_id", l.ID, "count", len(top))
	}
	return top
}

func (s *ListingService) Get(ctx context.Context, id uint64) (*model.Listing, error) {
	l, err := s.store.GetByID(ctx, id)
	return l, translate(err)
}

// Search pages through listings.  Status defaults to ACTIVE.
func (s *ListingService) Search(ctx context.Context, q repository.ListingQuery) ([]model.Listing, int64, error) {
	if q.Status == "" {
		q.Status = model.StatusActive
	} else if !q.Status.Valid() {
		return nil, 0, validationf("unknown status %q", q.Status)
	}
	if q.Kind != "" && q.Kind != model.KindHave && q.Kind != model.KindWant {
		return nil, 0, validationf("kind must be HAVE or WANT")
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, 0, validationf("to must not be before from")
	}
	out, total, err := s.store.Search(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	if out == nil {
		out = []model.Listing{}
	}
	return out, total, nil
}

// Related ranks the active listings of the same team against id.  The
// pool comes boosted first, then newest, and that order breaks score
// ties.
func (s *ListingService) Related(ctx context.Context, id uint64) ([]model.MatchResult, error) {
	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	pool, err := s.store.ActiveByTeam(ctx, l.TeamID, 0, s.opts.PoolSize)
	if err != nil {
		return nil, err
	}
	return matching.Top(s.finder.Find(*l, pool), s.opts.RelatedLimit), nil
}

// UpdateStatus changes an owned listing's status.  MATCHED and EXPIRED
// cannot be left, and owners cannot set them directly.
func (s *ListingService) UpdateStatus(ctx context.Context, id, ownerID uint64, status model.ListingStatus) error {
	if status != model.StatusActive && status != model.StatusInactive {
		return validationf("status must be ACTIVE or INACTIVE")
	}
	return translate(s.store.UpdateStatusByOwner(ctx, id, ownerID, status))
}

// Boost promotes an owned ACTIVE listing for BoostCost credits and
// returns the remaining balance.
func (s *ListingService) Boost(ctx context.Context, id, ownerID uint64) (int64, error) {
	balance, err := s.store.BoostByOwner(ctx, id, ownerID, s.opts.BoostCost, fmt.Sprintf("Boost listing #%d", id))
	if err != nil {
		return 0, translate(err)
	}
	s.log.Info("listing boosted", "listing_id", id, "owner_id", ownerID, "cost", s.opts.BoostCost)
	return balance, nil
}

// Delete removes an owned listing along with conversations about it.
func (s *ListingService) Delete(ctx context.Context, id, ownerID uint64) error {
	if err := s.store.DeleteByIDAndOwner(ctx, id, ownerID); err != nil {
		return translate(err)
	}
	s.log.Info("listing deleted", "listing_id", id, "owner_id", ownerID)
	return nil
}

// ExpirePast marks listings whose game day has passed as EXPIRED.
func (s *ListingService) ExpirePast(ctx context.Context) (int64, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	n, err := s.store.ExpireBefore(ctx, today)
	if err != nil {
		return 0, err
	}
	s.log.Info("listings expired", "count", n)
	return n, nil
}
