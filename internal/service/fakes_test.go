package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatswap/internal/matching"
	"github.com/iliyamo/seatswap/internal/model"
	"github.com/iliyamo/seatswap/internal/repository"
)

// memDB is a single-lock in-memory stand-in for MySQL.  Each store
// method holds the lock for its whole body, which gives the same
// atomicity a transaction would.
type memDB struct {
	mu            sync.Mutex
	nextID        uint64
	users         map[uint64]*model.User
	txs           []model.CreditTransaction
	listings      map[uint64]*model.Listing
	convs         map[uint64]*model.Conversation
	convKeys      map[[3]uint64]uint64
	notifications []model.Notification
	messages      []model.Message
	createCalls   int
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[uint64]*model.User{},
		listings: map[uint64]*model.Listing{},
		convs:    map[uint64]*model.Conversation{},
		convKeys: map[[3]uint64]uint64{},
	}
}

func (db *memDB) id() uint64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) addUser(name string, credits int64) *model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := &model.User{ID: db.id(), Name: name, Email: name + "@example.com", Role: model.RoleUser, EmailNotifications: true, IsActive: true}
	db.users[u.ID] = u
	if credits > 0 {
		db.applyLocked(u.ID, credits, "seed")
	}
	return u
}

func (db *memDB) applyLocked(userID uint64, amount int64, note string) (model.CreditTransaction, int64, error) {
	u, ok := db.users[userID]
	if !ok {
		return model.CreditTransaction{}, 0, repository.ErrUserNotFound
	}
	if amount < 0 && u.Credits+amount < 0 {
		return model.CreditTransaction{}, u.Credits, &repository.InsufficientCreditsError{Balance: u.Credits, Amount: amount}
	}
	ct := model.CreditTransaction{ID: db.id(), UserID: userID, Amount: amount, Note: note, CreatedAt: time.Now().UTC()}
	db.txs = append(db.txs, ct)
	u.Credits += amount
	return ct, u.Credits, nil
}

func (db *memDB) ledgerRows(userID uint64) []model.CreditTransaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.CreditTransaction
	for _, t := range db.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (db *memDB) conversationCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.convs)
}

func (db *memDB) notificationsFor(userID uint64) []model.Notification {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.Notification
	for _, n := range db.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// users

type memUsers struct{ db *memDB }

func (s memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// credits

type memCredits struct{ db *memDB }

func (s memCredits) Apply(_ context.Context, userID uint64, amount int64, note string) (model.CreditTransaction, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.applyLocked(userID, amount, note)
}

func (s memCredits) Balance(_ context.Context, userID uint64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	return u.Credits, nil
}

func (s memCredits) SumTransactions(_ context.Context, userID uint64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var sum int64
	for _, t := range s.db.txs {
		if t.UserID == userID {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (s memCredits) ListByUser(_ context.Context, userID uint64, limit int) ([]model.CreditTransaction, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.CreditTransaction
	for i := len(s.db.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.db.txs[i].UserID == userID {
			out = append(out, s.db.txs[i])
		}
	}
	return out, nil
}

// listings

type memListings struct{ db *memDB }

func (s memListings) Create(_ context.Context, l *model.Listing) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l.ID = s.db.id()
	l.Status = model.StatusActive
	l.CreatedAt = time.Now().UTC()
	cp := *l
	s.db.listings[l.ID] = &cp
	return nil
}

func (s memListings) GetByID(_ context.Context, id uint64) (*model.Listing, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, ok := s.db.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

// sorted boosted first, then newest (highest id) first
func (s memListings) sorted(keep func(*model.Listing) bool) []model.Listing {
	var out []model.Listing
	for _, l := range s.db.listings {
		if keep(l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Boosted != out[j].Boosted {
			return out[i].Boosted
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s memListings) Search(_ context.Context, q repository.ListingQuery) ([]model.Listing, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	all := s.sorted(func(l *model.Listing) bool {
		return (q.TeamID == 0 || l.TeamID == q.TeamID) &&
			(q.OwnerID == 0 || l.OwnerID == q.OwnerID) &&
			(q.Kind == "" || l.Kind == q.Kind) &&
			(q.Status == "" || l.Status == q.Status)
	})
	start := (q.Page - 1) * q.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + q.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (s memListings) ActiveByTeam(_ context.Context, teamID, excludeOwnerID uint64, limit int) ([]model.Listing, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := s.sorted(func(l *model.Listing) bool {
		return l.TeamID == teamID && l.Status == model.StatusActive && l.OwnerID != excludeOwnerID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memListings) owned(id, ownerID uint64) (*model.Listing, error) {
	l, ok := s.db.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	if l.OwnerID != ownerID {
		return nil, repository.ErrForbidden
	}
	return l, nil
}

func (s memListings) UpdateStatusByOwner(_ context.Context, id, ownerID uint64, status model.ListingStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, err := s.owned(id, ownerID)
	if err != nil {
		return err
	}
	if l.Status.Terminal() {
		return repository.ErrConflict
	}
	l.Status = status
	return nil
}

func (s memListings) BoostByOwner(_ context.Context, id, ownerID uint64, cost int64, note string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	l, err := s.owned(id, ownerID)
	if err != nil {
		return 0, err
	}
	if l.Status != model.StatusActive {
		return 0, repository.ErrConflict
	}
	_, balance, err := s.db.applyLocked(ownerID, -cost, note)
	if err != nil {
		return balance, err
	}
	now := time.Now().UTC()
	l.Boosted, l.BoostedAt = true, &now
	return balance, nil
}

func (s memListings) ExpireBefore(_ context.Context, day time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, l := range s.db.listings {
		if l.GameDate.Before(day) && !l.Status.Terminal() {
			l.Status = model.StatusExpired
			n++
		}
	}
	return n, nil
}

func (s memListings) DeleteByIDAndOwner(_ context.Context, id, ownerID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, err := s.owned(id, ownerID); err != nil {
		return err
	}
	for cid, c := range s.db.convs {
		if c.ListingID != nil && *c.ListingID == id {
			delete(s.db.convs, cid)
			for k, v := range s.db.convKeys {
				if v == cid {
					delete(s.db.convKeys, k)
				}
			}
		}
	}
	delete(s.db.listings, id)
	return nil
}

// conversations

type memConvs struct{ db *memDB }

func convKey(a, b uint64, listingID *uint64) [3]uint64 {
	low, high := model.PairKey(a, b)
	var l uint64
	if listingID != nil {
		l = *listingID
	}
	return [3]uint64{low, high, l}
}

func (s memConvs) copyOf(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Participants = append([]model.ConversationParticipant(nil), c.Participants...)
	return &cp
}

func (s memConvs) FindByKey(_ context.Context, a, b uint64, listingID *uint64) (*model.Conversation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	id, ok := s.db.convKeys[convKey(a, b, listingID)]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	return s.copyOf(s.db.convs[id]), nil
}

func (s memConvs) Create(_ context.Context, in repository.NewConversation) (*model.Conversation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.createCalls++
	key := convKey(in.UserID, in.OtherUserID, in.ListingID)
	if _, dup := s.db.convKeys[key]; dup {
		return nil, repository.ErrConversationExists
	}
	if in.Charge != nil {
		if _, _, err := s.db.applyLocked(in.Charge.UserID, -in.Charge.Amount, in.Charge.Note); err != nil {
			return nil, err
		}
	}
	now := time.Now().UTC()
	c := &model.Conversation{ID: s.db.id(), ListingID: in.ListingID, Status: model.ConversationActive, CreatedAt: now, UpdatedAt: now}
	low, high := model.PairKey(in.UserID, in.OtherUserID)
	c.Participants = []model.ConversationParticipant{
		{ConversationID: c.ID, UserID: low},
		{ConversationID: c.ID, UserID: high},
	}
	s.db.convs[c.ID] = c
	s.db.convKeys[key] = c.ID
	return s.copyOf(c), nil
}

func (s memConvs) AttachListing(_ context.Context, id, listingID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.convs[id]
	if !ok || c.ListingID != nil {
		return repository.ErrConversationNotFound
	}
	a, b := c.Participants[0].UserID, c.Participants[1].UserID
	newKey := convKey(a, b, &listingID)
	if _, dup := s.db.convKeys[newKey]; dup {
		return repository.ErrConversationExists
	}
	delete(s.db.convKeys, convKey(a, b, nil))
	l := listingID
	c.ListingID = &l
	s.db.convKeys[newKey] = id
	return nil
}

func (s memConvs) GetByID(_ context.Context, id uint64) (*model.Conversation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.convs[id]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	return s.copyOf(c), nil
}

func (s memConvs) ListForUser(_ context.Context, userID uint64, archived *bool, limit, offset int) ([]model.Conversation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Conversation
	for _, c := range s.db.convs {
		for _, p := range c.Participants {
			if p.UserID == userID && (archived == nil || p.Archived == *archived) {
				out = append(out, *s.copyOf(c))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memConvs) SetArchived(_ context.Context, conversationID, userID uint64, archived bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.convs[conversationID]
	if !ok {
		return repository.ErrConversationNotFound
	}
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			c.Participants[i].Archived = archived
			return nil
		}
	}
	return repository.ErrConversationNotFound
}

func (s memConvs) Complete(_ context.Context, id, actorID uint64) (*model.Conversation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.convs[id]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	if !c.HasParticipant(actorID) {
		return nil, repository.ErrForbidden
	}
	if c.Status == model.ConversationEnded {
		return nil, repository.ErrConflict
	}
	if c.ListingID != nil {
		l, ok := s.db.listings[*c.ListingID]
		if !ok {
			return nil, repository.ErrListingNotFound
		}
		if l.OwnerID != actorID {
			return nil, repository.ErrForbidden
		}
		if l.Status.Terminal() {
			return nil, repository.ErrConflict
		}
		l.Status = model.StatusMatched
	}
	c.Status = model.ConversationEnded
	return s.copyOf(c), nil
}

// notifications

type memNotifications struct {
	db      *memDB
	failing bool
}

func (s *memNotifications) Create(_ context.Context, n *model.Notification) error {
	if s.failing {
		return errors.New("notifications table unavailable")
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n.ID = s.db.id()
	n.CreatedAt = time.Now().UTC()
	s.db.notifications = append(s.db.notifications, *n)
	return nil
}

func (s *memNotifications) ListByUser(_ context.Context, userID uint64, unreadOnly bool, limit int) ([]model.Notification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Notification
	for i := len(s.db.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		n := s.db.notifications[i]
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memNotifications) CountUnread(_ context.Context, userID uint64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for _, x := range s.db.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *memNotifications) MarkRead(_ context.Context, id, userID uint64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i := range s.db.notifications {
		n := &s.db.notifications[i]
		if n.ID == id && n.UserID == userID && !n.IsRead {
			n.IsRead = true
			return 1, nil
		}
	}
	return 0, nil
}

func (s *memNotifications) MarkAllRead(_ context.Context, userID uint64) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var changed int64
	for i := range s.db.notifications {
		n := &s.db.notifications[i]
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			changed++
		}
	}
	return changed, nil
}

// messages

type memMessages struct{ db *memDB }

func (s memMessages) Create(_ context.Context, m *model.Message, recipientID uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m.ID = s.db.id()
	m.CreatedAt = time.Now().UTC()
	s.db.messages = append(s.db.messages, *m)
	if c, ok := s.db.convs[m.ConversationID]; ok {
		c.UpdatedAt = m.CreatedAt
		for i := range c.Participants {
			if c.Participants[i].UserID == recipientID {
				c.Participants[i].Archived = false
			}
		}
	}
	return nil
}

func (s memMessages) ListByConversation(_ context.Context, conversationID, beforeID uint64, limit int) ([]model.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Message
	for i := len(s.db.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.db.messages[i]
		if m.ConversationID == conversationID && (beforeID == 0 || m.ID < beforeID) {
			out = append(out, m)
		}
	}
	return out, nil
}

// collaborators

type sentEmail struct{ To, Subject, Body string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{to, subject, body})
	return m.err
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeRealtime struct {
	mu        sync.Mutex
	published []model.Message
	err       error
}

func (p *fakeRealtime) PublishMessage(_ context.Context, m model.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, m)
	return p.err
}

func syncRunner(f func()) { f() }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// harness wires every service over one memDB with synchronous side
// effects.
type harness struct {
	db       *memDB
	notes    *memNotifications
	mail     *fakeMailer
	realtime *fakeRealtime
	ledger   *CreditLedger
	notify   *Dispatcher
	coord    *Coordinator
	messages *MessageService
	listings *ListingService
}

func newHarness(paywall bool) *harness {
	db := newMemDB()
	h := &harness{db: db, notes: &memNotifications{db: db}, mail: &fakeMailer{}, realtime: &fakeRealtime{}}
	log := discardLogger()
	h.ledger = NewCreditLedger(memCredits{db}, log)
	h.notify = NewDispatcher(h.notes, memUsers{db}, h.mail, log)
	h.notify.spawn = syncRunner
	h.coord = NewCoordinator(memConvs{db}, memUsers{db}, memListings{db}, h.ledger, paywall, log)
	h.messages = NewMessageService(memConvs{db}, memMessages{db}, memUsers{db}, h.notify, h.realtime, log)
	h.listings = NewListingService(memListings{db}, matching.NewFinder(matching.NewScorer(matching.DefaultWeights())), h.notify, ListingOptions{
		NotifyLimit:  3,
		RelatedLimit: 6,
		MinScore:     1,
		PoolSize:     200,
		BoostCost:    2,
	}, log)
	h.listings.spawn = syncRunner
	return h
}

func (h *harness) listing(t *testing.T, owner uint64, in ListingInput) *model.Listing {
	t.Helper()
	l, err := h.listings.Create(context.Background(), owner, in)
	require.NoError(t, err)
	return l
}
