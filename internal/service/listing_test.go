package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatswap/internal/model"
	"github.com/iliyamo/seatswap/internal/repository"
)

func TestCreateListingValidation(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	u := h.db.addUser("u", 0)

	cases := map[string]ListingInput{
		"no team":        {GameDate: "2026-11-01", Kind: model.KindHave, Section: "101"},
		"bad date":       {TeamID: 1, GameDate: "11/01/2026", Kind: model.KindHave, Section: "101"},
		"bad kind":       {TeamID: 1, GameDate: "2026-11-01", Kind: "SELL", Section: "101"},
		"have no place":  {TeamID: 1, GameDate: "2026-11-01", Kind: model.KindHave},
		"negative price": {TeamID: 1, GameDate: "2026-11-01", Kind: model.KindHave, Section: "101", FaceValueCents: -1},
	}
	for name, in := range cases {
		_, err := h.listings.Create(ctx, u.ID, in)
		assert.ErrorIs(t, err, ErrValidation, name)
	}
}

func TestCreateWantClearsLocation(t *testing.T) {
	h := newHarness(false)
	u := h.db.addUser("u", 0)
	l := h.listing(t, u.ID, ListingInput{
		TeamID: 1, GameDate: "2026-11-01", Kind: model.KindWant,
		Section: "101", Zone: "Lower",
		WantZones: []string{" Lower ", "Lower", ""}, WantSections: []string{"101"},
	})
	assert.Empty(t, l.Section)
	assert.Empty(t, l.Zone)
	assert.Equal(t, []string{"Lower"}, l.WantZones)
	assert.Equal(t, model.StatusActive, l.Status)
}

func TestCreateNotifiesBothSidesOfTopMatches(t *testing.T) {
	h := newHarness(false)
	owner := h.db.addUser("owner", 0)
	others := make([]*model.User, 5)
	for i := range others {
		others[i] = h.db.addUser("other", 0)
	}
	// four candidates for team 1 from other owners, one from another team
	h.listing(t, others[0].ID, haveInput(1, "2026-11-01", "101", "Lower", 4000)) // strongest
	h.listing(t, others[1].ID, haveInput(1, "2026-11-01", "102", "Lower", 4000))
	h.listing(t, others[2].ID, haveInput(1, "2026-11-03", "300", "Upper", 4000))
	h.listing(t, others[3].ID, haveInput(1, "2026-12-30", "400", "Club", 99000)) // scores 0
	h.listing(t, others[4].ID, haveInput(2, "2026-11-01", "101", "Lower", 4000))
	own := h.listing(t, owner.ID, haveInput(1, "2026-11-01", "101", "Lower", 4000))
	h.db.notifications = nil

	l := h.listing(t, owner.ID, haveInput(1, "2026-11-01", "101", "Lower", 4500))

	mine := h.db.notificationsFor(owner.ID)
	require.Len(t, mine, 3, "limited to the top three")
	var first model.MatchPayload
	require.NoError(t, json.Unmarshal(mine[0].Data, &first))
	assert.Equal(t, l.ID, first.ListingID)
	assert.Equal(t, 18, first.Score)
	for _, n := range mine {
		var p model.MatchPayload
		require.NoError(t, json.Unmarshal(n.Data, &p))
		assert.NotEqual(t, own.ID, p.MatchedListingID, "own listings are not matches")
	}

	assert.Len(t, h.db.notificationsFor(others[0].ID), 1)
	assert.Len(t, h.db.notificationsFor(others[1].ID), 1)
	assert.Len(t, h.db.notificationsFor(others[2].ID), 1)
	assert.Empty(t, h.db.notificationsFor(others[3].ID), "zero score is below the minimum")
	assert.Empty(t, h.db.notificationsFor(others[4].ID), "other team")
}

func TestEnrichMatchesPoolFailureIsLogged(t *testing.T) {
	h := newHarness(false)
	h.listings.store = failingPool{memListings{h.db}}
	u := h.db.addUser("u", 0)

	l, err := h.listings.Create(context.Background(), u.ID, haveInput(1, "2026-11-01", "101", "Lower", 4000))
	require.NoError(t, err)
	assert.NotZero(t, l.ID)
	assert.Empty(t, h.db.notificationsFor(u.ID))
}

type failingPool struct{ memListings }

func (failingPool) ActiveByTeam(context.Context, uint64, uint64, int) ([]model.Listing, error) {
	return nil, errors.New("pool query failed")
}

func TestRelatedRanksSameTeam(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	u := h.db.addUser("u", 0)
	v := h.db.addUser("v", 0)
	target := h.listing(t, u.ID, haveInput(1, "2026-11-01", "101", "Lower", 4000))
	for i := 0; i < 8; i++ {
		h.listing(t, v.ID, haveInput(1, "2026-11-05", "500", "Upper", 90000))
	}
	best := h.listing(t, v.ID, haveInput(1, "2026-11-01", "101", "Lower", 4000))
	mine := h.listing(t, u.ID, haveInput(1, "2026-11-01", "102", "Lower", 4000))

	got, err := h.listings.Related(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, best.ID, got[0].Listing.ID)
	assert.Equal(t, mine.ID, got[1].Listing.ID, "same owner is still related")
	for i, r := range got {
		assert.NotEqual(t, target.ID, r.Listing.ID)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Score, r.Score)
		}
	}

	_, err = h.listings.Related(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusRules(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	u := h.db.addUser("u", 0)
	x := h.db.addUser("x", 0)
	l := h.listing(t, u.ID, haveInput(1, "2026-11-01", "101", "Lower", 4000))

	assert.ErrorIs(t, h.listings.UpdateStatus(ctx, l.ID, u.ID, model.StatusMatched), ErrValidation)
	assert.ErrorIs(t, h.listings.UpdateStatus(ctx, l.ID, x.ID, model.StatusInactive), ErrForbidden)
	assert.ErrorIs(t, h.listings.UpdateStatus(ctx, 999, u.ID, model.StatusInactive), ErrNotFound)
	require.NoError(t, h.listings.UpdateStatus(ctx, l.ID, u.ID, model.StatusInactive))

	h.db.listings[l.ID].Status = model.StatusExpired
	assert.ErrorIs(t, h.listings.UpdateStatus(ctx, l.ID, u.ID, model.StatusActive), ErrConflict)
}

func TestBoostChargesOwner(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	rich := h.db.addUser("rich", 5)
	poor := h.db.addUser("poor", 1)
	lr := h.listing(t, rich.ID, haveInput(1, "2026-11-01", "101", "Lower", 4000))
	lp := h.listing(t, poor.ID, haveInput(1, "2026-11-01", "102", "Lower", 4000))

	bal, err := h.listings.Boost(ctx, lr.ID, rich.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bal)
	got, _ := h.listings.Get(ctx, lr.ID)
	assert.True(t, got.Boosted)

	_, err = h.listings.Boost(ctx, lp.ID, poor.ID)
	var pr *PaymentRequiredError
	require.True(t, errors.As(err, &pr))
	assert.Equal(t, int64(2), pr.CreditsRequired)
	assert.Equal(t, int64(1), pr.CurrentCredits)
	got, _ = h.listings.Get(ctx, lp.ID)
	assert.False(t, got.Boosted)

	_, err = h.listings.Boost(ctx, lr.ID, poor.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	page, _, err := h.listings.Search(ctx, repository.ListingQuery{TeamID: 1})
	require.NoError(t, err)
	assert.Equal(t, lr.ID, page[0].ID, "boosted first")
}

func TestDeleteCascadesConversations(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	u := h.db.addUser("u", 0)
	v := h.db.addUser("v", 0)
	l := h.listing(t, u.ID, haveInput(1, "2026-11-01", "101", "Lower", 4000))
	_, err := h.coord.StartOrGet(ctx, v.ID, u.ID, &l.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, h.listings.Delete(ctx, l.ID, v.ID), ErrForbidden)
	require.NoError(t, h.listings.Delete(ctx, l.ID, u.ID))
	assert.Zero(t, h.db.conversationCount())
	_, err = h.listings.Get(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchDefaultsAndValidation(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	u := h.db.addUser("u", 0)
	h.listing(t, u.ID, haveInput(1, "2026-11-01", "101", "Lower", 4000))
	inactive := h.listing(t, u.ID, haveInput(1, "2026-11-01", "102", "Lower", 4000))
	require.NoError(t, h.listings.UpdateStatus(ctx, inactive.ID, u.ID, model.StatusInactive))

	page, total, err := h.listings.Search(ctx, repository.ListingQuery{TeamID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "ACTIVE by default")
	assert.Len(t, page, 1)

	_, _, err = h.listings.Search(ctx, repository.ListingQuery{Status: "SOLD"})
	assert.ErrorIs(t, err, ErrValidation)
	from := time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, _, err = h.listings.Search(ctx, repository.ListingQuery{From: &from, To: &to})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExpirePast(t *testing.T) {
	h := newHarness(false)
	ctx := context.Background()
	h.listings.now = func() time.Time { return time.Date(2026, 11, 10, 15, 0, 0, 0, time.UTC) }
	u := h.db.addUser("u", 0)
	old := h.listing(t, u.ID, haveInput(1, "2026-11-09", "101", "Lower", 4000))
	today := h.listing(t, u.ID, haveInput(1, "2026-11-10", "102", "Lower", 4000))

	n, err := h.listings.ExpirePast(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, _ := h.listings.Get(ctx, old.ID)
	assert.Equal(t, model.StatusExpired, got.Status)
	got, _ = h.listings.Get(ctx, today.ID)
	assert.Equal(t, model.StatusActive, got.Status)
}
