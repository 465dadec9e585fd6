package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatswap/internal/model"
)

func TestFinder_Find(t *testing.T) {
	f := NewFinder(NewScorer(DefaultWeights()))
	target := have(1, "101", "Lower Bowl", gameDay, 4000)

	t.Run("empty pool", func(t *testing.T) {
		got := f.Find(target, nil)
		require.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("excludes the target and sorts descending", func(t *testing.T) {
		pool := []model.Listing{
			have(2, "300", "Upper", gameDay.AddDate(0, 0, 20), 90000),
			target,
			have(3, "101", "Lower Bowl", gameDay, 4000),
			have(4, "102", "Lower Bowl", gameDay.AddDate(0, 0, 2), 4000),
		}
		got := f.Find(target, pool)
		require.Len(t, got, 3)
		for _, r := range got {
			assert.NotEqual(t, target.ID, r.Listing.ID)
		}
		assert.Equal(t, uint64(3), got[0].Listing.ID)
		assert.Equal(t, uint64(4), got[1].Listing.ID)
		assert.Equal(t, uint64(2), got[2].Listing.ID)
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
		}
	})

	t.Run("ties keep pool order", func(t *testing.T) {
		pool := []model.Listing{
			have(7, "500", "Club", gameDay, 4000),
			have(5, "500", "Club", gameDay, 4000),
			have(9, "500", "Club", gameDay, 4000),
		}
		got := f.Find(target, pool)
		require.Len(t, got, 3)
		assert.Equal(t, uint64(7), got[0].Listing.ID)
		assert.Equal(t, uint64(5), got[1].Listing.ID)
		assert.Equal(t, uint64(9), got[2].Listing.ID)
	})

	t.Run("pool made only of the target", func(t *testing.T) {
		assert.Empty(t, f.Find(target, []model.Listing{target, target}))
	})
}

func TestTop(t *testing.T) {
	rs := []model.MatchResult{{Score: 3}, {Score: 2}, {Score: 1}}
	assert.Len(t, Top(rs, 2), 2)
	assert.Len(t, Top(rs, 6), 3)
	assert.Empty(t, Top(rs, 0))
	assert.Empty(t, Top(rs, -1))
}
