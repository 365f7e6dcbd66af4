package guard

import (
	"context"
	"testing"

	"stocks-social/apperr"
	"stocks-social/models"
	"stocks-social/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnsPortfolio(t *testing.T) {
	store := testutil.NewStore(t)
	g := New(store)
	ctx := context.Background()

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")
	pid := testutil.CreatePortfolio(t, store, alice, "100")

	ok, err := g.OwnsPortfolio(ctx, alice, pid)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.OwnsPortfolio(ctx, bob, pid)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.OwnsPortfolio(ctx, alice, pid+100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStockListPredicates(t *testing.T) {
	store := testutil.NewStore(t)
	g := New(store)
	ctx := context.Background()

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")
	carol := testutil.CreateUser(t, store, "carol@example.com")

	private := models.StockList{UserID: alice, Name: "private"}
	public := models.StockList{UserID: alice, Name: "public", Public: true}
	require.NoError(t, store.DB.Create(&private).Error)
	require.NoError(t, store.DB.Create(&public).Error)
	require.NoError(t, store.DB.Create(&models.Review{UserID: bob, StockListID: private.ID}).Error)

	ok, err := g.OwnsStockList(ctx, alice, private.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.OwnsStockList(ctx, bob, private.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.IsStockListPublic(ctx, public.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsStockListPublic(ctx, private.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.IsStockListPublic(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, ok)

	cases := []struct {
		name  string
		actor uint
		list  uint
		want  bool
	}{
		{"owner of private list", alice, private.ID, true},
		{"invited reviewer", bob, private.ID, true},
		{"stranger on private list", carol, private.ID, false},
		{"stranger on public list", carol, public.ID, true},
		{"missing list", alice, 9999, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := g.CanReview(ctx, tc.actor, tc.list)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestRequireHelpersFailClosed(t *testing.T) {
	store := testutil.NewStore(t)
	g := New(store)
	ctx := context.Background()

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")
	pid := testutil.CreatePortfolio(t, store, alice, "0")
	list := models.StockList{UserID: alice, Name: "l"}
	require.NoError(t, store.DB.Create(&list).Error)

	assert.NoError(t, g.RequirePortfolio(ctx, alice, pid))
	assert.ErrorIs(t, g.RequirePortfolio(ctx, bob, pid), apperr.ErrNotOwned)
	assert.ErrorIs(t, g.RequirePortfolio(ctx, alice, 424242), apperr.ErrNotOwned)

	assert.NoError(t, g.RequireStockList(ctx, alice, list.ID))
	assert.ErrorIs(t, g.RequireStockList(ctx, bob, list.ID), apperr.ErrNotOwned)

	assert.NoError(t, g.RequireReadableStockList(ctx, alice, list.ID))
	assert.ErrorIs(t, g.RequireReadableStockList(ctx, bob, list.ID), apperr.ErrNotOwned)
}
