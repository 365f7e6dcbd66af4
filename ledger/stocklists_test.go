package ledger

import (
	"context"
	"sync"
	"testing"

	"stocks-social/apperr"
	"stocks-social/models"
	"stocks-social/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockListLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SetPrice(t, f.store, "AAPL", "100")
	testutil.SetPrice(t, f.store, "MSFT", "20")

	list, err := f.svc.CreateStockList(ctx, f.alice, "", false)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultStockListName, list.Name)
	assert.False(t, list.Public)

	_, err = f.svc.AddStock(ctx, f.alice, list.ID, "AAPL", 2)
	require.NoError(t, err)
	entry, err := f.svc.AddStock(ctx, f.alice, list.ID, "AAPL", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), entry.Quantity)
	_, err = f.svc.AddStock(ctx, f.alice, list.ID, "MSFT", 10)
	require.NoError(t, err)

	view, err := f.svc.GetStockList(ctx, f.alice, list.ID)
	require.NoError(t, err)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, "AAPL", view.Entries[0].Symbol)
	assertDec(t, "500", view.Entries[0].TotalValue)
	assertDec(t, "200", view.Entries[1].TotalValue)

	qty := int64(2)
	remaining, err := f.svc.RemoveStock(ctx, f.alice, list.ID, "AAPL", &qty)
	require.NoError(t, err)
	assert.Equal(t, int64(3), remaining)

	big := int64(50)
	remaining, err = f.svc.RemoveStock(ctx, f.alice, list.ID, "AAPL", &big)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	remaining, err = f.svc.RemoveStock(ctx, f.alice, list.ID, "MSFT", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)

	_, err = f.svc.RemoveStock(ctx, f.alice, list.ID, "MSFT", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	view, err = f.svc.GetStockList(ctx, f.alice, list.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Entries)
}

func TestConcurrentAddStockAccumulates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SetPrice(t, f.store, "AAPL", "100")
	list, err := f.svc.CreateStockList(ctx, f.alice, "Tech", false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddStock(ctx, f.alice, list.ID, "AAPL", 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := f.svc.GetStockList(ctx, f.alice, list.ID)
	require.NoError(t, err)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, int64(10), view.Entries[0].Quantity)
}

func TestStockListValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SetPrice(t, f.store, "AAPL", "100")
	list, err := f.svc.CreateStockList(ctx, f.alice, "watch", false)
	require.NoError(t, err)

	_, err = f.svc.AddStock(ctx, f.alice, list.ID, "NOPE", 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidSymbol)

	_, err = f.svc.AddStock(ctx, f.alice, list.ID, "AAPL", -1)
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)

	_, err = f.svc.AddStock(ctx, f.bob, list.ID, "AAPL", 1)
	assert.ErrorIs(t, err, apperr.ErrNotOwned)

	zero := int64(0)
	_, err = f.svc.RemoveStock(ctx, f.alice, list.ID, "AAPL", &zero)
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
}

func TestStockListVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list, err := f.svc.CreateStockList(ctx, f.alice, "picks", false)
	require.NoError(t, err)

	_, err = f.svc.GetStockList(ctx, f.bob, list.ID)
	assert.ErrorIs(t, err, apperr.ErrNotOwned)

	_, err = f.svc.SetVisibility(ctx, f.bob, list.ID, true)
	assert.ErrorIs(t, err, apperr.ErrNotOwned)

	updated, err := f.svc.SetVisibility(ctx, f.alice, list.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Public)

	view, err := f.svc.GetStockList(ctx, f.bob, list.ID)
	require.NoError(t, err)
	assert.Equal(t, "picks", view.StockList.Name)
}

func TestListReviewing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	list, err := f.svc.CreateStockList(ctx, f.alice, "private picks", false)
	require.NoError(t, err)
	_, err = f.svc.CreateStockList(ctx, f.bob, "bob's own", false)
	require.NoError(t, err)

	require.NoError(t, f.store.DB.Create(&models.Review{UserID: f.bob, StockListID: list.ID}).Error)

	reviewing, err := f.svc.ListReviewing(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, reviewing, 1)
	assert.Equal(t, list.ID, reviewing[0].ID)

	view, err := f.svc.GetStockList(ctx, f.bob, list.ID)
	require.NoError(t, err)
	assert.Equal(t, list.ID, view.StockList.ID)

	own, err := f.svc.ListStockLists(ctx, f.bob)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "bob's own", own[0].Name)
}

func TestDeleteStockListCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SetPrice(t, f.store, "AAPL", "100")
	list, err := f.svc.CreateStockList(ctx, f.alice, "old", true)
	require.NoError(t, err)
	_, err = f.svc.AddStock(ctx, f.alice, list.ID, "AAPL", 1)
	require.NoError(t, err)
	require.NoError(t, f.store.DB.Create(&models.Review{UserID: f.bob, StockListID: list.ID, Body: "nice"}).Error)

	assert.ErrorIs(t, f.svc.DeleteStockList(ctx, f.bob, list.ID), apperr.ErrNotOwned)
	require.NoError(t, f.svc.DeleteStockList(ctx, f.alice, list.ID))

	var entries, reviews, lists int64
	require.NoError(t, f.store.DB.Model(&models.StockListEntry{}).Count(&entries).Error)
	require.NoError(t, f.store.DB.Model(&models.Review{}).Count(&reviews).Error)
	require.NoError(t, f.store.DB.Model(&models.StockList{}).Count(&lists).Error)
	assert.Zero(t, entries)
	assert.Zero(t, reviews)
	assert.Zero(t, lists)

	_, err = f.svc.GetStockList(ctx, f.alice, list.ID)
	assert.ErrorIs(t, err, apperr.ErrNotOwned)
}
