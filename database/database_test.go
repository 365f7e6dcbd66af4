package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stocks-social/apperr"
	"stocks-social/database"
	"stocks-social/models"
	"stocks-social/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTransactionCommits(t *testing.T) {
	store := testutil.NewStore(t)
	uid := testutil.CreateUser(t, store, "a@example.com")

	err := store.Transaction(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&models.Portfolio{UserID: uid, Name: "p", Cash: testutil.Dec(t, "10")}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, store.DB.Model(&models.Portfolio{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	store := testutil.NewStore(t)
	uid := testutil.CreateUser(t, store, "a@example.com")

	err := store.Transaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&models.Portfolio{UserID: uid, Name: "p"}).Error; err != nil {
			return err
		}
		return apperr.New(apperr.KindInsufficientFunds, "not enough cash")
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	var count int64
	require.NoError(t, store.DB.Model(&models.Portfolio{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTransactionClassifiesUnexpectedErrors(t *testing.T) {
	store := testutil.NewStore(t)

	err := store.Transaction(context.Background(), func(tx *gorm.DB) error {
		return errors.New("disk full")
	})
	assert.ErrorIs(t, err, apperr.ErrOperationFailed)
	assert.False(t, apperr.Retryable(err))

	err = store.Transaction(context.Background(), func(tx *gorm.DB) error {
		return fmt.Errorf("query: %w", context.DeadlineExceeded)
	})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.True(t, apperr.Retryable(err))
}

func TestTransactionRollsBackOnPanic(t *testing.T) {
	store := testutil.NewStore(t)
	uid := testutil.CreateUser(t, store, "a@example.com")

	assert.Panics(t, func() {
		_ = store.Transaction(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&models.Portfolio{UserID: uid, Name: "p"})
			panic("boom")
		})
	})

	var count int64
	require.NoError(t, store.DB.Model(&models.Portfolio{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReadTimesOut(t *testing.T) {
	store := testutil.NewStore(t)
	short := database.New(store.DB, time.Millisecond, zerolog.Nop())

	err := short.Read(context.Background(), func(db *gorm.DB) error {
		<-db.Statement.Context.Done()
		return db.Statement.Context.Err()
	})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestCreateInBatchesSkipsConflicts(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.AddCloses(t, store, "AAPL", "2024-01-02", 100)

	v := testutil.Dec(t, "101")
	rows := []models.HistoricalPrice{
		{Symbol: "AAPL", Date: testutil.Date(t, "2024-01-02"), Open: v, High: v, Low: v, Close: v},
		{Symbol: "AAPL", Date: testutil.Date(t, "2024-01-03"), Open: v, High: v, Low: v, Close: v},
		{Symbol: "AAPL", Date: testutil.Date(t, "2024-01-04"), Open: v, High: v, Low: v, Close: v},
	}

	inserted, err := store.CreateInBatches(context.Background(), rows, 2, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	var first models.HistoricalPrice
	require.NoError(t, store.DB.Where("symbol = ? AND trade_date = ?", "AAPL", testutil.Date(t, "2024-01-02")).First(&first).Error)
	assert.Equal(t, "100", first.Close.String())
}

func TestCreateInBatchesValidatesInput(t *testing.T) {
	store := testutil.NewStore(t)

	_, err := store.CreateInBatches(context.Background(), []models.Stock{}, 0, false)
	assert.ErrorIs(t, err, database.ErrInvalidBatchSize)

	_, err = store.CreateInBatches(context.Background(), models.Stock{}, 10, false)
	assert.ErrorIs(t, err, database.ErrInvalidData)
}
