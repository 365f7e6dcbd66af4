package stats

import (
	"context"
	"testing"
	"time"

	"stocks-social/apperr"
	"stocks-social/cache"
	"stocks-social/database"
	"stocks-social/guard"
	"stocks-social/models"
	"stocks-social/prices"
	"stocks-social/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts Options) (*Engine, *database.Store) {
	t.Helper()
	store := testutil.NewStore(t)
	opts.MarketIndex = "SPY"
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	e := NewEngine(store, prices.NewStore(store, zerolog.Nop()), guard.New(store), opts, zerolog.Nop())
	return e, store
}

func seed(t *testing.T, store *database.Store) {
	t.Helper()
	testutil.AddCloses(t, store, "AAA", "2024-01-01", 1, 2, 3, 4, 5)
	testutil.AddCloses(t, store, "BBB", "2024-01-01", 2, 4, 6, 8, 10)
	testutil.AddCloses(t, store, "SPY", "2024-01-01", 10, 20, 30, 40, 50)
}

func jan(t *testing.T, day string) models.Date {
	return testutil.Date(t, "2024-01-"+day)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Covariance")
	require.NoError(t, err)
	assert.Equal(t, Covariance, k)

	_, err = ParseKind("sharpe")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestVariance(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	seed(t, store)

	res, err := e.PairwiseStatistic(context.Background(), Variance, "AAA", "", jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	require.NotNil(t, res.Value)
	assert.InDelta(t, 2.5, *res.Value, 1e-9)
	assert.Equal(t, []string{"AAA"}, res.Symbols)
	assert.False(t, res.Cached)
}

func TestCovarianceIsCommutativeAndCached(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	seed(t, store)
	ctx := context.Background()

	ab, err := e.PairwiseStatistic(ctx, Covariance, "AAA", "BBB", jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	require.NotNil(t, ab.Value)
	assert.InDelta(t, 5.0, *ab.Value, 1e-9)
	assert.False(t, ab.Cached)

	ba, err := e.PairwiseStatistic(ctx, Covariance, "BBB", "AAA", jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	assert.True(t, ba.Cached)
	assert.Equal(t, *ab.Value, *ba.Value)

	var count int64
	require.NoError(t, store.DB.Model(&models.StatCacheEntry{}).Where("kind = ?", "covariance").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCacheHitReturnsStoredValue(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	seed(t, store)
	ctx := context.Background()

	_, err := e.PairwiseStatistic(ctx, Covariance, "AAA", "BBB", jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)

	require.NoError(t, store.DB.Model(&models.StatCacheEntry{}).
		Where("kind = ? AND symbol_a = ? AND symbol_b = ?", "covariance", "AAA", "BBB").
		Update("value", 42.0).Error)

	res, err := e.PairwiseStatistic(ctx, Covariance, "BBB", "AAA", jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 42.0, *res.Value)

	// A different range is a different entry.
	res, err = e.PairwiseStatistic(ctx, Covariance, "AAA", "BBB", jan(t, "01"), jan(t, "30"))
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.InDelta(t, 5.0, *res.Value, 1e-9)
}

func TestCovarianceWithSelfIsVariance(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	seed(t, store)

	res, err := e.PairwiseStatistic(context.Background(), Covariance, "BBB", "BBB", jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	assert.Equal(t, Variance, res.Kind)
	assert.InDelta(t, 10.0, *res.Value, 1e-9)
}

func TestBeta(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	seed(t, store)

	res, err := e.PairwiseStatistic(context.Background(), Beta, "AAA", "", jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	require.NotNil(t, res.Value)
	assert.InDelta(t, 0.1, *res.Value, 1e-9)
	assert.Equal(t, []string{"AAA", "SPY"}, res.Symbols)
}

func TestBetaWithoutReferenceData(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	testutil.AddCloses(t, store, "AAPL", "2024-01-01", 100, 101, 102)

	_, err := e.PairwiseStatistic(context.Background(), Beta, "AAPL", "", jan(t, "01"), jan(t, "31"))
	assert.ErrorIs(t, err, apperr.ErrNoReferenceData)

	// Index rows outside the range do not count.
	testutil.AddCloses(t, store, "SPY", "2023-06-01", 1, 2, 3)
	_, err = e.PairwiseStatistic(context.Background(), Beta, "AAPL", "", jan(t, "01"), jan(t, "31"))
	assert.ErrorIs(t, err, apperr.ErrNoReferenceData)
}

func TestUnknownSymbol(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	seed(t, store)
	ctx := context.Background()

	_, err := e.PairwiseStatistic(ctx, Covariance, "AAA", "ZZZ", jan(t, "01"), jan(t, "31"))
	assert.ErrorIs(t, err, apperr.ErrInvalidSymbol)

	_, err = e.PairwiseStatistic(ctx, Variance, "TOOLONG", "", jan(t, "01"), jan(t, "31"))
	assert.ErrorIs(t, err, apperr.ErrInvalidSymbol)
}

func TestNoDataIsCachedResult(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	seed(t, store)
	ctx := context.Background()

	res, err := e.PairwiseStatistic(ctx, Variance, "AAA", "", jan(t, "03"), jan(t, "03"))
	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.Nil(t, res.Value)

	res, err = e.PairwiseStatistic(ctx, Variance, "AAA", "", jan(t, "03"), jan(t, "03"))
	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.True(t, res.Cached)
}

func TestOpenRangeIsNeverCached(t *testing.T) {
	store := testutil.NewStore(t)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	priceStore := prices.NewStore(store, zerolog.Nop()).WithClock(func() time.Time { return now })
	e := NewEngine(store, priceStore, guard.New(store), Options{MarketIndex: "SPY"}, zerolog.Nop())
	ctx := context.Background()

	testutil.AddCloses(t, store, "AAA", "2024-01-08", 1, 2)

	res, err := e.PairwiseStatistic(ctx, Variance, "AAA", "", jan(t, "08"), jan(t, "10"))
	require.NoError(t, err)
	require.NotNil(t, res.Value)
	assert.InDelta(t, 0.5, *res.Value, 1e-9)
	assert.False(t, res.Cached)

	var count int64
	require.NoError(t, store.DB.Model(&models.StatCacheEntry{}).Count(&count).Error)
	assert.Zero(t, count)

	now = now.AddDate(0, 0, 1)
	require.NoError(t, priceStore.InsertHistoricalPrice(ctx, models.HistoricalPrice{
		Symbol: "AAA", Date: jan(t, "10"),
		Open: testutil.Dec(t, "30"), High: testutil.Dec(t, "30"), Low: testutil.Dec(t, "30"), Close: testutil.Dec(t, "30"),
	}))

	// The range is closed now: computed from all three closes, then stored.
	res, err = e.PairwiseStatistic(ctx, Variance, "AAA", "", jan(t, "08"), jan(t, "10"))
	require.NoError(t, err)
	require.NotNil(t, res.Value)
	assert.InDelta(t, 271.0, *res.Value, 1e-9)
	assert.False(t, res.Cached)

	res, err = e.PairwiseStatistic(ctx, Variance, "AAA", "", jan(t, "08"), jan(t, "10"))
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.InDelta(t, 271.0, *res.Value, 1e-9)
}

func TestInvalidRange(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	seed(t, store)

	_, err := e.PairwiseStatistic(context.Background(), Variance, "AAA", "", jan(t, "10"), jan(t, "01"))
	assert.ErrorIs(t, err, apperr.ErrInvalidTimestamp)

	_, err = e.PairwiseStatistic(context.Background(), Variance, "AAA", "", models.Date{}, jan(t, "01"))
	assert.ErrorIs(t, err, apperr.ErrInvalidTimestamp)
}

func TestRedisFront(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e, store := newTestEngine(t, Options{Cache: cache.NewRedis(rdb)})
	seed(t, store)
	ctx := context.Background()

	_, err := e.PairwiseStatistic(ctx, Covariance, "BBB", "AAA", jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("stat:covariance:AAA:BBB:2024-01-01:2024-01-31"))

	require.NoError(t, store.DB.Where("1 = 1").Delete(&models.StatCacheEntry{}).Error)

	res, err := e.PairwiseStatistic(ctx, Covariance, "AAA", "BBB", jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.InDelta(t, 5.0, *res.Value, 1e-9)
}

func TestCovarianceMatrix(t *testing.T) {
	e, store := newTestEngine(t, Options{Workers: 3})
	seed(t, store)

	m, err := e.CovarianceMatrix(context.Background(), []string{"AAA", "BBB", "SPY"}, jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	require.Len(t, m.Values, 3)

	assert.InDelta(t, 2.5, *m.Values[0][0], 1e-9)
	assert.InDelta(t, 10.0, *m.Values[1][1], 1e-9)
	assert.InDelta(t, 250.0, *m.Values[2][2], 1e-9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			require.NotNil(t, m.Values[i][j])
			assert.Equal(t, *m.Values[i][j], *m.Values[j][i])
		}
	}
	assert.InDelta(t, 5.0, *m.Values[0][1], 1e-9)
	assert.InDelta(t, 25.0, *m.Values[0][2], 1e-9)
}

func TestCovarianceMatrixBounds(t *testing.T) {
	e, store := newTestEngine(t, Options{MaxMatrixSymbols: 2})
	seed(t, store)
	ctx := context.Background()

	_, err := e.CovarianceMatrix(ctx, nil, jan(t, "01"), jan(t, "31"))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = e.CovarianceMatrix(ctx, []string{"AAA", "BBB", "SPY"}, jan(t, "01"), jan(t, "31"))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = e.CovarianceMatrix(ctx, []string{"AAA", "NOPE"}, jan(t, "01"), jan(t, "31"))
	assert.ErrorIs(t, err, apperr.ErrInvalidSymbol)
}

func TestStockListMatrixGuarded(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	seed(t, store)
	ctx := context.Background()

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")

	list := models.StockList{UserID: alice, Name: "tech"}
	require.NoError(t, store.DB.Create(&list).Error)
	empty := models.StockList{UserID: alice, Name: "empty"}
	require.NoError(t, store.DB.Create(&empty).Error)
	require.NoError(t, store.DB.Create(&models.StockListEntry{StockListID: list.ID, Symbol: "BBB", Quantity: 1}).Error)
	require.NoError(t, store.DB.Create(&models.StockListEntry{StockListID: list.ID, Symbol: "AAA", Quantity: 3}).Error)

	m, err := e.StockListMatrix(ctx, alice, list.ID, jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, m.Symbols)

	_, err = e.StockListMatrix(ctx, bob, list.ID, jan(t, "01"), jan(t, "31"))
	assert.ErrorIs(t, err, apperr.ErrNotOwned)

	_, err = e.StockListMatrix(ctx, alice, empty.ID, jan(t, "01"), jan(t, "31"))
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestPortfolioMatrix(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	seed(t, store)
	ctx := context.Background()

	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")
	pid := testutil.CreatePortfolio(t, store, alice, "0")
	require.NoError(t, store.DB.Create(&models.Holding{PortfolioID: pid, Symbol: "SPY", Quantity: 2}).Error)

	m, err := e.PortfolioMatrix(ctx, alice, pid, jan(t, "01"), jan(t, "31"))
	require.NoError(t, err)
	assert.InDelta(t, 250.0, *m.Values[0][0], 1e-9)

	_, err = e.PortfolioMatrix(ctx, bob, pid, jan(t, "01"), jan(t, "31"))
	assert.ErrorIs(t, err, apperr.ErrNotOwned)
}

func TestPredictFuturePrice(t *testing.T) {
	e, store := newTestEngine(t, Options{})
	testutil.AddCloses(t, store, "LIN", "2024-01-01", 100, 102, 104, 106)
	ctx := context.Background()

	p, err := e.PredictFuturePrice(ctx, "LIN", jan(t, "11"))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, p.Slope, 1e-6)
	assert.InDelta(t, 120.0, p.Price, 1e-6)
	assert.Equal(t, 4, p.Observations)

	testutil.AddCloses(t, store, "ONE", "2024-01-01", 50)
	p, err = e.PredictFuturePrice(ctx, "ONE", jan(t, "20"))
	require.NoError(t, err)
	assert.Equal(t, 50.0, p.Price)

	_, err = e.PredictFuturePrice(ctx, "NONE", jan(t, "20"))
	assert.ErrorIs(t, err, apperr.ErrNoHistoricalData)
}
