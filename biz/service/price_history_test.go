package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
)

type stubHistory struct {
	points []model.PricePoint
	err    error

	mu    sync.Mutex
	calls []string
	days  []int
}

func (s *stubHistory) FetchHistory(_ context.Context, coinID string, days int) ([]model.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, coinID)
	s.days = append(s.days, days)
	return s.points, s.err
}

// historyCache 只实现历史行情部分
type historyCache struct {
	dal.NopCache
	mu     sync.Mutex
	series map[string][]model.PricePoint
}

func (c *historyCache) GetPriceHistory(_ context.Context, symbol string, days int) ([]model.PricePoint, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.series[symbol+":"+strconv.Itoa(days)]
	return p, ok, nil
}

func (c *historyCache) SetPriceHistory(_ context.Context, symbol string, days int, points []model.PricePoint, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series[symbol+":"+strconv.Itoa(days)] = points
	return nil
}

func samplePoints() []model.PricePoint {
	return []model.PricePoint{
		{Timestamp: 1700000000000, Price: d("42000.5")},
		{Timestamp: 1700086400000, Price: d("42897.53")},
	}
}

func TestPriceHistoryFetchesAndCaches(t *testing.T) {
	feed := &stubHistory{points: samplePoints()}
	cache := &historyCache{series: map[string][]model.PricePoint{}}
	f := newFixture(t, withHistory(feed), withCache(cache))
	ctx := context.Background()

	h, err := f.ex.History.History(ctx, "btc", 0)
	require.NoError(t, err)
	require.Equal(t, "BTC", h.Symbol)
	require.Equal(t, 30, h.Days)
	require.Len(t, h.Points, 2)
	require.Equal(t, []string{"bitcoin"}, feed.calls)
	require.Equal(t, []int{30}, feed.days)

	// 第二次命中缓存
	again, err := f.ex.History.History(ctx, "BTC", 30)
	require.NoError(t, err)
	require.Equal(t, h.Points, again.Points)
	require.Len(t, feed.calls, 1)

	_, err = f.ex.History.History(ctx, "TKA", 7)
	require.NoError(t, err)
	require.Equal(t, []string{"bitcoin", "tka"}, feed.calls)
}

func TestPriceHistoryValidation(t *testing.T) {
	f := newFixture(t, withHistory(&stubHistory{}))
	ctx := context.Background()

	_, err := f.ex.History.History(ctx, "DOGE", 7)
	require.True(t, errs.IsKind(err, errs.AssetNotFound), "got %v", err)
	_, err = f.ex.History.History(ctx, "BTC", -1)
	require.True(t, errs.IsKind(err, errs.InvalidRequest), "got %v", err)
	_, err = f.ex.History.History(ctx, "BTC", 366)
	require.True(t, errs.IsKind(err, errs.InvalidRequest), "got %v", err)
}

func TestPriceHistoryFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	feed := &stubHistory{err: errors.New("coingecko status 429")}
	cache := &historyCache{series: map[string][]model.PricePoint{}}
	f := newFixture(t, withHistory(feed), withCache(cache))

	h, err := f.ex.History.History(ctx, "ETH", 1)
	require.NoError(t, err)
	require.NotNil(t, h.Points)
	require.Empty(t, h.Points)
	// 失败结果不写缓存
	require.Empty(t, cache.series)

	noFeed := newFixture(t)
	h, err = noFeed.ex.History.History(ctx, "ETH", 1)
	require.NoError(t, err)
	require.Empty(t, h.Points)
}
