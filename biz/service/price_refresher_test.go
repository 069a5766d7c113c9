package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"cex-ledger/biz/model"
	"cex-ledger/conf"
)

type stubGetter struct {
	status int
	body   string
	err    error
	urls   []string
}

func (g *stubGetter) Get(_ context.Context, _ []byte, url string, _ ...config.RequestOption) (int, []byte, error) {
	g.urls = append(g.urls, url)
	return g.status, []byte(g.body), g.err
}

type stubFeed struct {
	quotes []model.PriceQuote
	calls  int
}

func (s *stubFeed) FetchPrices(context.Context) ([]model.PriceQuote, error) {
	s.calls++
	return s.quotes, nil
}

type stubLeader struct {
	ok       bool
	unlocked bool
}

func (l *stubLeader) TryLock(string) (func(), bool, error) {
	return func() { l.unlocked = true }, l.ok, nil
}

const marketsBody = `[
 {"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":43120.5,"market_cap":845000000000,"price_change_percentage_24h":1.25},
 {"id":"tether","symbol":"usdt","name":"Tether","current_price":1.0002,"market_cap":91000000000,"price_change_percentage_24h":0.01},
 {"id":"ghost","symbol":"ghst","name":"Ghost","current_price":null,"market_cap":null,"price_change_percentage_24h":null},
 {"id":"blank","symbol":"","name":"Blank","current_price":1}
]`

func TestCoinGeckoFeedParsesMarkets(t *testing.T) {
	g := &stubGetter{status: 200, body: marketsBody}
	feed := newCoinGeckoFeed(g, conf.PriceFeed{})

	quotes, err := feed.FetchPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	require.Equal(t, "BTC", quotes[0].Symbol)
	require.Equal(t, "43120.5", quotes[0].Price.Decimal.String())
	require.Equal(t, "1.25", quotes[0].ChangePercent.Decimal.String())
	require.False(t, quotes[2].Price.Valid)

	require.Len(t, g.urls, 1)
	require.True(t, strings.HasPrefix(g.urls[0], "https://api.coingecko.com/api/v3/coins/markets?"))
	require.Contains(t, g.urls[0], "vs_currency=usd")
	require.Contains(t, g.urls[0], "per_page=100")
}

func TestCoinGeckoFeedErrors(t *testing.T) {
	_, err := newCoinGeckoFeed(&stubGetter{status: 429}, conf.PriceFeed{}).FetchPrices(context.Background())
	require.ErrorContains(t, err, "status 429")
	_, err = newCoinGeckoFeed(&stubGetter{err: errors.New("dial tcp: refused")}, conf.PriceFeed{}).FetchPrices(context.Background())
	require.ErrorContains(t, err, "refused")
	_, err = newCoinGeckoFeed(&stubGetter{status: 200, body: "{"}, conf.PriceFeed{}).FetchPrices(context.Background())
	require.ErrorContains(t, err, "decode")
}

func TestRefreshOnceSkipsQuoteAsset(t *testing.T) {
	f := newFixture(t)
	feed := &stubFeed{quotes: []model.PriceQuote{
		{Symbol: "BTC", Name: "Bitcoin", Price: decimal.NewNullDecimal(d("43120.5"))},
		{Symbol: "USDT", Name: "Tether", Price: decimal.NewNullDecimal(d("1.0002"))},
		{Symbol: "SOL", Name: "Solana", Price: decimal.NewNullDecimal(d("98.7"))},
	}}
	leader := &stubLeader{ok: true}
	r := NewPriceRefresher(feed, f.ex.Assets, leader, 0, "usdt")

	n, err := r.RefreshOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, leader.unlocked)
	require.Equal(t, "43120.5", f.asset(t, "BTC").CurrentPrice.Decimal.String())
	require.Equal(t, "98.7", f.asset(t, "SOL").CurrentPrice.Decimal.String())
	require.Equal(t, "1", f.asset(t, "USDT").CurrentPrice.Decimal.String())
}

func TestRefreshOnceWithoutLeadership(t *testing.T) {
	f := newFixture(t)
	feed := &stubFeed{quotes: []model.PriceQuote{{Symbol: "BTC", Price: decimal.NewNullDecimal(d("1"))}}}
	r := NewPriceRefresher(feed, f.ex.Assets, &stubLeader{ok: false}, 0, "USDT")

	n, err := r.RefreshOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, feed.calls)
	require.Equal(t, "42897.53", f.asset(t, "BTC").CurrentPrice.Decimal.String())
}

func TestRunStopsWithContext(t *testing.T) {
	f := newFixture(t)
	feed := &stubFeed{}
	r := NewPriceRefresher(feed, f.ex.Assets, nil, 0, "USDT")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)
	require.Equal(t, 1, feed.calls)
}

func TestCoinGeckoFeedParsesMarketChart(t *testing.T) {
	g := &stubGetter{status: 200, body: `{"prices":[[1700000000000,42000.5],[1700003600000,42150.25],[1]],"market_caps":[]}`}
	feed := newCoinGeckoFeed(g, conf.PriceFeed{})

	points, err := feed.FetchHistory(context.Background(), "bitcoin", 7)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, int64(1700000000000), points[0].Timestamp)
	require.Equal(t, "42150.25", points[1].Price.String())

	require.True(t, strings.HasPrefix(g.urls[0], "https://api.coingecko.com/api/v3/coins/bitcoin/market_chart?"))
	require.Contains(t, g.urls[0], "days=7")
	require.Contains(t, g.urls[0], "vs_currency=usd")

	_, err = newCoinGeckoFeed(&stubGetter{status: 404}, conf.PriceFeed{}).FetchHistory(context.Background(), "nope", 1)
	require.ErrorContains(t, err, "status 404")
}
