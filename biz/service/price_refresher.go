package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/shopspring/decimal"

	"cex-ledger/biz/model"
	"cex-ledger/conf"
)

const priceRefreshLockKey = "cex-ledger/price_refresh_lock"

// PriceFeed 外部行情源
type PriceFeed interface {
	FetchPrices(ctx context.Context) ([]model.PriceQuote, error)
}

// LeaderLock 多节点部署时只让一个节点刷新行情
type LeaderLock interface {
	TryLock(key string) (unlock func(), ok bool, err error)
}

type httpGetter interface {
	Get(ctx context.Context, dst []byte, url string, requestOptions ...config.RequestOption) (statusCode int, body []byte, err error)
}

// CoinGeckoFeed 拉取 /coins/markets 与 /coins/{id}/market_chart
type CoinGeckoFeed struct {
	cli     httpGetter
	baseURL string
	vs      string
	perPage int
}

func NewCoinGeckoFeed(cfg conf.PriceFeed) (*CoinGeckoFeed, error) {
	cli, err := client.NewClient(client.WithDialTimeout(5*time.Second), client.WithClientReadTimeout(15*time.Second))
	if err != nil {
		return nil, err
	}
	return newCoinGeckoFeed(cli, cfg), nil
}

func newCoinGeckoFeed(cli httpGetter, cfg conf.PriceFeed) *CoinGeckoFeed {
	f := &CoinGeckoFeed{cli: cli, baseURL: cfg.BaseURL, vs: cfg.VsCurrency, perPage: cfg.PerPage}
	if f.baseURL == "" {
		f.baseURL = "https://api.coingecko.com/api/v3"
	}
	if f.vs == "" {
		f.vs = "usd"
	}
	if f.perPage <= 0 {
		f.perPage = 100
	}
	return f
}

type coinMarket struct {
	Symbol                   string              `json:"symbol"`
	Name                     string              `json:"name"`
	CurrentPrice             decimal.NullDecimal `json:"current_price"`
	MarketCap                decimal.NullDecimal `json:"market_cap"`
	PriceChangePercentage24h decimal.NullDecimal `json:"price_change_percentage_24h"`
}

func (f *CoinGeckoFeed) FetchPrices(ctx context.Context) ([]model.PriceQuote, error) {
	q := url.Values{}
	q.Set("vs_currency", f.vs)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(f.perPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	var markets []coinMarket
	if err := f.get(ctx, "/coins/markets?"+q.Encode(), &markets); err != nil {
		return nil, err
	}
	quotes := make([]model.PriceQuote, 0, len(markets))
	for _, m := range markets {
		if m.Symbol == "" {
			continue
		}
		quotes = append(quotes, model.PriceQuote{
			Symbol:        normalizeSymbol(m.Symbol),
			Name:          m.Name,
			Price:         m.CurrentPrice,
			ChangePercent: m.PriceChangePercentage24h,
			MarketCap:     m.MarketCap,
		})
	}
	return quotes, nil
}

// coinChart market_chart 的 prices 为 [毫秒时间戳, 价格] 数组
type coinChart struct {
	Prices [][]decimal.Decimal `json:"prices"`
}

func (f *CoinGeckoFeed) FetchHistory(ctx context.Context, coinID string, days int) ([]model.PricePoint, error) {
	q := url.Values{}
	q.Set("vs_currency", f.vs)
	q.Set("days", strconv.Itoa(days))
	var chart coinChart
	if err := f.get(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart?"+q.Encode(), &chart); err != nil {
		return nil, err
	}
	points := make([]model.PricePoint, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		if len(p) < 2 {
			continue
		}
		points = append(points, model.PricePoint{Timestamp: p[0].IntPart(), Price: p[1]})
	}
	return points, nil
}

func (f *CoinGeckoFeed) get(ctx context.Context, path string, dst any) error {
	status, body, err := f.cli.Get(ctx, nil, f.baseURL+path)
	if err != nil {
		return fmt.Errorf("coingecko request: %w", err)
	}
	if status != consts.StatusOK {
		return fmt.Errorf("coingecko status %d", status)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("coingecko decode: %w", err)
	}
	return nil
}

// PriceRefresher 定时把行情写入资产注册表，不触碰钱包与池
type PriceRefresher struct {
	feed     PriceFeed
	assets   *AssetService
	leader   LeaderLock
	interval time.Duration
	quote    string
}

func NewPriceRefresher(feed PriceFeed, assets *AssetService, leader LeaderLock, interval time.Duration, quoteSymbol string) *PriceRefresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &PriceRefresher{feed: feed, assets: assets, leader: leader, interval: interval, quote: normalizeSymbol(quoteSymbol)}
}

// RefreshOnce 返回写入条数；计价资产的价格不随行情变化
func (r *PriceRefresher) RefreshOnce(ctx context.Context) (int, error) {
	if r.leader != nil {
		unlock, ok, err := r.leader.TryLock(priceRefreshLockKey)
		if err != nil {
			return 0, fmt.Errorf("price refresh lock: %w", err)
		}
		if !ok {
			return 0, nil
		}
		defer unlock()
	}
	quotes, err := r.feed.FetchPrices(ctx)
	if err != nil {
		return 0, err
	}
	kept := quotes[:0]
	for _, q := range quotes {
		if q.Symbol == r.quote {
			continue
		}
		kept = append(kept, q)
	}
	if err := r.assets.UpsertPrices(ctx, kept); err != nil {
		return 0, err
	}
	return len(kept), nil
}

// Run 启动即刷新一次，之后按周期执行，ctx 结束时退出
func (r *PriceRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.RefreshOnce(ctx)
		if err != nil {
			hlog.CtxWarnf(ctx, "[PriceRefresher] refresh failed: %v", err)
		} else if n > 0 {
			hlog.CtxInfof(ctx, "[PriceRefresher] refreshed %d assets", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
