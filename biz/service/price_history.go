package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
	historyCacheTTL    = 5 * time.Minute
)

// HistoryFeed 外部历史行情源
type HistoryFeed interface {
	FetchHistory(ctx context.Context, coinID string, days int) ([]model.PricePoint, error)
}

// 常见币种的 CoinGecko ID，其余按小写 symbol 查询
var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"XRP":  "ripple",
	"USDT": "tether",
	"ADA":  "cardano",
	"DOT":  "polkadot",
	"BNB":  "binancecoin",
	"DOGE": "dogecoin",
	"AVAX": "avalanche-2",
}

func coinGeckoID(symbol string) string {
	if id, ok := coinGeckoIDs[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// PriceHistoryService 只读的历史价格查询，先查缓存再回源
type PriceHistoryService struct {
	feed   HistoryFeed
	assets *AssetService
	cache  dal.Cache
}

func NewPriceHistoryService(feed HistoryFeed, assets *AssetService, cache dal.Cache) *PriceHistoryService {
	if cache == nil {
		cache = dal.NopCache{}
	}
	return &PriceHistoryService{feed: feed, assets: assets, cache: cache}
}

// History days 为 0 时取 30 天；行情源不可用时返回空序列
func (s *PriceHistoryService) History(ctx context.Context, symbol string, days int) (*model.PriceHistory, error) {
	if days == 0 {
		days = defaultHistoryDays
	}
	if days < 0 || days > maxHistoryDays {
		return nil, errs.New(errs.InvalidRequest, fmt.Sprintf("days must be between 1 and %d", maxHistoryDays))
	}
	asset, err := s.assets.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	res := &model.PriceHistory{Symbol: asset.Symbol, Days: days, Points: []model.PricePoint{}}

	points, ok, err := s.cache.GetPriceHistory(ctx, asset.Symbol, days)
	if err != nil {
		hlog.CtxWarnf(ctx, "[PriceHistory] cache read %s: %v", asset.Symbol, err)
	} else if ok {
		res.Points = points
		return res, nil
	}
	if s.feed == nil {
		return res, nil
	}
	points, err = s.feed.FetchHistory(ctx, coinGeckoID(asset.Symbol), days)
	if err != nil {
		hlog.CtxWarnf(ctx, "[PriceHistory] fetch %s: %v", asset.Symbol, err)
		return res, nil
	}
	res.Points = points
	if err := s.cache.SetPriceHistory(ctx, asset.Symbol, days, points, historyCacheTTL); err != nil {
		hlog.CtxWarnf(ctx, "[PriceHistory] cache write %s: %v", asset.Symbol, err)
	}
	return res, nil
}
