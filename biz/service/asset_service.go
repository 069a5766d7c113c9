package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/shopspring/decimal"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/engine"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
	"cex-ledger/conf"
	"cex-ledger/util"
)

const assetCacheTTL = 30 * time.Second

// AssetService 资产注册表：元数据与最新行情
type AssetService struct {
	store  dal.Store
	cache  dal.Cache
	locker *engine.Locker
	pub    engine.Publisher
	rank   *marketCapRank
}

func NewAssetService(store dal.Store, cache dal.Cache, locker *engine.Locker, pub engine.Publisher) *AssetService {
	if cache == nil {
		cache = dal.NopCache{}
	}
	if pub == nil {
		pub = engine.NopPublisher{}
	}
	return &AssetService{store: store, cache: cache, locker: locker, pub: pub, rank: newMarketCapRank()}
}

// Bootstrap 补齐配置中的初始资产，已存在的不覆盖；计价资产价格恒为 1
func (s *AssetService) Bootstrap(ctx context.Context, coins []conf.BootstrapCoin, quoteSymbol string) error {
	existing, err := s.reload(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, a := range existing {
		have[a.Symbol] = true
	}

	quoteSymbol = normalizeSymbol(quoteSymbol)
	quotes := make([]model.PriceQuote, 0, len(coins)+1)
	for _, c := range append(coins[:len(coins):len(coins)], conf.BootstrapCoin{Symbol: quoteSymbol, Name: quoteSymbol}) {
		symbol := normalizeSymbol(c.Symbol)
		if have[symbol] {
			continue
		}
		have[symbol] = true
		q := model.PriceQuote{Symbol: symbol, Name: c.Name}
		if c.Price != "" {
			p, err := decimal.NewFromString(c.Price)
			if err != nil {
				return fmt.Errorf("bootstrap asset %s: %w", symbol, err)
			}
			q.Price = decimal.NewNullDecimal(p)
		}
		if symbol == quoteSymbol {
			q.Price = decimal.NewNullDecimal(one)
		}
		quotes = append(quotes, q)
	}
	if err := s.UpsertPrices(ctx, quotes); err != nil {
		return err
	}
	_, err = s.reload(ctx)
	return err
}

// UpsertPrice 幂等写入一条行情
func (s *AssetService) UpsertPrice(ctx context.Context, q model.PriceQuote) (*model.Asset, error) {
	if err := s.UpsertPrices(ctx, []model.PriceQuote{q}); err != nil {
		return nil, err
	}
	return s.GetBySymbol(ctx, q.Symbol)
}

// UpsertPrices 批量写入行情，只持有资产锁
func (s *AssetService) UpsertPrices(ctx context.Context, quotes []model.PriceQuote) error {
	if len(quotes) == 0 {
		return nil
	}
	now := time.Now()
	assets := make([]*model.Asset, 0, len(quotes))
	keys := make([]string, 0, len(quotes))
	seen := make(map[string]int, len(quotes))
	for _, q := range quotes {
		symbol := normalizeSymbol(q.Symbol)
		if symbol == "" {
			return errs.New(errs.InvalidRequest, "asset symbol is required")
		}
		if q.Price.Valid && q.Price.Decimal.IsNegative() {
			return errs.New(errs.InvalidAmount, fmt.Sprintf("price of %s must not be negative", symbol))
		}
		id, err := util.NextID()
		if err != nil {
			return errs.Wrap(errs.Internal, "generate asset id", err)
		}
		a := &model.Asset{
			ID:                 id,
			Symbol:             symbol,
			Name:               strings.TrimSpace(q.Name),
			CurrentPrice:       q.Price,
			PriceChangePercent: q.ChangePercent,
			MarketCap:          q.MarketCap,
			LastUpdated:        now,
		}
		// 同批次重复 symbol 以后者为准
		if i, dup := seen[symbol]; dup {
			assets[i] = a
			continue
		}
		seen[symbol] = len(assets)
		assets = append(assets, a)
		keys = append(keys, engine.AssetKey(symbol))
	}

	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()

	// 已有资产沿用 ID、图标，以及行情未提供的名称
	err = s.store.View(ctx, func(tx dal.Tx) error {
		for _, a := range assets {
			cur, err := tx.FindAssetBySymbol(ctx, a.Symbol)
			if err != nil {
				return err
			}
			if cur != nil {
				a.ID, a.Icon = cur.ID, cur.Icon
				if a.Name == "" {
					a.Name = cur.Name
				}
			}
			if a.Name == "" {
				a.Name = a.Symbol
			}
			if a.Icon == "" {
				a.Icon = a.Symbol[:1]
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.store.UpsertAssets(ctx, assets); err != nil {
		return err
	}
	if err := s.cache.InvalidateAssets(ctx); err != nil {
		hlog.CtxWarnf(ctx, "[AssetService] invalidate cache: %v", err)
	}
	for _, a := range assets {
		s.rank.Set(a)
		s.pub.Publish(ctx, model.NewEvent(model.EventPriceUpdated, model.ChannelPrices, "", a))
	}
	return nil
}

// GetBySymbol 返回快照
func (s *AssetService) GetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	var asset *model.Asset
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		asset, err = tx.FindAssetBySymbol(ctx, normalizeSymbol(symbol))
		return err
	})
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, errs.New(errs.AssetNotFound, fmt.Sprintf("asset %s not found", normalizeSymbol(symbol)))
	}
	return asset, nil
}

func (s *AssetService) GetByID(ctx context.Context, id uint64) (*model.Asset, error) {
	var asset *model.Asset
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		asset, err = findAsset(ctx, tx, id)
		return err
	})
	return asset, err
}

// List 按市值排名返回全部资产
func (s *AssetService) List(ctx context.Context) ([]*model.Asset, error) {
	if cached, ok, err := s.cache.GetAssets(ctx); err != nil {
		hlog.CtxWarnf(ctx, "[AssetService] read cache: %v", err)
	} else if ok {
		return cached, nil
	}
	return s.reload(ctx)
}

func (s *AssetService) reload(ctx context.Context) ([]*model.Asset, error) {
	var all []*model.Asset
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		all, err = tx.ListAssets(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.rank.Reset(all)
	ordered := s.rank.Ordered()
	if err := s.cache.SetAssets(ctx, ordered, assetCacheTTL); err != nil {
		hlog.CtxWarnf(ctx, "[AssetService] write cache: %v", err)
	}
	return ordered, nil
}

// findAsset 事务内读取资产，不存在返回 AssetNotFound
func findAsset(ctx context.Context, tx dal.Tx, id uint64) (*model.Asset, error) {
	a, err := tx.FindAssetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errs.New(errs.AssetNotFound, fmt.Sprintf("asset %d not found", id))
	}
	return a, nil
}

// currentPrice 资产无有效价格时返回 PriceUnavailable
func currentPrice(a *model.Asset) (decimal.Decimal, error) {
	if !a.CurrentPrice.Valid || a.CurrentPrice.Decimal.Sign() <= 0 {
		return decimal.Zero, errs.New(errs.PriceUnavailable, fmt.Sprintf("no current price for %s", a.Symbol))
	}
	return a.CurrentPrice.Decimal, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
