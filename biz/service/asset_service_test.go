package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"

	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
	"cex-ledger/conf"
)

func symbols(assets []*model.Asset) []string {
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.Symbol)
	}
	return out
}

func TestBootstrapKeepsExistingAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	usdt := f.asset(t, "USDT")
	require.Equal(t, "1", usdt.CurrentPrice.Decimal.String())
	require.False(t, f.asset(t, "NOPX").CurrentPrice.Valid)

	_, err := f.ex.UpsertPrice(ctx, model.PriceQuote{Symbol: "BTC", Name: "Bitcoin", Price: decimal.NewNullDecimal(d("50000"))})
	require.NoError(t, err)
	require.NoError(t, f.ex.Assets.Bootstrap(ctx, testCoins, "USDT"))

	require.Equal(t, "50000", f.asset(t, "BTC").CurrentPrice.Decimal.String())
	all, err := f.ex.Assets.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(testCoins))
}

func TestBootstrapAddsQuoteAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ex.Assets.Bootstrap(ctx, []conf.BootstrapCoin{{Symbol: "sol", Name: "Solana", Price: "101.5"}}, "DAI"))

	dai := f.asset(t, "DAI")
	require.Equal(t, "1", dai.CurrentPrice.Decimal.String())
	require.Equal(t, "101.5", f.asset(t, "SOL").CurrentPrice.Decimal.String())

	err := f.ex.Assets.Bootstrap(ctx, []conf.BootstrapCoin{{Symbol: "BAD", Price: "x"}}, "USDT")
	require.Error(t, err)
}

func TestUpsertPriceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := model.PriceQuote{Symbol: " eth ", Name: "Ethereum", Price: decimal.NewNullDecimal(d("2300")),
		ChangePercent: decimal.NewNullDecimal(d("-1.5"))}

	first, err := f.ex.UpsertPrice(ctx, q)
	require.NoError(t, err)
	second, err := f.ex.UpsertPrice(ctx, q)
	require.NoError(t, err)

	require.Equal(t, "ETH", first.Symbol)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "2300", second.CurrentPrice.Decimal.String())
	require.Equal(t, "-1.5", second.PriceChangePercent.Decimal.String())
	all, err := f.ex.Assets.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(testCoins))
	require.Equal(t, 2, f.pub.count(model.EventPriceUpdated)-len(testCoins))
}

func TestUpsertPriceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ex.UpsertPrice(ctx, model.PriceQuote{Symbol: "  "})
	require.True(t, errs.IsKind(err, errs.InvalidRequest))
	_, err = f.ex.UpsertPrice(ctx, model.PriceQuote{Symbol: "BTC", Price: decimal.NewNullDecimal(d("-1"))})
	require.True(t, errs.IsKind(err, errs.InvalidAmount))
	require.Equal(t, "42897.53", f.asset(t, "BTC").CurrentPrice.Decimal.String())

	_, err = f.ex.Assets.GetBySymbol(ctx, "DOGE")
	require.True(t, errs.IsKind(err, errs.AssetNotFound))
	_, err = f.ex.Assets.GetByID(ctx, 7)
	require.True(t, errs.IsKind(err, errs.AssetNotFound))
}

func TestUpsertPricesLastDuplicateWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	err := f.ex.Assets.UpsertPrices(ctx, []model.PriceQuote{
		{Symbol: "SOL", Price: decimal.NewNullDecimal(d("100"))},
		{Symbol: "sol", Price: decimal.NewNullDecimal(d("105"))},
	})
	require.NoError(t, err)
	sol := f.asset(t, "SOL")
	require.Equal(t, "105", sol.CurrentPrice.Decimal.String())
	require.Equal(t, "SOL", sol.Name)
	require.Equal(t, "S", sol.Icon)
}

func TestUpsertPriceKeepsStoredNameAndIcon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	btc := f.asset(t, "BTC")
	require.Equal(t, "B", btc.Icon)

	updated, err := f.ex.UpsertPrice(ctx, model.PriceQuote{Symbol: "btc", Price: decimal.NewNullDecimal(d("51000"))})
	require.NoError(t, err)
	require.Equal(t, btc.ID, updated.ID)
	require.Equal(t, "Bitcoin", updated.Name)
	require.Equal(t, "B", updated.Icon)
	require.Equal(t, "51000", updated.CurrentPrice.Decimal.String())

	renamed, err := f.ex.UpsertPrice(ctx, model.PriceQuote{Symbol: "BTC", Name: "Bitcoin Core", Price: decimal.NewNullDecimal(d("51000"))})
	require.NoError(t, err)
	require.Equal(t, "Bitcoin Core", renamed.Name)
	require.Equal(t, "B", renamed.Icon)

	ranked, err := f.ex.Assets.List(ctx)
	require.NoError(t, err)
	for _, a := range ranked {
		if a.Symbol == "BTC" {
			require.Equal(t, btc.ID, a.ID)
		}
	}
}

func TestListRanksByMarketCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ex.Assets.UpsertPrices(ctx, []model.PriceQuote{
		{Symbol: "ETH", Price: decimal.NewNullDecimal(d("2280.14")), MarketCap: decimal.NewNullDecimal(d("274000000000"))},
		{Symbol: "BTC", Price: decimal.NewNullDecimal(d("42897.53")), MarketCap: decimal.NewNullDecimal(d("840000000000"))},
	}))

	all, err := f.ex.Assets.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"BTC", "ETH", "NOPX", "TKA", "TKB", "USDT"}, symbols(all))

	// 返回快照，修改不影响注册表
	all[0].Symbol = "XXX"
	again, err := f.ex.Assets.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "BTC", again[0].Symbol)
}

func TestConcurrentUpsertsKeepOneRowPerSymbol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var wg conc.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Go(func() {
			if _, err := f.ex.UpsertPrice(ctx, model.PriceQuote{Symbol: "ADA", Price: decimal.NewNullDecimal(decimal.NewFromInt(int64(i + 1)))}); err != nil {
				t.Errorf("upsert: %v", err)
			}
		})
	}
	wg.Wait()
	all, err := f.ex.Assets.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(testCoins)+1)
}

func TestMarketCapRankReplacesEntries(t *testing.T) {
	r := newMarketCapRank()
	r.Set(&model.Asset{Symbol: "A", MarketCap: decimal.NewNullDecimal(d("1"))})
	r.Set(&model.Asset{Symbol: "B", MarketCap: decimal.NewNullDecimal(d("2"))})
	r.Set(&model.Asset{Symbol: "A", MarketCap: decimal.NewNullDecimal(d("3"))})
	r.Set(&model.Asset{Symbol: "C"})

	require.Equal(t, 3, r.Len())
	require.Equal(t, []string{"A", "B", "C"}, symbols(r.Ordered()))
}
