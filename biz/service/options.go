package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"cex-ledger/conf"
)

// Options 交易与做市参数
type Options struct {
	QuoteSymbol    string
	FeeRate        decimal.Decimal
	PoolFee        decimal.Decimal
	RatioTolerance decimal.Decimal
	// FeeCollector 非空时手续费记入该用户的计价钱包，否则留存
	FeeCollector string
	MinTradeTier int
	MaxRetries   uint
}

func DefaultOptions() Options {
	return Options{
		QuoteSymbol:    "USDT",
		FeeRate:        decimal.RequireFromString("0.0025"),
		PoolFee:        decimal.RequireFromString("0.003"),
		RatioTolerance: decimal.RequireFromString("0.01"),
		MaxRetries:     3,
	}
}

// OptionsFromConf 解析配置中的小数参数
func OptionsFromConf(c conf.Exchange) (Options, error) {
	o := DefaultOptions()
	var err error
	if c.QuoteSymbol != "" {
		o.QuoteSymbol = normalizeSymbol(c.QuoteSymbol)
	}
	if o.FeeRate, err = parseRate("fee_rate", c.FeeRate, o.FeeRate); err != nil {
		return o, err
	}
	if o.PoolFee, err = parseRate("pool_fee", c.PoolFee, o.PoolFee); err != nil {
		return o, err
	}
	if o.RatioTolerance, err = parseRate("ratio_tolerance", c.RatioTolerance, o.RatioTolerance); err != nil {
		return o, err
	}
	o.FeeCollector = c.FeeCollector
	o.MinTradeTier = c.MinTradeTier
	o.MaxRetries = c.MaxRetries
	return o, nil
}

func parseRate(name, raw string, def decimal.Decimal) (decimal.Decimal, error) {
	if raw == "" {
		return def, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return def, fmt.Errorf("exchange.%s: %w", name, err)
	}
	if v.IsNegative() || v.GreaterThanOrEqual(one) {
		return def, fmt.Errorf("exchange.%s must be in [0, 1), got %s", name, raw)
	}
	return v, nil
}
