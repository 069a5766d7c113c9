package model

import "github.com/shopspring/decimal"

// PricePoint 历史价格采样点，Timestamp 为毫秒
type PricePoint struct {
	Timestamp int64           `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

type PriceHistory struct {
	Symbol string       `json:"symbol"`
	Days   int          `json:"days"`
	Points []PricePoint `json:"price_history"`
}
