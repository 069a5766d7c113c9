package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset 币种元数据与最新行情
type Asset struct {
	ID                 uint64              `gorm:"primaryKey;autoIncrement:false;column:id" json:"id,string"`
	Symbol             string              `gorm:"uniqueIndex;not null;column:symbol" json:"symbol"`
	Name               string              `gorm:"not null;column:name" json:"name"`
	CurrentPrice       decimal.NullDecimal `gorm:"type:numeric(38,18);column:current_price" json:"current_price"`
	PriceChangePercent decimal.NullDecimal `gorm:"type:numeric(38,18);column:price_change_percent" json:"price_change_percent"`
	MarketCap          decimal.NullDecimal `gorm:"type:numeric(38,2);column:market_cap" json:"market_cap"`
	Icon               string              `gorm:"column:icon" json:"icon"`
	LastUpdated        time.Time           `gorm:"column:last_updated" json:"last_updated"`
}

func (Asset) TableName() string {
	return "assets"
}

// Clone 返回快照，调用方修改不影响存储
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// PriceQuote 价格源推送的一条行情
type PriceQuote struct {
	Symbol        string
	Name          string
	Price         decimal.NullDecimal
	ChangePercent decimal.NullDecimal
	MarketCap     decimal.NullDecimal
}
