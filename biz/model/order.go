package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order 订单模型（GORM）
type Order struct {
	ID            uint64              `gorm:"primaryKey;autoIncrement:false;column:id" json:"id,string"`
	UserID        string              `gorm:"index;not null;column:user_id" json:"user_id"`
	AssetID       uint64              `gorm:"not null;column:asset_id" json:"asset_id,string"`
	Type          OrderSide           `gorm:"not null;column:type" json:"type"`
	OrderType     OrderType           `gorm:"not null;column:order_type" json:"order_type"`
	Amount        decimal.Decimal     `gorm:"type:numeric(38,18);not null;column:amount" json:"amount"`
	Price         decimal.NullDecimal `gorm:"type:numeric(38,18);column:price" json:"price"`
	Status        OrderStatus         `gorm:"index;not null;column:status" json:"status"`
	TransactionID *uint64             `gorm:"column:transaction_id" json:"transaction_id,omitempty,string"`
	CreatedAt     time.Time           `gorm:"column:created_at" json:"created_at"`
	CompletedAt   *time.Time          `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Version       int64               `gorm:"not null;default:0;column:version" json:"-"`

	Asset *Asset `gorm:"-" json:"asset,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.TransactionID != nil {
		id := *o.TransactionID
		c.TransactionID = &id
	}
	if o.CompletedAt != nil {
		at := *o.CompletedAt
		c.CompletedAt = &at
	}
	c.Asset = o.Asset.Clone()
	return &c
}
