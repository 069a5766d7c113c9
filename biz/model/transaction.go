package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxBuy      TransactionType = "buy"
	TxSell     TransactionType = "sell"
	TxDeposit  TransactionType = "deposit"
	TxWithdraw TransactionType = "withdraw"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
)

// Transaction 资金流水，只追加；金额类字段写入后不再修改
type Transaction struct {
	ID          uint64              `gorm:"primaryKey;autoIncrement:false;column:id" json:"id,string"`
	UserID      string              `gorm:"index;not null;column:user_id" json:"user_id"`
	Type        TransactionType     `gorm:"not null;column:type" json:"type"`
	AssetID     *uint64             `gorm:"column:asset_id" json:"asset_id,omitempty,string"`
	Amount      decimal.Decimal     `gorm:"type:numeric(38,18);not null;column:amount" json:"amount"`
	Price       decimal.NullDecimal `gorm:"type:numeric(38,18);column:price" json:"price"`
	TotalValue  decimal.Decimal     `gorm:"type:numeric(38,18);not null;column:total_value" json:"total_value"`
	Fee         decimal.NullDecimal `gorm:"type:numeric(38,18);column:fee" json:"fee"`
	Status      TransactionStatus   `gorm:"not null;column:status" json:"status"`
	Archived    bool                `gorm:"not null;default:false;column:archived" json:"archived"`
	CreatedAt   time.Time           `gorm:"index;column:created_at" json:"created_at"`
	CompletedAt *time.Time          `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Version     int64               `gorm:"not null;default:0;column:version" json:"-"`

	Asset *Asset `gorm:"-" json:"asset,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.AssetID != nil {
		id := *t.AssetID
		c.AssetID = &id
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	c.Asset = t.Asset.Clone()
	return &c
}
