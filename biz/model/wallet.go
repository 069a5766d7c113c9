package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet 用户单币种余额，(UserID, AssetID) 唯一
type Wallet struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement:false;column:id" json:"id,string"`
	UserID    string          `gorm:"uniqueIndex:uk_wallet_user_asset;not null;column:user_id" json:"user_id"`
	AssetID   uint64          `gorm:"uniqueIndex:uk_wallet_user_asset;not null;column:asset_id" json:"asset_id,string"`
	Balance   decimal.Decimal `gorm:"type:numeric(38,18);not null;column:balance" json:"balance"`
	Address   string          `gorm:"column:address" json:"address"`
	Version   int64           `gorm:"not null;default:0;column:version" json:"-"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"updated_at"`

	Asset *Asset `gorm:"-" json:"asset,omitempty"`
}

func (Wallet) TableName() string {
	return "wallets"
}

func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	c := *w
	c.Asset = w.Asset.Clone()
	return &c
}

// WalletAddress 模拟充值地址
func WalletAddress(userID string, assetID uint64) string {
	return fmt.Sprintf("wallet-%s-%d", userID, assetID)
}
