package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LiquidityPool 恒定乘积池，PairKey 为无序交易对的唯一键
type LiquidityPool struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement:false;column:id" json:"id,string"`
	Token0ID       uint64          `gorm:"not null;column:token0_id" json:"token0_id,string"`
	Token1ID       uint64          `gorm:"not null;column:token1_id" json:"token1_id,string"`
	PairKey        string          `gorm:"uniqueIndex;not null;column:pair_key" json:"pair_key"`
	Token0Reserve  decimal.Decimal `gorm:"type:numeric(38,18);not null;column:token0_reserve" json:"token0_reserve"`
	Token1Reserve  decimal.Decimal `gorm:"type:numeric(38,18);not null;column:token1_reserve" json:"token1_reserve"`
	Fee            decimal.Decimal `gorm:"type:numeric(10,6);not null;column:fee" json:"fee"`
	TotalLiquidity decimal.Decimal `gorm:"type:numeric(38,18);not null;column:total_liquidity" json:"total_liquidity"`
	Version        int64           `gorm:"not null;default:0;column:version" json:"-"`
	CreatedAt      time.Time       `gorm:"column:created_at" json:"created_at"`
	LastUpdated    time.Time       `gorm:"column:last_updated" json:"last_updated"`

	Token0 *Asset `gorm:"-" json:"token0,omitempty"`
	Token1 *Asset `gorm:"-" json:"token1,omitempty"`
}

func (LiquidityPool) TableName() string {
	return "liquidity_pools"
}

func (p *LiquidityPool) Clone() *LiquidityPool {
	if p == nil {
		return nil
	}
	c := *p
	c.Token0 = p.Token0.Clone()
	c.Token1 = p.Token1.Clone()
	return &c
}

// Has 判断资产是否属于该池
func (p *LiquidityPool) Has(assetID uint64) bool {
	return p.Token0ID == assetID || p.Token1ID == assetID
}

// PairKey 无序交易对键，(a,b) 与 (b,a) 相同
func PairKey(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

// LiquidityPosition 用户在池中的份额，(UserID, PoolID) 唯一
type LiquidityPosition struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement:false;column:id" json:"id,string"`
	UserID      string          `gorm:"uniqueIndex:uk_position_user_pool;not null;column:user_id" json:"user_id"`
	PoolID      uint64          `gorm:"uniqueIndex:uk_position_user_pool;not null;column:pool_id" json:"pool_id,string"`
	Liquidity   decimal.Decimal `gorm:"type:numeric(38,18);not null;column:liquidity" json:"liquidity"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	LastUpdated time.Time       `gorm:"column:last_updated" json:"last_updated"`
}

func (LiquidityPosition) TableName() string {
	return "liquidity_positions"
}

func (p *LiquidityPosition) Clone() *LiquidityPosition {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Swap 兑换审计记录
type Swap struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement:false;column:id" json:"id,string"`
	UserID      string          `gorm:"index;not null;column:user_id" json:"user_id"`
	PoolID      uint64          `gorm:"index;not null;column:pool_id" json:"pool_id,string"`
	TokenInID   uint64          `gorm:"not null;column:token_in_id" json:"token_in_id,string"`
	TokenOutID  uint64          `gorm:"not null;column:token_out_id" json:"token_out_id,string"`
	AmountIn    decimal.Decimal `gorm:"type:numeric(38,18);not null;column:amount_in" json:"amount_in"`
	AmountOut   decimal.Decimal `gorm:"type:numeric(38,18);not null;column:amount_out" json:"amount_out"`
	Fee         decimal.Decimal `gorm:"type:numeric(38,18);not null;column:fee" json:"fee"`
	PriceImpact decimal.Decimal `gorm:"type:numeric(38,18);not null;column:price_impact" json:"price_impact"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	TxHash      string          `gorm:"uniqueIndex;column:tx_hash" json:"tx_hash"`
}

func (Swap) TableName() string {
	return "swaps"
}

func (s *Swap) Clone() *Swap {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
