// Package dal 持久化能力：账本所有读写都经由 Store 的事务闭包
package dal

import (
	"context"
	"errors"

	"cex-ledger/biz/model"
)

// Store 事务入口。Update 的闭包返回错误时全部写入丢弃；
// 返回 nil 时全部写入原子生效，冲突以 errs.Contention 返回。
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	// UpsertAssets 按 symbol 批量幂等写入行情
	UpsertAssets(ctx context.Context, assets []*model.Asset) error
	Close() error
}

// Tx 单个事务内可见的仓储集合，Find* 未命中返回 (nil, nil)
type Tx interface {
	AssetRepo
	WalletRepo
	TransactionRepo
	OrderRepo
	PoolRepo
}

type AssetRepo interface {
	FindAssetByID(ctx context.Context, id uint64) (*model.Asset, error)
	FindAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error)
	ListAssets(ctx context.Context) ([]*model.Asset, error)
	SaveAsset(ctx context.Context, a *model.Asset) error
}

type WalletRepo interface {
	FindWallet(ctx context.Context, userID string, assetID uint64) (*model.Wallet, error)
	FindWalletByID(ctx context.Context, id uint64) (*model.Wallet, error)
	ListWallets(ctx context.Context, userID string) ([]*model.Wallet, error)
	CreateWallet(ctx context.Context, w *model.Wallet) error
	// SaveWallet 乐观版本写回，成功后 w.Version 自增
	SaveWallet(ctx context.Context, w *model.Wallet) error
}

type TransactionRepo interface {
	CreateTransaction(ctx context.Context, t *model.Transaction) error
	FindTransaction(ctx context.Context, id uint64) (*model.Transaction, error)
	ListTransactions(ctx context.Context, userID string, includeArchived bool) ([]*model.Transaction, error)
	// UpdateTransactionState 仅更新 status / archived / completed_at
	UpdateTransactionState(ctx context.Context, t *model.Transaction) error
}

type OrderRepo interface {
	CreateOrder(ctx context.Context, o *model.Order) error
	FindOrder(ctx context.Context, id uint64) (*model.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*model.Order, error)
	UpdateOrderState(ctx context.Context, o *model.Order) error
}

type PoolRepo interface {
	FindPoolByID(ctx context.Context, id uint64) (*model.LiquidityPool, error)
	FindPoolByPair(ctx context.Context, pairKey string) (*model.LiquidityPool, error)
	ListPools(ctx context.Context) ([]*model.LiquidityPool, error)
	CreatePool(ctx context.Context, p *model.LiquidityPool) error
	SavePool(ctx context.Context, p *model.LiquidityPool) error

	FindPosition(ctx context.Context, userID string, poolID uint64) (*model.LiquidityPosition, error)
	ListPositions(ctx context.Context, userID string) ([]*model.LiquidityPosition, error)
	SavePosition(ctx context.Context, p *model.LiquidityPosition) error

	CreateSwap(ctx context.Context, s *model.Swap) error
	ListSwaps(ctx context.Context, userID string) ([]*model.Swap, error)
}

// ErrDuplicate 唯一键冲突，由业务层翻译为具体错误
var ErrDuplicate = errors.New("dal: duplicate key")
