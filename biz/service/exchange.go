package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"

	"cex-ledger/biz/audit"
	"cex-ledger/biz/dal"
	"cex-ledger/biz/engine"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
)

// Deps 进程启动时构造一次，显式注入各组件
type Deps struct {
	Store       dal.Store
	Cache       dal.Cache
	Publisher   engine.Publisher
	Journal     *audit.Journal
	KYC         KYCGate
	History     HistoryFeed
	LockTimeout time.Duration
	Options     Options
}

// Exchange 对外调用边界；写操作遇到 Contention 自动退避重试
type Exchange struct {
	Assets       *AssetService
	Wallets      *WalletService
	Transactions *TransactionService
	Orders       *OrderService
	Pools        *PoolService
	History      *PriceHistoryService

	opts Options
}

func NewExchange(d Deps) *Exchange {
	if d.Cache == nil {
		d.Cache = dal.NopCache{}
	}
	if d.Publisher == nil {
		d.Publisher = engine.NopPublisher{}
	}
	if d.Journal == nil {
		d.Journal = audit.Nop()
	}
	if d.KYC == nil {
		d.KYC = NewStaticKYC(0)
	}
	locker := engine.NewLocker(d.LockTimeout)
	assets := NewAssetService(d.Store, d.Cache, locker, d.Publisher)
	txlog := NewTransactionService(d.Store)
	wallets := NewWalletService(d.Store, locker, txlog, d.Journal, d.Publisher)
	return &Exchange{
		Assets:       assets,
		Wallets:      wallets,
		Transactions: txlog,
		Orders:       NewOrderService(d.Store, d.Cache, locker, assets, wallets, txlog, d.KYC, d.Journal, d.Publisher, d.Options),
		Pools:        NewPoolService(d.Store, locker, wallets, d.Journal, d.Publisher, d.Options),
		History:      NewPriceHistoryService(d.History, assets, d.Cache),
		opts:         d.Options,
	}
}

func (e *Exchange) Options() Options {
	return e.opts
}

func (e *Exchange) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	return retry(ctx, e.opts.MaxRetries, func() (*PlaceOrderResult, error) {
		return e.Orders.PlaceOrder(ctx, req)
	})
}

func (e *Exchange) CancelOrder(ctx context.Context, userID string, orderID uint64) (*model.Order, error) {
	return retry(ctx, e.opts.MaxRetries, func() (*model.Order, error) {
		return e.Orders.CancelOrder(ctx, userID, orderID)
	})
}

func (e *Exchange) CreatePool(ctx context.Context, userID string, token0ID, token1ID uint64, amt0, amt1 decimal.Decimal) (*LiquidityResult, error) {
	return retry(ctx, e.opts.MaxRetries, func() (*LiquidityResult, error) {
		return e.Pools.CreatePool(ctx, userID, token0ID, token1ID, amt0, amt1)
	})
}

func (e *Exchange) AddLiquidity(ctx context.Context, userID string, poolID uint64, amt0, amt1 decimal.Decimal) (*LiquidityResult, error) {
	return retry(ctx, e.opts.MaxRetries, func() (*LiquidityResult, error) {
		return e.Pools.AddLiquidity(ctx, userID, poolID, amt0, amt1)
	})
}

func (e *Exchange) Swap(ctx context.Context, req SwapRequest) (*model.Swap, error) {
	return retry(ctx, e.opts.MaxRetries, func() (*model.Swap, error) {
		return e.Pools.Swap(ctx, req)
	})
}

func (e *Exchange) Deposit(ctx context.Context, userID string, assetID uint64, amount decimal.Decimal) (*model.Transaction, error) {
	return retry(ctx, e.opts.MaxRetries, func() (*model.Transaction, error) {
		return e.Wallets.Deposit(ctx, userID, assetID, amount)
	})
}

func (e *Exchange) Withdraw(ctx context.Context, userID string, assetID uint64, amount decimal.Decimal) (*model.Transaction, error) {
	return retry(ctx, e.opts.MaxRetries, func() (*model.Transaction, error) {
		return e.Wallets.Withdraw(ctx, userID, assetID, amount)
	})
}

func (e *Exchange) ArchiveTransaction(ctx context.Context, userID string, id uint64) (*model.Transaction, error) {
	return retry(ctx, e.opts.MaxRetries, func() (*model.Transaction, error) {
		return e.Transactions.Archive(ctx, userID, id)
	})
}

func (e *Exchange) UpsertPrice(ctx context.Context, q model.PriceQuote) (*model.Asset, error) {
	return retry(ctx, e.opts.MaxRetries, func() (*model.Asset, error) {
		return e.Assets.UpsertPrice(ctx, q)
	})
}

// 只读操作直接透传
func (e *Exchange) GetWallets(ctx context.Context, userID string) ([]*model.Wallet, error) {
	return e.Wallets.GetWallets(ctx, userID)
}

func (e *Exchange) GetTransactions(ctx context.Context, userID string, includeArchived bool) ([]*model.Transaction, error) {
	return e.Transactions.GetTransactions(ctx, userID, includeArchived)
}

// retry 仅 Contention 可重试，其余错误立即返回
func retry[T any](ctx context.Context, maxRetries uint, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !errs.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxRetries+1))
}
