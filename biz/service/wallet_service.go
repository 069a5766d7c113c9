package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cex-ledger/biz/audit"
	"cex-ledger/biz/dal"
	"cex-ledger/biz/engine"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
	"cex-ledger/util"
)

// WalletService 账本：钱包只在这里创建，余额只经由 Debit/Credit 变化
type WalletService struct {
	store   dal.Store
	locker  *engine.Locker
	txlog   *TransactionService
	journal *audit.Journal
	pub     engine.Publisher
}

func NewWalletService(store dal.Store, locker *engine.Locker, txlog *TransactionService, journal *audit.Journal, pub engine.Publisher) *WalletService {
	if pub == nil {
		pub = engine.NopPublisher{}
	}
	return &WalletService{store: store, locker: locker, txlog: txlog, journal: journal, pub: pub}
}

// GetOrCreateWallet 返回 (user, asset) 的钱包，不存在则创建零余额钱包
func (s *WalletService) GetOrCreateWallet(ctx context.Context, tx dal.Tx, userID string, assetID uint64) (*model.Wallet, error) {
	w, err := tx.FindWallet(ctx, userID, assetID)
	if err != nil || w != nil {
		return w, err
	}
	id, err := util.NextID()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "generate wallet id", err)
	}
	now := time.Now()
	w = &model.Wallet{
		ID:        id,
		UserID:    userID,
		AssetID:   assetID,
		Balance:   decimal.Zero,
		Address:   model.WalletAddress(userID, assetID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.CreateWallet(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Debit 扣减余额；amount 必须为正且不超过余额
func (s *WalletService) Debit(ctx context.Context, tx dal.Tx, walletID uint64, amount decimal.Decimal) (*model.Wallet, error) {
	if amount.Sign() <= 0 {
		return nil, errs.New(errs.InvalidAmount, "debit amount must be positive")
	}
	w, err := findWallet(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(w.Balance) {
		return nil, errs.New(errs.InsufficientBalance,
			fmt.Sprintf("wallet %d balance %s is less than %s", w.ID, w.Balance.String(), amount.String()))
	}
	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = time.Now()
	if err := tx.SaveWallet(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Credit 增加余额；amount 不得为负
func (s *WalletService) Credit(ctx context.Context, tx dal.Tx, walletID uint64, amount decimal.Decimal) (*model.Wallet, error) {
	if amount.IsNegative() {
		return nil, errs.New(errs.InvalidAmount, "credit amount must not be negative")
	}
	w, err := findWallet(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = time.Now()
	if err := tx.SaveWallet(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Deposit 外部入金，流水与余额同一事务提交
func (s *WalletService) Deposit(ctx context.Context, userID string, assetID uint64, amount decimal.Decimal) (*model.Transaction, error) {
	return s.cashMovement(ctx, model.TxDeposit, userID, assetID, amount)
}

// Withdraw 外部出金
func (s *WalletService) Withdraw(ctx context.Context, userID string, assetID uint64, amount decimal.Decimal) (*model.Transaction, error) {
	return s.cashMovement(ctx, model.TxWithdraw, userID, assetID, amount)
}

func (s *WalletService) cashMovement(ctx context.Context, typ model.TransactionType, userID string, assetID uint64, amount decimal.Decimal) (*model.Transaction, error) {
	if userID == "" {
		return nil, errs.New(errs.InvalidRequest, "user id is required")
	}
	if amount.Sign() <= 0 {
		return nil, errs.New(errs.InvalidAmount, "amount must be positive")
	}
	release, err := s.locker.Acquire(ctx, engine.WalletKey(userID, assetID))
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		record *model.Transaction
		moved  *model.Wallet
		delta  = amount
	)
	err = s.store.Update(ctx, func(tx dal.Tx) error {
		asset, err := findAsset(ctx, tx, assetID)
		if err != nil {
			return err
		}
		w, err := s.GetOrCreateWallet(ctx, tx, userID, assetID)
		if err != nil {
			return err
		}
		if typ == model.TxWithdraw {
			delta = amount.Neg()
			moved, err = s.Debit(ctx, tx, w.ID, amount)
		} else {
			moved, err = s.Credit(ctx, tx, w.ID, amount)
		}
		if err != nil {
			return err
		}
		record = &model.Transaction{
			UserID:     userID,
			Type:       typ,
			AssetID:    &asset.ID,
			Amount:     amount,
			Price:      asset.CurrentPrice,
			TotalValue: valueOf(amount, asset.CurrentPrice),
			Status:     model.TxCompleted,
		}
		if err := s.txlog.Append(ctx, tx, record); err != nil {
			return err
		}
		record.Asset = asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.journal.Record("wallet."+string(typ), record.ID, movement(moved, delta))
	s.pub.Publish(ctx, model.NewEvent(model.EventWalletMovement, "", userID, record))
	return record, nil
}

// GetWallets 用户全部钱包，附带资产信息
func (s *WalletService) GetWallets(ctx context.Context, userID string) ([]*model.Wallet, error) {
	var wallets []*model.Wallet
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		wallets, err = tx.ListWallets(ctx, userID)
		if err != nil {
			return err
		}
		for _, w := range wallets {
			if w.Asset, err = tx.FindAssetByID(ctx, w.AssetID); err != nil {
				return err
			}
		}
		return nil
	})
	return wallets, err
}

func findWallet(ctx context.Context, tx dal.Tx, id uint64) (*model.Wallet, error) {
	w, err := tx.FindWalletByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, errs.New(errs.WalletNotFound, fmt.Sprintf("wallet %d not found", id))
	}
	return w, nil
}

// valueOf amount × price，无价格时为 0
func valueOf(amount decimal.Decimal, price decimal.NullDecimal) decimal.Decimal {
	if !price.Valid {
		return decimal.Zero
	}
	return amount.Mul(price.Decimal)
}

func movement(w *model.Wallet, delta decimal.Decimal) audit.Movement {
	return audit.Movement{WalletID: w.ID, UserID: w.UserID, AssetID: w.AssetID, Delta: delta, Balance: w.Balance}
}
