package service

import (
	"context"
	"fmt"
	"time"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
	"cex-ledger/util"
)

// TransactionService 资金流水：只追加，状态只允许 pending → completed|failed
type TransactionService struct {
	store dal.Store
}

func NewTransactionService(store dal.Store) *TransactionService {
	return &TransactionService{store: store}
}

// Append 在调用方事务内写入一条流水
func (s *TransactionService) Append(ctx context.Context, tx dal.Tx, t *model.Transaction) error {
	switch t.Type {
	case model.TxBuy, model.TxSell, model.TxDeposit, model.TxWithdraw:
	default:
		return errs.New(errs.InvalidRequest, fmt.Sprintf("unknown transaction type %q", t.Type))
	}
	if t.ID == 0 {
		id, err := util.NextID()
		if err != nil {
			return errs.Wrap(errs.Internal, "generate transaction id", err)
		}
		t.ID = id
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	switch t.Status {
	case "":
		t.Status = model.TxPending
	case model.TxCompleted, model.TxFailed:
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
	}
	return tx.CreateTransaction(ctx, t)
}

// Complete pending → completed
func (s *TransactionService) Complete(ctx context.Context, tx dal.Tx, id uint64) (*model.Transaction, error) {
	return s.finish(ctx, tx, id, model.TxCompleted)
}

// Fail pending → failed
func (s *TransactionService) Fail(ctx context.Context, tx dal.Tx, id uint64) (*model.Transaction, error) {
	return s.finish(ctx, tx, id, model.TxFailed)
}

func (s *TransactionService) finish(ctx context.Context, tx dal.Tx, id uint64, status model.TransactionStatus) (*model.Transaction, error) {
	t, err := tx.FindTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errs.New(errs.TransactionNotFound, fmt.Sprintf("transaction %d not found", id))
	}
	if t.Status != model.TxPending {
		return nil, errs.New(errs.InvalidState, fmt.Sprintf("transaction %d is %s", id, t.Status))
	}
	now := time.Now()
	t.Status = status
	t.CompletedAt = &now
	if err := tx.UpdateTransactionState(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Archive 标记归档，不删除；重复归档无副作用
func (s *TransactionService) Archive(ctx context.Context, userID string, id uint64) (*model.Transaction, error) {
	var t *model.Transaction
	err := s.store.Update(ctx, func(tx dal.Tx) error {
		var err error
		t, err = tx.FindTransaction(ctx, id)
		if err != nil {
			return err
		}
		if t == nil || t.UserID != userID {
			return errs.New(errs.TransactionNotFound, fmt.Sprintf("transaction %d not found", id))
		}
		if t.Archived {
			return nil
		}
		t.Archived = true
		return tx.UpdateTransactionState(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTransactions 按时间倒序，附带资产信息
func (s *TransactionService) GetTransactions(ctx context.Context, userID string, includeArchived bool) ([]*model.Transaction, error) {
	var list []*model.Transaction
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		list, err = tx.ListTransactions(ctx, userID, includeArchived)
		if err != nil {
			return err
		}
		for _, t := range list {
			if t.AssetID == nil {
				continue
			}
			if t.Asset, err = tx.FindAssetByID(ctx, *t.AssetID); err != nil {
				return err
			}
		}
		return nil
	})
	return list, err
}

func (s *TransactionService) Get(ctx context.Context, userID string, id uint64) (*model.Transaction, error) {
	var t *model.Transaction
	err := s.store.View(ctx, func(tx dal.Tx) error {
		var err error
		t, err = tx.FindTransaction(ctx, id)
		if err != nil {
			return err
		}
		if t == nil || t.UserID != userID {
			return errs.New(errs.TransactionNotFound, fmt.Sprintf("transaction %d not found", id))
		}
		if t.AssetID != nil {
			t.Asset, err = tx.FindAssetByID(ctx, *t.AssetID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}
