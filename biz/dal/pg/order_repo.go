package pg

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
)

func (t *pgTx) CreateTransaction(_ context.Context, tr *model.Transaction) error {
	return create(t.db, tr)
}

func (t *pgTx) FindTransaction(_ context.Context, id uint64) (*model.Transaction, error) {
	return first[model.Transaction](t.locked(), "id = ?", id)
}

func (t *pgTx) ListTransactions(_ context.Context, userID string, includeArchived bool) ([]*model.Transaction, error) {
	if includeArchived {
		return list[model.Transaction](t.db, "created_at desc, id desc", "user_id = ?", userID)
	}
	return list[model.Transaction](t.db, "created_at desc, id desc", "user_id = ? AND archived = ?", userID, false)
}

// UpdateTransactionState 金额类字段不参与更新，按版本号条件写入
func (t *pgTx) UpdateTransactionState(_ context.Context, tr *model.Transaction) error {
	res := t.db.Model(&model.Transaction{}).
		Where("id = ? AND version = ?", tr.ID, tr.Version).
		Updates(map[string]any{
			"status":       tr.Status,
			"archived":     tr.Archived,
			"completed_at": tr.CompletedAt,
			"version":      tr.Version + 1,
		})
	if err := versioned(res, "transaction", tr.ID); err != nil {
		return err
	}
	tr.Version++
	return nil
}

// CreateOrder 插入订单
func (t *pgTx) CreateOrder(_ context.Context, o *model.Order) error {
	return create(t.db, o)
}

// FindOrder 查询单个订单
func (t *pgTx) FindOrder(_ context.Context, id uint64) (*model.Order, error) {
	return first[model.Order](t.locked(), "id = ?", id)
}

// ListOrders 查询订单列表
func (t *pgTx) ListOrders(_ context.Context, userID string) ([]*model.Order, error) {
	return list[model.Order](t.db, "created_at desc, id desc", "user_id = ?", userID)
}

// UpdateOrderState 更新订单状态
func (t *pgTx) UpdateOrderState(_ context.Context, o *model.Order) error {
	res := t.db.Model(&model.Order{}).
		Where("id = ? AND version = ?", o.ID, o.Version).
		Updates(map[string]any{
			"status":         o.Status,
			"transaction_id": o.TransactionID,
			"completed_at":   o.CompletedAt,
			"version":        o.Version + 1,
		})
	if err := versioned(res, "order", o.ID); err != nil {
		return err
	}
	o.Version++
	return nil
}

// versioned 条件更新未命中任何行即视为并发修改
func versioned(res *gorm.DB, name string, id uint64) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.New(errs.Contention, fmt.Sprintf("%s %d modified concurrently", name, id))
	}
	return nil
}
