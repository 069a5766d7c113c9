package pg

import (
	"context"
	"fmt"

	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
)

func (t *pgTx) FindWallet(_ context.Context, userID string, assetID uint64) (*model.Wallet, error) {
	return first[model.Wallet](t.locked(), "user_id = ? AND asset_id = ?", userID, assetID)
}

func (t *pgTx) FindWalletByID(_ context.Context, id uint64) (*model.Wallet, error) {
	return first[model.Wallet](t.locked(), "id = ?", id)
}

func (t *pgTx) ListWallets(_ context.Context, userID string) ([]*model.Wallet, error) {
	return list[model.Wallet](t.db, "id", "user_id = ?", userID)
}

func (t *pgTx) CreateWallet(_ context.Context, w *model.Wallet) error {
	return create(t.db, w)
}

// SaveWallet 按版本号条件更新余额
func (t *pgTx) SaveWallet(_ context.Context, w *model.Wallet) error {
	res := t.db.Model(&model.Wallet{}).
		Where("id = ? AND version = ?", w.ID, w.Version).
		Updates(map[string]any{
			"balance":    w.Balance,
			"version":    w.Version + 1,
			"updated_at": w.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.New(errs.Contention, fmt.Sprintf("wallet %d modified concurrently", w.ID))
	}
	w.Version++
	return nil
}
