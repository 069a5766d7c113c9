package pg

import (
	"context"

	"cex-ledger/biz/model"
)

func (t *pgTx) FindAssetByID(_ context.Context, id uint64) (*model.Asset, error) {
	return first[model.Asset](t.db, "id = ?", id)
}

func (t *pgTx) FindAssetBySymbol(_ context.Context, symbol string) (*model.Asset, error) {
	return first[model.Asset](t.db, "symbol = ?", symbol)
}

func (t *pgTx) ListAssets(_ context.Context) ([]*model.Asset, error) {
	return list[model.Asset](t.db, "symbol", "")
}

func (t *pgTx) SaveAsset(_ context.Context, a *model.Asset) error {
	return translate(t.db.Save(a).Error)
}
