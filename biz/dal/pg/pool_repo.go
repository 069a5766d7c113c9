package pg

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
)

func (t *pgTx) FindPoolByID(_ context.Context, id uint64) (*model.LiquidityPool, error) {
	return first[model.LiquidityPool](t.locked(), "id = ?", id)
}

func (t *pgTx) FindPoolByPair(_ context.Context, pairKey string) (*model.LiquidityPool, error) {
	return first[model.LiquidityPool](t.locked(), "pair_key = ?", pairKey)
}

func (t *pgTx) ListPools(_ context.Context) ([]*model.LiquidityPool, error) {
	return list[model.LiquidityPool](t.db, "id", "")
}

func (t *pgTx) CreatePool(_ context.Context, p *model.LiquidityPool) error {
	return create(t.db, p)
}

func (t *pgTx) SavePool(_ context.Context, p *model.LiquidityPool) error {
	res := t.db.Model(&model.LiquidityPool{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]any{
			"token0_reserve":  p.Token0Reserve,
			"token1_reserve":  p.Token1Reserve,
			"total_liquidity": p.TotalLiquidity,
			"version":         p.Version + 1,
			"last_updated":    p.LastUpdated,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.New(errs.Contention, fmt.Sprintf("pool %d modified concurrently", p.ID))
	}
	p.Version++
	return nil
}

func (t *pgTx) FindPosition(_ context.Context, userID string, poolID uint64) (*model.LiquidityPosition, error) {
	return first[model.LiquidityPosition](t.locked(), "user_id = ? AND pool_id = ?", userID, poolID)
}

func (t *pgTx) ListPositions(_ context.Context, userID string) ([]*model.LiquidityPosition, error) {
	return list[model.LiquidityPosition](t.db, "id", "user_id = ?", userID)
}

// SavePosition 以 (user_id, pool_id) 冲突时覆盖份额
func (t *pgTx) SavePosition(_ context.Context, p *model.LiquidityPosition) error {
	return translate(t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "pool_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"liquidity", "last_updated"}),
	}).Create(p).Error)
}

func (t *pgTx) CreateSwap(_ context.Context, s *model.Swap) error {
	return create(t.db, s)
}

func (t *pgTx) ListSwaps(_ context.Context, userID string) ([]*model.Swap, error) {
	return list[model.Swap](t.db, "created_at desc, id desc", "user_id = ?", userID)
}
