package dal

import (
	"context"
	"time"

	"cex-ledger/biz/model"
)

// Cache 读缓存与辅助索引，丢失不影响账本正确性
type Cache interface {
	GetAssets(ctx context.Context) ([]*model.Asset, bool, error)
	SetAssets(ctx context.Context, assets []*model.Asset, ttl time.Duration) error
	InvalidateAssets(ctx context.Context) error

	AddPendingOrder(ctx context.Context, userID string, orderID uint64) error
	RemovePendingOrder(ctx context.Context, userID string, orderID uint64) error
	PendingOrders(ctx context.Context, userID string) ([]uint64, error)

	GetPriceHistory(ctx context.Context, symbol string, days int) ([]model.PricePoint, bool, error)
	SetPriceHistory(ctx context.Context, symbol string, days int, points []model.PricePoint, ttl time.Duration) error
}

// NopCache 未配置 redis 时使用
type NopCache struct{}

func (NopCache) GetAssets(context.Context) ([]*model.Asset, bool, error) { return nil, false, nil }
func (NopCache) SetAssets(context.Context, []*model.Asset, time.Duration) error { return nil }
func (NopCache) InvalidateAssets(context.Context) error { return nil }
func (NopCache) AddPendingOrder(context.Context, string, uint64) error { return nil }
func (NopCache) RemovePendingOrder(context.Context, string, uint64) error { return nil }
func (NopCache) PendingOrders(context.Context, string) ([]uint64, error) { return nil, nil }
func (NopCache) GetPriceHistory(context.Context, string, int) ([]model.PricePoint, bool, error) {
	return nil, false, nil
}
func (NopCache) SetPriceHistory(context.Context, string, int, []model.PricePoint, time.Duration) error {
	return nil
}
