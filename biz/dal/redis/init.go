package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/model"
	"cex-ledger/conf"
)

const (
	assetListKey     = "market:assets"
	pendingOrdersKey = "user:pending_orders:"
	pendingOrdersTTL = 24 * time.Hour
	priceHistoryKey  = "kline:"
)

// Cache 基于 go-redis 的 dal.Cache 实现
type Cache struct {
	client *redis.Client
}

var _ dal.Cache = (*Cache)(nil)

func Init(cfg conf.Redis) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Cache{client: client}, nil
}

func (c *Cache) GetAssets(ctx context.Context) ([]*model.Asset, bool, error) {
	raw, err := c.client.Get(ctx, assetListKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var assets []*model.Asset
	if err := json.Unmarshal(raw, &assets); err != nil {
		// 脏数据直接丢弃
		_ = c.client.Del(ctx, assetListKey).Err()
		return nil, false, nil
	}
	return assets, true, nil
}

func (c *Cache) SetAssets(ctx context.Context, assets []*model.Asset, ttl time.Duration) error {
	raw, err := json.Marshal(assets)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, assetListKey, raw, ttl).Err()
}

func (c *Cache) InvalidateAssets(ctx context.Context) error {
	return c.client.Del(ctx, assetListKey).Err()
}

// AddPendingOrder 缓存用户挂单ID
func (c *Cache) AddPendingOrder(ctx context.Context, userID string, orderID uint64) error {
	key := pendingOrdersKey + userID
	pipe := c.client.TxPipeline()
	pipe.SAdd(ctx, key, strconv.FormatUint(orderID, 10))
	pipe.Expire(ctx, key, pendingOrdersTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RemovePendingOrder 从 Redis 移除用户挂单ID
func (c *Cache) RemovePendingOrder(ctx context.Context, userID string, orderID uint64) error {
	return c.client.SRem(ctx, pendingOrdersKey+userID, strconv.FormatUint(orderID, 10)).Err()
}

// PendingOrders 查询用户挂单ID列表
func (c *Cache) PendingOrders(ctx context.Context, userID string) ([]uint64, error) {
	members, err := c.client.SMembers(ctx, pendingOrdersKey+userID).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func historyKey(symbol string, days int) string {
	return priceHistoryKey + symbol + ":" + strconv.Itoa(days) + "d"
}

// GetPriceHistory 读取历史价格序列，key 形如 kline:BTC:30d
func (c *Cache) GetPriceHistory(ctx context.Context, symbol string, days int) ([]model.PricePoint, bool, error) {
	key := historyKey(symbol, days)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var points []model.PricePoint
	if err := json.Unmarshal(raw, &points); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return nil, false, nil
	}
	return points, true, nil
}

func (c *Cache) SetPriceHistory(ctx context.Context, symbol string, days int, points []model.PricePoint, ttl time.Duration) error {
	raw, err := json.Marshal(points)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, historyKey(symbol, days), raw, ttl).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
