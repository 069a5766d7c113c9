// Package setup 按配置装配存储、缓存与事件出口
package setup

import (
	"context"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/dal/kafka"
	"cex-ledger/biz/dal/memory"
	"cex-ledger/biz/dal/pg"
	"cex-ledger/biz/dal/redis"
	"cex-ledger/conf"
)

type Deps struct {
	Store  dal.Store
	Cache  dal.Cache
	Events *kafka.Publisher

	closers []func() error
}

// Init 存储必须可用；redis 与 kafka 未配置时降级
func Init(ctx context.Context, cfg *conf.Config) (*Deps, error) {
	d := &Deps{Cache: dal.NopCache{}}

	switch cfg.Exchange.Storage {
	case "postgres":
		s, err := pg.Open(ctx, cfg.Postgres.DSN, cfg.Exchange.LockTimeout())
		if err != nil {
			return nil, err
		}
		d.Store = s
	default:
		d.Store = memory.NewStore()
	}
	d.closers = append(d.closers, d.Store.Close)

	if cfg.Redis.Address != "" {
		c, err := redis.Init(cfg.Redis)
		if err != nil {
			hlog.Warnf("[dal] redis unavailable, cache disabled: %v", err)
		} else {
			d.Cache = c
			d.closers = append(d.closers, c.Close)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.Init(ctx, cfg.Kafka)
		if err != nil {
			hlog.Warnf("[dal] kafka unavailable, events not persisted: %v", err)
		} else {
			d.Events = p
			d.closers = append(d.closers, p.Close)
		}
	}
	hlog.Infof("[dal] storage=%s redis=%t kafka=%t", cfg.Exchange.Storage, cfg.Redis.Address != "", d.Events != nil)
	return d, nil
}

// Close 逆序关闭
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			hlog.Warnf("[dal] close: %v", err)
		}
	}
}
