package engine

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/panjf2000/ants/v2"

	"cex-ledger/biz/model"
)

// Publisher 提交成功后的领域事件出口，实现方不得阻塞调用方
type Publisher interface {
	Publish(ctx context.Context, evt model.Event)
}

// Fanout 依次投递给多个出口
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt model.Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, evt)
		}
	}
}

// NopPublisher 丢弃所有事件
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.Event) {}

// Broadcaster 广播回调类型
type Broadcaster func(channel string, msg []byte)

// Unicaster 单播回调类型
type Unicaster func(userID string, msg []byte)

// PoolPublisher 在 ants 协程池中编码并分发事件
type PoolPublisher struct {
	pool      *ants.Pool
	broadcast Broadcaster
	unicast   Unicaster
}

func NewBroadcastPool(size int) (*ants.Pool, error) {
	if size <= 0 {
		size = 1024
	}
	return ants.NewPool(size, ants.WithNonblocking(true))
}

func NewPoolPublisher(pool *ants.Pool, b Broadcaster, u Unicaster) *PoolPublisher {
	return &PoolPublisher{pool: pool, broadcast: b, unicast: u}
}

func (p *PoolPublisher) Publish(_ context.Context, evt model.Event) {
	err := p.pool.Submit(func() {
		msg, err := json.Marshal(evt)
		if err != nil {
			hlog.Errorf("[PoolPublisher] marshal event %s failed: %v", evt.Type, err)
			return
		}
		if evt.Channel != "" && p.broadcast != nil {
			p.broadcast(evt.Channel, msg)
		}
		if evt.UserID != "" && p.unicast != nil {
			p.unicast(evt.UserID, msg)
		}
	})
	if err != nil {
		hlog.Warnf("[PoolPublisher] submit event %s failed: %v", evt.Type, err)
	}
}
