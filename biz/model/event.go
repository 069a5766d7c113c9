package model

import (
	"strconv"
	"time"
)

// 推送频道
const (
	ChannelPrices = "prices"
	ChannelOrders = "orders"
	channelSwaps  = "swaps:"
)

// SwapChannel 池维度的兑换频道
func SwapChannel(poolID uint64) string {
	return channelSwaps + strconv.FormatUint(poolID, 10)
}

type EventType string

const (
	EventOrderPlaced    EventType = "order_placed"
	EventOrderCancelled EventType = "order_cancelled"
	EventSwapExecuted   EventType = "swap_executed"
	EventLiquidityAdded EventType = "liquidity_added"
	EventPoolCreated    EventType = "pool_created"
	EventPriceUpdated   EventType = "price_updated"
	EventWalletMovement EventType = "wallet_movement"
)

// Event 提交成功后对外发布的领域事件
type Event struct {
	Type    EventType `json:"type"`
	Channel string    `json:"channel"`
	UserID  string    `json:"user_id,omitempty"`
	Data    any       `json:"data"`
	Ts      int64     `json:"ts"`
}

func NewEvent(typ EventType, channel, userID string, data any) Event {
	return Event{Type: typ, Channel: channel, UserID: userID, Data: data, Ts: time.Now().UnixMilli()}
}
