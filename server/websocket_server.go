package server

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/hertz-contrib/websocket"
	"github.com/panjf2000/ants/v2"
)

const (
	shardNum     = 32
	writeRetries = 3
)

var upgrader = websocket.HertzUpgrader{
	CheckOrigin: func(ctx *app.RequestContext) bool {
		return true // 允许所有跨域 WebSocket 连接
	},
}

// wsConn *websocket.Conn 的最小子集，测试中可替换
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// client 单个连接；websocket 不支持并发写，写操作串行
type client struct {
	conn   wsConn
	userID string

	wmu      sync.Mutex
	mu       sync.Mutex
	channels map[string]struct{}
}

func (c *client) write(msg []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

type channelShard struct {
	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

// Hub 频道订阅与推送
type Hub struct {
	shards [shardNum]*channelShard
	pool   *ants.Pool

	usersMu sync.RWMutex
	users   map[string]map[*client]struct{}
}

func NewHub(pool *ants.Pool) *Hub {
	h := &Hub{pool: pool, users: make(map[string]map[*client]struct{})}
	for i := range h.shards {
		h.shards[i] = &channelShard{subs: make(map[string]map[*client]struct{})}
	}
	return h
}

func (h *Hub) shard(channel string) *channelShard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(channel))
	return h.shards[f.Sum32()%shardNum]
}

// Message 客户端指令
type Message struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type ack struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *Hub) register(conn wsConn, userID string) *client {
	c := &client{conn: conn, userID: userID, channels: make(map[string]struct{})}
	if userID != "" {
		h.usersMu.Lock()
		if h.users[userID] == nil {
			h.users[userID] = make(map[*client]struct{})
		}
		h.users[userID][c] = struct{}{}
		h.usersMu.Unlock()
	}
	return c
}

func (h *Hub) subscribe(c *client, channel string) {
	s := h.shard(channel)
	s.mu.Lock()
	if s.subs[channel] == nil {
		s.subs[channel] = make(map[*client]struct{})
	}
	s.subs[channel][c] = struct{}{}
	s.mu.Unlock()

	c.mu.Lock()
	c.channels[channel] = struct{}{}
	c.mu.Unlock()
}

func (h *Hub) unsubscribe(c *client, channel string) {
	s := h.shard(channel)
	s.mu.Lock()
	if conns, ok := s.subs[channel]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(s.subs, channel)
		}
	}
	s.mu.Unlock()

	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

// remove 清理连接的全部订阅与用户映射
func (h *Hub) remove(c *client) {
	c.mu.Lock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	c.mu.Unlock()
	for _, ch := range channels {
		h.unsubscribe(c, ch)
	}
	if c.userID != "" {
		h.usersMu.Lock()
		delete(h.users[c.userID], c)
		if len(h.users[c.userID]) == 0 {
			delete(h.users, c.userID)
		}
		h.usersMu.Unlock()
	}
}

// handle 处理一条客户端消息，返回需要回写的应答
func (h *Hub) handle(c *client, raw []byte) []byte {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return mustJSON(ack{Type: "error", Message: "invalid message"})
	}
	if m.Channel == "" {
		return mustJSON(ack{Type: "error", Message: "channel required"})
	}
	switch m.Action {
	case "subscribe":
		h.subscribe(c, m.Channel)
		return mustJSON(ack{Type: "subscription_ack", Channel: m.Channel})
	case "unsubscribe":
		h.unsubscribe(c, m.Channel)
		return mustJSON(ack{Type: "unsubscription_ack", Channel: m.Channel})
	default:
		return mustJSON(ack{Type: "error", Message: "unknown action " + m.Action})
	}
}

// Broadcast 推送到频道全部订阅者
func (h *Hub) Broadcast(channel string, msg []byte) {
	s := h.shard(channel)
	s.mu.RLock()
	targets := make([]*client, 0, len(s.subs[channel]))
	for c := range s.subs[channel] {
		targets = append(targets, c)
	}
	s.mu.RUnlock()
	for _, c := range targets {
		h.deliver(c, msg)
	}
}

// Unicast 推送到指定用户的全部连接
func (h *Hub) Unicast(userID string, msg []byte) {
	h.usersMu.RLock()
	targets := make([]*client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.usersMu.RUnlock()
	for _, c := range targets {
		h.deliver(c, msg)
	}
}

func (h *Hub) deliver(c *client, msg []byte) {
	send := func() {
		for i := 0; i < writeRetries; i++ {
			err := c.write(msg)
			if err == nil {
				return
			}
			hlog.Warnf("[Hub] write error: %v, retry %d", err, i+1)
		}
		// 多次写失败视为断连
		h.remove(c)
		_ = c.conn.Close()
	}
	if h.pool == nil {
		send()
		return
	}
	if err := h.pool.Submit(send); err != nil {
		hlog.Warnf("[Hub] broadcast pool busy, drop message: %v", err)
	}
}

// Subscribers 频道当前订阅数
func (h *Hub) Subscribers(channel string) int {
	s := h.shard(channel)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[channel])
}

// Handler /ws 升级入口；X-User-ID 存在时同时接收该用户的单播
func (h *Hub) Handler() app.HandlerFunc {
	return func(ctx context.Context, rc *app.RequestContext) {
		userID := string(rc.GetHeader("X-User-ID"))
		err := upgrader.Upgrade(rc, func(conn *websocket.Conn) {
			c := h.register(conn, userID)
			hlog.CtxDebugf(ctx, "[Hub] connection upgraded: %v", conn.RemoteAddr())
			defer func() {
				h.remove(c)
				if err := conn.Close(); err != nil {
					hlog.CtxDebugf(ctx, "[Hub] close error: %v", err)
				}
			}()
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					hlog.CtxDebugf(ctx, "[Hub] read error: %v", err)
					return
				}
				if reply := h.handle(c, msg); reply != nil {
					if err := c.write(reply); err != nil {
						hlog.CtxWarnf(ctx, "[Hub] ack error: %v", err)
						return
					}
				}
			}
		})
		if err != nil {
			hlog.CtxErrorf(ctx, "[Hub] upgrade error: %v", err)
		}
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
