package ws

import (
	"sync"

	"github.com/RavenholmAlpha/IRClite/internal/metrics"
)

// Hub 按房间维护订阅集合并做扇出投递。
// 订阅与持久化的成员关系无关：没有 join_room 的成员收不到实时推送，
// 只能靠历史分页补齐。
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uint]map[*Client]struct{})}
}

// Subscribe 把连接挂进房间的扇出组。
func (h *Hub) Subscribe(roomID uint, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.rooms[roomID]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.rooms[roomID] = subs
	}
	subs[c] = struct{}{}
}

// UnsubscribeAll 把连接从所有房间移除，断开时调用，只影响这一个会话。
func (h *Hub) UnsubscribeAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, subs := range h.rooms {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Deliver 把同一份字节串投给房间的每个订阅者。
// 先在读锁内取快照，投递在锁外进行，慢消费者不会卡住其他房间。
// 投不进去（消费太慢或已断开）就丢弃，不重试。
func (h *Hub) Deliver(roomID uint, payload []byte) {
	if payload == nil {
		return
	}
	h.mu.RLock()
	subs := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	for _, c := range subs {
		if c.enqueue(payload) {
			metrics.FanoutDeliveriesTotal.Inc()
		}
	}
}

// Subscribers 返回房间当前的订阅连接数，供 REST 接口复用。
func (h *Hub) Subscribers(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
