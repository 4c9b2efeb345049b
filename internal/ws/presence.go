package ws

import (
	"sync"

	"github.com/RavenholmAlpha/IRClite/internal/metrics"
	"github.com/rs/zerolog/log"
)

// StatusStore 把在线标记落库，由 presence 生命周期独占驱动。
type StatusStore interface {
	SetOnline(userID uint, online bool) error
}

// Presence 是进程内的在线表：用户 → 当前连接。
// 同一用户重复登录时直接覆盖旧句柄，旧连接不再参与路由。
// 注册与注销在锁内完成落库，保证同一用户的上线/下线不会乱序。
type Presence struct {
	mu      sync.Mutex
	clients map[uint]*Client
	store   StatusStore
}

func NewPresence(store StatusStore) *Presence {
	return &Presence{clients: make(map[uint]*Client), store: store}
}

// Register 登记连接、持久化在线标记，并向其他在线连接广播 user_online。
func (p *Presence) Register(userID uint, c *Client) {
	p.mu.Lock()
	p.clients[userID] = c
	if err := p.store.SetOnline(userID, true); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("persist online flag")
	}
	others := p.snapshotExcept(userID)
	metrics.OnlineUsers.Set(float64(len(p.clients)))
	p.mu.Unlock()

	payload := marshalEvent(EventUserOnline, map[string]interface{}{"user_id": userID})
	for _, other := range others {
		other.enqueue(payload)
	}
}

// Unregister 注销连接。若该用户已被更新的连接覆盖则什么都不做，
// 避免旧连接的断开把新连接踢下线。
func (p *Presence) Unregister(userID uint, c *Client) {
	p.mu.Lock()
	cur, ok := p.clients[userID]
	if !ok || cur != c {
		p.mu.Unlock()
		return
	}
	delete(p.clients, userID)
	if err := p.store.SetOnline(userID, false); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("persist offline flag")
	}
	others := p.snapshotExcept(userID)
	metrics.OnlineUsers.Set(float64(len(p.clients)))
	p.mu.Unlock()

	payload := marshalEvent(EventUserOffline, map[string]interface{}{"user_id": userID})
	for _, other := range others {
		other.enqueue(payload)
	}
}

// Lookup 返回用户当前的规范连接。
func (p *Presence) Lookup(userID uint) (*Client, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[userID]
	return c, ok
}

// OnlineCount 返回当前在线用户数。
func (p *Presence) OnlineCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// snapshotExcept 在锁内取一份除指定用户外的连接快照，广播在锁外进行。
func (p *Presence) snapshotExcept(userID uint) []*Client {
	out := make([]*Client, 0, len(p.clients))
	for id, c := range p.clients {
		if id == userID {
			continue
		}
		out = append(out, c)
	}
	return out
}
