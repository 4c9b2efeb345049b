package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/RavenholmAlpha/IRClite/internal/auth"
	"github.com/RavenholmAlpha/IRClite/internal/config"
	"github.com/RavenholmAlpha/IRClite/internal/metrics"
	"github.com/RavenholmAlpha/IRClite/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// 连接的读写参数：pong 超时要大于 ping 间隔。
const (
	maxMessageSize = 1 << 20 // 1MB
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	writeWait      = 10 * time.Second
)

// Deps 聚合会话需要的全部依赖，presence 与 hub 都是注入的实例。
type Deps struct {
	Cfg      config.Config
	Presence *Presence
	Hub      *Hub
	Users    *service.UserService
	Rooms    *service.RoomService
	Messages *service.MessageService
}

// Client 是一条实时会话。连接先升级再在线认证：
// authenticate 之前的事件一律丢弃（只记日志），认证后才登记 presence。
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	deps     Deps
	userID   uint
	username string
	authed   bool
}

// Serve 升级 WebSocket 并启动会话的读写循环。
func Serve(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newClient(conn, deps)
		metrics.WsConnections.Inc()

		go client.writePump()
		client.readPump()
	}
}

func newClient(conn *websocket.Conn, deps Deps) *Client {
	return &Client{conn: conn, send: make(chan []byte, 256), deps: deps}
}

// enqueue 非阻塞投递：缓冲满就丢掉这条负载，恢复靠客户端拉历史。
func (c *Client) enqueue(payload []byte) bool {
	if payload == nil {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		log.Warn().Uint("user_id", c.userID).Msg("slow consumer, payload dropped")
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.handleEvent(data)
	}
}

// close 是会话的终态：退订所有房间、注销 presence、关闭连接。
func (c *Client) close() {
	c.deps.Hub.UnsubscribeAll(c)
	if c.authed {
		c.deps.Presence.Unregister(c.userID, c)
	}
	_ = c.conn.Close()
	metrics.WsConnections.Dec()
}

// handleEvent 按事件类型驱动会话状态机。
func (c *Client) handleEvent(data []byte) {
	var ev InboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Debug().Err(err).Msg("malformed ws event")
		return
	}

	if ev.Type == EventAuthenticate {
		c.authenticate(ev.Token)
		return
	}
	if !c.authed {
		// 认证前的事件静默丢弃。
		log.Debug().Str("event", ev.Type).Msg("event before authenticate dropped")
		return
	}

	switch ev.Type {
	case EventJoinRoom:
		// 传输层只管路由，成员校验在持久化那一层做。
		c.deps.Hub.Subscribe(ev.RoomID, c)
	case EventSendMessage:
		c.sendMessage(ev)
	case EventPrivateMessage:
		c.privateMessage(ev)
	default:
		log.Debug().Str("event", ev.Type).Msg("unknown ws event")
	}
}

func (c *Client) authenticate(token string) {
	if c.authed {
		return
	}
	claims, err := auth.ParseAccessToken(token, c.deps.Cfg.JWTSecret)
	if err != nil {
		log.Debug().Err(err).Msg("ws authenticate failed")
		return
	}
	user, err := c.deps.Users.Get(claims.UserID)
	if err != nil {
		log.Debug().Err(err).Uint("user_id", claims.UserID).Msg("ws authenticate user lookup")
		return
	}
	c.userID = user.ID
	c.username = user.Username
	c.authed = true
	c.deps.Presence.Register(user.ID, c)
	log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("session authenticated")
}

// sendMessage 先落库再扇出，落库失败只回给发送方，不会出现半截广播。
func (c *Client) sendMessage(ev InboundEvent) {
	dto, err := c.deps.Messages.Append(ev.RoomID, c.userID, ev.Content, ev.Kind)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", c.userID).Uint("room_id", ev.RoomID).Msg("ws send message")
		c.enqueue(marshalEvent(EventError, map[string]interface{}{"error": "message not sent"}))
		return
	}
	metrics.WsMessagesTotal.Inc()
	c.deps.Hub.Deliver(ev.RoomID, marshalEvent(EventReceiveMessage, map[string]interface{}{"message": dto}))
}

// privateMessage 解析或创建私聊房间、落库，然后点对点投给对方并回显给自己。
// 对方不在线就跳过投递，留给历史拉取。
func (c *Client) privateMessage(ev InboundEvent) {
	room, err := c.deps.Rooms.GetOrCreateDirect(c.userID, ev.RecipientID)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", c.userID).Uint("recipient_id", ev.RecipientID).Msg("ws resolve direct room")
		c.enqueue(marshalEvent(EventError, map[string]interface{}{"error": "message not sent"}))
		return
	}
	dto, err := c.deps.Messages.Append(room.ID, c.userID, ev.Content, ev.Kind)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", c.userID).Uint("room_id", room.ID).Msg("ws private message")
		c.enqueue(marshalEvent(EventError, map[string]interface{}{"error": "message not sent"}))
		return
	}
	metrics.WsMessagesTotal.Inc()

	payload := marshalEvent(EventReceivePrivateMessage, map[string]interface{}{"message": dto, "room_id": room.ID})
	if recipient, ok := c.deps.Presence.Lookup(ev.RecipientID); ok {
		recipient.enqueue(payload)
	}
	// 回显给自己，客户端以落库后的消息（含 id 和时间戳）为准。
	c.enqueue(payload)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
