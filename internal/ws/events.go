package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// 客户端上行事件类型。
const (
	EventAuthenticate   = "authenticate"
	EventJoinRoom       = "join_room"
	EventSendMessage    = "send_message"
	EventPrivateMessage = "private_message"
)

// 服务端下行事件类型。
const (
	EventUserOnline            = "user_online"
	EventUserOffline           = "user_offline"
	EventReceiveMessage        = "receive_message"
	EventReceivePrivateMessage = "receive_private_message"
	EventError                 = "error"
)

// InboundEvent 是统一的上行事件信封，按 type 取用对应字段。
type InboundEvent struct {
	Type        string `json:"type"`
	Token       string `json:"token,omitempty"`
	RoomID      uint   `json:"room_id,omitempty"`
	RecipientID uint   `json:"recipient_id,omitempty"`
	Content     string `json:"content,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// marshalEvent 把下行事件编码成发给所有订阅者的同一份字节串。
func marshalEvent(typ string, fields map[string]interface{}) []byte {
	evt := make(map[string]interface{}, len(fields)+1)
	evt["type"] = typ
	for k, v := range fields {
		evt[k] = v
	}
	b, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("event", typ).Msg("marshal event")
		return nil
	}
	return b
}
