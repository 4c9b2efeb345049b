package models

import "time"

// 房间、消息与好友请求的取值常量。
const (
	RoomKindPublic  = "public"
	RoomKindPrivate = "private"
	RoomKindDirect  = "direct"

	MessageKindText  = "text"
	MessageKindImage = "image"

	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusRejected = "rejected"
)

type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:64;not null" json:"username"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Avatar       string     `gorm:"size:256" json:"avatar"`
	IsOnline     bool       `gorm:"not null;default:false" json:"is_online"`
	LastSeen     *time.Time `json:"last_seen"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Room 的成员关系单独存在 RoomMember 表；direct 房间固定 2 人且无邀请码。
type Room struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:128;not null" json:"name"`
	Kind          string    `gorm:"size:16;not null;default:public" json:"kind"`
	Description   string    `gorm:"size:512" json:"description"`
	InviteCode    *string   `gorm:"uniqueIndex;size:16" json:"invite_code,omitempty"`
	AdminID       *uint     `gorm:"index" json:"admin_id"`
	LastMessageID *uint     `json:"last_message_id"`
	LastActivity  time.Time `gorm:"index;not null" json:"last_activity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type RoomMember struct {
	ID        uint `gorm:"primaryKey"`
	RoomID    uint `gorm:"uniqueIndex:idx_room_member;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_room_member;index;not null"`
	CreatedAt time.Time
}

type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"index:idx_msg_room_id;not null" json:"room_id"`
	SenderID  uint      `gorm:"index;not null" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Kind      string    `gorm:"size:16;not null;default:text" json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageRead 是消息的已读记录，(message, user) 至多一行。
type MessageRead struct {
	ID        uint      `gorm:"primaryKey"`
	MessageID uint      `gorm:"uniqueIndex:idx_message_reader;not null"`
	UserID    uint      `gorm:"uniqueIndex:idx_message_reader;index;not null"`
	ReadAt    time.Time `gorm:"not null"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

// FriendRequest 的 accepted 状态即好友关系本身，不另建好友表。
type FriendRequest struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SenderID    uint      `gorm:"uniqueIndex:idx_friend_pair;not null" json:"sender_id"`
	RecipientID uint      `gorm:"uniqueIndex:idx_friend_pair;index;not null" json:"recipient_id"`
	Status      string    `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
