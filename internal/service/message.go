package service

import (
	"errors"
	"time"

	"github.com/RavenholmAlpha/IRClite/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 发送者在自己消息上的已读指示，由已读人数与成员数推导。
const (
	IndicatorSent      = "sent"
	IndicatorDelivered = "delivered"
	IndicatorRead      = "read"
)

// MessageService 是消息的持久化入口，同时维护每条消息的已读集合。
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// UserDTO 是嵌在消息与房间成员列表里的用户信息。
type UserDTO struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	IsOnline bool   `json:"is_online"`
}

// MessageDTO 是对外输出的消息数据。
type MessageDTO struct {
	ID        uint      `json:"id"`
	RoomID    uint      `json:"room_id"`
	Sender    UserDTO   `json:"sender"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Reader 是某条消息已读集合中的一项。
type Reader struct {
	UserID   uint      `json:"user_id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`
	ReadAt   time.Time `json:"read_at"`
}

// ReadStatus 是一条消息的已读状态查询结果。
type ReadStatus struct {
	MessageID      uint     `json:"message_id"`
	Readers        []Reader `json:"readers"`
	TotalReadCount int      `json:"total_read_count"`
	Indicator      string   `json:"indicator"`
}

// isMember 检查用户是否是房间成员。
func isMember(db *gorm.DB, roomID, userID uint) (bool, error) {
	var count int64
	err := db.Model(&models.RoomMember{}).Where("room_id = ? AND user_id = ?", roomID, userID).Count(&count).Error
	return count > 0, err
}

func memberCount(db *gorm.DB, roomID uint) (int64, error) {
	var count int64
	err := db.Model(&models.RoomMember{}).Where("room_id = ?", roomID).Count(&count).Error
	return count, err
}

// Append 持久化一条消息并顺带刷新房间的最近消息与活跃时间。
// 非成员的发送会被拒绝，消息不落库；房间刷新失败只记日志不影响发送结果。
func (s *MessageService) Append(roomID, senderID uint, content, kind string) (*MessageDTO, error) {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	ok, err := isMember(s.db, roomID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	if kind != models.MessageKindImage {
		kind = models.MessageKindText
	}

	msg := models.Message{RoomID: roomID, SenderID: senderID, Content: content, Kind: kind}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}

	// 消息与房间活跃时间是两次独立写入，后者失败最多让 last_activity 变旧。
	updates := map[string]interface{}{"last_message_id": msg.ID, "last_activity": msg.CreatedAt}
	if err := s.db.Model(&models.Room{}).Where("id = ?", roomID).Updates(updates).Error; err != nil {
		log.Warn().Err(err).Uint("room_id", roomID).Msg("update room last activity")
	}

	var sender models.User
	if err := s.db.First(&sender, senderID).Error; err != nil {
		return nil, err
	}
	return &MessageDTO{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Sender:    UserDTO{ID: sender.ID, Username: sender.Username, Avatar: sender.Avatar, IsOnline: sender.IsOnline},
		Content:   msg.Content,
		Kind:      msg.Kind,
		CreatedAt: msg.CreatedAt,
	}, nil
}

// Page 分页查询房间消息，内部按最新页取数、返回前反转为时间升序。
func (s *MessageService) Page(roomID, userID uint, page, limit int) ([]MessageDTO, error) {
	ok, err := isMember(s.db, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var msgs []models.Message
	err = s.db.Where("room_id = ?", roomID).
		Order("id desc").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	senders, err := s.resolveSenders(msgs)
	if err != nil {
		return nil, err
	}
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			ID:        m.ID,
			RoomID:    m.RoomID,
			Sender:    senders[m.SenderID],
			Content:   m.Content,
			Kind:      m.Kind,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

// MarkRead 把房间里所有他人发送且尚未读过的消息标记为 reader 已读。
// 幂等：全部已读后再调用是空操作；并发重复调用靠唯一索引去重。
func (s *MessageService) MarkRead(roomID, readerID uint) error {
	ok, err := isMember(s.db, roomID, readerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}

	var unreadIDs []uint
	err = s.db.Model(&models.Message{}).
		Where("room_id = ? AND sender_id <> ?", roomID, readerID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", readerID).
		Pluck("id", &unreadIDs).Error
	if err != nil {
		return err
	}
	if len(unreadIDs) == 0 {
		return nil
	}

	now := time.Now()
	reads := make([]models.MessageRead, 0, len(unreadIDs))
	for _, id := range unreadIDs {
		reads = append(reads, models.MessageRead{MessageID: id, UserID: readerID, ReadAt: now})
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&reads).Error
}

// ReadStatus 返回一条消息的已读列表与推导出的指示状态，仅房间成员可查。
func (s *MessageService) ReadStatus(messageID, callerID uint) (*ReadStatus, error) {
	var msg models.Message
	if err := s.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	ok, err := isMember(s.db, msg.RoomID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	var readers []Reader
	err = s.db.Model(&models.MessageRead{}).
		Select("message_reads.user_id, users.username, users.avatar, message_reads.read_at").
		Joins("JOIN users ON users.id = message_reads.user_id").
		Where("message_reads.message_id = ?", messageID).
		Order("message_reads.read_at asc").
		Scan(&readers).Error
	if err != nil {
		return nil, err
	}

	members, err := memberCount(s.db, msg.RoomID)
	if err != nil {
		return nil, err
	}
	return &ReadStatus{
		MessageID:      messageID,
		Readers:        readers,
		TotalReadCount: len(readers),
		Indicator:      indicatorFor(len(readers), int(members)),
	}, nil
}

// UnreadCount 统计房间内他人发送且 user 未读的消息数，随取随算。
func (s *MessageService) UnreadCount(roomID, userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Message{}).
		Where("room_id = ? AND sender_id <> ?", roomID, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID).
		Count(&count).Error
	return count, err
}

// indicatorFor 按 已读数/(成员数-1) 推导 sent/delivered/read。
func indicatorFor(readCount, members int) string {
	switch {
	case readCount == 0:
		return IndicatorSent
	case readCount >= members-1:
		return IndicatorRead
	default:
		return IndicatorDelivered
	}
}

// resolveSenders 批量获取消息涉及的发送者信息。
func (s *MessageService) resolveSenders(msgs []models.Message) (map[uint]UserDTO, error) {
	seen := make(map[uint]struct{}, len(msgs))
	userIDs := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		userIDs = append(userIDs, m.SenderID)
	}

	senders := make(map[uint]UserDTO, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		if err := s.db.Select("id", "username", "avatar", "is_online").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			senders[u.ID] = UserDTO{ID: u.ID, Username: u.Username, Avatar: u.Avatar, IsOnline: u.IsOnline}
		}
	}
	return senders, nil
}
