package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/RavenholmAlpha/IRClite/internal/models"

	"gorm.io/gorm"
)

// RoomService 维护房间目录：成员关系、管理员、邀请码与生命周期规则。
type RoomService struct {
	db   *gorm.DB
	msgs *MessageService
}

func NewRoomService(db *gorm.DB, msgs *MessageService) *RoomService {
	return &RoomService{db: db, msgs: msgs}
}

// RoomDTO 是对外输出的房间数据，邀请码只在成员视角的查询里出现。
type RoomDTO struct {
	ID           uint        `json:"id"`
	Name         string      `json:"name"`
	Kind         string      `json:"kind"`
	Description  string      `json:"description"`
	InviteCode   *string     `json:"invite_code,omitempty"`
	AdminID      *uint       `json:"admin_id"`
	Members      []UserDTO   `json:"members"`
	LastMessage  *MessageDTO `json:"last_message,omitempty"`
	LastActivity time.Time   `json:"last_activity"`
	UnreadCount  int64       `json:"unread_count"`
}

const inviteCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateInviteCode() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = inviteCodeChars[int(b[i])%len(inviteCodeChars)]
	}
	return string(b), nil
}

// uniqueInviteCode 重新生成直到与现有房间不冲突，冲突不对外暴露。
func uniqueInviteCode(db *gorm.DB) (string, error) {
	for {
		code, err := generateInviteCode()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.Room{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
}

// Create 创建群聊房间，创建者成为管理员并自动入群。
func (s *RoomService) Create(name, description, kind string, creatorID uint, memberIDs []uint) (*RoomDTO, error) {
	if kind != models.RoomKindPrivate {
		kind = models.RoomKindPublic
	}
	var room models.Room
	err := s.db.Transaction(func(tx *gorm.DB) error {
		code, err := uniqueInviteCode(tx)
		if err != nil {
			return err
		}
		admin := creatorID
		room = models.Room{
			Name:         name,
			Kind:         kind,
			Description:  description,
			InviteCode:   &code,
			AdminID:      &admin,
			LastActivity: time.Now(),
		}
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		seen := map[uint]struct{}{creatorID: {}}
		members := []models.RoomMember{{RoomID: room.ID, UserID: creatorID}}
		for _, id := range memberIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			members = append(members, models.RoomMember{RoomID: room.ID, UserID: id})
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(room.ID, creatorID)
}

// GetOrCreateDirect 查找或创建 (user, peer) 的私聊房间，幂等。
// direct 房间固定两名成员、无管理员、无邀请码。
func (s *RoomService) GetOrCreateDirect(userID, peerID uint) (*RoomDTO, error) {
	if userID == peerID {
		return nil, ErrSelfRequest
	}
	var peer models.User
	if err := s.db.First(&peer, peerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	var me models.User
	if err := s.db.First(&me, userID).Error; err != nil {
		return nil, err
	}

	var roomID uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing []uint
		err := tx.Model(&models.Room{}).
			Joins("JOIN room_members a ON a.room_id = rooms.id AND a.user_id = ?", userID).
			Joins("JOIN room_members b ON b.room_id = rooms.id AND b.user_id = ?", peerID).
			Where("rooms.kind = ?", models.RoomKindDirect).
			Pluck("rooms.id", &existing).Error
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			roomID = existing[0]
			return nil
		}
		room := models.Room{
			Name:         fmt.Sprintf("%s & %s", me.Username, peer.Username),
			Kind:         models.RoomKindDirect,
			LastActivity: time.Now(),
		}
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		members := []models.RoomMember{
			{RoomID: room.ID, UserID: userID},
			{RoomID: room.ID, UserID: peerID},
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}
		roomID = room.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(roomID, userID)
}

// Get 返回房间详情，仅成员可见。
func (s *RoomService) Get(roomID, callerID uint) (*RoomDTO, error) {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	ok, err := isMember(s.db, roomID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return s.toDTO(&room, callerID)
}

// JoinByID 把用户加入指定房间。direct 房间成员固定，对外不可加入。
func (s *RoomService) JoinByID(roomID, userID uint) (*RoomDTO, error) {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if room.Kind == models.RoomKindDirect {
		return nil, ErrRoomNotFound
	}
	if err := s.addMember(room.ID, userID, false); err != nil {
		return nil, err
	}
	return s.Get(room.ID, userID)
}

// JoinByCode 通过邀请码入群，入群会刷新房间活跃时间。
func (s *RoomService) JoinByCode(code string, userID uint) (*RoomDTO, error) {
	var room models.Room
	if err := s.db.Where("invite_code = ?", code).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidInviteCode
		}
		return nil, err
	}
	if err := s.addMember(room.ID, userID, true); err != nil {
		return nil, err
	}
	return s.Get(room.ID, userID)
}

func (s *RoomService) addMember(roomID, userID uint, bumpActivity bool) error {
	ok, err := isMember(s.db, roomID, userID)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyMember
	}
	if err := s.db.Create(&models.RoomMember{RoomID: roomID, UserID: userID}).Error; err != nil {
		return err
	}
	if bumpActivity {
		return s.db.Model(&models.Room{}).Where("id = ?", roomID).Update("last_activity", time.Now()).Error
	}
	return nil
}

// InviteCode 返回群聊房间的邀请码，缺失时懒生成，仅成员可取。
func (s *RoomService) InviteCode(roomID, callerID uint) (string, error) {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrRoomNotFound
		}
		return "", err
	}
	ok, err := isMember(s.db, roomID, callerID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotMember
	}
	if room.Kind == models.RoomKindDirect {
		return "", ErrRoomNotFound
	}
	if room.InviteCode != nil {
		return *room.InviteCode, nil
	}
	code, err := uniqueInviteCode(s.db)
	if err != nil {
		return "", err
	}
	if err := s.db.Model(&models.Room{}).Where("id = ?", roomID).Update("invite_code", code).Error; err != nil {
		return "", err
	}
	return code, nil
}

// ResetInviteCode 生成新邀请码并使旧码立刻失效，仅管理员可用。
func (s *RoomService) ResetInviteCode(roomID, callerID uint) (string, error) {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrRoomNotFound
		}
		return "", err
	}
	if room.AdminID == nil || *room.AdminID != callerID {
		return "", ErrNotAdmin
	}
	code, err := uniqueInviteCode(s.db)
	if err != nil {
		return "", err
	}
	if err := s.db.Model(&models.Room{}).Where("id = ?", roomID).Update("invite_code", code).Error; err != nil {
		return "", err
	}
	return code, nil
}

// Leave 把用户移出房间。管理员离开时移交给任一剩余成员；
// 最后一名成员离开时级联删除房间及其全部消息与已读记录。
func (s *RoomService) Leave(roomID, userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return err
		}
		res := tx.Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&models.RoomMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotMember
		}

		var remaining []models.RoomMember
		if err := tx.Where("room_id = ?", roomID).Order("id asc").Find(&remaining).Error; err != nil {
			return err
		}
		if len(remaining) == 0 {
			if err := tx.Where("message_id IN (SELECT id FROM messages WHERE room_id = ?)", roomID).Delete(&models.MessageRead{}).Error; err != nil {
				return err
			}
			if err := tx.Where("room_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Room{}, roomID).Error
		}
		if room.AdminID != nil && *room.AdminID == userID {
			return tx.Model(&models.Room{}).Where("id = ?", roomID).Update("admin_id", remaining[0].UserID).Error
		}
		return nil
	})
}

// ListForUser 返回用户所在的全部房间，按活跃时间倒序并附未读数。
func (s *RoomService) ListForUser(userID uint) ([]RoomDTO, error) {
	return s.listForUser(userID, "")
}

// ListDirectForUser 只返回用户的私聊房间。
func (s *RoomService) ListDirectForUser(userID uint) ([]RoomDTO, error) {
	return s.listForUser(userID, models.RoomKindDirect)
}

func (s *RoomService) listForUser(userID uint, kind string) ([]RoomDTO, error) {
	q := s.db.Model(&models.Room{}).
		Joins("JOIN room_members m ON m.room_id = rooms.id AND m.user_id = ?", userID).
		Order("rooms.last_activity desc")
	if kind != "" {
		q = q.Where("rooms.kind = ?", kind)
	}
	var rooms []models.Room
	if err := q.Find(&rooms).Error; err != nil {
		return nil, err
	}
	out := make([]RoomDTO, 0, len(rooms))
	for i := range rooms {
		dto, err := s.toDTO(&rooms[i], userID)
		if err != nil {
			return nil, err
		}
		out = append(out, *dto)
	}
	return out, nil
}

// toDTO 组装房间输出：成员投影、最近一条消息与调用者视角的未读数。
func (s *RoomService) toDTO(room *models.Room, callerID uint) (*RoomDTO, error) {
	var members []UserDTO
	err := s.db.Model(&models.RoomMember{}).
		Select("users.id, users.username, users.avatar, users.is_online").
		Joins("JOIN users ON users.id = room_members.user_id").
		Where("room_members.room_id = ?", room.ID).
		Scan(&members).Error
	if err != nil {
		return nil, err
	}

	dto := &RoomDTO{
		ID:           room.ID,
		Name:         room.Name,
		Kind:         room.Kind,
		Description:  room.Description,
		InviteCode:   room.InviteCode,
		AdminID:      room.AdminID,
		Members:      members,
		LastActivity: room.LastActivity,
	}

	if room.LastMessageID != nil {
		var msg models.Message
		if err := s.db.First(&msg, *room.LastMessageID).Error; err == nil {
			senders, err := s.msgs.resolveSenders([]models.Message{msg})
			if err != nil {
				return nil, err
			}
			dto.LastMessage = &MessageDTO{
				ID:        msg.ID,
				RoomID:    msg.RoomID,
				Sender:    senders[msg.SenderID],
				Content:   msg.Content,
				Kind:      msg.Kind,
				CreatedAt: msg.CreatedAt,
			}
		}
	}

	unread, err := s.msgs.UnreadCount(room.ID, callerID)
	if err != nil {
		return nil, err
	}
	dto.UnreadCount = unread
	return dto, nil
}
