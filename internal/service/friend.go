package service

import (
	"errors"
	"time"

	"github.com/RavenholmAlpha/IRClite/internal/models"

	"gorm.io/gorm"
)

// FriendService 管理好友请求流程，accepted 状态的请求即好友关系。
type FriendService struct {
	db *gorm.DB
}

func NewFriendService(db *gorm.DB) *FriendService {
	return &FriendService{db: db}
}

// FriendRequestDTO 是收到的待处理好友请求。
type FriendRequestDTO struct {
	ID        uint      `json:"id"`
	Sender    UserDTO   `json:"sender"`
	CreatedAt time.Time `json:"created_at"`
}

// Friends 返回用户的好友列表（任一方向 accepted 的对端用户）。
func (s *FriendService) Friends(userID uint) ([]models.User, error) {
	var users []models.User
	err := s.db.
		Joins("JOIN friend_requests fr ON fr.status = ? AND ((fr.sender_id = ? AND fr.recipient_id = users.id) OR (fr.recipient_id = ? AND fr.sender_id = users.id))",
			models.FriendStatusAccepted, userID, userID).
		Order("users.is_online desc").Order("users.username asc").
		Find(&users).Error
	return users, err
}

// AreFriends 检查两个用户间是否存在 accepted 的请求。
func (s *FriendService) AreFriends(a, b uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.FriendRequest{}).
		Where("status = ?", models.FriendStatusAccepted).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

// SendRequest 发起好友请求。已是好友或已有待处理请求时拒绝，
// 此前被拒绝过的请求允许重新发起。
func (s *FriendService) SendRequest(senderID, recipientID uint) error {
	if senderID == recipientID {
		return ErrSelfRequest
	}
	var recipient models.User
	if err := s.db.First(&recipient, recipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	var existing []models.FriendRequest
	err := s.db.
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			senderID, recipientID, recipientID, senderID).
		Find(&existing).Error
	if err != nil {
		return err
	}
	for _, req := range existing {
		switch req.Status {
		case models.FriendStatusAccepted:
			return ErrAlreadyFriends
		case models.FriendStatusPending:
			return ErrRequestExists
		}
	}
	// 同方向的 rejected 记录复用为新的 pending，避开唯一索引。
	for _, req := range existing {
		if req.SenderID == senderID {
			return s.db.Model(&models.FriendRequest{}).Where("id = ?", req.ID).
				Update("status", models.FriendStatusPending).Error
		}
	}
	return s.db.Create(&models.FriendRequest{
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      models.FriendStatusPending,
	}).Error
}

// PendingRequests 返回用户收到的待处理请求，附发送者信息。
func (s *FriendService) PendingRequests(userID uint) ([]FriendRequestDTO, error) {
	var reqs []models.FriendRequest
	err := s.db.Where("recipient_id = ? AND status = ?", userID, models.FriendStatusPending).
		Order("created_at desc").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	out := make([]FriendRequestDTO, 0, len(reqs))
	for _, r := range reqs {
		var sender models.User
		if err := s.db.First(&sender, r.SenderID).Error; err != nil {
			return nil, err
		}
		out = append(out, FriendRequestDTO{
			ID:        r.ID,
			Sender:    UserDTO{ID: sender.ID, Username: sender.Username, Avatar: sender.Avatar, IsOnline: sender.IsOnline},
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// Respond 处理收到的好友请求，accept 为 true 时建立好友关系。
// 只有请求的接收者能处理，返回请求的发送者。
func (s *FriendService) Respond(requestID, userID uint, accept bool) (*models.User, error) {
	var req models.FriendRequest
	err := s.db.Where("id = ? AND recipient_id = ? AND status = ?", requestID, userID, models.FriendStatusPending).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	status := models.FriendStatusRejected
	if accept {
		status = models.FriendStatusAccepted
	}
	if err := s.db.Model(&models.FriendRequest{}).Where("id = ?", req.ID).Update("status", status).Error; err != nil {
		return nil, err
	}
	var sender models.User
	if err := s.db.First(&sender, req.SenderID).Error; err != nil {
		return nil, err
	}
	return &sender, nil
}

// Remove 解除好友关系，删除两个方向上的 accepted 记录。
func (s *FriendService) Remove(userID, friendID uint) error {
	res := s.db.Where("status = ?", models.FriendStatusAccepted).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, friendID, friendID, userID).
		Delete(&models.FriendRequest{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFriends
	}
	return nil
}
