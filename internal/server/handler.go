package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RavenholmAlpha/IRClite/internal/auth"
	"github.com/RavenholmAlpha/IRClite/internal/config"
	"github.com/RavenholmAlpha/IRClite/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	cfg       config.Config
	userSvc   *service.UserService
	roomSvc   *service.RoomService
	msgSvc    *service.MessageService
	friendSvc *service.FriendService
}

func NewHandler(cfg config.Config, userSvc *service.UserService, roomSvc *service.RoomService, msgSvc *service.MessageService, friendSvc *service.FriendService) *Handler {
	return &Handler{cfg: cfg, userSvc: userSvc, roomSvc: roomSvc, msgSvc: msgSvc, friendSvc: friendSvc}
}

// svcError 把业务层的哨兵错误映射为 HTTP 状态码。
func svcError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrNotMember), errors.Is(err, service.ErrNotAdmin), errors.Is(err, service.ErrNotFriends):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrMessageNotFound), errors.Is(err, service.ErrRequestNotFound),
		errors.Is(err, service.ErrInvalidInviteCode):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyMember), errors.Is(err, service.ErrAlreadyFriends),
		errors.Is(err, service.ErrRequestExists), errors.Is(err, service.ErrSelfRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("op", op).Msg("service error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Username) < 2 || len(req.Username) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	result, err := h.userSvc.Register(req.Username, req.Password)
	if err != nil {
		svcError(c, err, "register")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": result.ID, "username": result.Username})
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.Login(req.Username, req.Password)
	if err != nil {
		svcError(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          gin.H{"id": result.User.ID, "username": result.User.Username, "avatar": result.User.Avatar},
	})
}

// RefreshToken 处理 token 刷新请求。
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.RefreshTokens(req.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("refresh token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": result.AccessToken, "refresh_token": result.RefreshToken})
}

// ListUsers 返回除自己外的所有用户。
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.userSvc.List(auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

// SearchUsers 按用户名模糊搜索其他用户。
func (h *Handler) SearchUsers(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}
	users, err := h.userSvc.Search(q, auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "search users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

// GetUser 返回用户详情。
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.userSvc.Get(id)
	if err != nil {
		svcError(c, err, "get user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// UpdateProfile 更新自己的用户名或头像。
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username != "" && (len(req.Username) < 2 || len(req.Username) > 64) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	user, err := h.userSvc.UpdateProfile(auth.GetUserID(c), req.Username, req.Avatar)
	if err != nil {
		svcError(c, err, "update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// ListFriends 返回好友列表。
func (h *Handler) ListFriends(c *gin.Context) {
	friends, err := h.friendSvc.Friends(auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "list friends")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": friends})
}

// SendFriendRequest 向其他用户发起好友请求。
func (h *Handler) SendFriendRequest(c *gin.Context) {
	var req struct {
		RecipientID uint `json:"recipient_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RecipientID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.friendSvc.SendRequest(auth.GetUserID(c), req.RecipientID); err != nil {
		svcError(c, err, "send friend request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"recipient_id": req.RecipientID}})
}

// ListFriendRequests 返回收到的待处理好友请求。
func (h *Handler) ListFriendRequests(c *gin.Context) {
	reqs, err := h.friendSvc.PendingRequests(auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "list friend requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reqs})
}

// RespondFriendRequest 接受或拒绝好友请求。
func (h *Handler) RespondFriendRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || (req.Action != "accept" && req.Action != "reject") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be accept or reject"})
		return
	}
	sender, err := h.friendSvc.Respond(id, auth.GetUserID(c), req.Action == "accept")
	if err != nil {
		svcError(c, err, "respond friend request")
		return
	}
	if req.Action == "accept" {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"friend": sender}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "request rejected"})
}

// RemoveFriend 解除好友关系。
func (h *Handler) RemoveFriend(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.friendSvc.Remove(auth.GetUserID(c), id); err != nil {
		svcError(c, err, "remove friend")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend removed"})
}

// DirectMessage 查找或创建与好友的私聊房间，幂等。
func (h *Handler) DirectMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID := auth.GetUserID(c)
	friends, err := h.friendSvc.AreFriends(userID, id)
	if err != nil {
		svcError(c, err, "direct message")
		return
	}
	if !friends {
		svcError(c, service.ErrNotFriends, "direct message")
		return
	}
	room, err := h.roomSvc.GetOrCreateDirect(userID, id)
	if err != nil {
		svcError(c, err, "direct message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": room})
}

// ListDirectMessages 返回自己的全部私聊房间。
func (h *Handler) ListDirectMessages(c *gin.Context) {
	rooms, err := h.roomSvc.ListDirectForUser(auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "list direct messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rooms})
}

// ListRooms 返回自己所在的全部房间，附未读数。
func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.roomSvc.ListForUser(auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "list rooms")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rooms})
}

// CreateRoom 创建群聊房间。
func (h *Handler) CreateRoom(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Kind        string `json:"kind"`
		Members     []uint `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room name"})
		return
	}
	room, err := h.roomSvc.Create(req.Name, req.Description, req.Kind, auth.GetUserID(c), req.Members)
	if err != nil {
		svcError(c, err, "create room")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": room})
}

// GetRoom 返回房间详情，仅成员可见。
func (h *Handler) GetRoom(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	room, err := h.roomSvc.Get(id, auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "get room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": room})
}

// ListMessages 分页返回房间消息，时间升序。
func (h *Handler) ListMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := h.msgSvc.Page(id, auth.GetUserID(c), page, limit)
	if err != nil {
		svcError(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

// JoinByCode 通过邀请码加入房间。
func (h *Handler) JoinByCode(c *gin.Context) {
	var req struct {
		InviteCode string `json:"invite_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.InviteCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing invite code"})
		return
	}
	room, err := h.roomSvc.JoinByCode(strings.ToUpper(strings.TrimSpace(req.InviteCode)), auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "join by code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": room})
}

// JoinRoom 按房间 ID 加入房间。
func (h *Handler) JoinRoom(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	room, err := h.roomSvc.JoinByID(id, auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "join room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": room})
}

// LeaveRoom 离开房间，触发管理员移交或空房间删除。
func (h *Handler) LeaveRoom(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.roomSvc.Leave(id, auth.GetUserID(c)); err != nil {
		svcError(c, err, "leave room")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left room"})
}

// MarkRoomRead 把房间内他人的消息全部标记为已读。
func (h *Handler) MarkRoomRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.msgSvc.MarkRead(id, auth.GetUserID(c)); err != nil {
		svcError(c, err, "mark room read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "messages marked as read"})
}

// GetInviteCode 取房间邀请码，没有则懒生成。
func (h *Handler) GetInviteCode(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	code, err := h.roomSvc.InviteCode(id, auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "get invite code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"invite_code": code}})
}

// ResetInviteCode 重置邀请码，旧码立即失效，仅管理员可用。
func (h *Handler) ResetInviteCode(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	code, err := h.roomSvc.ResetInviteCode(id, auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "reset invite code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"invite_code": code}})
}

// MessageReadStatus 返回一条消息的已读状态。
func (h *Handler) MessageReadStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	status, err := h.msgSvc.ReadStatus(id, auth.GetUserID(c))
	if err != nil {
		svcError(c, err, "message read status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

// UploadImage 保存图片到本地并返回可访问的 URL。
func (h *Handler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	if file.Size > 5<<20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only images allowed"})
		return
	}
	name := uuid.NewString() + filepath.Ext(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(h.cfg.UploadDir, name)); err != nil {
		log.Error().Err(err).Msg("save uploaded image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": h.cfg.ServerURL + "/uploads/" + name})
}
