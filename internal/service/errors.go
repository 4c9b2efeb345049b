package service

import "errors"

// 业务层通用错误，handler 可根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrNotMember          = errors.New("not a member of this room")
	ErrAlreadyMember      = errors.New("already a member of this room")
	ErrNotAdmin           = errors.New("only the admin may do this")
	ErrInvalidInviteCode  = errors.New("invalid invite code")
	ErrNotFriends         = errors.New("users are not friends")
	ErrAlreadyFriends     = errors.New("already friends")
	ErrRequestExists      = errors.New("friend request already exists")
	ErrRequestNotFound    = errors.New("friend request not found")
	ErrSelfRequest        = errors.New("cannot befriend yourself")
)
