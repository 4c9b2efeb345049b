package server

import (
	"net/http"
	"time"

	"github.com/RavenholmAlpha/IRClite/internal/auth"
	"github.com/RavenholmAlpha/IRClite/internal/config"
	"github.com/RavenholmAlpha/IRClite/internal/metrics"
	"github.com/RavenholmAlpha/IRClite/internal/mw"
	"github.com/RavenholmAlpha/IRClite/internal/service"
	"github.com/RavenholmAlpha/IRClite/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, db *gorm.DB, presence *ws.Presence, hub *ws.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	msgSvc := service.NewMessageService(db)
	roomSvc := service.NewRoomService(db, msgSvc)
	userSvc := service.NewUserService(db, cfg)
	friendSvc := service.NewFriendService(db)
	h := NewHandler(cfg, userSvc, roomSvc, msgSvc, friendSvc)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/uploads", cfg.UploadDir)

	api := r.Group("/api/v1")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, db))

	authed.GET("/users", h.ListUsers)
	authed.GET("/users/search", h.SearchUsers)
	authed.GET("/users/:id", h.GetUser)
	authed.PUT("/users/me", h.UpdateProfile)

	authed.GET("/friends", h.ListFriends)
	authed.POST("/friends/request", h.SendFriendRequest)
	authed.GET("/friends/requests", h.ListFriendRequests)
	authed.PUT("/friends/requests/:id", h.RespondFriendRequest)
	authed.DELETE("/friends/:id", h.RemoveFriend)
	authed.POST("/friends/direct-message/:id", h.DirectMessage)
	authed.GET("/friends/direct-messages", h.ListDirectMessages)

	authed.GET("/chats/rooms", h.ListRooms)
	authed.POST("/chats/rooms", h.CreateRoom)
	authed.POST("/chats/rooms/join-by-code", h.JoinByCode)
	authed.GET("/chats/rooms/:id", h.GetRoom)
	authed.GET("/chats/rooms/:id/messages", h.ListMessages)
	authed.POST("/chats/rooms/:id/join", h.JoinRoom)
	authed.POST("/chats/rooms/:id/leave", h.LeaveRoom)
	authed.POST("/chats/rooms/:id/read", h.MarkRoomRead)
	authed.GET("/chats/rooms/:id/invite-code", h.GetInviteCode)
	authed.POST("/chats/rooms/:id/reset-invite-code", h.ResetInviteCode)
	authed.GET("/chats/messages/:id/read-status", h.MessageReadStatus)

	authed.POST("/upload/image", h.UploadImage)

	r.GET("/ws", ws.Serve(ws.Deps{
		Cfg:      cfg,
		Presence: presence,
		Hub:      hub,
		Users:    userSvc,
		Rooms:    roomSvc,
		Messages: msgSvc,
	}))

	return r
}
