package main

import (
	"os"

	"github.com/RavenholmAlpha/IRClite/internal/config"
	"github.com/RavenholmAlpha/IRClite/internal/db"
	clog "github.com/RavenholmAlpha/IRClite/internal/log"
	"github.com/RavenholmAlpha/IRClite/internal/server"
	"github.com/RavenholmAlpha/IRClite/internal/service"
	"github.com/RavenholmAlpha/IRClite/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create upload dir")
	}

	presence := ws.NewPresence(service.NewUserService(gdb, cfg))
	hub := ws.NewHub()
	r := server.SetupRouter(cfg, gdb, presence, hub)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
