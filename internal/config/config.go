package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	DatabaseDSN           string
	JWTSecret             string
	Env                   string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	UploadDir             string
	ServerURL             string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// Load 先尝试加载 .env 文件，再按环境变量组装配置。
func Load() Config {
	_ = godotenv.Load()

	port := getenv("APP_PORT", "8080")
	dsn := getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=irclite port=5432 sslmode=disable TimeZone=UTC")
	secret := getenv("JWT_SECRET", "dev-secret-change-me")
	env := getenv("APP_ENV", "dev")
	accessTTLStr := getenv("ACCESS_TOKEN_TTL_MINUTES", "15")
	refreshTTLDaysStr := getenv("REFRESH_TOKEN_TTL_DAYS", "7")
	uploadDir := getenv("UPLOAD_DIR", "./uploads")
	serverURL := getenv("SERVER_URL", "http://localhost:"+port)
	accessTTL, _ := strconv.Atoi(accessTTLStr)
	if accessTTL <= 0 {
		accessTTL = 15
	}
	refreshTTL, _ := strconv.Atoi(refreshTTLDaysStr)
	if refreshTTL <= 0 {
		refreshTTL = 7
	}
	return Config{
		Port:                  port,
		DatabaseDSN:           dsn,
		JWTSecret:             secret,
		Env:                   env,
		AccessTokenTTLMinutes: accessTTL,
		RefreshTokenTTLDays:   refreshTTL,
		UploadDir:             uploadDir,
		ServerURL:             serverURL,
	}
}

// Validate 检查配置是否可用，dev 以外的环境禁止默认 JWT 密钥。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("database dsn is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == "dev-secret-change-me" {
		return errors.New("jwt secret must be changed outside dev")
	}
	return nil
}
