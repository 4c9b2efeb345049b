package service

import (
	"fmt"
	"testing"

	"github.com/RavenholmAlpha/IRClite/internal/config"
	"github.com/RavenholmAlpha/IRClite/internal/db"
	"github.com/RavenholmAlpha/IRClite/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:             "test-secret",
		Env:                   "dev",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLDays:   7,
	}
}

func createUser(t *testing.T, gdb *gorm.DB, name string) *models.User {
	t.Helper()
	u := models.User{Username: name, PasswordHash: "x"}
	require.NoError(t, gdb.Create(&u).Error)
	return &u
}

// newServices wires the service layer the way SetupRouter does.
func newServices(gdb *gorm.DB) (*MessageService, *RoomService) {
	msgs := NewMessageService(gdb)
	return msgs, NewRoomService(gdb, msgs)
}
