package service

import (
	"testing"

	"github.com/RavenholmAlpha/IRClite/internal/auth"
	"github.com/RavenholmAlpha/IRClite/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	gdb := testDB(t)
	users := NewUserService(gdb, testConfig())

	reg, err := users.Register("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", reg.Username)
	assert.NotZero(t, reg.ID)

	_, err = users.Register("alice", "other")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	res, err := users.Login("alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, reg.ID, res.User.ID)

	claims, err := auth.ParseAccessToken(res.AccessToken, testConfig().JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, claims.UserID)
}

func TestLogin_BadCredentials(t *testing.T) {
	gdb := testDB(t)
	users := NewUserService(gdb, testConfig())
	_, err := users.Register("alice", "s3cret")
	require.NoError(t, err)

	_, err = users.Login("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Login("nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshTokens_Rotation(t *testing.T) {
	gdb := testDB(t)
	users := NewUserService(gdb, testConfig())
	_, err := users.Register("alice", "s3cret")
	require.NoError(t, err)
	res, err := users.Login("alice", "s3cret")
	require.NoError(t, err)

	next, err := users.RefreshTokens(res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, next.RefreshToken)

	// the old refresh token is revoked after rotation
	_, err = users.RefreshTokens(res.RefreshToken)
	assert.Error(t, err)
}

func TestSetOnline_PersistsLastSeen(t *testing.T) {
	gdb := testDB(t)
	users := NewUserService(gdb, testConfig())
	alice := createUser(t, gdb, "alice")

	require.NoError(t, users.SetOnline(alice.ID, true))
	got, err := users.Get(alice.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)
	assert.Nil(t, got.LastSeen)

	require.NoError(t, users.SetOnline(alice.ID, false))
	got, err = users.Get(alice.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)
	require.NotNil(t, got.LastSeen)
}

func TestList_OnlineFirst(t *testing.T) {
	gdb := testDB(t)
	users := NewUserService(gdb, testConfig())
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")
	carol := createUser(t, gdb, "carol")
	require.NoError(t, users.SetOnline(carol.ID, true))

	list, err := users.List(alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, carol.ID, list[0].ID, "online users sort first")
	assert.Equal(t, bob.ID, list[1].ID)
}

func TestSearch_CaseInsensitive(t *testing.T) {
	gdb := testDB(t)
	users := NewUserService(gdb, testConfig())
	alice := createUser(t, gdb, "Alice")
	createUser(t, gdb, "alicia")
	createUser(t, gdb, "bob")

	found, err := users.Search("ALIC", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)

	// the caller is excluded from results
	found, err = users.Search("alic", alice.ID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "alicia", found[0].Username)
}

func TestUpdateProfile(t *testing.T) {
	gdb := testDB(t)
	users := NewUserService(gdb, testConfig())
	alice := createUser(t, gdb, "alice")
	createUser(t, gdb, "bob")

	got, err := users.UpdateProfile(alice.ID, "alice2", "/uploads/a.png")
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)
	assert.Equal(t, "/uploads/a.png", got.Avatar)

	_, err = users.UpdateProfile(alice.ID, "bob", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// empty fields leave the profile unchanged
	got, err = users.UpdateProfile(alice.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)

	var count int64
	gdb.Model(&models.User{}).Count(&count)
	assert.EqualValues(t, 2, count)
}
