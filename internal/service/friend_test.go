package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// befriend drives the full request/accept flow between two users.
func befriend(t *testing.T, friends *FriendService, from, to uint) {
	t.Helper()
	require.NoError(t, friends.SendRequest(from, to))
	reqs, err := friends.PendingRequests(to)
	require.NoError(t, err)
	require.NotEmpty(t, reqs)
	_, err = friends.Respond(reqs[0].ID, to, true)
	require.NoError(t, err)
}

func TestSendRequest_Validation(t *testing.T) {
	gdb := testDB(t)
	friends := NewFriendService(gdb)
	alice := createUser(t, gdb, "alice")

	assert.ErrorIs(t, friends.SendRequest(alice.ID, alice.ID), ErrSelfRequest)
	assert.ErrorIs(t, friends.SendRequest(alice.ID, 999), ErrUserNotFound)
}

func TestSendRequest_DuplicatePending(t *testing.T) {
	gdb := testDB(t)
	friends := NewFriendService(gdb)
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")

	require.NoError(t, friends.SendRequest(alice.ID, bob.ID))
	assert.ErrorIs(t, friends.SendRequest(alice.ID, bob.ID), ErrRequestExists)
	// the reverse direction is blocked by the same pending request
	assert.ErrorIs(t, friends.SendRequest(bob.ID, alice.ID), ErrRequestExists)
}

func TestRespond_AcceptEstablishesFriendship(t *testing.T) {
	gdb := testDB(t)
	friends := NewFriendService(gdb)
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")

	require.NoError(t, friends.SendRequest(alice.ID, bob.ID))
	reqs, err := friends.PendingRequests(bob.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "alice", reqs[0].Sender.Username)

	sender, err := friends.Respond(reqs[0].ID, bob.ID, true)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, sender.ID)

	ok, err := friends.AreFriends(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = friends.AreFriends(bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok, "friendship is symmetric")

	list, err := friends.Friends(bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Username)

	// once handled the request leaves the pending queue
	reqs, err = friends.PendingRequests(bob.ID)
	require.NoError(t, err)
	assert.Empty(t, reqs)
	assert.ErrorIs(t, friends.SendRequest(alice.ID, bob.ID), ErrAlreadyFriends)
}

func TestRespond_RecipientOnly(t *testing.T) {
	gdb := testDB(t)
	friends := NewFriendService(gdb)
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")
	mallory := createUser(t, gdb, "mallory")

	require.NoError(t, friends.SendRequest(alice.ID, bob.ID))
	reqs, err := friends.PendingRequests(bob.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	// neither the sender nor a third party may respond
	_, err = friends.Respond(reqs[0].ID, alice.ID, true)
	assert.ErrorIs(t, err, ErrRequestNotFound)
	_, err = friends.Respond(reqs[0].ID, mallory.ID, true)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRespond_RejectAllowsRetry(t *testing.T) {
	gdb := testDB(t)
	friends := NewFriendService(gdb)
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")

	require.NoError(t, friends.SendRequest(alice.ID, bob.ID))
	reqs, err := friends.PendingRequests(bob.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	_, err = friends.Respond(reqs[0].ID, bob.ID, false)
	require.NoError(t, err)

	ok, err := friends.AreFriends(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// a rejected request may be re-sent and then accepted
	require.NoError(t, friends.SendRequest(alice.ID, bob.ID))
	reqs, err = friends.PendingRequests(bob.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	_, err = friends.Respond(reqs[0].ID, bob.ID, true)
	require.NoError(t, err)

	ok, err = friends.AreFriends(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemove_BreaksFriendship(t *testing.T) {
	gdb := testDB(t)
	friends := NewFriendService(gdb)
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")
	befriend(t, friends, alice.ID, bob.ID)

	// either side may remove
	require.NoError(t, friends.Remove(bob.ID, alice.ID))

	ok, err := friends.AreFriends(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, friends.Remove(bob.ID, alice.ID), ErrNotFriends)

	// the pair can start over afterwards
	require.NoError(t, friends.SendRequest(bob.ID, alice.ID))
}

func TestRemove_NotFriends(t *testing.T) {
	gdb := testDB(t)
	friends := NewFriendService(gdb)
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")

	assert.ErrorIs(t, friends.Remove(alice.ID, bob.ID), ErrNotFriends)
}
