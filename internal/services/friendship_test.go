package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devotion-go/internal/models"
	"devotion-go/internal/storage"
)

func TestSendFriendRequest(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.createProfile(t, "Alice", "alice@example.com")
	bob := env.createProfile(t, "Bob", "bob@example.com")

	notifier := &fakeNotifier{}
	graph := NewSocialGraph(env.gw, alice.ID, notifier, nil)

	f, err := graph.SendFriendRequest(ctx, "  bob@example.com ")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, f.UserID)
	assert.Equal(t, bob.ID, f.FriendID)
	assert.Equal(t, models.FriendshipPending, f.Status)
	assert.Equal(t, []notifyCall{{UserID: bob.ID, Type: models.NotificationFriendRequest}}, notifier.calls)

	bobGraph := NewSocialGraph(env.gw, bob.ID, nil, nil)
	pending, err := bobGraph.FetchPendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Alice", pending[0].Requester.Name)

	sent, err := graph.FetchPendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, sent, "requests the user sent are not in their inbox")
}

func TestSendFriendRequestRejections(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.createProfile(t, "Alice", "alice@example.com")
	bob := env.createProfile(t, "Bob", "bob@example.com")
	graph := NewSocialGraph(env.gw, alice.ID, nil, nil)

	_, err := graph.SendFriendRequest(ctx, "not-an-email")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = graph.SendFriendRequest(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = graph.SendFriendRequest(ctx, "alice@example.com")
	assert.ErrorIs(t, err, ErrSelfReference)

	_, err = graph.SendFriendRequest(ctx, "bob@example.com")
	require.NoError(t, err)
	_, err = graph.SendFriendRequest(ctx, "bob@example.com")
	assert.ErrorIs(t, err, ErrDuplicateRelation)

	_, err = NewSocialGraph(env.gw, bob.ID, nil, nil).SendFriendRequest(ctx, "alice@example.com")
	assert.ErrorIs(t, err, ErrDuplicateRelation, "the reverse direction is the same relation")
}

func TestSendFriendRequestNotificationFailureIsNotFatal(t *testing.T) {
	env := setupEnv(t)
	alice := env.createProfile(t, "Alice", "alice@example.com")
	env.createProfile(t, "Bob", "bob@example.com")

	graph := NewSocialGraph(env.gw, alice.ID, &fakeNotifier{err: errBoom}, nil)
	f, err := graph.SendFriendRequest(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
}

func TestAcceptFriendRequest(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.createProfile(t, "Alice", "alice@example.com")
	bob := env.createProfile(t, "", "bob@example.com")

	aliceGraph := NewSocialGraph(env.gw, alice.ID, nil, nil)
	f, err := aliceGraph.SendFriendRequest(ctx, "bob@example.com")
	require.NoError(t, err)

	assert.ErrorIs(t, aliceGraph.AcceptFriendRequest(ctx, f.ID), ErrNotFound, "only the addressee can accept")

	rec := &updateRecorder{}
	bobNotifier := &fakeNotifier{}
	bobGraph := NewSocialGraph(env.gw, bob.ID, bobNotifier, rec)
	require.NoError(t, bobGraph.AcceptFriendRequest(ctx, f.ID))
	assert.Empty(t, bobNotifier.calls, "accepting does not notify the requester")
	var toAlice int64
	require.NoError(t, env.db.Model(&models.Notification{}).Where("user_id = ?", alice.ID).Count(&toAlice).Error)
	assert.Zero(t, toAlice)

	friends := bobGraph.Friends()
	require.Len(t, friends, 1)
	assert.Equal(t, alice.ID, friends[0].Profile.ID)
	assert.Empty(t, bobGraph.PendingRequests())
	assert.Equal(t, 1, rec.count(UpdateFriends))
	assert.Equal(t, 1, rec.count(UpdatePendingRequests))

	aliceFriends, err := aliceGraph.FetchFriends(ctx)
	require.NoError(t, err)
	require.Len(t, aliceFriends, 1)
	assert.Equal(t, "bob@example.com", aliceFriends[0].Profile.Name, "blank names fall back to the email")

	assert.ErrorIs(t, bobGraph.AcceptFriendRequest(ctx, f.ID), ErrNotFound, "already accepted")
}

func TestRejectFriendRequest(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	alice := env.createProfile(t, "Alice", "alice@example.com")
	bob := env.createProfile(t, "Bob", "bob@example.com")

	aliceGraph := NewSocialGraph(env.gw, alice.ID, nil, nil)
	f, err := aliceGraph.SendFriendRequest(ctx, "bob@example.com")
	require.NoError(t, err)

	bobGraph := NewSocialGraph(env.gw, bob.ID, nil, nil)
	_, err = bobGraph.FetchPendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, bobGraph.PendingRequests(), 1)

	require.NoError(t, bobGraph.RejectFriendRequest(ctx, f.ID))
	assert.Empty(t, bobGraph.PendingRequests())
	assert.ErrorIs(t, bobGraph.RejectFriendRequest(ctx, f.ID), ErrNotFound)

	var rows []models.Friendship
	require.NoError(t, env.gw.Select(ctx, models.TableFriendships, storage.Query{}, &rows))
	assert.Empty(t, rows)

	_, err = aliceGraph.SendFriendRequest(ctx, "bob@example.com")
	assert.NoError(t, err, "a rejected request leaves no trace")
}
