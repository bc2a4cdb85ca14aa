package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devotion-go/internal/models"
)

func TestShareRequest(t *testing.T) {
	env := setupEnv(t)
	wall := NewPrayerWall(env.gw, "u1", nil)

	_, err := wall.ShareRequest(context.Background(), "  ", "body", true)
	assert.ErrorIs(t, err, ErrValidation)

	p, err := wall.ShareRequest(context.Background(), " Healing ", " for my aunt ", true)
	require.NoError(t, err)
	assert.Equal(t, "Healing", p.Title)
	assert.Equal(t, "for my aunt", p.Content)
	assert.True(t, p.IsShared)
}

func TestFetchSharedAndSupport(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	author := env.createProfile(t, "Hannah", "hannah@example.com")
	friend := env.createProfile(t, "Eli", "eli@example.com")

	authorWall := NewPrayerWall(env.gw, author.ID, nil)
	shared, err := authorWall.ShareRequest(ctx, "Job interview", "", true)
	require.NoError(t, err)
	_, err = authorWall.ShareRequest(ctx, "Private", "", false)
	require.NoError(t, err)
	older := models.Prayer{UserID: author.ID, Title: "Older", IsShared: true, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, env.db.Create(&older).Error)

	notifier := &fakeNotifier{}
	friendWall := NewPrayerWall(env.gw, friend.ID, notifier)
	require.NoError(t, friendWall.OfferSupport(ctx, shared.ID))
	assert.ErrorIs(t, friendWall.OfferSupport(ctx, shared.ID), ErrDuplicateRelation)
	assert.ErrorIs(t, friendWall.OfferSupport(ctx, "missing"), ErrNotFound)
	assert.Equal(t, []notifyCall{{UserID: author.ID, Type: models.NotificationPrayerSupport}}, notifier.calls)

	authorNotifier := &fakeNotifier{}
	require.NoError(t, NewPrayerWall(env.gw, author.ID, authorNotifier).OfferSupport(ctx, shared.ID))
	assert.Empty(t, authorNotifier.calls, "authors are not notified about their own support")

	wall, err := friendWall.FetchShared(ctx, 10)
	require.NoError(t, err)
	require.Len(t, wall, 2)
	assert.Equal(t, "Job interview", wall[0].Title)
	assert.Equal(t, "Hannah", wall[0].AuthorName)
	assert.Equal(t, 2, wall[0].SupportCount)
	assert.True(t, wall[0].Supported)
	assert.Equal(t, "Older", wall[1].Title)
	assert.Zero(t, wall[1].SupportCount)
	assert.False(t, wall[1].Supported)

	empty, err := NewPrayerWall(setupEnv(t).gw, "u1", nil).FetchShared(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
