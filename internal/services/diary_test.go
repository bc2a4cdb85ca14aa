package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devotion-go/internal/models"
)

func TestSaveDiaryEntry(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	clock := newClock(time.Date(2026, 7, 4, 20, 0, 0, 0, time.UTC))
	diary := NewDiaryTracker(env.gw, "u1", clock.Now)

	_, err := diary.SaveEntry(ctx, " ", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = diary.Today(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	entry, err := diary.SaveEntry(ctx, "quiet morning", "")
	require.NoError(t, err)
	assert.Equal(t, "2026-07-04", entry.Date)
	assert.Equal(t, "quiet morning", entry.Reflections)

	clock.Advance(time.Hour)
	updated, err := diary.SaveEntry(ctx, "", "family")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, updated.ID)
	assert.Empty(t, updated.Reflections, "saving replaces both fields")
	assert.Equal(t, "family", updated.Gratitude)

	var count int64
	require.NoError(t, env.db.Model(&models.DiaryEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDiaryEntryFor(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	clock := newClock(time.Date(2026, 7, 1, 20, 0, 0, 0, time.UTC))
	diary := NewDiaryTracker(env.gw, "u1", clock.Now)

	for _, text := range []string{"day one", "day two", "day three"} {
		_, err := diary.SaveEntry(ctx, text, "")
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
	}

	entry, err := diary.EntryFor(ctx, "2026-07-02")
	require.NoError(t, err)
	assert.Equal(t, "day two", entry.Reflections)

	_, err = diary.EntryFor(ctx, "07/02/2026")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = diary.EntryFor(ctx, "2026-08-01")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewDiaryTracker(env.gw, "u2", clock.Now).EntryFor(ctx, "2026-07-02")
	assert.ErrorIs(t, err, ErrNotFound, "entries are private to their author")

	entries, err := diary.FetchEntries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "day three", entries[0].Reflections)
	assert.Equal(t, "day two", entries[1].Reflections)
}
