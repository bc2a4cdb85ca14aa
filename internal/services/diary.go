package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"devotion-go/internal/models"
	"devotion-go/internal/storage"
)

// DiaryTracker keeps one journal entry per user per day.
type DiaryTracker struct {
	gw     storage.Gateway
	userID string
	now    func() time.Time
}

// NewDiaryTracker creates a tracker; nil now uses the local clock.
func NewDiaryTracker(gw storage.Gateway, userID string, now func() time.Time) *DiaryTracker {
	if now == nil {
		now = time.Now
	}
	return &DiaryTracker{gw: gw, userID: userID, now: now}
}

// SaveEntry writes today's entry, replacing both fields if one exists. An
// entry with both fields blank is rejected without touching the store.
func (d *DiaryTracker) SaveEntry(ctx context.Context, reflections, gratitude string) (models.DiaryEntry, error) {
	if strings.TrimSpace(reflections) == "" && strings.TrimSpace(gratitude) == "" {
		return models.DiaryEntry{}, validationErr("write a reflection or something you are grateful for")
	}
	now := d.now()
	date := models.DateKey(now)
	row := map[string]any{
		"id":          uuid.New().String(),
		"user_id":     d.userID,
		"date":        date,
		"reflections": reflections,
		"gratitude":   gratitude,
		"updated_at":  now.UTC(),
	}
	if err := d.gw.Upsert(ctx, models.TableDiaryEntries, row, dateKeyColumns); err != nil {
		return models.DiaryEntry{}, transportErr("save diary entry", err)
	}

	entry, err := d.EntryFor(ctx, date)
	if err != nil {
		return models.DiaryEntry{UserID: d.userID, Date: date, Reflections: reflections, Gratitude: gratitude, UpdatedAt: now.UTC()}, nil
	}
	return entry, nil
}

// EntryFor returns the entry for a day key, or ErrNotFound.
func (d *DiaryTracker) EntryFor(ctx context.Context, date string) (models.DiaryEntry, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return models.DiaryEntry{}, validationErr("date must look like " + models.DateLayout)
	}
	var rows []models.DiaryEntry
	q := storage.Query{
		Filter: storage.And(storage.Eq("user_id", d.userID), storage.Eq("date", date)),
		Limit:  1,
	}
	if err := d.gw.Select(ctx, models.TableDiaryEntries, q, &rows); err != nil {
		return models.DiaryEntry{}, transportErr("fetch diary entry", err)
	}
	if len(rows) == 0 {
		return models.DiaryEntry{}, ErrNotFound
	}
	return rows[0], nil
}

// Today returns today's entry, or ErrNotFound.
func (d *DiaryTracker) Today(ctx context.Context) (models.DiaryEntry, error) {
	return d.EntryFor(ctx, models.DateKey(d.now()))
}

// FetchEntries lists entries newest day first.
func (d *DiaryTracker) FetchEntries(ctx context.Context, limit int) ([]models.DiaryEntry, error) {
	var rows []models.DiaryEntry
	q := storage.Query{
		Filter: storage.Eq("user_id", d.userID),
		Order:  []storage.OrderBy{{Column: "date", Desc: true}},
		Limit:  limit,
	}
	if err := d.gw.Select(ctx, models.TableDiaryEntries, q, &rows); err != nil {
		return nil, transportErr("fetch diary entries", err)
	}
	return rows, nil
}
